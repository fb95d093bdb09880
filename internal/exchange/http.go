package exchange

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// Response is the exchange's reply envelope. Status is "ok" or "err"; on
// "err" the payload is a plain message string.
type Response struct {
	Status   string          `json:"status"`
	Response json.RawMessage `json:"response,omitempty"`
}

// Err converts an "err" envelope into an *Error.
func (r *Response) Err() error {
	if r == nil || r.Status == "ok" {
		return nil
	}
	var msg string
	if err := json.Unmarshal(r.Response, &msg); err != nil || msg == "" {
		msg = strings.TrimSpace(string(r.Response))
	}
	if msg == "" {
		msg = "exchange returned status " + r.Status
	}
	return &Error{Message: msg}
}

// HTTPTransport posts signed actions to an exchange REST endpoint.
type HTTPTransport struct {
	baseURL string
	client  *http.Client
}

// NewHTTPTransport creates a transport targeting baseURL (e.g.
// "https://api.hyperliquid.xyz").
func NewHTTPTransport(baseURL string) *HTTPTransport {
	return &HTTPTransport{
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  &http.Client{Timeout: 10 * time.Second},
	}
}

// Exchange sends POST /exchange.
func (t *HTTPTransport) Exchange(ctx context.Context, req *Request) (*Response, error) {
	var out Response
	if err := t.post(ctx, "/exchange", req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (t *HTTPTransport) post(ctx context.Context, path string, body interface{}, out interface{}) error {
	data, err := json.Marshal(body)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, t.baseURL+path, bytes.NewReader(data))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := t.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return &Error{Message: fmt.Sprintf("POST %s: %d %s", path, resp.StatusCode, strings.TrimSpace(string(respBody)))}
	}
	return json.NewDecoder(resp.Body).Decode(out)
}
