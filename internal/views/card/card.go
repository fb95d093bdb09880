// Package card renders the approval summary as markdown through glamour.
package card

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/glamour"

	"github.com/degenape/builderfee/internal/network"
)

// Link is a community link shown in the card footer.
type Link struct {
	Name string
	URL  string
}

// Links are the project's community links.
var Links = []Link{
	{"Twitter", "https://x.com/trustme_bros"},
	{"Website", "https://trustmebros.fun/"},
	{"Telegram", "https://t.me/trustmebrosfun"},
}

// Markdown returns the summary shown above the approval control.
func Markdown() string {
	var b strings.Builder
	b.WriteString("# $TRUST builder fee\n\n")
	b.WriteString("*by DegenApeTrader (DAT)*\n\n")
	b.WriteString("Approve the builder to charge a fee on orders it routes for you.\n\n")
	fmt.Fprintf(&b, "| | |\n|---|---|\n")
	fmt.Fprintf(&b, "| Builder | `%s` |\n", network.BuilderAddress)
	fmt.Fprintf(&b, "| Max fee rate | **%s** |\n", network.MaxFeeRate)
	fmt.Fprintf(&b, "| Network | %s (`%s`) |\n", network.ArbitrumOne.ChainName, network.ArbitrumOne.ChainID)
	b.WriteString("\n---\n\n")
	links := make([]string, 0, len(Links))
	for _, l := range Links {
		links = append(links, fmt.Sprintf("[%s](%s)", l.Name, l.URL))
	}
	b.WriteString(strings.Join(links, " · ") + "\n")
	return b.String()
}

// Model caches the rendered card per width.
type Model struct {
	width    int
	rendered string
}

// New creates an unrendered card.
func New() Model {
	return Model{}
}

// View renders the card at width. Rendering failures fall back to the raw
// markdown.
func (m *Model) View(width int) string {
	if width < 40 {
		width = 40
	}
	if m.rendered != "" && m.width == width {
		return m.rendered
	}

	md := Markdown()
	r, err := glamour.NewTermRenderer(
		glamour.WithStandardStyle("dark"),
		glamour.WithWordWrap(width-4),
	)
	if err == nil {
		if out, rerr := r.Render(md); rerr == nil {
			md = strings.TrimRight(out, "\n")
		}
	}
	m.width = width
	m.rendered = md
	return md
}
