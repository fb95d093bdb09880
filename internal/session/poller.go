package session

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// poller watches one submitted transaction until a terminal receipt, the
// confirm timeout, or cancellation.
type poller struct {
	hash   string
	cancel context.CancelFunc
}

func (c *Controller) startPollerLocked(hash string) {
	c.stopPollerLocked()
	ctx, cancel := context.WithTimeout(c.ctx, c.opts.ConfirmTimeout)
	p := &poller{hash: hash, cancel: cancel}
	c.poll = p
	c.wg.Add(1)
	go c.runPoller(ctx, p)
}

func (c *Controller) stopPollerLocked() {
	if c.poll != nil {
		c.poll.cancel()
		c.poll = nil
	}
}

func (c *Controller) runPoller(ctx context.Context, p *poller) {
	defer c.wg.Done()
	defer p.cancel()

	ticker := time.NewTicker(c.opts.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			if errors.Is(ctx.Err(), context.DeadlineExceeded) {
				c.log.Warn("Gave up waiting for approval receipt", "tx", p.hash)
				c.finishPoll(p, &Result{Kind: ResultInfo, Message: MsgConfirmTimeout})
				return
			}
			c.finishPoll(p, nil)
			return
		case <-ticker.C:
		}

		receipt, err := c.provider.TransactionReceipt(ctx, p.hash)
		if err != nil {
			c.log.Debug("Receipt poll failed", "tx", p.hash, "err", err)
			continue
		}
		if receipt == nil {
			continue
		}

		if receipt.Succeeded() {
			block := "?"
			if receipt.BlockNumber != nil {
				block = receipt.BlockNumber.ToInt().String()
			}
			c.log.Info("Approval confirmed", "tx", p.hash, "block", block)
			c.finishPoll(p, &Result{Kind: ResultSuccess, Message: fmt.Sprintf(MsgConfirmed, block)})
		} else {
			c.log.Warn("Approval reverted", "tx", p.hash)
			c.finishPoll(p, &Result{Kind: ResultError, Message: MsgReverted})
		}
		return
	}
}

// finishPoll records res unless p has been superseded or stopped.
func (c *Controller) finishPoll(p *poller, res *Result) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.poll != p {
		return
	}
	c.poll = nil
	if res != nil {
		c.st.Result = res
	}
	c.publishLocked()
}
