package runner

import (
	"context"
	"errors"
	"time"

	"queuelab/internal/queue"
	"queuelab/internal/stats"
)

// channel is one worker servicing a stage buffer. next is nil on the last
// stage.
type channel struct {
	stage   int
	index   int
	cfg     Config
	in      *queue.Buffer[Request]
	next    *queue.Buffer[Request]
	stats   *stats.Aggregator
	service func(ctx context.Context, d time.Duration) bool
}

func (c *channel) run(ctx context.Context) {
	for {
		waitStart := time.Now()
		req, err := c.in.TakeNext(ctx, c.cfg.PollInterval)
		c.stats.AddIdle(c.stage, c.index, time.Since(waitStart))

		switch {
		case errors.Is(err, queue.ErrEmpty):
			continue
		case err != nil:
			return
		}

		start := time.Now()
		if !c.service(ctx, req.ProcessingTime) {
			c.stats.RecordAbandoned(c.stage)
			return
		}
		c.stats.RecordProcessed(c.stage, c.index, time.Since(start))

		c.forward(ctx, req)
		if ctx.Err() != nil {
			return
		}
	}
}

func (c *channel) forward(ctx context.Context, req Request) {
	if c.next == nil {
		c.stats.RecordSojourn(time.Since(req.CreatedAt))
		return
	}
	if err := c.next.TryAdmit(ctx, req, c.cfg.PollInterval); err != nil {
		// The request never reached the next stage.
		c.stats.IncrementDropped(c.stage + 1)
		return
	}
	c.stats.IncrementTotal(c.stage + 1)
}

// hold simulates service by waiting d. It returns false if ctx ends first.
func hold(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return true
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return true
	case <-ctx.Done():
		return false
	}
}
