package runner

import (
	"context"
	"math/rand"
	"time"

	"golang.org/x/time/rate"

	"queuelab/internal/queue"
	"queuelab/internal/stats"
)

// generator admits a new request into the first stage once per interval.
type generator struct {
	cfg    Config
	out    *queue.Buffer[Request]
	stats  *stats.Aggregator
	rng    *rand.Rand
	nextID uint64
	// Requests synthesized so far; read after the generator has stopped.
	generated uint64
}

func newGenerator(cfg Config, out *queue.Buffer[Request], agg *stats.Aggregator, seed int64) *generator {
	return &generator{
		cfg:   cfg,
		out:   out,
		stats: agg,
		rng:   rand.New(rand.NewSource(seed)),
	}
}

func (g *generator) run(ctx context.Context) {
	limiter := rate.NewLimiter(rate.Every(g.cfg.GenerationInterval), 1)
	// Spend the initial token so the first arrival lands one interval in.
	limiter.Allow()

	for {
		// Reserve rather than Wait: Wait gives up early when the next token
		// lands past a ctx deadline.
		res := limiter.Reserve()
		if !hold(ctx, res.Delay()) {
			res.Cancel()
			return
		}
		g.tick(ctx)
		if ctx.Err() != nil {
			return
		}
	}
}

func (g *generator) tick(ctx context.Context) {
	req := Request{
		ID:             g.nextID,
		CreatedAt:      time.Now(),
		ProcessingTime: g.processingTime(),
	}
	g.nextID++
	g.generated++

	if err := g.out.TryAdmit(ctx, req, g.cfg.PollInterval); err != nil {
		// Still full at the deadline, or shutdown cut the wait short.
		g.stats.IncrementDropped(0)
		return
	}
	g.stats.IncrementTotal(0)
}

// processingTime draws uniformly from [MinProcessing, MaxProcessing].
func (g *generator) processingTime() time.Duration {
	span := g.cfg.MaxProcessing - g.cfg.MinProcessing
	if span <= 0 {
		return g.cfg.MinProcessing
	}
	return g.cfg.MinProcessing + time.Duration(g.rng.Int63n(int64(span)+1))
}
