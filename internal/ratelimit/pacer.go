package ratelimit

import (
	"context"
	"sync"
	"time"
)

// Pacer bounds calls against one external endpoint: at most `concurrency`
// in-flight calls, with at least `minInterval` between consecutive starts.
// Each external concern gets its own Pacer, since budgets differ per endpoint.
type Pacer struct {
	sem         chan struct{}
	minInterval time.Duration

	mu        sync.Mutex
	lastStart time.Time
}

func NewPacer(concurrency int, minInterval time.Duration) *Pacer {
	if concurrency <= 0 {
		concurrency = 1
	}
	return &Pacer{
		sem:         make(chan struct{}, concurrency),
		minInterval: minInterval,
	}
}

// Do runs fn once a slot is free and the interval since the previous start
// has elapsed. Waiting is interrupted by ctx.
func (p *Pacer) Do(ctx context.Context, fn func(ctx context.Context) error) error {
	select {
	case p.sem <- struct{}{}:
	case <-ctx.Done():
		return ctx.Err()
	}
	defer func() { <-p.sem }()

	if err := p.waitInterval(ctx); err != nil {
		return err
	}
	return fn(ctx)
}

func (p *Pacer) waitInterval(ctx context.Context) error {
	if p.minInterval <= 0 {
		return nil
	}

	for {
		p.mu.Lock()
		now := time.Now()
		wait := p.minInterval - now.Sub(p.lastStart)
		if wait <= 0 {
			p.lastStart = now
			p.mu.Unlock()
			return nil
		}
		p.mu.Unlock()

		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
	}
}
