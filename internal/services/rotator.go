package services

import (
	"context"
	"sync"
	"sync/atomic"
	"time"
)

// LoadingMessages cycle on the loading page while a PRD is generated.
var LoadingMessages = []string{
	"Igniting neural networks...",
	"Parsing your product vision...",
	"Teaching the AI about your idea...",
	"Synthesizing insights from market data...",
	"Simulating user personas and journeys...",
	"Drafting initial feature hypotheses...",
	"Applying product management best practices...",
	"Polishing the final document, just for you...",
}

// DefaultRotateInterval is how long each loading message stays up.
const DefaultRotateInterval = 2500 * time.Millisecond

// Rotator advances through a fixed message list on a ticker until stopped.
type Rotator struct {
	messages []string
	index    atomic.Int64
	cancel   context.CancelFunc
	done     chan struct{}
	stopOnce sync.Once
}

// StartRotator starts cycling messages every interval.
func StartRotator(messages []string, interval time.Duration) *Rotator {
	ctx, cancel := context.WithCancel(context.Background())
	r := &Rotator{
		messages: messages,
		cancel:   cancel,
		done:     make(chan struct{}),
	}
	go r.run(ctx, interval)
	return r
}

func (r *Rotator) run(ctx context.Context, interval time.Duration) {
	defer close(r.done)
	if len(r.messages) < 2 || interval <= 0 {
		<-ctx.Done()
		return
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			next := (r.index.Load() + 1) % int64(len(r.messages))
			r.index.Store(next)
		case <-ctx.Done():
			return
		}
	}
}

// Current returns the message currently shown.
func (r *Rotator) Current() string {
	if len(r.messages) == 0 {
		return ""
	}
	return r.messages[r.index.Load()]
}

// Stop cancels the ticker and waits for the goroutine to exit. Safe to call more than once.
func (r *Rotator) Stop() {
	r.stopOnce.Do(func() {
		r.cancel()
		<-r.done
	})
}
