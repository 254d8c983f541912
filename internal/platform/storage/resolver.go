// Package storage decides, per call, which backing store is healthy and lets
// the failover repositories route reads and writes accordingly. Health comes
// from a periodic connectivity probe, not from per-call retries alone; a
// mid-call primary failure can additionally demote the primary immediately.
package storage

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"
)

// ErrUnavailable is returned when every storage tier is exhausted. Callers
// must degrade to the static configuration path explicitly; the resolver
// never fabricates data.
var ErrUnavailable = errors.New("no storage tier available")

// Tier identifies which backing store should serve a logical operation
type Tier int

const (
	TierNone Tier = iota
	TierPrimary
	TierSecondary
)

func (t Tier) String() string {
	switch t {
	case TierPrimary:
		return "primary"
	case TierSecondary:
		return "secondary"
	default:
		return "none"
	}
}

// Pinger is the connectivity probe contract each store exposes
type Pinger interface {
	Ping(ctx context.Context) error
}

// Resolver tracks tier health and answers Tier() for every storage call
type Resolver struct {
	logger    *slog.Logger
	primary   Pinger
	secondary Pinger
	interval  time.Duration
	timeout   time.Duration

	mu               sync.RWMutex
	primaryHealthy   bool
	secondaryHealthy bool
	lastProbe        time.Time

	stopOnce sync.Once
	stopCh   chan struct{}
	doneCh   chan struct{}
}

// NewResolver builds a resolver that initially trusts both tiers; the first
// probe runs immediately on Start.
func NewResolver(logger *slog.Logger, primary, secondary Pinger, interval, timeout time.Duration) *Resolver {
	return &Resolver{
		logger:           logger,
		primary:          primary,
		secondary:        secondary,
		interval:         interval,
		timeout:          timeout,
		primaryHealthy:   true,
		secondaryHealthy: true,
		stopCh:           make(chan struct{}),
		doneCh:           make(chan struct{}),
	}
}

// Start launches the background probe loop
func (r *Resolver) Start(ctx context.Context) {
	go func() {
		defer close(r.doneCh)

		r.probe(ctx)

		ticker := time.NewTicker(r.interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-r.stopCh:
				return
			case <-ticker.C:
				r.probe(ctx)
			}
		}
	}()
}

// Stop terminates the probe loop and waits for it to exit
func (r *Resolver) Stop() {
	r.stopOnce.Do(func() { close(r.stopCh) })
	<-r.doneCh
}

// Tier returns the store that should serve the next logical operation
func (r *Resolver) Tier() Tier {
	r.mu.RLock()
	defer r.mu.RUnlock()

	switch {
	case r.primaryHealthy:
		return TierPrimary
	case r.secondaryHealthy:
		return TierSecondary
	default:
		return TierNone
	}
}

// ReportPrimaryFailure demotes the primary immediately after a mid-call
// error, without waiting for the next probe cycle.
func (r *Resolver) ReportPrimaryFailure(err error) {
	r.mu.Lock()
	wasHealthy := r.primaryHealthy
	r.primaryHealthy = false
	r.mu.Unlock()

	if wasHealthy {
		r.logger.Warn("primary store demoted after mid-call failure", "error", err)
	}
}

// Healthy reports per-tier status for the health endpoint
func (r *Resolver) Healthy() (primary, secondary bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.primaryHealthy, r.secondaryHealthy
}

func (r *Resolver) probe(ctx context.Context) {
	probeCtx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	primaryErr := r.primary.Ping(probeCtx)
	secondaryErr := r.secondary.Ping(probeCtx)

	r.mu.Lock()
	prevPrimary, prevSecondary := r.primaryHealthy, r.secondaryHealthy
	r.primaryHealthy = primaryErr == nil
	r.secondaryHealthy = secondaryErr == nil
	r.lastProbe = time.Now()
	r.mu.Unlock()

	if prevPrimary != (primaryErr == nil) {
		r.logger.Warn("primary store health changed", "healthy", primaryErr == nil, "error", primaryErr)
	}
	if prevSecondary != (secondaryErr == nil) {
		r.logger.Warn("secondary store health changed", "healthy", secondaryErr == nil, "error", secondaryErr)
	}
	if primaryErr != nil && secondaryErr != nil {
		r.logger.Error("all storage tiers unreachable, static configuration is the only fallback")
	}
}
