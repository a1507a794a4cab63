// Package arrival keeps the reconciliation engine's snapshot fresh by
// polling the arrival feed.
package arrival

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"busmate/internal/domain"
)

// Fetcher is the arrival-feed client surface the poller needs.
type Fetcher interface {
	FetchArrivals(ctx context.Context, riderID int64) (domain.ArrivalSnapshot, error)
}

// Sink receives each applied snapshot.
type Sink interface {
	SetSnapshot(snap domain.ArrivalSnapshot)
}

// RiderSource exposes the current rider identifier; zero means no rider
// is registered yet.
type RiderSource interface {
	RiderID() int64
}

type Poller struct {
	fetcher Fetcher
	sink    Sink
	riders  RiderSource
	logger  *slog.Logger

	interval      time.Duration
	readyInterval time.Duration
	readyAttempts int

	mu         sync.Mutex
	nextSeq    uint64
	appliedSeq uint64
	ready      bool
}

func NewPoller(fetcher Fetcher, sink Sink, riders RiderSource, interval, readyInterval time.Duration, readyAttempts int, logger *slog.Logger) *Poller {
	return &Poller{
		fetcher:       fetcher,
		sink:          sink,
		riders:        riders,
		logger:        logger.With("component", "arrival_poller"),
		interval:      interval,
		readyInterval: readyInterval,
		readyAttempts: readyAttempts,
	}
}

// IsReady reports whether a snapshot with a nearby stop has been applied.
func (p *Poller) IsReady() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.ready
}

// Run polls the feed until ctx is done. A faster initial-readiness phase
// retries every readyInterval up to readyAttempts times while waiting for
// a nearby stop to resolve, then the steady interval takes over. Fetches
// run concurrently with the tick loop; completion order is reconciled by
// sequence number so a slow early fetch never overwrites a newer applied
// snapshot.
func (p *Poller) Run(ctx context.Context) {
	p.awaitReadiness(ctx)
	if ctx.Err() != nil {
		return
	}

	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			go p.poll(ctx)
		}
	}
}

func (p *Poller) awaitReadiness(ctx context.Context) {
	for attempt := 0; attempt < p.readyAttempts; attempt++ {
		if p.poll(ctx) && p.IsReady() {
			return
		}

		select {
		case <-ctx.Done():
			return
		case <-time.After(p.readyInterval):
		}
	}
	p.logger.Warn("readiness polling exhausted without a nearby stop",
		"attempts", p.readyAttempts)
}

// poll issues one fetch and applies the result. Returns whether the
// fetch succeeded.
func (p *Poller) poll(ctx context.Context) bool {
	riderID := p.riders.RiderID()
	if riderID == 0 {
		p.logger.Debug("skipping poll: no rider registered")
		return false
	}

	seq := p.issueSeq()

	snap, err := p.fetcher.FetchArrivals(ctx, riderID)
	if err != nil {
		p.logger.Error("arrival fetch failed", "seq", seq, "error", err)
		return false
	}

	if !p.apply(seq, snap) {
		p.logger.Debug("discarded stale arrival fetch", "seq", seq)
		return true
	}

	p.logger.Debug("applied arrival snapshot",
		"seq", seq,
		"expected_buses", len(snap.ExpectedBuses),
		"has_nearby_stop", snap.HasNearbyStop,
		"registered_bus_arriving", snap.IsRegisteredBusArriving,
	)
	return true
}

func (p *Poller) issueSeq() uint64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.nextSeq++
	return p.nextSeq
}

// apply installs the snapshot unless a later-issued fetch already
// completed. Last write wins by issue order, not completion order. The
// sink call stays under the lock so the seq check and the installation
// are one atomic step; the sink takes its own lock and never calls back.
func (p *Poller) apply(seq uint64, snap domain.ArrivalSnapshot) bool {
	p.mu.Lock()
	defer p.mu.Unlock()

	if seq <= p.appliedSeq {
		return false
	}
	p.appliedSeq = seq
	if snap.HasNearbyStop {
		p.ready = true
	}

	p.sink.SetSnapshot(snap)
	return true
}
