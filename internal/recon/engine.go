// Package recon reconciles detected bus numbers against the rider's
// registered bus and the live arrival feed.
package recon

import (
	"log/slog"
	"strings"
	"sync"
	"time"

	"busmate/internal/domain"
)

// Notifier receives a decision whenever a full match passes the
// notification throttle.
type Notifier interface {
	Notify(decision domain.MatchDecision)
}

// Engine holds the rolling reconciliation state: the registered bus, the
// latest arrival snapshot, and the notification throttle. The snapshot
// and registered bus each have a single logical writer; reads take the
// shared lock.
type Engine struct {
	mu            sync.RWMutex
	registeredBus string
	snapshot      *domain.ArrivalSnapshot
	lastDetected  string
	lastNotified  time.Time

	debounce time.Duration
	notifier Notifier
	now      func() time.Time
	logger   *slog.Logger
}

func NewEngine(debounce time.Duration, notifier Notifier, logger *slog.Logger) *Engine {
	return &Engine{
		debounce: debounce,
		notifier: notifier,
		now:      time.Now,
		logger:   logger.With("component", "recon_engine"),
	}
}

// SetRegisteredBus replaces the rider's registered bus number. An empty
// string clears it.
func (e *Engine) SetRegisteredBus(busNumber string) {
	e.mu.Lock()
	e.registeredBus = strings.TrimSpace(busNumber)
	e.mu.Unlock()
}

func (e *Engine) RegisteredBus() string {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.registeredBus
}

// SetSnapshot replaces the arrival snapshot wholesale. Snapshots are
// never merged.
func (e *Engine) SetSnapshot(snap domain.ArrivalSnapshot) {
	e.mu.Lock()
	e.snapshot = &snap
	e.mu.Unlock()
}

// Snapshot returns a copy of the latest snapshot, if any.
func (e *Engine) Snapshot() (domain.ArrivalSnapshot, bool) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	if e.snapshot == nil {
		return domain.ArrivalSnapshot{}, false
	}
	return *e.snapshot, true
}

// LastDetected returns the most recent bus number passed to Evaluate.
func (e *Engine) LastDetected() string {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.lastDetected
}

// Evaluate runs the three-way match: the detected number, the registered
// bus, and the arrival feed must agree, the feed must flag the registered
// bus as arriving, and a nearby stop must exist. Short-circuits on the
// first failing rule. A full match triggers the notifier unless one fired
// within the debounce window.
func (e *Engine) Evaluate(detectedNumber string) domain.MatchDecision {
	detected := strings.TrimSpace(detectedNumber)

	e.mu.Lock()
	defer e.mu.Unlock()

	e.lastDetected = detected

	decision := domain.MatchDecision{
		DetectedNumber: detected,
		RegisteredBus:  e.registeredBus,
		EvaluatedAt:    e.now(),
	}

	if e.registeredBus == "" {
		e.logger.Debug("no match: no registered bus", "detected", detected)
		return decision
	}
	if e.snapshot == nil || !e.snapshot.HasNearbyStop {
		e.logger.Debug("no match: no nearby stop", "detected", detected)
		return decision
	}
	if !e.snapshot.IsRegisteredBusArriving {
		e.logger.Debug("no match: registered bus not flagged arriving", "detected", detected)
		return decision
	}
	if len(e.snapshot.ExpectedBuses) == 0 {
		e.logger.Debug("no match: expected-bus list is empty", "detected", detected)
		return decision
	}
	if detected != e.registeredBus {
		e.logger.Debug("no match: detected number differs from registered bus",
			"detected", detected, "registered", e.registeredBus)
		return decision
	}
	if !e.inExpected(detected) {
		e.logger.Debug("no match: detected number not in expected-bus list", "detected", detected)
		return decision
	}

	decision.IsMatch = true
	e.logger.Info("bus matched", "bus", detected)

	// Minimum-interval throttle, not a one-shot latch: a new match after
	// the window must notify again.
	if e.lastNotified.IsZero() || decision.EvaluatedAt.Sub(e.lastNotified) >= e.debounce {
		e.lastNotified = decision.EvaluatedAt
		if e.notifier != nil {
			e.notifier.Notify(decision)
		}
	} else {
		e.logger.Debug("notification suppressed by debounce window", "bus", detected)
	}

	return decision
}

func (e *Engine) inExpected(detected string) bool {
	for _, bus := range e.snapshot.ExpectedBuses {
		if strings.TrimSpace(bus.BusNumber) == detected {
			return true
		}
	}
	return false
}
