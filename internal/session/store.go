// Package session owns the rider's registration state: the registered
// bus number and the rider identifier issued for it.
package session

import (
	"context"
	"log/slog"
	"strings"
	"sync"
	"time"

	"busmate/internal/cache"
)

// Persister is the cache surface used to keep the registration across
// restarts. Nil-able; the store works memory-only without one.
type Persister interface {
	SetJSON(ctx context.Context, key string, value interface{}, ttl time.Duration) error
	GetJSON(ctx context.Context, key string, dest interface{}) (bool, error)
	Delete(ctx context.Context, key string) error
}

type persistedSession struct {
	RiderID       int64  `json:"riderId"`
	RegisteredBus string `json:"registeredBus"`
}

// Store is the single owner of the rider session. The reconciliation
// engine and pollers only ever read from it.
type Store struct {
	mu            sync.RWMutex
	riderID       int64
	registeredBus string

	persister Persister
	logger    *slog.Logger
}

func NewStore(persister Persister, logger *slog.Logger) *Store {
	return &Store{
		persister: persister,
		logger:    logger.With("component", "session_store"),
	}
}

// Load restores a previously persisted registration, if any.
func (s *Store) Load(ctx context.Context) error {
	if s.persister == nil {
		return nil
	}

	var saved persistedSession
	found, err := s.persister.GetJSON(ctx, cache.KeySession, &saved)
	if err != nil {
		return err
	}
	if !found {
		return nil
	}

	s.mu.Lock()
	s.riderID = saved.RiderID
	s.registeredBus = saved.RegisteredBus
	s.mu.Unlock()

	s.logger.Info("restored rider session", "rider_id", saved.RiderID, "bus", saved.RegisteredBus)
	return nil
}

// SetRegistration stores the registration issued for the rider's chosen
// bus and persists it when a persister is configured.
func (s *Store) SetRegistration(ctx context.Context, riderID int64, busNumber string) {
	busNumber = strings.TrimSpace(busNumber)

	s.mu.Lock()
	s.riderID = riderID
	s.registeredBus = busNumber
	s.mu.Unlock()

	if s.persister != nil {
		saved := persistedSession{RiderID: riderID, RegisteredBus: busNumber}
		if err := s.persister.SetJSON(ctx, cache.KeySession, saved, 0); err != nil {
			s.logger.Error("failed to persist session", "error", err)
		}
	}
}

// Clear wipes the registration; an explicit rider-initiated reset.
func (s *Store) Clear(ctx context.Context) {
	s.mu.Lock()
	s.riderID = 0
	s.registeredBus = ""
	s.mu.Unlock()

	if s.persister != nil {
		if err := s.persister.Delete(ctx, cache.KeySession); err != nil {
			s.logger.Error("failed to delete persisted session", "error", err)
		}
	}
}

// RiderID returns the issued rider identifier, zero when unregistered.
func (s *Store) RiderID() int64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.riderID
}

// RegisteredBus returns the rider's registered bus number, empty when
// unregistered.
func (s *Store) RegisteredBus() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.registeredBus
}
