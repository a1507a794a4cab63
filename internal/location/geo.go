package location

import (
	"context"
	"errors"
	"sync"

	"busmate/internal/domain"
)

var (
	// ErrPermissionDenied means the rider revoked geolocation access;
	// fatal to the tracking session until tracking is restarted.
	ErrPermissionDenied = errors.New("geolocation permission denied")

	// ErrNoPosition means no position has been reported yet.
	ErrNoPosition = errors.New("no position available")
)

// Geolocator supplies the rider's current position.
type Geolocator interface {
	Current(ctx context.Context) (domain.Position, error)
}

// ReportedGeolocator is a Geolocator fed by device reports over the HTTP
// surface. The device pushes positions (or a permission denial) and the
// tracker samples the latest one.
type ReportedGeolocator struct {
	mu       sync.RWMutex
	position *domain.Position
	denied   bool
}

func NewReportedGeolocator() *ReportedGeolocator {
	return &ReportedGeolocator{}
}

// Report stores the latest device-reported position and clears any
// earlier denial.
func (g *ReportedGeolocator) Report(pos domain.Position) {
	g.mu.Lock()
	g.position = &pos
	g.denied = false
	g.mu.Unlock()
}

// ReportDenied marks geolocation as denied by the rider.
func (g *ReportedGeolocator) ReportDenied() {
	g.mu.Lock()
	g.denied = true
	g.position = nil
	g.mu.Unlock()
}

func (g *ReportedGeolocator) Current(ctx context.Context) (domain.Position, error) {
	g.mu.RLock()
	defer g.mu.RUnlock()
	if g.denied {
		return domain.Position{}, ErrPermissionDenied
	}
	if g.position == nil {
		return domain.Position{}, ErrNoPosition
	}
	return *g.position, nil
}
