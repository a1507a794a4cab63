package location

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"busmate/internal/domain"
)

// Response codes from the location service.
const (
	codeNoNearbyStops = 20001
	codeInvalidRider  = 400
)

// LocationChannel is the duplex channel surface the tracker needs.
type LocationChannel interface {
	Connect(ctx context.Context) error
	Send(ctx context.Context, update Update) error
	State() domain.ConnectionState
	ReconnectAttempts() int
	Close() error
}

// RiderSource exposes the current rider identifier; zero means none.
type RiderSource interface {
	RiderID() int64
}

// Tracker is the rider's location tracking session: it samples the
// geolocator on a fixed interval and relays positions over the live
// channel.
type Tracker struct {
	channel LocationChannel
	geo     Geolocator
	riders  RiderSource
	logger  *slog.Logger

	interval time.Duration

	onNoNearbyBusStops    func(message string)
	onNearbyBusStopsFound func()

	mu           sync.Mutex
	cancel       context.CancelFunc
	tracking     bool
	stopsExist   bool
	lastPosition *domain.Position
}

func NewTracker(channel LocationChannel, geo Geolocator, riders RiderSource, interval time.Duration, logger *slog.Logger) *Tracker {
	return &Tracker{
		channel:    channel,
		geo:        geo,
		riders:     riders,
		interval:   interval,
		stopsExist: true,
		logger:     logger.With("component", "location_tracker"),
	}
}

func (t *Tracker) SetNoNearbyBusStopsCallback(fn func(message string)) {
	t.onNoNearbyBusStops = fn
}

func (t *Tracker) SetNearbyBusStopsFoundCallback(fn func()) {
	t.onNearbyBusStopsFound = fn
}

// HasNearbyBusStops reports the last stop-existence status received from
// the location service.
func (t *Tracker) HasNearbyBusStops() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.stopsExist
}

func (t *Tracker) IsTracking() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.tracking
}

// LastPosition returns the most recently sampled position, if any.
func (t *Tracker) LastPosition() (domain.Position, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.lastPosition == nil {
		return domain.Position{}, false
	}
	return *t.lastPosition, true
}

// ConnectionState reports the underlying channel state.
func (t *Tracker) ConnectionState() domain.ConnectionState {
	return t.channel.State()
}

// StartTracking begins position sampling. A no-op returning true when
// already tracking. Fails fast without a rider identifier or a
// geolocation capability.
func (t *Tracker) StartTracking(ctx context.Context) bool {
	t.mu.Lock()
	if t.tracking {
		t.mu.Unlock()
		return true
	}
	if t.riders.RiderID() == 0 {
		t.mu.Unlock()
		t.logger.Error("cannot start tracking: no rider registered")
		return false
	}
	if t.geo == nil {
		t.mu.Unlock()
		t.logger.Error("cannot start tracking: no geolocation capability")
		return false
	}

	runCtx, cancel := context.WithCancel(ctx)
	t.cancel = cancel
	t.tracking = true
	t.mu.Unlock()

	if err := t.channel.Connect(runCtx); err != nil {
		// The channel retries on its own; tracking proceeds and samples
		// are dropped until it comes back.
		t.logger.Warn("initial channel connect failed", "error", err)
	}

	t.sample(runCtx)
	go t.run(runCtx)

	t.logger.Info("location tracking started", "interval", t.interval)
	return true
}

// StopTracking ends the session and closes the channel.
func (t *Tracker) StopTracking() {
	t.mu.Lock()
	if !t.tracking {
		t.mu.Unlock()
		return
	}
	t.tracking = false
	cancel := t.cancel
	t.cancel = nil
	t.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	if err := t.channel.Close(); err != nil {
		t.logger.Debug("channel close", "error", err)
	}
	t.logger.Info("location tracking stopped")
}

func (t *Tracker) run(ctx context.Context) {
	ticker := time.NewTicker(t.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			t.sample(ctx)
		}
	}
}

// sample takes one position fix and pushes it over the channel. When the
// channel is down a connection attempt is triggered and this cycle's
// sample is dropped.
func (t *Tracker) sample(ctx context.Context) {
	pos, err := t.geo.Current(ctx)
	if err != nil {
		if errors.Is(err, ErrPermissionDenied) {
			t.logger.Error("geolocation permission denied; stopping tracking")
			t.StopTracking()
			return
		}
		t.logger.Debug("position unavailable", "error", err)
		return
	}

	t.mu.Lock()
	t.lastPosition = &pos
	t.mu.Unlock()

	update := Update{
		UserID:    t.riders.RiderID(),
		Latitude:  pos.Latitude,
		Longitude: pos.Longitude,
	}

	if err := t.channel.Send(ctx, update); err != nil {
		if errors.Is(err, ErrNotConnected) {
			t.logger.Debug("channel not connected; sample dropped")
			if err := t.channel.Connect(ctx); err != nil {
				t.logger.Debug("reconnect failed", "error", err)
			}
			return
		}
		t.logger.Error("failed to send position", "error", err)
	}
}

// HandleMessage applies one location-service status message. Wired as
// the channel's message callback.
func (t *Tracker) HandleMessage(resp ChannelResponse) {
	if !resp.IsSuccess {
		if resp.Code == codeInvalidRider {
			t.logger.Warn("rider identifier rejected; stopping tracking", "message", resp.Message)
			t.StopTracking()
		}
		return
	}

	if resp.Code == codeNoNearbyStops {
		t.mu.Lock()
		t.stopsExist = false
		t.mu.Unlock()
		t.logger.Info("no nearby bus stops", "message", resp.Message)
		if t.onNoNearbyBusStops != nil {
			t.onNoNearbyBusStops(resp.Message)
		}
		return
	}

	t.mu.Lock()
	t.stopsExist = true
	t.mu.Unlock()
	if t.onNearbyBusStopsFound != nil {
		t.onNearbyBusStopsFound()
	}
}
