// Package location owns the live position channel to the location
// service and the rider tracking session built on top of it.
package location

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/coder/websocket"

	"busmate/internal/domain"
)

// ErrNotConnected is returned by Send when the channel has no live
// connection; the sample is dropped, never queued.
var ErrNotConnected = errors.New("location channel is not connected")

// Update is the outbound position message.
type Update struct {
	UserID    int64   `json:"userId"`
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

// ChannelResponse is the inbound status message from the location
// service.
type ChannelResponse struct {
	IsSuccess bool   `json:"isSuccess"`
	Code      int    `json:"code"`
	Message   string `json:"message"`
}

// Channel is a persistent duplex WebSocket connection with a fixed-delay
// reconnect policy. Non-clean closures trigger reconnection up to
// maxReconnects attempts; the counter resets on every successful
// connection. Exceeding the cap leaves the channel disconnected until
// Connect is called again.
type Channel struct {
	url            string
	reconnectDelay time.Duration
	maxReconnects  int
	logger         *slog.Logger

	onMessage    func(resp ChannelResponse)
	onConnect    func()
	onDisconnect func()

	mu             sync.Mutex
	conn           *websocket.Conn
	state          domain.ConnectionState
	attempts       int
	reconnectTimer *time.Timer
	closed         bool
}

func NewChannel(url string, reconnectDelay time.Duration, maxReconnects int, logger *slog.Logger) *Channel {
	return &Channel{
		url:            url,
		reconnectDelay: reconnectDelay,
		maxReconnects:  maxReconnects,
		logger:         logger.With("component", "location_channel"),
	}
}

func (c *Channel) SetOnMessage(fn func(resp ChannelResponse)) { c.onMessage = fn }
func (c *Channel) SetOnConnect(fn func())                     { c.onConnect = fn }
func (c *Channel) SetOnDisconnect(fn func())                  { c.onDisconnect = fn }

// State returns the current connection state.
func (c *Channel) State() domain.ConnectionState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// ReconnectAttempts returns the number of reconnects since the last
// successful connection.
func (c *Channel) ReconnectAttempts() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.attempts
}

// Connect dials the location service. A no-op when already connected or
// mid-connect. Calling Connect manually also re-arms a channel that gave
// up after exhausting its reconnect attempts.
func (c *Channel) Connect(ctx context.Context) error {
	c.mu.Lock()
	if c.state != domain.StateDisconnected {
		c.mu.Unlock()
		return nil
	}
	c.state = domain.StateConnecting
	c.closed = false
	c.mu.Unlock()

	dialCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	conn, _, err := websocket.Dial(dialCtx, c.url, nil)
	cancel()
	if err != nil {
		c.logger.Error("dial failed", "url", c.url, "error", err)
		c.handleClosed(false)
		return fmt.Errorf("dialing location service: %w", err)
	}

	c.mu.Lock()
	c.conn = conn
	c.state = domain.StateConnected
	c.attempts = 0
	c.mu.Unlock()

	c.logger.Info("location channel connected", "url", c.url)
	if c.onConnect != nil {
		c.onConnect()
	}

	go c.readLoop(ctx, conn)
	return nil
}

// Send pushes one position update. At-most-once: if the channel is not
// connected the update is dropped and ErrNotConnected returned.
func (c *Channel) Send(ctx context.Context, update Update) error {
	c.mu.Lock()
	conn := c.conn
	connected := c.state == domain.StateConnected
	c.mu.Unlock()

	if !connected || conn == nil {
		return ErrNotConnected
	}

	data, err := json.Marshal(update)
	if err != nil {
		return fmt.Errorf("encoding update: %w", err)
	}

	writeCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := conn.Write(writeCtx, websocket.MessageText, data); err != nil {
		return fmt.Errorf("writing update: %w", err)
	}
	return nil
}

// Close performs a clean shutdown; no reconnection is attempted.
func (c *Channel) Close() error {
	c.mu.Lock()
	c.closed = true
	if c.reconnectTimer != nil {
		c.reconnectTimer.Stop()
		c.reconnectTimer = nil
	}
	conn := c.conn
	c.conn = nil
	c.state = domain.StateDisconnected
	c.mu.Unlock()

	if conn != nil {
		return conn.Close(websocket.StatusNormalClosure, "")
	}
	return nil
}

func (c *Channel) readLoop(ctx context.Context, conn *websocket.Conn) {
	for {
		msgType, data, err := conn.Read(ctx)
		if err != nil {
			clean := websocket.CloseStatus(err) == websocket.StatusNormalClosure
			c.mu.Lock()
			closed := c.closed
			if c.conn == conn {
				c.conn = nil
				c.state = domain.StateDisconnected
			}
			c.mu.Unlock()

			if !closed {
				c.logger.Warn("location channel closed", "clean", clean, "error", err)
				c.handleClosed(clean)
			}
			return
		}

		if msgType != websocket.MessageText {
			continue
		}

		var resp ChannelResponse
		if err := json.Unmarshal(data, &resp); err != nil {
			c.logger.Debug("invalid channel message", "error", err)
			continue
		}
		if c.onMessage != nil {
			c.onMessage(resp)
		}
	}
}

// handleClosed runs the reconnect policy after a connection loss.
func (c *Channel) handleClosed(clean bool) {
	if c.onDisconnect != nil {
		c.onDisconnect()
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	c.state = domain.StateDisconnected
	if clean || c.closed {
		return
	}

	if c.attempts >= c.maxReconnects {
		c.logger.Warn("reconnect attempts exhausted; manual reconnect required",
			"attempts", c.attempts)
		return
	}

	c.attempts++
	attempt := c.attempts
	c.logger.Info("scheduling reconnect",
		"delay", c.reconnectDelay, "attempt", attempt, "max", c.maxReconnects)

	c.reconnectTimer = time.AfterFunc(c.reconnectDelay, func() {
		if err := c.Connect(context.Background()); err != nil {
			c.logger.Debug("reconnect attempt failed", "attempt", attempt, "error", err)
		}
	})
}
