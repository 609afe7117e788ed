// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package channel

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// =============================================================================
// CONSTANTS & ERRORS
// =============================================================================

const (
	// maxFrameSize caps inbound frames.
	maxFrameSize = 1 << 20 // 1 MB

	// writeWait bounds each outbound write.
	writeWait = 10 * time.Second

	// sendRate throttles outbound sends; bursts allow quick replies
	// to the analysis offer without tripping the limiter.
	sendRate  = rate.Limit(5) // per second
	sendBurst = 10

	// eventBuffer absorbs short consumer stalls without dropping the
	// read loop.
	eventBuffer = 32
)

var (
	// ErrNotConnected is returned by Send when no open connection
	// exists. Callers surface this as a conversational error turn.
	ErrNotConnected = errors.New("channel: not connected")
)

// =============================================================================
// EVENTS
// =============================================================================

// EventKind discriminates channel events.
type EventKind int

const (
	// EventOpened reports a successful connect.
	EventOpened EventKind = iota
	// EventMessage carries an inbound text frame.
	EventMessage
	// EventClosed reports the connection ending. Clean distinguishes
	// an orderly shutdown from a failure.
	EventClosed
)

// Event is one occurrence on the duplex channel. Gen identifies the
// connection the event belongs to; consumers use it to discard stale
// events from superseded connections.
type Event struct {
	Kind   EventKind
	Gen    uint64
	Text   string // EventMessage payload
	Reason string // EventClosed detail
	Clean  bool   // EventClosed: orderly shutdown
}

// =============================================================================
// CHANNEL
// =============================================================================

// Channel manages the duplex WebSocket connection to the backend. At
// most one connection is live at a time; Connect supersedes any prior
// connection and bumps the generation counter so stragglers from the
// old read loop are identifiable.
type Channel struct {
	wsURL       string
	dialTimeout time.Duration
	log         *zap.Logger

	limiter *rate.Limiter
	events  chan Event

	mu             sync.Mutex
	conn           *websocket.Conn
	gen            uint64
	open           bool
	closeRequested bool
}

// New creates a channel for the given ws:// or wss:// URL.
func New(wsURL string, dialTimeout time.Duration, log *zap.Logger) *Channel {
	if log == nil {
		log = zap.NewNop()
	}
	return &Channel{
		wsURL:       wsURL,
		dialTimeout: dialTimeout,
		log:         log,
		limiter:     rate.NewLimiter(sendRate, sendBurst),
		events:      make(chan Event, eventBuffer),
	}
}

// Events returns the channel's event stream. Events from superseded
// connections may still be queued; consumers compare Gen against the
// value carried by the most recent EventOpened.
func (c *Channel) Events() <-chan Event {
	return c.events
}

// Connected reports whether an open connection exists right now.
func (c *Channel) Connected() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.open
}

// =============================================================================
// CONNECT / CLOSE
// =============================================================================

// Connect establishes a connection for the given identity, closing any
// prior connection first. On success it emits EventOpened and starts
// the read loop; the returned generation tags all events from this
// connection.
func (c *Channel) Connect(ctx context.Context, identity string) (uint64, error) {
	u, err := url.Parse(c.wsURL)
	if err != nil {
		return 0, fmt.Errorf("parse channel url: %w", err)
	}
	q := u.Query()
	q.Set("username", identity)
	u.RawQuery = q.Encode()

	c.mu.Lock()
	if c.conn != nil {
		c.conn.Close()
		c.conn = nil
		c.open = false
	}
	c.gen++
	c.closeRequested = false
	gen := c.gen
	c.mu.Unlock()

	dialer := websocket.Dialer{HandshakeTimeout: c.dialTimeout}
	conn, _, err := dialer.DialContext(ctx, u.String(), nil)
	if err != nil {
		c.log.Warn("channel dial failed",
			zap.String("url", c.wsURL),
			zap.Error(err))
		return gen, fmt.Errorf("dial channel: %w", err)
	}
	conn.SetReadLimit(maxFrameSize)

	c.mu.Lock()
	// A concurrent Connect may have superseded us while dialing.
	if c.gen != gen {
		c.mu.Unlock()
		conn.Close()
		return gen, fmt.Errorf("dial channel: superseded by newer connection")
	}
	c.conn = conn
	c.open = true
	c.mu.Unlock()

	c.log.Info("channel opened", zap.Uint64("gen", gen))
	c.emit(Event{Kind: EventOpened, Gen: gen})

	go c.readLoop(conn, gen)
	return gen, nil
}

// Close shuts the connection down cleanly, if one is open.
func (c *Channel) Close() error {
	c.mu.Lock()
	conn := c.conn
	c.conn = nil
	c.open = false
	if conn != nil {
		c.closeRequested = true
	}
	c.mu.Unlock()

	if conn == nil {
		return nil
	}
	deadline := time.Now().Add(writeWait)
	_ = conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), deadline)
	return conn.Close()
}

// =============================================================================
// SEND
// =============================================================================

// Send writes a text frame to the open connection. It fails with
// ErrNotConnected when no connection is live, and respects both the
// context and the outbound rate limiter.
func (c *Channel) Send(ctx context.Context, text string) error {
	c.mu.Lock()
	conn := c.conn
	open := c.open
	c.mu.Unlock()

	if !open || conn == nil {
		return ErrNotConnected
	}

	if err := c.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("send throttle: %w", err)
	}

	conn.SetWriteDeadline(time.Now().Add(writeWait))
	if err := conn.WriteMessage(websocket.TextMessage, []byte(text)); err != nil {
		return fmt.Errorf("send frame: %w", err)
	}
	return nil
}

// =============================================================================
// READ LOOP
// =============================================================================

// readLoop pumps inbound frames into the event stream until the
// connection dies. Each connection gets its own loop; the generation
// tag lets consumers ignore a dead loop's final events after a
// reconnect.
func (c *Channel) readLoop(conn *websocket.Conn, gen uint64) {
	for {
		msgType, payload, err := conn.ReadMessage()
		if err != nil {
			clean := websocket.IsCloseError(err,
				websocket.CloseNormalClosure, websocket.CloseGoingAway)

			c.mu.Lock()
			// A close we asked for is orderly even though the read
			// errors out with a connection error.
			if c.closeRequested && c.gen == gen {
				clean = true
			}
			if c.gen == gen {
				c.conn = nil
				c.open = false
			}
			c.mu.Unlock()

			c.log.Info("channel closed",
				zap.Uint64("gen", gen),
				zap.Bool("clean", clean),
				zap.Error(err))
			c.emit(Event{Kind: EventClosed, Gen: gen, Reason: err.Error(), Clean: clean})
			return
		}
		if msgType != websocket.TextMessage {
			continue
		}
		c.emit(Event{Kind: EventMessage, Gen: gen, Text: string(payload)})
	}
}

// emit delivers an event without ever blocking the read loop forever:
// if the buffer is full the oldest queued event is dropped.
func (c *Channel) emit(ev Event) {
	for {
		select {
		case c.events <- ev:
			return
		default:
			select {
			case old := <-c.events:
				c.log.Warn("event buffer full, dropping oldest",
					zap.Int("kind", int(old.Kind)))
			default:
			}
		}
	}
}
