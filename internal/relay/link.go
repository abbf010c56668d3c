package relay

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"github.com/coder/websocket"
)

// Conn is the part of *websocket.Conn a Link writes to.
type Conn interface {
	Write(ctx context.Context, typ websocket.MessageType, p []byte) error
	Close(code websocket.StatusCode, reason string) error
}

var errLinkClosed = errors.New("frame disconnected")

// Link is one connected chat frame.
type Link struct {
	conn Conn

	mu       sync.Mutex
	ready    bool
	origin   string
	controls Controls
	pending  map[string]chan Ack
	closed   bool
	onReady  func()
}

// NewLink wraps conn. The connection origin is used until the frame
// announces its own.
func NewLink(conn Conn, origin string) *Link {
	return &Link{conn: conn, origin: origin, pending: make(map[string]chan Ack)}
}

// Ready reports whether the frame has announced itself.
func (l *Link) Ready() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.ready && !l.closed
}

// Origin returns the announced document origin.
func (l *Link) Origin() string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.origin
}

// Controls returns the announced controls.
func (l *Link) Controls() Controls {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.controls
}

// handle applies one message from the frame and returns its type.
func (l *Link) handle(data []byte) (string, error) {
	var msg inbound
	if err := json.Unmarshal(data, &msg); err != nil {
		return "", fmt.Errorf("parse frame message: %w", err)
	}

	switch msg.Type {
	case TypeReady:
		l.mu.Lock()
		l.ready = true
		if msg.Origin != "" {
			l.origin = msg.Origin
		}
		l.controls = msg.Controls
		notify := l.onReady
		l.mu.Unlock()
		if notify != nil {
			notify()
		}
	case TypeAck:
		ack := Ack{ID: msg.ID, OK: msg.OK == nil || *msg.OK, Error: msg.Error}
		l.mu.Lock()
		ch, ok := l.pending[msg.ID]
		delete(l.pending, msg.ID)
		l.mu.Unlock()
		if ok {
			ch <- ack
		}
	default:
		return msg.Type, fmt.Errorf("unknown frame message type %q", msg.Type)
	}
	return msg.Type, nil
}

// Send writes cmd and waits for its ack until ctx is done.
func (l *Link) Send(ctx context.Context, cmd Command) (Ack, error) {
	data, err := json.Marshal(cmd)
	if err != nil {
		return Ack{}, fmt.Errorf("encode command: %w", err)
	}

	ch := make(chan Ack, 1)
	l.mu.Lock()
	if l.closed {
		l.mu.Unlock()
		return Ack{}, errLinkClosed
	}
	l.pending[cmd.ID] = ch
	l.mu.Unlock()

	defer func() {
		l.mu.Lock()
		delete(l.pending, cmd.ID)
		l.mu.Unlock()
	}()

	if err := l.conn.Write(ctx, websocket.MessageText, data); err != nil {
		return Ack{}, fmt.Errorf("write command: %w", err)
	}

	select {
	case ack, ok := <-ch:
		if !ok {
			return Ack{}, errLinkClosed
		}
		return ack, nil
	case <-ctx.Done():
		return Ack{}, ctx.Err()
	}
}

// Close fails pending commands and closes the connection.
func (l *Link) Close(reason string) {
	l.mu.Lock()
	if l.closed {
		l.mu.Unlock()
		return
	}
	l.closed = true
	for id, ch := range l.pending {
		close(ch)
		delete(l.pending, id)
	}
	l.mu.Unlock()
	_ = l.conn.Close(websocket.StatusNormalClosure, reason)
}
