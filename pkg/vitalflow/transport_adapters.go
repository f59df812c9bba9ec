package vitalflow

import (
	"context"
	"errors"
	"fmt"
	"sync"
)

// ErrChannelTransportClosed is returned when a channel transport is written to after being closed.
var ErrChannelTransportClosed = errors.New("vitalflow: channel transport closed")

// MessageHandler receives every message the simulator sends.
type MessageHandler func(ctx context.Context, msg *Message) error

// NewCallbackTransport adapts a MessageHandler into a full Transport so callers
// can plug arbitrary functions without defining structs.
func NewCallbackTransport(name string, fn MessageHandler) Transport {
	if name == "" {
		name = "callback"
	}
	return &callbackTransport{name: name, fn: fn}
}

// NewChannelTransport exposes messages via a channel; it returns the transport,
// the read-only channel, and a close function that the caller should invoke
// during shutdown.
func NewChannelTransport(name string, buffer int) (Transport, <-chan *Message, func()) {
	if name == "" {
		name = "channel"
	}
	if buffer < 0 {
		buffer = 0
	}
	ch := make(chan *Message, buffer)
	t := &channelTransport{
		name:   name,
		ch:     ch,
		closed: make(chan struct{}),
	}
	return t, ch, func() { t.close() }
}

type callbackTransport struct {
	name string
	fn   MessageHandler
}

func (t *callbackTransport) Name() string                  { return t.name }
func (t *callbackTransport) Connect(context.Context) error { return nil }
func (t *callbackTransport) Close() error                  { return nil }

func (t *callbackTransport) Send(ctx context.Context, msg *Message) error {
	if t.fn == nil {
		return fmt.Errorf("callback transport %q: nil handler", t.name)
	}
	return t.fn(ctx, copyMessage(msg))
}

type channelTransport struct {
	name   string
	ch     chan *Message
	closed chan struct{}
	once   sync.Once
	mu     sync.RWMutex
}

func (t *channelTransport) Name() string                  { return t.name }
func (t *channelTransport) Connect(context.Context) error { return nil }

func (t *channelTransport) Send(ctx context.Context, msg *Message) error {
	// ch is only closed under the write lock
	t.mu.RLock()
	defer t.mu.RUnlock()

	select {
	case <-t.closed:
		return ErrChannelTransportClosed
	default:
	}

	select {
	case <-t.closed:
		return ErrChannelTransportClosed
	case <-ctx.Done():
		return ctx.Err()
	case t.ch <- copyMessage(msg):
		return nil
	}
}

// Close is a no-op so the runtime's shutdown does not close the caller's
// channel; use the function returned by NewChannelTransport instead.
func (t *channelTransport) Close() error { return nil }

func (t *channelTransport) close() {
	t.once.Do(func() {
		close(t.closed)
		t.mu.Lock()
		close(t.ch)
		t.mu.Unlock()
	})
}

func copyMessage(m *Message) *Message {
	if m == nil {
		return nil
	}
	out := *m
	out.Body = append([]byte(nil), m.Body...)
	if m.Properties != nil {
		out.Properties = make(map[string]string, len(m.Properties))
		for k, v := range m.Properties {
			out.Properties[k] = v
		}
	}
	return &out
}
