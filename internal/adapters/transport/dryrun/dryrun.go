package dryrun

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/ghalamif/VitalFlow/internal/domain"
	"github.com/ghalamif/VitalFlow/internal/ports"
)

type Config struct {
	Latency time.Duration `yaml:"latency"`
}

// Transport accepts every message after an optional simulated latency.
type Transport struct {
	latency time.Duration

	mu        sync.Mutex
	connected bool
	sent      int
}

func New(cfg Config) *Transport {
	return &Transport{latency: cfg.Latency}
}

func (t *Transport) Name() string { return "dryrun" }

func (t *Transport) Connect(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	t.mu.Lock()
	t.connected = true
	t.mu.Unlock()
	return nil
}

func (t *Transport) Send(ctx context.Context, _ *domain.Message) error {
	t.mu.Lock()
	connected := t.connected
	t.mu.Unlock()
	if !connected {
		return errors.New("dryrun transport not connected")
	}

	if t.latency > 0 {
		timer := time.NewTimer(t.latency)
		defer timer.Stop()
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-timer.C:
		}
	}

	t.mu.Lock()
	t.sent++
	t.mu.Unlock()
	return nil
}

func (t *Transport) Close() error {
	t.mu.Lock()
	t.connected = false
	t.mu.Unlock()
	return nil
}

func (t *Transport) Sent() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.sent
}

var _ ports.Transport = (*Transport)(nil)
