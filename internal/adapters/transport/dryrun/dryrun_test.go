package dryrun

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/ghalamif/VitalFlow/internal/domain"
)

func TestDryRunCountsSends(t *testing.T) {
	tr := New(Config{})
	if err := tr.Send(context.Background(), &domain.Message{}); err == nil {
		t.Fatal("expected error before connect")
	}
	if err := tr.Connect(context.Background()); err != nil {
		t.Fatalf("Connect: %v", err)
	}
	for i := 0; i < 3; i++ {
		if err := tr.Send(context.Background(), &domain.Message{SensorName: "ECG"}); err != nil {
			t.Fatalf("Send: %v", err)
		}
	}
	if tr.Sent() != 3 {
		t.Fatalf("expected 3 sends, got %d", tr.Sent())
	}
	_ = tr.Close()
	if err := tr.Send(context.Background(), &domain.Message{}); err == nil {
		t.Fatal("expected error after close")
	}
}

func TestDryRunLatencyHonoursContext(t *testing.T) {
	tr := New(Config{Latency: time.Hour})
	_ = tr.Connect(context.Background())

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	if err := tr.Send(ctx, &domain.Message{}); !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected deadline exceeded, got %v", err)
	}
	if tr.Sent() != 0 {
		t.Fatalf("expected no counted send, got %d", tr.Sent())
	}
}
