package vitalflow

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestNewCallbackTransport(t *testing.T) {
	var received []*Message
	tr := NewCallbackTransport("cb", func(_ context.Context, msg *Message) error {
		received = append(received, msg)
		return nil
	})

	input := &Message{
		ID:         "m-1",
		SensorName: "ECG",
		Body:       []byte(`{"value":1.2}`),
		Properties: map[string]string{"alert": "true"},
	}
	if err := tr.Send(context.Background(), input); err != nil {
		t.Fatalf("Send returned error: %v", err)
	}
	if len(received) != 1 {
		t.Fatalf("expected 1 message, got %d", len(received))
	}
	got := received[0]
	if got.ID != input.ID || got.SensorName != input.SensorName {
		t.Fatalf("mismatched message: %+v vs %+v", got, input)
	}
	input.Properties["alert"] = "false"
	if got.Properties["alert"] != "true" {
		t.Fatalf("expected properties to be copied, got %v", got.Properties)
	}
	if tr.Name() != "cb" {
		t.Fatalf("unexpected name %s", tr.Name())
	}
}

func TestNewCallbackTransportNilHandler(t *testing.T) {
	tr := NewCallbackTransport("", nil)
	if err := tr.Send(context.Background(), &Message{}); err == nil {
		t.Fatalf("expected error when callback is nil")
	}
	if tr.Name() != "callback" {
		t.Fatalf("expected default name, got %s", tr.Name())
	}
}

func TestNewChannelTransport(t *testing.T) {
	tr, ch, closeFn := NewChannelTransport("chan", 0)
	defer closeFn()

	input := &Message{ID: "m-7", SensorName: "Oximeter"}
	errCh := make(chan error, 1)

	go func() {
		errCh <- tr.Send(context.Background(), input)
	}()

	var msg *Message
	select {
	case msg = <-ch:
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for channel message")
	}

	if err := <-errCh; err != nil {
		t.Fatalf("Send returned error: %v", err)
	}
	if msg.ID != input.ID || msg.SensorName != input.SensorName {
		t.Fatalf("unexpected message: %+v", msg)
	}

	closeFn()
	if err := tr.Send(context.Background(), input); !errors.Is(err, ErrChannelTransportClosed) {
		t.Fatalf("expected ErrChannelTransportClosed, got %v", err)
	}
}

func TestChannelTransportHonoursContext(t *testing.T) {
	tr, _, closeFn := NewChannelTransport("", 0)
	defer closeFn()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	if err := tr.Send(ctx, &Message{}); !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected deadline exceeded, got %v", err)
	}
}
