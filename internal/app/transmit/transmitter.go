package transmit

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/google/uuid"

	"github.com/ghalamif/VitalFlow/internal/app/metrics"
	"github.com/ghalamif/VitalFlow/internal/domain"
	"github.com/ghalamif/VitalFlow/internal/ports"
)

// ErrUndelivered wraps the last transport error once every attempt failed.
var ErrUndelivered = errors.New("transmit: message undelivered")

type Option func(*Transmitter)

func WithOutput(w io.Writer) Option {
	return func(t *Transmitter) {
		if w != nil {
			t.out = w
		}
	}
}

func WithListener(l ports.ReadingListener) Option {
	return func(t *Transmitter) {
		if l != nil {
			t.listeners = append(t.listeners, l)
		}
	}
}

func WithIDSource(fn func() string) Option {
	return func(t *Transmitter) {
		if fn != nil {
			t.newID = fn
		}
	}
}

func WithSleeper(fn func(ctx context.Context, d time.Duration) error) Option {
	return func(t *Transmitter) {
		if fn != nil {
			t.sleep = fn
		}
	}
}

// WithSpool keeps undelivered messages in sp for a later replay.
func WithSpool(sp ports.Spool) Option {
	return func(t *Transmitter) {
		if sp != nil {
			t.spool = sp
		}
	}
}

// Transmitter wraps readings into messages, ships them through a transport and
// records delivery metrics.
type Transmitter struct {
	transport ports.Transport
	acc       *metrics.Accumulator
	obs       ports.Observability
	policy    ports.RetryPolicy
	out       io.Writer
	listeners []ports.ReadingListener
	spool     ports.Spool
	newID     func() string
	sleep     func(ctx context.Context, d time.Duration) error
}

func New(tr ports.Transport, acc *metrics.Accumulator, obs ports.Observability, pol ports.RetryPolicy, opts ...Option) *Transmitter {
	t := &Transmitter{
		transport: tr,
		acc:       acc,
		obs:       obs,
		policy:    pol,
		out:       os.Stdout,
		newID:     uuid.NewString,
		sleep:     Sleep,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(t)
		}
	}
	return t
}

// Envelope serializes a reading into a transport message.
func Envelope(r domain.Reading, id string) (*domain.Message, error) {
	body, err := json.Marshal(r)
	if err != nil {
		return nil, fmt.Errorf("marshal reading: %w", err)
	}
	msg := &domain.Message{
		ID:              id,
		SensorName:      r.SensorName,
		Body:            body,
		ContentType:     domain.ContentTypeJSON,
		ContentEncoding: domain.EncodingUTF8,
		Properties:      map[string]string{},
		Reading:         r,
	}
	if r.Alert {
		msg.Properties[domain.PropertyAlert] = "true"
		msg.Properties[domain.PropertyPriority] = "high"
	}
	return msg, nil
}

// Transmit sends one reading. With the "skip" failure policy an undelivered
// reading is logged and dropped; otherwise the error is returned.
func (t *Transmitter) Transmit(ctx context.Context, r domain.Reading) error {
	msg, err := Envelope(r, t.newID())
	if err != nil {
		return err
	}

	start := time.Now()
	err = t.send(ctx, msg)
	latency := time.Since(start)

	if err != nil {
		t.obs.IncCounter("vitalflow_send_failures_total", r.SensorName, 1)
		if spoolErr := t.spoolMessage(msg); spoolErr != nil {
			err = errors.Join(err, spoolErr)
		}
		if t.policy.OnFailure == ports.OnFailureSkip {
			t.obs.LogError("send_skipped", err,
				ports.Field{Key: "sensor", Value: r.SensorName},
				ports.Field{Key: "message_id", Value: msg.ID})
			return nil
		}
		return fmt.Errorf("send %s via %s: %w", r.SensorName, t.transport.Name(), err)
	}

	if err := t.acc.Record(r.SensorName, latency); err != nil {
		return err
	}
	t.obs.IncCounter("vitalflow_readings_sent_total", r.SensorName, 1)
	t.obs.ObserveLatency("vitalflow_send_latency_seconds", r.SensorName, latency.Seconds())
	if r.Alert {
		t.obs.IncCounter("vitalflow_alerts_total", r.SensorName, 1)
	}

	fmt.Fprintf(t.out, "[SENT] %-12s | Value: %s %s | Alert: %t | Latency: %.4fs\n",
		r.SensorName, r.Value, r.Unit, r.Alert, latency.Seconds())

	for _, l := range t.listeners {
		l.OnReading(r, latency)
	}
	return nil
}

func (t *Transmitter) spoolMessage(msg *domain.Message) error {
	if t.spool == nil {
		return nil
	}
	id, err := t.spool.Append(msg)
	if err != nil {
		t.obs.LogCritical("spool_append_failed", err, ports.Field{Key: "message_id", Value: msg.ID})
		return fmt.Errorf("spool %s: %w", msg.ID, err)
	}
	t.obs.IncCounter("vitalflow_spooled_total", msg.SensorName, 1)
	t.obs.LogInfo("message_spooled",
		ports.Field{Key: "sensor", Value: msg.SensorName},
		ports.Field{Key: "message_id", Value: msg.ID},
		ports.Field{Key: "spool_id", Value: uint64(id)})
	return nil
}

func (t *Transmitter) send(ctx context.Context, msg *domain.Message) error {
	attempts := t.policy.MaxAttempts
	if attempts <= 0 {
		attempts = 1
	}
	backoff := t.policy.Backoff

	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		lastErr = t.attempt(ctx, msg)
		if lastErr == nil {
			return nil
		}
		if attempt == attempts {
			break
		}
		t.obs.LogError("send_retry", lastErr,
			ports.Field{Key: "sensor", Value: msg.SensorName},
			ports.Field{Key: "attempt", Value: attempt})
		if err := t.sleep(ctx, backoff); err != nil {
			return errors.Join(ErrUndelivered, lastErr, err)
		}
		backoff *= 2
	}
	return errors.Join(ErrUndelivered, lastErr)
}

func (t *Transmitter) attempt(ctx context.Context, msg *domain.Message) error {
	if t.policy.SendTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, t.policy.SendTimeout)
		defer cancel()
	}
	return t.transport.Send(ctx, msg)
}

// Sleep waits for d or until ctx is done.
func Sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
