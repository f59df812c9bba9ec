package transmit

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/ghalamif/VitalFlow/internal/app/metrics"
	"github.com/ghalamif/VitalFlow/internal/domain"
	"github.com/ghalamif/VitalFlow/internal/ports"
)

func TestEnvelopeAlertProperties(t *testing.T) {
	r := domain.Reading{SensorName: "ECG", SensorType: domain.KindECG, Value: domain.ScalarValue(3.5), Unit: "mV_rms", Alert: true}

	msg, err := Envelope(r, "id-1")
	if err != nil {
		t.Fatalf("envelope: %v", err)
	}
	if msg.ContentType != "application/json" || msg.ContentEncoding != "utf-8" {
		t.Fatalf("unexpected content metadata: %s %s", msg.ContentType, msg.ContentEncoding)
	}
	if msg.Properties["alert"] != "true" || msg.Properties["priority"] != "high" {
		t.Fatalf("expected alert properties, got %v", msg.Properties)
	}
	if !strings.Contains(string(msg.Body), `"is_alert":true`) {
		t.Fatalf("body missing alert flag: %s", msg.Body)
	}
	if msg.ID != "id-1" || msg.SensorName != "ECG" {
		t.Fatalf("unexpected envelope identity: %+v", msg)
	}
}

func TestEnvelopeWithoutAlertHasNoProperties(t *testing.T) {
	r := domain.Reading{SensorName: "Oximeter", Value: domain.ScalarValue(97)}
	msg, err := Envelope(r, "id")
	if err != nil {
		t.Fatalf("envelope: %v", err)
	}
	if len(msg.Properties) != 0 {
		t.Fatalf("expected no custom properties, got %v", msg.Properties)
	}
	if msg.HighPriority() {
		t.Fatalf("non-alert message must not be high priority")
	}
}

func TestTransmitRecordsMetricsAndPrints(t *testing.T) {
	tr := &stubTransport{}
	acc := metrics.NewAccumulator([]string{"HeartRate"})
	obs := &stubObs{}
	var out bytes.Buffer
	listener := &stubListener{}

	tx := New(tr, acc, obs, ports.RetryPolicy{}, WithOutput(&out), WithListener(listener), WithIDSource(func() string { return "fixed" }))

	r := domain.Reading{SensorName: "HeartRate", SensorType: domain.KindHeartRate, Value: domain.ScalarValue(72.4), Unit: "bpm"}
	if err := tx.Transmit(context.Background(), r); err != nil {
		t.Fatalf("transmit: %v", err)
	}

	if len(tr.sent) != 1 || tr.sent[0].ID != "fixed" {
		t.Fatalf("expected one message with fixed id, got %+v", tr.sent)
	}
	if acc.Count("HeartRate") != 1 || len(acc.Latencies()["HeartRate"]) != 1 {
		t.Fatalf("accumulator not updated")
	}
	line := out.String()
	if !strings.HasPrefix(line, "[SENT] HeartRate    | Value: 72.4 bpm | Alert: false | Latency: ") {
		t.Fatalf("unexpected console line %q", line)
	}
	if obs.counters["vitalflow_readings_sent_total/HeartRate"] != 1 {
		t.Fatalf("expected sent counter, got %v", obs.counters)
	}
	if len(listener.readings) != 1 {
		t.Fatalf("listener not notified")
	}
}

func TestTransmitAbortPropagatesError(t *testing.T) {
	tr := &stubTransport{failures: 10}
	acc := metrics.NewAccumulator([]string{"ECG"})
	obs := &stubObs{}

	tx := New(tr, acc, obs, ports.RetryPolicy{MaxAttempts: 2, OnFailure: ports.OnFailureAbort},
		WithOutput(&bytes.Buffer{}), WithSleeper(noSleep))

	err := tx.Transmit(context.Background(), domain.Reading{SensorName: "ECG"})
	if err == nil {
		t.Fatalf("expected error")
	}
	if !errors.Is(err, ErrUndelivered) || !errors.Is(err, errBoom) {
		t.Fatalf("expected wrapped undelivered error, got %v", err)
	}
	if tr.calls != 2 {
		t.Fatalf("expected 2 attempts, got %d", tr.calls)
	}
	if acc.Count("ECG") != 0 {
		t.Fatalf("failed send must not be counted")
	}
	if obs.counters["vitalflow_send_failures_total/ECG"] != 1 {
		t.Fatalf("expected failure counter, got %v", obs.counters)
	}
}

func TestTransmitRetriesThenSucceeds(t *testing.T) {
	tr := &stubTransport{failures: 2}
	acc := metrics.NewAccumulator([]string{"ECG"})
	var slept []time.Duration

	tx := New(tr, acc, &stubObs{}, ports.RetryPolicy{MaxAttempts: 3, Backoff: 10 * time.Millisecond},
		WithOutput(&bytes.Buffer{}),
		WithSleeper(func(_ context.Context, d time.Duration) error {
			slept = append(slept, d)
			return nil
		}))

	if err := tx.Transmit(context.Background(), domain.Reading{SensorName: "ECG"}); err != nil {
		t.Fatalf("transmit: %v", err)
	}
	if tr.calls != 3 {
		t.Fatalf("expected 3 attempts, got %d", tr.calls)
	}
	if len(slept) != 2 || slept[0] != 10*time.Millisecond || slept[1] != 20*time.Millisecond {
		t.Fatalf("expected doubling backoff, got %v", slept)
	}
	if acc.Count("ECG") != 1 {
		t.Fatalf("expected one recorded transmission")
	}
}

func TestTransmitSkipPolicyDropsReading(t *testing.T) {
	tr := &stubTransport{failures: 1}
	acc := metrics.NewAccumulator([]string{"ECG"})
	obs := &stubObs{}

	tx := New(tr, acc, obs, ports.RetryPolicy{OnFailure: ports.OnFailureSkip}, WithOutput(&bytes.Buffer{}))
	if err := tx.Transmit(context.Background(), domain.Reading{SensorName: "ECG"}); err != nil {
		t.Fatalf("skip policy must swallow error, got %v", err)
	}
	if acc.Count("ECG") != 0 {
		t.Fatalf("skipped reading must not be counted")
	}
	if len(obs.errors) != 1 {
		t.Fatalf("expected skip to be logged, got %d", len(obs.errors))
	}
}

func TestTransmitAppliesSendTimeout(t *testing.T) {
	tr := &stubTransport{}
	tx := New(tr, metrics.NewAccumulator([]string{"ECG"}), &stubObs{},
		ports.RetryPolicy{SendTimeout: time.Minute}, WithOutput(&bytes.Buffer{}))

	if err := tx.Transmit(context.Background(), domain.Reading{SensorName: "ECG"}); err != nil {
		t.Fatalf("transmit: %v", err)
	}
	if !tr.hadDeadline {
		t.Fatalf("expected per-attempt deadline on send context")
	}
}

func TestTransmitSpoolsUndeliveredMessage(t *testing.T) {
	tr := &stubTransport{failures: 1}
	acc := metrics.NewAccumulator([]string{"ECG"})
	obs := &stubObs{}
	sp := &stubSpool{}

	tx := New(tr, acc, obs, ports.RetryPolicy{OnFailure: ports.OnFailureSkip},
		WithOutput(&bytes.Buffer{}), WithSpool(sp), WithIDSource(func() string { return "lost-1" }))

	r := domain.Reading{SensorName: "ECG", Value: domain.ScalarValue(3.5), Alert: true}
	if err := tx.Transmit(context.Background(), r); err != nil {
		t.Fatalf("transmit: %v", err)
	}
	if len(sp.msgs) != 1 || sp.msgs[0].ID != "lost-1" || !sp.msgs[0].HighPriority() {
		t.Fatalf("expected undelivered alert in spool, got %+v", sp.msgs)
	}
	if obs.counters["vitalflow_spooled_total/ECG"] != 1 {
		t.Fatalf("expected spooled counter, got %v", obs.counters)
	}
}

func TestTransmitAbortReportsSpoolFailure(t *testing.T) {
	tr := &stubTransport{failures: 1}
	sp := &stubSpool{err: errors.New("disk full")}

	tx := New(tr, metrics.NewAccumulator([]string{"ECG"}), &stubObs{}, ports.RetryPolicy{},
		WithOutput(&bytes.Buffer{}), WithSpool(sp))

	err := tx.Transmit(context.Background(), domain.Reading{SensorName: "ECG"})
	if !errors.Is(err, errBoom) || !errors.Is(err, sp.err) {
		t.Fatalf("expected send and spool errors, got %v", err)
	}
}

var errBoom = errors.New("boom")

type stubSpool struct {
	ports.Spool
	msgs []*domain.Message
	err  error
}

func (s *stubSpool) Append(msg *domain.Message) (ports.SpoolEntryID, error) {
	if s.err != nil {
		return 0, s.err
	}
	s.msgs = append(s.msgs, msg)
	return ports.SpoolEntryID(len(s.msgs)), nil
}

func noSleep(context.Context, time.Duration) error { return nil }

type stubTransport struct {
	failures    int
	calls       int
	sent        []*domain.Message
	hadDeadline bool
}

func (s *stubTransport) Name() string                  { return "stub" }
func (s *stubTransport) Connect(context.Context) error { return nil }
func (s *stubTransport) Close() error                  { return nil }
func (s *stubTransport) Send(ctx context.Context, msg *domain.Message) error {
	s.calls++
	_, s.hadDeadline = ctx.Deadline()
	if s.failures > 0 {
		s.failures--
		return errBoom
	}
	s.sent = append(s.sent, msg)
	return nil
}

type stubListener struct {
	readings []domain.Reading
}

func (s *stubListener) OnReading(r domain.Reading, _ time.Duration) {
	s.readings = append(s.readings, r)
}

type stubObs struct {
	errors   []error
	counters map[string]float64
}

func (m *stubObs) LogInfo(string, ...ports.Field)                 {}
func (m *stubObs) LogError(_ string, err error, _ ...ports.Field) { m.errors = append(m.errors, err) }
func (m *stubObs) LogCritical(string, error, ...ports.Field)      {}
func (m *stubObs) IncCounter(name, sensor string, v float64) {
	if m.counters == nil {
		m.counters = map[string]float64{}
	}
	m.counters[name+"/"+sensor] += v
}
func (m *stubObs) ObserveLatency(string, string, float64) {}
func (m *stubObs) SetGauge(string, float64)               {}
