package vitalflow

import (
	"bytes"
	"context"
	"errors"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/ghalamif/VitalFlow/internal/app/report"
)

func testConfig(t *testing.T) *Config {
	t.Helper()
	rate := 0.05
	return &Config{
		Simulation: SimulationConfig{TickInterval: time.Second, AnomalyRate: &rate, Seed: 7},
		Transport: TransportConfig{
			Kind:  "dryrun",
			Retry: RetryPolicy{MaxAttempts: 1, OnFailure: "abort"},
		},
		Report: ReportConfig{
			OutputPath:    filepath.Join(t.TempDir(), "results.json"),
			DisableCharts: true,
		},
		Logging: LoggingConfig{Level: "info"},
	}
}

// stopAfter cancels the run once the given number of ticks completed.
func stopAfter(ticks int, cancel context.CancelFunc) func(context.Context, time.Duration) error {
	var n int
	return func(ctx context.Context, d time.Duration) error {
		n++
		if n >= ticks {
			cancel()
		}
		return ctx.Err()
	}
}

type recordingTransport struct {
	mu        sync.Mutex
	sent      []*Message
	connected bool
	closed    bool
	failOn    int
}

func (r *recordingTransport) Name() string { return "recording" }

func (r *recordingTransport) Connect(context.Context) error {
	r.connected = true
	return nil
}

func (r *recordingTransport) Send(_ context.Context, msg *Message) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.failOn > 0 && len(r.sent)+1 == r.failOn {
		return errors.New("ingestion endpoint unavailable")
	}
	r.sent = append(r.sent, msg)
	return nil
}

func (r *recordingTransport) Close() error {
	r.closed = true
	return nil
}

type stubObservability struct{}

func (s *stubObservability) LogInfo(string, ...Field)               {}
func (s *stubObservability) LogError(string, error, ...Field)       {}
func (s *stubObservability) LogCritical(string, error, ...Field)    {}
func (s *stubObservability) IncCounter(string, string, float64)     {}
func (s *stubObservability) ObserveLatency(string, string, float64) {}
func (s *stubObservability) SetGauge(string, float64)               {}

type countingCharts struct{ calls int }

func (c *countingCharts) Render(*Summary) error {
	c.calls++
	return nil
}

func TestNewRuntimeWithCustomAdapters(t *testing.T) {
	cfg := testConfig(t)
	tr := &recordingTransport{}
	obs := &stubObservability{}

	rt, err := NewRuntime(cfg,
		WithTransport(tr),
		WithObservability(obs),
		WithRand(NewRand(1)),
	)
	if err != nil {
		t.Fatalf("NewRuntime returned error: %v", err)
	}
	if rt.transport != tr {
		t.Fatalf("expected custom transport to be used")
	}
	if rt.obs != obs {
		t.Fatalf("expected custom observability to be used")
	}
	if rt.monitor != nil {
		t.Fatalf("expected no monitor without monitor.addr")
	}
	if rt.State() != StateIdle {
		t.Fatalf("expected idle runtime, got %s", rt.State())
	}
	if len(rt.Catalog()) != 5 {
		t.Fatalf("expected five sensors, got %d", len(rt.Catalog()))
	}
}

func TestRuntimeRunsThreeTicksAndWritesSummary(t *testing.T) {
	cfg := testConfig(t)
	tr := &recordingTransport{}
	charts := &countingCharts{}
	var out bytes.Buffer

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	rt, err := NewRuntime(cfg,
		WithTransport(tr),
		WithObservability(&stubObservability{}),
		WithChartRenderer(charts),
		WithOutput(&out),
		WithSleeper(stopAfter(3, cancel)),
	)
	if err != nil {
		t.Fatalf("NewRuntime: %v", err)
	}

	if err := rt.Run(ctx); err != nil {
		t.Fatalf("Run: %v", err)
	}

	if len(tr.sent) != 15 {
		t.Fatalf("expected 15 messages, got %d", len(tr.sent))
	}
	if !tr.connected || !tr.closed {
		t.Fatalf("expected transport connected and closed once")
	}
	if rt.State() != StateTerminated {
		t.Fatalf("expected terminated runtime, got %s", rt.State())
	}
	if charts.calls != 1 {
		t.Fatalf("expected charts rendered once, got %d", charts.calls)
	}

	summary, err := report.ReadSummary(cfg.Report.OutputPath)
	if err != nil {
		t.Fatalf("read summary: %v", err)
	}
	for _, spec := range DefaultCatalog() {
		if summary.TransmissionCounts[spec.Name] != 3 {
			t.Fatalf("%s: expected count 3, got %d", spec.Name, summary.TransmissionCounts[spec.Name])
		}
		if len(summary.LatencyRecords[spec.Name]) != 3 {
			t.Fatalf("%s: expected 3 latencies", spec.Name)
		}
		if _, ok := summary.PowerStats[spec.Name]; !ok {
			t.Fatalf("%s: missing power stat", spec.Name)
		}
	}

	console := out.String()
	if strings.Count(console, "[SENT]") != 15 {
		t.Fatalf("expected 15 console lines, got:\n%s", console)
	}
	if !strings.Contains(console, "Simulation Ended") || !strings.Contains(console, cfg.Report.OutputPath) {
		t.Fatalf("missing termination banner:\n%s", console)
	}
}

func TestRuntimeAbortStillPersistsPartialMetrics(t *testing.T) {
	cfg := testConfig(t)
	tr := &recordingTransport{failOn: 4}

	rt, err := NewRuntime(cfg,
		WithTransport(tr),
		WithObservability(&stubObservability{}),
		WithOutput(&bytes.Buffer{}),
		WithSleeper(func(ctx context.Context, d time.Duration) error { return nil }),
	)
	if err != nil {
		t.Fatalf("NewRuntime: %v", err)
	}

	if err := rt.Run(context.Background()); err == nil {
		t.Fatal("expected aborted run to return an error")
	}
	if !tr.closed {
		t.Fatal("expected transport released after abort")
	}

	summary, err := report.ReadSummary(cfg.Report.OutputPath)
	if err != nil {
		t.Fatalf("read summary: %v", err)
	}
	if summary.TransmissionCounts["ECG"] != 1 || summary.TransmissionCounts["BloodPressure"] != 1 {
		t.Fatalf("unexpected partial counts %v", summary.TransmissionCounts)
	}
	if summary.TransmissionCounts["Oximeter"] != 0 {
		t.Fatalf("expected failed sensor uncounted, got %v", summary.TransmissionCounts)
	}
}

func TestNewTransportSelectsKind(t *testing.T) {
	cases := map[string]TransportConfig{
		"dryrun":      {Kind: "dryrun"},
		"mqtt":        {Kind: "mqtt", MQTT: MQTTConfig{Broker: "tcp://localhost:1883"}},
		"nats":        {Kind: "nats"},
		"coap":        {Kind: "coap"},
		"influx":      {Kind: "influx", Influx: InfluxConfig{Org: "o", Bucket: "b"}},
		"timescaledb": {Kind: "timescale", Timescale: TimescaleConfig{ConnString: "postgres://localhost/v"}},
		"opcua": {Kind: "opcua", OPCUA: OPCUAConfig{
			Endpoint: "opc.tcp://localhost:4840",
			Nodes:    []OPCUANodeConfig{{NodeID: "ns=2;s=HR", Sensor: "HeartRate"}},
		}},
		"iothub": {Kind: "iothub", IoTHub: IoTHubConfig{ConnectionString: "HostName=h.azure-devices.net;DeviceId=d;SharedAccessKey=c2VjcmV0"}},
	}
	for name, cfg := range cases {
		tr, err := NewTransport(cfg, &stubObservability{})
		if err != nil {
			t.Fatalf("%s: %v", name, err)
		}
		if tr.Name() != name {
			t.Fatalf("expected transport %s, got %s", name, tr.Name())
		}
	}
	if _, err := NewTransport(TransportConfig{Kind: "smoke-signals"}, &stubObservability{}); err == nil {
		t.Fatal("expected unknown kind error")
	}
}
