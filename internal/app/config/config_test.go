package config

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/ghalamif/VitalFlow/internal/ports"
)

func writeConfig(t *testing.T, data string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "vitalflow.yaml")
	if err := os.WriteFile(path, []byte(data), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestLoadAppliesDefaults(t *testing.T) {
	path := writeConfig(t, `
transport:
  kind: dryrun
report:
  output_path: out/results.json
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load config: %v", err)
	}

	if cfg.Simulation.TickInterval != time.Second {
		t.Fatalf("expected tick interval default 1s, got %s", cfg.Simulation.TickInterval)
	}
	if *cfg.Simulation.AnomalyRate != 0.05 {
		t.Fatalf("expected anomaly rate default 0.05, got %f", *cfg.Simulation.AnomalyRate)
	}
	if cfg.Transport.Retry.MaxAttempts != 1 || cfg.Transport.Retry.Backoff != 500*time.Millisecond {
		t.Fatalf("unexpected retry defaults %+v", cfg.Transport.Retry)
	}
	if cfg.Transport.Retry.SendTimeout != 10*time.Second {
		t.Fatalf("expected send timeout default 10s, got %s", cfg.Transport.Retry.SendTimeout)
	}
	if cfg.Transport.Retry.OnFailure != ports.OnFailureAbort {
		t.Fatalf("expected abort default, got %s", cfg.Transport.Retry.OnFailure)
	}
	if cfg.Report.OutputPath != "out/results.json" {
		t.Fatalf("expected explicit output path kept, got %s", cfg.Report.OutputPath)
	}
	if cfg.Report.ChartsPath != "health_simulation_charts.html" {
		t.Fatalf("expected default charts path, got %s", cfg.Report.ChartsPath)
	}
	if cfg.Monitor.Addr != "" {
		t.Fatalf("expected monitor disabled by default, got %s", cfg.Monitor.Addr)
	}
	if cfg.Logging.Level != "info" {
		t.Fatalf("expected info log level, got %s", cfg.Logging.Level)
	}
}

func TestLoadParsesDurationsAndZeroAnomalyRate(t *testing.T) {
	path := writeConfig(t, `
simulation:
  tick_interval: 250ms
  anomaly_rate: 0
  seed: 42
transport:
  kind: DryRun
  retry:
    max_attempts: 3
    backoff: 1s
    on_failure: skip
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load config: %v", err)
	}
	if cfg.Simulation.TickInterval != 250*time.Millisecond {
		t.Fatalf("expected 250ms tick, got %s", cfg.Simulation.TickInterval)
	}
	if *cfg.Simulation.AnomalyRate != 0 {
		t.Fatalf("expected explicit zero anomaly rate kept, got %f", *cfg.Simulation.AnomalyRate)
	}
	if cfg.Simulation.Seed != 42 || cfg.Transport.Kind != KindDryRun {
		t.Fatalf("unexpected parse %+v", cfg)
	}
	if cfg.Transport.Retry.MaxAttempts != 3 || cfg.Transport.Retry.OnFailure != ports.OnFailureSkip {
		t.Fatalf("unexpected retry %+v", cfg.Transport.Retry)
	}
}

func TestEnvironmentSuppliesSecrets(t *testing.T) {
	t.Setenv("IOTHUB_DEVICE_CONNECTION_STRING", "HostName=hub.azure-devices.net;DeviceId=bed-4;SharedAccessKey=c2VjcmV0")
	t.Setenv("TIMESCALE_CONN_STRING", "postgres://env@localhost/vitals")

	cfg, err := Load(writeConfig(t, "transport:\n  timescale:\n    conn_string: postgres://file@localhost/vitals\n"))
	if err != nil {
		t.Fatalf("load config: %v", err)
	}
	if cfg.Transport.Kind != KindIoTHub {
		t.Fatalf("expected iothub default kind, got %s", cfg.Transport.Kind)
	}
	if !strings.Contains(cfg.Transport.IoTHub.ConnectionString, "DeviceId=bed-4") {
		t.Fatalf("connection string not taken from env: %q", cfg.Transport.IoTHub.ConnectionString)
	}
	if cfg.Transport.Timescale.ConnString != "postgres://env@localhost/vitals" {
		t.Fatalf("expected env to override file, got %s", cfg.Transport.Timescale.ConnString)
	}
}

func TestDefaultIoTHubRequiresConnectionString(t *testing.T) {
	t.Setenv("IOTHUB_DEVICE_CONNECTION_STRING", "")
	if _, err := Load(""); err == nil || !strings.Contains(err.Error(), "iothub") {
		t.Fatalf("expected iothub validation error, got %v", err)
	}
}

func TestLoadOrDefaultToleratesMissingFile(t *testing.T) {
	t.Setenv("VITALFLOW_TRANSPORT", "dryrun")
	missing := filepath.Join(t.TempDir(), "absent.yaml")

	if _, err := Load(missing); !errors.Is(err, fs.ErrNotExist) {
		t.Fatalf("expected not-exist from Load, got %v", err)
	}
	cfg, err := LoadOrDefault(missing)
	if err != nil {
		t.Fatalf("LoadOrDefault: %v", err)
	}
	if cfg.Transport.Kind != KindDryRun {
		t.Fatalf("expected env transport kind, got %s", cfg.Transport.Kind)
	}
}

func TestValidateRejectsBadValues(t *testing.T) {
	cases := map[string]string{
		"anomaly":   "simulation:\n  anomaly_rate: 1.5\ntransport:\n  kind: dryrun\n",
		"kind":      "transport:\n  kind: carrier-pigeon\n",
		"policy":    "transport:\n  kind: dryrun\n  retry:\n    on_failure: ignore\n",
		"mqtt":      "transport:\n  kind: mqtt\n",
		"archive":   "transport:\n  kind: dryrun\nreport:\n  archive:\n    enabled: true\n",
		"malformed": "transport: [",
	}
	for name, data := range cases {
		if _, err := Load(writeConfig(t, data)); err == nil {
			t.Fatalf("%s: expected error", name)
		}
	}
}

func TestLoadEnvFile(t *testing.T) {
	dir := t.TempDir()
	envPath := filepath.Join(dir, ".env")
	if err := os.WriteFile(envPath, []byte("VITALFLOW_TEST_SECRET=from-dotenv\n"), 0o600); err != nil {
		t.Fatal(err)
	}
	t.Setenv("VITALFLOW_TEST_SECRET", "")
	os.Unsetenv("VITALFLOW_TEST_SECRET")

	if err := LoadEnvFile(filepath.Join(dir, "missing.env"), envPath); err != nil {
		t.Fatalf("LoadEnvFile: %v", err)
	}
	if got := os.Getenv("VITALFLOW_TEST_SECRET"); got != "from-dotenv" {
		t.Fatalf("expected dotenv value, got %q", got)
	}
	if err := LoadEnvFile(filepath.Join(dir, "none.env")); err != nil {
		t.Fatalf("missing files should be skipped: %v", err)
	}
}

func TestLoadSpoolSection(t *testing.T) {
	path := writeConfig(t, `
transport:
  kind: dryrun
spool:
  dir: /var/lib/vitalflow/spool
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load config: %v", err)
	}
	if cfg.Spool.Dir != "/var/lib/vitalflow/spool" {
		t.Fatalf("unexpected spool dir %q", cfg.Spool.Dir)
	}
	if cfg.Spool.ReplayBatch != 50 {
		t.Fatalf("expected replay batch default 50, got %d", cfg.Spool.ReplayBatch)
	}
}
