package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/ghalamif/VitalFlow/internal/adapters/archive"
	"github.com/ghalamif/VitalFlow/internal/adapters/charts"
	"github.com/ghalamif/VitalFlow/internal/adapters/transport/coap"
	"github.com/ghalamif/VitalFlow/internal/adapters/transport/dryrun"
	"github.com/ghalamif/VitalFlow/internal/adapters/transport/influx"
	"github.com/ghalamif/VitalFlow/internal/adapters/transport/iothub"
	"github.com/ghalamif/VitalFlow/internal/adapters/transport/mqtt"
	"github.com/ghalamif/VitalFlow/internal/adapters/transport/nats"
	"github.com/ghalamif/VitalFlow/internal/adapters/transport/opcua"
	"github.com/ghalamif/VitalFlow/internal/adapters/transport/timescale"
	"github.com/ghalamif/VitalFlow/internal/app/report"
	"github.com/ghalamif/VitalFlow/internal/app/sensors"
	"github.com/ghalamif/VitalFlow/internal/ports"
)

const DefaultPath = "vitalflow.yaml"

const (
	KindIoTHub    = "iothub"
	KindMQTT      = "mqtt"
	KindNATS      = "nats"
	KindCoAP      = "coap"
	KindInflux    = "influx"
	KindTimescale = "timescale"
	KindOPCUA     = "opcua"
	KindDryRun    = "dryrun"
)

// Kinds lists every supported transport.kind.
var Kinds = []string{KindIoTHub, KindMQTT, KindNATS, KindCoAP, KindInflux, KindTimescale, KindOPCUA, KindDryRun}

type Config struct {
	Simulation SimulationConfig `yaml:"simulation"`
	Transport  TransportConfig  `yaml:"transport"`
	Report     ReportConfig     `yaml:"report"`
	Spool      SpoolConfig      `yaml:"spool"`
	Monitor    MonitorConfig    `yaml:"monitor"`
	Logging    LoggingConfig    `yaml:"logging"`
}

type SimulationConfig struct {
	TickInterval time.Duration `yaml:"tick_interval"`
	AnomalyRate  *float64      `yaml:"anomaly_rate"`
	Seed         uint64        `yaml:"seed"`
}

type TransportConfig struct {
	Kind      string            `yaml:"kind"`
	Retry     ports.RetryPolicy `yaml:"retry"`
	IoTHub    iothub.Config     `yaml:"iothub"`
	MQTT      mqtt.Config       `yaml:"mqtt"`
	NATS      nats.Config       `yaml:"nats"`
	CoAP      coap.Config       `yaml:"coap"`
	Influx    influx.Config     `yaml:"influx"`
	Timescale timescale.Config  `yaml:"timescale"`
	OPCUA     opcua.Config      `yaml:"opcua"`
	DryRun    dryrun.Config     `yaml:"dryrun"`
}

type ReportConfig struct {
	OutputPath    string         `yaml:"output_path"`
	ChartsPath    string         `yaml:"charts_path"`
	DisableCharts bool           `yaml:"disable_charts"`
	Archive       archive.Config `yaml:"archive"`
}

// SpoolConfig keeps undelivered messages on disk when Dir is set.
type SpoolConfig struct {
	Dir         string `yaml:"dir"`
	ReplayBatch int    `yaml:"replay_batch"`
}

// MonitorConfig enables the live HTTP monitor when Addr is set.
type MonitorConfig struct {
	Addr string `yaml:"addr"`
}

type LoggingConfig struct {
	Level       string `yaml:"level"`
	Development bool   `yaml:"development"`
}

// LoadEnvFile loads KEY=VALUE pairs from the given dotenv files into the
// process environment. Missing files are skipped and variables already set
// win.
func LoadEnvFile(files ...string) error {
	if len(files) == 0 {
		files = []string{".env"}
	}
	var present []string
	for _, f := range files {
		if _, err := os.Stat(f); err == nil {
			present = append(present, f)
		}
	}
	if len(present) == 0 {
		return nil
	}
	return godotenv.Load(present...)
}

// Load reads the YAML file at path, then applies environment overrides,
// defaults and validation. An empty path starts from an empty file.
func Load(path string) (*Config, error) {
	var cfg Config
	if path != "" {
		raw, err := os.ReadFile(path)
		if err != nil {
			return nil, err
		}
		if err := yaml.Unmarshal(raw, &cfg); err != nil {
			return nil, fmt.Errorf("parse %s: %w", path, err)
		}
	}

	cfg.applyEnv(os.Getenv)
	cfg.applyDefaults()
	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// LoadOrDefault behaves like Load but treats a missing file as empty.
func LoadOrDefault(path string) (*Config, error) {
	cfg, err := Load(path)
	if errors.Is(err, fs.ErrNotExist) {
		return Load("")
	}
	return cfg, err
}

func (c *Config) applyEnv(getenv func(string) string) {
	set := func(dst *string, key string) {
		if v := getenv(key); v != "" {
			*dst = v
		}
	}
	set(&c.Transport.Kind, "VITALFLOW_TRANSPORT")
	set(&c.Transport.IoTHub.ConnectionString, "IOTHUB_DEVICE_CONNECTION_STRING")
	set(&c.Transport.MQTT.Password, "MQTT_PASSWORD")
	set(&c.Transport.NATS.Token, "NATS_TOKEN")
	set(&c.Transport.Influx.Token, "INFLUX_TOKEN")
	set(&c.Transport.Timescale.ConnString, "TIMESCALE_CONN_STRING")
	set(&c.Transport.OPCUA.Password, "OPCUA_PASSWORD")
	set(&c.Report.Archive.AccessKeyID, "AWS_ACCESS_KEY_ID")
	set(&c.Report.Archive.SecretAccessKey, "AWS_SECRET_ACCESS_KEY")
	set(&c.Logging.Level, "VITALFLOW_LOG_LEVEL")
}

func (c *Config) applyDefaults() {
	if c.Simulation.TickInterval <= 0 {
		c.Simulation.TickInterval = time.Second
	}
	if c.Simulation.AnomalyRate == nil {
		rate := sensors.DefaultAnomalyRate
		c.Simulation.AnomalyRate = &rate
	}

	c.Transport.Kind = strings.ToLower(strings.TrimSpace(c.Transport.Kind))
	if c.Transport.Kind == "" {
		c.Transport.Kind = KindIoTHub
	}
	if c.Transport.Retry.MaxAttempts <= 0 {
		c.Transport.Retry.MaxAttempts = 1
	}
	if c.Transport.Retry.Backoff <= 0 {
		c.Transport.Retry.Backoff = 500 * time.Millisecond
	}
	if c.Transport.Retry.SendTimeout <= 0 {
		c.Transport.Retry.SendTimeout = 10 * time.Second
	}
	if c.Transport.Retry.OnFailure == "" {
		c.Transport.Retry.OnFailure = ports.OnFailureAbort
	}

	c.Transport.IoTHub.ApplyDefaults()
	c.Transport.MQTT.ApplyDefaults()
	c.Transport.NATS.ApplyDefaults()
	c.Transport.CoAP.ApplyDefaults()
	c.Transport.Influx.ApplyDefaults()
	c.Transport.Timescale.ApplyDefaults()
	c.Transport.OPCUA.ApplyDefaults()

	if c.Report.OutputPath == "" {
		c.Report.OutputPath = report.DefaultPath
	}
	if c.Report.ChartsPath == "" {
		c.Report.ChartsPath = charts.DefaultPath
	}
	c.Report.Archive.ApplyDefaults()

	if c.Spool.ReplayBatch <= 0 {
		c.Spool.ReplayBatch = 50
	}

	if c.Logging.Level == "" {
		c.Logging.Level = "info"
	}
}

func (c *Config) validate() error {
	if rate := *c.Simulation.AnomalyRate; rate < 0 || rate > 1 {
		return fmt.Errorf("simulation.anomaly_rate must be within [0,1], got %g", rate)
	}

	switch c.Transport.Retry.OnFailure {
	case ports.OnFailureAbort, ports.OnFailureSkip:
	default:
		return fmt.Errorf("transport.retry.on_failure must be %q or %q", ports.OnFailureAbort, ports.OnFailureSkip)
	}

	var err error
	switch c.Transport.Kind {
	case KindIoTHub:
		err = c.Transport.IoTHub.Validate()
	case KindMQTT:
		err = c.Transport.MQTT.Validate()
	case KindNATS:
		err = c.Transport.NATS.Validate()
	case KindCoAP:
		err = c.Transport.CoAP.Validate()
	case KindInflux:
		err = c.Transport.Influx.Validate()
	case KindTimescale:
		err = c.Transport.Timescale.Validate()
	case KindOPCUA:
		err = c.Transport.OPCUA.Validate()
	case KindDryRun:
	default:
		return fmt.Errorf("transport.kind %q is not one of %s", c.Transport.Kind, strings.Join(Kinds, ", "))
	}
	if err != nil {
		return fmt.Errorf("%s config: %w", c.Transport.Kind, err)
	}

	if err := c.Report.Archive.Validate(); err != nil {
		return fmt.Errorf("report.archive config: %w", err)
	}
	return nil
}
