package vitalflow

import (
	"github.com/ghalamif/VitalFlow/internal/adapters/archive"
	"github.com/ghalamif/VitalFlow/internal/adapters/transport/coap"
	"github.com/ghalamif/VitalFlow/internal/adapters/transport/dryrun"
	"github.com/ghalamif/VitalFlow/internal/adapters/transport/influx"
	"github.com/ghalamif/VitalFlow/internal/adapters/transport/iothub"
	"github.com/ghalamif/VitalFlow/internal/adapters/transport/mqtt"
	"github.com/ghalamif/VitalFlow/internal/adapters/transport/nats"
	"github.com/ghalamif/VitalFlow/internal/adapters/transport/opcua"
	"github.com/ghalamif/VitalFlow/internal/adapters/transport/timescale"
	"github.com/ghalamif/VitalFlow/internal/app/config"
)

// Config re-exports the root configuration struct so downstream projects can
// construct or modify it programmatically.
type Config = config.Config

type (
	// SimulationConfig sets the tick interval, anomaly rate and seed.
	SimulationConfig = config.SimulationConfig
	// TransportConfig selects the ingestion transport and its retry policy.
	TransportConfig = config.TransportConfig
	// ReportConfig places the summary file and charts.
	ReportConfig = config.ReportConfig
	// SpoolConfig keeps undelivered messages on disk for a later replay.
	SpoolConfig = config.SpoolConfig
	// MonitorConfig enables the live HTTP monitor.
	MonitorConfig = config.MonitorConfig
	// LoggingConfig selects the log level and encoder.
	LoggingConfig = config.LoggingConfig

	IoTHubConfig    = iothub.Config
	MQTTConfig      = mqtt.Config
	NATSConfig      = nats.Config
	CoAPConfig      = coap.Config
	InfluxConfig    = influx.Config
	TimescaleConfig = timescale.Config
	OPCUAConfig     = opcua.Config
	OPCUANodeConfig = opcua.NodeConfig
	DryRunConfig    = dryrun.Config
	ArchiveConfig   = archive.Config
)

// DefaultConfigPath is the file the CLI reads when no -config flag is given.
const DefaultConfigPath = config.DefaultPath

// LoadConfig loads YAML from disk using the internal config reader.
func LoadConfig(path string) (*Config, error) {
	return config.Load(path)
}

// LoadConfigOrDefault is LoadConfig with a missing file treated as empty.
func LoadConfigOrDefault(path string) (*Config, error) {
	return config.LoadOrDefault(path)
}

// LoadEnvFile loads dotenv files (".env" when none given) into the environment.
func LoadEnvFile(files ...string) error {
	return config.LoadEnvFile(files...)
}
