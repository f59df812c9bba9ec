package vitalflow

import (
	"context"
	"io"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	base "github.com/ghalamif/VitalFlow/pkg/vitalflow"
)

// Re-exported errors for convenience.
var (
	ErrChannelTransportClosed = base.ErrChannelTransportClosed
)

// Type aliases so consumers can import github.com/ghalamif/VitalFlow directly.
type (
	Config           = base.Config
	SimulationConfig = base.SimulationConfig
	TransportConfig  = base.TransportConfig
	ReportConfig     = base.ReportConfig
	SpoolConfig      = base.SpoolConfig
	MonitorConfig    = base.MonitorConfig
	LoggingConfig    = base.LoggingConfig
	IoTHubConfig     = base.IoTHubConfig
	MQTTConfig       = base.MQTTConfig
	NATSConfig       = base.NATSConfig
	CoAPConfig       = base.CoAPConfig
	InfluxConfig     = base.InfluxConfig
	TimescaleConfig  = base.TimescaleConfig
	OPCUAConfig      = base.OPCUAConfig
	OPCUANodeConfig  = base.OPCUANodeConfig
	DryRunConfig     = base.DryRunConfig
	ArchiveConfig    = base.ArchiveConfig
	RetryPolicy      = base.RetryPolicy
	Flow             = base.Flow
	FlowOption       = base.FlowOption
	GenerateOption   = base.GenerateOption
	DeliverOption    = base.DeliverOption
	Runtime          = base.Runtime
	RuntimeOption    = base.RuntimeOption
	Reading          = base.Reading
	Value            = base.Value
	BloodPressure    = base.BloodPressure
	Message          = base.Message
	MessageHandler   = base.MessageHandler
	SensorSpec       = base.SensorSpec
	Catalog          = base.Catalog
	Summary          = base.Summary
	Transport        = base.Transport
	Observability    = base.Observability
	Field            = base.Field
	ChartRenderer    = base.ChartRenderer
	Archiver         = base.Archiver
	ReadingListener  = base.ReadingListener
	Rand             = base.Rand
	Spool            = base.Spool
	SpoolStats       = base.SpoolStats
	ReplayResult     = base.ReplayResult
	State            = base.State
)

const DefaultConfigPath = base.DefaultConfigPath

// Config helpers.
func LoadConfig(path string) (*Config, error) {
	return base.LoadConfig(path)
}

func LoadConfigOrDefault(path string) (*Config, error) {
	return base.LoadConfigOrDefault(path)
}

func LoadEnvFile(files ...string) error {
	return base.LoadEnvFile(files...)
}

func DefaultCatalog() Catalog {
	return base.DefaultCatalog()
}

func NewRand(seed uint64) Rand {
	return base.NewRand(seed)
}

// Flow builder helpers.
func Conf(path string, opts ...FlowOption) (*Flow, error) {
	return base.Conf(path, opts...)
}

func ConfFromConfig(cfg *Config, opts ...FlowOption) (*Flow, error) {
	return base.ConfFromConfig(cfg, opts...)
}

func WithFlowOptions(opts ...RuntimeOption) FlowOption {
	return base.WithFlowOptions(opts...)
}

func GenerateWithRand(r Rand) GenerateOption {
	return base.GenerateWithRand(r)
}

func GenerateWithSeed(seed uint64) GenerateOption {
	return base.GenerateWithSeed(seed)
}

func GenerateWithAnomalyRate(p float64) GenerateOption {
	return base.GenerateWithAnomalyRate(p)
}

func GenerateEvery(d time.Duration) GenerateOption {
	return base.GenerateEvery(d)
}

func DeliverTransport(t Transport) DeliverOption {
	return base.DeliverTransport(t)
}

func DeliverCallback(name string, fn MessageHandler) DeliverOption {
	return base.DeliverCallback(name, fn)
}

func DeliverListener(l ReadingListener) DeliverOption {
	return base.DeliverListener(l)
}

func DeliverObservability(obs Observability) DeliverOption {
	return base.DeliverObservability(obs)
}

func DeliverCharts(c ChartRenderer) DeliverOption {
	return base.DeliverCharts(c)
}

// Runtime and options.
func NewRuntime(cfg *Config, opts ...RuntimeOption) (*Runtime, error) {
	return base.NewRuntime(cfg, opts...)
}

func NewTransport(cfg TransportConfig, obs Observability) (Transport, error) {
	return base.NewTransport(cfg, obs)
}

func WithTransport(t Transport) RuntimeOption {
	return base.WithTransport(t)
}

func WithObservability(obs Observability) RuntimeOption {
	return base.WithObservability(obs)
}

func WithRand(r Rand) RuntimeOption {
	return base.WithRand(r)
}

func WithChartRenderer(c ChartRenderer) RuntimeOption {
	return base.WithChartRenderer(c)
}

func WithArchiver(a Archiver) RuntimeOption {
	return base.WithArchiver(a)
}

func WithOutput(w io.Writer) RuntimeOption {
	return base.WithOutput(w)
}

func WithSleeper(fn func(ctx context.Context, d time.Duration) error) RuntimeOption {
	return base.WithSleeper(fn)
}

func WithListener(l ReadingListener) RuntimeOption {
	return base.WithListener(l)
}

func WithSpool(sp Spool) RuntimeOption {
	return base.WithSpool(sp)
}

func WithRegistry(reg *prometheus.Registry) RuntimeOption {
	return base.WithRegistry(reg)
}

// Replay resends spooled messages through the configured transport.
func Replay(ctx context.Context, cfg *Config, opts ...RuntimeOption) (ReplayResult, error) {
	return base.Replay(ctx, cfg, opts...)
}

// Transport adapters.
func NewCallbackTransport(name string, fn MessageHandler) Transport {
	return base.NewCallbackTransport(name, fn)
}

func NewChannelTransport(name string, buffer int) (Transport, <-chan *Message, func()) {
	return base.NewChannelTransport(name, buffer)
}
