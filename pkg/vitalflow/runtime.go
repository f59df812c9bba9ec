package vitalflow

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/ghalamif/VitalFlow/internal/adapters/archive"
	"github.com/ghalamif/VitalFlow/internal/adapters/charts"
	"github.com/ghalamif/VitalFlow/internal/adapters/monitor"
	"github.com/ghalamif/VitalFlow/internal/adapters/observability"
	"github.com/ghalamif/VitalFlow/internal/adapters/spool"
	"github.com/ghalamif/VitalFlow/internal/adapters/transport/coap"
	"github.com/ghalamif/VitalFlow/internal/adapters/transport/dryrun"
	"github.com/ghalamif/VitalFlow/internal/adapters/transport/influx"
	"github.com/ghalamif/VitalFlow/internal/adapters/transport/iothub"
	"github.com/ghalamif/VitalFlow/internal/adapters/transport/mqtt"
	"github.com/ghalamif/VitalFlow/internal/adapters/transport/nats"
	"github.com/ghalamif/VitalFlow/internal/adapters/transport/opcua"
	"github.com/ghalamif/VitalFlow/internal/adapters/transport/timescale"
	"github.com/ghalamif/VitalFlow/internal/app/config"
	"github.com/ghalamif/VitalFlow/internal/app/metrics"
	"github.com/ghalamif/VitalFlow/internal/app/report"
	"github.com/ghalamif/VitalFlow/internal/app/sensors"
	"github.com/ghalamif/VitalFlow/internal/app/simulation"
	"github.com/ghalamif/VitalFlow/internal/app/transmit"
	"github.com/ghalamif/VitalFlow/internal/domain"
)

// RuntimeOption customizes the dependencies used by Runtime.
type RuntimeOption func(*runtimeOverrides)

type runtimeOverrides struct {
	transport     Transport
	observability Observability
	rng           Rand
	charts        ChartRenderer
	archiver      Archiver
	out           io.Writer
	sleeper       func(ctx context.Context, d time.Duration) error
	listeners     []ReadingListener
	registry      *prometheus.Registry
	spool         Spool
}

// WithTransport injects a custom transport instead of the one named by transport.kind.
func WithTransport(t Transport) RuntimeOption {
	return func(o *runtimeOverrides) {
		o.transport = t
	}
}

// WithObservability plugs in a custom observability backend.
func WithObservability(obs Observability) RuntimeOption {
	return func(o *runtimeOverrides) {
		o.observability = obs
	}
}

// WithRand replaces the seeded random source (useful for deterministic runs).
func WithRand(r Rand) RuntimeOption {
	return func(o *runtimeOverrides) {
		o.rng = r
	}
}

// WithChartRenderer replaces the HTML chart page written at shutdown.
func WithChartRenderer(c ChartRenderer) RuntimeOption {
	return func(o *runtimeOverrides) {
		o.charts = c
	}
}

// WithArchiver replaces the S3 archiver configured under report.archive.
func WithArchiver(a Archiver) RuntimeOption {
	return func(o *runtimeOverrides) {
		o.archiver = a
	}
}

// WithOutput redirects the per-reading console lines and the final banner.
func WithOutput(w io.Writer) RuntimeOption {
	return func(o *runtimeOverrides) {
		o.out = w
	}
}

// WithSleeper replaces the pause used between ticks and between send retries.
func WithSleeper(fn func(ctx context.Context, d time.Duration) error) RuntimeOption {
	return func(o *runtimeOverrides) {
		o.sleeper = fn
	}
}

// WithListener registers a callback for every reading the transport accepted.
func WithListener(l ReadingListener) RuntimeOption {
	return func(o *runtimeOverrides) {
		if l != nil {
			o.listeners = append(o.listeners, l)
		}
	}
}

// WithRegistry makes the runtime register its metrics on reg.
func WithRegistry(reg *prometheus.Registry) RuntimeOption {
	return func(o *runtimeOverrides) {
		o.registry = reg
	}
}

// WithSpool replaces the file spool configured under spool.dir.
func WithSpool(sp Spool) RuntimeOption {
	return func(o *runtimeOverrides) {
		o.spool = sp
	}
}

// Runtime wires generator → transmitter → transport and the end-of-run
// reporter, and exposes simple lifecycle hooks for embedding the simulator in
// any Go service.
type Runtime struct {
	cfg       *Config
	obs       Observability
	transport Transport
	catalog   Catalog
	metrics   *metrics.Accumulator
	reporter  *report.Reporter
	sim       *simulation.Simulator
	monitor   *monitor.Server
	registry  *prometheus.Registry
	spool     Spool
	ownsSpool bool

	startMu sync.Mutex
	started time.Time
}

// NewRuntime bootstraps the default adapters (transport from transport.kind,
// zap + Prometheus observability, HTML charts, optional S3 archive and live
// monitor). RuntimeOption values override any of them.
func NewRuntime(cfg *Config, opts ...RuntimeOption) (*Runtime, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config is required")
	}

	var overrides runtimeOverrides
	for _, opt := range opts {
		if opt != nil {
			opt(&overrides)
		}
	}

	reg := overrides.registry
	if reg == nil {
		reg = prometheusRegistry()
	}

	obs := overrides.observability
	if obs == nil {
		logger, err := observability.NewLogger(cfg.Logging.Level, cfg.Logging.Development)
		if err != nil {
			return nil, err
		}
		obs = observability.NewPromObs(logger, reg)
	}

	tr := overrides.transport
	if tr == nil {
		var err error
		tr, err = NewTransport(cfg.Transport, obs)
		if err != nil {
			return nil, err
		}
	}

	catalog := domain.DefaultCatalog()
	acc := metrics.NewAccumulator(catalog.Names())

	rng := overrides.rng
	if rng == nil {
		rng = sensors.NewRand(cfg.Simulation.Seed)
	}
	anomaly := sensors.DefaultAnomalyRate
	if cfg.Simulation.AnomalyRate != nil {
		anomaly = *cfg.Simulation.AnomalyRate
	}
	gen := sensors.NewGenerator(rng, sensors.WithAnomalyRate(anomaly))

	var renderer ChartRenderer
	switch {
	case overrides.charts != nil:
		renderer = overrides.charts
	case !cfg.Report.DisableCharts:
		renderer = charts.NewRenderer(cfg.Report.ChartsPath)
	}

	var archiver Archiver
	switch {
	case overrides.archiver != nil:
		archiver = overrides.archiver
	case cfg.Report.Archive.Enabled:
		client, err := archive.NewClient(context.Background(), cfg.Report.Archive)
		if err != nil {
			return nil, err
		}
		archiver = archive.NewS3Archiver(client, cfg.Report.Archive)
	}

	out := overrides.out
	if out == nil {
		out = os.Stdout
	}

	rt := &Runtime{
		cfg:       cfg,
		obs:       obs,
		transport: tr,
		catalog:   catalog,
		metrics:   acc,
		registry:  reg,
	}

	switch {
	case overrides.spool != nil:
		rt.spool = overrides.spool
	case cfg.Spool.Dir != "":
		sp, err := spool.Open(cfg.Spool.Dir)
		if err != nil {
			return nil, fmt.Errorf("open spool: %w", err)
		}
		rt.spool, rt.ownsSpool = sp, true
	}

	txOpts := []transmit.Option{
		transmit.WithOutput(out),
		transmit.WithSleeper(overrides.sleeper),
		transmit.WithSpool(rt.spool),
	}
	for _, l := range overrides.listeners {
		txOpts = append(txOpts, transmit.WithListener(l))
	}
	if cfg.Monitor.Addr != "" {
		rt.monitor = monitor.NewServer(cfg.Monitor.Addr, reg, rt.Snapshot, obs)
		txOpts = append(txOpts, transmit.WithListener(rt.monitor.Hub()))
	}
	sender := transmit.New(tr, acc, obs, cfg.Transport.Retry, txOpts...)

	rt.reporter = report.NewReporter(cfg.Report.OutputPath, renderer, archiver, obs)

	sim, err := simulation.New(simulation.Deps{
		Catalog:   catalog,
		Source:    gen,
		Sender:    sender,
		Transport: tr,
		Metrics:   acc,
		Reporter:  rt.reporter,
		Obs:       obs,
	},
		simulation.WithInterval(cfg.Simulation.TickInterval),
		simulation.WithSleeper(overrides.sleeper),
		simulation.WithOutput(out),
	)
	if err != nil {
		if rt.ownsSpool {
			_ = rt.spool.Close()
		}
		return nil, err
	}
	rt.sim = sim
	return rt, nil
}

func prometheusRegistry() *prometheus.Registry {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return reg
}

// NewTransport builds the transport named by cfg.Kind.
func NewTransport(cfg TransportConfig, obs Observability) (Transport, error) {
	switch cfg.Kind {
	case config.KindIoTHub, "":
		return iothub.New(cfg.IoTHub, mqtt.WithObservability(obs))
	case config.KindMQTT:
		return mqtt.New(cfg.MQTT, mqtt.WithObservability(obs))
	case config.KindNATS:
		return nats.New(cfg.NATS)
	case config.KindCoAP:
		return coap.New(cfg.CoAP)
	case config.KindInflux:
		return influx.New(cfg.Influx)
	case config.KindTimescale:
		return timescale.New(cfg.Timescale)
	case config.KindOPCUA:
		return opcua.New(cfg.OPCUA)
	case config.KindDryRun:
		return dryrun.New(cfg.DryRun), nil
	default:
		return nil, fmt.Errorf("unknown transport kind %q", cfg.Kind)
	}
}

// Run starts the monitor (when configured) and drives the simulation until ctx
// is cancelled or a send aborts the run. The summary is written either way.
func (r *Runtime) Run(ctx context.Context) error {
	if r == nil {
		return fmt.Errorf("runtime is nil")
	}
	r.startMu.Lock()
	r.started = time.Now()
	r.startMu.Unlock()

	if r.monitor != nil {
		if err := r.monitor.Start(); err != nil {
			return fmt.Errorf("start monitor: %w", err)
		}
	}

	runErr := r.sim.Run(ctx)
	return errors.Join(runErr, r.Shutdown(context.Background()))
}

// Shutdown stops the monitor server, closes the spool and flushes logs. The
// transport itself is released by the simulation loop.
func (r *Runtime) Shutdown(ctx context.Context) error {
	var errs []error

	if r.ownsSpool {
		if err := r.spool.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close spool: %w", err))
		}
	}
	if r.monitor != nil {
		shutdownCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		defer cancel()
		if err := r.monitor.Shutdown(shutdownCtx); err != nil {
			errs = append(errs, err)
		}
	}
	if syncer, ok := r.obs.(interface{ Sync() error }); ok {
		// stderr sync fails on some terminals; nothing to recover
		_ = syncer.Sync()
	}
	return errors.Join(errs...)
}

// Snapshot summarizes everything sent so far.
func (r *Runtime) Snapshot() *Summary {
	r.startMu.Lock()
	started := r.started
	r.startMu.Unlock()

	var elapsed time.Duration
	if !started.IsZero() {
		elapsed = time.Since(started)
	}
	return simulation.Summarize(r.catalog, r.metrics, elapsed)
}

func (r *Runtime) State() State { return r.sim.State() }

func (r *Runtime) Ticks() int64 { return r.sim.Ticks() }

func (r *Runtime) Catalog() Catalog { return r.catalog }

func (r *Runtime) TransportName() string { return r.transport.Name() }

// ReportPath is where the summary file is written at shutdown.
func (r *Runtime) ReportPath() string { return r.reporter.Path() }

// Registry exposes the Prometheus registry the runtime reports into.
func (r *Runtime) Registry() *prometheus.Registry { return r.registry }
