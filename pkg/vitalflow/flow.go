package vitalflow

import (
	"context"
	"fmt"
	"time"
)

// Flow is a convenience builder that lets callers say Conf → Generate → Deliver
// without touching the underlying wiring.
type Flow struct {
	cfg  *Config
	opts []RuntimeOption
}

// FlowOption mutates the Flow after configuration is loaded.
type FlowOption func(*Flow)

// GenerateOption configures the reading side: randomness, anomaly rate, tick pacing.
type GenerateOption func(*Flow)

// DeliverOption configures the delivery side: transport, listeners, reporting.
type DeliverOption func(*Flow)

// Conf loads YAML from disk, applies FlowOption values, and returns a Flow builder.
func Conf(path string, opts ...FlowOption) (*Flow, error) {
	cfg, err := LoadConfig(path)
	if err != nil {
		return nil, err
	}
	return ConfFromConfig(cfg, opts...)
}

// ConfFromConfig bootstraps a Flow from an in-memory Config.
func ConfFromConfig(cfg *Config, opts ...FlowOption) (*Flow, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config is required")
	}
	f := &Flow{cfg: cfg}
	for _, opt := range opts {
		if opt != nil {
			opt(f)
		}
	}
	return f, nil
}

// Config returns the underlying configuration so callers can tweak it before building a runtime.
func (f *Flow) Config() *Config {
	if f == nil {
		return nil
	}
	return f.cfg
}

// Options appends raw RuntimeOption values to the builder for advanced scenarios.
func (f *Flow) Options(opts ...RuntimeOption) *Flow {
	if f == nil {
		return nil
	}
	f.appendOptions(opts...)
	return f
}

// Generate records reading-side overrides.
func (f *Flow) Generate(opts ...GenerateOption) *Flow {
	if f == nil {
		return nil
	}
	for _, opt := range opts {
		if opt != nil {
			opt(f)
		}
	}
	return f
}

// Deliver records delivery-side overrides and builds a Runtime ready to run.
func (f *Flow) Deliver(opts ...DeliverOption) (*Runtime, error) {
	if f == nil {
		return nil, fmt.Errorf("flow is nil")
	}
	for _, opt := range opts {
		if opt != nil {
			opt(f)
		}
	}
	return NewRuntime(f.cfg, f.opts...)
}

// Run is a shortcut for Deliver + runtime.Run.
func (f *Flow) Run(ctx context.Context, opts ...DeliverOption) error {
	rt, err := f.Deliver(opts...)
	if err != nil {
		return err
	}
	return rt.Run(ctx)
}

// WithFlowOptions appends RuntimeOption values during Conf.
func WithFlowOptions(opts ...RuntimeOption) FlowOption {
	return func(f *Flow) {
		if f != nil {
			f.appendOptions(opts...)
		}
	}
}

// GenerateWithRand makes readings reproducible with a caller-supplied source.
func GenerateWithRand(r Rand) GenerateOption {
	return func(f *Flow) {
		if f != nil && r != nil {
			f.appendOptions(WithRand(r))
		}
	}
}

// GenerateWithSeed seeds the default random source.
func GenerateWithSeed(seed uint64) GenerateOption {
	return func(f *Flow) {
		if f != nil {
			f.cfg.Simulation.Seed = seed
		}
	}
}

// GenerateWithAnomalyRate overrides simulation.anomaly_rate.
func GenerateWithAnomalyRate(p float64) GenerateOption {
	return func(f *Flow) {
		if f != nil {
			f.cfg.Simulation.AnomalyRate = &p
		}
	}
}

// GenerateEvery overrides the tick interval.
func GenerateEvery(d time.Duration) GenerateOption {
	return func(f *Flow) {
		if f != nil && d > 0 {
			f.cfg.Simulation.TickInterval = d
		}
	}
}

// DeliverTransport injects a custom Transport.
func DeliverTransport(t Transport) DeliverOption {
	return func(f *Flow) {
		if f != nil && t != nil {
			f.appendOptions(WithTransport(t))
		}
	}
}

// DeliverCallback installs a transport built from a simple callback function.
func DeliverCallback(name string, fn MessageHandler) DeliverOption {
	return func(f *Flow) {
		if f != nil {
			f.appendOptions(WithTransport(NewCallbackTransport(name, fn)))
		}
	}
}

// DeliverListener registers a ReadingListener for accepted readings.
func DeliverListener(l ReadingListener) DeliverOption {
	return func(f *Flow) {
		if f != nil && l != nil {
			f.appendOptions(WithListener(l))
		}
	}
}

// DeliverObservability replaces the default observability backend.
func DeliverObservability(obs Observability) DeliverOption {
	return func(f *Flow) {
		if f != nil && obs != nil {
			f.appendOptions(WithObservability(obs))
		}
	}
}

// DeliverCharts replaces the default chart renderer.
func DeliverCharts(c ChartRenderer) DeliverOption {
	return func(f *Flow) {
		if f != nil && c != nil {
			f.appendOptions(WithChartRenderer(c))
		}
	}
}

func (f *Flow) appendOptions(opts ...RuntimeOption) {
	for _, opt := range opts {
		if opt != nil {
			f.opts = append(f.opts, opt)
		}
	}
}
