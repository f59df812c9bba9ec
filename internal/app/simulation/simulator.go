package simulation

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"sync/atomic"
	"time"

	"github.com/ghalamif/VitalFlow/internal/app/metrics"
	"github.com/ghalamif/VitalFlow/internal/app/power"
	"github.com/ghalamif/VitalFlow/internal/domain"
	"github.com/ghalamif/VitalFlow/internal/ports"
)

// DefaultTickInterval is the pause between two ticks.
const DefaultTickInterval = time.Second

const reportTimeout = 30 * time.Second

// ReadingSource produces one reading for a sensor spec.
type ReadingSource interface {
	Generate(spec domain.SensorSpec) (domain.Reading, error)
}

// Sender ships a reading and records its delivery.
type Sender interface {
	Transmit(ctx context.Context, r domain.Reading) error
}

// Reporter persists and presents the end-of-run summary.
type Reporter interface {
	Report(ctx context.Context, s *domain.Summary) error
	Path() string
}

type Deps struct {
	Catalog   domain.Catalog
	Source    ReadingSource
	Sender    Sender
	Transport ports.Transport
	Metrics   *metrics.Accumulator
	Reporter  Reporter
	Obs       ports.Observability
}

type Option func(*Simulator)

func WithInterval(d time.Duration) Option {
	return func(s *Simulator) {
		if d > 0 {
			s.interval = d
		}
	}
}

func WithSleeper(fn func(ctx context.Context, d time.Duration) error) Option {
	return func(s *Simulator) {
		if fn != nil {
			s.sleep = fn
		}
	}
}

func WithClock(now func() time.Time) Option {
	return func(s *Simulator) {
		if now != nil {
			s.now = now
		}
	}
}

func WithOutput(w io.Writer) Option {
	return func(s *Simulator) {
		if w != nil {
			s.out = w
		}
	}
}

// Simulator drives the tick loop: every tick services each catalog sensor in
// order, then sleeps for the tick interval. The loop is single-threaded and
// observes cancellation only between ticks.
type Simulator struct {
	Deps

	interval time.Duration
	sleep    func(ctx context.Context, d time.Duration) error
	now      func() time.Time
	out      io.Writer

	state atomic.Int32
	ticks atomic.Int64
}

func New(deps Deps, opts ...Option) (*Simulator, error) {
	switch {
	case len(deps.Catalog) == 0:
		return nil, fmt.Errorf("catalog is required")
	case deps.Source == nil:
		return nil, fmt.Errorf("reading source is required")
	case deps.Sender == nil:
		return nil, fmt.Errorf("sender is required")
	case deps.Transport == nil:
		return nil, fmt.Errorf("transport is required")
	case deps.Metrics == nil:
		return nil, fmt.Errorf("metrics accumulator is required")
	case deps.Reporter == nil:
		return nil, fmt.Errorf("reporter is required")
	case deps.Obs == nil:
		return nil, fmt.Errorf("observability is required")
	}
	if err := deps.Catalog.Validate(); err != nil {
		return nil, fmt.Errorf("catalog: %w", err)
	}

	s := &Simulator{
		Deps:     deps,
		interval: DefaultTickInterval,
		sleep:    sleepCtx,
		now:      time.Now,
		out:      os.Stdout,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(s)
		}
	}
	return s, nil
}

func (s *Simulator) State() State { return State(s.state.Load()) }

// Ticks returns the number of completed ticks.
func (s *Simulator) Ticks() int64 { return s.ticks.Load() }

// Run connects the transport, ticks until ctx is cancelled or a tick fails,
// then runs the shutdown sequence. The shutdown sequence always runs once the
// transport is connected, so partial metrics are persisted even when the loop
// aborted.
func (s *Simulator) Run(ctx context.Context) error {
	if !s.state.CompareAndSwap(int32(Idle), int32(Running)) {
		return fmt.Errorf("simulator already %s", s.State())
	}
	if err := s.Transport.Connect(ctx); err != nil {
		s.state.Store(int32(Terminated))
		return fmt.Errorf("connect %s: %w", s.Transport.Name(), err)
	}
	s.Obs.LogInfo("simulation_started",
		Field("transport", s.Transport.Name()),
		Field("sensors", len(s.Catalog)),
		Field("interval", s.interval.String()))

	start := s.now()
	runErr := s.loop(ctx)
	if runErr != nil {
		s.Obs.LogCritical("simulation_aborted", runErr, Field("ticks", s.Ticks()))
	}

	s.state.Store(int32(ShuttingDown))
	shutdownErr := s.shutdown(s.now().Sub(start))
	s.state.Store(int32(Terminated))

	return errors.Join(runErr, shutdownErr)
}

func (s *Simulator) loop(ctx context.Context) error {
	// in-flight sends finish even after an interrupt
	sendCtx := context.WithoutCancel(ctx)

	for {
		if ctx.Err() != nil {
			return nil
		}

		tickStart := s.now()
		for _, spec := range s.Catalog {
			r, err := s.Source.Generate(spec)
			if err != nil {
				return err
			}
			if err := s.Sender.Transmit(sendCtx, r); err != nil {
				return err
			}
		}
		s.ticks.Add(1)
		s.Obs.IncCounter("vitalflow_ticks_total", "", 1)
		s.Obs.SetGauge("vitalflow_last_tick_seconds", s.now().Sub(tickStart).Seconds())

		if err := s.sleep(ctx, s.interval); err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return err
		}
	}
}

func (s *Simulator) shutdown(elapsed time.Duration) error {
	fmt.Fprintln(s.out, "\nSimulation Ended")

	summary := Summarize(s.Catalog, s.Metrics, elapsed)

	ctx, cancel := context.WithTimeout(context.Background(), reportTimeout)
	defer cancel()

	var errs []error
	if err := s.Reporter.Report(ctx, summary); err != nil {
		errs = append(errs, fmt.Errorf("report: %w", err))
	} else {
		fmt.Fprintf(s.out, "Results saved to %s\n", s.Reporter.Path())
		printAggregate(s.out, summary)
	}

	if err := s.Transport.Close(); err != nil {
		errs = append(errs, fmt.Errorf("close %s: %w", s.Transport.Name(), err))
	}
	s.Obs.LogInfo("simulation_stopped",
		Field("ticks", s.Ticks()),
		Field("elapsed", elapsed.String()),
		Field("transmissions", s.Metrics.Total()))
	return errors.Join(errs...)
}

// Summarize snapshots the accumulator and derives power statistics.
func Summarize(catalog domain.Catalog, acc *metrics.Accumulator, elapsed time.Duration) *domain.Summary {
	counts := acc.Counts()
	return &domain.Summary{
		LatencyRecords:     acc.Latencies(),
		TransmissionCounts: counts,
		PowerStats:         power.Estimate(catalog, counts, elapsed),
		Order:              catalog.Names(),
	}
}

func printAggregate(w io.Writer, s *domain.Summary) {
	avg := s.AverageLatency()
	var total float64
	for _, name := range s.Names() {
		total += avg[name]
	}
	n := len(s.Names())
	if n > 0 {
		total /= float64(n)
	}
	fmt.Fprintf(w, "Avg Latency: %.4f s\n", total)
	fmt.Fprintf(w, "Total Monthly Energy: %.6f kWh\n", power.Total(s.PowerStats))
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// Field is shorthand for a structured log field.
func Field(key string, v any) ports.Field {
	return ports.Field{Key: key, Value: v}
}
