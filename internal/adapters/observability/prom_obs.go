package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/ghalamif/VitalFlow/internal/ports"
)

const (
	ReadingsSent  = "vitalflow_readings_sent_total"
	Alerts        = "vitalflow_alerts_total"
	SendFailures  = "vitalflow_send_failures_total"
	Spooled       = "vitalflow_spooled_total"
	Replayed      = "vitalflow_replayed_total"
	WSDropped     = "vitalflow_ws_events_dropped_total"
	Ticks         = "vitalflow_ticks_total"
	SendLatency   = "vitalflow_send_latency_seconds"
	LastTickTaken = "vitalflow_last_tick_seconds"
)

// PromObs logs through zap and keeps the simulator metrics in prometheus.
type PromObs struct {
	log      *zap.Logger
	vecs     map[string]*prometheus.CounterVec
	counters map[string]prometheus.Counter
	gauges   map[string]prometheus.Gauge
	histos   map[string]*prometheus.HistogramVec
}

// NewPromObs registers the metrics on reg (the default registerer when nil).
func NewPromObs(logger *zap.Logger, reg prometheus.Registerer) *PromObs {
	if logger == nil {
		logger = zap.NewNop()
	}
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}

	sent := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: ReadingsSent,
		Help: "Readings accepted by the ingestion transport.",
	}, []string{"sensor"})
	alerts := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: Alerts,
		Help: "Readings sent with the alert flag set.",
	}, []string{"sensor"})
	failures := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: SendFailures,
		Help: "Readings the transport could not deliver after all attempts.",
	}, []string{"sensor"})
	spooled := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: Spooled,
		Help: "Undelivered messages kept in the spool.",
	}, []string{"sensor"})
	replayed := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: Replayed,
		Help: "Spooled messages delivered by a replay.",
	}, []string{"sensor"})
	dropped := prometheus.NewCounter(prometheus.CounterOpts{
		Name: WSDropped,
		Help: "Live monitor events dropped because the feed buffer was full.",
	})
	ticks := prometheus.NewCounter(prometheus.CounterOpts{
		Name: Ticks,
		Help: "Completed simulation ticks.",
	})
	lastTick := prometheus.NewGauge(prometheus.GaugeOpts{
		Name: LastTickTaken,
		Help: "Time spent servicing every sensor in the last tick.",
	})
	latency := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    SendLatency,
		Help:    "Wall-clock latency of a send, retries included.",
		Buckets: prometheus.ExponentialBuckets(0.001, 2, 14),
	}, []string{"sensor"})

	reg.MustRegister(sent, alerts, failures, spooled, replayed, dropped, ticks, lastTick, latency)

	return &PromObs{
		log: logger,
		vecs: map[string]*prometheus.CounterVec{
			ReadingsSent: sent,
			Alerts:       alerts,
			SendFailures: failures,
			Spooled:      spooled,
			Replayed:     replayed,
		},
		counters: map[string]prometheus.Counter{
			Ticks:     ticks,
			WSDropped: dropped,
		},
		gauges: map[string]prometheus.Gauge{
			LastTickTaken: lastTick,
		},
		histos: map[string]*prometheus.HistogramVec{
			SendLatency: latency,
		},
	}
}

func (p *PromObs) Logger() *zap.Logger { return p.log }

func (p *PromObs) LogInfo(msg string, fields ...ports.Field) {
	p.log.Info(msg, zapFields(fields)...)
}

func (p *PromObs) LogError(msg string, err error, fields ...ports.Field) {
	p.log.Error(msg, append(zapFields(fields), zap.Error(err))...)
}

func (p *PromObs) LogCritical(msg string, err error, fields ...ports.Field) {
	p.log.Error(msg, append(zapFields(fields), zap.Bool("critical", true), zap.Error(err))...)
}

func (p *PromObs) IncCounter(name, sensor string, v float64) {
	if vec, ok := p.vecs[name]; ok {
		vec.WithLabelValues(sensor).Add(v)
		return
	}
	if c, ok := p.counters[name]; ok {
		c.Add(v)
	}
}

func (p *PromObs) ObserveLatency(name, sensor string, seconds float64) {
	if h, ok := p.histos[name]; ok {
		h.WithLabelValues(sensor).Observe(seconds)
	}
}

func (p *PromObs) SetGauge(name string, v float64) {
	if g, ok := p.gauges[name]; ok {
		g.Set(v)
	}
}

func (p *PromObs) Sync() error {
	return p.log.Sync()
}

func zapFields(fields []ports.Field) []zap.Field {
	out := make([]zap.Field, 0, len(fields)+2)
	for _, f := range fields {
		out = append(out, zap.Any(f.Key, f.Value))
	}
	return out
}

var _ ports.Observability = (*PromObs)(nil)
