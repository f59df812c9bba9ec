package sensors

import (
	"errors"
	"fmt"
	"math"
	"math/rand/v2"
	"time"

	"github.com/ghalamif/VitalFlow/internal/domain"
)

// DefaultAnomalyRate is the probability that a reading is replaced by an
// out-of-range excursion.
const DefaultAnomalyRate = 0.05

// ErrMissingThreshold is returned when a strategy needs a threshold the sensor
// does not define.
var ErrMissingThreshold = errors.New("sensors: missing threshold")

// Rand is the subset of *rand.Rand used by strategies.
type Rand interface {
	Float64() float64
}

// NewRand returns a PCG-backed source. A zero seed means time-seeded.
func NewRand(seed uint64) Rand {
	if seed == 0 {
		seed = uint64(time.Now().UnixNano())
	}
	return rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))
}

// Strategy produces the value and alert flag for one sensor type.
type Strategy interface {
	Sample(spec domain.SensorSpec, rng Rand, anomalyRate float64) (domain.Value, bool, error)
}

type Option func(*Generator)

func WithAnomalyRate(p float64) Option {
	return func(g *Generator) {
		g.anomalyRate = p
	}
}

// WithStrategy registers or replaces the strategy for a sensor type.
func WithStrategy(kind domain.SensorKind, s Strategy) Option {
	return func(g *Generator) {
		if s != nil {
			g.strategies[kind] = s
		}
	}
}

func WithClock(now func() time.Time) Option {
	return func(g *Generator) {
		if now != nil {
			g.now = now
		}
	}
}

// Generator turns sensor specs into readings by dispatching on the sensor type.
type Generator struct {
	strategies  map[domain.SensorKind]Strategy
	fallback    Strategy
	rng         Rand
	anomalyRate float64
	now         func() time.Time
}

func NewGenerator(rng Rand, opts ...Option) *Generator {
	if rng == nil {
		rng = NewRand(0)
	}
	g := &Generator{
		strategies: map[domain.SensorKind]Strategy{
			domain.KindBloodPressure: bloodPressure{},
			domain.KindECG:           ecg{},
			domain.KindHeartRate:     heartRate{},
			domain.KindOximeter:      oximeter{},
			domain.KindTemperature:   temperature{},
		},
		fallback:    uniform{},
		rng:         rng,
		anomalyRate: DefaultAnomalyRate,
		now:         time.Now,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(g)
		}
	}
	return g
}

// Generate produces one reading for spec.
func (g *Generator) Generate(spec domain.SensorSpec) (domain.Reading, error) {
	s, ok := g.strategies[spec.Kind]
	if !ok {
		s = g.fallback
	}
	val, alert, err := s.Sample(spec, g.rng, g.anomalyRate)
	if err != nil {
		return domain.Reading{}, fmt.Errorf("generate %s: %w", spec.Name, err)
	}
	return domain.Reading{
		SensorName: spec.Name,
		SensorType: spec.Kind,
		Value:      val,
		Unit:       spec.Unit,
		Timestamp:  g.now().UTC().Truncate(time.Second),
		Alert:      alert,
	}, nil
}

func between(rng Rand, lo, hi float64) float64 {
	return lo + (hi-lo)*rng.Float64()
}

func round(v float64, places int) float64 {
	p := math.Pow10(places)
	return math.Round(v*p) / p
}
