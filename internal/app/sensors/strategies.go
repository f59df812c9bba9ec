package sensors

import (
	"fmt"

	"github.com/ghalamif/VitalFlow/internal/domain"
)

// Alert limits for the cuff are fixed clinical values, independent of the
// catalog thresholds.
const (
	systolicAlert  = 140.0
	diastolicAlert = 90.0
)

type bloodPressure struct{}

func (bloodPressure) Sample(_ domain.SensorSpec, rng Rand, p float64) (domain.Value, bool, error) {
	sys := between(rng, 105, 145)
	dia := between(rng, 65, 95)
	if rng.Float64() < p {
		sys += between(rng, 10, 35)
	}
	if rng.Float64() < p {
		dia += between(rng, 5, 25)
	}
	sys, dia = round(sys, 1), round(dia, 1)
	return domain.PressureValue(sys, dia), bloodPressureAlert(sys, dia), nil
}

func bloodPressureAlert(sys, dia float64) bool {
	return sys >= systolicAlert || dia >= diastolicAlert
}

type ecg struct{}

func (ecg) Sample(spec domain.SensorSpec, rng Rand, p float64) (domain.Value, bool, error) {
	if spec.CriticalHigh == nil {
		return domain.Value{}, false, fmt.Errorf("%w: %s needs critical_threshold_high", ErrMissingThreshold, spec.Name)
	}
	v := between(rng, spec.Normal.Low, spec.Normal.High)
	if rng.Float64() < p {
		v = *spec.CriticalHigh + 0.5
	}
	v = round(v, 3)
	return domain.ScalarValue(v), spec.BreachesHigh(v), nil
}

type heartRate struct{}

func (heartRate) Sample(spec domain.SensorSpec, rng Rand, p float64) (domain.Value, bool, error) {
	v := between(rng, spec.Normal.Low, spec.Normal.High)
	if rng.Float64() < p {
		v = excursion(rng, [2]float64{125, 160}, [2]float64{30, 45})
	}
	v = round(v, 1)
	return domain.ScalarValue(v), twoSidedAlert(spec, v), nil
}

type oximeter struct{}

func (oximeter) Sample(spec domain.SensorSpec, rng Rand, p float64) (domain.Value, bool, error) {
	if spec.CriticalLow == nil {
		return domain.Value{}, false, fmt.Errorf("%w: %s needs critical_threshold_low", ErrMissingThreshold, spec.Name)
	}
	v := between(rng, 94, 99)
	if rng.Float64() < p {
		v = between(rng, 85, 91)
	}
	v = round(v, 1)
	return domain.ScalarValue(v), spec.BreachesLow(v), nil
}

type temperature struct{}

func (temperature) Sample(spec domain.SensorSpec, rng Rand, p float64) (domain.Value, bool, error) {
	v := between(rng, spec.Normal.Low, spec.Normal.High)
	if rng.Float64() < p {
		v = excursion(rng, [2]float64{38.0, 39.5}, [2]float64{34.0, 35.0})
	}
	v = round(v, 2)
	return domain.ScalarValue(v), twoSidedAlert(spec, v), nil
}

// uniform serves sensor types without a dedicated strategy.
type uniform struct{}

func (uniform) Sample(spec domain.SensorSpec, rng Rand, _ float64) (domain.Value, bool, error) {
	return domain.ScalarValue(round(between(rng, spec.Normal.Low, spec.Normal.High), 2)), false, nil
}

// excursion picks one of two bands with equal odds and draws from it.
func excursion(rng Rand, high, low [2]float64) float64 {
	if rng.Float64() < 0.5 {
		return between(rng, high[0], high[1])
	}
	return between(rng, low[0], low[1])
}

func twoSidedAlert(spec domain.SensorSpec, v float64) bool {
	return spec.BreachesHigh(v) || spec.BreachesLow(v)
}
