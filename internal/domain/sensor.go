package domain

import "fmt"

// SensorKind is the type tag used to pick a generation strategy.
type SensorKind string

const (
	KindECG           SensorKind = "ecg"
	KindHeartRate     SensorKind = "bpm"
	KindBloodPressure SensorKind = "blood_pressure"
	KindOximeter      SensorKind = "spo2"
	KindTemperature   SensorKind = "body_temp"
)

// Range is an inclusive [Low, High] band.
type Range struct {
	Low  float64 `json:"low" yaml:"low"`
	High float64 `json:"high" yaml:"high"`
}

func (r Range) Contains(v float64) bool { return v >= r.Low && v <= r.High }

// SensorSpec describes one simulated medical sensor. Specs are built once at
// startup and never mutated.
type SensorSpec struct {
	Name         string     `json:"name"`
	Kind         SensorKind `json:"type"`
	Unit         string     `json:"unit"`
	Normal       Range      `json:"normal_range"`
	CriticalHigh *float64   `json:"critical_threshold_high,omitempty"`
	CriticalLow  *float64   `json:"critical_threshold_low,omitempty"`
	// DataFrequency is descriptive metadata; it does not gate emission cadence.
	DataFrequency int     `json:"data_frequency"`
	PowerUsage    float64 `json:"power_usage"`
}

// BreachesHigh reports whether v is at or above the critical-high threshold.
// An absent threshold never fires.
func (s SensorSpec) BreachesHigh(v float64) bool {
	return s.CriticalHigh != nil && v >= *s.CriticalHigh
}

// BreachesLow reports whether v is at or below the critical-low threshold.
func (s SensorSpec) BreachesLow(v float64) bool {
	return s.CriticalLow != nil && v <= *s.CriticalLow
}

func (s SensorSpec) Validate() error {
	if s.Name == "" {
		return fmt.Errorf("sensor name is required")
	}
	if s.Kind == "" {
		return fmt.Errorf("sensor %s: type is required", s.Name)
	}
	if s.Normal.Low > s.Normal.High {
		return fmt.Errorf("sensor %s: normal range low %.2f > high %.2f", s.Name, s.Normal.Low, s.Normal.High)
	}
	if s.PowerUsage < 0 {
		return fmt.Errorf("sensor %s: power usage must be >= 0", s.Name)
	}
	return nil
}

// Threshold returns a pointer suitable for SensorSpec.CriticalHigh/CriticalLow.
func Threshold(v float64) *float64 { return &v }
