package domain

import "fmt"

// Catalog is the fixed, ordered set of sensors serviced every tick.
type Catalog []SensorSpec

// DefaultCatalog returns the five bedside sensors in emission order.
func DefaultCatalog() Catalog {
	return Catalog{
		{
			Name: "ECG", Kind: KindECG, Unit: "mV_rms",
			Normal:        Range{Low: 0.5, High: 2.0},
			CriticalHigh:  Threshold(3.0),
			DataFrequency: 20, PowerUsage: 0.05,
		},
		{
			Name: "HeartRate", Kind: KindHeartRate, Unit: "bpm",
			Normal:        Range{Low: 60, High: 100},
			CriticalHigh:  Threshold(120),
			CriticalLow:   Threshold(40),
			DataFrequency: 30, PowerUsage: 0.04,
		},
		{
			Name: "BloodPressure", Kind: KindBloodPressure, Unit: "mmHg",
			Normal:        Range{Low: 110, High: 130},
			CriticalHigh:  Threshold(140),
			CriticalLow:   Threshold(90),
			DataFrequency: 15, PowerUsage: 0.06,
		},
		{
			Name: "Oximeter", Kind: KindOximeter, Unit: "%",
			Normal:        Range{Low: 95, High: 100},
			CriticalLow:   Threshold(92),
			DataFrequency: 20, PowerUsage: 0.03,
		},
		{
			Name: "Temperature", Kind: KindTemperature, Unit: "°C",
			Normal:        Range{Low: 36.1, High: 37.5},
			CriticalHigh:  Threshold(38.0),
			CriticalLow:   Threshold(35.0),
			DataFrequency: 20, PowerUsage: 0.03,
		},
	}
}

func (c Catalog) Names() []string {
	out := make([]string, len(c))
	for i, s := range c {
		out[i] = s.Name
	}
	return out
}

func (c Catalog) Lookup(name string) (SensorSpec, bool) {
	for _, s := range c {
		if s.Name == name {
			return s, true
		}
	}
	return SensorSpec{}, false
}

func (c Catalog) Validate() error {
	if len(c) == 0 {
		return fmt.Errorf("catalog is empty")
	}
	seen := make(map[string]struct{}, len(c))
	for _, s := range c {
		if err := s.Validate(); err != nil {
			return err
		}
		if _, dup := seen[s.Name]; dup {
			return fmt.Errorf("duplicate sensor %q", s.Name)
		}
		seen[s.Name] = struct{}{}
	}
	return nil
}
