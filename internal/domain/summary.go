package domain

import "sort"

// Summary is the end-of-run report persisted to disk.
type Summary struct {
	LatencyRecords     map[string][]float64 `json:"latency_records"`
	TransmissionCounts map[string]int       `json:"transmission_counts"`
	PowerStats         map[string]float64   `json:"power_stats"`

	// Order is the catalog order used when presenting the summary.
	Order []string `json:"-"`
}

// AverageLatency returns the mean latency per sensor, zero when a sensor never
// transmitted.
func (s *Summary) AverageLatency() map[string]float64 {
	out := make(map[string]float64, len(s.LatencyRecords))
	for name, lat := range s.LatencyRecords {
		if len(lat) == 0 {
			out[name] = 0
			continue
		}
		var sum float64
		for _, v := range lat {
			sum += v
		}
		out[name] = sum / float64(len(lat))
	}
	for _, name := range s.Order {
		if _, ok := out[name]; !ok {
			out[name] = 0
		}
	}
	return out
}

// Names returns sensor names in presentation order.
func (s *Summary) Names() []string {
	if len(s.Order) > 0 {
		return s.Order
	}
	names := make([]string, 0, len(s.TransmissionCounts))
	for name := range s.TransmissionCounts {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

