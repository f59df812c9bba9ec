package metrics

import (
	"fmt"
	"sync"
	"time"
)

// Accumulator holds per-sensor latency sequences and transmission counts for
// the lifetime of a run. Only sensors registered at construction may record.
type Accumulator struct {
	mu        sync.RWMutex
	order     []string
	latencies map[string][]float64
	counts    map[string]int
}

func NewAccumulator(sensors []string) *Accumulator {
	a := &Accumulator{
		order:     append([]string(nil), sensors...),
		latencies: make(map[string][]float64, len(sensors)),
		counts:    make(map[string]int, len(sensors)),
	}
	for _, name := range sensors {
		a.latencies[name] = []float64{}
		a.counts[name] = 0
	}
	return a
}

// Record appends a latency sample and bumps the transmission count.
func (a *Accumulator) Record(sensor string, latency time.Duration) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if _, ok := a.counts[sensor]; !ok {
		return fmt.Errorf("metrics: unknown sensor %q", sensor)
	}
	a.latencies[sensor] = append(a.latencies[sensor], latency.Seconds())
	a.counts[sensor]++
	return nil
}

func (a *Accumulator) Sensors() []string {
	return append([]string(nil), a.order...)
}

// Latencies returns a deep copy of the latency sequences.
func (a *Accumulator) Latencies() map[string][]float64 {
	a.mu.RLock()
	defer a.mu.RUnlock()
	out := make(map[string][]float64, len(a.latencies))
	for name, lat := range a.latencies {
		out[name] = append([]float64{}, lat...)
	}
	return out
}

func (a *Accumulator) Counts() map[string]int {
	a.mu.RLock()
	defer a.mu.RUnlock()
	out := make(map[string]int, len(a.counts))
	for name, c := range a.counts {
		out[name] = c
	}
	return out
}

func (a *Accumulator) Count(sensor string) int {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.counts[sensor]
}

func (a *Accumulator) Total() int {
	a.mu.RLock()
	defer a.mu.RUnlock()
	var n int
	for _, c := range a.counts {
		n += c
	}
	return n
}
