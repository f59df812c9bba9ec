package power

import (
	"time"

	"github.com/ghalamif/VitalFlow/internal/domain"
)

// SecondsPerMonth uses a fixed 30-day month.
const SecondsPerMonth = 60 * 60 * 24 * 30

// Estimate converts transmission counts over the elapsed run time into an
// estimated kWh/month figure per sensor. A zero-length run reports zero for
// every sensor.
func Estimate(catalog domain.Catalog, counts map[string]int, elapsed time.Duration) map[string]float64 {
	months := elapsed.Seconds() / SecondsPerMonth
	stats := make(map[string]float64, len(catalog))
	for _, s := range catalog {
		if months <= 0 {
			stats[s.Name] = 0
			continue
		}
		stats[s.Name] = (float64(counts[s.Name]) * s.PowerUsage / months) / 1000
	}
	return stats
}

// Total sums the per-sensor estimates.
func Total(stats map[string]float64) float64 {
	var sum float64
	for _, v := range stats {
		sum += v
	}
	return sum
}
