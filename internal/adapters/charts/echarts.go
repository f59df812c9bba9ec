package charts

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/components"
	"github.com/go-echarts/go-echarts/v2/opts"

	"github.com/ghalamif/VitalFlow/internal/domain"
	"github.com/ghalamif/VitalFlow/internal/ports"
)

const DefaultPath = "health_simulation_charts.html"

const (
	latencyColor = "#5470c6"
	powerColor   = "#91cc75"
	countColor   = "#ee6666"
)

// Renderer writes the three summary bar charts side by side into one HTML page.
type Renderer struct {
	path string
}

func NewRenderer(path string) *Renderer {
	if path == "" {
		path = DefaultPath
	}
	return &Renderer{path: path}
}

func (r *Renderer) Path() string { return r.path }

func (r *Renderer) Render(s *domain.Summary) error {
	if dir := filepath.Dir(r.path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create charts dir: %w", err)
		}
	}
	f, err := os.Create(r.path)
	if err != nil {
		return fmt.Errorf("create charts file: %w", err)
	}

	page := Page(s)
	if err := page.Render(f); err != nil {
		_ = f.Close()
		return fmt.Errorf("render charts: %w", err)
	}
	return f.Close()
}

// Page lays out mean latency, monthly power and transmission counts per sensor.
func Page(s *domain.Summary) *components.Page {
	names := s.Names()
	latency := make([]float64, len(names))
	power := make([]float64, len(names))
	counts := make([]float64, len(names))
	avg := s.AverageLatency()
	for i, n := range names {
		latency[i] = avg[n]
		power[i] = s.PowerStats[n]
		counts[i] = float64(s.TransmissionCounts[n])
	}

	page := components.NewPage()
	page.PageTitle = "Health Simulation Results"
	page.SetLayout(components.PageFlexLayout)
	page.AddCharts(
		bar("Average Latency per Sensor", "Latency (s)", names, latency, latencyColor),
		bar("Estimated Power Consumption", "kWh/month", names, power, powerColor),
		bar("Transmission Count per Sensor", "Messages", names, counts, countColor),
	)
	return page
}

func bar(title, yName string, names []string, values []float64, color string) *charts.Bar {
	b := charts.NewBar()
	b.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{Width: "520px", Height: "420px"}),
		charts.WithTitleOpts(opts.Title{Title: title}),
		charts.WithXAxisOpts(opts.XAxis{Name: "Sensor"}),
		charts.WithYAxisOpts(opts.YAxis{Name: yName}),
	)

	items := make([]opts.BarData, len(values))
	for i, v := range values {
		items[i] = opts.BarData{Value: v, ItemStyle: &opts.ItemStyle{Color: color}}
	}
	b.SetXAxis(names).AddSeries(yName, items)
	return b
}

var _ ports.ChartRenderer = (*Renderer)(nil)
