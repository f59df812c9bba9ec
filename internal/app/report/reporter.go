package report

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/ghalamif/VitalFlow/internal/domain"
	"github.com/ghalamif/VitalFlow/internal/ports"
)

// DefaultPath is where the summary lands when no path is configured.
const DefaultPath = "health_simulation_results.json"

// Reporter persists the run summary and hands it to the presentation and
// archival backends.
type Reporter struct {
	path     string
	charts   ports.ChartRenderer
	archiver ports.Archiver
	obs      ports.Observability
}

func NewReporter(path string, charts ports.ChartRenderer, archiver ports.Archiver, obs ports.Observability) *Reporter {
	if path == "" {
		path = DefaultPath
	}
	return &Reporter{path: path, charts: charts, archiver: archiver, obs: obs}
}

func (r *Reporter) Path() string { return r.path }

// Report writes the summary file, then renders charts and archives the file.
// A write failure is returned immediately and nothing is rendered.
func (r *Reporter) Report(ctx context.Context, s *domain.Summary) error {
	if err := WriteSummary(r.path, s); err != nil {
		return err
	}
	r.obs.LogInfo("summary_written", ports.Field{Key: "path", Value: r.path})

	if r.charts != nil {
		if err := r.charts.Render(s); err != nil {
			return fmt.Errorf("render charts: %w", err)
		}
	}
	if r.archiver != nil {
		if err := r.archiver.Archive(ctx, r.path); err != nil {
			return fmt.Errorf("archive summary: %w", err)
		}
	}
	return nil
}

// WriteSummary overwrites path with the indented JSON summary.
func WriteSummary(path string, s *domain.Summary) error {
	b, err := json.MarshalIndent(s, "", "    ")
	if err != nil {
		return fmt.Errorf("marshal summary: %w", err)
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create summary dir: %w", err)
		}
	}
	if err := os.WriteFile(path, append(b, '\n'), 0o644); err != nil {
		return fmt.Errorf("write summary %s: %w", path, err)
	}
	return nil
}

// ReadSummary loads a summary previously written by WriteSummary.
func ReadSummary(path string) (*domain.Summary, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var s domain.Summary
	if err := json.Unmarshal(b, &s); err != nil {
		return nil, fmt.Errorf("decode summary %s: %w", path, err)
	}
	return &s, nil
}
