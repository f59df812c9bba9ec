package ports

import (
	"context"

	"github.com/ghalamif/VitalFlow/internal/domain"
)

// ChartRenderer presents the end-of-run summary.
type ChartRenderer interface {
	Render(summary *domain.Summary) error
}

// Archiver ships the persisted summary file somewhere durable.
type Archiver interface {
	Archive(ctx context.Context, path string) error
}
