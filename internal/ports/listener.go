package ports

import (
	"time"

	"github.com/ghalamif/VitalFlow/internal/domain"
)

// ReadingListener is notified after a reading was accepted by the transport.
type ReadingListener interface {
	OnReading(r domain.Reading, latency time.Duration)
}
