package ports

import (
	"context"

	"github.com/ghalamif/VitalFlow/internal/domain"
)

// Transport delivers messages to an ingestion endpoint. It is connected once at
// startup and closed once at shutdown; Send blocks until the endpoint accepts
// the message or fails.
type Transport interface {
	Name() string
	Connect(ctx context.Context) error
	Send(ctx context.Context, msg *domain.Message) error
	Close() error
}
