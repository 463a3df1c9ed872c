package collector

import (
	"context"
	"time"

	"github.com/realestateinvestorceo/FirstPulse1.2/internal/model"
)

// Fetcher pulls property records and status events from an upstream feed.
type Fetcher interface {
	FetchProperties(ctx context.Context, since time.Time) ([]model.Property, error)
	FetchStatusEvents(ctx context.Context, since time.Time) ([]model.StatusEvent, error)
	Name() string
}
