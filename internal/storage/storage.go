package storage

import (
	"context"

	"thalerSavings/internal/model"
)

// Storage defines a sink for decoded savings events.
type Storage interface {
	PutEventBatch(ctx context.Context, events []model.PoolEvent) error
}
