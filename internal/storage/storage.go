package storage

import (
	"context"

	"extrinsicScope/internal/model"
)

// Storage defines a sink for resolved outcomes.
type Storage interface {
	PutOutcomeBatch(ctx context.Context, records []model.OutcomeRecord) error
}
