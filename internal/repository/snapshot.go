package repository

import (
	"context"

	"github.com/google/uuid"

	"github.com/eslsoft/masteryctx/internal/entity"
)

// ListSnapshotQuery holds parameters for listing persisted contexts.
type ListSnapshotQuery struct {
	Pagination
	FilterOrder

	// StudentID restricts the listing when non-zero.
	StudentID int64
}

// SnapshotRepository persists assembled learning contexts.
type SnapshotRepository interface {
	Save(ctx context.Context, snapshot *entity.Snapshot) error
	Get(ctx context.Context, id uuid.UUID) (*entity.Snapshot, error)
	List(ctx context.Context, query *ListSnapshotQuery) ([]entity.Snapshot, int64, error)
}
