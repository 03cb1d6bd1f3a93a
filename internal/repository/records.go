package repository

import (
	"context"

	"github.com/eslsoft/masteryctx/internal/entity"
)

// RecordRepository supplies the raw academic records of one student.
type RecordRepository interface {
	LoadRecords(ctx context.Context, studentID int64) (*entity.Records, error)
	Ping(ctx context.Context) error
}

// RecordWriter stores raw records, replacing rows with the same id.
type RecordWriter interface {
	SaveRecords(ctx context.Context, studentID int64, records *entity.Records) error
}
