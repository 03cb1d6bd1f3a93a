package repository

import (
	"context"
	"errors"
	"fmt"

	"entgo.io/ent/dialect"
	entsql "entgo.io/ent/dialect/sql"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/eslsoft/masteryctx/internal/entity"
	"github.com/eslsoft/masteryctx/internal/infrastructure/database"
	"github.com/eslsoft/masteryctx/internal/repository"
	"github.com/eslsoft/masteryctx/pkg/filterexpr"
)

// PgxSnapshotRepository stores learning contexts on a native pgx pool. It
// shares the context_snapshots table with SnapshotRepository.
type PgxSnapshotRepository struct {
	pool *pgxpool.Pool
}

var _ repository.SnapshotRepository = (*PgxSnapshotRepository)(nil)

// NewPgxSnapshotRepository constructs a pgx-backed snapshot repository.
func NewPgxSnapshotRepository(pool *pgxpool.Pool) *PgxSnapshotRepository {
	return &PgxSnapshotRepository{pool: pool}
}

func pgBuilder() *entsql.DialectBuilder { return entsql.Dialect(dialect.Postgres) }

func (r *PgxSnapshotRepository) Save(ctx context.Context, snapshot *entity.Snapshot) error {
	row, err := encodeSnapshot(snapshot)
	if err != nil {
		return err
	}
	query, args := pgBuilder().
		Insert(database.TableSnapshots).
		Columns(snapshotColumns...).
		Values(row.id, row.studentID, row.asOf, row.payload, row.createdAt).
		Query()
	if _, err := r.pool.Exec(ctx, query, args...); err != nil {
		return translateSnapshotError(err)
	}
	return nil
}

func (r *PgxSnapshotRepository) Get(ctx context.Context, id uuid.UUID) (*entity.Snapshot, error) {
	query, args := pgBuilder().
		Select(snapshotColumns...).
		From(entsql.Table(database.TableSnapshots)).
		Where(entsql.EQ("id", id.String())).
		Query()

	var row snapshotRow
	err := r.pool.QueryRow(ctx, query, args...).Scan(&row.id, &row.studentID, &row.asOf, &row.payload, &row.createdAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, entity.ErrSnapshotNotFound
		}
		return nil, fmt.Errorf("get snapshot: %w", err)
	}
	return row.decode()
}

func (r *PgxSnapshotRepository) List(ctx context.Context, query *repository.ListSnapshotQuery) ([]entity.Snapshot, int64, error) {
	var params listSnapshotsParams
	if err := filterexpr.Bind(query, &params, listSnapshotsSchema); err != nil {
		return nil, 0, fmt.Errorf("%w: %v", entity.ErrInvalidFilter, err)
	}
	if query.StudentID > 0 {
		params.StudentID = &query.StudentID
	}
	preds := snapshotPredicates(params)

	countSel := pgBuilder().Select(entsql.Count("*")).From(entsql.Table(database.TableSnapshots))
	if len(preds) > 0 {
		countSel.Where(entsql.And(preds...))
	}
	countQuery, countArgs := countSel.Query()
	var total int64
	if err := r.pool.QueryRow(ctx, countQuery, countArgs...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count snapshots: %w", err)
	}

	sel := pgBuilder().Select(snapshotColumns...).From(entsql.Table(database.TableSnapshots))
	if len(preds) > 0 {
		sel.Where(entsql.And(preds...))
	}
	applySnapshotOrdering(sel, params)
	if offset := query.Offset(); offset > 0 {
		sel.Offset(int(offset))
	}
	if query.PageSize > 0 {
		sel.Limit(int(query.PageSize))
	}
	listQuery, listArgs := sel.Query()

	rows, err := r.pool.Query(ctx, listQuery, listArgs...)
	if err != nil {
		return nil, 0, fmt.Errorf("list snapshots: %w", err)
	}
	defer rows.Close()

	out := make([]entity.Snapshot, 0)
	for rows.Next() {
		var row snapshotRow
		if err := rows.Scan(&row.id, &row.studentID, &row.asOf, &row.payload, &row.createdAt); err != nil {
			return nil, 0, fmt.Errorf("scan snapshot: %w", err)
		}
		snapshot, err := row.decode()
		if err != nil {
			return nil, 0, err
		}
		out = append(out, *snapshot)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("list snapshots: %w", err)
	}
	return out, total, nil
}

func isPgUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}
