package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"entgo.io/ent/dialect"
	entsql "entgo.io/ent/dialect/sql"
	"entgo.io/ent/dialect/sql/sqlgraph"
	"github.com/google/uuid"

	"github.com/eslsoft/masteryctx/internal/entity"
	"github.com/eslsoft/masteryctx/internal/infrastructure/database"
	"github.com/eslsoft/masteryctx/internal/repository"
	"github.com/eslsoft/masteryctx/pkg/datemath"
	"github.com/eslsoft/masteryctx/pkg/filterexpr"
)

var snapshotColumns = []string{"id", "student_id", "as_of", "payload", "created_at"}

// SnapshotRepository stores learning contexts through an ent SQL driver.
type SnapshotRepository struct {
	drv dialect.Driver
}

var _ repository.SnapshotRepository = (*SnapshotRepository)(nil)

// NewSnapshotRepository constructs an ent-backed snapshot repository.
func NewSnapshotRepository(drv *database.Driver) *SnapshotRepository {
	return &SnapshotRepository{drv: drv}
}

type listSnapshotsParams struct {
	StudentID     *int64
	AsOfFrom      *string
	AsOfTo        *string
	PrimaryKey    string
	PrimaryDesc   bool
	SecondaryKey  string
	SecondaryDesc bool
}

func (r *SnapshotRepository) Save(ctx context.Context, snapshot *entity.Snapshot) error {
	row, err := encodeSnapshot(snapshot)
	if err != nil {
		return err
	}
	query, args := entsql.Dialect(r.drv.Dialect()).
		Insert(database.TableSnapshots).
		Columns(snapshotColumns...).
		Values(row.id, row.studentID, row.asOf, string(row.payload), row.createdAt).
		Query()
	if err := r.drv.Exec(ctx, query, args, nil); err != nil {
		return translateSnapshotError(err)
	}
	return nil
}

func (r *SnapshotRepository) Get(ctx context.Context, id uuid.UUID) (*entity.Snapshot, error) {
	query, args := entsql.Dialect(r.drv.Dialect()).
		Select(snapshotColumns...).
		From(entsql.Table(database.TableSnapshots)).
		Where(entsql.EQ("id", id.String())).
		Limit(1).
		Query()

	snapshots, err := r.scan(ctx, query, args)
	if err != nil {
		return nil, fmt.Errorf("get snapshot: %w", err)
	}
	if len(snapshots) == 0 {
		return nil, entity.ErrSnapshotNotFound
	}
	return &snapshots[0], nil
}

func (r *SnapshotRepository) List(ctx context.Context, query *repository.ListSnapshotQuery) ([]entity.Snapshot, int64, error) {
	var params listSnapshotsParams
	if err := filterexpr.Bind(query, &params, listSnapshotsSchema); err != nil {
		return nil, 0, fmt.Errorf("%w: %v", entity.ErrInvalidFilter, err)
	}
	if query.StudentID > 0 {
		params.StudentID = &query.StudentID
	}

	b := entsql.Dialect(r.drv.Dialect())
	preds := snapshotPredicates(params)

	countSel := b.Select(entsql.Count("*")).From(entsql.Table(database.TableSnapshots))
	if len(preds) > 0 {
		countSel.Where(entsql.And(preds...))
	}
	countQuery, countArgs := countSel.Query()
	var total int64
	rows := &entsql.Rows{}
	if err := r.drv.Query(ctx, countQuery, countArgs, rows); err != nil {
		return nil, 0, fmt.Errorf("count snapshots: %w", err)
	}
	if rows.Next() {
		if err := rows.Scan(&total); err != nil {
			rows.Close()
			return nil, 0, fmt.Errorf("count snapshots: %w", err)
		}
	}
	if err := rows.Close(); err != nil {
		return nil, 0, fmt.Errorf("count snapshots: %w", err)
	}

	sel := b.Select(snapshotColumns...).From(entsql.Table(database.TableSnapshots))
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
	snapshots, err := r.scan(ctx, listQuery, listArgs)
	if err != nil {
		return nil, 0, fmt.Errorf("list snapshots: %w", err)
	}
	return snapshots, total, nil
}

func (r *SnapshotRepository) scan(ctx context.Context, query string, args []any) ([]entity.Snapshot, error) {
	rows := &entsql.Rows{}
	if err := r.drv.Query(ctx, query, args, rows); err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]entity.Snapshot, 0)
	for rows.Next() {
		var row snapshotRow
		if err := rows.Scan(&row.id, &row.studentID, &row.asOf, &row.payload, &row.createdAt); err != nil {
			return nil, err
		}
		snapshot, err := row.decode()
		if err != nil {
			return nil, err
		}
		out = append(out, *snapshot)
	}
	return out, rows.Err()
}

func snapshotPredicates(params listSnapshotsParams) []*entsql.Predicate {
	var preds []*entsql.Predicate
	if params.StudentID != nil {
		preds = append(preds, entsql.EQ("student_id", *params.StudentID))
	}
	if params.AsOfFrom != nil {
		preds = append(preds, entsql.GTE("as_of", normalizeAsOf(*params.AsOfFrom)))
	}
	if params.AsOfTo != nil {
		preds = append(preds, entsql.LTE("as_of", normalizeAsOf(*params.AsOfTo)))
	}
	return preds
}

func applySnapshotOrdering(sel *entsql.Selector, params listSnapshotsParams) {
	for _, term := range []struct {
		key  string
		desc bool
	}{
		{key: params.PrimaryKey, desc: params.PrimaryDesc},
		{key: params.SecondaryKey, desc: params.SecondaryDesc},
	} {
		field, ok := listSnapshotsSchema.Order.Fields[term.key]
		if !ok {
			continue
		}
		if term.desc {
			sel.OrderBy(entsql.Desc(field.Expr))
		} else {
			sel.OrderBy(entsql.Asc(field.Expr))
		}
	}
	sel.OrderBy(entsql.Asc("id"))
}

// normalizeAsOf turns any accepted date spelling into the stored layout so
// string comparison matches date order.
func normalizeAsOf(v string) string {
	if t, ok := datemath.ParseString(v); ok {
		return datemath.Format(t)
	}
	return v
}

type snapshotRow struct {
	id        string
	studentID int64
	asOf      string
	payload   []byte
	createdAt time.Time
}

func encodeSnapshot(s *entity.Snapshot) (snapshotRow, error) {
	if s == nil || s.ID == uuid.Nil {
		return snapshotRow{}, entity.ErrInvalidSnapshotID
	}
	payload, err := json.Marshal(s.Context)
	if err != nil {
		return snapshotRow{}, fmt.Errorf("encode snapshot payload: %w", err)
	}
	return snapshotRow{
		id:        s.ID.String(),
		studentID: s.StudentID,
		asOf:      datemath.Format(s.AsOf),
		payload:   payload,
		createdAt: s.CreatedAt.UTC(),
	}, nil
}

func (row snapshotRow) decode() (*entity.Snapshot, error) {
	id, err := uuid.Parse(row.id)
	if err != nil {
		return nil, fmt.Errorf("decode snapshot id %q: %w", row.id, err)
	}
	asOf, ok := datemath.ParseString(row.asOf)
	if !ok {
		return nil, fmt.Errorf("decode snapshot %s: bad as_of %q", row.id, row.asOf)
	}
	var lc entity.LearningContext
	if err := json.Unmarshal(row.payload, &lc); err != nil {
		return nil, fmt.Errorf("decode snapshot %s payload: %w", row.id, err)
	}
	return &entity.Snapshot{
		ID:        id,
		StudentID: row.studentID,
		AsOf:      asOf,
		Context:   lc,
		CreatedAt: row.createdAt.UTC(),
	}, nil
}

func translateSnapshotError(err error) error {
	if err == nil {
		return nil
	}
	if sqlgraph.IsUniqueConstraintError(err) || isPgUniqueViolation(err) {
		return fmt.Errorf("%w: %v", entity.ErrDuplicateSnapshot, err)
	}
	if errors.Is(err, entity.ErrInvalidSnapshotID) {
		return err
	}
	return fmt.Errorf("save snapshot: %w", err)
}
