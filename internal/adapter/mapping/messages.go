package mapping

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/samber/lo"

	"github.com/eslsoft/masteryctx/internal/entity"
	"github.com/eslsoft/masteryctx/internal/repository"
	"github.com/eslsoft/masteryctx/internal/usecase"
	"github.com/eslsoft/masteryctx/pkg/datemath"
)

// PaginationRequest is the page selector shared by list calls.
type PaginationRequest struct {
	PageNo   int32 `json:"page_no,omitempty"`
	PageSize int32 `json:"page_size,omitempty"`
}

// PaginationResponse echoes the effective page and the total match count.
type PaginationResponse struct {
	PageNo   int32 `json:"page_no"`
	PageSize int32 `json:"page_size"`
	Total    int32 `json:"total"`
}

type AssembleRequest struct {
	StudentID int64  `json:"student_id"`
	AsOf      string `json:"as_of,omitempty"`
}

type AssembleRecordsRequest struct {
	AsOf    string     `json:"as_of,omitempty"`
	Records RecordsDTO `json:"records"`
}

type GetSnapshotRequest struct {
	ID string `json:"id"`
}

type ListSnapshotsRequest struct {
	Pagination *PaginationRequest `json:"pagination,omitempty"`
	StudentID  int64              `json:"student_id,omitempty"`
	Filter     string             `json:"filter,omitempty"`
	OrderBy    string             `json:"order_by,omitempty"`
}

type ListSnapshotsResponse struct {
	Snapshots  []Snapshot          `json:"snapshots"`
	Pagination *PaginationResponse `json:"pagination"`
}

type ListFocusTopicsRequest struct {
	Pagination *PaginationRequest `json:"pagination,omitempty"`
	StudentID  int64              `json:"student_id"`
	AsOf       string             `json:"as_of,omitempty"`
	Filter     string             `json:"filter,omitempty"`
	OrderBy    string             `json:"order_by,omitempty"`
}

type ListFocusTopicsResponse struct {
	Topics     []entity.FocusTopic `json:"topics"`
	Pagination *PaginationResponse `json:"pagination"`
}

// Snapshot is the wire form of a stored learning context.
type Snapshot struct {
	ID        string                 `json:"id"`
	StudentID int64                  `json:"student_id"`
	AsOf      string                 `json:"as_of"`
	CreatedAt time.Time              `json:"created_at"`
	Context   entity.LearningContext `json:"context"`
}

func ToSnapshot(s *entity.Snapshot) *Snapshot {
	if s == nil {
		return nil
	}
	return &Snapshot{
		ID:        s.ID.String(),
		StudentID: s.StudentID,
		AsOf:      datemath.Format(s.AsOf),
		CreatedAt: s.CreatedAt.UTC(),
		Context:   s.Context,
	}
}

func ToSnapshots(items []entity.Snapshot) []Snapshot {
	return lo.Map(items, func(s entity.Snapshot, _ int) Snapshot { return *ToSnapshot(&s) })
}

// ParseAsOf reads an optional assembly date. Empty means "today".
func ParseAsOf(raw string) (*time.Time, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, nil
	}
	t, ok := datemath.ParseString(raw)
	if !ok {
		return nil, fmt.Errorf("%w: %q", entity.ErrInvalidAsOf, raw)
	}
	return &t, nil
}

// ParseSnapshotID validates a snapshot id.
func ParseSnapshotID(raw string) (uuid.UUID, error) {
	id, err := uuid.Parse(strings.TrimSpace(raw))
	if err != nil || id == uuid.Nil {
		return uuid.Nil, fmt.Errorf("%w: %q", entity.ErrInvalidSnapshotID, raw)
	}
	return id, nil
}

// ToPagination converts a request page selector; nil selects the defaults.
func ToPagination(p *PaginationRequest) repository.Pagination {
	var out repository.Pagination
	if p != nil {
		out = repository.Pagination{PageNo: p.PageNo, PageSize: p.PageSize}
	}
	out.Normalize()
	return out
}

func ToPaginationResponse(p repository.Pagination, total int64) (*PaginationResponse, error) {
	total32, err := safeInt32("total", total)
	if err != nil {
		return nil, err
	}
	return &PaginationResponse{PageNo: p.PageNo, PageSize: p.PageSize, Total: total32}, nil
}

func ToListSnapshotQuery(req *ListSnapshotsRequest) *repository.ListSnapshotQuery {
	return &repository.ListSnapshotQuery{
		Pagination:  ToPagination(req.Pagination),
		FilterOrder: repository.FilterOrder{Filter: req.Filter, OrderBy: req.OrderBy},
		StudentID:   req.StudentID,
	}
}

func ToFocusQuery(req *ListFocusTopicsRequest) (*usecase.FocusQuery, error) {
	asOf, err := ParseAsOf(req.AsOf)
	if err != nil {
		return nil, err
	}
	return &usecase.FocusQuery{
		Pagination:  ToPagination(req.Pagination),
		FilterOrder: repository.FilterOrder{Filter: req.Filter, OrderBy: req.OrderBy},
		StudentID:   req.StudentID,
		AsOf:        asOf,
	}, nil
}
