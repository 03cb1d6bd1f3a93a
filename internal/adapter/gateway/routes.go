// Package gateway exposes the learning context usecase as REST JSON routes on
// a grpc-gateway mux.
package gateway

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"

	"github.com/grpc-ecosystem/grpc-gateway/v2/runtime"

	"github.com/eslsoft/masteryctx/internal/adapter/mapping"
	"github.com/eslsoft/masteryctx/internal/entity"
	"github.com/eslsoft/masteryctx/internal/usecase"
)

const maxBodyBytes = 8 << 20

// Routes binds REST paths to the usecase.
type Routes struct {
	uc usecase.LearningContextUsecase
}

func NewRoutes(uc usecase.LearningContextUsecase) *Routes {
	return &Routes{uc: uc}
}

// NewServeMux builds a gateway mux with every route registered.
func NewServeMux(routes *Routes, opts ...runtime.ServeMuxOption) (*runtime.ServeMux, error) {
	mux := runtime.NewServeMux(opts...)
	if err := routes.Register(mux); err != nil {
		return nil, err
	}
	return mux, nil
}

// Register adds the routes to mux.
func (rt *Routes) Register(mux *runtime.ServeMux) error {
	for _, route := range []struct {
		method, pattern string
		handler         func(*runtime.ServeMux) runtime.HandlerFunc
	}{
		{http.MethodPost, "/v1/students/{student_id}/context", rt.assemble},
		{http.MethodPost, "/v1/context/assemble", rt.assembleRecords},
		{http.MethodGet, "/v1/snapshots/{id}", rt.getSnapshot},
		{http.MethodGet, "/v1/snapshots", rt.listSnapshots},
		{http.MethodGet, "/v1/students/{student_id}/focus", rt.listFocusTopics},
	} {
		if err := mux.HandlePath(route.method, route.pattern, route.handler(mux)); err != nil {
			return fmt.Errorf("register %s %s: %w", route.method, route.pattern, err)
		}
	}
	return nil
}

func (rt *Routes) assemble(mux *runtime.ServeMux) runtime.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request, params map[string]string) {
		studentID, err := parseStudentID(params["student_id"])
		if err != nil {
			writeError(mux, w, r, err)
			return
		}
		var body mapping.AssembleRequest
		if err := decodeBody(r, &body); err != nil {
			writeError(mux, w, r, err)
			return
		}
		if body.AsOf == "" {
			body.AsOf = r.URL.Query().Get("as_of")
		}
		asOf, err := mapping.ParseAsOf(body.AsOf)
		if err != nil {
			writeError(mux, w, r, err)
			return
		}

		snapshot, err := rt.uc.Assemble(r.Context(), usecase.AssembleRequest{StudentID: studentID, AsOf: asOf})
		if err != nil {
			writeError(mux, w, r, err)
			return
		}
		writeJSON(w, http.StatusCreated, mapping.ToSnapshot(snapshot))
	}
}

func (rt *Routes) assembleRecords(mux *runtime.ServeMux) runtime.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request, _ map[string]string) {
		var body mapping.AssembleRecordsRequest
		if err := decodeBody(r, &body); err != nil {
			writeError(mux, w, r, err)
			return
		}
		asOf, err := mapping.ParseAsOf(body.AsOf)
		if err != nil {
			writeError(mux, w, r, err)
			return
		}

		records := mapping.ToRecords(body.Records)
		lc, err := rt.uc.AssembleRecords(r.Context(), asOf, &records)
		if err != nil {
			writeError(mux, w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, lc)
	}
}

func (rt *Routes) getSnapshot(mux *runtime.ServeMux) runtime.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request, params map[string]string) {
		id, err := mapping.ParseSnapshotID(params["id"])
		if err != nil {
			writeError(mux, w, r, err)
			return
		}
		snapshot, err := rt.uc.GetSnapshot(r.Context(), id)
		if err != nil {
			writeError(mux, w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, mapping.ToSnapshot(snapshot))
	}
}

func (rt *Routes) listSnapshots(mux *runtime.ServeMux) runtime.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request, _ map[string]string) {
		q := r.URL.Query()
		page, err := parsePagination(q)
		if err != nil {
			writeError(mux, w, r, err)
			return
		}
		req := &mapping.ListSnapshotsRequest{
			Pagination: page,
			Filter:     q.Get("filter"),
			OrderBy:    q.Get("order_by"),
		}
		if raw := q.Get("student_id"); raw != "" {
			id, err := parseStudentID(raw)
			if err != nil {
				writeError(mux, w, r, err)
				return
			}
			req.StudentID = id
		}

		query := mapping.ToListSnapshotQuery(req)
		items, total, err := rt.uc.ListSnapshots(r.Context(), query)
		if err != nil {
			writeError(mux, w, r, err)
			return
		}
		resp, err := mapping.ToPaginationResponse(query.Pagination, total)
		if err != nil {
			writeError(mux, w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, &mapping.ListSnapshotsResponse{
			Snapshots:  mapping.ToSnapshots(items),
			Pagination: resp,
		})
	}
}

func (rt *Routes) listFocusTopics(mux *runtime.ServeMux) runtime.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request, params map[string]string) {
		studentID, err := parseStudentID(params["student_id"])
		if err != nil {
			writeError(mux, w, r, err)
			return
		}
		q := r.URL.Query()
		pageReq, err := parsePagination(q)
		if err != nil {
			writeError(mux, w, r, err)
			return
		}
		query, err := mapping.ToFocusQuery(&mapping.ListFocusTopicsRequest{
			Pagination: pageReq,
			StudentID:  studentID,
			AsOf:       q.Get("as_of"),
			Filter:     q.Get("filter"),
			OrderBy:    q.Get("order_by"),
		})
		if err != nil {
			writeError(mux, w, r, err)
			return
		}

		topics, total, err := rt.uc.FocusTopics(r.Context(), query)
		if err != nil {
			writeError(mux, w, r, err)
			return
		}
		page, err := mapping.ToPaginationResponse(query.Pagination, total)
		if err != nil {
			writeError(mux, w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, &mapping.ListFocusTopicsResponse{Topics: topics, Pagination: page})
	}
}

var errBadBody = errors.New("malformed request body")

func decodeBody(r *http.Request, v any) error {
	if r.Body == nil {
		return nil
	}
	data, err := io.ReadAll(io.LimitReader(r.Body, maxBodyBytes))
	if err != nil {
		return fmt.Errorf("read body: %w", err)
	}
	if len(data) == 0 {
		return nil
	}
	if err := json.Unmarshal(data, v); err != nil {
		return &badRequestError{err: fmt.Errorf("%w: %v", errBadBody, err)}
	}
	return nil
}

type badRequestError struct{ err error }

func (e *badRequestError) Error() string { return e.err.Error() }
func (e *badRequestError) Unwrap() error { return e.err }

func parseStudentID(raw string) (int64, error) {
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("%w: %q", entity.ErrInvalidStudentID, raw)
	}
	return id, nil
}

// parsePagination reads page_no and page_size. Absent values fall back to the
// defaults; anything that is not an int32 is rejected.
func parsePagination(q url.Values) (*mapping.PaginationRequest, error) {
	var page mapping.PaginationRequest
	for _, p := range []struct {
		key string
		dst *int32
	}{
		{"page_no", &page.PageNo},
		{"page_size", &page.PageSize},
	} {
		raw := q.Get(p.key)
		if raw == "" {
			continue
		}
		n, err := strconv.ParseInt(raw, 10, 32)
		if err != nil {
			return nil, &badRequestError{err: fmt.Errorf("invalid %s %q", p.key, raw)}
		}
		*p.dst = int32(n)
	}
	return &page, nil
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}
