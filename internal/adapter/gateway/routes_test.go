package gateway

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/eslsoft/masteryctx/internal/entity"
	"github.com/eslsoft/masteryctx/internal/repository"
	"github.com/eslsoft/masteryctx/internal/usecase"
	"github.com/eslsoft/masteryctx/internal/usecase/mastery"
)

var knownID = uuid.MustParse("5d3c1a8e-8f2b-4d64-9a57-0c1f6f2b9e11")

type fakeUsecase struct {
	mu           sync.RWMutex
	lastAssemble usecase.AssembleRequest
	lastFocus    *usecase.FocusQuery
	lastList     *repository.ListSnapshotQuery
}

func (f *fakeUsecase) Assemble(_ context.Context, req usecase.AssembleRequest) (*entity.Snapshot, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.lastAssemble = req
	asOf := time.Date(2026, 3, 13, 0, 0, 0, 0, time.UTC)
	if req.AsOf != nil {
		asOf = *req.AsOf
	}
	return &entity.Snapshot{
		ID:        knownID,
		StudentID: req.StudentID,
		AsOf:      asOf,
		Context:   mastery.Build(asOf, entity.Records{}),
		CreatedAt: asOf,
	}, nil
}

func (f *fakeUsecase) AssembleRecords(_ context.Context, asOf *time.Time, records *entity.Records) (*entity.LearningContext, error) {
	lc := mastery.Build(*asOf, *records)
	return &lc, nil
}

func (f *fakeUsecase) GetSnapshot(_ context.Context, id uuid.UUID) (*entity.Snapshot, error) {
	if id != knownID {
		return nil, entity.ErrSnapshotNotFound
	}
	return &entity.Snapshot{ID: id, StudentID: 7}, nil
}

func (f *fakeUsecase) ListSnapshots(_ context.Context, query *repository.ListSnapshotQuery) ([]entity.Snapshot, int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.lastList = query
	return []entity.Snapshot{{ID: knownID, StudentID: query.StudentID}}, 1, nil
}

func (f *fakeUsecase) FocusTopics(_ context.Context, query *usecase.FocusQuery) ([]entity.FocusTopic, int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.lastFocus = query
	if strings.Contains(query.Filter, "nope") {
		return nil, 0, entity.ErrInvalidFilter
	}
	return []entity.FocusTopic{{CourseCode: "MATH101", TopicContext: entity.TopicContext{TopicID: 10}}}, 1, nil
}

func newTestServer(t *testing.T) (*httptest.Server, *fakeUsecase) {
	t.Helper()
	uc := &fakeUsecase{}
	mux, err := NewServeMux(NewRoutes(uc))
	if err != nil {
		t.Fatalf("NewServeMux returned error: %v", err)
	}
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv, uc
}

func do(t *testing.T, method, url, body string) (*http.Response, map[string]any) {
	t.Helper()
	req, err := http.NewRequest(method, url, strings.NewReader(body))
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("%s %s: %v", method, url, err)
	}
	defer resp.Body.Close()
	var out map[string]any
	_ = json.NewDecoder(resp.Body).Decode(&out)
	return resp, out
}

func TestAssembleRoute(t *testing.T) {
	srv, uc := newTestServer(t)

	resp, body := do(t, http.MethodPost, srv.URL+"/v1/students/7/context", `{"as_of":"2026-03-01"}`)
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("expected 201, got %d", resp.StatusCode)
	}
	if body["id"] != knownID.String() || body["as_of"] != "2026-03-01" {
		t.Fatalf("unexpected body: %v", body)
	}
	if uc.lastAssemble.StudentID != 7 || uc.lastAssemble.AsOf == nil {
		t.Fatalf("unexpected usecase request: %+v", uc.lastAssemble)
	}

	resp, _ = do(t, http.MethodPost, srv.URL+"/v1/students/7/context", "")
	if resp.StatusCode != http.StatusCreated || uc.lastAssemble.AsOf != nil {
		t.Fatalf("expected an empty body to default the date, got %d %+v", resp.StatusCode, uc.lastAssemble)
	}

	for _, tc := range []struct {
		url, body string
	}{
		{"/v1/students/abc/context", ""},
		{"/v1/students/0/context", ""},
		{"/v1/students/7/context", `{"as_of":"yesterday"}`},
		{"/v1/students/7/context", `{not json`},
	} {
		resp, _ := do(t, http.MethodPost, srv.URL+tc.url, tc.body)
		if resp.StatusCode != http.StatusBadRequest {
			t.Fatalf("%s %q: expected 400, got %d", tc.url, tc.body, resp.StatusCode)
		}
	}
}

func TestAssembleRecordsRoute(t *testing.T) {
	srv, _ := newTestServer(t)

	payload := `{"as_of":"2026-03-13","records":{
		"courses":[{"id":1,"name":"Calculus I","code":"MATH101"}],
		"topics":[{"id":"10","course_id":1,"name":"Limits"}],
		"mastery":[{"topic_id":10,"mastery_score":0.3}],
		"assignments":[{"id":1,"topic_id":10,"name":"PS3","due_date":"2026-03-15","weight":20}]
	}}`
	resp, body := do(t, http.MethodPost, srv.URL+"/v1/context/assemble", payload)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d: %v", resp.StatusCode, body)
	}
	stats, _ := body["summary_stats"].(map[string]any)
	if stats["critical_topics"] != float64(1) {
		t.Fatalf("expected one critical topic, got %v", body["summary_stats"])
	}
}

func TestSnapshotRoutes(t *testing.T) {
	srv, uc := newTestServer(t)

	resp, body := do(t, http.MethodGet, srv.URL+"/v1/snapshots/"+knownID.String(), "")
	if resp.StatusCode != http.StatusOK || body["student_id"] != float64(7) {
		t.Fatalf("unexpected response %d %v", resp.StatusCode, body)
	}
	if resp, _ := do(t, http.MethodGet, srv.URL+"/v1/snapshots/"+uuid.NewString(), ""); resp.StatusCode != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", resp.StatusCode)
	}
	if resp, _ := do(t, http.MethodGet, srv.URL+"/v1/snapshots/not-a-uuid", ""); resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", resp.StatusCode)
	}

	resp, body = do(t, http.MethodGet, srv.URL+"/v1/snapshots?student_id=7&page_no=2&page_size=5&order_by=as_of", "")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	if uc.lastList.StudentID != 7 || uc.lastList.PageNo != 2 || uc.lastList.PageSize != 5 || uc.lastList.OrderBy != "as_of" {
		t.Fatalf("unexpected list query: %+v", uc.lastList)
	}
	page, _ := body["pagination"].(map[string]any)
	if page["total"] != float64(1) || page["page_no"] != float64(2) {
		t.Fatalf("unexpected pagination: %v", body["pagination"])
	}

	for _, query := range []string{"page_no=abc", "page_size=1.5", "page_no=4294967296"} {
		if resp, _ := do(t, http.MethodGet, srv.URL+"/v1/snapshots?"+query, ""); resp.StatusCode != http.StatusBadRequest {
			t.Fatalf("%s: expected 400, got %d", query, resp.StatusCode)
		}
	}
}

func TestFocusRoute(t *testing.T) {
	srv, uc := newTestServer(t)

	resp, body := do(t, http.MethodGet, srv.URL+"/v1/students/7/focus?filter=mastery+%3C+0.5&as_of=2026-03-13", "")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	if uc.lastFocus.Filter != "mastery < 0.5" || uc.lastFocus.AsOf == nil || uc.lastFocus.PageSize != repository.DefaultPageSize {
		t.Fatalf("unexpected focus query: %+v", uc.lastFocus)
	}
	topics, _ := body["topics"].([]any)
	if len(topics) != 1 {
		t.Fatalf("expected one topic, got %v", body["topics"])
	}

	if resp, _ := do(t, http.MethodGet, srv.URL+"/v1/students/7/focus?filter=nope", ""); resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected 400 for a rejected filter, got %d", resp.StatusCode)
	}
	if resp, _ := do(t, http.MethodGet, srv.URL+"/v1/students/7/focus?page_no=abc", ""); resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected 400 for a malformed page number, got %d", resp.StatusCode)
	}
}
