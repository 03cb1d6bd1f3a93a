package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/eslsoft/masteryctx/internal/entity"
	"github.com/eslsoft/masteryctx/internal/infrastructure/config"
	"github.com/eslsoft/masteryctx/internal/infrastructure/database"
	"github.com/eslsoft/masteryctx/internal/repository"
)

func newTestDriver(t *testing.T) *database.Driver {
	t.Helper()
	name := strings.NewReplacer("/", "_", " ", "_").Replace(t.Name())
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared&_fk=1", name)
	drv, err := database.Open(config.DriverSQLite, dsn)
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	t.Cleanup(func() { _ = drv.Close() })
	if err := database.Migrate(context.Background(), drv); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return drv
}

func day(t *testing.T, v string) *time.Time {
	t.Helper()
	d, err := time.Parse("2006-01-02", v)
	if err != nil {
		t.Fatalf("parse %q: %v", v, err)
	}
	return &d
}

func sampleRecords(t *testing.T) *entity.Records {
	return &entity.Records{
		Courses: []entity.Course{
			{ID: 2, Name: "World History"},
			{ID: 1, Name: "Calculus I", Code: "MATH101", SemesterStart: day(t, "2026-01-13"), SemesterEnd: day(t, "2026-05-08")},
		},
		Topics: []entity.Topic{
			{ID: 10, CourseID: entity.Int64Ptr(1), Name: "Limits"},
			{ID: 11, Name: "Orphan"},
		},
		Mastery: []entity.MasteryRecord{
			{TopicID: 10, Score: 0.35, LastUpdated: day(t, "2026-03-01")},
			{TopicID: 10, Score: 0.45},
		},
		Assignments: []entity.Assessment{
			entity.NewAssessment(entity.SourceAssignment, entity.AssessmentInput{
				ID: 1, CourseID: entity.Int64Ptr(1), TopicID: entity.Int64Ptr(10),
				Name: "Problem Set 3", Type: "homework", Date: day(t, "2026-03-15"), Weight: entity.Float64Ptr(20),
			}),
		},
		Quizzes: []entity.Assessment{
			entity.NewAssessment(entity.SourceQuiz, entity.AssessmentInput{ID: 1, TopicID: entity.Int64Ptr(10), Date: day(t, "2026-03-16")}),
		},
		Events: []entity.Assessment{
			entity.NewAssessment(entity.SourceEvent, entity.AssessmentInput{ID: 1, CourseID: entity.Int64Ptr(1)}),
		},
	}
}

func TestRecordRepositoryRoundTrip(t *testing.T) {
	ctx := context.Background()
	repo := NewRecordRepository(newTestDriver(t))

	if err := repo.Ping(ctx); err != nil {
		t.Fatalf("Ping returned error: %v", err)
	}
	if err := repo.SaveRecords(ctx, 7, sampleRecords(t)); err != nil {
		t.Fatalf("SaveRecords returned error: %v", err)
	}

	got, err := repo.LoadRecords(ctx, 7)
	if err != nil {
		t.Fatalf("LoadRecords returned error: %v", err)
	}

	if len(got.Courses) != 2 || got.Courses[0].ID != 1 || got.Courses[1].ID != 2 {
		t.Fatalf("expected courses ordered by id, got %+v", got.Courses)
	}
	calc := got.Courses[0]
	if calc.Code != "MATH101" || calc.SemesterStart == nil || !calc.SemesterStart.Equal(*day(t, "2026-01-13")) {
		t.Fatalf("unexpected course: %+v", calc)
	}
	if got.Courses[1].SemesterStart != nil || got.Courses[1].Code != "" {
		t.Fatalf("expected nullable course columns to stay empty, got %+v", got.Courses[1])
	}
	if got.Topics[1].CourseID != nil {
		t.Fatalf("expected orphan topic without course")
	}
	if len(got.Mastery) != 2 || got.Mastery[1].Score != 0.45 || got.Mastery[1].LastUpdated != nil {
		t.Fatalf("expected mastery rows in insertion order, got %+v", got.Mastery)
	}

	a := got.Assignments[0]
	if a.Name != "Problem Set 3" || a.Type != "homework" || a.Weight != 20 || a.Date == nil {
		t.Fatalf("unexpected assignment: %+v", a)
	}
	q := got.Quizzes[0]
	if q.Type != "quiz" || q.Weight != 10 || q.Name != "Quiz" {
		t.Fatalf("unexpected quiz: %+v", q)
	}
	e := got.Events[0]
	if e.Date != nil || e.Type != "event" || e.Name != "Event" || e.Weight != 0 {
		t.Fatalf("unexpected event: %+v", e)
	}
}

func TestRecordRepositoryStudentScope(t *testing.T) {
	ctx := context.Background()
	repo := NewRecordRepository(newTestDriver(t))

	records := sampleRecords(t)
	if err := repo.SaveRecords(ctx, 7, records); err != nil {
		t.Fatalf("SaveRecords returned error: %v", err)
	}
	// Saving again replaces the mastery rows instead of duplicating them.
	records.Mastery = records.Mastery[:1]
	if err := repo.SaveRecords(ctx, 7, records); err != nil {
		t.Fatalf("SaveRecords returned error: %v", err)
	}

	got, err := repo.LoadRecords(ctx, 7)
	if err != nil {
		t.Fatalf("LoadRecords returned error: %v", err)
	}
	if len(got.Mastery) != 1 || len(got.Courses) != 2 {
		t.Fatalf("expected upserted rows, got %d mastery and %d courses", len(got.Mastery), len(got.Courses))
	}

	other, err := repo.LoadRecords(ctx, 8)
	if err != nil {
		t.Fatalf("LoadRecords returned error: %v", err)
	}
	if len(other.Mastery) != 0 || len(other.Courses) != 2 {
		t.Fatalf("expected shared courses and no mastery for another student, got %+v", other)
	}

	if _, err := repo.LoadRecords(ctx, 0); !errors.Is(err, entity.ErrInvalidStudentID) {
		t.Fatalf("expected ErrInvalidStudentID, got %v", err)
	}
}

func newSnapshot(studentID int64, asOf string, createdAt time.Time) *entity.Snapshot {
	d, _ := time.Parse("2006-01-02", asOf)
	return &entity.Snapshot{
		ID:        uuid.New(),
		StudentID: studentID,
		AsOf:      d,
		Context: entity.LearningContext{
			Metadata: entity.ContextMetadata{CurrentDate: asOf, ContextVersion: "1.0", Builder: "deterministic"},
			Courses:  []entity.CourseContext{},
		},
		CreatedAt: createdAt,
	}
}

func TestSnapshotRepository(t *testing.T) {
	ctx := context.Background()
	repo := NewSnapshotRepository(newTestDriver(t))

	base := time.Date(2026, 3, 13, 9, 0, 0, 0, time.UTC)
	first := newSnapshot(1, "2026-03-10", base)
	second := newSnapshot(1, "2026-03-13", base.Add(time.Hour))
	third := newSnapshot(2, "2026-03-13", base.Add(2*time.Hour))
	for _, s := range []*entity.Snapshot{first, second, third} {
		if err := repo.Save(ctx, s); err != nil {
			t.Fatalf("Save returned error: %v", err)
		}
	}

	if err := repo.Save(ctx, first); !errors.Is(err, entity.ErrDuplicateSnapshot) {
		t.Fatalf("expected ErrDuplicateSnapshot, got %v", err)
	}

	got, err := repo.Get(ctx, second.ID)
	if err != nil {
		t.Fatalf("Get returned error: %v", err)
	}
	if got.StudentID != 1 || got.Context.Metadata.CurrentDate != "2026-03-13" || !got.CreatedAt.Equal(second.CreatedAt) {
		t.Fatalf("unexpected snapshot: %+v", got)
	}

	if _, err := repo.Get(ctx, uuid.New()); !errors.Is(err, entity.ErrSnapshotNotFound) {
		t.Fatalf("expected ErrSnapshotNotFound, got %v", err)
	}

	list, total, err := repo.List(ctx, &repository.ListSnapshotQuery{
		Pagination: repository.Pagination{PageNo: 1, PageSize: 10},
		StudentID:  1,
	})
	if err != nil {
		t.Fatalf("List returned error: %v", err)
	}
	if total != 2 || len(list) != 2 || list[0].ID != second.ID {
		t.Fatalf("expected newest first for student 1, got total=%d %+v", total, list)
	}

	list, total, err = repo.List(ctx, &repository.ListSnapshotQuery{
		Pagination:  repository.Pagination{PageNo: 1, PageSize: 1},
		FilterOrder: repository.FilterOrder{Filter: "as_of >= '2026-03-11'", OrderBy: "created_at asc"},
	})
	if err != nil {
		t.Fatalf("List returned error: %v", err)
	}
	if total != 2 || len(list) != 1 || list[0].ID != second.ID {
		t.Fatalf("expected filtered first page, got total=%d %+v", total, list)
	}

	_, _, err = repo.List(ctx, &repository.ListSnapshotQuery{
		Pagination:  repository.Pagination{PageNo: 1, PageSize: 10},
		FilterOrder: repository.FilterOrder{Filter: "payload == 'x'"},
	})
	if !errors.Is(err, entity.ErrInvalidFilter) {
		t.Fatalf("expected ErrInvalidFilter, got %v", err)
	}
}
