package mastery

import (
	"testing"

	"github.com/eslsoft/masteryctx/internal/entity"
)

func TestBuildAgenda(t *testing.T) {
	asOf := date(t, "2026-03-13")
	agenda := BuildAgenda(asOf, sampleRecords(t), 0)

	if agenda.HorizonDays != DefaultAgendaHorizon {
		t.Fatalf("expected default horizon, got %d", agenda.HorizonDays)
	}
	if agenda.UpcomingDeadlines != 4 {
		t.Fatalf("expected 4 upcoming deadlines, got %d", agenda.UpcomingDeadlines)
	}
	if agenda.DeadlineClustering || len(agenda.HighRiskWeeks) != 0 {
		t.Fatalf("expected no clustering, got %+v", agenda.HighRiskWeeks)
	}

	var priority []int
	for _, it := range agenda.HighestPriority {
		priority = append(priority, it.DaysUntil)
	}
	if len(priority) != 3 || priority[0] != 2 || priority[1] != 3 || priority[2] != 7 {
		t.Fatalf("unexpected priority order: %v", priority)
	}
	if len(agenda.Next7Days) != 3 || len(agenda.Next14Days) != 1 {
		t.Fatalf("expected 3/1 timeline split, got %d/%d", len(agenda.Next7Days), len(agenda.Next14Days))
	}
	if agenda.Next14Days[0].Name != "Midterm" {
		t.Fatalf("expected the midterm in the second week, got %+v", agenda.Next14Days[0])
	}

	if len(agenda.CourseLoads) != 2 {
		t.Fatalf("expected a load per course, got %d", len(agenda.CourseLoads))
	}
	for _, load := range agenda.CourseLoads {
		if load.UpcomingCount != 2 || load.Load != entity.LoadMedium {
			t.Fatalf("unexpected load for course %d: %+v", load.CourseID, load)
		}
	}
}

func TestAgendaClustering(t *testing.T) {
	asOf := date(t, "2026-03-13")
	records := entity.Records{
		Courses: []entity.Course{{ID: 1}, {ID: 2}},
		Assignments: []entity.Assessment{
			entity.NewAssessment(entity.SourceAssignment, entity.AssessmentInput{ID: 1, CourseID: entity.Int64Ptr(1), Date: datePtr(t, "2026-03-14"), Weight: entity.Float64Ptr(5)}),
			entity.NewAssessment(entity.SourceAssignment, entity.AssessmentInput{ID: 2, CourseID: entity.Int64Ptr(1), Date: datePtr(t, "2026-03-14"), Weight: entity.Float64Ptr(40)}),
			entity.NewAssessment(entity.SourceAssignment, entity.AssessmentInput{ID: 3, CourseID: entity.Int64Ptr(1), Date: datePtr(t, "2026-03-18")}),
			entity.NewAssessment(entity.SourceAssignment, entity.AssessmentInput{ID: 4, CourseID: entity.Int64Ptr(1), Date: datePtr(t, "2026-03-12")}),
			entity.NewAssessment(entity.SourceAssignment, entity.AssessmentInput{ID: 5, CourseID: entity.Int64Ptr(1), Date: datePtr(t, "2026-04-30")}),
		},
	}

	agenda := BuildAgenda(asOf, records, 14)
	if agenda.UpcomingDeadlines != 3 {
		t.Fatalf("expected past and far deadlines to be skipped, got %d", agenda.UpcomingDeadlines)
	}
	if !agenda.DeadlineClustering || len(agenda.HighRiskWeeks) != 1 || agenda.HighRiskWeeks[0] != (entity.WeekLoad{Week: 0, Count: 3}) {
		t.Fatalf("expected week 0 to cluster, got %+v", agenda.HighRiskWeeks)
	}
	if agenda.HighestPriority[0].ID != 2 {
		t.Fatalf("expected the heavier same-day deadline first, got %+v", agenda.HighestPriority[0])
	}
	if agenda.CourseLoads[0].Load != entity.LoadHigh || agenda.CourseLoads[1].Load != entity.LoadLow {
		t.Fatalf("unexpected loads: %+v", agenda.CourseLoads)
	}
}

func TestBuildAttachesAgenda(t *testing.T) {
	lc := Build(date(t, "2026-03-13"), sampleRecords(t), WithAgenda(7))
	if lc.Agenda == nil {
		t.Fatalf("expected an agenda")
	}
	if lc.Agenda.HorizonDays != 7 || lc.Agenda.UpcomingDeadlines != 3 {
		t.Fatalf("unexpected agenda: %+v", lc.Agenda)
	}
}
