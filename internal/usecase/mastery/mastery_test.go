package mastery

import (
	"encoding/json"
	"math"
	"testing"
	"time"

	"github.com/eslsoft/masteryctx/internal/entity"
)

func date(t *testing.T, v string) time.Time {
	t.Helper()
	d, err := time.Parse("2006-01-02", v)
	if err != nil {
		t.Fatalf("parse %q: %v", v, err)
	}
	return d
}

func datePtr(t *testing.T, v string) *time.Time {
	d := date(t, v)
	return &d
}

func assignment(id, topicID int64, due *time.Time, weight *float64) entity.Assessment {
	return entity.NewAssessment(entity.SourceAssignment, entity.AssessmentInput{
		ID:      id,
		TopicID: entity.Int64Ptr(topicID),
		Date:    due,
		Weight:  weight,
	})
}

func TestUrgencyScenarios(t *testing.T) {
	asOf := date(t, "2026-03-13")

	tests := []struct {
		name       string
		score      float64
		due        *time.Time
		assessment func(due *time.Time) entity.Assessment
		urgency    entity.Urgency
		action     entity.Action
	}{
		{
			name:  "low mastery heavy assignment in two days",
			score: 0.3,
			due:   datePtr(t, "2026-03-15"),
			assessment: func(due *time.Time) entity.Assessment {
				return assignment(1, 10, due, entity.Float64Ptr(20))
			},
			urgency: entity.UrgencyCritical,
			action:  entity.ActionUrgentReinforcement,
		},
		{
			name:    "strong mastery nothing upcoming",
			score:   0.8,
			urgency: entity.UrgencyLow,
			action:  entity.ActionMaintainAndAdvance,
		},
		{
			name:  "quiz without weight falls back to ten",
			score: 0.3,
			due:   datePtr(t, "2026-03-15"),
			assessment: func(due *time.Time) entity.Assessment {
				return entity.NewAssessment(entity.SourceQuiz, entity.AssessmentInput{
					ID: 2, TopicID: entity.Int64Ptr(10), Date: due,
				})
			},
			urgency: entity.UrgencyHigh,
			action:  entity.ActionFoundationalReview,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var assignments, quizzes []entity.Assessment
			if tt.assessment != nil {
				a := tt.assessment(tt.due)
				if a.Source == entity.SourceQuiz {
					quizzes = append(quizzes, a)
				} else {
					assignments = append(assignments, a)
				}
			}
			next := NextAssessment(10, assignments, quizzes, nil, asOf)
			got := BuildTopic(entity.Topic{ID: 10, Name: "Limits"}, entity.MasteryRecord{TopicID: 10, Score: tt.score}, next)
			if got.Urgency != tt.urgency {
				t.Fatalf("expected urgency %s, got %s", tt.urgency, got.Urgency)
			}
			if got.RecommendedAction != tt.action {
				t.Fatalf("expected action %s, got %s", tt.action, got.RecommendedAction)
			}
		})
	}
}

func TestQuizDefaultWeight(t *testing.T) {
	q := entity.NewAssessment(entity.SourceQuiz, entity.AssessmentInput{ID: 1, Type: "exam"})
	if q.Weight != 10 || q.Type != "quiz" || q.Name != "Quiz" {
		t.Fatalf("unexpected quiz defaults: %+v", q)
	}
	a := entity.NewAssessment(entity.SourceAssignment, entity.AssessmentInput{ID: 2})
	if a.Weight != 0 || a.Type != "assignment" || a.Name != "Assignment" {
		t.Fatalf("unexpected assignment defaults: %+v", a)
	}
	e := entity.NewAssessment(entity.SourceEvent, entity.AssessmentInput{ID: 3, Type: "midterm"})
	if e.Weight != 0 || e.Type != "midterm" || e.Name != "Event" {
		t.Fatalf("unexpected event defaults: %+v", e)
	}
}

func TestSemesterProgress(t *testing.T) {
	asOf := date(t, "2026-03-13")
	tests := []struct {
		name       string
		start, end *time.Time
		want       float64
	}{
		{"mid semester", datePtr(t, "2026-01-13"), datePtr(t, "2026-05-08"), 0.51},
		{"missing start", nil, datePtr(t, "2026-05-08"), 0.5},
		{"missing end", datePtr(t, "2026-01-13"), nil, 0.5},
		{"equal dates", datePtr(t, "2026-01-13"), datePtr(t, "2026-01-13"), 0.5},
		{"inverted dates", datePtr(t, "2026-05-08"), datePtr(t, "2026-01-13"), 0.5},
		{"not started", datePtr(t, "2026-04-01"), datePtr(t, "2026-06-01"), 0},
		{"finished", datePtr(t, "2025-09-01"), datePtr(t, "2025-12-20"), 1},
		{"millennia window", datePtr(t, "0001-01-01"), datePtr(t, "9999-12-31"), 0.2},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := SemesterProgress(tt.start, tt.end, asOf); got != tt.want {
				t.Fatalf("expected %v, got %v", tt.want, got)
			}
		})
	}
}

func TestDeadlinePressure(t *testing.T) {
	asOf := date(t, "2026-03-13")
	var topics []entity.TopicContext
	for i, days := range []int{1, 3, 6} {
		topics = append(topics, entity.TopicContext{
			TopicID:        int64(i + 1),
			MasteryScore:   0.9,
			NextAssessment: &entity.NextAssessment{DaysUntil: days},
		})
	}
	flags := DetectRiskFlags([]entity.CourseContext{{CourseID: 1, Topics: topics}}, asOf)
	if !flags.DeadlinePressure {
		t.Fatalf("expected deadline pressure with three deadlines inside a week")
	}

	flags = DetectRiskFlags([]entity.CourseContext{{CourseID: 1, Topics: topics[:2]}}, asOf)
	if flags.DeadlinePressure {
		t.Fatalf("two deadlines must not raise deadline pressure")
	}
}

func TestStagnantMastery(t *testing.T) {
	asOf := date(t, "2026-03-13")
	tests := []struct {
		name        string
		lastUpdated *time.Time
		want        bool
	}{
		{"twenty days old", datePtr(t, "2026-02-21"), true},
		{"exactly fourteen days", datePtr(t, "2026-02-27"), false},
		{"fresh", datePtr(t, "2026-03-12"), false},
		{"never updated", nil, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			records := entity.Records{
				Courses: []entity.Course{{ID: 1, Name: "Calculus"}},
				Topics:  []entity.Topic{{ID: 1, CourseID: entity.Int64Ptr(1), Name: "Limits"}},
				Mastery: []entity.MasteryRecord{{TopicID: 1, Score: 0.8, LastUpdated: tt.lastUpdated}},
			}
			lc := Build(asOf, records)
			if lc.RiskFlags.StagnantMastery != tt.want {
				t.Fatalf("expected stagnant=%v, got %v", tt.want, lc.RiskFlags.StagnantMastery)
			}
		})
	}
}

func TestLowMasteryHighWeightAndLateSemester(t *testing.T) {
	asOf := date(t, "2026-04-25")
	records := entity.Records{
		Courses: []entity.Course{{
			ID: 1, Name: "Calculus", Code: "MATH101",
			SemesterStart: datePtr(t, "2026-01-13"),
			SemesterEnd:   datePtr(t, "2026-05-08"),
		}},
		Topics: []entity.Topic{
			{ID: 1, CourseID: entity.Int64Ptr(1), Name: "Limits"},
			{ID: 2, CourseID: entity.Int64Ptr(1), Name: "Derivatives"},
		},
		Mastery: []entity.MasteryRecord{
			{TopicID: 1, Score: 0.2},
			{TopicID: 2, Score: 0.4},
		},
		Assignments: []entity.Assessment{
			assignment(1, 1, datePtr(t, "2026-04-27"), entity.Float64Ptr(25)),
		},
	}

	lc := Build(asOf, records)
	if !lc.RiskFlags.LowMasteryHighWeight {
		t.Fatalf("expected low_mastery_high_weight")
	}
	if !lc.RiskFlags.LateSemesterLowMastery {
		t.Fatalf("expected late_semester_low_mastery at progress %v", lc.SemesterProgress)
	}
	if got := lc.Courses[0].RiskLevel; got != entity.RiskHigh {
		t.Fatalf("expected high course risk, got %s", got)
	}
}

func TestCourseRisk(t *testing.T) {
	topic := func(score float64, urgency entity.Urgency) entity.TopicContext {
		return entity.TopicContext{MasteryScore: score, Urgency: urgency}
	}
	tests := []struct {
		name     string
		topics   []entity.TopicContext
		progress float64
		want     entity.RiskLevel
	}{
		{"no topics", nil, 0.9, entity.RiskLow},
		{"late critical", []entity.TopicContext{topic(0.2, entity.UrgencyCritical), topic(0.6, entity.UrgencyLow)}, 0.8, entity.RiskHigh},
		{"early critical", []entity.TopicContext{topic(0.2, entity.UrgencyCritical)}, 0.3, entity.RiskElevated},
		{"two high weak", []entity.TopicContext{topic(0.5, entity.UrgencyHigh), topic(0.6, entity.UrgencyHigh)}, 0.3, entity.RiskElevated},
		{"two high strong", []entity.TopicContext{topic(0.8, entity.UrgencyHigh), topic(0.8, entity.UrgencyHigh)}, 0.3, entity.RiskModerate},
		{"weak average", []entity.TopicContext{topic(0.6, entity.UrgencyLow)}, 0.3, entity.RiskModerate},
		{"healthy", []entity.TopicContext{topic(0.9, entity.UrgencyLow), topic(0.7, entity.UrgencyLow)}, 0.3, entity.RiskLow},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := CourseRisk(tt.topics, tt.progress); got != tt.want {
				t.Fatalf("expected %s, got %s", tt.want, got)
			}
		})
	}
}

func TestCourseWithoutTopics(t *testing.T) {
	lc := Build(date(t, "2026-03-13"), entity.Records{
		Courses: []entity.Course{{ID: 7, Name: "Empty"}},
	})
	if len(lc.Courses) != 1 {
		t.Fatalf("expected one course, got %d", len(lc.Courses))
	}
	c := lc.Courses[0]
	if c.AverageMastery != 0 || c.RiskLevel != entity.RiskLow || c.SemesterProgress != 0.5 {
		t.Fatalf("unexpected empty course context: %+v", c)
	}
	if c.Topics == nil {
		t.Fatalf("expected empty, non-nil topic list")
	}
}

func TestEmptyRecords(t *testing.T) {
	lc := Build(date(t, "2026-03-13"), entity.Records{})
	if lc.SummaryStats != (entity.SummaryStats{}) {
		t.Fatalf("expected zeroed stats, got %+v", lc.SummaryStats)
	}
	if lc.SemesterProgress != 0 {
		t.Fatalf("expected zero overall progress, got %v", lc.SemesterProgress)
	}
	if lc.RiskFlags != (entity.RiskFlags{}) {
		t.Fatalf("expected no flags, got %+v", lc.RiskFlags)
	}
	if lc.Metadata.CurrentDate != "2026-03-13" || lc.Metadata.ContextVersion != "1.0" || lc.Metadata.Builder != "deterministic" {
		t.Fatalf("unexpected metadata: %+v", lc.Metadata)
	}
	raw, err := json.Marshal(lc)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	var decoded map[string]any
	if err := json.Unmarshal(raw, &decoded); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if _, ok := decoded["courses"].([]any); !ok {
		t.Fatalf("expected courses to serialize as a list, got %s", raw)
	}
	if _, ok := decoded["agenda"]; ok {
		t.Fatalf("agenda must be omitted unless requested")
	}
}

func TestDuplicateMasteryLastWins(t *testing.T) {
	lc := Build(date(t, "2026-03-13"), entity.Records{
		Courses: []entity.Course{{ID: 1}},
		Topics:  []entity.Topic{{ID: 1, CourseID: entity.Int64Ptr(1)}},
		Mastery: []entity.MasteryRecord{{TopicID: 1, Score: 0.2}, {TopicID: 1, Score: 0.95}},
	})
	topic := lc.Courses[0].Topics[0]
	if topic.MasteryScore != 0.95 || topic.MasteryLevel != entity.LevelExpert {
		t.Fatalf("expected the last record to win, got %+v", topic)
	}
}

func TestTopicWithoutMasteryOrCourse(t *testing.T) {
	lc := Build(date(t, "2026-03-13"), entity.Records{
		Courses: []entity.Course{{ID: 1}},
		Topics: []entity.Topic{
			{ID: 1, CourseID: entity.Int64Ptr(1), Name: "Unscored"},
			{ID: 2, Name: "Orphan"},
		},
	})
	if lc.SummaryStats.TotalTopics != 1 {
		t.Fatalf("expected orphan topic to be excluded, got %d topics", lc.SummaryStats.TotalTopics)
	}
	topic := lc.Courses[0].Topics[0]
	if topic.MasteryScore != 0 || topic.MasteryLevel != entity.LevelFoundational || topic.Urgency != entity.UrgencyMedium {
		t.Fatalf("unexpected unscored topic: %+v", topic)
	}
}

func TestNextAssessmentResolution(t *testing.T) {
	asOf := date(t, "2026-03-13")
	assignments := []entity.Assessment{
		assignment(1, 5, datePtr(t, "2026-03-10"), nil), // past
		assignment(2, 5, datePtr(t, "2026-03-20"), entity.Float64Ptr(30)),
		assignment(3, 6, datePtr(t, "2026-03-14"), nil), // other topic
		assignment(4, 5, nil, nil),                      // undated
	}
	quizzes := []entity.Assessment{
		entity.NewAssessment(entity.SourceQuiz, entity.AssessmentInput{ID: 5, TopicID: entity.Int64Ptr(5), Date: datePtr(t, "2026-03-20"), Name: "Quiz 3"}),
	}
	events := []entity.Assessment{
		entity.NewAssessment(entity.SourceEvent, entity.AssessmentInput{ID: 6, Date: datePtr(t, "2026-03-13")}), // unlinked
	}

	next := NextAssessment(5, assignments, quizzes, events, asOf)
	if next == nil {
		t.Fatalf("expected an assessment")
	}
	if next.DaysUntil != 7 || next.Type != "assignment" || next.Weight != 30 || next.Date != "2026-03-20" {
		t.Fatalf("expected the assignment to win the tie, got %+v", next)
	}

	today := []entity.Assessment{assignment(7, 5, datePtr(t, "2026-03-13"), nil)}
	if got := NextAssessment(5, today, nil, nil, asOf); got == nil || got.DaysUntil != 0 {
		t.Fatalf("expected an assessment due today to count, got %+v", got)
	}

	if got := NextAssessment(9, assignments, quizzes, events, asOf); got != nil {
		t.Fatalf("expected nothing for an unlinked topic, got %+v", got)
	}
}

func TestUrgencyMonotonicInMastery(t *testing.T) {
	var scores []float64
	for s := 0.0; s <= 1.0001; s += 0.05 {
		scores = append(scores, math.Round(s*100)/100)
	}
	for _, weight := range []float64{0, 10, 15, 20, 40} {
		for _, days := range []int{0, 2, 3, 4, 5, 6, 7, 8, 10, 11, 30} {
			next := &entity.NextAssessment{DaysUntil: days, Weight: weight}
			prev := -1
			for i := len(scores) - 1; i >= 0; i-- {
				sev := Classify(scores[i], next).Severity()
				if sev < prev {
					t.Fatalf("severity dropped at score %v days %d weight %v", scores[i], days, weight)
				}
				prev = sev
			}
		}
	}
	prev := -1
	for i := len(scores) - 1; i >= 0; i-- {
		sev := Classify(scores[i], nil).Severity()
		if sev < prev {
			t.Fatalf("severity dropped without assessment at score %v", scores[i])
		}
		prev = sev
	}
}

func TestLevelBands(t *testing.T) {
	tests := []struct {
		score float64
		want  entity.MasteryLevel
	}{
		{0, entity.LevelFoundational},
		{0.39, entity.LevelFoundational},
		{0.4, entity.LevelEmerging},
		{0.6, entity.LevelDeveloping},
		{0.75, entity.LevelProficient},
		{0.9, entity.LevelExpert},
		{1, entity.LevelExpert},
	}
	for _, tt := range tests {
		if got := LevelFor(tt.score); got != tt.want {
			t.Fatalf("score %v: expected %s, got %s", tt.score, tt.want, got)
		}
	}
}

func TestBuildIsDeterministic(t *testing.T) {
	asOf := date(t, "2026-03-13")
	records := sampleRecords(t)

	first, err := json.Marshal(Build(asOf, records, WithAgenda(0)))
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	for i := 0; i < 20; i++ {
		again, err := json.Marshal(Build(asOf, records, WithAgenda(0)))
		if err != nil {
			t.Fatalf("marshal: %v", err)
		}
		if string(again) != string(first) {
			t.Fatalf("run %d differs:\n%s\n%s", i, first, again)
		}
	}
}

func TestBuildInvariants(t *testing.T) {
	asOf := date(t, "2026-03-13")
	records := sampleRecords(t)
	records.Mastery = append(records.Mastery,
		entity.MasteryRecord{TopicID: 3, Score: 1.7},
		entity.MasteryRecord{TopicID: 4, Score: -0.2},
	)
	clamped := map[int64]float64{3: 1, 4: 0}

	lc := Build(asOf, records, WithContextVersion("2.0"))
	if lc.Metadata.ContextVersion != "2.0" {
		t.Fatalf("expected overridden version, got %s", lc.Metadata.ContextVersion)
	}
	topics := 0
	for _, c := range lc.Courses {
		if c.SemesterProgress < 0 || c.SemesterProgress > 1 {
			t.Fatalf("course %d progress out of range: %v", c.CourseID, c.SemesterProgress)
		}
		topics += len(c.Topics)
		for _, topic := range c.Topics {
			if topic.MasteryScore < 0 || topic.MasteryScore > 1 {
				t.Fatalf("topic %d mastery out of range: %v", topic.TopicID, topic.MasteryScore)
			}
			if want, ok := clamped[topic.TopicID]; ok && topic.MasteryScore != want {
				t.Fatalf("topic %d: expected clamped mastery %v, got %v", topic.TopicID, want, topic.MasteryScore)
			}
			if topic.NextAssessment != nil && topic.NextAssessment.DaysUntil < 0 {
				t.Fatalf("topic %d has a past assessment", topic.TopicID)
			}
		}
	}
	if lc.SummaryStats.TotalTopics != topics {
		t.Fatalf("summary total %d does not match %d topics", lc.SummaryStats.TotalTopics, topics)
	}
	// Only the calculus course has both dates.
	if lc.SemesterProgress != 0.51 {
		t.Fatalf("expected overall progress 0.51, got %v", lc.SemesterProgress)
	}
}

func TestSummaryStats(t *testing.T) {
	stats := Summarize([]entity.CourseContext{
		{Topics: []entity.TopicContext{
			{MasteryScore: 0.3, Urgency: entity.UrgencyCritical},
			{MasteryScore: 0.65, Urgency: entity.UrgencyHigh},
		}},
		{Topics: []entity.TopicContext{
			{MasteryScore: 0.9, Urgency: entity.UrgencyLow},
		}},
	})
	want := entity.SummaryStats{
		TotalTopics:            3,
		AverageMastery:         0.62,
		TopicsNeedingAttention: 2,
		CriticalTopics:         1,
		HighUrgencyTopics:      2,
	}
	if stats != want {
		t.Fatalf("expected %+v, got %+v", want, stats)
	}
}

func sampleRecords(t *testing.T) entity.Records {
	t.Helper()
	return entity.Records{
		Courses: []entity.Course{
			{ID: 1, Name: "Calculus I", Code: "MATH101", SemesterStart: datePtr(t, "2026-01-13"), SemesterEnd: datePtr(t, "2026-05-08")},
			{ID: 2, Name: "World History", Code: "HIST110"},
		},
		Topics: []entity.Topic{
			{ID: 1, CourseID: entity.Int64Ptr(1), Name: "Limits"},
			{ID: 2, CourseID: entity.Int64Ptr(1), Name: "Derivatives"},
			{ID: 3, CourseID: entity.Int64Ptr(2), Name: "Renaissance"},
			{ID: 4, CourseID: entity.Int64Ptr(2), Name: "Reformation"},
		},
		Mastery: []entity.MasteryRecord{
			{TopicID: 1, Score: 0.3, LastUpdated: datePtr(t, "2026-02-01")},
			{TopicID: 2, Score: 0.72, LastUpdated: datePtr(t, "2026-03-10")},
		},
		Assignments: []entity.Assessment{
			assignment(1, 1, datePtr(t, "2026-03-15"), entity.Float64Ptr(20)),
			assignment(2, 2, datePtr(t, "2026-03-20"), entity.Float64Ptr(10)),
		},
		Quizzes: []entity.Assessment{
			entity.NewAssessment(entity.SourceQuiz, entity.AssessmentInput{ID: 1, TopicID: entity.Int64Ptr(3), Date: datePtr(t, "2026-03-16")}),
		},
		Events: []entity.Assessment{
			entity.NewAssessment(entity.SourceEvent, entity.AssessmentInput{ID: 1, CourseID: entity.Int64Ptr(2), Type: "exam", Name: "Midterm", Date: datePtr(t, "2026-03-25"), Weight: entity.Float64Ptr(30)}),
		},
	}
}
