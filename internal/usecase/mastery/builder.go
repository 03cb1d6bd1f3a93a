package mastery

import (
	"time"

	"github.com/samber/lo"

	"github.com/eslsoft/masteryctx/internal/entity"
	"github.com/eslsoft/masteryctx/pkg/datemath"
)

const (
	// DefaultContextVersion tags contexts built by this package.
	DefaultContextVersion = "1.0"
	// DefaultAgendaHorizon is how many days ahead the agenda looks.
	DefaultAgendaHorizon = 14

	builderName = "deterministic"
)

type options struct {
	version       string
	agendaHorizon int
	withAgenda    bool
}

// Option customises Build.
type Option func(*options)

// WithContextVersion overrides the version tag written to the metadata.
func WithContextVersion(version string) Option {
	return func(o *options) {
		if version != "" {
			o.version = version
		}
	}
}

// WithAgenda attaches an agenda covering horizonDays (DefaultAgendaHorizon
// when not positive).
func WithAgenda(horizonDays int) Option {
	return func(o *options) {
		o.withAgenda = true
		if horizonDays > 0 {
			o.agendaHorizon = horizonDays
		}
	}
}

// Build assembles the learning context of records as seen on asOf. The same
// inputs always produce the same context.
func Build(asOf time.Time, records entity.Records, opts ...Option) entity.LearningContext {
	cfg := options{version: DefaultContextVersion, agendaHorizon: DefaultAgendaHorizon}
	for _, opt := range opts {
		opt(&cfg)
	}
	asOf = datemath.DateOnly(asOf)

	ix := NewIndex(records.Topics, records.Mastery)

	courses := make([]entity.CourseContext, 0, len(records.Courses))
	for _, course := range records.Courses {
		courses = append(courses, BuildCourse(
			course,
			ix.TopicsByCourse[course.ID],
			ix,
			records.Assignments, records.Quizzes, records.Events,
			asOf,
		))
	}

	lc := entity.LearningContext{
		Metadata: entity.ContextMetadata{
			CurrentDate:    datemath.Format(asOf),
			ContextVersion: cfg.version,
			Builder:        builderName,
		},
		SemesterProgress: OverallProgress(records.Courses, asOf),
		Courses:          courses,
		RiskFlags:        DetectRiskFlags(courses, asOf),
		SummaryStats:     Summarize(courses),
	}
	if cfg.withAgenda {
		agenda := BuildAgenda(asOf, records, cfg.agendaHorizon)
		lc.Agenda = &agenda
	}
	return lc
}

// OverallProgress averages the semester progress of the courses that declare
// both semester dates. It is 0 when none do.
func OverallProgress(courses []entity.Course, asOf time.Time) float64 {
	dated := lo.Filter(courses, func(c entity.Course, _ int) bool {
		return c.SemesterStart != nil && c.SemesterEnd != nil
	})
	if len(dated) == 0 {
		return 0
	}
	sum := lo.SumBy(dated, func(c entity.Course) float64 {
		return SemesterProgress(c.SemesterStart, c.SemesterEnd, asOf)
	})
	return round2(sum / float64(len(dated)))
}

// Summarize computes totals over every topic. All values are zero without
// topics.
func Summarize(courses []entity.CourseContext) entity.SummaryStats {
	topics := lo.FlatMap(courses, func(c entity.CourseContext, _ int) []entity.TopicContext {
		return c.Topics
	})
	if len(topics) == 0 {
		return entity.SummaryStats{}
	}
	return entity.SummaryStats{
		TotalTopics:    len(topics),
		AverageMastery: AverageMastery(topics),
		TopicsNeedingAttention: lo.CountBy(topics, func(t entity.TopicContext) bool {
			return t.MasteryScore < 0.7
		}),
		CriticalTopics: countUrgency(topics, entity.UrgencyCritical),
		HighUrgencyTopics: lo.CountBy(topics, func(t entity.TopicContext) bool {
			return t.Urgency == entity.UrgencyCritical || t.Urgency == entity.UrgencyHigh
		}),
	}
}
