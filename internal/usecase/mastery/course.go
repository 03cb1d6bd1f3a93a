package mastery

import (
	"math"
	"time"

	"github.com/samber/lo"

	"github.com/eslsoft/masteryctx/internal/entity"
	"github.com/eslsoft/masteryctx/pkg/datemath"
)

// fallbackProgress is used when a course has no usable semester window.
const fallbackProgress = 0.5

// SemesterProgress returns the elapsed fraction of a course's semester,
// clamped into [0, 1] and rounded to two decimals.
func SemesterProgress(start, end *time.Time, asOf time.Time) float64 {
	if start == nil || end == nil {
		return fallbackProgress
	}
	total := datemath.DaysBetween(*start, *end)
	if total <= 0 {
		return fallbackProgress
	}
	elapsed := datemath.DaysBetween(*start, asOf)
	return round2(clamp01(float64(elapsed) / float64(total)))
}

// BuildTopic derives the context of one topic from its mastery record and
// nearest assessment.
func BuildTopic(topic entity.Topic, rec entity.MasteryRecord, next *entity.NextAssessment) entity.TopicContext {
	score := entity.ClampScore(rec.Score)
	urgency := Classify(score, next)
	return entity.TopicContext{
		TopicID:           topic.ID,
		TopicName:         topic.Name,
		MasteryScore:      score,
		MasteryLevel:      LevelFor(score),
		LastUpdated:       rec.LastUpdated,
		NextAssessment:    next,
		Urgency:           urgency,
		RecommendedAction: RecommendAction(score, urgency),
	}
}

// BuildCourse assembles the context of one course from its topics.
func BuildCourse(
	course entity.Course,
	topics []entity.Topic,
	ix Index,
	assignments, quizzes, events []entity.Assessment,
	asOf time.Time,
) entity.CourseContext {
	progress := SemesterProgress(course.SemesterStart, course.SemesterEnd, asOf)

	contexts := make([]entity.TopicContext, 0, len(topics))
	for _, topic := range topics {
		next := NextAssessment(topic.ID, assignments, quizzes, events, asOf)
		contexts = append(contexts, BuildTopic(topic, ix.Mastery(topic.ID), next))
	}

	return entity.CourseContext{
		CourseID:         course.ID,
		CourseName:       course.Name,
		CourseCode:       course.Code,
		SemesterProgress: progress,
		Topics:           contexts,
		RiskLevel:        CourseRisk(contexts, progress),
		AverageMastery:   AverageMastery(contexts),
	}
}

// CourseRisk aggregates topic urgencies into a course risk level. A course
// without topics carries no risk.
func CourseRisk(topics []entity.TopicContext, progress float64) entity.RiskLevel {
	if len(topics) == 0 {
		return entity.RiskLow
	}
	critical := countUrgency(topics, entity.UrgencyCritical)
	high := countUrgency(topics, entity.UrgencyHigh)
	avg := AverageMastery(topics)

	switch {
	case progress > 0.7 && avg < 0.5 && critical > 0:
		return entity.RiskHigh
	case critical > 0 || (high >= 2 && avg < 0.6):
		return entity.RiskElevated
	case high > 0 || avg < 0.7:
		return entity.RiskModerate
	default:
		return entity.RiskLow
	}
}

// AverageMastery is the mean topic score rounded to two decimals, 0 for no
// topics.
func AverageMastery(topics []entity.TopicContext) float64 {
	if len(topics) == 0 {
		return 0
	}
	sum := lo.SumBy(topics, func(t entity.TopicContext) float64 { return t.MasteryScore })
	return round2(sum / float64(len(topics)))
}

func countUrgency(topics []entity.TopicContext, urgency entity.Urgency) int {
	return lo.CountBy(topics, func(t entity.TopicContext) bool { return t.Urgency == urgency })
}

func clamp01(v float64) float64 {
	return math.Max(0, math.Min(1, v))
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
