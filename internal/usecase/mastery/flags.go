package mastery

import (
	"time"

	"github.com/samber/lo"

	"github.com/eslsoft/masteryctx/internal/entity"
	"github.com/eslsoft/masteryctx/pkg/datemath"
)

const (
	pressureWindowDays = 7
	pressureMinTopics  = 3
	stagnationDays     = 14
)

// DetectRiskFlags evaluates the four cross-cutting risk predicates over every
// topic of every course.
func DetectRiskFlags(courses []entity.CourseContext, asOf time.Time) entity.RiskFlags {
	topics := lo.FlatMap(courses, func(c entity.CourseContext, _ int) []entity.TopicContext {
		return c.Topics
	})

	return entity.RiskFlags{
		LowMasteryHighWeight:   lo.SomeBy(topics, lowMasteryNearHeavyDeadline),
		DeadlinePressure:       lo.CountBy(topics, dueWithinPressureWindow) >= pressureMinTopics,
		StagnantMastery:        lo.SomeBy(topics, func(t entity.TopicContext) bool { return stagnant(t, asOf) }),
		LateSemesterLowMastery: lateSemesterLowMastery(courses),
	}
}

func lowMasteryNearHeavyDeadline(t entity.TopicContext) bool {
	next := t.NextAssessment
	return t.MasteryScore < 0.5 && next != nil && next.DaysUntil <= pressureWindowDays && next.Weight >= 15
}

func dueWithinPressureWindow(t entity.TopicContext) bool {
	return t.NextAssessment != nil && t.NextAssessment.DaysUntil <= pressureWindowDays
}

func stagnant(t entity.TopicContext, asOf time.Time) bool {
	if t.LastUpdated == nil {
		return false
	}
	return datemath.DaysBetween(*t.LastUpdated, asOf) > stagnationDays
}

// lateSemesterLowMastery compares plain means across courses; both means are
// 0 without courses.
func lateSemesterLowMastery(courses []entity.CourseContext) bool {
	if len(courses) == 0 {
		return false
	}
	n := float64(len(courses))
	progress := lo.SumBy(courses, func(c entity.CourseContext) float64 { return c.SemesterProgress }) / n
	avgMastery := lo.SumBy(courses, func(c entity.CourseContext) float64 { return c.AverageMastery }) / n
	return progress > 0.7 && avgMastery < 0.6
}
