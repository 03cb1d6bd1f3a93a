package mastery

import (
	"sort"
	"time"

	"github.com/samber/lo"

	"github.com/eslsoft/masteryctx/internal/entity"
	"github.com/eslsoft/masteryctx/pkg/datemath"
)

const (
	clusterMinDeadlines = 3
	priorityLimit       = 3
	heavyLoadMin        = 3
)

// BuildAgenda lists every dated assessment due within horizonDays of asOf,
// whether or not it is linked to a topic, and estimates how the deadlines
// cluster by week and by course.
func BuildAgenda(asOf time.Time, records entity.Records, horizonDays int) entity.Agenda {
	if horizonDays <= 0 {
		horizonDays = DefaultAgendaHorizon
	}
	asOf = datemath.DateOnly(asOf)

	topicCourse := make(map[int64]int64, len(records.Topics))
	for _, t := range records.Topics {
		if t.CourseID != nil {
			topicCourse[t.ID] = *t.CourseID
		}
	}

	items := make([]entity.AgendaItem, 0)
	for _, a := range records.Assessments() {
		if a.Date == nil {
			continue
		}
		days := datemath.DaysBetween(asOf, *a.Date)
		if days < 0 || days > horizonDays {
			continue
		}
		courseID := a.CourseID
		if courseID == nil && a.TopicID != nil {
			if id, ok := topicCourse[*a.TopicID]; ok {
				courseID = entity.Int64Ptr(id)
			}
		}
		items = append(items, entity.AgendaItem{
			Source:    a.Source,
			ID:        a.ID,
			CourseID:  courseID,
			TopicID:   a.TopicID,
			Type:      a.Type,
			Name:      a.Name,
			Date:      datemath.Format(*a.Date),
			DaysUntil: days,
			Weight:    a.Weight,
		})
	}

	weeks := highRiskWeeks(items)
	return entity.Agenda{
		HorizonDays:        horizonDays,
		UpcomingDeadlines:  len(items),
		DeadlineClustering: len(weeks) > 0,
		HighRiskWeeks:      weeks,
		HighestPriority:    highestPriority(items),
		Next7Days: lo.Filter(items, func(it entity.AgendaItem, _ int) bool {
			return it.DaysUntil <= 7
		}),
		Next14Days: lo.Filter(items, func(it entity.AgendaItem, _ int) bool {
			return it.DaysUntil > 7 && it.DaysUntil <= 14
		}),
		CourseLoads: courseLoads(records.Courses, items),
	}
}

func highRiskWeeks(items []entity.AgendaItem) []entity.WeekLoad {
	counts := make(map[int]int)
	for _, it := range items {
		counts[it.DaysUntil/7]++
	}
	weeks := make([]entity.WeekLoad, 0)
	for week, n := range counts {
		if n >= clusterMinDeadlines {
			weeks = append(weeks, entity.WeekLoad{Week: week, Count: n})
		}
	}
	sort.Slice(weeks, func(i, j int) bool { return weeks[i].Week < weeks[j].Week })
	return weeks
}

// highestPriority orders by date, then heavier weight, then input order.
func highestPriority(items []entity.AgendaItem) []entity.AgendaItem {
	sorted := append([]entity.AgendaItem(nil), items...)
	sort.SliceStable(sorted, func(i, j int) bool {
		if sorted[i].DaysUntil != sorted[j].DaysUntil {
			return sorted[i].DaysUntil < sorted[j].DaysUntil
		}
		return sorted[i].Weight > sorted[j].Weight
	})
	if len(sorted) > priorityLimit {
		sorted = sorted[:priorityLimit]
	}
	if sorted == nil {
		sorted = []entity.AgendaItem{}
	}
	return sorted
}

func courseLoads(courses []entity.Course, items []entity.AgendaItem) []entity.CourseLoad {
	loads := make([]entity.CourseLoad, 0, len(courses))
	for _, c := range courses {
		n := lo.CountBy(items, func(it entity.AgendaItem) bool {
			return it.CourseID != nil && *it.CourseID == c.ID
		})
		load := entity.LoadLow
		switch {
		case n >= heavyLoadMin:
			load = entity.LoadHigh
		case n >= 1:
			load = entity.LoadMedium
		}
		loads = append(loads, entity.CourseLoad{CourseID: c.ID, UpcomingCount: n, Load: load})
	}
	return loads
}
