package mastery

import (
	"time"

	"github.com/eslsoft/masteryctx/internal/entity"
	"github.com/eslsoft/masteryctx/pkg/datemath"
)

// NextAssessment finds the nearest assessment linked to topicID that is due
// on or after asOf. Sources are scanned assignments, quizzes, events; on equal
// dates the first candidate in that order wins. Nil means nothing qualifies.
func NextAssessment(topicID int64, assignments, quizzes, events []entity.Assessment, asOf time.Time) *entity.NextAssessment {
	var best *entity.NextAssessment
	for _, source := range [][]entity.Assessment{assignments, quizzes, events} {
		for _, a := range source {
			if !a.LinkedTo(topicID) || a.Date == nil {
				continue
			}
			days := datemath.DaysBetween(asOf, *a.Date)
			if days < 0 {
				continue
			}
			if best != nil && days >= best.DaysUntil {
				continue
			}
			best = &entity.NextAssessment{
				Type:      a.Type,
				Name:      a.Name,
				Date:      datemath.Format(*a.Date),
				DaysUntil: days,
				Weight:    a.Weight,
			}
		}
	}
	return best
}
