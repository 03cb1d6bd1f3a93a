package mastery

import "github.com/eslsoft/masteryctx/internal/entity"

// Classify maps a mastery score and the nearest assessment to an urgency.
// Rules are evaluated top-down and the first match wins.
func Classify(score float64, next *entity.NextAssessment) entity.Urgency {
	if next == nil {
		if score < 0.5 {
			return entity.UrgencyMedium
		}
		return entity.UrgencyLow
	}

	days, weight := next.DaysUntil, next.Weight
	switch {
	case score < 0.5 && days <= 3 && weight >= 15:
		return entity.UrgencyCritical
	case (score < 0.5 && days <= 7) || (days <= 5 && weight >= 20):
		return entity.UrgencyHigh
	case score < 0.7 && days <= 10:
		return entity.UrgencyMedium
	default:
		return entity.UrgencyLow
	}
}

// RecommendAction picks the study signal for an urgency and mastery score.
func RecommendAction(score float64, urgency entity.Urgency) entity.Action {
	switch urgency {
	case entity.UrgencyCritical:
		return entity.ActionUrgentReinforcement
	case entity.UrgencyHigh:
		if score < 0.4 {
			return entity.ActionFoundationalReview
		}
		return entity.ActionActiveRecall
	case entity.UrgencyMedium:
		if score < 0.6 {
			return entity.ActionSpacedPractice
		}
		return entity.ActionRefinement
	default:
		if score < 0.7 {
			return entity.ActionGradualImprovement
		}
		return entity.ActionMaintainAndAdvance
	}
}

// LevelFor returns the display band of a mastery score. Lower edges are
// inclusive.
func LevelFor(score float64) entity.MasteryLevel {
	switch {
	case score >= 0.9:
		return entity.LevelExpert
	case score >= 0.75:
		return entity.LevelProficient
	case score >= 0.6:
		return entity.LevelDeveloping
	case score >= 0.4:
		return entity.LevelEmerging
	default:
		return entity.LevelFoundational
	}
}
