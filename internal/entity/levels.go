package entity

// Urgency is the escalation level of a single topic.
type Urgency string

const (
	UrgencyCritical Urgency = "critical"
	UrgencyHigh     Urgency = "high"
	UrgencyMedium   Urgency = "medium"
	UrgencyLow      Urgency = "low"
)

// Severity orders urgencies; higher is more severe.
func (u Urgency) Severity() int {
	switch u {
	case UrgencyCritical:
		return 3
	case UrgencyHigh:
		return 2
	case UrgencyMedium:
		return 1
	default:
		return 0
	}
}

// Action is the deterministic study signal attached to a topic.
type Action string

const (
	ActionUrgentReinforcement Action = "urgent_reinforcement"
	ActionFoundationalReview  Action = "foundational_review"
	ActionActiveRecall        Action = "active_recall_practice"
	ActionSpacedPractice      Action = "spaced_practice"
	ActionRefinement          Action = "refinement"
	ActionGradualImprovement  Action = "gradual_improvement"
	ActionMaintainAndAdvance  Action = "maintain_and_advance"
)

// MasteryLevel is the display band of a mastery score.
type MasteryLevel string

const (
	LevelFoundational MasteryLevel = "foundational"
	LevelEmerging     MasteryLevel = "emerging"
	LevelDeveloping   MasteryLevel = "developing"
	LevelProficient   MasteryLevel = "proficient"
	LevelExpert       MasteryLevel = "expert"
)

// RiskLevel is the aggregated risk of a course.
type RiskLevel string

const (
	RiskHigh     RiskLevel = "high"
	RiskElevated RiskLevel = "elevated"
	RiskModerate RiskLevel = "moderate"
	RiskLow      RiskLevel = "low"
)

// Load estimates how busy a course is over the agenda horizon.
type Load string

const (
	LoadHigh   Load = "high"
	LoadMedium Load = "medium"
	LoadLow    Load = "low"
)
