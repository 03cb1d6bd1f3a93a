package entity

import (
	"time"

	"github.com/google/uuid"
)

// NextAssessment is the nearest upcoming assessment of a topic, resolved
// against the assembly date.
type NextAssessment struct {
	Type      string  `json:"type"`
	Name      string  `json:"name"`
	Date      string  `json:"date"`
	DaysUntil int     `json:"days_until"`
	Weight    float64 `json:"weight"`
}

// TopicContext is the derived learning signal for one topic.
type TopicContext struct {
	TopicID           int64           `json:"topic_id"`
	TopicName         string          `json:"topic_name"`
	MasteryScore      float64         `json:"mastery_score"`
	MasteryLevel      MasteryLevel    `json:"mastery_level"`
	LastUpdated       *time.Time      `json:"last_updated"`
	NextAssessment    *NextAssessment `json:"next_assessment"`
	Urgency           Urgency         `json:"urgency"`
	RecommendedAction Action          `json:"recommended_action"`
}

// CourseContext aggregates the topics of one course.
type CourseContext struct {
	CourseID         int64          `json:"course_id"`
	CourseName       string         `json:"course_name"`
	CourseCode       string         `json:"course_code"`
	SemesterProgress float64        `json:"semester_progress"`
	Topics           []TopicContext `json:"topics"`
	RiskLevel        RiskLevel      `json:"risk_level"`
	AverageMastery   float64        `json:"average_mastery"`
}

// RiskFlags are cross-cutting boolean signals over the whole topic set.
type RiskFlags struct {
	LowMasteryHighWeight   bool `json:"low_mastery_high_weight"`
	DeadlinePressure       bool `json:"deadline_pressure"`
	StagnantMastery        bool `json:"stagnant_mastery"`
	LateSemesterLowMastery bool `json:"late_semester_low_mastery"`
}

// Active lists the names of the raised flags in a fixed order.
func (f RiskFlags) Active() []string {
	var out []string
	if f.LowMasteryHighWeight {
		out = append(out, "low_mastery_high_weight")
	}
	if f.DeadlinePressure {
		out = append(out, "deadline_pressure")
	}
	if f.StagnantMastery {
		out = append(out, "stagnant_mastery")
	}
	if f.LateSemesterLowMastery {
		out = append(out, "late_semester_low_mastery")
	}
	return out
}

// SummaryStats are totals over every topic of every course.
type SummaryStats struct {
	TotalTopics            int     `json:"total_topics"`
	AverageMastery         float64 `json:"average_mastery"`
	TopicsNeedingAttention int     `json:"topics_needing_attention"`
	CriticalTopics         int     `json:"critical_topics"`
	HighUrgencyTopics      int     `json:"high_urgency_topics"`
}

// ContextMetadata describes how and when a context was assembled.
type ContextMetadata struct {
	CurrentDate    string `json:"current_date"`
	ContextVersion string `json:"context_version"`
	Builder        string `json:"builder"`
}

// LearningContext is the complete, serializable snapshot handed to the
// reasoning stage.
type LearningContext struct {
	Metadata         ContextMetadata `json:"metadata"`
	SemesterProgress float64         `json:"semester_progress"`
	Courses          []CourseContext `json:"courses"`
	RiskFlags        RiskFlags       `json:"risk_flags"`
	SummaryStats     SummaryStats    `json:"summary_stats"`
	Agenda           *Agenda         `json:"agenda,omitempty"`
}

// Snapshot is a persisted learning context.
type Snapshot struct {
	ID        uuid.UUID
	StudentID int64
	AsOf      time.Time
	Context   LearningContext
	CreatedAt time.Time
}

// FocusTopic is a topic context annotated with its owning course, used by
// filtered focus listings.
type FocusTopic struct {
	CourseID   int64     `json:"course_id"`
	CourseCode string    `json:"course_code"`
	CourseName string    `json:"course_name"`
	RiskLevel  RiskLevel `json:"course_risk_level"`
	TopicContext
}
