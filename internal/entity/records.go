package entity

import (
	"math"
	"strings"
	"time"
)

// Course is an academic course a student is enrolled in.
type Course struct {
	ID            int64
	Name          string
	Code          string
	SemesterStart *time.Time
	SemesterEnd   *time.Time
}

// Topic is a unit of study owned by a course. A nil CourseID leaves the topic
// ungrouped.
type Topic struct {
	ID       int64
	CourseID *int64
	Name     string
}

// MasteryRecord holds a student's estimated command of one topic.
type MasteryRecord struct {
	TopicID     int64
	Score       float64
	LastUpdated *time.Time
}

// NewMasteryRecord builds a record with the score clamped into [0, 1]. An
// absent score counts as 0.
func NewMasteryRecord(topicID int64, score *float64, lastUpdated *time.Time) MasteryRecord {
	var s float64
	if score != nil {
		s = ClampScore(*score)
	}
	return MasteryRecord{TopicID: topicID, Score: s, LastUpdated: lastUpdated}
}

// ClampScore forces a mastery score into [0, 1]; NaN becomes 0.
func ClampScore(score float64) float64 {
	switch {
	case math.IsNaN(score), score < 0:
		return 0
	case score > 1:
		return 1
	default:
		return score
	}
}

// AssessmentSource names the record shape an assessment was built from.
type AssessmentSource string

const (
	SourceAssignment AssessmentSource = "assignment"
	SourceQuiz       AssessmentSource = "quiz"
	SourceEvent      AssessmentSource = "event"
)

// DefaultWeight is the weight assumed when a record carries none. Quizzes are
// assumed to count for 10 while assignments and events count for nothing.
func (s AssessmentSource) DefaultWeight() float64 {
	if s == SourceQuiz {
		return 10
	}
	return 0
}

// DefaultName is the display name used when a record carries none.
func (s AssessmentSource) DefaultName() string {
	switch s {
	case SourceQuiz:
		return "Quiz"
	case SourceEvent:
		return "Event"
	default:
		return "Assignment"
	}
}

// Assessment unifies assignments, quizzes and events behind one shape.
type Assessment struct {
	ID       int64
	Source   AssessmentSource
	CourseID *int64
	TopicID  *int64
	Type     string
	Name     string
	Date     *time.Time
	Weight   float64
}

// AssessmentInput carries the optional fields of a raw assessment row.
type AssessmentInput struct {
	ID       int64
	CourseID *int64
	TopicID  *int64
	Type     string
	Name     string
	Date     *time.Time
	Weight   *float64
}

// NewAssessment applies the per-source defaults for type, name and weight.
// Quizzes are always typed "quiz".
func NewAssessment(source AssessmentSource, in AssessmentInput) Assessment {
	typ := strings.TrimSpace(in.Type)
	if typ == "" || source == SourceQuiz {
		typ = string(source)
	}
	name := strings.TrimSpace(in.Name)
	if name == "" {
		name = source.DefaultName()
	}
	weight := source.DefaultWeight()
	if in.Weight != nil && !math.IsNaN(*in.Weight) {
		weight = *in.Weight
	}
	return Assessment{
		ID:       in.ID,
		Source:   source,
		CourseID: in.CourseID,
		TopicID:  in.TopicID,
		Type:     typ,
		Name:     name,
		Date:     in.Date,
		Weight:   weight,
	}
}

// LinkedTo reports whether the assessment references the given topic.
func (a Assessment) LinkedTo(topicID int64) bool {
	return a.TopicID != nil && *a.TopicID == topicID
}

// Records is the full raw input of one context assembly: six ordered
// collections.
type Records struct {
	Courses     []Course
	Topics      []Topic
	Mastery     []MasteryRecord
	Assignments []Assessment
	Quizzes     []Assessment
	Events      []Assessment
}

// Assessments returns assignments, quizzes and events in that order.
func (r Records) Assessments() []Assessment {
	all := make([]Assessment, 0, len(r.Assignments)+len(r.Quizzes)+len(r.Events))
	all = append(all, r.Assignments...)
	all = append(all, r.Quizzes...)
	all = append(all, r.Events...)
	return all
}

// Int64Ptr is a convenience for optional id fields.
func Int64Ptr(v int64) *int64 { return &v }

// Float64Ptr is a convenience for optional numeric fields.
func Float64Ptr(v float64) *float64 { return &v }
