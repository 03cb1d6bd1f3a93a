package mapping

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/samber/lo"
	"gopkg.in/yaml.v3"

	"github.com/eslsoft/masteryctx/internal/entity"
	"github.com/eslsoft/masteryctx/pkg/datemath"
)

// ID is a record identifier that accepts a number or a numeric string.
type ID int64

func (id *ID) UnmarshalJSON(data []byte) error {
	raw := strings.TrimSpace(string(data))
	if unquoted, err := strconv.Unquote(raw); err == nil {
		raw = unquoted
	}
	return id.set(raw)
}

func (id *ID) UnmarshalYAML(node *yaml.Node) error {
	return id.set(node.Value)
}

func (id *ID) set(raw string) error {
	raw = strings.TrimSpace(raw)
	v, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		f, ferr := strconv.ParseFloat(raw, 64)
		if ferr != nil || f != float64(int64(f)) {
			return fmt.Errorf("invalid id %q", raw)
		}
		v = int64(f)
	}
	*id = ID(v)
	return nil
}

func (id *ID) ptr() *int64 {
	if id == nil {
		return nil
	}
	v := int64(*id)
	return &v
}

// CourseDTO is a course row as supplied by a data source.
type CourseDTO struct {
	ID            ID     `json:"id" yaml:"id"`
	Name          string `json:"name" yaml:"name"`
	Code          string `json:"code,omitempty" yaml:"code,omitempty"`
	SemesterStart any    `json:"semester_start,omitempty" yaml:"semester_start,omitempty"`
	SemesterEnd   any    `json:"semester_end,omitempty" yaml:"semester_end,omitempty"`
}

// TopicDTO is a topic row as supplied by a data source.
type TopicDTO struct {
	ID       ID     `json:"id" yaml:"id"`
	CourseID *ID    `json:"course_id" yaml:"course_id"`
	Name     string `json:"name" yaml:"name"`
}

// MasteryDTO is a mastery row as supplied by a data source.
type MasteryDTO struct {
	TopicID      ID       `json:"topic_id" yaml:"topic_id"`
	MasteryScore *float64 `json:"mastery_score" yaml:"mastery_score"`
	LastUpdated  any      `json:"last_updated,omitempty" yaml:"last_updated,omitempty"`
}

// AssessmentDTO is an assignment or event row.
type AssessmentDTO struct {
	ID       ID       `json:"id" yaml:"id"`
	CourseID *ID      `json:"course_id,omitempty" yaml:"course_id,omitempty"`
	TopicID  *ID      `json:"topic_id,omitempty" yaml:"topic_id,omitempty"`
	DueDate  any      `json:"due_date" yaml:"due_date"`
	Weight   *float64 `json:"weight,omitempty" yaml:"weight,omitempty"`
	Type     string   `json:"type,omitempty" yaml:"type,omitempty"`
	Name     string   `json:"name,omitempty" yaml:"name,omitempty"`
}

// QuizDTO is a quiz row. Quizzes carry a scheduled date instead of a due date.
type QuizDTO struct {
	ID            ID       `json:"id" yaml:"id"`
	CourseID      *ID      `json:"course_id,omitempty" yaml:"course_id,omitempty"`
	TopicID       *ID      `json:"topic_id,omitempty" yaml:"topic_id,omitempty"`
	ScheduledDate any      `json:"scheduled_date" yaml:"scheduled_date"`
	Weight        *float64 `json:"weight,omitempty" yaml:"weight,omitempty"`
	Name          string   `json:"name,omitempty" yaml:"name,omitempty"`
}

// RecordsDTO mirrors the six raw input collections of an assembly.
type RecordsDTO struct {
	Courses     []CourseDTO     `json:"courses" yaml:"courses"`
	Topics      []TopicDTO      `json:"topics" yaml:"topics"`
	Mastery     []MasteryDTO    `json:"mastery" yaml:"mastery"`
	Assignments []AssessmentDTO `json:"assignments" yaml:"assignments"`
	Quizzes     []QuizDTO       `json:"quizzes" yaml:"quizzes"`
	Events      []AssessmentDTO `json:"events" yaml:"events"`
}

// DecodeRecordsJSON parses a JSON document into typed records.
func DecodeRecordsJSON(data []byte) (*entity.Records, error) {
	var dto RecordsDTO
	if err := json.Unmarshal(data, &dto); err != nil {
		return nil, fmt.Errorf("decode records: %w", err)
	}
	records := ToRecords(dto)
	return &records, nil
}

// ToRecords normalises loose rows into typed records. Malformed dates become
// absent and mastery scores are clamped.
func ToRecords(in RecordsDTO) entity.Records {
	return entity.Records{
		Courses: lo.Map(in.Courses, func(c CourseDTO, _ int) entity.Course {
			return entity.Course{
				ID:            int64(c.ID),
				Name:          strings.TrimSpace(c.Name),
				Code:          strings.TrimSpace(c.Code),
				SemesterStart: datemath.ParsePtr(c.SemesterStart),
				SemesterEnd:   datemath.ParsePtr(c.SemesterEnd),
			}
		}),
		Topics: lo.Map(in.Topics, func(t TopicDTO, _ int) entity.Topic {
			return entity.Topic{
				ID:       int64(t.ID),
				CourseID: t.CourseID.ptr(),
				Name:     strings.TrimSpace(t.Name),
			}
		}),
		Mastery: lo.Map(in.Mastery, func(m MasteryDTO, _ int) entity.MasteryRecord {
			return entity.NewMasteryRecord(int64(m.TopicID), m.MasteryScore, datemath.ParsePtr(m.LastUpdated))
		}),
		Assignments: lo.Map(in.Assignments, func(a AssessmentDTO, _ int) entity.Assessment {
			return a.toEntity(entity.SourceAssignment)
		}),
		Quizzes: lo.Map(in.Quizzes, func(q QuizDTO, _ int) entity.Assessment {
			return entity.NewAssessment(entity.SourceQuiz, entity.AssessmentInput{
				ID:       int64(q.ID),
				CourseID: q.CourseID.ptr(),
				TopicID:  q.TopicID.ptr(),
				Name:     q.Name,
				Date:     datemath.ParsePtr(q.ScheduledDate),
				Weight:   q.Weight,
			})
		}),
		Events: lo.Map(in.Events, func(a AssessmentDTO, _ int) entity.Assessment {
			return a.toEntity(entity.SourceEvent)
		}),
	}
}

func (a AssessmentDTO) toEntity(source entity.AssessmentSource) entity.Assessment {
	return entity.NewAssessment(source, entity.AssessmentInput{
		ID:       int64(a.ID),
		CourseID: a.CourseID.ptr(),
		TopicID:  a.TopicID.ptr(),
		Type:     a.Type,
		Name:     a.Name,
		Date:     datemath.ParsePtr(a.DueDate),
		Weight:   a.Weight,
	})
}
