package usecase

import (
	"context"
	"fmt"
	"strings"

	"github.com/samber/lo"

	"github.com/eslsoft/masteryctx/internal/entity"
	"github.com/eslsoft/masteryctx/pkg/filterexpr"
)

var focusTopicsSchema = filterexpr.ResourceSchema{
	Filter: map[string]filterexpr.FilterField{
		"urgency": {
			Kind: filterexpr.KindString,
			Ops: map[filterexpr.Op]string{
				filterexpr.OpEQ: "Urgency",
				filterexpr.OpIN: "Urgencies",
			},
		},
		"mastery_level": {
			Kind: filterexpr.KindString,
			Ops: map[filterexpr.Op]string{
				filterexpr.OpEQ: "Level",
				filterexpr.OpIN: "Levels",
			},
		},
		"course_code": {
			Kind: filterexpr.KindString,
			Ops: map[filterexpr.Op]string{
				filterexpr.OpEQ: "CourseCode",
				filterexpr.OpSW: "CourseCodePrefix",
			},
		},
		"course_id": {
			Kind: filterexpr.KindNumber,
			Ops:  map[filterexpr.Op]string{filterexpr.OpEQ: "CourseID"},
		},
		"mastery": {
			Kind: filterexpr.KindNumber,
			Ops: map[filterexpr.Op]string{
				filterexpr.OpGTE: "MasteryMin",
				filterexpr.OpGT:  "MasteryAbove",
				filterexpr.OpLTE: "MasteryMax",
				filterexpr.OpLT:  "MasteryBelow",
			},
		},
		"days_until": {
			Kind: filterexpr.KindNumber,
			Ops: map[filterexpr.Op]string{
				filterexpr.OpGTE: "DaysMin",
				filterexpr.OpLTE: "DaysMax",
			},
		},
	},
	Order: filterexpr.OrderSchema{
		DefaultPrimary:     "urgency",
		DefaultPrimaryDesc: true,
		FallbackKey:        "topic_id",
		Fields: map[string]filterexpr.OrderField{
			"urgency":    {Expr: "urgency"},
			"mastery":    {Expr: "mastery"},
			"days_until": {Expr: "days_until", Nulls: "last"},
			"topic_id":   {Expr: "topic_id"},
		},
	},
}

var focusTopicKeys = map[string]filterexpr.Key[entity.FocusTopic]{
	"urgency": func(t entity.FocusTopic) (float64, bool) {
		return float64(t.Urgency.Severity()), true
	},
	"mastery": func(t entity.FocusTopic) (float64, bool) {
		return t.MasteryScore, true
	},
	"days_until": func(t entity.FocusTopic) (float64, bool) {
		if t.NextAssessment == nil {
			return 0, false
		}
		return float64(t.NextAssessment.DaysUntil), true
	},
	"topic_id": func(t entity.FocusTopic) (float64, bool) {
		return float64(t.TopicID), true
	},
}

type focusTopicsParams struct {
	Urgency          *string
	Urgencies        []string
	Level            *string
	Levels           []string
	CourseCode       *string
	CourseCodePrefix *string
	CourseID         *int64
	MasteryMin       *float64
	MasteryAbove     *float64
	MasteryMax       *float64
	MasteryBelow     *float64
	DaysMin          *int
	DaysMax          *int

	PrimaryKey    string
	PrimaryDesc   bool
	SecondaryKey  string
	SecondaryDesc bool
}

// match reports whether a topic passes every bound predicate. Day bounds
// exclude topics without an upcoming assessment.
func (p *focusTopicsParams) match(t entity.FocusTopic) bool {
	switch {
	case p.Urgency != nil && string(t.Urgency) != *p.Urgency:
		return false
	case len(p.Urgencies) > 0 && !lo.Contains(p.Urgencies, string(t.Urgency)):
		return false
	case p.Level != nil && string(t.MasteryLevel) != *p.Level:
		return false
	case len(p.Levels) > 0 && !lo.Contains(p.Levels, string(t.MasteryLevel)):
		return false
	case p.CourseCode != nil && t.CourseCode != *p.CourseCode:
		return false
	case p.CourseCodePrefix != nil && !strings.HasPrefix(t.CourseCode, *p.CourseCodePrefix):
		return false
	case p.CourseID != nil && t.CourseID != *p.CourseID:
		return false
	case p.MasteryMin != nil && t.MasteryScore < *p.MasteryMin:
		return false
	case p.MasteryAbove != nil && t.MasteryScore <= *p.MasteryAbove:
		return false
	case p.MasteryMax != nil && t.MasteryScore > *p.MasteryMax:
		return false
	case p.MasteryBelow != nil && t.MasteryScore >= *p.MasteryBelow:
		return false
	}
	if p.DaysMin == nil && p.DaysMax == nil {
		return true
	}
	if t.NextAssessment == nil {
		return false
	}
	days := t.NextAssessment.DaysUntil
	if p.DaysMin != nil && days < *p.DaysMin {
		return false
	}
	if p.DaysMax != nil && days > *p.DaysMax {
		return false
	}
	return true
}

// FocusTopics flattens a freshly assembled context into course-annotated
// topics, then filters, orders and pages them.
func (u *learningContextUsecase) FocusTopics(ctx context.Context, query *FocusQuery) ([]entity.FocusTopic, int64, error) {
	if query == nil || query.StudentID <= 0 {
		return nil, 0, entity.ErrInvalidStudentID
	}

	var params focusTopicsParams
	if err := filterexpr.Bind(query, &params, focusTopicsSchema); err != nil {
		return nil, 0, fmt.Errorf("%w: %v", entity.ErrInvalidFilter, err)
	}
	query.Normalize()

	lc, err := u.build(ctx, query.StudentID, resolveAsOf(query.AsOf, u.clock()))
	if err != nil {
		return nil, 0, err
	}

	topics := lo.Filter(FlattenFocus(lc), func(t entity.FocusTopic, _ int) bool {
		return params.match(t)
	})
	ord := filterexpr.Ordering{
		PrimaryKey:    params.PrimaryKey,
		PrimaryDesc:   params.PrimaryDesc,
		SecondaryKey:  params.SecondaryKey,
		SecondaryDesc: params.SecondaryDesc,
	}
	if err := filterexpr.SortSlice(topics, ord, focusTopicsSchema.Order, focusTopicKeys); err != nil {
		return nil, 0, err
	}

	total := int64(len(topics))
	start := query.Offset()
	if start < 0 || start >= total {
		return []entity.FocusTopic{}, total, nil
	}
	end := min(start+int64(query.PageSize), total)
	return topics[start:end], total, nil
}

// FlattenFocus lists every topic of the context together with its course.
func FlattenFocus(lc *entity.LearningContext) []entity.FocusTopic {
	return lo.FlatMap(lc.Courses, func(c entity.CourseContext, _ int) []entity.FocusTopic {
		return lo.Map(c.Topics, func(t entity.TopicContext, _ int) entity.FocusTopic {
			return entity.FocusTopic{
				CourseID:     c.CourseID,
				CourseCode:   c.CourseCode,
				CourseName:   c.CourseName,
				RiskLevel:    c.RiskLevel,
				TopicContext: t,
			}
		})
	})
}
