// Package mastery assembles deterministic learning contexts from academic
// records. Every function here is pure: the assembly date is always passed
// in and nothing is cached between calls.
package mastery

import (
	"github.com/samber/lo"

	"github.com/eslsoft/masteryctx/internal/entity"
)

// Index holds the lookup structures built from the raw topic and mastery lists.
type Index struct {
	MasteryByTopic map[int64]entity.MasteryRecord
	TopicsByCourse map[int64][]entity.Topic
	// Ungrouped are topics without a course; they never reach a course context.
	Ungrouped []entity.Topic
}

// NewIndex indexes topics and mastery records. Later mastery duplicates win;
// per-course topic lists keep input order.
func NewIndex(topics []entity.Topic, mastery []entity.MasteryRecord) Index {
	ix := Index{
		MasteryByTopic: lo.KeyBy(mastery, func(m entity.MasteryRecord) int64 {
			return m.TopicID
		}),
		TopicsByCourse: make(map[int64][]entity.Topic),
	}
	for _, topic := range topics {
		if topic.CourseID == nil {
			ix.Ungrouped = append(ix.Ungrouped, topic)
			continue
		}
		ix.TopicsByCourse[*topic.CourseID] = append(ix.TopicsByCourse[*topic.CourseID], topic)
	}
	return ix
}

// Mastery returns the mastery record of a topic. Topics without a record get
// a zero score and no update date.
func (ix Index) Mastery(topicID int64) entity.MasteryRecord {
	if rec, ok := ix.MasteryByTopic[topicID]; ok {
		return rec
	}
	return entity.MasteryRecord{TopicID: topicID}
}
