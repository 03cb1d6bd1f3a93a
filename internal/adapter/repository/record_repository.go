package repository

import (
	"context"
	"database/sql"
	"fmt"

	"entgo.io/ent/dialect"
	entsql "entgo.io/ent/dialect/sql"
	"golang.org/x/sync/errgroup"

	"github.com/eslsoft/masteryctx/internal/entity"
	"github.com/eslsoft/masteryctx/internal/infrastructure/database"
	"github.com/eslsoft/masteryctx/internal/repository"
)

// RecordRepository reads and writes raw academic records through an ent SQL
// driver. Courses, topics and assessments are shared by all students; mastery
// rows are per student.
type RecordRepository struct {
	drv dialect.Driver
}

var (
	_ repository.RecordRepository = (*RecordRepository)(nil)
	_ repository.RecordWriter     = (*RecordRepository)(nil)
)

// NewRecordRepository constructs an ent-backed record repository.
func NewRecordRepository(drv *database.Driver) *RecordRepository {
	return &RecordRepository{drv: drv}
}

// LoadRecords fetches the six record collections concurrently. Each
// collection is ordered by id so repeated loads feed the engine identical
// input.
func (r *RecordRepository) LoadRecords(ctx context.Context, studentID int64) (*entity.Records, error) {
	if studentID <= 0 {
		return nil, entity.ErrInvalidStudentID
	}

	var records entity.Records
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() (err error) {
		records.Courses, err = r.loadCourses(gctx)
		return err
	})
	g.Go(func() (err error) {
		records.Topics, err = r.loadTopics(gctx)
		return err
	})
	g.Go(func() (err error) {
		records.Mastery, err = r.loadMastery(gctx, studentID)
		return err
	})
	g.Go(func() (err error) {
		records.Assignments, err = r.loadAssessments(gctx, database.TableAssignments, "due_date", entity.SourceAssignment)
		return err
	})
	g.Go(func() (err error) {
		records.Quizzes, err = r.loadAssessments(gctx, database.TableQuizzes, "scheduled_date", entity.SourceQuiz)
		return err
	})
	g.Go(func() (err error) {
		records.Events, err = r.loadAssessments(gctx, database.TableEvents, "due_date", entity.SourceEvent)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return &records, nil
}

// Ping checks that the database answers.
func (r *RecordRepository) Ping(ctx context.Context) error {
	rows := &entsql.Rows{}
	if err := r.drv.Query(ctx, "SELECT 1", []any{}, rows); err != nil {
		return fmt.Errorf("ping records db: %w", err)
	}
	return rows.Close()
}

func (r *RecordRepository) selectAll(table string, columns ...string) *entsql.Selector {
	return entsql.Dialect(r.drv.Dialect()).
		Select(columns...).
		From(entsql.Table(table)).
		OrderBy("id")
}

func (r *RecordRepository) query(ctx context.Context, sel *entsql.Selector, scan func(*entsql.Rows) error) error {
	query, args := sel.Query()
	rows := &entsql.Rows{}
	if err := r.drv.Query(ctx, query, args, rows); err != nil {
		return err
	}
	defer rows.Close()
	for rows.Next() {
		if err := scan(rows); err != nil {
			return err
		}
	}
	return rows.Err()
}

func (r *RecordRepository) loadCourses(ctx context.Context) ([]entity.Course, error) {
	out := make([]entity.Course, 0)
	sel := r.selectAll(database.TableCourses, "id", "name", "code", "semester_start", "semester_end")
	err := r.query(ctx, sel, func(rows *entsql.Rows) error {
		var (
			c          entity.Course
			code       sql.NullString
			start, end sql.NullString
		)
		if err := rows.Scan(&c.ID, &c.Name, &code, &start, &end); err != nil {
			return err
		}
		c.Code = code.String
		c.SemesterStart = datePtr(start)
		c.SemesterEnd = datePtr(end)
		out = append(out, c)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("load courses: %w", err)
	}
	return out, nil
}

func (r *RecordRepository) loadTopics(ctx context.Context) ([]entity.Topic, error) {
	out := make([]entity.Topic, 0)
	sel := r.selectAll(database.TableTopics, "id", "course_id", "name")
	err := r.query(ctx, sel, func(rows *entsql.Rows) error {
		var (
			t        entity.Topic
			courseID sql.NullInt64
		)
		if err := rows.Scan(&t.ID, &courseID, &t.Name); err != nil {
			return err
		}
		t.CourseID = int64Ptr(courseID)
		out = append(out, t)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("load topics: %w", err)
	}
	return out, nil
}

func (r *RecordRepository) loadMastery(ctx context.Context, studentID int64) ([]entity.MasteryRecord, error) {
	out := make([]entity.MasteryRecord, 0)
	sel := r.selectAll(database.TableMastery, "topic_id", "mastery_score", "last_updated").
		Where(entsql.EQ("student_id", studentID))
	err := r.query(ctx, sel, func(rows *entsql.Rows) error {
		var (
			topicID     int64
			score       sql.NullFloat64
			lastUpdated sql.NullString
		)
		if err := rows.Scan(&topicID, &score, &lastUpdated); err != nil {
			return err
		}
		out = append(out, entity.NewMasteryRecord(topicID, float64Ptr(score), datePtr(lastUpdated)))
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("load mastery: %w", err)
	}
	return out, nil
}

func (r *RecordRepository) loadAssessments(ctx context.Context, table, dateColumn string, source entity.AssessmentSource) ([]entity.Assessment, error) {
	out := make([]entity.Assessment, 0)
	sel := r.selectAll(table, "id", "course_id", "topic_id", "name", "type", dateColumn, "weight")
	err := r.query(ctx, sel, func(rows *entsql.Rows) error {
		var (
			id                int64
			courseID, topicID sql.NullInt64
			name, typ, date   sql.NullString
			weight            sql.NullFloat64
		)
		if err := rows.Scan(&id, &courseID, &topicID, &name, &typ, &date, &weight); err != nil {
			return err
		}
		out = append(out, entity.NewAssessment(source, entity.AssessmentInput{
			ID:       id,
			CourseID: int64Ptr(courseID),
			TopicID:  int64Ptr(topicID),
			Type:     typ.String,
			Name:     name.String,
			Date:     datePtr(date),
			Weight:   float64Ptr(weight),
		}))
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("load %s: %w", table, err)
	}
	return out, nil
}

// SaveRecords upserts courses, topics and assessments by id and replaces the
// student's mastery rows, all in one transaction.
func (r *RecordRepository) SaveRecords(ctx context.Context, studentID int64, records *entity.Records) (err error) {
	if studentID <= 0 {
		return entity.ErrInvalidStudentID
	}
	if records == nil {
		return nil
	}

	tx, err := r.drv.Tx(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	b := entsql.Dialect(r.drv.Dialect())
	exec := func(q entsql.Querier) error {
		query, args := q.Query()
		return tx.Exec(ctx, query, args, nil)
	}

	for _, c := range records.Courses {
		ins := b.Insert(database.TableCourses).
			Columns("id", "name", "code", "semester_start", "semester_end").
			Values(c.ID, c.Name, nullString(c.Code), nullDate(c.SemesterStart), nullDate(c.SemesterEnd)).
			OnConflict(entsql.ConflictColumns("id"), entsql.ResolveWithNewValues())
		if err = exec(ins); err != nil {
			return fmt.Errorf("save course %d: %w", c.ID, err)
		}
	}
	for _, t := range records.Topics {
		ins := b.Insert(database.TableTopics).
			Columns("id", "course_id", "name").
			Values(t.ID, nullInt64(t.CourseID), t.Name).
			OnConflict(entsql.ConflictColumns("id"), entsql.ResolveWithNewValues())
		if err = exec(ins); err != nil {
			return fmt.Errorf("save topic %d: %w", t.ID, err)
		}
	}

	if err = exec(b.Delete(database.TableMastery).Where(entsql.EQ("student_id", studentID))); err != nil {
		return fmt.Errorf("clear mastery: %w", err)
	}
	for _, m := range records.Mastery {
		ins := b.Insert(database.TableMastery).
			Columns("student_id", "topic_id", "mastery_score", "last_updated").
			Values(studentID, m.TopicID, nullFloat64(m.Score), nullDate(m.LastUpdated))
		if err = exec(ins); err != nil {
			return fmt.Errorf("save mastery for topic %d: %w", m.TopicID, err)
		}
	}

	for _, set := range []struct {
		table, dateColumn string
		items             []entity.Assessment
	}{
		{database.TableAssignments, "due_date", records.Assignments},
		{database.TableQuizzes, "scheduled_date", records.Quizzes},
		{database.TableEvents, "due_date", records.Events},
	} {
		for _, a := range set.items {
			ins := b.Insert(set.table).
				Columns("id", "course_id", "topic_id", "name", "type", set.dateColumn, "weight").
				Values(a.ID, nullInt64(a.CourseID), nullInt64(a.TopicID), nullString(a.Name), nullString(a.Type), nullDate(a.Date), nullFloat64(a.Weight)).
				OnConflict(entsql.ConflictColumns("id"), entsql.ResolveWithNewValues())
			if err = exec(ins); err != nil {
				return fmt.Errorf("save %s %d: %w", set.table, a.ID, err)
			}
		}
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("commit records: %w", err)
	}
	return nil
}
