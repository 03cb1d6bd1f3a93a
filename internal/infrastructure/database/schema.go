package database

import (
	"context"
	"fmt"

	"entgo.io/ent/dialect"
	"entgo.io/ent/dialect/sql/schema"
	"entgo.io/ent/schema/field"
)

// Table names.
const (
	TableCourses     = "courses"
	TableTopics      = "topics"
	TableMastery     = "topic_mastery"
	TableAssignments = "assignments"
	TableQuizzes     = "quizzes"
	TableEvents      = "events"
	TableSnapshots   = "context_snapshots"
)

var (
	// CoursesColumns holds the columns for the "courses" table.
	CoursesColumns = []*schema.Column{
		{Name: "id", Type: field.TypeInt64, Increment: true},
		{Name: "name", Type: field.TypeString, Default: ""},
		{Name: "code", Type: field.TypeString, Nullable: true},
		{Name: "semester_start", Type: field.TypeString, Size: 32, Nullable: true},
		{Name: "semester_end", Type: field.TypeString, Size: 32, Nullable: true},
	}
	CoursesTable = &schema.Table{
		Name:       TableCourses,
		Columns:    CoursesColumns,
		PrimaryKey: []*schema.Column{CoursesColumns[0]},
	}

	// TopicsColumns holds the columns for the "topics" table.
	TopicsColumns = []*schema.Column{
		{Name: "id", Type: field.TypeInt64, Increment: true},
		{Name: "course_id", Type: field.TypeInt64, Nullable: true},
		{Name: "name", Type: field.TypeString, Default: ""},
	}
	TopicsTable = &schema.Table{
		Name:       TableTopics,
		Columns:    TopicsColumns,
		PrimaryKey: []*schema.Column{TopicsColumns[0]},
		Indexes: []*schema.Index{
			{Name: "topic_course_id", Columns: []*schema.Column{TopicsColumns[1]}},
		},
	}

	// MasteryColumns holds the columns for the "topic_mastery" table.
	MasteryColumns = []*schema.Column{
		{Name: "id", Type: field.TypeInt64, Increment: true},
		{Name: "student_id", Type: field.TypeInt64},
		{Name: "topic_id", Type: field.TypeInt64},
		{Name: "mastery_score", Type: field.TypeFloat64, Nullable: true},
		{Name: "last_updated", Type: field.TypeString, Size: 32, Nullable: true},
	}
	MasteryTable = &schema.Table{
		Name:       TableMastery,
		Columns:    MasteryColumns,
		PrimaryKey: []*schema.Column{MasteryColumns[0]},
		Indexes: []*schema.Index{
			{Name: "topicmastery_student_id_topic_id", Columns: []*schema.Column{MasteryColumns[1], MasteryColumns[2]}},
		},
	}

	// AssignmentsColumns holds the columns for the "assignments" table.
	AssignmentsColumns = assessmentColumns("due_date")
	AssignmentsTable   = &schema.Table{
		Name:       TableAssignments,
		Columns:    AssignmentsColumns,
		PrimaryKey: []*schema.Column{AssignmentsColumns[0]},
	}

	// QuizzesColumns holds the columns for the "quizzes" table.
	QuizzesColumns = assessmentColumns("scheduled_date")
	QuizzesTable   = &schema.Table{
		Name:       TableQuizzes,
		Columns:    QuizzesColumns,
		PrimaryKey: []*schema.Column{QuizzesColumns[0]},
	}

	// EventsColumns holds the columns for the "events" table.
	EventsColumns = assessmentColumns("due_date")
	EventsTable   = &schema.Table{
		Name:       TableEvents,
		Columns:    EventsColumns,
		PrimaryKey: []*schema.Column{EventsColumns[0]},
	}

	// SnapshotsColumns holds the columns for the "context_snapshots" table.
	SnapshotsColumns = []*schema.Column{
		{Name: "id", Type: field.TypeString, Size: 36},
		{Name: "student_id", Type: field.TypeInt64},
		{Name: "as_of", Type: field.TypeString, Size: 32},
		{Name: "payload", Type: field.TypeJSON},
		{Name: "created_at", Type: field.TypeTime},
	}
	SnapshotsTable = &schema.Table{
		Name:       TableSnapshots,
		Columns:    SnapshotsColumns,
		PrimaryKey: []*schema.Column{SnapshotsColumns[0]},
		Indexes: []*schema.Index{
			{Name: "contextsnapshot_student_id_created_at", Columns: []*schema.Column{SnapshotsColumns[1], SnapshotsColumns[4]}},
		},
	}

	// RecordTables are the raw record tables in dependency order.
	RecordTables = []*schema.Table{
		CoursesTable,
		TopicsTable,
		MasteryTable,
		AssignmentsTable,
		QuizzesTable,
		EventsTable,
	}

	// Tables holds every table of the application schema.
	Tables = append(append([]*schema.Table{}, RecordTables...), SnapshotsTable)
)

func assessmentColumns(dateColumn string) []*schema.Column {
	return []*schema.Column{
		{Name: "id", Type: field.TypeInt64, Increment: true},
		{Name: "course_id", Type: field.TypeInt64, Nullable: true},
		{Name: "topic_id", Type: field.TypeInt64, Nullable: true},
		{Name: "name", Type: field.TypeString, Nullable: true},
		{Name: "type", Type: field.TypeString, Nullable: true},
		{Name: dateColumn, Type: field.TypeString, Size: 32, Nullable: true},
		{Name: "weight", Type: field.TypeFloat64, Nullable: true},
	}
}

// TableByName looks up one of the application tables.
func TableByName(name string) (*schema.Table, bool) {
	for _, t := range Tables {
		if t.Name == name {
			return t, true
		}
	}
	return nil, false
}

// Migrate creates missing tables, columns and indexes.
func Migrate(ctx context.Context, drv dialect.Driver) error {
	m, err := schema.NewMigrate(drv)
	if err != nil {
		return fmt.Errorf("create migrator: %w", err)
	}
	if err := m.Create(ctx, Tables...); err != nil {
		return fmt.Errorf("migrate schema: %w", err)
	}
	return nil
}
