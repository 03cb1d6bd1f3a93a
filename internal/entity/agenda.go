package entity

// AgendaItem is one upcoming assessment within the agenda horizon.
type AgendaItem struct {
	Source    AssessmentSource `json:"source"`
	ID        int64            `json:"id"`
	CourseID  *int64           `json:"course_id,omitempty"`
	TopicID   *int64           `json:"topic_id,omitempty"`
	Type      string           `json:"type"`
	Name      string           `json:"name"`
	Date      string           `json:"date"`
	DaysUntil int              `json:"days_until"`
	Weight    float64          `json:"weight"`
}

// WeekLoad counts the deadlines that fall in one week of the horizon.
type WeekLoad struct {
	Week  int `json:"week"`
	Count int `json:"count"`
}

// CourseLoad is the estimated workload of one course over the horizon.
type CourseLoad struct {
	CourseID      int64 `json:"course_id"`
	UpcomingCount int   `json:"upcoming_count"`
	Load          Load  `json:"load"`
}

// Agenda summarises every upcoming deadline, linked to a topic or not.
type Agenda struct {
	HorizonDays        int          `json:"horizon_days"`
	UpcomingDeadlines  int          `json:"upcoming_deadlines"`
	DeadlineClustering bool         `json:"deadline_clustering"`
	HighRiskWeeks      []WeekLoad   `json:"high_risk_weeks"`
	HighestPriority    []AgendaItem `json:"highest_priority"`
	Next7Days          []AgendaItem `json:"next_7_days"`
	Next14Days         []AgendaItem `json:"next_14_days"`
	CourseLoads        []CourseLoad `json:"course_loads"`
}
