package usecase

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/eslsoft/masteryctx/internal/entity"
	"github.com/eslsoft/masteryctx/internal/repository"
	"github.com/eslsoft/masteryctx/internal/usecase/mastery"
	"github.com/eslsoft/masteryctx/pkg/datemath"
)

// AssembleRequest identifies whose context to build and as of which date. A
// nil AsOf means today.
type AssembleRequest struct {
	StudentID int64
	AsOf      *time.Time
}

// FocusQuery lists the topics of a freshly assembled context, filtered and
// ordered with the focus topic schema.
type FocusQuery struct {
	repository.Pagination
	repository.FilterOrder

	StudentID int64
	AsOf      *time.Time
}

// LearningContextUsecase assembles learning contexts and manages their
// snapshots.
type LearningContextUsecase interface {
	Assemble(ctx context.Context, req AssembleRequest) (*entity.Snapshot, error)
	AssembleRecords(ctx context.Context, asOf *time.Time, records *entity.Records) (*entity.LearningContext, error)
	GetSnapshot(ctx context.Context, id uuid.UUID) (*entity.Snapshot, error)
	ListSnapshots(ctx context.Context, query *repository.ListSnapshotQuery) ([]entity.Snapshot, int64, error)
	FocusTopics(ctx context.Context, query *FocusQuery) ([]entity.FocusTopic, int64, error)
}

// Option customises the learning context usecase.
type Option func(*learningContextUsecase)

// WithClock overrides the time source used for default dates and timestamps.
func WithClock(clock func() time.Time) Option {
	return func(u *learningContextUsecase) {
		if clock != nil {
			u.clock = clock
		}
	}
}

// WithIDGenerator overrides how snapshot ids are minted.
func WithIDGenerator(gen func() uuid.UUID) Option {
	return func(u *learningContextUsecase) {
		if gen != nil {
			u.newID = gen
		}
	}
}

// WithPersistence toggles saving assembled contexts as snapshots.
func WithPersistence(persist bool) Option {
	return func(u *learningContextUsecase) { u.persist = persist }
}

// WithEngineOptions forwards options to every context build.
func WithEngineOptions(opts ...mastery.Option) Option {
	return func(u *learningContextUsecase) { u.engineOpts = append(u.engineOpts, opts...) }
}

// NewLearningContextUsecase wires the record source and snapshot store.
// snapshots may be nil, which disables persistence.
func NewLearningContextUsecase(
	records repository.RecordRepository,
	snapshots repository.SnapshotRepository,
	logger logrus.FieldLogger,
	opts ...Option,
) LearningContextUsecase {
	u := &learningContextUsecase{
		records:   records,
		snapshots: snapshots,
		logger:    logger,
		clock:     time.Now,
		newID:     uuid.New,
		persist:   snapshots != nil,
	}
	for _, opt := range opts {
		opt(u)
	}
	if u.snapshots == nil {
		u.persist = false
	}
	return u
}

type learningContextUsecase struct {
	records    repository.RecordRepository
	snapshots  repository.SnapshotRepository
	logger     logrus.FieldLogger
	clock      func() time.Time
	newID      func() uuid.UUID
	persist    bool
	engineOpts []mastery.Option
}

func (u *learningContextUsecase) Assemble(ctx context.Context, req AssembleRequest) (*entity.Snapshot, error) {
	if req.StudentID <= 0 {
		return nil, entity.ErrInvalidStudentID
	}
	now := u.clock()
	asOf := resolveAsOf(req.AsOf, now)

	lc, err := u.build(ctx, req.StudentID, asOf)
	if err != nil {
		return nil, err
	}

	snapshot := &entity.Snapshot{
		ID:        u.newID(),
		StudentID: req.StudentID,
		AsOf:      asOf,
		Context:   *lc,
		CreatedAt: now.UTC(),
	}
	log := u.logger.WithFields(logrus.Fields{
		"student_id":  req.StudentID,
		"snapshot_id": snapshot.ID.String(),
		"as_of":       datemath.Format(asOf),
		"courses":     len(lc.Courses),
		"topics":      lc.SummaryStats.TotalTopics,
		"risk_flags":  lc.RiskFlags.Active(),
	})
	if u.persist {
		if err := u.snapshots.Save(ctx, snapshot); err != nil {
			return nil, fmt.Errorf("save snapshot: %w", err)
		}
		log.Info("learning context assembled and saved")
	} else {
		log.Info("learning context assembled")
	}
	return snapshot, nil
}

func (u *learningContextUsecase) AssembleRecords(ctx context.Context, asOf *time.Time, records *entity.Records) (*entity.LearningContext, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if records == nil {
		records = &entity.Records{}
	}
	date := resolveAsOf(asOf, u.clock())
	u.logUngrouped(0, records)
	lc := mastery.Build(date, *records, u.engineOpts...)
	return &lc, nil
}

func (u *learningContextUsecase) GetSnapshot(ctx context.Context, id uuid.UUID) (*entity.Snapshot, error) {
	if id == uuid.Nil {
		return nil, entity.ErrInvalidSnapshotID
	}
	if u.snapshots == nil {
		return nil, entity.ErrSnapshotNotFound
	}
	return u.snapshots.Get(ctx, id)
}

func (u *learningContextUsecase) ListSnapshots(ctx context.Context, query *repository.ListSnapshotQuery) ([]entity.Snapshot, int64, error) {
	if query == nil {
		query = &repository.ListSnapshotQuery{}
	}
	if query.StudentID < 0 {
		return nil, 0, entity.ErrInvalidStudentID
	}
	query.Normalize()
	if u.snapshots == nil {
		return []entity.Snapshot{}, 0, nil
	}
	return u.snapshots.List(ctx, query)
}

func (u *learningContextUsecase) build(ctx context.Context, studentID int64, asOf time.Time) (*entity.LearningContext, error) {
	if u.records == nil {
		return nil, entity.ErrNoRecordSource
	}
	records, err := u.records.LoadRecords(ctx, studentID)
	if err != nil {
		return nil, fmt.Errorf("load records for student %d: %w", studentID, err)
	}
	if records == nil {
		records = &entity.Records{}
	}
	u.logUngrouped(studentID, records)
	lc := mastery.Build(asOf, *records, u.engineOpts...)
	return &lc, nil
}

// logUngrouped reports topics that cannot reach any course context.
func (u *learningContextUsecase) logUngrouped(studentID int64, records *entity.Records) {
	ungrouped := mastery.NewIndex(records.Topics, nil).Ungrouped
	if len(ungrouped) == 0 {
		return
	}
	ids := make([]int64, 0, len(ungrouped))
	for _, t := range ungrouped {
		ids = append(ids, t.ID)
	}
	u.logger.WithFields(logrus.Fields{
		"student_id": studentID,
		"topic_ids":  ids,
	}).Debug("topics without a course were left out")
}

func resolveAsOf(asOf *time.Time, now time.Time) time.Time {
	if asOf != nil && !asOf.IsZero() {
		return datemath.DateOnly(*asOf)
	}
	return datemath.DateOnly(now)
}
