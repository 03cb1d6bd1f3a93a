package app

import (
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/eslsoft/masteryctx/internal/adapter/fixture"
	adapterrepo "github.com/eslsoft/masteryctx/internal/adapter/repository"
	"github.com/eslsoft/masteryctx/internal/infrastructure/config"
	"github.com/eslsoft/masteryctx/internal/infrastructure/database"
	"github.com/eslsoft/masteryctx/internal/repository"
	"github.com/eslsoft/masteryctx/internal/usecase"
	"github.com/eslsoft/masteryctx/internal/usecase/mastery"
)

// Stores holds the record source and the optional snapshot store picked by
// configuration. Snapshots is nil when persistence is off.
type Stores struct {
	Records   repository.RecordRepository
	Snapshots repository.SnapshotRepository
}

// ProvideStores opens only the backends the configuration asks for.
func ProvideStores(cfg *config.Config, logger logrus.FieldLogger) (*Stores, func(), error) {
	source, err := cfg.RecordSource()
	if err != nil {
		return nil, nil, err
	}
	persist := cfg.Snapshot.Persist
	store := cfg.Snapshot.Store
	if store == "" {
		store = config.SnapshotStoreEnt
	}

	var (
		stores   Stores
		cleanups []func()
		drv      *database.Driver
	)
	cleanup := func() {
		for i := len(cleanups) - 1; i >= 0; i-- {
			cleanups[i]()
		}
	}

	if source == config.RecordSourceDatabase || (persist && store == config.SnapshotStoreEnt) {
		d, closeDrv, err := database.NewEntDriver(cfg, logger)
		if err != nil {
			return nil, nil, err
		}
		drv = d
		cleanups = append(cleanups, closeDrv)
	}

	if source == config.RecordSourceFixture {
		stores.Records = fixture.NewSource(cfg.Records.Fixture)
	} else {
		stores.Records = adapterrepo.NewRecordRepository(drv)
	}

	if persist {
		switch store {
		case config.SnapshotStoreEnt:
			stores.Snapshots = adapterrepo.NewSnapshotRepository(drv)
		case config.SnapshotStorePgx:
			pool, closePool, err := database.NewConnection(cfg, logger)
			if err != nil {
				cleanup()
				return nil, nil, err
			}
			cleanups = append(cleanups, closePool)
			stores.Snapshots = adapterrepo.NewPgxSnapshotRepository(pool)
		default:
			cleanup()
			return nil, nil, fmt.Errorf("unsupported snapshot store %q", cfg.Snapshot.Store)
		}
	}

	logger.WithFields(logrus.Fields{
		"records":   source,
		"persist":   persist,
		"snapshots": store,
	}).Debug("stores ready")
	return &stores, cleanup, nil
}

func ProvideRecordRepository(s *Stores) repository.RecordRepository { return s.Records }

func ProvideSnapshotRepository(s *Stores) repository.SnapshotRepository { return s.Snapshots }

// ProvideLearningContextUsecase applies the engine settings.
func ProvideLearningContextUsecase(
	cfg *config.Config,
	records repository.RecordRepository,
	snapshots repository.SnapshotRepository,
	logger logrus.FieldLogger,
) usecase.LearningContextUsecase {
	engine := []mastery.Option{mastery.WithContextVersion(cfg.Engine.ContextVersion)}
	if cfg.Engine.AgendaHorizon > 0 {
		engine = append(engine, mastery.WithAgenda(cfg.Engine.AgendaHorizon))
	}
	return usecase.NewLearningContextUsecase(records, snapshots, logger,
		usecase.WithPersistence(cfg.Snapshot.Persist),
		usecase.WithEngineOptions(engine...),
	)
}
