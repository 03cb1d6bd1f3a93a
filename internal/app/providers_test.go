package app

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/sirupsen/logrus/hooks/test"

	"github.com/eslsoft/masteryctx/internal/adapter/fixture"
	adapterrepo "github.com/eslsoft/masteryctx/internal/adapter/repository"
	"github.com/eslsoft/masteryctx/internal/infrastructure/config"
	"github.com/eslsoft/masteryctx/internal/usecase"
)

func TestProvideStoresFixtureOnly(t *testing.T) {
	logger, _ := test.NewNullLogger()
	cfg := &config.Config{Records: config.RecordsConfig{Source: config.RecordSourceFixture}}

	stores, cleanup, err := ProvideStores(cfg, logger)
	if err != nil {
		t.Fatalf("ProvideStores returned error: %v", err)
	}
	defer cleanup()

	if _, ok := stores.Records.(*fixture.Source); !ok {
		t.Fatalf("expected fixture source, got %T", stores.Records)
	}
	if stores.Snapshots != nil {
		t.Fatalf("expected no snapshot store, got %T", stores.Snapshots)
	}

	uc := ProvideLearningContextUsecase(cfg, stores.Records, stores.Snapshots, logger)
	snapshot, err := uc.Assemble(context.Background(), usecase.AssembleRequest{StudentID: 1})
	if err != nil {
		t.Fatalf("Assemble returned error: %v", err)
	}
	if len(snapshot.Context.Courses) == 0 {
		t.Fatalf("expected demo courses")
	}
}

func TestProvideStoresSQLite(t *testing.T) {
	logger, _ := test.NewNullLogger()
	cfg := &config.Config{
		Database: config.DatabaseConfig{
			Driver: config.DriverSQLite,
			DSN:    "file:" + filepath.Join(t.TempDir(), "app.db") + "?_fk=1",
		},
		Snapshot: config.SnapshotConfig{Persist: true},
	}

	stores, cleanup, err := ProvideStores(cfg, logger)
	if err != nil {
		t.Fatalf("ProvideStores returned error: %v", err)
	}
	defer cleanup()

	if _, ok := stores.Records.(*adapterrepo.RecordRepository); !ok {
		t.Fatalf("expected database records, got %T", stores.Records)
	}
	if _, ok := stores.Snapshots.(*adapterrepo.SnapshotRepository); !ok {
		t.Fatalf("expected ent snapshot store, got %T", stores.Snapshots)
	}
	if err := stores.Records.Ping(context.Background()); err != nil {
		t.Fatalf("Ping returned error: %v", err)
	}
}

func TestProvideStoresRejectsUnknownStore(t *testing.T) {
	logger, _ := test.NewNullLogger()
	cfg := &config.Config{
		Records:  config.RecordsConfig{Source: config.RecordSourceFixture},
		Snapshot: config.SnapshotConfig{Persist: true, Store: "redis"},
	}
	if _, _, err := ProvideStores(cfg, logger); err == nil {
		t.Fatalf("expected error for unknown snapshot store")
	}
}
