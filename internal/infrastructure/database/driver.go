package database

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"entgo.io/ent/dialect"
	entsql "entgo.io/ent/dialect/sql"
	_ "github.com/lib/pq"
	_ "github.com/mattn/go-sqlite3"
	"github.com/sirupsen/logrus"

	"github.com/eslsoft/masteryctx/internal/infrastructure/config"
)

// NewEntDriver opens the configured database behind an ent SQL driver.
func NewEntDriver(cfg *config.Config, logger logrus.FieldLogger) (*Driver, func(), error) {
	driver, err := cfg.DatabaseDriver()
	if err != nil {
		return nil, nil, fmt.Errorf("determine database driver: %w", err)
	}
	dsn, err := cfg.DatabaseURL()
	if err != nil {
		return nil, nil, fmt.Errorf("determine database dsn: %w", err)
	}

	drv, err := Open(driver, dsn)
	if err != nil {
		return nil, nil, err
	}
	if cfg.Database.LogSQL {
		drv = drv.Debug(logger)
	}
	return drv, func() { _ = drv.Close() }, nil
}

// Driver is the ent dialect driver shared by the SQL repositories.
type Driver struct {
	dialect.Driver
}

// Debug wraps the driver so every statement is logged at debug level.
func (d *Driver) Debug(logger logrus.FieldLogger) *Driver {
	return &Driver{
		Driver: dialect.DebugWithContext(d.Driver, func(_ context.Context, args ...any) {
			logger.WithField("component", "ent").Debug(args...)
		}),
	}
}

// Open connects to a postgres or sqlite3 database.
func Open(driverName, dsn string) (*Driver, error) {
	switch driverName {
	case config.DriverPostgres:
		return openSQL("postgres", dialect.Postgres, dsn, nil)
	case config.DriverSQLite:
		return openSQL("sqlite3", dialect.SQLite, dsn, func(ctx context.Context, db *sql.DB) error {
			db.SetMaxOpenConns(1)
			db.SetMaxIdleConns(1)
			if _, err := db.ExecContext(ctx, "PRAGMA foreign_keys = ON;"); err != nil {
				return fmt.Errorf("enable sqlite foreign keys: %w", err)
			}
			return nil
		})
	default:
		return nil, fmt.Errorf("unsupported database driver %q", driverName)
	}
}

func openSQL(sqlDriver, dialectName, dsn string, prepare func(context.Context, *sql.DB) error) (*Driver, error) {
	rawDB, err := sql.Open(sqlDriver, dsn)
	if err != nil {
		return nil, fmt.Errorf("open %s db: %w", sqlDriver, err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := rawDB.PingContext(ctx); err != nil {
		rawDB.Close()
		return nil, fmt.Errorf("ping %s db: %w", sqlDriver, err)
	}
	if prepare != nil {
		if err := prepare(ctx, rawDB); err != nil {
			rawDB.Close()
			return nil, err
		}
	}

	return &Driver{Driver: entsql.OpenDB(dialectName, rawDB)}, nil
}
