package cmd

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/eslsoft/masteryctx/internal/infrastructure/config"
	"github.com/eslsoft/masteryctx/internal/infrastructure/database"
	"github.com/eslsoft/masteryctx/internal/infrastructure/server"
	"github.com/eslsoft/masteryctx/internal/usecase/backup"
)

// stdioPath selects stdin or stdout instead of a file.
const stdioPath = "-"

type archiveOptions struct {
	path   string
	tables []string
	batch  int
}

// addArchiveFlags registers the flags export and import share and binds them,
// together with the path flag, under backup.<section>.
func addArchiveFlags(cmd *cobra.Command, section, pathFlag string) {
	flags := cmd.Flags()
	flags.StringSlice("tables", nil, "only these tables (comma separated or repeated)")
	flags.Int("batch-size", 0, "rows per select batch (default 512)")

	prefix := "backup." + section + "."
	bindFlagToViper(prefix+pathFlag, flags.Lookup(pathFlag))
	bindFlagToViper(prefix+"tables", flags.Lookup("tables"))
	bindFlagToViper(prefix+"batch_size", flags.Lookup("batch-size"))
}

func readArchiveOptions(section, pathKey string) archiveOptions {
	prefix := "backup." + section + "."
	return archiveOptions{
		path:   strings.TrimSpace(viper.GetString(prefix + pathKey)),
		tables: tablesFromConfig(prefix + "tables"),
		batch:  viper.GetInt(prefix + "batch_size"),
	}
}

// newBackupService opens the configured database, makes sure the schema
// exists and wraps it in a backup service.
func newBackupService(ctx context.Context, opts archiveOptions) (*backup.Service, func(), error) {
	cfg, logger, err := loadRuntime()
	if err != nil {
		return nil, nil, err
	}
	drv, cleanup, err := openDriver(cfg, logger)
	if err != nil {
		return nil, nil, err
	}
	if err := runMigrations(ctx, drv, logger); err != nil {
		cleanup()
		return nil, nil, err
	}
	svc, err := backup.NewService(drv, backup.WithBatchSize(opts.batch))
	if err != nil {
		cleanup()
		return nil, nil, fmt.Errorf("create backup service: %w", err)
	}
	return svc, cleanup, nil
}

func createArchive(cmd *cobra.Command, path string) (io.Writer, func() error, error) {
	if path == stdioPath {
		return cmd.OutOrStdout(), func() error { return nil }, nil
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, nil, fmt.Errorf("create output directory: %w", err)
	}
	f, err := os.Create(path)
	if err != nil {
		return nil, nil, fmt.Errorf("create backup file: %w", err)
	}
	return f, f.Close, nil
}

func openArchive(cmd *cobra.Command, path string) (io.Reader, func() error, error) {
	if path == stdioPath {
		return cmd.InOrStdin(), func() error { return nil }, nil
	}
	f, err := os.Open(filepath.Clean(path))
	if err != nil {
		return nil, nil, fmt.Errorf("open backup file: %w", err)
	}
	return f, f.Close, nil
}

func describeTarget(path, stdio string) string {
	if path == stdioPath {
		return stdio
	}
	return path
}

func tablesFromConfig(key string) []string {
	return normalizeTables(viper.GetStringSlice(key))
}

func normalizeTables(values []string) []string {
	if len(values) == 0 {
		return nil
	}
	result := make([]string, 0, len(values))
	for _, value := range values {
		for _, part := range strings.Split(value, ",") {
			if name := strings.TrimSpace(part); name != "" {
				result = append(result, strings.ToLower(name))
			}
		}
	}
	if len(result) == 0 {
		return nil
	}
	return result
}

func bindFlagToViper(key string, flag *pflag.Flag) {
	if flag == nil {
		return
	}
	cobra.CheckErr(viper.BindPFlag(key, flag))
}

// loadRuntime reads the configuration and builds the logger shared by the
// one-shot commands.
func loadRuntime() (*config.Config, *logrus.Logger, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, fmt.Errorf("load config: %w", err)
	}
	logger, err := server.NewLogger(cfg)
	if err != nil {
		return nil, nil, err
	}
	return cfg, logger, nil
}

// openDriver opens the configured database for commands that work on tables
// directly.
func openDriver(cfg *config.Config, logger logrus.FieldLogger) (*database.Driver, func(), error) {
	drv, cleanup, err := database.NewEntDriver(cfg, logger)
	if err != nil {
		return nil, nil, fmt.Errorf("open database: %w", err)
	}
	return drv, cleanup, nil
}
