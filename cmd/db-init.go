/*
Copyright © 2025 Ambor <saltbo@foxmail.com>

Permission is hereby granted, free of charge, to any person obtaining a copy
of this software and associated documentation files (the "Software"), to deal
in the Software without restriction, including without limitation the rights
to use, copy, modify, merge, publish, distribute, sublicense, and/or sell
copies of the Software, and to permit persons to whom the Software is
furnished to do so, subject to the following conditions:

The above copyright notice and this permission notice shall be included in
all copies or substantial portions of the Software.

THE SOFTWARE IS PROVIDED "AS IS", WITHOUT WARRANTY OF ANY KIND, EXPRESS OR
IMPLIED, INCLUDING BUT NOT LIMITED TO THE WARRANTIES OF MERCHANTABILITY,
FITNESS FOR A PARTICULAR PURPOSE AND NONINFRINGEMENT. IN NO EVENT SHALL THE
AUTHORS OR COPYRIGHT HOLDERS BE LIABLE FOR ANY CLAIM, DAMAGES OR OTHER
LIABILITY, WHETHER IN AN ACTION OF CONTRACT, TORT OR OTHERWISE, ARISING FROM,
OUT OF OR IN CONNECTION WITH THE SOFTWARE OR THE USE OR OTHER DEALINGS IN
THE SOFTWARE.
*/
package cmd

import (
	"context"
	"fmt"
	"hash/crc32"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/eslsoft/masteryctx/internal/adapter/fixture"
	adapterrepo "github.com/eslsoft/masteryctx/internal/adapter/repository"
	"github.com/eslsoft/masteryctx/internal/entity"
	"github.com/eslsoft/masteryctx/internal/infrastructure/database"
	"github.com/eslsoft/masteryctx/internal/repository"
)

// dbInitCmd creates the schema and optionally seeds one student's records.
var dbInitCmd = &cobra.Command{
	Use:   "db-init",
	Short: "Create the database schema and seed records",
	Long: `Create the record and snapshot tables, then load one student's records.

--fixture accepts a YAML or JSON file or an http(s) URL; downloads are cached.
Without --fixture the built-in demo records are loaded. Use --schema-only to
skip seeding. go-sqlite3 needs CGO_ENABLED=1.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		source, _ := cmd.Flags().GetString("fixture")
		studentID, _ := cmd.Flags().GetInt64("student")
		schemaOnly, _ := cmd.Flags().GetBool("schema-only")
		cacheDir, _ := cmd.Flags().GetString("cache-dir")
		noCache, _ := cmd.Flags().GetBool("no-cache")

		cfg, logger, err := loadRuntime()
		if err != nil {
			return err
		}
		drv, cleanup, err := openDriver(cfg, logger)
		if err != nil {
			return err
		}
		defer cleanup()

		if err := runMigrations(cmd.Context(), drv, logger); err != nil {
			return err
		}
		if schemaOnly {
			return nil
		}
		if studentID <= 0 {
			return entity.ErrInvalidStudentID
		}

		records, err := loadSeedRecords(cmd.Context(), source, cacheDir, noCache, logger)
		if err != nil {
			return err
		}
		return seedRecords(cmd.Context(), adapterrepo.NewRecordRepository(drv), studentID, records, logger)
	},
}

func init() {
	rootCmd.AddCommand(dbInitCmd)
	dbInitCmd.Flags().String("fixture", "", "records to seed: file path or http(s) URL (default: built-in demo)")
	dbInitCmd.Flags().Int64("student", 1, "student id the seeded mastery rows belong to")
	dbInitCmd.Flags().Bool("schema-only", false, "only create the schema, do not seed")
	dbInitCmd.Flags().String("cache-dir", "", "download cache directory (default: user cache dir/masteryctx)")
	dbInitCmd.Flags().Bool("no-cache", false, "ignore cached downloads")
}

// runMigrations creates missing tables and indexes.
func runMigrations(ctx context.Context, drv *database.Driver, logger logrus.FieldLogger) error {
	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	if err := database.Migrate(ctx, drv); err != nil {
		return err
	}
	logger.Info("database schema is up to date")
	return nil
}

// loadSeedRecords resolves the --fixture value to records.
func loadSeedRecords(ctx context.Context, source, cacheDirFlag string, noCache bool, logger logrus.FieldLogger) (*entity.Records, error) {
	source = strings.TrimSpace(source)
	if source == "" {
		return fixture.Demo()
	}
	if !isRemote(source) {
		data, err := os.ReadFile(filepath.Clean(source))
		if err != nil {
			return nil, fmt.Errorf("read fixture: %w", err)
		}
		return fixture.Decode(source, data)
	}

	cacheDir, path, fromCache, err := prepareCachePath(source, cacheDirFlag, noCache)
	if err != nil {
		return nil, err
	}
	if fromCache {
		logger.WithField("path", path).Info("using cached fixture")
	} else {
		if err := os.MkdirAll(cacheDir, 0o755); err != nil {
			return nil, fmt.Errorf("create cache directory: %w", err)
		}
		logger.WithFields(logrus.Fields{"url": source, "path": path}).Info("downloading fixture")
		if err := downloadFile(ctx, source, path); err != nil {
			_ = os.Remove(path)
			return nil, err
		}
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read cached fixture: %w", err)
	}
	return fixture.Decode(path, data)
}

func seedRecords(ctx context.Context, w repository.RecordWriter, studentID int64, records *entity.Records, logger logrus.FieldLogger) error {
	start := time.Now()
	if err := w.SaveRecords(ctx, studentID, records); err != nil {
		return fmt.Errorf("seed records: %w", err)
	}
	logger.WithFields(logrus.Fields{
		"student_id":  studentID,
		"courses":     len(records.Courses),
		"topics":      len(records.Topics),
		"mastery":     len(records.Mastery),
		"assignments": len(records.Assignments),
		"quizzes":     len(records.Quizzes),
		"events":      len(records.Events),
		"took":        time.Since(start).String(),
	}).Info("records seeded")
	return nil
}

func isRemote(source string) bool {
	lower := strings.ToLower(source)
	return strings.HasPrefix(lower, "http://") || strings.HasPrefix(lower, "https://")
}

func downloadFile(ctx context.Context, url, path string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return err
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("download %s: %s", url, resp.Status)
	}
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()
	if _, err := io.Copy(f, resp.Body); err != nil {
		return err
	}
	return nil
}

// prepareCachePath decides the cache location and returns (cacheDir, path, fromCache, error).
// The file keeps the URL's extension so decoding can pick JSON or YAML.
func prepareCachePath(url, cacheDirFlag string, noCache bool) (string, string, bool, error) {
	base := cacheDirFlag
	if base == "" {
		userCache, err := os.UserCacheDir()
		if err != nil {
			return "", "", false, fmt.Errorf("locate user cache dir: %w", err)
		}
		base = filepath.Join(userCache, "masteryctx")
	}

	ext := strings.ToLower(filepath.Ext(strings.SplitN(url, "?", 2)[0]))
	if ext != ".json" && ext != ".yml" {
		ext = ".yaml"
	}
	name := fmt.Sprintf("fixture-%08x%s", crc32.ChecksumIEEE([]byte(url)), ext)
	path := filepath.Join(base, name)
	if !noCache {
		if st, err := os.Stat(path); err == nil && st.Size() > 0 {
			return base, path, true, nil
		}
	}
	return base, path, false, nil
}
