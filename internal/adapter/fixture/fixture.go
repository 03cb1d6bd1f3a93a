// Package fixture serves academic records from YAML or JSON files instead of
// a database.
package fixture

import (
	"context"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/eslsoft/masteryctx/internal/adapter/mapping"
	"github.com/eslsoft/masteryctx/internal/entity"
	"github.com/eslsoft/masteryctx/internal/repository"
)

//go:embed demo.yaml
var demoYAML []byte

var extensions = []string{".yaml", ".yml", ".json"}

// Source reads records from a fixture. The path may name a single file shared
// by every student, or a directory holding one <student_id>.{yaml,yml,json}
// file per student. An empty path serves the built-in demo records.
type Source struct {
	path string
}

var _ repository.RecordRepository = (*Source)(nil)

// NewSource creates a fixture source rooted at path.
func NewSource(path string) *Source {
	return &Source{path: strings.TrimSpace(path)}
}

// LoadRecords implements repository.RecordRepository.
func (s *Source) LoadRecords(ctx context.Context, studentID int64) (*entity.Records, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if s.path == "" {
		return Demo()
	}

	file, err := s.resolve(studentID)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(file)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", entity.ErrFixtureNotFound, file)
		}
		return nil, fmt.Errorf("read fixture %s: %w", file, err)
	}
	return Decode(file, data)
}

// Ping reports whether the fixture path is readable.
func (s *Source) Ping(context.Context) error {
	if s.path == "" {
		return nil
	}
	if _, err := os.Stat(s.path); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("%w: %s", entity.ErrFixtureNotFound, s.path)
		}
		return err
	}
	return nil
}

func (s *Source) resolve(studentID int64) (string, error) {
	info, err := os.Stat(s.path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return "", fmt.Errorf("%w: %s", entity.ErrFixtureNotFound, s.path)
		}
		return "", err
	}
	if !info.IsDir() {
		return s.path, nil
	}

	base := filepath.Join(s.path, strconv.FormatInt(studentID, 10))
	for _, ext := range extensions {
		candidate := base + ext
		if _, err := os.Stat(candidate); err == nil {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("%w: student %d in %s", entity.ErrFixtureNotFound, studentID, s.path)
}

// Decode parses fixture data, choosing JSON or YAML by the file extension.
// Unknown extensions are read as YAML, which also accepts JSON.
func Decode(name string, data []byte) (*entity.Records, error) {
	var dto mapping.RecordsDTO
	if strings.EqualFold(filepath.Ext(name), ".json") {
		if err := json.Unmarshal(data, &dto); err != nil {
			return nil, fmt.Errorf("decode %s: %w", name, err)
		}
	} else if err := yaml.Unmarshal(data, &dto); err != nil {
		return nil, fmt.Errorf("decode %s: %w", name, err)
	}
	records := mapping.ToRecords(dto)
	return &records, nil
}

// Demo returns the built-in demo records.
func Demo() (*entity.Records, error) {
	return Decode("demo.yaml", demoYAML)
}
