// Package backup streams the application tables to and from NDJSON archives.
package backup

import (
	"bytes"
	"cmp"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"maps"
	"slices"
	"strings"
	"time"

	"entgo.io/ent/dialect"
	entsql "entgo.io/ent/dialect/sql"
	"entgo.io/ent/dialect/sql/schema"
	"github.com/samber/lo"

	"github.com/eslsoft/masteryctx/internal/infrastructure/database"
)

const (
	defaultBatchSize = 512
	formatVersion    = 1
	metaType         = "meta"
)

var (
	errNoTablesSelected = errors.New("backup: no tables selected")
	errMissingMeta      = errors.New("backup: missing meta record")
)

// ProgressReporter receives per-table callbacks while exporting.
type ProgressReporter interface {
	StartTable(table string, total int)
	Increment(table string, delta int)
	FinishTable(table string)
}

type noopProgress struct{}

func (noopProgress) StartTable(string, int) {}
func (noopProgress) Increment(string, int)  {}
func (noopProgress) FinishTable(string)     {}

// Service exports and imports the tables of the application schema through
// an ent SQL driver.
type Service struct {
	drv         dialect.Driver
	batchSize   int
	clock       func() time.Time
	tables      []*schema.Table
	byName      map[string]*schema.Table
	fingerprint string
}

type Option func(*Service)

func WithBatchSize(size int) Option {
	return func(s *Service) {
		if size > 0 {
			s.batchSize = size
		}
	}
}

// WithClock overrides the time stamped into the meta record.
func WithClock(clock func() time.Time) Option {
	return func(s *Service) {
		if clock != nil {
			s.clock = clock
		}
	}
}

// NewService constructs a backup service bound to an open driver.
func NewService(drv dialect.Driver, opts ...Option) (*Service, error) {
	if drv == nil {
		return nil, errors.New("backup: driver is required")
	}
	tables, err := schema.CopyTables(database.Tables)
	if err != nil {
		return nil, fmt.Errorf("copy schema tables: %w", err)
	}
	s := &Service{
		drv:         drv,
		batchSize:   defaultBatchSize,
		clock:       time.Now,
		tables:      tables,
		byName:      lo.KeyBy(tables, func(t *schema.Table) string { return t.Name }),
		fingerprint: schemaFingerprint(tables),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// TableNames lists the tables that can be exported, in dependency order.
func (s *Service) TableNames() []string {
	return tableNames(s.tables)
}

type ExportOption func(*exportConfig)

type exportConfig struct {
	tables   []string
	reporter ProgressReporter
	gzip     bool
}

// WithTables restricts export to the named tables.
func WithTables(tables []string) ExportOption {
	return func(cfg *exportConfig) {
		if len(tables) > 0 {
			cfg.tables = slices.Clone(tables)
		}
	}
}

func WithProgressReporter(reporter ProgressReporter) ExportOption {
	return func(cfg *exportConfig) {
		cfg.reporter = reporter
	}
}

// WithGzip compresses the archive.
func WithGzip(enabled bool) ExportOption {
	return func(cfg *exportConfig) {
		cfg.gzip = enabled
	}
}

type ImportOption func(*importConfig)

type importConfig struct {
	tables []string
}

// WithImportTables restricts import to the named tables. Rows of other tables
// are skipped.
func WithImportTables(tables []string) ImportOption {
	return func(cfg *importConfig) {
		if len(tables) > 0 {
			cfg.tables = slices.Clone(tables)
		}
	}
}

// Meta is the first line of every archive.
type Meta struct {
	Version    int            `json:"version"`
	ExportedAt time.Time      `json:"exported_at"`
	SchemaHash string         `json:"schema_hash"`
	Tables     []string       `json:"tables"`
	RowCounts  map[string]int `json:"row_counts"`
}

// Export writes a meta line followed by one line per row.
func (s *Service) Export(ctx context.Context, w io.Writer, opts ...ExportOption) (*Meta, error) {
	var cfg exportConfig
	for _, opt := range opts {
		opt(&cfg)
	}
	tables, err := s.pick(cfg.tables)
	if err != nil {
		return nil, err
	}
	reporter := cfg.reporter
	if reporter == nil {
		reporter = noopProgress{}
	}

	meta := &Meta{
		Version:    formatVersion,
		ExportedAt: s.clock().UTC(),
		SchemaHash: s.fingerprint,
		Tables:     tableNames(tables),
		RowCounts:  make(map[string]int, len(tables)),
	}
	for _, tbl := range tables {
		n, err := s.count(ctx, tbl.Name)
		if err != nil {
			return nil, fmt.Errorf("count table %s: %w", tbl.Name, err)
		}
		meta.RowCounts[tbl.Name] = n
	}

	out := newLineWriter(w, cfg.gzip)
	if err := out.meta(meta); err != nil {
		return nil, err
	}
	for _, tbl := range tables {
		reporter.StartTable(tbl.Name, meta.RowCounts[tbl.Name])
		err := s.scan(ctx, tbl, func(row map[string]any) error {
			if err := out.row(tbl.Name, row); err != nil {
				return err
			}
			reporter.Increment(tbl.Name, 1)
			return nil
		})
		if err != nil {
			return nil, err
		}
		reporter.FinishTable(tbl.Name)
	}
	if err := out.Close(); err != nil {
		return nil, err
	}
	return meta, nil
}

// Import upserts every row of the selected tables in a single transaction and
// reports the number of rows written per table. Gzip archives are detected
// from their header.
func (s *Service) Import(ctx context.Context, r io.Reader, opts ...ImportOption) (*Meta, error) {
	var cfg importConfig
	for _, opt := range opts {
		opt(&cfg)
	}
	tables, err := s.pick(cfg.tables)
	if err != nil {
		return nil, err
	}
	wanted := lo.KeyBy(tables, func(t *schema.Table) string { return t.Name })

	sc, err := newLineScanner(r)
	if err != nil {
		return nil, err
	}

	tx, err := s.drv.Tx(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin transaction: %w", err)
	}
	done := false
	defer func() {
		if !done {
			_ = tx.Rollback()
		}
	}()

	var meta *Meta
	counts := map[string]int{}
	serials := serialMax{}
	for sc.Scan() {
		raw := sc.Bytes()
		if len(bytes.TrimSpace(raw)) == 0 {
			continue
		}
		var ln line
		if err := json.Unmarshal(raw, &ln); err != nil {
			return nil, fmt.Errorf("decode record: %w", err)
		}

		if ln.Type == metaType {
			if ln.Meta == nil || ln.Version != formatVersion {
				return nil, fmt.Errorf("backup: unsupported format version %d", lo.FromPtr(ln.Meta).Version)
			}
			meta = ln.Meta
			continue
		}
		if meta == nil {
			return nil, errMissingMeta
		}
		tbl, ok := wanted[ln.Type]
		if !ok {
			continue
		}
		if len(ln.Payload) == 0 {
			return nil, fmt.Errorf("backup: missing payload for table %s", ln.Type)
		}
		row, err := decodeRow(tbl, ln.Payload)
		if err != nil {
			return nil, fmt.Errorf("decode payload for %s: %w", tbl.Name, err)
		}
		if err := s.upsert(ctx, tx, tbl, row, serials); err != nil {
			return nil, err
		}
		counts[tbl.Name]++
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("read backup: %w", err)
	}
	if meta == nil {
		return nil, errMissingMeta
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit import: %w", err)
	}
	done = true

	if err := s.resetSequences(ctx, serials); err != nil {
		return nil, err
	}
	meta.RowCounts = counts
	return meta, nil
}

// pick resolves requested table names, case-insensitively, keeping the
// dependency order of the schema. No names selects every table.
func (s *Service) pick(requested []string) ([]*schema.Table, error) {
	if len(requested) == 0 {
		return slices.Clone(s.tables), nil
	}
	want := map[string]bool{}
	for _, name := range requested {
		key := strings.ToLower(strings.TrimSpace(name))
		if key == "" {
			continue
		}
		if _, ok := s.byName[key]; !ok {
			return nil, fmt.Errorf("backup: unsupported table %q", name)
		}
		want[key] = true
	}
	if len(want) == 0 {
		return nil, errNoTablesSelected
	}
	return lo.Filter(s.tables, func(t *schema.Table, _ int) bool { return want[t.Name] }), nil
}

func (s *Service) count(ctx context.Context, table string) (int, error) {
	query, args := entsql.Dialect(s.drv.Dialect()).
		Select(entsql.Count("*")).
		From(entsql.Table(table)).
		Query()
	rows := &entsql.Rows{}
	if err := s.drv.Query(ctx, query, args, rows); err != nil {
		return 0, err
	}
	defer rows.Close()
	n := 0
	if rows.Next() {
		if err := rows.Scan(&n); err != nil {
			return 0, err
		}
	}
	return n, rows.Err()
}

// scan pages through table in key order and hands every converted row to fn.
func (s *Service) scan(ctx context.Context, table *schema.Table, fn func(map[string]any) error) error {
	columns := columnNames(table)
	order := keyColumns(table)
	if len(order) == 0 {
		order = columns
	}
	for offset := 0; ; offset += s.batchSize {
		query, args := entsql.Dialect(s.drv.Dialect()).
			Select(columns...).
			From(entsql.Table(table.Name)).
			OrderBy(order...).
			Limit(s.batchSize).
			Offset(offset).
			Query()
		page, err := s.page(ctx, table, columns, query, args)
		if err != nil {
			return err
		}
		for _, row := range page {
			if err := fn(row); err != nil {
				return err
			}
		}
		if len(page) < s.batchSize {
			return nil
		}
	}
}

func (s *Service) page(ctx context.Context, table *schema.Table, columns []string, query string, args []any) ([]map[string]any, error) {
	rows := &entsql.Rows{}
	if err := s.drv.Query(ctx, query, args, rows); err != nil {
		return nil, fmt.Errorf("query %s: %w", table.Name, err)
	}
	defer rows.Close()

	var out []map[string]any
	for rows.Next() {
		values := make([]any, len(columns))
		ptrs := lo.Map(values, func(_ any, i int) any { return &values[i] })
		if err := rows.Scan(ptrs...); err != nil {
			return nil, fmt.Errorf("scan %s: %w", table.Name, err)
		}
		row, err := convertRow(table, columns, values)
		if err != nil {
			return nil, err
		}
		out = append(out, row)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate %s: %w", table.Name, err)
	}
	return out, nil
}

type serialKey struct{ table, column string }

// serialMax tracks the largest id written to each auto-increment column.
type serialMax map[serialKey]int64

func (s *Service) upsert(ctx context.Context, tx dialect.Tx, table *schema.Table, row map[string]any, serials serialMax) error {
	var (
		cols []string
		args []any
	)
	for _, col := range table.Columns {
		v, present := row[col.Name]
		if !present {
			continue
		}
		if v == nil && !col.Nullable {
			zero, ok := zeroFor(col)
			if !ok {
				return fmt.Errorf("backup: missing required value for %s.%s", table.Name, col.Name)
			}
			v = zero
		}
		if n, ok := v.(int64); ok && col.Increment {
			key := serialKey{table.Name, col.Name}
			serials[key] = max(serials[key], n)
		}
		cols = append(cols, col.Name)
		args = append(args, v)
	}
	if len(cols) == 0 {
		return nil
	}

	ins := entsql.Dialect(s.drv.Dialect()).Insert(table.Name).Columns(cols...).Values(args...)
	if keys := keyColumns(table); len(keys) > 0 {
		action := entsql.ResolveWithNewValues()
		if len(cols) <= len(keys) {
			action = entsql.DoNothing()
		}
		ins.OnConflict(entsql.ConflictColumns(keys...), action)
	}
	query, qargs := ins.Query()
	if err := tx.Exec(ctx, query, qargs, nil); err != nil {
		return fmt.Errorf("insert into %s: %w", table.Name, err)
	}
	return nil
}

// resetSequences moves postgres serial sequences past the imported ids.
func (s *Service) resetSequences(ctx context.Context, serials serialMax) error {
	if s.drv.Dialect() != dialect.Postgres {
		return nil
	}
	keys := slices.SortedFunc(maps.Keys(serials), func(a, b serialKey) int {
		return cmp.Or(cmp.Compare(a.table, b.table), cmp.Compare(a.column, b.column))
	})
	for _, key := range keys {
		if serials[key] <= 0 {
			continue
		}
		query := fmt.Sprintf(
			"SELECT setval(pg_get_serial_sequence('%[1]s', '%[2]s'), GREATEST(%[3]d, (SELECT COALESCE(MAX(%[2]s), 0) FROM %[1]s)))",
			key.table, key.column, serials[key],
		)
		rows := &entsql.Rows{}
		if err := s.drv.Query(ctx, query, []any{}, rows); err != nil {
			return fmt.Errorf("sync sequence for %s.%s: %w", key.table, key.column, err)
		}
		rows.Close()
	}
	return nil
}
