package backup

import (
	"bufio"
	"bytes"
	"cmp"
	"compress/gzip"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"slices"
	"strconv"
	"strings"
	"time"

	"entgo.io/ent/dialect/sql/schema"
	"entgo.io/ent/schema/field"
	"github.com/samber/lo"
)

// maxLineBytes bounds a single archive line. Snapshot payloads are the largest rows.
const maxLineBytes = 32 << 20

// line is one NDJSON record. The meta line carries the embedded Meta; row
// lines name their table in Type and hold the column values in Payload.
type line struct {
	Type string `json:"type"`
	*Meta
	Payload json.RawMessage `json:"payload,omitempty"`
}

type lineWriter struct {
	buf *bufio.Writer
	enc *json.Encoder
	gz  *gzip.Writer
}

func newLineWriter(w io.Writer, compress bool) *lineWriter {
	lw := &lineWriter{}
	if compress {
		lw.gz = gzip.NewWriter(w)
		w = lw.gz
	}
	lw.buf = bufio.NewWriter(w)
	lw.enc = json.NewEncoder(lw.buf)
	lw.enc.SetEscapeHTML(false)
	return lw
}

func (lw *lineWriter) meta(m *Meta) error {
	return lw.enc.Encode(line{Type: metaType, Meta: m})
}

func (lw *lineWriter) row(table string, values map[string]any) error {
	payload, err := json.Marshal(values)
	if err != nil {
		return fmt.Errorf("encode %s row: %w", table, err)
	}
	return lw.enc.Encode(line{Type: table, Payload: payload})
}

func (lw *lineWriter) Close() error {
	if err := lw.buf.Flush(); err != nil {
		return err
	}
	if lw.gz != nil {
		if err := lw.gz.Close(); err != nil {
			return fmt.Errorf("close gzip stream: %w", err)
		}
	}
	return nil
}

// newLineScanner reads archive lines, transparently inflating gzip input.
func newLineScanner(r io.Reader) (*bufio.Scanner, error) {
	br := bufio.NewReader(r)
	if magic, err := br.Peek(2); err == nil && magic[0] == 0x1f && magic[1] == 0x8b {
		gz, err := gzip.NewReader(br)
		if err != nil {
			return nil, fmt.Errorf("open gzip stream: %w", err)
		}
		r = gz
	} else {
		r = br
	}
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64<<10), maxLineBytes)
	return sc, nil
}

// valueClass groups column types by how their values travel through JSON.
type valueClass uint8

const (
	classText valueClass = iota
	classInt
	classFloat
	classTime
	classJSON
)

func classify(col *schema.Column) valueClass {
	switch col.Type {
	case field.TypeInt8, field.TypeInt16, field.TypeInt32, field.TypeInt, field.TypeInt64,
		field.TypeUint8, field.TypeUint16, field.TypeUint32, field.TypeUint, field.TypeUint64:
		return classInt
	case field.TypeFloat32, field.TypeFloat64:
		return classFloat
	case field.TypeTime:
		return classTime
	case field.TypeJSON:
		return classJSON
	default:
		return classText
	}
}

// convertRow pairs scanned driver values with their column names, normalizing
// each one into a JSON friendly form.
func convertRow(table *schema.Table, columns []string, values []any) (map[string]any, error) {
	row := make(map[string]any, len(columns))
	for i, name := range columns {
		col, ok := lookupColumn(table, name)
		if !ok {
			return nil, fmt.Errorf("column %s not found in table %s", name, table.Name)
		}
		v, err := encodeValue(col, values[i])
		if err != nil {
			return nil, fmt.Errorf("convert %s.%s: %w", table.Name, name, err)
		}
		row[name] = v
	}
	return row, nil
}

func encodeValue(col *schema.Column, v any) (any, error) {
	class := classify(col)
	switch x := v.(type) {
	case nil:
		return nil, nil
	case time.Time:
		return x.UTC().Format(time.RFC3339Nano), nil
	case []byte:
		if class == classJSON {
			return json.RawMessage(bytes.Clone(x)), nil
		}
		v = string(x)
	case string:
		if class == classJSON {
			return json.RawMessage(x), nil
		}
	}
	switch class {
	case classInt:
		return asInt64(v)
	case classFloat:
		return asFloat64(v)
	}
	return v, nil
}

// decodeRow is the inverse of convertRow for an archived payload.
func decodeRow(table *schema.Table, payload json.RawMessage) (map[string]any, error) {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(payload, &fields); err != nil {
		return nil, err
	}
	row := make(map[string]any, len(fields))
	for name, data := range fields {
		col, ok := lookupColumn(table, name)
		if !ok {
			return nil, fmt.Errorf("column %s not found in table %s", name, table.Name)
		}
		v, err := decodeValue(col, data)
		if err != nil {
			return nil, fmt.Errorf("convert %s.%s: %w", table.Name, name, err)
		}
		row[name] = v
	}
	return row, nil
}

func decodeValue(col *schema.Column, data json.RawMessage) (any, error) {
	if bytes.Equal(bytes.TrimSpace(data), []byte("null")) {
		return nil, nil
	}
	class := classify(col)
	if class == classJSON {
		return string(data), nil
	}

	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	var v any
	if err := dec.Decode(&v); err != nil {
		return nil, err
	}
	switch class {
	case classInt:
		return asInt64(v)
	case classFloat:
		return asFloat64(v)
	case classTime:
		s := asText(v)
		if s == "" {
			return nil, nil
		}
		t, err := time.Parse(time.RFC3339Nano, s)
		if err != nil {
			return nil, err
		}
		return t.UTC(), nil
	}
	return asText(v), nil
}

func asInt64(v any) (int64, error) {
	switch x := v.(type) {
	case int64:
		return x, nil
	case int:
		return int64(x), nil
	case int32:
		return int64(x), nil
	case float64:
		return int64(x), nil
	case json.Number:
		return x.Int64()
	case string:
		return strconv.ParseInt(x, 10, 64)
	}
	return 0, fmt.Errorf("cannot read %T as an integer", v)
}

func asFloat64(v any) (float64, error) {
	switch x := v.(type) {
	case float64:
		return x, nil
	case float32:
		return float64(x), nil
	case int64:
		return float64(x), nil
	case int:
		return float64(x), nil
	case json.Number:
		return x.Float64()
	case string:
		return strconv.ParseFloat(x, 64)
	}
	return 0, fmt.Errorf("cannot read %T as a number", v)
}

func asText(v any) string {
	switch x := v.(type) {
	case string:
		return x
	case json.Number:
		return x.String()
	}
	return fmt.Sprint(v)
}

// zeroFor supplies a stand-in for a NULL landing in a NOT NULL column.
func zeroFor(col *schema.Column) (any, bool) {
	if col.Default != nil {
		return col.Default, true
	}
	switch classify(col) {
	case classJSON:
		return "{}", true
	case classInt, classFloat:
		return 0, true
	case classText:
		if col.Type == field.TypeString {
			return "", true
		}
	}
	return nil, false
}

func lookupColumn(table *schema.Table, name string) (*schema.Column, bool) {
	return lo.Find(table.Columns, func(c *schema.Column) bool { return c.Name == name })
}

func columnNames(table *schema.Table) []string {
	return lo.Map(table.Columns, func(c *schema.Column, _ int) string { return c.Name })
}

func tableNames(tables []*schema.Table) []string {
	return lo.Map(tables, func(t *schema.Table, _ int) string { return t.Name })
}

// keyColumns is the primary key, falling back to the first unique index.
func keyColumns(table *schema.Table) []string {
	cols := table.PrimaryKey
	if len(cols) == 0 {
		if idx, ok := lo.Find(table.Indexes, func(i *schema.Index) bool { return i.Unique && len(i.Columns) > 0 }); ok {
			cols = idx.Columns
		}
	}
	return lo.Map(cols, func(c *schema.Column, _ int) string { return c.Name })
}

// schemaFingerprint hashes every table, column and index definition so an
// archive can be matched with the schema that produced it.
func schemaFingerprint(tables []*schema.Table) string {
	byName := func(a, b *schema.Table) int { return strings.Compare(a.Name, b.Name) }
	h := sha256.New()
	for _, tbl := range slices.SortedFunc(slices.Values(tables), byName) {
		fmt.Fprintf(h, "table %s\n", tbl.Name)
		cols := slices.SortedFunc(slices.Values(tbl.Columns), func(a, b *schema.Column) int {
			return cmp.Compare(a.Name, b.Name)
		})
		for _, c := range cols {
			fmt.Fprintf(h, "  column %s %s null=%t unique=%t inc=%t\n", c.Name, c.Type, c.Nullable, c.Unique, c.Increment)
		}
		fmt.Fprintf(h, "  pk %s\n", strings.Join(lo.Map(tbl.PrimaryKey, func(c *schema.Column, _ int) string { return c.Name }), ","))
		idxs := slices.SortedFunc(slices.Values(tbl.Indexes), func(a, b *schema.Index) int {
			return cmp.Compare(a.Name, b.Name)
		})
		for _, idx := range idxs {
			names := lo.Map(idx.Columns, func(c *schema.Column, _ int) string { return c.Name })
			fmt.Fprintf(h, "  index %s unique=%t %s\n", idx.Name, idx.Unique, strings.Join(names, ","))
		}
	}
	return hex.EncodeToString(h.Sum(nil))
}
