package table

import (
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"
	"time"
)

// DateLayout is the calendar date format used in CSV files and API payloads
const DateLayout = "2006-01-02"

// Table is an in-memory, column-named snapshot of query or file results.
// Cells hold nil (absent), string, numeric or time.Time values.
type Table struct {
	name    string
	columns []string
	index   map[string]int
	rows    [][]any
}

// New creates an empty table with the given column names.
// Column names are trimmed and lower-cased so that headers like "Price" match "price".
func New(name string, columns ...string) *Table {
	t := &Table{
		name:    name,
		columns: make([]string, len(columns)),
		index:   make(map[string]int, len(columns)),
	}
	for i, col := range columns {
		normalized := normalizeColumn(col)
		t.columns[i] = normalized
		if _, exists := t.index[normalized]; !exists {
			t.index[normalized] = i
		}
	}
	return t
}

func normalizeColumn(col string) string {
	// Excel exports occasionally carry a UTF-8 BOM on the first header
	col = strings.TrimPrefix(col, "\ufeff")
	return strings.ToLower(strings.TrimSpace(col))
}

// Name returns the table name used in error messages
func (t *Table) Name() string {
	return t.name
}

// Columns returns a copy of the column names
func (t *Table) Columns() []string {
	out := make([]string, len(t.columns))
	copy(out, t.columns)
	return out
}

// Len returns the number of rows
func (t *Table) Len() int {
	if t == nil {
		return 0
	}
	return len(t.rows)
}

// Has reports whether the column exists
func (t *Table) Has(column string) bool {
	_, ok := t.index[normalizeColumn(column)]
	return ok
}

// Missing returns the required columns absent from the table, sorted
func (t *Table) Missing(required ...string) []string {
	var missing []string
	for _, col := range required {
		if !t.Has(col) {
			missing = append(missing, normalizeColumn(col))
		}
	}
	sort.Strings(missing)
	return missing
}

// Append adds a row. The number of values must match the number of columns.
func (t *Table) Append(values ...any) error {
	if len(values) != len(t.columns) {
		return fmt.Errorf("table %s: row has %d values, want %d", t.name, len(values), len(t.columns))
	}
	row := make([]any, len(values))
	copy(row, values)
	t.rows = append(t.rows, row)
	return nil
}

// MustAppend is Append for fixtures; it panics on a width mismatch.
func (t *Table) MustAppend(values ...any) *Table {
	if err := t.Append(values...); err != nil {
		panic(err)
	}
	return t
}

// Value returns the raw cell. ok is false when the column does not exist.
func (t *Table) Value(row int, column string) (any, bool) {
	idx, ok := t.index[normalizeColumn(column)]
	if !ok || row < 0 || row >= len(t.rows) {
		return nil, false
	}
	return t.rows[row][idx], true
}

// IsNull reports whether the cell is absent: nil, an empty string or NaN.
func (t *Table) IsNull(row int, column string) bool {
	v, ok := t.Value(row, column)
	if !ok {
		return true
	}
	return isNull(v)
}

func isNull(v any) bool {
	switch x := v.(type) {
	case nil:
		return true
	case string:
		s := strings.TrimSpace(x)
		return s == "" || strings.EqualFold(s, "null") || strings.EqualFold(s, "nan")
	case float64:
		return math.IsNaN(x)
	case *float64:
		return x == nil || math.IsNaN(*x)
	case *string:
		return x == nil || isNull(*x)
	}
	return false
}

// String returns the cell rendered as a trimmed string; absent cells yield "".
func (t *Table) String(row int, column string) string {
	v, ok := t.Value(row, column)
	if !ok || isNull(v) {
		return ""
	}
	switch x := v.(type) {
	case string:
		return strings.TrimSpace(x)
	case *string:
		return strings.TrimSpace(*x)
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64)
	case *float64:
		return strconv.FormatFloat(*x, 'f', -1, 64)
	case float32:
		return strconv.FormatFloat(float64(x), 'f', -1, 32)
	case time.Time:
		return x.Format(DateLayout)
	case fmt.Stringer:
		return x.String()
	}
	return strings.TrimSpace(fmt.Sprint(v))
}

// Float returns the cell as float64. ok is false for absent cells.
func (t *Table) Float(row int, column string) (value float64, ok bool, err error) {
	v, exists := t.Value(row, column)
	if !exists || isNull(v) {
		return 0, false, nil
	}
	switch x := v.(type) {
	case float64:
		return x, true, nil
	case *float64:
		return *x, true, nil
	case float32:
		return float64(x), true, nil
	case int:
		return float64(x), true, nil
	case int32:
		return float64(x), true, nil
	case int64:
		return float64(x), true, nil
	case uint32:
		return float64(x), true, nil
	case uint64:
		return float64(x), true, nil
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(x), 64)
		if err != nil {
			return 0, false, fmt.Errorf("parse %q as number: %w", x, err)
		}
		return f, true, nil
	case *string:
		return t.parseFloatString(*x)
	case fmt.Stringer:
		return t.parseFloatString(x.String())
	}
	return 0, false, fmt.Errorf("unsupported numeric cell type %T", v)
}

func (t *Table) parseFloatString(s string) (float64, bool, error) {
	f, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil {
		return 0, false, fmt.Errorf("parse %q as number: %w", s, err)
	}
	return f, true, nil
}

// Date returns the cell as a calendar date at UTC midnight.
func (t *Table) Date(row int, column string) (time.Time, bool, error) {
	v, exists := t.Value(row, column)
	if !exists || isNull(v) {
		return time.Time{}, false, nil
	}
	switch x := v.(type) {
	case time.Time:
		return Day(x), true, nil
	case *time.Time:
		if x == nil {
			return time.Time{}, false, nil
		}
		return Day(*x), true, nil
	case string:
		d, err := ParseDate(x)
		if err != nil {
			return time.Time{}, false, err
		}
		return d, true, nil
	}
	return time.Time{}, false, fmt.Errorf("unsupported date cell type %T", v)
}

// Day truncates a timestamp to its calendar day in UTC
func Day(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

var dateLayouts = []string{
	DateLayout,
	time.RFC3339,
	"2006-01-02 15:04:05",
	"2006/01/02",
	"20060102",
}

// ParseDate parses the date formats found in exports and database dumps
func ParseDate(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	for _, layout := range dateLayouts {
		if d, err := time.Parse(layout, s); err == nil {
			return Day(d), nil
		}
	}
	return time.Time{}, fmt.Errorf("parse %q as date: expected YYYY-MM-DD", s)
}
