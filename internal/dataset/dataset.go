// Package dataset holds the in-memory tabular representation built from a
// decoded CSV, plus the schema summary handed to code synthesis.
package dataset

import (
	"encoding/json"
	"fmt"
	"math"
	"regexp"
	"sort"
	"strconv"
	"strings"
)

// Kind is the inferred scalar type of a column.
type Kind string

const (
	KindNumeric Kind = "numeric"
	KindText    Kind = "text"
)

// Column is a single named column. Values always holds the raw (trimmed)
// cell text; Floats is populated in parallel when Kind is numeric, with NaN
// standing in for blank cells.
type Column struct {
	Name   string
	Kind   Kind
	Values []string
	Floats []float64
}

// Dataset is an immutable table of typed columns. It is created once per
// successful decode and never mutated for the duration of a request.
type Dataset struct {
	Columns []Column
}

// New builds a Dataset from a header and data rows. Column names are
// whitespace-trimmed and de-duplicated (second occurrence of "x" becomes
// "x_2" and so on). Short rows are padded with empty cells; long rows are
// truncated to the header width.
func New(header []string, rows [][]string) *Dataset {
	seen := map[string]int{}
	cols := make([]Column, len(header))
	for i, h := range header {
		name := strings.TrimSpace(h)
		if name == "" {
			name = fmt.Sprintf("column_%d", i+1)
		}
		seen[name]++
		if n := seen[name]; n > 1 {
			name = fmt.Sprintf("%s_%d", name, n)
			seen[name]++
		}
		cols[i] = Column{Name: name, Kind: KindText, Values: make([]string, 0, len(rows))}
	}
	for _, row := range rows {
		for i := range cols {
			v := ""
			if i < len(row) {
				v = strings.TrimSpace(row[i])
			}
			cols[i].Values = append(cols[i].Values, v)
		}
	}
	return &Dataset{Columns: cols}
}

// Rows returns the number of data rows.
func (d *Dataset) Rows() int {
	if len(d.Columns) == 0 {
		return 0
	}
	return len(d.Columns[0].Values)
}

// Cols returns the number of columns.
func (d *Dataset) Cols() int { return len(d.Columns) }

// Column looks a column up by exact name.
func (d *Dataset) Column(name string) (*Column, bool) {
	for i := range d.Columns {
		if d.Columns[i].Name == name {
			return &d.Columns[i], true
		}
	}
	return nil, false
}

// NumericColumns returns the names of numeric columns in table order.
func (d *Dataset) NumericColumns() []string {
	var out []string
	for i := range d.Columns {
		if d.Columns[i].Kind == KindNumeric {
			out = append(out, d.Columns[i].Name)
		}
	}
	return out
}

// numericCell matches integers and decimals with optional thousands commas,
// e.g. "1,234.5" or "-20". A column coerces only when every populated cell
// matches.
var numericCell = regexp.MustCompile(`^-?[0-9,]+(\.[0-9]+)?$`)

// Coerce attempts full-column numeric coercion: commas are stripped and the
// remainder parsed as float64. Columns with any non-matching populated cell
// are left as text; no rows are dropped either way.
func (d *Dataset) Coerce() {
	for i := range d.Columns {
		c := &d.Columns[i]
		populated := 0
		ok := true
		for _, v := range c.Values {
			if v == "" {
				continue
			}
			populated++
			if !numericCell.MatchString(v) {
				ok = false
				break
			}
		}
		if !ok || populated == 0 {
			continue
		}
		floats := make([]float64, len(c.Values))
		for j, v := range c.Values {
			if v == "" {
				floats[j] = math.NaN()
				continue
			}
			f, err := strconv.ParseFloat(strings.ReplaceAll(v, ",", ""), 64)
			if err != nil {
				ok = false
				break
			}
			floats[j] = f
		}
		if ok {
			c.Kind = KindNumeric
			c.Floats = floats
		}
	}
}

// floats returns the populated numeric values of a column.
func (c *Column) floats() []float64 {
	out := make([]float64, 0, len(c.Floats))
	for _, f := range c.Floats {
		if !math.IsNaN(f) {
			out = append(out, f)
		}
	}
	return out
}

// Mean returns the arithmetic mean of populated cells, NaN when empty.
func (c *Column) Mean() float64 {
	vs := c.floats()
	if len(vs) == 0 {
		return math.NaN()
	}
	sum := 0.0
	for _, v := range vs {
		sum += v
	}
	return sum / float64(len(vs))
}

// Median returns the median of populated cells, NaN when empty.
func (c *Column) Median() float64 {
	vs := c.floats()
	if len(vs) == 0 {
		return math.NaN()
	}
	sort.Float64s(vs)
	n := len(vs)
	if n%2 == 1 {
		return vs[n/2]
	}
	return (vs[n/2-1] + vs[n/2]) / 2
}

// Min returns the smallest populated value, NaN when empty.
func (c *Column) Min() float64 {
	vs := c.floats()
	if len(vs) == 0 {
		return math.NaN()
	}
	m := vs[0]
	for _, v := range vs[1:] {
		if v < m {
			m = v
		}
	}
	return m
}

// Max returns the largest populated value, NaN when empty.
func (c *Column) Max() float64 {
	vs := c.floats()
	if len(vs) == 0 {
		return math.NaN()
	}
	m := vs[0]
	for _, v := range vs[1:] {
		if v > m {
			m = v
		}
	}
	return m
}

// Std returns the sample standard deviation, NaN when fewer than two values.
func (c *Column) Std() float64 {
	vs := c.floats()
	if len(vs) < 2 {
		return math.NaN()
	}
	mean := c.Mean()
	var m2 float64
	for _, v := range vs {
		d := v - mean
		m2 += d * d
	}
	return math.Sqrt(m2 / float64(len(vs)-1))
}

// Missing counts blank cells.
func (c *Column) Missing() int {
	n := 0
	for _, v := range c.Values {
		if v == "" {
			n++
		}
	}
	return n
}

// Field is one named cell in an ordered sample row.
type Field struct {
	Name  string
	Value any
}

// Row is an ordered column-name → value mapping. It marshals to a JSON
// object whose keys appear in table column order.
type Row []Field

// MarshalJSON writes fields in order instead of the map-key order a
// map[string]any would give.
func (r Row) MarshalJSON() ([]byte, error) {
	var b strings.Builder
	b.WriteByte('{')
	for i, f := range r {
		if i > 0 {
			b.WriteByte(',')
		}
		k, err := json.Marshal(f.Name)
		if err != nil {
			return nil, err
		}
		v, err := json.Marshal(f.Value)
		if err != nil {
			return nil, err
		}
		b.Write(k)
		b.WriteByte(':')
		b.Write(v)
	}
	b.WriteByte('}')
	return []byte(b.String()), nil
}

// ColumnSchema pairs a column name with its inferred kind.
type ColumnSchema struct {
	Name string
	Kind Kind
}

// Schema is the lightweight descriptive view used as synthesis context and
// in upload responses. Never mutated after construction.
type Schema struct {
	Rows    int
	Cols    int
	Columns []ColumnSchema
	Sample  []Row
}

// Names returns the column names in table order.
func (s *Schema) Names() []string {
	out := make([]string, len(s.Columns))
	for i, c := range s.Columns {
		out[i] = c.Name
	}
	return out
}

// Dtypes returns a name → kind map in the shape of the upload response.
func (s *Schema) Dtypes() map[string]string {
	out := make(map[string]string, len(s.Columns))
	for _, c := range s.Columns {
		out[c.Name] = string(c.Kind)
	}
	return out
}

// Schema derives the summary view: shape, per-column kinds, and up to
// sampleRows leading rows as ordered mappings.
func (d *Dataset) Schema(sampleRows int) *Schema {
	if sampleRows <= 0 {
		sampleRows = 5
	}
	s := &Schema{Rows: d.Rows(), Cols: d.Cols()}
	for i := range d.Columns {
		s.Columns = append(s.Columns, ColumnSchema{Name: d.Columns[i].Name, Kind: d.Columns[i].Kind})
	}
	n := d.Rows()
	if n > sampleRows {
		n = sampleRows
	}
	for r := 0; r < n; r++ {
		row := make(Row, 0, d.Cols())
		for i := range d.Columns {
			c := &d.Columns[i]
			var v any = c.Values[r]
			if c.Kind == KindNumeric && !math.IsNaN(c.Floats[r]) {
				v = c.Floats[r]
			}
			row = append(row, Field{Name: c.Name, Value: v})
		}
		s.Sample = append(s.Sample, row)
	}
	return s
}
