package sandbox

import (
	"fmt"
	"math"
	"sort"
	"strings"

	"gonum.org/v1/gonum/stat"

	"github.com/DevHack1010/NemHemAI/internal/dataset"
)

// Frame is the view of a dataset handed to executed analysis code as `df`.
// Every method is total: an unknown column name yields NaN, an empty slice,
// or an explanatory table instead of a panic, so generated code cannot crash
// the run through a bad column reference alone.
type Frame struct {
	ds *dataset.Dataset
}

// NewFrame wraps a coerced dataset.
func NewFrame(ds *dataset.Dataset) *Frame { return &Frame{ds: ds} }

// Shape returns (rows, columns).
func (f *Frame) Shape() (int, int) { return f.ds.Rows(), f.ds.Cols() }

// Columns returns the column names in dataset order.
func (f *Frame) Columns() []string {
	out := make([]string, 0, f.ds.Cols())
	for i := range f.ds.Columns {
		out = append(out, f.ds.Columns[i].Name)
	}
	return out
}

// NumericColumns returns the names of numeric columns in dataset order.
func (f *Frame) NumericColumns() []string { return f.ds.NumericColumns() }

// Column returns the numeric values of a column with NaN rows removed.
// Text or unknown columns return an empty slice.
func (f *Frame) Column(name string) []float64 {
	c, ok := f.ds.Column(name)
	if !ok || c.Kind != dataset.KindNumeric {
		return nil
	}
	out := make([]float64, 0, len(c.Floats))
	for _, v := range c.Floats {
		if !math.IsNaN(v) {
			out = append(out, v)
		}
	}
	return out
}

// Values returns the raw cell text of a column, numeric or not.
func (f *Frame) Values(name string) []string {
	c, ok := f.ds.Column(name)
	if !ok {
		return nil
	}
	return append([]string(nil), c.Values...)
}

func (f *Frame) numericColumn(name string) (*dataset.Column, bool) {
	c, ok := f.ds.Column(name)
	if !ok || c.Kind != dataset.KindNumeric {
		return nil, false
	}
	return c, true
}

// Mean returns the arithmetic mean of a numeric column, NaN otherwise.
func (f *Frame) Mean(name string) float64 {
	if c, ok := f.numericColumn(name); ok {
		return c.Mean()
	}
	return math.NaN()
}

// Median returns the median of a numeric column, NaN otherwise.
func (f *Frame) Median(name string) float64 {
	if c, ok := f.numericColumn(name); ok {
		return c.Median()
	}
	return math.NaN()
}

// Min returns the minimum of a numeric column, NaN otherwise.
func (f *Frame) Min(name string) float64 {
	if c, ok := f.numericColumn(name); ok {
		return c.Min()
	}
	return math.NaN()
}

// Max returns the maximum of a numeric column, NaN otherwise.
func (f *Frame) Max(name string) float64 {
	if c, ok := f.numericColumn(name); ok {
		return c.Max()
	}
	return math.NaN()
}

// Std returns the sample standard deviation of a numeric column, NaN
// otherwise.
func (f *Frame) Std(name string) float64 {
	if c, ok := f.numericColumn(name); ok {
		return c.Std()
	}
	return math.NaN()
}

// Missing returns the count of blank or unparseable cells in a column.
func (f *Frame) Missing(name string) int {
	c, ok := f.ds.Column(name)
	if !ok {
		return 0
	}
	return c.Missing()
}

// Corr returns the Pearson correlation between two numeric columns over the
// rows where both are present, or NaN when fewer than two such rows exist.
func (f *Frame) Corr(a, b string) float64 {
	ca, okA := f.numericColumn(a)
	cb, okB := f.numericColumn(b)
	if !okA || !okB {
		return math.NaN()
	}
	var xs, ys []float64
	for i := range ca.Floats {
		if i >= len(cb.Floats) {
			break
		}
		x, y := ca.Floats[i], cb.Floats[i]
		if math.IsNaN(x) || math.IsNaN(y) {
			continue
		}
		xs = append(xs, x)
		ys = append(ys, y)
	}
	if len(xs) < 2 {
		return math.NaN()
	}
	return stat.Correlation(xs, ys, nil)
}

// TypeTable renders one line per column with its inferred type and non-null
// count.
func (f *Frame) TypeTable() string {
	var b strings.Builder
	rows := f.ds.Rows()
	for i := range f.ds.Columns {
		c := &f.ds.Columns[i]
		kind := "text"
		if c.Kind == dataset.KindNumeric {
			kind = "numeric"
		}
		fmt.Fprintf(&b, "%-20s %-8s %d non-null\n", c.Name, kind, rows-c.Missing())
	}
	return b.String()
}

// DescribeTable renders mean, median, std, min and max for every numeric
// column, one column per line.
func (f *Frame) DescribeTable() string {
	nums := f.ds.NumericColumns()
	if len(nums) == 0 {
		return "no numeric columns\n"
	}
	var b strings.Builder
	fmt.Fprintf(&b, "%-20s %10s %10s %10s %10s %10s\n", "column", "mean", "median", "std", "min", "max")
	for _, name := range nums {
		c, _ := f.ds.Column(name)
		fmt.Fprintf(&b, "%-20s %10.2f %10.2f %10.2f %10.2f %10.2f\n",
			name, c.Mean(), c.Median(), c.Std(), c.Min(), c.Max())
	}
	return b.String()
}

// MissingTable renders the per-column missing cell counts.
func (f *Frame) MissingTable() string {
	var b strings.Builder
	for i := range f.ds.Columns {
		c := &f.ds.Columns[i]
		fmt.Fprintf(&b, "%-20s %d\n", c.Name, c.Missing())
	}
	return b.String()
}

// CorrTable renders the pairwise Pearson correlation matrix over numeric
// columns.
func (f *Frame) CorrTable() string {
	nums := f.ds.NumericColumns()
	if len(nums) < 2 {
		return "need at least two numeric columns for correlation\n"
	}
	var b strings.Builder
	fmt.Fprintf(&b, "%-20s", "")
	for _, n := range nums {
		fmt.Fprintf(&b, " %10s", truncate(n, 10))
	}
	b.WriteByte('\n')
	for _, a := range nums {
		fmt.Fprintf(&b, "%-20s", truncate(a, 20))
		for _, c := range nums {
			fmt.Fprintf(&b, " %10.2f", f.Corr(a, c))
		}
		b.WriteByte('\n')
	}
	return b.String()
}

// binnedMeans buckets the group column into equal-width ranges and averages
// the target column within each bucket. Empty buckets are skipped.
func (f *Frame) binnedMeans(target, group string, bins int) (labels []string, means []float64, ok bool) {
	ct, okT := f.numericColumn(target)
	cg, okG := f.numericColumn(group)
	if !okT || !okG || bins < 1 {
		return nil, nil, false
	}
	lo, hi := cg.Min(), cg.Max()
	if math.IsNaN(lo) || math.IsNaN(hi) {
		return nil, nil, false
	}
	width := (hi - lo) / float64(bins)
	if width == 0 {
		width = 1
	}
	sums := make([]float64, bins)
	counts := make([]int, bins)
	for i := range cg.Floats {
		if i >= len(ct.Floats) {
			break
		}
		g, t := cg.Floats[i], ct.Floats[i]
		if math.IsNaN(g) || math.IsNaN(t) {
			continue
		}
		b := int((g - lo) / width)
		if b >= bins {
			b = bins - 1
		}
		sums[b] += t
		counts[b]++
	}
	for b := 0; b < bins; b++ {
		if counts[b] == 0 {
			continue
		}
		labels = append(labels, fmt.Sprintf("%.0f-%.0f", lo+float64(b)*width, lo+float64(b+1)*width))
		means = append(means, sums[b]/float64(counts[b]))
	}
	return labels, means, len(labels) > 0
}

// BinnedMeanTable renders the average of target per equal-width range of
// group.
func (f *Frame) BinnedMeanTable(target, group string, bins int) string {
	labels, means, ok := f.binnedMeans(target, group, bins)
	if !ok {
		return fmt.Sprintf("cannot bin %s by %s\n", target, group)
	}
	var b strings.Builder
	fmt.Fprintf(&b, "%-20s %12s\n", group+" range", "avg "+truncate(target, 8))
	for i, l := range labels {
		fmt.Fprintf(&b, "%-20s %12.2f\n", l, means[i])
	}
	return b.String()
}

// GroupCounts returns the distinct values of a text column with their row
// counts, most frequent first.
func (f *Frame) GroupCounts(name string) ([]string, []float64) {
	c, ok := f.ds.Column(name)
	if !ok {
		return nil, nil
	}
	counts := map[string]int{}
	for _, v := range c.Values {
		if v != "" {
			counts[v]++
		}
	}
	keys := make([]string, 0, len(counts))
	for k := range counts {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		if counts[keys[i]] != counts[keys[j]] {
			return counts[keys[i]] > counts[keys[j]]
		}
		return keys[i] < keys[j]
	})
	vals := make([]float64, len(keys))
	for i, k := range keys {
		vals[i] = float64(counts[k])
	}
	return keys, vals
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
