package sandbox

import (
	"bytes"
	"fmt"
	"io"
	"math"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/palette"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"
)

const (
	figWidth  = 8 * vg.Inch
	figHeight = 5 * vg.Inch
)

// plotKit renders charts for one execution. The run keeps at most one
// rendered image: the first successful render wins and later calls are
// ignored, matching the single-chart contract of the event stream. Render
// failures are written to the run's output instead of aborting the code.
type plotKit struct {
	out   io.Writer
	png   []byte
	count int
}

func newPlotKit(out io.Writer) *plotKit { return &plotKit{out: out} }

// Image returns the captured PNG, nil when no chart was rendered.
func (k *plotKit) Image() []byte { return k.png }

// FigureCount reports how many charts were successfully rendered, counting
// the ones discarded by the single-chart rule.
func (k *plotKit) FigureCount() int { return k.count }

func (k *plotKit) render(p *plot.Plot) {
	var buf bytes.Buffer
	wt, err := p.WriterTo(figWidth, figHeight, "png")
	if err != nil {
		fmt.Fprintf(k.out, "chart error: %v\n", err)
		return
	}
	if _, err := wt.WriteTo(&buf); err != nil {
		fmt.Fprintf(k.out, "chart error: %v\n", err)
		return
	}
	k.count++
	if k.png == nil {
		k.png = buf.Bytes()
	}
}

// Histogram renders the value distribution of a numeric column.
func (k *plotKit) Histogram(f *Frame, col string, bins int) {
	vals := f.Column(col)
	if len(vals) == 0 {
		fmt.Fprintf(k.out, "chart error: no numeric values in %q\n", col)
		return
	}
	if bins < 1 {
		bins = 10
	}
	p := plot.New()
	p.Title.Text = "Distribution of " + col
	p.X.Label.Text = col
	p.Y.Label.Text = "Frequency"
	h, err := plotter.NewHist(plotter.Values(vals), bins)
	if err != nil {
		fmt.Fprintf(k.out, "chart error: %v\n", err)
		return
	}
	p.Add(h)
	k.render(p)
}

// Bar renders one bar per distinct value of a text column, tallest first.
func (k *plotKit) Bar(f *Frame, col string) {
	labels, counts := f.GroupCounts(col)
	if len(labels) == 0 {
		fmt.Fprintf(k.out, "chart error: no values in %q\n", col)
		return
	}
	if len(labels) > 20 {
		labels, counts = labels[:20], counts[:20]
	}
	k.barChart("Counts of "+col, col, "Count", labels, counts)
}

func (k *plotKit) barChart(title, xLabel, yLabel string, labels []string, vals []float64) {
	p := plot.New()
	p.Title.Text = title
	p.X.Label.Text = xLabel
	p.Y.Label.Text = yLabel
	bars, err := plotter.NewBarChart(plotter.Values(vals), vg.Points(20))
	if err != nil {
		fmt.Fprintf(k.out, "chart error: %v\n", err)
		return
	}
	p.Add(bars)
	p.NominalX(labels...)
	k.render(p)
}

// BinnedBar renders the average of target per equal-width range of group.
func (k *plotKit) BinnedBar(f *Frame, target, group string, bins int) {
	labels, means, ok := f.binnedMeans(target, group, bins)
	if !ok {
		fmt.Fprintf(k.out, "chart error: cannot bin %q by %q\n", target, group)
		return
	}
	k.barChart(fmt.Sprintf("Average %s by %s range", target, group), group, "Average "+target, labels, means)
}

// Line renders a numeric column against its row index.
func (k *plotKit) Line(f *Frame, col string) {
	vals := f.Column(col)
	if len(vals) == 0 {
		fmt.Fprintf(k.out, "chart error: no numeric values in %q\n", col)
		return
	}
	pts := make(plotter.XYs, len(vals))
	for i, v := range vals {
		pts[i].X = float64(i)
		pts[i].Y = v
	}
	p := plot.New()
	p.Title.Text = "Trend of " + col
	p.X.Label.Text = "Index"
	p.Y.Label.Text = col
	l, err := plotter.NewLine(pts)
	if err != nil {
		fmt.Fprintf(k.out, "chart error: %v\n", err)
		return
	}
	p.Add(l)
	k.render(p)
}

// Scatter renders one numeric column against another over the rows where
// both are present.
func (k *plotKit) Scatter(f *Frame, xCol, yCol string) {
	xs := f.Column(xCol)
	ys := f.Column(yCol)
	n := len(xs)
	if len(ys) < n {
		n = len(ys)
	}
	if n == 0 {
		fmt.Fprintf(k.out, "chart error: no paired values for %q and %q\n", xCol, yCol)
		return
	}
	pts := make(plotter.XYs, n)
	for i := 0; i < n; i++ {
		pts[i].X = xs[i]
		pts[i].Y = ys[i]
	}
	p := plot.New()
	p.Title.Text = fmt.Sprintf("%s vs %s", xCol, yCol)
	p.X.Label.Text = xCol
	p.Y.Label.Text = yCol
	s, err := plotter.NewScatter(pts)
	if err != nil {
		fmt.Fprintf(k.out, "chart error: %v\n", err)
		return
	}
	p.Add(s)
	k.render(p)
}

// corrGrid adapts a correlation matrix to the heat map grid interface.
type corrGrid struct {
	names []string
	vals  [][]float64
}

func (g corrGrid) Dims() (int, int)   { return len(g.names), len(g.names) }
func (g corrGrid) X(c int) float64    { return float64(c) }
func (g corrGrid) Y(r int) float64    { return float64(r) }
func (g corrGrid) Z(c, r int) float64 { return g.vals[r][c] }

// Heatmap renders the pairwise correlation matrix over numeric columns.
func (k *plotKit) Heatmap(f *Frame) {
	nums := f.NumericColumns()
	if len(nums) < 2 {
		fmt.Fprintln(k.out, "chart error: need at least two numeric columns")
		return
	}
	grid := corrGrid{names: nums, vals: make([][]float64, len(nums))}
	for i, a := range nums {
		grid.vals[i] = make([]float64, len(nums))
		for j, b := range nums {
			v := f.Corr(a, b)
			if math.IsNaN(v) {
				v = 0
			}
			grid.vals[i][j] = v
		}
	}
	p := plot.New()
	p.Title.Text = "Correlation Heatmap"
	hm := plotter.NewHeatMap(grid, palette.Heat(12, 1))
	p.Add(hm)
	p.NominalX(nums...)
	p.NominalY(nums...)
	k.render(p)
}
