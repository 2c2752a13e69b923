package synth

import (
	"strings"
	"testing"

	"github.com/DevHack1010/NemHemAI/internal/dataset"
)

func schemaFor(t *testing.T, header []string, rows [][]string) *dataset.Schema {
	t.Helper()
	ds := dataset.New(header, rows)
	ds.Coerce()
	return ds.Schema(5)
}

func TestFallbackSummaryNamedColumn(t *testing.T) {
	s := schemaFor(t, []string{"name", "score"}, [][]string{
		{"a", "10"}, {"b", "20"}, {"c", "30"},
	})
	code := Fallback("what is the average score?", s)
	if !strings.Contains(code, `df.Mean("score")`) {
		t.Errorf("expected mean over score, got:\n%s", code)
	}
	if !strings.Contains(code, "Average (Mean): %.2f") {
		t.Errorf("expected mean label template, got:\n%s", code)
	}
}

func TestFallbackSummaryNoColumnMatch(t *testing.T) {
	s := schemaFor(t, []string{"score"}, [][]string{{"10"}, {"20"}})
	code := Fallback("describe the data", s)
	if !strings.Contains(code, "DescribeTable") {
		t.Errorf("expected describe table, got:\n%s", code)
	}
}

func TestFallbackDistributionReferencesColumn(t *testing.T) {
	s := schemaFor(t, []string{"age", "city"}, [][]string{
		{"30", "x"}, {"40", "y"},
	})
	code := Fallback("show the distribution of age", s)
	if !strings.Contains(code, `"age"`) {
		t.Errorf("expected age reference, got:\n%s", code)
	}
	if !strings.Contains(code, "plotkit.Histogram") {
		t.Errorf("expected histogram call, got:\n%s", code)
	}
}

func TestFallbackCorrelationHeatmap(t *testing.T) {
	s := schemaFor(t, []string{"a", "b"}, [][]string{
		{"1", "2"}, {"3", "4"},
	})
	code := Fallback("show a correlation heatmap", s)
	if !strings.Contains(code, "plotkit.Heatmap") {
		t.Errorf("expected heatmap call, got:\n%s", code)
	}
	if !strings.Contains(code, "CorrTable") {
		t.Errorf("expected correlation matrix, got:\n%s", code)
	}
}

func TestFallbackScatterPair(t *testing.T) {
	s := schemaFor(t, []string{"height", "weight"}, [][]string{
		{"170", "60"}, {"180", "80"},
	})
	code := Fallback("compare height vs weight", s)
	if !strings.Contains(code, "plotkit.Scatter") {
		t.Errorf("expected scatter call, got:\n%s", code)
	}
	if !strings.Contains(code, `"height"`) || !strings.Contains(code, `"weight"`) {
		t.Errorf("expected both columns referenced, got:\n%s", code)
	}
}

func TestFallbackScatterPairPrefixToken(t *testing.T) {
	s := schemaFor(t, []string{"total_sales", "unit_price"}, [][]string{
		{"100", "5"}, {"200", "7"},
	})
	code := Fallback("compare total vs unit", s)
	if !strings.Contains(code, `plotkit.Scatter(df, "total_sales", "unit_price")`) {
		t.Errorf("expected prefix tokens to find the full column names, got:\n%s", code)
	}
}

func TestFallbackGrouped(t *testing.T) {
	s := schemaFor(t, []string{"price", "income"}, [][]string{
		{"100", "50"}, {"200", "70"},
	})
	code := Fallback("price by income", s)
	if !strings.Contains(code, "plotkit.BinnedBar") {
		t.Errorf("expected binned bar call, got:\n%s", code)
	}
	if !strings.Contains(code, `"price"`) || !strings.Contains(code, `"income"`) {
		t.Errorf("expected target and group columns, got:\n%s", code)
	}
}

func TestFallbackTrend(t *testing.T) {
	s := schemaFor(t, []string{"sales"}, [][]string{{"1"}, {"2"}})
	code := Fallback("show the trend of sales", s)
	if !strings.Contains(code, "plotkit.Line") {
		t.Errorf("expected line plot, got:\n%s", code)
	}
}

func TestFallbackOverviewDefault(t *testing.T) {
	s := schemaFor(t, []string{"name"}, [][]string{{"a"}})
	code := Fallback("tell me something interesting", s)
	for _, want := range []string{"Dataset Shape", "TypeTable", "DescribeTable", "MissingTable"} {
		if !strings.Contains(code, want) {
			t.Errorf("overview missing %q:\n%s", want, code)
		}
	}
}

func TestFallbackNeverEmpty(t *testing.T) {
	s := schemaFor(t, []string{"note"}, [][]string{{"a"}})
	for _, q := range []string{"", "distribution", "correlation", "trend", "by group"} {
		if code := Fallback(q, s); strings.TrimSpace(code) == "" {
			t.Errorf("empty code for question %q", q)
		}
	}
}
