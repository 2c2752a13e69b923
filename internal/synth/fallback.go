package synth

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/DevHack1010/NemHemAI/internal/dataset"
)

// intentRule pairs a question predicate with a code template builder. Rules
// are evaluated in declaration order and the first match wins, so the list
// itself is the tie-break policy.
type intentRule struct {
	name  string
	match func(q string) bool
	build func(q string, s *dataset.Schema) string
}

var fallbackRules = []intentRule{
	{
		name:  "summary",
		match: anyKeyword("average", "mean", "minimum", "maximum", "max", "min", "median", "summary", "describe"),
		build: buildSummary,
	},
	{
		name:  "distribution",
		match: anyKeyword("distribution", "histogram", "frequency", "spread"),
		build: buildDistribution,
	},
	{
		name:  "correlation",
		match: anyKeyword("correlation", "relationship", "compare", "association"),
		build: buildCorrelation,
	},
	{
		name:  "grouped",
		match: anyKeyword("by", "group", "range"),
		build: buildGrouped,
	},
	{
		name:  "trend",
		match: anyKeyword("trend", "over time", "year", "month", "timeline", "progression"),
		build: buildTrend,
	},
}

// Fallback classifies the question by keyword and fills the matching code
// template with the best-matching numeric column names. It always returns a
// non-empty code string; unmatched questions get the dataset overview.
func Fallback(question string, s *dataset.Schema) string {
	q := strings.ToLower(question)
	for _, r := range fallbackRules {
		if r.match(q) {
			if code := r.build(q, s); code != "" {
				return code
			}
		}
	}
	return buildOverview(s)
}

// anyKeyword builds a substring predicate over the lowercased question.
func anyKeyword(kws ...string) func(string) bool {
	return func(q string) bool {
		for _, k := range kws {
			if strings.Contains(q, k) {
				return true
			}
		}
		return false
	}
}

func numericNames(s *dataset.Schema) []string {
	var out []string
	for _, c := range s.Columns {
		if c.Kind == dataset.KindNumeric {
			out = append(out, c.Name)
		}
	}
	return out
}

// matchColumn returns the first candidate whose lowercased name appears as a
// substring of the question.
func matchColumn(q string, candidates []string) (string, bool) {
	for _, c := range candidates {
		if strings.Contains(q, strings.ToLower(c)) {
			return c, true
		}
	}
	return "", false
}

// columnContaining is the reverse lookup: the first candidate whose
// lowercased name contains the question token, so "total" finds a
// "total_sales" column.
func columnContaining(token string, candidates []string) (string, bool) {
	for _, c := range candidates {
		if strings.Contains(strings.ToLower(c), token) {
			return c, true
		}
	}
	return "", false
}

func buildSummary(q string, s *dataset.Schema) string {
	nums := numericNames(s)
	if col, ok := matchColumn(q, nums); ok {
		return fmt.Sprintf(`fmt.Println("Column: %[1]s")
fmt.Printf("Average (Mean): %%.2f\n", df.Mean(%[1]q))
fmt.Printf("Median: %%.2f\n", df.Median(%[1]q))
fmt.Printf("Minimum: %%g\n", df.Min(%[1]q))
fmt.Printf("Maximum: %%g\n", df.Max(%[1]q))
`, col)
	}
	return `fmt.Println("Summary Statistics for Numeric Columns:")
fmt.Print(df.DescribeTable())
`
}

func buildDistribution(q string, s *dataset.Schema) string {
	nums := numericNames(s)
	if len(nums) == 0 {
		return ""
	}
	col, ok := matchColumn(q, nums)
	if !ok {
		col = nums[0]
	}
	return fmt.Sprintf(`plotkit.Histogram(df, %[1]q, 20)
fmt.Println("Distribution of %[1]s")
`, col)
}

var scatterPairPattern = regexp.MustCompile(`([a-z_]+)\s*(?:vs|against|and)\s*([a-z_]+)`)

func buildCorrelation(q string, s *dataset.Schema) string {
	nums := numericNames(s)
	if len(nums) == 0 {
		return ""
	}
	if strings.Contains(q, "heatmap") || strings.Contains(q, "matrix") {
		return `plotkit.Heatmap(df)
fmt.Println("Correlation Heatmap")
fmt.Print(df.CorrTable())
`
	}
	if m := scatterPairPattern.FindStringSubmatch(q); m != nil && len(nums) >= 2 {
		all := s.Names()
		c1, ok := columnContaining(m[1], all)
		if !ok {
			c1 = nums[0]
		}
		c2, ok := columnContaining(m[2], all)
		if !ok {
			c2 = nums[1]
		}
		return fmt.Sprintf(`plotkit.Scatter(df, %q, %q)
fmt.Println("%s vs %s")
`, c1, c2, c1, c2)
	}
	return `plotkit.Heatmap(df)
fmt.Print(df.CorrTable())
`
}

// buildGrouped keeps the historical column-selection heuristic: the grouping
// column is matched against the question text after the last occurrence of
// the word "by", which mis-selects on multi-word column names. Known quirk,
// intentionally preserved.
func buildGrouped(q string, s *dataset.Schema) string {
	nums := numericNames(s)
	if len(nums) == 0 {
		return ""
	}
	target := ""
	for _, c := range nums {
		lc := strings.ToLower(c)
		if strings.Contains(q, lc) && !strings.Contains(lc, "by") {
			target = c
			break
		}
	}
	if target == "" {
		target = nums[0]
	}
	tail := q
	if i := strings.LastIndex(q, "by"); i >= 0 {
		tail = q[i+2:]
	}
	group := ""
	for _, c := range s.Columns {
		if strings.Contains(tail, strings.ToLower(c.Name)) {
			group = c.Name
			break
		}
	}
	if group == "" {
		if len(nums) > 1 {
			group = nums[1]
		} else {
			group = s.Columns[0].Name
		}
	}
	return fmt.Sprintf(`plotkit.BinnedBar(df, %[1]q, %[2]q, 5)
fmt.Println("Average %[1]s by %[2]s range")
fmt.Print(df.BinnedMeanTable(%[1]q, %[2]q, 5))
`, target, group)
}

func buildTrend(q string, s *dataset.Schema) string {
	nums := numericNames(s)
	if len(nums) == 0 {
		return ""
	}
	col, ok := matchColumn(q, nums)
	if !ok {
		col = nums[0]
	}
	return fmt.Sprintf(`plotkit.Line(df, %[1]q)
fmt.Println("Trend of %[1]s over dataset index")
`, col)
}

func buildOverview(s *dataset.Schema) string {
	return `rows, cols := df.Shape()
fmt.Println("Dataset Shape:", rows, "x", cols)
fmt.Println()
fmt.Println("Column Info:")
fmt.Print(df.TypeTable())
fmt.Println()
fmt.Println("Basic Statistics:")
fmt.Print(df.DescribeTable())
fmt.Println()
fmt.Println("Missing Values:")
fmt.Print(df.MissingTable())
`
}
