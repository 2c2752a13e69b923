package sandbox

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/DevHack1010/NemHemAI/internal/dataset"
)

func testDataset(t *testing.T) *dataset.Dataset {
	t.Helper()
	ds := dataset.New([]string{"name", "score", "age"}, [][]string{
		{"a", "10", "30"},
		{"b", "20", "40"},
		{"c", "30", "50"},
	})
	ds.Coerce()
	return ds
}

func TestRunPrintsOutput(t *testing.T) {
	var r Runner
	res, err := r.Run(context.Background(), `fmt.Printf("Average (Mean): %.2f\n", df.Mean("score"))`, testDataset(t))
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if res.Output != "Average (Mean): 20.00\n" {
		t.Errorf("output = %q", res.Output)
	}
	if res.Chart != nil {
		t.Errorf("unexpected chart, %d bytes", len(res.Chart))
	}
}

func TestRunCapturesChart(t *testing.T) {
	var r Runner
	code := "plotkit.Histogram(df, \"age\", 5)\nfmt.Println(\"done\")"
	res, err := r.Run(context.Background(), code, testDataset(t))
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(res.Chart) == 0 {
		t.Fatal("expected a chart")
	}
	if !strings.HasPrefix(string(res.Chart), "\x89PNG") {
		t.Errorf("chart is not a PNG, starts with %q", res.Chart[:4])
	}
	if !strings.Contains(res.Output, "done") {
		t.Errorf("output = %q", res.Output)
	}
}

func TestRunKeepsFirstChartOnly(t *testing.T) {
	var r Runner
	code := `plotkit.Histogram(df, "age", 5)
plotkit.Histogram(df, "score", 5)
fmt.Println(plotkit.FigureCount())`
	res, err := r.Run(context.Background(), code, testDataset(t))
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(res.Chart) == 0 {
		t.Fatal("expected a chart")
	}
	if !strings.Contains(res.Output, "2") {
		t.Errorf("expected two renders reported, output = %q", res.Output)
	}
}

func TestRunFailureReturnsExecError(t *testing.T) {
	var r Runner
	_, err := r.Run(context.Background(), `fmt.Println("before")
undefinedCall()`, testDataset(t))
	var ee *ExecError
	if !errors.As(err, &ee) {
		t.Fatalf("expected ExecError, got %v", err)
	}
	if ee.Message == "" {
		t.Error("empty error message")
	}
}

func TestRunNoStateBetweenRuns(t *testing.T) {
	var r Runner
	ds := testDataset(t)
	if _, err := r.Run(context.Background(), `plotkit.Histogram(df, "age", 5)`, ds); err != nil {
		t.Fatalf("first run: %v", err)
	}
	res, err := r.Run(context.Background(), `fmt.Println("plain")`, ds)
	if err != nil {
		t.Fatalf("second run: %v", err)
	}
	if res.Chart != nil {
		t.Error("chart leaked into a chartless run")
	}
}

func TestRunStripsHostAccess(t *testing.T) {
	var r Runner
	code := `os.ReadFile("/etc/passwd")
fmt.Println("safe")`
	res, err := r.Run(context.Background(), code, testDataset(t))
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if res.Output != "safe\n" {
		t.Errorf("output = %q", res.Output)
	}
}

func TestRunHostPackagesUnavailable(t *testing.T) {
	var r Runner
	// os is not in the symbol table, so even an unsanitized reference
	// fails at interpretation rather than reaching the filesystem.
	_, err := r.Run(context.Background(), `fmt.Println(os.Getpid())`, testDataset(t))
	if err == nil {
		t.Fatal("expected failure for os reference")
	}
}

func TestRunSQLBinding(t *testing.T) {
	r := Runner{Query: func(sql string) (string, error) {
		if !strings.Contains(strings.ToLower(sql), "select") {
			t.Errorf("unexpected sql %q", sql)
		}
		return "id\n1\n", nil
	}}
	code := `rows, err := sqlkit.Query("select id from t")
if err != nil {
	fmt.Println("query failed:", err)
} else {
	fmt.Print(rows)
}`
	res, err := r.Run(context.Background(), code, testDataset(t))
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if res.Output != "id\n1\n" {
		t.Errorf("output = %q", res.Output)
	}
}

func TestRunSQLWithoutDatabase(t *testing.T) {
	var r Runner
	code := `_, err := sqlkit.Query("select 1")
fmt.Println(err)`
	res, err := r.Run(context.Background(), code, testDataset(t))
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if !strings.Contains(res.Output, "no database attached") {
		t.Errorf("output = %q", res.Output)
	}
}

func TestSanitizeDropsImports(t *testing.T) {
	in := `package main
import (
	"os"
)
import "fmt"
fmt.Println("x")`
	got := sanitize(in)
	if strings.Contains(got, "import") || strings.Contains(got, "package") {
		t.Errorf("clauses survived:\n%s", got)
	}
	if !strings.Contains(got, `fmt.Println("x")`) {
		t.Errorf("code dropped:\n%s", got)
	}
}
