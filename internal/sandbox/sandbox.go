// Package sandbox executes synthesized analysis code against an in-memory
// dataset. Code runs in an embedded interpreter with a closed symbol table:
// it sees the standard library plus three bound packages (dataframe, plotkit,
// sqlkit) and nothing else, so it cannot touch the host filesystem or network
// through anything we did not hand it. Each run gets a fresh interpreter and
// a fresh chart registry.
package sandbox

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"runtime/debug"
	"strings"

	"github.com/traefik/yaegi/interp"
	"github.com/traefik/yaegi/stdlib"

	"github.com/DevHack1010/NemHemAI/internal/dataset"
)

// Result is what a successful run produced: everything the code printed and
// at most one rendered PNG chart.
type Result struct {
	Output string
	Chart  []byte
}

// ExecError reports a failed run. Output printed before the failure is kept
// on the error so callers can still surface partial results; Trace holds the
// interpreter stack when the code panicked.
type ExecError struct {
	Message string
	Trace   string
	Output  string
}

func (e *ExecError) Error() string { return e.Message }

// QueryFunc answers a SQL query with a rendered preview table. A nil
// QueryFunc means no database is attached to the run.
type QueryFunc func(sql string) (string, error)

// Runner executes analysis code. The zero value is usable.
type Runner struct {
	// Query backs the sqlkit.Query binding, optional.
	Query QueryFunc
}

// bannedCalls are host-access calls stripped from incoming code before
// execution. The interpreter's symbol table already excludes most host
// access; this additionally drops lines that would fail confusingly.
var bannedCalls = []string{
	"os.Open(",
	"os.Create(",
	"os.ReadFile(",
	"os.WriteFile(",
	"os.Remove",
	"ioutil.ReadFile(",
	"ioutil.WriteFile(",
	"exec.Command(",
	"net.Dial(",
	"http.Get(",
	"http.Post(",
}

// allowedPackages is the subset of the standard library visible to executed
// code. Everything reaching the filesystem, network or process table is left
// out of the symbol table entirely.
var allowedPackages = map[string]bool{
	"errors/errors":   true,
	"fmt/fmt":         true,
	"math/math":       true,
	"math/rand/rand":  true,
	"regexp/regexp":   true,
	"sort/sort":       true,
	"strconv/strconv": true,
	"strings/strings": true,
	"time/time":       true,
	"unicode/unicode": true,
}

func allowedStdlib() interp.Exports {
	out := make(interp.Exports, len(allowedPackages))
	for path, symbols := range stdlib.Symbols {
		if allowedPackages[path] {
			out[path] = symbols
		}
	}
	return out
}

// sanitize drops package and import clauses (the wrapper supplies its own)
// and any line invoking a banned host-access call.
func sanitize(code string) string {
	var out []string
	inImport := false
	for _, line := range strings.Split(code, "\n") {
		trimmed := strings.TrimSpace(line)
		if inImport {
			if trimmed == ")" {
				inImport = false
			}
			continue
		}
		switch {
		case strings.HasPrefix(trimmed, "package "):
			continue
		case strings.HasPrefix(trimmed, "import ("):
			inImport = true
			continue
		case strings.HasPrefix(trimmed, "import "):
			continue
		case strings.HasPrefix(trimmed, "```"):
			continue
		}
		banned := false
		for _, call := range bannedCalls {
			if strings.Contains(line, call) {
				banned = true
				break
			}
		}
		if banned {
			continue
		}
		out = append(out, line)
	}
	return strings.Join(out, "\n")
}

const wrapperTemplate = `package main

import (
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"

	"dataframe"
	"plotkit"
	"sqlkit"
)

func main() {
	df := dataframe.Frame()
	_ = df
	_, _ = fmt.Println, math.NaN
	_, _ = sort.Float64s, strings.ToLower
	_, _ = strconv.Itoa, plotkit.FigureCount
	_ = sqlkit.Query
%s
}
`

// Run executes code against ds and returns its printed output plus at most
// one chart. Execution failures come back as *ExecError; the interpreter is
// discarded afterwards so no state leaks between runs.
func (r *Runner) Run(ctx context.Context, code string, ds *dataset.Dataset) (res *Result, err error) {
	frame := NewFrame(ds)
	var out strings.Builder
	kit := newPlotKit(&out)

	query := r.Query
	if query == nil {
		query = func(string) (string, error) {
			return "", fmt.Errorf("no database attached to this run")
		}
	}

	i := interp.New(interp.Options{Stdout: &out, Stderr: &out})
	if err := i.Use(allowedStdlib()); err != nil {
		return nil, fmt.Errorf("loading interpreter stdlib: %w", err)
	}
	exports := interp.Exports{
		"dataframe/dataframe": {
			// Load and ReadCSV ignore the path; the uploaded dataset is already attached.
			"Frame":   reflect.ValueOf(func() *Frame { return frame }),
			"Load":    reflect.ValueOf(func(string) *Frame { return frame }),
			"ReadCSV": reflect.ValueOf(func(string) *Frame { return frame }),
		},
		"plotkit/plotkit": {
			"Histogram":   reflect.ValueOf(kit.Histogram),
			"Bar":         reflect.ValueOf(kit.Bar),
			"BinnedBar":   reflect.ValueOf(kit.BinnedBar),
			"Line":        reflect.ValueOf(kit.Line),
			"Scatter":     reflect.ValueOf(kit.Scatter),
			"Heatmap":     reflect.ValueOf(kit.Heatmap),
			"FigureCount": reflect.ValueOf(kit.FigureCount),
		},
		"sqlkit/sqlkit": {
			"Query": reflect.ValueOf(query),
		},
	}
	if err := i.Use(exports); err != nil {
		return nil, fmt.Errorf("loading interpreter bindings: %w", err)
	}

	src := fmt.Sprintf(wrapperTemplate, indent(sanitize(code)))

	defer func() {
		if rec := recover(); rec != nil {
			res = nil
			err = &ExecError{
				Message: fmt.Sprintf("panic during execution: %v", rec),
				Trace:   string(debug.Stack()),
				Output:  out.String(),
			}
		}
	}()

	if _, evalErr := i.EvalWithContext(ctx, src); evalErr != nil {
		ee := &ExecError{
			Message: evalErr.Error(),
			Output:  out.String(),
		}
		var p interp.Panic
		if errors.As(evalErr, &p) {
			ee.Trace = string(p.Stack)
		}
		return nil, ee
	}
	return &Result{Output: out.String(), Chart: kit.Image()}, nil
}

func indent(code string) string {
	lines := strings.Split(code, "\n")
	for i, l := range lines {
		if strings.TrimSpace(l) != "" {
			lines[i] = "\t" + l
		}
	}
	return strings.Join(lines, "\n")
}
