// Package synth turns a natural-language question plus a dataset schema into
// executable analysis code: a generative backend call when available, a
// deterministic keyword classifier otherwise. It always produces a non-empty
// code string; backend failures never escape to the caller as user errors.
package synth

import (
	"fmt"
	"strings"

	"github.com/DevHack1010/NemHemAI/internal/dataset"
)

// BuildPrompt renders the fixed-shape instruction sent to the generation
// backend: dataset shape, column names and kinds, the code rules, and the
// user's question.
func BuildPrompt(question string, s *dataset.Schema) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Dataset: %d rows, %d columns\n", s.Rows, s.Cols)
	fmt.Fprintf(&b, "Columns: [%s]\n", strings.Join(s.Names(), ", "))
	b.WriteString("Types: {")
	for i, c := range s.Columns {
		if i > 0 {
			b.WriteString(", ")
		}
		fmt.Fprintf(&b, "%s: %s", c.Name, c.Kind)
	}
	b.WriteString("}\n\n")
	b.WriteString(`RULES:
1. Use 'df' (already loaded); read columns with df.Mean("col"), df.Column("col"), etc.
2. Generate executable Go statements only, no package clause or function declarations
3. Use fmt.Println / fmt.Printf for results
4. Keep code concise
5. Use plotkit.Histogram / plotkit.Bar / plotkit.Line / plotkit.Scatter / plotkit.Heatmap for charts when appropriate

`)
	fmt.Fprintf(&b, "Question: %s\nCode:", question)
	return b.String()
}

// ExtractCode pulls the contents of the first fenced code block out of a
// model response; if no fence is present the whole response is the code.
func ExtractCode(resp string) string {
	s := resp
	start := strings.Index(s, "```")
	if start < 0 {
		return strings.TrimSpace(s)
	}
	s = s[start+3:]
	// Drop an optional language tag on the fence line, whatever the model
	// decided the language was.
	if nl := strings.IndexByte(s, '\n'); nl >= 0 {
		first := strings.TrimSpace(s[:nl])
		if first == "" || !strings.ContainsAny(first, " \t(") {
			s = s[nl+1:]
		}
	}
	if end := strings.Index(s, "```"); end >= 0 {
		s = s[:end]
	}
	return strings.TrimSpace(s)
}
