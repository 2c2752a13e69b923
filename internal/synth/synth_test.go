package synth

import (
	"strings"
	"testing"

	"github.com/DevHack1010/NemHemAI/internal/dataset"
)

func TestBuildPromptIncludesSchema(t *testing.T) {
	ds := dataset.New([]string{"name", "score"}, [][]string{
		{"a", "10"}, {"b", "20"},
	})
	ds.Coerce()
	prompt := BuildPrompt("what is the average score?", ds.Schema(5))

	for _, want := range []string{
		"2 rows, 2 columns",
		"score",
		"Use 'df'",
		"what is the average score?",
	} {
		if !strings.Contains(prompt, want) {
			t.Errorf("prompt missing %q:\n%s", want, prompt)
		}
	}
	if !strings.HasSuffix(strings.TrimSpace(prompt), "Code:") {
		t.Errorf("prompt should end with code cue:\n%s", prompt)
	}
}

func TestExtractCodeFenced(t *testing.T) {
	resp := "Here you go:\n```go\nfmt.Println(df.Mean(\"score\"))\n```\nHope that helps."
	got := ExtractCode(resp)
	if got != `fmt.Println(df.Mean("score"))` {
		t.Errorf("got %q", got)
	}
}

func TestExtractCodeFencedNoLanguage(t *testing.T) {
	resp := "```\nx := 1\nfmt.Println(x)\n```"
	got := ExtractCode(resp)
	if got != "x := 1\nfmt.Println(x)" {
		t.Errorf("got %q", got)
	}
}

func TestExtractCodeForeignLanguageTag(t *testing.T) {
	resp := "```python\nfmt.Println(df.Mean(\"score\"))\n```"
	got := ExtractCode(resp)
	if got != `fmt.Println(df.Mean("score"))` {
		t.Errorf("got %q", got)
	}
}

func TestExtractCodeFenceOnCodeLine(t *testing.T) {
	resp := "```fmt.Println(1)\nfmt.Println(2)\n```"
	got := ExtractCode(resp)
	if got != "fmt.Println(1)\nfmt.Println(2)" {
		t.Errorf("got %q", got)
	}
}

func TestExtractCodeBare(t *testing.T) {
	got := ExtractCode("  fmt.Println(1)\n")
	if got != "fmt.Println(1)" {
		t.Errorf("got %q", got)
	}
}
