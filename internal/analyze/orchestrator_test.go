package analyze

import (
	"context"
	"encoding/base64"
	"strings"
	"testing"
)

const scoresCSV = "name,score\nA,10\nB,20\nC,30\n"

type fakeGen struct {
	available bool
	response  string
	err       error
}

func (g *fakeGen) Available(ctx context.Context) bool { return g.available }

func (g *fakeGen) Generate(ctx context.Context, model, prompt string) (string, error) {
	return g.response, g.err
}

func collect(t *testing.T, ch <-chan Event) []Event {
	t.Helper()
	var events []Event
	for ev := range ch {
		events = append(events, ev)
	}
	if len(events) == 0 {
		t.Fatal("no events emitted")
	}
	last := events[len(events)-1]
	if !last.Done {
		t.Fatalf("last event not terminal: %+v", last)
	}
	for _, ev := range events[:len(events)-1] {
		if ev.Done {
			t.Fatalf("non-final event marked done: %+v", ev)
		}
	}
	return events
}

func findContent(events []Event, typ EventType) (string, bool) {
	for _, ev := range events {
		if ev.Type == typ {
			return ev.Content, true
		}
	}
	return "", false
}

func TestRunFallbackAverage(t *testing.T) {
	o := New(nil, nil, nil, nil)
	events := collect(t, o.Run(context.Background(), Request{
		Question: "what is the average score",
		Raw:      []byte(scoresCSV),
	}))

	if events[0].Type != EventStatus || !strings.Contains(events[0].Message, "fallback") {
		t.Errorf("first event = %+v", events[0])
	}
	code, ok := findContent(events, EventCode)
	if !ok || !strings.Contains(code, `df.Mean("score")`) {
		t.Errorf("code = %q", code)
	}
	out, ok := findContent(events, EventOutput)
	if !ok || !strings.Contains(out, "Average (Mean): 20.00") {
		t.Errorf("output = %q", out)
	}
	if _, ok := findContent(events, EventExplanation); !ok {
		t.Error("no explanation event")
	}
	if events[len(events)-1].Type != EventComplete {
		t.Errorf("terminal = %+v", events[len(events)-1])
	}
}

func TestRunFallbackDistributionHasChart(t *testing.T) {
	o := New(nil, nil, nil, nil)
	events := collect(t, o.Run(context.Background(), Request{
		Question: "show distribution of score",
		Raw:      []byte(scoresCSV),
	}))

	chart, ok := findContent(events, EventChart)
	if !ok || chart == "" {
		t.Fatal("no chart event")
	}
	png, err := base64.StdEncoding.DecodeString(chart)
	if err != nil {
		t.Fatalf("chart is not base64: %v", err)
	}
	if !strings.HasPrefix(string(png), "\x89PNG") {
		t.Error("decoded chart is not a PNG")
	}
}

func TestRunDecodeFailureIsTerminalError(t *testing.T) {
	o := New(nil, nil, nil, nil)
	events := collect(t, o.Run(context.Background(), Request{
		Question: "average",
		Raw:      []byte{0x00, 0x01, 0x02},
	}))
	if len(events) != 1 {
		t.Fatalf("events = %+v", events)
	}
	if events[0].Type != EventError || !strings.Contains(events[0].Content, "Error loading CSV") {
		t.Errorf("terminal = %+v", events[0])
	}
}

func TestRunGeneratorPathEmitsItsCode(t *testing.T) {
	gen := &fakeGen{available: true, response: "```go\nfmt.Println(df.Max(\"score\"))\n```"}
	o := New(gen, nil, []string{"test-model"}, nil)
	events := collect(t, o.Run(context.Background(), Request{
		Question: "max score",
		Model:    "test-model",
		Raw:      []byte(scoresCSV),
	}))

	if !strings.Contains(events[0].Message, "Generating analysis code with AI") {
		t.Errorf("first event = %+v", events[0])
	}
	out, ok := findContent(events, EventOutput)
	if !ok || !strings.Contains(out, "30") {
		t.Errorf("output = %q", out)
	}
}

func TestRunDisallowedModelFallsBack(t *testing.T) {
	gen := &fakeGen{available: true, response: "fmt.Println(1)"}
	o := New(gen, nil, []string{"test-model"}, nil)
	events := collect(t, o.Run(context.Background(), Request{
		Question: "average score",
		Model:    "other-model",
		Raw:      []byte(scoresCSV),
	}))
	if !strings.Contains(events[0].Message, "Using fallback") {
		t.Errorf("first event = %+v", events[0])
	}
}

func TestRunGenerationErrorFallsBack(t *testing.T) {
	gen := &fakeGen{available: true, err: context.DeadlineExceeded}
	o := New(gen, nil, []string{"test-model"}, nil)
	events := collect(t, o.Run(context.Background(), Request{
		Question: "average score",
		Model:    "test-model",
		Raw:      []byte(scoresCSV),
	}))

	var statuses []string
	for _, ev := range events {
		if ev.Type == EventStatus {
			statuses = append(statuses, ev.Message)
		}
	}
	if len(statuses) < 2 || !strings.Contains(statuses[1], "AI unavailable") {
		t.Errorf("statuses = %v", statuses)
	}
	if out, ok := findContent(events, EventOutput); !ok || !strings.Contains(out, "Average (Mean): 20.00") {
		t.Errorf("output = %q", out)
	}
}

func TestRunExecutionErrorThenComplete(t *testing.T) {
	gen := &fakeGen{available: true, response: "undefinedCall()"}
	o := New(gen, nil, []string{"test-model"}, nil)
	events := collect(t, o.Run(context.Background(), Request{
		Question: "whatever",
		Model:    "test-model",
		Raw:      []byte(scoresCSV),
	}))

	errContent, ok := findContent(events, EventError)
	if !ok || !strings.Contains(errContent, "Execution error") {
		t.Errorf("error event = %q", errContent)
	}
	if events[len(events)-1].Type != EventComplete {
		t.Errorf("terminal = %+v", events[len(events)-1])
	}
}

func TestRunEventOrdering(t *testing.T) {
	o := New(nil, nil, nil, nil)
	events := collect(t, o.Run(context.Background(), Request{
		Question: "show distribution of score",
		Raw:      []byte(scoresCSV),
	}))

	order := map[EventType]int{}
	for i, ev := range events {
		if _, seen := order[ev.Type]; !seen {
			order[ev.Type] = i
		}
	}
	if !(order[EventCode] < order[EventOutput] || !hasType(events, EventOutput)) {
		t.Errorf("code after output: %+v", events)
	}
	if hasType(events, EventChart) && !(order[EventChart] < order[EventExplanation]) {
		t.Errorf("chart after explanation: %+v", events)
	}
}

func hasType(events []Event, typ EventType) bool {
	for _, ev := range events {
		if ev.Type == typ {
			return true
		}
	}
	return false
}
