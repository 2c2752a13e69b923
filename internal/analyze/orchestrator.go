// Package analyze drives one analysis request through the decode, synthesize
// and execute stages and streams tagged events to the caller. The pipeline
// is strictly sequential; the event channel is the only output and always
// ends with exactly one terminal event.
package analyze

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"github.com/DevHack1010/NemHemAI/internal/dataset"
	"github.com/DevHack1010/NemHemAI/internal/decode"
	"github.com/DevHack1010/NemHemAI/internal/sandbox"
	"github.com/DevHack1010/NemHemAI/internal/synth"
)

// Generator produces analysis code from a prompt. *synth.Client satisfies
// it; tests substitute their own.
type Generator interface {
	Available(ctx context.Context) bool
	Generate(ctx context.Context, model, prompt string) (string, error)
}

// Request is one analysis question over one uploaded CSV.
type Request struct {
	Question string
	Model    string
	Raw      []byte
}

// Orchestrator wires the pipeline stages together. Generator may be nil, in
// which case every request takes the deterministic fallback path.
type Orchestrator struct {
	gen       Generator
	runner    *sandbox.Runner
	allowed   map[string]bool
	sampleCap int
	log       *slog.Logger
}

// New builds an orchestrator. allowedModels is the generation model
// allow-list; requests naming any other model fall back deterministically.
func New(gen Generator, runner *sandbox.Runner, allowedModels []string, log *slog.Logger) *Orchestrator {
	if log == nil {
		log = slog.Default()
	}
	if runner == nil {
		runner = &sandbox.Runner{}
	}
	allowed := make(map[string]bool, len(allowedModels))
	for _, m := range allowedModels {
		allowed[m] = true
	}
	return &Orchestrator{gen: gen, runner: runner, allowed: allowed, sampleCap: 5, log: log}
}

// Run processes one request and returns its event stream. The channel is
// closed after the terminal event; callers cancel by cancelling ctx.
func (o *Orchestrator) Run(ctx context.Context, req Request) <-chan Event {
	ch := make(chan Event, 8)
	log := o.log.With("request", uuid.NewString())
	go func() {
		defer close(ch)
		defer func() {
			if rec := recover(); rec != nil {
				log.Error("analysis panicked", "panic", rec)
				o.emit(ctx, ch, terminalError(fmt.Sprintf("Analysis error: %v", rec)))
			}
		}()
		o.run(ctx, req, log, ch)
	}()
	return ch
}

func (o *Orchestrator) emit(ctx context.Context, ch chan<- Event, ev Event) bool {
	select {
	case ch <- ev:
		return true
	case <-ctx.Done():
		return false
	}
}

func (o *Orchestrator) run(ctx context.Context, req Request, log *slog.Logger, ch chan<- Event) {
	ds, err := decode.Decode(req.Raw)
	if err != nil {
		log.Warn("decode failed", "error", err)
		o.emit(ctx, ch, terminalError(fmt.Sprintf("Error loading CSV: %v", err)))
		return
	}
	schema := ds.Schema(o.sampleCap)

	code, ok := o.synthesize(ctx, req, schema, log, ch)
	if !ok {
		return
	}
	if !o.emit(ctx, ch, contentEvent(EventCode, code)) {
		return
	}
	if !o.emit(ctx, ch, statusEvent("Executing analysis...")) {
		return
	}

	res, execErr := o.runner.Run(ctx, code, ds)
	if execErr != nil {
		log.Warn("execution failed", "error", execErr)
		msg := fmt.Sprintf("Execution error: %v", execErr)
		var ee *sandbox.ExecError
		if errors.As(execErr, &ee) && ee.Trace != "" {
			msg += "\n" + ee.Trace
		}
		if !o.emit(ctx, ch, contentEvent(EventError, msg)) {
			return
		}
		o.emit(ctx, ch, completeEvent())
		return
	}

	if res.Output != "" {
		if !o.emit(ctx, ch, contentEvent(EventOutput, res.Output)) {
			return
		}
	}
	if len(res.Chart) > 0 {
		encoded := base64.StdEncoding.EncodeToString(res.Chart)
		if !o.emit(ctx, ch, contentEvent(EventChart, encoded)) {
			return
		}
	}
	explanation := fmt.Sprintf(
		"Analysis completed successfully. The results show patterns and insights from your dataset with %d rows and %d columns.",
		schema.Rows, schema.Cols)
	if !o.emit(ctx, ch, contentEvent(EventExplanation, explanation)) {
		return
	}
	o.emit(ctx, ch, completeEvent())
}

// synthesize picks the generation route: the backend when it is reachable
// and the model is allowed, the keyword fallback otherwise. It reports false
// only when the caller went away mid-stream.
func (o *Orchestrator) synthesize(ctx context.Context, req Request, schema *dataset.Schema, log *slog.Logger, ch chan<- Event) (string, bool) {
	useBackend := o.gen != nil && o.allowed[req.Model] && o.gen.Available(ctx)
	if !useBackend {
		log.Info("using fallback synthesis", "model", req.Model)
		if !o.emit(ctx, ch, statusEvent("Using fallback code generation...")) {
			return "", false
		}
		return synth.Fallback(req.Question, schema), true
	}

	if !o.emit(ctx, ch, statusEvent("Generating analysis code with AI...")) {
		return "", false
	}
	resp, err := o.gen.Generate(ctx, req.Model, synth.BuildPrompt(req.Question, schema))
	if err == nil {
		if code := synth.ExtractCode(resp); code != "" {
			return code, true
		}
		err = fmt.Errorf("backend returned no code")
	}
	log.Warn("generation failed, falling back", "error", err)
	if !o.emit(ctx, ch, statusEvent("AI unavailable, using fallback code generation...")) {
		return "", false
	}
	return synth.Fallback(req.Question, schema), true
}
