package pipeline

import (
	"context"
	"errors"
	"log/slog"

	"github.com/nao1215/hmfcrawl/internal/model"
)

// Step is one stage of processing a start URL. Steps run in sequence and
// each receives the report accumulated by the previous ones.
type Step interface {
	// Do executes the step. It returns an error only when the step fails
	// critically; partial results are recorded in the report instead.
	Do(ctx context.Context, report *model.SiteReport) error

	// Name returns the step's name for logging and the report.
	Name() string
}

// Pipeline runs steps in order.
type Pipeline struct {
	steps  []Step
	logger *slog.Logger

	// continueOnError keeps running later steps after one fails.
	continueOnError bool
}

// Option configures a Pipeline.
type Option func(*Pipeline)

// WithLogger sets the logger for the pipeline.
func WithLogger(logger *slog.Logger) Option {
	return func(p *Pipeline) {
		p.logger = logger
	}
}

// WithContinueOnError makes the pipeline run the remaining steps after a
// step fails. The error is still recorded in the report.
func WithContinueOnError(continueOnError bool) Option {
	return func(p *Pipeline) {
		p.continueOnError = continueOnError
	}
}

// New creates an empty Pipeline.
func New(opts ...Option) *Pipeline {
	p := &Pipeline{steps: make([]Step, 0)}
	for _, opt := range opts {
		opt(p)
	}
	if p.logger == nil {
		p.logger = slog.Default()
	}
	return p
}

// AddStep appends a step to the pipeline.
func (p *Pipeline) AddStep(step Step) {
	p.steps = append(p.steps, step)
}

// AddSteps appends multiple steps to the pipeline.
func (p *Pipeline) AddSteps(steps ...Step) {
	p.steps = append(p.steps, steps...)
}

// Execute runs all steps in sequence.
//
// The context is checked before each step. If it is done, Execute stops and
// returns the context error; a passed deadline marks the report as timed out.
// A failing step's error is stored in report.Error and, unless
// continueOnError is set, returned immediately.
func (p *Pipeline) Execute(ctx context.Context, report *model.SiteReport) error {
	for _, step := range p.steps {
		if err := ctx.Err(); err != nil {
			p.logger.Warn("pipeline cancelled",
				"step", step.Name(),
				"url", report.StartURL,
				"reason", err,
			)
			if errors.Is(err, context.DeadlineExceeded) {
				report.TimedOut = true
			}
			return err
		}

		p.logger.Debug("executing step", "step", step.Name(), "url", report.StartURL)

		if err := step.Do(ctx, report); err != nil {
			p.logger.Error("step failed",
				"step", step.Name(),
				"url", report.StartURL,
				"error", err,
			)
			report.Error = err.Error()
			if !p.continueOnError {
				return err
			}
			continue
		}

		report.AddStep(step.Name())
	}
	return nil
}

// StepCount returns the number of steps in the pipeline.
func (p *Pipeline) StepCount() int {
	return len(p.steps)
}

// StepNames returns the names of all steps in execution order.
func (p *Pipeline) StepNames() []string {
	names := make([]string, len(p.steps))
	for i, step := range p.steps {
		names[i] = step.Name()
	}
	return names
}
