package pipeline

import (
	"context"
	"log/slog"

	"github.com/nao1215/vectorize/internal/session"
)

// Step defines the interface that all pipeline steps must implement.
type Step interface {
	// Do executes the step against run. Non-critical problems should be
	// logged or recorded in run and nil returned.
	Do(ctx context.Context, run *session.Run) error

	// Name returns the step's name for logging purposes.
	Name() string
}

// Pipeline orchestrates the execution of multiple steps.
type Pipeline struct {
	steps []Step

	logger *slog.Logger

	// continueOnError determines whether to continue executing steps
	// after one fails. If false, the pipeline stops on first error.
	continueOnError bool
}

// Option is a function that configures a Pipeline.
type Option func(*Pipeline)

// WithLogger sets a custom logger for the pipeline.
func WithLogger(logger *slog.Logger) Option {
	return func(p *Pipeline) {
		p.logger = logger
	}
}

// WithContinueOnError configures the pipeline to continue execution
// even when a step fails.
func WithContinueOnError(continueOnError bool) Option {
	return func(p *Pipeline) {
		p.continueOnError = continueOnError
	}
}

// New creates a Pipeline running steps in order.
func New(steps []Step, opts ...Option) *Pipeline {
	p := &Pipeline{steps: steps}
	for _, opt := range opts {
		opt(p)
	}
	if p.logger == nil {
		p.logger = slog.Default()
	}
	return p
}

// AddSteps appends steps to the pipeline.
func (p *Pipeline) AddSteps(steps ...Step) {
	p.steps = append(p.steps, steps...)
}

// Execute runs all steps in sequence. Step errors are recorded in run.
// It returns the first error unless continueOnError is set, and the
// context error when cancelled between steps.
func (p *Pipeline) Execute(ctx context.Context, run *session.Run) error {
	var firstErr error
	for _, step := range p.steps {
		if err := ctx.Err(); err != nil {
			p.logger.Warn("pipeline cancelled", "step", step.Name(), "reason", err)
			run.Cancelled = true
			return err
		}

		p.logger.Info("executing step", "step", step.Name(), "target", run.Target)

		if err := step.Do(ctx, run); err != nil {
			p.logger.Error("step failed", "step", step.Name(), "target", run.Target, "error", err)
			run.AddError(step.Name(), err)
			if ctx.Err() != nil {
				run.Cancelled = true
			}
			if !p.continueOnError {
				return err
			}
			if firstErr == nil {
				firstErr = err
			}
		} else {
			p.logger.Debug("step completed", "step", step.Name(), "target", run.Target)
		}

		run.Steps = append(run.Steps, step.Name())
	}
	return firstErr
}

// StepNames returns the names of all steps in execution order.
func (p *Pipeline) StepNames() []string {
	names := make([]string, len(p.steps))
	for i, step := range p.steps {
		names[i] = step.Name()
	}
	return names
}
