package pipeline

import (
	"context"
	"log/slog"

	"github.com/nao1215/linkscan/internal/model"
)

// Run carries one seed through a pipeline.
type Run struct {
	// Seed is the URL to crawl.
	Seed string

	// Report is set by CrawlStep.
	Report *model.CrawlReport

	// RunID is the history archive ID, set by HistoryStep. Zero when not archived.
	RunID int64

	// Err is the error that stopped the pipeline, if any.
	Err error

	// Steps lists the names of the steps that were executed.
	Steps []string
}

// NewRun creates a Run for seed.
func NewRun(seed string) *Run {
	return &Run{Seed: seed, Steps: make([]string, 0)}
}

// Step is one stage of a pipeline.
type Step interface {
	// Do executes the step. Non-critical problems are logged and nil is
	// returned; an error stops the pipeline unless it continues on error.
	Do(ctx context.Context, run *Run) error

	// Name returns the step's name for logging purposes.
	Name() string
}

// Pipeline executes steps in order.
type Pipeline struct {
	steps           []Step
	logger          *slog.Logger
	continueOnError bool
}

// Option configures a Pipeline.
type Option func(*Pipeline)

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(p *Pipeline) {
		p.logger = logger
	}
}

// WithContinueOnError keeps executing steps after one fails.
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

// Execute runs all steps in sequence. Cancellation is checked before each
// step; a canceled pipeline keeps whatever the finished steps produced.
func (p *Pipeline) Execute(ctx context.Context, run *Run) error {
	for _, step := range p.steps {
		if err := ctx.Err(); err != nil {
			p.logger.Warn("pipeline canceled", "step", step.Name(), "seed", run.Seed, "reason", err)
			run.Err = err
			return err
		}

		p.logger.Debug("executing step", "step", step.Name(), "seed", run.Seed)

		err := step.Do(ctx, run)
		run.Steps = append(run.Steps, step.Name())
		if err != nil {
			p.logger.Error("step failed", "step", step.Name(), "seed", run.Seed, "error", err)
			run.Err = err
			if !p.continueOnError {
				return err
			}
			continue
		}
		p.logger.Debug("step completed", "step", step.Name(), "seed", run.Seed)
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
