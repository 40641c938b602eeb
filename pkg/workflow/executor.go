package workflow

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"time"
)

// ExecutorStage is the name used in the error log for entries written by the
// executor itself.
const ExecutorStage = "executor"

// SynthesisStage is the name of the terminal step.
const SynthesisStage = "synthesize"

// Stage is one unit of work in the chain.
type Stage interface {
	Name() string
	// Writes declares every field the stage's updates may touch.
	Writes() []Field
	// Run receives a private copy of the current state.
	Run(ctx context.Context, s *State) (Update, error)
}

// StageFunc adapts a function to Stage.
type StageFunc struct {
	StageName string
	Fields    []Field
	Fn        func(ctx context.Context, s *State) (Update, error)
}

func (f StageFunc) Name() string    { return f.StageName }
func (f StageFunc) Writes() []Field { return f.Fields }

func (f StageFunc) Run(ctx context.Context, s *State) (Update, error) {
	return f.Fn(ctx, s)
}

// Synthesizer reduces a state to its final report.
type Synthesizer interface {
	Synthesize(s *State) (*Report, error)
}

// Observer is notified as a run progresses. Implementations must not modify
// the states they receive.
type Observer interface {
	RunStarted(s *State)
	StageFinished(stage string, u Update, err error, elapsed time.Duration)
	RunFinished(s *State)
}

// Option configures an Executor.
type Option func(*Executor)

// WithLogger sets the executor logger.
func WithLogger(l *slog.Logger) Option {
	return func(e *Executor) {
		e.logger = l
	}
}

// WithValidator rejects inputs before a run starts.
func WithValidator(fn func(Input) error) Option {
	return func(e *Executor) {
		e.validate = fn
	}
}

// WithObserver adds a run observer.
func WithObserver(o Observer) Option {
	return func(e *Executor) {
		e.observers = append(e.observers, o)
	}
}

// Executor runs the stage chain followed by synthesis. It holds no per-run
// state and is safe for concurrent use.
type Executor struct {
	stages    []Stage
	writes    map[string]map[Field]bool
	synth     Synthesizer
	logger    *slog.Logger
	validate  func(Input) error
	observers []Observer
}

// NewExecutor checks the chain definition and returns an executor.
func NewExecutor(synth Synthesizer, stages []Stage, opts ...Option) (*Executor, error) {
	if synth == nil {
		return nil, fmt.Errorf("synthesizer is required")
	}
	e := &Executor{
		stages: slices.Clone(stages),
		writes: make(map[string]map[Field]bool, len(stages)),
		synth:  synth,
	}
	for _, st := range stages {
		name := st.Name()
		if name == "" {
			return nil, fmt.Errorf("stage name is required")
		}
		if name == ExecutorStage || name == SynthesisStage {
			return nil, fmt.Errorf("stage name %q is reserved", name)
		}
		if _, dup := e.writes[name]; dup {
			return nil, fmt.Errorf("duplicate stage %q", name)
		}
		declared := make(map[Field]bool)
		for _, f := range st.Writes() {
			if _, ok := PolicyOf(f); !ok {
				return nil, fmt.Errorf("stage %s declares unknown field %q", name, f)
			}
			if slices.Contains(executorFields, f) {
				return nil, fmt.Errorf("stage %s declares executor-owned field %q", name, f)
			}
			declared[f] = true
		}
		e.writes[name] = declared
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.logger == nil {
		e.logger = slog.New(slog.DiscardHandler)
	}
	return e, nil
}

// Stages returns the stage names in execution order.
func (e *Executor) Stages() []string {
	names := make([]string, len(e.stages))
	for i, st := range e.stages {
		names[i] = st.Name()
	}
	return names
}

// Run executes one run on the normalized input. The only error it returns is a *ValidationError;
// every later failure is recorded in the returned state's error log and the
// state always ends in a terminal status with a report attached.
func (e *Executor) Run(ctx context.Context, in Input) (*State, error) {
	in = in.Normalized()
	if e.validate != nil {
		if err := e.validate(in); err != nil {
			return nil, &ValidationError{Input: in, Err: err}
		}
	}

	logger := e.logger.With("subject", in.ID())
	state := e.apply(NewState(in), ExecutorStage, Update{Status: StatusRunning})
	e.notify(func(o Observer) { o.RunStarted(state) })
	logger.Info("run started", "stages", len(e.stages))

	for _, st := range e.stages {
		name := st.Name()
		if err := ctx.Err(); err != nil {
			msg := fmt.Sprintf("run cancelled before stage %s: %v", name, err)
			logger.Warn("run cancelled", "next_stage", name, "error", err)
			state = e.apply(state, ExecutorStage, Update{Errors: []StageError{{Stage: ExecutorStage, Message: msg}}})
			break
		}

		state = e.apply(state, ExecutorStage, Update{CurrentStage: name})
		start := time.Now()
		update, err := e.invoke(ctx, st, state.Clone())
		if err == nil {
			err = e.checkWrites(name, update)
		}
		elapsed := time.Since(start)
		e.notify(func(o Observer) { o.StageFinished(name, update, err, elapsed) })

		if err != nil {
			logger.Warn("stage failed", "stage", name, "duration", elapsed, "error", err)
			state = e.apply(state, ExecutorStage, Update{Errors: []StageError{{Stage: name, Message: err.Error()}}})
			continue
		}
		state = e.apply(state, name, update)
		logger.Info("stage completed", "stage", name, "duration", elapsed, "fields", update.Fields())
	}

	state = e.apply(state, ExecutorStage, Update{CurrentStage: SynthesisStage})
	report, err := e.synthesize(state)

	final := Update{Report: report}
	switch {
	case err != nil:
		logger.Error("synthesis failed", "error", err)
		state = e.apply(state, ExecutorStage, Update{Errors: []StageError{{Stage: SynthesisStage, Message: err.Error()}}})
		final.Report = FailureReport(state, err)
		final.Status = StatusFailed
	case len(state.Errors) > 0:
		final.Status = StatusCompletedWithErrors
	default:
		final.Status = StatusCompleted
	}
	state = e.apply(state, ExecutorStage, final)

	logger.Info("run finished", "status", state.Status, "score", state.Report.Score, "errors", len(state.Errors))
	e.notify(func(o Observer) { o.RunFinished(state) })
	return state, nil
}

// apply merges an update the executor knows to be valid. The state is never
// terminal here: the terminal status is the last merge of a run.
func (e *Executor) apply(s *State, stage string, u Update) *State {
	next, err := Merge(s, stage, u)
	if err != nil {
		panic(fmt.Sprintf("workflow: merge after terminal status: %v", err))
	}
	return next
}

func (e *Executor) invoke(ctx context.Context, st Stage, s *State) (u Update, err error) {
	defer func() {
		if r := recover(); r != nil {
			e.logger.Error("stage panicked", "stage", st.Name(), "panic", r)
			u, err = Update{}, &PanicError{Value: r}
		}
	}()
	return st.Run(ctx, s)
}

func (e *Executor) checkWrites(stage string, u Update) error {
	declared := e.writes[stage]
	for _, f := range u.Fields() {
		if !declared[f] {
			return &UndeclaredWriteError{Stage: stage, Field: f}
		}
	}
	return nil
}

func (e *Executor) synthesize(s *State) (r *Report, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			r, err = nil, &PanicError{Value: rec}
		}
	}()
	r, err = e.synth.Synthesize(s.Clone())
	if err == nil && r == nil {
		err = errors.New("synthesizer returned no report")
	}
	return r, err
}

func (e *Executor) notify(fn func(Observer)) {
	for _, o := range e.observers {
		func() {
			defer func() {
				if r := recover(); r != nil {
					e.logger.Error("observer panicked", "panic", r)
				}
			}()
			fn(o)
		}()
	}
}
