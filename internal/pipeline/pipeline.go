// File path: internal/pipeline/pipeline.go
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/legacylens/legacylens/internal/common"
	"github.com/legacylens/legacylens/internal/common/telemetry"
)

// Canonical step names in execution order.
const (
	StepSetup   = "setup"
	StepIngest  = "ingest"
	StepProcess = "process"
	StepStories = "stories"
)

// StepStatus tracks one step through a run.
type StepStatus string

const (
	StepPending   StepStatus = "pending"
	StepRunning   StepStatus = "running"
	StepCompleted StepStatus = "completed"
	StepSkipped   StepStatus = "skipped"
	StepError     StepStatus = "error"
)

// ErrRunInProgress rejects a run started while another is executing.
var ErrRunInProgress = errors.New("pipeline run already in progress")

// Step is one named unit of pipeline work.
type Step struct {
	Name string
	Run  func(ctx context.Context) error
}

// StepState is the reportable progress of one step.
type StepState struct {
	Name        string     `json:"name"`
	Status      StepStatus `json:"status"`
	Message     string     `json:"message,omitempty"`
	StartedAt   *time.Time `json:"started_at,omitempty"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
}

// State is a snapshot of the current or last run.
type State struct {
	RunID       string      `json:"run_id,omitempty"`
	Status      string      `json:"status"`
	Running     bool        `json:"running"`
	Error       string      `json:"error,omitempty"`
	StartedAt   *time.Time  `json:"started_at,omitempty"`
	CompletedAt *time.Time  `json:"completed_at,omitempty"`
	Steps       []StepState `json:"steps"`
}

// Options narrows a run to a subset of steps. Only wins over StartFrom.
type Options struct {
	StartFrom string
	Only      string
}

// Runner executes the step sequence and tracks run state for status
// reporting. One run at a time; a second Start while running is rejected.
type Runner struct {
	mu     sync.Mutex
	steps  []Step
	state  State
	cancel context.CancelFunc
}

func NewRunner(steps ...Step) *Runner {
	r := &Runner{steps: steps}
	r.state = State{Status: "idle", Steps: pendingStates(steps)}
	return r
}

// State returns a copy safe for concurrent readers.
func (r *Runner) State() State {
	r.mu.Lock()
	defer r.mu.Unlock()
	return cloneState(r.state)
}

// Run executes the selected steps synchronously, stopping at the first
// failure.
func (r *Runner) Run(ctx context.Context, opts Options) error {
	included, err := r.plan(opts)
	if err != nil {
		return err
	}
	ctx, cancel := context.WithCancel(ctx)
	if err := r.begin(included, cancel); err != nil {
		cancel()
		return err
	}
	return r.execute(ctx, included)
}

// Start launches a run in the background and returns its run identifier.
func (r *Runner) Start(ctx context.Context, opts Options) (string, error) {
	included, err := r.plan(opts)
	if err != nil {
		return "", err
	}
	ctx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	if err := r.begin(included, cancel); err != nil {
		cancel()
		return "", err
	}
	r.mu.Lock()
	runID := r.state.RunID
	r.mu.Unlock()
	go func() {
		if err := r.execute(ctx, included); err != nil {
			common.Logger().Error("pipeline: background run failed",
				"run_id", runID, "error", err)
		}
	}()
	return runID, nil
}

// Cancel aborts the in-flight run, if any.
func (r *Runner) Cancel() {
	r.mu.Lock()
	cancel := r.cancel
	r.mu.Unlock()
	if cancel != nil {
		cancel()
	}
}

func (r *Runner) plan(opts Options) (map[string]bool, error) {
	included := make(map[string]bool, len(r.steps))
	switch {
	case opts.Only != "":
		if r.stepIndex(opts.Only) < 0 {
			return nil, fmt.Errorf("unknown pipeline step %q", opts.Only)
		}
		included[opts.Only] = true
	case opts.StartFrom != "":
		start := r.stepIndex(opts.StartFrom)
		if start < 0 {
			return nil, fmt.Errorf("unknown pipeline step %q", opts.StartFrom)
		}
		for _, step := range r.steps[start:] {
			included[step.Name] = true
		}
	default:
		for _, step := range r.steps {
			included[step.Name] = true
		}
	}
	return included, nil
}

func (r *Runner) stepIndex(name string) int {
	for i, step := range r.steps {
		if step.Name == name {
			return i
		}
	}
	return -1
}

func (r *Runner) begin(included map[string]bool, cancel context.CancelFunc) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.state.Running {
		return ErrRunInProgress
	}
	now := time.Now().UTC()
	r.state = State{
		RunID:     uuid.NewString(),
		Status:    "running",
		Running:   true,
		StartedAt: &now,
		Steps:     pendingStates(r.steps),
	}
	for i := range r.state.Steps {
		if !included[r.state.Steps[i].Name] {
			r.state.Steps[i].Status = StepSkipped
			r.state.Steps[i].Message = "not selected for this run"
		}
	}
	r.cancel = cancel
	return nil
}

func (r *Runner) execute(ctx context.Context, included map[string]bool) error {
	logger := common.Logger()
	r.mu.Lock()
	runID := r.state.RunID
	r.mu.Unlock()
	for i, step := range r.steps {
		if !included[step.Name] {
			continue
		}
		if err := ctx.Err(); err != nil {
			r.finish("canceled", err)
			return err
		}
		logger.Info("pipeline: step starting", "run_id", runID, "step", step.Name)
		r.setStep(i, StepRunning, "")
		err := step.Run(ctx)
		telemetry.RecordPipelineStep(step.Name, err != nil)
		if err != nil {
			logger.Error("pipeline: step failed",
				"run_id", runID, "step", step.Name, "error", err)
			r.setStep(i, StepError, err.Error())
			r.finish("error", err)
			return fmt.Errorf("pipeline step %s: %w", step.Name, err)
		}
		logger.Info("pipeline: step completed", "run_id", runID, "step", step.Name)
		r.setStep(i, StepCompleted, "")
	}
	r.finish("completed", nil)
	return nil
}

func (r *Runner) setStep(index int, status StepStatus, message string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if index < 0 || index >= len(r.state.Steps) {
		return
	}
	now := time.Now().UTC()
	step := &r.state.Steps[index]
	switch status {
	case StepRunning:
		step.StartedAt = &now
	case StepCompleted, StepError:
		if step.StartedAt == nil {
			step.StartedAt = &now
		}
		step.CompletedAt = &now
	}
	step.Status = status
	step.Message = message
}

func (r *Runner) finish(status string, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	now := time.Now().UTC()
	r.state.Status = status
	r.state.Running = false
	r.state.CompletedAt = &now
	if err != nil {
		r.state.Error = err.Error()
	} else {
		r.state.Error = ""
	}
	if r.cancel != nil {
		r.cancel()
		r.cancel = nil
	}
}

func pendingStates(steps []Step) []StepState {
	states := make([]StepState, len(steps))
	for i, step := range steps {
		states[i] = StepState{Name: step.Name, Status: StepPending}
	}
	return states
}

func cloneState(state State) State {
	out := state
	out.Steps = append([]StepState(nil), state.Steps...)
	return out
}
