package recalc

import (
	"time"

	"github.com/ucsindex/engine/internal/domain"
	"github.com/ucsindex/engine/internal/plan"
)

// tracker owns the step list of one execution and reports progress on every transition.
type tracker struct {
	steps      []domain.RecalculationStep
	index      map[string]int
	started    map[string]time.Time
	active     string
	state      State
	generator  *plan.Generator
	onProgress ProgressFunc
	now        func() time.Time
}

func newTracker(steps []domain.RecalculationStep, g *plan.Generator, onProgress ProgressFunc, now func() time.Time) *tracker {
	index := make(map[string]int, len(steps))
	for i, s := range steps {
		index[s.ID] = i
	}
	return &tracker{
		steps:      steps,
		index:      index,
		started:    make(map[string]time.Time),
		state:      StateValidating,
		generator:  g,
		onProgress: onProgress,
		now:        now,
	}
}

func (t *tracker) enter(state State) {
	t.state = state
}

func (t *tracker) begin(id string) {
	i, ok := t.index[id]
	if !ok {
		return
	}
	t.steps[i].Status = domain.StepInProgress
	t.steps[i].Error = ""
	t.steps[i].DurationMs = nil
	t.started[id] = t.now()
	t.active = id
	t.report()
}

func (t *tracker) complete(id string) {
	t.finish(id, domain.StepCompleted, "")
}

func (t *tracker) fail(id string, err error) {
	t.finish(id, domain.StepError, err.Error())
}

// failActive marks the most recently started step as failed.
func (t *tracker) failActive(err error) {
	if t.active != "" {
		t.fail(t.active, err)
	}
	t.state = StateError
	t.report()
}

func (t *tracker) finish(id string, status domain.StepStatus, msg string) {
	i, ok := t.index[id]
	if !ok {
		return
	}
	ms := t.now().Sub(t.started[id]).Milliseconds()
	t.steps[i].Status = status
	t.steps[i].Error = msg
	t.steps[i].DurationMs = &ms
	t.report()
}

func (t *tracker) report() {
	if t.onProgress == nil {
		return
	}
	completed := 0
	for _, s := range t.steps {
		if s.Status == domain.StepCompleted || s.Status == domain.StepError {
			completed++
		}
	}
	pct := 0
	if len(t.steps) > 0 {
		pct = completed * 100 / len(t.steps)
	}
	t.onProgress(Progress{
		State:                t.state,
		CurrentStep:          t.active,
		CompletedSteps:       completed,
		TotalSteps:           len(t.steps),
		Percentage:           pct,
		EstimatedRemainingMs: t.generator.Remaining(t.steps).Milliseconds(),
	})
}

func (t *tracker) snapshot() []domain.RecalculationStep {
	out := make([]domain.RecalculationStep, len(t.steps))
	copy(out, t.steps)
	return out
}
