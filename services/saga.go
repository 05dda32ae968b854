package services

import (
	"context"
	"time"

	"github.com/LovationAdmin/horizon-api/utils"
)

const compensationTimeout = 30 * time.Second

type compensation struct {
	name string
	undo func(ctx context.Context) error
}

// saga records undo steps as a workflow advances and replays them newest
// first when it fails.
type saga struct {
	enabled bool
	steps   []compensation
}

func newSaga(enabled bool) *saga {
	return &saga{enabled: enabled}
}

func (s *saga) onFailure(name string, undo func(ctx context.Context) error) {
	s.steps = append(s.steps, compensation{name: name, undo: undo})
}

// rollback runs the recorded compensations under a context that outlives the
// request. Failures are logged; the caller keeps its original error.
func (s *saga) rollback(ctx context.Context, cause error) {
	if !s.enabled || len(s.steps) == 0 {
		return
	}

	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), compensationTimeout)
	defer cancel()

	utils.SafeWarn("↩️ Rolling back %d step(s) after: %v", len(s.steps), cause)
	for i := len(s.steps) - 1; i >= 0; i-- {
		step := s.steps[i]
		if err := step.undo(ctx); err != nil {
			utils.SafeError("❌ Compensation %s failed: %v", step.name, err)
			continue
		}
		utils.SafeInfo("↩️ Compensation %s done", step.name)
	}
	s.steps = nil
}
