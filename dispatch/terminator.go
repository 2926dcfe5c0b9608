package dispatch

import (
	"context"
	"sync"

	"github.com/rs/zerolog"

	"github.com/flowgrid/flowgrid/core/admission"
)

// Terminator owns end-of-task cleanup for one admitted test-case run: it
// releases the user's slot and marks the run cancelled when no terminal
// status was set. Finish is safe to call from multiple paths (normal
// return, panic recovery, timeout handlers); only the first call acts.
type Terminator struct {
	slots  admission.SlotManager
	runs   RunStore
	userID string
	taskID string
	logger zerolog.Logger

	once sync.Once
}

// NewTerminator binds a terminator to one task.
func NewTerminator(slots admission.SlotManager, runs RunStore, userID, taskID string, logger zerolog.Logger) *Terminator {
	return &Terminator{
		slots:  slots,
		runs:   runs,
		userID: userID,
		taskID: taskID,
		logger: logger.With().Str("component", "terminator").Str("task_id", taskID).Logger(),
	}
}

// Finish performs the single-shot cleanup. The slot is always released;
// cancellation marking is a guarded update that leaves terminal statuses
// untouched.
func (terminator *Terminator) Finish(ctx context.Context) {
	terminator.once.Do(func() {
		if err := terminator.slots.Release(ctx, terminator.userID); err != nil {
			terminator.logger.Error().Err(err).Msg("failed to release slot")
		}
		if err := terminator.runs.MarkCancelled(ctx, terminator.taskID); err != nil {
			terminator.logger.Error().Err(err).Msg("failed to mark run cancelled")
		}
		terminator.logger.Debug().Msg("task cleanup complete")
	})
}
