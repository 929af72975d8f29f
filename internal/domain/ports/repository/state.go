package repository

import (
	"context"
	"time"

	"github.com/ctroy978/edagent/internal/domain/model"
)

// WorkflowStateRepository is the port for per-thread workflow checkpoints.
// Save must never clear a previously stored job id, even if the given
// state carries an empty one.
type WorkflowStateRepository interface {
	Save(ctx context.Context, tx Tx, state *model.WorkflowState) error
	Find(ctx context.Context, tx Tx, threadID string) (*model.WorkflowState, error)
	List(ctx context.Context, tx Tx, limit int) ([]*model.WorkflowState, error)
	// CountStale returns the number of non-terminal threads untouched since
	// the cutoff. Used for ops visibility only; states are never destroyed here.
	CountStale(ctx context.Context, tx Tx, cutoff time.Time) (int, error)
}
