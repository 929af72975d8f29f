package workflow

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/ctroy978/edagent/internal/domain"
	"github.com/ctroy978/edagent/internal/domain/model"
	"github.com/ctroy978/edagent/internal/domain/ports/adapter"
)

var _ Executor = (*ScrubExecutor)(nil)

// ScrubExecutor removes PII from the processed job before evaluation.
// Fully automatic: no suspension point once validation has passed.
type ScrubExecutor struct {
	gw     adapter.ToolGateway
	budget int
	log    *zerolog.Logger
}

func NewScrubExecutor(gw adapter.ToolGateway, budget int, logger *zerolog.Logger) *ScrubExecutor {
	l := logger.With().Str("executor", "scrub").Logger()
	return &ScrubExecutor{gw: gw, budget: budget, log: &l}
}

func (e *ScrubExecutor) Phase() model.Phase { return model.PhaseScrub }

func (e *ScrubExecutor) Execute(ctx context.Context, state *model.WorkflowState, _ string) (*Result, error) {
	if state.JobID == "" {
		return nil, fmt.Errorf("%w: scrub phase", domain.ErrMissingJobID)
	}
	gw := newGuardedGateway(e.gw, model.PhaseScrub, e.budget, e.log)

	if err := gw.ScrubProcessedJob(ctx, state.JobID); err != nil {
		return nil, err
	}
	state.Flags.ScrubbingComplete = true
	e.log.Info().Str("thread_id", state.ThreadID).Str("job_id", state.JobID).Msg("pii scrubbing complete")
	return advance(model.PhaseEvaluate, "Student names removed for privacy. Starting the evaluation."), nil
}
