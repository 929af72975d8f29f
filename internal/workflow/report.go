package workflow

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/ctroy978/edagent/internal/domain"
	"github.com/ctroy978/edagent/internal/domain/model"
	"github.com/ctroy978/edagent/internal/domain/ports/adapter"
)

var _ Executor = (*ReportExecutor)(nil)

// ReportExecutor generates the gradebook and per-student feedback
// artifacts. Both run unconditionally, single-student jobs included: a
// narrative summary is never a substitute for the artifacts. The phase
// suspends after asking about email distribution; the next user message
// goes through the router, which needs the job id recorded in state.
type ReportExecutor struct {
	gw     adapter.ToolGateway
	budget int
	log    *zerolog.Logger
}

func NewReportExecutor(gw adapter.ToolGateway, budget int, logger *zerolog.Logger) *ReportExecutor {
	l := logger.With().Str("executor", "report").Logger()
	return &ReportExecutor{gw: gw, budget: budget, log: &l}
}

func (e *ReportExecutor) Phase() model.Phase { return model.PhaseReport }

func (e *ReportExecutor) Execute(ctx context.Context, state *model.WorkflowState, _ string) (*Result, error) {
	if state.JobID == "" {
		return nil, fmt.Errorf("%w: report phase", domain.ErrMissingJobID)
	}

	if state.Flags.ReportComplete {
		// Reports exist already; the teacher replied with something the
		// router didn't recognize as email intent. Re-offer instead of
		// regenerating.
		return suspend(e.completionMessage(state)), nil
	}

	gw := newGuardedGateway(e.gw, model.PhaseReport, e.budget, e.log)

	if _, err := gw.GenerateGradebook(ctx, state.JobID); err != nil {
		return nil, err
	}
	if _, err := gw.GenerateStudentFeedback(ctx, state.JobID); err != nil {
		return nil, err
	}
	paths, err := gw.DownloadReportsLocally(ctx, state.JobID)
	if err != nil {
		return nil, err
	}

	state.Artifacts.GradebookPath = paths.GradebookPath
	state.Artifacts.FeedbackZipPath = paths.FeedbackZipPath
	state.Flags.ReportComplete = true
	// Control returns to the router on the next message, and the router
	// needs the job id to divert to email. Re-assert it before suspending.
	state.SetJobID(state.JobID)

	e.log.Info().Str("thread_id", state.ThreadID).Str("job_id", state.JobID).
		Str("gradebook", paths.GradebookPath).Str("feedback", paths.FeedbackZipPath).Msg("reports generated")
	return suspend(e.completionMessage(state)), nil
}

func (e *ReportExecutor) completionMessage(state *model.WorkflowState) string {
	return fmt.Sprintf("Your grading is complete!\n\nGradebook: %s\nStudent feedback: %s\n\n"+
		"Would you like me to email each student their feedback? (yes/no)",
		state.Artifacts.GradebookPath, state.Artifacts.FeedbackZipPath)
}
