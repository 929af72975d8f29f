package workflow

import (
	"context"
	"fmt"
	"strings"

	"github.com/rs/zerolog"

	"github.com/ctroy978/edagent/internal/domain"
	"github.com/ctroy978/edagent/internal/domain/model"
	"github.com/ctroy978/edagent/internal/domain/ports/adapter"
)

var _ Executor = (*EmailExecutor)(nil)

// EmailExecutor sends the graded feedback. One send call per invocation,
// never a loop: the external tool tracks already-sent recipients, so a
// later turn re-entering this phase cannot double-send.
type EmailExecutor struct {
	gw     adapter.ToolGateway
	budget int
	log    *zerolog.Logger
}

func NewEmailExecutor(gw adapter.ToolGateway, budget int, logger *zerolog.Logger) *EmailExecutor {
	l := logger.With().Str("executor", "email").Logger()
	return &EmailExecutor{gw: gw, budget: budget, log: &l}
}

func (e *EmailExecutor) Phase() model.Phase { return model.PhaseEmail }

func (e *EmailExecutor) Execute(ctx context.Context, state *model.WorkflowState, _ string) (*Result, error) {
	if state.JobID == "" {
		return nil, fmt.Errorf("%w: email distribution needs a completed grading job", domain.ErrMissingJobID)
	}
	gw := newGuardedGateway(e.gw, model.PhaseEmail, e.budget, e.log)

	results, err := gw.SendStudentFeedbackEmails(ctx, state.JobID)
	if err != nil {
		return nil, err
	}

	sent, skipped := 0, []string{}
	for _, r := range results {
		if r.Sent {
			sent++
			continue
		}
		reason := r.Reason
		if reason == "" {
			reason = "no reason given"
		}
		skipped = append(skipped, fmt.Sprintf("%s (%s)", r.StudentName, reason))
	}

	e.log.Info().Str("thread_id", state.ThreadID).Str("job_id", state.JobID).
		Int("sent", sent).Int("skipped", len(skipped)).Msg("feedback emails dispatched")

	reply := fmt.Sprintf("Sent feedback emails to %d student(s).", sent)
	if len(skipped) > 0 {
		reply += fmt.Sprintf(" Skipped %d: %s. You can email these manually if needed.",
			len(skipped), strings.Join(skipped, "; "))
	}
	return terminal(reply), nil
}
