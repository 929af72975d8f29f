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

var _ Executor = (*ValidateExecutor)(nil)

// MaxCorrectionRounds bounds the teacher-in-the-loop correction cycle.
// Hitting the limit surfaces the remaining mismatches for manual handling
// instead of looping forever.
const MaxCorrectionRounds = 5

// MismatchLimitError carries the mismatches still unresolved when the
// correction cycle reaches MaxCorrectionRounds, so callers can show the
// remaining entries for manual handling. It unwraps to
// domain.ErrMismatchUnresolved.
type MismatchLimitError struct {
	Rounds     int
	Mismatched []model.NameMismatch
}

func (e *MismatchLimitError) Error() string {
	return fmt.Sprintf("name validation: %d mismatch(es) unresolved after %d correction round(s)",
		len(e.Mismatched), e.Rounds)
}

func (e *MismatchLimitError) Unwrap() error { return domain.ErrMismatchUnresolved }

// ValidateExecutor checks OCR-detected student names against the roster and
// runs the human-in-the-loop correction cycle. Duplicate submissions can
// require correcting what looks like the same record more than once, so the
// cycle supports multiple rounds and says so.
type ValidateExecutor struct {
	gw     adapter.ToolGateway
	budget int
	log    *zerolog.Logger
}

func NewValidateExecutor(gw adapter.ToolGateway, budget int, logger *zerolog.Logger) *ValidateExecutor {
	l := logger.With().Str("executor", "validate").Logger()
	return &ValidateExecutor{gw: gw, budget: budget, log: &l}
}

func (e *ValidateExecutor) Phase() model.Phase { return model.PhaseValidate }

func (e *ValidateExecutor) Execute(ctx context.Context, state *model.WorkflowState, message string) (*Result, error) {
	if state.JobID == "" {
		return nil, fmt.Errorf("%w: validate phase", domain.ErrMissingJobID)
	}
	gw := newGuardedGateway(e.gw, model.PhaseValidate, e.budget, e.log)

	var preamble string
	if len(state.PendingCorrections) > 0 {
		corrections := parseCorrections(message)
		if len(corrections) == 0 {
			return suspend("I still need your corrections. Reply one per line, e.g.\n" +
				"  essay-12: Jane Doe\nor\n  Jon Doe -> John Doe"), nil
		}
		applied, err := e.applyCorrections(ctx, gw, state, corrections)
		if err != nil {
			return nil, err
		}
		preamble = fmt.Sprintf("Applied %d correction(s). ", applied)
	} else {
		manifest, err := gw.GetJobStatistics(ctx, state.JobID)
		if err != nil {
			return nil, err
		}
		preamble = fmt.Sprintf("I have %d student record(s). ", len(manifest))
	}

	report, err := gw.ValidateStudentNames(ctx, state.JobID)
	if err != nil {
		return nil, err
	}

	if len(report.Mismatched) == 0 {
		state.PendingCorrections = nil
		state.Flags.NamesValidated = true
		reply := preamble + fmt.Sprintf("All names match the roster (%d matched", len(report.Matched))
		if len(report.Missing) > 0 {
			reply += fmt.Sprintf(", %d roster student(s) without a submission: %s",
				len(report.Missing), strings.Join(report.Missing, ", "))
		}
		reply += "). Removing student names for privacy next."
		return advance(model.PhaseScrub, reply), nil
	}

	state.PendingCorrections = toPendingCorrections(report.Mismatched)
	state.CorrectionRounds++
	if state.CorrectionRounds > MaxCorrectionRounds {
		// The list must reflect this round's report: the last corrections may
		// have resolved some entries and surfaced others.
		return nil, &MismatchLimitError{Rounds: state.CorrectionRounds - 1, Mismatched: report.Mismatched}
	}

	e.log.Info().Str("thread_id", state.ThreadID).Str("job_id", state.JobID).
		Int("mismatched", len(report.Mismatched)).Int("round", state.CorrectionRounds).Msg("name mismatches pending")
	return suspend(preamble + formatMismatches(report.Mismatched)), nil
}

// applyCorrections matches the teacher's corrections against the pending
// list by essay id or detected name and applies each through the gateway.
func (e *ValidateExecutor) applyCorrections(ctx context.Context, gw adapter.ToolGateway, state *model.WorkflowState, corrections map[string]string) (int, error) {
	applied := 0
	for key, corrected := range corrections {
		pc, ok := findPending(state.PendingCorrections, key)
		if !ok {
			continue
		}
		if err := gw.CorrectDetectedName(ctx, state.JobID, pc.EssayID, corrected); err != nil {
			return applied, err
		}
		applied++
	}
	if applied == 0 {
		return 0, fmt.Errorf("%w: no correction matched a pending mismatch", domain.ErrInvalidArgument)
	}
	return applied, nil
}

func findPending(pending []model.PendingCorrection, key string) (model.PendingCorrection, bool) {
	for _, pc := range pending {
		if strings.EqualFold(pc.EssayID, key) || strings.EqualFold(pc.DetectedName, key) {
			return pc, true
		}
	}
	return model.PendingCorrection{}, false
}

func toPendingCorrections(mismatched []model.NameMismatch) []model.PendingCorrection {
	out := make([]model.PendingCorrection, 0, len(mismatched))
	for _, m := range mismatched {
		out = append(out, model.PendingCorrection{
			EssayID:       m.EssayID,
			DetectedName:  m.DetectedName,
			SuggestedName: m.SuggestedName,
			TextPreview:   m.TextPreview,
		})
	}
	return out
}

func formatMismatches(mismatched []model.NameMismatch) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "%d detected name(s) don't match the roster:\n", len(mismatched))
	sb.WriteString(FormatMismatchList(mismatched))
	sb.WriteString("Reply with corrections, one per line (essay-id: Correct Name). " +
		"Duplicate submissions can make the same name show up again after a fix; " +
		"if that happens I'll ask you to correct it once more.")
	return sb.String()
}

// FormatMismatchList renders mismatches one per line for user display.
func FormatMismatchList(mismatched []model.NameMismatch) string {
	var sb strings.Builder
	for _, m := range mismatched {
		fmt.Fprintf(&sb, "- %s: detected %q", m.EssayID, m.DetectedName)
		if m.SuggestedName != "" {
			fmt.Fprintf(&sb, " (closest roster match: %q)", m.SuggestedName)
		}
		if m.TextPreview != "" {
			fmt.Fprintf(&sb, "\n  preview: %s", m.TextPreview)
		}
		sb.WriteString("\n")
	}
	return sb.String()
}
