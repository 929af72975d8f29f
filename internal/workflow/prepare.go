package workflow

import (
	"context"
	"fmt"
	"path"
	"strings"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/ctroy978/edagent/internal/domain"
	"github.com/ctroy978/edagent/internal/domain/model"
	"github.com/ctroy978/edagent/internal/domain/ports/adapter"
)

var _ Executor = (*PrepareExecutor)(nil)

// PrepareExecutor normalizes the uploaded essay files and starts batch OCR
// processing, which issues the job id. Re-invocation after a completed OCR
// run is a no-op skip to validate: re-running the batch tool would
// duplicate student records.
type PrepareExecutor struct {
	gw            adapter.ToolGateway
	budget        int
	autoNormalize bool
	log           *zerolog.Logger
}

func NewPrepareExecutor(gw adapter.ToolGateway, budget int, autoNormalize bool, logger *zerolog.Logger) *PrepareExecutor {
	l := logger.With().Str("executor", "prepare").Logger()
	return &PrepareExecutor{gw: gw, budget: budget, autoNormalize: autoNormalize, log: &l}
}

func (e *PrepareExecutor) Phase() model.Phase { return model.PhasePrepare }

func (e *PrepareExecutor) Execute(ctx context.Context, state *model.WorkflowState, _ string) (*Result, error) {
	if state.Flags.OCRComplete {
		// Idempotence guard: the batch ran already for this thread.
		return advance(model.PhaseValidate, "The essays are already processed; moving on to name checks."), nil
	}

	gw := newGuardedGateway(e.gw, model.PhasePrepare, e.budget, e.log)
	m := &state.Materials

	if len(m.EssayRefs) == 0 {
		return suspend("I don't have any essay files yet. Attach them to continue."), nil
	}

	dirRef := m.EssayDirRef
	if dirRef == "" {
		dirRef = collateUploads(m.EssayRefs, e.autoNormalize)
		m.EssayDirRef = dirRef
	}

	jobName := fmt.Sprintf("grading-%s-%s", state.ThreadID, uuid.NewString()[:8])
	res, err := gw.BatchProcessDocuments(ctx, dirRef, jobName)
	if err != nil {
		return nil, err
	}
	if res == nil || res.JobID == "" {
		return nil, fmt.Errorf("%w: %s returned no job id", domain.ErrExternalToolFailure, ToolBatchProcessDocuments)
	}

	state.SetJobID(res.JobID)
	state.Flags.OCRComplete = true
	e.log.Info().Str("thread_id", state.ThreadID).Str("job_id", res.JobID).
		Int("students", res.StudentCount).Int("failed_files", len(res.FailedFiles)).Msg("batch processing complete")

	reply := fmt.Sprintf("Processed the essays and found %d student record(s).", res.StudentCount)
	if len(res.FailedFiles) > 0 {
		reply += fmt.Sprintf(" %d file(s) could not be processed: %s. Continuing with the rest.",
			len(res.FailedFiles), strings.Join(res.FailedFiles, ", "))
	}
	if m.StudentCount > 0 && res.StudentCount != m.StudentCount {
		reply += fmt.Sprintf(" Note: you expected %d students.", m.StudentCount)
	}
	return advance(model.PhaseValidate, reply), nil
}

// collateUploads folds the uploaded refs into a single directory reference
// for the batch tool. Refs sharing a parent collapse to that directory; a
// lone ZIP or directory passes through (the service expands it). Mixed
// locations are joined so the service can stage them together.
func collateUploads(refs []string, expandArchives bool) string {
	if len(refs) == 1 {
		ref := refs[0]
		if expandArchives && strings.HasSuffix(ref, ".zip") {
			return ref
		}
		if strings.HasSuffix(ref, "/") || path.Ext(ref) == "" {
			return ref
		}
		return path.Dir(ref)
	}

	dir := path.Dir(refs[0])
	for _, r := range refs[1:] {
		if path.Dir(r) != dir {
			return strings.Join(refs, ";")
		}
	}
	return dir
}
