package workflow

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/ctroy978/edagent/internal/domain"
	"github.com/ctroy978/edagent/internal/domain/model"
	"github.com/ctroy978/edagent/internal/domain/ports/adapter"
	"github.com/ctroy978/edagent/internal/infra/metrics"
)

// Compile-time check
var _ adapter.ToolGateway = (*guardedGateway)(nil)

// guardedGateway wraps the raw ToolGateway with the phase whitelist and the
// per-invocation call budget. Executors are handed this wrapper instead of
// the raw gateway, so out-of-phase calls cannot execute at all.
type guardedGateway struct {
	inner  adapter.ToolGateway
	phase  model.Phase
	budget int
	calls  int
	log    *zerolog.Logger
}

func newGuardedGateway(inner adapter.ToolGateway, phase model.Phase, budget int, log *zerolog.Logger) *guardedGateway {
	if budget <= 0 {
		budget = DefaultCallBudget
	}
	return &guardedGateway{inner: inner, phase: phase, budget: budget, log: log}
}

func (g *guardedGateway) permit(tool string) error {
	if !ToolPermitted(g.phase, tool) {
		metrics.IncToolDenied(tool, string(g.phase))
		return fmt.Errorf("%w: %s in phase %s", domain.ErrToolNotPermitted, tool, g.phase)
	}
	g.calls++
	if g.calls > g.budget {
		metrics.IncBudgetExceeded(string(g.phase))
		return fmt.Errorf("%w: phase %s, budget %d", domain.ErrIterationBudgetExceeded, g.phase, g.budget)
	}
	return nil
}

// call runs fn under the whitelist/budget guard and records the outcome.
func (g *guardedGateway) call(tool string, fn func() error) error {
	if err := g.permit(tool); err != nil {
		return err
	}
	start := time.Now()
	err := fn()
	metrics.ObserveToolCall(tool, string(g.phase), time.Since(start), err == nil)
	if err != nil {
		g.log.Warn().Str("tool", tool).Str("phase", string(g.phase)).Err(err).Msg("tool call failed")
		return fmt.Errorf("%w: %s: %v", domain.ErrExternalToolFailure, tool, err)
	}
	g.log.Debug().Str("tool", tool).Str("phase", string(g.phase)).Msg("tool call ok")
	return nil
}

func (g *guardedGateway) CreateJobWithMaterials(ctx context.Context, materials model.Materials) (string, error) {
	var ref string
	err := g.call(ToolCreateJobWithMaterials, func() (err error) {
		ref, err = g.inner.CreateJobWithMaterials(ctx, materials)
		return err
	})
	return ref, err
}

func (g *guardedGateway) AddToKnowledgeBase(ctx context.Context, fileRefs []string, topic string) error {
	return g.call(ToolAddToKnowledgeBase, func() error {
		return g.inner.AddToKnowledgeBase(ctx, fileRefs, topic)
	})
}

func (g *guardedGateway) ConvertDocumentToText(ctx context.Context, fileRef string) (string, error) {
	var text string
	err := g.call(ToolConvertDocumentToText, func() (err error) {
		text, err = g.inner.ConvertDocumentToText(ctx, fileRef)
		return err
	})
	return text, err
}

func (g *guardedGateway) ReadTextFile(ctx context.Context, fileRef string) (string, error) {
	var text string
	err := g.call(ToolReadTextFile, func() (err error) {
		text, err = g.inner.ReadTextFile(ctx, fileRef)
		return err
	})
	return text, err
}

func (g *guardedGateway) BatchProcessDocuments(ctx context.Context, directoryRef, jobName string) (*model.BatchResult, error) {
	var res *model.BatchResult
	err := g.call(ToolBatchProcessDocuments, func() (err error) {
		res, err = g.inner.BatchProcessDocuments(ctx, directoryRef, jobName)
		return err
	})
	return res, err
}

func (g *guardedGateway) GetJobStatistics(ctx context.Context, jobID string) ([]model.StudentRecord, error) {
	var recs []model.StudentRecord
	err := g.call(ToolGetJobStatistics, func() (err error) {
		recs, err = g.inner.GetJobStatistics(ctx, jobID)
		return err
	})
	return recs, err
}

func (g *guardedGateway) ValidateStudentNames(ctx context.Context, jobID string) (*model.ValidationReport, error) {
	var rep *model.ValidationReport
	err := g.call(ToolValidateStudentNames, func() (err error) {
		rep, err = g.inner.ValidateStudentNames(ctx, jobID)
		return err
	})
	return rep, err
}

func (g *guardedGateway) CorrectDetectedName(ctx context.Context, jobID, essayID, correctedName string) error {
	return g.call(ToolCorrectDetectedName, func() error {
		return g.inner.CorrectDetectedName(ctx, jobID, essayID, correctedName)
	})
}

func (g *guardedGateway) ScrubProcessedJob(ctx context.Context, jobID string) error {
	return g.call(ToolScrubProcessedJob, func() error {
		return g.inner.ScrubProcessedJob(ctx, jobID)
	})
}

func (g *guardedGateway) QueryKnowledgeBase(ctx context.Context, query, topic string) (string, error) {
	var out string
	err := g.call(ToolQueryKnowledgeBase, func() (err error) {
		out, err = g.inner.QueryKnowledgeBase(ctx, query, topic)
		return err
	})
	return out, err
}

func (g *guardedGateway) EvaluateJob(ctx context.Context, jobID, rubric, contextMaterial, instructions string) error {
	return g.call(ToolEvaluateJob, func() error {
		return g.inner.EvaluateJob(ctx, jobID, rubric, contextMaterial, instructions)
	})
}

func (g *guardedGateway) GenerateGradebook(ctx context.Context, jobID string) (string, error) {
	var ref string
	err := g.call(ToolGenerateGradebook, func() (err error) {
		ref, err = g.inner.GenerateGradebook(ctx, jobID)
		return err
	})
	return ref, err
}

func (g *guardedGateway) GenerateStudentFeedback(ctx context.Context, jobID string) (string, error) {
	var ref string
	err := g.call(ToolGenerateStudentFeedback, func() (err error) {
		ref, err = g.inner.GenerateStudentFeedback(ctx, jobID)
		return err
	})
	return ref, err
}

func (g *guardedGateway) DownloadReportsLocally(ctx context.Context, jobID string) (*model.ReportPaths, error) {
	var paths *model.ReportPaths
	err := g.call(ToolDownloadReportsLocally, func() (err error) {
		paths, err = g.inner.DownloadReportsLocally(ctx, jobID)
		return err
	})
	return paths, err
}

func (g *guardedGateway) SendStudentFeedbackEmails(ctx context.Context, jobID string) ([]model.SendResult, error) {
	var results []model.SendResult
	err := g.call(ToolSendStudentFeedbackEmails, func() (err error) {
		results, err = g.inner.SendStudentFeedbackEmails(ctx, jobID)
		return err
	})
	return results, err
}
