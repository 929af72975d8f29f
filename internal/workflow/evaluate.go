package workflow

import (
	"context"
	"fmt"
	"strings"

	"github.com/pkoukk/tiktoken-go"
	"github.com/rs/zerolog"

	"github.com/ctroy978/edagent/internal/domain"
	"github.com/ctroy978/edagent/internal/domain/model"
	"github.com/ctroy978/edagent/internal/domain/ports/adapter"
)

var _ Executor = (*EvaluateExecutor)(nil)

// maxQueryTerms caps the knowledge-base query derived from the rubric and
// question. The query is built from those, never from the raw readings.
const maxQueryTerms = 12

// TokenEncoder is the subset of the tiktoken codec the context budget needs.
// *tiktoken.Tiktoken satisfies it directly.
type TokenEncoder interface {
	Encode(text string, allowedSpecial, disallowedSpecial []string) []int
	Decode(tokens []int) string
}

// EvaluateExecutor grades the job: it retrieves supporting context from the
// knowledge base when readings were provided, then runs the evaluation with
// the rubric and optional question as instructions. Evaluation runs exactly
// once per job under normal flow.
type EvaluateExecutor struct {
	gw               adapter.ToolGateway
	budget           int
	maxContextTokens int
	enc              TokenEncoder
	log              *zerolog.Logger
}

func NewEvaluateExecutor(gw adapter.ToolGateway, budget, maxContextTokens int, logger *zerolog.Logger) (*EvaluateExecutor, error) {
	enc, err := tiktoken.GetEncoding("cl100k_base")
	if err != nil {
		return nil, fmt.Errorf("load token encoding: %w", err)
	}
	return NewEvaluateExecutorWithEncoder(gw, budget, maxContextTokens, enc, logger), nil
}

// NewEvaluateExecutorWithEncoder wires an explicit token encoder instead of
// fetching the default BPE tables.
func NewEvaluateExecutorWithEncoder(gw adapter.ToolGateway, budget, maxContextTokens int, enc TokenEncoder, logger *zerolog.Logger) *EvaluateExecutor {
	if maxContextTokens <= 0 {
		maxContextTokens = 4096
	}
	l := logger.With().Str("executor", "evaluate").Logger()
	return &EvaluateExecutor{gw: gw, budget: budget, maxContextTokens: maxContextTokens, enc: enc, log: &l}
}

func (e *EvaluateExecutor) Phase() model.Phase { return model.PhaseEvaluate }

func (e *EvaluateExecutor) Execute(ctx context.Context, state *model.WorkflowState, _ string) (*Result, error) {
	if state.JobID == "" {
		return nil, fmt.Errorf("%w: evaluate phase", domain.ErrMissingJobID)
	}
	gw := newGuardedGateway(e.gw, model.PhaseEvaluate, e.budget, e.log)
	m := state.Materials

	// No readings means no knowledge-base lookup: evaluation proceeds with
	// empty context rather than blocking on ingestion that never happened.
	var contextMaterial string
	if m.KBTopic != "" {
		query := deriveQuery(m.Rubric, m.Question)
		retrieved, err := gw.QueryKnowledgeBase(ctx, query, m.KBTopic)
		if err != nil {
			return nil, err
		}
		contextMaterial = e.truncateToBudget(retrieved)
	}

	if err := gw.EvaluateJob(ctx, state.JobID, m.Rubric, contextMaterial, m.Question); err != nil {
		return nil, err
	}
	state.Flags.EvaluationComplete = true
	e.log.Info().Str("thread_id", state.ThreadID).Str("job_id", state.JobID).
		Bool("with_context", contextMaterial != "").Msg("evaluation complete")
	return advance(model.PhaseReport, "Evaluation finished. Generating the gradebook and feedback reports."), nil
}

// truncateToBudget caps retrieved context at the configured token budget so
// oversized knowledge-base hits don't blow up the evaluation request.
func (e *EvaluateExecutor) truncateToBudget(text string) string {
	tokens := e.enc.Encode(text, nil, nil)
	if len(tokens) <= e.maxContextTokens {
		return text
	}
	return e.enc.Decode(tokens[:e.maxContextTokens])
}

var queryStopwords = map[string]struct{}{
	"the": {}, "a": {}, "an": {}, "and": {}, "or": {}, "of": {}, "to": {},
	"in": {}, "on": {}, "for": {}, "with": {}, "is": {}, "are": {}, "be": {},
	"that": {}, "this": {}, "their": {}, "your": {}, "will": {}, "should": {},
	"must": {}, "each": {}, "points": {}, "point": {}, "essay": {}, "student": {},
	"students": {}, "grade": {}, "grading": {}, "rubric": {},
}

// deriveQuery builds a retrieval query from the question when present,
// otherwise from the rubric, keeping the most significant terms.
func deriveQuery(rubric, question string) string {
	source := question
	if strings.TrimSpace(source) == "" {
		source = rubric
	}
	var terms []string
	seen := map[string]struct{}{}
	for _, w := range tokenize(source) {
		if len(w) < 3 {
			continue
		}
		if _, stop := queryStopwords[w]; stop {
			continue
		}
		if _, dup := seen[w]; dup {
			continue
		}
		seen[w] = struct{}{}
		terms = append(terms, w)
		if len(terms) == maxQueryTerms {
			break
		}
	}
	return strings.Join(terms, " ")
}
