package workflow

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/ctroy978/edagent/internal/domain"
	"github.com/ctroy978/edagent/internal/domain/model"
)

// wordEncoder tokenizes on whitespace so token budgets map to word counts.
type wordEncoder struct{ words []string }

var _ TokenEncoder = (*wordEncoder)(nil)

func (e *wordEncoder) Encode(text string, _, _ []string) []int {
	e.words = strings.Fields(text)
	toks := make([]int, len(e.words))
	for i := range toks {
		toks[i] = i
	}
	return toks
}

func (e *wordEncoder) Decode(tokens []int) string {
	out := make([]string, 0, len(tokens))
	for _, t := range tokens {
		out = append(out, e.words[t])
	}
	return strings.Join(out, " ")
}

func evaluateState(threadID string) *model.WorkflowState {
	state := model.NewWorkflowState(threadID)
	state.Phase = model.PhaseEvaluate
	state.SetJobID("job-1")
	state.Materials.Rubric = "Thesis 30pts Evidence 40pts"
	state.Materials.Question = "Discuss the causes of the French Revolution"
	return state
}

func TestEvaluateRequiresJobID(t *testing.T) {
	exec := NewEvaluateExecutorWithEncoder(newFakeGateway(), 10, 100, &wordEncoder{}, testLogger())
	state := model.NewWorkflowState("t-0")
	state.Phase = model.PhaseEvaluate

	_, err := exec.Execute(context.Background(), state, "")
	if !errors.Is(err, domain.ErrMissingJobID) {
		t.Fatalf("expected ErrMissingJobID, got %v", err)
	}
}

func TestEvaluateWithoutReadingsUsesEmptyContext(t *testing.T) {
	fg := newFakeGateway()
	exec := NewEvaluateExecutorWithEncoder(fg, 10, 100, &wordEncoder{}, testLogger())
	state := evaluateState("t-1") // KBTopic empty: no readings were ingested

	res, err := exec.Execute(context.Background(), state, "")
	if err != nil {
		t.Fatal(err)
	}
	if res.Directive != DirectiveAdvance || res.Next != model.PhaseReport {
		t.Fatalf("expected advance to report, got %s/%s", res.Directive, res.Next)
	}
	if fg.callCount(ToolQueryKnowledgeBase) != 0 {
		t.Fatal("knowledge base queried without readings")
	}
	if fg.callCount(ToolEvaluateJob) != 1 {
		t.Fatalf("evaluate_job calls = %d", fg.callCount(ToolEvaluateJob))
	}
	if fg.evalContext != "" {
		t.Fatalf("context material = %q, want empty", fg.evalContext)
	}
	if fg.evalRubric != state.Materials.Rubric || fg.evalInstructions != state.Materials.Question {
		t.Fatalf("rubric/instructions = %q/%q", fg.evalRubric, fg.evalInstructions)
	}
	if !state.Flags.EvaluationComplete {
		t.Fatal("evaluation_complete not set")
	}
}

func TestEvaluateQueriesAndTruncatesContext(t *testing.T) {
	fg := newFakeGateway()
	fg.kbContext = "one two three four five six"
	exec := NewEvaluateExecutorWithEncoder(fg, 10, 3, &wordEncoder{}, testLogger())
	state := evaluateState("t-2")
	state.Materials.KBTopic = "readings-t-2"

	res, err := exec.Execute(context.Background(), state, "")
	if err != nil {
		t.Fatal(err)
	}
	if res.Directive != DirectiveAdvance {
		t.Fatalf("directive = %s", res.Directive)
	}
	if fg.callCount(ToolQueryKnowledgeBase) != 1 {
		t.Fatalf("query_knowledge_base calls = %d", fg.callCount(ToolQueryKnowledgeBase))
	}
	if fg.evalContext != "one two three" {
		t.Fatalf("context material = %q, want the first three words", fg.evalContext)
	}
}

func TestEvaluateShortContextPassesThrough(t *testing.T) {
	fg := newFakeGateway()
	fg.kbContext = "one two"
	exec := NewEvaluateExecutorWithEncoder(fg, 10, 3, &wordEncoder{}, testLogger())
	state := evaluateState("t-3")
	state.Materials.KBTopic = "readings-t-3"

	if _, err := exec.Execute(context.Background(), state, ""); err != nil {
		t.Fatal(err)
	}
	if fg.evalContext != "one two" {
		t.Fatalf("context material = %q", fg.evalContext)
	}
}

func TestDeriveQueryPrefersQuestion(t *testing.T) {
	q := deriveQuery("Thesis 30pts Evidence 40pts", "Discuss the causes of the French Revolution")
	if !strings.Contains(q, "french") || !strings.Contains(q, "revolution") {
		t.Fatalf("query = %q", q)
	}
	if strings.Contains(q, "thesis") {
		t.Fatalf("rubric terms leaked into a question-based query: %q", q)
	}
}

func TestDeriveQueryFallsBackToRubric(t *testing.T) {
	q := deriveQuery("Cites primary sources about the Industrial Revolution", "")
	if !strings.Contains(q, "industrial") {
		t.Fatalf("query = %q", q)
	}
}

func TestDeriveQueryFiltersStopwordsAndDuplicates(t *testing.T) {
	q := deriveQuery("", "the essay should discuss discuss the causes and the causes")
	terms := strings.Fields(q)
	seen := map[string]bool{}
	for _, term := range terms {
		if seen[term] {
			t.Fatalf("duplicate term %q in %q", term, q)
		}
		seen[term] = true
		if term == "the" || term == "and" || term == "essay" || term == "should" {
			t.Fatalf("stopword %q survived in %q", term, q)
		}
	}
}

func TestDeriveQueryCapsTermCount(t *testing.T) {
	long := "alpha bravo charlie delta echo foxtrot golf hotel india juliett kilo lima mike november oscar"
	q := deriveQuery("", long)
	if n := len(strings.Fields(q)); n > maxQueryTerms {
		t.Fatalf("query has %d terms, cap is %d", n, maxQueryTerms)
	}
}
