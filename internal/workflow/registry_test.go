package workflow

import (
	"errors"
	"testing"

	"github.com/ctroy978/edagent/internal/domain"
	"github.com/ctroy978/edagent/internal/domain/model"
)

func TestToolsForPhaseUnknownPhase(t *testing.T) {
	_, err := ToolsForPhase(model.Phase("bogus"))
	if !errors.Is(err, domain.ErrUnknownPhase) {
		t.Fatalf("expected ErrUnknownPhase, got %v", err)
	}
}

func TestToolsForPhaseEveryPhaseRegistered(t *testing.T) {
	for _, p := range model.Phases() {
		if _, err := ToolsForPhase(p); err != nil {
			t.Errorf("phase %s: %v", p, err)
		}
	}
}

func TestToolsForPhaseReturnsCopy(t *testing.T) {
	tools, err := ToolsForPhase(model.PhaseGather)
	if err != nil {
		t.Fatal(err)
	}
	tools[0] = "mutated"
	again, _ := ToolsForPhase(model.PhaseGather)
	if again[0] == "mutated" {
		t.Fatal("ToolsForPhase leaked its internal slice")
	}
}

func TestToolPermitted(t *testing.T) {
	cases := []struct {
		phase model.Phase
		tool  string
		want  bool
	}{
		{model.PhasePrepare, ToolBatchProcessDocuments, true},
		{model.PhasePrepare, ToolEvaluateJob, false},
		{model.PhasePrepare, ToolAddToKnowledgeBase, false},
		{model.PhaseEmail, ToolSendStudentFeedbackEmails, true},
		{model.PhaseEmail, ToolGenerateGradebook, false},
		{model.PhaseDone, ToolSendStudentFeedbackEmails, false},
		{model.PhaseScrub, ToolGetJobStatistics, true},
		{model.PhaseValidate, ToolScrubProcessedJob, false},
		{model.Phase("bogus"), ToolReadTextFile, false},
	}
	for _, c := range cases {
		if got := ToolPermitted(c.phase, c.tool); got != c.want {
			t.Errorf("ToolPermitted(%s, %s) = %v, want %v", c.phase, c.tool, got, c.want)
		}
	}
}

func TestDonePhaseHasNoTools(t *testing.T) {
	tools, err := ToolsForPhase(model.PhaseDone)
	if err != nil {
		t.Fatal(err)
	}
	if len(tools) != 0 {
		t.Fatalf("done phase should expose no tools, got %v", tools)
	}
}
