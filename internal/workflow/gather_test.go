package workflow

import (
	"context"
	"testing"

	"github.com/ctroy978/edagent/internal/domain/model"
)

func TestGatherCollectsMaterialsStepByStep(t *testing.T) {
	fg := newFakeGateway()
	exec := NewGatherExecutor(fg, 10, testLogger())
	ctx := context.Background()
	state := model.NewWorkflowState("t-1")

	// the opening turn carries no material; gather prompts for the rubric
	res, err := exec.Execute(ctx, state, "")
	if err != nil {
		t.Fatal(err)
	}
	if res.Directive != DirectiveSuspend {
		t.Fatalf("directive = %s", res.Directive)
	}

	// rubric as pasted text
	if _, err := exec.Execute(ctx, state, "Thesis 30pts, Evidence 40pts, Style 30pts"); err != nil {
		t.Fatal(err)
	}
	if state.Materials.Rubric == "" {
		t.Fatal("rubric not captured")
	}

	// question skipped
	if _, err := exec.Execute(ctx, state, "no"); err != nil {
		t.Fatal(err)
	}
	if !state.Materials.QuestionSet || state.Materials.Question != "" {
		t.Fatalf("question skip not recorded: %+v", state.Materials)
	}

	// readings attached: should land in the knowledge base
	if _, err := exec.Execute(ctx, state, "[attached: /up/ch3.pdf]"); err != nil {
		t.Fatal(err)
	}
	if fg.callCount(ToolAddToKnowledgeBase) != 1 {
		t.Fatalf("add_to_knowledge_base calls = %d", fg.callCount(ToolAddToKnowledgeBase))
	}
	if state.Materials.KBTopic == "" {
		t.Fatal("kb topic not recorded")
	}

	// format and count
	if _, err := exec.Execute(ctx, state, "typed, 23 students"); err != nil {
		t.Fatal(err)
	}
	if state.Materials.EssayFormat != model.FormatTyped || state.Materials.StudentCount != 23 {
		t.Fatalf("format/count = %q/%d", state.Materials.EssayFormat, state.Materials.StudentCount)
	}

	// essays arrive: materials registered, advance to prepare
	res, err = exec.Execute(ctx, state, "[attached: /up/essays.zip]")
	if err != nil {
		t.Fatal(err)
	}
	if res.Directive != DirectiveAdvance || res.Next != model.PhasePrepare {
		t.Fatalf("expected advance to prepare, got %s/%s", res.Directive, res.Next)
	}
	if !state.Flags.MaterialsComplete {
		t.Fatal("materials_complete not set")
	}
	if state.Materials.MaterialsRef != "mat-1" {
		t.Fatalf("materials ref = %q", state.Materials.MaterialsRef)
	}
	if state.JobID != "" {
		t.Fatal("gather must never set a job id")
	}
}

func TestGatherRubricFromAttachment(t *testing.T) {
	fg := newFakeGateway()
	fg.readText = "attached rubric text"
	exec := NewGatherExecutor(fg, 10, testLogger())
	state := model.NewWorkflowState("t-2")

	if _, err := exec.Execute(context.Background(), state, "[attached: /up/rubric.docx]"); err != nil {
		t.Fatal(err)
	}
	if state.Materials.Rubric != "attached rubric text" {
		t.Fatalf("rubric = %q", state.Materials.Rubric)
	}
}

func TestGatherNoReadingsSkipsKnowledgeBase(t *testing.T) {
	fg := newFakeGateway()
	exec := NewGatherExecutor(fg, 10, testLogger())
	ctx := context.Background()
	state := model.NewWorkflowState("t-3")
	state.Materials.Rubric = "rubric"
	state.Materials.QuestionSet = true

	if _, err := exec.Execute(ctx, state, "none"); err != nil {
		t.Fatal(err)
	}
	if fg.callCount(ToolAddToKnowledgeBase) != 0 {
		t.Fatal("kb ingestion ran without readings")
	}
	if state.Materials.KBTopic != "" {
		t.Fatalf("kb topic = %q", state.Materials.KBTopic)
	}
}
