package workflow

import (
	"context"
	"strings"
	"testing"

	"github.com/ctroy978/edagent/internal/domain/model"
)

func preparedState(threadID string) *model.WorkflowState {
	state := model.NewWorkflowState(threadID)
	state.Phase = model.PhasePrepare
	state.Materials = model.Materials{
		Rubric:      "rubric",
		QuestionSet: true,
		ReadingsSet: true,
		EssayFormat: model.FormatTyped,
		EssayRefs:   []string{"/uploads/t/essays.zip"},
	}
	state.Flags.MaterialsComplete = true
	return state
}

func TestPrepareRunsBatchAndIssuesJobID(t *testing.T) {
	fg := newFakeGateway()
	exec := NewPrepareExecutor(fg, 10, true, testLogger())
	state := preparedState("t-1")

	res, err := exec.Execute(context.Background(), state, "")
	if err != nil {
		t.Fatal(err)
	}
	if res.Directive != DirectiveAdvance || res.Next != model.PhaseValidate {
		t.Fatalf("expected advance to validate, got %s/%s", res.Directive, res.Next)
	}
	if state.JobID != "job-1" {
		t.Fatalf("job id = %q", state.JobID)
	}
	if !state.Flags.OCRComplete {
		t.Fatal("ocr_complete not set")
	}
	if fg.callCount(ToolBatchProcessDocuments) != 1 {
		t.Fatalf("batch calls = %d", fg.callCount(ToolBatchProcessDocuments))
	}
}

func TestPrepareIsIdempotentAfterOCR(t *testing.T) {
	fg := newFakeGateway()
	exec := NewPrepareExecutor(fg, 10, true, testLogger())
	state := preparedState("t-2")
	state.SetJobID("job-old")
	state.Flags.OCRComplete = true

	res, err := exec.Execute(context.Background(), state, "")
	if err != nil {
		t.Fatal(err)
	}
	if res.Directive != DirectiveAdvance || res.Next != model.PhaseValidate {
		t.Fatalf("expected skip to validate, got %s/%s", res.Directive, res.Next)
	}
	if fg.totalCalls() != 0 {
		t.Fatalf("re-invocation issued %d tool call(s); want zero", fg.totalCalls())
	}
	if state.JobID != "job-old" {
		t.Fatalf("job id changed to %q", state.JobID)
	}
}

func TestPrepareReportsPartialFailures(t *testing.T) {
	fg := newFakeGateway()
	fg.batchResult = &model.BatchResult{
		JobID: "job-3", StudentCount: 21,
		FailedFiles: []string{"smith.pdf", "lee.pdf"},
	}
	exec := NewPrepareExecutor(fg, 10, true, testLogger())
	state := preparedState("t-3")
	state.Materials.StudentCount = 23

	res, err := exec.Execute(context.Background(), state, "")
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(res.Reply, "smith.pdf") {
		t.Fatalf("reply does not surface failed files: %q", res.Reply)
	}
	if !strings.Contains(res.Reply, "expected 23") {
		t.Fatalf("reply does not mention the count mismatch: %q", res.Reply)
	}
	// Partial failure still advances; the teacher decides whether to redo.
	if res.Directive != DirectiveAdvance {
		t.Fatalf("directive = %s", res.Directive)
	}
}

func TestCollateUploads(t *testing.T) {
	cases := []struct {
		refs []string
		want string
	}{
		{[]string{"/up/t/essays.zip"}, "/up/t/essays.zip"},
		{[]string{"/up/t/"}, "/up/t/"},
		{[]string{"/up/t/a.pdf", "/up/t/b.pdf"}, "/up/t"},
		{[]string{"/up/x/a.pdf", "/up/y/b.pdf"}, "/up/x/a.pdf;/up/y/b.pdf"},
	}
	for _, c := range cases {
		if got := collateUploads(c.refs, true); got != c.want {
			t.Errorf("collateUploads(%v) = %q, want %q", c.refs, got, c.want)
		}
	}
}
