package workflow

import (
	"context"
	"sync"

	"github.com/rs/zerolog"

	"github.com/ctroy978/edagent/internal/domain/model"
	"github.com/ctroy978/edagent/internal/domain/ports/adapter"
)

func testLogger() *zerolog.Logger {
	l := zerolog.Nop()
	return &l
}

// fakeGateway is a scriptable in-memory ToolGateway. Tests read the calls
// map to assert exactly which tools ran and how often.
type fakeGateway struct {
	mu    sync.Mutex
	calls map[string]int

	materialsRef string
	readText     string
	batchResult  *model.BatchResult
	manifest     []model.StudentRecord
	validation   *model.ValidationReport
	validations  []*model.ValidationReport // consumed in order when set
	kbContext    string
	reportPaths  *model.ReportPaths
	sendResults  []model.SendResult

	evalRubric       string
	evalContext      string
	evalInstructions string

	errByTool map[string]error
}

var _ adapter.ToolGateway = (*fakeGateway)(nil)

func newFakeGateway() *fakeGateway {
	return &fakeGateway{
		calls:        map[string]int{},
		materialsRef: "mat-1",
		readText:     "file text",
		batchResult:  &model.BatchResult{JobID: "job-1", StudentCount: 3},
		manifest: []model.StudentRecord{
			{StudentName: "Ann", EssayID: "essay-1"},
			{StudentName: "Ben", EssayID: "essay-2"},
			{StudentName: "Cam", EssayID: "essay-3"},
		},
		validation:  &model.ValidationReport{Matched: []string{"Ann", "Ben", "Cam"}},
		reportPaths: &model.ReportPaths{GradebookPath: "/tmp/gb.csv", FeedbackZipPath: "/tmp/fb.zip"},
		sendResults: []model.SendResult{{StudentName: "Ann", Sent: true}},
		errByTool:   map[string]error{},
	}
}

func (f *fakeGateway) record(tool string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls[tool]++
	return f.errByTool[tool]
}

func (f *fakeGateway) callCount(tool string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[tool]
}

func (f *fakeGateway) totalCalls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, c := range f.calls {
		n += c
	}
	return n
}

func (f *fakeGateway) CreateJobWithMaterials(_ context.Context, _ model.Materials) (string, error) {
	if err := f.record(ToolCreateJobWithMaterials); err != nil {
		return "", err
	}
	return f.materialsRef, nil
}

func (f *fakeGateway) AddToKnowledgeBase(_ context.Context, _ []string, _ string) error {
	return f.record(ToolAddToKnowledgeBase)
}

func (f *fakeGateway) ConvertDocumentToText(_ context.Context, _ string) (string, error) {
	if err := f.record(ToolConvertDocumentToText); err != nil {
		return "", err
	}
	return f.readText, nil
}

func (f *fakeGateway) ReadTextFile(_ context.Context, _ string) (string, error) {
	if err := f.record(ToolReadTextFile); err != nil {
		return "", err
	}
	return f.readText, nil
}

func (f *fakeGateway) BatchProcessDocuments(_ context.Context, _, _ string) (*model.BatchResult, error) {
	if err := f.record(ToolBatchProcessDocuments); err != nil {
		return nil, err
	}
	return f.batchResult, nil
}

func (f *fakeGateway) GetJobStatistics(_ context.Context, _ string) ([]model.StudentRecord, error) {
	if err := f.record(ToolGetJobStatistics); err != nil {
		return nil, err
	}
	return f.manifest, nil
}

func (f *fakeGateway) ValidateStudentNames(_ context.Context, _ string) (*model.ValidationReport, error) {
	if err := f.record(ToolValidateStudentNames); err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.validations) > 0 {
		next := f.validations[0]
		f.validations = f.validations[1:]
		return next, nil
	}
	return f.validation, nil
}

func (f *fakeGateway) CorrectDetectedName(_ context.Context, _, _, _ string) error {
	return f.record(ToolCorrectDetectedName)
}

func (f *fakeGateway) ScrubProcessedJob(_ context.Context, _ string) error {
	return f.record(ToolScrubProcessedJob)
}

func (f *fakeGateway) QueryKnowledgeBase(_ context.Context, _, _ string) (string, error) {
	if err := f.record(ToolQueryKnowledgeBase); err != nil {
		return "", err
	}
	return f.kbContext, nil
}

func (f *fakeGateway) EvaluateJob(_ context.Context, _, rubric, contextMaterial, instructions string) error {
	f.mu.Lock()
	f.evalRubric = rubric
	f.evalContext = contextMaterial
	f.evalInstructions = instructions
	f.mu.Unlock()
	return f.record(ToolEvaluateJob)
}

func (f *fakeGateway) GenerateGradebook(_ context.Context, _ string) (string, error) {
	if err := f.record(ToolGenerateGradebook); err != nil {
		return "", err
	}
	return "gb-ref", nil
}

func (f *fakeGateway) GenerateStudentFeedback(_ context.Context, _ string) (string, error) {
	if err := f.record(ToolGenerateStudentFeedback); err != nil {
		return "", err
	}
	return "fb-ref", nil
}

func (f *fakeGateway) DownloadReportsLocally(_ context.Context, _ string) (*model.ReportPaths, error) {
	if err := f.record(ToolDownloadReportsLocally); err != nil {
		return nil, err
	}
	return f.reportPaths, nil
}

func (f *fakeGateway) SendStudentFeedbackEmails(_ context.Context, _ string) ([]model.SendResult, error) {
	if err := f.record(ToolSendStudentFeedbackEmails); err != nil {
		return nil, err
	}
	return f.sendResults, nil
}
