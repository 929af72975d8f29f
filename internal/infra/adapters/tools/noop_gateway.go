package tools

import (
	"context"
	"fmt"
	"sync"

	"github.com/ctroy978/edagent/internal/domain/model"
	"github.com/ctroy978/edagent/internal/domain/ports/adapter"
)

var _ adapter.ToolGateway = (*NoopGateway)(nil)

// NoopGateway implements adapter.ToolGateway for local/dev runs. It fakes
// the external service in memory so the whole pipeline can be walked
// end-to-end without OCR, a knowledge base, or an SMTP account.
type NoopGateway struct {
	mu      sync.Mutex
	nextJob int
}

func NewNoopGateway() *NoopGateway { return &NoopGateway{} }

func (n *NoopGateway) CreateJobWithMaterials(_ context.Context, _ model.Materials) (string, error) {
	return "noop-materials", nil
}

func (n *NoopGateway) AddToKnowledgeBase(_ context.Context, _ []string, _ string) error {
	return nil
}

func (n *NoopGateway) ConvertDocumentToText(_ context.Context, fileRef string) (string, error) {
	return "converted text of " + fileRef, nil
}

func (n *NoopGateway) ReadTextFile(_ context.Context, fileRef string) (string, error) {
	return "contents of " + fileRef, nil
}

func (n *NoopGateway) BatchProcessDocuments(_ context.Context, _, _ string) (*model.BatchResult, error) {
	n.mu.Lock()
	n.nextJob++
	id := fmt.Sprintf("noop-job-%d", n.nextJob)
	n.mu.Unlock()
	return &model.BatchResult{JobID: id, StudentCount: 1}, nil
}

func (n *NoopGateway) GetJobStatistics(_ context.Context, _ string) ([]model.StudentRecord, error) {
	return []model.StudentRecord{
		{StudentName: "Sample Student", PageCount: 2, WordCount: 500, EssayID: "essay-1"},
	}, nil
}

func (n *NoopGateway) ValidateStudentNames(_ context.Context, _ string) (*model.ValidationReport, error) {
	return &model.ValidationReport{Matched: []string{"Sample Student"}}, nil
}

func (n *NoopGateway) CorrectDetectedName(_ context.Context, _, _, _ string) error { return nil }

func (n *NoopGateway) ScrubProcessedJob(_ context.Context, _ string) error { return nil }

func (n *NoopGateway) QueryKnowledgeBase(_ context.Context, _, _ string) (string, error) {
	return "", nil
}

func (n *NoopGateway) EvaluateJob(_ context.Context, _, _, _, _ string) error { return nil }

func (n *NoopGateway) GenerateGradebook(_ context.Context, jobID string) (string, error) {
	return "gradebook-" + jobID, nil
}

func (n *NoopGateway) GenerateStudentFeedback(_ context.Context, jobID string) (string, error) {
	return "feedback-" + jobID, nil
}

func (n *NoopGateway) DownloadReportsLocally(_ context.Context, jobID string) (*model.ReportPaths, error) {
	return &model.ReportPaths{
		GradebookPath:   "/tmp/" + jobID + "/gradebook.csv",
		FeedbackZipPath: "/tmp/" + jobID + "/feedback.zip",
	}, nil
}

func (n *NoopGateway) SendStudentFeedbackEmails(_ context.Context, _ string) ([]model.SendResult, error) {
	return []model.SendResult{{StudentName: "Sample Student", Sent: true}}, nil
}
