package adapter

import (
	"context"

	"github.com/ctroy978/edagent/internal/domain/model"
)

// ToolGateway is the port to the external processing service that owns job
// persistence, OCR, the knowledge base, evaluation, report rendering and
// email delivery. Every operation except CreateJobWithMaterials and
// BatchProcessDocuments is keyed by job id. Calls are blocking; the
// gateway implementation owns its own timeout/retry policy and must
// tolerate concurrent job-scoped calls from independent threads.
type ToolGateway interface {
	// gather
	CreateJobWithMaterials(ctx context.Context, materials model.Materials) (materialsRef string, err error)
	AddToKnowledgeBase(ctx context.Context, fileRefs []string, topic string) error
	ConvertDocumentToText(ctx context.Context, fileRef string) (string, error)
	ReadTextFile(ctx context.Context, fileRef string) (string, error)

	// prepare
	BatchProcessDocuments(ctx context.Context, directoryRef, jobName string) (*model.BatchResult, error)

	// validate / scrub
	GetJobStatistics(ctx context.Context, jobID string) ([]model.StudentRecord, error)
	ValidateStudentNames(ctx context.Context, jobID string) (*model.ValidationReport, error)
	CorrectDetectedName(ctx context.Context, jobID, essayID, correctedName string) error
	ScrubProcessedJob(ctx context.Context, jobID string) error

	// evaluate
	QueryKnowledgeBase(ctx context.Context, query, topic string) (string, error)
	EvaluateJob(ctx context.Context, jobID, rubric, contextMaterial, instructions string) error

	// report
	GenerateGradebook(ctx context.Context, jobID string) (artifactRef string, err error)
	GenerateStudentFeedback(ctx context.Context, jobID string) (artifactRef string, err error)
	DownloadReportsLocally(ctx context.Context, jobID string) (*model.ReportPaths, error)

	// email
	SendStudentFeedbackEmails(ctx context.Context, jobID string) ([]model.SendResult, error)
}
