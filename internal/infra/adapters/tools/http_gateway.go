package tools

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/ctroy978/edagent/internal/domain/model"
	"github.com/ctroy978/edagent/internal/domain/ports/adapter"
)

// Compile-time assurance this adapter satisfies the port
var _ adapter.ToolGateway = (*HTTPGateway)(nil)

// HTTPGateway talks JSON over HTTP to the external processing service. One
// POST per tool, request and response bodies mirrored from the service's
// API. Retries are deliberately absent: OCR and evaluation calls are not
// idempotent, so a failed call surfaces to the caller instead.
type HTTPGateway struct {
	base   string
	apiKey string
	client *http.Client
}

func NewHTTPGateway(baseURL, apiKey string, timeout time.Duration) (*HTTPGateway, error) {
	if baseURL == "" {
		return nil, errors.New("gateway base url empty")
	}
	if timeout <= 0 {
		timeout = 120 * time.Second
	}
	return &HTTPGateway{
		base:   baseURL,
		apiKey: apiKey,
		client: &http.Client{Timeout: timeout},
	}, nil
}

// post issues one tool call and decodes the response into out (out may be
// nil for calls with no payload of interest).
func (g *HTTPGateway) post(ctx context.Context, path string, in, out interface{}) error {
	b, err := json.Marshal(in)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, g.base+path, bytes.NewReader(b))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	if g.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+g.apiKey)
	}

	resp, err := g.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("gateway http %d on %s: %s", resp.StatusCode, path, bytes.TrimSpace(body))
	}
	if out == nil {
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

func (g *HTTPGateway) CreateJobWithMaterials(ctx context.Context, materials model.Materials) (string, error) {
	in := struct {
		Rubric      string   `json:"rubric"`
		Question    string   `json:"question,omitempty"`
		ReadingRefs []string `json:"reading_refs,omitempty"`
		EssayFormat string   `json:"essay_format"`
	}{materials.Rubric, materials.Question, materials.ReadingRefs, materials.EssayFormat}
	var out struct {
		MaterialsRef string `json:"materials_ref"`
	}
	if err := g.post(ctx, "/tools/create_job_with_materials", in, &out); err != nil {
		return "", err
	}
	if out.MaterialsRef == "" {
		return "", errors.New("gateway returned empty materials ref")
	}
	return out.MaterialsRef, nil
}

func (g *HTTPGateway) AddToKnowledgeBase(ctx context.Context, fileRefs []string, topic string) error {
	in := struct {
		FileRefs []string `json:"file_refs"`
		Topic    string   `json:"topic"`
	}{fileRefs, topic}
	return g.post(ctx, "/tools/add_to_knowledge_base", in, nil)
}

func (g *HTTPGateway) ConvertDocumentToText(ctx context.Context, fileRef string) (string, error) {
	in := struct {
		FileRef string `json:"file_ref"`
	}{fileRef}
	var out struct {
		Text string `json:"text"`
	}
	if err := g.post(ctx, "/tools/convert_document_to_text", in, &out); err != nil {
		return "", err
	}
	return out.Text, nil
}

func (g *HTTPGateway) ReadTextFile(ctx context.Context, fileRef string) (string, error) {
	in := struct {
		FileRef string `json:"file_ref"`
	}{fileRef}
	var out struct {
		Text string `json:"text"`
	}
	if err := g.post(ctx, "/tools/read_text_file", in, &out); err != nil {
		return "", err
	}
	return out.Text, nil
}

func (g *HTTPGateway) BatchProcessDocuments(ctx context.Context, directoryRef, jobName string) (*model.BatchResult, error) {
	in := struct {
		DirectoryRef string `json:"directory_ref"`
		JobName      string `json:"job_name"`
	}{directoryRef, jobName}
	var out model.BatchResult
	if err := g.post(ctx, "/tools/batch_process_documents", in, &out); err != nil {
		return nil, err
	}
	if out.JobID == "" {
		return nil, errors.New("gateway returned empty job id")
	}
	return &out, nil
}

func (g *HTTPGateway) GetJobStatistics(ctx context.Context, jobID string) ([]model.StudentRecord, error) {
	in := struct {
		JobID string `json:"job_id"`
	}{jobID}
	var out struct {
		Students []model.StudentRecord `json:"students"`
	}
	if err := g.post(ctx, "/tools/get_job_statistics", in, &out); err != nil {
		return nil, err
	}
	return out.Students, nil
}

func (g *HTTPGateway) ValidateStudentNames(ctx context.Context, jobID string) (*model.ValidationReport, error) {
	in := struct {
		JobID string `json:"job_id"`
	}{jobID}
	var out model.ValidationReport
	if err := g.post(ctx, "/tools/validate_student_names", in, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (g *HTTPGateway) CorrectDetectedName(ctx context.Context, jobID, essayID, correctedName string) error {
	in := struct {
		JobID         string `json:"job_id"`
		EssayID       string `json:"essay_id"`
		CorrectedName string `json:"corrected_name"`
	}{jobID, essayID, correctedName}
	return g.post(ctx, "/tools/correct_detected_name", in, nil)
}

func (g *HTTPGateway) ScrubProcessedJob(ctx context.Context, jobID string) error {
	in := struct {
		JobID string `json:"job_id"`
	}{jobID}
	return g.post(ctx, "/tools/scrub_processed_job", in, nil)
}

func (g *HTTPGateway) QueryKnowledgeBase(ctx context.Context, query, topic string) (string, error) {
	in := struct {
		Query string `json:"query"`
		Topic string `json:"topic"`
	}{query, topic}
	var out struct {
		Context string `json:"context"`
	}
	if err := g.post(ctx, "/tools/query_knowledge_base", in, &out); err != nil {
		return "", err
	}
	return out.Context, nil
}

func (g *HTTPGateway) EvaluateJob(ctx context.Context, jobID, rubric, contextMaterial, instructions string) error {
	in := struct {
		JobID           string `json:"job_id"`
		Rubric          string `json:"rubric"`
		ContextMaterial string `json:"context_material,omitempty"`
		Instructions    string `json:"instructions,omitempty"`
	}{jobID, rubric, contextMaterial, instructions}
	return g.post(ctx, "/tools/evaluate_job", in, nil)
}

func (g *HTTPGateway) GenerateGradebook(ctx context.Context, jobID string) (string, error) {
	in := struct {
		JobID string `json:"job_id"`
	}{jobID}
	var out struct {
		ArtifactRef string `json:"artifact_ref"`
	}
	if err := g.post(ctx, "/tools/generate_gradebook", in, &out); err != nil {
		return "", err
	}
	return out.ArtifactRef, nil
}

func (g *HTTPGateway) GenerateStudentFeedback(ctx context.Context, jobID string) (string, error) {
	in := struct {
		JobID string `json:"job_id"`
	}{jobID}
	var out struct {
		ArtifactRef string `json:"artifact_ref"`
	}
	if err := g.post(ctx, "/tools/generate_student_feedback", in, &out); err != nil {
		return "", err
	}
	return out.ArtifactRef, nil
}

func (g *HTTPGateway) DownloadReportsLocally(ctx context.Context, jobID string) (*model.ReportPaths, error) {
	in := struct {
		JobID string `json:"job_id"`
	}{jobID}
	var out model.ReportPaths
	if err := g.post(ctx, "/tools/download_reports_locally", in, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (g *HTTPGateway) SendStudentFeedbackEmails(ctx context.Context, jobID string) ([]model.SendResult, error) {
	in := struct {
		JobID string `json:"job_id"`
	}{jobID}
	var out struct {
		Results []model.SendResult `json:"results"`
	}
	if err := g.post(ctx, "/tools/send_student_feedback_emails", in, &out); err != nil {
		return nil, err
	}
	return out.Results, nil
}
