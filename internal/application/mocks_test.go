package application

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/jackc/pgx/v4"

	"github.com/ctroy978/edagent/internal/domain"
	"github.com/ctroy978/edagent/internal/domain/model"
	"github.com/ctroy978/edagent/internal/domain/ports/adapter"
	"github.com/ctroy978/edagent/internal/domain/ports/repository"
)

// memStateRepo is an in-memory WorkflowStateRepository honoring the job-id
// no-clear rule the SQL upsert enforces in production.
type memStateRepo struct {
	mu    sync.Mutex
	store map[string]*model.WorkflowState
}

var _ repository.WorkflowStateRepository = (*memStateRepo)(nil)

func newMemStateRepo() *memStateRepo {
	return &memStateRepo{store: map[string]*model.WorkflowState{}}
}

func (m *memStateRepo) Save(_ context.Context, _ repository.Tx, state *model.WorkflowState) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *state
	if prev, ok := m.store[state.ThreadID]; ok && cp.JobID == "" {
		cp.JobID = prev.JobID
	}
	m.store[state.ThreadID] = &cp
	return nil
}

func (m *memStateRepo) Find(_ context.Context, _ repository.Tx, threadID string) (*model.WorkflowState, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.store[threadID]
	if !ok {
		return nil, domain.ErrNotFound
	}
	cp := *s
	return &cp, nil
}

func (m *memStateRepo) List(_ context.Context, _ repository.Tx, limit int) ([]*model.WorkflowState, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*model.WorkflowState
	for _, s := range m.store {
		cp := *s
		out = append(out, &cp)
		if limit > 0 && len(out) == limit {
			break
		}
	}
	return out, nil
}

func (m *memStateRepo) CountStale(_ context.Context, _ repository.Tx, cutoff time.Time) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, s := range m.store {
		if s.Phase != model.PhaseDone && s.UpdatedAt.Before(cutoff) {
			n++
		}
	}
	return n, nil
}

func (m *memStateRepo) len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.store)
}

// fakeTxManager runs the function with a nil tx; the mem repo ignores it.
type fakeTxManager struct{}

var _ repository.TransactionManager = (*fakeTxManager)(nil)

func (fakeTxManager) WithTx(ctx context.Context, _ pgx.TxOptions, fn func(ctx context.Context, tx repository.Tx) error) error {
	return fn(ctx, nil)
}

// fakeLocker grants every lock unless busy is set.
type fakeLocker struct {
	mu   sync.Mutex
	busy bool
	held map[string]int
}

func newFakeLocker() *fakeLocker { return &fakeLocker{held: map[string]int{}} }

func (l *fakeLocker) TryLock(_ context.Context, key string, _ time.Duration) (string, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.busy {
		return "", domain.ErrThreadBusy
	}
	l.held[key]++
	return "token", nil
}

func (l *fakeLocker) Unlock(_ context.Context, key, _ string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.held[key]--
	return nil
}

// memRedis backs the StateCache with a plain map. failSet makes every write
// error so tests can exercise the cache-failure path.
type memRedis struct {
	mu      sync.Mutex
	store   map[string]string
	failSet bool
}

func newMemRedis() *memRedis { return &memRedis{store: map[string]string{}} }

func (m *memRedis) Ping(context.Context) error { return nil }

func (m *memRedis) Set(_ context.Context, key string, value interface{}, _ time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failSet {
		return errors.New("redis: connection refused")
	}
	switch v := value.(type) {
	case string:
		m.store[key] = v
	case []byte:
		m.store[key] = string(v)
	default:
		return errors.New("unsupported value type")
	}
	return nil
}

func (m *memRedis) Get(_ context.Context, key string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.store[key]
	if !ok {
		return "", errors.New("redis: nil")
	}
	return v, nil
}

func (m *memRedis) Expire(context.Context, string, time.Duration) error { return nil }

func (m *memRedis) Del(_ context.Context, keys ...string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, k := range keys {
		delete(m.store, k)
	}
	return nil
}

func (m *memRedis) Close() error { return nil }

func (m *memRedis) has(key string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.store[key]
	return ok
}

// byteEncoder maps every byte to one token, enough to drive the evaluate
// executor's context budget without the real BPE tables.
type byteEncoder struct{}

func (byteEncoder) Encode(text string, _, _ []string) []int {
	toks := make([]int, len(text))
	for i := 0; i < len(text); i++ {
		toks[i] = int(text[i])
	}
	return toks
}

func (byteEncoder) Decode(tokens []int) string {
	b := make([]byte, len(tokens))
	for i, t := range tokens {
		b[i] = byte(t)
	}
	return string(b)
}

// scriptedGateway drives the whole pipeline in memory. Calls are counted per
// tool so tests can assert what ran.
type scriptedGateway struct {
	mu    sync.Mutex
	calls map[string]int

	batchResult *model.BatchResult
	validation  *model.ValidationReport
	sendResults []model.SendResult
	failTool    string
	failErr     error
}

var _ adapter.ToolGateway = (*scriptedGateway)(nil)

func newScriptedGateway() *scriptedGateway {
	return &scriptedGateway{
		calls:       map[string]int{},
		batchResult: &model.BatchResult{JobID: "job-1", StudentCount: 3},
		validation:  &model.ValidationReport{Matched: []string{"Ann", "Ben", "Cam"}},
		sendResults: []model.SendResult{
			{StudentName: "Ann", Sent: true},
			{StudentName: "Ben", Sent: true},
			{StudentName: "Cam", Sent: true},
		},
	}
}

func (g *scriptedGateway) record(tool string) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.calls[tool]++
	if tool == g.failTool {
		return g.failErr
	}
	return nil
}

func (g *scriptedGateway) callCount(tool string) int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.calls[tool]
}

func (g *scriptedGateway) CreateJobWithMaterials(_ context.Context, _ model.Materials) (string, error) {
	if err := g.record("create_job_with_materials"); err != nil {
		return "", err
	}
	return "mat-1", nil
}

func (g *scriptedGateway) AddToKnowledgeBase(_ context.Context, _ []string, _ string) error {
	return g.record("add_to_knowledge_base")
}

func (g *scriptedGateway) ConvertDocumentToText(_ context.Context, _ string) (string, error) {
	if err := g.record("convert_document_to_text"); err != nil {
		return "", err
	}
	return "text", nil
}

func (g *scriptedGateway) ReadTextFile(_ context.Context, _ string) (string, error) {
	if err := g.record("read_text_file"); err != nil {
		return "", err
	}
	return "text", nil
}

func (g *scriptedGateway) BatchProcessDocuments(_ context.Context, _, _ string) (*model.BatchResult, error) {
	if err := g.record("batch_process_documents"); err != nil {
		return nil, err
	}
	return g.batchResult, nil
}

func (g *scriptedGateway) GetJobStatistics(_ context.Context, _ string) ([]model.StudentRecord, error) {
	if err := g.record("get_job_statistics"); err != nil {
		return nil, err
	}
	return []model.StudentRecord{
		{StudentName: "Ann", EssayID: "essay-1"},
		{StudentName: "Ben", EssayID: "essay-2"},
		{StudentName: "Cam", EssayID: "essay-3"},
	}, nil
}

func (g *scriptedGateway) ValidateStudentNames(_ context.Context, _ string) (*model.ValidationReport, error) {
	if err := g.record("validate_student_names"); err != nil {
		return nil, err
	}
	return g.validation, nil
}

func (g *scriptedGateway) CorrectDetectedName(_ context.Context, _, _, _ string) error {
	return g.record("correct_detected_name")
}

func (g *scriptedGateway) ScrubProcessedJob(_ context.Context, _ string) error {
	return g.record("scrub_processed_job")
}

func (g *scriptedGateway) QueryKnowledgeBase(_ context.Context, _, _ string) (string, error) {
	if err := g.record("query_knowledge_base"); err != nil {
		return "", err
	}
	return "retrieved context", nil
}

func (g *scriptedGateway) EvaluateJob(_ context.Context, _, _, _, _ string) error {
	return g.record("evaluate_job")
}

func (g *scriptedGateway) GenerateGradebook(_ context.Context, _ string) (string, error) {
	if err := g.record("generate_gradebook"); err != nil {
		return "", err
	}
	return "gb-ref", nil
}

func (g *scriptedGateway) GenerateStudentFeedback(_ context.Context, _ string) (string, error) {
	if err := g.record("generate_student_feedback"); err != nil {
		return "", err
	}
	return "fb-ref", nil
}

func (g *scriptedGateway) DownloadReportsLocally(_ context.Context, _ string) (*model.ReportPaths, error) {
	if err := g.record("download_reports_locally"); err != nil {
		return nil, err
	}
	return &model.ReportPaths{GradebookPath: "/tmp/gb.csv", FeedbackZipPath: "/tmp/fb.zip"}, nil
}

func (g *scriptedGateway) SendStudentFeedbackEmails(_ context.Context, _ string) ([]model.SendResult, error) {
	if err := g.record("send_student_feedback_emails"); err != nil {
		return nil, err
	}
	return g.sendResults, nil
}
