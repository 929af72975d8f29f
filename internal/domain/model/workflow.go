package model

import "time"

// Phase is one named stage of the grading pipeline. Phases only move
// forward (or sidestep to email/done); they never regress.
type Phase string

const (
	PhaseGather   Phase = "gather"
	PhasePrepare  Phase = "prepare"
	PhaseValidate Phase = "validate"
	PhaseScrub    Phase = "scrub"
	PhaseEvaluate Phase = "evaluate"
	PhaseReport   Phase = "report"
	PhaseEmail    Phase = "email"
	PhaseDone     Phase = "done"
)

// Phases lists every phase in pipeline order.
func Phases() []Phase {
	return []Phase{
		PhaseGather, PhasePrepare, PhaseValidate, PhaseScrub,
		PhaseEvaluate, PhaseReport, PhaseEmail, PhaseDone,
	}
}

// EssayFormat values accepted during gathering.
const (
	FormatHandwritten = "handwritten"
	FormatTyped       = "typed"
)

// Materials holds the inputs collected during the gather phase.
type Materials struct {
	Rubric       string   `json:"rubric"`
	Question     string   `json:"question,omitempty"`
	QuestionSet  bool     `json:"question_set"`
	ReadingRefs  []string `json:"reading_refs,omitempty"`
	ReadingsSet  bool     `json:"readings_set"`
	KBTopic      string   `json:"kb_topic,omitempty"`
	EssayFormat  string   `json:"essay_format,omitempty"`
	StudentCount int      `json:"student_count,omitempty"`
	EssayRefs    []string `json:"essay_refs,omitempty"`
	EssayDirRef  string   `json:"essay_dir_ref,omitempty"`
	MaterialsRef string   `json:"materials_ref,omitempty"`
}

// Flags are per-phase completion markers. Each is set exactly once by its
// owning phase and never reset.
type Flags struct {
	MaterialsComplete  bool `json:"materials_complete"`
	OCRComplete        bool `json:"ocr_complete"`
	NamesValidated     bool `json:"names_validated"`
	ScrubbingComplete  bool `json:"scrubbing_complete"`
	EvaluationComplete bool `json:"evaluation_complete"`
	ReportComplete     bool `json:"report_complete"`
}

// PendingCorrection is one unresolved name mismatch awaiting teacher input.
type PendingCorrection struct {
	EssayID       string `json:"essay_id"`
	DetectedName  string `json:"detected_name"`
	SuggestedName string `json:"suggested_name,omitempty"`
	TextPreview   string `json:"text_preview,omitempty"`
}

// Artifacts records report output locations from the report phase.
type Artifacts struct {
	GradebookPath   string `json:"gradebook_path,omitempty"`
	FeedbackZipPath string `json:"feedback_zip_path,omitempty"`
}

// WorkflowState is the persisted per-thread record driving the grading
// pipeline. It is mutated only by phase executors and the router, and is
// checkpointed after every handled message.
type WorkflowState struct {
	ThreadID string `json:"thread_id"`
	Phase    Phase  `json:"phase"`
	// JobID is issued by the external service on the first OCR call and is
	// never cleared for the life of the thread.
	JobID string `json:"job_id,omitempty"`

	Materials Materials `json:"materials"`
	Flags     Flags     `json:"flags"`

	PendingCorrections []PendingCorrection `json:"pending_corrections,omitempty"`
	CorrectionRounds   int                 `json:"correction_rounds"`

	Artifacts Artifacts `json:"artifacts"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// NewWorkflowState creates the initial state for a thread's grading conversation.
func NewWorkflowState(threadID string) *WorkflowState {
	now := time.Now()
	return &WorkflowState{
		ThreadID:  threadID,
		Phase:     PhaseGather,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// SetJobID records the job identifier. A job id, once set, is never
// overwritten; later calls with a different or empty value are ignored.
func (s *WorkflowState) SetJobID(id string) {
	if s.JobID != "" || id == "" {
		return
	}
	s.JobID = id
}

// Terminal reports whether the workflow has finished.
func (s *WorkflowState) Terminal() bool { return s.Phase == PhaseDone }

// MidWorkflow reports whether the thread is between gather and done, i.e. a
// suspended phase should be resumed rather than intent re-classified.
func (s *WorkflowState) MidWorkflow() bool {
	return s.Phase != PhaseGather && s.Phase != PhaseDone
}
