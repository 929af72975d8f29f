package model

// StudentRecord is one manifest entry from get_job_statistics.
type StudentRecord struct {
	StudentName string `json:"student_name"`
	PageCount   int    `json:"page_count"`
	WordCount   int    `json:"word_count"`
	EssayID     string `json:"essay_id"`
}

// NameMismatch is one roster-validation failure with an optional text
// preview so the teacher can disambiguate duplicate submissions.
type NameMismatch struct {
	EssayID       string `json:"essay_id"`
	DetectedName  string `json:"detected_name"`
	SuggestedName string `json:"suggested_name,omitempty"`
	TextPreview   string `json:"text_preview,omitempty"`
}

// ValidationReport partitions detected names against the roster.
type ValidationReport struct {
	Matched    []string       `json:"matched"`
	Mismatched []NameMismatch `json:"mismatched"`
	Missing    []string       `json:"missing"`
}

// BatchResult is returned by batch_process_documents. FailedFiles lists
// per-file failures when the batch partially succeeded.
type BatchResult struct {
	JobID        string   `json:"job_id"`
	StudentCount int      `json:"student_count"`
	FailedFiles  []string `json:"failed_files,omitempty"`
}

// ReportPaths holds the finalized local artifact locations for a job.
type ReportPaths struct {
	GradebookPath   string `json:"gradebook_path"`
	FeedbackZipPath string `json:"feedback_zip_path"`
}

// SendResult is one per-student outcome from send_student_feedback_emails.
type SendResult struct {
	StudentName string `json:"student_name"`
	Sent        bool   `json:"sent"`
	Reason      string `json:"reason,omitempty"`
}
