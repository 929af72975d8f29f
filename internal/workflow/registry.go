package workflow

import (
	"fmt"

	"github.com/ctroy978/edagent/internal/domain"
	"github.com/ctroy978/edagent/internal/domain/model"
)

// Tool names as exposed by the external processing service.
const (
	ToolCreateJobWithMaterials    = "create_job_with_materials"
	ToolAddToKnowledgeBase        = "add_to_knowledge_base"
	ToolConvertDocumentToText     = "convert_document_to_text"
	ToolReadTextFile              = "read_text_file"
	ToolBatchProcessDocuments     = "batch_process_documents"
	ToolGetJobStatistics          = "get_job_statistics"
	ToolValidateStudentNames      = "validate_student_names"
	ToolCorrectDetectedName       = "correct_detected_name"
	ToolScrubProcessedJob         = "scrub_processed_job"
	ToolQueryKnowledgeBase        = "query_knowledge_base"
	ToolEvaluateJob               = "evaluate_job"
	ToolGenerateGradebook         = "generate_gradebook"
	ToolGenerateStudentFeedback   = "generate_student_feedback"
	ToolDownloadReportsLocally    = "download_reports_locally"
	ToolSendStudentFeedbackEmails = "send_student_feedback_emails"
)

// phaseTools is the static whitelist of gateway operations callable per
// phase. The whitelist is enforced structurally by the guarded gateway, not
// by instruction: a call outside the current phase's set fails with
// ErrToolNotPermitted instead of executing.
var phaseTools = map[model.Phase][]string{
	model.PhaseGather: {
		ToolCreateJobWithMaterials,
		ToolAddToKnowledgeBase,
		ToolConvertDocumentToText,
		ToolReadTextFile,
	},
	model.PhasePrepare: {
		ToolBatchProcessDocuments,
	},
	model.PhaseValidate: {
		ToolGetJobStatistics,
		ToolValidateStudentNames,
		ToolCorrectDetectedName,
	},
	model.PhaseScrub: {
		ToolGetJobStatistics,
		ToolScrubProcessedJob,
	},
	model.PhaseEvaluate: {
		ToolQueryKnowledgeBase,
		ToolEvaluateJob,
	},
	model.PhaseReport: {
		ToolGenerateGradebook,
		ToolGenerateStudentFeedback,
		ToolDownloadReportsLocally,
	},
	model.PhaseEmail: {
		ToolSendStudentFeedbackEmails,
	},
	model.PhaseDone: {},
}

// ToolsForPhase returns the whitelist of tool names callable in the given
// phase. Unknown phases are a configuration defect and error out.
func ToolsForPhase(phase model.Phase) ([]string, error) {
	tools, ok := phaseTools[phase]
	if !ok {
		return nil, fmt.Errorf("%w: %q", domain.ErrUnknownPhase, phase)
	}
	out := make([]string, len(tools))
	copy(out, tools)
	return out, nil
}

// ToolPermitted reports whether the named tool may be called in the phase.
func ToolPermitted(phase model.Phase, tool string) bool {
	for _, t := range phaseTools[phase] {
		if t == tool {
			return true
		}
	}
	return false
}
