package workflow

import (
	"context"
	"fmt"
	"strings"

	"github.com/rs/zerolog"

	"github.com/ctroy978/edagent/internal/domain/model"
	"github.com/ctroy978/edagent/internal/domain/ports/adapter"
)

var _ Executor = (*GatherExecutor)(nil)

// GatherExecutor collects the grading materials one item at a time:
// rubric (required), essay question (optional), reading materials
// (optional), format/count, and finally the essay uploads. Once the
// required pieces are in, it registers the materials with the processing
// service and advances to prepare.
type GatherExecutor struct {
	gw     adapter.ToolGateway
	budget int
	log    *zerolog.Logger
}

func NewGatherExecutor(gw adapter.ToolGateway, budget int, logger *zerolog.Logger) *GatherExecutor {
	l := logger.With().Str("executor", "gather").Logger()
	return &GatherExecutor{gw: gw, budget: budget, log: &l}
}

func (e *GatherExecutor) Phase() model.Phase { return model.PhaseGather }

func (e *GatherExecutor) Execute(ctx context.Context, state *model.WorkflowState, message string) (*Result, error) {
	gw := newGuardedGateway(e.gw, model.PhaseGather, e.budget, e.log)
	m := &state.Materials
	refs, text := ParseAttachments(message)

	switch {
	case m.Rubric == "":
		return e.collectRubric(ctx, gw, m, refs, text)
	case !m.QuestionSet:
		return e.collectQuestion(ctx, gw, m, refs, text)
	case !m.ReadingsSet:
		return e.collectReadings(ctx, gw, state, refs, text)
	case m.EssayFormat == "":
		return e.collectFormat(m, text)
	default:
		return e.collectEssays(ctx, gw, state, refs)
	}
}

func (e *GatherExecutor) collectRubric(ctx context.Context, gw adapter.ToolGateway, m *model.Materials, refs []string, text string) (*Result, error) {
	switch {
	case len(refs) > 0:
		rubric, err := readDocument(ctx, gw, refs[0])
		if err != nil {
			return nil, err
		}
		m.Rubric = rubric
	case text != "":
		m.Rubric = text
	default:
		return suspend("To get started I need your grading rubric. Paste it here or attach the file."), nil
	}
	return suspend("Got the rubric. Was there a specific essay question or prompt the students answered? Share it here, or say \"no\" to skip."), nil
}

func (e *GatherExecutor) collectQuestion(ctx context.Context, gw adapter.ToolGateway, m *model.Materials, refs []string, text string) (*Result, error) {
	switch {
	case len(refs) > 0:
		q, err := readDocument(ctx, gw, refs[0])
		if err != nil {
			return nil, err
		}
		m.Question = q
		m.QuestionSet = true
	case text != "" && !isNegative(text):
		m.Question = text
		m.QuestionSet = true
	case isNegative(text):
		m.QuestionSet = true
	default:
		return suspend("Share the essay question or prompt, or say \"no\" to skip."), nil
	}
	return suspend("Did students use specific reading materials, textbook chapters, or lecture notes? Attach them now, or say \"no\"."), nil
}

func (e *GatherExecutor) collectReadings(ctx context.Context, gw adapter.ToolGateway, state *model.WorkflowState, refs []string, text string) (*Result, error) {
	m := &state.Materials
	switch {
	case len(refs) > 0:
		topic := kbTopic(state.ThreadID)
		if err := gw.AddToKnowledgeBase(ctx, refs, topic); err != nil {
			return nil, err
		}
		m.ReadingRefs = append(m.ReadingRefs, refs...)
		m.KBTopic = topic
		m.ReadingsSet = true
	case isNegative(text):
		m.ReadingsSet = true
	default:
		return suspend("Attach the reading materials, or say \"no\" if there aren't any."), nil
	}
	return suspend("Are the essays handwritten or typed, and roughly how many students? (e.g. \"typed, 23\")"), nil
}

func (e *GatherExecutor) collectFormat(m *model.Materials, text string) (*Result, error) {
	format, count := parseFormatAndCount(text)
	if format == "" {
		return suspend("Please tell me whether the essays are handwritten or typed (and the student count, if you know it)."), nil
	}
	m.EssayFormat = format
	if count > 0 {
		m.StudentCount = count
	}
	return suspend("Now attach the student essays. PDFs, images, or a ZIP all work."), nil
}

func (e *GatherExecutor) collectEssays(ctx context.Context, gw adapter.ToolGateway, state *model.WorkflowState, refs []string) (*Result, error) {
	m := &state.Materials
	if len(refs) == 0 {
		return suspend("I'm ready for the student essays. Attach them to continue."), nil
	}
	m.EssayRefs = append(m.EssayRefs, refs...)

	ref, err := gw.CreateJobWithMaterials(ctx, *m)
	if err != nil {
		return nil, err
	}
	m.MaterialsRef = ref
	state.Flags.MaterialsComplete = true

	e.log.Info().Str("thread_id", state.ThreadID).Int("essay_refs", len(m.EssayRefs)).Msg("materials complete")
	return advance(model.PhasePrepare, fmt.Sprintf("Received %d file(s). Processing the essays now.", len(refs))), nil
}

// readDocument tries the plain-text reader first and falls back to document
// conversion for scanned or binary files.
func readDocument(ctx context.Context, gw adapter.ToolGateway, ref string) (string, error) {
	if text, err := gw.ReadTextFile(ctx, ref); err == nil && strings.TrimSpace(text) != "" {
		return text, nil
	}
	return gw.ConvertDocumentToText(ctx, ref)
}

// kbTopic derives a stable knowledge-base topic for a thread's readings.
func kbTopic(threadID string) string {
	return "readings-" + threadID
}
