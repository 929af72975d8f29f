package workflow

import (
	"context"

	"github.com/rs/zerolog"

	"github.com/ctroy978/edagent/internal/domain/model"
	"github.com/ctroy978/edagent/internal/domain/ports/adapter"
	"github.com/ctroy978/edagent/internal/infra/metrics"
)

// DecisionKind labels how the router resolved a turn.
type DecisionKind string

const (
	DecisionEmail   DecisionKind = "email"
	DecisionResume  DecisionKind = "resume"
	DecisionGather  DecisionKind = "gather"
	DecisionGeneral DecisionKind = "general"
)

// Decision is the router's verdict for one inbound message.
type Decision struct {
	Kind  DecisionKind
	Phase model.Phase
}

// emailIntentWords is the closed keyword set for the email short-circuit.
// A single yes/no decision right after the report question is exactly where
// fuzzy intent classification is least reliable, and a mis-route there
// silently drops the job id from the flow, so this deterministic guard
// runs before the classifier, always.
var emailIntentWords = map[string]struct{}{
	"email": {}, "send": {}, "distribute": {}, "mail": {},
	"yes": {}, "yeah": {}, "yep": {}, "sure": {}, "ok": {}, "okay": {},
}

// Router decides which phase handles the next message. Deterministic
// guards are evaluated in strict order before the probabilistic classifier.
type Router struct {
	classifier adapter.IntentClassifier
	log        *zerolog.Logger
}

func NewRouter(classifier adapter.IntentClassifier, logger *zerolog.Logger) *Router {
	l := logger.With().Str("component", "router").Logger()
	return &Router{classifier: classifier, log: &l}
}

// Route resolves the next phase for the thread. fresh reports whether the
// state was created for this very message; a persisted thread (one an
// earlier grading turn checkpointed, gather included) resumes its phase
// instead of being re-classified.
func (r *Router) Route(ctx context.Context, state *model.WorkflowState, message string, fresh bool) (Decision, error) {
	// Guard 1: completed grading + email intent diverts straight to email.
	if state.JobID != "" && (state.Phase == model.PhaseReport || state.Phase == model.PhaseDone) && hasEmailIntent(message) {
		return r.decide(state, Decision{Kind: DecisionEmail, Phase: model.PhaseEmail}), nil
	}

	// Guard 2: an in-flight thread resumes the suspended phase.
	if !fresh && !state.Terminal() {
		return r.decide(state, Decision{Kind: DecisionResume, Phase: state.Phase}), nil
	}

	// Guard 3: fresh (or finished) thread; classify intent.
	intent, err := r.classifier.Classify(ctx, message)
	if err != nil {
		return Decision{}, err
	}
	if intent == adapter.IntentGrading {
		return r.decide(state, Decision{Kind: DecisionGather, Phase: model.PhaseGather}), nil
	}
	return r.decide(state, Decision{Kind: DecisionGeneral}), nil
}

func (r *Router) decide(state *model.WorkflowState, d Decision) Decision {
	metrics.IncRouterDecision(string(d.Kind))
	r.log.Debug().Str("thread_id", state.ThreadID).Str("phase", string(state.Phase)).
		Str("decision", string(d.Kind)).Msg("routed")
	return d
}

// hasEmailIntent matches whole words against the closed keyword set.
func hasEmailIntent(message string) bool {
	for _, w := range tokenize(message) {
		if _, ok := emailIntentWords[w]; ok {
			return true
		}
	}
	return false
}
