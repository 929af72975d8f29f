package workflow

import (
	"context"
	"fmt"

	"github.com/ctroy978/edagent/internal/domain"
	"github.com/ctroy978/edagent/internal/domain/model"
)

// Directive tells the caller what to do after a phase invocation returns.
type Directive string

const (
	// DirectiveSuspend keeps the current phase and awaits the next user message.
	DirectiveSuspend Directive = "suspend"
	// DirectiveAdvance moves to the declared next phase and runs it immediately.
	DirectiveAdvance Directive = "advance"
	// DirectiveDivert jumps out of the forward sequence (report -> email).
	DirectiveDivert Directive = "divert"
	// DirectiveTerminal ends the workflow.
	DirectiveTerminal Directive = "terminal"
)

// Result is the outcome of one phase invocation. Routing decisions travel
// through this value, never through shared mutable state.
type Result struct {
	Directive Directive
	Next      model.Phase
	Reply     string
}

func suspend(reply string) *Result {
	return &Result{Directive: DirectiveSuspend, Reply: reply}
}

func advance(next model.Phase, reply string) *Result {
	return &Result{Directive: DirectiveAdvance, Next: next, Reply: reply}
}

func terminal(reply string) *Result {
	return &Result{Directive: DirectiveTerminal, Next: model.PhaseDone, Reply: reply}
}

// Executor drives one phase to a suspension point or completion. Executors
// mutate the given state (phase flags, materials, job id) and issue gateway
// calls only through their phase's guarded gateway.
type Executor interface {
	Phase() model.Phase
	Execute(ctx context.Context, state *model.WorkflowState, message string) (*Result, error)
}

// Set holds the registered executors. Resolving a phase with no executor is
// a configuration defect and fails fast rather than silently terminating.
type Set struct {
	execs map[model.Phase]Executor
}

func NewSet(execs ...Executor) *Set {
	m := make(map[model.Phase]Executor, len(execs))
	for _, e := range execs {
		m[e.Phase()] = e
	}
	return &Set{execs: m}
}

// For returns the executor registered for the phase.
func (s *Set) For(phase model.Phase) (Executor, error) {
	e, ok := s.execs[phase]
	if !ok {
		return nil, fmt.Errorf("%w: %q", domain.ErrUnknownPhase, phase)
	}
	return e, nil
}

// DefaultCallBudget bounds the tool calls a single phase invocation may
// issue. Exhausting it surfaces a recoverable error instead of retrying
// indefinitely.
const DefaultCallBudget = 16
