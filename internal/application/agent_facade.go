package application

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v4"
	"github.com/oklog/ulid/v2"
	"github.com/rs/zerolog"

	"github.com/ctroy978/edagent/internal/domain"
	"github.com/ctroy978/edagent/internal/domain/model"
	"github.com/ctroy978/edagent/internal/domain/ports/repository"
	"github.com/ctroy978/edagent/internal/infra/logging"
	"github.com/ctroy978/edagent/internal/infra/metrics"
	red "github.com/ctroy978/edagent/internal/infra/redis"
	"github.com/ctroy978/edagent/internal/workflow"
)

const (
	threadLockTTL = 2 * time.Minute

	generalReply = "I'm a grading assistant. Tell me when you have a batch of " +
		"student essays to grade and I'll walk you through it."

	finishedReply = "This grading run is complete. Start a new conversation " +
		"to grade another batch."
)

// AgentFacade owns one conversational turn end to end: lock the thread,
// load its checkpoint, route, run phase executors until they suspend, and
// persist the result. Transports (Telegram, future webhook) only ever call
// HandleMessage.
type AgentFacade struct {
	execs  *workflow.Set
	router *workflow.Router
	states repository.WorkflowStateRepository
	txm    repository.TransactionManager
	cache  *red.StateCache
	locker red.Locker
	log    *zerolog.Logger
}

func NewAgentFacade(
	execs *workflow.Set,
	router *workflow.Router,
	states repository.WorkflowStateRepository,
	txm repository.TransactionManager,
	cache *red.StateCache,
	locker red.Locker,
	logger *zerolog.Logger,
) *AgentFacade {
	l := logger.With().Str("component", "AgentFacade").Logger()
	return &AgentFacade{
		execs:  execs,
		router: router,
		states: states,
		txm:    txm,
		cache:  cache,
		locker: locker,
		log:    &l,
	}
}

// HandleMessage processes one inbound teacher message and returns the reply.
func (f *AgentFacade) HandleMessage(ctx context.Context, threadID, message string) (string, error) {
	ctx = logging.WithTraceID(ctx, ulid.Make().String())
	ctx = logging.WithThreadID(ctx, threadID)
	log := logging.With(ctx, f.log)
	defer logging.TraceDuration(log, "AgentFacade.HandleMessage")()

	lockKey := "thread_lock:" + threadID
	token, err := f.locker.TryLock(ctx, lockKey, threadLockTTL)
	if err != nil {
		if errors.Is(err, domain.ErrThreadBusy) {
			return "I'm still working on your previous message. One moment.", nil
		}
		return "", err
	}
	defer func() {
		if uerr := f.locker.Unlock(ctx, lockKey, token); uerr != nil {
			log.Warn().Err(uerr).Msg("unlock failed")
		}
	}()

	state, fresh, err := f.loadState(ctx, threadID)
	if err != nil {
		return "", err
	}
	if state.JobID != "" {
		ctx = logging.WithJobID(ctx, state.JobID)
		log = logging.With(ctx, f.log)
	}

	decision, err := f.router.Route(ctx, state, message, fresh)
	if err != nil {
		return "", fmt.Errorf("route: %w", err)
	}

	switch decision.Kind {
	case workflow.DecisionGeneral:
		// Nothing to persist; a casual question never opens a checkpoint.
		return generalReply, nil
	case workflow.DecisionGather:
		if state.Terminal() {
			return finishedReply, nil
		}
		// The opening message ("I have essays to grade") is intent, not
		// material. Keep any attachments, drop the text, so gather starts by
		// asking for the rubric instead of mistaking the greeting for it.
		if refs, _ := workflow.ParseAttachments(message); len(refs) > 0 {
			message = fmt.Sprintf("[attached: %s]", strings.Join(refs, ", "))
		} else {
			message = ""
		}
	case workflow.DecisionEmail:
		if state.Phase != model.PhaseEmail {
			metrics.IncPhaseTransition(string(state.Phase), string(model.PhaseEmail))
			state.Phase = model.PhaseEmail
		}
	}

	reply, execErr := f.runPhases(ctx, state, message, log)
	if execErr != nil {
		if recoverable(execErr) {
			log.Warn().Err(execErr).Str("phase", string(state.Phase)).Msg("recoverable phase error")
			if err := f.persist(ctx, state); err != nil {
				return "", err
			}
			return userFacing(execErr), nil
		}
		return "", execErr
	}

	if err := f.persist(ctx, state); err != nil {
		return "", err
	}
	return reply, nil
}

// runPhases drives executors starting at the state's phase, following
// advance directives immediately so the teacher never has to nudge the bot
// between phases that need no input.
func (f *AgentFacade) runPhases(ctx context.Context, state *model.WorkflowState, message string, log *zerolog.Logger) (string, error) {
	var replies []string
	// The forward chain visits each phase at most once per turn.
	for hops := 0; hops <= len(model.Phases()); hops++ {
		exec, err := f.execs.For(state.Phase)
		if err != nil {
			return "", err
		}
		res, err := exec.Execute(ctx, state, message)
		if err != nil {
			return "", err
		}
		if res.Reply != "" {
			replies = append(replies, res.Reply)
		}
		message = "" // only the first phase sees the inbound text

		switch res.Directive {
		case workflow.DirectiveSuspend:
			metrics.IncSuspension(string(state.Phase))
			return joinReplies(replies), nil
		case workflow.DirectiveAdvance, workflow.DirectiveDivert:
			metrics.IncPhaseTransition(string(state.Phase), string(res.Next))
			state.Phase = res.Next
		case workflow.DirectiveTerminal:
			metrics.IncPhaseTransition(string(state.Phase), string(model.PhaseDone))
			state.Phase = model.PhaseDone
			return joinReplies(replies), nil
		default:
			return "", fmt.Errorf("unknown directive %q in phase %s", res.Directive, state.Phase)
		}
	}
	return "", fmt.Errorf("phase chain did not suspend: thread %s", state.ThreadID)
}

// loadState returns the thread's checkpoint, preferring the cache. fresh is
// true when no checkpoint exists yet, i.e. this message opens the thread.
func (f *AgentFacade) loadState(ctx context.Context, threadID string) (state *model.WorkflowState, fresh bool, err error) {
	if state, err := f.cache.Get(ctx, threadID); err == nil && state != nil {
		return state, false, nil
	}
	state, err = f.states.Find(ctx, nil, threadID)
	if errors.Is(err, domain.ErrNotFound) {
		return model.NewWorkflowState(threadID), true, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("load state: %w", err)
	}
	return state, false, nil
}

func (f *AgentFacade) persist(ctx context.Context, state *model.WorkflowState) error {
	err := f.txm.WithTx(ctx, pgx.TxOptions{}, func(ctx context.Context, tx repository.Tx) error {
		return f.states.Save(ctx, tx, state)
	})
	if err != nil {
		return fmt.Errorf("persist state: %w", err)
	}
	if err := f.cache.Set(ctx, state); err != nil {
		// Postgres is the source of truth; drop the stale entry so the next
		// turn reads the fresh row instead of an outdated cache hit.
		f.log.Warn().Err(err).Str("thread_id", state.ThreadID).Msg("state cache write failed")
		if derr := f.cache.Invalidate(ctx, state.ThreadID); derr != nil {
			f.log.Warn().Err(derr).Str("thread_id", state.ThreadID).Msg("state cache invalidate failed")
		}
	}
	return nil
}

// recoverable errors suspend the current phase with an explanation instead
// of failing the turn. Structural errors (whitelist violations, unknown
// phases) propagate; they indicate a defect, not a bad day at the gateway.
func recoverable(err error) bool {
	return errors.Is(err, domain.ErrExternalToolFailure) ||
		errors.Is(err, domain.ErrIterationBudgetExceeded) ||
		errors.Is(err, domain.ErrMissingJobID) ||
		errors.Is(err, domain.ErrMismatchUnresolved) ||
		errors.Is(err, domain.ErrInvalidArgument)
}

func userFacing(err error) string {
	var limitErr *workflow.MismatchLimitError
	switch {
	case errors.Is(err, domain.ErrMissingJobID):
		return "I don't have a processed batch on this conversation yet, so there's nothing to email. Upload essays first and I'll take it from there."
	case errors.Is(err, domain.ErrIterationBudgetExceeded):
		return "That step needed more attempts than I allow in one go. Send another message to continue from where we stopped."
	case errors.As(err, &limitErr):
		return fmt.Sprintf("We've been through %d rounds of name corrections without resolving these:\n%s"+
			"Please fix them manually in the roster or the submissions, then tell me how to proceed.",
			limitErr.Rounds, workflow.FormatMismatchList(limitErr.Mismatched))
	case errors.Is(err, domain.ErrMismatchUnresolved):
		return "We've been around on these name corrections several times without resolving them. Please double-check the roster and the submissions, then tell me how to proceed."
	case errors.Is(err, domain.ErrInvalidArgument):
		return "I couldn't apply that. Check the format (e.g. \"essay-3: Jordan Lee\") and try again."
	default:
		return "The processing service had trouble with that step. Nothing is lost; try again in a moment."
	}
}

func joinReplies(replies []string) string {
	switch len(replies) {
	case 0:
		return ""
	case 1:
		return replies[0]
	}
	out := replies[0]
	for _, r := range replies[1:] {
		out += "\n\n" + r
	}
	return out
}
