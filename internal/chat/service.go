package chat

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"omniagent/internal/middleware"
)

const DefaultMaxTurns = 20

type State int

const (
	StateAwaitingModel State = iota
	StateEnforcingPolicy
	StateDispatchingTool
	StateDone
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateAwaitingModel:
		return "awaiting_model"
	case StateEnforcingPolicy:
		return "enforcing_policy"
	case StateDispatchingTool:
		return "dispatching_tool"
	case StateDone:
		return "done"
	case StateFailed:
		return "failed"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// Result is the outcome of Loop.Run. History is always set, also on failure.
type Result struct {
	State   State
	Answer  string
	History History
	Turns   int
}

// Step is the outcome of one model turn.
type Step struct {
	History History
	// State is StateAwaitingModel when another turn is needed, StateDone when
	// Answer holds the final answer, StateFailed otherwise.
	State  State
	Answer string
	Call   *ToolCall // the call dispatched in this turn, if any
	Result *Message  // its tool result
	Notice Notice
}

// Loop drives the conversation between the model and the tools. It runs one
// model request or one tool call at a time, never both, never two of either.
type Loop struct {
	gateway      Gateway
	dispatcher   Dispatcher
	policy       SequentialPolicy
	mws          *middleware.Chain
	system       string
	maxTurns     int
	turnTimeout  time.Duration
	injectNotice bool
	eventContext map[string]any
	observe      func(turn int, s State)
}

type LoopOption func(*Loop)

func WithMiddlewareChain(chain *middleware.Chain) LoopOption {
	return func(l *Loop) {
		l.mws = chain
	}
}

func WithSystemInstruction(text string) LoopOption {
	return func(l *Loop) {
		l.system = text
	}
}

// WithMaxTurns bounds the number of model requests per conversation.
// Values <= 0 keep DefaultMaxTurns.
func WithMaxTurns(n int) LoopOption {
	return func(l *Loop) {
		if n > 0 {
			l.maxTurns = n
		}
	}
}

// WithTurnTimeout bounds every single gateway call. Zero disables it.
func WithTurnTimeout(d time.Duration) LoopOption {
	return func(l *Loop) {
		l.turnTimeout = d
	}
}

// WithNoticeInjection makes the loop append a system message to the history
// whenever tool calls were discarded, so the model learns about it.
func WithNoticeInjection(enabled bool) LoopOption {
	return func(l *Loop) {
		l.injectNotice = enabled
	}
}

// WithEventContext attaches static key/values (provider, model, ...) to every
// middleware event.
func WithEventContext(kv map[string]any) LoopOption {
	return func(l *Loop) {
		l.eventContext = kv
	}
}

// WithStateObserver reports every state the loop enters, in order, from the
// goroutine running it.
func WithStateObserver(fn func(turn int, s State)) LoopOption {
	return func(l *Loop) {
		l.observe = fn
	}
}

func NewLoop(gateway Gateway, dispatcher Dispatcher, opts ...LoopOption) *Loop {
	l := &Loop{
		gateway:    gateway,
		dispatcher: dispatcher,
		maxTurns:   DefaultMaxTurns,
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Run seeds the history with the system instruction and query and iterates
// Step until the model answers, the gateway fails, ctx is done or the turn
// limit is hit.
func (l *Loop) Run(ctx context.Context, query string) (*Result, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, errors.New("empty query")
	}

	h := NewHistory(l.system, query)
	for turn := 1; turn <= l.maxTurns; turn++ {
		step, err := l.Step(ctx, turn, h)
		h = step.History
		if err != nil {
			l.fail(ctx, turn, err)
			return &Result{State: StateFailed, History: h, Turns: turn}, err
		}
		if step.State == StateDone {
			return &Result{State: StateDone, Answer: step.Answer, History: h, Turns: turn}, nil
		}
	}

	err := fmt.Errorf("%w (%d)", ErrMaxTurns, l.maxTurns)
	l.enter(l.maxTurns, StateFailed)
	l.fail(ctx, l.maxTurns, err)
	return &Result{State: StateFailed, History: h, Turns: l.maxTurns}, err
}

// Step performs one model turn on h and, when the model asks for a tool, the
// dispatch of the single retained call. h is never modified; the returned
// Step.History is the new log. On failure Step.History is the last consistent
// history, which never ends with an unanswered tool call.
func (l *Loop) Step(ctx context.Context, turn int, h History) (Step, error) {
	st, err := l.step(ctx, turn, h)
	if st.State == StateDone || st.State == StateFailed {
		l.enter(turn, st.State)
	}
	return st, err
}

func (l *Loop) step(ctx context.Context, turn int, h History) (Step, error) {
	failed := Step{History: h, State: StateFailed}
	if err := ctx.Err(); err != nil {
		return failed, err
	}

	before := &middleware.Event{Name: middleware.EventBeforeModelTurn, Turn: turn}
	if turn == 1 {
		if last, ok := h.Last(); ok && last.Role == RoleUser {
			before.UserText = last.Content
		}
	}
	if err := l.emit(ctx, before); err != nil {
		return failed, err
	}

	l.enter(turn, StateAwaitingModel)
	reply, err := l.converse(ctx, h)
	if err != nil {
		return failed, err
	}

	l.enter(turn, StateEnforcingPolicy)
	reply, notice := l.policy.Enforce(reply)
	next := h.Append(reply)

	if !notice.Empty() {
		if err := l.emit(ctx, &middleware.Event{
			Name:      middleware.EventSequentialEnforced,
			Turn:      turn,
			ToolCalls: eventCalls([]ToolCall{notice.Kept}),
			Discarded: eventCalls(notice.Discarded),
		}); err != nil {
			return failed, err
		}
	}
	if err := l.emit(ctx, &middleware.Event{
		Name:      middleware.EventAfterModelTurn,
		Turn:      turn,
		LLMText:   reply.Content,
		ToolCalls: eventCalls(reply.ToolCalls),
	}); err != nil {
		return failed, err
	}

	if reply.IsFinal() {
		if err := l.emit(ctx, &middleware.Event{
			Name:    middleware.EventFinalAnswer,
			Turn:    turn,
			LLMText: reply.Content,
		}); err != nil {
			return failed, err
		}
		return Step{History: next, State: StateDone, Answer: reply.Content, Notice: notice}, nil
	}

	l.enter(turn, StateDispatchingTool)
	if err := ctx.Err(); err != nil {
		return failed, err
	}
	call := reply.ToolCalls[0]
	result := l.dispatcher.Dispatch(ctx, call)
	next = next.Append(result)
	if l.injectNotice && !notice.Empty() {
		next = next.Append(SystemMessage(noticeText(notice)))
	}

	if err := l.emit(ctx, &middleware.Event{
		Name:       middleware.EventToolResult,
		Turn:       turn,
		ToolCalls:  eventCalls([]ToolCall{call}),
		ToolOutput: result.Content,
		ToolError:  result.IsError,
	}); err != nil {
		return Step{History: next, State: StateFailed, Call: &call, Result: &result, Notice: notice}, err
	}

	return Step{
		History: next,
		State:   StateAwaitingModel,
		Call:    &call,
		Result:  &result,
		Notice:  notice,
	}, nil
}

func (l *Loop) enter(turn int, s State) {
	if l.observe != nil {
		l.observe(turn, s)
	}
}

func (l *Loop) converse(ctx context.Context, h History) (Message, error) {
	turnCtx := ctx
	if l.turnTimeout > 0 {
		var cancel context.CancelFunc
		turnCtx, cancel = context.WithTimeout(ctx, l.turnTimeout)
		defer cancel()
	}

	reply, err := l.gateway.Converse(turnCtx, h)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return Message{}, ctxErr
		}
		var gwErr *GatewayError
		if errors.As(err, &gwErr) {
			return Message{}, err
		}
		if errors.Is(err, context.DeadlineExceeded) {
			return Message{}, Unavailable("", fmt.Errorf("no reply within %s: %w", l.turnTimeout, err))
		}
		return Message{}, Unavailable("", err)
	}
	if reply.Role != RoleAssistant {
		return Message{}, Protocol("", fmt.Errorf("expected assistant message, got role %q", reply.Role))
	}
	if reply.IsFinal() && strings.TrimSpace(reply.Content) == "" {
		return Message{}, Protocol("", errors.New("empty response from model"))
	}
	return reply, nil
}

func (l *Loop) emit(ctx context.Context, e *middleware.Event) error {
	if l.mws == nil {
		return nil
	}
	e.Context = l.eventContext
	out, err := l.mws.Dispatch(ctx, e)
	if err != nil {
		return err
	}
	if r := out.Stopped; r != nil {
		if strings.TrimSpace(r.Decision.Reason) == "" {
			return fmt.Errorf("%w (%s)", ErrCanceledByMiddleware, r.MiddlewareID)
		}
		return fmt.Errorf("%w (%s): %s", ErrCanceledByMiddleware, r.MiddlewareID, r.Decision.Reason)
	}
	return nil
}

func (l *Loop) fail(ctx context.Context, turn int, err error) {
	if l.mws == nil {
		return
	}
	// The conversation already failed; a middleware error here changes nothing.
	_, _ = l.mws.Dispatch(context.WithoutCancel(ctx), &middleware.Event{
		Name:    middleware.EventLoopFailed,
		Turn:    turn,
		Err:     err,
		Context: l.eventContext,
	})
}

func noticeText(n Notice) string {
	names := make([]string, 0, len(n.Discarded))
	for _, c := range n.Discarded {
		names = append(names, c.Name)
	}
	return fmt.Sprintf("Only the %s call was executed. The other requested calls (%s) were discarded: request one tool at a time.",
		n.Kept.Name, strings.Join(names, ", "))
}

func eventCalls(calls []ToolCall) []middleware.ToolCall {
	if len(calls) == 0 {
		return nil
	}
	out := make([]middleware.ToolCall, 0, len(calls))
	for _, c := range calls {
		out = append(out, middleware.ToolCall{ID: c.ID, Tool: c.Name, Args: c.Arguments})
	}
	return out
}
