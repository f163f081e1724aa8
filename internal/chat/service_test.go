package chat_test

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"omniagent/internal/chat"
	"omniagent/internal/middleware"
	"omniagent/internal/skills"
)

// scriptedGateway plays the model: it inspects the history and answers.
type scriptedGateway struct {
	mu    sync.Mutex
	turns int
	reply func(turn int, h chat.History) (chat.Message, error)
}

func (g *scriptedGateway) Converse(_ context.Context, h chat.History) (chat.Message, error) {
	g.mu.Lock()
	g.turns++
	turn := g.turns
	g.mu.Unlock()
	return g.reply(turn, h)
}

type countingDispatcher struct {
	inner chat.Dispatcher
	calls []chat.ToolCall
}

func (d *countingDispatcher) Dispatch(ctx context.Context, call chat.ToolCall) chat.Message {
	d.calls = append(d.calls, call)
	return d.inner.Dispatch(ctx, call)
}

type recorder struct {
	mu     sync.Mutex
	events []*middleware.Event
	cancel middleware.EventName
}

func (r *recorder) ID() string    { return "recorder" }
func (r *recorder) Priority() int { return 1 }
func (r *recorder) OnEvent(_ context.Context, e *middleware.Event) (middleware.Decision, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, e)
	if r.cancel != "" && e.Name == r.cancel {
		return middleware.Decision{Cancel: true, Reason: "stop requested"}, nil
	}
	return middleware.Decision{}, nil
}

func (r *recorder) count(name middleware.EventName) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, e := range r.events {
		if e.Name == name {
			n++
		}
	}
	return n
}

func call(id, name string, a, b float64) chat.ToolCall {
	return chat.ToolCall{ID: id, Name: name, Arguments: map[string]any{"a": a, "b": b}}
}

func newDispatcher(extra ...skills.Skill) *countingDispatcher {
	r := skills.NewRegistry().MustRegister(skills.Calculator()...)
	r.MustRegister(extra...)
	return &countingDispatcher{inner: skills.NewDispatcher(r, time.Second)}
}

func toolResults(h chat.History) []chat.Message {
	var out []chat.Message
	for _, m := range h {
		if m.Role == chat.RoleTool {
			out = append(out, m)
		}
	}
	return out
}

func TestScenarioSequentialArithmetic(t *testing.T) {
	gw := &scriptedGateway{reply: func(turn int, h chat.History) (chat.Message, error) {
		last, _ := h.Last()
		switch turn {
		case 1:
			// the model tries to run both steps at once
			return chat.AssistantCalls(call("a1", "add", 1, 2), call("a2", "sub", 3, 3)), nil
		case 2:
			require.Equal(t, "3", last.Content)
			return chat.AssistantCalls(call("s1", "sub", 3, 3)), nil
		default:
			return chat.AssistantText("The answer is: " + last.Content), nil
		}
	}}
	d := newDispatcher()
	rec := &recorder{}
	loop := chat.NewLoop(gw, d,
		chat.WithSystemInstruction("use tools"),
		chat.WithMiddlewareChain(middleware.NewChain(rec)),
	)

	res, err := loop.Run(context.Background(), "1 + 2 - 3")
	require.NoError(t, err)
	assert.Equal(t, chat.StateDone, res.State)
	assert.Equal(t, "The answer is: 0", res.Answer)
	assert.Equal(t, 3, res.Turns)

	require.Len(t, d.calls, 2)
	assert.Equal(t, "add", d.calls[0].Name)
	assert.Equal(t, "sub", d.calls[1].Name)

	results := toolResults(res.History)
	require.Len(t, results, 2)
	assert.Equal(t, "a1", results[0].ToolCallID)
	assert.Equal(t, "3", results[0].Content)
	assert.Equal(t, "s1", results[1].ToolCallID)
	assert.Equal(t, "0", results[1].Content)

	// the truncated request is what the history keeps
	assert.Len(t, res.History[2].ToolCalls, 1)
	assert.Equal(t, chat.RoleSystem, res.History[0].Role)
	assert.Equal(t, "1 + 2 - 3", res.History[1].Content)

	assert.Equal(t, 1, rec.count(middleware.EventSequentialEnforced))
	assert.Equal(t, 2, rec.count(middleware.EventToolResult))
	assert.Equal(t, 1, rec.count(middleware.EventFinalAnswer))
	assert.Equal(t, 0, rec.count(middleware.EventLoopFailed))
}

func TestScenarioCatFact(t *testing.T) {
	const fact = "Cats have five toes on their front paws, but only four on the back."
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		fmt.Fprintf(w, `{"fact":%q,"length":%d}`, fact, len(fact))
	}))
	defer srv.Close()

	gw := &scriptedGateway{reply: func(turn int, h chat.History) (chat.Message, error) {
		if turn == 1 {
			return chat.AssistantCalls(chat.ToolCall{ID: "cf", Name: "get_random_cat_fact"}), nil
		}
		last, _ := h.Last()
		return chat.AssistantText(last.Content), nil
	}}
	d := newDispatcher(skills.NewCatFact(srv.URL))

	res, err := chat.NewLoop(gw, d).Run(context.Background(), "Tell me a random fact about cats.")
	require.NoError(t, err)
	require.Len(t, d.calls, 1)
	assert.Equal(t, "get_random_cat_fact", d.calls[0].Name)
	assert.Contains(t, res.Answer, fact)
}

func TestScenarioDivisionByZero(t *testing.T) {
	gw := &scriptedGateway{reply: func(turn int, h chat.History) (chat.Message, error) {
		last, _ := h.Last()
		switch turn {
		case 1:
			return chat.AssistantCalls(call("m1", "mul", 3, 2)), nil
		case 2:
			return chat.AssistantCalls(call("d1", "divide", 6, 0)), nil
		default:
			if last.IsError {
				return chat.AssistantText("The expression is undefined: " + last.Content), nil
			}
			return chat.AssistantText("The answer is: " + last.Content), nil
		}
	}}
	d := newDispatcher()

	res, err := chat.NewLoop(gw, d).Run(context.Background(), "5 + 3 * 2 / 0")
	require.NoError(t, err)
	assert.Equal(t, chat.StateDone, res.State)

	results := toolResults(res.History)
	require.Len(t, results, 2)
	assert.False(t, results[0].IsError)
	assert.True(t, results[1].IsError)
	assert.Equal(t, "d1", results[1].ToolCallID)
	assert.Contains(t, results[1].Content, "division by zero")
	assert.Contains(t, res.Answer, "undefined")
	assert.NotContains(t, res.Answer, "Inf")
	assert.NotContains(t, res.Answer, "NaN")
}

func TestGatewayFailureStopsBeforeDispatch(t *testing.T) {
	gw := &scriptedGateway{reply: func(int, chat.History) (chat.Message, error) {
		return chat.Message{}, chat.Unavailable("ollama", errors.New("connection refused"))
	}}
	d := newDispatcher()
	rec := &recorder{}

	res, err := chat.NewLoop(gw, d, chat.WithMiddlewareChain(middleware.NewChain(rec))).
		Run(context.Background(), "1 + 1")
	require.ErrorIs(t, err, chat.ErrGatewayUnavailable)
	require.NotNil(t, res)
	assert.Equal(t, chat.StateFailed, res.State)
	assert.Empty(t, d.calls)
	assert.Len(t, res.History, 2)
	assert.Equal(t, 1, rec.count(middleware.EventLoopFailed))
	assert.Equal(t, 1, gw.turns)
}

func TestUnknownToolIsFedBackToModel(t *testing.T) {
	gw := &scriptedGateway{reply: func(turn int, h chat.History) (chat.Message, error) {
		if turn == 1 {
			return chat.AssistantCalls(chat.ToolCall{ID: "p1", Name: "pow"}), nil
		}
		last, _ := h.Last()
		require.True(t, last.IsError)
		return chat.AssistantText("I cannot raise powers."), nil
	}}

	res, err := chat.NewLoop(gw, newDispatcher()).Run(context.Background(), "2 ^ 8")
	require.NoError(t, err)
	results := toolResults(res.History)
	require.Len(t, results, 1)
	assert.Equal(t, skills.NotFoundContent, results[0].Content)
	assert.Equal(t, "p1", results[0].ToolCallID)
}

func TestMaxTurnsGuard(t *testing.T) {
	gw := &scriptedGateway{reply: func(turn int, _ chat.History) (chat.Message, error) {
		return chat.AssistantCalls(call(fmt.Sprintf("c%d", turn), "add", 0, 0)), nil
	}}
	d := newDispatcher()

	res, err := chat.NewLoop(gw, d, chat.WithMaxTurns(3)).Run(context.Background(), "loop forever")
	require.ErrorIs(t, err, chat.ErrMaxTurns)
	assert.Equal(t, chat.StateFailed, res.State)
	assert.Equal(t, 3, res.Turns)
	assert.Len(t, d.calls, 3)
}

func TestTurnTimeoutIsUnavailable(t *testing.T) {
	slow := gatewayFunc(func(ctx context.Context, _ chat.History) (chat.Message, error) {
		<-ctx.Done()
		return chat.Message{}, ctx.Err()
	})

	_, err := chat.NewLoop(slow, newDispatcher(), chat.WithTurnTimeout(20*time.Millisecond)).
		Run(context.Background(), "1 + 1")
	require.ErrorIs(t, err, chat.ErrGatewayUnavailable)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestCancellationBetweenIterations(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	gw := &scriptedGateway{reply: func(int, chat.History) (chat.Message, error) {
		return chat.AssistantCalls(call("c1", "add", 1, 1)), nil
	}}
	d := &cancelingDispatcher{inner: newDispatcher(), cancel: cancel}

	res, err := chat.NewLoop(gw, d).Run(ctx, "1 + 1")
	require.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 1, gw.turns)

	// the history stays consistent: the last call has its result
	last, ok := res.History.Last()
	require.True(t, ok)
	assert.Equal(t, chat.RoleTool, last.Role)
	assert.Equal(t, "2", last.Content)
}

func TestCanceledContextBeforeRun(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	gw := &scriptedGateway{reply: func(int, chat.History) (chat.Message, error) {
		t.Fatal("gateway must not be called")
		return chat.Message{}, nil
	}}
	_, err := chat.NewLoop(gw, newDispatcher()).Run(ctx, "1 + 1")
	require.ErrorIs(t, err, context.Canceled)
}

func TestProtocolViolations(t *testing.T) {
	replies := map[string]chat.Message{
		"wrong role":   chat.UserMessage("hi"),
		"empty answer": chat.AssistantText("  "),
	}
	for name, reply := range replies {
		t.Run(name, func(t *testing.T) {
			gw := &scriptedGateway{reply: func(int, chat.History) (chat.Message, error) { return reply, nil }}
			_, err := chat.NewLoop(gw, newDispatcher()).Run(context.Background(), "q")
			require.ErrorIs(t, err, chat.ErrGatewayProtocol)
		})
	}
}

func TestPlainGatewayErrorIsUnavailable(t *testing.T) {
	gw := &scriptedGateway{reply: func(int, chat.History) (chat.Message, error) {
		return chat.Message{}, errors.New("socket closed")
	}}
	_, err := chat.NewLoop(gw, newDispatcher()).Run(context.Background(), "q")
	require.ErrorIs(t, err, chat.ErrGatewayUnavailable)
}

func TestMiddlewareCancel(t *testing.T) {
	gw := &scriptedGateway{reply: func(int, chat.History) (chat.Message, error) {
		return chat.AssistantCalls(call("c1", "add", 1, 1)), nil
	}}
	d := newDispatcher()
	rec := &recorder{cancel: middleware.EventAfterModelTurn}

	_, err := chat.NewLoop(gw, d, chat.WithMiddlewareChain(middleware.NewChain(rec))).
		Run(context.Background(), "q")
	require.ErrorIs(t, err, chat.ErrCanceledByMiddleware)
	assert.Contains(t, err.Error(), "stop requested")
	assert.Empty(t, d.calls)
}

func TestNoticeInjection(t *testing.T) {
	gw := &scriptedGateway{reply: func(turn int, _ chat.History) (chat.Message, error) {
		if turn == 1 {
			return chat.AssistantCalls(call("a", "add", 1, 2), call("b", "mul", 3, 3)), nil
		}
		return chat.AssistantText("done"), nil
	}}

	res, err := chat.NewLoop(gw, newDispatcher(), chat.WithNoticeInjection(true)).Run(context.Background(), "q")
	require.NoError(t, err)
	// system, user, assistant(call), tool, system notice, assistant(answer)
	require.Len(t, res.History, 6)
	assert.Equal(t, chat.RoleSystem, res.History[4].Role)
	assert.True(t, strings.Contains(res.History[4].Content, "mul"))
}

func TestStepIsPure(t *testing.T) {
	gw := &scriptedGateway{reply: func(int, chat.History) (chat.Message, error) {
		return chat.AssistantCalls(call("c1", "add", 2, 2), call("c2", "add", 9, 9)), nil
	}}
	loop := chat.NewLoop(gw, newDispatcher())
	h := chat.NewHistory("sys", "2 + 2")

	step, err := loop.Step(context.Background(), 1, h)
	require.NoError(t, err)
	assert.Len(t, h, 2)
	assert.Equal(t, chat.StateAwaitingModel, step.State)
	require.NotNil(t, step.Call)
	assert.Equal(t, "c1", step.Call.ID)
	require.NotNil(t, step.Result)
	assert.Equal(t, "4", step.Result.Content)
	assert.False(t, step.Notice.Empty())
	assert.Len(t, step.History, 4)
}

func TestEmptyQuery(t *testing.T) {
	_, err := chat.NewLoop(&scriptedGateway{}, newDispatcher()).Run(context.Background(), "   ")
	assert.Error(t, err)
}

type gatewayFunc func(ctx context.Context, h chat.History) (chat.Message, error)

func (f gatewayFunc) Converse(ctx context.Context, h chat.History) (chat.Message, error) {
	return f(ctx, h)
}

type cancelingDispatcher struct {
	inner  chat.Dispatcher
	cancel context.CancelFunc
}

func (d *cancelingDispatcher) Dispatch(ctx context.Context, call chat.ToolCall) chat.Message {
	msg := d.inner.Dispatch(ctx, call)
	d.cancel()
	return msg
}

type stateLog struct {
	entries []string
}

func (s *stateLog) observe(turn int, st chat.State) {
	s.entries = append(s.entries, fmt.Sprintf("%d:%s", turn, st))
}

func TestStateObserverSeesEveryTransition(t *testing.T) {
	gw := &scriptedGateway{reply: func(turn int, h chat.History) (chat.Message, error) {
		if turn == 1 {
			return chat.AssistantCalls(call("a1", "add", 2, 3)), nil
		}
		last, _ := h.Last()
		return chat.AssistantText("The answer is: " + last.Content), nil
	}}
	log := &stateLog{}

	res, err := chat.NewLoop(gw, newDispatcher(), chat.WithStateObserver(log.observe)).
		Run(context.Background(), "2 + 3")
	require.NoError(t, err)
	assert.Equal(t, "The answer is: 5", res.Answer)
	assert.Equal(t, []string{
		"1:awaiting_model", "1:enforcing_policy", "1:dispatching_tool",
		"2:awaiting_model", "2:enforcing_policy", "2:done",
	}, log.entries)
}

func TestStateObserverReportsFailure(t *testing.T) {
	gw := &scriptedGateway{reply: func(int, chat.History) (chat.Message, error) {
		return chat.Message{}, chat.Unavailable("ollama", errors.New("connection refused"))
	}}
	log := &stateLog{}

	_, err := chat.NewLoop(gw, newDispatcher(), chat.WithStateObserver(log.observe)).
		Run(context.Background(), "1 + 1")
	require.Error(t, err)
	assert.Equal(t, []string{"1:awaiting_model", "1:failed"}, log.entries)
}

func TestStateObserverReportsMaxTurns(t *testing.T) {
	gw := &scriptedGateway{reply: func(turn int, _ chat.History) (chat.Message, error) {
		return chat.AssistantCalls(call(fmt.Sprintf("c%d", turn), "add", 0, 0)), nil
	}}
	log := &stateLog{}

	_, err := chat.NewLoop(gw, newDispatcher(), chat.WithMaxTurns(1), chat.WithStateObserver(log.observe)).
		Run(context.Background(), "loop")
	require.ErrorIs(t, err, chat.ErrMaxTurns)
	assert.Equal(t, "1:failed", log.entries[len(log.entries)-1])
}

func TestNoticePrecedesTurnSummary(t *testing.T) {
	gw := &scriptedGateway{reply: func(turn int, _ chat.History) (chat.Message, error) {
		if turn == 1 {
			return chat.AssistantCalls(call("a", "add", 1, 2), call("b", "sub", 3, 3)), nil
		}
		return chat.AssistantText("done"), nil
	}}
	rec := &recorder{}

	_, err := chat.NewLoop(gw, newDispatcher(), chat.WithMiddlewareChain(middleware.NewChain(rec))).
		Run(context.Background(), "1 + 2 - 3")
	require.NoError(t, err)

	var names []middleware.EventName
	for _, e := range rec.events {
		if e.Turn == 1 {
			names = append(names, e.Name)
		}
	}
	assert.Equal(t, []middleware.EventName{
		middleware.EventBeforeModelTurn,
		middleware.EventSequentialEnforced,
		middleware.EventAfterModelTurn,
		middleware.EventToolResult,
	}, names)
}
