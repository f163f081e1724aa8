package middleware

import (
	"context"
	"io"
	"slices"
	"sync"
)

const skippedReason = "skipped (ShouldLoad=false)"

// Chain delivers loop events to middlewares, highest Priority first. Equal
// priorities keep their registration order.
type Chain struct {
	mu  sync.RWMutex
	mws []Middleware

	debugMu sync.Mutex
	debugW  io.Writer
}

// DecisionResult is what one middleware answered for one event.
type DecisionResult struct {
	MiddlewareID string
	Priority     int
	Skipped      bool
	Decision     Decision
}

// Outcome collects the answers to one event. Stopped points at the decision
// that canceled the conversation; middlewares after it never saw the event.
type Outcome struct {
	Results []DecisionResult
	Stopped *DecisionResult
}

func (o Outcome) Canceled() bool { return o.Stopped != nil }

func NewChain(mws ...Middleware) *Chain {
	c := &Chain{}
	for _, mw := range mws {
		c.Use(mw)
	}
	return c
}

// SetDebugWriter enables the JSONL debug log; nil disables it.
func (c *Chain) SetDebugWriter(w io.Writer) {
	c.debugMu.Lock()
	defer c.debugMu.Unlock()
	c.debugW = w
}

func (c *Chain) Use(mw Middleware) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.mws = append(c.mws, mw)
	slices.SortStableFunc(c.mws, func(a, b Middleware) int {
		return b.Priority() - a.Priority()
	})
}

func (c *Chain) List() []Middleware {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return slices.Clone(c.mws)
}

// Dispatch hands e to every middleware in order. A middleware error aborts
// the dispatch and is returned as is; a Cancel decision ends it early and is
// reported in Outcome.Stopped.
func (c *Chain) Dispatch(ctx context.Context, e *Event) (Outcome, error) {
	var out Outcome
	for _, mw := range c.List() {
		r := DecisionResult{MiddlewareID: mw.ID(), Priority: mw.Priority()}

		if cond, ok := mw.(ConditionalMiddleware); ok && !cond.ShouldLoad(ctx, e) {
			r.Skipped = true
			r.Decision.Reason = skippedReason
			c.debugLog(e, r)
			out.Results = append(out.Results, r)
			continue
		}

		dec, err := mw.OnEvent(ctx, e)
		if err != nil {
			r.Decision = Decision{Cancel: true, Reason: err.Error()}
			c.debugLog(e, r)
			return Outcome{}, err
		}
		r.Decision = dec
		c.debugLog(e, r)

		out.Results = append(out.Results, r)
		if dec.Cancel {
			out.Stopped = &out.Results[len(out.Results)-1]
			break
		}
	}
	return out, nil
}
