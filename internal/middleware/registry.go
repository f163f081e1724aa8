package middleware

import (
	"io"
	"strings"
)

// registry holds globally-registered middleware plugins.
var registry []Middleware

// Register should be called by middleware packages (typically in init) to
// register themselves with the core chain builder.
func Register(m Middleware) {
	registry = append(registry, m)
}

// Registered returns a shallow copy of all registered middleware.
func Registered() []Middleware {
	out := make([]Middleware, len(registry))
	copy(out, registry)
	return out
}

// NewChainFromRegistry builds a chain from all registered middleware except
// the disabled ids. If a debug writer is provided, it is attached for JSONL
// debug logs.
func NewChainFromRegistry(disabled []string, debugWriter io.Writer) *Chain {
	return NewChainFrom(Registered(), strings.Join(disabled, ","), debugWriter)
}

// NewChainFrom builds a chain from mws minus the comma-separated ids in
// disabled. It returns nil when nothing is left.
func NewChainFrom(mws []Middleware, disabled string, debugWriter io.Writer) *Chain {
	if disabled != "" {
		disabledSet := make(map[string]struct{})
		for _, id := range strings.Split(disabled, ",") {
			disabledSet[strings.TrimSpace(id)] = struct{}{}
		}

		filtered := make([]Middleware, 0, len(mws))
		for _, mw := range mws {
			if _, ok := disabledSet[mw.ID()]; !ok {
				filtered = append(filtered, mw)
			}
		}
		mws = filtered
	}

	if len(mws) == 0 {
		return nil
	}
	c := NewChain(mws...)
	if debugWriter != nil {
		c.SetDebugWriter(debugWriter)
	}
	return c
}
