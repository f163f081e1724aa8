// Package bootstrap turns a loaded configuration into a ready conversation
// loop: skills, model gateway, middleware chain and debug log.
package bootstrap

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"omniagent/internal/chat"
	"omniagent/internal/config"
	"omniagent/internal/llm"
	"omniagent/internal/middleware"
	"omniagent/internal/prompt"
	"omniagent/internal/skills"
	_ "omniagent/middlewares/autoload" // Auto-load all middlewares
)

// Agent is a configured loop plus the pieces the CLI reports on.
type Agent struct {
	Config   *config.Config
	Registry *skills.Registry
	Gateway  *llm.Gateway
	Loop     *chat.Loop

	closers []io.Closer
}

type Options struct {
	// Quiet silences the console trace.
	Quiet bool
	// Stderr receives warnings. Defaults to os.Stderr.
	Stderr io.Writer
	// OnState, when set, sees every state the loop enters.
	OnState func(turn int, s chat.State)
}

// NewRegistry registers the four arithmetic skills and the cat-fact skill.
func NewRegistry(cfg *config.Config) *skills.Registry {
	return skills.NewRegistry().
		MustRegister(skills.Calculator()...).
		MustRegister(skills.NewCatFact(cfg.CatFactURL))
}

func New(ctx context.Context, cfg *config.Config, opts Options) (*Agent, error) {
	stderr := opts.Stderr
	if stderr == nil {
		stderr = os.Stderr
	}

	registry := NewRegistry(cfg)

	gw, err := llm.NewGateway(ctx, llm.Options{
		Provider:    llm.Provider(cfg.Provider),
		Model:       cfg.Model,
		BaseURL:     cfg.BaseURL,
		APIKey:      cfg.APIKey,
		Temperature: cfg.Temperature,
		Tools:       registry.Definitions(),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to initialize gateway: %w", err)
	}

	a := &Agent{Config: cfg, Registry: registry, Gateway: gw}

	// Middleware logging
	var mwLog io.Writer
	if cfg.DebugLog != "" {
		f, err := openDebugLog(cfg.DebugLog)
		if err != nil {
			fmt.Fprintf(stderr, "warning: failed to open middleware log file (%s): %v\n", cfg.DebugLog, err)
		} else {
			mwLog = f
			a.closers = append(a.closers, f)
		}
	}
	chain := middleware.NewChainFromRegistry(cfg.DisabledMiddlewares, mwLog)

	loopOpts := []chat.LoopOption{
		chat.WithMiddlewareChain(chain),
		chat.WithSystemInstruction(prompt.SystemInstruction),
		chat.WithMaxTurns(cfg.MaxTurns),
		chat.WithTurnTimeout(time.Duration(cfg.TurnTimeout)),
		chat.WithNoticeInjection(cfg.InjectNotice),
		chat.WithEventContext(map[string]any{
			"provider": cfg.Provider,
			"model":    cfg.Model,
			"quiet":    opts.Quiet,
		}),
	}
	if opts.OnState != nil {
		loopOpts = append(loopOpts, chat.WithStateObserver(opts.OnState))
	}
	a.Loop = chat.NewLoop(gw, skills.NewDispatcher(registry, time.Duration(cfg.ToolTimeout)), loopOpts...)
	return a, nil
}

// Ask runs one conversation for query.
func (a *Agent) Ask(ctx context.Context, query string) (*chat.Result, error) {
	return a.Loop.Run(ctx, query)
}

// Banner describes the active model for the startup line.
func (a *Agent) Banner() string {
	return fmt.Sprintf("model=%s, provider=%s, url=%s", a.Gateway.Model(), a.Gateway.Provider(), a.Config.BaseURLOrDefault())
}

func (a *Agent) Close() error {
	var first error
	for _, c := range a.closers {
		if err := c.Close(); err != nil && first == nil {
			first = err
		}
	}
	a.closers = nil
	return first
}

func openDebugLog(path string) (*os.File, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}
	return os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
}
