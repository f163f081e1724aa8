package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"

	"omniagent/internal/bootstrap"
	"omniagent/internal/chat"
	"omniagent/internal/config"
	"omniagent/internal/picker"
	"omniagent/internal/prompt"
)

type rootFlags struct {
	configPath  string
	provider    string
	model       string
	baseURL     string
	temperature float64
	maxTurns    int
	plain       bool
	quiet       bool
	verbose     bool
}

func newRootCmd() *cobra.Command {
	f := &rootFlags{}

	root := &cobra.Command{
		Use:           "omniagent",
		Short:         "Math and cat-fact assistant driven by an LLM with tools",
		Long:          "omniagent lets a language model answer a query by calling arithmetic and cat-fact tools, one call at a time.",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := f.load(cmd)
			if err != nil {
				return err
			}
			return runMenu(cmd.Context(), cmd, cfg, f)
		},
	}

	pf := root.PersistentFlags()
	pf.StringVar(&f.configPath, "config", "", "JSON config file (e.g. ~/.omniagent/config.json)")
	pf.StringVar(&f.provider, "provider", "", "model provider: ollama, openai, anthropic, gemini")
	pf.StringVar(&f.model, "model", "", "model name (env MODEL_NAME)")
	pf.StringVar(&f.baseURL, "base-url", "", "provider base URL")
	pf.Float64Var(&f.temperature, "temperature", 0, "sampling temperature (env TEMPERATURE)")
	pf.IntVar(&f.maxTurns, "max-turns", 0, "maximum model turns per query")
	pf.BoolVar(&f.quiet, "quiet", false, "print only the final answer")
	pf.BoolVar(&f.verbose, "verbose", false, "print every loop state change on stderr")
	root.Flags().BoolVar(&f.plain, "plain", false, "use the numbered text menu instead of the interactive one")

	root.AddCommand(newAskCmd(f), newToolsCmd(f), newExamplesCmd(), newConfigCmd(f))
	return root
}

func newAskCmd(f *rootFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "ask <query>",
		Short: "Answer a single query without the menu",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := f.load(cmd)
			if err != nil {
				return err
			}
			return ask(cmd.Context(), cmd.OutOrStdout(), cmd.ErrOrStderr(), cfg, f, strings.Join(args, " "))
		},
	}
}

func newToolsCmd(f *rootFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "tools",
		Short: "List the tools offered to the model",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := f.load(cmd)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			for _, s := range bootstrap.NewRegistry(cfg).List() {
				fmt.Fprintf(out, "%-20s %s\n", s.Name(), s.Description())
			}
			return nil
		},
	}
}

func newExamplesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "examples",
		Short: "List the example queries of the menu",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprint(cmd.OutOrStdout(), prompt.Menu())
		},
	}
}

func newConfigCmd(f *rootFlags) *cobra.Command {
	cfgCmd := &cobra.Command{
		Use:   "config",
		Short: "Inspect or persist the effective configuration",
	}
	cfgCmd.AddCommand(&cobra.Command{
		Use:   "save [path]",
		Short: "Write the effective configuration (file, env and flags) as JSON",
		Long:  "Write the effective configuration as JSON to path (default " + config.DefaultPath + "). Pass the file back with --config.",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := f.load(cmd)
			if err != nil {
				return err
			}
			path := config.DefaultPath
			if len(args) == 1 {
				path = args[0]
			}
			if err := cfg.SaveToFile(path); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "configuration saved to %s\n", path)
			return nil
		},
	})
	return cfgCmd
}

// load reads the configuration and applies the flags the user set.
func (f *rootFlags) load(cmd *cobra.Command) (*config.Config, error) {
	cfg, err := config.Load(f.configPath)
	if err != nil {
		return nil, err
	}
	flags := cmd.Flags()
	if flags.Changed("provider") {
		cfg.Provider = f.provider
	}
	if flags.Changed("model") {
		cfg.Model = f.model
	}
	if flags.Changed("base-url") {
		cfg.BaseURL = f.baseURL
	}
	if flags.Changed("temperature") {
		cfg.Temperature = f.temperature
	}
	if flags.Changed("max-turns") {
		cfg.MaxTurns = f.maxTurns
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func runMenu(ctx context.Context, cmd *cobra.Command, cfg *config.Config, f *rootFlags) error {
	var (
		query string
		err   error
	)
	if f.plain || !isatty.IsTerminal(os.Stdin.Fd()) {
		query, err = picker.NewPlain(cmd.InOrStdin(), cmd.OutOrStdout()).Choose()
	} else {
		query, err = picker.Run(fmt.Sprintf("%s / %s", cfg.Provider, cfg.Model))
	}
	if errors.Is(err, picker.ErrQuit) {
		return nil
	}
	if err != nil {
		return err
	}
	return ask(ctx, cmd.OutOrStdout(), cmd.ErrOrStderr(), cfg, f, query)
}

func ask(ctx context.Context, out, errOut io.Writer, cfg *config.Config, f *rootFlags, query string) error {
	quiet := f.quiet
	opts := bootstrap.Options{Quiet: quiet, Stderr: errOut}
	if f.verbose {
		opts.OnState = func(turn int, s chat.State) {
			fmt.Fprintf(errOut, "[STATE] turn %d: %s\n", turn, s)
		}
	}
	agent, err := bootstrap.New(ctx, cfg, opts)
	if err != nil {
		return err
	}
	defer agent.Close()

	if !quiet {
		fmt.Fprintln(out, "\n>- Starting the OmniAgent with LLM and Tools")
		fmt.Fprintln(out, agent.Banner())
		fmt.Fprintf(out, "\n>- User Query: %s\n\n", query)
		fmt.Fprintln(out, ">> (The answer may take a few moments to appear)")
		fmt.Fprintln(out)
	}

	res, err := agent.Ask(ctx, query)
	if err != nil {
		if res != nil {
			return fmt.Errorf("after %d turn(s): %w", res.Turns, err)
		}
		return err
	}
	if quiet {
		fmt.Fprintln(out, res.Answer)
	}
	return nil
}
