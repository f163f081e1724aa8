package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"omniagent/internal/llm"
	"omniagent/internal/skills"
)

const (
	DefaultModel       = "llama3.1"
	DefaultTemperature = 0.0
	DefaultMaxTurns    = 20
	DefaultTurnTimeout = 2 * time.Minute
	DefaultToolTimeout = 15 * time.Second
	DefaultDebugLog    = "bin/omniagent.debug.jsonl"

	// DefaultPath is where `omniagent config save` writes when no path is given.
	DefaultPath = "~/.omniagent/config.json"
)

// Duration is a time.Duration that reads "90s" style strings from JSON.
type Duration time.Duration

func (d Duration) MarshalJSON() ([]byte, error) {
	return json.Marshal(time.Duration(d).String())
}

func (d *Duration) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return fmt.Errorf("duration must be a string like \"30s\": %w", err)
	}
	v, err := time.ParseDuration(s)
	if err != nil {
		return err
	}
	*d = Duration(v)
	return nil
}

// Config holds the settings of one process run. It is not modified after Load.
type Config struct {
	Provider    string   `json:"provider"`
	Model       string   `json:"model"`
	BaseURL     string   `json:"base_url,omitempty"`
	APIKey      string   `json:"api_key,omitempty"`
	Temperature float64  `json:"temperature"`
	MaxTurns    int      `json:"max_turns"`
	TurnTimeout Duration `json:"turn_timeout"`
	ToolTimeout Duration `json:"tool_timeout"`
	CatFactURL  string   `json:"cat_fact_url,omitempty"`
	DebugLog    string   `json:"debug_log"`

	// InjectNotice tells the model, through the history, that extra tool calls were dropped.
	InjectNotice bool `json:"inject_notice"`

	DisabledMiddlewares []string `json:"disabled_middlewares,omitempty"`
}

func Default() *Config {
	return &Config{
		Provider:    string(llm.ProviderOllama),
		Model:       DefaultModel,
		Temperature: DefaultTemperature,
		MaxTurns:    DefaultMaxTurns,
		TurnTimeout: Duration(DefaultTurnTimeout),
		ToolTimeout: Duration(DefaultToolTimeout),
		CatFactURL:  skills.DefaultCatFactURL,
		DebugLog:    DefaultDebugLog,
	}
}

// Load builds the configuration: defaults, then the optional JSON file at
// path, then environment variables (a .env file in the working directory is
// loaded first when present).
func Load(path string) (*Config, error) {
	// Load environment variables from .env if present
	_ = godotenv.Load()

	cfg := Default()
	if path != "" {
		var err error
		if cfg, err = LoadFromFile(path); err != nil {
			return nil, err
		}
	}
	if err := cfg.applyEnv(os.LookupEnv); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadFromFile reads a JSON config file over the defaults.
func LoadFromFile(path string) (*Config, error) {
	cfg := Default()
	if err := cfg.mergeFile(path); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) mergeFile(path string) error {
	path, err := expandHome(path)
	if err != nil {
		return err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config %s: %w", path, err)
	}
	// Keys present in the file overwrite defaults, missing keys keep them.
	if err := json.Unmarshal(data, c); err != nil {
		return fmt.Errorf("parse config %s: %w", path, err)
	}
	return nil
}

// SaveToFile writes c as indented JSON, creating parent directories. The file
// may hold an API key, so it is readable by the owner only.
func (c *Config) SaveToFile(path string) error {
	path, err := expandHome(path)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o600)
}

type lookupFunc func(key string) (string, bool)

func (c *Config) applyEnv(lookup lookupFunc) error {
	str := func(key string, dst *string) {
		if v, ok := lookup(key); ok && strings.TrimSpace(v) != "" {
			*dst = strings.TrimSpace(v)
		}
	}
	str("MODEL_NAME", &c.Model)
	str("OMNI_PROVIDER", &c.Provider)
	str("OMNI_BASE_URL", &c.BaseURL)
	str("OMNI_CATFACT_URL", &c.CatFactURL)

	// An empty OMNI_DEBUG_LOG disables the debug log.
	if v, ok := lookup("OMNI_DEBUG_LOG"); ok {
		c.DebugLog = strings.TrimSpace(v)
	}
	if v, ok := lookup("OMNI_DISABLED_MIDDLEWARES"); ok && strings.TrimSpace(v) != "" {
		c.DisabledMiddlewares = splitList(v)
	}

	if v, ok := lookup("TEMPERATURE"); ok && strings.TrimSpace(v) != "" {
		t, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
		if err != nil {
			return fmt.Errorf("invalid TEMPERATURE %q: %w", v, err)
		}
		c.Temperature = t
	}
	if v, ok := lookup("OMNI_MAX_TURNS"); ok && strings.TrimSpace(v) != "" {
		n, err := strconv.Atoi(strings.TrimSpace(v))
		if err != nil {
			return fmt.Errorf("invalid OMNI_MAX_TURNS %q: %w", v, err)
		}
		c.MaxTurns = n
	}
	if v, ok := lookup("OMNI_INJECT_NOTICE"); ok && strings.TrimSpace(v) != "" {
		b, err := strconv.ParseBool(strings.TrimSpace(v))
		if err != nil {
			return fmt.Errorf("invalid OMNI_INJECT_NOTICE %q: %w", v, err)
		}
		c.InjectNotice = b
	}
	for key, dst := range map[string]*Duration{
		"OMNI_TURN_TIMEOUT": &c.TurnTimeout,
		"OMNI_TOOL_TIMEOUT": &c.ToolTimeout,
	} {
		if v, ok := lookup(key); ok && strings.TrimSpace(v) != "" {
			d, err := time.ParseDuration(strings.TrimSpace(v))
			if err != nil {
				return fmt.Errorf("invalid %s %q: %w", key, v, err)
			}
			*dst = Duration(d)
		}
	}
	return nil
}

func (c *Config) Validate() error {
	var errs []error
	if !llm.Provider(c.Provider).Valid() {
		errs = append(errs, fmt.Errorf("unsupported provider %q", c.Provider))
	}
	if strings.TrimSpace(c.Model) == "" && c.Provider != string(llm.ProviderGemini) {
		errs = append(errs, errors.New("model name is empty"))
	}
	if c.Temperature < 0 || c.Temperature > 2 {
		errs = append(errs, fmt.Errorf("temperature %v out of range [0, 2]", c.Temperature))
	}
	if c.MaxTurns <= 0 {
		errs = append(errs, fmt.Errorf("max turns must be positive, got %d", c.MaxTurns))
	}
	if c.TurnTimeout <= 0 {
		errs = append(errs, errors.New("turn timeout must be positive"))
	}
	if c.ToolTimeout <= 0 {
		errs = append(errs, errors.New("tool timeout must be positive"))
	}
	return errors.Join(errs...)
}

// BaseURLOrDefault returns the URL shown to the user.
func (c *Config) BaseURLOrDefault() string {
	if strings.TrimSpace(c.BaseURL) != "" {
		return c.BaseURL
	}
	if c.Provider == string(llm.ProviderOllama) {
		return llm.DefaultOllamaURL
	}
	return "default"
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

func expandHome(path string) (string, error) {
	if !strings.HasPrefix(path, "~/") {
		return path, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, path[2:]), nil
}
