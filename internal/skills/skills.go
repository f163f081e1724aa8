package skills

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/tmc/langchaingo/llms"
)

// Skill defines a tool that the LLM can use.
type Skill interface {
	// Name returns the unique name of the skill (e.g. "add", "get_random_cat_fact").
	Name() string
	// Description returns a human-readable description for the LLM.
	Description() string
	// Parameters returns the JSON schema for the arguments as a map.
	Parameters() map[string]any
	// Execute runs the skill with the given arguments.
	Execute(ctx context.Context, args map[string]any) (string, error)
}

var (
	ErrDuplicateSkill = errors.New("skill already registered")
	ErrUnknownSkill   = errors.New("skill not found")
)

// Registry maps skill names to skills. Skills are registered once at startup
// and never removed; lookups are safe for concurrent use.
type Registry struct {
	mu     sync.RWMutex
	skills map[string]Skill
	order  []string
}

func NewRegistry() *Registry {
	return &Registry{
		skills: make(map[string]Skill),
	}
}

// Register adds s. It fails with ErrDuplicateSkill when the name is taken.
func (r *Registry) Register(s Skill) error {
	if s == nil {
		return errors.New("skill is nil")
	}
	name := s.Name()
	if name == "" {
		return errors.New("skill name is empty")
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.skills[name]; exists {
		return fmt.Errorf("%w: %s", ErrDuplicateSkill, name)
	}
	r.skills[name] = s
	r.order = append(r.order, name)
	return nil
}

// MustRegister is Register for startup wiring, where a duplicate is a
// programming error.
func (r *Registry) MustRegister(skills ...Skill) *Registry {
	for _, s := range skills {
		if err := r.Register(s); err != nil {
			panic(err)
		}
	}
	return r
}

// Lookup returns the skill registered under name or ErrUnknownSkill.
func (r *Registry) Lookup(name string) (Skill, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.skills[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownSkill, name)
	}
	return s, nil
}

// List returns the skills in registration order.
func (r *Registry) List() []Skill {
	r.mu.RLock()
	defer r.mu.RUnlock()
	list := make([]Skill, 0, len(r.order))
	for _, name := range r.order {
		list = append(list, r.skills[name])
	}
	return list
}

// Definitions returns the tool schema declared to the model.
func (r *Registry) Definitions() []llms.Tool {
	list := r.List()
	tools := make([]llms.Tool, 0, len(list))
	for _, s := range list {
		tools = append(tools, llms.Tool{
			Type: "function",
			Function: &llms.FunctionDefinition{
				Name:        s.Name(),
				Description: s.Description(),
				Parameters:  s.Parameters(),
			},
		})
	}
	return tools
}
