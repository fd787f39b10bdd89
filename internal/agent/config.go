// Package agent loads and maintains the agent hierarchy configuration
// consumed by the orchestration runtime.
package agent

import (
	"os"
	"sort"
	"sync"

	"gopkg.in/yaml.v3"

	geoerrors "github.com/geoflow-cds/geoflow/internal/errors"
)

// Default model for subagents that do not declare one.
const (
	DefaultSubagentModel    = "o4-mini"
	DefaultSubagentProvider = "openai"
)

// ModelSpec identifies the LLM backing an agent.
type ModelSpec struct {
	Model    string `yaml:"model" json:"model"`
	Provider string `yaml:"model_provider" json:"model_provider"`
}

// MainAgent is a top-level orchestrating agent.
type MainAgent struct {
	Name         string   `yaml:"name" json:"name"`
	Instructions string   `yaml:"instructions" json:"instructions"`
	Subagents    []string `yaml:"subagents" json:"subagents"`
}

// Subagent is a specialized agent delegated to by a main agent.
type Subagent struct {
	Name        string     `yaml:"name" json:"name"`
	Description string     `yaml:"description" json:"description"`
	Prompt      string     `yaml:"prompt" json:"prompt"`
	Model       *ModelSpec `yaml:"model,omitempty" json:"model,omitempty"`
}

// File is the agents YAML document shape.
type File struct {
	MainAgents map[string]MainAgent `yaml:"main_agents" json:"main_agents"`
	Subagents  map[string]Subagent  `yaml:"subagents" json:"subagents"`
}

// Registry holds the loaded agent configuration and supports live
// reload. Safe for concurrent use.
type Registry struct {
	mu   sync.RWMutex
	path string
	file File
}

// LoadRegistry reads and parses the agents file at path.
func LoadRegistry(path string) (*Registry, error) {
	r := &Registry{path: path}
	if err := r.Reload(); err != nil {
		return nil, err
	}
	return r, nil
}

// Reload re-reads the agents file, replacing the in-memory view only on
// success.
func (r *Registry) Reload() error {
	data, err := os.ReadFile(r.path)
	if err != nil {
		if os.IsNotExist(err) {
			return geoerrors.Wrap(err, geoerrors.ErrCodeConfigNotFound,
				"agents config "+r.path+" not found")
		}
		return geoerrors.Wrap(err, geoerrors.ErrCodeConfigInvalid,
			"failed to read agents config")
	}

	var file File
	if err := yaml.Unmarshal(data, &file); err != nil {
		return geoerrors.Wrap(err, geoerrors.ErrCodeConfigInvalid,
			"failed to parse agents config")
	}

	r.mu.Lock()
	r.file = file
	r.mu.Unlock()
	return nil
}

// Path returns the agents file location.
func (r *Registry) Path() string {
	return r.path
}

// Snapshot returns a copy of the full configuration, as served by the
// read_config tool.
func (r *Registry) Snapshot() File {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := File{
		MainAgents: make(map[string]MainAgent, len(r.file.MainAgents)),
		Subagents:  make(map[string]Subagent, len(r.file.Subagents)),
	}
	for k, v := range r.file.MainAgents {
		out.MainAgents[k] = v
	}
	for k, v := range r.file.Subagents {
		out.Subagents[k] = v
	}
	return out
}

// MainAgent returns the named main agent. Unknown names fail with an
// error listing what is configured.
func (r *Registry) MainAgent(name string) (MainAgent, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	a, ok := r.file.MainAgents[name]
	if !ok {
		return MainAgent{}, geoerrors.AgentNotFound("main agent", name, sortedKeys(r.file.MainAgents))
	}
	return a, nil
}

// Subagent returns the named subagent with model defaults applied.
func (r *Registry) Subagent(name string) (Subagent, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	a, ok := r.file.Subagents[name]
	if !ok {
		return Subagent{}, geoerrors.AgentNotFound("subagent", name, sortedKeys(r.file.Subagents))
	}

	if a.Model == nil {
		a.Model = &ModelSpec{Model: DefaultSubagentModel, Provider: DefaultSubagentProvider}
	} else {
		m := *a.Model
		if m.Model == "" {
			m.Model = DefaultSubagentModel
		}
		if m.Provider == "" {
			m.Provider = DefaultSubagentProvider
		}
		a.Model = &m
	}
	return a, nil
}

// ListMainAgents returns configured main agent names, sorted.
func (r *Registry) ListMainAgents() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return sortedKeys(r.file.MainAgents)
}

// ListSubagents returns configured subagent names, sorted.
func (r *Registry) ListSubagents() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return sortedKeys(r.file.Subagents)
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
