// Package persona resolves base persona templates and renders the dynamic
// variant that carries live relationship impressions.
package persona

import (
	"encoding/json"
	"fmt"
	"os"
	"sort"
	"sync"

	"github.com/pelletier/go-toml/v2"
)

// Template is a read-only base persona.
type Template struct {
	Name         string
	SystemPrompt string
	BeginDialogs json.RawMessage
	Tools        json.RawMessage
}

// Templates looks up a base persona by id.
type Templates interface {
	Template(baseID string) (Template, bool)
}

// Registry is an in-memory Templates.
type Registry struct {
	mu        sync.RWMutex
	templates map[string]Template
}

// NewRegistry returns a registry holding ts, keyed by name.
func NewRegistry(ts ...Template) *Registry {
	r := &Registry{templates: make(map[string]Template)}
	for _, t := range ts {
		r.Add(t)
	}
	return r
}

// Add registers or replaces t.
func (r *Registry) Add(t Template) {
	r.mu.Lock()
	r.templates[t.Name] = t
	r.mu.Unlock()
}

// Template implements Templates.
func (r *Registry) Template(baseID string) (Template, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	t, ok := r.templates[baseID]
	return t, ok
}

// Names lists registered template names in order.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.templates))
	for n := range r.templates {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

type templateFile struct {
	Persona []struct {
		Name         string   `toml:"name"`
		SystemPrompt string   `toml:"system_prompt"`
		BeginDialogs []string `toml:"begin_dialogs"`
		Tools        []string `toml:"tools"`
	} `toml:"persona"`
}

// LoadFile reads [[persona]] tables from a TOML file.
func LoadFile(path string) (*Registry, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read templates: %w", err)
	}
	return Parse(data)
}

// Parse reads [[persona]] tables from TOML bytes.
func Parse(data []byte) (*Registry, error) {
	var f templateFile
	if err := toml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parse templates: %w", err)
	}

	r := NewRegistry()
	for i, p := range f.Persona {
		if p.Name == "" {
			return nil, fmt.Errorf("persona %d: name is required", i)
		}
		dialogs, err := rawList(p.BeginDialogs)
		if err != nil {
			return nil, fmt.Errorf("persona %s begin_dialogs: %w", p.Name, err)
		}
		tools, err := rawList(p.Tools)
		if err != nil {
			return nil, fmt.Errorf("persona %s tools: %w", p.Name, err)
		}
		r.Add(Template{
			Name:         p.Name,
			SystemPrompt: p.SystemPrompt,
			BeginDialogs: dialogs,
			Tools:        tools,
		})
	}
	return r, nil
}

func rawList(items []string) (json.RawMessage, error) {
	if items == nil {
		return nil, nil
	}
	return json.Marshal(items)
}
