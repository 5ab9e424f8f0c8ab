// Package tools holds the static catalog of tools the assistant may call.
// The registry is assembled once at startup from declarative groups and is
// read-only afterwards, so it is safe for concurrent use without locking.
package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"github.com/xeipuuv/gojsonschema"

	"github.com/hrm8/assistant/internal/actor"
	"github.com/hrm8/assistant/internal/apperr"
	"github.com/hrm8/assistant/internal/llm"
)

// RunFunc executes a tool for an actor. It may fail; the executor is the only
// place failures are converted into results.
type RunFunc func(ctx context.Context, args map[string]any, a *actor.Actor) (any, error)

// Definition is an immutable catalog entry.
type Definition struct {
	Name                 string
	Description          string
	Category             string
	Parameters           json.RawMessage
	AllowedLevels        []actor.AccessLevel
	RequiresRegionScope  bool
	RequiresCompanyScope bool
	Sensitivity          Sensitivity
	Run                  RunFunc
}

// Allows reports whether level is one of the definition's allowed levels.
func (d Definition) Allows(level actor.AccessLevel) bool {
	for _, l := range d.AllowedLevels {
		if l == level {
			return true
		}
	}
	return false
}

// Registry is the assembled tool catalog.
type Registry struct {
	defs    map[string]Definition
	schemas map[string]*gojsonschema.Schema
	names   []string
}

// NewRegistry concatenates the given groups. It fails on empty or duplicate
// names, a missing run function, and parameter schemas that do not compile.
func NewRegistry(groups ...[]Definition) (*Registry, error) {
	r := &Registry{
		defs:    make(map[string]Definition),
		schemas: make(map[string]*gojsonschema.Schema),
	}
	for _, group := range groups {
		for _, def := range group {
			if strings.TrimSpace(def.Name) == "" {
				return nil, fmt.Errorf("tool with empty name")
			}
			if _, dup := r.defs[def.Name]; dup {
				return nil, fmt.Errorf("duplicate tool registration: %s", def.Name)
			}
			if def.Run == nil {
				return nil, fmt.Errorf("tool %s has no run function", def.Name)
			}
			if len(def.Parameters) == 0 {
				def.Parameters = json.RawMessage(`{"type":"object","properties":{}}`)
			}
			schema, err := gojsonschema.NewSchema(gojsonschema.NewBytesLoader(def.Parameters))
			if err != nil {
				return nil, fmt.Errorf("tool %s: compiling parameter schema: %w", def.Name, err)
			}
			r.defs[def.Name] = def
			r.schemas[def.Name] = schema
			r.names = append(r.names, def.Name)
		}
	}
	sort.Strings(r.names)
	return r, nil
}

// Get looks a tool up by name.
func (r *Registry) Get(name string) (Definition, bool) {
	d, ok := r.defs[name]
	return d, ok
}

// Names returns every registered name, sorted.
func (r *Registry) Names() []string {
	out := make([]string, len(r.names))
	copy(out, r.names)
	return out
}

// Allowed returns the tools whose allowed levels contain the actor's derived
// access level, sorted by name.
func (r *Registry) Allowed(a *actor.Actor) []Definition {
	level := actor.DeriveAccessLevel(a)
	var out []Definition
	for _, name := range r.names {
		if d := r.defs[name]; d.Allows(level) {
			out = append(out, d)
		}
	}
	return out
}

// ValidateArgs checks args against the tool's parameter schema.
func (r *Registry) ValidateArgs(def Definition, args map[string]any) error {
	name := def.Name
	schema, ok := r.schemas[name]
	if !ok {
		return apperr.Validationf("unknown tool %s", name)
	}
	if args == nil {
		args = map[string]any{}
	}
	result, err := schema.Validate(gojsonschema.NewGoLoader(args))
	if err != nil {
		return apperr.Validationf("invalid arguments for %s: %v", name, err)
	}
	if !result.Valid() {
		msgs := make([]string, 0, len(result.Errors()))
		for _, e := range result.Errors() {
			msgs = append(msgs, e.String())
		}
		return apperr.Validationf("invalid arguments for %s: %s", name, strings.Join(msgs, "; "))
	}
	return nil
}

// Declarations renders model-facing tool declarations.
func Declarations(defs []Definition) []llm.Tool {
	out := make([]llm.Tool, 0, len(defs))
	for _, d := range defs {
		out = append(out, llm.Tool{Name: d.Name, Description: d.Description, Parameters: d.Parameters})
	}
	return out
}
