// Package catalog defines the concrete tools the assistant exposes over the
// business data store. Every tool narrows its queries with the policy scope
// functions before touching the store; the executor then redacts and audits
// the result according to the tool's sensitivity.
package catalog

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/hrm8/assistant/internal/actor"
	"github.com/hrm8/assistant/internal/policy"
	"github.com/hrm8/assistant/internal/store"
	"github.com/hrm8/assistant/internal/tools"
)

// Categories group tools for listing.
const (
	CategoryOverview        = "overview"
	CategoryPersonalization = "personalization"
	CategoryAnalytics       = "analytics"
	CategorySearch          = "search"
	CategoryRecords         = "records"
)

var (
	admins          = []actor.AccessLevel{actor.LevelRegionalAdmin, actor.LevelGlobalAdmin}
	consultantsUp   = []actor.AccessLevel{actor.LevelConsultant, actor.LevelRegionalAdmin, actor.LevelGlobalAdmin}
	consultantsOnly = []actor.AccessLevel{actor.LevelConsultant}
	everyone        = actor.AllLevels
)

// SelfScoper resolves which consultant a request may read.
type SelfScoper interface {
	EnforceConsultantSelfScope(ctx context.Context, a *actor.Actor, requested string) (string, error)
}

// Catalog builds tool definitions bound to a store.
type Catalog struct {
	store store.Store
	self  SelfScoper
}

// New binds the catalog to st. self is normally the *policy.Engine.
func New(st store.Store, self SelfScoper) *Catalog {
	return &Catalog{store: st, self: self}
}

// Groups returns every tool group in registration order. Each run function
// sees its definition's scope requirements through the context.
func (c *Catalog) Groups() [][]tools.Definition {
	groups := [][]tools.Definition{
		c.overviewTools(),
		c.personalizationTools(),
		c.analyticsTools(),
		c.searchTools(),
		c.recordTools(),
	}
	for _, g := range groups {
		for i := range g {
			g[i].Run = bindRequirements(g[i])
		}
	}
	return groups
}

// NewRegistry assembles the full registry.
func NewRegistry(st store.Store, self SelfScoper) (*tools.Registry, error) {
	return tools.NewRegistry(New(st, self).Groups()...)
}

type requirements struct {
	region  bool
	company bool
}

type requirementsKey struct{}

func bindRequirements(def tools.Definition) tools.RunFunc {
	req := requirements{region: def.RequiresRegionScope, company: def.RequiresCompanyScope}
	run := def.Run
	return func(ctx context.Context, args map[string]any, a *actor.Actor) (any, error) {
		return run(context.WithValue(ctx, requirementsKey{}, req), args, a)
	}
}

// requirementsFrom returns the running tool's scope requirements. A run
// outside the registry gets every scope.
func requirementsFrom(ctx context.Context) requirements {
	if req, ok := ctx.Value(requirementsKey{}).(requirements); ok {
		return req
	}
	return requirements{region: true, company: true}
}

// regionScope narrows base by region when the running tool requires it.
func regionScope(ctx context.Context, a *actor.Actor, base store.Filter) (store.Filter, error) {
	if !requirementsFrom(ctx).region {
		return base, nil
	}
	return policy.ApplyRegionScope(a, base)
}

// scope narrows base by the running tool's declared region and company
// requirements. jobs also pins consultants to their assigned records.
func scope(ctx context.Context, a *actor.Actor, base store.Filter, jobs bool) (store.Filter, error) {
	f, err := regionScope(ctx, a, base)
	if err != nil {
		return nil, err
	}
	if requirementsFrom(ctx).company {
		f = policy.ApplyCompanyScope(a, f)
	}
	if jobs {
		f = policy.ApplyJobScope(a, f)
	}
	return f, nil
}

func schema(s string) json.RawMessage {
	if !json.Valid([]byte(s)) {
		panic(fmt.Sprintf("catalog: invalid schema %s", s))
	}
	return json.RawMessage(s)
}

func stringArg(args map[string]any, key string) string {
	if v, ok := args[key].(string); ok {
		return v
	}
	return ""
}

func intArg(args map[string]any, key string, def int) int {
	switch v := args[key].(type) {
	case float64:
		return int(v)
	case int:
		return v
	case int64:
		return int(v)
	case json.Number:
		if n, err := v.Int64(); err == nil {
			return int(n)
		}
	}
	return def
}

// withOptional adds key=value to f when value is non-empty.
func withOptional(f store.Filter, key, value string) store.Filter {
	if value == "" {
		return f
	}
	out := f.Clone()
	out[key] = value
	return out
}
