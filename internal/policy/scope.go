package policy

import (
	"github.com/hrm8/assistant/internal/actor"
	"github.com/hrm8/assistant/internal/apperr"
	"github.com/hrm8/assistant/internal/store"
	"github.com/hrm8/assistant/internal/tools"
)

// Filter columns the scope functions write.
const (
	ColumnRegionID             = "region_id"
	ColumnCompanyID            = "company_id"
	ColumnAssignedConsultantID = "assigned_consultant_id"
)

// CanUseTool reports whether the actor's access level is allowed by def.
func CanUseTool(a *actor.Actor, def tools.Definition) bool {
	return def.Allows(actor.DeriveAccessLevel(a))
}

// RegionScope returns the regions an actor may touch. nil means unrestricted;
// a non-nil empty slice means explicitly no regions.
func RegionScope(a *actor.Actor) []string {
	if a == nil {
		return []string{}
	}
	switch a.Kind {
	case actor.KindCompanyUser:
		return nil
	case actor.KindConsultant:
		if a.Consultant == nil || a.Consultant.RegionID == "" {
			return []string{}
		}
		return []string{a.Consultant.RegionID}
	case actor.KindHRM8User:
		if actor.DeriveAccessLevel(a) == actor.LevelGlobalAdmin {
			return nil
		}
		if a.HRM8 == nil {
			return []string{}
		}
		out := make([]string, len(a.HRM8.AssignedRegionIDs))
		copy(out, a.HRM8.AssignedRegionIDs)
		return out
	}
	return []string{}
}

// EnsureNonEmptyRegionScope returns [] for an unrestricted actor, the region
// IDs for a scoped one, and a ScopeConfigurationError for a defined but
// empty scope.
func EnsureNonEmptyRegionScope(a *actor.Actor) ([]string, error) {
	scope := RegionScope(a)
	if scope == nil {
		return []string{}, nil
	}
	if len(scope) == 0 {
		return nil, &apperr.ScopeConfigurationError{Msg: "actor has no assigned regions"}
	}
	return scope, nil
}

// CheckScopeRequirements fails when def needs a region or company scope the
// actor cannot supply.
func CheckScopeRequirements(a *actor.Actor, def tools.Definition) error {
	if def.RequiresRegionScope {
		if _, err := EnsureNonEmptyRegionScope(a); err != nil {
			return err
		}
	}
	if def.RequiresCompanyScope && a != nil && a.Kind == actor.KindCompanyUser &&
		(a.Company == nil || a.Company.CompanyID == "") {
		return &apperr.ScopeConfigurationError{Msg: "actor has no assigned company"}
	}
	return nil
}

// ApplyRegionScope narrows base to the actor's regions. An existing region_id
// predicate in base is intersected with the scope, never widened.
func ApplyRegionScope(a *actor.Actor, base store.Filter) (store.Filter, error) {
	scope := RegionScope(a)
	if scope == nil {
		return base, nil
	}
	if len(scope) == 0 {
		return nil, &apperr.ScopeConfigurationError{Msg: "actor has no assigned regions"}
	}

	out := base.Clone()
	if existing, ok := base[ColumnRegionID]; ok {
		out[ColumnRegionID] = store.In{Values: intersect(scope, requestedValues(existing))}
		return out, nil
	}
	out[ColumnRegionID] = store.In{Values: scope}
	return out, nil
}

// ApplyCompanyScope pins company users to their own company.
func ApplyCompanyScope(a *actor.Actor, base store.Filter) store.Filter {
	if a == nil || a.Kind != actor.KindCompanyUser || a.Company == nil {
		return base
	}
	out := base.Clone()
	out[ColumnCompanyID] = a.Company.CompanyID
	return out
}

// ApplyJobScope pins consultants to jobs assigned to them.
func ApplyJobScope(a *actor.Actor, base store.Filter) store.Filter {
	if a == nil || a.Kind != actor.KindConsultant {
		return base
	}
	out := base.Clone()
	out[ColumnAssignedConsultantID] = a.UserID
	return out
}

func requestedValues(v any) []string {
	switch p := v.(type) {
	case string:
		return []string{p}
	case store.In:
		return p.Values
	case []string:
		return p
	}
	return nil
}

func intersect(scope, requested []string) []string {
	allowed := make(map[string]bool, len(scope))
	for _, s := range scope {
		allowed[s] = true
	}
	out := []string{}
	for _, r := range requested {
		if allowed[r] {
			out = append(out, r)
		}
	}
	return out
}
