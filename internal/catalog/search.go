package catalog

import (
	"context"
	"fmt"

	"github.com/hrm8/assistant/internal/actor"
	"github.com/hrm8/assistant/internal/store"
	"github.com/hrm8/assistant/internal/tools"
)

// ConsultantHit is a search result without contact details beyond email.
type ConsultantHit struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	Email    string `json:"email"`
	RegionID string `json:"regionId"`
	Status   string `json:"status"`
}

const limitProperty = `"limit":{"type":"integer","minimum":1,"maximum":200}`

func (c *Catalog) searchTools() []tools.Definition {
	return []tools.Definition{
		{
			Name:                "search_consultants",
			Description:         "Find consultants by name or email within the user's regions.",
			Category:            CategorySearch,
			Parameters:          schema(`{"type":"object","properties":{"query":{"type":"string"},"status":{"type":"string","enum":["ACTIVE","INACTIVE"]},` + limitProperty + `},"additionalProperties":false}`),
			AllowedLevels:       admins,
			RequiresRegionScope: true,
			Sensitivity:         tools.SensitivityMedium,
			Run:                 c.searchConsultants,
		},
		{
			Name:                "search_companies",
			Description:         "Find client companies by name or industry within the user's regions.",
			Category:            CategorySearch,
			Parameters:          schema(`{"type":"object","properties":{"query":{"type":"string"},"industry":{"type":"string"},` + limitProperty + `},"additionalProperties":false}`),
			AllowedLevels:       consultantsUp,
			RequiresRegionScope: true,
			Sensitivity:         tools.SensitivityLow,
			Run:                 c.searchCompanies,
		},
		{
			Name:                "search_leads",
			Description:         "Find sales leads by company name. Consultants only see their own leads.",
			Category:            CategorySearch,
			Parameters:          schema(`{"type":"object","properties":{"query":{"type":"string"},"status":{"type":"string","enum":["NEW","QUALIFIED","WON","LOST"]},` + limitProperty + `},"additionalProperties":false}`),
			AllowedLevels:       consultantsUp,
			RequiresRegionScope: true,
			Sensitivity:         tools.SensitivityHigh,
			Run:                 c.searchLeads,
		},
	}
}

func (c *Catalog) searchConsultants(ctx context.Context, args map[string]any, a *actor.Actor) (any, error) {
	f, err := scope(ctx, a, withOptional(store.Filter{}, "status", stringArg(args, "status")), false)
	if err != nil {
		return nil, err
	}
	found, err := c.store.Consultants(ctx, f, stringArg(args, "query"), intArg(args, "limit", store.DefaultLimit))
	if err != nil {
		return nil, fmt.Errorf("searching consultants: %w", err)
	}
	out := make([]ConsultantHit, 0, len(found))
	for _, v := range found {
		out = append(out, ConsultantHit{ID: v.ID, Name: v.FullName(), Email: v.Email, RegionID: v.RegionID, Status: v.Status})
	}
	return map[string]any{"consultants": out, "count": len(out)}, nil
}

func (c *Catalog) searchCompanies(ctx context.Context, args map[string]any, a *actor.Actor) (any, error) {
	f, err := scope(ctx, a, withOptional(store.Filter{}, "industry", stringArg(args, "industry")), false)
	if err != nil {
		return nil, err
	}
	found, err := c.store.Companies(ctx, f, stringArg(args, "query"), intArg(args, "limit", store.DefaultLimit))
	if err != nil {
		return nil, fmt.Errorf("searching companies: %w", err)
	}
	if found == nil {
		found = []store.Company{}
	}
	return map[string]any{"companies": found, "count": len(found)}, nil
}

func (c *Catalog) searchLeads(ctx context.Context, args map[string]any, a *actor.Actor) (any, error) {
	f, err := scope(ctx, a, withOptional(store.Filter{}, "status", stringArg(args, "status")), false)
	if err != nil {
		return nil, err
	}
	if a.Kind == actor.KindConsultant {
		id, err := c.self.EnforceConsultantSelfScope(ctx, a, "")
		if err != nil {
			return nil, err
		}
		f["consultant_id"] = id
	}
	found, err := c.store.Leads(ctx, f, stringArg(args, "query"), intArg(args, "limit", store.DefaultLimit))
	if err != nil {
		return nil, fmt.Errorf("searching leads: %w", err)
	}
	if found == nil {
		found = []store.Lead{}
	}
	return map[string]any{"leads": found, "count": len(found)}, nil
}
