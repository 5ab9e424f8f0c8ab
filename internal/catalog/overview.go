package catalog

import (
	"context"
	"fmt"

	"github.com/hrm8/assistant/internal/actor"
	"github.com/hrm8/assistant/internal/store"
	"github.com/hrm8/assistant/internal/tools"
)

// Overview is the composite dashboard payload.
type Overview struct {
	Scope        string         `json:"scope"`
	Jobs         map[string]int `json:"jobs"`
	Applications map[string]int `json:"applications"`
	TotalJobs    int            `json:"totalJobs"`
}

// FinancialSummary describes one company's spend and placements.
type FinancialSummary struct {
	CompanyID        string  `json:"companyId"`
	CompanyName      string  `json:"companyName"`
	OpenJobs         int     `json:"openJobs"`
	Placements       int     `json:"placements"`
	Revenue          float64 `json:"revenue"`
	CommissionAmount float64 `json:"commissionAmount"`
}

func (c *Catalog) overviewTools() []tools.Definition {
	return []tools.Definition{
		{
			Name:                 "get_dashboard_overview",
			Description:          "Summarise jobs by status and applications by stage across everything the user can see. Use this first for broad questions like 'how are things going'.",
			Category:             CategoryOverview,
			Parameters:           schema(`{"type":"object","properties":{},"additionalProperties":false}`),
			AllowedLevels:        everyone,
			RequiresRegionScope:  true,
			RequiresCompanyScope: true,
			Sensitivity:          tools.SensitivityLow,
			Run:                  c.dashboardOverview,
		},
		{
			Name:                 "get_company_financial_summary",
			Description:          "Financial summary for a company: open jobs, placements, revenue and commission totals. Company admins always get their own company.",
			Category:             CategoryOverview,
			Parameters:           schema(`{"type":"object","properties":{"companyId":{"type":"string","description":"Company to summarise. Required for HRM8 staff."}},"additionalProperties":false}`),
			AllowedLevels:        []actor.AccessLevel{actor.LevelCompanyAdmin, actor.LevelRegionalAdmin, actor.LevelGlobalAdmin},
			RequiresRegionScope:  true,
			RequiresCompanyScope: true,
			Sensitivity:          tools.SensitivityHigh,
			Run:                  c.companyFinancialSummary,
		},
	}
}

func (c *Catalog) dashboardOverview(ctx context.Context, _ map[string]any, a *actor.Actor) (any, error) {
	f, err := scope(ctx, a, store.Filter{}, true)
	if err != nil {
		return nil, err
	}
	jobs, err := c.store.Jobs(ctx, f, store.MaxLimit)
	if err != nil {
		return nil, fmt.Errorf("listing jobs: %w", err)
	}
	apps, err := c.store.Applications(ctx, f, store.MaxLimit)
	if err != nil {
		return nil, fmt.Errorf("listing applications: %w", err)
	}

	out := Overview{
		Scope:        actor.Describe(a),
		Jobs:         map[string]int{},
		Applications: map[string]int{},
		TotalJobs:    len(jobs),
	}
	for _, j := range jobs {
		out.Jobs[j.Status]++
	}
	for _, ap := range apps {
		out.Applications[ap.Stage]++
	}
	return out, nil
}

func (c *Catalog) companyFinancialSummary(ctx context.Context, args map[string]any, a *actor.Actor) (any, error) {
	companyID := stringArg(args, "companyId")
	if a.Kind == actor.KindCompanyUser {
		companyID = a.Company.CompanyID
	}
	if companyID == "" {
		return nil, fmt.Errorf("companyId is required")
	}

	f, err := regionScope(ctx, a, store.Filter{"id": companyID})
	if err != nil {
		return nil, err
	}
	companies, err := c.store.Companies(ctx, f, "", 1)
	if err != nil {
		return nil, fmt.Errorf("looking up company: %w", err)
	}
	if len(companies) == 0 {
		return nil, fmt.Errorf("company %s not found or outside your scope", companyID)
	}
	company := companies[0]

	byCompany, err := scope(ctx, a, store.Filter{"company_id": company.ID}, false)
	if err != nil {
		return nil, err
	}
	jobs, err := c.store.Jobs(ctx, byCompany, store.MaxLimit)
	if err != nil {
		return nil, fmt.Errorf("listing jobs: %w", err)
	}
	commissions, err := c.store.Commissions(ctx, byCompany, store.MaxLimit)
	if err != nil {
		return nil, fmt.Errorf("listing commissions: %w", err)
	}

	out := FinancialSummary{CompanyID: company.ID, CompanyName: company.Name}
	for _, j := range jobs {
		switch j.Status {
		case "OPEN":
			out.OpenJobs++
		case "FILLED":
			out.Placements++
			out.Revenue += j.Salary
		}
	}
	for _, cm := range commissions {
		out.CommissionAmount += cm.Amount
	}
	return out, nil
}
