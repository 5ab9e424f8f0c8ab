package catalog

import (
	"context"
	"fmt"
	"sort"

	"github.com/hrm8/assistant/internal/actor"
	"github.com/hrm8/assistant/internal/store"
	"github.com/hrm8/assistant/internal/tools"
)

// Performance is one consultant's placement and commission record.
type Performance struct {
	ConsultantID string         `json:"consultantId"`
	Name         string         `json:"name"`
	RegionID     string         `json:"regionId"`
	OpenJobs     int            `json:"openJobs"`
	Placements   int            `json:"placements"`
	Commissions  CommissionList `json:"commissions"`
}

// RegionSummary is one row of the region overview.
type RegionSummary struct {
	RegionID          string `json:"regionId"`
	Name              string `json:"name"`
	OpenJobs          int    `json:"openJobs"`
	ActiveConsultants int    `json:"activeConsultants"`
	Applications      int    `json:"applications"`
}

// ConsultantCommissions aggregates commissions for one consultant.
type ConsultantCommissions struct {
	ConsultantID string  `json:"consultantId"`
	Count        int     `json:"count"`
	Amount       float64 `json:"amount"`
}

// CommissionAnalytics aggregates commissions across the actor's scope.
type CommissionAnalytics struct {
	Total        float64                 `json:"total"`
	Count        int                     `json:"count"`
	ByStatus     map[string]float64      `json:"byStatus"`
	ByConsultant []ConsultantCommissions `json:"byConsultant"`
}

// Pipeline counts applications per stage.
type Pipeline struct {
	Total   int            `json:"total"`
	ByStage map[string]int `json:"byStage"`
}

func (c *Catalog) analyticsTools() []tools.Definition {
	return []tools.Definition{
		{
			Name:                "get_consultant_performance",
			Description:         "Placement and commission performance for one consultant. Consultants always get their own; admins pass a consultant ID or email.",
			Category:            CategoryAnalytics,
			Parameters:          schema(`{"type":"object","properties":{"consultantId":{"type":"string","description":"Consultant ID or email. Ignored for consultants."}},"additionalProperties":false}`),
			AllowedLevels:       consultantsUp,
			RequiresRegionScope: true,
			Sensitivity:         tools.SensitivityCritical,
			Run:                 c.consultantPerformance,
		},
		{
			Name:                "get_region_overview",
			Description:         "Per-region counts of open jobs, active consultants and applications.",
			Category:            CategoryAnalytics,
			Parameters:          schema(`{"type":"object","properties":{"regionId":{"type":"string"}},"additionalProperties":false}`),
			AllowedLevels:       admins,
			RequiresRegionScope: true,
			Sensitivity:         tools.SensitivityMedium,
			Run:                 c.regionOverview,
		},
		{
			Name:                "get_commission_analytics",
			Description:         "Commission totals by status and by consultant across the user's regions.",
			Category:            CategoryAnalytics,
			Parameters:          schema(`{"type":"object","properties":{"status":{"type":"string","enum":["PENDING","PAID","CANCELLED"]},"regionId":{"type":"string"}},"additionalProperties":false}`),
			AllowedLevels:       admins,
			RequiresRegionScope: true,
			Sensitivity:         tools.SensitivityCritical,
			Run:                 c.commissionAnalytics,
		},
		{
			Name:                 "get_pipeline_analytics",
			Description:          "Applications by pipeline stage, optionally for one job.",
			Category:             CategoryAnalytics,
			Parameters:           schema(`{"type":"object","properties":{"jobId":{"type":"string"}},"additionalProperties":false}`),
			AllowedLevels:        []actor.AccessLevel{actor.LevelCompanyAdmin, actor.LevelConsultant, actor.LevelRegionalAdmin, actor.LevelGlobalAdmin},
			RequiresRegionScope:  true,
			RequiresCompanyScope: true,
			Sensitivity:          tools.SensitivityMedium,
			Run:                  c.pipelineAnalytics,
		},
	}
}

func (c *Catalog) consultantPerformance(ctx context.Context, args map[string]any, a *actor.Actor) (any, error) {
	id, err := c.self.EnforceConsultantSelfScope(ctx, a, stringArg(args, "consultantId"))
	if err != nil {
		return nil, err
	}
	consultant, err := c.store.FindConsultant(ctx, id, nil)
	if err != nil {
		return nil, fmt.Errorf("loading consultant %s: %w", id, err)
	}
	jobs, err := c.store.Jobs(ctx, store.Filter{"assigned_consultant_id": id}, store.MaxLimit)
	if err != nil {
		return nil, fmt.Errorf("listing jobs: %w", err)
	}
	commissions, err := c.commissionsFor(ctx, id, "")
	if err != nil {
		return nil, err
	}

	out := Performance{
		ConsultantID: consultant.ID,
		Name:         consultant.FullName(),
		RegionID:     consultant.RegionID,
		Commissions:  commissions,
	}
	for _, j := range jobs {
		switch j.Status {
		case "OPEN":
			out.OpenJobs++
		case "FILLED":
			out.Placements++
		}
	}
	return out, nil
}

func (c *Catalog) regionOverview(ctx context.Context, args map[string]any, a *actor.Actor) (any, error) {
	regionFilter, err := scope(ctx, a, withOptional(store.Filter{}, "region_id", stringArg(args, "regionId")), false)
	if err != nil {
		return nil, err
	}
	// regions are keyed by id, not region_id
	idFilter := store.Filter{}
	if v, ok := regionFilter["region_id"]; ok {
		idFilter["id"] = v
	}
	regions, err := c.store.Regions(ctx, idFilter)
	if err != nil {
		return nil, fmt.Errorf("listing regions: %w", err)
	}

	out := make([]RegionSummary, 0, len(regions))
	for _, r := range regions {
		inRegion := store.Filter{"region_id": r.ID}
		jobs, err := c.store.Jobs(ctx, withOptional(inRegion, "status", "OPEN"), store.MaxLimit)
		if err != nil {
			return nil, fmt.Errorf("listing jobs: %w", err)
		}
		consultants, err := c.store.Consultants(ctx, withOptional(inRegion, "status", "ACTIVE"), "", store.MaxLimit)
		if err != nil {
			return nil, fmt.Errorf("listing consultants: %w", err)
		}
		apps, err := c.store.Applications(ctx, inRegion, store.MaxLimit)
		if err != nil {
			return nil, fmt.Errorf("listing applications: %w", err)
		}
		out = append(out, RegionSummary{
			RegionID:          r.ID,
			Name:              r.Name,
			OpenJobs:          len(jobs),
			ActiveConsultants: len(consultants),
			Applications:      len(apps),
		})
	}
	return map[string]any{"regions": out}, nil
}

func (c *Catalog) commissionAnalytics(ctx context.Context, args map[string]any, a *actor.Actor) (any, error) {
	base := withOptional(store.Filter{}, "status", stringArg(args, "status"))
	base = withOptional(base, "region_id", stringArg(args, "regionId"))
	f, err := scope(ctx, a, base, false)
	if err != nil {
		return nil, err
	}
	commissions, err := c.store.Commissions(ctx, f, store.MaxLimit)
	if err != nil {
		return nil, fmt.Errorf("listing commissions: %w", err)
	}

	out := CommissionAnalytics{ByStatus: map[string]float64{}, ByConsultant: []ConsultantCommissions{}}
	per := map[string]*ConsultantCommissions{}
	for _, cm := range commissions {
		out.Total += cm.Amount
		out.Count++
		out.ByStatus[cm.Status] += cm.Amount
		agg, ok := per[cm.ConsultantID]
		if !ok {
			agg = &ConsultantCommissions{ConsultantID: cm.ConsultantID}
			per[cm.ConsultantID] = agg
		}
		agg.Count++
		agg.Amount += cm.Amount
	}
	for _, agg := range per {
		out.ByConsultant = append(out.ByConsultant, *agg)
	}
	sort.Slice(out.ByConsultant, func(i, j int) bool {
		if out.ByConsultant[i].Amount != out.ByConsultant[j].Amount {
			return out.ByConsultant[i].Amount > out.ByConsultant[j].Amount
		}
		return out.ByConsultant[i].ConsultantID < out.ByConsultant[j].ConsultantID
	})
	return out, nil
}

func (c *Catalog) pipelineAnalytics(ctx context.Context, args map[string]any, a *actor.Actor) (any, error) {
	f, err := scope(ctx, a, withOptional(store.Filter{}, "job_id", stringArg(args, "jobId")), true)
	if err != nil {
		return nil, err
	}
	apps, err := c.store.Applications(ctx, f, store.MaxLimit)
	if err != nil {
		return nil, fmt.Errorf("listing applications: %w", err)
	}
	out := Pipeline{Total: len(apps), ByStage: map[string]int{}}
	for _, ap := range apps {
		out.ByStage[ap.Stage]++
	}
	return out, nil
}
