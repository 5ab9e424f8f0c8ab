package catalog

import (
	"context"
	"fmt"

	"github.com/hrm8/assistant/internal/actor"
	"github.com/hrm8/assistant/internal/store"
	"github.com/hrm8/assistant/internal/tools"
)

// QuickStats is a consultant's at-a-glance workload.
type QuickStats struct {
	ConsultantID       string `json:"consultantId"`
	OpenJobs           int    `json:"openJobs"`
	ActiveApplications int    `json:"activeApplications"`
	OffersOut          int    `json:"offersOut"`
	PendingCommissions int    `json:"pendingCommissions"`
	OpenLeads          int    `json:"openLeads"`
}

// CommissionList is a set of commissions with a running total.
type CommissionList struct {
	ConsultantID string             `json:"consultantId"`
	Total        float64            `json:"amount"`
	Count        int                `json:"count"`
	Commissions  []store.Commission `json:"commissions"`
}

var closedStages = map[string]bool{"HIRED": true, "REJECTED": true, "WITHDRAWN": true}

func (c *Catalog) personalizationTools() []tools.Definition {
	return []tools.Definition{
		{
			Name:          "get_my_quick_stats",
			Description:   "The signed-in consultant's own workload: open assigned jobs, active applications, offers out, pending commissions and open leads.",
			Category:      CategoryPersonalization,
			Parameters:    schema(`{"type":"object","properties":{},"additionalProperties":false}`),
			AllowedLevels: consultantsOnly,
			Sensitivity:   tools.SensitivityLow,
			Run:           c.myQuickStats,
		},
		{
			Name:          "get_my_commissions",
			Description:   "The signed-in consultant's own commissions with amounts, optionally filtered by status.",
			Category:      CategoryPersonalization,
			Parameters:    schema(`{"type":"object","properties":{"status":{"type":"string","enum":["PENDING","PAID","CANCELLED"]}},"additionalProperties":false}`),
			AllowedLevels: consultantsOnly,
			Sensitivity:   tools.SensitivityHigh,
			Run:           c.myCommissions,
		},
	}
}

func (c *Catalog) myQuickStats(ctx context.Context, _ map[string]any, a *actor.Actor) (any, error) {
	id, err := c.self.EnforceConsultantSelfScope(ctx, a, "")
	if err != nil {
		return nil, err
	}

	jobs, err := c.store.Jobs(ctx, store.Filter{"assigned_consultant_id": id, "status": "OPEN"}, store.MaxLimit)
	if err != nil {
		return nil, fmt.Errorf("listing jobs: %w", err)
	}
	apps, err := c.store.Applications(ctx, store.Filter{"assigned_consultant_id": id}, store.MaxLimit)
	if err != nil {
		return nil, fmt.Errorf("listing applications: %w", err)
	}
	commissions, err := c.store.Commissions(ctx, store.Filter{"consultant_id": id, "status": "PENDING"}, store.MaxLimit)
	if err != nil {
		return nil, fmt.Errorf("listing commissions: %w", err)
	}
	leads, err := c.store.Leads(ctx, store.Filter{"consultant_id": id}, "", store.MaxLimit)
	if err != nil {
		return nil, fmt.Errorf("listing leads: %w", err)
	}

	out := QuickStats{ConsultantID: id, OpenJobs: len(jobs), PendingCommissions: len(commissions)}
	for _, ap := range apps {
		if closedStages[ap.Stage] {
			continue
		}
		out.ActiveApplications++
		if ap.Stage == "OFFER" {
			out.OffersOut++
		}
	}
	for _, l := range leads {
		if l.Status != "WON" && l.Status != "LOST" {
			out.OpenLeads++
		}
	}
	return out, nil
}

func (c *Catalog) myCommissions(ctx context.Context, args map[string]any, a *actor.Actor) (any, error) {
	id, err := c.self.EnforceConsultantSelfScope(ctx, a, "")
	if err != nil {
		return nil, err
	}
	return c.commissionsFor(ctx, id, stringArg(args, "status"))
}

func (c *Catalog) commissionsFor(ctx context.Context, consultantID, status string) (CommissionList, error) {
	f := withOptional(store.Filter{"consultant_id": consultantID}, "status", status)
	commissions, err := c.store.Commissions(ctx, f, store.MaxLimit)
	if err != nil {
		return CommissionList{}, fmt.Errorf("listing commissions: %w", err)
	}
	out := CommissionList{ConsultantID: consultantID, Count: len(commissions), Commissions: commissions}
	if out.Commissions == nil {
		out.Commissions = []store.Commission{}
	}
	for _, cm := range commissions {
		out.Total += cm.Amount
	}
	return out, nil
}
