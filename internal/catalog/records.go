package catalog

import (
	"context"
	"errors"
	"fmt"

	"github.com/hrm8/assistant/internal/actor"
	"github.com/hrm8/assistant/internal/store"
	"github.com/hrm8/assistant/internal/tools"
)

// JobDetails is a job with its applications.
type JobDetails struct {
	store.Job
	Applications []store.Application `json:"applications"`
}

func (c *Catalog) recordTools() []tools.Definition {
	return []tools.Definition{
		{
			Name:                 "list_jobs",
			Description:          "List jobs visible to the user, optionally by status.",
			Category:             CategoryRecords,
			Parameters:           schema(`{"type":"object","properties":{"status":{"type":"string","enum":["OPEN","CLOSED","FILLED","DRAFT"]},` + limitProperty + `},"additionalProperties":false}`),
			AllowedLevels:        everyone,
			RequiresRegionScope:  true,
			RequiresCompanyScope: true,
			Sensitivity:          tools.SensitivityMedium,
			Run:                  c.listJobs,
		},
		{
			Name:                 "get_job_details",
			Description:          "Full details for one job including salary and its applications.",
			Category:             CategoryRecords,
			Parameters:           schema(`{"type":"object","properties":{"jobId":{"type":"string","minLength":1}},"required":["jobId"],"additionalProperties":false}`),
			AllowedLevels:        everyone,
			RequiresRegionScope:  true,
			RequiresCompanyScope: true,
			Sensitivity:          tools.SensitivityHigh,
			Run:                  c.jobDetails,
		},
		{
			Name:                 "list_applications",
			Description:          "List applications visible to the user, optionally for one job or stage.",
			Category:             CategoryRecords,
			Parameters:           schema(`{"type":"object","properties":{"jobId":{"type":"string"},"stage":{"type":"string"},` + limitProperty + `},"additionalProperties":false}`),
			AllowedLevels:        everyone,
			RequiresRegionScope:  true,
			RequiresCompanyScope: true,
			Sensitivity:          tools.SensitivityMedium,
			Run:                  c.listApplications,
		},
	}
}

func (c *Catalog) listJobs(ctx context.Context, args map[string]any, a *actor.Actor) (any, error) {
	f, err := scope(ctx, a, withOptional(store.Filter{}, "status", stringArg(args, "status")), true)
	if err != nil {
		return nil, err
	}
	jobs, err := c.store.Jobs(ctx, f, intArg(args, "limit", store.DefaultLimit))
	if err != nil {
		return nil, fmt.Errorf("listing jobs: %w", err)
	}
	if jobs == nil {
		jobs = []store.Job{}
	}
	return map[string]any{"jobs": jobs, "count": len(jobs)}, nil
}

func (c *Catalog) jobDetails(ctx context.Context, args map[string]any, a *actor.Actor) (any, error) {
	id := stringArg(args, "jobId")
	f, err := scope(ctx, a, store.Filter{}, true)
	if err != nil {
		return nil, err
	}
	job, err := c.store.Job(ctx, id, f)
	if errors.Is(err, store.ErrNotFound) {
		return nil, fmt.Errorf("job %s not found or outside your scope", id)
	}
	if err != nil {
		return nil, fmt.Errorf("loading job: %w", err)
	}
	apps, err := c.store.Applications(ctx, store.Filter{"job_id": job.ID}, store.MaxLimit)
	if err != nil {
		return nil, fmt.Errorf("listing applications: %w", err)
	}
	if apps == nil {
		apps = []store.Application{}
	}
	return JobDetails{Job: *job, Applications: apps}, nil
}

func (c *Catalog) listApplications(ctx context.Context, args map[string]any, a *actor.Actor) (any, error) {
	base := withOptional(store.Filter{}, "job_id", stringArg(args, "jobId"))
	base = withOptional(base, "stage", stringArg(args, "stage"))
	f, err := scope(ctx, a, base, true)
	if err != nil {
		return nil, err
	}
	apps, err := c.store.Applications(ctx, f, intArg(args, "limit", store.DefaultLimit))
	if err != nil {
		return nil, fmt.Errorf("listing applications: %w", err)
	}
	if apps == nil {
		apps = []store.Application{}
	}
	return map[string]any{"applications": apps, "count": len(apps)}, nil
}
