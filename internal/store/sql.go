package store

import (
	"context"
	"fmt"
	"strings"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	assistantotel "github.com/hrm8/assistant/internal/otel"
)

var tracer = assistantotel.Tracer("github.com/hrm8/assistant/internal/store")

// schema is portable between SQLite and Postgres.
const schema = `
CREATE TABLE IF NOT EXISTS regions (
	id TEXT PRIMARY KEY,
	name TEXT NOT NULL
);
CREATE TABLE IF NOT EXISTS companies (
	id TEXT PRIMARY KEY,
	name TEXT NOT NULL,
	region_id TEXT NOT NULL,
	industry TEXT NOT NULL DEFAULT ''
);
CREATE TABLE IF NOT EXISTS users (
	id TEXT PRIMARY KEY,
	email TEXT NOT NULL,
	name TEXT NOT NULL,
	company_id TEXT NOT NULL DEFAULT ''
);
CREATE TABLE IF NOT EXISTS consultants (
	id TEXT PRIMARY KEY,
	email TEXT NOT NULL,
	first_name TEXT NOT NULL,
	last_name TEXT NOT NULL,
	region_id TEXT NOT NULL,
	status TEXT NOT NULL DEFAULT 'ACTIVE'
);
CREATE TABLE IF NOT EXISTS jobs (
	id TEXT PRIMARY KEY,
	title TEXT NOT NULL,
	status TEXT NOT NULL,
	company_id TEXT NOT NULL,
	region_id TEXT NOT NULL,
	assigned_consultant_id TEXT NOT NULL DEFAULT '',
	salary DOUBLE PRECISION NOT NULL DEFAULT 0
);
CREATE TABLE IF NOT EXISTS applications (
	id TEXT PRIMARY KEY,
	job_id TEXT NOT NULL,
	candidate_name TEXT NOT NULL,
	stage TEXT NOT NULL,
	company_id TEXT NOT NULL,
	region_id TEXT NOT NULL,
	assigned_consultant_id TEXT NOT NULL DEFAULT '',
	offer_amount DOUBLE PRECISION NOT NULL DEFAULT 0
);
CREATE TABLE IF NOT EXISTS commissions (
	id TEXT PRIMARY KEY,
	consultant_id TEXT NOT NULL,
	job_id TEXT NOT NULL,
	company_id TEXT NOT NULL,
	region_id TEXT NOT NULL,
	status TEXT NOT NULL,
	amount DOUBLE PRECISION NOT NULL DEFAULT 0
);
CREATE TABLE IF NOT EXISTS leads (
	id TEXT PRIMARY KEY,
	company_name TEXT NOT NULL,
	status TEXT NOT NULL,
	region_id TEXT NOT NULL,
	consultant_id TEXT NOT NULL DEFAULT '',
	value DOUBLE PRECISION NOT NULL DEFAULT 0
);
CREATE INDEX IF NOT EXISTS idx_jobs_region ON jobs(region_id);
CREATE INDEX IF NOT EXISTS idx_jobs_company ON jobs(company_id);
CREATE INDEX IF NOT EXISTS idx_commissions_consultant ON commissions(consultant_id);
`

// rows is the subset of *sql.Rows and pgx.Rows the shared queries need.
type rows interface {
	Next() bool
	Scan(dest ...any) error
	Err() error
	Close()
}

// querier hides the driver difference between database/sql and pgx.
type querier interface {
	query(ctx context.Context, sql string, args ...any) (rows, error)
	exec(ctx context.Context, sql string, args ...any) error
}

// columns allowed in filters per table.
var (
	regionCols      = cols("id")
	companyCols     = cols("id", "region_id", "industry")
	consultantCols  = cols("id", "region_id", "status")
	jobCols         = cols("id", "status", "company_id", "region_id", "assigned_consultant_id")
	applicationCols = cols("id", "job_id", "stage", "company_id", "region_id", "assigned_consultant_id")
	commissionCols  = cols("id", "consultant_id", "job_id", "company_id", "region_id", "status")
	leadCols        = cols("id", "status", "region_id", "consultant_id")
)

func cols(names ...string) map[string]bool {
	m := make(map[string]bool, len(names))
	for _, n := range names {
		m[n] = true
	}
	return m
}

// sqlStore implements Store over any querier.
type sqlStore struct {
	q  querier
	ph placeholder
}

// likeEscaper makes search terms match literally inside a LIKE pattern.
var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

type search struct {
	columns []string
	term    string
}

// selectQuery assembles SELECT ... FROM table WHERE filter [AND search] ORDER BY ... LIMIT.
func (s *sqlStore) selectQuery(table, columns string, allowed map[string]bool, f Filter, srch *search, order string, limit int) (string, []any, error) {
	where, args, err := f.where(allowed, s.ph, 0)
	if err != nil {
		return "", nil, err
	}
	q := "SELECT " + columns + " FROM " + table + where
	if srch != nil && strings.TrimSpace(srch.term) != "" {
		like := "%" + likeEscaper.Replace(strings.ToLower(strings.TrimSpace(srch.term))) + "%"
		parts := make([]string, len(srch.columns))
		for i, c := range srch.columns {
			args = append(args, like)
			parts[i] = fmt.Sprintf(`LOWER(%s) LIKE %s ESCAPE '\'`, c, s.ph(len(args)))
		}
		if where == "" {
			q += " WHERE "
		} else {
			q += " AND "
		}
		q += "(" + strings.Join(parts, " OR ") + ")"
	}
	if order != "" {
		q += " ORDER BY " + order
	}
	if limit > 0 {
		args = append(args, limit)
		q += " LIMIT " + s.ph(len(args))
	}
	return q, args, nil
}

func collect[T any](ctx context.Context, s *sqlStore, q string, args []any, scan func(r rows) (T, error)) ([]T, error) {
	r, err := s.q.query(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer r.Close()
	out := []T{}
	for r.Next() {
		v, err := scan(r)
		if err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, r.Err()
}

func (s *sqlStore) migrate(ctx context.Context) error {
	if err := s.q.exec(ctx, schema); err != nil {
		return fmt.Errorf("creating business schema: %w", err)
	}
	return nil
}

func spanFor(ctx context.Context, name string, f Filter) (context.Context, trace.Span) {
	return tracer.Start(ctx, name, trace.WithAttributes(attribute.Int("store.filter_terms", len(f))))
}

func (s *sqlStore) Regions(ctx context.Context, f Filter) ([]Region, error) {
	ctx, span := spanFor(ctx, "store.regions", f)
	defer span.End()
	q, args, err := s.selectQuery("regions", "id, name", regionCols, f, nil, "name", 0)
	if err != nil {
		return nil, err
	}
	return collect(ctx, s, q, args, func(r rows) (Region, error) {
		var v Region
		return v, r.Scan(&v.ID, &v.Name)
	})
}

func (s *sqlStore) Companies(ctx context.Context, f Filter, query string, limit int) ([]Company, error) {
	ctx, span := spanFor(ctx, "store.companies", f)
	defer span.End()
	q, args, err := s.selectQuery("companies", "id, name, region_id, industry", companyCols, f,
		&search{columns: []string{"name"}, term: query}, "name", clampLimit(limit))
	if err != nil {
		return nil, err
	}
	return collect(ctx, s, q, args, func(r rows) (Company, error) {
		var v Company
		return v, r.Scan(&v.ID, &v.Name, &v.RegionID, &v.Industry)
	})
}

func (s *sqlStore) Consultants(ctx context.Context, f Filter, query string, limit int) ([]Consultant, error) {
	ctx, span := spanFor(ctx, "store.consultants", f)
	defer span.End()
	q, args, err := s.selectQuery("consultants", "id, email, first_name, last_name, region_id, status", consultantCols, f,
		&search{columns: []string{"first_name", "last_name", "email"}, term: query}, "last_name, first_name", clampLimit(limit))
	if err != nil {
		return nil, err
	}
	return collect(ctx, s, q, args, scanConsultant)
}

func scanConsultant(r rows) (Consultant, error) {
	var v Consultant
	return v, r.Scan(&v.ID, &v.Email, &v.FirstName, &v.LastName, &v.RegionID, &v.Status)
}

const jobColumns = "id, title, status, company_id, region_id, assigned_consultant_id, salary"

func scanJob(r rows) (Job, error) {
	var v Job
	return v, r.Scan(&v.ID, &v.Title, &v.Status, &v.CompanyID, &v.RegionID, &v.AssignedConsultantID, &v.Salary)
}

func (s *sqlStore) Jobs(ctx context.Context, f Filter, limit int) ([]Job, error) {
	ctx, span := spanFor(ctx, "store.jobs", f)
	defer span.End()
	q, args, err := s.selectQuery("jobs", jobColumns, jobCols, f, nil, "id", clampLimit(limit))
	if err != nil {
		return nil, err
	}
	return collect(ctx, s, q, args, scanJob)
}

func (s *sqlStore) Job(ctx context.Context, id string, f Filter) (*Job, error) {
	scoped := f.Clone()
	scoped["id"] = id
	jobs, err := s.Jobs(ctx, scoped, 1)
	if err != nil {
		return nil, err
	}
	if len(jobs) == 0 {
		return nil, fmt.Errorf("job %s: %w", id, ErrNotFound)
	}
	return &jobs[0], nil
}

func (s *sqlStore) Applications(ctx context.Context, f Filter, limit int) ([]Application, error) {
	ctx, span := spanFor(ctx, "store.applications", f)
	defer span.End()
	q, args, err := s.selectQuery("applications",
		"id, job_id, candidate_name, stage, company_id, region_id, assigned_consultant_id, offer_amount",
		applicationCols, f, nil, "id", clampLimit(limit))
	if err != nil {
		return nil, err
	}
	return collect(ctx, s, q, args, func(r rows) (Application, error) {
		var v Application
		return v, r.Scan(&v.ID, &v.JobID, &v.CandidateName, &v.Stage, &v.CompanyID, &v.RegionID, &v.AssignedConsultantID, &v.OfferAmount)
	})
}

func (s *sqlStore) Commissions(ctx context.Context, f Filter, limit int) ([]Commission, error) {
	ctx, span := spanFor(ctx, "store.commissions", f)
	defer span.End()
	q, args, err := s.selectQuery("commissions", "id, consultant_id, job_id, company_id, region_id, status, amount",
		commissionCols, f, nil, "id", clampLimit(limit))
	if err != nil {
		return nil, err
	}
	return collect(ctx, s, q, args, func(r rows) (Commission, error) {
		var v Commission
		return v, r.Scan(&v.ID, &v.ConsultantID, &v.JobID, &v.CompanyID, &v.RegionID, &v.Status, &v.Amount)
	})
}

func (s *sqlStore) Leads(ctx context.Context, f Filter, query string, limit int) ([]Lead, error) {
	ctx, span := spanFor(ctx, "store.leads", f)
	defer span.End()
	q, args, err := s.selectQuery("leads", "id, company_name, status, region_id, consultant_id, value", leadCols, f,
		&search{columns: []string{"company_name"}, term: query}, "id", clampLimit(limit))
	if err != nil {
		return nil, err
	}
	return collect(ctx, s, q, args, func(r rows) (Lead, error) {
		var v Lead
		return v, r.Scan(&v.ID, &v.CompanyName, &v.Status, &v.RegionID, &v.ConsultantID, &v.Value)
	})
}

// UserDisplayName looks in users first, then consultants.
func (s *sqlStore) UserDisplayName(ctx context.Context, userID string) (string, error) {
	ctx, span := tracer.Start(ctx, "store.user_display_name")
	defer span.End()

	names, err := collect(ctx, s, "SELECT name FROM users WHERE id = "+s.ph(1), []any{userID}, func(r rows) (string, error) {
		var n string
		return n, r.Scan(&n)
	})
	if err != nil {
		return "", err
	}
	if len(names) > 0 {
		return names[0], nil
	}
	c, err := s.FindConsultant(ctx, userID, nil)
	if err != nil {
		return "", err
	}
	return c.FullName(), nil
}

func (s *sqlStore) RegionName(ctx context.Context, regionID string) (string, error) {
	regions, err := s.Regions(ctx, Filter{"id": regionID})
	if err != nil {
		return "", err
	}
	if len(regions) == 0 {
		return "", fmt.Errorf("region %s: %w", regionID, ErrNotFound)
	}
	return regions[0].Name, nil
}

func (s *sqlStore) FindConsultant(ctx context.Context, idOrEmail string, regionScope []string) (*Consultant, error) {
	ctx, span := tracer.Start(ctx, "store.find_consultant")
	defer span.End()

	f := Filter{}
	if regionScope != nil {
		f["region_id"] = In{Values: regionScope}
	}
	where, args, err := f.where(consultantCols, s.ph, 0)
	if err != nil {
		return nil, err
	}
	args = append(args, idOrEmail, strings.ToLower(idOrEmail))
	match := fmt.Sprintf("(id = %s OR LOWER(email) = %s)", s.ph(len(args)-1), s.ph(len(args)))
	if where == "" {
		where = " WHERE " + match
	} else {
		where += " AND " + match
	}
	found, err := collect(ctx, s, "SELECT id, email, first_name, last_name, region_id, status FROM consultants"+where+" LIMIT 1", args, scanConsultant)
	if err != nil {
		return nil, err
	}
	if len(found) == 0 {
		return nil, fmt.Errorf("consultant %s: %w", idOrEmail, ErrNotFound)
	}
	return &found[0], nil
}

// Load inserts a fixture set. Used by tests and the seed command.
func (s *sqlStore) Load(ctx context.Context, fx Fixtures) error {
	ins := func(table string, columns []string, values ...any) error {
		marks := make([]string, len(values))
		for i := range values {
			marks[i] = s.ph(i + 1)
		}
		q := fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)", table, strings.Join(columns, ", "), strings.Join(marks, ", "))
		if err := s.q.exec(ctx, q, values...); err != nil {
			return fmt.Errorf("inserting into %s: %w", table, err)
		}
		return nil
	}
	for _, v := range fx.Regions {
		if err := ins("regions", []string{"id", "name"}, v.ID, v.Name); err != nil {
			return err
		}
	}
	for _, v := range fx.Companies {
		if err := ins("companies", []string{"id", "name", "region_id", "industry"}, v.ID, v.Name, v.RegionID, v.Industry); err != nil {
			return err
		}
	}
	for _, v := range fx.Users {
		if err := ins("users", []string{"id", "email", "name", "company_id"}, v.ID, v.Email, v.Name, v.CompanyID); err != nil {
			return err
		}
	}
	for _, v := range fx.Consultants {
		status := v.Status
		if status == "" {
			status = "ACTIVE"
		}
		if err := ins("consultants", []string{"id", "email", "first_name", "last_name", "region_id", "status"},
			v.ID, v.Email, v.FirstName, v.LastName, v.RegionID, status); err != nil {
			return err
		}
	}
	for _, v := range fx.Jobs {
		if err := ins("jobs", []string{"id", "title", "status", "company_id", "region_id", "assigned_consultant_id", "salary"},
			v.ID, v.Title, v.Status, v.CompanyID, v.RegionID, v.AssignedConsultantID, v.Salary); err != nil {
			return err
		}
	}
	for _, v := range fx.Applications {
		if err := ins("applications", []string{"id", "job_id", "candidate_name", "stage", "company_id", "region_id", "assigned_consultant_id", "offer_amount"},
			v.ID, v.JobID, v.CandidateName, v.Stage, v.CompanyID, v.RegionID, v.AssignedConsultantID, v.OfferAmount); err != nil {
			return err
		}
	}
	for _, v := range fx.Commissions {
		if err := ins("commissions", []string{"id", "consultant_id", "job_id", "company_id", "region_id", "status", "amount"},
			v.ID, v.ConsultantID, v.JobID, v.CompanyID, v.RegionID, v.Status, v.Amount); err != nil {
			return err
		}
	}
	for _, v := range fx.Leads {
		if err := ins("leads", []string{"id", "company_name", "status", "region_id", "consultant_id", "value"},
			v.ID, v.CompanyName, v.Status, v.RegionID, v.ConsultantID, v.Value); err != nil {
			return err
		}
	}
	return nil
}
