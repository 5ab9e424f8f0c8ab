package store

import (
	"context"
	"errors"
)

// ErrNotFound is returned by single-record lookups that match nothing.
var ErrNotFound = errors.New("not found")

const (
	DefaultLimit = 50
	MaxLimit     = 200
)

// Region is an operating region run by a licensee.
type Region struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// Company is a client company.
type Company struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	RegionID string `json:"regionId"`
	Industry string `json:"industry,omitempty"`
}

// User is a company user or an HRM8 staff member.
type User struct {
	ID        string `json:"id"`
	Email     string `json:"email"`
	Name      string `json:"name"`
	CompanyID string `json:"companyId,omitempty"`
}

// Consultant is a recruitment consultant working one region.
type Consultant struct {
	ID        string `json:"id"`
	Email     string `json:"email"`
	FirstName string `json:"firstName"`
	LastName  string `json:"lastName"`
	RegionID  string `json:"regionId"`
	Status    string `json:"status"`
}

// FullName joins first and last name.
func (c Consultant) FullName() string {
	switch {
	case c.FirstName == "":
		return c.LastName
	case c.LastName == "":
		return c.FirstName
	}
	return c.FirstName + " " + c.LastName
}

// Job is an open or closed vacancy.
type Job struct {
	ID                   string  `json:"id"`
	Title                string  `json:"title"`
	Status               string  `json:"status"`
	CompanyID            string  `json:"companyId"`
	RegionID             string  `json:"regionId"`
	AssignedConsultantID string  `json:"assignedConsultantId,omitempty"`
	Salary               float64 `json:"salary"`
}

// Application is a candidate's progress through a job's pipeline.
type Application struct {
	ID                   string  `json:"id"`
	JobID                string  `json:"jobId"`
	CandidateName        string  `json:"candidateName"`
	Stage                string  `json:"stage"`
	CompanyID            string  `json:"companyId"`
	RegionID             string  `json:"regionId"`
	AssignedConsultantID string  `json:"assignedConsultantId,omitempty"`
	OfferAmount          float64 `json:"offerAmount"`
}

// Commission is what a consultant earns on a placement.
type Commission struct {
	ID           string  `json:"id"`
	ConsultantID string  `json:"consultantId"`
	JobID        string  `json:"jobId"`
	CompanyID    string  `json:"companyId"`
	RegionID     string  `json:"regionId"`
	Status       string  `json:"status"`
	Amount       float64 `json:"amount"`
}

// Lead is a sales prospect owned by a consultant.
type Lead struct {
	ID           string  `json:"id"`
	CompanyName  string  `json:"companyName"`
	Status       string  `json:"status"`
	RegionID     string  `json:"regionId"`
	ConsultantID string  `json:"consultantId"`
	Value        float64 `json:"value"`
}

// Directory answers the identity lookups the policy engine and prompt
// personalization need.
type Directory interface {
	// UserDisplayName returns the display name of a user or consultant.
	UserDisplayName(ctx context.Context, userID string) (string, error)
	// RegionName returns a region's display name.
	RegionName(ctx context.Context, regionID string) (string, error)
	// FindConsultant resolves a consultant by ID or email. A nil regionScope
	// is unrestricted; otherwise the consultant must work one of the regions.
	FindConsultant(ctx context.Context, idOrEmail string, regionScope []string) (*Consultant, error)
}

// Store is the read model behind the tool catalog. Every list takes a Filter
// that the caller has already narrowed to the actor's scope.
type Store interface {
	Directory
	Regions(ctx context.Context, f Filter) ([]Region, error)
	Companies(ctx context.Context, f Filter, query string, limit int) ([]Company, error)
	Consultants(ctx context.Context, f Filter, query string, limit int) ([]Consultant, error)
	Jobs(ctx context.Context, f Filter, limit int) ([]Job, error)
	Job(ctx context.Context, id string, f Filter) (*Job, error)
	Applications(ctx context.Context, f Filter, limit int) ([]Application, error)
	Commissions(ctx context.Context, f Filter, limit int) ([]Commission, error)
	Leads(ctx context.Context, f Filter, query string, limit int) ([]Lead, error)
	Close() error
}

// Fixtures is a bulk data set for Load.
type Fixtures struct {
	Regions      []Region
	Companies    []Company
	Users        []User
	Consultants  []Consultant
	Jobs         []Job
	Applications []Application
	Commissions  []Commission
	Leads        []Lead
}

func clampLimit(limit int) int {
	if limit <= 0 {
		return DefaultLimit
	}
	if limit > MaxLimit {
		return MaxLimit
	}
	return limit
}
