// Package actor models the authenticated identity presented to the assistant
// and maps it onto a single ordered access level.
//
// An Actor is a tagged union: Kind selects which of the Company, HRM8 or
// Consultant payloads is populated. Every switch over Kind in this module is
// exhaustive so that adding a kind forces a decision at each call site.
package actor

import (
	"fmt"
	"strings"

	"github.com/hrm8/assistant/internal/apperr"
)

// Kind is the actor variant tag.
type Kind string

const (
	KindCompanyUser Kind = "COMPANY_USER"
	KindHRM8User    Kind = "HRM8_USER"
	KindConsultant  Kind = "CONSULTANT"
)

// Company is the payload of a company user.
type Company struct {
	CompanyID string `json:"companyId"`
	Role      string `json:"role"`
}

// HRM8 is the payload of an internal HRM8 staff member (global admin or
// regional licensee).
type HRM8 struct {
	Role              string   `json:"role"`
	LicenseeID        string   `json:"licenseeId,omitempty"`
	AssignedRegionIDs []string `json:"assignedRegionIds,omitempty"`
}

// Consultant is the payload of a recruitment consultant.
type Consultant struct {
	ConsultantID string `json:"consultantId"`
	RegionID     string `json:"regionId"`
	Role         string `json:"role,omitempty"`
}

// Actor is the identity a request runs as. Exactly one payload matches Kind.
type Actor struct {
	Kind   Kind   `json:"actorType"`
	UserID string `json:"userId"`
	Email  string `json:"email"`

	Company    *Company    `json:"company,omitempty"`
	HRM8       *HRM8       `json:"hrm8,omitempty"`
	Consultant *Consultant `json:"consultant,omitempty"`
}

// NewCompanyUser builds a company user actor.
func NewCompanyUser(userID, email, companyID, role string) *Actor {
	return &Actor{
		Kind:    KindCompanyUser,
		UserID:  userID,
		Email:   email,
		Company: &Company{CompanyID: companyID, Role: role},
	}
}

// NewHRM8User builds an HRM8 staff actor. regionIDs may be nil for global admins.
func NewHRM8User(userID, email, role, licenseeID string, regionIDs []string) *Actor {
	return &Actor{
		Kind:   KindHRM8User,
		UserID: userID,
		Email:  email,
		HRM8:   &HRM8{Role: role, LicenseeID: licenseeID, AssignedRegionIDs: regionIDs},
	}
}

// NewConsultant builds a consultant actor.
func NewConsultant(userID, email, consultantID, regionID string) *Actor {
	return &Actor{
		Kind:       KindConsultant,
		UserID:     userID,
		Email:      email,
		Consultant: &Consultant{ConsultantID: consultantID, RegionID: regionID},
	}
}

// Role returns the raw role string carried by the actor, if any.
func (a *Actor) Role() string {
	switch a.Kind {
	case KindCompanyUser:
		if a.Company != nil {
			return a.Company.Role
		}
	case KindHRM8User:
		if a.HRM8 != nil {
			return a.HRM8.Role
		}
	case KindConsultant:
		if a.Consultant != nil && a.Consultant.Role != "" {
			return a.Consultant.Role
		}
		return string(KindConsultant)
	}
	return ""
}

// Validate rejects actors that must never reach the tool registry.
// The returned error is an *apperr.ValidationError.
func Validate(a *Actor) error {
	if a == nil || a.Kind == "" {
		return apperr.Validationf("actor type is required")
	}
	if strings.TrimSpace(a.UserID) == "" || strings.TrimSpace(a.Email) == "" {
		return apperr.Validationf("actor userId and email are required")
	}
	switch a.Kind {
	case KindCompanyUser:
		if a.Company == nil || a.Company.CompanyID == "" || a.Company.Role == "" {
			return apperr.Validationf("company user requires companyId and role")
		}
	case KindHRM8User:
		if a.HRM8 == nil || a.HRM8.Role == "" {
			return apperr.Validationf("hrm8 user requires role")
		}
		if DeriveAccessLevel(a) == LevelRegionalAdmin && len(a.HRM8.AssignedRegionIDs) == 0 {
			return apperr.Validationf("regional admin requires at least one assigned region")
		}
	case KindConsultant:
		if a.Consultant == nil || a.Consultant.ConsultantID == "" || a.Consultant.RegionID == "" {
			return apperr.Validationf("consultant requires consultantId and regionId")
		}
	default:
		return apperr.Validationf("unknown actor type %q", a.Kind)
	}
	return nil
}

// Describe renders the actor's scope in one line for the system prompt.
func Describe(a *Actor) string {
	level := DeriveAccessLevel(a)
	switch a.Kind {
	case KindCompanyUser:
		return fmt.Sprintf("Company user (%s). companyId=%s.", level, a.Company.CompanyID)
	case KindHRM8User:
		if level == LevelGlobalAdmin {
			return "HRM8 global admin. All regions."
		}
		return fmt.Sprintf("HRM8 regional admin. regionIds=%s.", strings.Join(a.HRM8.AssignedRegionIDs, ","))
	case KindConsultant:
		return fmt.Sprintf("Consultant. regionId=%s, consultantId=%s.", a.Consultant.RegionID, a.Consultant.ConsultantID)
	}
	return "Unknown actor."
}
