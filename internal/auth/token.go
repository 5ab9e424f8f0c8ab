// Package auth issues and validates the HS256 bearer tokens that carry an
// actor's identity to the assistant API.
package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/hrm8/assistant/internal/actor"
)

var (
	ErrTokenExpired = errors.New("token expired")
	ErrTokenInvalid = errors.New("token invalid")
)

// DefaultTTL is the lifetime of tokens issued without an explicit TTL.
const DefaultTTL = 8 * time.Hour

type actorClaims struct {
	jwt.RegisteredClaims
	ActorType string `json:"actorType"`
	UserID    string `json:"uid"`
	Email     string `json:"email"`

	CompanyID   string `json:"companyId,omitempty"`
	CompanyRole string `json:"companyRole,omitempty"`

	HRM8Role          string   `json:"hrm8Role,omitempty"`
	LicenseeID        string   `json:"licenseeId,omitempty"`
	AssignedRegionIDs []string `json:"assignedRegionIds,omitempty"`

	ConsultantID   string `json:"consultantId,omitempty"`
	RegionID       string `json:"regionId,omitempty"`
	ConsultantRole string `json:"consultantRole,omitempty"`
}

// TokenService handles JWT creation and validation.
type TokenService struct {
	signingKey []byte
	issuer     string
}

// NewTokenService creates a token service. issuer is set on issued tokens
// and required on validated ones.
func NewTokenService(signingKey, issuer string) *TokenService {
	return &TokenService{signingKey: []byte(signingKey), issuer: issuer}
}

// IssueToken signs a token carrying a. ttl <= 0 uses DefaultTTL.
func (s *TokenService) IssueToken(a *actor.Actor, ttl time.Duration) (string, error) {
	if a == nil {
		return "", fmt.Errorf("issuing token: %w", ErrTokenInvalid)
	}
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	now := time.Now()
	claims := actorClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    s.issuer,
			Subject:   a.UserID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
		ActorType: string(a.Kind),
		UserID:    a.UserID,
		Email:     a.Email,
	}
	switch a.Kind {
	case actor.KindCompanyUser:
		if a.Company != nil {
			claims.CompanyID = a.Company.CompanyID
			claims.CompanyRole = a.Company.Role
		}
	case actor.KindHRM8User:
		if a.HRM8 != nil {
			claims.HRM8Role = a.HRM8.Role
			claims.LicenseeID = a.HRM8.LicenseeID
			claims.AssignedRegionIDs = a.HRM8.AssignedRegionIDs
		}
	case actor.KindConsultant:
		if a.Consultant != nil {
			claims.ConsultantID = a.Consultant.ConsultantID
			claims.RegionID = a.Consultant.RegionID
			claims.ConsultantRole = a.Consultant.Role
		}
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(s.signingKey)
}

// ValidateToken verifies the signature, issuer and expiry and rebuilds the
// actor. The actor is not validated here; callers run actor.Validate.
func (s *TokenService) ValidateToken(tokenString string) (*actor.Actor, error) {
	token, err := jwt.ParseWithClaims(tokenString, &actorClaims{}, func(token *jwt.Token) (any, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return s.signingKey, nil
	}, jwt.WithIssuer(s.issuer), jwt.WithExpirationRequired())
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, fmt.Errorf("%w: %v", ErrTokenExpired, err)
		}
		return nil, fmt.Errorf("%w: %v", ErrTokenInvalid, err)
	}

	claims, ok := token.Claims.(*actorClaims)
	if !ok || !token.Valid {
		return nil, ErrTokenInvalid
	}

	a := &actor.Actor{Kind: actor.Kind(claims.ActorType), UserID: claims.UserID, Email: claims.Email}
	switch a.Kind {
	case actor.KindCompanyUser:
		a.Company = &actor.Company{CompanyID: claims.CompanyID, Role: claims.CompanyRole}
	case actor.KindHRM8User:
		a.HRM8 = &actor.HRM8{Role: claims.HRM8Role, LicenseeID: claims.LicenseeID, AssignedRegionIDs: claims.AssignedRegionIDs}
	case actor.KindConsultant:
		a.Consultant = &actor.Consultant{ConsultantID: claims.ConsultantID, RegionID: claims.RegionID, Role: claims.ConsultantRole}
	}
	return a, nil
}
