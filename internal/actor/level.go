package actor

import (
	"fmt"
	"strings"
)

// AccessLevel is the single ordered authorization tier derived per actor.
type AccessLevel int

const (
	LevelCompanyUser AccessLevel = iota + 1
	LevelCompanyAdmin
	LevelConsultant
	LevelRegionalAdmin
	LevelGlobalAdmin
)

var levelNames = map[AccessLevel]string{
	LevelCompanyUser:   "COMPANY_USER",
	LevelCompanyAdmin:  "COMPANY_ADMIN",
	LevelConsultant:    "CONSULTANT",
	LevelRegionalAdmin: "REGIONAL_ADMIN",
	LevelGlobalAdmin:   "GLOBAL_ADMIN",
}

// AllLevels lists every level from least to most privileged.
var AllLevels = []AccessLevel{
	LevelCompanyUser,
	LevelCompanyAdmin,
	LevelConsultant,
	LevelRegionalAdmin,
	LevelGlobalAdmin,
}

func (l AccessLevel) String() string {
	if s, ok := levelNames[l]; ok {
		return s
	}
	return fmt.Sprintf("AccessLevel(%d)", int(l))
}

// AtLeast reports whether l is as privileged as other.
func (l AccessLevel) AtLeast(other AccessLevel) bool {
	return l >= other
}

// MarshalText implements encoding.TextMarshaler.
func (l AccessLevel) MarshalText() ([]byte, error) {
	return []byte(l.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (l *AccessLevel) UnmarshalText(b []byte) error {
	parsed, err := ParseAccessLevel(string(b))
	if err != nil {
		return err
	}
	*l = parsed
	return nil
}

// ParseAccessLevel parses the canonical level name.
func ParseAccessLevel(s string) (AccessLevel, error) {
	norm := NormalizeRole(s)
	for l, name := range levelNames {
		if name == norm {
			return l, nil
		}
	}
	return 0, fmt.Errorf("unknown access level %q", s)
}

// NormalizeRole folds legacy role spellings ("regional-licensee",
// " Super Admin") onto the canonical upper snake case form.
func NormalizeRole(role string) string {
	r := strings.ToUpper(strings.TrimSpace(role))
	r = strings.NewReplacer("-", "_", " ", "_").Replace(r)
	return r
}

// DeriveAccessLevel maps an actor onto exactly one access level. Unknown
// roles fall back to the least privileged level plausible for the kind.
func DeriveAccessLevel(a *Actor) AccessLevel {
	if a == nil {
		return LevelCompanyUser
	}
	switch a.Kind {
	case KindHRM8User:
		if a.HRM8 == nil {
			return LevelRegionalAdmin
		}
		switch NormalizeRole(a.HRM8.Role) {
		case "GLOBAL_ADMIN":
			return LevelGlobalAdmin
		case "REGIONAL_LICENSEE", "REGIONAL_ADMIN":
			return LevelRegionalAdmin
		default:
			return LevelRegionalAdmin
		}
	case KindConsultant:
		return LevelConsultant
	case KindCompanyUser:
		if a.Company == nil {
			return LevelCompanyUser
		}
		switch NormalizeRole(a.Company.Role) {
		case "SUPER_ADMIN", "ADMIN":
			return LevelCompanyAdmin
		case "USER", "VISITOR":
			return LevelCompanyUser
		default:
			return LevelCompanyUser
		}
	}
	return LevelCompanyUser
}
