package policy

import (
	"github.com/hrm8/assistant/internal/actor"
	"github.com/hrm8/assistant/internal/tools"
)

var (
	companyFinancialFields = map[string]bool{
		"commissionAmount": true,
		"salary":           true,
		"offerAmount":      true,
		"revenue":          true,
		"amount":           true,
		"value":            true,
	}
	consultantPeerFields = map[string]bool{
		"commissionAmount": true,
		"amount":           true,
	}
)

// RedactSensitiveData removes financial fields the actor may not see. It
// walks maps and slices recursively, returns a copy and leaves data untouched.
// Company users lose every financial field at HIGH and above. Consultants
// lose commission amounts at CRITICAL on records whose consultantId is not
// their own user ID.
// Values that are not JSON-shaped (map[string]any, []any) pass through.
func RedactSensitiveData(a *actor.Actor, data any, sensitivity tools.Sensitivity) any {
	if a == nil || data == nil {
		return data
	}
	switch a.Kind {
	case actor.KindCompanyUser:
		if sensitivity >= tools.SensitivityHigh {
			return redact(data, func(map[string]any) map[string]bool { return companyFinancialFields })
		}
	case actor.KindConsultant:
		if sensitivity == tools.SensitivityCritical {
			self := a.UserID
			return redact(data, func(rec map[string]any) map[string]bool {
				owner, ok := rec["consultantId"].(string)
				if ok && owner != self {
					return consultantPeerFields
				}
				return nil
			})
		}
	}
	return data
}

// redact copies v, dropping the keys fieldsFor selects on each object.
func redact(v any, fieldsFor func(map[string]any) map[string]bool) any {
	switch val := v.(type) {
	case map[string]any:
		drop := fieldsFor(val)
		out := make(map[string]any, len(val))
		for k, child := range val {
			if drop[k] {
				continue
			}
			out[k] = redact(child, fieldsFor)
		}
		return out
	case []any:
		out := make([]any, len(val))
		for i, child := range val {
			out[i] = redact(child, fieldsFor)
		}
		return out
	case []map[string]any:
		out := make([]any, len(val))
		for i, child := range val {
			out[i] = redact(child, fieldsFor)
		}
		return out
	default:
		return v
	}
}
