package tools

import "fmt"

// Sensitivity classifies a tool's output and drives redaction and auditing.
type Sensitivity int

const (
	SensitivityLow Sensitivity = iota + 1
	SensitivityMedium
	SensitivityHigh
	SensitivityCritical
)

func (s Sensitivity) String() string {
	switch s {
	case SensitivityLow:
		return "LOW"
	case SensitivityMedium:
		return "MEDIUM"
	case SensitivityHigh:
		return "HIGH"
	case SensitivityCritical:
		return "CRITICAL"
	}
	return fmt.Sprintf("Sensitivity(%d)", int(s))
}

// MarshalText implements encoding.TextMarshaler.
func (s Sensitivity) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// Audited reports whether invocations at this level must be audited.
func (s Sensitivity) Audited() bool {
	return s >= SensitivityHigh
}
