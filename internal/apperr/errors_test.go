package apperr

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestErrorsAs(t *testing.T) {
	base := errors.New("boom")

	tests := []struct {
		name  string
		err   error
		check func(t *testing.T, err error)
	}{
		{
			name: "validation",
			err:  fmt.Errorf("wrapped: %w", Validationf("bad %s", "input")),
			check: func(t *testing.T, err error) {
				var target *ValidationError
				assert.True(t, errors.As(err, &target))
				assert.Equal(t, "bad input", target.Msg)
			},
		},
		{
			name: "authorization",
			err:  fmt.Errorf("wrapped: %w", Authorizationf("no access to %s", "c1")),
			check: func(t *testing.T, err error) {
				var target *AuthorizationError
				assert.True(t, errors.As(err, &target))
			},
		},
		{
			name: "tool execution unwraps",
			err:  &ToolExecutionError{Tool: "list_jobs", Err: base},
			check: func(t *testing.T, err error) {
				assert.ErrorIs(t, err, base)
				assert.Contains(t, err.Error(), "list_jobs")
			},
		},
		{
			name: "provider unwraps",
			err:  &ProviderError{Provider: "openai", Err: base},
			check: func(t *testing.T, err error) {
				assert.ErrorIs(t, err, base)
				assert.Equal(t, "provider openai: boom", err.Error())
			},
		},
		{
			name: "audit write unwraps",
			err:  &AuditWriteError{Err: base},
			check: func(t *testing.T, err error) {
				assert.ErrorIs(t, err, base)
			},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.check(t, tt.err)
		})
	}
}
