package tools

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hrm8/assistant/internal/actor"
	"github.com/hrm8/assistant/internal/apperr"
)

func stubRun(context.Context, map[string]any, *actor.Actor) (any, error) {
	return map[string]any{"ok": true}, nil
}

func def(name string, levels ...actor.AccessLevel) Definition {
	return Definition{
		Name:          name,
		Description:   "stub " + name,
		Parameters:    json.RawMessage(`{"type":"object","properties":{"status":{"type":"string","enum":["OPEN","CLOSED"]}},"additionalProperties":false}`),
		AllowedLevels: levels,
		Sensitivity:   SensitivityLow,
		Run:           stubRun,
	}
}

func TestNewRegistry_ConcatenatesGroups(t *testing.T) {
	r, err := NewRegistry(
		[]Definition{def("zeta", actor.LevelGlobalAdmin)},
		[]Definition{def("alpha", actor.LevelConsultant), def("mid", actor.LevelCompanyUser)},
	)
	require.NoError(t, err)
	assert.Equal(t, []string{"alpha", "mid", "zeta"}, r.Names())

	got, ok := r.Get("alpha")
	require.True(t, ok)
	assert.Equal(t, "stub alpha", got.Description)

	_, ok = r.Get("missing")
	assert.False(t, ok)
}

func TestNewRegistry_FailsFast(t *testing.T) {
	tests := []struct {
		name    string
		groups  [][]Definition
		wantErr string
	}{
		{"duplicate across groups", [][]Definition{{def("a")}, {def("a")}}, "duplicate tool registration: a"},
		{"empty name", [][]Definition{{def(" ")}}, "empty name"},
		{"missing run", [][]Definition{{{Name: "x"}}}, "no run function"},
		{"bad schema", [][]Definition{{{Name: "x", Run: stubRun, Parameters: json.RawMessage(`{"type":42}`)}}}, "compiling parameter schema"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewRegistry(tt.groups...)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestRegistry_Allowed(t *testing.T) {
	r, err := NewRegistry([]Definition{
		def("admin_only", actor.LevelGlobalAdmin, actor.LevelRegionalAdmin),
		def("everyone", actor.AllLevels...),
		def("consultant_only", actor.LevelConsultant),
	})
	require.NoError(t, err)

	consultant := actor.NewConsultant("c1", "c@x", "c1", "r1")
	names := func(defs []Definition) []string {
		out := []string{}
		for _, d := range defs {
			out = append(out, d.Name)
		}
		return out
	}
	assert.Equal(t, []string{"consultant_only", "everyone"}, names(r.Allowed(consultant)))

	regional := actor.NewHRM8User("u", "e", "REGIONAL_LICENSEE", "", []string{"r1"})
	assert.Equal(t, []string{"admin_only", "everyone"}, names(r.Allowed(regional)))

	for _, a := range []*actor.Actor{consultant, regional} {
		for _, d := range r.Allowed(a) {
			assert.True(t, d.Allows(actor.DeriveAccessLevel(a)))
		}
	}
}

func TestRegistry_ValidateArgs(t *testing.T) {
	r, err := NewRegistry([]Definition{def("list", actor.LevelConsultant), {Name: "noschema", Run: stubRun}})
	require.NoError(t, err)
	list, _ := r.Get("list")
	noschema, _ := r.Get("noschema")

	assert.NoError(t, r.ValidateArgs(list, map[string]any{"status": "OPEN"}))
	assert.NoError(t, r.ValidateArgs(list, nil))
	assert.NoError(t, r.ValidateArgs(noschema, map[string]any{"anything": 1}))

	err = r.ValidateArgs(list, map[string]any{"status": "PENDING"})
	require.Error(t, err)
	var verr *apperr.ValidationError
	assert.True(t, errors.As(err, &verr))

	err = r.ValidateArgs(list, map[string]any{"extra": true})
	assert.Error(t, err)

	err = r.ValidateArgs(Definition{Name: "unknown"}, nil)
	assert.Error(t, err)
}

func TestDeclarations(t *testing.T) {
	decls := Declarations([]Definition{def("list", actor.LevelConsultant)})
	require.Len(t, decls, 1)
	assert.Equal(t, "list", decls[0].Name)
	assert.JSONEq(t, string(def("x").Parameters), string(decls[0].Parameters))
}

func TestSensitivity(t *testing.T) {
	assert.False(t, SensitivityLow.Audited())
	assert.False(t, SensitivityMedium.Audited())
	assert.True(t, SensitivityHigh.Audited())
	assert.True(t, SensitivityCritical.Audited())
	assert.Equal(t, "CRITICAL", SensitivityCritical.String())
}
