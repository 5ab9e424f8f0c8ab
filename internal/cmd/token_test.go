package cmd

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hrm8/assistant/internal/actor"
	"github.com/hrm8/assistant/internal/auth"
	"github.com/hrm8/assistant/internal/config"
)

func TestTokenFlags_Actor(t *testing.T) {
	tests := []struct {
		name  string
		flags tokenFlags
		want  actor.AccessLevel
	}{
		{"company", tokenFlags{kind: "company", userID: "u1", email: "a@b.c", company: "co1", role: "ADMIN"}, actor.LevelCompanyAdmin},
		{"consultant", tokenFlags{kind: "consultant", userID: "c1", email: "a@b.c", consultant: "c1", region: "r1"}, actor.LevelConsultant},
		{"global admin", tokenFlags{kind: "HRM8", userID: "g1", email: "a@b.c", role: "GLOBAL_ADMIN"}, actor.LevelGlobalAdmin},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a, err := tt.flags.actor()
			require.NoError(t, err)
			require.NoError(t, actor.Validate(a))
			assert.Equal(t, tt.want, actor.DeriveAccessLevel(a))
		})
	}

	_, err := tokenFlags{kind: "robot"}.actor()
	assert.Error(t, err)
}

func TestTokenCmd_IssuesValidToken(t *testing.T) {
	t.Cleanup(func() { tokenOpts = tokenFlags{ttl: auth.DefaultTTL} })
	out, err := run(t, "token", "--type", "consultant", "--user", "c1", "--email", "casey@hrm8.test", "--consultant", "c1", "--region", "r1")
	require.NoError(t, err)

	cfg, err := config.Load()
	require.NoError(t, err)
	a, err := auth.NewTokenService(cfg.JWTSecret, cfg.JWTIssuer).ValidateToken(strings.TrimSpace(out))
	require.NoError(t, err)
	assert.Equal(t, "c1", a.Consultant.ConsultantID)
	assert.Equal(t, "r1", a.Consultant.RegionID)
}

func TestTokenCmd_RejectsInvalidActor(t *testing.T) {
	t.Cleanup(func() { tokenOpts = tokenFlags{ttl: auth.DefaultTTL} })
	_, err := run(t, "token", "--type", "consultant", "--user", "c1", "--email", "casey@hrm8.test", "--consultant", "c1")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "regionId")
}
