package auth_test

import (
	"errors"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hrm8/assistant/internal/actor"
	"github.com/hrm8/assistant/internal/auth"
)

const testKey = "test-signing-key-must-be-32-chars!!"

func TestTokenService_RoundTripsEveryKind(t *testing.T) {
	svc := auth.NewTokenService(testKey, "hrm8")

	actors := []*actor.Actor{
		actor.NewCompanyUser("u-co1-admin", "ada@acme.test", "co1", "ADMIN"),
		actor.NewHRM8User("u-regional", "rex@hrm8.test", "REGIONAL_LICENSEE", "l1", []string{"r1", "r2"}),
		actor.NewHRM8User("u-global", "grace@hrm8.test", "GLOBAL_ADMIN", "", nil),
		actor.NewConsultant("c1", "casey@hrm8.test", "c1", "r1"),
	}
	for _, a := range actors {
		t.Run(string(a.Kind)+"/"+a.UserID, func(t *testing.T) {
			token, err := svc.IssueToken(a, time.Hour)
			require.NoError(t, err)

			got, err := svc.ValidateToken(token)
			require.NoError(t, err)
			assert.Equal(t, a, got)
			assert.NoError(t, actor.Validate(got))
		})
	}
}

func TestTokenService_Expired(t *testing.T) {
	svc := auth.NewTokenService(testKey, "hrm8")
	claims := jwt.RegisteredClaims{
		Issuer:    "hrm8",
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(-time.Minute)),
	}
	expired, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(testKey))
	require.NoError(t, err)

	_, err = svc.ValidateToken(expired)
	assert.True(t, errors.Is(err, auth.ErrTokenExpired))
}

func TestTokenService_DefaultTTL(t *testing.T) {
	svc := auth.NewTokenService(testKey, "hrm8")
	token, err := svc.IssueToken(actor.NewConsultant("c1", "casey@hrm8.test", "c1", "r1"), 0)
	require.NoError(t, err)

	parsed, _, err := jwt.NewParser().ParseUnverified(token, &jwt.RegisteredClaims{})
	require.NoError(t, err)
	exp, err := parsed.Claims.GetExpirationTime()
	require.NoError(t, err)
	assert.WithinDuration(t, time.Now().Add(auth.DefaultTTL), exp.Time, time.Minute)
}

func TestTokenService_Rejects(t *testing.T) {
	svc := auth.NewTokenService(testKey, "hrm8")
	a := actor.NewConsultant("c1", "casey@hrm8.test", "c1", "r1")

	other, err := auth.NewTokenService("another-signing-key-32-chars-long!!", "hrm8").IssueToken(a, time.Hour)
	require.NoError(t, err)
	_, err = svc.ValidateToken(other)
	assert.True(t, errors.Is(err, auth.ErrTokenInvalid), "wrong key")

	wrongIssuer, err := auth.NewTokenService(testKey, "someone-else").IssueToken(a, time.Hour)
	require.NoError(t, err)
	_, err = svc.ValidateToken(wrongIssuer)
	assert.True(t, errors.Is(err, auth.ErrTokenInvalid), "wrong issuer")

	noExpiry, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{Issuer: "hrm8"}).SignedString([]byte(testKey))
	require.NoError(t, err)
	_, err = svc.ValidateToken(noExpiry)
	assert.True(t, errors.Is(err, auth.ErrTokenInvalid), "missing exp")

	_, err = svc.ValidateToken("not.a.jwt")
	assert.True(t, errors.Is(err, auth.ErrTokenInvalid))

	_, err = svc.IssueToken(nil, time.Hour)
	assert.Error(t, err)
}
