package utils

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/school-rfid-admin/internal/model"
)

func TestPasswordRoundTrip(t *testing.T) {
	hash, err := HashPassword("password123", 4)
	require.NoError(t, err)
	assert.NotEqual(t, "password123", hash)
	assert.True(t, VerifyPassword(hash, "password123"))
	assert.False(t, VerifyPassword(hash, "password124"))
	assert.False(t, VerifyPassword("not-a-hash", "password123"))
}

func TestVerifyDecoy(t *testing.T) {
	assert.False(t, VerifyDecoy("decoy-password", 4))
	assert.False(t, VerifyDecoy("anything", 4))
}

func TestAccessTokenRoundTrip(t *testing.T) {
	school := "S1"
	admin := model.User{ID: "u-1", Username: "admin1", Role: model.RoleAdmin, SchoolID: &school}

	tok, err := NewAccessToken("secret", time.Hour, admin)
	require.NoError(t, err)
	assert.WithinDuration(t, time.Now().Add(time.Hour), tok.Exp, 5*time.Second)

	claims, err := ParseToken("secret", tok.Token)
	require.NoError(t, err)
	assert.Equal(t, "u-1", claims.ID)
	assert.Equal(t, model.RoleAdmin, claims.Role)
	assert.Equal(t, "S1", claims.SchoolID)

	super := model.User{ID: "u-2", Username: "root", Role: model.RoleSuperAdmin}
	tok, err = NewAccessToken("secret", time.Hour, super)
	require.NoError(t, err)
	claims, err = ParseToken("secret", tok.Token)
	require.NoError(t, err)
	assert.Empty(t, claims.SchoolID)
}

func TestParseTokenRejects(t *testing.T) {
	u := model.User{ID: "u-1", Role: model.RoleSuperAdmin}

	good, err := NewAccessToken("secret", time.Hour, u)
	require.NoError(t, err)
	expired, err := NewAccessToken("secret", -time.Minute, u)
	require.NoError(t, err)

	none := jwt.NewWithClaims(jwt.SigningMethodNone, Claims{ID: "u-1", Role: model.RoleSuperAdmin})
	unsigned, err := none.SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)

	noID := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{Role: model.RoleAdmin})
	anonymous, err := noID.SignedString([]byte("secret"))
	require.NoError(t, err)

	tests := []struct {
		name   string
		secret string
		raw    string
	}{
		{"wrong secret", "other", good.Token},
		{"expired", "secret", expired.Token},
		{"garbage", "secret", "not.a.token"},
		{"alg none", "secret", unsigned},
		{"missing id", "secret", anonymous},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseToken(tt.secret, tt.raw)
			assert.ErrorIs(t, err, ErrInvalidToken)
		})
	}
}
