package utils // package utils provides helper functions for token creation and hashing

import (
	"errors" // sentinel errors for token parsing
	"time"   // time utilities for generating expirations

	"github.com/golang-jwt/jwt/v5" // JWT library for creating and parsing signed tokens

	"github.com/iliyamo/school-rfid-admin/internal/model"
)

// ErrInvalidToken is returned by ParseToken for any token that fails
// signature, algorithm or expiry checks.
var ErrInvalidToken = errors.New("token is invalid")

// Claims is the payload carried by every access token.  The id, role and
// schoolId keys are what the authorization middleware relies on; the
// registered claims carry expiry and issue time.
type Claims struct {
	ID       string `json:"id"`
	Role     string `json:"role"`
	SchoolID string `json:"schoolId,omitempty"`
	jwt.RegisteredClaims
}

// AccessToken represents a signed JWT access token along with its expiry.
type AccessToken struct {
	Token string    // the serialized JWT string
	Exp   time.Time // the UTC expiration time
}

// NewAccessToken builds and signs an HS256 JWT for a user.  The token
// embeds the user's id, role and (for admins) school id and expires after
// ttl.  There is no refresh mechanism: a session lasts until the token
// expires or the signing secret is rotated.
func NewAccessToken(secret string, ttl time.Duration, u model.User) (AccessToken, error) {
	now := time.Now().UTC()
	exp := now.Add(ttl)
	claims := Claims{
		ID:       u.ID,
		Role:     u.Role,
		SchoolID: u.School(),
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   u.ID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(exp),
		},
	}
	t := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := t.SignedString([]byte(secret))
	if err != nil {
		return AccessToken{}, err
	}
	return AccessToken{Token: signed, Exp: exp}, nil
}

// ParseToken verifies the signature and expiry of raw and returns its
// claims.  Tokens signed with anything other than HMAC are rejected.
func ParseToken(secret, raw string) (*Claims, error) {
	claims := &Claims{}
	tok, err := jwt.ParseWithClaims(raw, claims, func(t *jwt.Token) (interface{}, error) {
		// Type assert the signing method to HMAC; reject others.
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, ErrInvalidToken
		}
		return []byte(secret), nil
	})
	if err != nil || !tok.Valid {
		return nil, ErrInvalidToken
	}
	if claims.ID == "" || claims.Role == "" {
		return nil, ErrInvalidToken
	}
	return claims, nil
}
