package utils // package utils provides helper functions for token creation and hashing

import (
	"crypto/rand"   // secure random number generation
	"crypto/sha256" // SHA-256 hashing for refresh tokens
	"encoding/hex"  // hex encoding functions
	"time"          // time utilities for generating expirations

	"github.com/golang-jwt/jwt/v5" // JWT library for creating signed tokens
)

// AccessToken represents a signed JWT access token along with its expiry.
// Access tokens are short-lived and carried in the Authorization header
// when calling protected endpoints.
type AccessToken struct {
	Token string    // the serialized JWT string
	Exp   time.Time // the UTC expiration time
}

// RefreshToken represents a long-lived token used to obtain new access
// tokens. Only a SHA-256 hash of the raw string is stored in the database.
type RefreshToken struct {
	Raw string    // raw token string returned to the client
	Exp time.Time // UTC expiration time
}

// IdentityClaims carries everything a token needs to say about who the
// caller is. The sector id is set for every role; stage and unit fields are
// populated only for accounts of that role, so clients and middleware can
// resolve the owning entity without a directory lookup.
type IdentityClaims struct {
	UserID    string
	Email     string
	Role      string // admin | stage | unit
	SectorID  string
	StageID   string
	StageName string
	UnitID    string
	UnitName  string
}

// NewAccessToken builds and signs an HS256 JWT for the given identity. The
// JWT includes the standard sub/exp/iat claims plus role, email, sector_id
// and, where applicable, the stage or unit the account operates.
func NewAccessToken(secret string, id IdentityClaims, ttlMin int) (AccessToken, error) {
	exp := time.Now().UTC().Add(time.Duration(ttlMin) * time.Minute)
	claims := jwt.MapClaims{
		"sub":       id.UserID,
		"email":     id.Email,
		"role":      id.Role,
		"sector_id": id.SectorID,
		"exp":       exp.Unix(),
		"iat":       time.Now().UTC().Unix(),
	}
	if id.StageID != "" {
		claims["stage_id"] = id.StageID
		claims["stage_name"] = id.StageName
	}
	if id.UnitID != "" {
		claims["unit_id"] = id.UnitID
		claims["unit_name"] = id.UnitName
	}
	t := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := t.SignedString([]byte(secret))
	if err != nil {
		return AccessToken{}, err
	}
	return AccessToken{Token: signed, Exp: exp}, nil
}

// NewRefreshToken returns a cryptographically secure random token (raw) and
// its expiration time.
func NewRefreshToken(ttlDays int) (RefreshToken, error) {
	raw, err := randomHex(48) // 48 bytes -> 96 hex chars
	if err != nil {
		return RefreshToken{}, err
	}
	return RefreshToken{
		Raw: raw,
		Exp: time.Now().UTC().Add(time.Duration(ttlDays) * 24 * time.Hour),
	}, nil
}

// HashRefreshRaw returns the SHA-256 hash of the raw refresh token as a hex
// string. Storing only the hash prevents stolen database rows from being
// replayed as sessions.
func HashRefreshRaw(raw string) string {
	sum := sha256.Sum256([]byte(raw))
	return hex.EncodeToString(sum[:])
}

// randomHex returns a hex-encoded string generated from n bytes of
// cryptographically secure random data.
func randomHex(n int) (string, error) {
	buf := make([]byte, n)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return hex.EncodeToString(buf), nil
}
