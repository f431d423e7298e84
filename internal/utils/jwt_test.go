package utils

import (
	"testing"

	"github.com/golang-jwt/jwt/v5"
)

func TestAccessTokenCarriesIdentityClaims(t *testing.T) {
	const secret = "test-secret"
	id := IdentityClaims{
		UserID:   "user-1",
		Email:    "alpha@x",
		Role:     "unit",
		SectorID: "sec-1",
		UnitID:   "unit-1",
		UnitName: "Alpha",
	}
	tok, err := NewAccessToken(secret, id, 15)
	if err != nil {
		t.Fatalf("sign: %v", err)
	}

	parsed, err := jwt.Parse(tok.Token, func(t *jwt.Token) (interface{}, error) {
		return []byte(secret), nil
	})
	if err != nil || !parsed.Valid {
		t.Fatalf("parse: %v", err)
	}
	claims := parsed.Claims.(jwt.MapClaims)
	want := map[string]string{
		"sub":       "user-1",
		"email":     "alpha@x",
		"role":      "unit",
		"sector_id": "sec-1",
		"unit_id":   "unit-1",
		"unit_name": "Alpha",
	}
	for k, v := range want {
		if claims[k] != v {
			t.Fatalf("claim %s = %v, want %s", k, claims[k], v)
		}
	}
	// A unit token does not carry stage claims.
	if _, ok := claims["stage_id"]; ok {
		t.Fatalf("unexpected stage_id claim on unit token")
	}
}

func TestRefreshTokenHashing(t *testing.T) {
	r1, err := NewRefreshToken(7)
	if err != nil {
		t.Fatalf("new refresh: %v", err)
	}
	r2, err := NewRefreshToken(7)
	if err != nil {
		t.Fatalf("new refresh: %v", err)
	}
	if r1.Raw == r2.Raw {
		t.Fatalf("refresh tokens must be unique")
	}
	if HashRefreshRaw(r1.Raw) == HashRefreshRaw(r2.Raw) {
		t.Fatalf("hashes must differ for different tokens")
	}
	if HashRefreshRaw(r1.Raw) != HashRefreshRaw(r1.Raw) {
		t.Fatalf("hash must be deterministic")
	}
}
