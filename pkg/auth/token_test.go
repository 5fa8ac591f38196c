package auth

import (
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/angelmondragon/tourbook-backend/pkg/config"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

func testJWTConfig() config.JWTConfig {
	return config.JWTConfig{
		Secret:            "secret",
		Issuer:            "tourbook",
		ExpirationMinutes: 30,
	}
}

func TestMintAndParseAccessToken(t *testing.T) {
	cfg := testJWTConfig()
	now := time.Now().UTC()
	userID := uuid.New()

	token, err := MintAccessToken(cfg, now, userID)
	if err != nil {
		t.Fatalf("mint access token: %v", err)
	}

	claims, err := ParseAccessToken(cfg, time.Now(), token)
	if err != nil {
		t.Fatalf("parse access token: %v", err)
	}
	if claims.UserID != userID {
		t.Fatalf("expected user_id %s, got %s", userID, claims.UserID)
	}
	if claims.Issuer != cfg.Issuer {
		t.Fatalf("unexpected issuer %s", claims.Issuer)
	}
	if claims.ID == "" {
		t.Fatal("expected jti to be set")
	}
	if !claims.IssuedAtTime().Equal(now.Truncate(time.Microsecond)) {
		t.Fatalf("expected microsecond issuance %v, got %v", now, claims.IssuedAtTime())
	}
	if got := claims.ExpiresAtTime().Sub(now); got > 30*time.Minute || got < 29*time.Minute {
		t.Fatalf("unexpected ttl %v", got)
	}
}

func TestMintAccessTokenDistinctIDs(t *testing.T) {
	cfg := testJWTConfig()
	now := time.Now()
	userID := uuid.New()

	first, _ := MintAccessToken(cfg, now, userID)
	second, _ := MintAccessToken(cfg, now, userID)
	if first == second {
		t.Fatal("expected distinct tokens for the same user and instant")
	}
}

func TestMintAccessTokenValidatesConfig(t *testing.T) {
	cases := []config.JWTConfig{
		{Issuer: "tourbook", ExpirationMinutes: 30},
		{Secret: "secret", ExpirationMinutes: 30},
		{Secret: "secret", Issuer: "tourbook"},
	}
	for _, cfg := range cases {
		if _, err := MintAccessToken(cfg, time.Now(), uuid.New()); err == nil {
			t.Fatalf("expected error for config %+v", cfg)
		}
	}
	if _, err := MintAccessToken(testJWTConfig(), time.Now(), uuid.Nil); err == nil {
		t.Fatal("expected error for nil user id")
	}
}

func TestParseAccessTokenExpired(t *testing.T) {
	cfg := testJWTConfig()
	token, err := MintAccessToken(cfg, time.Now().Add(-2*time.Hour), uuid.New())
	if err != nil {
		t.Fatalf("mint: %v", err)
	}

	_, err = ParseAccessToken(cfg, time.Now(), token)
	if !errors.Is(err, ErrTokenExpired) {
		t.Fatalf("expected ErrTokenExpired, got %v", err)
	}
}

func TestParseAccessTokenRejectsTampering(t *testing.T) {
	cfg := testJWTConfig()
	token, err := MintAccessToken(cfg, time.Now(), uuid.New())
	if err != nil {
		t.Fatalf("mint: %v", err)
	}

	other := cfg
	other.Secret = "other-secret"
	if _, err := ParseAccessToken(other, time.Now(), token); !errors.Is(err, ErrTokenInvalid) {
		t.Fatalf("expected ErrTokenInvalid for wrong secret, got %v", err)
	}

	foreign := cfg
	foreign.Issuer = "someone-else"
	if _, err := ParseAccessToken(foreign, time.Now(), token); !errors.Is(err, ErrTokenInvalid) {
		t.Fatalf("expected ErrTokenInvalid for wrong issuer, got %v", err)
	}

	parts := strings.Split(token, ".")
	parts[1] = parts[1] + "x"
	if _, err := ParseAccessToken(cfg, time.Now(), strings.Join(parts, ".")); !errors.Is(err, ErrTokenInvalid) {
		t.Fatalf("expected ErrTokenInvalid for modified payload, got %v", err)
	}

	if _, err := ParseAccessToken(cfg, time.Now(), "not-a-jwt"); !errors.Is(err, ErrTokenInvalid) {
		t.Fatalf("expected ErrTokenInvalid for garbage, got %v", err)
	}
}

func TestParseAccessTokenRejectsNoneAlgorithm(t *testing.T) {
	cfg := testJWTConfig()
	claims := AccessTokenClaims{
		UserID: uuid.New(),
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    cfg.Issuer,
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	}
	unsigned, err := jwt.NewWithClaims(jwt.SigningMethodNone, claims).SignedString(jwt.UnsafeAllowNoneSignatureType)
	if err != nil {
		t.Fatalf("sign none: %v", err)
	}
	if _, err := ParseAccessToken(cfg, time.Now(), unsigned); !errors.Is(err, ErrTokenInvalid) {
		t.Fatalf("expected ErrTokenInvalid for alg none, got %v", err)
	}
}

func TestParseAccessTokenToleratesIssuerAhead(t *testing.T) {
	cfg := testJWTConfig()
	verifier := time.Now().UTC()

	token, err := MintAccessToken(cfg, verifier.Add(500*time.Millisecond), uuid.New())
	if err != nil {
		t.Fatalf("mint: %v", err)
	}
	if _, err := ParseAccessToken(cfg, verifier, token); err != nil {
		t.Fatalf("token from a slightly fast clock rejected: %v", err)
	}

	future, err := MintAccessToken(cfg, verifier.Add(5*time.Minute), uuid.New())
	if err != nil {
		t.Fatalf("mint: %v", err)
	}
	if _, err := ParseAccessToken(cfg, verifier, future); !errors.Is(err, ErrTokenInvalid) {
		t.Fatalf("expected ErrTokenInvalid for far-future token, got %v", err)
	}
}

func TestParseAccessTokenUsesGivenClock(t *testing.T) {
	cfg := testJWTConfig()
	issued := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	token, err := MintAccessToken(cfg, issued, uuid.New())
	if err != nil {
		t.Fatalf("mint: %v", err)
	}

	if _, err := ParseAccessToken(cfg, issued.Add(10*time.Minute), token); err != nil {
		t.Fatalf("parse within ttl: %v", err)
	}
	if _, err := ParseAccessToken(cfg, issued.Add(cfg.TokenTTL()+time.Minute), token); !errors.Is(err, ErrTokenExpired) {
		t.Fatalf("expected ErrTokenExpired past ttl, got %v", err)
	}
}
