// Package adminauth verifies the signed grants administrators present for
// session management operations. Grants are short-lived EdDSA JWTs minted by
// the tournament platform; the engine only holds the public key.
package adminauth

import (
	"crypto/ed25519"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/golang-jwt/jwt/v5"

	apperrors "github.com/louisbranch/mapveto/internal/platform/errors"
)

// Environment variable names for grant verification.
const (
	EnvGrantIssuer    = "MAPVETO_ADMIN_GRANT_ISSUER"
	EnvGrantAudience  = "MAPVETO_ADMIN_GRANT_AUDIENCE"
	EnvGrantPublicKey = "MAPVETO_ADMIN_GRANT_PUBLIC_KEY"
)

// grantEnv holds raw env values before post-parse validation.
type grantEnv struct {
	Issuer    string `env:"MAPVETO_ADMIN_GRANT_ISSUER"`
	Audience  string `env:"MAPVETO_ADMIN_GRANT_AUDIENCE"`
	PublicKey string `env:"MAPVETO_ADMIN_GRANT_PUBLIC_KEY"`
}

// Config defines how admin grants are verified.
type Config struct {
	Issuer   string
	Audience string
	Key      ed25519.PublicKey
	Now      func() time.Time
}

// Identity is the verified administrator behind a grant.
type Identity struct {
	UserID string
	Name   string
}

// grantClaims is the internal claims type used for JWT parsing.
type grantClaims struct {
	jwt.RegisteredClaims
	UserID string `json:"user_id"`
	Name   string `json:"name"`
}

// LoadConfigFromEnv reads admin grant verification configuration.
func LoadConfigFromEnv(now func() time.Time) (Config, error) {
	var raw grantEnv
	if err := env.Parse(&raw); err != nil {
		return Config{}, fmt.Errorf("parse admin grant env: %w", err)
	}
	issuer := strings.TrimSpace(raw.Issuer)
	audience := strings.TrimSpace(raw.Audience)
	publicKey := strings.TrimSpace(raw.PublicKey)
	if issuer == "" {
		return Config{}, fmt.Errorf("MAPVETO_ADMIN_GRANT_ISSUER is required")
	}
	if audience == "" {
		return Config{}, fmt.Errorf("MAPVETO_ADMIN_GRANT_AUDIENCE is required")
	}
	if publicKey == "" {
		return Config{}, fmt.Errorf("MAPVETO_ADMIN_GRANT_PUBLIC_KEY is required")
	}
	keyBytes, err := decodeBase64(publicKey)
	if err != nil {
		return Config{}, fmt.Errorf("decode admin grant public key: %w", err)
	}
	if len(keyBytes) != ed25519.PublicKeySize {
		return Config{}, fmt.Errorf("admin grant public key must be %d bytes", ed25519.PublicKeySize)
	}
	if now == nil {
		now = time.Now
	}
	return Config{
		Issuer:   issuer,
		Audience: audience,
		Key:      ed25519.PublicKey(keyBytes),
		Now:      now,
	}, nil
}

// Verify checks the grant's signature, issuer, audience, and lifetime and
// returns the administrator identity it carries.
func Verify(grant string, cfg Config) (Identity, error) {
	grant = strings.TrimSpace(grant)
	if grant == "" {
		return Identity{}, apperrors.New(apperrors.CodeAuthGrantInvalid, "admin grant is required")
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	if cfg.Issuer == "" || cfg.Audience == "" || len(cfg.Key) != ed25519.PublicKeySize {
		return Identity{}, errors.New("admin grant verifier is not configured")
	}

	var parsed grantClaims
	_, err := jwt.ParseWithClaims(grant, &parsed, func(token *jwt.Token) (any, error) {
		return cfg.Key, nil
	},
		jwt.WithValidMethods([]string{"EdDSA"}),
		jwt.WithoutClaimsValidation(),
	)
	if err != nil {
		return Identity{}, mapJWTError(err)
	}

	if parsed.Issuer == "" || parsed.Issuer != cfg.Issuer {
		return Identity{}, apperrors.WithMetadata(
			apperrors.CodeAuthGrantMismatch,
			"admin grant issuer mismatch",
			map[string]string{"Field": "issuer"},
		)
	}
	if !audienceContains(parsed.Audience, cfg.Audience) {
		return Identity{}, apperrors.WithMetadata(
			apperrors.CodeAuthGrantMismatch,
			"admin grant audience mismatch",
			map[string]string{"Field": "audience"},
		)
	}

	if parsed.ExpiresAt == nil {
		return Identity{}, apperrors.New(apperrors.CodeAuthGrantInvalid, "admin grant exp is required")
	}
	now := cfg.Now().UTC()
	if !parsed.ExpiresAt.Time.UTC().After(now) {
		return Identity{}, apperrors.New(apperrors.CodeAuthGrantExpired, "admin grant is expired")
	}
	if parsed.NotBefore != nil && now.Before(parsed.NotBefore.Time.UTC()) {
		return Identity{}, apperrors.New(apperrors.CodeAuthGrantInvalid, "admin grant not active yet")
	}

	if strings.TrimSpace(parsed.UserID) == "" {
		return Identity{}, apperrors.New(apperrors.CodeAuthGrantInvalid, "admin grant user_id is required")
	}

	return Identity{
		UserID: parsed.UserID,
		Name:   strings.TrimSpace(parsed.Name),
	}, nil
}

// mapJWTError translates jwt library errors to application errors.
func mapJWTError(err error) error {
	if errors.Is(err, jwt.ErrTokenSignatureInvalid) || errors.Is(err, jwt.ErrEd25519Verification) {
		return apperrors.New(apperrors.CodeAuthGrantInvalid, "admin grant signature is invalid")
	}
	if errors.Is(err, jwt.ErrTokenUnverifiable) {
		return apperrors.New(apperrors.CodeAuthGrantInvalid, "admin grant alg is invalid")
	}
	return apperrors.New(apperrors.CodeAuthGrantInvalid, "admin grant is invalid")
}

// audienceContains reports whether the audience list contains the given value.
func audienceContains(aud jwt.ClaimStrings, value string) bool {
	for _, item := range aud {
		if item == value {
			return true
		}
	}
	return false
}

func decodeBase64(value string) ([]byte, error) {
	if value == "" {
		return nil, errors.New("empty base64 value")
	}
	decoded, err := base64.RawStdEncoding.DecodeString(value)
	if err == nil {
		return decoded, nil
	}
	return base64.StdEncoding.DecodeString(value)
}
