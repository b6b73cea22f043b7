// Package token mints and verifies single-use redemption tokens.
//
// A token is an EdDSA-signed JWT whose jti is the redemption record ID; the
// store marks that ID used on first consumption, so a replayed token fails
// even though the signature still verifies.
package token

import (
	"crypto/ed25519"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/golang-jwt/jwt/v5"

	apperrors "github.com/selo-app/selo/internal/platform/errors"
)

// DefaultTTL bounds how long a minted token stays consumable.
const DefaultTTL = 15 * time.Minute

// tokenEnv holds raw env values before post-parse validation.
type tokenEnv struct {
	Issuer     string        `env:"SELO_REDEMPTION_TOKEN_ISSUER"`
	Audience   string        `env:"SELO_REDEMPTION_TOKEN_AUDIENCE"`
	PrivateKey string        `env:"SELO_REDEMPTION_TOKEN_PRIVATE_KEY"`
	PublicKey  string        `env:"SELO_REDEMPTION_TOKEN_PUBLIC_KEY"`
	TTL        time.Duration `env:"SELO_REDEMPTION_TOKEN_TTL"`
}

// Config defines how redemption tokens are signed and verified.
type Config struct {
	Issuer     string
	Audience   string
	PrivateKey ed25519.PrivateKey
	PublicKey  ed25519.PublicKey
	TTL        time.Duration
	Now        func() time.Time
}

// Claims captures validated redemption token claims.
type Claims struct {
	// RedemptionID is the jti, the single-use handle the store tracks.
	RedemptionID string
	InstanceID   string
	LinkID       string
	ExpiresAt    time.Time
	IssuedAt     time.Time
}

// redemptionClaims is the internal claims type used for JWT parsing.
type redemptionClaims struct {
	jwt.RegisteredClaims
	InstanceID string `json:"instance_id"`
	LinkID     string `json:"link_id"`
}

// LoadConfigFromEnv reads redemption token configuration. The private key is
// optional so verify-only processes can run without signing material.
func LoadConfigFromEnv(now func() time.Time) (Config, error) {
	var raw tokenEnv
	if err := env.Parse(&raw); err != nil {
		return Config{}, fmt.Errorf("parse redemption token env: %w", err)
	}
	issuer := strings.TrimSpace(raw.Issuer)
	audience := strings.TrimSpace(raw.Audience)
	publicKey := strings.TrimSpace(raw.PublicKey)
	if issuer == "" {
		return Config{}, fmt.Errorf("SELO_REDEMPTION_TOKEN_ISSUER is required")
	}
	if audience == "" {
		return Config{}, fmt.Errorf("SELO_REDEMPTION_TOKEN_AUDIENCE is required")
	}
	if publicKey == "" {
		return Config{}, fmt.Errorf("SELO_REDEMPTION_TOKEN_PUBLIC_KEY is required")
	}
	publicBytes, err := decodeBase64(publicKey)
	if err != nil {
		return Config{}, fmt.Errorf("decode redemption token public key: %w", err)
	}
	if len(publicBytes) != ed25519.PublicKeySize {
		return Config{}, fmt.Errorf("redemption token public key must be %d bytes", ed25519.PublicKeySize)
	}
	cfg := Config{
		Issuer:    issuer,
		Audience:  audience,
		PublicKey: ed25519.PublicKey(publicBytes),
		TTL:       raw.TTL,
	}
	if privateKey := strings.TrimSpace(raw.PrivateKey); privateKey != "" {
		privateBytes, err := decodeBase64(privateKey)
		if err != nil {
			return Config{}, fmt.Errorf("decode redemption token private key: %w", err)
		}
		if len(privateBytes) != ed25519.PrivateKeySize {
			return Config{}, fmt.Errorf("redemption token private key must be %d bytes", ed25519.PrivateKeySize)
		}
		cfg.PrivateKey = ed25519.PrivateKey(privateBytes)
	}
	if cfg.TTL <= 0 {
		cfg.TTL = DefaultTTL
	}
	if now == nil {
		now = time.Now
	}
	cfg.Now = now
	return cfg, nil
}

// Mint signs a redemption token for the given redemption record.
func Mint(redemptionID, instanceID, linkID string, cfg Config) (string, error) {
	if len(cfg.PrivateKey) != ed25519.PrivateKeySize {
		return "", errors.New("redemption token signer is not configured")
	}
	if redemptionID == "" || instanceID == "" || linkID == "" {
		return "", errors.New("redemption token identity is incomplete")
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	ttl := cfg.TTL
	if ttl <= 0 {
		ttl = DefaultTTL
	}

	now := cfg.Now().UTC()
	claims := redemptionClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    cfg.Issuer,
			Audience:  jwt.ClaimStrings{cfg.Audience},
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
			ID:        redemptionID,
		},
		InstanceID: instanceID,
		LinkID:     linkID,
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodEdDSA, claims).SignedString(cfg.PrivateKey)
	if err != nil {
		return "", fmt.Errorf("sign redemption token: %w", err)
	}
	return signed, nil
}

// Verify checks a redemption token's signature and claims. Single-use
// enforcement happens at the store; Verify only proves authenticity and
// freshness.
func Verify(tokenStr string, cfg Config) (Claims, error) {
	tokenStr = strings.TrimSpace(tokenStr)
	if tokenStr == "" {
		return Claims{}, apperrors.New(apperrors.CodeTokenInvalid, "redemption token is required")
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	if cfg.Issuer == "" || cfg.Audience == "" || len(cfg.PublicKey) != ed25519.PublicKeySize {
		return Claims{}, errors.New("redemption token verifier is not configured")
	}

	var parsed redemptionClaims
	_, err := jwt.ParseWithClaims(tokenStr, &parsed, func(token *jwt.Token) (any, error) {
		return cfg.PublicKey, nil
	},
		jwt.WithValidMethods([]string{"EdDSA"}),
		jwt.WithoutClaimsValidation(),
	)
	if err != nil {
		return Claims{}, mapJWTError(err)
	}

	if parsed.Issuer == "" || parsed.Issuer != cfg.Issuer {
		return Claims{}, apperrors.WithMetadata(
			apperrors.CodeTokenInvalid,
			"redemption token issuer mismatch",
			map[string]string{"Field": "issuer"},
		)
	}
	if !audienceContains(parsed.Audience, cfg.Audience) {
		return Claims{}, apperrors.WithMetadata(
			apperrors.CodeTokenInvalid,
			"redemption token audience mismatch",
			map[string]string{"Field": "audience"},
		)
	}
	if parsed.ID == "" {
		return Claims{}, apperrors.New(apperrors.CodeTokenInvalid, "redemption token jti is required")
	}
	if strings.TrimSpace(parsed.InstanceID) == "" {
		return Claims{}, apperrors.New(apperrors.CodeTokenInvalid, "redemption token instance is required")
	}
	if strings.TrimSpace(parsed.LinkID) == "" {
		return Claims{}, apperrors.New(apperrors.CodeTokenInvalid, "redemption token reward link is required")
	}
	if parsed.ExpiresAt == nil {
		return Claims{}, apperrors.New(apperrors.CodeTokenInvalid, "redemption token exp is required")
	}

	now := cfg.Now().UTC()
	exp := parsed.ExpiresAt.Time.UTC()
	if !exp.After(now) {
		return Claims{}, apperrors.New(apperrors.CodeTokenInvalid, "redemption token is expired")
	}

	claims := Claims{
		RedemptionID: parsed.ID,
		InstanceID:   parsed.InstanceID,
		LinkID:       parsed.LinkID,
		ExpiresAt:    exp,
	}
	if parsed.IssuedAt != nil {
		claims.IssuedAt = parsed.IssuedAt.Time.UTC()
	}
	return claims, nil
}

// mapJWTError translates jwt library errors to application errors.
func mapJWTError(err error) error {
	if errors.Is(err, jwt.ErrTokenSignatureInvalid) || errors.Is(err, jwt.ErrEd25519Verification) {
		return apperrors.New(apperrors.CodeTokenInvalid, "redemption token signature is invalid")
	}
	if errors.Is(err, jwt.ErrTokenUnverifiable) {
		return apperrors.New(apperrors.CodeTokenInvalid, "redemption token alg is invalid")
	}
	return apperrors.New(apperrors.CodeTokenInvalid, "redemption token is invalid")
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
