package token

import (
	"crypto/ed25519"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"testing"
	"time"

	apperrors "github.com/selo-app/selo/internal/platform/errors"
)

func testConfig(t *testing.T) Config {
	t.Helper()
	publicKey, privateKey, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		t.Fatalf("generate key: %v", err)
	}
	return Config{
		Issuer:     "selo-loyalty",
		Audience:   "selo-redemptions",
		PrivateKey: privateKey,
		PublicKey:  publicKey,
		TTL:        DefaultTTL,
		Now: func() time.Time {
			return time.Date(2026, 6, 1, 12, 0, 0, 0, time.UTC)
		},
	}
}

func wantTokenInvalid(t *testing.T, err error) {
	t.Helper()
	var domainErr *apperrors.Error
	if !errors.As(err, &domainErr) {
		t.Fatalf("error type = %T (%v), want *apperrors.Error", err, err)
	}
	if domainErr.Code != apperrors.CodeTokenInvalid {
		t.Fatalf("code = %s, want %s", domainErr.Code, apperrors.CodeTokenInvalid)
	}
}

func TestMintAndVerify(t *testing.T) {
	cfg := testConfig(t)

	signed, err := Mint("rdm_1", "crd_1", "lnk_1", cfg)
	if err != nil {
		t.Fatalf("mint: %v", err)
	}

	claims, err := Verify(signed, cfg)
	if err != nil {
		t.Fatalf("verify: %v", err)
	}
	if claims.RedemptionID != "rdm_1" {
		t.Fatalf("redemption id = %s, want rdm_1", claims.RedemptionID)
	}
	if claims.InstanceID != "crd_1" || claims.LinkID != "lnk_1" {
		t.Fatalf("claims = %+v", claims)
	}
	if want := cfg.Now().Add(DefaultTTL); !claims.ExpiresAt.Equal(want) {
		t.Fatalf("expires at = %v, want %v", claims.ExpiresAt, want)
	}
}

func TestVerifyRejectsExpiredToken(t *testing.T) {
	cfg := testConfig(t)
	signed, err := Mint("rdm_1", "crd_1", "lnk_1", cfg)
	if err != nil {
		t.Fatalf("mint: %v", err)
	}

	late := cfg
	late.Now = func() time.Time { return cfg.Now().Add(DefaultTTL + time.Second) }
	_, err = Verify(signed, late)
	wantTokenInvalid(t, err)
}

func TestVerifyRejectsWrongKey(t *testing.T) {
	cfg := testConfig(t)
	signed, err := Mint("rdm_1", "crd_1", "lnk_1", cfg)
	if err != nil {
		t.Fatalf("mint: %v", err)
	}

	other := testConfig(t)
	other.Issuer = cfg.Issuer
	other.Audience = cfg.Audience
	_, err = Verify(signed, other)
	wantTokenInvalid(t, err)
}

func TestVerifyRejectsIssuerAndAudienceMismatch(t *testing.T) {
	cfg := testConfig(t)
	signed, err := Mint("rdm_1", "crd_1", "lnk_1", cfg)
	if err != nil {
		t.Fatalf("mint: %v", err)
	}

	wrongIssuer := cfg
	wrongIssuer.Issuer = "other"
	_, err = Verify(signed, wrongIssuer)
	wantTokenInvalid(t, err)

	wrongAudience := cfg
	wrongAudience.Audience = "other"
	_, err = Verify(signed, wrongAudience)
	wantTokenInvalid(t, err)
}

func TestVerifyRejectsEmptyToken(t *testing.T) {
	_, err := Verify("  ", testConfig(t))
	wantTokenInvalid(t, err)
}

func TestMintRequiresIdentity(t *testing.T) {
	cfg := testConfig(t)
	if _, err := Mint("", "crd_1", "lnk_1", cfg); err == nil {
		t.Fatal("expected error for missing redemption id")
	}
	cfg.PrivateKey = nil
	if _, err := Mint("rdm_1", "crd_1", "lnk_1", cfg); err == nil {
		t.Fatal("expected error for missing private key")
	}
}

func TestLoadConfigFromEnv(t *testing.T) {
	publicKey, privateKey, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		t.Fatalf("generate key: %v", err)
	}
	t.Setenv("SELO_REDEMPTION_TOKEN_ISSUER", "selo-loyalty")
	t.Setenv("SELO_REDEMPTION_TOKEN_AUDIENCE", "selo-redemptions")
	t.Setenv("SELO_REDEMPTION_TOKEN_PRIVATE_KEY", base64.RawStdEncoding.EncodeToString(privateKey))
	t.Setenv("SELO_REDEMPTION_TOKEN_PUBLIC_KEY", base64.RawStdEncoding.EncodeToString(publicKey))
	t.Setenv("SELO_REDEMPTION_TOKEN_TTL", "5m")

	cfg, err := LoadConfigFromEnv(nil)
	if err != nil {
		t.Fatalf("load config: %v", err)
	}
	if cfg.Issuer != "selo-loyalty" || cfg.Audience != "selo-redemptions" {
		t.Fatalf("config = %+v", cfg)
	}
	if cfg.TTL != 5*time.Minute {
		t.Fatalf("ttl = %v, want 5m", cfg.TTL)
	}

	signed, err := Mint("rdm_1", "crd_1", "lnk_1", cfg)
	if err != nil {
		t.Fatalf("mint with env config: %v", err)
	}
	if _, err := Verify(signed, cfg); err != nil {
		t.Fatalf("verify with env config: %v", err)
	}
}

func TestLoadConfigFromEnvMissingIssuer(t *testing.T) {
	t.Setenv("SELO_REDEMPTION_TOKEN_ISSUER", "")
	t.Setenv("SELO_REDEMPTION_TOKEN_AUDIENCE", "selo-redemptions")
	t.Setenv("SELO_REDEMPTION_TOKEN_PUBLIC_KEY", base64.RawStdEncoding.EncodeToString(make([]byte, ed25519.PublicKeySize)))

	if _, err := LoadConfigFromEnv(nil); err == nil {
		t.Fatal("expected error for missing issuer")
	}
}
