package auth

import (
	"testing"
	"time"

	"pbx-console/internal/config"
)

func TestIssueAndVerifyAccessToken(t *testing.T) {
	m, err := NewManager(config.AuthConfig{
		JWTSecret:      "secret",
		JWTIssuer:      "issuer",
		JWTAudience:    "aud",
		AccessTokenTTL: 15 * time.Minute,
	})
	if err != nil {
		t.Fatalf("manager: %v", err)
	}

	now := time.Unix(1700000000, 0).UTC()
	tok, err := m.Issue(now, "user-1", "0043", "agent", "1001")
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	if tok == "" {
		t.Fatalf("expected a token string")
	}

	claims, err := m.Verify(tok, now.Add(1*time.Minute))
	if err != nil {
		t.Fatalf("verify: %v", err)
	}
	if claims.UserID != "user-1" || claims.AccountCode != "0043" || claims.Role != "agent" {
		t.Fatalf("unexpected claims: %+v", claims)
	}
	if claims.Extension != "1001" {
		t.Fatalf("agent token must carry the extension, got %q", claims.Extension)
	}
}

func TestVerifyRejectsExpiredToken(t *testing.T) {
	m, _ := NewManager(config.AuthConfig{JWTSecret: "secret", AccessTokenTTL: time.Minute})
	now := time.Unix(1700000000, 0).UTC()
	tok, err := m.Issue(now, "u", "0043", "admin", "")
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	// Well past expiry plus leeway.
	if _, err := m.Verify(tok, now.Add(time.Hour)); err == nil {
		t.Fatalf("expected expiry error")
	}
}

func TestVerifyRejectsMissingAccountCode(t *testing.T) {
	m, _ := NewManager(config.AuthConfig{JWTSecret: "secret", AccessTokenTTL: time.Minute})
	now := time.Now()
	tok, err := m.Issue(now, "u", "", "admin", "")
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	if _, err := m.Verify(tok, now); err == nil {
		t.Fatalf("expected account_code missing error")
	}
}

func TestVerifyRejectsWrongSecret(t *testing.T) {
	m1, _ := NewManager(config.AuthConfig{JWTSecret: "secret-a", AccessTokenTTL: time.Minute})
	m2, _ := NewManager(config.AuthConfig{JWTSecret: "secret-b", AccessTokenTTL: time.Minute})
	now := time.Now()
	tok, err := m1.Issue(now, "u", "0043", "admin", "")
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	if _, err := m2.Verify(tok, now); err == nil {
		t.Fatalf("expected signature error")
	}
}
