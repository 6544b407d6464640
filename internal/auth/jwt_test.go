package auth

import (
	"testing"
	"time"
)

func TestIssueParseRoundtrip(t *testing.T) {
	token, exp, err := Issue("2021BCS001", "Asha", RoleStudent, "rollcall", "secret", time.Hour)
	if err != nil {
		t.Fatalf("Issue() error = %v", err)
	}
	if time.Until(exp) <= 0 {
		t.Fatalf("Issue() expiry %v already passed", exp)
	}

	claims, err := Parse(token, "secret", "rollcall")
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	if claims.Subject != "2021BCS001" {
		t.Errorf("Subject = %q, want 2021BCS001", claims.Subject)
	}
	if claims.Name != "Asha" {
		t.Errorf("Name = %q, want Asha", claims.Name)
	}
	if claims.Role != RoleStudent {
		t.Errorf("Role = %q, want %q", claims.Role, RoleStudent)
	}
}

func TestParseWrongKey(t *testing.T) {
	token, _, err := Issue("admin", "", RoleAdmin, "rollcall", "secret", time.Hour)
	if err != nil {
		t.Fatalf("Issue() error = %v", err)
	}
	if _, err := Parse(token, "other-secret", "rollcall"); err == nil {
		t.Error("Parse() with wrong key error = nil, want error")
	}
}

func TestParseIssuerMismatch(t *testing.T) {
	token, _, err := Issue("admin", "", RoleAdmin, "someone-else", "secret", time.Hour)
	if err != nil {
		t.Fatalf("Issue() error = %v", err)
	}
	if _, err := Parse(token, "secret", "rollcall"); err == nil {
		t.Error("Parse() with issuer mismatch error = nil, want error")
	}
}

func TestParseExpiredToken(t *testing.T) {
	token, _, err := Issue("2021BCS001", "Asha", RoleStudent, "rollcall", "secret", -time.Minute)
	if err != nil {
		t.Fatalf("Issue() error = %v", err)
	}
	if _, err := Parse(token, "secret", "rollcall"); err == nil {
		t.Error("Parse() of expired token error = nil, want error")
	}
}
