package auth

import (
	"os"
	"testing"
	"time"
)

func TestMain(m *testing.M) {
	os.Setenv("TVK_JWT_SECRET", "test-jwt-secret-that-is-32-chars!!")
	os.Exit(m.Run())
}

// ---------------------------------------------------------------------------
// GenerateJWT / ValidateJWT
// ---------------------------------------------------------------------------

func TestGenerateAndValidateJWT(t *testing.T) {
	token, err := GenerateJWT("user-1", "zelda", time.Hour)
	if err != nil {
		t.Fatalf("GenerateJWT() error: %v", err)
	}

	claims, err := ValidateJWT(token)
	if err != nil {
		t.Fatalf("ValidateJWT() error: %v", err)
	}
	if claims.UserID != "user-1" {
		t.Errorf("UserID = %q, want user-1", claims.UserID)
	}
	if claims.Username != "zelda" {
		t.Errorf("Username = %q, want zelda", claims.Username)
	}
	if claims.Issuer != "tavernkeep" {
		t.Errorf("Issuer = %q, want tavernkeep", claims.Issuer)
	}
	if claims.Subject != "user-1" {
		t.Errorf("Subject = %q, want user-1", claims.Subject)
	}
}

func TestValidateJWT_ExpiredToken(t *testing.T) {
	token, err := GenerateJWT("user-1", "zelda", -time.Minute)
	if err != nil {
		t.Fatalf("GenerateJWT() error: %v", err)
	}
	if _, err := ValidateJWT(token); err == nil {
		t.Error("ValidateJWT() expected error for expired token, got nil")
	}
}

func TestValidateJWT_Garbage(t *testing.T) {
	for _, tok := range []string{"", "not-a-jwt", "a.b.c"} {
		if _, err := ValidateJWT(tok); err == nil {
			t.Errorf("ValidateJWT(%q) expected error, got nil", tok)
		}
	}
}

func TestValidateJWT_TamperedToken(t *testing.T) {
	token, err := GenerateJWT("user-1", "zelda", time.Hour)
	if err != nil {
		t.Fatalf("GenerateJWT() error: %v", err)
	}
	tampered := token[:len(token)-4] + "AAAA"
	if _, err := ValidateJWT(tampered); err == nil {
		t.Error("ValidateJWT() expected error for tampered signature, got nil")
	}
}
