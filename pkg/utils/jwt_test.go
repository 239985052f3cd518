package utils

import (
	"testing"
	"time"
)

func TestGenerateValidateToken(t *testing.T) {
	token, err := GenerateToken("secret", "42", time.Hour)
	if err != nil {
		t.Fatalf("generate: %v", err)
	}

	claims, err := ValidateToken("secret", token)
	if err != nil {
		t.Fatalf("validate: %v", err)
	}
	if claims.UserID != "42" {
		t.Errorf("expected user id 42, got %q", claims.UserID)
	}
}

func TestValidateToken_WrongSecret(t *testing.T) {
	token, err := GenerateToken("secret", "42", time.Hour)
	if err != nil {
		t.Fatalf("generate: %v", err)
	}

	if _, err := ValidateToken("other-secret", token); err == nil {
		t.Fatal("expected error for wrong secret, got nil")
	}
}

func TestValidateToken_Expired(t *testing.T) {
	token, err := GenerateToken("secret", "42", -time.Minute)
	if err != nil {
		t.Fatalf("generate: %v", err)
	}

	if _, err := ValidateToken("secret", token); err == nil {
		t.Fatal("expected error for expired token, got nil")
	}
}
