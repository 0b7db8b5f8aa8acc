package auth

import (
	"testing"
	"time"
)

func testManager() *JWTManager {
	return NewJWTManager(JWTConfig{
		SecretKey:     "test-secret",
		TokenDuration: time.Hour,
		Issuer:        "tapin-test",
	})
}

func TestIssueAndValidate(t *testing.T) {
	m := testManager()

	token, err := m.Issue("u1", "alice")
	if err != nil {
		t.Fatalf("Issue() error: %v", err)
	}

	identity, err := m.Validate(token)
	if err != nil {
		t.Fatalf("Validate() error: %v", err)
	}
	if identity.UserID != "u1" {
		t.Errorf("UserID = %q, want u1", identity.UserID)
	}
	if identity.Username != "alice" {
		t.Errorf("Username = %q, want alice", identity.Username)
	}
}

func TestValidateRejectsGarbage(t *testing.T) {
	m := testManager()

	tests := []struct {
		name       string
		credential string
	}{
		{name: "empty", credential: ""},
		{name: "not a token", credential: "hello"},
		{name: "tampered", credential: "eyJhbGciOiJIUzI1NiJ9.eyJ1c2VyX2lkIjoidTEifQ.bad"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := m.Validate(tt.credential); err != ErrInvalidToken {
				t.Errorf("Validate() error = %v, want %v", err, ErrInvalidToken)
			}
		})
	}
}

func TestValidateRejectsWrongKey(t *testing.T) {
	token, err := testManager().Issue("u1", "alice")
	if err != nil {
		t.Fatalf("Issue() error: %v", err)
	}

	other := NewJWTManager(JWTConfig{SecretKey: "different", TokenDuration: time.Hour})
	if _, err := other.Validate(token); err != ErrInvalidToken {
		t.Errorf("Validate() with wrong key error = %v, want %v", err, ErrInvalidToken)
	}
}

func TestValidateRejectsExpired(t *testing.T) {
	m := NewJWTManager(JWTConfig{
		SecretKey:     "test-secret",
		TokenDuration: -time.Minute,
	})

	token, err := m.Issue("u1", "alice")
	if err != nil {
		t.Fatalf("Issue() error: %v", err)
	}
	if _, err := m.Validate(token); err != ErrExpiredToken {
		t.Errorf("Validate() expired error = %v, want %v", err, ErrExpiredToken)
	}
}
