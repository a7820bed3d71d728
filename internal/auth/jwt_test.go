package auth

import (
	"errors"
	"testing"
	"time"

	"github.com/kaamsetu-in/kaamsetu/internal/config"
	"github.com/kaamsetu-in/kaamsetu/internal/models"
)

func TestIssueAndParseToken(t *testing.T) {
	cfg := config.JWTConfig{Secret: "test-secret", Expiry: time.Hour}
	user := &models.User{ID: 42, Role: models.RoleClient}

	token, errIssue := IssueToken(user, cfg)
	if errIssue != nil {
		t.Fatalf("issue token: %v", errIssue)
	}

	claims, errParse := ParseToken(token, cfg)
	if errParse != nil {
		t.Fatalf("parse token: %v", errParse)
	}
	if claims.UserID != 42 {
		t.Fatalf("expected user id 42, got %d", claims.UserID)
	}
	if claims.Role != models.RoleClient {
		t.Fatalf("expected client role, got %d", claims.Role)
	}
}

func TestParseToken_WrongSecret(t *testing.T) {
	cfg := config.JWTConfig{Secret: "test-secret", Expiry: time.Hour}
	user := &models.User{ID: 42, Role: models.RoleWorker}

	token, errIssue := IssueToken(user, cfg)
	if errIssue != nil {
		t.Fatalf("issue token: %v", errIssue)
	}

	if _, errParse := ParseToken(token, config.JWTConfig{Secret: "other-secret"}); !errors.Is(errParse, ErrInvalidToken) {
		t.Fatalf("expected ErrInvalidToken, got %v", errParse)
	}
}

func TestParseToken_Expired(t *testing.T) {
	cfg := config.JWTConfig{Secret: "test-secret", Expiry: -time.Minute}
	user := &models.User{ID: 42, Role: models.RoleClient}

	token, errIssue := IssueToken(user, cfg)
	if errIssue != nil {
		t.Fatalf("issue token: %v", errIssue)
	}

	if _, errParse := ParseToken(token, cfg); !errors.Is(errParse, ErrInvalidToken) {
		t.Fatalf("expected ErrInvalidToken for expired token, got %v", errParse)
	}
}

func TestIssueToken_MissingSecret(t *testing.T) {
	if _, err := IssueToken(&models.User{ID: 1}, config.JWTConfig{}); err == nil {
		t.Fatal("expected error for missing secret")
	}
}

func TestPasswordHashing(t *testing.T) {
	hash, errHash := HashPassword("s3cret-pass")
	if errHash != nil {
		t.Fatalf("hash password: %v", errHash)
	}
	if hash == "s3cret-pass" {
		t.Fatal("expected hash to differ from plaintext")
	}

	if !CheckPassword(hash, "s3cret-pass") {
		t.Fatal("expected matching password to verify")
	}
	if CheckPassword(hash, "wrong-pass") {
		t.Fatal("expected mismatch for wrong password")
	}
}
