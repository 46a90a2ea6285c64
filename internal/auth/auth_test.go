package auth

import (
	"context"
	"errors"
	"testing"
	"time"

	"donation-rewards-api/internal/clock"
	"donation-rewards-api/internal/models"
)

func TestTokenRoundTrip(t *testing.T) {
	clk := clock.NewFixed(time.Now().UTC())
	m := NewTokenManager("test-secret", time.Hour, clk)

	token, err := m.Issue(models.User{ID: "u1", Email: "aina@example.com", IsAdmin: true})
	if err != nil {
		t.Fatalf("Issue failed: %v", err)
	}

	claims, err := m.Parse(token)
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}
	if claims.UserID != "u1" || !claims.IsAdmin {
		t.Errorf("Unexpected claims: %+v", claims)
	}
}

func TestParse_Expired(t *testing.T) {
	clk := clock.NewFixed(time.Now().UTC())
	m := NewTokenManager("test-secret", time.Minute, clk)

	token, err := m.Issue(models.User{ID: "u1"})
	if err != nil {
		t.Fatalf("Issue failed: %v", err)
	}

	clk.Advance(2 * time.Minute)
	if _, err := m.Parse(token); !errors.Is(err, ErrInvalidToken) {
		t.Errorf("Expected ErrInvalidToken for expired token, got %v", err)
	}
}

func TestParse_WrongSecret(t *testing.T) {
	token, _ := NewTokenManager("one", time.Hour, nil).Issue(models.User{ID: "u1"})
	if _, err := NewTokenManager("two", time.Hour, nil).Parse(token); !errors.Is(err, ErrInvalidToken) {
		t.Errorf("Expected ErrInvalidToken, got %v", err)
	}
}

func TestPasswordHashing(t *testing.T) {
	hash, err := HashPassword("s3cretpass")
	if err != nil {
		t.Fatalf("HashPassword failed: %v", err)
	}
	if err := CheckPassword(hash, "s3cretpass"); err != nil {
		t.Errorf("Expected password to match: %v", err)
	}
	if err := CheckPassword(hash, "wrong"); !errors.Is(err, ErrInvalidCredentials) {
		t.Errorf("Expected ErrInvalidCredentials, got %v", err)
	}
}

func TestIdentityContext(t *testing.T) {
	if _, ok := FromContext(context.Background()); ok {
		t.Error("Expected no identity in empty context")
	}
	ctx := WithIdentity(context.Background(), Identity{UserID: "u1"})
	id, ok := FromContext(ctx)
	if !ok || id.UserID != "u1" {
		t.Errorf("Unexpected identity: %+v", id)
	}
}
