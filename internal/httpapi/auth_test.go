package httpapi

import (
	"context"
	"strings"
	"testing"
	"time"

	"tokopos/backend/internal/domain"
	"tokopos/backend/internal/store/memory"
)

func newTestAuth(t *testing.T) *AuthManager {
	t.Helper()
	return NewAuthManager("test-secret-key", time.Hour, memory.NewSeeded())
}

func TestLoginAndParseToken(t *testing.T) {
	auth := newTestAuth(t)
	ctx := context.Background()

	resp, err := auth.Login(ctx, domain.LoginRequest{Username: "Admin", Password: "admin123"})
	if err != nil {
		t.Fatalf("login: %v", err)
	}
	if resp.User.Role != domain.RoleAdmin {
		t.Fatalf("role = %q", resp.User.Role)
	}

	actor, err := auth.ParseToken(resp.Token)
	if err != nil {
		t.Fatalf("parse token: %v", err)
	}
	if actor.Username != "admin" || actor.Role != domain.RoleAdmin {
		t.Fatalf("actor = %+v", actor)
	}
}

func TestLoginWrongPassword(t *testing.T) {
	auth := newTestAuth(t)

	if _, err := auth.Login(context.Background(), domain.LoginRequest{Username: "admin", Password: "wrong"}); err == nil {
		t.Fatalf("expected login to fail")
	}
}

func TestParseTokenRejectsForeignSignature(t *testing.T) {
	auth := newTestAuth(t)
	other := NewAuthManager("another-secret-entirely", time.Hour, memory.NewSeeded())

	resp, err := other.Login(context.Background(), domain.LoginRequest{Username: "admin", Password: "admin123"})
	if err != nil {
		t.Fatalf("login: %v", err)
	}
	if _, err := auth.ParseToken(resp.Token); err == nil {
		t.Fatalf("expected token signed with another secret to be rejected")
	}
}

func TestSignupCreatesAdminWithOrganization(t *testing.T) {
	auth := newTestAuth(t)
	ctx := context.Background()

	resp, err := auth.Signup(ctx, domain.SignupRequest{Username: "OwnerOne", Password: "secret99"})
	if err != nil {
		t.Fatalf("signup: %v", err)
	}
	if resp.User.Role != domain.RoleAdmin {
		t.Fatalf("signup role = %q, want admin", resp.User.Role)
	}
	if !strings.HasPrefix(resp.User.OrganizationID, "org_") || len(resp.User.OrganizationID) != 4+32 {
		t.Fatalf("organization id = %q", resp.User.OrganizationID)
	}

	actor, err := auth.ParseToken(resp.Token)
	if err != nil {
		t.Fatalf("parse token: %v", err)
	}
	if actor.OrganizationID != resp.User.OrganizationID {
		t.Fatalf("organization not carried in claims: %q vs %q", actor.OrganizationID, resp.User.OrganizationID)
	}

	// Duplicate usernames are rejected by the store.
	if _, err := auth.Signup(ctx, domain.SignupRequest{Username: "ownerone", Password: "secret99"}); err == nil {
		t.Fatalf("expected duplicate signup to fail")
	}
}

func TestSignupValidation(t *testing.T) {
	auth := newTestAuth(t)
	ctx := context.Background()

	if _, err := auth.Signup(ctx, domain.SignupRequest{Username: "ab", Password: "secret99"}); err == nil {
		t.Fatalf("expected short username to be rejected")
	}
	if _, err := auth.Signup(ctx, domain.SignupRequest{Username: "validname", Password: "123"}); err == nil {
		t.Fatalf("expected short password to be rejected")
	}
}
