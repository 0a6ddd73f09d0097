package auth

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
)

func newTestIssuer(ttl time.Duration) *TokenIssuer {
	return NewTokenIssuer([]byte("test-secret-at-least-32-characters!!"), "carebridge", ttl)
}

func TestIssue_and_Parse(t *testing.T) {
	issuer := newTestIssuer(30 * time.Minute)
	userID := uuid.New()

	token, jti, expiresAt, err := issuer.Issue(userID, RolePatient)
	if err != nil {
		t.Fatalf("Issue failed: %v", err)
	}
	if token == "" {
		t.Fatal("expected non-empty token")
	}
	if jti == "" {
		t.Fatal("expected non-empty JTI")
	}
	if !expiresAt.After(time.Now()) {
		t.Error("expected expiry in the future")
	}

	claims, err := issuer.Parse(token)
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}
	if claims.Subject != userID.String() {
		t.Errorf("expected subject %s, got %s", userID, claims.Subject)
	}
	if claims.Role != RolePatient {
		t.Errorf("expected role %s, got %s", RolePatient, claims.Role)
	}
	if claims.ID != jti {
		t.Errorf("expected JTI %s, got %s", jti, claims.ID)
	}
}

func TestParse_ExpiredToken(t *testing.T) {
	issuer := newTestIssuer(-1 * time.Minute)

	token, _, _, err := issuer.Issue(uuid.New(), RoleDoctor)
	if err != nil {
		t.Fatalf("Issue failed: %v", err)
	}

	if _, err := issuer.Parse(token); err == nil {
		t.Error("expected error for expired token")
	}
}

func TestParse_WrongSecret(t *testing.T) {
	issuer := newTestIssuer(30 * time.Minute)
	token, _, _, err := issuer.Issue(uuid.New(), RolePatient)
	if err != nil {
		t.Fatalf("Issue failed: %v", err)
	}

	other := NewTokenIssuer([]byte("a-completely-different-signing-key!!"), "carebridge", 30*time.Minute)
	if _, err := other.Parse(token); err == nil {
		t.Error("expected error for token signed with different secret")
	}
}

func TestParse_WrongIssuer(t *testing.T) {
	secret := []byte("test-secret-at-least-32-characters!!")
	a := NewTokenIssuer(secret, "other-service", 30*time.Minute)
	token, _, _, err := a.Issue(uuid.New(), RolePatient)
	if err != nil {
		t.Fatalf("Issue failed: %v", err)
	}

	b := NewTokenIssuer(secret, "carebridge", 30*time.Minute)
	if _, err := b.Parse(token); err == nil {
		t.Error("expected error for token with wrong issuer")
	}
}

func TestMiddleware_ValidToken(t *testing.T) {
	issuer := newTestIssuer(30 * time.Minute)
	store := NewTokenRevocationStore()
	defer store.Close()

	userID := uuid.New()
	token, _, _, err := issuer.Issue(userID, RoleDoctor)
	if err != nil {
		t.Fatalf("Issue failed: %v", err)
	}

	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	var gotID uuid.UUID
	var gotRole string
	handler := Middleware(issuer, store)(func(c echo.Context) error {
		gotID = UserIDFromContext(c.Request().Context())
		gotRole = RoleFromContext(c.Request().Context())
		return c.NoContent(http.StatusOK)
	})

	if err := handler(c); err != nil {
		t.Fatalf("expected success, got %v", err)
	}
	if gotID != userID {
		t.Errorf("expected user id %s in context, got %s", userID, gotID)
	}
	if gotRole != RoleDoctor {
		t.Errorf("expected role doctor in context, got %s", gotRole)
	}
}

func TestMiddleware_MissingHeader(t *testing.T) {
	issuer := newTestIssuer(30 * time.Minute)

	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	handler := Middleware(issuer, nil)(func(c echo.Context) error {
		return c.NoContent(http.StatusOK)
	})

	err := handler(c)
	httpErr, ok := err.(*echo.HTTPError)
	if !ok || httpErr.Code != http.StatusUnauthorized {
		t.Errorf("expected 401, got %v", err)
	}
}

func TestMiddleware_MalformedHeader(t *testing.T) {
	issuer := newTestIssuer(30 * time.Minute)

	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Basic abc123")
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	handler := Middleware(issuer, nil)(func(c echo.Context) error {
		return c.NoContent(http.StatusOK)
	})

	err := handler(c)
	httpErr, ok := err.(*echo.HTTPError)
	if !ok || httpErr.Code != http.StatusUnauthorized {
		t.Errorf("expected 401, got %v", err)
	}
}

func TestMiddleware_RevokedToken(t *testing.T) {
	issuer := newTestIssuer(30 * time.Minute)
	store := NewTokenRevocationStore()
	defer store.Close()

	token, jti, expiresAt, err := issuer.Issue(uuid.New(), RolePatient)
	if err != nil {
		t.Fatalf("Issue failed: %v", err)
	}
	store.Revoke(jti, expiresAt)

	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	handler := Middleware(issuer, store)(func(c echo.Context) error {
		return c.NoContent(http.StatusOK)
	})

	err = handler(c)
	httpErr, ok := err.(*echo.HTTPError)
	if !ok || httpErr.Code != http.StatusUnauthorized {
		t.Errorf("expected 401 for revoked token, got %v", err)
	}
}

func TestUserIDFromContext_Unauthenticated(t *testing.T) {
	if got := UserIDFromContext(context.Background()); got != uuid.Nil {
		t.Errorf("expected uuid.Nil for unauthenticated context, got %s", got)
	}
}
