package auth

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/uuid"
)

func TestSignAndVerify(t *testing.T) {
	v := NewVerifier("test-secret")
	userID := uuid.New()

	token, err := v.Sign(userID, RolePatient)
	if err != nil {
		t.Fatalf("Sign: %v", err)
	}

	identity, err := v.Verify(token)
	if err != nil {
		t.Fatalf("Verify: %v", err)
	}
	if identity.UserID != userID || identity.Role != RolePatient {
		t.Fatalf("identity = %+v, want %s as patient", identity, userID)
	}
}

func TestVerify_WrongSecret(t *testing.T) {
	token, err := NewVerifier("secret-a").Sign(uuid.New(), RoleDoctor)
	if err != nil {
		t.Fatalf("Sign: %v", err)
	}

	if _, err := NewVerifier("secret-b").Verify(token); err == nil {
		t.Fatal("token signed with a different secret verified")
	}
}

func TestMiddleware(t *testing.T) {
	v := NewVerifier("test-secret")
	userID := uuid.New()
	token, err := v.Sign(userID, RoleDoctor)
	if err != nil {
		t.Fatalf("Sign: %v", err)
	}

	var seen Identity
	handler := Middleware(v)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen, _ = FromContext(r.Context())
		w.WriteHeader(http.StatusNoContent)
	}))

	t.Run("valid token", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set("Authorization", "Bearer "+token)
		rec := httptest.NewRecorder()

		handler.ServeHTTP(rec, req)

		if rec.Code != http.StatusNoContent {
			t.Fatalf("status = %d, want 204", rec.Code)
		}
		if seen.UserID != userID || seen.Role != RoleDoctor {
			t.Fatalf("context identity = %+v, want %s as doctor", seen, userID)
		}
	})

	t.Run("missing header", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		rec := httptest.NewRecorder()

		handler.ServeHTTP(rec, req)

		if rec.Code != http.StatusUnauthorized {
			t.Fatalf("status = %d, want 401", rec.Code)
		}
	})

	t.Run("garbage token", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set("Authorization", "Bearer not-a-jwt")
		rec := httptest.NewRecorder()

		handler.ServeHTTP(rec, req)

		if rec.Code != http.StatusUnauthorized {
			t.Fatalf("status = %d, want 401", rec.Code)
		}
	})
}
