package middleware

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// dummyHandler is a placeholder that records if it was called and the context it received.
type dummyHandler struct {
	called bool
	ctx    context.Context
}

func (d *dummyHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	d.called = true
	d.ctx = r.Context()
	w.WriteHeader(http.StatusOK)
}

const testSecret = "unit-test-secret"

func TestTokenAuth(t *testing.T) {
	valid, err := IssueToken(testSecret, "alice", time.Hour)
	if err != nil {
		t.Fatalf("IssueToken: %v", err)
	}
	expired, _ := IssueToken(testSecret, "alice", -time.Minute)
	otherKey, _ := IssueToken("another-secret", "alice", time.Hour)
	noSubject, _ := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
	}).SignedString([]byte(testSecret))
	noExpiry, _ := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
		Subject: "alice",
	}).SignedString([]byte(testSecret))

	tests := []struct {
		name       string
		secret     string
		path       string
		header     string
		wantCode   int
		wantCalled bool
		wantUser   string
	}{
		{"health is public", testSecret, "/api/health", "", http.StatusOK, true, ""},
		{"missing header", testSecret, "/api/settings", "", http.StatusUnauthorized, false, ""},
		{"wrong scheme", testSecret, "/api/settings", "Basic " + valid, http.StatusUnauthorized, false, ""},
		{"garbage token", testSecret, "/api/settings", "Bearer abc.def.ghi", http.StatusUnauthorized, false, ""},
		{"expired", testSecret, "/api/settings", "Bearer " + expired, http.StatusUnauthorized, false, ""},
		{"other key", testSecret, "/api/settings", "Bearer " + otherKey, http.StatusUnauthorized, false, ""},
		{"no subject", testSecret, "/api/settings", "Bearer " + noSubject, http.StatusUnauthorized, false, ""},
		{"no expiry", testSecret, "/api/settings", "Bearer " + noExpiry, http.StatusUnauthorized, false, ""},
		{"valid", testSecret, "/api/settings", "Bearer " + valid, http.StatusOK, true, "alice"},
		{"lowercase scheme", testSecret, "/api/settings", "bearer " + valid, http.StatusOK, true, "alice"},
		{"empty secret", "", "/api/settings", "Bearer " + valid, http.StatusInternalServerError, false, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dummy := &dummyHandler{}
			h := TokenAuth(tt.secret)(dummy)
			rec := httptest.NewRecorder()
			req := httptest.NewRequest(http.MethodGet, tt.path, nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}

			h.ServeHTTP(rec, req)

			if rec.Code != tt.wantCode {
				t.Errorf("status = %d; want %d", rec.Code, tt.wantCode)
			}
			if dummy.called != tt.wantCalled {
				t.Errorf("next called = %v; want %v", dummy.called, tt.wantCalled)
			}
			if tt.wantUser != "" {
				if got := GetUserIDFromContext(dummy.ctx); got != tt.wantUser {
					t.Errorf("user = %q; want %q", got, tt.wantUser)
				}
			}
		})
	}
}

func TestIssueToken_EmptySecret(t *testing.T) {
	if _, err := IssueToken("", "alice", time.Hour); err == nil {
		t.Error("expected error for empty secret")
	}
}

func TestGetUserIDFromContext(t *testing.T) {
	// no value
	empty := GetUserIDFromContext(context.Background())
	if empty != "" {
		t.Errorf("expected empty string for missing user, got '%s'", empty)
	}
	// with value
	ctx := context.WithValue(context.Background(), userKey, "bob")
	val := GetUserIDFromContext(ctx)
	if val != "bob" {
		t.Errorf("expected 'bob', got '%s'", val)
	}
}

func TestWithRequestLogging(t *testing.T) {
	var buf bytes.Buffer
	core := zapcore.NewCore(
		zapcore.NewJSONEncoder(zap.NewProductionEncoderConfig()),
		zapcore.AddSync(&buf),
		zapcore.InfoLevel,
	)
	logger := zap.New(core)

	h := WithRequestLogging(logger)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
		_, _ = w.Write([]byte("short and stout"))
	}))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/chat/c/i/s", nil))

	out := buf.String()
	for _, want := range []string{`"method":"POST"`, `"path":"/api/chat/c/i/s"`, `"status":418`, `"size":15`} {
		if !strings.Contains(out, want) {
			t.Errorf("log %q does not contain %s", out, want)
		}
	}
	if rec.Code != http.StatusTeapot {
		t.Errorf("status = %d; want %d", rec.Code, http.StatusTeapot)
	}
}
