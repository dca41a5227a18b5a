package auth_test

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"golang.org/x/crypto/bcrypt"

	auth "github.com/mind-engage/mindengage-coderunner/internal/auth/middleware"
	"github.com/mind-engage/mindengage-coderunner/internal/rbac"
)

func newAuth(t *testing.T) *auth.AuthService {
	t.Helper()
	hash, err := bcrypt.GenerateFromPassword([]byte("s3cret"), bcrypt.MinCost)
	if err != nil {
		t.Fatal(err)
	}
	return auth.NewAuthService("test-secret", auth.WithAdmin("root", string(hash)), auth.WithDevLogins(true))
}

func TestAuthenticate(t *testing.T) {
	a := newAuth(t)
	tests := []struct {
		user, pass, role string
		want             string
		ok               bool
	}{
		{"root", "s3cret", "", "admin", true},
		{"root", "wrong", "", "", false},
		{"alice", "alice", "student", "student", true},
		{"bob", "bob", "teacher", "teacher", true},
		{"eve", "eve", "admin", "", false},
		{"eve", "nope", "student", "", false},
	}
	for _, tt := range tests {
		role, err := a.Authenticate(tt.user, tt.pass, tt.role)
		if (err == nil) != tt.ok || role != tt.want {
			t.Errorf("Authenticate(%q, %q, %q) = %q, %v", tt.user, tt.pass, tt.role, role, err)
		}
	}

	strict := auth.NewAuthService("x")
	if _, err := strict.Authenticate("alice", "alice", "student"); err == nil {
		t.Error("dev login accepted while disabled")
	}
}

func TestLoginAndMiddleware(t *testing.T) {
	a := newAuth(t)
	rec := httptest.NewRecorder()
	auth.LoginHandler(a)(rec, httptest.NewRequest(http.MethodPost, "/auth/login", strings.NewReader(`{"username":"bob","password":"bob","role":"teacher"}`)))
	if rec.Code != http.StatusOK {
		t.Fatalf("login status %d: %s", rec.Code, rec.Body)
	}
	var resp map[string]string
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatal(err)
	}

	var sub, role string
	h := auth.JWTMiddleware(a)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		sub, role = auth.SubjectFromContext(r.Context()), rbac.RoleFromContext(r.Context())
	}))
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer "+resp["access_token"])
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK || sub != "bob" || role != "teacher" {
		t.Fatalf("status %d, sub %q, role %q", rec.Code, sub, role)
	}

	for _, header := range []string{"", "Bearer garbage", "Basic Ym9iOmJvYg=="} {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set("Authorization", header)
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		if rec.Code != http.StatusUnauthorized {
			t.Errorf("Authorization %q: status %d", header, rec.Code)
		}
	}

	tok, err := a.IssueJWT("eve", "guest")
	if err != nil {
		t.Fatal(err)
	}
	req = httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer "+tok)
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if rec.Code != http.StatusForbidden {
		t.Errorf("unknown role: status %d", rec.Code)
	}
}

func TestLoginRejects(t *testing.T) {
	a := newAuth(t)
	for body, want := range map[string]int{
		"{":                                    http.StatusBadRequest,
		`{"username":"root","password":"bad"}`: http.StatusUnauthorized,
	} {
		rec := httptest.NewRecorder()
		auth.LoginHandler(a)(rec, httptest.NewRequest(http.MethodPost, "/auth/login", strings.NewReader(body)))
		if rec.Code != want {
			t.Errorf("body %s: status %d, want %d", body, rec.Code, want)
		}
	}
}
