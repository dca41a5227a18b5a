package rbac_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/mind-engage/mindengage-coderunner/internal/rbac"
)

func TestCheckerDefaultPolicy(t *testing.T) {
	c := rbac.NewChecker(nil)
	tests := []struct {
		role, perm string
		want       bool
	}{
		{"student", rbac.PermAttemptSubmit, true},
		{"student", rbac.PermTestcasesViewHidden, false},
		{"student", rbac.PermQuestionCreate, false},
		{"teacher", rbac.PermQuestionCreate, true},
		{"teacher", rbac.PermAttemptViewAll, true},
		{"teacher", rbac.PermTestcasesViewHidden, true},
		{"admin", "anything:at-all", true},
		{"guest", rbac.PermQuestionView, false},
	}
	for _, tt := range tests {
		if got := c.Has(tt.role, tt.perm); got != tt.want {
			t.Errorf("Has(%q, %q) = %v, want %v", tt.role, tt.perm, got, tt.want)
		}
	}
	if !c.Any("student", rbac.PermAttemptViewAll, rbac.PermAttemptViewOwn) {
		t.Error("Any() missed the student's own-view permission")
	}
	if !c.Known(rbac.RoleTeacher) || c.Known("guest") {
		t.Error("Known() disagrees with the default policy")
	}
}

func TestCheckerNamespacePattern(t *testing.T) {
	c := rbac.NewChecker(map[string][]string{"grader": {"attempt:*"}})
	if !c.Has("grader", rbac.PermAttemptSubmit) {
		t.Error("namespace pattern did not match")
	}
	if c.Has("grader", "attempts-archive:read") || c.Has("grader", rbac.PermQuestionView) {
		t.Error("namespace pattern matched outside its namespace")
	}
}

func TestRequire(t *testing.T) {
	h := rbac.Require(rbac.PermQuestionCreate)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))
	for role, want := range map[string]int{"": http.StatusForbidden, "student": http.StatusForbidden, "teacher": http.StatusNoContent} {
		req := httptest.NewRequest(http.MethodPost, "/questions", nil)
		req = req.WithContext(rbac.WithRole(req.Context(), role))
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		if rec.Code != want {
			t.Errorf("role %q: status %d, want %d", role, rec.Code, want)
		}
	}
}

func TestCan(t *testing.T) {
	ctx := rbac.WithRole(context.Background(), "teacher")
	if !rbac.Can(ctx, rbac.PermTestcasesViewHidden) || rbac.Can(context.Background(), rbac.PermQuestionView) {
		t.Fatal("Can() disagrees with the default policy")
	}
}
