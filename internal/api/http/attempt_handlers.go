package http

import (
	"encoding/json"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/mind-engage/mindengage-coderunner/internal/attempt"
	authmw "github.com/mind-engage/mindengage-coderunner/internal/auth/middleware"
	"github.com/mind-engage/mindengage-coderunner/internal/grading"
	"github.com/mind-engage/mindengage-coderunner/internal/rbac"
)

// POST /attempts  {"question_id": "..."}
func CreateAttemptHandler(svc *attempt.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			QuestionID string `json:"question_id"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "bad json", http.StatusBadRequest)
			return
		}
		if req.QuestionID == "" {
			http.Error(w, "question_id required", http.StatusBadRequest)
			return
		}
		a, err := svc.StartAttempt(r.Context(), req.QuestionID, authmw.SubjectFromContext(r.Context()))
		if err != nil {
			writeErr(w, r, err)
			return
		}
		writeJSON(w, http.StatusCreated, a)
	}
}

type gradeReq struct {
	Precheck bool          `json:"precheck"`
	Runs     []grading.Run `json:"runs"`
}

// POST /attempts/{attemptID}/steps
// Grades the sandbox runs of a submission and returns the rendered outcome.
func GradeStepHandler(svc *attempt.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		a, ok := ownAttempt(w, r, svc)
		if !ok {
			return
		}
		var req gradeReq
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "bad json: "+err.Error(), http.StatusBadRequest)
			return
		}
		step, err := svc.Grade(r.Context(), a.ID, req.Runs, req.Precheck)
		if err != nil {
			writeErr(w, r, err)
			return
		}
		q, err := svc.GetQuestion(r.Context(), a.QuestionID)
		if err != nil {
			writeErr(w, r, err)
			return
		}
		view, err := svc.RenderStep(r.Context(), q, step, rbac.Can(r.Context(), rbac.PermTestcasesViewHidden))
		if err != nil {
			writeErr(w, r, err)
			return
		}
		writeJSON(w, http.StatusCreated, view)
	}
}

// GET /attempts/{attemptID}/outcome
func GetOutcomeHandler(svc *attempt.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		a, ok := ownAttempt(w, r, svc)
		if !ok {
			return
		}
		view, err := svc.Render(r.Context(), a.ID, rbac.Can(r.Context(), rbac.PermTestcasesViewHidden))
		if err != nil {
			writeErr(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, view)
	}
}

// GET /attempts/{attemptID}/steps
func ListStepsHandler(svc *attempt.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		a, ok := ownAttempt(w, r, svc)
		if !ok {
			return
		}
		steps, err := svc.Steps(r.Context(), a.ID)
		if err != nil {
			writeErr(w, r, err)
			return
		}
		if steps == nil {
			steps = []attempt.Step{}
		}
		writeJSON(w, http.StatusOK, steps)
	}
}

// GET /attempts/{attemptID}/steps/{seq}/archive
// Returns the stored outcome payload exactly as archived.
func GetArchivedOutcomeHandler(svc *attempt.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := strings.TrimSpace(chi.URLParam(r, "attemptID"))
		seq, err := strconv.Atoi(chi.URLParam(r, "seq"))
		if err != nil || seq < 1 {
			http.Error(w, "bad seq", http.StatusBadRequest)
			return
		}
		b, err := svc.Archived(r.Context(), id, seq)
		if err != nil {
			writeErr(w, r, err)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write(b)
	}
}

// ownAttempt loads the attempt in the URL, allowing its owner and anyone
// who may view all attempts.
func ownAttempt(w http.ResponseWriter, r *http.Request, svc *attempt.Service) (attempt.Attempt, bool) {
	id := strings.TrimSpace(chi.URLParam(r, "attemptID"))
	if id == "" {
		http.Error(w, "attemptID required", http.StatusBadRequest)
		return attempt.Attempt{}, false
	}
	a, err := svc.GetAttempt(r.Context(), id)
	if err != nil {
		writeErr(w, r, err)
		return attempt.Attempt{}, false
	}
	if a.UserID != authmw.SubjectFromContext(r.Context()) && !rbac.Can(r.Context(), rbac.PermAttemptViewAll) {
		http.Error(w, "forbidden", http.StatusForbidden)
		return attempt.Attempt{}, false
	}
	return a, true
}
