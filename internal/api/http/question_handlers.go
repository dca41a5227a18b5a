package http

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/mind-engage/mindengage-coderunner/internal/attempt"
	"github.com/mind-engage/mindengage-coderunner/internal/grading"
	"github.com/mind-engage/mindengage-coderunner/internal/rbac"
)

// POST /questions
func CreateQuestionHandler(svc *attempt.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var q attempt.Question
		if err := json.NewDecoder(r.Body).Decode(&q); err != nil {
			http.Error(w, "bad json: "+err.Error(), http.StatusBadRequest)
			return
		}
		q, err := svc.CreateQuestion(r.Context(), q)
		if err != nil {
			writeErr(w, r, err)
			return
		}
		writeJSON(w, http.StatusCreated, q)
	}
}

// GET /questions/{questionID}
// Viewers who may not see hidden tests only get the example tests.
func GetQuestionHandler(svc *attempt.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := strings.TrimSpace(chi.URLParam(r, "questionID"))
		q, err := svc.GetQuestion(r.Context(), id)
		if err != nil {
			writeErr(w, r, err)
			return
		}
		if !rbac.Can(r.Context(), rbac.PermTestcasesViewHidden) {
			examples := []grading.TestCase{}
			for _, tc := range q.TestCases {
				if tc.UseAsExample {
					examples = append(examples, tc)
				}
			}
			q.TestCases = examples
		}
		writeJSON(w, http.StatusOK, q)
	}
}
