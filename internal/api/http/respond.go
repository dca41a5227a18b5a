package http

import (
	"encoding/json"
	"errors"
	"net/http"

	"go.uber.org/zap"

	"github.com/mind-engage/mindengage-coderunner/internal/attempt"
	"github.com/mind-engage/mindengage-coderunner/internal/grading"
	"github.com/mind-engage/mindengage-coderunner/pkg/logger"
)

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// writeErr maps service errors to status codes.
func writeErr(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, attempt.ErrNotFound):
		http.Error(w, "not found", http.StatusNotFound)
	case errors.Is(err, attempt.ErrInvalidQuestion),
		errors.Is(err, grading.ErrPrecheckDisabled),
		errors.Is(err, grading.ErrTooManyRuns),
		errors.Is(err, grading.ErrCombinatorRuns):
		http.Error(w, err.Error(), http.StatusBadRequest)
	case errors.Is(err, attempt.ErrStepExists):
		http.Error(w, err.Error(), http.StatusConflict)
	default:
		logger.Ctx(r.Context(), nil).Error("request failed", zap.String("path", r.URL.Path), zap.Error(err))
		http.Error(w, "internal error", http.StatusInternalServerError)
	}
}
