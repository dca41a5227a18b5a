package http

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"go.uber.org/zap"

	"github.com/mind-engage/mindengage-coderunner/internal/attempt"
	authmw "github.com/mind-engage/mindengage-coderunner/internal/auth/middleware"
	"github.com/mind-engage/mindengage-coderunner/internal/rbac"
	syncx "github.com/mind-engage/mindengage-coderunner/internal/sync"
	"github.com/mind-engage/mindengage-coderunner/pkg/logger"
)

type Deps struct {
	Service     *attempt.Service
	Auth        *authmw.AuthService
	Events      syncx.Feed // optional; mounts GET /events
	Log         *zap.Logger
	CORSOrigins []string
}

// NewRouter mounts the public and JWT-protected routes.
func NewRouter(d Deps) chi.Router {
	log := d.Log
	if log == nil {
		log = logger.L()
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID, middleware.RealIP, requestLogger(log), middleware.Recoverer)
	r.Use(middleware.Timeout(30 * time.Second))
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   d.CORSOrigins,
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Authorization", "Content-Type"},
		ExposedHeaders:   []string{"Content-Length"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	r.Post("/auth/login", authmw.LoginHandler(d.Auth))
	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusOK) })

	// Protected API (JWT → role in context → RBAC)
	r.Group(func(pr chi.Router) {
		pr.Use(authmw.JWTMiddleware(d.Auth))

		pr.With(rbac.Require(rbac.PermQuestionCreate)).
			Post("/questions", CreateQuestionHandler(d.Service))
		pr.With(rbac.Require(rbac.PermQuestionView)).
			Get("/questions/{questionID}", GetQuestionHandler(d.Service))

		pr.With(rbac.Require(rbac.PermAttemptCreate)).
			Post("/attempts", CreateAttemptHandler(d.Service))
		pr.With(rbac.Require(rbac.PermAttemptSubmit)).
			Post("/attempts/{attemptID}/steps", GradeStepHandler(d.Service))

		// handlers also check ownership unless the role may view all
		pr.With(rbac.RequireAny(rbac.PermAttemptViewOwn, rbac.PermAttemptViewAll)).
			Get("/attempts/{attemptID}/outcome", GetOutcomeHandler(d.Service))
		pr.With(rbac.RequireAny(rbac.PermAttemptViewOwn, rbac.PermAttemptViewAll)).
			Get("/attempts/{attemptID}/steps", ListStepsHandler(d.Service))
		pr.With(rbac.Require(rbac.PermAttemptViewAll)).
			Get("/attempts/{attemptID}/steps/{seq}/archive", GetArchivedOutcomeHandler(d.Service))

		if d.Events != nil {
			pr.With(rbac.Require(rbac.PermEventsView)).
				Get("/events", ListEventsHandler(d.Events))
		}
	})
	return r
}

// requestLogger logs every request with zap once it completes.
func requestLogger(log *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ctx := logger.WithRequestID(r.Context(), middleware.GetReqID(r.Context()))
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			next.ServeHTTP(ww, r.WithContext(ctx))
			logger.Ctx(ctx, log).Info("http request",
				zap.String("method", r.Method),
				zap.String("path", r.URL.Path),
				zap.Int("status", ww.Status()),
				zap.Int("bytes", ww.BytesWritten()),
				zap.Duration("duration", time.Since(start)))
		})
	}
}
