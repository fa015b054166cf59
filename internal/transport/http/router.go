package http

import (
	"log/slog"
	"net/http"
	"time"

	"quiz-eval-service/internal/app"
	"quiz-eval-service/internal/domain"

	"github.com/gorilla/handlers"
	"github.com/gorilla/mux"
)

// Deps are the collaborators the router wires into routes.
type Deps struct {
	Quizzes  *app.QuizService
	Accounts *app.AccountService
	Reports  *app.ReportService
	Feed     *app.ResultsFeed
	Tokens   TokenVerifier
	Logger   *slog.Logger
	// Now stamps export file names; defaults to time.Now.
	Now func() time.Time
}

// NewRouter builds the HTTP API:
//
//	public:  /healthz, POST /api/register, /api/login, /api/admin/login
//	user:    /api/session/language, /api/quiz, /api/quiz/{id}/submit, /api/result
//	admin:   /api/admin/... (quizzes, users, attempts, dashboard, export, feed)
func NewRouter(d Deps) http.Handler {
	log := d.Logger
	if log == nil {
		log = slog.Default()
	}
	now := d.Now
	if now == nil {
		now = time.Now
	}
	api := &API{quizzes: d.Quizzes, accounts: d.Accounts, reports: d.Reports, log: log, now: now}
	feed := NewFeedHandler(d.Feed, log)

	r := mux.NewRouter()
	r.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("ok"))
	}).Methods(http.MethodGet)

	pub := r.PathPrefix("/api").Subrouter()
	pub.HandleFunc("/register", api.register).Methods(http.MethodPost)
	pub.HandleFunc("/login", api.login).Methods(http.MethodPost)
	pub.HandleFunc("/admin/login", api.adminLogin).Methods(http.MethodPost)

	admin := pub.PathPrefix("/admin").Subrouter()
	admin.Use(requireKind(d.Tokens, domain.PrincipalAdmin, log))
	admin.HandleFunc("/quizzes", api.listQuizzes).Methods(http.MethodGet)
	admin.HandleFunc("/quizzes", api.createQuiz).Methods(http.MethodPost)
	admin.HandleFunc("/quizzes/{quizID}", api.getQuiz).Methods(http.MethodGet)
	admin.HandleFunc("/quizzes/{quizID}/activate", api.activateQuiz).Methods(http.MethodPost)
	admin.HandleFunc("/quizzes/{quizID}/deactivate", api.deactivateQuiz).Methods(http.MethodPost)
	admin.HandleFunc("/users", api.listUsers).Methods(http.MethodGet)
	admin.HandleFunc("/admins", api.createAdmin).Methods(http.MethodPost)
	admin.HandleFunc("/attempts", api.listAttempts).Methods(http.MethodGet)
	admin.HandleFunc("/attempts/{attemptID}", api.getAttempt).Methods(http.MethodGet)
	admin.HandleFunc("/dashboard", api.dashboard).Methods(http.MethodGet)
	admin.HandleFunc("/export", api.export).Methods(http.MethodGet)
	admin.HandleFunc("/feed", feed.ServeWS).Methods(http.MethodGet)

	user := pub.NewRoute().Subrouter()
	user.Use(requireKind(d.Tokens, domain.PrincipalUser, log))
	user.HandleFunc("/session/language", api.changeLanguage).Methods(http.MethodPut)
	user.HandleFunc("/quiz", api.activeQuiz).Methods(http.MethodGet)
	user.HandleFunc("/quiz/{quizID}/submit", api.submit).Methods(http.MethodPost)
	user.HandleFunc("/result", api.result).Methods(http.MethodGet)

	var h http.Handler = r
	h = handlers.CORS(
		handlers.AllowedOrigins([]string{"*"}),
		handlers.AllowedMethods([]string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodOptions}),
		handlers.AllowedHeaders([]string{"Authorization", "Content-Type"}),
	)(h)
	h = accessLog(log)(h)
	h = handlers.RecoveryHandler(handlers.RecoveryLogger(recoveryLogger{log: log}))(h)
	return h
}
