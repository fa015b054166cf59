package http

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"quiz-eval-service/internal/app"
	"quiz-eval-service/internal/domain"

	"github.com/gorilla/mux"
)

// API holds the use cases exposed over HTTP.
type API struct {
	quizzes  *app.QuizService
	accounts *app.AccountService
	reports  *app.ReportService
	log      *slog.Logger
	now      func() time.Time
}

type sessionResponse struct {
	Token    string               `json:"token"`
	Kind     domain.PrincipalKind `json:"kind"`
	Language domain.Language      `json:"language"`
}

type submitBody struct {
	Token   string            `json:"token"`
	Answers domain.Submission `json:"answers"`
}

type resultResponse struct {
	AlreadyAttempted bool       `json:"alreadyAttempted"`
	Result           app.Result `json:"result"`
}

type languageBody struct {
	Language string `json:"language"`
}

type adminBody struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

func newSessionResponse(s app.Session) sessionResponse {
	return sessionResponse{Token: s.Token, Kind: s.Principal.Kind, Language: s.Principal.Language}
}

func pathID(r *http.Request, name string) (int64, error) {
	id, err := strconv.ParseInt(mux.Vars(r)[name], 10, 64)
	if err != nil || id <= 0 {
		return 0, &app.ValidationError{Err: fmt.Errorf("invalid %s %q", name, mux.Vars(r)[name])}
	}
	return id, nil
}

func (a *API) register(w http.ResponseWriter, r *http.Request) {
	var req app.RegisterRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, a.log, err)
		return
	}
	user, err := a.accounts.RegisterUser(r.Context(), req)
	if err != nil {
		writeError(w, r, a.log, err)
		return
	}
	writeJSON(w, http.StatusCreated, user)
}

func (a *API) login(w http.ResponseWriter, r *http.Request) {
	var req app.LoginRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, a.log, err)
		return
	}
	session, err := a.accounts.LoginUser(r.Context(), req)
	if err != nil {
		writeError(w, r, a.log, err)
		return
	}
	writeJSON(w, http.StatusOK, newSessionResponse(session))
}

func (a *API) adminLogin(w http.ResponseWriter, r *http.Request) {
	var req app.AdminLoginRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, a.log, err)
		return
	}
	session, err := a.accounts.LoginAdmin(r.Context(), req)
	if err != nil {
		writeError(w, r, a.log, err)
		return
	}
	writeJSON(w, http.StatusOK, newSessionResponse(session))
}

func (a *API) changeLanguage(w http.ResponseWriter, r *http.Request) {
	p, _ := PrincipalFrom(r.Context())
	var body languageBody
	if err := decodeJSON(w, r, &body); err != nil {
		writeError(w, r, a.log, err)
		return
	}
	session, err := a.accounts.ChangeLanguage(p, body.Language)
	if err != nil {
		writeError(w, r, a.log, err)
		return
	}
	writeJSON(w, http.StatusOK, newSessionResponse(session))
}

func (a *API) activeQuiz(w http.ResponseWriter, r *http.Request) {
	p, _ := PrincipalFrom(r.Context())
	active, err := a.quizzes.ActiveQuizForUser(r.Context(), p)
	if errors.Is(err, domain.ErrAlreadyAttempted) && active.Result != nil {
		writeJSON(w, http.StatusOK, resultResponse{AlreadyAttempted: true, Result: *active.Result})
		return
	}
	if err != nil {
		writeError(w, r, a.log, err)
		return
	}
	writeJSON(w, http.StatusOK, active)
}

func (a *API) submit(w http.ResponseWriter, r *http.Request) {
	p, _ := PrincipalFrom(r.Context())
	quizID, err := pathID(r, "quizID")
	if err != nil {
		writeError(w, r, a.log, fmt.Errorf("%w: %w", domain.ErrInvalidSubmission, err))
		return
	}
	var body submitBody
	if err := decodeJSON(w, r, &body); err != nil {
		writeError(w, r, a.log, fmt.Errorf("%w: %w", domain.ErrInvalidSubmission, err))
		return
	}

	result, err := a.quizzes.SubmitQuiz(r.Context(), app.SubmitRequest{
		QuizID:    quizID,
		UserID:    p.ID,
		SessionID: p.SessionID,
		Token:     body.Token,
		Answers:   body.Answers,
	})
	if errors.Is(err, domain.ErrAlreadyAttempted) {
		writeJSON(w, http.StatusOK, resultResponse{AlreadyAttempted: true, Result: result})
		return
	}
	if err != nil {
		writeError(w, r, a.log, err)
		return
	}
	writeJSON(w, http.StatusOK, resultResponse{Result: result})
}

func (a *API) result(w http.ResponseWriter, r *http.Request) {
	p, _ := PrincipalFrom(r.Context())
	result, err := a.quizzes.UserResult(r.Context(), p.ID)
	if err != nil {
		writeError(w, r, a.log, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (a *API) listQuizzes(w http.ResponseWriter, r *http.Request) {
	quizzes, err := a.quizzes.ListQuizzes(r.Context())
	if err != nil {
		writeError(w, r, a.log, err)
		return
	}
	writeJSON(w, http.StatusOK, quizzes)
}

func (a *API) createQuiz(w http.ResponseWriter, r *http.Request) {
	var in app.NewQuiz
	if err := decodeJSON(w, r, &in); err != nil {
		writeError(w, r, a.log, err)
		return
	}
	quiz, err := a.quizzes.CreateQuiz(r.Context(), in)
	if err != nil {
		writeError(w, r, a.log, err)
		return
	}
	writeJSON(w, http.StatusCreated, quiz)
}

func (a *API) getQuiz(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "quizID")
	if err != nil {
		writeError(w, r, a.log, err)
		return
	}
	quiz, err := a.quizzes.GetQuiz(r.Context(), id)
	if err != nil {
		writeError(w, r, a.log, err)
		return
	}
	writeJSON(w, http.StatusOK, quiz)
}

func (a *API) activateQuiz(w http.ResponseWriter, r *http.Request) {
	a.toggleQuiz(w, r, a.quizzes.ActivateQuiz)
}

func (a *API) deactivateQuiz(w http.ResponseWriter, r *http.Request) {
	a.toggleQuiz(w, r, a.quizzes.DeactivateQuiz)
}

func (a *API) toggleQuiz(w http.ResponseWriter, r *http.Request, apply func(ctx context.Context, id int64) error) {
	id, err := pathID(r, "quizID")
	if err != nil {
		writeError(w, r, a.log, err)
		return
	}
	if err := apply(r.Context(), id); err != nil {
		writeError(w, r, a.log, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (a *API) listUsers(w http.ResponseWriter, r *http.Request) {
	users, err := a.accounts.ListUsers(r.Context())
	if err != nil {
		writeError(w, r, a.log, err)
		return
	}
	writeJSON(w, http.StatusOK, users)
}

func (a *API) createAdmin(w http.ResponseWriter, r *http.Request) {
	var body adminBody
	if err := decodeJSON(w, r, &body); err != nil {
		writeError(w, r, a.log, err)
		return
	}
	admin, err := a.accounts.CreateAdmin(r.Context(), body.Username, body.Password)
	if err != nil {
		writeError(w, r, a.log, err)
		return
	}
	writeJSON(w, http.StatusCreated, admin)
}

func (a *API) listAttempts(w http.ResponseWriter, r *http.Request) {
	attempts, err := a.reports.ListAttempts(r.Context())
	if err != nil {
		writeError(w, r, a.log, err)
		return
	}
	writeJSON(w, http.StatusOK, attempts)
}

func (a *API) getAttempt(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "attemptID")
	if err != nil {
		writeError(w, r, a.log, err)
		return
	}
	detail, err := a.reports.GetAttempt(r.Context(), id)
	if err != nil {
		writeError(w, r, a.log, err)
		return
	}
	writeJSON(w, http.StatusOK, detail)
}

func (a *API) dashboard(w http.ResponseWriter, r *http.Request) {
	d, err := a.reports.Dashboard(r.Context())
	if err != nil {
		writeError(w, r, a.log, err)
		return
	}
	writeJSON(w, http.StatusOK, d)
}

func (a *API) export(w http.ResponseWriter, r *http.Request) {
	var buf bytes.Buffer
	if err := a.reports.ExportCSV(r.Context(), &buf); err != nil {
		writeError(w, r, a.log, err)
		return
	}
	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set("Content-Disposition",
		fmt.Sprintf(`attachment; filename="attempts-%s.csv"`, a.now().UTC().Format("20060102")))
	_, _ = buf.WriteTo(w)
}
