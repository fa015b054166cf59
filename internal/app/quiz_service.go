package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"quiz-eval-service/internal/domain"

	"golang.org/x/sync/singleflight"
)

// QuizReader loads quiz content with its answer key and translations.
type QuizReader interface {
	LoadQuiz(ctx context.Context, quizID int64) (domain.Quiz, error)
	// LoadActiveQuiz returns domain.ErrNoActiveQuiz when no quiz is active.
	LoadActiveQuiz(ctx context.Context) (domain.Quiz, error)
}

// QuizStore owns quiz definitions and the active-quiz selection.
type QuizStore interface {
	CreateQuiz(ctx context.Context, quiz domain.Quiz, activate bool) (domain.Quiz, error)
	ListQuizzes(ctx context.Context) ([]domain.QuizSummary, error)
	// ActivateQuiz makes quizID the only active quiz in one atomic step.
	ActivateQuiz(ctx context.Context, quizID int64) error
	// DeactivateQuiz clears the selection if it points at quizID.
	DeactivateQuiz(ctx context.Context, quizID int64) error
}

// AttemptStore persists scored attempts.
type AttemptStore interface {
	FindAttempt(ctx context.Context, userID, quizID int64) (domain.Attempt, bool, error)
	// RecordAttempt stores the attempt and its answers atomically. When an attempt
	// already exists for the (user, quiz) pair it stores nothing and returns the
	// existing attempt with domain.ErrAlreadyAttempted.
	RecordAttempt(ctx context.Context, attempt domain.Attempt, answers []domain.Answer) (domain.Attempt, error)
}

// TokenStore issues and consumes one-time submission tokens bound to a session.
type TokenStore interface {
	// Issue replaces any live token of the session; IssuedAt of a live token is kept.
	Issue(ctx context.Context, sessionID string) (domain.SubmitToken, error)
	// Consume deletes the session token and returns it when it matches exactly.
	// A missing or mismatched token yields domain.ErrInvalidSubmission.
	Consume(ctx context.Context, sessionID, token string) (domain.SubmitToken, error)
}

// QuizService contains the participant and quiz administration use cases.
type QuizService struct {
	quizzes  QuizReader
	store    QuizStore
	attempts AttemptStore
	tokens   TokenStore
	scorer   Scorer
	feed     *ResultsFeed
	now      func() time.Time
	log      *slog.Logger
	sf       singleflight.Group
}

// QuizOption customizes a QuizService.
type QuizOption func(*QuizService)

// WithScorer overrides the default scorer.
func WithScorer(scorer Scorer) QuizOption {
	return func(s *QuizService) { s.scorer = scorer }
}

// WithFeed publishes recorded attempts to feed.
func WithFeed(feed *ResultsFeed) QuizOption {
	return func(s *QuizService) { s.feed = feed }
}

// WithClock is used by tests for deterministic timestamps.
func WithClock(now func() time.Time) QuizOption {
	return func(s *QuizService) { s.now = now }
}

// WithLogger sets the service logger.
func WithLogger(log *slog.Logger) QuizOption {
	return func(s *QuizService) { s.log = log }
}

func NewQuizService(quizzes QuizReader, store QuizStore, attempts AttemptStore, tokens TokenStore, opts ...QuizOption) *QuizService {
	s := &QuizService{
		quizzes:  quizzes,
		store:    store,
		attempts: attempts,
		tokens:   tokens,
		scorer:   NewScorer(),
		now:      time.Now,
		log:      slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// SubmitRequest is a typed quiz submission.
type SubmitRequest struct {
	QuizID    int64
	UserID    int64
	SessionID string
	Token     string
	Answers   domain.Submission
}

// ActiveQuiz is what a participant receives before answering.
type ActiveQuiz struct {
	Quiz        domain.QuizView `json:"quiz"`
	SubmitToken string          `json:"submitToken"`
	StartedAt   time.Time       `json:"startedAt"`
	// Result is set, together with domain.ErrAlreadyAttempted, when the user already submitted.
	Result *Result `json:"result,omitempty"`
}

// SubmitQuiz scores and records a submission. On domain.ErrAlreadyAttempted the
// returned result is the prior attempt's.
func (s *QuizService) SubmitQuiz(ctx context.Context, req SubmitRequest) (Result, error) {
	quiz, err := s.quizzes.LoadQuiz(ctx, req.QuizID)
	if err != nil {
		if errors.Is(err, domain.ErrQuizNotFound) {
			return Result{}, fmt.Errorf("%w: %w", domain.ErrInvalidSubmission, err)
		}
		return Result{}, err
	}
	if !quiz.Active {
		return Result{}, fmt.Errorf("quiz %d: %w", quiz.ID, domain.ErrNoActiveQuiz)
	}

	prior, found, err := s.attempts.FindAttempt(ctx, req.UserID, quiz.ID)
	if err != nil {
		return Result{}, err
	}
	if found {
		return s.priorResult(prior), domain.ErrAlreadyAttempted
	}

	issued, err := s.tokens.Consume(ctx, req.SessionID, req.Token)
	if err != nil {
		return Result{}, err
	}

	result, err := s.scorer.Score(quiz, req.Answers)
	if err != nil {
		return Result{}, err
	}

	attempt := domain.Attempt{
		UserID:      req.UserID,
		QuizID:      quiz.ID,
		Score:       result.FinalScore,
		MaxScore:    result.MaxScore,
		Status:      result.Status,
		StartedAt:   issued.IssuedAt,
		SubmittedAt: s.now().UTC(),
	}
	answers := make([]domain.Answer, 0, len(result.Answers))
	for _, a := range result.Answers {
		answers = append(answers, domain.Answer{
			QuestionID: a.QuestionID,
			OptionID:   a.OptionID,
			Correct:    a.Correct,
		})
	}

	stored, err := s.attempts.RecordAttempt(ctx, attempt, answers)
	if errors.Is(err, domain.ErrAlreadyAttempted) {
		s.log.Warn("concurrent submission rejected", "user", req.UserID, "quiz", quiz.ID, "attempt", stored.ID)
		return s.priorResult(stored), err
	}
	if err != nil {
		return Result{}, err
	}
	result.AttemptID = stored.ID

	s.log.Info("attempt recorded",
		"attempt", stored.ID,
		"user", req.UserID,
		"quiz", quiz.ID,
		"score", result.FinalScore,
		"max", result.MaxScore,
		"status", result.Status,
	)
	if s.feed != nil {
		s.feed.Publish(domain.AttemptSummary{
			AttemptID:   stored.ID,
			UserID:      stored.UserID,
			QuizID:      quiz.ID,
			QuizTitle:   quiz.Title,
			Score:       stored.Score,
			MaxScore:    stored.MaxScore,
			Status:      stored.Status,
			SubmittedAt: stored.SubmittedAt,
		})
	}
	return result, nil
}

// ActiveQuizForUser renders the active quiz in the session language and issues a
// fresh submission token for the session.
func (s *QuizService) ActiveQuizForUser(ctx context.Context, principal domain.Principal) (ActiveQuiz, error) {
	quiz, err := s.loadActive(ctx)
	if err != nil {
		return ActiveQuiz{}, err
	}

	prior, found, err := s.attempts.FindAttempt(ctx, principal.ID, quiz.ID)
	if err != nil {
		return ActiveQuiz{}, err
	}
	if found {
		result := s.priorResult(prior)
		return ActiveQuiz{Result: &result}, domain.ErrAlreadyAttempted
	}

	token, err := s.tokens.Issue(ctx, principal.SessionID)
	if err != nil {
		return ActiveQuiz{}, err
	}

	lang := principal.Language
	if lang == "" {
		lang = domain.DefaultLanguage
	}
	return ActiveQuiz{
		Quiz:        quiz.Localize(lang),
		SubmitToken: token.Value,
		StartedAt:   token.IssuedAt,
	}, nil
}

// loadActive coalesces concurrent loads of the active quiz; nothing is retained
// once the shared call returns. The shared load runs detached from any single
// caller's cancellation; each caller still stops waiting when its own ctx ends.
func (s *QuizService) loadActive(ctx context.Context) (domain.Quiz, error) {
	shared := context.WithoutCancel(ctx)
	ch := s.sf.DoChan("active", func() (interface{}, error) {
		return s.quizzes.LoadActiveQuiz(shared)
	})
	select {
	case <-ctx.Done():
		return domain.Quiz{}, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return domain.Quiz{}, res.Err
		}
		return res.Val.(domain.Quiz), nil
	}
}

// UserResult returns the user's attempt on the active quiz.
func (s *QuizService) UserResult(ctx context.Context, userID int64) (Result, error) {
	quiz, err := s.loadActive(ctx)
	if err != nil {
		return Result{}, err
	}
	attempt, found, err := s.attempts.FindAttempt(ctx, userID, quiz.ID)
	if err != nil {
		return Result{}, err
	}
	if !found {
		return Result{}, domain.ErrAttemptNotFound
	}
	return s.priorResult(attempt), nil
}

// ActivateQuiz makes quizID the single active quiz.
func (s *QuizService) ActivateQuiz(ctx context.Context, quizID int64) error {
	if err := s.store.ActivateQuiz(ctx, quizID); err != nil {
		return err
	}
	s.log.Info("quiz activated", "quiz", quizID)
	return nil
}

// DeactivateQuiz closes quizID for attempts if it is the active one.
func (s *QuizService) DeactivateQuiz(ctx context.Context, quizID int64) error {
	if err := s.store.DeactivateQuiz(ctx, quizID); err != nil {
		return err
	}
	s.log.Info("quiz deactivated", "quiz", quizID)
	return nil
}

// CreateQuiz validates and stores a new quiz definition.
func (s *QuizService) CreateQuiz(ctx context.Context, in NewQuiz) (domain.Quiz, error) {
	if err := validate.Struct(in); err != nil {
		return domain.Quiz{}, fmt.Errorf("%w: %w", domain.ErrInvalidQuiz, err)
	}
	quiz, err := s.store.CreateQuiz(ctx, in.toDomain(), in.Activate)
	if err != nil {
		return domain.Quiz{}, err
	}
	s.log.Info("quiz created", "quiz", quiz.ID, "title", quiz.Title, "questions", len(quiz.Questions), "active", quiz.Active)
	return quiz, nil
}

// GetQuiz returns a quiz with its answer key.
func (s *QuizService) GetQuiz(ctx context.Context, quizID int64) (domain.Quiz, error) {
	return s.quizzes.LoadQuiz(ctx, quizID)
}

// ListQuizzes returns all quizzes.
func (s *QuizService) ListQuizzes(ctx context.Context) ([]domain.QuizSummary, error) {
	return s.store.ListQuizzes(ctx)
}

// priorResult keeps the stored status; the threshold may have changed since.
func (s *QuizService) priorResult(a domain.Attempt) Result {
	pct, _ := s.scorer.Verdict(a.Score, a.MaxScore)
	return Result{
		AttemptID:  a.ID,
		QuizID:     a.QuizID,
		FinalScore: a.Score,
		MaxScore:   a.MaxScore,
		Percentage: pct,
		Status:     a.Status,
	}
}
