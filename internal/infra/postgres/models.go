package postgres

import (
	"time"

	"quiz-eval-service/internal/domain"

	"github.com/uptrace/bun"
)

type quizRow struct {
	bun.BaseModel `bun:"table:quizzes"`

	ID        int64     `bun:"id,pk,autoincrement"`
	Title     string    `bun:"title,notnull"`
	Language  string    `bun:"language,notnull"`
	CreatedAt time.Time `bun:"created_at,nullzero,notnull,default:current_timestamp"`
}

type questionRow struct {
	bun.BaseModel `bun:"table:questions"`

	ID       int64  `bun:"id,pk,autoincrement"`
	QuizID   int64  `bun:"quiz_id,notnull"`
	Position int    `bun:"position,notnull"`
	Title    string `bun:"title,notnull"`
}

type questionTranslationRow struct {
	bun.BaseModel `bun:"table:question_translations"`

	ID         int64  `bun:"id,pk,autoincrement"`
	QuestionID int64  `bun:"question_id,notnull"`
	Language   string `bun:"language,notnull"`
	Title      string `bun:"title,notnull"`
}

type optionRow struct {
	bun.BaseModel `bun:"table:options"`

	ID         int64  `bun:"id,pk,autoincrement"`
	QuestionID int64  `bun:"question_id,notnull"`
	Position   int    `bun:"position,notnull"`
	Text       string `bun:"text,notnull"`
	Correct    bool   `bun:"is_correct,notnull"`
}

type optionTranslationRow struct {
	bun.BaseModel `bun:"table:option_translations"`

	ID       int64  `bun:"id,pk,autoincrement"`
	OptionID int64  `bun:"option_id,notnull"`
	Language string `bun:"language,notnull"`
	Text     string `bun:"text,notnull"`
}

type activeQuizRow struct {
	bun.BaseModel `bun:"table:active_quiz"`

	Singleton bool   `bun:"singleton,pk"`
	QuizID    *int64 `bun:"quiz_id"`
}

type userRow struct {
	bun.BaseModel `bun:"table:users"`

	ID           int64  `bun:"id,pk,autoincrement"`
	EmpID        string `bun:"emp_id,notnull"`
	CIN          string `bun:"cin,notnull"`
	FirstName    string `bun:"first_name,notnull"`
	LastName     string `bun:"last_name,notnull"`
	Service      string `bun:"service,notnull"`
	Site         string `bun:"site,notnull"`
	PasswordHash string `bun:"password_hash,notnull"`
}

func (r userRow) toDomain() domain.User {
	return domain.User{
		ID:           r.ID,
		EmpID:        r.EmpID,
		CIN:          r.CIN,
		FirstName:    r.FirstName,
		LastName:     r.LastName,
		Service:      r.Service,
		Site:         r.Site,
		PasswordHash: r.PasswordHash,
	}
}

type adminRow struct {
	bun.BaseModel `bun:"table:admins"`

	ID           int64  `bun:"id,pk,autoincrement"`
	Username     string `bun:"username,notnull"`
	PasswordHash string `bun:"password_hash,notnull"`
}

type attemptRow struct {
	bun.BaseModel `bun:"table:attempts"`

	ID          int64     `bun:"id,pk,autoincrement"`
	UserID      int64     `bun:"user_id,notnull"`
	QuizID      int64     `bun:"quiz_id,notnull"`
	Score       int       `bun:"score,notnull"`
	MaxScore    int       `bun:"max_score,notnull"`
	Status      string    `bun:"status,notnull"`
	StartedAt   time.Time `bun:"started_at,notnull"`
	SubmittedAt time.Time `bun:"submitted_at,notnull"`
}

func newAttemptRow(a domain.Attempt) *attemptRow {
	return &attemptRow{
		UserID:      a.UserID,
		QuizID:      a.QuizID,
		Score:       a.Score,
		MaxScore:    a.MaxScore,
		Status:      a.Status,
		StartedAt:   a.StartedAt,
		SubmittedAt: a.SubmittedAt,
	}
}

func (r attemptRow) toDomain() domain.Attempt {
	return domain.Attempt{
		ID:          r.ID,
		UserID:      r.UserID,
		QuizID:      r.QuizID,
		Score:       r.Score,
		MaxScore:    r.MaxScore,
		Status:      r.Status,
		StartedAt:   r.StartedAt.UTC(),
		SubmittedAt: r.SubmittedAt.UTC(),
	}
}

type answerRow struct {
	bun.BaseModel `bun:"table:answers"`

	ID         int64 `bun:"id,pk,autoincrement"`
	AttemptID  int64 `bun:"attempt_id,notnull"`
	QuestionID int64 `bun:"question_id,notnull"`
	OptionID   int64 `bun:"option_id,notnull"`
	Correct    bool  `bun:"is_correct,notnull"`
}

// attemptRecordRow is the shape of the attempts/users/quizzes join.
type attemptRecordRow struct {
	bun.BaseModel `bun:"table:attempts,alias:a"`

	ID          int64     `bun:"id"`
	UserID      int64     `bun:"user_id"`
	QuizID      int64     `bun:"quiz_id"`
	Score       int       `bun:"score"`
	MaxScore    int       `bun:"max_score"`
	Status      string    `bun:"status"`
	StartedAt   time.Time `bun:"started_at"`
	SubmittedAt time.Time `bun:"submitted_at"`
	EmpID       string    `bun:"emp_id"`
	CIN         string    `bun:"cin"`
	FirstName   string    `bun:"first_name"`
	LastName    string    `bun:"last_name"`
	Service     string    `bun:"service"`
	Site        string    `bun:"site"`
	QuizTitle   string    `bun:"quiz_title"`
}

func (r attemptRecordRow) toDomain() domain.AttemptRecord {
	attempt := attemptRow{
		ID:          r.ID,
		UserID:      r.UserID,
		QuizID:      r.QuizID,
		Score:       r.Score,
		MaxScore:    r.MaxScore,
		Status:      r.Status,
		StartedAt:   r.StartedAt,
		SubmittedAt: r.SubmittedAt,
	}
	return domain.AttemptRecord{
		Attempt:   attempt.toDomain(),
		EmpID:     r.EmpID,
		CIN:       r.CIN,
		FirstName: r.FirstName,
		LastName:  r.LastName,
		Service:   r.Service,
		Site:      r.Site,
		QuizTitle: r.QuizTitle,
	}
}
