package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"quiz-eval-service/internal/domain"

	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/driver/pgdriver"
)

const uniqueViolation = "23505"

// OpenDB returns a bun handle over the pgdriver connector for dsn.
func OpenDB(dsn string) *bun.DB {
	sqldb := sql.OpenDB(pgdriver.NewConnector(pgdriver.WithDSN(dsn)))
	return bun.NewDB(sqldb, pgdialect.New())
}

// Store persists quizzes, accounts and attempts with bun. Reads of full quiz
// content go through QuizLoader instead.
type Store struct {
	db *bun.DB
}

func NewStore(db *bun.DB) *Store {
	return &Store{db: db}
}

func storageErr(op string, err error) error {
	return fmt.Errorf("%w: %s: %w", domain.ErrStorageFailure, op, err)
}

func isUniqueViolation(err error) bool {
	var pgErr pgdriver.Error
	return errors.As(err, &pgErr) && pgErr.Field('C') == uniqueViolation
}

// CreateQuiz implements app.QuizStore. The quiz, its questions, options and
// translations are inserted in one transaction.
func (s *Store) CreateQuiz(ctx context.Context, quiz domain.Quiz, activate bool) (domain.Quiz, error) {
	err := s.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		qr := &quizRow{Title: quiz.Title, Language: string(quiz.Language)}
		if _, err := tx.NewInsert().Model(qr).Returning("id").Exec(ctx); err != nil {
			return err
		}
		quiz.ID = qr.ID

		questions := make([]domain.Question, len(quiz.Questions))
		for i, question := range quiz.Questions {
			stored, err := insertQuestion(ctx, tx, quiz.ID, i, question)
			if err != nil {
				return err
			}
			questions[i] = stored
		}
		quiz.Questions = questions

		if activate {
			return setActive(ctx, tx, quiz.ID)
		}
		return nil
	})
	if err != nil {
		return domain.Quiz{}, storageErr("create quiz", err)
	}
	quiz.Active = activate
	return quiz, nil
}

func insertQuestion(ctx context.Context, tx bun.Tx, quizID int64, position int, q domain.Question) (domain.Question, error) {
	qr := &questionRow{QuizID: quizID, Position: position, Title: q.Title}
	if _, err := tx.NewInsert().Model(qr).Returning("id").Exec(ctx); err != nil {
		return q, err
	}
	q.ID = qr.ID
	q.QuizID = quizID

	if len(q.Translations) > 0 {
		rows := make([]questionTranslationRow, 0, len(q.Translations))
		for lang, title := range q.Translations {
			rows = append(rows, questionTranslationRow{QuestionID: q.ID, Language: string(lang), Title: title})
		}
		if _, err := tx.NewInsert().Model(&rows).Exec(ctx); err != nil {
			return q, err
		}
	}

	options := make([]domain.Option, len(q.Options))
	for i, option := range q.Options {
		or := &optionRow{QuestionID: q.ID, Position: i, Text: option.Text, Correct: option.Correct}
		if _, err := tx.NewInsert().Model(or).Returning("id").Exec(ctx); err != nil {
			return q, err
		}
		option.ID = or.ID
		option.QuestionID = q.ID
		if len(option.Translations) > 0 {
			rows := make([]optionTranslationRow, 0, len(option.Translations))
			for lang, text := range option.Translations {
				rows = append(rows, optionTranslationRow{OptionID: option.ID, Language: string(lang), Text: text})
			}
			if _, err := tx.NewInsert().Model(&rows).Exec(ctx); err != nil {
				return q, err
			}
		}
		options[i] = option
	}
	q.Options = options
	return q, nil
}

// setActive points the single active_quiz row at quizID.
func setActive(ctx context.Context, tx bun.Tx, quizID int64) error {
	row := &activeQuizRow{Singleton: true, QuizID: &quizID}
	_, err := tx.NewInsert().
		Model(row).
		On("CONFLICT (singleton) DO UPDATE").
		Set("quiz_id = EXCLUDED.quiz_id").
		Exec(ctx)
	return err
}

func quizExists(ctx context.Context, tx bun.Tx, quizID int64) (bool, error) {
	return tx.NewSelect().Model((*quizRow)(nil)).Where("id = ?", quizID).Exists(ctx)
}

// ListQuizzes implements app.QuizStore.
func (s *Store) ListQuizzes(ctx context.Context) ([]domain.QuizSummary, error) {
	var rows []struct {
		ID            int64  `bun:"id"`
		Title         string `bun:"title"`
		Language      string `bun:"language"`
		Active        bool   `bun:"active"`
		QuestionCount int    `bun:"question_count"`
	}
	err := s.db.NewSelect().
		TableExpr("quizzes AS q").
		ColumnExpr("q.id, q.title, q.language").
		ColumnExpr("a.quiz_id IS NOT NULL AS active").
		ColumnExpr("(SELECT COUNT(*) FROM questions WHERE questions.quiz_id = q.id) AS question_count").
		Join("LEFT JOIN active_quiz AS a ON a.quiz_id = q.id").
		OrderExpr("q.id").
		Scan(ctx, &rows)
	if err != nil {
		return nil, storageErr("list quizzes", err)
	}
	out := make([]domain.QuizSummary, 0, len(rows))
	for _, r := range rows {
		out = append(out, domain.QuizSummary{
			ID:            r.ID,
			Title:         r.Title,
			Language:      domain.Language(r.Language),
			Active:        r.Active,
			QuestionCount: r.QuestionCount,
		})
	}
	return out, nil
}

// ActivateQuiz implements app.QuizStore.
func (s *Store) ActivateQuiz(ctx context.Context, quizID int64) error {
	err := s.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		ok, err := quizExists(ctx, tx, quizID)
		if err != nil {
			return err
		}
		if !ok {
			return domain.ErrQuizNotFound
		}
		return setActive(ctx, tx, quizID)
	})
	if err != nil && !errors.Is(err, domain.ErrQuizNotFound) {
		return storageErr("activate quiz", err)
	}
	return err
}

// DeactivateQuiz implements app.QuizStore.
func (s *Store) DeactivateQuiz(ctx context.Context, quizID int64) error {
	err := s.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		ok, err := quizExists(ctx, tx, quizID)
		if err != nil {
			return err
		}
		if !ok {
			return domain.ErrQuizNotFound
		}
		_, err = tx.NewUpdate().
			Model((*activeQuizRow)(nil)).
			Set("quiz_id = NULL").
			Where("quiz_id = ?", quizID).
			Exec(ctx)
		return err
	})
	if err != nil && !errors.Is(err, domain.ErrQuizNotFound) {
		return storageErr("deactivate quiz", err)
	}
	return err
}

// FindAttempt implements app.AttemptStore.
func (s *Store) FindAttempt(ctx context.Context, userID, quizID int64) (domain.Attempt, bool, error) {
	row := new(attemptRow)
	err := s.db.NewSelect().Model(row).
		Where("user_id = ?", userID).
		Where("quiz_id = ?", quizID).
		Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Attempt{}, false, nil
	}
	if err != nil {
		return domain.Attempt{}, false, storageErr("find attempt", err)
	}
	return row.toDomain(), true, nil
}

// RecordAttempt implements app.AttemptStore. The unique (user_id, quiz_id)
// constraint decides concurrent submissions; the loser reads back the winner.
func (s *Store) RecordAttempt(ctx context.Context, attempt domain.Attempt, answers []domain.Answer) (domain.Attempt, error) {
	var recorded domain.Attempt
	err := s.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		row := newAttemptRow(attempt)
		_, err := tx.NewInsert().
			Model(row).
			On("CONFLICT (user_id, quiz_id) DO NOTHING").
			Returning("id").
			Exec(ctx)
		if err != nil {
			return err
		}
		if row.ID == 0 {
			existing := new(attemptRow)
			err := tx.NewSelect().Model(existing).
				Where("user_id = ?", attempt.UserID).
				Where("quiz_id = ?", attempt.QuizID).
				Scan(ctx)
			if err != nil {
				return err
			}
			recorded = existing.toDomain()
			return domain.ErrAlreadyAttempted
		}

		if len(answers) > 0 {
			rows := make([]answerRow, 0, len(answers))
			for _, a := range answers {
				rows = append(rows, answerRow{
					AttemptID:  row.ID,
					QuestionID: a.QuestionID,
					OptionID:   a.OptionID,
					Correct:    a.Correct,
				})
			}
			if _, err := tx.NewInsert().Model(&rows).Exec(ctx); err != nil {
				return err
			}
		}
		recorded = row.toDomain()
		return nil
	})
	switch {
	case err == nil:
		return recorded, nil
	case errors.Is(err, domain.ErrAlreadyAttempted):
		return recorded, err
	default:
		return domain.Attempt{}, storageErr("record attempt", err)
	}
}

// CreateUser implements app.AccountStore.
func (s *Store) CreateUser(ctx context.Context, user domain.User) (domain.User, error) {
	row := &userRow{
		EmpID:        user.EmpID,
		CIN:          user.CIN,
		FirstName:    user.FirstName,
		LastName:     user.LastName,
		Service:      user.Service,
		Site:         user.Site,
		PasswordHash: user.PasswordHash,
	}
	if _, err := s.db.NewInsert().Model(row).Returning("id").Exec(ctx); err != nil {
		if isUniqueViolation(err) {
			return domain.User{}, domain.ErrUserExists
		}
		return domain.User{}, storageErr("create user", err)
	}
	return row.toDomain(), nil
}

// FindUserByEmpID implements app.AccountStore.
func (s *Store) FindUserByEmpID(ctx context.Context, empID string) (domain.User, bool, error) {
	row := new(userRow)
	err := s.db.NewSelect().Model(row).Where("emp_id = ?", empID).Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.User{}, false, nil
	}
	if err != nil {
		return domain.User{}, false, storageErr("find user", err)
	}
	return row.toDomain(), true, nil
}

// ListUsers implements app.AccountStore.
func (s *Store) ListUsers(ctx context.Context) ([]domain.User, error) {
	var rows []userRow
	if err := s.db.NewSelect().Model(&rows).OrderExpr("id").Scan(ctx); err != nil {
		return nil, storageErr("list users", err)
	}
	out := make([]domain.User, 0, len(rows))
	for _, r := range rows {
		out = append(out, r.toDomain())
	}
	return out, nil
}

// CreateAdmin implements app.AccountStore.
func (s *Store) CreateAdmin(ctx context.Context, admin domain.Admin) (domain.Admin, error) {
	row := &adminRow{Username: admin.Username, PasswordHash: admin.PasswordHash}
	if _, err := s.db.NewInsert().Model(row).Returning("id").Exec(ctx); err != nil {
		if isUniqueViolation(err) {
			return domain.Admin{}, domain.ErrAdminExists
		}
		return domain.Admin{}, storageErr("create admin", err)
	}
	return domain.Admin{ID: row.ID, Username: row.Username, PasswordHash: row.PasswordHash}, nil
}

// FindAdminByUsername implements app.AccountStore.
func (s *Store) FindAdminByUsername(ctx context.Context, username string) (domain.Admin, bool, error) {
	row := new(adminRow)
	err := s.db.NewSelect().Model(row).Where("username = ?", username).Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Admin{}, false, nil
	}
	if err != nil {
		return domain.Admin{}, false, storageErr("find admin", err)
	}
	return domain.Admin{ID: row.ID, Username: row.Username, PasswordHash: row.PasswordHash}, true, nil
}

// ListAttempts implements app.ReportStore.
func (s *Store) ListAttempts(ctx context.Context) ([]domain.AttemptRecord, error) {
	var rows []attemptRecordRow
	err := s.db.NewSelect().
		Model(&rows).
		ColumnExpr("a.*").
		ColumnExpr("u.emp_id, u.cin, u.first_name, u.last_name, u.service, u.site").
		ColumnExpr("q.title AS quiz_title").
		Join("JOIN users AS u ON u.id = a.user_id").
		Join("JOIN quizzes AS q ON q.id = a.quiz_id").
		OrderExpr("a.id").
		Scan(ctx)
	if err != nil {
		return nil, storageErr("list attempts", err)
	}
	out := make([]domain.AttemptRecord, 0, len(rows))
	for _, r := range rows {
		out = append(out, r.toDomain())
	}
	return out, nil
}

// GetAttempt implements app.ReportStore.
func (s *Store) GetAttempt(ctx context.Context, attemptID int64) (domain.AttemptDetail, error) {
	row := new(attemptRow)
	err := s.db.NewSelect().Model(row).Where("id = ?", attemptID).Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.AttemptDetail{}, domain.ErrAttemptNotFound
	}
	if err != nil {
		return domain.AttemptDetail{}, storageErr("get attempt", err)
	}

	var answers []answerRow
	if err := s.db.NewSelect().Model(&answers).Where("attempt_id = ?", attemptID).OrderExpr("id").Scan(ctx); err != nil {
		return domain.AttemptDetail{}, storageErr("get attempt answers", err)
	}
	detail := domain.AttemptDetail{Attempt: row.toDomain(), Answers: make([]domain.Answer, 0, len(answers))}
	for _, a := range answers {
		detail.Answers = append(detail.Answers, domain.Answer{
			ID:         a.ID,
			AttemptID:  a.AttemptID,
			QuestionID: a.QuestionID,
			OptionID:   a.OptionID,
			Correct:    a.Correct,
		})
	}
	return detail, nil
}

// CountUsers implements app.ReportStore.
func (s *Store) CountUsers(ctx context.Context) (int, error) {
	n, err := s.db.NewSelect().Model((*userRow)(nil)).Count(ctx)
	if err != nil {
		return 0, storageErr("count users", err)
	}
	return n, nil
}

// CountQuizzes implements app.ReportStore.
func (s *Store) CountQuizzes(ctx context.Context) (int, error) {
	n, err := s.db.NewSelect().Model((*quizRow)(nil)).Count(ctx)
	if err != nil {
		return 0, storageErr("count quizzes", err)
	}
	return n, nil
}

// CountAttempts implements app.ReportStore.
func (s *Store) CountAttempts(ctx context.Context) (int, error) {
	n, err := s.db.NewSelect().Model((*attemptRow)(nil)).Count(ctx)
	if err != nil {
		return 0, storageErr("count attempts", err)
	}
	return n, nil
}

// AttemptsPerQuiz implements app.ReportStore.
func (s *Store) AttemptsPerQuiz(ctx context.Context) ([]domain.QuizAttemptCount, error) {
	var rows []struct {
		QuizID   int64  `bun:"quiz_id"`
		Title    string `bun:"title"`
		Attempts int    `bun:"attempts"`
		Passed   int    `bun:"passed"`
	}
	err := s.db.NewSelect().
		TableExpr("quizzes AS q").
		ColumnExpr("q.id AS quiz_id, q.title").
		ColumnExpr("COUNT(a.id) AS attempts").
		ColumnExpr("COUNT(a.id) FILTER (WHERE a.status = ?) AS passed", domain.StatusPassed).
		Join("LEFT JOIN attempts AS a ON a.quiz_id = q.id").
		GroupExpr("q.id, q.title").
		OrderExpr("q.id").
		Scan(ctx, &rows)
	if err != nil {
		return nil, storageErr("attempts per quiz", err)
	}
	out := make([]domain.QuizAttemptCount, 0, len(rows))
	for _, r := range rows {
		out = append(out, domain.QuizAttemptCount{QuizID: r.QuizID, Title: r.Title, Attempts: r.Attempts, Passed: r.Passed})
	}
	return out, nil
}

// ScoreSummary implements app.ReportStore.
func (s *Store) ScoreSummary(ctx context.Context) (domain.ScoreSummary, error) {
	var row struct {
		Avg sql.NullFloat64 `bun:"avg"`
		Min sql.NullInt64   `bun:"min"`
		Max sql.NullInt64   `bun:"max"`
	}
	err := s.db.NewSelect().
		TableExpr("attempts").
		ColumnExpr("AVG(score)::float8 AS avg, MIN(score) AS min, MAX(score) AS max").
		Scan(ctx, &row)
	if err != nil {
		return domain.ScoreSummary{}, storageErr("score summary", err)
	}
	var out domain.ScoreSummary
	if row.Avg.Valid {
		avg := row.Avg.Float64
		out.Avg = &avg
	}
	if row.Min.Valid && row.Max.Valid {
		lo, hi := int(row.Min.Int64), int(row.Max.Int64)
		out.Min, out.Max = &lo, &hi
	}
	return out, nil
}
