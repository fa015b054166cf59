package postgres

import (
	"context"
	"errors"
	"fmt"

	"quiz-eval-service/internal/domain"

	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"
)

const (
	quizByIDSQL = `SELECT q.id, q.title, q.language, a.quiz_id IS NOT NULL
		FROM quizzes q LEFT JOIN active_quiz a ON a.quiz_id = q.id
		WHERE q.id = $1`
	activeQuizSQL = `SELECT q.id, q.title, q.language, TRUE
		FROM active_quiz a JOIN quizzes q ON q.id = a.quiz_id`

	questionsSQL = `SELECT id, title FROM questions WHERE quiz_id = $1 ORDER BY position, id`
	optionsSQL   = `SELECT o.id, o.question_id, o.text, o.is_correct
		FROM options o JOIN questions q ON q.id = o.question_id
		WHERE q.quiz_id = $1 ORDER BY o.position, o.id`
	questionTranslationsSQL = `SELECT t.question_id, t.language, t.title
		FROM question_translations t JOIN questions q ON q.id = t.question_id
		WHERE q.quiz_id = $1`
	optionTranslationsSQL = `SELECT t.option_id, t.language, t.text
		FROM option_translations t
		JOIN options o ON o.id = t.option_id
		JOIN questions q ON q.id = o.question_id
		WHERE q.quiz_id = $1`
)

// QuizLoader reads full quiz content, translations included, over a pgx pool.
type QuizLoader struct {
	pool *pgxpool.Pool
}

func NewQuizLoader(pool *pgxpool.Pool) *QuizLoader {
	return &QuizLoader{pool: pool}
}

func (l *QuizLoader) LoadQuiz(ctx context.Context, quizID int64) (domain.Quiz, error) {
	quiz, err := l.loadHeader(ctx, quizByIDSQL, quizID)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.Quiz{}, fmt.Errorf("%w: %d", domain.ErrQuizNotFound, quizID)
	}
	if err != nil {
		return domain.Quiz{}, fmt.Errorf("%w: load quiz: %w", domain.ErrStorageFailure, err)
	}
	return quiz, l.loadContent(ctx, &quiz)
}

func (l *QuizLoader) LoadActiveQuiz(ctx context.Context) (domain.Quiz, error) {
	quiz, err := l.loadHeader(ctx, activeQuizSQL)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.Quiz{}, domain.ErrNoActiveQuiz
	}
	if err != nil {
		return domain.Quiz{}, fmt.Errorf("%w: load active quiz: %w", domain.ErrStorageFailure, err)
	}
	return quiz, l.loadContent(ctx, &quiz)
}

func (l *QuizLoader) loadHeader(ctx context.Context, query string, args ...interface{}) (domain.Quiz, error) {
	var (
		quiz     domain.Quiz
		language string
	)
	err := l.pool.QueryRow(ctx, query, args...).Scan(&quiz.ID, &quiz.Title, &language, &quiz.Active)
	quiz.Language = domain.Language(language)
	return quiz, err
}

// loadContent fetches questions, options and both translation tables in one batch.
func (l *QuizLoader) loadContent(ctx context.Context, quiz *domain.Quiz) error {
	batch := &pgx.Batch{}
	batch.Queue(questionsSQL, quiz.ID)
	batch.Queue(optionsSQL, quiz.ID)
	batch.Queue(questionTranslationsSQL, quiz.ID)
	batch.Queue(optionTranslationsSQL, quiz.ID)

	results := l.pool.SendBatch(ctx, batch)
	defer results.Close()

	if err := l.readContent(results, quiz); err != nil {
		return fmt.Errorf("%w: load quiz %d content: %w", domain.ErrStorageFailure, quiz.ID, err)
	}
	return nil
}

func (l *QuizLoader) readContent(results pgx.BatchResults, quiz *domain.Quiz) error {
	index := map[int64]int{}
	err := scanAll(results, func(rows pgx.Rows) error {
		var q domain.Question
		if err := rows.Scan(&q.ID, &q.Title); err != nil {
			return err
		}
		q.QuizID = quiz.ID
		index[q.ID] = len(quiz.Questions)
		quiz.Questions = append(quiz.Questions, q)
		return nil
	})
	if err != nil {
		return err
	}

	optionAt := map[int64][2]int{}
	err = scanAll(results, func(rows pgx.Rows) error {
		var o domain.Option
		if err := rows.Scan(&o.ID, &o.QuestionID, &o.Text, &o.Correct); err != nil {
			return err
		}
		qi, ok := index[o.QuestionID]
		if !ok {
			return nil
		}
		question := &quiz.Questions[qi]
		optionAt[o.ID] = [2]int{qi, len(question.Options)}
		question.Options = append(question.Options, o)
		return nil
	})
	if err != nil {
		return err
	}

	err = scanAll(results, func(rows pgx.Rows) error {
		var (
			questionID     int64
			language, text string
		)
		if err := rows.Scan(&questionID, &language, &text); err != nil {
			return err
		}
		if qi, ok := index[questionID]; ok {
			question := &quiz.Questions[qi]
			if question.Translations == nil {
				question.Translations = map[domain.Language]string{}
			}
			question.Translations[domain.Language(language)] = text
		}
		return nil
	})
	if err != nil {
		return err
	}

	return scanAll(results, func(rows pgx.Rows) error {
		var (
			optionID       int64
			language, text string
		)
		if err := rows.Scan(&optionID, &language, &text); err != nil {
			return err
		}
		if at, ok := optionAt[optionID]; ok {
			option := &quiz.Questions[at[0]].Options[at[1]]
			if option.Translations == nil {
				option.Translations = map[domain.Language]string{}
			}
			option.Translations[domain.Language(language)] = text
		}
		return nil
	})
}

func scanAll(results pgx.BatchResults, scan func(pgx.Rows) error) error {
	rows, err := results.Query()
	if err != nil {
		return err
	}
	defer rows.Close()
	for rows.Next() {
		if err := scan(rows); err != nil {
			return err
		}
	}
	return rows.Err()
}
