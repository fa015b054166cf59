package app

import (
	"fmt"

	"quiz-eval-service/internal/domain"

	"github.com/shopspring/decimal"
)

// PointsPerQuestion is awarded for an exact match of a question's answer key.
const PointsPerQuestion = 4

// DefaultPassingThreshold is the passing percentage used when none is configured.
var DefaultPassingThreshold = decimal.NewFromInt(75)

// Scorer applies the partial-credit rules to a submission.
type Scorer struct {
	// Threshold is the percentage of the maximum score required to pass.
	Threshold decimal.Decimal
	// CountUnanswered makes every question of the quiz count toward the maximum
	// score, not only the questions present in the submission.
	CountUnanswered bool
}

// NewScorer returns a scorer with the default threshold.
func NewScorer() Scorer {
	return Scorer{Threshold: DefaultPassingThreshold}
}

// ParseThreshold parses a percentage in [0, 100]; an empty string yields the default.
func ParseThreshold(raw string) (decimal.Decimal, error) {
	if raw == "" {
		return DefaultPassingThreshold, nil
	}
	d, err := decimal.NewFromString(raw)
	if err != nil {
		return decimal.Decimal{}, fmt.Errorf("parse passing threshold %q: %w", raw, err)
	}
	if d.IsNegative() || d.GreaterThan(decimal.NewFromInt(100)) {
		return decimal.Decimal{}, fmt.Errorf("passing threshold %s out of range [0, 100]", d)
	}
	return d, nil
}

// Result is the outcome of scoring one submission.
type Result struct {
	AttemptID  int64                      `json:"attemptId,omitempty"`
	QuizID     int64                      `json:"quizId"`
	FinalScore int                        `json:"finalScore"`
	MaxScore   int                        `json:"maxScore"`
	Percentage decimal.Decimal            `json:"percentage"`
	Status     string                     `json:"status"`
	Answers    []domain.AnswerCorrectness `json:"answers,omitempty"`
}

// Score validates the submission against the quiz and computes score and verdict.
// Answers are ordered by quiz question order, then by submitted option order.
func (s Scorer) Score(quiz domain.Quiz, submission domain.Submission) (Result, error) {
	known := make(map[int64]struct{}, len(quiz.Questions))
	for _, q := range quiz.Questions {
		known[q.ID] = struct{}{}
	}
	for questionID := range submission {
		if _, ok := known[questionID]; !ok {
			return Result{}, fmt.Errorf("%w: question %d does not belong to quiz %d", domain.ErrInvalidSubmission, questionID, quiz.ID)
		}
	}

	result := Result{QuizID: quiz.ID}
	counted := 0
	for _, question := range quiz.Questions {
		selected, ok := submission[question.ID]
		if !ok {
			if s.CountUnanswered {
				counted++
			}
			continue
		}
		counted++

		points, answers, err := ScoreQuestion(question, selected)
		if err != nil {
			return Result{}, err
		}
		result.FinalScore += points
		result.Answers = append(result.Answers, answers...)
	}

	result.MaxScore = counted * PointsPerQuestion
	exact := percentage(result.FinalScore, result.MaxScore)
	result.Status = s.status(exact)
	result.Percentage = exact.Round(2)
	return result, nil
}

// Verdict recomputes percentage and status for stored totals.
func (s Scorer) Verdict(score, maxScore int) (decimal.Decimal, string) {
	exact := percentage(score, maxScore)
	return exact.Round(2), s.status(exact)
}

func (s Scorer) status(pct decimal.Decimal) string {
	if pct.GreaterThanOrEqual(s.Threshold) {
		return domain.StatusPassed
	}
	return domain.StatusFailed
}

func percentage(score, maxScore int) decimal.Decimal {
	if maxScore <= 0 {
		return decimal.Zero
	}
	return decimal.NewFromInt(int64(score)).
		Mul(decimal.NewFromInt(100)).
		Div(decimal.NewFromInt(int64(maxScore)))
}

// ScoreQuestion scores the options selected for one question and reports the
// correctness of each selected option as read from the answer key now.
func ScoreQuestion(question domain.Question, selected []int64) (int, []domain.AnswerCorrectness, error) {
	options := make(map[int64]domain.Option, len(question.Options))
	for _, o := range question.Options {
		options[o.ID] = o
	}

	seen := make(map[int64]struct{}, len(selected))
	answers := make([]domain.AnswerCorrectness, 0, len(selected))
	correctSelected, incorrectSelected := 0, 0
	for _, optionID := range selected {
		option, ok := options[optionID]
		if !ok {
			return 0, nil, fmt.Errorf("%w: option %d does not belong to question %d", domain.ErrInvalidSubmission, optionID, question.ID)
		}
		if _, dup := seen[optionID]; dup {
			return 0, nil, fmt.Errorf("%w: option %d selected twice for question %d", domain.ErrInvalidSubmission, optionID, question.ID)
		}
		seen[optionID] = struct{}{}

		if option.Correct {
			correctSelected++
		} else {
			incorrectSelected++
		}
		answers = append(answers, domain.AnswerCorrectness{
			QuestionID: question.ID,
			OptionID:   optionID,
			Correct:    option.Correct,
		})
	}

	return contribution(correctSelected, incorrectSelected, question.CorrectCount()), answers, nil
}

// contribution is evaluated in this exact order; an exact match of the key is
// worth full marks regardless of how many options the question has.
func contribution(correctSelected, incorrectSelected, totalCorrect int) int {
	if incorrectSelected == 0 {
		if correctSelected == totalCorrect {
			return PointsPerQuestion
		}
		return correctSelected
	}
	if correctSelected == 0 {
		return -incorrectSelected
	}
	return correctSelected - incorrectSelected
}
