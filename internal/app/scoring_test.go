package app

import (
	"testing"

	"quiz-eval-service/internal/domain"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// question builds a question whose options are numbered id*10+i; correct lists the correct indexes.
func question(id int64, options int, correct ...int) domain.Question {
	q := domain.Question{ID: id, QuizID: 1, Title: "q"}
	isCorrect := make(map[int]bool, len(correct))
	for _, c := range correct {
		isCorrect[c] = true
	}
	for i := 0; i < options; i++ {
		q.Options = append(q.Options, domain.Option{
			ID:         id*10 + int64(i),
			QuestionID: id,
			Text:       "o",
			Correct:    isCorrect[i],
		})
	}
	return q
}

func TestScoreQuestionRules(t *testing.T) {
	q := question(1, 5, 0, 1, 2) // options 10,11,12 correct; 13,14 wrong

	cases := []struct {
		name     string
		selected []int64
		want     int
	}{
		{name: "exact match", selected: []int64{10, 11, 12}, want: 4},
		{name: "exact match any order", selected: []int64{12, 10, 11}, want: 4},
		{name: "strict subset of correct", selected: []int64{10, 12}, want: 2},
		{name: "single correct", selected: []int64{11}, want: 1},
		{name: "nothing selected", selected: []int64{}, want: 0},
		{name: "only wrong", selected: []int64{13, 14}, want: -2},
		{name: "one wrong", selected: []int64{14}, want: -1},
		{name: "mixed zero", selected: []int64{10, 13}, want: 0},
		{name: "mixed positive", selected: []int64{10, 11, 13}, want: 1},
		{name: "mixed negative", selected: []int64{10, 13, 14}, want: -1},
		{name: "all correct plus wrong", selected: []int64{10, 11, 12, 13}, want: 2},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, answers, err := ScoreQuestion(q, tc.selected)
			require.NoError(t, err)
			assert.Equal(t, tc.want, got)
			assert.Len(t, answers, len(tc.selected))
		})
	}
}

func TestScoreQuestionSingleCorrectExactMatch(t *testing.T) {
	q := question(1, 3, 0)
	got, _, err := ScoreQuestion(q, []int64{10})
	require.NoError(t, err)
	assert.Equal(t, 4, got, "one of three options selected but it is the whole key")
}

func TestScoreQuestionWithoutCorrectOptions(t *testing.T) {
	q := question(1, 2)

	got, _, err := ScoreQuestion(q, nil)
	require.NoError(t, err)
	assert.Equal(t, 4, got, "empty selection matches an empty key")

	got, _, err = ScoreQuestion(q, []int64{10})
	require.NoError(t, err)
	assert.Equal(t, -1, got)
}

func TestScoreQuestionRejectsForeignAndDuplicateOptions(t *testing.T) {
	q := question(1, 3, 0)

	_, _, err := ScoreQuestion(q, []int64{99})
	assert.ErrorIs(t, err, domain.ErrInvalidSubmission)

	_, _, err = ScoreQuestion(q, []int64{10, 10})
	assert.ErrorIs(t, err, domain.ErrInvalidSubmission)
}

func TestScoreQuestionRecordsCorrectnessPerOption(t *testing.T) {
	q := question(7, 3, 1)
	_, answers, err := ScoreQuestion(q, []int64{72, 71})
	require.NoError(t, err)
	assert.Equal(t, []domain.AnswerCorrectness{
		{QuestionID: 7, OptionID: 72, Correct: false},
		{QuestionID: 7, OptionID: 71, Correct: true},
	}, answers)
}

func TestScoreTwoQuestionExample(t *testing.T) {
	quiz := domain.Quiz{ID: 1, Questions: []domain.Question{
		question(1, 4, 0, 1),
		question(2, 4, 0, 1),
	}}

	result, err := NewScorer().Score(quiz, domain.Submission{
		1: {10, 11},
		2: {20, 22},
	})
	require.NoError(t, err)
	assert.Equal(t, 4, result.FinalScore)
	assert.Equal(t, 8, result.MaxScore)
	assert.True(t, result.Percentage.Equal(decimal.NewFromInt(50)), "percentage %s", result.Percentage)
	assert.Equal(t, domain.StatusFailed, result.Status)
	assert.Len(t, result.Answers, 4)
	assert.Equal(t, int64(1), result.Answers[0].QuestionID, "answers follow quiz order")
}

func TestScorePassesAtThreshold(t *testing.T) {
	quiz := domain.Quiz{ID: 1, Questions: []domain.Question{
		question(1, 2, 0),
		question(2, 2, 0),
		question(3, 2, 0),
		question(4, 2, 0),
	}}
	// 4 + 4 + 4 + 0 = 12 of 16 = exactly 75%.
	result, err := NewScorer().Score(quiz, domain.Submission{
		1: {10},
		2: {20},
		3: {30},
		4: {},
	})
	require.NoError(t, err)
	assert.Equal(t, 12, result.FinalScore)
	assert.Equal(t, 16, result.MaxScore)
	assert.Equal(t, domain.StatusPassed, result.Status)

	strict := Scorer{Threshold: decimal.RequireFromString("75.01")}
	result, err = strict.Score(quiz, domain.Submission{1: {10}, 2: {20}, 3: {30}, 4: {}})
	require.NoError(t, err)
	assert.Equal(t, domain.StatusFailed, result.Status)
}

func TestScoreDenominatorPolicy(t *testing.T) {
	quiz := domain.Quiz{ID: 1, Questions: []domain.Question{
		question(1, 2, 0),
		question(2, 2, 0),
	}}
	submission := domain.Submission{1: {10}}

	result, err := NewScorer().Score(quiz, submission)
	require.NoError(t, err)
	assert.Equal(t, 4, result.MaxScore, "only submitted keys count by default")
	assert.Equal(t, domain.StatusPassed, result.Status)

	all := Scorer{Threshold: DefaultPassingThreshold, CountUnanswered: true}
	result, err = all.Score(quiz, submission)
	require.NoError(t, err)
	assert.Equal(t, 8, result.MaxScore)
	assert.Equal(t, domain.StatusFailed, result.Status)
}

func TestScoreEmptySubmission(t *testing.T) {
	quiz := domain.Quiz{ID: 1, Questions: []domain.Question{question(1, 2, 0)}}
	result, err := NewScorer().Score(quiz, domain.Submission{})
	require.NoError(t, err)
	assert.Equal(t, 0, result.MaxScore)
	assert.True(t, result.Percentage.IsZero())
	assert.Equal(t, domain.StatusFailed, result.Status)
}

func TestScoreNegativeTotal(t *testing.T) {
	quiz := domain.Quiz{ID: 1, Questions: []domain.Question{question(1, 3, 0)}}
	result, err := NewScorer().Score(quiz, domain.Submission{1: {11, 12}})
	require.NoError(t, err)
	assert.Equal(t, -2, result.FinalScore)
	assert.True(t, result.Percentage.Equal(decimal.NewFromInt(-50)))
	assert.Equal(t, domain.StatusFailed, result.Status)
}

func TestScoreRejectsQuestionOfAnotherQuiz(t *testing.T) {
	quiz := domain.Quiz{ID: 1, Questions: []domain.Question{question(1, 2, 0)}}
	_, err := NewScorer().Score(quiz, domain.Submission{2: {20}})
	assert.ErrorIs(t, err, domain.ErrInvalidSubmission)
}

func TestScoreRejectsOptionOfAnotherQuestion(t *testing.T) {
	quiz := domain.Quiz{ID: 1, Questions: []domain.Question{
		question(1, 2, 0),
		question(2, 2, 0),
	}}
	_, err := NewScorer().Score(quiz, domain.Submission{1: {20}})
	assert.ErrorIs(t, err, domain.ErrInvalidSubmission)
}

func TestParseThreshold(t *testing.T) {
	d, err := ParseThreshold("")
	require.NoError(t, err)
	assert.True(t, d.Equal(DefaultPassingThreshold))

	d, err = ParseThreshold("25")
	require.NoError(t, err)
	assert.True(t, d.Equal(decimal.NewFromInt(25)))

	_, err = ParseThreshold("101")
	assert.Error(t, err)
	_, err = ParseThreshold("-1")
	assert.Error(t, err)
	_, err = ParseThreshold("abc")
	assert.Error(t, err)
}

func TestVerdict(t *testing.T) {
	pct, status := NewScorer().Verdict(6, 8)
	assert.True(t, pct.Equal(decimal.NewFromInt(75)))
	assert.Equal(t, domain.StatusPassed, status)

	pct, status = NewScorer().Verdict(2, 3)
	assert.Equal(t, "66.67", pct.String())
	assert.Equal(t, domain.StatusFailed, status)
}
