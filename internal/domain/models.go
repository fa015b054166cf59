package domain

import "time"

// Language is a session/content language tag.
type Language string

const (
	LangFrench  Language = "fr"
	LangArabic  Language = "ar"
	LangSpanish Language = "es"
	LangEnglish Language = "en"
)

// DefaultLanguage is used when a session never selected one.
const DefaultLanguage = LangFrench

// Languages lists the supported tags in display order.
var Languages = []Language{LangFrench, LangArabic, LangSpanish, LangEnglish}

// ParseLanguage validates a tag against the supported set.
func ParseLanguage(raw string) (Language, bool) {
	for _, l := range Languages {
		if string(l) == raw {
			return l, true
		}
	}
	return "", false
}

// Attempt statuses.
const (
	StatusPassed = "Passed"
	StatusFailed = "Failed"
)

// Option represents a possible answer for a question.
type Option struct {
	ID           int64               `json:"id"`
	QuestionID   int64               `json:"questionId"`
	Text         string              `json:"text"`
	Correct      bool                `json:"correct"`
	Translations map[Language]string `json:"translations,omitempty"`
}

// Question models a multiple-answer question; any number of options may be correct.
type Question struct {
	ID           int64               `json:"id"`
	QuizID       int64               `json:"quizId"`
	Title        string              `json:"title"`
	Translations map[Language]string `json:"translations,omitempty"`
	Options      []Option            `json:"options"`
}

// CorrectCount is the size of the question's answer key.
func (q Question) CorrectCount() int {
	n := 0
	for _, o := range q.Options {
		if o.Correct {
			n++
		}
	}
	return n
}

// Quiz is a collection of questions written in a base language.
type Quiz struct {
	ID        int64      `json:"id"`
	Title     string     `json:"title"`
	Language  Language   `json:"language"`
	Active    bool       `json:"active"`
	Questions []Question `json:"questions"`
}

// QuizSummary is the list projection of a quiz.
type QuizSummary struct {
	ID            int64    `json:"id"`
	Title         string   `json:"title"`
	Language      Language `json:"language"`
	Active        bool     `json:"active"`
	QuestionCount int      `json:"questionCount"`
}

// OptionView is an option as shown to a participant; correctness is never exposed.
type OptionView struct {
	ID   int64  `json:"id"`
	Text string `json:"text"`
}

// QuestionView is a question as shown to a participant.
type QuestionView struct {
	ID      int64        `json:"id"`
	Title   string       `json:"title"`
	Options []OptionView `json:"options"`
}

// QuizView is the localized participant projection of a quiz.
type QuizView struct {
	ID        int64          `json:"id"`
	Title     string         `json:"title"`
	Language  Language       `json:"language"`
	Questions []QuestionView `json:"questions"`
}

// Localize overlays translations for lang onto the base texts.
func (q Quiz) Localize(lang Language) QuizView {
	view := QuizView{
		ID:        q.ID,
		Title:     q.Title,
		Language:  lang,
		Questions: make([]QuestionView, 0, len(q.Questions)),
	}
	for _, question := range q.Questions {
		qv := QuestionView{
			ID:      question.ID,
			Title:   translate(question.Title, question.Translations, lang),
			Options: make([]OptionView, 0, len(question.Options)),
		}
		for _, option := range question.Options {
			qv.Options = append(qv.Options, OptionView{
				ID:   option.ID,
				Text: translate(option.Text, option.Translations, lang),
			})
		}
		view.Questions = append(view.Questions, qv)
	}
	return view
}

func translate(base string, translations map[Language]string, lang Language) string {
	if text, ok := translations[lang]; ok && text != "" {
		return text
	}
	return base
}

// Submission maps question IDs to the option IDs selected for them.
// A key with an empty slice means the question was shown but left blank.
type Submission map[int64][]int64

// AnswerCorrectness is the per-selected-option outcome of scoring.
type AnswerCorrectness struct {
	QuestionID int64 `json:"questionId"`
	OptionID   int64 `json:"optionId"`
	Correct    bool  `json:"correct"`
}

// Attempt is one user's scored submission of a quiz.
type Attempt struct {
	ID          int64     `json:"id"`
	UserID      int64     `json:"userId"`
	QuizID      int64     `json:"quizId"`
	Score       int       `json:"score"`
	MaxScore    int       `json:"maxScore"`
	Status      string    `json:"status"`
	StartedAt   time.Time `json:"startedAt"`
	SubmittedAt time.Time `json:"submittedAt"`
}

// Answer is one selected option within an attempt. Correct is captured at submission time.
type Answer struct {
	ID         int64 `json:"id"`
	AttemptID  int64 `json:"attemptId"`
	QuestionID int64 `json:"questionId"`
	OptionID   int64 `json:"optionId"`
	Correct    bool  `json:"correct"`
}

// AttemptDetail bundles an attempt with its stored answers.
type AttemptDetail struct {
	Attempt Attempt  `json:"attempt"`
	Answers []Answer `json:"answers"`
}

// AttemptRecord is an attempt joined with its user and quiz, for reports and export.
type AttemptRecord struct {
	Attempt
	EmpID     string `json:"empId"`
	CIN       string `json:"cin"`
	FirstName string `json:"firstName"`
	LastName  string `json:"lastName"`
	Service   string `json:"service"`
	Site      string `json:"site"`
	QuizTitle string `json:"quizTitle"`
}

// AttemptSummary is pushed to live admin subscribers when an attempt is recorded.
type AttemptSummary struct {
	AttemptID   int64     `json:"attemptId"`
	UserID      int64     `json:"userId"`
	QuizID      int64     `json:"quizId"`
	QuizTitle   string    `json:"quizTitle"`
	Score       int       `json:"score"`
	MaxScore    int       `json:"maxScore"`
	Status      string    `json:"status"`
	SubmittedAt time.Time `json:"submittedAt"`
}

// User is a registered employee.
type User struct {
	ID           int64  `json:"id"`
	EmpID        string `json:"empId"`
	CIN          string `json:"cin"`
	FirstName    string `json:"firstName"`
	LastName     string `json:"lastName"`
	Service      string `json:"service"`
	Site         string `json:"site"`
	PasswordHash string `json:"-"`
}

// Admin is a quiz administrator.
type Admin struct {
	ID           int64  `json:"id"`
	Username     string `json:"username"`
	PasswordHash string `json:"-"`
}

// PrincipalKind distinguishes the two authenticated identities.
type PrincipalKind string

const (
	PrincipalUser  PrincipalKind = "user"
	PrincipalAdmin PrincipalKind = "admin"
)

// Principal is the authenticated caller of a request.
type Principal struct {
	Kind      PrincipalKind
	ID        int64
	SessionID string
	Language  Language
}

// SubmitToken is the one-time anti-replay token issued when a quiz is rendered.
type SubmitToken struct {
	Value    string    `json:"value"`
	IssuedAt time.Time `json:"issuedAt"`
}

// QuizAttemptCount is the per-quiz row of the dashboard.
type QuizAttemptCount struct {
	QuizID   int64  `json:"quizId"`
	Title    string `json:"title"`
	Attempts int    `json:"attempts"`
	Passed   int    `json:"passed"`
}

// ScoreSummary aggregates scores over all attempts. Fields are nil when there are no attempts.
type ScoreSummary struct {
	Avg *float64 `json:"avg"`
	Min *int     `json:"min"`
	Max *int     `json:"max"`
}

// Dashboard is the admin metrics view.
type Dashboard struct {
	TotalUsers      int                `json:"totalUsers"`
	TotalQuizzes    int                `json:"totalQuizzes"`
	TotalAttempts   int                `json:"totalAttempts"`
	AttemptsPerQuiz []QuizAttemptCount `json:"attemptsPerQuiz"`
	Scores          ScoreSummary       `json:"scores"`
}
