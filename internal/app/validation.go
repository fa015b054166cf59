package app

import (
	"quiz-eval-service/internal/domain"

	"github.com/go-playground/validator/v10"
)

var validate = validator.New(validator.WithRequiredStructEnabled())

// NewQuiz is an administrator's quiz definition.
type NewQuiz struct {
	Title     string          `json:"title" validate:"required"`
	Language  domain.Language `json:"language" validate:"required,oneof=fr ar es en"`
	Activate  bool            `json:"activate"`
	Questions []NewQuestion   `json:"questions" validate:"required,min=1,dive"`
}

// NewQuestion is one question of a NewQuiz.
type NewQuestion struct {
	Title        string                     `json:"title" validate:"required"`
	Translations map[domain.Language]string `json:"translations" validate:"omitempty,dive,keys,oneof=fr ar es en,endkeys"`
	Options      []NewOption                `json:"options" validate:"required,min=1,dive"`
}

// NewOption is one option of a NewQuestion.
type NewOption struct {
	Text         string                     `json:"text" validate:"required"`
	Correct      bool                       `json:"correct"`
	Translations map[domain.Language]string `json:"translations" validate:"omitempty,dive,keys,oneof=fr ar es en,endkeys"`
}

func (in NewQuiz) toDomain() domain.Quiz {
	quiz := domain.Quiz{
		Title:     in.Title,
		Language:  in.Language,
		Questions: make([]domain.Question, 0, len(in.Questions)),
	}
	for _, q := range in.Questions {
		question := domain.Question{
			Title:        q.Title,
			Translations: compact(q.Translations),
			Options:      make([]domain.Option, 0, len(q.Options)),
		}
		for _, o := range q.Options {
			question.Options = append(question.Options, domain.Option{
				Text:         o.Text,
				Correct:      o.Correct,
				Translations: compact(o.Translations),
			})
		}
		quiz.Questions = append(quiz.Questions, question)
	}
	return quiz
}

// compact drops empty translations; rendering falls back to base text for them anyway.
func compact(in map[domain.Language]string) map[domain.Language]string {
	out := make(map[domain.Language]string, len(in))
	for lang, text := range in {
		if text != "" {
			out[lang] = text
		}
	}
	return out
}
