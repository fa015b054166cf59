package cli

import "quiz-eval-service/internal/domain"

// sampleQuiz is seeded into in-memory storage for demos when quiz.seed_sample is set.
func sampleQuiz() domain.Quiz {
	return domain.Quiz{
		Title:    "Sécurité au poste de travail",
		Language: domain.LangFrench,
		Active:   true,
		Questions: []domain.Question{
			{
				Title: "Quels équipements sont obligatoires en atelier ?",
				Translations: map[domain.Language]string{
					domain.LangEnglish: "Which equipment is mandatory in the workshop?",
					domain.LangSpanish: "¿Qué equipos son obligatorios en el taller?",
					domain.LangArabic:  "ما هي المعدات الإلزامية في الورشة؟",
				},
				Options: []domain.Option{
					{Text: "Casque", Correct: true, Translations: map[domain.Language]string{
						domain.LangEnglish: "Helmet", domain.LangSpanish: "Casco", domain.LangArabic: "خوذة",
					}},
					{Text: "Chaussures de sécurité", Correct: true, Translations: map[domain.Language]string{
						domain.LangEnglish: "Safety shoes", domain.LangSpanish: "Calzado de seguridad", domain.LangArabic: "أحذية السلامة",
					}},
					{Text: "Sandales", Translations: map[domain.Language]string{
						domain.LangEnglish: "Sandals", domain.LangSpanish: "Sandalias", domain.LangArabic: "صنادل",
					}},
				},
			},
			{
				Title: "Que faire en cas d'alarme incendie ?",
				Translations: map[domain.Language]string{
					domain.LangEnglish: "What should you do when the fire alarm sounds?",
					domain.LangSpanish: "¿Qué hacer cuando suena la alarma de incendio?",
				},
				Options: []domain.Option{
					{Text: "Rejoindre le point de rassemblement", Correct: true, Translations: map[domain.Language]string{
						domain.LangEnglish: "Go to the assembly point", domain.LangSpanish: "Ir al punto de reunión",
					}},
					{Text: "Terminer sa tâche", Translations: map[domain.Language]string{
						domain.LangEnglish: "Finish the current task", domain.LangSpanish: "Terminar la tarea",
					}},
				},
			},
		},
	}
}
