package memory

import "quizroom-service/internal/domain"

// SampleQuizzes is the built-in catalog used when no database is configured.
func SampleQuizzes() map[string]domain.Quiz {
	return map[string]domain.Quiz{
		"mathematics": {
			ID:    "mathematics",
			Title: "Mathematics",
			Questions: []domain.Question{
				{Text: "What is the value of pi to two decimal places?", Options: []string{"3.14", "3.16", "3.12", "3.18"}, CorrectAnswer: 0},
				{Text: "What is the square root of 144?", Options: []string{"10", "12", "14", "16"}, CorrectAnswer: 1},
				{Text: "What is the result of 7 x 8?", Options: []string{"54", "56", "58", "60"}, CorrectAnswer: 1},
				{Text: "Which of these numbers is a prime number?", Options: []string{"15", "21", "23", "25"}, CorrectAnswer: 2},
				{Text: "What is 25% of 200?", Options: []string{"25", "40", "50", "75"}, CorrectAnswer: 2},
			},
		},
		"geography": {
			ID:    "geography",
			Title: "Geography",
			Questions: []domain.Question{
				{Text: "What is the capital of France?", Options: []string{"Paris", "Lyon", "Marseille", "Nice"}, CorrectAnswer: 0},
				{Text: "Which is the longest river in the world?", Options: []string{"Amazon", "Nile", "Yangtze", "Mississippi"}, CorrectAnswer: 1},
				{Text: "Which continent is Kenya in?", Options: []string{"Asia", "South America", "Africa", "Europe"}, CorrectAnswer: 2},
			},
		},
	}
}
