package app

import "quizroom-service/internal/domain"

// Scorer awards points for a completed question. It must be pure.
type Scorer func(room domain.Room, questionIndex int) domain.Room

// ScoreRound adds PointsPerCorrectAnswer to every player whose answer to
// questionIndex is correct. The input room is not modified.
func ScoreRound(room domain.Room, questionIndex int) domain.Room {
	out := room.Clone()
	if questionIndex < 0 || questionIndex >= len(out.Questions) {
		return out
	}
	question := out.Questions[questionIndex]
	for i := range out.Players {
		if option, ok := out.Players[i].Answers.At(questionIndex); ok && question.IsCorrect(option) {
			out.Players[i].Score += domain.PointsPerCorrectAnswer
		}
	}
	return out
}
