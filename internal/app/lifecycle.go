package app

import (
	"fmt"
	"time"

	"quizroom-service/internal/domain"
)

// ShouldAutoStart reports whether an observer must issue the waiting -> in-progress
// transition: the observer is the host, the room still waits and minPlayers joined.
func ShouldAutoStart(room domain.Room, observerID string) bool {
	return room.Status == domain.StatusWaiting &&
		room.IsHost(observerID) &&
		len(room.Players) >= room.MinPlayers
}

func startRoom(room domain.Room, now time.Time) (domain.Room, error) {
	switch room.Status {
	case domain.StatusWaiting:
	case domain.StatusInProgress, domain.StatusCompleted:
		return room, domain.ErrRoomAlreadyStarted
	default:
		return room, fmt.Errorf("%w: status %s", domain.ErrInvalidRoom, room.Status)
	}

	started := now.UTC()
	room.Status = domain.StatusInProgress
	room.StartTime = &started
	room.CurrentQuestionIndex = 0
	return room, nil
}

// advanceRound applies the transition that follows a completed round: the next
// question, or completion on the final one. currentQuestionIndex never passes
// the last question.
func advanceRound(room domain.Room) (domain.Room, []domain.Field) {
	if !room.Status.CanTransition(domain.StatusCompleted) {
		return room, nil
	}
	if room.CurrentQuestionIndex+1 >= len(room.Questions) {
		room.Status = domain.StatusCompleted
		return room, []domain.Field{domain.FieldStatus}
	}
	room.CurrentQuestionIndex++
	return room, []domain.Field{domain.FieldCurrentQuestionIndex}
}
