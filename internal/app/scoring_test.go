package app

import (
	"testing"
	"time"

	"quizroom-service/internal/domain"
)

func twoQuestionRoom(answers ...domain.Answers) domain.Room {
	room := domain.Room{
		ID:     "r1",
		Status: domain.StatusInProgress,
		Questions: []domain.Question{
			{Text: "Capital of France?", Options: []string{"Paris", "Lyon"}, CorrectAnswer: 0},
			{Text: "Capital of Italy?", Options: []string{"Milan", "Rome"}, CorrectAnswer: 1},
		},
		MaxPlayers: 10,
		MinPlayers: 1,
	}
	for i, a := range answers {
		room.Players = append(room.Players, domain.Player{ID: string(rune('a' + i)), Name: "p", Answers: a})
	}
	return room
}

func TestScoreRoundIsPure(t *testing.T) {
	room := twoQuestionRoom(
		domain.Answers{}.With(0, 0),
		domain.Answers{}.With(0, 1),
		domain.Answers{},
	)

	scored := ScoreRound(room, 0)
	if scored.Players[0].Score != 10 || scored.Players[1].Score != 0 || scored.Players[2].Score != 0 {
		t.Fatalf("unexpected scores %+v", scored.Players)
	}
	if room.Players[0].Score != 0 {
		t.Fatalf("input room was mutated")
	}
	if out := ScoreRound(room, 5); out.Players[0].Score != 0 {
		t.Fatalf("out of range question must not score")
	}
}

func TestAdvanceRound(t *testing.T) {
	room := twoQuestionRoom()

	next, fields := advanceRound(room)
	if next.CurrentQuestionIndex != 1 || next.Status != domain.StatusInProgress {
		t.Fatalf("expected advance to question 1, got %d/%s", next.CurrentQuestionIndex, next.Status)
	}
	if len(fields) != 1 || fields[0] != domain.FieldCurrentQuestionIndex {
		t.Fatalf("unexpected fields %v", fields)
	}

	last, fields := advanceRound(next)
	if last.Status != domain.StatusCompleted || last.CurrentQuestionIndex != 1 {
		t.Fatalf("expected completion at last index, got %d/%s", last.CurrentQuestionIndex, last.Status)
	}
	if len(fields) != 1 || fields[0] != domain.FieldStatus {
		t.Fatalf("unexpected fields %v", fields)
	}

	if _, fields := advanceRound(last); fields != nil {
		t.Fatalf("completed rooms must not advance")
	}
}

func TestStartRoomTransitions(t *testing.T) {
	now := time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)
	room := twoQuestionRoom()
	room.Status = domain.StatusWaiting
	room.CurrentQuestionIndex = 1

	started, err := startRoom(room, now)
	if err != nil {
		t.Fatalf("start: %v", err)
	}
	if started.Status != domain.StatusInProgress || started.CurrentQuestionIndex != 0 || !started.StartTime.Equal(now) {
		t.Fatalf("unexpected started room %+v", started)
	}
	if _, err := startRoom(started, now); err != domain.ErrRoomAlreadyStarted {
		t.Fatalf("expected already started, got %v", err)
	}

	room.Status = 0
	if _, err := startRoom(room, now); err == nil {
		t.Fatalf("expected invalid status error")
	}
}

func TestShouldAutoStart(t *testing.T) {
	room := twoQuestionRoom(domain.Answers{}, domain.Answers{})
	room.Status = domain.StatusWaiting
	room.MinPlayers = 2
	room.HostID = "a"

	if !ShouldAutoStart(room, "a") {
		t.Fatalf("host should start once min players joined")
	}
	if ShouldAutoStart(room, "b") || ShouldAutoStart(room, "") {
		t.Fatalf("only the host starts the room")
	}
	room.MinPlayers = 3
	if ShouldAutoStart(room, "a") {
		t.Fatalf("must wait for min players")
	}
	room.MinPlayers = 2
	room.Status = domain.StatusInProgress
	if ShouldAutoStart(room, "a") {
		t.Fatalf("must not start a started room")
	}
}
