package http

import (
	"errors"
	"net/http"

	"quizroom-service/internal/domain"
)

type errorMapping struct {
	err    error
	code   string
	status int
}

// errorMappings gives every domain failure a stable wire code.
var errorMappings = []errorMapping{
	{domain.ErrRoomNotFound, "room_not_found", http.StatusNotFound},
	{domain.ErrQuizNotFound, "quiz_not_found", http.StatusNotFound},
	{domain.ErrRoomAlreadyStarted, "room_already_started", http.StatusConflict},
	{domain.ErrRoomFull, "room_full", http.StatusConflict},
	{domain.ErrPlayerNotInRoom, "player_not_in_room", http.StatusForbidden},
	{domain.ErrNotHost, "not_host", http.StatusForbidden},
	{domain.ErrNotEnoughPlayers, "not_enough_players", http.StatusConflict},
	{domain.ErrRoomNotInProgress, "room_not_in_progress", http.StatusConflict},
	{domain.ErrQuestionClosed, "question_closed", http.StatusConflict},
	{domain.ErrInvalidOption, "invalid_option", http.StatusBadRequest},
	{domain.ErrInvalidName, "invalid_name", http.StatusBadRequest},
	{domain.ErrNoIdentity, "no_identity", http.StatusForbidden},
	{domain.ErrInvalidQuiz, "invalid_quiz", http.StatusUnprocessableEntity},
	{domain.ErrInvalidRoomSettings, "invalid_room_settings", http.StatusBadRequest},
	{domain.ErrInvalidRoom, "invalid_room", http.StatusInternalServerError},
	{domain.ErrStoreUnavailable, "store_unavailable", http.StatusServiceUnavailable},
}

func errorCode(err error) (string, int) {
	for _, m := range errorMappings {
		if errors.Is(err, m.err) {
			return m.code, m.status
		}
	}
	return "internal", http.StatusInternalServerError
}
