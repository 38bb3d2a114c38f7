package http

import (
	"encoding/json"
	"net/http"

	"github.com/sirupsen/logrus"

	"quizroom-service/internal/app"
	"quizroom-service/internal/view"
)

// RoomsHandler serves room creation and read-only room views over plain HTTP.
type RoomsHandler struct {
	rooms *app.RoomService
	log   logrus.FieldLogger
}

func NewRoomsHandler(rooms *app.RoomService, log logrus.FieldLogger) *RoomsHandler {
	return &RoomsHandler{rooms: rooms, log: log.WithField("component", "rooms")}
}

type createRoomResponse struct {
	RoomID     string `json:"roomId"`
	QuizID     string `json:"quizId"`
	Title      string `json:"title"`
	MaxPlayers int    `json:"maxPlayers"`
	MinPlayers int    `json:"minPlayers"`
}

// Create handles POST /rooms {quizId, maxPlayers?, minPlayers?}.
func (h *RoomsHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req app.CreateRoomRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<16)).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorPayload{Code: "bad_request", Message: "invalid json body"})
		return
	}
	room, err := h.rooms.CreateRoom(r.Context(), req)
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, createRoomResponse{
		RoomID:     room.ID,
		QuizID:     room.QuizID,
		Title:      room.Title,
		MaxPlayers: room.MaxPlayers,
		MinPlayers: room.MinPlayers,
	})
}

// Get handles GET /rooms/{roomId}?playerId=, returning the projected view.
func (h *RoomsHandler) Get(w http.ResponseWriter, r *http.Request) {
	room, err := h.rooms.Get(r.Context(), r.PathValue("roomId"))
	if err != nil {
		h.writeError(w, err)
		return
	}
	v, err := view.Project(room, r.URL.Query().Get("playerId"))
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, v)
}

func (h *RoomsHandler) writeError(w http.ResponseWriter, err error) {
	code, status := errorCode(err)
	if status >= http.StatusInternalServerError {
		h.log.WithError(err).Error("request failed")
	}
	writeJSON(w, status, errorPayload{Code: code, Message: err.Error()})
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}
