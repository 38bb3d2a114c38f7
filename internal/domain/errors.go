package domain

import "errors"

var (
	// ErrRoomNotFound is returned when no document exists for a room id.
	ErrRoomNotFound = errors.New("room not found")
	// ErrRoomAlreadyStarted is returned when joining or starting a room that left the waiting state.
	ErrRoomAlreadyStarted = errors.New("room has already started")
	// ErrRoomFull is returned when a room already holds maxPlayers players.
	ErrRoomFull = errors.New("room is full")
	// ErrPlayerNotInRoom is returned when an identity references a player the room does not list.
	ErrPlayerNotInRoom = errors.New("player not in room")
	// ErrStoreUnavailable wraps transport or backend failures of the document store.
	ErrStoreUnavailable = errors.New("document store unavailable")
	// ErrDocumentNotFound is returned by document stores for absent documents.
	ErrDocumentNotFound = errors.New("document not found")

	ErrNotHost           = errors.New("only the host can start the room")
	ErrNotEnoughPlayers  = errors.New("not enough players to start")
	ErrRoomNotInProgress = errors.New("room is not in progress")
	ErrQuestionClosed    = errors.New("question is not open for answers")
	ErrInvalidOption     = errors.New("invalid answer option")
	ErrInvalidName       = errors.New("player name must be 1-20 characters")
	ErrInvalidRoom       = errors.New("invalid room document")
	// ErrInvalidRoomSettings rejects caller supplied room settings such as player bounds.
	ErrInvalidRoomSettings = errors.New("invalid room settings")
	ErrNoIdentity          = errors.New("no saved identity for room")

	// ErrQuizNotFound indicates the quiz content could not be loaded.
	ErrQuizNotFound = errors.New("quiz not found")
	// ErrInvalidQuiz indicates quiz content that cannot back a room.
	ErrInvalidQuiz = errors.New("invalid quiz")
)
