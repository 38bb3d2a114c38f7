package app

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"quizroom-service/internal/domain"
	"quizroom-service/internal/logger"
	"quizroom-service/internal/metrics"
)

const (
	DefaultMaxPlayers = 10
	DefaultMinPlayers = 3
)

// RoomService holds the room protocol: membership, start and answer aggregation.
// Every mutation is a single Updater cycle against a freshly read document;
// it never writes from a subscription snapshot.
type RoomService struct {
	store    DocumentStore
	updater  Updater
	quizzes  QuizRepository
	scorer   Scorer
	now      func() time.Time
	newID    func() string
	validate *validator.Validate
	log      logrus.FieldLogger
	metrics  *metrics.Metrics

	defaultMax int
	defaultMin int
}

// Option configures a RoomService.
type Option func(*RoomService)

// WithUpdater replaces the default ReadModifyWrite strategy.
func WithUpdater(u Updater) Option {
	return func(s *RoomService) { s.updater = u }
}

// WithClock is used by tests for deterministic timestamps.
func WithClock(now func() time.Time) Option {
	return func(s *RoomService) { s.now = now }
}

// WithIDGenerator overrides player id generation.
func WithIDGenerator(newID func() string) Option {
	return func(s *RoomService) { s.newID = newID }
}

func WithScorer(scorer Scorer) Option {
	return func(s *RoomService) { s.scorer = scorer }
}

func WithLogger(log logrus.FieldLogger) Option {
	return func(s *RoomService) { s.log = log }
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *RoomService) { s.metrics = m }
}

// WithRoomDefaults sets the capacity used when CreateRoom leaves it zero.
// Zero arguments keep the built-in defaults.
func WithRoomDefaults(maxPlayers, minPlayers int) Option {
	return func(s *RoomService) {
		if maxPlayers > 0 {
			s.defaultMax = maxPlayers
		}
		if minPlayers > 0 {
			s.defaultMin = minPlayers
		}
	}
}

func NewRoomService(store DocumentStore, quizzes QuizRepository, opts ...Option) *RoomService {
	s := &RoomService{
		store:    store,
		quizzes:  quizzes,
		scorer:   ScoreRound,
		now:      time.Now,
		newID:    uuid.NewString,
		validate: validator.New(),
		log:      logger.Discard(),

		defaultMax: DefaultMaxPlayers,
		defaultMin: DefaultMinPlayers,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.updater == nil {
		s.updater = NewReadModifyWrite(store)
	}
	return s
}

// CreateRoomRequest describes a room to open for a catalog quiz.
type CreateRoomRequest struct {
	QuizID     string `json:"quizId" validate:"required"`
	MaxPlayers int    `json:"maxPlayers" validate:"min=1,max=100"`
	MinPlayers int    `json:"minPlayers" validate:"min=1,ltefield=MaxPlayers"`
}

// CreateRoom opens a waiting room holding the quiz's questions.
func (s *RoomService) CreateRoom(ctx context.Context, req CreateRoomRequest) (domain.Room, error) {
	if req.MaxPlayers == 0 {
		req.MaxPlayers = s.defaultMax
	}
	if req.MinPlayers == 0 {
		req.MinPlayers = min(s.defaultMin, req.MaxPlayers)
	}
	if err := s.validate.Struct(req); err != nil {
		return domain.Room{}, fmt.Errorf("%w: %v", domain.ErrInvalidRoomSettings, err)
	}

	quiz, err := s.quizzes.GetQuiz(ctx, req.QuizID)
	if err != nil {
		return domain.Room{}, err
	}
	if err := quiz.Validate(); err != nil {
		return domain.Room{}, err
	}

	room := domain.Room{
		QuizID:     quiz.ID,
		Title:      quiz.Title,
		Status:     domain.StatusWaiting,
		Questions:  quiz.Questions,
		Players:    []domain.Player{},
		MaxPlayers: req.MaxPlayers,
		MinPlayers: req.MinPlayers,
		CreatedAt:  s.now().UTC(),
	}
	doc, err := domain.EncodeRoom(room)
	if err != nil {
		return domain.Room{}, err
	}
	id, err := s.store.Create(ctx, domain.RoomCollection, doc)
	if err != nil {
		return domain.Room{}, StoreError(err)
	}
	room.ID = id

	s.metrics.Write("create")
	s.log.WithFields(logrus.Fields{"room_id": id, "quiz_id": quiz.ID}).Info("room created")
	return room, nil
}

// Get reads the latest room document.
func (s *RoomService) Get(ctx context.Context, roomID string) (domain.Room, error) {
	doc, err := s.store.Get(ctx, domain.RoomCollection, roomID)
	if err != nil {
		return domain.Room{}, StoreError(err)
	}
	return domain.DecodeRoom(roomID, doc)
}

// Subscribe delivers every decoded room snapshot to onRoom. Snapshots that fail
// to decode are logged and skipped.
func (s *RoomService) Subscribe(ctx context.Context, roomID string, onRoom func(domain.Room)) (func(), error) {
	log := s.log.WithField("room_id", roomID)
	cancel, err := s.store.Subscribe(ctx, domain.RoomCollection, roomID, func(doc domain.Document) {
		room, err := domain.DecodeRoom(roomID, doc)
		if err != nil {
			log.WithError(err).Warn("skipping undecodable room snapshot")
			return
		}
		onRoom(room)
	})
	if err != nil {
		return nil, StoreError(err)
	}
	return cancel, nil
}

// Join appends a new player to a waiting room. The first player becomes host
// in the same write.
func (s *RoomService) Join(ctx context.Context, roomID, name string) (domain.Player, error) {
	name = strings.TrimSpace(name)
	if err := s.validate.Var(name, "required,min=1,max=20"); err != nil {
		return domain.Player{}, domain.ErrInvalidName
	}

	player := domain.Player{
		ID:      s.newID(),
		Name:    name,
		Answers: domain.Answers{},
	}
	room, _, err := s.updater.Update(ctx, roomID, func(room domain.Room) (domain.Room, []domain.Field, error) {
		switch room.Status {
		case domain.StatusWaiting:
		case domain.StatusInProgress, domain.StatusCompleted:
			return room, nil, domain.ErrRoomAlreadyStarted
		default:
			return room, nil, fmt.Errorf("%w: status %s", domain.ErrInvalidRoom, room.Status)
		}
		if len(room.Players) >= room.MaxPlayers {
			return room, nil, domain.ErrRoomFull
		}

		fields := []domain.Field{domain.FieldPlayers}
		if len(room.Players) == 0 {
			room.HostID = player.ID
			fields = append(fields, domain.FieldHostID)
		}
		room.Players = append(room.Players, player)
		return room, fields, nil
	})
	if err != nil {
		return domain.Player{}, err
	}

	s.metrics.Write("join")
	s.log.WithFields(logrus.Fields{
		"room_id":   roomID,
		"player_id": player.ID,
		"players":   len(room.Players),
		"host":      room.IsHost(player.ID),
	}).Info("player joined")
	return player, nil
}

// Start moves a waiting room to in-progress on the host's behalf.
func (s *RoomService) Start(ctx context.Context, roomID, playerID string) (domain.Room, error) {
	room, _, err := s.updater.Update(ctx, roomID, func(room domain.Room) (domain.Room, []domain.Field, error) {
		if room.PlayerIndex(playerID) < 0 {
			return room, nil, domain.ErrPlayerNotInRoom
		}
		if !room.IsHost(playerID) {
			return room, nil, domain.ErrNotHost
		}
		if room.Status == domain.StatusWaiting && len(room.Players) < room.MinPlayers {
			return room, nil, domain.ErrNotEnoughPlayers
		}
		next, err := startRoom(room, s.now())
		if err != nil {
			return room, nil, err
		}
		return next, []domain.Field{domain.FieldStatus, domain.FieldStartTime, domain.FieldCurrentQuestionIndex}, nil
	})
	if err != nil {
		return domain.Room{}, err
	}

	s.metrics.Write("start")
	s.log.WithFields(logrus.Fields{"room_id": roomID, "player_id": playerID}).Info("room started")
	return room, nil
}

// AnswerOutcome reports the effect of SubmitAnswer.
type AnswerOutcome struct {
	Room domain.Room
	// Applied is false when the player had already answered and nothing was written.
	Applied bool
	// RoundCompleted is true when this answer was the last one of the round.
	RoundCompleted bool
}

// SubmitAnswer records a player's option for the current question. When it is
// the last missing answer, the round is scored and the room advances in the
// same write, so scoring happens exactly once per round. A repeated answer for
// an already answered question is a silent no-op.
func (s *RoomService) SubmitAnswer(ctx context.Context, roomID, playerID string, questionIndex, option int) (AnswerOutcome, error) {
	var completed bool
	room, applied, err := s.updater.Update(ctx, roomID, func(room domain.Room) (domain.Room, []domain.Field, error) {
		completed = false

		idx := room.PlayerIndex(playerID)
		if idx < 0 {
			return room, nil, domain.ErrPlayerNotInRoom
		}
		if room.Players[idx].HasAnswered(questionIndex) {
			return room, nil, nil
		}

		switch room.Status {
		case domain.StatusInProgress:
		case domain.StatusWaiting, domain.StatusCompleted:
			return room, nil, domain.ErrRoomNotInProgress
		default:
			return room, nil, fmt.Errorf("%w: status %s", domain.ErrInvalidRoom, room.Status)
		}
		if questionIndex != room.CurrentQuestionIndex {
			return room, nil, domain.ErrQuestionClosed
		}
		question, ok := room.CurrentQuestion()
		if !ok {
			return room, nil, domain.ErrQuestionClosed
		}
		if option < 0 || option >= len(question.Options) {
			return room, nil, domain.ErrInvalidOption
		}

		room.Players[idx].Answers = room.Players[idx].Answers.With(questionIndex, option)
		if !room.RoundComplete(questionIndex) {
			return room, []domain.Field{domain.FieldPlayers}, nil
		}

		next, transition := advanceRound(s.scorer(room, questionIndex))
		completed = true
		return next, append([]domain.Field{domain.FieldPlayers}, transition...), nil
	})
	if err != nil {
		return AnswerOutcome{}, err
	}

	log := s.log.WithFields(logrus.Fields{
		"room_id":        roomID,
		"player_id":      playerID,
		"question_index": questionIndex,
	})
	if !applied {
		s.metrics.NoOp("answer")
		log.Debug("duplicate answer ignored")
		return AnswerOutcome{Room: room}, nil
	}

	s.metrics.Write("answer")
	if completed {
		s.metrics.RoundCompleted()
		log.WithField("status", room.Status.String()).Info("round completed")
		if room.Status == domain.StatusCompleted {
			s.metrics.RoomCompleted()
		}
	}
	return AnswerOutcome{Room: room, Applied: true, RoundCompleted: completed}, nil
}

// IsRecoverable reports whether err is a precondition failure the user can fix
// (as opposed to a missing room or a store outage).
func IsRecoverable(err error) bool {
	for _, target := range []error{
		domain.ErrRoomFull,
		domain.ErrRoomAlreadyStarted,
		domain.ErrInvalidName,
		domain.ErrNotEnoughPlayers,
		domain.ErrNotHost,
		domain.ErrRoomNotInProgress,
		domain.ErrQuestionClosed,
		domain.ErrInvalidOption,
		domain.ErrNoIdentity,
	} {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}
