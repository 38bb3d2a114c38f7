package domain

import (
	"encoding/json"
	"fmt"
	"time"
)

// PointsPerCorrectAnswer is added to a player's score for each correct answer at round completion.
const PointsPerCorrectAnswer = 10

// RoomCollection is the document store collection holding room documents.
const RoomCollection = "quizRooms"

// Field names a top-level room document field.
type Field string

const (
	FieldStatus               Field = "status"
	FieldPlayers              Field = "players"
	FieldCurrentQuestionIndex Field = "currentQuestionIndex"
	FieldHostID               Field = "hostId"
	FieldStartTime            Field = "startTime"
)

// Question models a multiple-choice question. CorrectAnswer is an index into Options.
type Question struct {
	Text          string   `json:"question"`
	Options       []string `json:"options"`
	CorrectAnswer int      `json:"correctAnswer"`
}

// UnmarshalJSON accepts correctAnswer either as an option index or as the
// literal option text, normalizing the latter to its index.
func (q *Question) UnmarshalJSON(data []byte) error {
	var raw struct {
		Text          string          `json:"question"`
		Options       []string        `json:"options"`
		CorrectAnswer json.RawMessage `json:"correctAnswer"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	q.Text = raw.Text
	q.Options = raw.Options
	q.CorrectAnswer = 0
	if len(raw.CorrectAnswer) == 0 {
		return nil
	}

	var index int
	if err := json.Unmarshal(raw.CorrectAnswer, &index); err == nil {
		q.CorrectAnswer = index
		return nil
	}
	var text string
	if err := json.Unmarshal(raw.CorrectAnswer, &text); err != nil {
		return fmt.Errorf("%w: correctAnswer must be an index or option text", ErrInvalidQuiz)
	}
	for i, opt := range raw.Options {
		if opt == text {
			q.CorrectAnswer = i
			return nil
		}
	}
	return fmt.Errorf("%w: correctAnswer %q is not one of the options", ErrInvalidQuiz, text)
}

// IsCorrect reports whether option is the correct answer.
func (q Question) IsCorrect(option int) bool {
	return option == q.CorrectAnswer
}

func (q Question) validate() error {
	if q.Text == "" {
		return fmt.Errorf("%w: question text is empty", ErrInvalidQuiz)
	}
	if len(q.Options) < 2 {
		return fmt.Errorf("%w: question %q needs at least two options", ErrInvalidQuiz, q.Text)
	}
	if q.CorrectAnswer < 0 || q.CorrectAnswer >= len(q.Options) {
		return fmt.Errorf("%w: question %q has correctAnswer %d out of range", ErrInvalidQuiz, q.Text, q.CorrectAnswer)
	}
	return nil
}

// Quiz is a catalog entry a room is created from.
type Quiz struct {
	ID        string     `json:"id"`
	Title     string     `json:"title"`
	Questions []Question `json:"questions"`
}

// Validate checks that the quiz can back a room.
func (q Quiz) Validate() error {
	if len(q.Questions) == 0 {
		return fmt.Errorf("%w: quiz %q has no questions", ErrInvalidQuiz, q.ID)
	}
	for _, question := range q.Questions {
		if err := question.validate(); err != nil {
			return err
		}
	}
	return nil
}

// Answers holds one slot per question index; a nil slot is unanswered.
type Answers []*int

// At returns the option chosen for question i.
func (a Answers) At(i int) (int, bool) {
	if i < 0 || i >= len(a) || a[i] == nil {
		return 0, false
	}
	return *a[i], true
}

// With returns a copy of a with slot i set to option, padding unset slots with nil.
func (a Answers) With(i, option int) Answers {
	size := len(a)
	if i >= size {
		size = i + 1
	}
	out := make(Answers, size)
	copy(out, a.clone())
	v := option
	out[i] = &v
	return out
}

func (a Answers) clone() Answers {
	if a == nil {
		return nil
	}
	out := make(Answers, len(a))
	for i, slot := range a {
		if slot != nil {
			v := *slot
			out[i] = &v
		}
	}
	return out
}

// MarshalJSON encodes unanswered slots as null and a nil slice as an empty array.
func (a Answers) MarshalJSON() ([]byte, error) {
	if a == nil {
		return []byte("[]"), nil
	}
	return json.Marshal([]*int(a))
}

// Player is embedded in Room.Players.
type Player struct {
	ID      string  `json:"id"`
	Name    string  `json:"name"`
	Score   int     `json:"score"`
	Answers Answers `json:"answers"`
}

// HasAnswered reports whether the player answered question i.
func (p Player) HasAnswered(i int) bool {
	_, ok := p.Answers.At(i)
	return ok
}

// Room is the shared document for one multiplayer quiz session.
type Room struct {
	ID                   string     `json:"-"`
	QuizID               string     `json:"quizId,omitempty"`
	Title                string     `json:"title,omitempty"`
	Status               Status     `json:"status"`
	Questions            []Question `json:"questions"`
	Players              []Player   `json:"players"`
	CurrentQuestionIndex int        `json:"currentQuestionIndex"`
	HostID               string     `json:"hostId"`
	MaxPlayers           int        `json:"maxPlayers"`
	MinPlayers           int        `json:"minPlayers"`
	StartTime            *time.Time `json:"startTime"`
	CreatedAt            time.Time  `json:"createdAt"`
}

// UnmarshalJSON decodes a room document. Answer slots stored as option text
// are resolved to their index in the matching question.
func (r *Room) UnmarshalJSON(data []byte) error {
	type plain Room
	var raw struct {
		plain
		Players []struct {
			ID      string            `json:"id"`
			Name    string            `json:"name"`
			Score   int               `json:"score"`
			Answers []json.RawMessage `json:"answers"`
		} `json:"players"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	*r = Room(raw.plain)
	r.Players = nil
	if raw.Players == nil {
		return nil
	}
	r.Players = make([]Player, len(raw.Players))
	for i, p := range raw.Players {
		answers, err := decodeAnswers(p.Answers, r.Questions)
		if err != nil {
			return fmt.Errorf("player %s: %w", p.ID, err)
		}
		r.Players[i] = Player{ID: p.ID, Name: p.Name, Score: p.Score, Answers: answers}
	}
	return nil
}

func decodeAnswers(slots []json.RawMessage, questions []Question) (Answers, error) {
	if slots == nil {
		return nil, nil
	}
	out := make(Answers, len(slots))
	for i, slot := range slots {
		if len(slot) == 0 || string(slot) == "null" {
			continue
		}
		var index int
		if err := json.Unmarshal(slot, &index); err == nil {
			out[i] = &index
			continue
		}
		var text string
		if err := json.Unmarshal(slot, &text); err != nil {
			return nil, fmt.Errorf("answer %d must be an index or option text", i)
		}
		if i >= len(questions) {
			return nil, fmt.Errorf("answer %d has no matching question", i)
		}
		found := false
		for j, opt := range questions[i].Options {
			if opt == text {
				v := j
				out[i] = &v
				found = true
				break
			}
		}
		if !found {
			return nil, fmt.Errorf("answer %d %q is not one of the options", i, text)
		}
	}
	return out, nil
}

// PlayerIndex returns the position of the player in join order, or -1.
func (r Room) PlayerIndex(playerID string) int {
	for i := range r.Players {
		if r.Players[i].ID == playerID {
			return i
		}
	}
	return -1
}

// Player looks up a player by id.
func (r Room) Player(playerID string) (Player, bool) {
	if i := r.PlayerIndex(playerID); i >= 0 {
		return r.Players[i], true
	}
	return Player{}, false
}

// IsHost reports whether playerID is the room host.
func (r Room) IsHost(playerID string) bool {
	return playerID != "" && r.HostID == playerID
}

// CurrentQuestion returns the question at CurrentQuestionIndex.
func (r Room) CurrentQuestion() (Question, bool) {
	if r.CurrentQuestionIndex < 0 || r.CurrentQuestionIndex >= len(r.Questions) {
		return Question{}, false
	}
	return r.Questions[r.CurrentQuestionIndex], true
}

// AnsweredCount returns how many players answered question i.
func (r Room) AnsweredCount(i int) int {
	n := 0
	for _, p := range r.Players {
		if p.HasAnswered(i) {
			n++
		}
	}
	return n
}

// RoundComplete reports whether every current player answered question i.
func (r Room) RoundComplete(i int) bool {
	return len(r.Players) > 0 && r.AnsweredCount(i) == len(r.Players)
}

// Clone returns a deep copy of the room; questions are shared since they are immutable.
func (r Room) Clone() Room {
	out := r
	if r.Players != nil {
		out.Players = make([]Player, len(r.Players))
		for i, p := range r.Players {
			p.Answers = p.Answers.clone()
			out.Players[i] = p
		}
	}
	if r.StartTime != nil {
		t := *r.StartTime
		out.StartTime = &t
	}
	return out
}

// Validate checks structural invariants of a decoded room.
func (r Room) Validate() error {
	if !r.Status.Valid() {
		return fmt.Errorf("%w: missing status", ErrInvalidRoom)
	}
	if len(r.Questions) == 0 {
		return fmt.Errorf("%w: no questions", ErrInvalidRoom)
	}
	if r.CurrentQuestionIndex < 0 || r.CurrentQuestionIndex > len(r.Questions) {
		return fmt.Errorf("%w: currentQuestionIndex %d out of range", ErrInvalidRoom, r.CurrentQuestionIndex)
	}
	if r.MaxPlayers < 1 || r.MinPlayers < 1 || r.MinPlayers > r.MaxPlayers {
		return fmt.Errorf("%w: player bounds min=%d max=%d", ErrInvalidRoom, r.MinPlayers, r.MaxPlayers)
	}
	seen := make(map[string]struct{}, len(r.Players))
	for _, p := range r.Players {
		if p.ID == "" {
			return fmt.Errorf("%w: player without id", ErrInvalidRoom)
		}
		if _, dup := seen[p.ID]; dup {
			return fmt.Errorf("%w: duplicate player %s", ErrInvalidRoom, p.ID)
		}
		seen[p.ID] = struct{}{}
	}
	return nil
}

// Identity is the locally persisted session of a player in a room.
type Identity struct {
	RoomID     string `json:"roomId" yaml:"roomId"`
	PlayerID   string `json:"playerId" yaml:"playerId"`
	PlayerName string `json:"playerName" yaml:"playerName"`
}
