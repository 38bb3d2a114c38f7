// Package view derives what one client renders from a room snapshot.
// Projection is read-only: nothing here writes to the room document.
package view

import (
	"fmt"
	"sort"

	"quizroom-service/internal/domain"
)

// View is the rendering state for one client. Exactly one of Waiting, Round
// and Results is set, matching Status.
type View struct {
	RoomID  string        `json:"roomId"`
	Title   string        `json:"title,omitempty"`
	Status  domain.Status `json:"status"`
	SelfID  string        `json:"selfId,omitempty"`
	Waiting *WaitingView  `json:"waiting,omitempty"`
	Round   *RoundView    `json:"round,omitempty"`
	Results *ResultsView  `json:"results,omitempty"`
}

type Member struct {
	ID     string `json:"id"`
	Name   string `json:"name"`
	IsHost bool   `json:"isHost"`
	IsSelf bool   `json:"isSelf"`
}

type WaitingView struct {
	Members       []Member `json:"members"`
	PlayersNeeded int      `json:"playersNeeded"`
	MinPlayers    int      `json:"minPlayers"`
	MaxPlayers    int      `json:"maxPlayers"`
	CanStart      bool     `json:"canStart"`
}

// Option styling is only revealed once the local player has answered.
type Option struct {
	Index     int    `json:"index"`
	Text      string `json:"text"`
	Selected  bool   `json:"selected"`
	Correct   bool   `json:"correct"`
	Incorrect bool   `json:"incorrect"`
}

// PlayerProgress tells whether a player answered, never what they answered.
type PlayerProgress struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	Score    int    `json:"score"`
	Answered bool   `json:"answered"`
	IsSelf   bool   `json:"isSelf"`
}

type RoundView struct {
	QuestionIndex int              `json:"questionIndex"`
	QuestionCount int              `json:"questionCount"`
	Question      string           `json:"question"`
	Options       []Option         `json:"options"`
	HasAnswered   bool             `json:"hasAnswered"`
	AnsweredCount int              `json:"answeredCount"`
	Players       []PlayerProgress `json:"players"`
	Scoreboard    []Standing       `json:"scoreboard"`
}

type Standing struct {
	Rank   int    `json:"rank"`
	ID     string `json:"id"`
	Name   string `json:"name"`
	Score  int    `json:"score"`
	IsSelf bool   `json:"isSelf"`
}

type ResultsView struct {
	Standings []Standing `json:"standings"`
}

// Project builds the view of room for the player selfID. selfID may be empty
// or unknown to the room, in which case the view is a spectator's.
func Project(room domain.Room, selfID string) (View, error) {
	v := View{
		RoomID: room.ID,
		Title:  room.Title,
		Status: room.Status,
	}
	if _, ok := room.Player(selfID); ok {
		v.SelfID = selfID
	}

	switch room.Status {
	case domain.StatusWaiting:
		v.Waiting = projectWaiting(room, v.SelfID)
	case domain.StatusInProgress:
		v.Round = projectRound(room, v.SelfID)
	case domain.StatusCompleted:
		v.Results = &ResultsView{Standings: Leaderboard(room, v.SelfID)}
	default:
		return View{}, fmt.Errorf("%w: status %s", domain.ErrInvalidRoom, room.Status)
	}
	return v, nil
}

func projectWaiting(room domain.Room, selfID string) *WaitingView {
	members := make([]Member, 0, len(room.Players))
	for _, p := range room.Players {
		members = append(members, Member{
			ID:     p.ID,
			Name:   p.Name,
			IsHost: room.IsHost(p.ID),
			IsSelf: p.ID == selfID,
		})
	}
	return &WaitingView{
		Members:       members,
		PlayersNeeded: max(0, room.MinPlayers-len(room.Players)),
		MinPlayers:    room.MinPlayers,
		MaxPlayers:    room.MaxPlayers,
		CanStart:      room.IsHost(selfID) && len(room.Players) >= room.MinPlayers,
	}
}

func projectRound(room domain.Room, selfID string) *RoundView {
	qi := room.CurrentQuestionIndex
	question, _ := room.CurrentQuestion()

	var chosen int
	answered := false
	if self, ok := room.Player(selfID); ok {
		chosen, answered = self.Answers.At(qi)
	}

	options := make([]Option, len(question.Options))
	for i, text := range question.Options {
		opt := Option{Index: i, Text: text}
		if answered {
			opt.Selected = i == chosen
			opt.Correct = question.IsCorrect(i)
			opt.Incorrect = opt.Selected && !opt.Correct
		}
		options[i] = opt
	}

	players := make([]PlayerProgress, 0, len(room.Players))
	for _, p := range room.Players {
		players = append(players, PlayerProgress{
			ID:       p.ID,
			Name:     p.Name,
			Score:    p.Score,
			Answered: p.HasAnswered(qi),
			IsSelf:   p.ID == selfID,
		})
	}

	return &RoundView{
		QuestionIndex: qi,
		QuestionCount: len(room.Questions),
		Question:      question.Text,
		Options:       options,
		HasAnswered:   answered,
		AnsweredCount: room.AnsweredCount(qi),
		Players:       players,
		Scoreboard:    Leaderboard(room, selfID),
	}
}

// Leaderboard orders players by score descending; ties keep join order.
func Leaderboard(room domain.Room, selfID string) []Standing {
	standings := make([]Standing, 0, len(room.Players))
	for _, p := range room.Players {
		standings = append(standings, Standing{
			ID:     p.ID,
			Name:   p.Name,
			Score:  p.Score,
			IsSelf: p.ID == selfID && selfID != "",
		})
	}
	sort.SliceStable(standings, func(i, j int) bool {
		return standings[i].Score > standings[j].Score
	})
	for i := range standings {
		standings[i].Rank = i + 1
	}
	return standings
}
