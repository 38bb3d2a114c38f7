package app

import (
	"context"
	"errors"
	"sync"

	"github.com/sirupsen/logrus"

	"quizroom-service/internal/domain"
	"quizroom-service/internal/view"
)

// Client is one participant device: the room protocol plus the identity it
// persisted locally. A Client is bound to at most one player identity at a time.
type Client struct {
	rooms      *RoomService
	identities IdentityStore
	log        logrus.FieldLogger

	mu       sync.RWMutex
	identity *domain.Identity
}

func NewClient(rooms *RoomService, identities IdentityStore) *Client {
	return &Client{
		rooms:      rooms,
		identities: identities,
		log:        rooms.log.WithField("component", "client"),
	}
}

// Identity returns the identity the client currently plays as.
func (c *Client) Identity() (domain.Identity, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.identity == nil {
		return domain.Identity{}, false
	}
	return *c.identity, true
}

func (c *Client) setIdentity(identity *domain.Identity) {
	c.mu.Lock()
	c.identity = identity
	c.mu.Unlock()
}

// Resume restores a saved identity for roomID. It fails with ErrNoIdentity when
// nothing is saved, and with ErrPlayerNotInRoom (after clearing the saved
// identity) when the room no longer lists the player; both mean a fresh join.
func (c *Client) Resume(ctx context.Context, roomID string) (domain.Identity, error) {
	identity, ok, err := c.identities.Load(ctx, roomID)
	if err != nil {
		return domain.Identity{}, err
	}
	if !ok {
		return domain.Identity{}, domain.ErrNoIdentity
	}

	room, err := c.rooms.Get(ctx, roomID)
	if err != nil {
		return domain.Identity{}, err
	}
	if _, present := room.Player(identity.PlayerID); !present {
		if err := c.identities.Clear(ctx, roomID); err != nil {
			c.log.WithError(err).WithField("room_id", roomID).Warn("failed to clear stale identity")
		}
		c.setIdentity(nil)
		return domain.Identity{}, domain.ErrPlayerNotInRoom
	}

	c.setIdentity(&identity)
	return identity, nil
}

// Join resumes a valid saved identity for the room, or joins as a new player
// and saves the identity. Joining twice from the same device never duplicates
// the player.
func (c *Client) Join(ctx context.Context, roomID, name string) (domain.Identity, error) {
	identity, err := c.Resume(ctx, roomID)
	switch {
	case err == nil:
		return identity, nil
	case errors.Is(err, domain.ErrNoIdentity), errors.Is(err, domain.ErrPlayerNotInRoom):
	default:
		return domain.Identity{}, err
	}

	player, err := c.rooms.Join(ctx, roomID, name)
	if err != nil {
		return domain.Identity{}, err
	}
	identity = domain.Identity{RoomID: roomID, PlayerID: player.ID, PlayerName: player.Name}
	if err := c.identities.Save(ctx, identity); err != nil {
		// The join is committed; losing the local copy only costs resumption.
		c.log.WithError(err).WithField("room_id", roomID).Warn("failed to persist identity")
	}
	c.setIdentity(&identity)
	return identity, nil
}

func (c *Client) requireIdentity(roomID string) (domain.Identity, error) {
	identity, ok := c.Identity()
	if !ok || identity.RoomID != roomID {
		return domain.Identity{}, domain.ErrNoIdentity
	}
	return identity, nil
}

// Start explicitly starts the room; only the host may.
func (c *Client) Start(ctx context.Context, roomID string) (domain.Room, error) {
	identity, err := c.requireIdentity(roomID)
	if err != nil {
		return domain.Room{}, err
	}
	return c.rooms.Start(ctx, roomID, identity.PlayerID)
}

// Answer submits the client's option for questionIndex.
func (c *Client) Answer(ctx context.Context, roomID string, questionIndex, option int) (AnswerOutcome, error) {
	identity, err := c.requireIdentity(roomID)
	if err != nil {
		return AnswerOutcome{}, err
	}
	return c.rooms.SubmitAnswer(ctx, roomID, identity.PlayerID, questionIndex, option)
}

// Observe reacts to a snapshot: the host starts the room once minPlayers
// joined. The decision uses the snapshot; Start itself re-reads the document,
// so duplicate observations cannot start the room twice.
func (c *Client) Observe(ctx context.Context, room domain.Room) error {
	identity, ok := c.Identity()
	if !ok || identity.RoomID != room.ID || !ShouldAutoStart(room, identity.PlayerID) {
		return nil
	}
	_, err := c.rooms.Start(ctx, room.ID, identity.PlayerID)
	if errors.Is(err, domain.ErrRoomAlreadyStarted) {
		return nil
	}
	return err
}

// View projects room for the client's identity.
func (c *Client) View(room domain.Room) (view.View, error) {
	identity, _ := c.Identity()
	return view.Project(room, identity.PlayerID)
}

// Watch subscribes to the room, applies Observe to every snapshot and hands
// the projected view to onView.
func (c *Client) Watch(ctx context.Context, roomID string, onView func(view.View)) (func(), error) {
	log := c.log.WithField("room_id", roomID)
	return c.rooms.Subscribe(ctx, roomID, func(room domain.Room) {
		if err := c.Observe(ctx, room); err != nil {
			log.WithError(err).Warn("auto-start failed")
		}
		v, err := c.View(room)
		if err != nil {
			log.WithError(err).Warn("failed to project room")
			return
		}
		onView(v)
	})
}
