package http

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"

	"quizroom-service/internal/app"
	"quizroom-service/internal/domain"
	"quizroom-service/internal/metrics"
	"quizroom-service/internal/view"
)

const (
	writeWait      = 10 * time.Second
	maxMessageSize = 4096
	sendBuffer     = 16
)

// IdentityStores returns the identity store of one client device.
type IdentityStores func(clientID string) app.IdentityStore

type WSHandler struct {
	rooms      *app.RoomService
	identities IdentityStores
	upgrader   websocket.Upgrader
	log        logrus.FieldLogger
	metrics    *metrics.Metrics
}

func NewWSHandler(rooms *app.RoomService, identities IdentityStores, log logrus.FieldLogger, m *metrics.Metrics) *WSHandler {
	return &WSHandler{
		rooms:      rooms,
		identities: identities,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
		log:     log.WithField("component", "ws"),
		metrics: m,
	}
}

type inboundMessage struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

type joinPayload struct {
	Name string `json:"name"`
}

type answerPayload struct {
	QuestionIndex int `json:"questionIndex"`
	Option        int `json:"option"`
}

type outboundMessage struct {
	Type    string `json:"type"`
	Payload any    `json:"payload"`
}

type joinedPayload struct {
	Identity domain.Identity `json:"identity"`
	Resumed  bool            `json:"resumed"`
}

type errorPayload struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// connection serializes writes to one websocket; gorilla allows a single writer.
type connection struct {
	conn   *websocket.Conn
	send   chan outboundMessage
	closed chan struct{}
	done   chan struct{}
	log    logrus.FieldLogger
}

func (c *connection) writeLoop() {
	defer close(c.done)
	for {
		select {
		case msg := <-c.send:
			if !c.write(msg) {
				return
			}
		case <-c.closed:
			// Flush what was queued before shutdown, e.g. a final error.
			for {
				select {
				case msg := <-c.send:
					if !c.write(msg) {
						return
					}
				default:
					return
				}
			}
		}
	}
}

func (c *connection) write(msg outboundMessage) bool {
	_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
	if err := c.conn.WriteJSON(msg); err != nil {
		c.log.WithError(err).Debug("ws write failed")
		return false
	}
	return true
}

// enqueue never blocks past shutdown, so room callbacks can outlive the socket.
func (c *connection) enqueue(typ string, payload any) {
	select {
	case c.send <- outboundMessage{Type: typ, Payload: payload}:
	case <-c.closed:
	}
}

func (c *connection) enqueueError(err error) {
	code, _ := errorCode(err)
	c.enqueue("error", errorPayload{Code: code, Message: err.Error()})
}

func (c *connection) shutdown() {
	close(c.closed)
	<-c.done
}

// ServeWS upgrades the request and runs one participant device: it resumes
// the identity saved for clientId, streams a view for every room snapshot and
// executes join, start and answer commands.
func (h *WSHandler) ServeWS(w http.ResponseWriter, r *http.Request) {
	roomID := r.URL.Query().Get("roomId")
	clientID := r.URL.Query().Get("clientId")
	if roomID == "" || clientID == "" {
		http.Error(w, "missing roomId or clientId", http.StatusBadRequest)
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.WithError(err).Warn("ws upgrade failed")
		return
	}
	defer conn.Close()
	conn.SetReadLimit(maxMessageSize)

	h.metrics.ConnectionOpened()
	defer h.metrics.ConnectionClosed()

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	log := h.log.WithFields(logrus.Fields{"room_id": roomID, "client_id": clientID})
	c := &connection{
		conn:   conn,
		send:   make(chan outboundMessage, sendBuffer),
		closed: make(chan struct{}),
		done:   make(chan struct{}),
		log:    log,
	}
	go c.writeLoop()
	defer c.shutdown()

	client := app.NewClient(h.rooms, h.identities(clientID))

	identity, err := client.Resume(ctx, roomID)
	switch {
	case err == nil:
		c.enqueue("joined", joinedPayload{Identity: identity, Resumed: true})
	case errors.Is(err, domain.ErrNoIdentity), errors.Is(err, domain.ErrPlayerNotInRoom):
		// Spectate until the client sends join.
	default:
		c.enqueueError(err)
		return
	}

	stop, err := client.Watch(ctx, roomID, func(v view.View) { c.enqueue("view", v) })
	if err != nil {
		c.enqueueError(err)
		return
	}
	defer stop()

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				log.WithError(err).Debug("ws read failed")
			}
			return
		}
		var inbound inboundMessage
		if err := json.Unmarshal(data, &inbound); err != nil {
			c.enqueue("error", errorPayload{Code: "bad_request", Message: "invalid message"})
			continue
		}
		if err := h.handle(ctx, c, client, roomID, inbound); err != nil {
			entry := log.WithError(err).WithField("type", inbound.Type)
			if app.IsRecoverable(err) {
				entry.Debug("command rejected")
			} else {
				entry.Warn("command failed")
			}
			c.enqueueError(err)
		}
	}
}

func (h *WSHandler) handle(ctx context.Context, c *connection, client *app.Client, roomID string, inbound inboundMessage) error {
	switch inbound.Type {
	case "join":
		var payload joinPayload
		if err := json.Unmarshal(inbound.Payload, &payload); err != nil {
			return domain.ErrInvalidName
		}
		_, resumed := client.Identity()
		identity, err := client.Join(ctx, roomID, payload.Name)
		if err != nil {
			return err
		}
		c.enqueue("joined", joinedPayload{Identity: identity, Resumed: resumed})
		return h.refresh(ctx, c, client, roomID)
	case "start":
		_, err := client.Start(ctx, roomID)
		return err
	case "answer":
		var payload answerPayload
		if err := json.Unmarshal(inbound.Payload, &payload); err != nil {
			return domain.ErrInvalidOption
		}
		_, err := client.Answer(ctx, roomID, payload.QuestionIndex, payload.Option)
		return err
	default:
		c.enqueue("error", errorPayload{Code: "bad_request", Message: "unsupported message type " + inbound.Type})
		return nil
	}
}

// refresh re-projects the room right after a join: the snapshot produced by
// the join write may have been projected before the identity was known.
func (h *WSHandler) refresh(ctx context.Context, c *connection, client *app.Client, roomID string) error {
	room, err := h.rooms.Get(ctx, roomID)
	if err != nil {
		return err
	}
	if err := client.Observe(ctx, room); err != nil {
		return err
	}
	v, err := client.View(room)
	if err != nil {
		return err
	}
	c.enqueue("view", v)
	return nil
}
