package websocket

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"livepoll/internal/events"
	"livepoll/internal/services"
	"livepoll/internal/transport/httpdto"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

// Inbound frames are small subscribe/unsubscribe commands; anything
// larger is a misbehaving client.
const maxCommandSize = 512

// clientCommand is the inbound frame: attach to or detach from a
// live-feed channel.
type clientCommand struct {
	Action  string `json:"action"`
	Channel string `json:"channel"`
}

// serverNotice acknowledges commands and reports refusals. Event
// payloads themselves are relayed verbatim from the outbox envelopes.
type serverNotice struct {
	Type    string `json:"type"`
	Channel string `json:"channel,omitempty"`
	Error   string `json:"error,omitempty"`
}

// Handler upgrades authenticated HTTP requests to WebSocket
// connections and services the subscription protocol until the peer
// disconnects.
type Handler struct {
	auth       *services.AuthService
	hub        *Hub
	authorizer *ChannelAuthorizer
	upgrader   websocket.Upgrader
	log        *ConnLogger
}

// NewHandler builds the /ws endpoint handler. allowedOrigins follows
// the CORS configuration; "*" disables the origin check.
func NewHandler(auth *services.AuthService, hub *Hub, authorizer *ChannelAuthorizer, allowedOrigins []string) *Handler {
	h := &Handler{auth: auth, hub: hub, authorizer: authorizer, log: NewConnLogger()}
	h.upgrader = websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin:     originChecker(allowedOrigins),
	}
	return h
}

// Connect authenticates the caller, upgrades the connection, and runs
// the read loop. Browsers cannot set headers on WebSocket requests, so
// the access token travels as a query parameter.
func (h *Handler) Connect(c *gin.Context) {
	token := c.Query("token")
	if token == "" {
		c.JSON(http.StatusUnauthorized, httpdto.NewErrorResponse("unauthorized", "UNAUTHORIZED"))
		return
	}

	claims, err := h.auth.ParseAccessToken(token)
	if err != nil {
		c.JSON(http.StatusUnauthorized, httpdto.NewErrorResponse("unauthorized", "UNAUTHORIZED"))
		return
	}

	userID, err := uuid.Parse(claims.UserID)
	if err != nil {
		c.JSON(http.StatusUnauthorized, httpdto.NewErrorResponse("unauthorized", "UNAUTHORIZED"))
		return
	}
	sessionID, err := uuid.Parse(claims.SessionID)
	if err != nil {
		c.JSON(http.StatusUnauthorized, httpdto.NewErrorResponse("unauthorized", "UNAUTHORIZED"))
		return
	}

	// A token outlives logout by design; the session row does not.
	if _, err := h.auth.ValidateSession(c.Request.Context(), sessionID, userID); err != nil {
		c.JSON(http.StatusUnauthorized, httpdto.NewErrorResponse("unauthorized", "UNAUTHORIZED"))
		return
	}

	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		return
	}

	client := NewClient(conn, userID.String())
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	h.log.Info("connected", client.UserID, client.ID)

	h.hub.Register(client)
	// Account and session events are pushed without an explicit
	// subscribe; everything else is opt-in.
	h.hub.Subscribe(client, events.ChannelPrefixUser+client.UserID)
	go client.WriteLoop(ctx)

	h.readLoop(ctx, conn, client)
	h.hub.Unregister(client)

	h.log.Info("disconnected", client.UserID, client.ID)
}

// readLoop consumes subscription commands until the connection drops.
// Pongs refresh the read deadline so idle-but-alive clients stay
// connected across ping intervals.
func (h *Handler) readLoop(ctx context.Context, conn *websocket.Conn, client *Client) {
	conn.SetReadLimit(maxCommandSize)
	_ = conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, raw, err := conn.ReadMessage()
		if err != nil {
			return
		}
		_ = conn.SetReadDeadline(time.Now().Add(pongWait))
		h.handleCommand(ctx, client, raw)
	}
}

func (h *Handler) handleCommand(ctx context.Context, client *Client, raw []byte) {
	var cmd clientCommand
	if err := json.Unmarshal(raw, &cmd); err != nil {
		h.notify(client, serverNotice{Type: "error", Error: "malformed command"})
		return
	}

	switch cmd.Action {
	case "subscribe":
		ok, err := h.authorizer.CanSubscribe(ctx, client.UserID, cmd.Channel)
		if err != nil || !ok {
			if err != nil {
				h.log.Error("subscribe_check_failed", client.UserID, client.ID, err)
			}
			h.notify(client, serverNotice{Type: "error", Channel: cmd.Channel, Error: "subscription denied"})
			return
		}
		h.hub.Subscribe(client, cmd.Channel)
		h.notify(client, serverNotice{Type: "subscribed", Channel: cmd.Channel})
	case "unsubscribe":
		h.hub.Unsubscribe(client, cmd.Channel)
		h.notify(client, serverNotice{Type: "unsubscribed", Channel: cmd.Channel})
	default:
		h.notify(client, serverNotice{Type: "error", Error: "unknown action"})
	}
}

func (h *Handler) notify(client *Client, notice serverNotice) {
	data, err := json.Marshal(notice)
	if err != nil {
		return
	}
	client.SendMessage(data)
}

func originChecker(allowedOrigins []string) func(r *http.Request) bool {
	allowAll := false
	allowed := make(map[string]struct{}, len(allowedOrigins))
	for _, origin := range allowedOrigins {
		if origin == "*" {
			allowAll = true
		}
		allowed[origin] = struct{}{}
	}
	return func(r *http.Request) bool {
		if allowAll {
			return true
		}
		origin := r.Header.Get("Origin")
		if origin == "" {
			return true
		}
		_, ok := allowed[origin]
		return ok
	}
}
