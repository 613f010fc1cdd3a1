// Package websocket is the realtime transport layer: it upgrades client
// connections, registers them with the room router, relays join/leave
// commands, and writes delivered room events back to the client.
package websocket

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/coder/websocket"
	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/nearbyconnect/nearby/internal/middleware"
	"github.com/nearbyconnect/nearby/internal/rooms"
)

const writeTimeout = 10 * time.Second

// ClientCommand is a frame sent by the client to manage its subscriptions.
type ClientCommand struct {
	Action string `json:"action"` // "join" or "leave"
	Room   string `json:"room"`
}

// Gateway accepts WebSocket connections and bridges them to the room router.
type Gateway struct {
	router *rooms.Router
	grants *rooms.Grants
	logger *slog.Logger
}

// NewGateway creates a new gateway over the given router.
func NewGateway(router *rooms.Router, grants *rooms.Grants) *Gateway {
	return &Gateway{
		router: router,
		grants: grants,
		logger: slog.Default().With("service", "websocket"),
	}
}

// Handler returns the echo handler for GET /ws.
func (g *Gateway) Handler() echo.HandlerFunc {
	return func(c echo.Context) error {
		userID := middleware.UserID(c)
		if userID == "" {
			return c.String(http.StatusUnauthorized, "User not authenticated")
		}

		ws, err := websocket.Accept(c.Response(), c.Request(), &websocket.AcceptOptions{
			InsecureSkipVerify: true, // In production, check origin.
		})
		if err != nil {
			g.logger.Error("Failed to upgrade connection to WebSocket", "error", err)
			return err
		}

		conn := g.router.Connect(uuid.NewString(), userID)

		go g.writePump(ws, conn)
		go g.readPump(ws, conn)

		return nil
	}
}

// readPump reads command frames from the client until the connection drops,
// then tears the connection's subscriptions down.
func (g *Gateway) readPump(ws *websocket.Conn, conn *rooms.Conn) {
	defer func() {
		g.router.Disconnect(conn)
		ws.Close(websocket.StatusNormalClosure, "Client disconnected")
	}()

	for {
		_, data, err := ws.Read(context.Background())
		if err != nil {
			status := websocket.CloseStatus(err)
			if status == websocket.StatusNormalClosure || status == websocket.StatusGoingAway {
				g.logger.Info("WebSocket closed normally by client", "user_id", conn.UserID)
			} else if err != io.EOF {
				g.logger.Error("WebSocket read error", "user_id", conn.UserID, "error", err)
			}
			return
		}

		var cmd ClientCommand
		if err := json.Unmarshal(data, &cmd); err != nil {
			g.logger.Warn("Ignoring malformed client frame", "user_id", conn.UserID, "error", err)
			continue
		}
		g.handleCommand(conn, cmd)
	}
}

func (g *Gateway) handleCommand(conn *rooms.Conn, cmd ClientCommand) {
	switch cmd.Action {
	case "join":
		if !rooms.CanJoin(conn.UserID, cmd.Room, g.grants) {
			g.logger.Warn("Join refused", "user_id", conn.UserID, "room", cmd.Room)
			return
		}
		g.router.Join(conn, cmd.Room)
	case "leave":
		g.router.Leave(conn, cmd.Room)
	default:
		g.logger.Warn("Unknown client action", "user_id", conn.UserID, "action", cmd.Action)
	}
}

// writePump writes delivered room events to the client until the router
// closes the event channel.
func (g *Gateway) writePump(ws *websocket.Conn, conn *rooms.Conn) {
	defer ws.Close(websocket.StatusNormalClosure, "Server-side cleanup")

	for event := range conn.Events() {
		frame, err := json.Marshal(event)
		if err != nil {
			g.logger.Error("Failed to marshal room event", "room", event.Room, "error", err)
			continue
		}

		ctx, cancel := context.WithTimeout(context.Background(), writeTimeout)
		err = ws.Write(ctx, websocket.MessageText, frame)
		cancel()
		if err != nil {
			g.logger.Error("WebSocket write error", "user_id", conn.UserID, "error", err)
			return
		}
	}
}
