package handlers

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/nearbyconnect/nearby/internal/dispatch"
	"github.com/nearbyconnect/nearby/internal/middleware"
	"github.com/nearbyconnect/nearby/internal/store"
)

const historyLimit = 100

// MessageHandler handles message sending and the history read-through.
type MessageHandler struct {
	dispatcher *dispatch.Dispatcher
	messages   store.MessageStore
}

// NewMessageHandler creates a new message handler.
func NewMessageHandler(dispatcher *dispatch.Dispatcher, messages store.MessageStore) *MessageHandler {
	return &MessageHandler{dispatcher: dispatcher, messages: messages}
}

// Send handles POST /api/messages.
func (h *MessageHandler) Send(c echo.Context) error {
	var req SendMessageRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "unable to parse request body"})
	}
	if err := c.Validate(&req); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": err.Error()})
	}

	senderID := middleware.UserID(c)
	messageID, err := h.dispatcher.Send(c.Request().Context(), senderID, req.RecipientIDs, req.Content, req.ImageData)
	if err != nil {
		return writeError(c, err)
	}

	return c.JSON(http.StatusOK, map[string]string{
		"message":    "Message sent successfully",
		"message_id": messageID,
	})
}

// List handles GET /api/messages. History lives in the external store; this
// is a plain read-through, newest first.
func (h *MessageHandler) List(c echo.Context) error {
	userID := middleware.UserID(c)
	messages, err := h.messages.ListForUser(c.Request().Context(), userID, historyLimit)
	if err != nil {
		return writeError(c, err)
	}

	return c.JSON(http.StatusOK, map[string]interface{}{"messages": messages})
}
