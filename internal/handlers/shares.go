package handlers

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/nearbyconnect/nearby/internal/middleware"
	"github.com/nearbyconnect/nearby/internal/rooms"
)

// SharesHandler manages location-sharing grants: who may subscribe to the
// caller's location room.
type SharesHandler struct {
	grants *rooms.Grants
	router *rooms.Router
}

// NewSharesHandler creates a new shares handler.
func NewSharesHandler(grants *rooms.Grants, router *rooms.Router) *SharesHandler {
	return &SharesHandler{grants: grants, router: router}
}

// Grant handles POST /api/location/shares/:user_id.
func (h *SharesHandler) Grant(c echo.Context) error {
	viewer := c.Param("user_id")
	if viewer == "" {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "user_id parameter required"})
	}

	owner := middleware.UserID(c)
	h.grants.Allow(owner, viewer)

	return c.JSON(http.StatusOK, map[string]string{"message": "Location sharing granted"})
}

// Revoke handles DELETE /api/location/shares/:user_id. Connections the viewer
// already has in the room are evicted.
func (h *SharesHandler) Revoke(c echo.Context) error {
	viewer := c.Param("user_id")
	if viewer == "" {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "user_id parameter required"})
	}

	owner := middleware.UserID(c)
	h.grants.Revoke(owner, viewer)
	h.router.Evict(rooms.LocationRoom(owner), viewer)

	return c.JSON(http.StatusOK, map[string]string{"message": "Location sharing revoked"})
}
