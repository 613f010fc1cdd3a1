package handlers

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/nearbyconnect/nearby/internal/location"
	"github.com/nearbyconnect/nearby/internal/middleware"
	"github.com/nearbyconnect/nearby/internal/proximity"
)

// LocationHandler handles location updates and proximity queries.
type LocationHandler struct {
	locations *location.Service
	engine    *proximity.Engine
}

// NewLocationHandler creates a new location handler.
func NewLocationHandler(locations *location.Service, engine *proximity.Engine) *LocationHandler {
	return &LocationHandler{locations: locations, engine: engine}
}

// Update handles POST /api/location.
func (h *LocationHandler) Update(c echo.Context) error {
	var req UpdateLocationRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "unable to parse request body"})
	}
	if err := c.Validate(&req); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": err.Error()})
	}

	userID := middleware.UserID(c)
	if err := h.locations.Update(c.Request().Context(), userID, req.Latitude, req.Longitude); err != nil {
		return writeError(c, err)
	}

	return c.JSON(http.StatusOK, map[string]string{"message": "Location updated successfully"})
}

// Nearby handles POST /api/users/nearby.
func (h *LocationHandler) Nearby(c echo.Context) error {
	var req NearbyRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "unable to parse request body"})
	}
	if err := c.Validate(&req); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": err.Error()})
	}
	if req.RadiusMiles == 0 {
		req.RadiusMiles = 1.0
	}

	userID := middleware.UserID(c)
	results, err := h.engine.Nearby(c.Request().Context(), userID, req.Latitude, req.Longitude, req.RadiusMiles)
	if err != nil {
		return writeError(c, err)
	}

	return c.JSON(http.StatusOK, map[string]interface{}{
		"nearby_users": results,
		"count":        len(results),
	})
}
