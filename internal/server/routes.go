package server

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/nearbyconnect/nearby/internal/middleware"
)

// RegisterRoutes sets up all the application routes.
func RegisterRoutes(s *Server) {
	auth := middleware.Auth(s.Cfg.JWTSecret)

	api := s.E.Group("/api", auth)
	api.POST("/location", s.locationHandler.Update)
	api.POST("/users/nearby", s.locationHandler.Nearby)
	api.POST("/messages", s.messageHandler.Send)
	api.GET("/messages", s.messageHandler.List)
	api.POST("/location/shares/:user_id", s.sharesHandler.Grant)
	api.DELETE("/location/shares/:user_id", s.sharesHandler.Revoke)

	s.E.GET("/ws", s.gateway.Handler(), auth)

	s.E.GET("/healthz", func(c echo.Context) error {
		return c.String(http.StatusOK, "OK")
	})
}
