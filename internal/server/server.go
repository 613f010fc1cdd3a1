package server

import (
	"context"
	"log/slog"
	"os"

	"github.com/labstack/echo/v4"
	echomiddleware "github.com/labstack/echo/v4/middleware"

	"github.com/nearbyconnect/nearby/internal/config"
	"github.com/nearbyconnect/nearby/internal/dispatch"
	"github.com/nearbyconnect/nearby/internal/geo"
	"github.com/nearbyconnect/nearby/internal/handlers"
	"github.com/nearbyconnect/nearby/internal/location"
	"github.com/nearbyconnect/nearby/internal/logging"
	"github.com/nearbyconnect/nearby/internal/presence"
	"github.com/nearbyconnect/nearby/internal/proximity"
	"github.com/nearbyconnect/nearby/internal/pubsub"
	"github.com/nearbyconnect/nearby/internal/rooms"
	"github.com/nearbyconnect/nearby/internal/store"
	"github.com/nearbyconnect/nearby/internal/websocket"
)

// Server holds the dependencies for the HTTP server.
type Server struct {
	E      *echo.Echo
	Cfg    *config.Config
	Store  *store.Mongo
	Bridge *pubsub.Bridge

	index     *geo.Index
	presence  *presence.Registry
	router    *rooms.Router
	grants    *rooms.Grants
	forwarder *websocket.Forwarder

	locationHandler *handlers.LocationHandler
	messageHandler  *handlers.MessageHandler
	sharesHandler   *handlers.SharesHandler
	gateway         *websocket.Gateway
}

// New creates a new Server instance and wires up every core component.
func New() *Server {
	logging.New()
	cfg := config.New()

	mongoStore, err := store.NewMongo(context.Background(), cfg.MongoURL, cfg.MongoDB)
	if err != nil {
		slog.Error("Failed to connect to database", "error", err)
		os.Exit(1)
	}

	bridge := pubsub.NewBridge()
	index := geo.NewIndex()
	reg := presence.NewRegistry(presence.WithWindow(cfg.PresenceWindow))
	router := rooms.NewRouter()
	grants := rooms.NewGrants()

	locationService := location.NewService(index, reg, mongoStore, bridge)
	engine := proximity.NewEngine(index, reg, mongoStore)
	dispatcher := dispatch.NewDispatcher(mongoStore, mongoStore, reg, bridge)

	forwarder := websocket.NewForwarder(bridge, router)
	if err := forwarder.Start(context.Background()); err != nil {
		slog.Error("Failed to start event forwarder", "error", err)
		os.Exit(1)
	}

	e := echo.New()
	e.HideBanner = true
	e.Use(echomiddleware.Logger())
	e.Use(echomiddleware.Recover())
	e.Validator = handlers.NewValidator()

	return &Server{
		E:               e,
		Cfg:             cfg,
		Store:           mongoStore,
		Bridge:          bridge,
		index:           index,
		presence:        reg,
		router:          router,
		grants:          grants,
		forwarder:       forwarder,
		locationHandler: handlers.NewLocationHandler(locationService, engine),
		messageHandler:  handlers.NewMessageHandler(dispatcher, mongoStore),
		sharesHandler:   handlers.NewSharesHandler(grants, router),
		gateway:         websocket.NewGateway(router, grants),
	}
}

// Router is a getter for the server's room router, useful for testing.
func (s *Server) Router() *rooms.Router {
	return s.router
}
