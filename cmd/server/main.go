package main

import "github.com/nearbyconnect/nearby/internal/server"

func main() {
	// Create a new server instance.
	s := server.New()

	// Register all application routes.
	server.RegisterRoutes(s)

	// Start the server.
	s.Start()
}
