package main

import (
	"fmt"
	"net"
	"net/http"

	"github.com/rs/cors"
	"github.com/rs/zerolog/log"
	"golang.org/x/net/netutil"
)

func setupServer(services *Services, config *Config) *http.Server {
	mux := http.NewServeMux()

	services.API.RegisterRoutes(mux)
	services.Stream.RegisterRoutes(mux)

	// Setup CORS middleware
	c := cors.New(cors.Options{
		AllowedMethods: []string{
			http.MethodHead,
			http.MethodGet,
			http.MethodPost,
			http.MethodPut,
			http.MethodPatch,
			http.MethodDelete,
		},
		AllowedOrigins: []string{"*"},
		AllowedHeaders: []string{"*"},
	})

	return &http.Server{
		Addr:    fmt.Sprintf(":%s", config.Server.Port),
		Handler: c.Handler(mux),
	}
}

// serve listens with a bounded connection count so a flood of observers
// degrades into refused connections instead of resource exhaustion.
func serve(server *http.Server, maxConnections int) error {
	listener, err := net.Listen("tcp", server.Addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", server.Addr, err)
	}
	if maxConnections > 0 {
		listener = netutil.LimitListener(listener, maxConnections)
	}

	log.Info().
		Str("addr", server.Addr).
		Int("max_connections", maxConnections).
		Msg("server listening")

	return server.Serve(listener)
}
