package gateway

import (
	"context"
	"log/slog"
	"net/http"
	"strings"

	"github.com/gorilla/websocket"
)

// Authenticator validates the bearer credential on an inbound HTTP
// connection before it is upgraded to WebSocket (§4.9: "accepting
// authenticated connections"; §6: "Authorisation is a bearer token").
type Authenticator interface {
	Authenticate(token string) bool
}

// StaticTokenAuth accepts any token present in Tokens. It is the simplest
// authenticator that satisfies the bearer-token contract; a real deployment
// would back this with the admin surface's API-key store instead.
type StaticTokenAuth struct {
	Tokens map[string]struct{}
}

// NewStaticTokenAuth returns an authenticator accepting exactly the given
// tokens.
func NewStaticTokenAuth(tokens ...string) *StaticTokenAuth {
	set := make(map[string]struct{}, len(tokens))
	for _, t := range tokens {
		set[t] = struct{}{}
	}
	return &StaticTokenAuth{Tokens: set}
}

func (a *StaticTokenAuth) Authenticate(token string) bool {
	if a == nil {
		return true
	}
	_, ok := a.Tokens[token]
	return ok
}

// Server is the gateway's HTTP entrypoint: it upgrades authenticated
// requests to WebSocket connections served by the Hub.
type Server struct {
	hub    *Hub
	auth   Authenticator
	logger *slog.Logger

	upgrader websocket.Upgrader
}

// NewServer returns a Server publishing through hub. auth may be nil to
// accept every connection (development mode).
func NewServer(hub *Hub, auth Authenticator, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	return &Server{
		hub:    hub,
		auth:   auth,
		logger: logger,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  8192,
			WriteBufferSize: 8192,
			CheckOrigin:     func(*http.Request) bool { return true },
		},
	}
}

func bearerToken(r *http.Request) string {
	header := r.Header.Get("Authorization")
	if strings.HasPrefix(strings.ToLower(header), "bearer ") {
		return strings.TrimSpace(header[len("Bearer "):])
	}
	return ""
}

// ServeHTTP authenticates and upgrades an inbound connection, then blocks
// serving it until disconnect.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if s.auth != nil && !s.auth.Authenticate(bearerToken(r)) {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}

	ws, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warn("gateway: upgrade failed", "error", err)
		return
	}

	conn := newConn(s.hub, ws, context.Background())
	conn.serve()
}
