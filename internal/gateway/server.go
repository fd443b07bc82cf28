package gateway

import (
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/nexusengine/liveauction/internal/clock"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  4096,
	WriteBufferSize: 4096,
	// The upgrader accepts any origin. The CORS middleware in front of
	// this handler only adds response headers and passes requests from
	// non-allowed origins through, so no origin is rejected here.
	CheckOrigin: func(r *http.Request) bool { return true },
}

// Server is the HTTP entry point that upgrades a connection, authenticates
// it, and hands it to the Hub.
type Server struct {
	hub  *Hub
	auth Authenticator
	clk  clock.Clock
	log  zerolog.Logger
}

// NewServer builds the websocket upgrade handler.
func NewServer(hub *Hub, auth Authenticator, clk clock.Clock, log zerolog.Logger) *Server {
	return &Server{hub: hub, auth: auth, clk: clk, log: log.With().Str("component", "gateway-server").Logger()}
}

// ServeHTTP upgrades the request, authenticates the bearer token, and
// starts the client's read/write pumps. Auth failure closes the socket
// with an AUTH_ERROR frame rather than rejecting the HTTP upgrade, since
// browsers cannot set Authorization headers on the websocket handshake;
// the token is read from an "Authorization: Bearer" header when present,
// otherwise from the "token" query parameter.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	token := bearerToken(r)

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.Warn().Err(err).Msg("websocket upgrade failed")
		return
	}

	identity, ok := s.auth.Authenticate(token)
	if !ok {
		writeAuthError(conn)
		conn.Close()
		return
	}

	client := NewClient(conn, identity, s.hub, s.log)
	s.hub.Register(client)
	client.SendServerTime(s.clk.Now())

	go client.WritePump()
	go client.ReadPump()
}

func bearerToken(r *http.Request) string {
	if auth := r.Header.Get("Authorization"); strings.HasPrefix(auth, "Bearer ") {
		return strings.TrimPrefix(auth, "Bearer ")
	}
	return r.URL.Query().Get("token")
}

func writeAuthError(conn *websocket.Conn) {
	conn.SetWriteDeadline(time.Now().Add(writeWait))
	conn.WriteJSON(outboundEnvelope{
		Type: "AUTH_ERROR",
		Payload: errorPayload{
			Code:    "AUTH_ERROR",
			Message: "missing or invalid bearer token",
		},
	})
}
