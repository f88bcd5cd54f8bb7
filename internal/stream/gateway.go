// internal/stream/gateway.go
package stream

import (
	"net/http"
	"strings"
	"time"

	"haptic-trainer/internal/common/auth"
	"haptic-trainer/internal/common/config"
	"haptic-trainer/internal/common/logger"

	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		// Operator consoles are served from a different origin than the
		// daemon, so the handshake accepts any origin. The token check below
		// is the actual gate.
		return true
	},
}

// Gateway upgrades authenticated subscribers onto the telemetry hub.
type Gateway struct {
	hub        *Hub
	tokens     *auth.TokenService
	sendBuffer int
	pingPeriod time.Duration
	log        logger.Logger
}

// NewGateway builds the websocket entry point for the hub.
func NewGateway(hub *Hub, tokens *auth.TokenService, cfg config.StreamConfig, log logger.Logger) *Gateway {
	return &Gateway{
		hub:        hub,
		tokens:     tokens,
		sendBuffer: cfg.SendBuffer,
		pingPeriod: time.Duration(cfg.PingIntervalMs) * time.Millisecond,
		log:        log,
	}
}

// Handle verifies the caller's token and upgrades the connection. Browsers
// cannot set headers on websocket dials, so the token is also accepted as a
// "token" query parameter.
func (g *Gateway) Handle(c echo.Context) error {
	token := bearerToken(c.Request())
	if token == "" {
		token = c.QueryParam("token")
	}

	principal, err := g.tokens.Verify(token)
	if err != nil {
		return echo.NewHTTPError(http.StatusUnauthorized, "missing or invalid token")
	}

	conn, err := upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		// Upgrade already wrote the handshake failure to the client.
		return err
	}

	client := newClient(conn, principal.Subject, g.sendBuffer, g.pingPeriod)
	g.hub.Register(client)

	go client.writePump()
	go client.readPump(g.hub)
	return nil
}

func bearerToken(r *http.Request) string {
	header := r.Header.Get("Authorization")
	if strings.HasPrefix(header, "Bearer ") {
		return strings.TrimPrefix(header, "Bearer ")
	}
	return ""
}
