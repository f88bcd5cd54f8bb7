// internal/stream/gateway_test.go
package stream

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"haptic-trainer/internal/common/auth"
	"haptic-trainer/internal/common/config"
	"haptic-trainer/internal/common/logger"
	"haptic-trainer/internal/models"

	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// ==========================
// Test Helpers
// ==========================

func createTestGateway(t *testing.T) (*Gateway, *Hub, *auth.TokenService) {
	t.Helper()
	log := logger.NewTestLogger(t)

	hub := NewHub(config.StreamConfig{}, log)
	ctx, cancel := context.WithCancel(context.Background())
	go hub.Run(ctx)
	t.Cleanup(cancel)

	tokens, err := auth.NewTokenService(config.AuthConfig{
		JWTSecret: "stream-test-secret",
		Issuer:    "haptic-trainer",
	})
	require.NoError(t, err)

	gateway := NewGateway(hub, tokens, config.StreamConfig{
		SendBuffer:     8,
		PingIntervalMs: 30000,
	}, log)
	return gateway, hub, tokens
}

func startTelemetryServer(t *testing.T, gateway *Gateway) string {
	t.Helper()
	e := echo.New()
	e.GET("/ws/telemetry", gateway.Handle)
	server := httptest.NewServer(e)
	t.Cleanup(server.Close)
	return "ws" + strings.TrimPrefix(server.URL, "http") + "/ws/telemetry"
}

func issueToken(t *testing.T, tokens *auth.TokenService, role string) string {
	t.Helper()
	token, err := tokens.Issue("trainee-1", "Ada Kovacs", role)
	require.NoError(t, err)
	return token.Token
}

// ==========================
// Gateway Tests
// ==========================

func TestGateway_RejectsMissingToken(t *testing.T) {
	gateway, _, _ := createTestGateway(t)
	url := startTelemetryServer(t, gateway)

	conn, resp, err := websocket.DefaultDialer.Dial(url, nil)
	require.Error(t, err)
	require.NotNil(t, resp)
	defer resp.Body.Close()

	assert.Nil(t, conn)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestGateway_RejectsInvalidToken(t *testing.T) {
	gateway, _, _ := createTestGateway(t)
	url := startTelemetryServer(t, gateway)

	_, resp, err := websocket.DefaultDialer.Dial(url+"?token=not-a-jwt", nil)
	require.Error(t, err)
	require.NotNil(t, resp)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestGateway_StreamsToAuthorizedClient(t *testing.T) {
	gateway, hub, tokens := createTestGateway(t)
	url := startTelemetryServer(t, gateway)
	token := issueToken(t, tokens, models.RoleTrainee)

	conn, resp, err := websocket.DefaultDialer.Dial(url+"?token="+token, nil)
	require.NoError(t, err)
	defer resp.Body.Close()
	defer conn.Close()

	waitForCount(t, hub, 1)

	hub.Broadcast([]byte(`{"type":"telemetry","seq":33,"gripper":12.5}`))

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, message, err := conn.ReadMessage()
	require.NoError(t, err)
	assert.JSONEq(t, `{"type":"telemetry","seq":33,"gripper":12.5}`, string(message))
}

func TestGateway_AcceptsBearerHeader(t *testing.T) {
	gateway, hub, tokens := createTestGateway(t)
	url := startTelemetryServer(t, gateway)
	token := issueToken(t, tokens, models.RoleInstructor)

	header := http.Header{}
	header.Set("Authorization", "Bearer "+token)

	conn, resp, err := websocket.DefaultDialer.Dial(url, header)
	require.NoError(t, err)
	defer resp.Body.Close()
	defer conn.Close()

	waitForCount(t, hub, 1)
}

func TestGateway_DisconnectUnregistersClient(t *testing.T) {
	gateway, hub, tokens := createTestGateway(t)
	url := startTelemetryServer(t, gateway)
	token := issueToken(t, tokens, models.RoleTrainee)

	conn, resp, err := websocket.DefaultDialer.Dial(url+"?token="+token, nil)
	require.NoError(t, err)
	defer resp.Body.Close()

	waitForCount(t, hub, 1)

	conn.Close()
	waitForCount(t, hub, 0)
}
