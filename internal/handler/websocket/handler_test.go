package websocket_test

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	gorilla "github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"desk-ledger/internal/domain"
	"desk-ledger/internal/handler/websocket"
	"desk-ledger/internal/hub"
)

type fakeRooms struct{ known string }

func (f fakeRooms) GetRoom(_ context.Context, code string) (*domain.Room, error) {
	if code != f.known {
		return nil, fmt.Errorf("%w: %s", domain.ErrRoomNotFound, code)
	}
	return &domain.Room{RoomCode: code}, nil
}

func (f fakeRooms) Snapshot(_ context.Context, code string, deliver func([]byte)) error {
	deliver([]byte(`{"type":"roomUpdate","roomCode":"` + code + `"}`))
	return nil
}

func newServer(t *testing.T, allowedOrigin string) (*httptest.Server, *hub.Hub) {
	t.Helper()
	gin.SetMode(gin.TestMode)
	rooms := fakeRooms{known: "123456"}
	h := hub.NewHub(rooms)
	ctx, cancel := context.WithCancel(context.Background())
	go h.Run(ctx)

	router := gin.New()
	router.GET("/ws/rooms/:code", websocket.NewWebSocketHandler(h, rooms, allowedOrigin).HandleConnection)
	srv := httptest.NewServer(router)
	t.Cleanup(func() {
		srv.Close()
		cancel()
	})
	return srv, h
}

func wsURL(srv *httptest.Server, code string) string {
	return "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws/rooms/" + code
}

func TestHandleConnection_SubscribesAndSendsSnapshot(t *testing.T) {
	srv, h := newServer(t, "*")

	conn, resp, err := gorilla.DefaultDialer.Dial(wsURL(srv, "123456"), nil)
	require.NoError(t, err)
	defer conn.Close()
	assert.Equal(t, http.StatusSwitchingProtocols, resp.StatusCode)

	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, msg, err := conn.ReadMessage()
	require.NoError(t, err)
	assert.JSONEq(t, `{"type":"roomUpdate","roomCode":"123456"}`, string(msg))
	assert.Equal(t, 1, h.Subscribers("123456"))

	require.NoError(t, h.Publish(context.Background(), "123456", []byte(`{"type":"memberUpdate"}`)))
	_, msg, err = conn.ReadMessage()
	require.NoError(t, err)
	assert.JSONEq(t, `{"type":"memberUpdate"}`, string(msg))

	conn.Close()
	assert.Eventually(t, func() bool { return h.Subscribers("123456") == 0 }, 2*time.Second, 10*time.Millisecond)
}

func TestHandleConnection_UnknownRoom(t *testing.T) {
	srv, _ := newServer(t, "*")

	_, resp, err := gorilla.DefaultDialer.Dial(wsURL(srv, "000000"), nil)
	require.ErrorIs(t, err, gorilla.ErrBadHandshake)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestHandleConnection_RejectsForeignOrigin(t *testing.T) {
	srv, _ := newServer(t, "http://allowed.example")

	header := http.Header{"Origin": []string{"http://evil.example"}}
	_, resp, err := gorilla.DefaultDialer.Dial(wsURL(srv, "123456"), header)
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)
}
