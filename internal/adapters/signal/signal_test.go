package signal

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/dkeye/Rendezvous/internal/app/rendezvous"
	"github.com/dkeye/Rendezvous/internal/domain"
	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func newServer(t *testing.T, limiter *RateLimiter) (*httptest.Server, *rendezvous.Hub) {
	t.Helper()
	hub := rendezvous.NewHub(rendezvous.Config{})
	ctl := NewSignalWSController(hub, limiter, Config{PingPeriod: time.Second})
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)

	r := gin.New()
	r.Use(func(c *gin.Context) {
		c.Set("client_token", "token-user")
		c.Next()
	})
	r.GET("/video/connections", func(c *gin.Context) { ctl.HandleSignal(ctx, c) })
	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)
	return srv, hub
}

func dial(t *testing.T, srv *httptest.Server, query string) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/video/connections?" + query
	ws, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = ws.Close() })
	return ws
}

func readJSON(t *testing.T, ws *websocket.Conn) map[string]any {
	t.Helper()
	require.NoError(t, ws.SetReadDeadline(time.Now().Add(2*time.Second)))
	var v map[string]any
	require.NoError(t, ws.ReadJSON(&v))
	return v
}

func TestHandleSignal_Control(t *testing.T) {
	srv, _ := newServer(t, nil)
	ws := dial(t, srv, "peerID=bob")

	require.NoError(t, ws.WriteJSON(map[string]string{"type": "bogus"}))
	require.NoError(t, ws.WriteJSON(map[string]string{"type": "ping"}))
	assert.Equal(t, "pong", readJSON(t, ws)["type"])

	require.NoError(t, ws.WriteJSON(map[string]string{"type": "whoami"}))
	who := readJSON(t, ws)
	assert.Equal(t, "whoami", who["type"])
	assert.Equal(t, "token-user", who["userID"])
	assert.Equal(t, "bob", who["peerID"])
}

func TestHandleSignal_RejectsBadPair(t *testing.T) {
	srv, _ := newServer(t, nil)
	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/video/connections?userID=a&peerID=a"
	_, resp, err := websocket.DefaultDialer.Dial(url, nil)
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestHandleSignal_RelaysToPeerTopic(t *testing.T) {
	srv, hub := newServer(t, nil)
	alice := dial(t, srv, "userID=alice&peerID=bob")

	require.NoError(t, alice.WriteJSON(map[string]string{"type": "offer", "sdp": "v=0"}))
	assert.Eventually(t, func() bool {
		for _, ti := range hub.Topics() {
			if ti.Name == "bob" && ti.Buffered == 1 {
				return true
			}
		}
		return false
	}, 2*time.Second, 10*time.Millisecond)

	bob := dial(t, srv, "userID=bob&peerID=alice")
	got := readJSON(t, bob)
	assert.Equal(t, "offer", got["type"])
	assert.Equal(t, "v=0", got["sdp"])

	require.NoError(t, bob.WriteJSON(map[string]string{"type": "answer", "sdp": "v=1"}))
	got = readJSON(t, alice)
	assert.Equal(t, "answer", got["type"])
}

func TestHandleSignal_RateLimited(t *testing.T) {
	srv, _ := newServer(t, NewRateLimiter(0.001, 1))
	ws := dial(t, srv, "userID=alice&peerID=bob")

	require.NoError(t, ws.WriteJSON(map[string]string{"type": "candidate"}))
	require.NoError(t, ws.WriteJSON(map[string]string{"type": "candidate"}))
	got := readJSON(t, ws)
	assert.Equal(t, "error", got["type"])
	assert.Equal(t, "rate_limited", got["error"])
}

func TestRateLimiter(t *testing.T) {
	rl := NewRateLimiter(1000, 2)
	assert.True(t, rl.Allow("a"))
	assert.True(t, rl.Allow("a"))
	assert.False(t, rl.Allow("a"))
	assert.True(t, rl.Allow("b"), "limits are per user")

	assert.Eventually(t, func() bool {
		rl.Forget()
		return len(rl.history) == 0
	}, time.Second, 5*time.Millisecond)

	off := NewRateLimiter(0, 0)
	for range 100 {
		require.True(t, off.Allow(domain.PeerID("x")))
	}
}

func TestPair(t *testing.T) {
	c, _ := gin.CreateTestContext(httptest.NewRecorder())
	c.Request = httptest.NewRequest(http.MethodGet, "/?peerID=b", nil)
	_, err := Pair(c)
	assert.ErrorIs(t, err, domain.ErrPeerIDEmpty)

	c.Set("client_token", "tok")
	p, err := Pair(c)
	require.NoError(t, err)
	assert.Equal(t, domain.Pair{Self: "tok", Remote: "b"}, p)
}
