package websocket

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	gorillawebsocket "github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kinetic/kinetic/internal/platform/auth"
)

func newClient(topic string) *Client {
	return &Client{ID: uuid.NewString(), Topic: topic, Send: make(chan []byte, 4)}
}

func TestHub_RegisterUnregister(t *testing.T) {
	h := NewHub(zerolog.Nop())
	c := newClient("physio:a")
	h.Register(c)
	assert.Equal(t, 1, h.ClientCount())
	assert.Equal(t, 1, h.TopicCount("physio:a"))

	h.Unregister(c)
	h.Unregister(c)
	assert.Equal(t, 0, h.ClientCount())
	_, open := <-c.Send
	assert.False(t, open, "send channel should be closed")
}

func TestHub_BroadcastOnlyReachesTopic(t *testing.T) {
	h := NewHub(zerolog.Nop())
	mine := newClient("physio:a")
	other := newClient("physio:b")
	h.Register(mine)
	h.Register(other)

	h.Broadcast("physio:a", Event{Type: "handoff.released"})

	require.Len(t, mine.Send, 1)
	assert.Len(t, other.Send, 0)

	var ev Event
	require.NoError(t, json.Unmarshal(<-mine.Send, &ev))
	assert.Equal(t, "handoff.released", ev.Type)
	assert.Equal(t, "physio:a", ev.Topic)
}

func TestHub_FullBufferDropsEvent(t *testing.T) {
	h := NewHub(zerolog.Nop())
	c := &Client{ID: "slow", Topic: "physio:a", Send: make(chan []byte, 1)}
	h.Register(c)

	h.Broadcast("physio:a", Event{Type: "one"})
	h.Broadcast("physio:a", Event{Type: "two"})

	assert.Len(t, c.Send, 1)
}

func TestHub_NotifyPhysiosDeduplicates(t *testing.T) {
	h := NewHub(zerolog.Nop())
	fixed := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	h.now = func() time.Time { return fixed }

	origin, dest := uuid.New(), uuid.New()
	oc := newClient(PhysioTopic(origin))
	dc := newClient(PhysioTopic(dest))
	h.Register(oc)
	h.Register(dc)

	h.NotifyPhysios(context.Background(), []uuid.UUID{origin, dest, origin}, "handoff.review-pending",
		map[string]string{"status": "review-pending"})

	assert.Len(t, oc.Send, 1)
	assert.Len(t, dc.Send, 1)

	var ev Event
	require.NoError(t, json.Unmarshal(<-dc.Send, &ev))
	assert.Equal(t, fixed, ev.Timestamp)
	assert.JSONEq(t, `{"status":"review-pending"}`, string(ev.Data))
}

func TestHub_NotifyWithoutClientsIsNoop(t *testing.T) {
	h := NewHub(zerolog.Nop())
	h.NotifyPhysios(context.Background(), []uuid.UUID{uuid.New()}, "handoff.declined", nil)
	assert.Equal(t, 0, h.ClientCount())
}

func TestHandler_CheckOrigin(t *testing.T) {
	h := NewHandler(NewHub(zerolog.Nop()), []string{"https://app.example"})
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	assert.True(t, h.upgrader.CheckOrigin(req))

	req.Header.Set("Origin", "https://app.example")
	assert.True(t, h.upgrader.CheckOrigin(req))

	req.Header.Set("Origin", "https://evil.example")
	assert.False(t, h.upgrader.CheckOrigin(req))

	open := NewHandler(NewHub(zerolog.Nop()), []string{"*"})
	assert.True(t, open.upgrader.CheckOrigin(req))
}

func serve(t *testing.T, hub *Hub, actor string, roles ...string) *httptest.Server {
	t.Helper()
	e := echo.New()
	api := e.Group("/api/v1", func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			c.SetRequest(c.Request().WithContext(auth.WithActor(c.Request().Context(), actor, roles)))
			return next(c)
		}
	})
	NewHandler(hub, nil).RegisterRoutes(api)
	srv := httptest.NewServer(e)
	t.Cleanup(srv.Close)
	return srv
}

func wsURL(srv *httptest.Server, physioID uuid.UUID) string {
	return "ws" + strings.TrimPrefix(srv.URL, "http") + "/api/v1/physios/" + physioID.String() + "/events"
}

func TestHandler_StreamsOwnEvents(t *testing.T) {
	hub := NewHub(zerolog.Nop())
	physio := uuid.New()
	srv := serve(t, hub, physio.String(), auth.RolePhysio)

	conn, _, err := gorillawebsocket.DefaultDialer.Dial(wsURL(srv, physio), nil)
	require.NoError(t, err)
	defer conn.Close()

	require.Eventually(t, func() bool {
		return hub.TopicCount(PhysioTopic(physio)) == 1
	}, time.Second, 10*time.Millisecond)

	hub.NotifyPhysios(context.Background(), []uuid.UUID{physio}, "handoff.released", map[string]string{"status": "released"})

	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, msg, err := conn.ReadMessage()
	require.NoError(t, err)

	var ev Event
	require.NoError(t, json.Unmarshal(msg, &ev))
	assert.Equal(t, "handoff.released", ev.Type)
	assert.Equal(t, PhysioTopic(physio), ev.Topic)

	conn.Close()
	assert.Eventually(t, func() bool { return hub.ClientCount() == 0 }, time.Second, 10*time.Millisecond)
}

func TestHandler_RejectsOtherPhysiosFeed(t *testing.T) {
	hub := NewHub(zerolog.Nop())
	srv := serve(t, hub, uuid.NewString(), auth.RolePhysio)

	_, resp, err := gorillawebsocket.DefaultDialer.Dial(wsURL(srv, uuid.New()), nil)
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)
}

func TestHandler_RejectsPatients(t *testing.T) {
	hub := NewHub(zerolog.Nop())
	id := uuid.New()
	srv := serve(t, hub, id.String(), auth.RolePatient)

	_, resp, err := gorillawebsocket.DefaultDialer.Dial(wsURL(srv, id), nil)
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)
}
