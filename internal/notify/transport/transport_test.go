package transport

import (
	"bufio"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"nhooyr.io/websocket"
	"nhooyr.io/websocket/wsjson"

	"showcase/internal/notify/bus"
	"showcase/internal/profile/models"
)

func newServer(t *testing.T, hub *bus.Hub, heartbeat time.Duration) *httptest.Server {
	t.Helper()
	r := chi.NewRouter()
	New(hub, WithHeartbeat(heartbeat)).Register(r)
	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)
	return srv
}

type sseReader struct {
	scanner *bufio.Scanner
}

func (s *sseReader) next(t *testing.T) map[string]any {
	t.Helper()
	for s.scanner.Scan() {
		line := s.scanner.Text()
		if !strings.HasPrefix(line, "data: ") {
			continue
		}
		var frame map[string]any
		require.NoError(t, json.Unmarshal([]byte(strings.TrimPrefix(line, "data: ")), &frame))
		return frame
	}
	t.Fatalf("stream ended: %v", s.scanner.Err())
	return nil
}

func openSSE(t *testing.T, ctx context.Context, url string) (*sseReader, *http.Response) {
	t.Helper()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url+"/events", nil)
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	t.Cleanup(func() { _ = resp.Body.Close() })
	return &sseReader{scanner: bufio.NewScanner(resp.Body)}, resp
}

func TestSSE_ConnectedEventAndHeartbeat(t *testing.T) {
	hub := bus.NewHub()
	srv := newServer(t, hub, 30*time.Millisecond)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	stream, resp := openSSE(t, ctx, srv.URL)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "text/event-stream", resp.Header.Get("Content-Type"))

	assert.Equal(t, FrameConnected, stream.next(t)["type"])
	require.Eventually(t, func() bool { return hub.Len() == 1 }, time.Second, time.Millisecond)

	hub.Publish(models.ChangeEvent{SubjectID: "A123", UpdateType: models.UpdateProfile, Timestamp: time.Now()})

	var sawEvent, sawHeartbeat bool
	for i := 0; i < 10 && !(sawEvent && sawHeartbeat); i++ {
		frame := stream.next(t)
		switch {
		case frame["type"] == FrameHeartbeat:
			sawHeartbeat = true
		case frame["openalexId"] == "A123":
			assert.Equal(t, "profile", frame["updateType"])
			assert.NotEmpty(t, frame["timestamp"])
			sawEvent = true
		}
	}
	assert.True(t, sawEvent)
	assert.True(t, sawHeartbeat)
}

func TestSSE_DisconnectUnsubscribes(t *testing.T) {
	hub := bus.NewHub()
	srv := newServer(t, hub, time.Hour)
	ctx, cancel := context.WithCancel(context.Background())

	stream, _ := openSSE(t, ctx, srv.URL)
	stream.next(t)
	require.Eventually(t, func() bool { return hub.Len() == 1 }, time.Second, time.Millisecond)

	cancel()
	assert.Eventually(t, func() bool { return hub.Len() == 0 }, 2*time.Second, 5*time.Millisecond)
}

func TestWebSocket_Stream(t *testing.T) {
	hub := bus.NewHub()
	srv := newServer(t, hub, time.Hour)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	conn, _, err := websocket.Dial(ctx, "ws"+strings.TrimPrefix(srv.URL, "http")+"/events/ws", nil)
	require.NoError(t, err)
	defer conn.CloseNow()

	var frame map[string]any
	require.NoError(t, wsjson.Read(ctx, conn, &frame))
	assert.Equal(t, FrameConnected, frame["type"])
	require.Eventually(t, func() bool { return hub.Len() == 1 }, time.Second, time.Millisecond)

	hub.Publish(models.ChangeEvent{SubjectID: "A5", UpdateType: models.UpdateSync, Timestamp: time.Now()})
	var event models.ChangeEvent
	require.NoError(t, wsjson.Read(ctx, conn, &event))
	assert.Equal(t, "A5", event.SubjectID.String())
	assert.Equal(t, models.UpdateSync, event.UpdateType)

	require.NoError(t, conn.Close(websocket.StatusNormalClosure, "bye"))
	assert.Eventually(t, func() bool { return hub.Len() == 0 }, 2*time.Second, 5*time.Millisecond)
}

func TestWebSocket_HubCloseEndsStream(t *testing.T) {
	hub := bus.NewHub()
	srv := newServer(t, hub, time.Hour)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	conn, _, err := websocket.Dial(ctx, "ws"+strings.TrimPrefix(srv.URL, "http")+"/events/ws", nil)
	require.NoError(t, err)
	defer conn.CloseNow()

	var frame map[string]any
	require.NoError(t, wsjson.Read(ctx, conn, &frame))
	require.Eventually(t, func() bool { return hub.Len() == 1 }, time.Second, time.Millisecond)

	hub.Close()
	_, _, err = conn.Read(ctx)
	require.Error(t, err)
	assert.Equal(t, websocket.StatusGoingAway, websocket.CloseStatus(err))
}
