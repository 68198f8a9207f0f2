package feed

import (
	"bufio"
	"context"
	"encoding/json"
	"net"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"mangaguide/pkg/models"
)

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatal("condition not met in time")
}

func TestNewResolutionEvent(t *testing.T) {
	res := models.ResolutionResult{
		ContinueFromChapter: models.IntPtr(64),
		ContinueFromVolume:  models.IntPtr(8),
		Confidence:          models.ConfidenceHigh,
		Verified:            true,
		Method:              models.MethodExactMatch,
	}
	ev := NewResolutionEvent("", models.ResolutionRequest{AnimeTitle: "JJK", EpisodeNumber: 24}, res)
	if ev.ID == "" || ev.Type != EventResolution || ev.Query != "JJK" || *ev.Chapter != 64 {
		t.Fatalf("event = %+v", ev)
	}
	if got := NewResolutionEvent("req-1", models.ResolutionRequest{}, res).ID; got != "req-1" {
		t.Fatalf("id = %q", got)
	}
}

func TestWebSocketListenerReceivesEvents(t *testing.T) {
	gin.SetMode(gin.TestMode)
	hub := NewHub(nil)
	r := gin.New()
	r.GET("/ws", WSHandler(hub))
	srv := httptest.NewServer(r)
	defer srv.Close()

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws"
	ws, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer ws.Close()

	_ = ws.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, welcome, err := ws.ReadMessage()
	if err != nil || !strings.Contains(string(welcome), `"welcome"`) {
		t.Fatalf("welcome = %s, %v", welcome, err)
	}
	waitFor(t, func() bool { return hub.Stats().WSClients == 1 })

	hub.Publish(ResolutionEvent{Type: EventResolution, ID: "abc", Method: models.MethodRatioExtrapolation})
	_, msg, err := ws.ReadMessage()
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	var ev ResolutionEvent
	if err := json.Unmarshal(msg, &ev); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if ev.ID != "abc" || ev.Method != models.MethodRatioExtrapolation {
		t.Fatalf("event = %+v", ev)
	}

	_ = ws.Close()
	waitFor(t, func() bool { return hub.Stats().WSClients == 0 })
}

func TestTCPListenerReceivesEvents(t *testing.T) {
	hub := NewHub(nil)
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- NewServer(ln.Addr().String(), hub).Serve(ctx, ln) }()

	conn, err := net.Dial("tcp", ln.Addr().String())
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()
	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	rd := bufio.NewReader(conn)

	line, err := rd.ReadString('\n')
	if err != nil || !strings.Contains(line, `"transport":"tcp"`) {
		t.Fatalf("welcome = %q, %v", line, err)
	}
	waitFor(t, func() bool { return hub.Stats().TCPClients == 1 })

	hub.Publish(map[string]string{"type": EventResolution, "id": "x1"})
	line, err = rd.ReadString('\n')
	if err != nil || !strings.Contains(line, `"x1"`) {
		t.Fatalf("event line = %q, %v", line, err)
	}

	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("Serve: %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("server did not stop")
	}
}
