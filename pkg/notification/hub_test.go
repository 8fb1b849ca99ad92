package notification

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHubPush(t *testing.T) {
	hub := NewHub()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hub.ServeWS(w, withUser(r, "7"))
	}))
	defer srv.Close()

	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	first, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.Nil(t, err)
	defer first.Close()
	second, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.Nil(t, err)

	require.Eventually(t, func() bool { return hub.Connections("7") == 2 }, time.Second, 10*time.Millisecond)

	hub.Push("7", Event{Type: "notification"})
	hub.Push("8", Event{Type: "notification"})

	for _, conn := range []*websocket.Conn{first, second} {
		conn.SetReadDeadline(time.Now().Add(time.Second))
		var ev Event
		require.Nil(t, conn.ReadJSON(&ev))
		assert.Equal(t, "notification", ev.Type)
	}

	second.Close()
	assert.Eventually(t, func() bool { return hub.Connections("7") == 1 }, time.Second, 10*time.Millisecond)
}

func TestServeWSRequiresUser(t *testing.T) {
	w := httptest.NewRecorder()
	NewHub().ServeWS(w, httptest.NewRequest("GET", "/api/ws", nil))
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestHubPushSkipsStalledClient(t *testing.T) {
	hub := NewHub()
	stalled := make(chan *client, 1)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/stalled" {
			conn, err := upgrader.Upgrade(w, r, nil)
			if err != nil {
				return
			}
			// no writer drains an unbuffered queue
			c := &client{userId: "7", conn: conn, send: make(chan interface{})}
			hub.register(c)
			stalled <- c
			return
		}
		hub.ServeWS(w, withUser(r, "7"))
	}))
	defer srv.Close()

	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	reader, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.Nil(t, err)
	defer reader.Close()
	slow, _, err := websocket.DefaultDialer.Dial(url+"/stalled", nil)
	require.Nil(t, err)
	defer slow.Close()
	c := <-stalled
	defer c.conn.Close()

	require.Eventually(t, func() bool { return hub.Connections("7") == 2 }, time.Second, 10*time.Millisecond)

	done := make(chan struct{})
	go func() {
		hub.Push("7", Event{Type: "notification"})
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("push blocked on a stalled connection")
	}

	assert.Equal(t, 1, hub.Connections("7"))
	_, open := <-c.send
	assert.False(t, open)

	reader.SetReadDeadline(time.Now().Add(time.Second))
	var ev Event
	require.Nil(t, reader.ReadJSON(&ev))
	assert.Equal(t, "notification", ev.Type)
}
