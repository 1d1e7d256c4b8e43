package server

import (
	"errors"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func dialTestSocket(t *testing.T, provider *stubProvider) (*websocket.Conn, func()) {
	t.Helper()

	srv, _ := newTestServer(t, provider)
	httpServer := httptest.NewServer(srv.Handler())

	wsURL := "ws" + strings.TrimPrefix(httpServer.URL, "http") + "/ws/chat/socket-session"
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err)

	return conn, func() {
		conn.Close()
		httpServer.Close()
	}
}

func readFrame(t *testing.T, conn *websocket.Conn) wsFrame {
	t.Helper()

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	var frame wsFrame
	require.NoError(t, conn.ReadJSON(&frame))
	return frame
}

func TestWebSocket_TypingChunksComplete(t *testing.T) {
	provider := &stubProvider{streamChunks: []string{"Hel", "lo ", "there"}}
	conn, teardown := dialTestSocket(t, provider)
	defer teardown()

	require.NoError(t, conn.WriteJSON(wsInbound{Message: "hi"}))

	frame := readFrame(t, conn)
	assert.Equal(t, "typing", frame.Type)

	var chunks []string
	for {
		frame = readFrame(t, conn)
		if frame.Type == "chunk" {
			chunks = append(chunks, frame.Chunk)
			continue
		}
		break
	}

	assert.Equal(t, []string{"Hel", "lo ", "there"}, chunks)
	assert.Equal(t, "complete", frame.Type)
	assert.Equal(t, "Hello there", frame.FullResponse)
	assert.Equal(t, "socket-session", frame.SessionID)
}

func TestWebSocket_MultipleExchangesOnOneConnection(t *testing.T) {
	provider := &stubProvider{streamChunks: []string{"ok"}}
	conn, teardown := dialTestSocket(t, provider)
	defer teardown()

	for i := 0; i < 2; i++ {
		require.NoError(t, conn.WriteJSON(wsInbound{Message: "ping"}))

		assert.Equal(t, "typing", readFrame(t, conn).Type)
		assert.Equal(t, "chunk", readFrame(t, conn).Type)
		assert.Equal(t, "complete", readFrame(t, conn).Type)
	}
}

func TestWebSocket_StreamErrorFrame(t *testing.T) {
	provider := &stubProvider{
		streamChunks: []string{"partial"},
		streamErr:    errors.New("upstream reset"),
	}
	conn, teardown := dialTestSocket(t, provider)
	defer teardown()

	require.NoError(t, conn.WriteJSON(wsInbound{Message: "hi"}))

	assert.Equal(t, "typing", readFrame(t, conn).Type)
	assert.Equal(t, "partial", readFrame(t, conn).Chunk)
	assert.NotEmpty(t, readFrame(t, conn).Error)
}

func TestWebSocket_EmptyMessageRejected(t *testing.T) {
	conn, teardown := dialTestSocket(t, &stubProvider{})
	defer teardown()

	require.NoError(t, conn.WriteJSON(wsInbound{}))
	assert.NotEmpty(t, readFrame(t, conn).Error)
}
