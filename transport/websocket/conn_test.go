package websocket

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pithecene-io/courier/message"
	"github.com/pithecene-io/courier/runtime"
	"github.com/pithecene-io/courier/types"
)

type received struct {
	typ  int
	data []byte
}

// testServer upgrades every request and records the messages it reads.
type testServer struct {
	*httptest.Server
	mu       sync.Mutex
	messages []received
	headers  http.Header
	conns    chan *websocket.Conn
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	s := &testServer{conns: make(chan *websocket.Conn, 1)}
	upgrader := websocket.Upgrader{}
	s.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s.mu.Lock()
		s.headers = r.Header.Clone()
		s.mu.Unlock()

		ws, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		s.conns <- ws
		for {
			typ, data, err := ws.ReadMessage()
			if err != nil {
				return
			}
			s.mu.Lock()
			s.messages = append(s.messages, received{typ: typ, data: data})
			s.mu.Unlock()
		}
	}))
	t.Cleanup(s.Close)
	return s
}

func (s *testServer) wsURL() string {
	return "ws" + strings.TrimPrefix(s.URL, "http")
}

func (s *testServer) received() []received {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]received(nil), s.messages...)
}

func dialReady(t *testing.T, opts Options) *Conn {
	t.Helper()
	c := Dial(t.Context(), opts)
	t.Cleanup(func() { _ = c.Close() })
	require.Eventually(t, c.Ready, 2*time.Second, 5*time.Millisecond)
	return c
}

func TestConn_SendTextAndBinary(t *testing.T) {
	srv := newTestServer(t)
	c := dialReady(t, Options{URL: srv.wsURL()})

	require.NoError(t, c.Send(t.Context(), message.NewText(`{"id":1}`)))
	require.NoError(t, c.Send(t.Context(), message.NewBinary([]byte{0xca, 0xfe})))

	require.Eventually(t, func() bool { return len(srv.received()) == 2 }, 2*time.Second, 5*time.Millisecond)
	got := srv.received()
	assert.Equal(t, websocket.TextMessage, got[0].typ)
	assert.Equal(t, `{"id":1}`, string(got[0].data))
	assert.Equal(t, websocket.BinaryMessage, got[1].typ)
	assert.Equal(t, []byte{0xca, 0xfe}, got[1].data)
}

func TestConn_HandshakeHeaders(t *testing.T) {
	srv := newTestServer(t)
	dialReady(t, Options{URL: srv.wsURL(), Header: http.Header{"Authorization": {"Bearer t"}}})

	srv.mu.Lock()
	defer srv.mu.Unlock()
	assert.Equal(t, "Bearer t", srv.headers.Get("Authorization"))
}

func TestConn_RejectedHandshakeIsFault(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "nope", http.StatusUnauthorized)
	}))
	defer srv.Close()

	c := Dial(t.Context(), Options{URL: "ws" + strings.TrimPrefix(srv.URL, "http")})
	defer func() { _ = c.Close() }()
	<-c.Connected()

	assert.False(t, c.Ready())
	var dialErr *DialError
	require.ErrorAs(t, c.Err(), &dialErr)
	assert.Equal(t, http.StatusUnauthorized, dialErr.StatusCode)
	assert.Error(t, c.Send(t.Context(), message.NewText("x")))
}

func TestConn_ServerCloseIsFault(t *testing.T) {
	srv := newTestServer(t)
	c := dialReady(t, Options{URL: srv.wsURL()})

	serverSide := <-srv.conns
	require.NoError(t, serverSide.Close())

	require.Eventually(t, func() bool { return c.Err() != nil }, 2*time.Second, 5*time.Millisecond)
	assert.False(t, c.Ready())
	assert.Contains(t, c.Err().Error(), "connection lost")
}

func TestConn_OnMessage(t *testing.T) {
	srv := newTestServer(t)
	got := make(chan message.Message, 1)
	dialReady(t, Options{URL: srv.wsURL(), OnMessage: func(m message.Message) { got <- m }})

	serverSide := <-srv.conns
	require.NoError(t, serverSide.WriteMessage(websocket.TextMessage, []byte("ack")))

	select {
	case m := <-got:
		assert.Equal(t, "ack", string(m.Payload()))
		assert.Equal(t, message.FrameText, m.Frame())
	case <-time.After(2 * time.Second):
		t.Fatal("server message not delivered")
	}
}

func TestConn_SendCanceledContext(t *testing.T) {
	srv := newTestServer(t)
	c := dialReady(t, Options{URL: srv.wsURL()})

	ctx, cancel := context.WithCancel(t.Context())
	cancel()
	assert.ErrorIs(t, c.Send(ctx, message.NewText("x")), context.Canceled)
	assert.True(t, c.Ready(), "an abandoned write does not fault the connection")
}

func TestConn_CancelInFlightWriteFaultsConnection(t *testing.T) {
	// The server never reads, so a large frame blocks once socket buffers fill.
	release := make(chan struct{})
	upgrader := websocket.Upgrader{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ws, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer func() { _ = ws.Close() }()
		<-release
	}))
	defer srv.Close()
	defer close(release)

	c := dialReady(t, Options{URL: "ws" + strings.TrimPrefix(srv.URL, "http")})

	ctx, cancel := context.WithCancel(t.Context())
	time.AfterFunc(50*time.Millisecond, cancel)

	errCh := make(chan error, 1)
	go func() { errCh <- c.Send(ctx, message.NewBinary(make([]byte, 64<<20))) }()

	select {
	case err := <-errCh:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(5 * time.Second):
		t.Fatal("canceled write did not return")
	}
	assert.False(t, c.Ready())
	require.Error(t, c.Err())
	assert.Contains(t, c.Err().Error(), "connection lost")
}

func TestConn_Close(t *testing.T) {
	srv := newTestServer(t)
	c := dialReady(t, Options{URL: srv.wsURL()})

	require.NoError(t, c.Close())
	assert.False(t, c.Ready())
	assert.ErrorIs(t, c.Err(), ErrClosed)
	assert.ErrorIs(t, c.Send(t.Context(), message.NewText("x")), ErrClosed)
	assert.NoError(t, c.Close())
}

func TestConn_CloseBeforeHandshake(t *testing.T) {
	c := Dial(t.Context(), Options{URL: "ws://127.0.0.1:1/unreachable", HandshakeTimeout: time.Second})
	require.NoError(t, c.Close())
	assert.ErrorIs(t, c.Err(), ErrClosed)
}

func TestConn_PublishThroughController(t *testing.T) {
	srv := newTestServer(t)
	c := Dial(t.Context(), Options{URL: srv.wsURL()})
	defer func() { _ = c.Close() }()

	controller := runtime.NewController(runtime.ControllerConfig{})
	result := controller.Run(t.Context(), runtime.Invocation{
		Step:          "ws",
		Kind:          message.KindLong,
		Message:       "1",
		TimeoutMillis: 2000,
		Connections:   c,
	})

	require.Equal(t, types.StepStatusOK, result.Status(), result.Outcome())
	require.Eventually(t, func() bool { return len(srv.received()) == 1 }, 2*time.Second, 5*time.Millisecond)
	assert.Equal(t, []byte{0, 0, 0, 0, 0, 0, 0, 1}, srv.received()[0].data)
}
