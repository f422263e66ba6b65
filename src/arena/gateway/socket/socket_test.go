package socket

import (
	"sync"
	"testing"
	"time"

	"github.com/devarena/arena/src/arena/entity"
	"github.com/devarena/arena/src/arena/factory"
	"github.com/devarena/arena/src/arena/internal/errors"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
	"go.uber.org/zap"
)

type written struct {
	kind int
	data string
}

type fakeConn struct {
	mu      sync.Mutex
	writes  []written
	closed  bool
	failOn  int
	release chan struct{}
}

func (c *fakeConn) SetWriteDeadline(t time.Time) error { return nil }

func (c *fakeConn) WriteMessage(kind int, data []byte) error {
	if c.release != nil {
		<-c.release
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.writes = append(c.writes, written{kind: kind, data: string(data)})
	if c.failOn > 0 && len(c.writes) == c.failOn {
		return errors.New("broken pipe")
	}
	return nil
}

func (c *fakeConn) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
	return nil
}

func (c *fakeConn) snapshot() ([]written, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]written(nil), c.writes...), c.closed
}

func TestWriterPreservesOrder(t *testing.T) {
	conn := &fakeConn{}
	w := NewWriter(conn, Config{}, zap.NewNop().Sugar())

	require.NoError(t, w.Send(factory.TextFrame("m1")))
	require.NoError(t, w.Ping())
	require.NoError(t, w.Send(entity.Frame{Type: entity.FrameBinary, Data: []byte{0x1}}))
	require.NoError(t, w.Send(factory.TextFrame("m2")))
	require.NoError(t, w.Pong([]byte("p")))
	require.NoError(t, w.Close())

	writes, closed := conn.snapshot()
	require.Len(t, writes, 6)
	assert.Equal(t, written{kind: websocket.TextMessage, data: "m1"}, writes[0])
	assert.Equal(t, websocket.PingMessage, writes[1].kind)
	assert.Equal(t, written{kind: websocket.BinaryMessage, data: "\x01"}, writes[2])
	assert.Equal(t, written{kind: websocket.TextMessage, data: "m2"}, writes[3])
	assert.Equal(t, written{kind: websocket.PongMessage, data: "p"}, writes[4])
	assert.Equal(t, websocket.CloseMessage, writes[5].kind)
	assert.True(t, closed)
}

func TestWriterSendAfterClose(t *testing.T) {
	w := NewWriter(&fakeConn{}, Config{}, zap.NewNop().Sugar())
	require.NoError(t, w.Close())
	require.NoError(t, w.Close())

	assert.ErrorIs(t, w.Send(factory.TextFrame("late")), errors.SenderClosedError)
	assert.ErrorIs(t, w.Ping(), errors.SenderClosedError)
	assert.ErrorIs(t, w.Pong(nil), errors.SenderClosedError)
}

func TestWriterStopsOnWriteError(t *testing.T) {
	conn := &fakeConn{failOn: 1}
	w := NewWriter(conn, Config{}, zap.NewNop().Sugar())

	require.NoError(t, w.Send(factory.TextFrame("m1")))
	select {
	case <-w.Done():
	case <-time.After(5 * time.Second):
		t.Fatal("writer did not stop after a failed write")
	}

	assert.ErrorIs(t, w.Send(factory.TextFrame("m2")), errors.SenderClosedError)
	_, closed := conn.snapshot()
	assert.True(t, closed)
	assert.NoError(t, w.Close())
}

func TestWriterQueueFull(t *testing.T) {
	conn := &fakeConn{release: make(chan struct{})}
	w := NewWriter(conn, Config{QueueSize: 1}, zap.NewNop().Sugar())

	// the first frame is taken by the writer and blocks in WriteMessage, the second fills the queue
	require.NoError(t, w.Send(factory.TextFrame("m1")))
	require.Eventually(t, func() bool { return len(w.queue) == 0 }, 5*time.Second, time.Millisecond)
	require.NoError(t, w.Send(factory.TextFrame("m2")))
	assert.ErrorIs(t, w.Send(factory.TextFrame("m3")), errors.SendQueueFullError)

	close(conn.release)
	require.NoError(t, w.Close())

	writes, _ := conn.snapshot()
	require.Len(t, writes, 3)
	assert.Equal(t, "m1", writes[0].data)
	assert.Equal(t, "m2", writes[1].data)
}

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}
