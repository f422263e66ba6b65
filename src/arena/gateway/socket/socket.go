// Package socket owns the write side of a websocket connection. Every frame and control message
// goes through one FIFO queue drained by a single writer goroutine.
package socket

import (
	"sync"
	"time"

	"github.com/devarena/arena/src/arena/entity"
	"github.com/devarena/arena/src/arena/internal/errors"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

const (
	_defaultQueueSize    = 256
	_defaultWriteTimeout = 10 * time.Second
)

// Conn is the part of *websocket.Conn used by the writer.
type Conn interface {
	SetWriteDeadline(t time.Time) error
	WriteMessage(messageType int, data []byte) error
	Close() error
}

// Config sizes the outbound queue and bounds each write.
type Config struct {
	QueueSize    int           `yaml:"sendQueueSize"`
	WriteTimeout time.Duration `yaml:"writeTimeout"`
}

type outbound struct {
	kind int
	data []byte
}

// Writer serializes writes to one connection.
type Writer struct {
	conn         Conn
	queue        chan outbound
	closing      chan struct{}
	done         chan struct{}
	closeOnce    sync.Once
	writeTimeout time.Duration
	logger       *zap.SugaredLogger
}

// NewWriter starts the writer goroutine for conn. The writer owns conn from now on and closes it on exit.
func NewWriter(conn Conn, cfg Config, logger *zap.SugaredLogger) *Writer {
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = _defaultQueueSize
	}
	if cfg.WriteTimeout <= 0 {
		cfg.WriteTimeout = _defaultWriteTimeout
	}

	w := &Writer{
		conn:         conn,
		queue:        make(chan outbound, cfg.QueueSize),
		closing:      make(chan struct{}),
		done:         make(chan struct{}),
		writeTimeout: cfg.WriteTimeout,
		logger:       logger,
	}
	go w.writePump()
	return w
}

// Send enqueues frame without blocking.
func (w *Writer) Send(frame entity.Frame) error {
	kind := websocket.TextMessage
	if frame.Type == entity.FrameBinary {
		kind = websocket.BinaryMessage
	}
	return w.enqueue(outbound{kind: kind, data: frame.Data})
}

// Ping enqueues a ping control message behind any pending frames.
func (w *Writer) Ping() error {
	return w.enqueue(outbound{kind: websocket.PingMessage})
}

// Pong enqueues a pong control message answering a client ping.
func (w *Writer) Pong(data []byte) error {
	return w.enqueue(outbound{kind: websocket.PongMessage, data: data})
}

// Close flushes the queue, sends a close frame and releases the transport. It waits for the
// writer goroutine to exit and is safe to call more than once.
func (w *Writer) Close() error {
	w.closeOnce.Do(func() {
		close(w.closing)
	})
	<-w.done
	return nil
}

// Done is closed once the writer has stopped, either after Close or after a failed write.
func (w *Writer) Done() <-chan struct{} {
	return w.done
}

func (w *Writer) enqueue(out outbound) error {
	select {
	case <-w.closing:
		return errors.SenderClosedError
	case <-w.done:
		return errors.SenderClosedError
	default:
	}

	select {
	case w.queue <- out:
		return nil
	default:
		return errors.SendQueueFullError
	}
}

func (w *Writer) write(out outbound) error {
	w.conn.SetWriteDeadline(time.Now().Add(w.writeTimeout))
	return w.conn.WriteMessage(out.kind, out.data)
}

func (w *Writer) writePump() {
	defer func() {
		w.conn.Close()
		close(w.done)
	}()

	for {
		select {
		case <-w.closing:
			w.flush()
			w.conn.SetWriteDeadline(time.Now().Add(w.writeTimeout))
			w.conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
			return

		case out := <-w.queue:
			if err := w.write(out); err != nil {
				w.logger.Debugw("websocket write failed", zap.Error(err))
				return
			}
		}
	}
}

// flush writes whatever is already queued, stopping at the first failure.
func (w *Writer) flush() {
	for {
		select {
		case out := <-w.queue:
			if err := w.write(out); err != nil {
				return
			}
		default:
			return
		}
	}
}
