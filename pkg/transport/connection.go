package transport

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/coder/websocket"
	"github.com/google/uuid"
)

// MessageHandler is the callback executed when a message is received.
type MessageHandler func(ctx context.Context, connID uuid.UUID, msg []byte)

// OnCloseHandler is the callback executed exactly once when the connection
// terminates, regardless of the cause.
type OnCloseHandler func(connID uuid.UUID, err error)

type ConnectionConfig struct {
	ReadTimeout time.Duration
	SendBuffer  int
}

// Connection represents a single, thread-safe WebSocket connection.
type Connection struct {
	id     uuid.UUID
	conn   *websocket.Conn
	config ConnectionConfig
	send   chan []byte

	onMessage MessageHandler
	onClose   OnCloseHandler
	onDrop    func()

	done      chan struct{}
	wg        *sync.WaitGroup
	ctx       context.Context
	cancel    context.CancelFunc
	closeOnce sync.Once

	logger *slog.Logger
}

// NewConnection wraps an accepted WebSocket in a pump pair. The caller owns
// the connection ID so transport and session state share one handle. The
// WaitGroup is incremented here and released by Close, so the pairing holds
// even when the connection is closed before Run starts the pumps.
func NewConnection(parentCtx context.Context, wg *sync.WaitGroup, id uuid.UUID, conn *websocket.Conn, config ConnectionConfig, logger *slog.Logger) *Connection {
	connCtx, cancel := context.WithCancel(parentCtx)

	if config.SendBuffer <= 0 {
		config.SendBuffer = 256
	}
	wg.Add(1)
	return &Connection{
		id:     id,
		conn:   conn,
		logger: logger.With(slog.String("connID", id.String())),
		config: config,
		send:   make(chan []byte, config.SendBuffer),
		done:   make(chan struct{}),
		ctx:    connCtx,
		cancel: cancel,
		wg:     wg,
	}
}

func (c *Connection) Run() {
	go c.readPump()
	go c.writePump()

	c.logger.Debug("connection established")
}

// readPump pumps messages from the WebSocket connection to the message handler.
func (c *Connection) readPump() {
	var readErr error
	defer func() {
		c.Close(readErr)
	}()

	for {
		readCtx, cancelRead := context.WithTimeout(c.ctx, c.config.ReadTimeout)
		typ, r, err := c.conn.Reader(readCtx)
		if err != nil {
			cancelRead()
			readErr = err
			return
		}
		// Only text and binary frames carry events.
		if typ != websocket.MessageText && typ != websocket.MessageBinary {
			cancelRead()
			continue
		}
		message, err := io.ReadAll(r)
		cancelRead()
		if err != nil {
			readErr = err
			return
		}
		if c.onMessage != nil {
			c.onMessage(c.ctx, c.id, message)
		}
	}
}

// writePump pumps messages from the send channel to the WebSocket connection.
func (c *Connection) writePump() {
	var writeErr error
	defer func() {
		c.Close(writeErr)
	}()

	for {
		select {
		case message := <-c.send:
			if err := c.conn.Write(c.ctx, websocket.MessageText, message); err != nil {
				writeErr = err
				return
			}
		case <-c.ctx.Done():
			c.conn.Close(websocket.StatusNormalClosure, "server closing")
			return
		}
	}
}

// Send queues a message for delivery. It never blocks: when the recipient's
// buffer is full the message is dropped, so one slow client cannot stall a
// room-wide fan-out.
func (c *Connection) Send(message []byte) {
	select {
	case c.send <- message:
	case <-c.ctx.Done():
	default:
		c.logger.Warn("send buffer full, dropping message")
		if c.onDrop != nil {
			c.onDrop()
		}
	}
}

// Close gracefully shuts down the connection and its resources. Safe to call
// multiple times; only the first call runs the close handler.
func (c *Connection) Close(err error) {
	c.closeOnce.Do(func() {
		c.logger.Debug("transport connection closing", slog.Any("reason", err))

		c.cancel() // signal goroutines to stop
		c.conn.Close(websocket.StatusNormalClosure, "")
		if c.onClose != nil {
			c.onClose(c.id, err)
		}
		c.wg.Done()
		close(c.done)
	})
}

// Done returns a channel that is closed when the connection is fully terminated.
func (c *Connection) Done() <-chan struct{} {
	return c.done
}

// ID returns the unique identifier of the connection.
func (c *Connection) ID() uuid.UUID {
	return c.id
}

func (c *Connection) SetOnMessageHandler(handler MessageHandler) {
	c.onMessage = handler
}

func (c *Connection) SetOnCloseHandler(handler OnCloseHandler) {
	c.onClose = handler
}

// SetOnDropHandler registers a callback invoked whenever an outbound message
// is discarded because the send buffer is full.
func (c *Connection) SetOnDropHandler(fn func()) {
	c.onDrop = fn
}
