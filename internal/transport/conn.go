package transport

import (
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 64 * 1024
	sendBuffer     = 64
)

// Conn wraps a websocket connection with a buffered outbound queue so that a
// slow client never blocks the goroutine emitting to it. The send channel is
// never closed: teardown is signalled through done, so a broadcast racing a
// disconnect lands in a buffer nobody drains instead of panicking.
type Conn struct {
	id        string
	ws        *websocket.Conn
	send      chan []byte
	done      chan struct{}
	closeOnce sync.Once
	hub       *Hub
}

// ID returns the connection's unique identifier.
func (c *Conn) ID() string { return c.id }

// signalClose tells the write pump to flush the queue and close the socket.
// Safe to call from any goroutine, any number of times.
func (c *Conn) signalClose() {
	c.closeOnce.Do(func() { close(c.done) })
}

// readPump reads envelopes off the socket and dispatches them to registered
// event handlers. Handlers run on this goroutine, so events from one
// connection are processed in arrival order.
func (c *Conn) readPump() {
	defer c.hub.drop(c)

	c.ws.SetReadLimit(maxMessageSize)
	c.ws.SetReadDeadline(time.Now().Add(pongWait))
	c.ws.SetPongHandler(func(string) error {
		c.ws.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, raw, err := c.ws.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				c.hub.log.Warn("websocket read error", zap.String("connId", c.id), zap.Error(err))
			}
			return
		}
		c.hub.dispatch(c.id, raw)
	}
}

// writePump drains the send queue onto the socket and keeps the connection
// alive with periodic pings.
func (c *Conn) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.ws.Close()
	}()

	for {
		select {
		case msg := <-c.send:
			c.ws.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.ws.WriteMessage(websocket.TextMessage, msg); err != nil {
				return
			}
		case <-c.done:
			// Flush whatever was queued before the close was signalled,
			// then say goodbye.
			c.ws.SetWriteDeadline(time.Now().Add(writeWait))
			for {
				select {
				case msg := <-c.send:
					if err := c.ws.WriteMessage(websocket.TextMessage, msg); err != nil {
						return
					}
				default:
					c.ws.WriteMessage(websocket.CloseMessage, []byte{})
					return
				}
			}
		case <-ticker.C:
			c.ws.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.ws.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
