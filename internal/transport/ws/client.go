package ws

import (
	"encoding/json"
	"fmt"
	"net/url"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/coedit/coedit/internal/protocol"
)

// Conn is the client side of the WebSocket transport. Inbound messages are
// delivered to the handler passed to Dial; outbound messages go to the
// server peer.
type Conn struct {
	conn    *websocket.Conn
	handler func(protocol.Message)

	writeMu sync.Mutex
	once    sync.Once
	done    chan struct{}
}

// Dial connects to a coedit server at rawURL (ws:// or wss://) under the
// given user name. The handler is invoked from a single reader goroutine,
// so it observes messages in connection order.
func Dial(rawURL, user string, handler func(protocol.Message)) (*Conn, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, fmt.Errorf("parsing server url: %w", err)
	}
	q := u.Query()
	q.Set("user", user)
	u.RawQuery = q.Encode()

	wsConn, _, err := websocket.DefaultDialer.Dial(u.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("dialing %s: %w", u.String(), err)
	}

	c := &Conn{
		conn:    wsConn,
		handler: handler,
		done:    make(chan struct{}),
	}
	go c.readLoop()
	return c, nil
}

// Send delivers msg to the server.
func (c *Conn) Send(msg protocol.Message) error {
	data, err := json.Marshal(msg)
	if err != nil {
		return err
	}

	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	c.conn.SetWriteDeadline(time.Now().Add(writeWait))
	return c.conn.WriteMessage(websocket.TextMessage, data)
}

// Close shuts the connection down.
func (c *Conn) Close() error {
	var err error
	c.once.Do(func() {
		close(c.done)
		c.writeMu.Lock()
		c.conn.SetWriteDeadline(time.Now().Add(writeWait))
		_ = c.conn.WriteMessage(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
		c.writeMu.Unlock()
		err = c.conn.Close()
	})
	return err
}

// Done is closed when the connection has terminated.
func (c *Conn) Done() <-chan struct{} {
	return c.done
}

func (c *Conn) readLoop() {
	defer c.Close()

	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			return
		}

		var msg protocol.Message
		if err := json.Unmarshal(data, &msg); err != nil {
			continue
		}
		if c.handler != nil {
			c.handler(msg)
		}
	}
}
