package network

import (
	"context"
	"fmt"
	"sync"

	"github.com/cbodonnell/evervoid/pkg/log"
	"github.com/cbodonnell/evervoid/pkg/messages"
	"github.com/gorilla/websocket"
)

// WSClient is a websocket session with the server. Writes are serialized;
// gorilla connections allow one concurrent writer.
type WSClient struct {
	serverAddr string
	binary     bool
	conn       *websocket.Conn
	writeLock  sync.Mutex
	sequence   uint32
}

// NewWSClient creates a client for serverAddr. With binary set messages
// travel as compressed frames, otherwise as Value text.
func NewWSClient(serverAddr string, binary bool) *WSClient {
	return &WSClient{
		serverAddr: serverAddr,
		binary:     binary,
	}
}

// Connect establishes a connection to the WebSocket server.
func (c *WSClient) Connect(ctx context.Context) error {
	log.Info("Connecting to WebSocket server at %s", c.serverAddr)
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, c.serverAddr, nil)
	if err != nil {
		return fmt.Errorf("failed to connect to server: %v", err)
	}
	conn.SetReadLimit(messages.MessageBufferSize)
	c.conn = conn
	return nil
}

// HandleMessages reads messages until the connection ends and passes each to
// handle in arrival order. Malformed messages are logged and skipped.
func (c *WSClient) HandleMessages(ctx context.Context, handle func(*messages.Message)) error {
	defer c.conn.Close()
	go func() {
		<-ctx.Done()
		c.conn.Close()
	}()

	for {
		typ, b, err := c.conn.ReadMessage()
		if err != nil {
			if ctx.Err() != nil {
				return &ErrConnectionClosedByClient{}
			}
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				log.Error("Error reading WebSocket message from %s: %v", c.serverAddr, err)
			}
			log.Trace("Connection closed for %s", c.serverAddr)
			return &ErrConnectionClosedByServer{}
		}

		msg, err := decode(typ, b)
		if err != nil {
			log.Warn("Dropped malformed message from server: %v", err)
			continue
		}
		log.Trace("Received message from WebSocket server of type %s", msg.Type)
		handle(msg)
	}
}

func decode(typ int, b []byte) (*messages.Message, error) {
	if typ == websocket.BinaryMessage {
		msg, _, err := messages.DeserializeFrame(b)
		return msg, err
	}
	return messages.Decode(string(b))
}

// Close closes the WebSocket connection.
func (c *WSClient) Close() error {
	if c.conn == nil {
		log.Warn("WebSocket connection is already closed")
		return nil
	}
	c.writeLock.Lock()
	defer c.writeLock.Unlock()
	_ = c.conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
	return c.conn.Close()
}

// SendMessage sends a message to the WebSocket server.
func (c *WSClient) SendMessage(msg *messages.Message) error {
	c.writeLock.Lock()
	defer c.writeLock.Unlock()

	if !c.binary {
		if err := c.conn.WriteMessage(websocket.TextMessage, []byte(messages.Encode(msg))); err != nil {
			return fmt.Errorf("failed to write message to WebSocket connection: %v", err)
		}
		return nil
	}

	c.sequence++
	b, err := messages.SerializeFrame(msg, c.sequence)
	if err != nil {
		return fmt.Errorf("failed to serialize message: %v", err)
	}
	if err := c.conn.WriteMessage(websocket.BinaryMessage, b); err != nil {
		return fmt.Errorf("failed to write message to WebSocket connection: %v", err)
	}
	return nil
}
