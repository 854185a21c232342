package network

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/cbodonnell/evervoid/pkg/messages"
	"github.com/google/uuid"
	"golang.org/x/time/rate"
	"nhooyr.io/websocket"
)

const (
	// ConnectionEventChannelSize represents the size of the connection event channel
	ConnectionEventChannelSize = 1024
)

// Client is a connected session.
type Client struct {
	ID string
	// binary is set when the client speaks compressed frames rather than
	// Value text. Replies use the same framing.
	binary   atomic.Bool
	conn     *websocket.Conn
	limiter  *rate.Limiter
	sequence uint32
	lock     sync.Mutex
}

// write sends m using the client's framing.
func (c *Client) write(ctx context.Context, m *messages.Message) error {
	c.lock.Lock()
	defer c.lock.Unlock()
	c.sequence++
	return WriteMessageToWS(ctx, c.conn, m, c.binary.Load(), c.sequence)
}

// ConnectionEvent reports a session starting or ending.
type ConnectionEvent struct {
	ClientID string
	Type     ConnectionEventType
}

type ConnectionEventType int

const (
	ConnectionEventTypeConnect ConnectionEventType = iota
	ConnectionEventTypeDisconnect
)

// RateLimit bounds the messages a session may send.
type RateLimit struct {
	PerSecond float64
	Burst     int
}

// ClientManager tracks connected sessions.
type ClientManager struct {
	clients             map[string]*Client
	clientsLock         sync.RWMutex
	rateLimit           RateLimit
	connectionEventChan chan ConnectionEvent
}

func NewClientManager(rateLimit RateLimit) *ClientManager {
	return &ClientManager{
		clients:             make(map[string]*Client),
		rateLimit:           rateLimit,
		connectionEventChan: make(chan ConnectionEvent, ConnectionEventChannelSize),
	}
}

// GetConnectionEventChan returns a one-way channel for receiving connection events
func (cm *ClientManager) GetConnectionEventChan() <-chan ConnectionEvent {
	return cm.connectionEventChan
}

// ConnectClient registers a session and returns its id.
func (cm *ClientManager) ConnectClient(conn *websocket.Conn) string {
	client := &Client{
		ID:   uuid.NewString(),
		conn: conn,
	}
	if cm.rateLimit.PerSecond > 0 {
		client.limiter = rate.NewLimiter(rate.Limit(cm.rateLimit.PerSecond), cm.rateLimit.Burst)
	}

	cm.clientsLock.Lock()
	cm.clients[client.ID] = client
	cm.clientsLock.Unlock()

	cm.emit(ConnectionEvent{ClientID: client.ID, Type: ConnectionEventTypeConnect})
	return client.ID
}

// DisconnectClient removes a session.
func (cm *ClientManager) DisconnectClient(clientID string) {
	cm.clientsLock.Lock()
	_, ok := cm.clients[clientID]
	delete(cm.clients, clientID)
	cm.clientsLock.Unlock()

	if ok {
		cm.emit(ConnectionEvent{ClientID: clientID, Type: ConnectionEventTypeDisconnect})
	}
}

func (cm *ClientManager) emit(event ConnectionEvent) {
	select {
	case cm.connectionEventChan <- event:
	default:
		// the consumer is gone or far behind; sessions must not block on it
	}
}

func (cm *ClientManager) GetClient(clientID string) (*Client, error) {
	cm.clientsLock.RLock()
	defer cm.clientsLock.RUnlock()
	client, ok := cm.clients[clientID]
	if !ok {
		return nil, fmt.Errorf("client %s not found", clientID)
	}
	return client, nil
}

// GetClients returns the connected sessions.
func (cm *ClientManager) GetClients() []*Client {
	cm.clientsLock.RLock()
	defer cm.clientsLock.RUnlock()
	clients := make([]*Client, 0, len(cm.clients))
	for _, client := range cm.clients {
		clients = append(clients, client)
	}
	return clients
}

func (cm *ClientManager) Exists(clientID string) bool {
	cm.clientsLock.RLock()
	defer cm.clientsLock.RUnlock()
	_, ok := cm.clients[clientID]
	return ok
}

// Allow reports whether the session may send another message now.
func (cm *ClientManager) Allow(clientID string) bool {
	client, err := cm.GetClient(clientID)
	if err != nil {
		return false
	}
	return client.limiter == nil || client.limiter.Allow()
}

// SetBinary records the framing the session uses.
func (cm *ClientManager) SetBinary(clientID string, binary bool) {
	if client, err := cm.GetClient(clientID); err == nil {
		client.binary.Store(binary)
	}
}
