package network

import (
	"context"
	"fmt"
	"net/http"

	authproviders "github.com/cbodonnell/evervoid/pkg/auth/providers"
	"github.com/cbodonnell/evervoid/pkg/log"
	"github.com/cbodonnell/evervoid/pkg/messages"
	"github.com/cbodonnell/evervoid/pkg/queue"
	"nhooyr.io/websocket"
)

type NetworkManager struct {
	AuthProvider  authproviders.AuthProvider
	ClientManager *ClientManager
	MessageQueue  queue.Queue[*messages.Message]
	WSServer      *WSServer
}

type NewNetworkManagerOptions struct {
	AuthProvider  authproviders.AuthProvider
	ClientManager *ClientManager
	MessageQueue  queue.Queue[*messages.Message]
	WSPort        int
	WSServerTLS   *TLSConfig
}

func NewNetworkManager(options NewNetworkManagerOptions) *NetworkManager {
	authProvider := options.AuthProvider
	if authProvider == nil {
		authProvider = authproviders.NewNoopAuthProvider()
	}
	return &NetworkManager{
		AuthProvider:  authProvider,
		ClientManager: options.ClientManager,
		MessageQueue:  options.MessageQueue,
		WSServer: NewWSServer(NewWSServerOptions{
			Port: options.WSPort,
			TLS:  options.WSServerTLS,
		}),
	}
}

func (n *NetworkManager) Start(ctx context.Context) {
	go n.WSServer.Start(ctx, n.handleConnect, n.handleDisconnect, n.HandleMessage)
}

// Handler serves sessions on an existing http server.
func (n *NetworkManager) Handler(ctx context.Context) http.Handler {
	return n.WSServer.Handler(ctx, n.handleConnect, n.handleDisconnect, n.HandleMessage)
}

func (n *NetworkManager) handleConnect(conn *websocket.Conn) string {
	clientID := n.ClientManager.ConnectClient(conn)
	log.Info("Client %s connected", clientID)
	return clientID
}

func (n *NetworkManager) handleDisconnect(clientID string) {
	n.ClientManager.DisconnectClient(clientID)
	log.Info("Client %s disconnected", clientID)
}

// rateLimitExempt lists the messages a session needs to stay in sync. They
// are validated by the simulation loop instead.
var rateLimitExempt = map[string]bool{
	messages.MessageTypeTurnSubmit:       true,
	messages.MessageTypeFullStateRequest: true,
}

// HandleMessage routes a message received from a session. Pings are echoed
// straight away and handshakes are authenticated here; everything else is
// queued for the simulation loop.
func (n *NetworkManager) HandleMessage(ctx context.Context, clientID string, message *messages.Message, binary bool) {
	n.ClientManager.SetBinary(clientID, binary)
	if !rateLimitExempt[message.Type] && !n.ClientManager.Allow(clientID) {
		log.Warn("Rate limit exceeded for client %s, dropped %s", clientID, message.Type)
		return
	}
	message.ClientID = clientID

	switch message.Type {
	case messages.MessageTypePing:
		if _, err := messages.ParsePing(message); err != nil {
			log.Warn("Dropped malformed ping from %s: %v", clientID, err)
			return
		}
		if err := n.SendMessageToClient(ctx, clientID, messages.New(messages.MessageTypePing, message.Payload)); err != nil {
			log.Error("Failed to echo ping: %v", err)
		}
		return
	case messages.MessageTypeHandshake:
		if err := n.authenticate(ctx, message); err != nil {
			log.Warn("Rejected handshake from %s: %v", clientID, err)
			if err := n.SendMessageToClient(ctx, clientID, messages.NewJoinError(err.Error())); err != nil {
				log.Error("Failed to send join error: %v", err)
			}
			return
		}
	}

	if err := n.MessageQueue.Enqueue(message); err != nil {
		log.Error("Failed to enqueue message: %v", err)
	}
}

func (n *NetworkManager) authenticate(ctx context.Context, message *messages.Message) error {
	handshake, err := messages.ParseHandshake(message)
	if err != nil {
		return err
	}
	if _, err := n.AuthProvider.VerifyToken(ctx, handshake.Token); err != nil {
		return fmt.Errorf("failed to verify token: %v", err)
	}
	return nil
}

// SendMessageToClient sends a message to a single session.
func (n *NetworkManager) SendMessageToClient(ctx context.Context, clientID string, msg *messages.Message) error {
	client, err := n.ClientManager.GetClient(clientID)
	if err != nil {
		return fmt.Errorf("failed to get client: %v", err)
	}
	if err := client.write(ctx, msg); err != nil {
		return fmt.Errorf("failed to write message to client %s: %v", clientID, err)
	}
	return nil
}

// BroadcastMessage sends a message to every connected session. Failures are
// logged per session.
func (n *NetworkManager) BroadcastMessage(ctx context.Context, msg *messages.Message) {
	for _, client := range n.ClientManager.GetClients() {
		if err := client.write(ctx, msg); err != nil {
			log.Error("Failed to broadcast %s to client %s: %v", msg.Type, client.ID, err)
		}
	}
}

// CloseClient ends a session. The session's read loop reports the
// disconnect.
func (n *NetworkManager) CloseClient(clientID string, reason string) error {
	client, err := n.ClientManager.GetClient(clientID)
	if err != nil {
		return fmt.Errorf("failed to get client: %v", err)
	}
	log.Warn("Closing client %s: %s", clientID, reason)
	return client.conn.Close(websocket.StatusTryAgainLater, reason)
}
