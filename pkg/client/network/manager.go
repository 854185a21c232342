package network

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/cbodonnell/evervoid/pkg/log"
	"github.com/cbodonnell/evervoid/pkg/messages"
	"github.com/cbodonnell/evervoid/pkg/queue"
)

const (
	DefaultServerAddr   = "ws://localhost:8888"
	DefaultPingInterval = 5 * time.Second
)

// NetworkManager owns the client's session with the server. Server messages
// are placed on the server message queue; pings are answered here.
type NetworkManager struct {
	serverMessageQueue queue.Queue[*messages.Message]
	wsClient           *WSClient
	errChan            chan error
	cancelClientCtx    context.CancelFunc
	clientWaitGroup    *sync.WaitGroup
	pingInterval       time.Duration
	rtt                *rttTracker
	now                func() time.Time
}

type NewNetworkManagerOptions struct {
	ServerAddr         string
	Binary             bool
	ServerMessageQueue queue.Queue[*messages.Message]
	PingInterval       time.Duration
}

func NewNetworkManager(opts NewNetworkManagerOptions) *NetworkManager {
	addr := opts.ServerAddr
	if addr == "" {
		addr = DefaultServerAddr
	}
	pingInterval := opts.PingInterval
	if pingInterval <= 0 {
		pingInterval = DefaultPingInterval
	}
	return &NetworkManager{
		serverMessageQueue: opts.ServerMessageQueue,
		wsClient:           NewWSClient(addr, opts.Binary),
		errChan:            make(chan error, 1),
		clientWaitGroup:    &sync.WaitGroup{},
		pingInterval:       pingInterval,
		rtt:                &rttTracker{},
		now:                time.Now,
	}
}

// Start connects to the server and begins reading messages and probing
// latency. The session ends when ctx is done, Stop is called, or the server
// goes away; the reason is delivered on ErrChan.
func (m *NetworkManager) Start(ctx context.Context) error {
	if err := m.wsClient.Connect(ctx); err != nil {
		return fmt.Errorf("failed to start websocket client: %v", err)
	}

	ctx, cancel := context.WithCancel(ctx)
	m.cancelClientCtx = cancel

	m.clientWaitGroup.Add(1)
	go func(ctx context.Context) {
		defer m.clientWaitGroup.Done()
		err := m.wsClient.HandleMessages(ctx, m.handleMessage)
		cancel()
		m.errChan <- err
	}(ctx)

	m.clientWaitGroup.Add(1)
	go func(ctx context.Context) {
		defer m.clientWaitGroup.Done()
		m.pingLoop(ctx)
	}(ctx)

	return nil
}

func (m *NetworkManager) pingLoop(ctx context.Context) {
	ticker := time.NewTicker(m.pingInterval)
	defer ticker.Stop()
	for {
		if err := m.SendMessage(messages.NewPing(m.now().UnixMilli())); err != nil {
			log.Error("Failed to send ping: %v", err)
		}
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

func (m *NetworkManager) handleMessage(msg *messages.Message) {
	if msg.Type == messages.MessageTypePing {
		sent, err := messages.ParsePing(msg)
		if err != nil {
			log.Warn("Dropped malformed ping: %v", err)
			return
		}
		rtt := m.now().UnixMilli() - sent
		ping := m.rtt.record(rtt)
		log.Trace("Round trip: %dms, ping: %.1fms", rtt, ping)
		return
	}
	if err := m.serverMessageQueue.Enqueue(msg); err != nil {
		log.Error("Failed to enqueue message: %v", err)
	}
}

// Stop closes the session and clears the server message queue.
func (m *NetworkManager) Stop() error {
	if m.cancelClientCtx == nil {
		log.Warn("Network manager already stopped")
		return nil
	}
	m.cancelClientCtx()
	if err := m.wsClient.Close(); err != nil {
		log.Debug("Failed to close websocket client: %v", err)
	}

	log.Debug("Waiting for clients to stop")
	m.clientWaitGroup.Wait()
	m.serverMessageQueue.ClearQueue()
	m.cancelClientCtx = nil

	log.Info("Network manager stopped")
	return nil
}

// Ping returns the filtered average round trip in milliseconds.
func (m *NetworkManager) Ping() float64 {
	return m.rtt.current()
}

func (m *NetworkManager) ServerMessageQueue() queue.Queue[*messages.Message] {
	return m.serverMessageQueue
}

// ErrChan reports why the session ended.
func (m *NetworkManager) ErrChan() <-chan error {
	return m.errChan
}

func (m *NetworkManager) SendMessage(msg *messages.Message) error {
	return m.wsClient.SendMessage(msg)
}
