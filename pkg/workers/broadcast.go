package workers

import (
	"context"

	"github.com/cbodonnell/evervoid/pkg/game"
	"github.com/cbodonnell/evervoid/pkg/log"
	"github.com/cbodonnell/evervoid/pkg/messages"
)

const (
	// BroadcastMessageChannelSize represents the capacity of the outbound channel
	BroadcastMessageChannelSize = 1024
)

// BroadcastMessage is an outbound message. An empty ClientID addresses
// every connected client.
type BroadcastMessage struct {
	ClientID string
	Message  *messages.Message
}

// ChannelSink hands the simulation loop's outbound messages to a
// BroadcastMessageWorker without blocking the loop.
type ChannelSink struct {
	ch     chan BroadcastMessage
	onDrop func(BroadcastMessage)
}

var _ game.Sink = &ChannelSink{}

func NewChannelSink(size int) *ChannelSink {
	if size <= 0 {
		size = BroadcastMessageChannelSize
	}
	return &ChannelSink{ch: make(chan BroadcastMessage, size)}
}

// OnDrop registers a handler for messages that did not fit in the channel.
// It runs on the simulation loop and must not block. Set it before the
// sink is used.
func (s *ChannelSink) OnDrop(fn func(BroadcastMessage)) {
	s.onDrop = fn
}

func (s *ChannelSink) Send(clientID string, m *messages.Message) {
	s.push(BroadcastMessage{ClientID: clientID, Message: m})
}

func (s *ChannelSink) Broadcast(m *messages.Message) {
	s.push(BroadcastMessage{Message: m})
}

func (s *ChannelSink) push(b BroadcastMessage) {
	select {
	case s.ch <- b:
	default:
		log.Error("Outbound channel full, dropped %s for %q", messages.Describe(b.Message), b.ClientID)
		if s.onDrop != nil {
			s.onDrop(b)
		}
	}
}

// Chan returns the channel the worker drains.
func (s *ChannelSink) Chan() <-chan BroadcastMessage {
	return s.ch
}

// MessageSender writes messages to client sessions.
type MessageSender interface {
	SendMessageToClient(ctx context.Context, clientID string, msg *messages.Message) error
	BroadcastMessage(ctx context.Context, msg *messages.Message)
}

type BroadcastMessageWorker struct {
	sender               MessageSender
	broadcastMessageChan <-chan BroadcastMessage
}

type NewBroadcastMessageWorkerOptions struct {
	Sender               MessageSender
	BroadcastMessageChan <-chan BroadcastMessage
}

func NewBroadcastMessageWorker(opts NewBroadcastMessageWorkerOptions) *BroadcastMessageWorker {
	return &BroadcastMessageWorker{
		sender:               opts.Sender,
		broadcastMessageChan: opts.BroadcastMessageChan,
	}
}

// Start delivers outbound messages in the order they were produced until
// ctx is done.
func (w *BroadcastMessageWorker) Start(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case msg := <-w.broadcastMessageChan:
			w.deliver(ctx, msg)
		}
	}
}

func (w *BroadcastMessageWorker) deliver(ctx context.Context, b BroadcastMessage) {
	if b.ClientID == "" {
		w.sender.BroadcastMessage(ctx, b.Message)
		return
	}
	if err := w.sender.SendMessageToClient(ctx, b.ClientID, b.Message); err != nil {
		log.Error("Failed to send %s to client %s: %v", b.Message.Type, b.ClientID, err)
	}
}
