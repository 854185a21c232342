package workers

import (
	"context"

	"github.com/cbodonnell/evervoid/pkg/log"
	"github.com/cbodonnell/evervoid/pkg/network"
	"github.com/cbodonnell/evervoid/pkg/queue"
)

type ConnectionEventWorker struct {
	connectionEventChan  <-chan network.ConnectionEvent
	connectionEventQueue queue.Queue[network.ConnectionEvent]
}

type NewConnectionEventWorkerOptions struct {
	ConnectionEventChan  <-chan network.ConnectionEvent
	ConnectionEventQueue queue.Queue[network.ConnectionEvent]
}

// NewConnectionEventWorker creates a new ConnectionEventWorker.
// The worker forwards client connects and disconnects to a queue
// for the game loop to process.
func NewConnectionEventWorker(opts NewConnectionEventWorkerOptions) *ConnectionEventWorker {
	return &ConnectionEventWorker{
		connectionEventChan:  opts.ConnectionEventChan,
		connectionEventQueue: opts.ConnectionEventQueue,
	}
}

func (w *ConnectionEventWorker) Start(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case event := <-w.connectionEventChan:
			switch event.Type {
			case network.ConnectionEventTypeConnect, network.ConnectionEventTypeDisconnect:
				if err := w.connectionEventQueue.Enqueue(event); err != nil {
					log.Error("Failed to enqueue connection event for %s: %v", event.ClientID, err)
				}
			default:
				log.Error("Unknown client event type: %v", event.Type)
			}
		}
	}
}
