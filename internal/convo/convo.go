// Package convo integrates the out-of-process conversation service that
// triages inbound chat messages and produces replies.
package convo

import (
	"context"
)

// Request carries one gated inbound message to the conversation service.
type Request struct {
	SessionID   string
	ChatID      string
	Text        string
	DisplayName string
}

// Reply is the conversation service's answer for one message.
type Reply struct {
	Text string
}

// Processor defines the interface to the conversation service.
// This interface is implemented by the gRPC client.
type Processor interface {
	// Process triages one message. A nil reply with a nil error means
	// the service is buffering a message burst and will answer on a
	// later message; it is not an error.
	Process(ctx context.Context, req Request) (*Reply, error)

	// Health checks whether the conversation service is reachable.
	Health(ctx context.Context) error

	// Close releases resources.
	Close()
}
