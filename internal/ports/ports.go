package ports

import (
	"context"

	"github.com/mikey-austin/media_session/pkg/msp"
)

// Broker publishes commands and reads presence and session pushes.
type Broker interface {
	ReplyTopic() string
	PublishCommand(ctx context.Context, nodeID string, cmd msp.CommandEnvelope) (msp.ReplyEnvelope, error)
	ListPresence(ctx context.Context) ([]msp.Presence, error)
	WatchPushes(ctx context.Context, sessionID string) (<-chan msp.PushEnvelope, <-chan error)
}

// Clock returns the current unix time in seconds.
type Clock interface {
	NowUnix() int64
}

// IDGen returns unique correlation IDs.
type IDGen interface {
	NewID() string
}

// SessionStore persists negotiated sessions between commands.
type SessionStore interface {
	Get(nodeID string) (msp.SessionRef, bool, error)
	Put(nodeID string, ref msp.SessionRef) error
	Clear(nodeID string) error
}
