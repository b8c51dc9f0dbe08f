package core

import "github.com/mikey-austin/media_session/pkg/msp"

// ServersResult holds the media session servers currently online.
type ServersResult struct {
	Servers []msp.Presence
}

// ConnectResult reports a negotiated controller session.
type ConnectResult struct {
	ServerID string
	Session  msp.SessionRef
}

// ItemResult holds one catalog node.
type ItemResult struct {
	ServerID string
	Item     msp.MediaItem
}

// ChildrenResult holds the children of a catalog node.
type ChildrenResult struct {
	ServerID string
	ParentID string
	Items    []msp.MediaItem
}

// CustomResult reports the outcome of a custom command.
type CustomResult struct {
	ServerID   string
	Identifier string
	Applied    bool
}

// QueueResult lists items as the server resolved them before queueing.
type QueueResult struct {
	ServerID string
	Items    []msp.MediaItem
}

// PushResult wraps a push received while watching a session.
type PushResult struct {
	Push msp.PushEnvelope
}
