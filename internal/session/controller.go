package session

import (
	"slices"
	"sync"

	"github.com/mikey-austin/media_session/pkg/msp"
)

// State is the lifecycle state of a controller.
type State int

const (
	// Connecting is the state before the handler accepts a controller.
	Connecting State = iota
	// Connected controllers receive pushes and may issue commands.
	Connected
	// Disconnected is terminal.
	Disconnected
)

func (s State) String() string {
	switch s {
	case Connecting:
		return "connecting"
	case Connected:
		return "connected"
	case Disconnected:
		return "disconnected"
	default:
		return "unknown"
	}
}

// Sink delivers pushes to one controller over its transport.
type Sink interface {
	SendLayout(buttons []msp.CommandButton) error
	SendChildrenChanged(push msp.ChildrenChangedPush) error
	SendCues(group msp.CueGroup) error
}

// Controller is a remote client bound to the session.
type Controller struct {
	ID      string
	Name    string
	Version int

	sink Sink
	box  mailbox

	mu            sync.RWMutex
	state         State
	allowed       []string
	allowedPlayer []string
}

// NewController creates a controller in the Connecting state.
func NewController(id string, name string, version int, sink Sink) *Controller {
	return &Controller{ID: id, Name: name, Version: version, sink: sink}
}

// State returns the lifecycle state.
func (c *Controller) State() State {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.state
}

// Allowed reports whether cmdType is in the negotiated session command set.
func (c *Controller) Allowed(cmdType string) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return slices.Contains(c.allowed, cmdType)
}

// AllowedPlayer reports whether cmdType is in the negotiated player command set.
func (c *Controller) AllowedPlayer(cmdType string) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return slices.Contains(c.allowedPlayer, cmdType)
}

func (c *Controller) accept(allowed []string, allowedPlayer []string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.state = Connected
	c.allowed = slices.Clone(allowed)
	c.allowedPlayer = slices.Clone(allowedPlayer)
}

// close moves the controller to Disconnected and reports whether it was
// previously connected.
func (c *Controller) close() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	was := c.state
	c.state = Disconnected
	return was != Disconnected
}
