// Package commands defines the custom actions a session can advertise to
// its controllers.
package commands

import (
	"github.com/mikey-austin/media_session/pkg/msp"
)

// CustomAction is a button a controller can trigger by identifier.
type CustomAction struct {
	Identifier string
	Label      string
	Icon       string
	Enabled    bool
}

// Button returns the wire form of the action.
func (a CustomAction) Button() msp.CommandButton {
	return msp.CommandButton{
		Identifier: a.Identifier,
		Label:      a.Label,
		Icon:       a.Icon,
		Enabled:    a.Enabled,
	}
}

// ShuffleOn turns shuffle mode on.
var ShuffleOn = CustomAction{
	Identifier: msp.CommandShuffleOn,
	Label:      "Enable shuffle",
	Icon:       "shuffle",
	Enabled:    true,
}

// ShuffleOff turns shuffle mode off.
var ShuffleOff = CustomAction{
	Identifier: msp.CommandShuffleOff,
	Label:      "Disable shuffle",
	Icon:       "shuffle_on",
	Enabled:    true,
}

// Registry is the fixed set of custom actions known to a session.
type Registry struct {
	actions []CustomAction
	byID    map[string]int
}

// NewRegistry builds a registry. Later duplicates of an identifier are ignored.
func NewRegistry(actions ...CustomAction) *Registry {
	r := &Registry{byID: make(map[string]int, len(actions))}
	for _, action := range actions {
		if action.Identifier == "" {
			continue
		}
		if _, ok := r.byID[action.Identifier]; ok {
			continue
		}
		r.byID[action.Identifier] = len(r.actions)
		r.actions = append(r.actions, action)
	}
	return r
}

// Default returns the registry holding the shuffle on/off pair.
func Default() *Registry {
	return NewRegistry(ShuffleOn, ShuffleOff)
}

// ByIdentifier looks up an action.
func (r *Registry) ByIdentifier(identifier string) (CustomAction, bool) {
	idx, ok := r.byID[identifier]
	if !ok {
		return CustomAction{}, false
	}
	return r.actions[idx], true
}

// Identifiers lists action identifiers in registration order.
func (r *Registry) Identifiers() []string {
	out := make([]string, 0, len(r.actions))
	for _, action := range r.actions {
		out = append(out, action.Identifier)
	}
	return out
}

// Buttons converts actions to their wire form.
func Buttons(actions []CustomAction) []msp.CommandButton {
	out := make([]msp.CommandButton, 0, len(actions))
	for _, action := range actions {
		out = append(out, action.Button())
	}
	return out
}
