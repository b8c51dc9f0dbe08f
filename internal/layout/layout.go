// Package layout holds the ordered set of custom actions currently advertised
// to controllers.
package layout

import (
	"slices"
	"sync"

	"github.com/mikey-austin/media_session/internal/commands"
)

// Broadcaster delivers a layout snapshot to every connected controller.
// Versions increase with every Replace. Implementations must not block the
// caller.
type Broadcaster interface {
	BroadcastLayout(version uint64, actions []commands.CustomAction)
}

// State is a single-writer cell. Reads always observe a complete sequence.
type State struct {
	mu          sync.RWMutex
	actions     []commands.CustomAction
	version     uint64
	broadcaster Broadcaster
}

// New creates a layout holding initial at version 1. A nil broadcaster
// disables pushes.
func New(initial []commands.CustomAction, broadcaster Broadcaster) *State {
	return &State{actions: slices.Clone(initial), version: 1, broadcaster: broadcaster}
}

// Snapshot returns a copy of the current sequence and its version.
func (s *State) Snapshot() ([]commands.CustomAction, uint64) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return slices.Clone(s.actions), s.version
}

// Current returns a copy of the current sequence.
func (s *State) Current() []commands.CustomAction {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return slices.Clone(s.actions)
}

// Len returns the number of actions in the layout.
func (s *State) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.actions)
}

// Replace swaps the sequence and hands a snapshot to the broadcaster. The
// hand-off happens under the write lock so broadcasts arrive in version order.
func (s *State) Replace(next []commands.CustomAction) {
	snapshot := slices.Clone(next)
	s.mu.Lock()
	defer s.mu.Unlock()
	s.version++
	s.actions = snapshot
	if s.broadcaster != nil {
		s.broadcaster.BroadcastLayout(s.version, slices.Clone(snapshot))
	}
}
