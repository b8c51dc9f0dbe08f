package session

import (
	"sync"

	"github.com/mikey-austin/media_session/internal/commands"
	"github.com/mikey-austin/media_session/pkg/msp"
	"go.uber.org/zap"
)

// Controllers is the set of connected controllers. Broadcasts snapshot the
// set and queue into each member's mailbox.
type Controllers struct {
	log *zap.Logger

	mu    sync.RWMutex
	byID  map[string]*Controller
	order []string
}

// NewControllers creates an empty controller set.
func NewControllers(log *zap.Logger) *Controllers {
	if log == nil {
		log = zap.NewNop()
	}
	return &Controllers{log: log, byID: map[string]*Controller{}}
}

// Add inserts c, replacing any controller with the same id.
func (s *Controllers) Add(c *Controller) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.byID[c.ID]; !ok {
		s.order = append(s.order, c.ID)
	}
	s.byID[c.ID] = c
}

// Remove deletes the controller with the given id.
func (s *Controllers) Remove(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.byID[id]; !ok {
		return
	}
	delete(s.byID, id)
	for i, existing := range s.order {
		if existing == id {
			s.order = append(s.order[:i], s.order[i+1:]...)
			break
		}
	}
}

// Get looks up a controller by id.
func (s *Controllers) Get(id string) (*Controller, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	c, ok := s.byID[id]
	return c, ok
}

// Snapshot returns the controllers in connection order.
func (s *Controllers) Snapshot() []*Controller {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*Controller, 0, len(s.order))
	for _, id := range s.order {
		out = append(out, s.byID[id])
	}
	return out
}

// Len returns the number of connected controllers.
func (s *Controllers) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.byID)
}

// BroadcastLayout queues a layout for every controller without waiting.
// Controllers that already hold a newer version ignore it.
func (s *Controllers) BroadcastLayout(version uint64, actions []commands.CustomAction) {
	buttons := commands.Buttons(actions)
	for _, c := range s.Snapshot() {
		c.pushLayout(s.log, version, buttons)
	}
}

// BroadcastCues queues a cue group for every controller without waiting.
func (s *Controllers) BroadcastCues(group msp.CueGroup) {
	for _, c := range s.Snapshot() {
		c.pushCues(s.log, group)
	}
}
