package session

import (
	"sync"

	"go.uber.org/zap"

	"github.com/mikey-austin/media_session/pkg/msp"
)

// mailbox serializes pushes to one controller. At most one goroutine drains
// it. Layout and cue pushes keep only the newest pending value and a layout
// older than one already queued is dropped. Children pushes are delivered in
// order.
type mailbox struct {
	mu       sync.Mutex
	draining bool
	log      *zap.Logger

	layoutVersion uint64
	layout        []msp.CommandButton
	layoutPending bool

	cues        msp.CueGroup
	cuesPending bool

	children []msp.ChildrenChangedPush
}

func (c *Controller) pushLayout(log *zap.Logger, version uint64, buttons []msp.CommandButton) {
	if c.sink == nil {
		return
	}
	m := &c.box
	m.mu.Lock()
	if version <= m.layoutVersion {
		m.mu.Unlock()
		return
	}
	m.layoutVersion = version
	m.layout = buttons
	m.layoutPending = true
	c.kickLocked(log)
	m.mu.Unlock()
}

func (c *Controller) pushCues(log *zap.Logger, group msp.CueGroup) {
	if c.sink == nil {
		return
	}
	m := &c.box
	m.mu.Lock()
	m.cues = group
	m.cuesPending = true
	c.kickLocked(log)
	m.mu.Unlock()
}

func (c *Controller) pushChildren(log *zap.Logger, push msp.ChildrenChangedPush) {
	if c.sink == nil {
		return
	}
	m := &c.box
	m.mu.Lock()
	m.children = append(m.children, push)
	c.kickLocked(log)
	m.mu.Unlock()
}

// kickLocked starts the drain goroutine unless one is running.
func (c *Controller) kickLocked(log *zap.Logger) {
	if log != nil {
		c.box.log = log
	}
	if c.box.draining {
		return
	}
	c.box.draining = true
	go c.drain()
}

func (c *Controller) drain() {
	m := &c.box
	for {
		m.mu.Lock()
		if !m.layoutPending && !m.cuesPending && len(m.children) == 0 {
			m.draining = false
			m.mu.Unlock()
			return
		}
		log := m.log
		if log == nil {
			log = zap.NewNop()
		}
		sendLayout, layout := m.layoutPending, m.layout
		sendCues, cues := m.cuesPending, m.cues
		children := m.children
		m.layout = nil
		m.layoutPending = false
		m.cuesPending = false
		m.children = nil
		m.mu.Unlock()

		if c.State() == Disconnected {
			continue
		}
		if sendLayout {
			if err := c.sink.SendLayout(layout); err != nil {
				log.Debug("push failed", zap.String("push", msp.PushLayout), zap.String("controller", c.ID), zap.Error(err))
			}
		}
		for _, push := range children {
			if err := c.sink.SendChildrenChanged(push); err != nil {
				log.Debug("push failed", zap.String("push", msp.PushChildrenChanged), zap.String("controller", c.ID), zap.Error(err))
			}
		}
		if sendCues {
			if err := c.sink.SendCues(cues); err != nil {
				log.Debug("push failed", zap.String("push", msp.PushCues), zap.String("controller", c.ID), zap.Error(err))
			}
		}
	}
}
