// Package mediasession exposes a media session over MQTT and provides the
// envelope dispatch shared with the other transports.
package mediasession

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"sync"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"

	"github.com/mikey-austin/media_session/internal/session"
	"github.com/mikey-austin/media_session/pkg/msp"
	"go.uber.org/zap"
)

type mqttClient interface {
	Publish(topic string, qos byte, retained bool, payload []byte) error
	Subscribe(topic string, qos byte, handler paho.MessageHandler) error
	Unsubscribe(topic string) error
}

// DefaultIdleTimeout expires MQTT controllers that have sent nothing, not
// even a ping, for this long.
const DefaultIdleTimeout = 10 * time.Minute

// Config configures the MQTT session module.
type Config struct {
	NodeID      string
	TopicBase   string
	Name        string
	IdleTimeout time.Duration
}

// Module serves one media session on a node command topic. MQTT controllers
// may vanish without disconnecting, so sessions opened here expire after
// IdleTimeout without traffic.
type Module struct {
	log      *zap.Logger
	client   mqttClient
	service  *Service
	config   Config
	cmdTopic string
	now      func() time.Time

	mu   sync.Mutex
	seen map[string]tracked
}

type tracked struct {
	controller *session.Controller
	lastSeen   time.Time
}

// NewModule creates the MQTT session module.
func NewModule(log *zap.Logger, client mqttClient, service *Service, cfg Config) (*Module, error) {
	if strings.TrimSpace(cfg.NodeID) == "" {
		return nil, errors.New("node_id required")
	}
	if client == nil {
		return nil, errors.New("mqtt client required")
	}
	if service == nil {
		return nil, errors.New("service required")
	}
	if strings.TrimSpace(cfg.TopicBase) == "" {
		cfg.TopicBase = msp.BaseTopic
	}
	if strings.TrimSpace(cfg.Name) == "" {
		cfg.Name = "Media Session"
	}
	if cfg.IdleTimeout <= 0 {
		cfg.IdleTimeout = DefaultIdleTimeout
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Module{
		log:      log,
		client:   client,
		service:  service,
		config:   cfg,
		cmdTopic: msp.TopicCommands(cfg.TopicBase, cfg.NodeID),
		now:      time.Now,
		seen:     map[string]tracked{},
	}, nil
}

// Run publishes presence and serves commands until ctx is done.
func (m *Module) Run(ctx context.Context) error {
	if err := m.publishPresence(); err != nil {
		return err
	}

	handler := func(_ paho.Client, msg paho.Message) {
		m.handleMessage(msg.Payload())
	}
	if err := m.client.Subscribe(m.cmdTopic, 1, handler); err != nil {
		return err
	}
	defer m.client.Unsubscribe(m.cmdTopic)
	m.log.Info("media session listening", zap.String("topic", m.cmdTopic), zap.Duration("idle_timeout", m.config.IdleTimeout))

	m.reapIdle(ctx)
	// An empty retained payload clears the node from presence listings.
	if err := m.client.Publish(msp.TopicPresence(m.config.TopicBase, m.config.NodeID), 1, true, nil); err != nil {
		m.log.Warn("clear presence failed", zap.Error(err))
	}
	return nil
}

func (m *Module) publishPresence() error {
	presence := msp.Presence{
		NodeID: m.config.NodeID,
		Kind:   "session",
		Name:   m.config.Name,
		Caps: map[string]any{
			"protocolVersion": msp.ProtocolVersion,
			"playerCommands":  msp.PlayerCommands,
		},
		TS: m.service.Now(),
	}
	payload, err := json.Marshal(presence)
	if err != nil {
		return err
	}
	return m.client.Publish(msp.TopicPresence(m.config.TopicBase, m.config.NodeID), 1, true, payload)
}

func (m *Module) handleMessage(payload []byte) {
	var cmd msp.CommandEnvelope
	if err := json.Unmarshal(payload, &cmd); err != nil {
		m.log.Warn("invalid command", zap.Error(err))
		return
	}

	if cmd.Type == msp.TypeConnect {
		reply, c := m.service.Connect(cmd, m.sinkFor)
		m.publishReply(cmd.ReplyTo, reply)
		if c != nil {
			m.track(c)
		}
		m.service.PostConnect(c)
		return
	}
	m.touch(cmd.Session)
	m.publishReply(cmd.ReplyTo, m.service.Dispatch(cmd))
}

func (m *Module) track(c *session.Controller) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.seen[c.ID] = tracked{controller: c, lastSeen: m.now()}
}

func (m *Module) touch(sessionID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if t, ok := m.seen[sessionID]; ok {
		t.lastSeen = m.now()
		m.seen[sessionID] = t
	}
}

func (m *Module) reapIdle(ctx context.Context) {
	ticker := time.NewTicker(reapInterval(m.config.IdleTimeout))
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.expireIdle()
		}
	}
}

// expireIdle disconnects controllers idle past the timeout and forgets those
// that already disconnected.
func (m *Module) expireIdle() {
	now := m.now()
	var expired []*session.Controller
	m.mu.Lock()
	for id, t := range m.seen {
		switch {
		case t.controller.State() == session.Disconnected:
			delete(m.seen, id)
		case now.Sub(t.lastSeen) > m.config.IdleTimeout:
			delete(m.seen, id)
			expired = append(expired, t.controller)
		}
	}
	m.mu.Unlock()

	for _, c := range expired {
		m.log.Info("session expired", zap.String("controller", c.ID), zap.String("name", c.Name))
		m.service.Disconnect(c)
	}
}

func reapInterval(idle time.Duration) time.Duration {
	interval := idle / 2
	if interval > time.Minute {
		interval = time.Minute
	}
	if interval < 10*time.Millisecond {
		interval = 10 * time.Millisecond
	}
	return interval
}

func (m *Module) sinkFor(sessionID string) session.Sink {
	topic := msp.TopicPush(m.config.TopicBase, sessionID)
	return NewPushSink(func(payload []byte) error {
		return m.client.Publish(topic, 1, false, payload)
	}, m.service.Now)
}

func (m *Module) publishReply(replyTo string, reply msp.ReplyEnvelope) {
	if replyTo == "" {
		return
	}
	payload, err := json.Marshal(reply)
	if err != nil {
		m.log.Warn("encode reply", zap.Error(err))
		return
	}
	if err := m.client.Publish(replyTo, 1, false, payload); err != nil {
		m.log.Debug("reply publish failed", zap.String("topic", replyTo), zap.Error(err))
	}
}
