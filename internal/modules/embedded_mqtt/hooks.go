package embeddedmqtt

import (
	"strings"

	mqtt "github.com/mochi-mqtt/server/v2"
	"github.com/mochi-mqtt/server/v2/packets"
	"go.uber.org/zap"
)

// presenceHook logs broker connections and session nodes coming and going.
type presenceHook struct {
	mqtt.HookBase
	log  *zap.Logger
	base string
}

func (h *presenceHook) ID() string {
	return "mss-presence"
}

func (h *presenceHook) Provides(b byte) bool {
	return b == mqtt.OnConnect || b == mqtt.OnDisconnect || b == mqtt.OnPublished
}

func (h *presenceHook) OnConnect(cl *mqtt.Client, _ packets.Packet) error {
	h.log.Debug("broker client connected", zap.String("client", cl.ID))
	return nil
}

func (h *presenceHook) OnDisconnect(cl *mqtt.Client, err error, expire bool) {
	fields := []zap.Field{zap.String("client", cl.ID), zap.Bool("expire", expire)}
	if err != nil {
		fields = append(fields, zap.Error(err))
	}
	h.log.Debug("broker client disconnected", fields...)
}

func (h *presenceHook) OnPublished(cl *mqtt.Client, pk packets.Packet) {
	nodeID, ok := presenceNode(h.base, pk.TopicName)
	if !ok {
		return
	}
	if len(pk.Payload) == 0 {
		h.log.Info("session node offline", zap.String("node", nodeID))
		return
	}
	h.log.Info("session node online", zap.String("node", nodeID), zap.String("client", cl.ID))
}

// presenceNode extracts the node id from <base>/node/<id>/presence.
func presenceNode(base string, topic string) (string, bool) {
	prefix := strings.TrimSuffix(base, "/") + "/node/"
	if !strings.HasPrefix(topic, prefix) || !strings.HasSuffix(topic, "/presence") {
		return "", false
	}
	nodeID := strings.TrimSuffix(strings.TrimPrefix(topic, prefix), "/presence")
	if nodeID == "" || strings.Contains(nodeID, "/") {
		return "", false
	}
	return nodeID, true
}
