package mqttserver

import (
	"sync"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"
	"go.uber.org/zap"

	"github.com/mikey-austin/media_session/internal/adapters/tlsconfig"
)

// Options configures the MQTT connection used by the session daemon.
type Options struct {
	BrokerURL string
	ClientID  string
	Username  string
	Password  string
	TLSCA     string
	TLSCert   string
	TLSKey    string
	Timeout   time.Duration
	Logger    *zap.Logger
	Debug     bool

	// WillTopic, when set, receives an empty retained message if the
	// connection drops without a clean disconnect.
	WillTopic string
}

// Client wraps the daemon side MQTT connection. Subscriptions and retained
// publishes are replayed after an automatic reconnect, since the broker drops
// both with the old session and the will clears presence.
type Client struct {
	client paho.Client
	log    *zap.Logger
	debug  bool

	mu       sync.Mutex
	subs     map[string]subscription
	retained map[string][]byte
}

type subscription struct {
	qos     byte
	handler paho.MessageHandler
}

// NewClient connects to MQTT.
func NewClient(opts Options) (*Client, error) {
	if opts.Timeout == 0 {
		opts.Timeout = 2 * time.Second
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}

	c := &Client{
		log:      opts.Logger,
		debug:    opts.Debug,
		subs:     map[string]subscription{},
		retained: map[string][]byte{},
	}

	clientOpts := paho.NewClientOptions().AddBroker(opts.BrokerURL)
	clientOpts.SetClientID(opts.ClientID)
	clientOpts.SetConnectTimeout(opts.Timeout)
	clientOpts.SetAutoReconnect(true)
	clientOpts.SetOnConnectHandler(c.restore)
	clientOpts.SetConnectionLostHandler(func(_ paho.Client, err error) {
		opts.Logger.Warn("mqtt connection lost", zap.Error(err))
	})
	if opts.WillTopic != "" {
		clientOpts.SetBinaryWill(opts.WillTopic, []byte{}, 1, true)
	}

	if opts.Username != "" {
		clientOpts.SetUsername(opts.Username)
		clientOpts.SetPassword(opts.Password)
	}

	tlsConfig, err := tlsconfig.Load(tlsconfig.Paths{CA: opts.TLSCA, Cert: opts.TLSCert, Key: opts.TLSKey})
	if err != nil {
		return nil, err
	}
	if tlsConfig != nil {
		clientOpts.SetTLSConfig(tlsConfig)
	}

	c.client = paho.NewClient(clientOpts)
	if token := c.client.Connect(); token.Wait() && token.Error() != nil {
		return nil, token.Error()
	}
	return c, nil
}

// Publish publishes a message.
func (c *Client) Publish(topic string, qos byte, retained bool, payload []byte) error {
	if c.debug {
		c.log.Debug("mqtt publish", zap.String("topic", topic), zap.Int("bytes", len(payload)), zap.String("payload", truncatePayload(payload)))
	}
	token := c.client.Publish(topic, qos, retained, payload)
	token.Wait()
	if err := token.Error(); err != nil {
		return err
	}
	if retained {
		c.rememberRetained(topic, payload)
	}
	return nil
}

// Subscribe subscribes to a topic.
func (c *Client) Subscribe(topic string, qos byte, handler paho.MessageHandler) error {
	if c.debug {
		c.log.Debug("mqtt subscribe", zap.String("topic", topic))
	}
	wrapped := handler
	if c.debug {
		wrapped = func(client paho.Client, msg paho.Message) {
			c.log.Debug("mqtt message", zap.String("topic", msg.Topic()), zap.Int("bytes", len(msg.Payload())), zap.String("payload", truncatePayload(msg.Payload())))
			handler(client, msg)
		}
	}
	token := c.client.Subscribe(topic, qos, wrapped)
	token.Wait()
	if err := token.Error(); err != nil {
		return err
	}
	c.mu.Lock()
	c.subs[topic] = subscription{qos: qos, handler: wrapped}
	c.mu.Unlock()
	return nil
}

// Unsubscribe unsubscribes from a topic.
func (c *Client) Unsubscribe(topic string) error {
	if c.debug {
		c.log.Debug("mqtt unsubscribe", zap.String("topic", topic))
	}
	c.mu.Lock()
	delete(c.subs, topic)
	c.mu.Unlock()
	token := c.client.Unsubscribe(topic)
	token.Wait()
	return token.Error()
}

// Close disconnects after giving in-flight publishes a moment to drain.
func (c *Client) Close() {
	c.client.Disconnect(250)
}

func (c *Client) rememberRetained(topic string, payload []byte) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(payload) == 0 {
		delete(c.retained, topic)
		return
	}
	c.retained[topic] = append([]byte(nil), payload...)
}

// restore runs on every connect; the first connect finds nothing to replay.
func (c *Client) restore(pc paho.Client) {
	c.mu.Lock()
	subs := make(map[string]subscription, len(c.subs))
	for topic, sub := range c.subs {
		subs[topic] = sub
	}
	retained := make(map[string][]byte, len(c.retained))
	for topic, payload := range c.retained {
		retained[topic] = payload
	}
	c.mu.Unlock()

	if len(subs) == 0 && len(retained) == 0 {
		return
	}
	for topic, sub := range subs {
		if token := pc.Subscribe(topic, sub.qos, sub.handler); token.Wait() && token.Error() != nil {
			c.log.Warn("mqtt resubscribe failed", zap.String("topic", topic), zap.Error(token.Error()))
		}
	}
	for topic, payload := range retained {
		if token := pc.Publish(topic, 1, true, payload); token.Wait() && token.Error() != nil {
			c.log.Warn("mqtt republish failed", zap.String("topic", topic), zap.Error(token.Error()))
		}
	}
	c.log.Info("mqtt session restored", zap.Int("subscriptions", len(subs)), zap.Int("retained", len(retained)))
}

func truncatePayload(payload []byte) string {
	const limit = 2048
	if len(payload) <= limit {
		return string(payload)
	}
	return string(payload[:limit]) + "..."
}
