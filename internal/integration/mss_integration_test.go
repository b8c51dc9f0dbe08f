//go:build integration
// +build integration

package integration

import (
	"context"
	"errors"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"syscall"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/mikey-austin/media_session/internal/adapters/clock"
	"github.com/mikey-austin/media_session/internal/adapters/idgen"
	"github.com/mikey-austin/media_session/internal/adapters/mqtt"
	"github.com/mikey-austin/media_session/internal/adapters/mqttserver"
	"github.com/mikey-austin/media_session/internal/core"
	embeddedmqtt "github.com/mikey-austin/media_session/internal/modules/embedded_mqtt"
	mediasession "github.com/mikey-austin/media_session/internal/modules/media_session"
	"github.com/mikey-austin/media_session/internal/mssd"
	"github.com/mikey-austin/media_session/pkg/msp"
)

const integrationCatalog = `root = "root"
title = "Library"

[[tracks]]
id = "blue"
title = "Blue Train"
album = "Blue Train"
artist = "John Coltrane"
source = "http://example.test/blue.mp3"

[[tracks]]
id = "sowhat"
title = "So What"
album = "Kind of Blue"
artist = "Miles Davis"
source = "http://example.test/sowhat.mp3"
`

type memorySessionStore struct {
	mu    sync.Mutex
	store map[string]msp.SessionRef
}

func newMemorySessionStore() *memorySessionStore {
	return &memorySessionStore{store: map[string]msp.SessionRef{}}
}

func (m *memorySessionStore) Get(nodeID string) (msp.SessionRef, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	ref, ok := m.store[nodeID]
	return ref, ok, nil
}

func (m *memorySessionStore) Put(nodeID string, ref msp.SessionRef) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.store[nodeID] = ref
	return nil
}

func (m *memorySessionStore) Clear(nodeID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.store, nodeID)
	return nil
}

type integrationHarness struct {
	ctx      context.Context
	nodeID   string
	client   *mqtt.Client
	sessions *memorySessionStore
	service  core.Service
	session  *mssd.Session
}

func TestSessionFlowOverMQTT(t *testing.T) {
	h := setupIntegration(t)
	ctx := h.ctx

	servers, err := h.service.ListServers(ctx)
	if err != nil {
		t.Fatalf("list servers: %v", err)
	}
	if len(servers.Servers) != 1 || servers.Servers[0].NodeID != h.nodeID {
		t.Fatalf("expected server %s, got %+v", h.nodeID, servers.Servers)
	}

	connected, err := h.service.Connect(ctx, "")
	if err != nil {
		t.Fatalf("connect: %v", err)
	}
	if connected.Session.SessionID == "" {
		t.Fatalf("expected session id")
	}

	root, err := h.service.Root(ctx, "")
	if err != nil {
		t.Fatalf("root: %v", err)
	}
	if root.Item.ID != "root" || !root.Item.Browsable {
		t.Fatalf("unexpected root: %+v", root.Item)
	}
	children, err := h.service.Children(ctx, "", "")
	if err != nil {
		t.Fatalf("children: %v", err)
	}
	if len(children.Items) == 0 {
		t.Fatalf("expected root children")
	}

	item, err := h.service.Item(ctx, "", "blue")
	if err != nil {
		t.Fatalf("item: %v", err)
	}
	if item.Item.Title != "Blue Train" || !item.Item.Playable {
		t.Fatalf("unexpected item: %+v", item.Item)
	}
	if _, err := h.service.Item(ctx, "", "missing"); core.ExitCode(err) != core.ExitNotFound {
		t.Fatalf("expected not found, got %v", err)
	}

	queued, err := h.service.AddItems(ctx, "", []string{"blue"}, "play So What")
	if err != nil {
		t.Fatalf("add items: %v", err)
	}
	if len(queued.Items) != 2 || queued.Items[0].ID != "blue" || queued.Items[1].ID != "sowhat" {
		t.Fatalf("unexpected queued items: %+v", queued.Items)
	}

	shuffle, err := h.service.Shuffle(ctx, "", true)
	if err != nil {
		t.Fatalf("shuffle: %v", err)
	}
	if !shuffle.Applied || !h.session.Player.ShuffleEnabled() {
		t.Fatalf("expected shuffle applied")
	}
	custom, err := h.service.Custom(ctx, "", "no.such.command")
	if err != nil {
		t.Fatalf("custom: %v", err)
	}
	if custom.Applied {
		t.Fatalf("unknown command should not apply")
	}

	if err := h.service.Disconnect(ctx, ""); err != nil {
		t.Fatalf("disconnect: %v", err)
	}
	if _, ok, _ := h.sessions.Get(h.nodeID); ok {
		t.Fatalf("expected cached session cleared")
	}
}

func TestStaleSessionReconnects(t *testing.T) {
	h := setupIntegration(t)
	ctx := h.ctx

	if err := h.sessions.Put(h.nodeID, msp.SessionRef{SessionID: "stale", ProtocolVersion: msp.ProtocolVersion}); err != nil {
		t.Fatalf("seed session: %v", err)
	}
	if _, err := h.service.Root(ctx, ""); err != nil {
		t.Fatalf("root with stale session: %v", err)
	}
	ref, ok, _ := h.sessions.Get(h.nodeID)
	if !ok || ref.SessionID == "stale" {
		t.Fatalf("expected a fresh session, got %+v", ref)
	}
}

func TestWatchReceivesShufflePush(t *testing.T) {
	h := setupIntegration(t)
	ctx, cancel := context.WithTimeout(h.ctx, 5*time.Second)
	defer cancel()

	if _, err := h.service.Connect(ctx, ""); err != nil {
		t.Fatalf("connect: %v", err)
	}
	pushes, errs, err := h.service.Watch(ctx, "")
	if err != nil {
		t.Fatalf("watch: %v", err)
	}
	time.Sleep(100 * time.Millisecond)
	if _, err := h.service.Shuffle(ctx, "", true); err != nil {
		t.Fatalf("shuffle: %v", err)
	}

	for {
		select {
		case push, ok := <-pushes:
			if !ok {
				t.Fatalf("push channel closed")
			}
			if push.Type == msp.PushLayout {
				return
			}
		case err := <-errs:
			if err != nil {
				t.Fatalf("watch error: %v", err)
			}
		case <-ctx.Done():
			t.Fatalf("timed out waiting for layout push")
		}
	}
}

func setupIntegration(t *testing.T) *integrationHarness {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)

	logger := testLogger()
	listen := freeListenAddr(t)
	brokerURL := embeddedmqtt.BrokerURL(listen, false)

	broker, err := embeddedmqtt.NewModule(logger, embeddedmqtt.Config{Listen: listen, AllowAnonymous: true})
	if err != nil {
		t.Fatalf("embedded mqtt module: %v", err)
	}
	runModule(t, ctx, "embedded_mqtt", broker.Run)
	waitForBrokerReady(t, listen)

	catalogPath := filepath.Join(t.TempDir(), "catalog.toml")
	if err := os.WriteFile(catalogPath, []byte(integrationCatalog), 0o600); err != nil {
		t.Fatalf("write catalog: %v", err)
	}
	sess, err := mssd.BuildSession(ctx, logger, mssd.MediaSessionConfig{CatalogPath: catalogPath})
	if err != nil {
		t.Fatalf("build session: %v", err)
	}

	nodeID := fmt.Sprintf("mss:session:integration:%s", idgen.Generator{}.NewID())
	presenceTopic := msp.TopicPresence(msp.BaseTopic, nodeID)
	serverClient := waitForMQTTServerClient(t, brokerURL, presenceTopic)
	module, err := mediasession.NewModule(logger, serverClient, sess.Service, mediasession.Config{
		NodeID:    nodeID,
		TopicBase: msp.BaseTopic,
		Name:      "Integration",
	})
	if err != nil {
		t.Fatalf("media session module: %v", err)
	}
	runModule(t, ctx, "media_session", module.Run)

	client := waitForMQTTClient(t, brokerURL)
	t.Cleanup(client.Close)
	cfg := core.Config{Identity: "integration", TopicBase: msp.BaseTopic}
	sessions := newMemorySessionStore()
	service := core.Service{
		Broker:   client,
		Resolver: core.Resolver{Presence: client, Config: cfg},
		Clock:    clock.Clock{},
		IDGen:    idgen.Generator{},
		Sessions: sessions,
		Config:   cfg,
	}

	waitForPresence(t, client, nodeID)
	return &integrationHarness{
		ctx:      ctx,
		nodeID:   nodeID,
		client:   client,
		sessions: sessions,
		service:  service,
		session:  sess,
	}
}

func runModule(t *testing.T, ctx context.Context, name string, run func(context.Context) error) {
	t.Helper()
	errCh := make(chan error, 1)
	go func() {
		errCh <- run(ctx)
	}()
	t.Cleanup(func() {
		select {
		case err := <-errCh:
			if err != nil && !errors.Is(err, context.Canceled) {
				t.Errorf("%s module failed: %v", name, err)
			}
		case <-time.After(200 * time.Millisecond):
		}
	})
}

func waitForMQTTClient(t *testing.T, brokerURL string) *mqtt.Client {
	t.Helper()
	gen := idgen.Generator{}
	var lastErr error
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		client, err := mqtt.NewClient(mqtt.Options{
			BrokerURL: brokerURL,
			ClientID:  "mss-int-" + gen.NewID(),
			TopicBase: msp.BaseTopic,
			Timeout:   2 * time.Second,
		})
		if err == nil {
			return client
		}
		lastErr = err
		time.Sleep(50 * time.Millisecond)
	}
	t.Fatalf("connect mss client: %v", lastErr)
	return nil
}

func waitForMQTTServerClient(t *testing.T, brokerURL string, willTopic string) *mqttserver.Client {
	t.Helper()
	gen := idgen.Generator{}
	var lastErr error
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		client, err := mqttserver.NewClient(mqttserver.Options{
			BrokerURL: brokerURL,
			ClientID:  "mssd-int-" + gen.NewID(),
			Timeout:   2 * time.Second,
			WillTopic: willTopic,
		})
		if err == nil {
			t.Cleanup(client.Close)
			return client
		}
		lastErr = err
		time.Sleep(50 * time.Millisecond)
	}
	t.Fatalf("connect mqtt server client: %v", lastErr)
	return nil
}

func waitForPresence(t *testing.T, client *mqtt.Client, nodeID string) {
	t.Helper()
	deadline := time.Now().Add(4 * time.Second)
	for time.Now().Before(deadline) {
		presence, err := client.ListPresence(context.Background())
		if err == nil {
			for _, p := range presence {
				if p.NodeID == nodeID {
					return
				}
			}
		}
		time.Sleep(50 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for presence: %s", nodeID)
}

func freeListenAddr(t *testing.T) string {
	t.Helper()
	listener, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		if errors.Is(err, syscall.EPERM) || strings.Contains(err.Error(), "operation not permitted") {
			t.Skip("network listen not permitted in this environment")
		}
		t.Fatalf("listen: %v", err)
	}
	addr := listener.Addr().String()
	if err := listener.Close(); err != nil {
		t.Fatalf("close listener: %v", err)
	}
	return addr
}

func waitForBrokerReady(t *testing.T, listen string) {
	t.Helper()
	deadline := time.Now().Add(3 * time.Second)
	var lastErr error
	for time.Now().Before(deadline) {
		conn, err := net.DialTimeout("tcp", listen, 200*time.Millisecond)
		if err == nil {
			_ = conn.Close()
			return
		}
		if errors.Is(err, syscall.EPERM) || strings.Contains(err.Error(), "operation not permitted") {
			t.Skip("network dial not permitted in this environment")
		}
		lastErr = err
		time.Sleep(50 * time.Millisecond)
	}
	t.Fatalf("broker not ready: %v", lastErr)
}

func testLogger() *zap.Logger {
	if strings.EqualFold(os.Getenv("MSS_INTEGRATION_DEBUG"), "1") || strings.EqualFold(os.Getenv("MSS_INTEGRATION_DEBUG"), "true") {
		logger, err := zap.NewDevelopment()
		if err == nil {
			return logger
		}
	}
	return zap.NewNop()
}
