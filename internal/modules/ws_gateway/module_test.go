package wsgateway

import (
	"encoding/json"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/mikey-austin/media_session/internal/catalog"
	"github.com/mikey-austin/media_session/internal/commands"
	"github.com/mikey-austin/media_session/internal/layout"
	mediasession "github.com/mikey-austin/media_session/internal/modules/media_session"
	"github.com/mikey-austin/media_session/internal/player"
	"github.com/mikey-austin/media_session/internal/session"
	"github.com/mikey-austin/media_session/pkg/msp"
)

type testEnv struct {
	server      *httptest.Server
	controllers *session.Controllers
	player      *player.Local
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	cat, err := catalog.Build(catalog.Description{
		Root: "root",
		Nodes: []catalog.NodeSpec{
			{ID: "root", Title: "Library", Children: []string{"song"}},
			{ID: "song", Title: "Song", Media: &catalog.Media{URL: "http://example.test/song.mp3"}},
		},
	})
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	controllers := session.NewControllers(zap.NewNop())
	p := player.NewLocal(zap.NewNop(), player.Config{}, nil)
	handler, err := session.NewHandler(session.Options{
		Catalog:     cat,
		Layout:      layout.New([]commands.CustomAction{commands.ShuffleOn}, controllers),
		Controllers: controllers,
		Player:      p,
	})
	if err != nil {
		t.Fatalf("handler: %v", err)
	}
	module, err := NewModule(zap.NewNop(), mediasession.NewService(zap.NewNop(), handler, p), Config{})
	if err != nil {
		t.Fatalf("new module: %v", err)
	}
	server := httptest.NewServer(module.Handler())
	t.Cleanup(server.Close)
	return &testEnv{server: server, controllers: controllers, player: p}
}

func (e *testEnv) dial(t *testing.T) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(e.server.URL, "http") + "/session"
	ws, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	t.Cleanup(func() { ws.Close() })
	return ws
}

func send(t *testing.T, ws *websocket.Conn, cmdType string, body any) {
	t.Helper()
	cmd, err := msp.NewCommand(cmdType, body)
	if err != nil {
		t.Fatalf("command: %v", err)
	}
	cmd.ID = "id-" + cmdType
	cmd.TS = time.Now().Unix()
	cmd.From = "ws-test"
	if err := ws.WriteJSON(cmd); err != nil {
		t.Fatalf("write: %v", err)
	}
}

func readReply(t *testing.T, ws *websocket.Conn) msp.ReplyEnvelope {
	t.Helper()
	for {
		_ = ws.SetReadDeadline(time.Now().Add(2 * time.Second))
		_, data, err := ws.ReadMessage()
		if err != nil {
			t.Fatalf("read: %v", err)
		}
		var head struct {
			ID string `json:"id"`
			OK *bool  `json:"ok"`
		}
		if err := json.Unmarshal(data, &head); err != nil {
			t.Fatalf("decode: %v", err)
		}
		if head.OK == nil {
			continue
		}
		var reply msp.ReplyEnvelope
		if err := json.Unmarshal(data, &reply); err != nil {
			t.Fatalf("decode reply: %v", err)
		}
		return reply
	}
}

func readPush(t *testing.T, ws *websocket.Conn) msp.PushEnvelope {
	t.Helper()
	_ = ws.SetReadDeadline(time.Now().Add(2 * time.Second))
	var push msp.PushEnvelope
	if err := ws.ReadJSON(&push); err != nil {
		t.Fatalf("read push: %v", err)
	}
	return push
}

func TestConnectAndLayoutPush(t *testing.T) {
	env := newTestEnv(t)
	ws := env.dial(t)

	send(t, ws, msp.TypeConnect, msp.ConnectBody{Name: "watch", ProtocolVersion: 1})
	reply := readReply(t, ws)
	if !reply.OK {
		t.Fatalf("connect failed: %+v", reply.Err)
	}
	var body msp.ConnectReply
	if err := json.Unmarshal(reply.Body, &body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body.SessionID == "" {
		t.Fatalf("expected session id")
	}

	push := readPush(t, ws)
	var layoutPush msp.LayoutPush
	if err := json.Unmarshal(push.Body, &layoutPush); err != nil {
		t.Fatalf("decode layout: %v", err)
	}
	if push.Type != msp.PushLayout || layoutPush.Buttons[0].Identifier != msp.CommandShuffleOn {
		t.Fatalf("unexpected push %+v", push)
	}
}

func TestCommandsBeforeConnect(t *testing.T) {
	env := newTestEnv(t)
	ws := env.dial(t)
	send(t, ws, msp.TypeLibraryRoot, msp.LibraryRootBody{})
	reply := readReply(t, ws)
	if reply.OK || reply.Err.Code != msp.CodeNotConnected {
		t.Fatalf("expected NOT_CONNECTED, got %+v", reply)
	}
}

func TestInvalidEnvelope(t *testing.T) {
	env := newTestEnv(t)
	ws := env.dial(t)
	if err := ws.WriteMessage(websocket.TextMessage, []byte("{")); err != nil {
		t.Fatalf("write: %v", err)
	}
	reply := readReply(t, ws)
	if reply.OK || reply.Err.Code != msp.CodeInvalid {
		t.Fatalf("expected INVALID, got %+v", reply)
	}
}

func TestShuffleBroadcastAcrossConnections(t *testing.T) {
	env := newTestEnv(t)
	a := env.dial(t)
	b := env.dial(t)
	for _, ws := range []*websocket.Conn{a, b} {
		send(t, ws, msp.TypeConnect, msp.ConnectBody{Name: "c", ProtocolVersion: 1})
		if reply := readReply(t, ws); !reply.OK {
			t.Fatalf("connect failed: %+v", reply.Err)
		}
		readPush(t, ws)
	}

	send(t, a, msp.TypeCustomCommand, msp.CustomCommandBody{Identifier: msp.CommandShuffleOn})
	var push msp.PushEnvelope
	var sawReply bool
	for i := 0; i < 2; i++ {
		_ = a.SetReadDeadline(time.Now().Add(2 * time.Second))
		_, data, err := a.ReadMessage()
		if err != nil {
			t.Fatalf("read: %v", err)
		}
		if strings.Contains(string(data), `"ok"`) {
			sawReply = true
			continue
		}
		_ = json.Unmarshal(data, &push)
	}
	if !sawReply || push.Type != msp.PushLayout {
		t.Fatalf("expected reply and layout push on a")
	}
	other := readPush(t, b)
	var layoutPush msp.LayoutPush
	_ = json.Unmarshal(other.Body, &layoutPush)
	if layoutPush.Buttons[0].Identifier != msp.CommandShuffleOff {
		t.Fatalf("expected shuffle off on b, got %+v", layoutPush)
	}
	if !env.player.ShuffleEnabled() {
		t.Fatalf("expected shuffle on")
	}
}

func TestCloseDisconnectsController(t *testing.T) {
	env := newTestEnv(t)
	ws := env.dial(t)
	send(t, ws, msp.TypeConnect, msp.ConnectBody{Name: "legacy"})
	if reply := readReply(t, ws); !reply.OK {
		t.Fatalf("connect failed: %+v", reply.Err)
	}
	if env.controllers.Len() != 1 {
		t.Fatalf("expected 1 controller")
	}
	ws.Close()

	deadline := time.Now().Add(2 * time.Second)
	for env.controllers.Len() != 0 {
		if time.Now().After(deadline) {
			t.Fatalf("controller not removed after close")
		}
		time.Sleep(10 * time.Millisecond)
	}
}
