// Package wsgateway serves the media session to controllers over WebSocket.
// Each connection carries exactly one controller.
package wsgateway

import (
	"context"
	"encoding/json"
	"errors"
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	mediasession "github.com/mikey-austin/media_session/internal/modules/media_session"
	"github.com/mikey-austin/media_session/internal/session"
	"github.com/mikey-austin/media_session/pkg/msp"
)

const writeWait = 10 * time.Second

// Config configures the gateway.
type Config struct {
	Listen string
	Path   string
}

// Module accepts WebSocket controllers.
type Module struct {
	log      *zap.Logger
	service  *mediasession.Service
	config   Config
	upgrader websocket.Upgrader
}

// NewModule creates a gateway module.
func NewModule(log *zap.Logger, service *mediasession.Service, cfg Config) (*Module, error) {
	if service == nil {
		return nil, errors.New("service required")
	}
	if strings.TrimSpace(cfg.Listen) == "" {
		cfg.Listen = "127.0.0.1:8787"
	}
	if strings.TrimSpace(cfg.Path) == "" {
		cfg.Path = "/session"
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Module{
		log:     log,
		service: service,
		config:  cfg,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
			CheckOrigin:     func(*http.Request) bool { return true },
		},
	}, nil
}

// Handler returns the HTTP handler serving the WebSocket endpoint.
func (m *Module) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc(m.config.Path, m.serveWS)
	return mux
}

// Run listens until ctx is done.
func (m *Module) Run(ctx context.Context) error {
	listener, err := net.Listen("tcp", m.config.Listen)
	if err != nil {
		return err
	}
	server := &http.Server{Handler: m.Handler(), ReadHeaderTimeout: 5 * time.Second}

	errCh := make(chan error, 1)
	go func() {
		errCh <- server.Serve(listener)
	}()
	m.log.Info("websocket gateway listening", zap.String("addr", listener.Addr().String()), zap.String("path", m.config.Path))

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = server.Shutdown(shutdownCtx)
		return nil
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}

type conn struct {
	ws *websocket.Conn
	mu sync.Mutex
}

// write sends a text frame guarded by the connection's mutex and write deadline.
func (c *conn) write(payload []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.ws.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
		return err
	}
	return c.ws.WriteMessage(websocket.TextMessage, payload)
}

func (m *Module) serveWS(w http.ResponseWriter, r *http.Request) {
	ws, err := m.upgrader.Upgrade(w, r, nil)
	if err != nil {
		m.log.Debug("websocket upgrade failed", zap.Error(err))
		return
	}
	c := &conn{ws: ws}
	defer ws.Close()

	var controller *session.Controller
	defer func() {
		m.service.Disconnect(controller)
	}()

	for {
		_, data, err := ws.ReadMessage()
		if err != nil {
			m.log.Debug("websocket read error", zap.Error(err))
			return
		}
		var cmd msp.CommandEnvelope
		if err := json.Unmarshal(data, &cmd); err != nil {
			m.reply(c, msp.ReplyEnvelope{
				Type: "error",
				TS:   m.service.Now(),
				Err:  &msp.ReplyError{Code: msp.CodeInvalid, Message: "invalid envelope"},
			})
			continue
		}

		if cmd.Type == msp.TypeConnect {
			if controller != nil && controller.State() == session.Connected {
				m.reply(c, msp.ReplyEnvelope{
					ID:   cmd.ID,
					Type: "error",
					TS:   m.service.Now(),
					Err:  &msp.ReplyError{Code: msp.CodeInvalid, Message: "already connected"},
				})
				continue
			}
			reply, accepted := m.service.Connect(cmd, func(string) session.Sink {
				return mediasession.NewPushSink(c.write, m.service.Now)
			})
			m.reply(c, reply)
			if accepted != nil {
				controller = accepted
				m.service.PostConnect(controller)
			}
			continue
		}

		if controller == nil {
			m.reply(c, msp.ReplyEnvelope{
				ID:   cmd.ID,
				Type: "error",
				TS:   m.service.Now(),
				Err:  &msp.ReplyError{Code: msp.CodeNotConnected, Message: "connect first"},
			})
			continue
		}
		cmd.Session = controller.ID
		m.reply(c, m.service.Dispatch(cmd))
	}
}

func (m *Module) reply(c *conn, reply msp.ReplyEnvelope) {
	payload, err := json.Marshal(reply)
	if err != nil {
		m.log.Warn("encode reply", zap.Error(err))
		return
	}
	if err := c.write(payload); err != nil {
		m.log.Debug("websocket write failed", zap.Error(err))
	}
}
