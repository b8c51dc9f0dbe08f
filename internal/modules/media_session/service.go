package mediasession

import (
	"encoding/json"
	"errors"
	"strings"

	"github.com/mikey-austin/media_session/internal/adapters/clock"
	"github.com/mikey-austin/media_session/internal/adapters/idgen"
	"github.com/mikey-austin/media_session/internal/session"
	"github.com/mikey-austin/media_session/pkg/msp"
	"go.uber.org/zap"
)

// Player is the transport surface a controller can drive directly.
type Player interface {
	Enqueue(items []msp.MediaItem) int
	Play() error
	Pause() error
	Seek(positionMS int64) error
}

// Service translates command envelopes into session handler callbacks. It is
// shared by every transport of a daemon.
type Service struct {
	log     *zap.Logger
	handler *session.Handler
	player  Player
	ids     interface{ NewID() string }
	clock   interface{ NowUnix() int64 }
}

// NewService creates a service around a handler.
func NewService(log *zap.Logger, handler *session.Handler, player Player) *Service {
	if log == nil {
		log = zap.NewNop()
	}
	return &Service{log: log, handler: handler, player: player, ids: idgen.Generator{}, clock: clock.Clock{}}
}

// Now returns the unix timestamp used in envelopes.
func (s *Service) Now() int64 {
	return s.clock.NowUnix()
}

// Connect negotiates a new controller. sinkFor receives the allocated session
// id and returns the push channel for it. The caller must deliver the reply
// before calling PostConnect.
func (s *Service) Connect(cmd msp.CommandEnvelope, sinkFor func(sessionID string) session.Sink) (msp.ReplyEnvelope, *session.Controller) {
	if err := msp.ValidateCommandEnvelope(cmd); err != nil {
		return s.errorReply(cmd, msp.CodeInvalid, err.Error()), nil
	}
	if cmd.Type != msp.TypeConnect {
		return s.errorReply(cmd, msp.CodeInvalid, "expected "+msp.TypeConnect), nil
	}
	var body msp.ConnectBody
	if err := json.Unmarshal(cmd.Body, &body); err != nil {
		return s.errorReply(cmd, msp.CodeInvalid, "invalid body"), nil
	}
	name := strings.TrimSpace(body.Name)
	if name == "" {
		name = cmd.From
	}

	sessionID := s.ids.NewID()
	c := session.NewController(sessionID, name, body.ProtocolVersion, sinkFor(sessionID))
	result := s.handler.OnConnect(c)
	if !result.Accepted {
		return s.errorReply(cmd, msp.CodeNotAllowed, "connection refused"), nil
	}
	return s.okReply(cmd, msp.ConnectReply{
		SessionID:             sessionID,
		ProtocolVersion:       msp.ProtocolVersion,
		AllowedCommands:       result.AllowedCommands,
		AllowedPlayerCommands: result.AllowedPlayerCommands,
	}), c
}

// PostConnect runs once the connect reply has been delivered.
func (s *Service) PostConnect(c *session.Controller) {
	if c != nil {
		s.handler.OnPostConnect(c)
	}
}

// Disconnect drops a controller, for transports that detect connection loss.
func (s *Service) Disconnect(c *session.Controller) {
	if c != nil {
		s.handler.OnDisconnect(c)
	}
}

// Dispatch handles a command from an already connected controller.
func (s *Service) Dispatch(cmd msp.CommandEnvelope) msp.ReplyEnvelope {
	if err := msp.ValidateCommandEnvelope(cmd); err != nil {
		return s.errorReply(cmd, msp.CodeInvalid, err.Error())
	}
	if cmd.Type == msp.TypeConnect {
		return s.errorReply(cmd, msp.CodeInvalid, "already connected")
	}
	c, ok := s.handler.Controllers().Get(cmd.Session)
	if !ok || c.State() != session.Connected {
		return s.errorReply(cmd, msp.CodeNotConnected, "unknown session")
	}
	if err := s.authorize(c, cmd.Type); err != nil {
		return s.errorReply(cmd, msp.CodeNotAllowed, err.Error())
	}

	switch cmd.Type {
	case msp.TypeDisconnect:
		s.handler.OnDisconnect(c)
		return s.okReply(cmd, struct{}{})
	case msp.TypePing:
		return s.okReply(cmd, struct{}{})
	case msp.TypeCustomCommand:
		return s.handleCustomCommand(c, cmd)
	case msp.TypeLibraryRoot:
		return s.handleLibraryRoot(c, cmd)
	case msp.TypeLibraryItem:
		return s.handleLibraryItem(c, cmd)
	case msp.TypeLibrarySub:
		return s.handleLibrarySubscribe(c, cmd)
	case msp.TypeLibraryChildren:
		return s.handleLibraryChildren(c, cmd)
	case msp.TypeQueueAddItems:
		return s.handleQueueAddItems(c, cmd)
	case msp.TypePlaybackPlay:
		return s.playerReply(cmd, s.player.Play())
	case msp.TypePlaybackPause:
		return s.playerReply(cmd, s.player.Pause())
	case msp.TypePlaybackSeek:
		var body msp.PlaybackSeekBody
		if err := json.Unmarshal(cmd.Body, &body); err != nil {
			return s.errorReply(cmd, msp.CodeInvalid, "invalid body")
		}
		return s.playerReply(cmd, s.player.Seek(body.PositionMS))
	default:
		return s.errorReply(cmd, msp.CodeInvalid, "unsupported command")
	}
}

func (s *Service) authorize(c *session.Controller, cmdType string) error {
	switch cmdType {
	case msp.TypeCustomCommand:
		return nil
	case msp.TypePlaybackPlay, msp.TypePlaybackPause, msp.TypePlaybackSeek:
		if !c.AllowedPlayer(cmdType) {
			return errors.New("player command not allowed")
		}
		if s.player == nil {
			return errors.New("no player")
		}
		return nil
	default:
		if !c.Allowed(cmdType) {
			return errors.New("command not allowed")
		}
		return nil
	}
}

func (s *Service) handleCustomCommand(c *session.Controller, cmd msp.CommandEnvelope) msp.ReplyEnvelope {
	var body msp.CustomCommandBody
	if err := json.Unmarshal(cmd.Body, &body); err != nil {
		return s.errorReply(cmd, msp.CodeInvalid, "invalid body")
	}
	result := s.handler.OnCustomCommand(c, body.Identifier, body.Args)
	return s.okReply(cmd, msp.CustomCommandReply{Applied: result.Applied})
}

func (s *Service) handleLibraryRoot(c *session.Controller, cmd msp.CommandEnvelope) msp.ReplyEnvelope {
	var body msp.LibraryRootBody
	if err := json.Unmarshal(cmd.Body, &body); err != nil {
		return s.errorReply(cmd, msp.CodeInvalid, "invalid body")
	}
	return s.okReply(cmd, session.MediaItem(s.handler.OnGetLibraryRoot(c, body.Params)))
}

func (s *Service) handleLibraryItem(c *session.Controller, cmd msp.CommandEnvelope) msp.ReplyEnvelope {
	var body msp.LibraryItemBody
	if err := json.Unmarshal(cmd.Body, &body); err != nil {
		return s.errorReply(cmd, msp.CodeInvalid, "invalid body")
	}
	node, err := s.handler.OnGetItem(c, body.MediaID)
	if err != nil {
		return s.handlerError(cmd, err)
	}
	return s.okReply(cmd, session.MediaItem(node))
}

func (s *Service) handleLibrarySubscribe(c *session.Controller, cmd msp.CommandEnvelope) msp.ReplyEnvelope {
	var body msp.LibrarySubscribeBody
	if err := json.Unmarshal(cmd.Body, &body); err != nil {
		return s.errorReply(cmd, msp.CodeInvalid, "invalid body")
	}
	if err := s.handler.OnSubscribe(c, body.ParentID, body.Params); err != nil {
		return s.handlerError(cmd, err)
	}
	return s.okReply(cmd, struct{}{})
}

func (s *Service) handleLibraryChildren(c *session.Controller, cmd msp.CommandEnvelope) msp.ReplyEnvelope {
	var body msp.LibraryChildrenBody
	if err := json.Unmarshal(cmd.Body, &body); err != nil {
		return s.errorReply(cmd, msp.CodeInvalid, "invalid body")
	}
	children, err := s.handler.OnGetChildren(c, body.ParentID, body.Page, body.PageSize, body.Params)
	if err != nil {
		return s.handlerError(cmd, err)
	}
	return s.okReply(cmd, msp.LibraryChildrenReply{ParentID: body.ParentID, Items: session.MediaItems(children)})
}

func (s *Service) handleQueueAddItems(c *session.Controller, cmd msp.CommandEnvelope) msp.ReplyEnvelope {
	var body msp.QueueAddItemsBody
	if err := json.Unmarshal(cmd.Body, &body); err != nil {
		return s.errorReply(cmd, msp.CodeInvalid, "invalid body")
	}
	items := s.handler.OnAddMediaItems(c, body.Items)
	if s.player != nil {
		queued := s.player.Enqueue(items)
		s.log.Debug("queued items", zap.String("controller", c.ID), zap.Int("requested", len(body.Items)), zap.Int("queued", queued))
	}
	return s.okReply(cmd, msp.QueueAddItemsReply{Items: items})
}

func (s *Service) playerReply(cmd msp.CommandEnvelope, err error) msp.ReplyEnvelope {
	if err != nil {
		return s.errorReply(cmd, msp.CodeInvalid, err.Error())
	}
	return s.okReply(cmd, struct{}{})
}

func (s *Service) handlerError(cmd msp.CommandEnvelope, err error) msp.ReplyEnvelope {
	if errors.Is(err, session.ErrBadValue) {
		return s.errorReply(cmd, msp.CodeBadValue, err.Error())
	}
	return s.errorReply(cmd, msp.CodeInvalid, err.Error())
}

func (s *Service) okReply(cmd msp.CommandEnvelope, body any) msp.ReplyEnvelope {
	reply := msp.ReplyEnvelope{ID: cmd.ID, Type: "ack", OK: true, TS: s.clock.NowUnix()}
	payload, err := json.Marshal(body)
	if err != nil {
		return s.errorReply(cmd, msp.CodeInvalid, "encode reply")
	}
	reply.Body = payload
	return reply
}

func (s *Service) errorReply(cmd msp.CommandEnvelope, code string, message string) msp.ReplyEnvelope {
	return msp.ReplyEnvelope{
		ID:   cmd.ID,
		Type: "error",
		OK:   false,
		TS:   s.clock.NowUnix(),
		Err:  &msp.ReplyError{Code: code, Message: message},
	}
}
