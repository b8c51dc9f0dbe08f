package msp

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// BaseTopic is the default MQTT topic prefix for the protocol.
const BaseTopic = "msp/v1"

// ProtocolVersion is the controller protocol version spoken by this server.
// Version 0 denotes a legacy controller that does not understand layout pushes.
const ProtocolVersion = 1

// Command types accepted by a media session.
const (
	TypeConnect         = "session.connect"
	TypeDisconnect      = "session.disconnect"
	TypeCustomCommand   = "session.command"
	TypePing            = "session.ping"
	TypeLibraryRoot     = "library.root"
	TypeLibraryItem     = "library.item"
	TypeLibrarySub      = "library.subscribe"
	TypeLibraryChildren = "library.children"
	TypeQueueAddItems   = "queue.addItems"
	TypePlaybackPlay    = "playback.play"
	TypePlaybackPause   = "playback.pause"
	TypePlaybackSeek    = "playback.seek"
)

// Push types sent from a session to controllers.
const (
	PushLayout          = "layout"
	PushChildrenChanged = "childrenChanged"
	PushCues            = "cues"
)

// Custom command identifiers.
const (
	CommandShuffleOn  = "mss.shuffle.on"
	CommandShuffleOff = "mss.shuffle.off"
)

// Reply error codes.
const (
	CodeBadValue     = "BAD_VALUE"
	CodeInvalid      = "INVALID"
	CodeNotConnected = "NOT_CONNECTED"
	CodeNotAllowed   = "NOT_ALLOWED"
)

// SessionCommands is the base set of session commands granted to every controller.
var SessionCommands = []string{
	TypeDisconnect,
	TypePing,
	TypeLibraryRoot,
	TypeLibraryItem,
	TypeLibrarySub,
	TypeLibraryChildren,
	TypeQueueAddItems,
}

// PlayerCommands is the set of transport controls a controller may be granted.
var PlayerCommands = []string{
	TypePlaybackPlay,
	TypePlaybackPause,
	TypePlaybackSeek,
}

// CommandEnvelope is the common controller command envelope.
type CommandEnvelope struct {
	ID      string          `json:"id"`
	Type    string          `json:"type"`
	TS      int64           `json:"ts"`
	From    string          `json:"from"`
	Session string          `json:"session,omitempty"`
	ReplyTo string          `json:"replyTo,omitempty"`
	Body    json.RawMessage `json:"body"`
}

// ReplyEnvelope is the response envelope for commands.
type ReplyEnvelope struct {
	ID   string          `json:"id"`
	Type string          `json:"type"`
	OK   bool            `json:"ok"`
	TS   int64           `json:"ts"`
	Body json.RawMessage `json:"body,omitempty"`
	Err  *ReplyError     `json:"err,omitempty"`
}

// ReplyError describes an error response.
type ReplyError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// PushEnvelope carries an unsolicited update to a controller.
type PushEnvelope struct {
	Type string          `json:"type"`
	TS   int64           `json:"ts"`
	Body json.RawMessage `json:"body"`
}

// Presence describes a node presence payload.
type Presence struct {
	NodeID string         `json:"nodeId"`
	Kind   string         `json:"kind"`
	Name   string         `json:"name"`
	Caps   map[string]any `json:"caps,omitempty"`
	TS     int64          `json:"ts"`
}

// NewCommand builds a command envelope with a JSON body.
func NewCommand(cmdType string, body any) (CommandEnvelope, error) {
	payload, err := json.Marshal(body)
	if err != nil {
		return CommandEnvelope{}, fmt.Errorf("marshal body: %w", err)
	}

	return CommandEnvelope{
		Type: cmdType,
		Body: payload,
	}, nil
}

// NewPush builds a push envelope with a JSON body.
func NewPush(pushType string, ts int64, body any) (PushEnvelope, error) {
	payload, err := json.Marshal(body)
	if err != nil {
		return PushEnvelope{}, fmt.Errorf("marshal body: %w", err)
	}
	return PushEnvelope{Type: pushType, TS: ts, Body: payload}, nil
}

// ValidateCommandEnvelope validates required fields and session rules.
func ValidateCommandEnvelope(cmd CommandEnvelope) error {
	if strings.TrimSpace(cmd.ID) == "" {
		return errors.New("id is required")
	}
	if strings.TrimSpace(cmd.Type) == "" {
		return errors.New("type is required")
	}
	if cmd.TS <= 0 {
		return errors.New("ts must be a positive unix timestamp")
	}
	if strings.TrimSpace(cmd.From) == "" {
		return errors.New("from is required")
	}
	if len(cmd.Body) == 0 {
		return errors.New("body is required")
	}
	if CommandRequiresSession(cmd.Type) && strings.TrimSpace(cmd.Session) == "" {
		return errors.New("session is required")
	}
	return nil
}

// CommandRequiresSession reports whether a command must carry a negotiated session id.
func CommandRequiresSession(cmdType string) bool {
	return cmdType != TypeConnect
}

// TopicPresence builds the presence topic for a node.
func TopicPresence(topicBase, nodeID string) string {
	return fmt.Sprintf("%s/node/%s/presence", topicBase, nodeID)
}

// TopicCommands builds the command topic for a node.
func TopicCommands(topicBase, nodeID string) string {
	return fmt.Sprintf("%s/node/%s/cmd", topicBase, nodeID)
}

// TopicPush builds the push topic for a connected controller session.
func TopicPush(topicBase, sessionID string) string {
	return fmt.Sprintf("%s/session/%s/push", topicBase, sessionID)
}

// TopicReply builds the reply topic for a controller instance.
func TopicReply(topicBase, controllerID string) string {
	return fmt.Sprintf("%s/reply/%s", topicBase, controllerID)
}
