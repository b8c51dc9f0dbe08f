package core

import (
	"context"
	"encoding/json"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/mikey-austin/media_session/internal/ports"
	"github.com/mikey-austin/media_session/pkg/msp"
)

// Service orchestrates mss CLI use cases.
type Service struct {
	Broker    ports.Broker
	Resolver  Resolver
	Clock     ports.Clock
	IDGen     ports.IDGen
	Sessions  ports.SessionStore
	Config    Config
	KeepAlive time.Duration
}

// DefaultControllerName is sent on connect when the config names none.
const DefaultControllerName = "mss"

// DefaultKeepAlive is the ping interval Watch uses to keep its session from
// expiring on the server.
const DefaultKeepAlive = time.Minute

// ListServers returns the media session servers advertising presence.
func (s Service) ListServers(ctx context.Context) (ServersResult, error) {
	nodes, err := s.Broker.ListPresence(ctx)
	if err != nil {
		return ServersResult{}, WrapError(ExitRuntime, "list servers", err)
	}
	return ServersResult{Servers: filterPresenceByKind(nodes, SessionKind)}, nil
}

// Connect negotiates a fresh controller session and caches it.
func (s Service) Connect(ctx context.Context, selector string) (ConnectResult, error) {
	server, err := s.Resolver.ResolveServer(ctx, selector)
	if err != nil {
		return ConnectResult{}, err
	}
	ref, err := s.connect(ctx, server.NodeID)
	if err != nil {
		return ConnectResult{}, err
	}
	return ConnectResult{ServerID: server.NodeID, Session: ref}, nil
}

// Disconnect ends the cached session for a server.
func (s Service) Disconnect(ctx context.Context, selector string) error {
	server, err := s.Resolver.ResolveServer(ctx, selector)
	if err != nil {
		return err
	}
	ref, ok, err := s.Sessions.Get(server.NodeID)
	if err != nil {
		return WrapError(ExitRuntime, "load session", err)
	}
	if !ok {
		return &CLIError{Code: ExitNotConnected, Msg: "not connected: run 'mss connect'"}
	}

	_, err = s.publish(ctx, server.NodeID, ref.SessionID, msp.TypeDisconnect, msp.DisconnectBody{})
	// The server may already have dropped the session; forget it either way.
	if clearErr := s.Sessions.Clear(server.NodeID); clearErr != nil {
		return WrapError(ExitRuntime, "clear session", clearErr)
	}
	if err != nil && ExitCode(err) != ExitNotConnected {
		return err
	}
	return nil
}

// Root returns the catalog root of a server.
func (s Service) Root(ctx context.Context, selector string) (ItemResult, error) {
	var item msp.MediaItem
	serverID, err := s.call(ctx, selector, msp.TypeLibraryRoot, msp.LibraryRootBody{}, &item)
	if err != nil {
		return ItemResult{}, err
	}
	return ItemResult{ServerID: serverID, Item: item}, nil
}

// Item looks up one catalog node.
func (s Service) Item(ctx context.Context, selector string, mediaID string) (ItemResult, error) {
	if strings.TrimSpace(mediaID) == "" {
		return ItemResult{}, &CLIError{Code: ExitUsage, Msg: "media id required"}
	}
	var item msp.MediaItem
	serverID, err := s.call(ctx, selector, msp.TypeLibraryItem, msp.LibraryItemBody{MediaID: mediaID}, &item)
	if err != nil {
		return ItemResult{}, err
	}
	return ItemResult{ServerID: serverID, Item: item}, nil
}

// Children lists the children of a catalog node. An empty parent browses the root.
func (s Service) Children(ctx context.Context, selector string, parentID string) (ChildrenResult, error) {
	if strings.TrimSpace(parentID) == "" {
		root, err := s.Root(ctx, selector)
		if err != nil {
			return ChildrenResult{}, err
		}
		parentID = root.Item.ID
	}
	var reply msp.LibraryChildrenReply
	serverID, err := s.call(ctx, selector, msp.TypeLibraryChildren, msp.LibraryChildrenBody{ParentID: parentID}, &reply)
	if err != nil {
		return ChildrenResult{}, err
	}
	return ChildrenResult{ServerID: serverID, ParentID: parentID, Items: reply.Items}, nil
}

// Subscribe asks the server to push the child count of a node.
func (s Service) Subscribe(ctx context.Context, selector string, parentID string) error {
	if strings.TrimSpace(parentID) == "" {
		return &CLIError{Code: ExitUsage, Msg: "parent id required"}
	}
	_, err := s.call(ctx, selector, msp.TypeLibrarySub, msp.LibrarySubscribeBody{ParentID: parentID}, nil)
	return err
}

// Custom sends a custom command by identifier.
func (s Service) Custom(ctx context.Context, selector string, identifier string) (CustomResult, error) {
	if strings.TrimSpace(identifier) == "" {
		return CustomResult{}, &CLIError{Code: ExitUsage, Msg: "command identifier required"}
	}
	var reply msp.CustomCommandReply
	serverID, err := s.call(ctx, selector, msp.TypeCustomCommand, msp.CustomCommandBody{Identifier: identifier}, &reply)
	if err != nil {
		return CustomResult{}, err
	}
	return CustomResult{ServerID: serverID, Identifier: identifier, Applied: reply.Applied}, nil
}

// Shuffle turns shuffle on or off through the custom command pair.
func (s Service) Shuffle(ctx context.Context, selector string, enabled bool) (CustomResult, error) {
	identifier := msp.CommandShuffleOff
	if enabled {
		identifier = msp.CommandShuffleOn
	}
	return s.Custom(ctx, selector, identifier)
}

// AddItems queues catalog ids, direct URLs, and an optional search query.
func (s Service) AddItems(ctx context.Context, selector string, refs []string, query string) (QueueResult, error) {
	items := make([]msp.MediaItem, 0, len(refs)+1)
	for _, ref := range refs {
		ref = strings.TrimSpace(ref)
		if ref == "" {
			continue
		}
		items = append(items, parseItemRef(ref))
	}
	if strings.TrimSpace(query) != "" {
		items = append(items, msp.MediaItem{SearchQuery: query})
	}
	if len(items) == 0 {
		return QueueResult{}, &CLIError{Code: ExitUsage, Msg: "at least one item or --query required"}
	}

	var reply msp.QueueAddItemsReply
	serverID, err := s.call(ctx, selector, msp.TypeQueueAddItems, msp.QueueAddItemsBody{Items: items}, &reply)
	if err != nil {
		return QueueResult{}, err
	}
	return QueueResult{ServerID: serverID, Items: reply.Items}, nil
}

// Play starts or resumes playback.
func (s Service) Play(ctx context.Context, selector string) error {
	_, err := s.call(ctx, selector, msp.TypePlaybackPlay, struct{}{}, nil)
	return err
}

// Pause pauses playback.
func (s Service) Pause(ctx context.Context, selector string) error {
	_, err := s.call(ctx, selector, msp.TypePlaybackPause, struct{}{}, nil)
	return err
}

// Seek moves the playback position. The argument is milliseconds or a Go duration.
func (s Service) Seek(ctx context.Context, selector string, arg string) error {
	pos, err := parseDurationToMS(arg)
	if err != nil {
		return err
	}
	if pos < 0 {
		return &CLIError{Code: ExitUsage, Msg: "seek position must not be negative"}
	}
	_, err = s.call(ctx, selector, msp.TypePlaybackSeek, msp.PlaybackSeekBody{PositionMS: pos}, nil)
	return err
}

// Watch streams pushes for the cached session, connecting first if needed.
func (s Service) Watch(ctx context.Context, selector string) (<-chan msp.PushEnvelope, <-chan error, error) {
	server, err := s.Resolver.ResolveServer(ctx, selector)
	if err != nil {
		return nil, nil, err
	}
	ref, err := s.sessionFor(ctx, server.NodeID)
	if err != nil {
		return nil, nil, err
	}
	// The cached session may have expired while nobody was watching.
	if _, err := s.publish(ctx, server.NodeID, ref.SessionID, msp.TypePing, struct{}{}); err != nil {
		if ExitCode(err) != ExitNotConnected {
			return nil, nil, err
		}
		if clearErr := s.Sessions.Clear(server.NodeID); clearErr != nil {
			return nil, nil, WrapError(ExitRuntime, "clear session", clearErr)
		}
		if ref, err = s.connect(ctx, server.NodeID); err != nil {
			return nil, nil, err
		}
	}

	pushes, brokerErrs := s.Broker.WatchPushes(ctx, ref.SessionID)
	errs := make(chan error, 1)
	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		for err := range brokerErrs {
			select {
			case errs <- err:
			case <-ctx.Done():
				return
			}
		}
	}()
	go func() {
		defer wg.Done()
		s.keepAlive(ctx, server.NodeID, ref.SessionID, errs)
	}()
	go func() {
		wg.Wait()
		close(errs)
	}()
	return pushes, errs, nil
}

// keepAlive pings the session until ctx is done. The first failed ping is
// reported on errs and ends the loop.
func (s Service) keepAlive(ctx context.Context, nodeID string, sessionID string, errs chan<- error) {
	interval := s.KeepAlive
	if interval <= 0 {
		interval = DefaultKeepAlive
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
		if _, err := s.publish(ctx, nodeID, sessionID, msp.TypePing, struct{}{}); err != nil {
			if ctx.Err() != nil {
				return
			}
			select {
			case errs <- err:
			case <-ctx.Done():
			}
			return
		}
	}
}

// call resolves the server, sends cmdType within the cached session and decodes the
// reply body into out. A NOT_CONNECTED reply triggers one reconnect and retry.
func (s Service) call(ctx context.Context, selector string, cmdType string, body any, out any) (string, error) {
	server, err := s.Resolver.ResolveServer(ctx, selector)
	if err != nil {
		return "", err
	}
	ref, err := s.sessionFor(ctx, server.NodeID)
	if err != nil {
		return "", err
	}

	reply, err := s.publish(ctx, server.NodeID, ref.SessionID, cmdType, body)
	if err != nil && ExitCode(err) == ExitNotConnected {
		if clearErr := s.Sessions.Clear(server.NodeID); clearErr != nil {
			return "", WrapError(ExitRuntime, "clear session", clearErr)
		}
		if ref, err = s.connect(ctx, server.NodeID); err != nil {
			return "", err
		}
		reply, err = s.publish(ctx, server.NodeID, ref.SessionID, cmdType, body)
	}
	if err != nil {
		return "", err
	}

	if out != nil && len(reply.Body) > 0 {
		if err := json.Unmarshal(reply.Body, out); err != nil {
			return "", WrapError(ExitRuntime, "decode "+cmdType+" reply", err)
		}
	}
	return server.NodeID, nil
}

func (s Service) sessionFor(ctx context.Context, nodeID string) (msp.SessionRef, error) {
	ref, ok, err := s.Sessions.Get(nodeID)
	if err != nil {
		return msp.SessionRef{}, WrapError(ExitRuntime, "load session", err)
	}
	if ok {
		return ref, nil
	}
	return s.connect(ctx, nodeID)
}

func (s Service) connect(ctx context.Context, nodeID string) (msp.SessionRef, error) {
	name := s.Config.Identity
	if name == "" {
		name = DefaultControllerName
	}
	reply, err := s.publish(ctx, nodeID, "", msp.TypeConnect, msp.ConnectBody{Name: name, ProtocolVersion: msp.ProtocolVersion})
	if err != nil {
		return msp.SessionRef{}, err
	}

	var body msp.ConnectReply
	if err := json.Unmarshal(reply.Body, &body); err != nil {
		return msp.SessionRef{}, WrapError(ExitRuntime, "decode connect reply", err)
	}
	if body.SessionID == "" {
		return msp.SessionRef{}, &CLIError{Code: ExitRuntime, Msg: "server returned no session id"}
	}

	ref := msp.SessionRef{
		SessionID:             body.SessionID,
		ProtocolVersion:       body.ProtocolVersion,
		AllowedCommands:       body.AllowedCommands,
		AllowedPlayerCommands: body.AllowedPlayerCommands,
	}
	if err := s.Sessions.Put(nodeID, ref); err != nil {
		return msp.SessionRef{}, WrapError(ExitRuntime, "store session", err)
	}
	return ref, nil
}

func (s Service) publish(ctx context.Context, nodeID string, sessionID string, cmdType string, body any) (msp.ReplyEnvelope, error) {
	cmd, err := msp.NewCommand(cmdType, body)
	if err != nil {
		return msp.ReplyEnvelope{}, WrapError(ExitRuntime, "build command", err)
	}
	cmd = s.decorateCommand(cmd, sessionID)

	reply, err := s.Broker.PublishCommand(ctx, nodeID, cmd)
	if err != nil {
		return msp.ReplyEnvelope{}, WrapError(ExitRuntime, "publish command", err)
	}
	if reply.Err != nil {
		return msp.ReplyEnvelope{}, ErrorForReplyCode(reply.Err.Code, reply.Err.Message)
	}
	return reply, nil
}

func (s Service) decorateCommand(cmd msp.CommandEnvelope, sessionID string) msp.CommandEnvelope {
	cmd.ID = s.IDGen.NewID()
	cmd.TS = s.Clock.NowUnix()
	cmd.From = s.Config.Identity
	if cmd.From == "" {
		cmd.From = DefaultControllerName
	}
	cmd.ReplyTo = s.Broker.ReplyTopic()
	cmd.Session = sessionID
	return cmd
}

// parseItemRef treats anything with a URL scheme as a direct source and
// everything else as a catalog id.
func parseItemRef(ref string) msp.MediaItem {
	if strings.Contains(ref, "://") {
		return msp.MediaItem{Title: ref, Playable: true, Source: &msp.MediaSource{URL: ref}}
	}
	return msp.MediaItem{ID: ref}
}

func parseDurationToMS(arg string) (int64, error) {
	arg = strings.TrimSpace(arg)
	if arg == "" {
		return 0, &CLIError{Code: ExitUsage, Msg: "duration required"}
	}
	if strings.HasSuffix(arg, "ms") || strings.HasSuffix(arg, "s") || strings.HasSuffix(arg, "m") || strings.HasSuffix(arg, "h") {
		dur, err := time.ParseDuration(arg)
		if err != nil {
			return 0, &CLIError{Code: ExitUsage, Msg: "invalid duration"}
		}
		return int64(dur / time.Millisecond), nil
	}
	value, err := strconv.ParseInt(arg, 10, 64)
	if err != nil {
		return 0, &CLIError{Code: ExitUsage, Msg: "invalid duration"}
	}
	return value, nil
}
