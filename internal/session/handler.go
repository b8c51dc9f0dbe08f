// Package session implements the server side of the media session protocol:
// controller negotiation, custom commands, catalog browsing and queue
// resolution.
package session

import (
	"errors"
	"fmt"
	"slices"
	"sync"

	"github.com/mikey-austin/media_session/internal/catalog"
	"github.com/mikey-austin/media_session/internal/commands"
	"github.com/mikey-austin/media_session/internal/layout"
	"github.com/mikey-austin/media_session/internal/search"
	"github.com/mikey-austin/media_session/pkg/msp"
	"go.uber.org/zap"
)

// ErrBadValue is returned when a request names something the catalog does not hold.
var ErrBadValue = errors.New("bad value")

// Player is the playback capability the handler drives.
type Player interface {
	ShuffleEnabled() bool
	SetShuffleEnabled(enabled bool)
}

// ConnectResult is the outcome of a connection request.
type ConnectResult struct {
	Accepted              bool
	AllowedCommands       []string
	AllowedPlayerCommands []string
}

// CommandResult is the outcome of a custom command.
type CommandResult struct {
	Applied bool
}

// Handler owns the session callbacks. Custom commands are serialized; reads
// from the catalog run concurrently.
type Handler struct {
	log         *zap.Logger
	catalog     *catalog.Catalog
	registry    *commands.Registry
	layout      *layout.State
	controllers *Controllers
	player      Player
	resolver    *search.Resolver

	mu sync.Mutex
}

// Options configures a Handler.
type Options struct {
	Log         *zap.Logger
	Catalog     *catalog.Catalog
	Registry    *commands.Registry
	Layout      *layout.State
	Controllers *Controllers
	Player      Player
}

// NewHandler wires a handler. Catalog, Layout, Controllers and Player are required.
func NewHandler(opts Options) (*Handler, error) {
	if opts.Catalog == nil {
		return nil, errors.New("catalog required")
	}
	if opts.Layout == nil {
		return nil, errors.New("layout required")
	}
	if opts.Controllers == nil {
		return nil, errors.New("controllers required")
	}
	if opts.Player == nil {
		return nil, errors.New("player required")
	}
	log := opts.Log
	if log == nil {
		log = zap.NewNop()
	}
	registry := opts.Registry
	if registry == nil {
		registry = commands.Default()
	}
	return &Handler{
		log:         log,
		catalog:     opts.Catalog,
		registry:    registry,
		layout:      opts.Layout,
		controllers: opts.Controllers,
		player:      opts.Player,
		resolver:    search.NewResolver(opts.Catalog),
	}, nil
}

// Controllers returns the controller set the handler broadcasts to.
func (h *Handler) Controllers() *Controllers {
	return h.controllers
}

// OnConnect accepts every controller and grants the base session commands,
// the registered custom commands and the player transport controls.
func (h *Handler) OnConnect(c *Controller) ConnectResult {
	allowed := slices.Clone(msp.SessionCommands)
	for _, id := range h.registry.Identifiers() {
		if !slices.Contains(allowed, id) {
			allowed = append(allowed, id)
		}
	}
	allowedPlayer := slices.Clone(msp.PlayerCommands)

	c.accept(allowed, allowedPlayer)
	h.controllers.Add(c)
	h.log.Info("controller connected",
		zap.String("controller", c.ID),
		zap.String("name", c.Name),
		zap.Int("version", c.Version),
	)
	return ConnectResult{
		Accepted:              true,
		AllowedCommands:       allowed,
		AllowedPlayerCommands: allowedPlayer,
	}
}

// OnPostConnect pushes the current layout to c alone. Legacy controllers
// (version 0) and empty layouts get nothing.
func (h *Handler) OnPostConnect(c *Controller) {
	if c.Version == 0 || c.sink == nil {
		return
	}
	current, version := h.layout.Snapshot()
	if len(current) == 0 {
		return
	}
	c.pushLayout(h.log, version, commands.Buttons(current))
}

// OnDisconnect removes c from the broadcast set.
func (h *Handler) OnDisconnect(c *Controller) {
	if !c.close() {
		return
	}
	h.controllers.Remove(c.ID)
	h.log.Info("controller disconnected", zap.String("controller", c.ID))
}

// OnCustomCommand applies a custom action. Unknown identifiers succeed
// without changing anything.
func (h *Handler) OnCustomCommand(c *Controller, identifier string, args map[string]any) CommandResult {
	h.mu.Lock()
	defer h.mu.Unlock()

	var next commands.CustomAction
	switch identifier {
	case msp.CommandShuffleOn:
		h.player.SetShuffleEnabled(true)
		next = commands.ShuffleOff
	case msp.CommandShuffleOff:
		h.player.SetShuffleEnabled(false)
		next = commands.ShuffleOn
	default:
		h.log.Debug("ignoring custom command", zap.String("controller", controllerID(c)), zap.String("identifier", identifier))
		return CommandResult{}
	}
	if action, ok := h.registry.ByIdentifier(next.Identifier); ok {
		next = action
	}
	h.layout.Replace([]commands.CustomAction{next})
	h.log.Debug("custom command applied", zap.String("controller", controllerID(c)), zap.String("identifier", identifier))
	return CommandResult{Applied: true}
}

// OnGetLibraryRoot returns the catalog root.
func (h *Handler) OnGetLibraryRoot(_ *Controller, _ map[string]any) catalog.Node {
	return h.catalog.Root()
}

// OnGetItem returns a single node.
func (h *Handler) OnGetItem(_ *Controller, mediaID string) (catalog.Node, error) {
	node, err := h.catalog.Item(mediaID)
	if err != nil {
		return catalog.Node{}, badValue(err)
	}
	return node, nil
}

// OnSubscribe tells c how many children parentID has. Nothing is sent for
// an unknown parent.
func (h *Handler) OnSubscribe(c *Controller, parentID string, params map[string]any) error {
	node, err := h.catalog.Item(parentID)
	if err != nil {
		return badValue(err)
	}
	if c != nil && c.sink != nil {
		c.pushChildren(h.log, msp.ChildrenChangedPush{ParentID: parentID, ChildCount: len(node.Children), Params: params})
	}
	return nil
}

// OnGetChildren returns every child of parentID. Paging is not applied.
func (h *Handler) OnGetChildren(_ *Controller, parentID string, _ int, _ int, _ map[string]any) ([]catalog.Node, error) {
	children, err := h.catalog.Children(parentID)
	if err != nil {
		return nil, badValue(err)
	}
	return children, nil
}

// OnAddMediaItems resolves requested items into catalog items. Items with a
// search query are resolved by title, items with a known id are replaced by
// the catalog node and anything else is returned unchanged.
func (h *Handler) OnAddMediaItems(_ *Controller, items []msp.MediaItem) []msp.MediaItem {
	out := make([]msp.MediaItem, 0, len(items))
	for _, item := range items {
		switch {
		case item.SearchQuery != "":
			out = append(out, MediaItem(h.resolver.Resolve(item.SearchQuery)))
		case item.ID != "":
			node, err := h.catalog.Item(item.ID)
			if err != nil {
				out = append(out, item)
				continue
			}
			out = append(out, MediaItem(node))
		default:
			out = append(out, item)
		}
	}
	return out
}

// OnCues forwards the player's active cues to every controller.
func (h *Handler) OnCues(group msp.CueGroup) {
	h.controllers.BroadcastCues(group)
}

// MediaItem converts a catalog node to its wire form.
func MediaItem(node catalog.Node) msp.MediaItem {
	item := msp.MediaItem{
		ID:        node.ID,
		Title:     node.Title,
		Browsable: !node.IsLeaf(),
		Playable:  node.IsLeaf(),
		Children:  len(node.Children),
	}
	if node.Media != nil {
		item.Source = &msp.MediaSource{
			URL:        node.Media.URL,
			Mime:       node.Media.Mime,
			Artist:     node.Media.Artist,
			Album:      node.Media.Album,
			ArtworkURL: node.Media.ArtworkURL,
		}
	}
	return item
}

// MediaItems converts nodes to their wire form.
func MediaItems(nodes []catalog.Node) []msp.MediaItem {
	out := make([]msp.MediaItem, 0, len(nodes))
	for _, node := range nodes {
		out = append(out, MediaItem(node))
	}
	return out
}

func badValue(err error) error {
	return fmt.Errorf("%w: %v", ErrBadValue, err)
}

func controllerID(c *Controller) string {
	if c == nil {
		return ""
	}
	return c.ID
}
