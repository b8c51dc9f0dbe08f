package msp

// ConnectBody is the payload for session.connect.
type ConnectBody struct {
	Name            string `json:"name"`
	ProtocolVersion int    `json:"protocolVersion"`
}

// ConnectReply is returned by session.connect.
type ConnectReply struct {
	SessionID             string   `json:"sessionId"`
	ProtocolVersion       int      `json:"protocolVersion"`
	AllowedCommands       []string `json:"allowedCommands"`
	AllowedPlayerCommands []string `json:"allowedPlayerCommands"`
}

// DisconnectBody is the payload for session.disconnect.
type DisconnectBody struct{}

// CustomCommandBody is the payload for session.command.
type CustomCommandBody struct {
	Identifier string         `json:"identifier"`
	Args       map[string]any `json:"args,omitempty"`
}

// CustomCommandReply reports whether a custom command changed session state.
type CustomCommandReply struct {
	Applied bool `json:"applied"`
}

// LibraryRootBody is the payload for library.root.
type LibraryRootBody struct {
	Params map[string]any `json:"params,omitempty"`
}

// LibraryItemBody is the payload for library.item.
type LibraryItemBody struct {
	MediaID string `json:"mediaId"`
}

// LibrarySubscribeBody is the payload for library.subscribe.
type LibrarySubscribeBody struct {
	ParentID string         `json:"parentId"`
	Params   map[string]any `json:"params,omitempty"`
}

// LibraryChildrenBody is the payload for library.children.
type LibraryChildrenBody struct {
	ParentID string         `json:"parentId"`
	Page     int            `json:"page"`
	PageSize int            `json:"pageSize"`
	Params   map[string]any `json:"params,omitempty"`
}

// LibraryChildrenReply is the reply for library.children.
type LibraryChildrenReply struct {
	ParentID string      `json:"parentId"`
	Items    []MediaItem `json:"items"`
}

// QueueAddItemsBody is the payload for queue.addItems.
type QueueAddItemsBody struct {
	Items []MediaItem `json:"items"`
}

// QueueAddItemsReply lists the items after resolution.
type QueueAddItemsReply struct {
	Items []MediaItem `json:"items"`
}

// PlaybackSeekBody is the payload for playback.seek.
type PlaybackSeekBody struct {
	PositionMS int64 `json:"positionMs"`
}

// MediaItem describes a catalog node, or an item a controller wants queued.
// A controller may leave ID empty and set SearchQuery instead.
type MediaItem struct {
	ID          string         `json:"id,omitempty"`
	Title       string         `json:"title,omitempty"`
	Browsable   bool           `json:"browsable,omitempty"`
	Playable    bool           `json:"playable,omitempty"`
	Children    int            `json:"children,omitempty"`
	Source      *MediaSource   `json:"source,omitempty"`
	SearchQuery string         `json:"searchQuery,omitempty"`
	Extras      map[string]any `json:"extras,omitempty"`
}

// MediaSource is the playable part of a media item.
type MediaSource struct {
	URL        string `json:"url"`
	Mime       string `json:"mime,omitempty"`
	Artist     string `json:"artist,omitempty"`
	Album      string `json:"album,omitempty"`
	ArtworkURL string `json:"artworkUrl,omitempty"`
}

// CommandButton is the wire form of a custom action advertised in a layout.
type CommandButton struct {
	Identifier string `json:"identifier"`
	Label      string `json:"label"`
	Icon       string `json:"icon"`
	Enabled    bool   `json:"enabled"`
}

// LayoutPush is the body of a layout push.
type LayoutPush struct {
	Buttons []CommandButton `json:"buttons"`
}

// ChildrenChangedPush is the body of a childrenChanged push.
type ChildrenChangedPush struct {
	ParentID   string         `json:"parentId"`
	ChildCount int            `json:"childCount"`
	Params     map[string]any `json:"params,omitempty"`
}

// SessionRef is a controller's cached view of a negotiated session.
type SessionRef struct {
	SessionID             string   `json:"sessionId"`
	ProtocolVersion       int      `json:"protocolVersion"`
	AllowedCommands       []string `json:"allowedCommands,omitempty"`
	AllowedPlayerCommands []string `json:"allowedPlayerCommands,omitempty"`
}
