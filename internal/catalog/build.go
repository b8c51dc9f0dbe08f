package catalog

import (
	"fmt"
	"slices"
	"strings"
)

// DefaultRootID is used when a description does not name its root.
const DefaultRootID = "[root]"

const albumsFolderID = "[albums]"

// Description is the static asset description a catalog is built from.
type Description struct {
	Root   string      `json:"root" toml:"root"`
	Title  string      `json:"title" toml:"title"`
	Nodes  []NodeSpec  `json:"nodes" toml:"nodes"`
	Tracks []TrackSpec `json:"tracks" toml:"tracks"`
}

// NodeSpec declares a single node.
type NodeSpec struct {
	ID       string   `json:"id" toml:"id"`
	Title    string   `json:"title" toml:"title"`
	Children []string `json:"children,omitempty" toml:"children"`
	Media    *Media   `json:"media,omitempty" toml:"media"`
}

// TrackSpec declares a playable track. Tracks are grouped into album folders
// under an "Albums" folder below the root.
type TrackSpec struct {
	ID         string `json:"id" toml:"id"`
	Title      string `json:"title" toml:"title"`
	Album      string `json:"album" toml:"album"`
	Artist     string `json:"artist" toml:"artist"`
	Source     string `json:"source" toml:"source"`
	Mime       string `json:"mime" toml:"mime"`
	ArtworkURL string `json:"artworkUrl" toml:"artwork_url"`
}

// Build validates a description and returns the catalog it describes.
func Build(desc Description) (*Catalog, error) {
	rootID := strings.TrimSpace(desc.Root)
	if rootID == "" {
		rootID = DefaultRootID
	}

	specs := append([]NodeSpec(nil), desc.Nodes...)
	specs = append(specs, expandTracks(desc.Tracks)...)

	nodes := make(map[string]Node, len(specs)+1)
	for _, spec := range specs {
		id := strings.TrimSpace(spec.ID)
		if id == "" {
			return nil, fmt.Errorf("catalog: node with empty id (title %q)", spec.Title)
		}
		if _, ok := nodes[id]; ok {
			return nil, fmt.Errorf("%w: %q", ErrDuplicateID, id)
		}
		nodes[id] = Node{
			ID:       id,
			Title:    spec.Title,
			Children: append([]string(nil), spec.Children...),
			Media:    spec.Media,
		}
	}

	root, ok := nodes[rootID]
	if !ok {
		title := desc.Title
		if title == "" {
			title = "Root"
		}
		root = Node{ID: rootID, Title: title}
	}
	if len(desc.Tracks) > 0 {
		root.Children = append(root.Children, albumsFolderID)
	}
	nodes[rootID] = root

	parents := make(map[string]string, len(nodes))
	for _, node := range nodes {
		for _, child := range node.Children {
			if _, ok := nodes[child]; !ok {
				return nil, fmt.Errorf("%w: %q listed as child of %q", ErrNotFound, child, node.ID)
			}
			if child == rootID {
				return nil, fmt.Errorf("%w: root %q listed as child of %q", ErrMultipleParents, child, node.ID)
			}
			if parent, ok := parents[child]; ok {
				return nil, fmt.Errorf("%w: %q under %q and %q", ErrMultipleParents, child, parent, node.ID)
			}
			parents[child] = node.ID
		}
	}

	order := preorder(nodes, rootID)
	if len(order) != len(nodes) {
		for id := range nodes {
			if !slices.Contains(order, id) {
				return nil, fmt.Errorf("%w: %q", ErrUnreachable, id)
			}
		}
	}

	leaves := make([]string, 0, len(order))
	for _, id := range order {
		if id != rootID && nodes[id].IsLeaf() {
			leaves = append(leaves, id)
		}
	}
	if len(leaves) == 0 {
		return nil, ErrEmptyCatalog
	}

	return &Catalog{root: rootID, nodes: nodes, leaves: leaves}, nil
}

func preorder(nodes map[string]Node, rootID string) []string {
	order := make([]string, 0, len(nodes))
	seen := make(map[string]bool, len(nodes))
	stack := []string{rootID}
	for len(stack) > 0 {
		id := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if seen[id] {
			continue
		}
		seen[id] = true
		order = append(order, id)
		children := nodes[id].Children
		for i := len(children) - 1; i >= 0; i-- {
			stack = append(stack, children[i])
		}
	}
	return order
}

func expandTracks(tracks []TrackSpec) []NodeSpec {
	if len(tracks) == 0 {
		return nil
	}
	albums := NodeSpec{ID: albumsFolderID, Title: "Albums"}
	byAlbum := map[string]int{}
	var folders []NodeSpec
	var leaves []NodeSpec
	for _, track := range tracks {
		album := strings.TrimSpace(track.Album)
		if album == "" {
			album = "Unknown Album"
		}
		idx, ok := byAlbum[album]
		if !ok {
			idx = len(folders)
			byAlbum[album] = idx
			folders = append(folders, NodeSpec{ID: "[album]" + album, Title: album})
			albums.Children = append(albums.Children, "[album]"+album)
		}
		folders[idx].Children = append(folders[idx].Children, track.ID)
		leaves = append(leaves, NodeSpec{
			ID:    track.ID,
			Title: track.Title,
			Media: &Media{
				URL:        track.Source,
				Mime:       track.Mime,
				Artist:     track.Artist,
				Album:      album,
				ArtworkURL: track.ArtworkURL,
			},
		})
	}
	out := make([]NodeSpec, 0, 1+len(folders)+len(leaves))
	out = append(out, albums)
	out = append(out, folders...)
	return append(out, leaves...)
}
