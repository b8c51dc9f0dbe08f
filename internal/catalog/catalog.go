// Package catalog holds the immutable tree of browsable and playable media
// nodes a session exposes to its controllers.
package catalog

import (
	"errors"
	"fmt"
	"math/rand/v2"
	"strings"
)

var (
	// ErrNotFound reports an unknown node id.
	ErrNotFound = errors.New("catalog: node not found")
	// ErrEmptyCatalog reports a catalog without playable leaves.
	ErrEmptyCatalog = errors.New("catalog: no leaf nodes")
	// ErrDuplicateID reports a node id used more than once.
	ErrDuplicateID = errors.New("catalog: duplicate node id")
	// ErrMultipleParents reports a node listed as the child of more than one node.
	ErrMultipleParents = errors.New("catalog: node has more than one parent")
	// ErrUnreachable reports a node that cannot be reached from the root.
	ErrUnreachable = errors.New("catalog: node unreachable from root")
)

// Media describes the playable part of a leaf node.
type Media struct {
	URL        string `json:"url" toml:"url"`
	Mime       string `json:"mime,omitempty" toml:"mime"`
	Artist     string `json:"artist,omitempty" toml:"artist"`
	Album      string `json:"album,omitempty" toml:"album"`
	ArtworkURL string `json:"artworkUrl,omitempty" toml:"artwork_url"`
}

// Node is a catalog entry. Nodes without children are leaves.
type Node struct {
	ID       string
	Title    string
	Children []string
	Media    *Media
}

// IsLeaf reports whether the node has no children.
func (n Node) IsLeaf() bool {
	return len(n.Children) == 0
}

// Catalog is a read-only media tree. It is safe for concurrent use.
type Catalog struct {
	root   string
	nodes  map[string]Node
	leaves []string
}

// Root returns the root node.
func (c *Catalog) Root() Node {
	return c.nodes[c.root]
}

// Item returns the node with the given id.
func (c *Catalog) Item(id string) (Node, error) {
	node, ok := c.nodes[id]
	if !ok {
		return Node{}, fmt.Errorf("%w: %q", ErrNotFound, id)
	}
	return node, nil
}

// Children returns the ordered children of parentID. A leaf has no children
// and yields an empty slice.
func (c *Catalog) Children(parentID string) ([]Node, error) {
	parent, ok := c.nodes[parentID]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrNotFound, parentID)
	}
	out := make([]Node, 0, len(parent.Children))
	for _, id := range parent.Children {
		out = append(out, c.nodes[id])
	}
	return out, nil
}

// ItemByTitle returns the first leaf whose title matches case-insensitively.
func (c *Catalog) ItemByTitle(title string) (Node, bool) {
	for _, id := range c.leaves {
		node := c.nodes[id]
		if strings.EqualFold(node.Title, title) {
			return node, true
		}
	}
	return Node{}, false
}

// RandomItem returns a uniformly chosen leaf.
func (c *Catalog) RandomItem() Node {
	return c.nodes[c.leaves[rand.IntN(len(c.leaves))]]
}

// Leaves returns the leaf nodes in catalog order.
func (c *Catalog) Leaves() []Node {
	out := make([]Node, 0, len(c.leaves))
	for _, id := range c.leaves {
		out = append(out, c.nodes[id])
	}
	return out
}

// Len returns the number of nodes, including the root.
func (c *Catalog) Len() int {
	return len(c.nodes)
}
