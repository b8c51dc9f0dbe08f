// Package search turns free-form controller queries into catalog items.
package search

import (
	"strings"

	"github.com/mikey-austin/media_session/internal/catalog"
)

const playPrefix = "play "

// Catalog is the part of the catalog the resolver needs.
type Catalog interface {
	ItemByTitle(title string) (catalog.Node, bool)
	RandomItem() catalog.Node
}

// ParseQuery strips a leading case-insensitive "play " and surrounding space.
func ParseQuery(query string) string {
	q := strings.TrimSpace(query)
	if len(q) >= len(playPrefix) && strings.EqualFold(q[:len(playPrefix)], playPrefix) {
		q = q[len(playPrefix):]
	}
	return strings.TrimSpace(q)
}

// Resolver maps queries to leaves.
type Resolver struct {
	catalog Catalog
}

// NewResolver creates a resolver over cat.
func NewResolver(cat Catalog) *Resolver {
	return &Resolver{catalog: cat}
}

// Resolve returns the leaf whose title matches the query exactly, ignoring
// case, or a random leaf when nothing matches.
func (r *Resolver) Resolve(query string) catalog.Node {
	title := ParseQuery(query)
	if title != "" {
		if node, ok := r.catalog.ItemByTitle(title); ok {
			return node
		}
	}
	return r.catalog.RandomItem()
}
