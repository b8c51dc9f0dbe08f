package core

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/mikey-austin/media_session/internal/ports"
	"github.com/mikey-austin/media_session/pkg/msp"
)

// NodeIDPrefix marks a selector as an exact node id.
const NodeIDPrefix = "mss:"

// SessionKind is the presence kind advertised by media session servers.
const SessionKind = "session"

// Resolver resolves selectors to node presence.
type Resolver struct {
	Presence ports.Broker
	Config   Config
}

// ResolveServer resolves a session server selector using config defaults.
func (r Resolver) ResolveServer(ctx context.Context, selector string) (msp.Presence, error) {
	if selector == "" {
		selector = r.Config.Defaults.Server
	}

	presence, err := r.Presence.ListPresence(ctx)
	if err != nil {
		return msp.Presence{}, WrapError(ExitRuntime, "list presence", err)
	}

	servers := filterPresenceByKind(presence, SessionKind)
	if selector == "" {
		if len(servers) == 1 {
			return servers[0], nil
		}
		if len(servers) == 0 {
			return msp.Presence{}, &CLIError{Code: ExitNotFound, Msg: "no media session servers online"}
		}
		return msp.Presence{}, &CLIError{Code: ExitUsage, Msg: "server selector required: " + suggestionList(servers)}
	}
	return resolveSelector(selector, servers, r.Config.Aliases)
}

func filterPresenceByKind(presence []msp.Presence, kind string) []msp.Presence {
	out := make([]msp.Presence, 0, len(presence))
	for _, p := range presence {
		if p.Kind == kind {
			out = append(out, p)
		}
	}
	return out
}

func resolveSelector(selector string, presence []msp.Presence, aliases map[string]string) (msp.Presence, error) {
	selector = strings.TrimSpace(selector)
	if selector == "" {
		return msp.Presence{}, &CLIError{Code: ExitUsage, Msg: "selector required"}
	}

	if alias, ok := aliases[selector]; ok {
		selector = alias
	}
	if strings.HasPrefix(selector, NodeIDPrefix) {
		return resolveExact(selector, presence)
	}

	matches := make([]msp.Presence, 0)
	for _, p := range presence {
		if strings.EqualFold(p.Name, selector) || strings.EqualFold(p.NodeID, selector) {
			matches = append(matches, p)
		}
	}

	switch len(matches) {
	case 1:
		return matches[0], nil
	case 0:
		return msp.Presence{}, &CLIError{Code: ExitNotFound, Msg: fmt.Sprintf("no match for %q", selector)}
	default:
		return msp.Presence{}, &CLIError{Code: ExitUsage, Msg: fmt.Sprintf("ambiguous selector %q: %s", selector, suggestionList(matches))}
	}
}

func resolveExact(nodeID string, presence []msp.Presence) (msp.Presence, error) {
	for _, p := range presence {
		if p.NodeID == nodeID {
			return p, nil
		}
	}
	return msp.Presence{}, &CLIError{Code: ExitNotFound, Msg: fmt.Sprintf("node not found: %s", nodeID)}
}

func suggestionList(matches []msp.Presence) string {
	names := make([]string, 0, len(matches))
	for _, p := range matches {
		names = append(names, fmt.Sprintf("%s (%s)", p.Name, p.NodeID))
	}
	sort.Strings(names)
	return strings.Join(names, ", ")
}
