// Package route maps chat locations to and from their path form:
// /chat, /chat/<agentID> and /chat/<agentID>/<sessionID>.
package route

import (
	"fmt"
	"net/url"
	"strings"
)

const root = "/chat"

// Location identifies what the chat screen shows. A SessionID is only
// meaningful together with an AgentID.
type Location struct {
	AgentID   string
	SessionID string
}

// Parse accepts "/" as an alias for /chat. Trailing slashes are ignored.
func Parse(path string) (Location, error) {
	p := strings.TrimRight(strings.TrimSpace(path), "/")
	if p == "" {
		return Location{}, nil
	}
	if p != root && !strings.HasPrefix(p, root+"/") {
		return Location{}, fmt.Errorf("route: unknown location %q", path)
	}

	rest := strings.TrimPrefix(strings.TrimPrefix(p, root), "/")
	if rest == "" {
		return Location{}, nil
	}
	parts := strings.Split(rest, "/")
	if len(parts) > 2 {
		return Location{}, fmt.Errorf("route: unknown location %q", path)
	}

	var loc Location
	for i, part := range parts {
		id, err := url.PathUnescape(part)
		if err != nil || id == "" {
			return Location{}, fmt.Errorf("route: bad segment in %q", path)
		}
		if i == 0 {
			loc.AgentID = id
		} else {
			loc.SessionID = id
		}
	}
	return loc, nil
}

func (l Location) String() string {
	switch {
	case l.AgentID == "":
		return root
	case l.SessionID == "":
		return root + "/" + url.PathEscape(l.AgentID)
	default:
		return root + "/" + url.PathEscape(l.AgentID) + "/" + url.PathEscape(l.SessionID)
	}
}

// Agent returns the location of an agent with no session open.
func Agent(agentID string) Location {
	return Location{AgentID: agentID}
}

// Session returns the location of a session of agentID.
func Session(agentID, sessionID string) Location {
	return Location{AgentID: agentID, SessionID: sessionID}
}
