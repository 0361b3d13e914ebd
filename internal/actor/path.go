package actor

import (
	"fmt"
	"net"
	"strconv"
	"strings"
)

// NodeID identifies a single cellmesh node taking part in (or capable of
// taking part in) remoting. It is either a bare symbolic name, used for
// single-node deployments with remoting disabled, or a "host:port" pair
// identifying the Hub's listen address.
//
// Grammar:
//
//	node-id    = symbolic-name / host-port
//	host-port  = host ":" port
//	symbolic-name = 1*( ALPHA / DIGIT / "-" / "_" / "." )
type NodeID string

// ParseNodeID validates raw against the node-id grammar and returns it typed.
func ParseNodeID(raw string) (NodeID, error) {
	if raw == "" {
		return "", ErrInvalidNodeID(raw, fmt.Errorf("empty node id"))
	}

	if host, port, err := net.SplitHostPort(raw); err == nil {
		if _, err := strconv.Atoi(port); err != nil {
			return "", ErrInvalidNodeID(raw, fmt.Errorf("bad port %q", port))
		}
		if host == "" {
			return "", ErrInvalidNodeID(raw, fmt.Errorf("empty host"))
		}
		return NodeID(raw), nil
	}

	for _, r := range raw {
		isAllowed := (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') ||
			(r >= '0' && r <= '9') || r == '-' || r == '_' || r == '.'
		if !isAllowed {
			return "", ErrInvalidNodeID(
				raw, fmt.Errorf("disallowed character %q", r),
			)
		}
	}

	return NodeID(raw), nil
}

// String implements fmt.Stringer.
func (n NodeID) String() string { return string(n) }

// Path identifies an actor within a node's supervision tree, and optionally
// the node it lives on. A Path with an empty NodeID is node-relative (used
// when addressing actors on the local node); a Path with a NodeID is fully
// qualified and can be handed to a remote Hub for resolution.
//
// Grammar:
//
//	path         = [ "cellmesh://" node-id ] local-path
//	local-path   = "/" [ segment *( "/" segment ) ]
//	segment      = 1*( any character except "/" )
//
// ParsePath strips extra leading and trailing "/" characters, so "/" alone
// is the empty (guardian) path; an empty segment between two names is
// rejected.
//
// A segment of the form "$<n>" is the monotonic autogenerated name given to
// a child spawned without an explicit one, scoped to its parent's own
// counter (see Cell.spawnChild in cell.go).
type Path struct {
	Node     NodeID
	Segments []string
}

const pathScheme = "cellmesh://"

// ParsePath validates raw against the path grammar and returns it typed.
func ParsePath(raw string) (Path, error) {
	rest := raw
	var node NodeID

	if strings.HasPrefix(raw, pathScheme) {
		rest = raw[len(pathScheme):]
		slash := strings.IndexByte(rest, '/')
		if slash < 0 {
			return Path{}, ErrInvalidPath(
				raw, fmt.Errorf("missing local path after node id"),
			)
		}

		var err error
		node, err = ParseNodeID(rest[:slash])
		if err != nil {
			return Path{}, ErrInvalidPath(raw, err)
		}
		rest = rest[slash:]
	}

	if !strings.HasPrefix(rest, "/") {
		return Path{}, ErrInvalidPath(raw, fmt.Errorf("must start with /"))
	}

	trimmed := strings.Trim(rest, "/")
	var segments []string
	if trimmed != "" {
		segments = strings.Split(trimmed, "/")
	}

	for _, seg := range segments {
		if seg == "" {
			return Path{}, ErrInvalidPath(raw, fmt.Errorf("empty segment"))
		}
	}

	return Path{Node: node, Segments: segments}, nil
}

// MustParsePath is ParsePath but panics on error, for use with compile-time
// known-good literals (tests, constants).
func MustParsePath(raw string) Path {
	p, err := ParsePath(raw)
	if err != nil {
		panic(err)
	}
	return p
}

// Child returns a new Path with segment appended, inheriting the receiver's
// NodeID.
func (p Path) Child(segment string) Path {
	segs := make([]string, len(p.Segments)+1)
	copy(segs, p.Segments)
	segs[len(p.Segments)] = segment
	return Path{Node: p.Node, Segments: segs}
}

// Parent returns the receiver's parent path and true, or the zero Path and
// false if the receiver is already the root.
func (p Path) Parent() (Path, bool) {
	if len(p.Segments) == 0 {
		return Path{}, false
	}
	return Path{Node: p.Node, Segments: p.Segments[:len(p.Segments)-1]}, true
}

// Name returns the final segment, or "" for the root path.
func (p Path) Name() string {
	if len(p.Segments) == 0 {
		return ""
	}
	return p.Segments[len(p.Segments)-1]
}

// Local returns a copy of the receiver with its NodeID cleared, i.e. the
// node-relative form suitable for local resolution.
func (p Path) Local() Path {
	return Path{Segments: p.Segments}
}

// WithNode returns a copy of the receiver qualified with node.
func (p Path) WithNode(node NodeID) Path {
	return Path{Node: node, Segments: p.Segments}
}

// IsRemote reports whether the path names a node other than the local one.
// localNode is the resolving Node's own identity.
func (p Path) IsRemote(localNode NodeID) bool {
	return p.Node != "" && p.Node != localNode
}

// String renders the path back into its grammar form.
func (p Path) String() string {
	local := "/" + strings.Join(p.Segments, "/")
	if p.Node == "" {
		return local
	}
	return pathScheme + string(p.Node) + local
}
