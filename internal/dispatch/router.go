// Package dispatch routes project config change notifications to handlers.
//
// Routes are registered once at startup with dot-delimited patterns whose
// segments are either literals or the single-segment wildcard "*":
//
//	sections.*                 one token: the section UID
//	sections.*.entryTypes.*    two tokens: section UID, entry type UID
//
// Patterns are compiled into a segment trie. A lookup walks literal children
// before wildcard children, so the first complete match is the most specific
// route: a literal segment beats "*" at the first position where two
// candidate patterns differ. Wildcard segments are returned to the handler as
// token matches in encounter order.
package dispatch

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
)

// Wildcard matches exactly one path segment.
const Wildcard = "*"

// Kind distinguishes change notifications from deletions.
type Kind int

const (
	// Changed is sent when the value at a path was added or updated.
	Changed Kind = iota + 1
	// Deleted is sent when the value at a path was removed.
	Deleted
)

// String returns the kind name.
func (k Kind) String() string {
	switch k {
	case Changed:
		return "changed"
	case Deleted:
		return "deleted"
	default:
		return "unknown"
	}
}

// Event is a single change notification for a concrete config path.
type Event struct {
	Kind     Kind
	Path     string
	Tokens   []string // wildcard segment values, filled in by Dispatch
	OldValue any
	NewValue any // nil for deletions
}

// HandlerFunc handles one event. Returning an error aborts the flush that
// produced the event.
type HandlerFunc func(ctx context.Context, ev Event) error

// Route is a registered pattern with its handlers.
type Route struct {
	Pattern string
	Changed HandlerFunc
	Deleted HandlerFunc

	segments []string
}

// ErrDuplicateRoute is returned when a pattern is registered twice.
var ErrDuplicateRoute = errors.New("route already registered")

type node struct {
	literal  map[string]*node
	wildcard *node
	route    *Route
}

func newNode() *node {
	return &node{literal: make(map[string]*node)}
}

func (n *node) hasChildren() bool {
	return len(n.literal) > 0 || n.wildcard != nil
}

// Router is the routing table. It is safe for concurrent use; registration
// is expected to happen before the first dispatch.
type Router struct {
	mu     sync.RWMutex
	root   *node
	routes []*Route
}

// New creates an empty Router.
func New() *Router {
	return &Router{root: newNode()}
}

// SplitPath splits a dot-delimited config path into segments.
func SplitPath(path string) []string {
	if path == "" {
		return nil
	}
	return strings.Split(path, ".")
}

// JoinPath is the inverse of SplitPath.
func JoinPath(segments []string) string {
	return strings.Join(segments, ".")
}

// Handle registers handlers for pattern. Either handler may be nil, in which
// case events of that kind are dropped.
func (r *Router) Handle(pattern string, changed, deleted HandlerFunc) error {
	segments := SplitPath(pattern)
	if len(segments) == 0 {
		return fmt.Errorf("register route: empty pattern")
	}
	for _, seg := range segments {
		if seg == "" {
			return fmt.Errorf("register route %q: empty segment", pattern)
		}
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	n := r.root
	for _, seg := range segments {
		if seg == Wildcard {
			if n.wildcard == nil {
				n.wildcard = newNode()
			}
			n = n.wildcard
			continue
		}
		child := n.literal[seg]
		if child == nil {
			child = newNode()
			n.literal[seg] = child
		}
		n = child
	}
	if n.route != nil {
		return fmt.Errorf("register route %q: %w", pattern, ErrDuplicateRoute)
	}

	route := &Route{Pattern: pattern, Changed: changed, Deleted: deleted, segments: segments}
	n.route = route
	r.routes = append(r.routes, route)
	return nil
}

// Patterns returns the registered patterns in registration order.
func (r *Router) Patterns() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]string, len(r.routes))
	for i, route := range r.routes {
		out[i] = route.Pattern
	}
	return out
}

// Match returns the most specific route for path and its token matches.
// It returns nil when no route matches.
func (r *Router) Match(path string) (*Route, []string) {
	return r.MatchSegments(SplitPath(path))
}

// MatchSegments is Match for a pre-split path.
func (r *Router) MatchSegments(segments []string) (*Route, []string) {
	if len(segments) == 0 {
		return nil, nil
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	return match(r.root, segments, 0, nil)
}

func match(n *node, segments []string, depth int, tokens []string) (*Route, []string) {
	if depth == len(segments) {
		if n.route != nil {
			if tokens == nil {
				tokens = []string{}
			}
			return n.route, tokens
		}
		return nil, nil
	}

	seg := segments[depth]
	if child := n.literal[seg]; child != nil {
		if route, toks := match(child, segments, depth+1, tokens); route != nil {
			return route, toks
		}
	}
	if n.wildcard != nil {
		// Copy on append so sibling branches never share a backing array.
		next := append(tokens[:len(tokens):len(tokens)], seg)
		return match(n.wildcard, segments, depth+1, next)
	}
	return nil, nil
}

// Dispatch invokes the handler of the most specific route matching ev.Path.
// It reports whether a handler ran. Events without a matching route or
// without a handler for their kind are dropped silently.
func (r *Router) Dispatch(ctx context.Context, ev Event) (bool, error) {
	route, tokens := r.Match(ev.Path)
	if route == nil {
		return false, nil
	}

	var h HandlerFunc
	switch ev.Kind {
	case Changed:
		h = route.Changed
	case Deleted:
		h = route.Deleted
	}
	if h == nil {
		return false, nil
	}

	ev.Tokens = tokens
	return true, h(ctx, ev)
}

// Claims reports whether key under parent is owned by a deeper route, i.e.
// whether some pattern continues past parent+key. The config store leaves
// claimed keys out of the parent's own value so a change under them is never
// reported as a change of the parent.
func (r *Router) Claims(parent []string, key string) bool {
	segments := make([]string, 0, len(parent)+1)
	segments = append(segments, parent...)
	segments = append(segments, key)

	r.mu.RLock()
	defer r.mu.RUnlock()
	return continues(r.root, segments, 0)
}

func continues(n *node, segments []string, depth int) bool {
	if depth == len(segments) {
		return n.hasChildren()
	}
	if child := n.literal[segments[depth]]; child != nil && continues(child, segments, depth+1) {
		return true
	}
	return n.wildcard != nil && continues(n.wildcard, segments, depth+1)
}

// HandlerPaths returns every concrete path in tree that some route matches,
// sorted. Only nested map[string]any values are descended.
func (r *Router) HandlerPaths(tree map[string]any) []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	seen := make(map[string]bool)
	walk(r.root, tree, nil, seen)

	out := make([]string, 0, len(seen))
	for path := range seen {
		out = append(out, path)
	}
	sort.Strings(out)
	return out
}

func walk(n *node, value any, path []string, seen map[string]bool) {
	if n.route != nil && len(path) > 0 {
		seen[JoinPath(path)] = true
	}
	m, ok := value.(map[string]any)
	if !ok || !n.hasChildren() {
		return
	}
	for key, child := range m {
		next := append(path[:len(path):len(path)], key)
		if lit := n.literal[key]; lit != nil {
			walk(lit, child, next, seen)
		}
		if n.wildcard != nil {
			walk(n.wildcard, child, next, seen)
		}
	}
}
