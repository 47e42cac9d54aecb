// Package router implements the Hook table: an insertion-ordered list of
// method+pattern route entries, matched linearly with glob wildcards (`*`
// bounded by `/`, trailing `**` unbounded). It is grounded on the teacher's
// highlevel.Server route-registration shape — an exact-path fast map
// checked first, falling back to an ordered pattern list — generalized from
// the teacher's regexp-based parameter routes to the spec's glob grammar,
// since the spec requires `*`/`**` semantics rather than named parameters or
// regular expressions.
package router

import "strings"

// Type distinguishes the handler calling convention a Hook dispatches to.
type Type int

const (
	Base Type = iota
	Rack
	Wab
	Func
	Push
)

// MethodAll matches any HTTP method, used for catch-all hooks.
const MethodAll = "*"

// Hook is one registered route entry.
type Hook struct {
	Method  string
	Pattern string
	Type    Type
	Handler any
	Queue   string // named target worker queue; empty = default
}

// Table is the insertion-ordered hook list for one server.
type Table struct {
	exact map[string]map[string]*Hook // path -> method -> Hook, for literal (no-glob) patterns
	globs []*Hook                     // patterns containing * or **, in insertion order
	notFound *Hook
}

// New creates an empty Table.
func New() *Table {
	return &Table{exact: make(map[string]map[string]*Hook)}
}

// Register inserts a Hook, keeping insertion order among glob patterns.
func (t *Table) Register(method, pattern string, typ Type, handler any, queueName string) *Hook {
	h := &Hook{Method: method, Pattern: pattern, Type: typ, Handler: handler, Queue: queueName}
	if isGlob(pattern) {
		t.globs = append(t.globs, h)
		return h
	}
	byMethod, ok := t.exact[pattern]
	if !ok {
		byMethod = make(map[string]*Hook)
		t.exact[pattern] = byMethod
	}
	byMethod[method] = h
	return h
}

// RegisterNotFound installs the dedicated 404 hook.
func (t *Table) RegisterNotFound(handler any, typ Type) *Hook {
	h := &Hook{Method: MethodAll, Pattern: "**", Type: typ, Handler: handler}
	t.notFound = h
	return h
}

// NotFound returns the registered 404 hook, if any.
func (t *Table) NotFound() *Hook { return t.notFound }

func isGlob(pattern string) bool { return strings.ContainsRune(pattern, '*') }

// Match finds the first (method, path) match: exact literal patterns are
// checked first by direct map lookup (cheap, order-independent since at
// most one literal can match), then glob patterns in insertion order — the
// first match among those wins. A trailing "/" on path is ignored for
// matching purposes.
func (t *Table) Match(method, path string) *Hook {
	path = trimTrailingSlash(path)

	if byMethod, ok := t.exact[path]; ok {
		if h, ok := byMethod[method]; ok {
			return h
		}
		if h, ok := byMethod[MethodAll]; ok {
			return h
		}
	}
	for _, h := range t.globs {
		if (h.Method == method || h.Method == MethodAll) && globMatch(h.Pattern, path) {
			return h
		}
	}
	return nil
}

func trimTrailingSlash(p string) string {
	if len(p) > 1 && strings.HasSuffix(p, "/") {
		return p[:len(p)-1]
	}
	return p
}

// globMatch implements the spec's wildcard grammar via explicit
// character-by-character scanning rather than a full regex engine:
// literal bytes match exactly; a single "*" matches one non-empty run of
// non-"/" bytes; a trailing "**" matches the remainder, including "/".
func globMatch(pattern, path string) bool {
	pattern = trimTrailingSlash(pattern)
	var pi, si int
	for pi < len(pattern) {
		switch {
		case pattern[pi] == '*' && pi+1 < len(pattern) && pattern[pi+1] == '*':
			// "**" must be the trailing component; it matches the rest.
			return true
		case pattern[pi] == '*':
			// Single "*": consume one or more non-"/" bytes from path.
			start := si
			for si < len(path) && path[si] != '/' {
				si++
			}
			if si == start {
				return false // "*" requires a non-empty token
			}
			pi++
		default:
			if si >= len(path) || path[si] != pattern[pi] {
				return false
			}
			pi++
			si++
		}
	}
	return si == len(path)
}
