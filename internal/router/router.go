// Package router maps locations to screens and guards protected routes.
package router

import (
	"strings"
	"sync"

	logSDK "github.com/Laisky/go-utils/v6/log"
	"github.com/Laisky/zap"

	"github.com/Laisky/laisky-cms-admin/internal/liststate"
	"github.com/Laisky/laisky-cms-admin/library/log"
)

// Well-known paths.
const (
	PathHome     = "/"
	PathLogin    = "/login"
	PathNotFound = "*"
)

// Route is one entry of the route table.
type Route struct {
	// Pattern is a path with optional `:name` segments, or "*".
	Pattern string
	Title   string
	// Resource names the backing resource of list and edit screens.
	Resource  string
	Protected bool
	InMenu    bool
}

// DefaultRoutes is the dashboard route table, in menu order.
func DefaultRoutes() []Route {
	list := func(pattern, title, resource string) Route {
		return Route{Pattern: pattern, Title: title, Resource: resource, Protected: true, InMenu: true}
	}

	return []Route{
		{Pattern: PathHome, Title: "Dashboard", Protected: true, InMenu: true},
		list("/category", "Category", "category"),
		list("/subcategory", "Subcategory", "subcategory"),
		list("/post", "Post", "post"),
		{Pattern: "/post/:id", Title: "Edit Post", Resource: "post", Protected: true},
		list("/role", "Role", "role"),
		list("/user", "User", "user"),
		list("/message", "Message", "message"),
		list("/menu", "Menu", "menu"),
		list("/submenu", "Submenu", "submenu"),
		list("/permission", "Permission", "permission"),
		list("/comment", "Comment", "comment"),
		{Pattern: PathLogin, Title: "Login"},
		{Pattern: PathNotFound, Title: "Not Found"},
	}
}

// AuthChecker reports whether a session is active.
type AuthChecker interface {
	IsAuthenticated() bool
}

// Match is the outcome of resolving a location.
type Match struct {
	Route    Route
	Params   map[string]string
	Location liststate.Location
	// RedirectedFrom is the requested location when the gate redirected.
	RedirectedFrom *liststate.Location
}

// Param returns a path parameter.
func (m Match) Param(name string) string {
	return m.Params[name]
}

// Option customises a Router.
type Option func(*Router)

// WithRoutes replaces the route table.
func WithRoutes(routes []Route) Option {
	return func(r *Router) {
		r.routes = routes
	}
}

// WithLogger overrides the default logger.
func WithLogger(logger logSDK.Logger) Option {
	return func(r *Router) {
		if logger != nil {
			r.logger = logger
		}
	}
}

// Router resolves locations and keeps the navigation history.
type Router struct {
	auth   AuthChecker
	routes []Route
	logger logSDK.Logger

	mu        sync.Mutex
	history   []Match
	listeners []func(Match)
}

// New creates a router gated by auth.
func New(auth AuthChecker, opts ...Option) *Router {
	r := &Router{
		auth:   auth,
		routes: DefaultRoutes(),
		logger: log.Logger.Named("router"),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(r)
		}
	}
	return r
}

// Routes returns the route table.
func (r *Router) Routes() []Route {
	return append([]Route(nil), r.routes...)
}

// Menu returns the sidebar entries.
func (r *Router) Menu() []Route {
	var out []Route
	for _, rt := range r.routes {
		if rt.InMenu {
			out = append(out, rt)
		}
	}
	return out
}

// match finds the route of path without applying the gate.
func (r *Router) match(path string) (Route, map[string]string) {
	var fallback Route
	for _, rt := range r.routes {
		if rt.Pattern == PathNotFound {
			fallback = rt
			continue
		}
		if params, ok := matchPattern(rt.Pattern, path); ok {
			return rt, params
		}
	}
	if fallback.Pattern == "" {
		fallback = Route{Pattern: PathNotFound, Title: "Not Found"}
	}
	return fallback, nil
}

func matchPattern(pattern, path string) (map[string]string, bool) {
	ps := splitPath(pattern)
	xs := splitPath(path)
	if len(ps) != len(xs) {
		return nil, false
	}

	var params map[string]string
	for i, p := range ps {
		if name, ok := strings.CutPrefix(p, ":"); ok {
			if xs[i] == "" {
				return nil, false
			}
			if params == nil {
				params = make(map[string]string)
			}
			params[name] = xs[i]
			continue
		}
		if p != xs[i] {
			return nil, false
		}
	}
	return params, true
}

func splitPath(p string) []string {
	p = strings.Trim(p, "/")
	if p == "" {
		return nil
	}
	return strings.Split(p, "/")
}

// Resolve applies the gate to loc. The session is checked on every call,
// so a protected route never resolves without one.
func (r *Router) Resolve(loc liststate.Location) Match {
	loc = loc.Clone()
	if loc.Path == "" {
		loc.Path = PathHome
	}
	rt, params := r.match(loc.Path)

	authed := r.auth != nil && r.auth.IsAuthenticated()
	switch {
	case rt.Protected && !authed:
		return r.redirect(loc, PathLogin)
	case rt.Pattern == PathLogin && authed:
		return r.redirect(loc, PathHome)
	}

	return Match{Route: rt, Params: params, Location: loc}
}

func (r *Router) redirect(from liststate.Location, to string) Match {
	target := liststate.Location{Path: to}
	rt, params := r.match(to)
	r.logger.Debug("redirect", zap.String("from", from.String()), zap.String("to", to))
	return Match{Route: rt, Params: params, Location: target, RedirectedFrom: &from}
}

// Navigate resolves raw and pushes the result onto the history.
func (r *Router) Navigate(raw string) (Match, error) {
	loc, err := liststate.ParseLocation(raw)
	if err != nil {
		return Match{}, err
	}
	return r.Push(loc), nil
}

// Push resolves loc and pushes the result onto the history.
func (r *Router) Push(loc liststate.Location) Match {
	m := r.Resolve(loc)
	r.mu.Lock()
	r.history = append(r.history, m)
	r.mu.Unlock()
	r.notify(m)
	return m
}

// Replace resolves loc and replaces the current history entry,
// e.g. when list state changes the query string.
func (r *Router) Replace(loc liststate.Location) Match {
	m := r.Resolve(loc)
	r.mu.Lock()
	if n := len(r.history); n > 0 {
		r.history[n-1] = m
	} else {
		r.history = append(r.history, m)
	}
	r.mu.Unlock()
	r.notify(m)
	return m
}

// Back pops the current entry and re-resolves the previous one.
// It reports false when there is nothing to go back to.
func (r *Router) Back() (Match, bool) {
	r.mu.Lock()
	if len(r.history) < 2 {
		r.mu.Unlock()
		return Match{}, false
	}
	r.history = r.history[:len(r.history)-1]
	prev := r.history[len(r.history)-1].Location
	r.mu.Unlock()

	return r.Replace(prev), true
}

// Current returns the entry on top of the history.
func (r *Router) Current() (Match, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.history) == 0 {
		return Match{}, false
	}
	return r.history[len(r.history)-1], true
}

// Refresh re-resolves the current entry, e.g. after the session ended.
func (r *Router) Refresh() Match {
	cur, ok := r.Current()
	if !ok {
		return r.Push(liststate.Location{Path: PathHome})
	}
	return r.Replace(cur.Location)
}

// OnChange registers fn to run after every history change.
func (r *Router) OnChange(fn func(Match)) {
	if fn == nil {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.listeners = append(r.listeners, fn)
}

func (r *Router) notify(m Match) {
	r.mu.Lock()
	listeners := append(([]func(Match))(nil), r.listeners...)
	r.mu.Unlock()
	for _, fn := range listeners {
		fn(m)
	}
}
