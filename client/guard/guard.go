// Package guard decides, per navigation, whether a requested view may
// render. Decisions are derived purely from the session store; the guard
// never mutates it.
package guard

import (
	"sync"

	"plexman/client/session"
)

// Route describes a navigable view.
type Route struct {
	Name string
	// Protected routes require an authenticated session.
	Protected bool
	// AuthView marks the public auth pages (login, register, reset flows);
	// the navigation bar is hidden on these regardless of auth state.
	AuthView bool
}

// Decision is the outcome of resolving a navigation.
type Decision struct {
	// Allow is false when the navigation must be discarded in favor of
	// RedirectTo.
	Allow bool
	// RedirectTo names the route to show instead, when Allow is false.
	RedirectTo string
	// ShowNav reports whether the navigation bar should render.
	ShowNav bool
}

// Guard resolves navigations against the current session snapshot and
// re-evaluates the current view whenever the session changes.
type Guard struct {
	store      *session.Store
	loginRoute string

	mu       sync.RWMutex
	routes   map[string]Route
	current  string
	onChange func(Decision)
}

// New creates a Guard reading from store. loginRoute is where denied
// navigations are redirected.
func New(store *session.Store, loginRoute string) (*Guard, error) {
	g := &Guard{
		store:      store,
		loginRoute: loginRoute,
		routes:     make(map[string]Route),
	}
	if err := store.Subscribe(g.sessionChanged); err != nil {
		return nil, err
	}
	return g, nil
}

// Register adds or replaces a route definition.
func (g *Guard) Register(routes ...Route) {
	g.mu.Lock()
	defer g.mu.Unlock()
	for _, r := range routes {
		g.routes[r.Name] = r
	}
}

// Resolve decides whether the named view may render under the current
// session. Unknown routes fail closed: they are treated as protected.
func (g *Guard) Resolve(name string) Decision {
	g.mu.RLock()
	route, known := g.routes[name]
	g.mu.RUnlock()

	return g.decide(route, known, g.store.Get())
}

func (g *Guard) decide(route Route, known bool, snap session.Snapshot) Decision {
	if !known {
		route = Route{Protected: true}
	}
	if route.Protected && !snap.IsAuthenticated() {
		return Decision{Allow: false, RedirectTo: g.loginRoute, ShowNav: false}
	}
	// Authenticated users may still reach the public auth views; the nav
	// bar stays hidden there.
	return Decision{Allow: true, ShowNav: !route.AuthView}
}

// SetCurrent records the view currently rendered and returns its decision.
// The guard re-resolves this view on every session change, so a logout (or
// a stale-session clear) while a protected view is showing produces a
// redirect decision through OnChange.
func (g *Guard) SetCurrent(name string) Decision {
	g.mu.Lock()
	g.current = name
	g.mu.Unlock()
	return g.Resolve(name)
}

// OnChange registers a handler invoked with the re-evaluated decision for
// the current view whenever the session changes.
func (g *Guard) OnChange(fn func(Decision)) {
	g.mu.Lock()
	g.onChange = fn
	g.mu.Unlock()
}

func (g *Guard) sessionChanged(snap session.Snapshot) {
	g.mu.RLock()
	name := g.current
	fn := g.onChange
	route, known := g.routes[name]
	g.mu.RUnlock()

	if fn == nil || name == "" {
		return
	}
	fn(g.decide(route, known, snap))
}
