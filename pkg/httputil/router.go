package httputil

import (
	"context"
	"fmt"
	"net/http"
	"slices"
	"strings"

	"go.uber.org/zap"
)

// Middleware wraps an http.Handler.
type Middleware func(http.Handler) http.Handler

// RouterOptions configures a Router.
type RouterOptions func(*Router)

// Router registers "METHOD /pattern" routes on a shared ServeMux, optionally under a path
// prefix, and wraps each route in the middleware installed before it. Routes and middleware
// are registered during setup; a Router is not meant to be modified while it serves.
type Router struct {
	mux        *http.ServeMux
	server     *http.Server
	logger     *zap.Logger
	prefix     string
	middleware []Middleware
}

func NewRouter(opts ...RouterOptions) *Router {
	r := &Router{
		mux:    http.NewServeMux(),
		server: &http.Server{},
		logger: zap.NewNop(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// WithServerOptions applies opts to the http.Server used by ListenAndServe.
func WithServerOptions(opts ...func(*http.Server)) RouterOptions {
	return func(r *Router) {
		for _, opt := range opts {
			opt(r.server)
		}
	}
}

// WithLogger sets the logger used for server lifecycle messages.
func WithLogger(logger *zap.Logger) RouterOptions {
	return func(r *Router) {
		if logger != nil {
			r.logger = logger
		}
	}
}

// Use appends middleware for routes registered afterwards. The first one given is the
// outermost. Middleware runs after the mux has matched, so r.Pattern is set.
func (r *Router) Use(mws ...Middleware) {
	r.middleware = append(r.middleware, mws...)
}

// Group returns a router that registers under prefix on the same mux. It starts with a copy
// of r's middleware; middleware added to either one later does not affect the other.
func (r *Router) Group(prefix string) *Router {
	return &Router{
		mux:        r.mux,
		server:     r.server,
		logger:     r.logger,
		prefix:     r.prefix + prefix,
		middleware: slices.Clone(r.middleware),
	}
}

// Handle registers handler for a Go 1.22 method pattern such as "GET /items/{id}". On a
// group with prefix /api it resolves to "GET /api/items/{id}". A pattern without a method
// panics.
func (r *Router) Handle(methodPattern string, handler http.Handler) {
	method, pattern, ok := strings.Cut(methodPattern, " ")
	if !ok {
		panic(fmt.Sprintf("httputil: invalid method pattern: %s", methodPattern))
	}
	for i := len(r.middleware) - 1; i >= 0; i-- {
		handler = r.middleware[i](handler)
	}
	r.mux.Handle(method+" "+r.prefix+pattern, handler)
}

func (r *Router) HandleFunc(methodPattern string, handler http.HandlerFunc) {
	r.Handle(methodPattern, handler)
}

func (r *Router) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	r.mux.ServeHTTP(w, req)
}

// ListenAndServe serves handler on addr. A nil handler serves the router itself; callers
// pass a wrapped router to add server-wide middleware that runs before routing.
func (r *Router) ListenAndServe(addr string, handler http.Handler) error {
	if handler == nil {
		handler = r
	}
	r.server.Addr = addr
	r.server.Handler = handler

	r.logger.Info("starting server", zap.String("addr", addr))
	return r.server.ListenAndServe()
}

// Shutdown stops accepting connections and waits for in-flight requests until ctx is done.
func (r *Router) Shutdown(ctx context.Context) error {
	r.logger.Info("shutting down server")
	return r.server.Shutdown(ctx)
}
