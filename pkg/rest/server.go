package rest

import (
	"cmp"
	"context"
	"net/http"

	"github.com/edgeflare/dbapi/pkg/crud"
	"github.com/edgeflare/dbapi/pkg/httputil"
	"github.com/edgeflare/dbapi/pkg/httputil/middleware"
	"github.com/edgeflare/dbapi/pkg/value"
	"go.uber.org/zap"
)

// DefaultMaxBodyBytes bounds request bodies when Options.MaxBodyBytes is zero.
const DefaultMaxBodyBytes int64 = 1 << 20

// Store is the table engine served over HTTP. *crud.Engine implements it.
type Store interface {
	Ping(ctx context.Context) error
	Tables(ctx context.Context) ([]string, error)
	List(ctx context.Context, table string) ([]value.Row, error)
	Insert(ctx context.Context, table string, fields value.Fields) (crud.InsertResult, error)
	UpdateByID(ctx context.Context, table, rowID string, fields value.Fields) error
	DeleteByID(ctx context.Context, table, rowID string) error
	UpdateByFields(ctx context.Context, table string, original, updated value.Fields) (int64, error)
	DeleteByFields(ctx context.Context, table string, filter value.Fields) (int64, error)
}

// Options configures a Server.
type Options struct {
	// BaseURL is prepended to every route, e.g. "/v1". Empty mounts at the root.
	BaseURL      string
	MaxBodyBytes int64
	Logger       *zap.Logger
	// CORS enables the CORS middleware when non-nil.
	CORS          *middleware.CORSOptions
	ServerOptions []func(*http.Server)
}

type Server struct {
	store   Store
	router  *httputil.Router
	logger  *zap.Logger
	cors    *middleware.CORSOptions
	baseURL string
	maxBody int64
}

func NewServer(store Store, opts Options) *Server {
	logger := cmp.Or(opts.Logger, zap.NewNop())
	s := &Server{
		store: store,
		router: httputil.NewRouter(
			httputil.WithLogger(logger),
			httputil.WithServerOptions(opts.ServerOptions...),
		),
		logger:  logger,
		cors:    opts.CORS,
		baseURL: opts.BaseURL,
		maxBody: cmp.Or(opts.MaxBodyBytes, DefaultMaxBodyBytes),
	}
	s.router.Use(middleware.Metrics)
	s.registerHandlers()
	return s
}

func (s *Server) registerHandlers() {
	s.router.HandleFunc("GET /healthz", s.handleHealth)

	api := s.router.Group(s.baseURL + "/api")
	api.HandleFunc("OPTIONS /data/{tableName}", s.handlePreflight)
	api.HandleFunc("OPTIONS /data/{tableName}/{rowId}", s.handlePreflight)
	api.HandleFunc("GET /tables", s.handleTables)
	api.HandleFunc("GET /data/{tableName}", s.handleList)
	api.HandleFunc("POST /data/{tableName}", s.handleInsert)
	api.HandleFunc("PUT /data/{tableName}/{rowId}", s.handleUpdateByID)
	api.HandleFunc("DELETE /data/{tableName}/{rowId}", s.handleDeleteByID)
	api.HandleFunc("POST /data/{tableName}/update", s.handleUpdateByFields)
	api.HandleFunc("POST /data/{tableName}/delete", s.handleDeleteByFields)
}

// Handler returns the routes wrapped in the server-wide middleware: request id, access log
// and, when configured, CORS.
func (s *Server) Handler() http.Handler {
	mws := []httputil.Middleware{
		middleware.RequestID,
		middleware.LoggerWithOptions(&middleware.LoggerOptions{Logger: s.logger}),
	}
	if s.cors != nil {
		mws = append(mws, middleware.CORSWithOptions(s.cors))
	}
	return middleware.Chain(s.router, mws...)
}

// ListenAndServe blocks serving Handler on addr until Shutdown is called.
func (s *Server) ListenAndServe(addr string) error {
	return s.router.ListenAndServe(addr, s.Handler())
}

// Shutdown stops accepting connections and waits for in-flight requests until ctx ends.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.router.Shutdown(ctx)
}
