package dbapi

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/edgeflare/dbapi/pkg/crud"
	"github.com/edgeflare/dbapi/pkg/httputil/middleware"
	"github.com/edgeflare/dbapi/pkg/metrics"
	"github.com/edgeflare/dbapi/pkg/rest"
	"github.com/edgeflare/dbapi/pkg/sqldb"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP API server",
	Long:  `Starts the HTTP API server and, unless disabled, the Prometheus metrics server`,
	RunE:  runServe,
}

func init() {
	f := serveCmd.Flags()
	f.StringP("server.listenAddr", "l", "", "API server listen address")
	f.String("server.baseURL", "", "path prefix for all API routes, e.g. /v1")
	f.String("database.driver", "", "database driver: sqlite3, postgres, mysql or sqlserver")
	f.StringP("database.dsn", "d", "", "database connection string")
	f.Bool("cors.enabled", false, "answer CORS preflight requests and set CORS headers")
	f.Bool("metrics.enabled", true, "serve Prometheus metrics")
	f.String("metrics.addr", "", "metrics server listen address")
}

func runServe(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := sqldb.Open(ctx, sqldb.Config{
		Driver:          cfg.Database.Driver,
		DSN:             cfg.Database.DSN,
		MaxConns:        cfg.Database.MaxConns,
		ConnMaxLifetime: cfg.Database.ConnMaxLifetime,
	})
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	defer db.Close()
	logger.Info("connected to database", zap.String("driver", db.Dialect().Name()))

	engine := crud.NewEngine(db,
		crud.WithLogger(logger.Named("crud")),
		crud.WithRetryPolicy(crud.RetryPolicy{
			InitialInterval: cfg.Insert.Retry.InitialInterval,
			MaxInterval:     cfg.Insert.Retry.MaxInterval,
			MaxElapsedTime:  cfg.Insert.Retry.MaxElapsed,
		}),
	)

	var cors *middleware.CORSOptions
	if cfg.CORS.Enabled {
		cors = middleware.DefaultCORSOptions()
		cors.AllowedOrigins = cfg.CORS.AllowedOrigins
		cors.AllowCredentials = cfg.CORS.AllowCredentials
	}

	server := rest.NewServer(engine, rest.Options{
		BaseURL:      cfg.Server.BaseURL,
		MaxBodyBytes: cfg.Server.MaxBodyBytes,
		Logger:       logger,
		CORS:         cors,
		ServerOptions: []func(*http.Server){
			func(s *http.Server) { s.ReadHeaderTimeout = cfg.Server.ReadHeaderTimeout },
		},
	})

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		if err := server.ListenAndServe(cfg.Server.ListenAddr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), cfg.Server.ShutdownTimeout)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	})
	if cfg.Metrics.Enabled {
		g.Go(func() error {
			return metrics.ServePrometheus(gctx, &metrics.PromServerOpts{
				Addr:            cfg.Metrics.Addr,
				Path:            cfg.Metrics.Path,
				ShutdownTimeout: cfg.Server.ShutdownTimeout,
				Logger:          logger,
			})
		})
	}

	if err := g.Wait(); err != nil {
		return err
	}
	logger.Info("server gracefully stopped")
	return nil
}
