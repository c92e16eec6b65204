// Package engine parses engine command flags and starts the mutation engine
// service.
package engine

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"net/http"
	"time"

	httpapi "github.com/docflowGM/foundryvtt-swse-sub001/internal/api/http"
	"github.com/docflowGM/foundryvtt-swse-sub001/internal/engine/boundary"
	"github.com/docflowGM/foundryvtt-swse-sub001/internal/engine/catalog"
	"github.com/docflowGM/foundryvtt-swse-sub001/internal/engine/observability/metrics"
	"github.com/docflowGM/foundryvtt-swse-sub001/internal/engine/service"
	"github.com/docflowGM/foundryvtt-swse-sub001/internal/engine/storage/memory"
	"github.com/docflowGM/foundryvtt-swse-sub001/internal/engine/storage/sqlite"
	entrypoint "github.com/docflowGM/foundryvtt-swse-sub001/internal/platform/cmd"
)

// Config holds engine command configuration.
type Config struct {
	Addr           string `env:"SWSE_ENGINE_ADDR" envDefault:":8080"`
	DBPath         string `env:"SWSE_ENGINE_DB_PATH"`
	CatalogPath    string `env:"SWSE_ENGINE_CATALOG_PATH" envDefault:"catalog.yaml"`
	AuditCap       int    `env:"SWSE_ENGINE_AUDIT_CAP" envDefault:"200"`
	BoundaryMode   string `env:"SWSE_ENGINE_BOUNDARY_MODE" envDefault:"report"`
	OperatorSecret string `env:"SWSE_ENGINE_OPERATOR_SECRET"`
}

// ParseConfig parses environment and flags into a Config.
func ParseConfig(fs *flag.FlagSet, args []string) (Config, error) {
	var cfg Config
	if err := entrypoint.ParseConfig(&cfg); err != nil {
		return Config{}, err
	}
	fs.StringVar(&cfg.Addr, "addr", cfg.Addr, "The engine listen address")
	fs.StringVar(&cfg.DBPath, "db", cfg.DBPath, "SQLite database path (empty runs in-memory)")
	fs.StringVar(&cfg.CatalogPath, "catalog", cfg.CatalogPath, "Content catalog YAML path")
	fs.IntVar(&cfg.AuditCap, "audit-cap", cfg.AuditCap, "Per-entity audit trail cap")
	fs.StringVar(&cfg.BoundaryMode, "boundary", cfg.BoundaryMode, "Boundary enforcement: report or block")
	if err := entrypoint.ParseArgs(fs, args); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Run starts the mutation engine service.
func Run(ctx context.Context, cfg Config) error {
	enforcement, ok := boundary.ParseEnforcement(cfg.BoundaryMode)
	if !ok {
		return fmt.Errorf("invalid boundary mode %q", cfg.BoundaryMode)
	}
	cat, err := catalog.Load(cfg.CatalogPath)
	if err != nil {
		return fmt.Errorf("load catalog: %w", err)
	}

	return entrypoint.RunWithTelemetry(ctx, entrypoint.ServiceEngine, func(ctx context.Context) error {
		opts := []service.Option{
			service.WithMetrics(metrics.New()),
			service.WithAuditCap(cfg.AuditCap),
		}

		var store interface {
			Close() error
		}
		var eng *service.Engine
		if cfg.DBPath != "" {
			db, err := sqlite.Open(ctx, cfg.DBPath)
			if err != nil {
				return fmt.Errorf("open store: %w", err)
			}
			store = db
			opts = append(opts, service.WithAuditStore(db))
			eng = service.New(db, cat, enforcement, opts...)
			if err := eng.RestoreAuditHistory(ctx); err != nil {
				return fmt.Errorf("restore audit history: %w", err)
			}
		} else {
			log.Printf("no db path configured, running with in-memory storage")
			eng = service.New(memory.NewStore(), cat, enforcement, opts...)
		}
		defer func() {
			if store != nil {
				if err := store.Close(); err != nil {
					log.Printf("close store: %v", err)
				}
			}
		}()

		return serve(ctx, cfg.Addr, httpapi.New(eng, cfg.OperatorSecret).Router())
	})
}

// serve runs the HTTP server until the context is canceled, then drains.
func serve(ctx context.Context, addr string, handler http.Handler) error {
	server := &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Printf("engine listening addr=%s", addr)
		errCh <- server.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("shutdown: %w", err)
		}
		return nil
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}
