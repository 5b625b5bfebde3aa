// Command server runs the platform's API gateway: the CSRF-guarded
// dashboard API, the public widget ingress, billing webhooks and the GDPR
// job queue.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/botfold/botfold/csrf"
	"github.com/botfold/botfold/internal/api"
	"github.com/botfold/botfold/internal/config"
	"github.com/botfold/botfold/internal/jobs"
)

func main() {
	if err := run(); err != nil {
		slog.Error("server exited", "error", err)
		os.Exit(1)
	}
}

func run() error {
	cfgFile := flag.String("config", "", "path to a YAML config file (optional)")
	flag.Parse()

	cfg, err := config.Load(*cfgFile)
	if err != nil {
		return err
	}

	logger := newLogger(cfg.Log.Level)
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	store := api.NewStore()
	queue := jobs.New(jobs.Config{
		Handler: complianceHandler(store, logger.With("component", "jobs")),
		Logger:  logger.With("component", "jobs"),
	})
	queue.Start(ctx)

	protector := csrf.New(csrf.Config{
		CookieSecure:  cfg.CSRF.CookieSecure,
		TokenBytes:    cfg.CSRF.TokenBytes,
		AllowedOrigin: cfg.Server.AllowedOrigin,
		Exempt:        exemptRules(cfg),
		Logger:        logger.With("component", "csrf"),
		Metrics:       csrf.NewMetrics(prometheus.DefaultRegisterer),
	})

	apiSrv := api.NewServer(logger, store, queue, cfg.Server.WebhookSecret)

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	// the widget script runs on customer sites, so API CORS is open;
	// CSRF exemptions keep the guarded routes unusable cross-origin
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Content-Type", csrf.DefaultHeaderName, api.TenantHeader},
		AllowCredentials: false,
		MaxAge:           300,
	}))
	r.Use(protector.Issue)

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprintln(w, "ok")
	})
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/api", func(r chi.Router) {
		r.Use(protector.Verify)
		r.Get("/csrf-token", protector.TokenHandler().ServeHTTP)
		apiSrv.Routes(r)
	})

	srv := &http.Server{
		Addr:              cfg.Server.Listen,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()
	logger.Info("server listening", "addr", cfg.Server.Listen)

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	queue.Wait()
	return nil
}

func newLogger(level string) *slog.Logger {
	var lvl slog.Level
	switch strings.ToLower(level) {
	case "debug":
		lvl = slog.LevelDebug
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}
	return slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: lvl}))
}

// exemptRules lists the routes that skip CSRF validation: webhook
// receivers authenticate with provider signatures and the widget ingress
// is intentionally public. Operator-configured prefixes come last.
func exemptRules(cfg *config.Config) []csrf.ExemptRule {
	rules := []csrf.ExemptRule{
		{Prefix: "/api/webhooks/"},
		{Methods: []string{http.MethodPost}, Prefix: "/api/widget/"},
	}
	for _, p := range cfg.CSRF.ExemptPrefixes {
		rules = append(rules, csrf.ExemptRule{Prefix: p})
	}
	return rules
}

// complianceHandler executes GDPR jobs against the store. Export
// artifacts would be uploaded for the tenant to download; here the
// payload is assembled and its size logged.
func complianceHandler(store *api.Store, log *slog.Logger) jobs.Handler {
	return func(ctx context.Context, job jobs.Job) error {
		switch job.Kind {
		case jobs.KindExport:
			payload, err := json.Marshal(store.ExportTenant(job.Tenant))
			if err != nil {
				return fmt.Errorf("marshaling export: %w", err)
			}
			log.Info("export assembled", "tenant", job.Tenant, "bytes", len(payload))
			return nil
		case jobs.KindDelete:
			store.DeleteTenant(job.Tenant)
			log.Info("tenant data erased", "tenant", job.Tenant)
			return nil
		default:
			return fmt.Errorf("unknown job kind %q", job.Kind)
		}
	}
}
