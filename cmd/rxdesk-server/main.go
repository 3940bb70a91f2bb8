package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"io/fs"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/rxdesk/rxdesk/internal/config"
	"github.com/rxdesk/rxdesk/internal/domain/medicine"
	"github.com/rxdesk/rxdesk/internal/domain/prescription"
	"github.com/rxdesk/rxdesk/internal/platform/auth"
	"github.com/rxdesk/rxdesk/internal/platform/db"
	"github.com/rxdesk/rxdesk/internal/platform/metrics"
	"github.com/rxdesk/rxdesk/internal/platform/middleware"
	"github.com/rxdesk/rxdesk/internal/platform/rxdoc"
	"github.com/rxdesk/rxdesk/migrations"
)

const serviceName = "rxdesk"

func main() {
	rootCmd := &cobra.Command{
		Use:          "rxdesk-server",
		Short:        "Prescription desk API server",
		SilenceUsage: true,
	}

	rootCmd.AddCommand(serveCmd())
	rootCmd.AddCommand(migrateCmd())
	rootCmd.AddCommand(renderCmd())

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func newLogger(env string, out io.Writer) zerolog.Logger {
	if env == "development" {
		return zerolog.New(zerolog.ConsoleWriter{Out: out}).With().Timestamp().Logger()
	}
	return zerolog.New(out).With().Timestamp().Str("service", serviceName).Logger()
}

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the API server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServer()
		},
	}
}

// migrationSource returns dir when given and the embedded migrations
// otherwise.
func migrationSource(dir string) fs.FS {
	if dir != "" {
		return os.DirFS(dir)
	}
	return migrations.FS
}

func migrateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Run database migrations",
	}

	// migrate up
	upCmd := &cobra.Command{
		Use:   "up",
		Short: "Apply pending migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			dir, _ := cmd.Flags().GetString("dir")
			target, _ := cmd.Flags().GetInt("to")

			cfg, err := config.Load()
			if err != nil {
				return err
			}
			if err := cfg.RequireDatabase(); err != nil {
				return err
			}

			ctx := context.Background()
			pool, err := db.NewPool(ctx, cfg.DatabaseURL, db.PoolConfig{MaxConns: 2})
			if err != nil {
				return err
			}
			defer pool.Close()

			migrator := db.NewMigrator(pool, migrationSource(dir))
			var count int
			if target > 0 {
				count, err = migrator.UpTo(ctx, target)
			} else {
				count, err = migrator.Up(ctx)
			}
			if err != nil {
				return fmt.Errorf("migration failed: %w", err)
			}

			fmt.Fprintf(cmd.OutOrStdout(), "Applied %d migration(s) successfully.\n", count)
			return nil
		},
	}
	upCmd.Flags().String("dir", "", "Read migrations from this directory instead of the built-in set")
	upCmd.Flags().Int("to", 0, "Stop after this version")
	cmd.AddCommand(upCmd)

	// migrate status
	statusCmd := &cobra.Command{
		Use:   "status",
		Short: "Show migration status",
		RunE: func(cmd *cobra.Command, args []string) error {
			dir, _ := cmd.Flags().GetString("dir")

			cfg, err := config.Load()
			if err != nil {
				return err
			}
			if err := cfg.RequireDatabase(); err != nil {
				return err
			}

			ctx := context.Background()
			pool, err := db.NewPool(ctx, cfg.DatabaseURL, db.PoolConfig{MaxConns: 2})
			if err != nil {
				return err
			}
			defer pool.Close()

			statuses, err := db.NewMigrator(pool, migrationSource(dir)).Status(ctx)
			if err != nil {
				return fmt.Errorf("failed to get migration status: %w", err)
			}
			printStatus(cmd.OutOrStdout(), statuses)
			return nil
		},
	}
	statusCmd.Flags().String("dir", "", "Read migrations from this directory instead of the built-in set")
	cmd.AddCommand(statusCmd)

	return cmd
}

func printStatus(w io.Writer, statuses []db.MigrationStatus) {
	fmt.Fprintf(w, "%-10s %-40s %-10s %s\n", "VERSION", "NAME", "STATUS", "APPLIED AT")
	fmt.Fprintln(w, "---------- ---------------------------------------- ---------- --------------------")
	for _, s := range statuses {
		status := "pending"
		appliedAt := ""
		if s.Applied {
			status = "applied"
			if s.AppliedAt != nil {
				appliedAt = s.AppliedAt.Format("2006-01-02 15:04:05")
			}
		}
		fmt.Fprintf(w, "%-10d %-40s %-10s %s\n", s.Version, s.Name, status, appliedAt)
	}
}

func renderCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "render",
		Short: "Render a prescription JSON file to PDF or HTML without a server",
		RunE: func(cmd *cobra.Command, args []string) error {
			in, _ := cmd.Flags().GetString("in")
			out, _ := cmd.Flags().GetString("out")
			formatName, _ := cmd.Flags().GetString("format")

			cfg, err := config.Load()
			if err != nil {
				return err
			}
			return renderFile(cfg, in, out, formatName, cmd.InOrStdin(), cmd.OutOrStdout())
		},
	}
	cmd.Flags().String("in", "-", "Prescription JSON file, - for stdin")
	cmd.Flags().String("out", "", "Output file, - for stdout (default: the document's download name)")
	cmd.Flags().String("format", "pdf", "pdf or html")
	return cmd
}

func renderFile(cfg *config.Config, in, out, formatName string, stdin io.Reader, stdout io.Writer) error {
	format, err := rxdoc.ParseFormat(formatName)
	if err != nil {
		return err
	}

	var src io.Reader = stdin
	if in != "-" {
		f, err := os.Open(in)
		if err != nil {
			return err
		}
		defer f.Close()
		src = f
	}

	var p rxdoc.Prescription
	if err := json.NewDecoder(src).Decode(&p); err != nil {
		return fmt.Errorf("decode prescription: %w", err)
	}

	svc := prescription.NewService(nil, newRenderer(cfg), nil, zerolog.Nop())
	art, err := svc.Render(&p, format)
	if err != nil {
		return err
	}

	if out == "-" {
		_, err = stdout.Write(art.Body)
		return err
	}
	if out == "" {
		out = art.Filename
	}
	if err := os.WriteFile(out, art.Body, 0o644); err != nil {
		return err
	}
	fmt.Fprintf(stdout, "Wrote %s (%d bytes)\n", out, len(art.Body))
	return nil
}

func newRenderer(cfg *config.Config) *rxdoc.Renderer {
	lh := cfg.Letterhead()
	return rxdoc.NewRenderer(rxdoc.Options{
		Letterhead:     &lh,
		Assets:         cfg.Assets(),
		AssetURLPrefix: cfg.AssetURLPrefix,
	})
}

// deps carries what the HTTP server needs from the outside world so tests
// can build it without a database.
type deps struct {
	pinger        db.Pinger
	medicines     medicine.Repository
	prescriptions prescription.Repository
	audit         middleware.AuditRecorder

	// registry receives the application collectors and backs /metrics.
	// Nil creates a private one.
	registry *prometheus.Registry
}

// newServer assembles the Echo instance. The returned cleanup stops
// background work owned by the server.
func newServer(cfg *config.Config, logger zerolog.Logger, d deps) (*echo.Echo, func(), error) {
	creds, err := auth.NewCredentials(cfg.AuthUsername, cfg.AuthPassword, cfg.AuthPasswordHash)
	if err != nil {
		return nil, nil, fmt.Errorf("credentials: %w", err)
	}
	assets := cfg.Assets()
	if err := rxdoc.CheckAssets(assets); err != nil {
		return nil, nil, err
	}

	if d.registry == nil {
		d.registry = prometheus.NewRegistry()
	}
	m := metrics.New(d.registry)
	revoked := auth.NewRevocationStore(time.Minute)
	sessions := auth.NewSessionManager([]byte(cfg.SessionSecret), cfg.SessionTTL, revoked)

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	// Global middleware
	e.Use(middleware.Recovery(logger))
	e.Use(middleware.RequestID())
	e.Use(middleware.Logger(logger))
	e.Use(middleware.SecurityHeaders(cfg.TLSEnabled))
	e.Use(echomw.CORSWithConfig(echomw.CORSConfig{
		AllowOrigins:     cfg.CORSOrigins,
		AllowMethods:     []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete},
		AllowHeaders:     []string{"Authorization", "Content-Type", "X-Request-ID"},
		AllowCredentials: true,
	}))
	e.Use(middleware.BodyLimit(cfg.BodyLimit))
	e.Use(middleware.RequestTimeout(cfg.RequestTimeout))

	// Health, metrics and letterhead images
	e.GET("/health", db.LivenessHandler(serviceName))
	e.GET("/health/db", db.HealthHandler(d.pinger))
	e.GET("/metrics", echo.WrapHandler(metrics.Handler(d.registry)))
	if cfg.AssetURLPrefix != "" {
		e.StaticFS(cfg.AssetURLPrefix, assets)
	}

	rateLimitCfg := middleware.DefaultRateLimitConfig()
	rateLimitCfg.RequestsPerSecond = cfg.RateLimitRPS
	rateLimitCfg.BurstSize = cfg.RateLimitBurst

	loginLimitCfg := middleware.DefaultRateLimitConfig()
	loginLimitCfg.RequestsPerSecond = cfg.LoginRateLimitRPS
	loginLimitCfg.BurstSize = cfg.LoginRateLimitBurst

	// Auth
	authGroup := e.Group("/api/auth")
	auth.NewHandler(creds, sessions, cfg.CookieSecure, logger).
		WithMetrics(m).
		RegisterRoutes(authGroup, middleware.RateLimit(loginLimitCfg))

	// Session-protected API
	apiV1 := e.Group("/api/v1")
	apiV1.Use(middleware.RateLimit(rateLimitCfg))
	apiV1.Use(auth.SessionMiddleware(sessions, auth.AuthSkipper))
	apiV1.Use(middleware.Audit(logger, d.audit))

	medicine.NewHandler(medicine.NewService(d.medicines)).RegisterRoutes(apiV1)

	rxSvc := prescription.NewService(d.prescriptions, newRenderer(cfg), m, logger)
	prescription.NewHandler(rxSvc).RegisterRoutes(apiV1)

	return e, revoked.Close, nil
}

func runServer() error {
	// Config
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	// Logger
	logger := newLogger(cfg.Env, os.Stdout)

	if err := cfg.Validate(); err != nil {
		logger.Error().Err(err).Msg("invalid configuration")
		return err
	}
	if cfg.EphemeralSecret {
		logger.Warn().Msg("SESSION_SECRET not set; using a generated secret, sessions end on restart")
	}

	// Database
	ctx := context.Background()
	pool, err := db.NewPool(ctx, cfg.DatabaseURL, db.PoolConfig{
		MaxConns: cfg.DBMaxConns,
		MinConns: cfg.DBMinConns,
	})
	if err != nil {
		logger.Error().Err(err).Msg("failed to connect to database")
		return err
	}
	defer pool.Close()
	logger.Info().Msg("connected to database")

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	e, cleanup, err := newServer(cfg, logger, deps{
		pinger:        pool,
		medicines:     medicine.NewRepoPG(pool),
		prescriptions: prescription.NewRepoPG(pool),
		audit:         middleware.NewPGAuditRecorder(pool),
		registry:      registry,
	})
	if err != nil {
		logger.Error().Err(err).Msg("failed to build server")
		return err
	}
	defer cleanup()

	// Graceful shutdown
	go func() {
		addr := ":" + cfg.Port
		logger.Info().Str("addr", addr).Bool("tls", cfg.TLSEnabled).Msg("starting server")
		var err error
		if cfg.TLSEnabled {
			err = e.StartTLS(addr, cfg.TLSCertFile, cfg.TLSKeyFile)
		} else {
			err = e.Start(addr)
		}
		if err != nil && err != http.ErrServerClosed {
			logger.Fatal().Err(err).Msg("server error")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info().Msg("shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("server shutdown failed")
		return err
	}
	logger.Info().Msg("server stopped")
	return nil
}
