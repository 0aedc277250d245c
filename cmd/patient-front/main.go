package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/labstack/echo/v4"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/abernathy/patientfront/internal/config"
	"github.com/abernathy/patientfront/internal/credential"
	"github.com/abernathy/patientfront/internal/front"
	"github.com/abernathy/patientfront/internal/gateway"
	"github.com/abernathy/patientfront/internal/identity"
	"github.com/abernathy/patientfront/internal/platform/auth"
	"github.com/abernathy/patientfront/internal/platform/db"
	"github.com/abernathy/patientfront/internal/platform/middleware"
	"github.com/abernathy/patientfront/internal/risk"
	"github.com/abernathy/patientfront/migrations"
)

const version = "0.1.0"

func main() {
	rootCmd := &cobra.Command{
		Use:   "patient-front",
		Short: "Patient front-end for the clinic gateway",
	}

	rootCmd.AddCommand(serveCmd())
	rootCmd.AddCommand(migrateCmd())
	rootCmd.AddCommand(userCmd())

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the patient front-end API",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServer()
		},
	}
}

func migrateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Manage the application user schema",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "up",
		Short: "Apply pending migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			pool, err := openDatabase(ctx)
			if err != nil {
				return err
			}
			defer pool.Close()

			count, err := db.NewMigrator(pool, migrations.FS).Up(ctx)
			if err != nil {
				return fmt.Errorf("migration failed: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Applied %d migration(s) successfully.\n", count)
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "status",
		Short: "Show migration status",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			pool, err := openDatabase(ctx)
			if err != nil {
				return err
			}
			defer pool.Close()

			statuses, err := db.NewMigrator(pool, migrations.FS).Status(ctx)
			if err != nil {
				return fmt.Errorf("failed to get migration status: %w", err)
			}
			printStatus(cmd.OutOrStdout(), statuses)
			return nil
		},
	})

	return cmd
}

func printStatus(w io.Writer, statuses []db.MigrationStatus) {
	fmt.Fprintf(w, "%-10s %-40s %-10s %s\n", "VERSION", "NAME", "STATUS", "APPLIED AT")
	for _, s := range statuses {
		status, appliedAt := "pending", ""
		if s.Applied {
			status = "applied"
			if s.AppliedAt != nil {
				appliedAt = s.AppliedAt.Format("2006-01-02 15:04:05")
			}
		}
		fmt.Fprintf(w, "%-10d %-40s %-10s %s\n", s.Version, s.Name, status, appliedAt)
	}
}

func userCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "user",
		Short: "Manage application users",
	}

	addCmd := &cobra.Command{
		Use:   "add",
		Short: "Create a user who can log in to the front-end",
		RunE: func(cmd *cobra.Command, args []string) error {
			username, _ := cmd.Flags().GetString("username")
			role, _ := cmd.Flags().GetString("role")
			password := os.Getenv("PATIENTFRONT_PASSWORD")
			if password == "" {
				line, err := readLine(cmd.InOrStdin())
				if err != nil {
					return fmt.Errorf("read password: %w", err)
				}
				password = line
			}

			ctx := cmd.Context()
			pool, err := openDatabase(ctx)
			if err != nil {
				return err
			}
			defer pool.Close()

			svc := identity.NewService(identity.NewUserRepoPG(pool))
			u, err := svc.CreateUser(ctx, username, password, identity.ParseRole(role))
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Created user %s with role %s.\n", u.Username, u.Role)
			return nil
		},
	}
	addCmd.Flags().String("username", "", "Login name")
	addCmd.Flags().String("role", string(identity.RolePraticien), "Organizer or Praticien")
	_ = addCmd.MarkFlagRequired("username")
	cmd.AddCommand(addCmd)

	return cmd
}

// readLine reads the password from stdin, so it never appears in the
// process list or shell history.
func readLine(r io.Reader) (string, error) {
	line, err := bufio.NewReader(r).ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return "", err
	}
	return strings.TrimRight(line, "\r\n"), nil
}

func openDatabase(ctx context.Context) (*pgxpool.Pool, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	if err := cfg.ValidateDatabase(); err != nil {
		return nil, err
	}
	return db.NewPool(ctx, cfg.DatabaseURL, cfg.DBMaxConns, cfg.DBMinConns)
}

func newLogger(cfg *config.Config, out io.Writer) zerolog.Logger {
	level, err := zerolog.ParseLevel(cfg.Level())
	if err != nil {
		level = zerolog.InfoLevel
	}
	if cfg.IsDev() {
		out = zerolog.ConsoleWriter{Out: out}
	}
	return zerolog.New(out).Level(level).With().Timestamp().Logger()
}

// newCredentialCache returns the configured cache and, for redis, the
// client that must be closed on shutdown.
func newCredentialCache(ctx context.Context, cfg *config.Config) (credential.Cache, *redis.Client, error) {
	if cfg.CredentialStore != config.StoreRedis {
		return credential.NewMemoryCache(cfg.Scope()), nil, nil
	}
	client, err := credential.OpenRedis(ctx, cfg.RedisURL)
	if err != nil {
		return nil, nil, err
	}
	return credential.NewRedisCache(client, cfg.Scope(), cfg.CredentialCacheTTL), client, nil
}

// deps are the long-lived collaborators a server is built from.
type deps struct {
	users   auth.Authenticator
	cache   credential.Cache
	health  db.Pinger
	gateway *http.Client
}

// newServer wires the credential lifecycle, gateway clients, risk
// orchestration and HTTP surface.
func newServer(cfg *config.Config, logger zerolog.Logger, d deps) (*echo.Echo, error) {
	validator, err := credential.NewHMACValidatorFromBase64(cfg.JWTSecretKey)
	if err != nil {
		return nil, fmt.Errorf("credential validator: %w", err)
	}

	httpClient := d.gateway
	if httpClient == nil {
		httpClient = &http.Client{Timeout: cfg.RemoteTimeout}
	}

	managerOpts := []credential.ManagerOption{credential.WithLogger(logger)}
	if cfg.SerializeAcquire {
		managerOpts = append(managerOpts, credential.WithSerializedAcquire())
	}
	manager := credential.NewManager(
		d.cache,
		validator,
		credential.NewHTTPIssuer(cfg.TokenURL(), httpClient),
		managerOpts...,
	)

	client := gateway.NewClient(cfg.GatewayURL, gateway.WithHTTPClient(httpClient), gateway.WithLogger(logger))
	patients := gateway.NewPatientClient(client, cfg.PatientPath)
	history := gateway.NewHistoryClient(client, cfg.HistoryPath)
	scorer := gateway.NewRiskClient(client, cfg.RiskPath)
	orchestrator := risk.NewOrchestrator(manager, history, patients, scorer,
		risk.WithLookupMode(cfg.Lookup()),
		risk.WithLogger(logger),
	)

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	e.Use(middleware.Recovery(logger))
	e.Use(middleware.RequestID())
	e.Use(middleware.SecurityHeaders())
	e.Use(middleware.BodyLimit(cfg.BodyLimit))
	e.Use(middleware.RequestTimeout(cfg.RequestTimeout))
	e.Use(middleware.Logger(logger))
	e.Use(auth.SessionMiddleware(d.users, auth.AuthSkipper))

	e.GET("/health", func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]string{
			"status":  "ok",
			"version": version,
		})
	})
	if d.health != nil {
		e.GET("/health/db", db.HealthHandler(d.health))
	}

	front.NewHandler(manager, patients, history, orchestrator, front.WithLogger(logger)).
		RegisterRoutes(e.Group(""))

	return e, nil
}

func runServer() error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	logger := newLogger(cfg, os.Stdout)

	if err := cfg.Validate(); err != nil {
		logger.Fatal().Err(err).Msg("invalid configuration")
	}

	ctx := context.Background()
	pool, err := db.NewPool(ctx, cfg.DatabaseURL, cfg.DBMaxConns, cfg.DBMinConns)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to connect to database")
	}
	defer pool.Close()
	logger.Info().Msg("connected to database")

	cache, rdb, err := newCredentialCache(ctx, cfg)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to open credential store")
	}
	if rdb != nil {
		defer rdb.Close()
	}
	logger.Info().
		Str("store", cfg.CredentialStore).
		Str("scope", string(cfg.Scope())).
		Msg("credential cache ready")

	e, err := newServer(cfg, logger, deps{
		users:  identity.NewService(identity.NewUserRepoPG(pool)),
		cache:  cache,
		health: pool,
	})
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to build server")
	}

	go func() {
		addr := ":" + cfg.Port
		logger.Info().Str("addr", addr).Str("gateway", cfg.GatewayURL).Msg("starting server")
		if err := e.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
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
