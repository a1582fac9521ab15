package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/spf13/cobra"
	"go.opentelemetry.io/otel"
	"golang.org/x/sync/errgroup"

	"veostudio/internal/batch"
	"veostudio/internal/credential"
	"veostudio/internal/http/handlers"
	"veostudio/internal/http/httpapi"
	"veostudio/internal/infra"
	"veostudio/internal/infra/credentials"
	"veostudio/internal/infra/geoip"
	"veostudio/internal/providers/genai"
	"veostudio/internal/providers/video"
	"veostudio/internal/studio"
	"veostudio/internal/telemetry"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the studio HTTP API",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()
		return runServer(ctx)
	},
}

// credentialHost is what the gate, the remote client and the session each
// need from the place the key lives.
type credentialHost interface {
	credential.Host
	genai.KeySource
	studio.KeyStager
}

func runServer(ctx context.Context) error {
	cfg, err := infra.LoadConfig()
	if err != nil {
		return err
	}
	logger := infra.NewLogger(cfg.AppEnv, cfg.LogLevel)

	shutdownTracing, err := telemetry.SetupTracing(ctx, telemetry.ConfigFrom(cfg, version), logger)
	if err != nil {
		return fmt.Errorf("setup tracing: %w", err)
	}

	host, pool, err := openCredentialHost(ctx, cfg, logger)
	if err != nil {
		return err
	}
	if pool != nil {
		defer pool.Close()
	}

	client, err := genai.NewClient(genai.Options{
		Keys:           host,
		BaseURL:        cfg.GeminiBaseURL,
		FastModel:      cfg.VeoFastModel,
		ReferenceModel: cfg.VeoReferenceModel,
		Resolution:     cfg.VeoResolution,
		HTTPClient:     &http.Client{Timeout: cfg.RemoteTimeout},
		Logger:         &logger,
	})
	if err != nil {
		return err
	}

	gate := credential.NewGate(host, logger)
	if state, err := gate.Init(ctx); err != nil {
		logger.Warn().Err(err).Msg("studio: credential check failed")
	} else {
		logger.Info().Str("state", string(state)).Msg("studio: credential checked")
	}

	notices := studio.NewNoticeBoard()
	characters := studio.NewCharacters()
	orchestrator, err := batch.New(batch.Options{
		Generator:    video.NewVeoGenerator(client),
		Gate:         gate,
		Characters:   characters,
		Notices:      notices,
		PollInterval: cfg.PollInterval,
		Logger:       logger,
		Tracer:       otel.Tracer("veostudio/batch"),
	})
	if err != nil {
		return err
	}

	session := studio.NewSession(studio.Options{
		Gate:         gate,
		Orchestrator: orchestrator,
		Characters:   characters,
		Notices:      notices,
		Stager:       host,
		Logger:       logger,
	})
	defer session.Close()

	resolver, err := geoip.Open(cfg.GeoIPDBPath)
	if err != nil {
		logger.Warn().Err(err).Str("path", cfg.GeoIPDBPath).Msg("studio: geoip disabled")
	}
	defer resolver.Close()

	router := httpapi.NewRouter(handlers.NewApp(session, logger), httpapi.RouterOptions{
		Logger:          logger,
		DefaultLocale:   cfg.DefaultLocale,
		AllowedOrigins:  cfg.CORSAllowedOrigins,
		CountryLookup:   resolver.Lookup(),
		SubmitRateLimit: cfg.RateLimitPerMin,
		Metrics:         orchestrator.Metrics().Handler(),
	})
	server := infra.NewHTTPServer(cfg, router, logger)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(server.Start)
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
		defer cancel()

		var errs []error
		if err := server.Shutdown(shutdownCtx); err != nil {
			errs = append(errs, fmt.Errorf("http shutdown: %w", err))
		}
		if err := orchestrator.Shutdown(shutdownCtx); err != nil {
			errs = append(errs, fmt.Errorf("orchestrator shutdown: %w", err))
		}
		if err := shutdownTracing(shutdownCtx); err != nil {
			errs = append(errs, fmt.Errorf("tracing shutdown: %w", err))
		}
		return errors.Join(errs...)
	})

	err = g.Wait()
	logger.Info().Msg("studio: stopped")
	return err
}

// openCredentialHost keeps the key in PostgreSQL when DATABASE_URL is set and
// in memory otherwise.
func openCredentialHost(ctx context.Context, cfg *infra.Config, logger infra.Logger) (credentialHost, *pgxpool.Pool, error) {
	if cfg.DatabaseURL == "" {
		logger.Info().Bool("seeded", cfg.GeminiAPIKey != "").Msg("studio: using in-memory credential host")
		return credentials.NewEnvHost(cfg.GeminiAPIKey), nil, nil
	}

	pool, err := infra.NewDBPool(ctx, cfg.DatabaseURL)
	if err != nil {
		return nil, nil, err
	}
	store := credentials.NewStore(infra.NewSQLRunner(pool, logger))
	if err := store.EnsureSchema(ctx); err != nil {
		pool.Close()
		return nil, nil, err
	}
	if cfg.GeminiAPIKey != "" {
		stored, err := store.APIKey(ctx)
		if err == nil && stored == "" {
			err = store.SetAPIKey(ctx, cfg.GeminiAPIKey, credentials.SourceEnv)
		}
		if err != nil {
			logger.Warn().Err(err).Msg("studio: seeding stored credential failed")
		}
	}
	host := credentials.NewStoreHost(store)
	logger.Info().Msg("studio: using database credential host")
	return host, pool, nil
}
