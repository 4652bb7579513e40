package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"nearby_server/config"
	"nearby_server/controllers"
	"nearby_server/routes"
	"nearby_server/services"

	"github.com/gorilla/handlers"
	"github.com/rs/cors"
)

// backends are the storage-facing collaborators selected by configuration.
type backends struct {
	store  services.SignalStore
	oracle services.RelationshipOracle
	photos services.PhotoSigner
	close  func()
}

func buildBackends(ctx context.Context, cfg *config.Configuration) (*backends, error) {
	switch cfg.Store.Backend {
	case config.BackendMemory:
		slog.Warn("using in-memory store; unknown users are created on first signal and nothing is persisted")
		store := services.NewMemorySignalStore()
		store.AutoCreate = true
		return &backends{store: store, oracle: services.NewMemoryRelationshipOracle(), close: func() {}}, nil

	case config.BackendPostgres:
		slog.Info("connecting to postgres...")
		db, err := services.ConnectPostgres(ctx, cfg.Database.DSN)
		if err != nil {
			return nil, err
		}
		return &backends{
			store:  services.NewPostgresSignalStore(db),
			oracle: services.NewPostgresRelationshipOracle(db),
			close:  func() { db.Close() },
		}, nil

	default:
		slog.Info("initializing DynamoDB client...", "region", cfg.AWS.Region)
		awsCfg, err := services.LoadAWSConfig(ctx, cfg.AWS.Region)
		if err != nil {
			return nil, err
		}
		dynamo := &services.DynamoService{Client: services.InitializeDynamoDBClient(awsCfg, cfg.AWS.Endpoint)}
		b := &backends{
			store:  services.NewDynamoSignalStore(dynamo, cfg.AWS.UsersTable),
			oracle: services.NewDynamoRelationshipOracle(dynamo, cfg.AWS.UsersTable, cfg.AWS.InteractionsTable),
			close:  func() {},
		}
		if cfg.AWS.PhotoBucket != "" {
			b.photos = services.NewS3PhotoSigner(awsCfg, cfg.AWS.PhotoBucket, cfg.AWS.PhotoURLExpiry)
		}
		return b, nil
	}
}

func run(ctx context.Context) error {
	cfg, err := config.Load(".", "/etc/nearby")
	if err != nil {
		return err
	}
	slog.SetDefault(config.NewLogger(os.Stderr, cfg.Log.Level, cfg.Log.Format))

	b, err := buildBackends(ctx, cfg)
	if err != nil {
		return err
	}
	defer b.close()
	if b.photos == nil && cfg.PhotoBaseURL != "" {
		b.photos = services.StaticPhotoSigner{BaseURL: strings.TrimRight(cfg.PhotoBaseURL, "/")}
	}

	oracle := b.oracle
	if cfg.RelationshipCacheTTL > 0 {
		cached := services.NewCachedRelationshipOracle(oracle, cfg.RelationshipCacheTTL)
		defer cached.Stop()
		oracle = cached
	}

	opts := services.DiscoveryOptions{
		Photos:           b.photos,
		StoreTimeout:     cfg.Store.Timeout,
		BluetoothTxPower: cfg.Bluetooth.TxPower,
	}
	if cfg.RateLimit.PerMinute > 0 {
		limiter := services.NewRateLimiter(cfg.RateLimit.PerMinute, cfg.RateLimit.Burst, 0)
		defer limiter.Stop()
		opts.Limiter = limiter
	}

	router := routes.NewRouter(routes.Dependencies{
		Ingestion: services.NewIngestionService(b.store, cfg.Store.Timeout),
		Discovery: services.NewDiscoveryService(b.store, oracle, opts),
		Auth:      controllers.HeaderAuthenticator{},
	})

	corsHandler := cors.New(cors.Options{
		AllowedOrigins:   cfg.AllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "OPTIONS"},
		AllowedHeaders:   []string{"Content-Type", "Authorization", controllers.UserIDHeader, controllers.RequestIDHeader},
		ExposedHeaders:   []string{controllers.RequestIDHeader},
		AllowCredentials: true,
	}).Handler(router)

	srv := &http.Server{
		Addr:              cfg.ListenAddr,
		Handler:           handlers.RecoveryHandler(handlers.PrintRecoveryStack(true))(corsHandler),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("starting server", "addr", cfg.ListenAddr, "backend", cfg.Store.Backend)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server failed: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	slog.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx); err != nil {
		slog.Error("fatal", "error", err)
		os.Exit(1)
	}
}
