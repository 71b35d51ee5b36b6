package cli

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v4/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"

	"quiz-room-service/internal/app"
	"quiz-room-service/internal/config"
	"quiz-room-service/internal/domain"
	"quiz-room-service/internal/extract"
	"quiz-room-service/internal/generate"
	"quiz-room-service/internal/infra/memory"
	"quiz-room-service/internal/infra/objectstore"
	"quiz-room-service/internal/infra/postgres"
	"quiz-room-service/internal/infra/rabbitmq"
	redisstore "quiz-room-service/internal/infra/redis"
	"quiz-room-service/internal/logging"
	"quiz-room-service/internal/metrics"
	"quiz-room-service/internal/transport/hub"
	transport "quiz-room-service/internal/transport/http"
)

const (
	defaultPort       = "8080"
	outboxSize        = 64
	sessionMarkerTTL  = 10 * time.Minute
	roomCacheTTL      = 5 * time.Minute
	shutdownGrace     = 10 * time.Second
	defaultGenTimeout = 120 * time.Second
	defaultOCRTimeout = 60 * time.Second
)

// NewStartCmd builds the CLI subcommand to start the server.
func NewStartCmd(configPath, port *string) *cobra.Command {
	return &cobra.Command{
		Use:   "start",
		Short: "Start the quiz room server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServer(cmd.Context(), *configPath, *port)
		},
	}
}

// closer collects cleanup steps and runs them in reverse order.
type closer []func()

func (c *closer) add(fn func()) { *c = append(*c, fn) }

func (c closer) run() {
	for i := len(c) - 1; i >= 0; i-- {
		c[i]()
	}
}

func runServer(ctx context.Context, configPath, portFlag string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	logger := logging.New(cfg.Log.Level, cfg.Log.Format)
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var cleanup closer
	defer cleanup.run()

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.New(registry)

	var redisClient *redis.Client
	if cfg.Redis.Addr != "" {
		redisClient = redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		cleanup.add(func() { _ = redisClient.Close() })
	}

	rooms, err := buildRoomRepository(ctx, cfg, redisClient, logger, &cleanup)
	if err != nil {
		return err
	}

	var sessions app.SessionRepository = memory.NewSessionStore()
	if redisClient != nil {
		store := redisstore.NewSessionStore(redisClient, config.TTLDuration(cfg.Redis.TTL, sessionMarkerTTL))
		sessions = store
		go refreshSessionMarkers(ctx, store, config.TTLDuration(cfg.Redis.TTL, sessionMarkerTTL)/2, logger)
	}

	connections := hub.New(logger, outboxSize)

	opts := []app.Option{
		app.WithLogger(logger),
		app.WithMetrics(m),
		app.WithPointsPerCorrect(cfg.Quiz.PointsPerCorrect),
	}
	if cfg.AMQP.URL != "" {
		publisher, err := rabbitmq.Dial(cfg.AMQP.URL, cfg.AMQP.Queue)
		if err != nil {
			return fmt.Errorf("connect to amqp: %w", err)
		}
		cleanup.add(func() { _ = publisher.Close() })
		opts = append(opts, app.WithResultPublisher(publisher))
	}
	quiz := app.NewQuizService(rooms, sessions, connections, opts...)

	if cfg.Quiz.AutoAdvance {
		auto := app.NewAutoAdvancer(quiz, logger)
		quiz.SetProgressListener(auto)
		cleanup.add(auto.Stop)
	}

	archive, err := buildArchive(ctx, cfg, logger)
	if err != nil {
		return err
	}

	var ocr extract.Extractor
	if cfg.Extractor.APIKey != "" {
		ocr = extract.NewVision(cfg.Extractor.VisionURL, cfg.Extractor.APIKey, config.TTLDuration(cfg.Extractor.Timeout, defaultOCRTimeout))
	} else {
		logger.Warn("no vision api key configured, image and pdf uploads are disabled")
	}

	generator := generate.NewClient(generate.Config{
		APIURL:    cfg.Generator.APIURL,
		APIKey:    cfg.Generator.APIKey,
		Model:     cfg.Generator.Model,
		MaxTokens: cfg.Generator.MaxTokens,
		Timeout:   config.TTLDuration(cfg.Generator.Timeout, defaultGenTimeout),
	})
	if !generator.IsAvailable() {
		logger.Warn("no generator api key configured, room creation will fail")
	}

	roomService := app.NewRoomService(app.RoomServiceConfig{
		Rooms:     rooms,
		Extractor: extract.NewRouter(ocr),
		Generator: generator,
		Archive:   archive,
		Logger:    logger,
		Metrics:   m,
		IDLength:  cfg.Quiz.CodeLength,
	})

	router := transport.NewRouter(transport.RouterConfig{
		WS:       transport.NewWSHandler(quiz, connections, logger),
		Rooms:    transport.NewRoomHandler(roomService, cfg.Uploads.MaxBytes, logger),
		Gatherer: registry,
		Logger:   logger,
	})

	finalPort := portFlag
	if finalPort == "" {
		finalPort = cfg.Server.Port
	}
	if finalPort == "" {
		finalPort = defaultPort
	}
	server := &http.Server{
		Addr:              ":" + finalPort,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       config.TTLDuration(cfg.Server.ReadTimeout, 60*time.Second),
		WriteTimeout:      config.TTLDuration(cfg.Server.WriteTimeout, 180*time.Second),
	}

	serveErr := make(chan error, 1)
	go func() {
		logger.Info("starting quiz room service", slog.String("addr", server.Addr), slog.String("storage", cfg.Storage.Driver))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	select {
	case err := <-serveErr:
		if err != nil {
			return fmt.Errorf("serve: %w", err)
		}
		return nil
	case <-ctx.Done():
		logger.Info("shutting down server")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownGrace)
	defer cancel()
	return server.Shutdown(shutdownCtx)
}

func buildRoomRepository(ctx context.Context, cfg config.Config, client *redis.Client, logger *slog.Logger, cleanup *closer) (app.RoomRepository, error) {
	switch cfg.Storage.Driver {
	case config.DriverMemory:
		return memory.NewRoomRepository(), nil

	case config.DriverRedis:
		if client == nil {
			return nil, errors.New("redis storage selected but redis.addr is empty")
		}
		repo := redisstore.NewRoomRepository(client, config.TTLDuration(cfg.Redis.RoomTTL, 0))
		if err := closeInterruptedRooms(ctx, repo, logger); err != nil {
			return nil, err
		}
		return repo, nil

	case config.DriverPostgres:
		if err := runMigrations(ctx, cfg, logger); err != nil {
			return nil, fmt.Errorf("migrate: %w", err)
		}
		pool, err := pgxpool.Connect(ctx, cfg.Postgres.URL)
		if err != nil {
			return nil, fmt.Errorf("connect to postgres: %w", err)
		}
		cleanup.add(pool.Close)

		repo := postgres.NewRoomRepository(pool)
		if err := closeInterruptedRooms(ctx, repo, logger); err != nil {
			return nil, err
		}
		return memory.NewCachedRoomRepository(repo, config.TTLDuration(cfg.Cache.TTL, roomCacheTTL)), nil
	}
	return nil, fmt.Errorf("unknown storage driver %q", cfg.Storage.Driver)
}

// activeRoomStore is a durable room store that can list running rooms.
type activeRoomStore interface {
	ActiveRooms(ctx context.Context) ([]string, error)
	UpdateStatus(ctx context.Context, roomID string, status domain.RoomStatus) error
}

// closeInterruptedRooms completes rooms that were running when the process
// last stopped; their question pointer is gone.
func closeInterruptedRooms(ctx context.Context, repo activeRoomStore, logger *slog.Logger) error {
	ids, err := repo.ActiveRooms(ctx)
	if err != nil {
		return err
	}
	closed := 0
	for _, id := range ids {
		err := repo.UpdateStatus(ctx, id, domain.RoomCompleted)
		switch {
		case err == nil:
			closed++
		case errors.Is(err, domain.ErrRoomNotFound):
			// expired since it was marked active
		default:
			return err
		}
	}
	if closed > 0 {
		logger.Info("closed interrupted rooms", slog.Int("count", closed))
	}
	return nil
}

func buildArchive(ctx context.Context, cfg config.Config, logger *slog.Logger) (app.DocumentArchive, error) {
	s3 := cfg.Uploads.S3
	switch {
	case s3.Endpoint != "":
		store, err := objectstore.NewMinioStore(objectstore.MinioConfig{
			Endpoint:  s3.Endpoint,
			AccessKey: s3.AccessKey,
			SecretKey: s3.SecretKey,
			Bucket:    s3.Bucket,
			UseSSL:    s3.UseSSL,
		})
		if err != nil {
			return nil, err
		}
		if err := store.EnsureBucket(ctx); err != nil {
			return nil, err
		}
		logger.Info("archiving uploads to object storage", slog.String("bucket", s3.Bucket))
		return store, nil
	case cfg.Uploads.Dir != "":
		logger.Info("archiving uploads to disk", slog.String("dir", cfg.Uploads.Dir))
		return objectstore.NewLocalStore(cfg.Uploads.Dir), nil
	}
	return nil, nil
}

func refreshSessionMarkers(ctx context.Context, store *redisstore.SessionStore, every time.Duration, logger *slog.Logger) {
	if every <= 0 {
		return
	}
	ticker := time.NewTicker(every)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := store.Refresh(ctx); err != nil {
				logger.Warn("refresh session markers failed", slog.String("error", err.Error()))
			}
		}
	}
}
