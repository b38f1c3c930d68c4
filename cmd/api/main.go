package main

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	_ "github.com/lib/pq"
	"github.com/pressly/goose/v3"

	"postroom/internal/config"
	"postroom/internal/events"
	"postroom/internal/handlers"
	"postroom/internal/middleware"
	"postroom/internal/notifications"
	"postroom/internal/posts"
	"postroom/internal/storage"
	"postroom/internal/uploads"
	"postroom/migrations"
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))
	slog.SetDefault(logger)

	cfg := config.Load()
	if cfg.DatabaseURL == "" {
		logger.Error("DATABASE_URL is required")
		os.Exit(1)
	}
	if cfg.S3Bucket == "" {
		logger.Error("S3_BUCKET is required")
		os.Exit(1)
	}

	db, err := sql.Open("postgres", cfg.DatabaseURL)
	if err != nil {
		logger.Error("failed to open database", "error", err)
		os.Exit(1)
	}
	defer db.Close()
	if err := db.Ping(); err != nil {
		logger.Error("failed to ping database", "error", err)
		os.Exit(1)
	}

	goose.SetBaseFS(migrations.FS)
	if err := goose.SetDialect("postgres"); err != nil {
		logger.Error("failed to set goose dialect", "error", err)
		os.Exit(1)
	}
	if err := goose.Up(db, "."); err != nil {
		logger.Error("failed to run migrations", "error", err)
		os.Exit(1)
	}

	ctx := context.Background()
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(cfg.AWSRegion))
	if err != nil {
		logger.Error("failed to load AWS config", "error", err)
		os.Exit(1)
	}
	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.S3Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.S3Endpoint)
			o.UsePathStyle = true
		}
	})
	baseURL := cfg.MediaBaseURL
	if baseURL == "" {
		baseURL = fmt.Sprintf("https://%s.s3.%s.amazonaws.com", cfg.S3Bucket, cfg.AWSRegion)
	}
	store := storage.NewS3Storage(client, cfg.S3Bucket, baseURL)

	finalized, err := uploads.NewStore(filepath.Join(cfg.UploadDir, "temp-videos"))
	if err != nil {
		logger.Error("failed to create upload store", "error", err)
		os.Exit(1)
	}
	receiver, err := uploads.NewReceiver(filepath.Join(cfg.UploadDir, "parts"), finalized)
	if err != nil {
		logger.Error("failed to create upload receiver", "error", err)
		os.Exit(1)
	}

	var publisher events.Publisher = events.NoopPublisher{}
	if cfg.RabbitMQURL != "" {
		rmq, err := events.NewRabbitMQPublisher(cfg.RabbitMQURL)
		if err != nil {
			logger.Error("failed to connect to RabbitMQ", "error", err)
			os.Exit(1)
		}
		defer rmq.Close()
		publisher = rmq
	} else {
		logger.Warn("RABBITMQ_URL not set, notifications disabled")
	}

	postRepo := posts.NewPostgresRepository(db)
	postSvc := posts.NewService(postRepo, store, finalized, publisher, logger)
	notifRepo := notifications.NewPostgresRepository(db)

	postsHandler := handlers.NewPostsHandler(postSvc, store, logger)
	uploadsHandler := handlers.NewUploadsHandler(receiver, postSvc, store, logger)
	notifHandler := handlers.NewNotificationsHandler(notifRepo, logger)
	health := handlers.Health(&handlers.HealthDeps{DB: db, Storage: store, RabbitMQURL: cfg.RabbitMQURL})

	mux := handlers.Routes(postsHandler, uploadsHandler, notifHandler, health)

	var handler http.Handler = mux
	handler = middleware.Language(handler)
	handler = middleware.APIKey(cfg.APIKey)(handler)
	handler = middleware.Logging(logger)(handler)
	handler = middleware.RequestID(handler)

	server := &http.Server{
		Addr:    ":" + cfg.Port,
		Handler: handler,
	}

	logger.Info("postroom api started", "port", cfg.Port)
	if err := server.ListenAndServe(); err != nil {
		logger.Error("server stopped", "error", err)
		os.Exit(1)
	}
}
