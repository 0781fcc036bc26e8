package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"datachat-backend/cmd"
	"datachat-backend/internal/analysis"
	"datachat-backend/internal/api"
	"datachat-backend/internal/cache"
	"datachat-backend/internal/chat"
	"datachat-backend/internal/database"
	"datachat-backend/internal/messaging"
	"datachat-backend/internal/storage"
	"datachat-backend/internal/upload"

	"github.com/caarlos0/env/v11"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
)

type ServerConfig struct {
	DatabaseURL        string `env:"DATABASE_URL,notEmpty,required"`
	AnalysisBackendURL string `env:"ANALYSIS_BACKEND_URL,notEmpty,required"`

	// Optional: falls back to the in-memory queue when unset.
	RabbitMQURL string `env:"RABBITMQ_URL"`

	// Optional: falls back to the in-memory cache when unset.
	RedisURL string `env:"REDIS_URL"`

	// When S3_ENDPOINT_URL is unset, uploads go to LOCAL_STORAGE_DIR.
	S3EndpointURL     string `env:"S3_ENDPOINT_URL"`
	S3AccessKeyID     string `env:"AWS_ACCESS_KEY_ID"`
	S3SecretAccessKey string `env:"AWS_SECRET_ACCESS_KEY"`
	S3Region          string `env:"AWS_REGION" envDefault:"us-east-1"`
	UploadBucketName  string `env:"UPLOAD_BUCKET_NAME" envDefault:"uploads"`
	LocalStorageDir   string `env:"LOCAL_STORAGE_DIR" envDefault:"./data/uploads"`

	MaxUploadBytes int64  `env:"MAX_UPLOAD_BYTES" envDefault:"52428800"`
	APIPort        string `env:"API_PORT" envDefault:"8001"`
}

func createObjectStore(cfg ServerConfig) (storage.ObjectStore, error) {
	if cfg.S3EndpointURL == "" {
		return storage.NewLocalObjectStore(cfg.LocalStorageDir)
	}

	store, err := storage.NewS3ObjectStore(cfg.UploadBucketName, storage.S3ClientConfig{
		Endpoint:        cfg.S3EndpointURL,
		Region:          cfg.S3Region,
		AccessKeyID:     cfg.S3AccessKeyID,
		SecretAccessKey: cfg.S3SecretAccessKey,
	})
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := store.CreateBucket(ctx); err != nil {
		return nil, err
	}
	return store, nil
}

func main() {
	log.Println("Starting API Server...")

	cmd.LoadEnvFile()

	var cfg ServerConfig
	if err := env.Parse(&cfg); err != nil {
		log.Fatalf("error parsing config: %v", err)
	}

	db, err := database.NewDatabase(cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}

	objectStore, err := createObjectStore(cfg)
	if err != nil {
		log.Fatalf("Failed to create object store: %v", err)
	}

	var fileCache cache.FileCache
	if cfg.RedisURL != "" {
		redisCache, err := cache.NewRedisFileCache(cfg.RedisURL)
		if err != nil {
			log.Fatalf("Failed to connect to redis: %v", err)
		}
		defer redisCache.Close()
		fileCache = redisCache
	} else {
		fileCache = cache.NewMemoryFileCache()
	}

	// The persistence pipeline: handlers publish appends, the worker applies
	// them to the session store off the request path.
	var publisher messaging.Publisher
	var reciever messaging.Reciever
	if cfg.RabbitMQURL != "" {
		rabbitPublisher, err := messaging.NewRabbitMQPublisher(cfg.RabbitMQURL)
		if err != nil {
			log.Fatalf("Failed to connect to RabbitMQ: %v", err)
		}
		rabbitReciever, err := messaging.NewRabbitMQReceiver(cfg.RabbitMQURL)
		if err != nil {
			log.Fatalf("Failed to create RabbitMQ receiver: %v", err)
		}
		publisher, reciever = rabbitPublisher, rabbitReciever
	} else {
		queue := messaging.NewInMemoryQueue()
		publisher, reciever = queue, queue
	}
	defer publisher.Close()

	sessions := chat.NewSessionStore(db)

	workerCtx, stopWorker := context.WithCancel(context.Background())
	wg := &sync.WaitGroup{}
	worker := &messaging.Worker{Sessions: sessions, Reciever: reciever, WaitGroup: wg}
	worker.Start(workerCtx)

	backend := analysis.NewClient(cfg.AnalysisBackendURL)

	orchestrator := upload.NewOrchestrator(db, objectStore, backend, sessions, fileCache, publisher)
	orchestrator.SetMaxFileSize(cfg.MaxUploadBytes)

	// --- Chi Router Setup ---
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"*"},
		ExposedHeaders:   []string{"*"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("OK"))
	})

	r.Route("/api", func(r chi.Router) {
		r.Use(api.AuthMiddleware)
		api.NewChatService(sessions, backend, fileCache, publisher).AddRoutes(r)
		api.NewFileService(orchestrator).AddRoutes(r)
		api.NewProjectService(db, sessions).AddRoutes(r)
	})

	server := &http.Server{
		Addr:    ":" + cfg.APIPort,
		Handler: r,
	}

	// Goroutine for graceful shutdown
	go func() {
		quit := make(chan os.Signal, 1)
		signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
		<-quit
		log.Println("Shutting down server...")

		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		if err := server.Shutdown(ctx); err != nil {
			log.Fatalf("Server forced to shutdown: %v", err)
		}
	}()

	log.Printf("API server listening on port %s", cfg.APIPort)
	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		log.Fatalf("Could not listen on %s: %v\n", cfg.APIPort, err)
	}

	stopWorker()
	reciever.Close()
	wg.Wait()

	log.Println("Server stopped.")
}
