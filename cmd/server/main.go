package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"

	"github.com/Skotchmaster/online_store/internal/config"
	"github.com/Skotchmaster/online_store/internal/db"
	"github.com/Skotchmaster/online_store/internal/events"
	"github.com/Skotchmaster/online_store/internal/logging"
	"github.com/Skotchmaster/online_store/internal/middleware/auth"
	"github.com/Skotchmaster/online_store/internal/middleware/csrf"
	loggingmw "github.com/Skotchmaster/online_store/internal/middleware/logging"
	"github.com/Skotchmaster/online_store/internal/objectstore"
	"github.com/Skotchmaster/online_store/internal/repo"
	"github.com/Skotchmaster/online_store/internal/search"
	"github.com/Skotchmaster/online_store/internal/service"
	"github.com/Skotchmaster/online_store/internal/tokens"
	httpserver "github.com/Skotchmaster/online_store/internal/transport/http"
	"github.com/Skotchmaster/online_store/internal/upload"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("config", "error", err)
		os.Exit(1)
	}

	log := logging.New(cfg.LogLevel)
	slog.SetDefault(log)

	ctx := context.Background()

	gdb, err := db.Open(ctx, cfg.DatabaseURL)
	if err != nil {
		log.Error("database init", "error", err)
		os.Exit(1)
	}
	if err := db.Migrate(ctx, gdb); err != nil {
		log.Error("database migrate", "error", err)
		os.Exit(1)
	}

	tokenSvc, err := tokens.NewService(cfg.JWTSecret, cfg.JWTExpiration)
	if err != nil {
		log.Error("token service", "error", err)
		os.Exit(1)
	}

	s3Client, err := objectstore.NewS3Client(ctx, cfg.S3)
	if err != nil {
		log.Error("s3 client", "error", err)
		os.Exit(1)
	}
	if cfg.S3.Bucket == "" {
		log.Warn("S3_BUCKET_NAME is empty, image uploads will fail")
	}
	uploads := upload.NewPipeline(objectstore.NewPublisher(s3Client), cfg.S3.Directory, cfg.S3.Bucket)

	producer := events.NewProducer(cfg.KafkaBrokers)
	if producer == nil {
		log.Warn("KAFKA_BROKERS is empty, domain events are dropped")
	}

	var index service.ProductIndex
	esIndex, err := search.New(cfg.ES)
	switch {
	case err != nil:
		log.Error("elasticsearch client", "error", err)
		os.Exit(1)
	case esIndex == nil:
		log.Warn("ES_URL is empty, product search is disabled")
	default:
		if err := esIndex.Ping(ctx); err != nil {
			log.Warn("elasticsearch is not reachable yet", "error", err)
		}
		index = esIndex
	}

	r := repo.New(gdb)

	e := echo.New()
	e.HideBanner = true
	e.Pre(middleware.RemoveTrailingSlash())
	e.Use(
		middleware.Recover(),
		middleware.RequestID(),
		loggingmw.RequestLogger(log),
		middleware.Secure(),
	)

	deps := httpserver.Deps{
		DB:      gdb,
		Gate:    auth.NewGate(tokenSvc),
		Uploads: uploads,
		Users: &httpserver.UserHTTP{
			Svc:            &service.UserService{Repo: r, Tokens: tokenSvc, Events: producer},
			CookieLifetime: cfg.CookieLifetime,
		},
		Products: &httpserver.ProductHTTP{Svc: &service.ProductService{Repo: r, Events: producer, Index: index}},
		Carts:    &httpserver.CartHTTP{Svc: &service.CartService{Repo: r, Events: producer}},
		Orders:   &httpserver.OrderHTTP{Svc: &service.OrderService{Repo: r, Events: producer}},
	}
	if cfg.CSRFEnabled {
		csrfCfg := csrf.DefaultConfig()
		csrfCfg.SkipPaths = []string{"/user/login", "/user/create"}
		deps.CSRF = &csrfCfg
	}

	httpserver.Register(e, &deps)

	// upload.Single extends both deadlines for multipart requests.
	srv := &http.Server{
		Addr:         cfg.Addr(),
		Handler:      e,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}
	go func() {
		log.Info("http server listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("http server error", "error", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	go func() {
		<-quit
		log.Warn("force exit")
		os.Exit(1)
	}()

	log.Info("shutting down...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("server shutdown error", "error", err)
	}
	if err := db.Close(gdb); err != nil {
		log.Error("db close error", "error", err)
	}
	if err := producer.Close(); err != nil {
		log.Error("kafka close error", "error", err)
	}

	log.Info("shutdown complete")
}
