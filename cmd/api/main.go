package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"

	"campusauth/internal/academic"
	"campusauth/internal/account"
	"campusauth/internal/auth"
	"campusauth/internal/config"
	"campusauth/internal/httpapi"
	"campusauth/internal/httpmiddleware"
	"campusauth/internal/metrics"
	"campusauth/internal/notify"
	"campusauth/internal/queue"
	"campusauth/internal/store"
)

func main() {
	cfg := config.Load()

	// Set Gin mode based on environment
	if cfg.Production() {
		gin.SetMode(gin.ReleaseMode)
	}

	if err := runHTTP(cfg); err != nil {
		log.Fatalf("http server failed: %v", err)
	}
}

func runHTTP(cfg config.App) error {
	ctx, stop := context.WithCancel(context.Background())
	defer stop()

	var (
		db           *store.DB
		accountRepo  account.Repository
		academicRepo academic.Repository
	)
	if cfg.StoreBackend == "memory" {
		log.Println("using in-memory store; data is lost on restart")
		accountRepo = account.NewMemoryRepository()
		academicRepo = academic.NewMemoryRepository()
	} else {
		var err error
		db, err = store.NewDB(cfg.DatabaseURL)
		if db == nil {
			return err
		}
		if err != nil {
			log.Printf("warning: db not reachable: %v", err)
		}
		defer db.Close()
		if cfg.MigrateOnStart {
			migrateCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
			err := db.Migrate(migrateCtx)
			cancel()
			if err != nil {
				return err
			}
		}
		accountRepo = account.NewRepository(db.Client)
		academicRepo = academic.NewRepository(db.Client)
	}

	var (
		redisClient *store.Redis
		q           queue.Queue
	)
	if cfg.QueueBackend == "memory" {
		// no external worker can reach this queue, so log codes in-process
		q = queue.NewInMemory(64)
		if err := notify.Start(ctx, q, notify.LogSender{}); err != nil {
			return err
		}
	} else {
		redisClient = store.NewRedis(cfg.RedisAddr)
		defer redisClient.Close()
		q = queue.NewRedisQueue(redisClient.Client, cfg.QueueKey)
	}

	signer := auth.NewSigner(cfg.JWTSigningKey, cfg.JWTIssuer, cfg.TokenTTL)
	accounts := account.NewService(
		accountRepo,
		auth.NewBcryptHasher(cfg.BcryptCost),
		signer,
		notify.NewPublisher(q),
		account.Options{OTPTTL: cfg.OTPTTL, SupersedePrior: cfg.OTPSupersedePrior},
	)

	var otpLimiter httpmiddleware.Limiter
	if redisClient != nil {
		otpLimiter = httpmiddleware.NewRedisWindow(redisClient.Client, cfg.OTPRateLimit, cfg.OTPRateWindow)
	} else {
		otpLimiter = httpmiddleware.NewSimpleTokenBucket(cfg.OTPRateLimit, cfg.OTPRateWindow)
	}

	r := httpapi.NewRouter(httpapi.Options{
		ServiceName:        cfg.ServiceName,
		CORSOrigins:        cfg.CORSOrigins,
		AcademicWriteRoles: cfg.AcademicWriteRoles,
	}, httpapi.Deps{
		Accounts:      accounts,
		Academic:      academic.NewService(academicRepo),
		Signer:        signer,
		Metrics:       metrics.New(),
		GlobalLimiter: httpmiddleware.NewSimpleTokenBucket(cfg.RateLimitPerMin, time.Minute),
		OTPLimiter:    otpLimiter,
		Ready: func(ctx context.Context) map[string]bool {
			checks := map[string]bool{}
			if cfg.StoreBackend != "memory" {
				checks["db"] = db.Healthy(ctx)
			}
			if redisClient != nil {
				checks["redis"] = redisClient.Healthy(ctx)
			}
			return checks
		},
	})

	// Graceful shutdown
	srv := &http.Server{
		Addr:         ":" + cfg.HTTPPort,
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Printf("%s listening on :%s", cfg.ServiceName, cfg.HTTPPort)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("Server error: %v", err)
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Println("Shutting down server...")

	// Give outstanding requests 10 seconds to complete
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Printf("Server forced shutdown: %v", err)
	}

	log.Println("Server exited")
	return nil
}
