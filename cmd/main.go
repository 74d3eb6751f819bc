package main

import (
	"context"
	"database/sql"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/joho/godotenv"

	"github.com/Meixii/thesis-production-sub001/internal/clients"
	"github.com/Meixii/thesis-production-sub001/internal/config"
	"github.com/Meixii/thesis-production-sub001/internal/repository"
	"github.com/Meixii/thesis-production-sub001/internal/service"
	"github.com/Meixii/thesis-production-sub001/internal/transport/rest"
	"github.com/Meixii/thesis-production-sub001/internal/transport/websocket"
	"github.com/Meixii/thesis-production-sub001/pkg/database/postgres"
	"github.com/Meixii/thesis-production-sub001/pkg/logging"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Println("no .env file found, using system env or defaults")
	}

	// top-level context which we can cancel on shutdown
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	cfg := config.Load()
	logging.Setup(cfg.LogLevel)

	db := mustInitPostgres(cfg.Postgres)
	defer postgres.Close(db)

	if err := postgres.Migrate(db); err != nil {
		slog.Error("migration failed", "error", err)
		os.Exit(1)
	}

	redisClient := mustInitRedis(cfg.Redis)
	defer redisClient.Close()

	proofStorage, localStorage := mustInitStorage(ctx, cfg)

	wsHub := websocket.NewHub()
	go wsHub.Run(ctx)
	wsClient := clients.NewWebSocketClient(wsHub)

	txManager := repository.NewTxManager(db)
	groupRepo := repository.NewGroupRepository(db)
	obligationRepo := repository.NewObligationRepository(db)
	paymentRepo := repository.NewPaymentRepository(db)
	loanRepo := repository.NewLoanRepository(db)
	expenseRepo := repository.NewExpenseRepository(db)
	dueRepo := repository.NewDueRepository(db)
	weekRepo := repository.NewWeekRepository(db)

	balanceSvc := service.NewBalanceService(groupRepo, paymentRepo, expenseRepo, loanRepo, redisClient)
	ledgerSvc := service.NewLedgerService(txManager, groupRepo, obligationRepo, paymentRepo, loanRepo, weekRepo, proofStorage, wsClient, balanceSvc)
	loanSvc := service.NewLoanService(txManager, groupRepo, loanRepo, proofStorage, balanceSvc)
	expenseSvc := service.NewExpenseService(txManager, groupRepo, expenseRepo, obligationRepo, balanceSvc)
	groupSvc := service.NewGroupService(txManager, groupRepo, dueRepo, obligationRepo)
	obligationSvc := service.NewObligationService(txManager, groupRepo, obligationRepo, weekRepo, dueRepo)

	handler := rest.NewHandler(
		groupSvc,
		ledgerSvc,
		loanSvc,
		expenseSvc,
		obligationSvc,
		balanceSvc,
		wsHub,
		[]byte(cfg.Auth.JWTSecret),
		time.Duration(cfg.Auth.TokenTTLDays)*24*time.Hour,
	)
	router := handler.InitRouter()

	// public root router so proof files stay reachable without a token
	root := chi.NewRouter()
	if localStorage != nil {
		root.Get(cfg.Storage.PublicPrefix+"/{file}", func(w http.ResponseWriter, r *http.Request) {
			file := filepath.Base(chi.URLParam(r, "file"))
			path := filepath.Join(localStorage.BaseDir, file)
			if _, err := os.Stat(path); err != nil {
				http.NotFound(w, r)
				return
			}
			http.ServeFile(w, r, path)
		})
	}
	root.Mount("/", router)

	corsHandler := withCORS(root)

	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      corsHandler,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	srvErr := make(chan error, 1)
	go func() {
		slog.Info("HTTP server listening", "port", cfg.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			srvErr <- err
			return
		}
		srvErr <- nil
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)

	select {
	case err := <-srvErr:
		if err != nil {
			slog.Error("HTTP server error", "error", err)
			os.Exit(1)
		}
	case sig := <-stop:
		slog.Info("shutdown signal received", "signal", sig.String())

		// Give server up to 10 seconds to finish ongoing requests
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer shutdownCancel()

		if err := srv.Shutdown(shutdownCtx); err != nil {
			slog.Error("HTTP server shutdown error", "error", err)
		}

		// Cancel top-level context so the websocket hub drains
		cancel()

		postgres.Close(db)
		redisClient.Close()

		slog.Info("shutdown complete")
	}
}

func mustInitPostgres(cfg config.PostgresConfig) *sql.DB {
	db, err := postgres.NewPostgresConnection(postgres.ConnectionInfo{
		Host:     cfg.Host,
		Port:     cfg.Port,
		Username: cfg.User,
		DBName:   cfg.DBName,
		SSLMode:  cfg.SSLMode,
		Password: cfg.Password,
	})
	if err != nil {
		log.Fatalf("postgres init error: %v", err)
	}
	return db
}

func mustInitRedis(cfg config.RedisConfig) *clients.RedisClient {
	client, err := clients.NewRedisClient(clients.RedisConfig{
		Addr:        cfg.Addr,
		Password:    cfg.Password,
		DB:          cfg.DB,
		MaxRetries:  cfg.MaxRetries,
		DialTimeout: time.Duration(cfg.DialTimeout) * time.Second,
		Timeout:     time.Duration(cfg.Timeout) * time.Second,
		Prefix:      cfg.Prefix,
	})
	if err != nil {
		log.Fatalf("redis init error: %v", err)
	}
	return client
}

// mustInitStorage picks the proof storage driver. The local driver also
// returns the client so main can serve its files.
func mustInitStorage(ctx context.Context, cfg config.AppConfig) (service.ProofStorage, *clients.StorageClient) {
	if strings.EqualFold(cfg.Storage.Driver, "s3") {
		s3, err := clients.NewS3Client(ctx, clients.S3Config{
			Endpoint:        cfg.S3.Endpoint,
			AccessKeyID:     cfg.S3.AccessKeyID,
			SecretAccessKey: cfg.S3.SecretAccessKey,
			Bucket:          cfg.S3.Bucket,
			UseSSL:          cfg.S3.UseSSL,
			Region:          cfg.S3.Region,
			Prefix:          cfg.S3.Prefix,
		})
		if err != nil {
			log.Fatalf("s3 init error: %v", err)
		}
		return s3, nil
	}

	local, err := clients.NewLocalStorage(cfg.Storage.LocalDir, cfg.Storage.PublicPrefix, cfg.Storage.ExternalURL)
	if err != nil {
		log.Fatalf("storage init error: %v", err)
	}
	return local, local
}

func withCORS(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		origin := r.Header.Get("Origin")
		if origin != "" {
			w.Header().Set("Access-Control-Allow-Origin", origin)
			w.Header().Set("Vary", "Origin")

			w.Header().Set("Access-Control-Allow-Credentials", "true")
			w.Header().Set("Access-Control-Allow-Methods", "GET,POST,PATCH,DELETE,OPTIONS")
			w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization, X-Requested-With")
		}

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}

		next.ServeHTTP(w, r)
	})
}
