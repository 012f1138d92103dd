package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/eventhub/internal/clock"
	"github.com/iliyamo/eventhub/internal/config"
	"github.com/iliyamo/eventhub/internal/database"
	"github.com/iliyamo/eventhub/internal/handler"
	"github.com/iliyamo/eventhub/internal/logger"
	"github.com/iliyamo/eventhub/internal/middleware"
	"github.com/iliyamo/eventhub/internal/queue"
	"github.com/iliyamo/eventhub/internal/repository"
	"github.com/iliyamo/eventhub/internal/router"
	"github.com/iliyamo/eventhub/internal/service"
	"github.com/iliyamo/eventhub/internal/token"
	"github.com/iliyamo/eventhub/internal/utils"
)

const shutdownTimeout = 10 * time.Second

func main() {
	cfg, err := config.Load()
	if err != nil {
		logger.Fatal().Err(err).Msg("invalid configuration")
	}
	logger.Init(cfg.LogLevel)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	users, ledger, closeStore := openStorage(cfg)
	defer closeStore()

	clk := clock.System{}
	signer, err := token.NewSigner(cfg.Auth.SignerConfig(), clk)
	if err != nil {
		logger.Fatal().Err(err).Msg("token signer")
	}
	hasher, err := utils.NewBcryptHasher(cfg.Auth.BcryptCost)
	if err != nil {
		logger.Fatal().Err(err).Msg("password hasher")
	}

	auth := service.NewAuthService(
		service.AdminConfig{Passcode: cfg.Auth.AdminPasscode, BootstrapEmail: cfg.Auth.AdminEmail},
		users, hasher, signer, ledger, clk,
	)
	if cfg.AMQP.Enabled {
		auth.WithPublisher(queue.NewAsyncPublisher(ctx, queue.NewPublisher(cfg.AMQP.URL, cfg.AMQP.AuditQueue), cfg.AMQP.PublishBuffer))
		go func() {
			if err := queue.StartAuditConsumer(ctx, cfg.AMQP.URL, cfg.AMQP.AuditQueue, cfg.AMQP.LogDir); err != nil && !errors.Is(err, context.Canceled) {
				logger.Error().Err(err).Msg("audit consumer stopped")
			}
		}()
	}
	admin := service.NewUserService(users, ledger, clk)

	limiter := echo.MiddlewareFunc(func(next echo.HandlerFunc) echo.HandlerFunc { return next })
	if cfg.RateLimit.Enabled {
		if rdb := config.NewRedisClient(cfg.Redis); rdb != nil {
			defer rdb.Close()
			limiter = middleware.NewTokenBucket(cfg.RateLimit, rdb)
		} else {
			logger.Warn().Str("addr", cfg.Redis.Address()).Msg("redis unreachable, rate limiting disabled")
		}
	}

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Validator = handler.NewRequestValidator()
	e.Use(logger.Recovery(), logger.RequestLogger())

	router.RegisterRoutes(e)
	router.RegisterAuth(e, handler.NewAuthHandler(auth), auth, limiter)
	router.RegisterAdmin(e, handler.NewAdminHandler(admin), auth)

	addr := ":" + cfg.Port
	go func() {
		logger.Info().Str("addr", addr).Str("env", cfg.Env).Str("storage", cfg.StorageDriver).Msg("listening")
		if err := e.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal().Err(err).Msg("server failed")
		}
	}()

	<-ctx.Done()
	logger.Info().Msg("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("graceful shutdown failed")
	}
}

// openStorage returns the identity store and session ledger for the
// configured driver, plus a function releasing their resources.
func openStorage(cfg config.Config) (service.IdentityStore, service.SessionLedger, func()) {
	if cfg.StorageDriver == config.DriverMemory {
		logger.Warn().Msg("using in-memory storage; sessions are lost on restart")
		return repository.NewMemoryUserRepo(), repository.NewMemoryTokenRepo(), func() {}
	}

	if cfg.DB.Migrate {
		dsn := database.DSN(cfg.DB.User, cfg.DB.Pass, cfg.DB.Host, cfg.DB.Port, cfg.DB.Name)
		if err := database.Migrate(dsn); err != nil {
			logger.Fatal().Err(err).Msg("database migration failed")
		}
	}
	db, err := database.Open(cfg.DB.User, cfg.DB.Pass, cfg.DB.Host, cfg.DB.Port, cfg.DB.Name)
	if err != nil {
		logger.Fatal().Err(err).Msg("database connection failed")
	}
	return repository.NewUserRepo(db), repository.NewTokenRepo(db), func() { _ = db.Close() }
}
