package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/iCCupCalico/bot/internal/api/http/handlers"
	"github.com/iCCupCalico/bot/internal/auth"
	"github.com/iCCupCalico/bot/internal/bot"
	"github.com/iCCupCalico/bot/internal/config"
	"github.com/iCCupCalico/bot/internal/events"
	"github.com/iCCupCalico/bot/internal/observability"
	"github.com/iCCupCalico/bot/internal/persistence"
	"github.com/iCCupCalico/bot/internal/repository"
	"github.com/iCCupCalico/bot/internal/scraper"
	"github.com/iCCupCalico/bot/internal/service"
	"github.com/iCCupCalico/bot/internal/transport"
	"github.com/iCCupCalico/bot/internal/worker"

	httptransport "github.com/iCCupCalico/bot/internal/api/http"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logger, err := observability.NewLogger(cfg.Logger)
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer logger.Sync() //nolint:errcheck

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	ticketFile := persistence.NewTicketFile(cfg.Storage.TicketsFile, logger)
	store, err := repository.NewTicketStore(ticketFile, logger)
	if err != nil {
		logger.Fatal("failed to open ticket store", zap.Error(err))
	}

	redis := persistence.NewRedis(cfg.Redis, logger)
	defer redis.Close()

	statsCache := scraper.NewCache(redis.Client, cfg.Stats.CacheTTL(), logger)
	statsService := scraper.NewService(cfg.Stats.BaseURL, statsCache, logger)

	telegram, err := transport.NewTelegram(cfg.Telegram, logger)
	if err != nil {
		logger.Fatal("failed to connect telegram", zap.Error(err))
	}

	dispatcher := events.NewInMemoryDispatcher()
	notificationService := service.NewNotificationService(dispatcher, logger)
	worker.StartNotificationWorker(notificationService)

	router := service.NewTicketRouter(service.RouterDependencies{
		Store:        store,
		Messenger:    telegram,
		Dispatcher:   dispatcher,
		Logger:       logger,
		OperatorChat: cfg.Telegram.OperatorChatID,
	})

	supportBot := bot.New(bot.Dependencies{
		Messenger:    telegram,
		Router:       router,
		Stats:        statsService,
		Logger:       logger,
		OperatorChat: cfg.Telegram.OperatorChatID,
	})

	var app *fiber.App
	if cfg.Admin.Enabled {
		app = fiber.New()
		metrics := observability.NewMetrics()
		httptransport.RegisterMiddlewares(app, logger, metrics, cfg.Admin.RequestTimeout())

		tokens := auth.NewTokenManager(cfg.Admin.JWTSecret, cfg.Admin.TokenTTLMinutes)
		httptransport.RegisterRoutes(app, httptransport.RouteConfig{
			Health:         handlers.NewHealthHandler(),
			Auth:           handlers.NewAuthHandler(tokens, cfg.Admin.OperatorPasswordHash),
			AdminTickets:   handlers.NewAdminTicketsHandler(store, router),
			AuthMiddleware: auth.NewMiddleware(tokens),
		})

		go func() {
			if err := app.Listen(cfg.Admin.Addr()); err != nil {
				logger.Fatal("admin api listen", zap.Error(err))
			}
		}()
	}

	go supportBot.Run(ctx, telegram.Updates(ctx))
	logger.Info("polling started", zap.Int64("operator_chat", cfg.Telegram.OperatorChatID))

	waitForShutdown(logger)
	cancel()

	if app != nil {
		_ = app.Shutdown()
	}
	logger.Info("polling fully stopped")
}

func waitForShutdown(logger *zap.Logger) {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	sig := <-sigCh
	logger.Info("shutting down", zap.String("signal", sig.String()))
}
