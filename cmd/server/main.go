package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/iliyamo/tutor-marketplace/internal/app"
	"github.com/iliyamo/tutor-marketplace/internal/config"
	"github.com/iliyamo/tutor-marketplace/internal/database"
	"github.com/iliyamo/tutor-marketplace/internal/gateway/paymob"
	"github.com/iliyamo/tutor-marketplace/internal/handler"
	"github.com/iliyamo/tutor-marketplace/internal/meeting/zego"
	"github.com/iliyamo/tutor-marketplace/internal/middleware"
	"github.com/iliyamo/tutor-marketplace/internal/notify"
	"github.com/iliyamo/tutor-marketplace/internal/queue"
	"github.com/iliyamo/tutor-marketplace/internal/repository"
	"github.com/iliyamo/tutor-marketplace/internal/router"
	"github.com/iliyamo/tutor-marketplace/internal/service"
)

func main() {
	_ = godotenv.Load() // .env is optional; real env wins

	cfg := config.Load()
	logger := app.NewLogger(cfg.Env)
	defer func() { _ = logger.Sync() }()

	host, _ := os.Hostname()
	reporter := app.NewReporter(cfg.RollbarToken, cfg.Env, host, logger)
	defer reporter.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := database.Open(cfg.DBUser, cfg.DBPass, cfg.DBHost, cfg.DBPort, cfg.DBName)
	if err != nil {
		logger.Fatal("database connection failed", zap.Error(err))
	}
	defer func() { _ = db.Close() }()

	if cfg.AutoMigrate {
		mg, err := database.NewMigrator(db.DB, logger)
		if err != nil {
			logger.Fatal("migrator init failed", zap.Error(err))
		}
		if err := mg.Run(ctx); err != nil {
			logger.Fatal("migrations failed", zap.Error(err))
		}
	}

	rdb := config.NewRedisClient()
	if rdb == nil {
		logger.Warn("redis unavailable: rate limiting, caching and webhook dedupe disabled")
	} else {
		defer func() { _ = rdb.Close() }()
	}

	users := repository.NewUserRepo(db)
	tokens := repository.NewTokenRepo(db)
	lessons := repository.NewLessonRepo(db)
	notifications := repository.NewNotificationRepo(db)
	reviews := repository.NewReviewRepo(db)
	guard := repository.NewWebhookGuard(rdb, "webhook", cfg.Paymob.ReplayTTL)

	gateway := paymob.NewClient(cfg.Paymob, logger)
	meetings := zego.NewProvider(cfg.Zego)
	if !meetings.RequiresSignature() {
		logger.Warn("ZEGO_CALLBACK_SECRET not set, meeting callbacks are accepted unsigned")
	}
	dispatcher := newDispatcher(ctx, cfg.Notify, users, notifications, logger)

	points := service.NewPointsService(users, cfg.Points, logger)
	payments := service.NewPaymentService(lessons, users, gateway, dispatcher, guard, logger)
	lessonSvc := service.NewLessonService(lessons, users, points, payments, dispatcher, meetings, logger)
	meetingSvc := service.NewMeetingService(lessons, dispatcher, logger)
	teachers := service.NewTeacherService(users, lessons, gateway, logger)
	reviewSvc := service.NewReviewService(reviews, lessons, points, logger)
	accounts := service.NewAccountService(users, notifications)

	e := echo.New()
	e.HideBanner = true
	validator := handler.NewValidator()
	e.Validator = validator
	e.HTTPErrorHandler = handler.NewHTTPErrorHandler(validator, reporter, logger)
	e.Use(middleware.RequestLogger(logger))

	router.Register(e, router.Handlers{
		Auth:     handler.NewAuthHandler(cfg, users, tokens, logger),
		Account:  handler.NewAccountHandler(accounts),
		Lessons:  handler.NewLessonHandler(lessonSvc),
		Payments: handler.NewPaymentHandler(payments),
		Zego:     handler.NewZegoHandler(meetingSvc, meetings, logger),
		Points:   handler.NewPointsHandler(points),
		Teachers: handler.NewTeacherHandler(teachers),
		Reviews:  handler.NewReviewHandler(reviewSvc),
		Health:   handler.Health(db),
	}, router.Middlewares{
		RateLimit:        middleware.NewTokenBucket(config.LoadRateLimitConfig(), rdb, logger),
		WebhookRateLimit: middleware.NewTokenBucket(config.LoadWebhookRateLimitConfig(), rdb, logger),
		Cache:            middleware.NewRedisCache(config.LoadCacheConfig(), rdb, logger),
	}, cfg.JWTSecret)

	addr := ":" + cfg.Port
	go func() {
		logger.Info("listening", zap.String("addr", addr), zap.String("env", cfg.Env))
		if err := e.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("server failed", zap.Error(err))
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		logger.Error("graceful shutdown failed", zap.Error(err))
	}
}

// newDispatcher wires the optional delivery channels. With NOTIFY_ASYNC the
// dispatcher publishes to RabbitMQ and a consumer in this process delivers.
func newDispatcher(ctx context.Context, cfg config.NotifyConfig, users *repository.UserRepo,
	audit *repository.NotificationRepo, logger *zap.Logger) *notify.Dispatcher {
	var opts []notify.Option

	if cfg.FirebaseCredentials != "" {
		pusher, err := notify.NewFCMPusher(ctx, cfg.FirebaseCredentials)
		if err != nil {
			logger.Warn("push disabled: firebase init failed", zap.Error(err))
		} else {
			opts = append(opts, notify.WithPusher(pusher))
		}
	}
	if cfg.SendgridAPIKey != "" {
		opts = append(opts, notify.WithMailer(notify.NewSendgridMailer(cfg.SendgridAPIKey, cfg.FromName, cfg.FromAddress)))
	}
	if cfg.Async {
		opts = append(opts, notify.WithPublisher(queue.NewPublisher(cfg.RabbitURL, cfg.Queue, logger)))
	}

	d := notify.NewDispatcher(users, audit, logger, opts...)
	if cfg.Async {
		go func() {
			err := queue.StartNotificationConsumer(ctx, cfg.RabbitURL, cfg.Queue, d.Deliver, logger)
			if err != nil && !errors.Is(err, context.Canceled) {
				logger.Error("notification consumer stopped", zap.Error(err))
			}
		}()
	}
	return d
}
