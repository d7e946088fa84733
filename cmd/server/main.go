package main

import (
	"context"
	"errors"
	"io"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/labstack/echo/v4"
	"github.com/sirupsen/logrus"

	"github.com/iliyamo/event-pass-system/internal/applogger"
	"github.com/iliyamo/event-pass-system/internal/config"
	"github.com/iliyamo/event-pass-system/internal/database"
	"github.com/iliyamo/event-pass-system/internal/handler"
	"github.com/iliyamo/event-pass-system/internal/middleware"
	"github.com/iliyamo/event-pass-system/internal/model"
	"github.com/iliyamo/event-pass-system/internal/queue"
	"github.com/iliyamo/event-pass-system/internal/render"
	"github.com/iliyamo/event-pass-system/internal/repository"
	"github.com/iliyamo/event-pass-system/internal/router"
	"github.com/iliyamo/event-pass-system/internal/serial"
	"github.com/iliyamo/event-pass-system/internal/service"
)

// recordStore is a service.Store that owns resources released at shutdown.
type recordStore interface {
	service.Store
	io.Closer
}

func openStore(ctx context.Context, cfg config.Config) (recordStore, error) {
	poweredBy := model.PoweredBy{Name: cfg.Pass.PoweredByName, Logo: cfg.Pass.PoweredByLogo}
	if cfg.StoreDriver != "mysql" {
		return repository.OpenJSONStore(cfg.DatabaseFile, poweredBy)
	}
	db, err := database.Open(cfg.DBUser, cfg.DBPass, cfg.DBHost, cfg.DBPort, cfg.DBName)
	if err != nil {
		return nil, err
	}
	if err := database.Migrate(ctx, db); err != nil {
		db.Close()
		return nil, err
	}
	return repository.NewMySQLStore(ctx, db, poweredBy)
}

func main() {
	// A missing .env is fine; the environment alone is enough.
	_ = godotenv.Load()

	cfg := config.Load()
	log := applogger.Get()
	if err := cfg.Bootstrap(); err != nil {
		log.WithError(err).Fatal("create directories")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	store, err := openStore(ctx, cfg)
	if err != nil {
		log.WithError(err).WithField("driver", cfg.StoreDriver).Fatal("open record store")
	}
	defer store.Close()

	serials, err := serial.NewGenerator(cfg.Event.SerialPrefix, nil)
	if err != nil {
		log.WithError(err).Fatal("serial generator")
	}

	fonts := render.LoadFonts(cfg.Pass.FontRegular, cfg.Pass.FontBold)
	log.WithField("fonts", fonts.Source).Info("fonts loaded")
	renderer := render.New(render.Options{
		Width:        cfg.Pass.Width,
		Height:       cfg.Pass.Height,
		EventYear:    cfg.Event.Year,
		StartTime:    cfg.Event.StartTime,
		EventLabel:   cfg.Event.Label,
		PassesDir:    cfg.PassesDir,
		SponsorsDir:  cfg.SponsorsDir,
		PoweredByDir: cfg.PoweredByDir,
		Fonts:        fonts,
		Logger:       log,
	})

	var publisher service.Publisher = service.NopPublisher{}
	if cfg.EventsEnabled {
		publisher = service.NewAMQPPublisher(cfg.RabbitURL, log)
	}
	passes := service.NewPassService(store, serials, renderer,
		service.WithPublisher(publisher),
		service.WithLogger(log),
	)

	if cfg.EntryConsumerEnabled {
		consumer := &queue.EntryConsumer{URL: cfg.RabbitURL, LogPath: cfg.EntryLogPath, Logger: log}
		go func() {
			if err := consumer.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
				log.WithError(err).Error("entry consumer stopped")
			}
		}()
	}

	rdb := config.NewRedisClient()
	if rdb != nil {
		defer rdb.Close()
	}
	limit := middleware.NewTokenBucket(config.LoadRateLimitConfig(), rdb)
	cache := middleware.NewRedisCache(config.LoadCacheConfig(), rdb)

	e := echo.New()
	e.HideBanner = true
	router.Use(e, log)
	router.RegisterRoutes(e, cfg.StaticDir)
	router.RegisterPasses(e, handler.NewPassHandler(cfg, passes, handler.NewValidator(), log), limit, cache)
	router.RegisterBranding(e, handler.NewSponsorHandler(cfg, passes, log), limit)

	addr := ":" + cfg.Port
	go func() {
		log.WithFields(logrus.Fields{"addr": addr, "env": cfg.Env, "store": cfg.StoreDriver}).Info("listening")
		if err := e.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.WithError(err).Fatal("http server")
		}
	}()

	<-ctx.Done()
	log.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownGraceDuration)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		log.WithError(err).Error("graceful shutdown")
	}
}
