package cli

import (
	"context"
	"database/sql"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/helmet"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/fiber/v2/middleware/requestid"
	"github.com/sirupsen/logrus"

	"certfresh/internal/config"
	"certfresh/internal/db"
	"certfresh/internal/freshness"
	"certfresh/internal/handlers"
	"certfresh/internal/metrics"
	"certfresh/internal/watch"
)

const shutdownTimeout = 10 * time.Second

type serveCmd struct {
	env  Env
	bind *string
}

func (s *serveCmd) run() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	return s.serve(ctx)
}

// serve runs until ctx ends or the listener fails, then waits for the
// watcher before closing the database.
func (s *serveCmd) serve(ctx context.Context) error {
	cfg, log := s.env.Config, s.env.Log

	p, err := s.env.NewProber(cfg)
	if err != nil {
		return err
	}

	var collector *metrics.Collector
	if cfg.MetricsEnabled {
		collector = metrics.Default
		p = metrics.Instrument(p, collector)
	}

	ctx, stop := context.WithCancel(ctx)
	defer stop()

	// The watcher must be done with the database before it is closed.
	var watching sync.WaitGroup

	if len(cfg.WatchHostnames) > 0 {
		database, err := db.Open(cfg.DBPath)
		if err != nil {
			return err
		}
		defer database.Close()

		w := newWatcher(cfg, database, p, collector, log)
		watching.Add(1)
		go func() {
			defer watching.Done()
			w.Start(ctx)
		}()
	}

	app := NewApp(cfg, p, collector, log)

	go func() {
		<-ctx.Done()
		log.Info("shutting down")
		_ = app.ShutdownWithTimeout(shutdownTimeout)
	}()

	log.WithField("addr", *s.bind).Info("certfresh listening")
	err = app.Listen(*s.bind)

	stop()
	watching.Wait()
	return err
}

// NewApp builds the HTTP server. collector may be nil to leave metrics off.
func NewApp(cfg *config.Config, p freshness.Prober, collector *metrics.Collector, log logrus.FieldLogger) *fiber.App {
	app := fiber.New(fiber.Config{
		AppName:               "certfresh",
		DisableStartupMessage: true,
		ErrorHandler:          handlers.ErrorHandler(log),
	})

	app.Use(recover.New())
	app.Use(helmet.New())
	app.Use(requestid.New())
	app.Use(handlers.RequestLogger(log))

	if collector != nil {
		app.Use(collector.Middleware())
		app.Get("/metrics", collector.Handler())
	}

	handlers.Register(app, p, handlers.CheckOptions{
		DefaultThresholdDays: cfg.DefaultThresholdDays,
		StrictDaysParam:      cfg.StrictDaysParam,
		MaxBatchSize:         cfg.MaxBatchSize,
		BatchConcurrency:     cfg.BatchConcurrency,
	}, log)

	return app
}

func newWatcher(cfg *config.Config, database *sql.DB, p freshness.Prober, collector *metrics.Collector, log logrus.FieldLogger) *watch.Watcher {
	w := watch.NewWatcher(database, p, cfg.WatchHostnames, cfg.WatchInterval, cfg.AlertThreshold,
		log.WithField("component", "watcher"))
	w.ThresholdDays = cfg.WatchThresholdDays
	w.Retention = time.Duration(cfg.HistoryRetentionDays) * 24 * time.Hour
	w.Concurrency = cfg.BatchConcurrency
	w.Metrics = collector
	if n := newNotifier(cfg, log); n != nil {
		w.Notifier = n
	}
	return w
}

// newNotifier returns nil when no alert channel is configured.
func newNotifier(cfg *config.Config, log logrus.FieldLogger) watch.Notifier {
	var ns watch.Notifiers
	if cfg.WebhookURL != "" {
		ns = append(ns, watch.NewWebhookSender(cfg.WebhookURL, cfg.WebhookFormat, cfg.PushoverToken, cfg.PushoverUser,
			log.WithField("component", "webhook")))
	}
	if es := watch.NewEmailSender(cfg.SMTPHost, cfg.SMTPPort, cfg.SMTPFrom, cfg.AlertEmail, cfg.SMTPUsername, cfg.SMTPPassword); es != nil {
		ns = append(ns, es)
	}
	if len(ns) == 0 {
		return nil
	}
	return ns
}
