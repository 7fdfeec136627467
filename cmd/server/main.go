package main // Entry point package

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/labstack/gommon/log"
	"github.com/pkg/errors"
	"github.com/redis/go-redis/v9"

	"github.com/iliyamo/school-rfid-admin/internal/config"
	"github.com/iliyamo/school-rfid-admin/internal/database"
	"github.com/iliyamo/school-rfid-admin/internal/queue"
	"github.com/iliyamo/school-rfid-admin/internal/repository"
	"github.com/iliyamo/school-rfid-admin/internal/router"
	"github.com/iliyamo/school-rfid-admin/internal/service"
)

const shutdownTimeout = 10 * time.Second

func main() {
	logger := log.New("api")
	logger.SetHeader(`${time_rfc3339} ${level} ${prefix} ${short_file}:${line}`)

	if err := run(logger); err != nil {
		logger.Fatal(err)
	}
}

func run(logger *log.Logger) error {
	cfg, err := config.Load() // Load environment config
	if err != nil {
		return errors.Wrap(err, "load config")
	}
	logger.SetLevel(parseLevel(cfg.LogLevel))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := database.Open(ctx, cfg.DBDSN)
	if err != nil {
		return err
	}
	defer db.Close()
	if err := database.Migrate(ctx, db); err != nil {
		return err
	}

	deps := router.Deps{
		Config:     cfg,
		RateLimit:  config.LoadRateLimitConfig(),
		Schools:    repository.NewSchoolRepo(db),
		Users:      repository.NewUserRepo(db),
		Students:   repository.NewStudentRepo(db),
		Attendance: repository.NewAttendanceRepo(db),
		Messages:   repository.NewMessageRepo(db),
		Ping:       db.PingContext,
	}

	if deps.RateLimit.Enabled {
		rdb, err := config.NewRedisClient(ctx, config.LoadRedisConfig())
		if err != nil {
			logger.Warnf("redis unavailable, login rate limit runs in process: %v", err)
		} else {
			defer func(c *redis.Client) { _ = c.Close() }(rdb)
			deps.Redis = rdb
		}
	}

	// The access switch can be flipped without a restart: SIGHUP re-reads
	// ACCESS_ENABLED.
	var access atomic.Bool
	access.Store(cfg.AccessEnabled)
	deps.AccessEnabled = access.Load
	go reloadAccess(ctx, &access, logger)

	recorder := &service.AttendanceService{
		Students:   deps.Students,
		Attendance: deps.Attendance,
		Messages:   deps.Messages,
		Notifier:   service.LogNotifier{Logger: logger},
		Logger:     logger,
		Location:   cfg.Location,
	}
	deps.Recorder = recorder

	if cfg.RabbitMQURL != "" {
		deps.Publisher = queue.NewPublisher(cfg.RabbitMQURL, cfg.AttendanceQueue)
		consumer := queue.NewConsumer(cfg.RabbitMQURL, cfg.AttendanceQueue, recorder.Handle, logger)
		go func() {
			if err := consumer.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
				logger.Errorf("attendance consumer stopped: %v", err)
			}
		}()
	}

	e := router.New(deps)
	e.Logger = logger

	errCh := make(chan error, 1)
	go func() {
		addr := ":" + cfg.Port
		logger.Infof("listening on %s (env=%s)", addr, cfg.Env)
		if err := e.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	return e.Shutdown(shutdownCtx)
}

func reloadAccess(ctx context.Context, access *atomic.Bool, logger *log.Logger) {
	hup := make(chan os.Signal, 1)
	signal.Notify(hup, syscall.SIGHUP)
	defer signal.Stop(hup)
	for {
		select {
		case <-ctx.Done():
			return
		case <-hup:
			cfg, err := config.Load()
			if err != nil {
				logger.Errorf("reload config: %v", err)
				continue
			}
			access.Store(cfg.AccessEnabled)
			logger.Infof("access enabled: %t", cfg.AccessEnabled)
		}
	}
}

func parseLevel(s string) log.Lvl {
	switch strings.ToLower(s) {
	case "debug":
		return log.DEBUG
	case "warn":
		return log.WARN
	case "error":
		return log.ERROR
	case "off":
		return log.OFF
	default:
		return log.INFO
	}
}
