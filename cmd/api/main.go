package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"

	"github.com/enviofleett/mymoto-sub019/internal/config"
	"github.com/enviofleett/mymoto-sub019/internal/db"
	"github.com/enviofleett/mymoto-sub019/internal/metrics"
	"github.com/enviofleett/mymoto-sub019/internal/publisher"
	"github.com/enviofleett/mymoto-sub019/internal/server"
	"github.com/enviofleett/mymoto-sub019/internal/syncer"
)

var mainDepsProvider = defaultDeps
var mainRunner = realMain

func main() {
	mainRunner(mainDepsProvider())
}

type mainDeps struct {
	loadConfig      func() config.Config
	connectPostgres func(config.Config) (*pgxpool.Pool, error)
	connectRedis    func(config.Config) *redis.Client
	notify          func(chan<- os.Signal, ...os.Signal)
	run             func(context.Context, config.Config, *pgxpool.Pool, *redis.Client, <-chan os.Signal, ListenFunc) error
}

func defaultDeps() mainDeps {
	return mainDeps{
		loadConfig:      config.Load,
		connectPostgres: db.ConnectPostgres,
		connectRedis:    db.ConnectRedis,
		notify:          signal.Notify,
		run:             Run,
	}
}

func realMain(deps mainDeps) {
	_ = godotenv.Load()

	cfg := deps.loadConfig()
	if err := cfg.Validate(); err != nil {
		log.Printf("invalid configuration: %v", err)
		return
	}

	pg, err := deps.connectPostgres(cfg)
	if err != nil {
		log.Printf("postgres connection failed: %v", err)
	}

	rdb := deps.connectRedis(cfg)

	signals := make(chan os.Signal, 1)
	deps.notify(signals, syscall.SIGINT, syscall.SIGTERM)

	if err := deps.run(context.Background(), cfg, pg, rdb, signals, nil); err != nil {
		log.Printf("server exited with error: %v", err)
	}
}

type ListenFunc func(app *fiber.App, addr string) error

var defaultListen ListenFunc = func(app *fiber.App, addr string) error {
	return app.Listen(addr)
}

var shutdownFn = func(app *fiber.App, ctx context.Context) error {
	return app.ShutdownWithContext(ctx)
}

// Run starts the HTTP server, the scheduled vendor sync, and the
// metrics endpoint, then waits for termination signals.
func Run(ctx context.Context, cfg config.Config, pg *pgxpool.Pool, rdb *redis.Client, signals <-chan os.Signal, listen ListenFunc) error {
	collector := metrics.NewCollector()

	var pub syncer.TripEventPublisher
	if cfg.NATSURL != "" {
		natsPub, err := publisher.NewNATSPublisher(cfg.NATSURL, false)
		if err != nil {
			log.Printf("nats connection failed, trip events disabled: %v", err)
		} else {
			defer natsPub.Close()
			pub = natsPub
		}
	}

	srv := server.NewServer(cfg, pg, rdb, pub, collector)

	var metricsSrv interface{ Shutdown(context.Context) error }
	if cfg.MetricsAddr != "" {
		metricsSrv = collector.Serve(cfg.MetricsAddr)
	}

	schedulerCtx, stopScheduler := context.WithCancel(ctx)
	defer stopScheduler()
	if cfg.SyncIntervalMin > 0 {
		go runScheduler(schedulerCtx, srv.Runner, time.Duration(cfg.SyncIntervalMin)*time.Minute)
	}

	if listen == nil {
		listen = defaultListen
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- listen(srv.App, cfg.ServerPort)
	}()

	select {
	case <-signals:
	case <-ctx.Done():
	case err := <-errCh:
		if err != nil {
			return err
		}
	}

	stopScheduler()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if metricsSrv != nil {
		_ = metricsSrv.Shutdown(shutdownCtx)
	}
	if err := shutdownFn(srv.App, shutdownCtx); err != nil {
		return err
	}
	if pg != nil {
		pg.Close()
	}
	if rdb != nil {
		_ = rdb.Close()
	}
	return nil
}

// runScheduler drives periodic sync runs over the trailing day. Each
// run re-reads shared state, so overlapping instances stay polite to
// the vendor's rate limits.
func runScheduler(ctx context.Context, runner *syncer.Runner, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			to := time.Now()
			from := to.AddDate(0, 0, -1)
			result := runner.Run(ctx, nil, from, to)
			log.Printf("scheduled sync: attempted=%d succeeded=%d trips=%d skipped=%v",
				result.DevicesAttempted, result.DevicesSucceeded, result.TripsUpserted, result.Skipped)
		}
	}
}
