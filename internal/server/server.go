package server

import (
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"github.com/enviofleett/mymoto-sub019/internal/auth"
	"github.com/enviofleett/mymoto-sub019/internal/config"
	"github.com/enviofleett/mymoto-sub019/internal/playback"
	"github.com/enviofleett/mymoto-sub019/internal/search"
	"github.com/enviofleett/mymoto-sub019/internal/stream"
	"github.com/enviofleett/mymoto-sub019/internal/syncer"
	"github.com/enviofleett/mymoto-sub019/internal/trip"
	"github.com/enviofleett/mymoto-sub019/internal/vendor"
)

type Server struct {
	App    *fiber.App
	Cfg    config.Config
	DB     *pgxpool.Pool
	Redis  *redis.Client
	Stream *stream.Hub
	Runner *syncer.Runner
}

func NewServer(cfg config.Config, db *pgxpool.Pool, redisClient *redis.Client,
	pub syncer.TripEventPublisher, m syncer.RunMetrics) *Server {
	app := fiber.New()
	app.Use(recover.New())
	app.Use(logger.New())

	hub := stream.NewHub(redisClient)

	trips := trip.NewService(db)
	api := vendor.NewClient(cfg.VendorBaseURL, cfg.VendorProxyURL,
		time.Duration(cfg.VendorTimeoutSec)*time.Second)
	state := syncer.NewStateStore(db)
	runner := syncer.NewRunner(cfg, api, state, trips, hub, pub, m)

	s := &Server{
		App:    app,
		Cfg:    cfg,
		DB:     db,
		Redis:  redisClient,
		Stream: hub,
		Runner: runner,
	}

	registerRoutes(s, trips)
	return s
}

func registerRoutes(s *Server, trips *trip.Service) {
	s.App.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"status": "ok"})
	})

	jwtMiddleware := auth.JWTMiddleware(s.Cfg.JWTSecret)

	ghost := search.IsGhostByThresholds(trip.NewGhostFilter(
		time.Duration(s.Cfg.GhostMinDurationS)*time.Second, s.Cfg.GhostMinDistanceKm))
	resolver := search.NewCachedResolver(s.Redis, nil)

	trip.RegisterRoutes(s.App.Group("/trips"), trips, jwtMiddleware)
	playback.RegisterRoutes(s.App.Group("/playback"),
		playback.NewService(trips, playback.NewSplitter(time.Duration(s.Cfg.IdleGapSec)*time.Second)), jwtMiddleware)
	search.RegisterRoutes(s.App.Group("/search"),
		search.NewService(trips, resolver, ghost), jwtMiddleware)
	syncer.RegisterRoutes(s.App.Group("/sync"), s.Runner, jwtMiddleware)
	stream.RegisterRoutes(s.App.Group("/stream"), s.Stream)
}
