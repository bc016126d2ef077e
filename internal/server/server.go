package server

import (
	"context"

	"github.com/einarnot/runningroute/internal/auth"
	"github.com/einarnot/runningroute/internal/config"
	"github.com/einarnot/runningroute/internal/directions"
	"github.com/einarnot/runningroute/internal/elevation"
	"github.com/einarnot/runningroute/internal/geocode"
	"github.com/einarnot/runningroute/internal/route"
	"github.com/einarnot/runningroute/internal/stream"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
)

type Server struct {
	App    *fiber.App
	Cfg    config.Config
	DB     *pgxpool.Pool
	Redis  *redis.Client
	Stream *stream.Hub
}

func NewServer(cfg config.Config, db *pgxpool.Pool, redisClient *redis.Client) *Server {
	app := fiber.New()
	app.Use(recover.New())
	app.Use(logger.New())

	s := &Server{
		App:    app,
		Cfg:    cfg,
		DB:     db,
		Redis:  redisClient,
		Stream: stream.NewHub(redisClient),
	}

	registerRoutes(s)
	return s
}

func registerRoutes(s *Server) {
	s.App.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"status": "ok"})
	})

	jwtMiddleware := auth.JWTMiddleware(s.Cfg.JWTSecret)

	geocoder := geocode.NewClient(s.Cfg.NominatimBaseURL, s.Redis)
	directionsClient := directions.NewClient(s.Cfg.ORSBaseURL, s.Cfg.ORSAPIKey)
	enricher := elevation.NewClient(s.Cfg.ElevationBaseURL, s.Redis)
	scorer := route.NewAIScorer(s.Cfg.OpenAIBaseURL, s.Cfg.OpenAIAPIKey, s.Cfg.OpenAIModel)
	store := route.NewStore(s.DB)
	orchestrator := route.NewOrchestrator(directionsClient, enricher, scorer, geocoder, store, s.Stream)

	authService := auth.NewService(s.Cfg.JWTSecret, s.DB)
	prefill := func(ctx context.Context, userID string, prefs route.Preferences) route.Preferences {
		runner, err := authService.Profile(ctx, userID)
		if err != nil {
			return prefs
		}
		return auth.Prefill(prefs, runner)
	}

	auth.RegisterRoutes(s.App.Group("/auth"), authService, jwtMiddleware)
	route.RegisterRoutes(s.App.Group("/routes"), orchestrator, store, jwtMiddleware, prefill)
	geocode.RegisterRoutes(s.App.Group("/geocode"), geocoder)
	stream.RegisterRoutes(s.App.Group("/stream"), s.Stream)
}
