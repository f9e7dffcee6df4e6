package server

import (
	"context"
	"time"

	"github.com/pianoholic0120/wp1141-sub002/internal/apperr"
	"github.com/pianoholic0120/wp1141-sub002/internal/auth"
	"github.com/pianoholic0120/wp1141-sub002/internal/config"
	"github.com/pianoholic0120/wp1141-sub002/internal/db"
	"github.com/pianoholic0120/wp1141-sub002/internal/interaction"
	"github.com/pianoholic0120/wp1141-sub002/internal/ledger"
	"github.com/pianoholic0120/wp1141-sub002/internal/notify"
	"github.com/pianoholic0120/wp1141-sub002/internal/post"
	"github.com/pianoholic0120/wp1141-sub002/internal/ratelimit"
	"github.com/pianoholic0120/wp1141-sub002/internal/social"
	"github.com/pianoholic0120/wp1141-sub002/internal/stream"
	"github.com/pianoholic0120/wp1141-sub002/internal/visibility"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/redis/go-redis/v9"
)

const limiterSweepInterval = 10 * time.Minute

type Server struct {
	App         *fiber.App
	Cfg         config.Config
	DB          db.Querier
	Redis       *redis.Client
	Stream      *stream.Hub
	Interaction *interaction.Service
	Notify      *notify.Dispatcher
	Limiter     *ratelimit.Limiter

	stop context.CancelFunc
}

func NewServer(cfg config.Config, pg db.Querier, redisClient *redis.Client) *Server {
	app := fiber.New(fiber.Config{ErrorHandler: apperr.ErrorHandler})
	app.Use(recover.New())
	app.Use(logger.New())
	app.Use(cors.New(cors.Config{AllowOrigins: cfg.CORSOrigins}))

	hub := stream.NewHub(redisClient)
	posts := post.NewService(pg)
	graph := social.NewService(pg)
	dispatcher := notify.NewDispatcher(notify.NewPGStore(pg), hub, cfg.NotificationDedupWindow)
	svc := interaction.NewService(interaction.Deps{
		Posts:      posts,
		Ledger:     ledger.NewService(pg),
		Graph:      graph,
		Visibility: visibility.NewResolver(posts, graph, posts),
		Notifier:   dispatcher,
		Publisher:  hub,
	})
	limiter := ratelimit.New(cfg.RateLimitRPS, cfg.RateLimitBurst)

	ctx, cancel := context.WithCancel(context.Background())
	go limiter.Run(ctx, limiterSweepInterval)

	s := &Server{
		App:         app,
		Cfg:         cfg,
		DB:          pg,
		Redis:       redisClient,
		Stream:      hub,
		Interaction: svc,
		Notify:      dispatcher,
		Limiter:     limiter,
		stop:        cancel,
	}

	registerRoutes(s)
	return s
}

// Close stops background work owned by the server.
func (s *Server) Close() {
	s.stop()
	s.Stream.Close()
}

func registerRoutes(s *Server) {
	s.App.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"status": "ok"})
	})

	jwtMiddleware := auth.JWTMiddleware(s.Cfg.JWTSecret)
	optionalJWT := auth.OptionalJWTMiddleware(s.Cfg.JWTSecret)
	mw := interaction.Middleware{
		Auth:         jwtMiddleware,
		OptionalAuth: optionalJWT,
		Limit:        s.Limiter.Middleware(),
	}

	interaction.RegisterPostRoutes(s.App.Group("/posts"), s.Interaction, mw)
	interaction.RegisterUserRoutes(s.App.Group("/users"), s.Interaction, mw)
	interaction.RegisterHashtagRoutes(s.App.Group("/hashtags"), s.Interaction, mw)
	notify.RegisterRoutes(s.App.Group("/notifications"), s.Notify, jwtMiddleware)
	stream.RegisterRoutes(s.App.Group("/stream"), s.Stream, jwtMiddleware, optionalJWT, s.Interaction.CanView)
}
