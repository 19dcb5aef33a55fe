package server

import (
	"context"

	"github.com/gofiber/fiber/v2"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/nats-io/nats.go"
	"github.com/redis/go-redis/v9"
	"github.com/visitrack/visitrack/internal/app/repository"
	"github.com/visitrack/visitrack/internal/app/service"
	inthttp "github.com/visitrack/visitrack/internal/http/handler"
	"github.com/visitrack/visitrack/internal/http/middleware"
	"go.uber.org/zap"
)

// Dependencies bundles infrastructure and services required by the HTTP server.
type Dependencies struct {
	Logger    *zap.Logger
	Postgres  *pgxpool.Pool
	Redis     *redis.Client
	NATS      *nats.Conn
	JetStream nats.JetStreamContext

	Funnels repository.FunnelRepository
	Bots    repository.BotRepository

	Tracks  *service.TrackService
	Invites *service.InviteService
	Chat    *service.ChatService

	PublicBaseURL string
	Source        string
	DecorateHosts []string
}

// Server wraps the Fiber application and its dependencies.
type Server struct {
	app  *fiber.App
	deps Dependencies
}

// New creates a new HTTP server instance with default routes.
func New(deps Dependencies) *Server {
	app := fiber.New(fiber.Config{
		// Tracking payloads are small; anything bigger is not a collector.
		BodyLimit: 64 * 1024,
	})

	s := &Server{
		app:  app,
		deps: deps,
	}

	s.registerRoutes()
	return s
}

// Listen starts the Fiber server on the given address.
func (s *Server) Listen(addr string) error {
	return s.app.Listen(addr)
}

// Shutdown gracefully stops the Fiber server.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.app.ShutdownWithContext(ctx)
}

func (s *Server) registerRoutes() {
	s.app.Use(middleware.RequestID())
	s.app.Use(middleware.Recovery(s.deps.Logger))
	s.app.Use(middleware.Logger(s.deps.Logger))
	s.app.Use(middleware.CORS())
	if s.deps.Redis != nil {
		s.app.Use("/track", middleware.RateLimit(s.deps.Redis, middleware.TrackRateLimitConfig(), s.deps.Logger))
	}

	healthHandler := inthttp.NewHealthHandler(inthttp.HealthDeps{
		Logger:   s.deps.Logger,
		Postgres: s.deps.Postgres,
	})
	healthHandler.Register(s.app)

	scriptHandler := inthttp.NewScriptHandler(inthttp.ScriptDeps{
		Logger:        s.deps.Logger,
		PublicBaseURL: s.deps.PublicBaseURL,
		Source:        s.deps.Source,
		DecorateHosts: s.deps.DecorateHosts,
	})
	scriptHandler.Register(s.app)

	trackHandler := inthttp.NewTrackHandler(inthttp.TrackDeps{
		Logger: s.deps.Logger,
		Tracks: s.deps.Tracks,
	})
	trackHandler.Register(s.app)

	inviteHandler := inthttp.NewInviteHandler(inthttp.InviteDeps{
		Logger:  s.deps.Logger,
		Invites: s.deps.Invites,
	})
	inviteHandler.Register(s.app)

	redirectHandler := inthttp.NewRedirectHandler(inthttp.RedirectDeps{
		Logger:  s.deps.Logger,
		Funnels: s.deps.Funnels,
		Invites: s.deps.Invites,
	})
	redirectHandler.Register(s.app)

	webhookHandler := inthttp.NewWebhookHandler(inthttp.WebhookDeps{
		Logger: s.deps.Logger,
		Bots:   s.deps.Bots,
		Chat:   s.deps.Chat,
	})
	webhookHandler.Register(s.app)
}
