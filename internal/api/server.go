package api

import (
	"context"
	"strings"
	"time"

	"github.com/fathima-sithara/teamchat/internal/metrics"
	"github.com/fathima-sithara/teamchat/internal/service"
	"github.com/fathima-sithara/teamchat/internal/storage"
	"github.com/fathima-sithara/teamchat/internal/ws"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"go.uber.org/zap"
)

// Uploader stores an uploaded image and its thumbnail.
type Uploader interface {
	Upload(ctx context.Context, userID, filename, contentType string, data []byte) (*storage.Image, error)
}

// HealthCheck reports whether one dependency is reachable.
type HealthCheck func(ctx context.Context) error

type Options struct {
	Services       *service.Services
	Auth           *service.AuthService
	Uploads        Uploader
	Hub            *ws.Hub
	Health         map[string]HealthCheck
	Log            *zap.SugaredLogger
	BaseURL        string
	RequestTimeout time.Duration
	MaxUploadBytes int
	AccessLog      bool
}

type Server struct {
	app     *fiber.App
	svc     *service.Services
	auth    *service.AuthService
	uploads Uploader
	hub     *ws.Hub
	health  map[string]HealthCheck
	log     *zap.SugaredLogger
	baseURL string
	timeout time.Duration
}

func New(o Options) *Server {
	if o.Log == nil {
		o.Log = zap.NewNop().Sugar()
	}
	if o.RequestTimeout <= 0 {
		o.RequestTimeout = 10 * time.Second
	}
	if o.MaxUploadBytes <= 0 {
		o.MaxUploadBytes = 5 << 20
	}
	s := &Server{
		svc:     o.Services,
		auth:    o.Auth,
		uploads: o.Uploads,
		hub:     o.Hub,
		health:  o.Health,
		log:     o.Log,
		baseURL: strings.TrimRight(o.BaseURL, "/"),
		timeout: o.RequestTimeout,
	}
	s.app = fiber.New(fiber.Config{
		AppName:      "teamchat",
		Immutable:    true,
		BodyLimit:    o.MaxUploadBytes + 64<<10,
		ErrorHandler: s.errorHandler,
	})
	s.app.Use(recover.New())
	if o.AccessLog {
		s.app.Use(logger.New())
	}
	s.app.Use(cors.New(cors.Config{AllowCredentials: s.baseURL != "", AllowOrigins: s.allowedOrigins()}))
	s.app.Use(metrics.Middleware())
	s.routes()
	return s
}

func (s *Server) allowedOrigins() string {
	if s.baseURL == "" {
		return "*"
	}
	return s.baseURL
}

func (s *Server) routes() {
	s.app.Get("/healthz", s.healthz)
	s.app.Get("/metrics", adaptor.HTTPHandler(metrics.Handler()))

	a := s.app.Group("/api/auth")
	a.Get("/methods", s.authMethods)
	a.Post("/sign-up", s.signUp)
	a.Post("/sign-in", s.signIn)
	a.Post("/refresh", s.refresh)
	a.Post("/sign-out", s.signOut)
	a.Get("/oauth/:provider", s.oauthBegin)
	a.Get("/oauth/:provider/callback", s.oauthCallback)

	v1 := s.app.Group("/api/v1", s.RequireUser())
	v1.Get("/users/me", s.currentUser)

	v1.Get("/workspaces", s.listWorkspaces)
	v1.Post("/workspaces", s.createWorkspace)
	v1.Get("/workspaces/:id", s.getWorkspace)
	v1.Patch("/workspaces/:id", s.renameWorkspace)
	v1.Delete("/workspaces/:id", s.removeWorkspace)
	v1.Get("/workspaces/:id/info", s.workspaceInfo)
	v1.Post("/workspaces/:id/join-code", s.rotateJoinCode)
	v1.Post("/workspaces/:id/join", s.joinWorkspace)
	v1.Get("/workspaces/:id/presence", s.presence)

	v1.Get("/workspaces/:id/members", s.listMembers)
	v1.Get("/workspaces/:id/members/current", s.currentMember)
	v1.Get("/members/:id", s.getMember)

	v1.Get("/workspaces/:id/channels", s.listChannels)
	v1.Post("/workspaces/:id/channels", s.createChannel)
	v1.Get("/channels/:id", s.getChannel)
	v1.Patch("/channels/:id", s.renameChannel)
	v1.Delete("/channels/:id", s.removeChannel)

	v1.Post("/workspaces/:id/conversations", s.createOrGetConversation)

	v1.Get("/messages", s.listMessages)
	v1.Post("/messages", s.createMessage)
	v1.Get("/messages/:id", s.getMessage)
	v1.Patch("/messages/:id", s.updateMessage)
	v1.Delete("/messages/:id", s.removeMessage)
	v1.Post("/messages/:id/reactions", s.toggleReaction)

	v1.Post("/upload", s.uploadImage)

	if s.hub != nil {
		s.app.Use("/ws", s.upgrade)
		s.app.Get("/ws", s.wsHandler())
	}

	s.pageRoutes()
}

// App exposes the fiber app, mainly for app.Test.
func (s *Server) App() *fiber.App { return s.app }

func (s *Server) Listen(addr string) error { return s.app.Listen(addr) }

func (s *Server) Shutdown(ctx context.Context) error {
	if s.hub != nil {
		s.hub.Close()
	}
	return s.app.ShutdownWithContext(ctx)
}

// ctx bounds a handler's downstream calls by the request timeout.
func (s *Server) ctx(c *fiber.Ctx) (context.Context, context.CancelFunc) {
	return context.WithTimeout(c.UserContext(), s.timeout)
}

func (s *Server) healthz(c *fiber.Ctx) error {
	ctx, cancel := s.ctx(c)
	defer cancel()
	checks := fiber.Map{}
	healthy := true
	for name, check := range s.health {
		if err := check(ctx); err != nil {
			checks[name] = err.Error()
			healthy = false
			continue
		}
		checks[name] = "ok"
	}
	if !healthy {
		return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{"status": "error", "data": checks})
	}
	return JSONSuccess(c, fiber.StatusOK, checks)
}
