package httpapi

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-contrib/graceful"
	"github.com/gin-gonic/gin"

	"puasapush/internal/calendar"
	"puasapush/internal/storage"
	"puasapush/internal/task/scheduler"
	logx "puasapush/pkg/logx"
)

type Config struct {
	Addr        string
	CORSOrigins []string
}

// PublicConfig is what GET /config exposes to the frontend.
type PublicConfig struct {
	Timezone        string `json:"timezone"`
	VAPIDPublicKey  string `json:"vapidPublicKey"`
	FrontendBaseURL string `json:"frontendBaseUrl"`
}

// WindowSource yields the observance window.
type WindowSource interface {
	Get(ctx context.Context, now time.Time) (calendar.Window, error)
}

// Snapshotter reports scheduler state for /health.
type Snapshotter interface {
	Snapshot() scheduler.Snapshot
}

type Deps struct {
	Store     storage.Store
	Window    WindowSource
	Scheduler Snapshotter // optional
	Public    PublicConfig
	Now       func() time.Time
}

type Server struct {
	g   *graceful.Graceful
	log logx.Logger
}

func New(cfg Config, deps Deps, log logx.Logger) (*Server, error) {
	if deps.Store == nil || deps.Window == nil {
		return nil, errors.New("httpapi: store and window source are required")
	}
	if deps.Now == nil {
		deps.Now = time.Now
	}
	if log.IsZero() {
		log = logx.Nop()
	}
	gin.SetMode(gin.ReleaseMode)

	g, err := graceful.New(gin.New(), graceful.WithAddr(cfg.Addr))
	if err != nil {
		return nil, err
	}
	g.Use(gin.Recovery())
	g.Use(RequestLogging(log))
	g.Use(cors.New(corsConfig(cfg.CORSOrigins)))

	h := &handler{deps: deps, log: log}
	g.GET("/health", h.health)
	g.GET("/config", h.config)
	g.GET("/ramadan-window", h.ramadanWindow)
	g.POST("/subscribe", h.subscribe)
	g.POST("/checkin", h.checkin)

	return &Server{g: g, log: log}, nil
}

// Handler exposes the router, mainly for tests.
func (s *Server) Handler() http.Handler { return s.g.Engine }

// Run serves until ctx is canceled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	s.log.Info("http server starting")
	err := s.g.RunWithContext(ctx)
	if err != nil && !errors.Is(err, context.Canceled) && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	s.log.Info("http server stopped")
	return nil
}

func corsConfig(origins []string) cors.Config {
	c := cors.Config{
		AllowMethods:     []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowHeaders:     []string{"Origin", "Content-Type", "Accept"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}
	for _, o := range origins {
		if o == "*" {
			// Credentials with a wildcard origin must echo the request origin.
			c.AllowOriginFunc = func(string) bool { return true }
			return c
		}
	}
	c.AllowOrigins = origins
	if len(c.AllowOrigins) == 0 {
		c.AllowOriginFunc = func(string) bool { return true }
	}
	return c
}
