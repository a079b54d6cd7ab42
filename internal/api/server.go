package api

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"

	"leadqualify/internal/leads"
	"leadqualify/internal/retrieval"
	"leadqualify/internal/storage"
	"leadqualify/pkg"
)

// Dialog processes one conversation turn. Satisfied by router.Router.
type Dialog interface {
	Route(ctx context.Context, req pkg.TurnRequest) (*pkg.TurnResponse, error)
}

// ContactNotifier announces a contact submission on one channel.
type ContactNotifier interface {
	NotifyContact(ctx context.Context, form pkg.ContactForm) error
}

// CallNotifier announces a scheduled call on one channel.
type CallNotifier interface {
	NotifyCall(ctx context.Context, form pkg.CallForm) error
}

// Scheduler books an outbound call with the telephony provider.
type Scheduler interface {
	Schedule(ctx context.Context, form pkg.CallForm) (string, error)
}

// LeadNotifier handles both submission kinds. Satisfied by
// leads.WebhookNotifier.
type LeadNotifier interface {
	ContactNotifier
	CallNotifier
}

// Server owns the HTTP surface. Optional collaborators (email, scheduler)
// may be nil; their channels are then skipped rather than failed.
type Server struct {
	dialog    Dialog
	retriever retrieval.Retriever
	store     storage.MemoryStore
	sink      leads.Sink
	webhook   LeadNotifier
	email     ContactNotifier
	scheduler Scheduler
	origins   map[string]bool
}

// Config carries the server-level options.
type Config struct {
	Addr           string   `yaml:"addr"`
	AllowedOrigins []string `yaml:"allowed_origins"`
}

// Deps bundles the server's collaborators.
type Deps struct {
	Dialog    Dialog
	Retriever retrieval.Retriever
	Store     storage.MemoryStore
	Sink      leads.Sink
	Webhook   LeadNotifier
	Email     ContactNotifier
	Scheduler Scheduler
}

// NewServer wires the handlers to their collaborators.
func NewServer(config Config, deps Deps) *Server {
	origins := make(map[string]bool, len(config.AllowedOrigins))
	for _, o := range config.AllowedOrigins {
		origins[o] = true
	}
	return &Server{
		dialog:    deps.Dialog,
		retriever: deps.Retriever,
		store:     deps.Store,
		sink:      deps.Sink,
		webhook:   deps.Webhook,
		email:     deps.Email,
		scheduler: deps.Scheduler,
		origins:   origins,
	}
}

// Engine builds the gin engine with all routes registered.
func (s *Server) Engine() *gin.Engine {
	engine := gin.New()
	engine.Use(gin.Recovery(), s.requestLogger(), s.cors())

	engine.GET("/health", s.handleHealth)

	v1 := engine.Group("/v1/routes")
	{
		v1.POST("/message", s.handleMessage)
		v1.POST("/contact", s.handleContact)
		v1.POST("/call", s.handleCall)
		v1.POST("/search", s.handleSearch)
	}
	return engine
}

// requestLogger logs method, path, status, and latency per request.
func (s *Server) requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		log.Info().
			Str("method", c.Request.Method).
			Str("path", c.Request.URL.Path).
			Int("status", c.Writer.Status()).
			Dur("latency", time.Since(start)).
			Msg("request")
	}
}

// cors reflects allowed origins and short-circuits preflight requests.
func (s *Server) cors() gin.HandlerFunc {
	return func(c *gin.Context) {
		origin := c.GetHeader("Origin")
		if s.origins[origin] {
			c.Header("Access-Control-Allow-Origin", origin)
			c.Header("Access-Control-Allow-Credentials", "true")
			c.Header("Access-Control-Allow-Methods", "POST, GET, OPTIONS")
			c.Header("Access-Control-Allow-Headers", "content-type")
		}
		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}
		c.Next()
	}
}

func (s *Server) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}
