package server

import (
	"log/slog"
	"net/http"
	"sync"

	glog "github.com/gin-contrib/slog"
	"github.com/gin-gonic/gin"

	"github.com/brixel-ai/brixel-client/pkg/api"
	"github.com/brixel-ai/brixel-client/pkg/publish"
	"github.com/brixel-ai/brixel-client/pkg/registry"
	"github.com/brixel-ai/brixel-client/pkg/util"
)

// Server implements the HTTP API for one hosted agent
type Server struct {
	reg     *registry.Registry
	pub     publish.Publisher
	options map[string]any
	agentID api.AgentID
	sockets util.Set[*Client]
	mu      sync.Mutex
}

// NewServer creates an HTTP API server for the given agent. Events emitted
// during execution are fanned out to pub and to every connected WebSocket
func NewServer(
	reg *registry.Registry, agentID api.AgentID, pub publish.Publisher,
) *Server {
	if pub == nil {
		pub = publish.Discard
	}
	return &Server{
		reg:     reg,
		agentID: agentID,
		pub:     pub,
		sockets: util.Set[*Client]{},
	}
}

// SetOptions attaches agent-level options reported by the configuration
// endpoint
func (s *Server) SetOptions(options map[string]any) {
	s.options = options
}

// SetupRoutes configures and returns the HTTP router with all API endpoints
func (s *Server) SetupRoutes() *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(glog.SetLogger(
		glog.WithLogger(func(c *gin.Context, l *slog.Logger) *slog.Logger {
			return slog.Default()
		}),
	))

	// CORS middleware
	router.Use(func(c *gin.Context) {
		c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
		c.Writer.Header().Set(
			"Access-Control-Allow-Methods",
			"GET, POST, PUT, DELETE, OPTIONS",
		)
		c.Writer.Header().Set(
			"Access-Control-Allow-Headers",
			"Content-Type, Authorization, x-api-key",
		)

		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(http.StatusOK)
			return
		}

		c.Next()
	})

	router.GET("/health", s.handleHealth)
	router.GET("/configuration", s.handleConfiguration)
	router.POST("/execute", s.handleExecute)
	router.GET("/ws", s.handleWebSocket)

	return router
}

// Publisher returns the sink executions publish to: the configured sink
// plus a broadcast to every connected WebSocket client
func (s *Server) Publisher() publish.Publisher {
	return publish.Multi{s.pub, publish.Func(s.broadcast)}
}

func (s *Server) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status": "healthy",
		"agent":  s.agentID,
		"tasks":  len(s.reg.TaskNames(s.agentID)),
	})
}

func (s *Server) handleConfiguration(c *gin.Context) {
	cfg, err := s.reg.AgentConfig(s.agentID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": err.Error(),
		})
		return
	}
	cfg.Options = s.options
	c.JSON(http.StatusOK, cfg)
}

func (s *Server) registerWebSocket(c *Client) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sockets.Add(c)
}

func (s *Server) unregisterWebSocket(c *Client) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sockets.Remove(c)
}

// CloseWebSockets closes all active WebSocket connections.
func (s *Server) CloseWebSockets() {
	s.mu.Lock()
	conns := make([]*Client, 0, len(s.sockets))
	for c := range s.sockets {
		conns = append(conns, c)
	}
	s.mu.Unlock()

	for _, c := range conns {
		c.Close()
	}
}
