package httpapi

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"storyreel/internal/draftstore"
	"storyreel/internal/export"
	"storyreel/internal/logging"
	"storyreel/internal/notifications"
	"storyreel/internal/preview"
	"storyreel/internal/timeline"
)

// Deps are the stores and engines the API exposes. Drafts and Spool may be nil,
// in which case their routes answer 503. Notifier may be nil.
type Deps struct {
	Manager  *preview.Manager
	Drafts   *draftstore.Store
	Spool    *export.Spool
	Notifier notifications.Service
}

// Options configure the HTTP surface.
type Options struct {
	Bind     string
	Token    string
	Defaults timeline.Defaults
	// LogPath enables /api/logs when set.
	LogPath string
	Logger  *slog.Logger
}

// Server is the daemon's HTTP and websocket control surface.
type Server struct {
	deps     Deps
	bind     string
	token    string
	defaults timeline.Defaults
	logPath  string
	logger   *slog.Logger
	engine   *gin.Engine
	upgrader websocket.Upgrader

	mu   sync.Mutex
	hubs map[string]*Hub

	listener net.Listener
	server   *http.Server
}

// New builds the router.
func New(deps Deps, opts Options) (*Server, error) {
	if deps.Manager == nil {
		return nil, errors.New("httpapi: preview manager required")
	}
	gin.SetMode(gin.ReleaseMode)
	s := &Server{
		deps:     deps,
		bind:     strings.TrimSpace(opts.Bind),
		token:    opts.Token,
		defaults: opts.Defaults,
		logPath:  strings.TrimSpace(opts.LogPath),
		logger:   logging.NewComponentLogger(opts.Logger, "api"),
		engine:   gin.New(),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 4096,
			CheckOrigin:     func(*http.Request) bool { return true },
		},
		hubs: make(map[string]*Hub),
	}
	s.engine.Use(gin.Recovery(), s.requestLogger())
	s.routes()
	return s, nil
}

func (s *Server) routes() {
	api := s.engine.Group("/api", s.auth())
	api.GET("/status", s.handleStatus)
	api.GET("/logs", s.handleLogs)

	sessions := api.Group("/sessions")
	sessions.GET("", s.handleListSessions)
	sessions.POST("", s.handleCreateSession)
	sessions.GET("/:id", s.withSession(s.handleSnapshot))
	sessions.DELETE("/:id", s.handleDeleteSession)
	sessions.GET("/:id/ws", s.handleCues)
	sessions.GET("/:id/payload", s.withSession(s.handlePayload))
	sessions.GET("/:id/windows", s.withSession(s.handleWindows))
	sessions.POST("/:id/play", s.withSession(s.handlePlay))
	sessions.POST("/:id/pause", s.withSession(s.handlePause))
	sessions.POST("/:id/seek", s.withSession(s.handleSeek))
	sessions.POST("/:id/select", s.withSession(s.handleSelect))
	sessions.POST("/:id/prepare", s.withSession(s.handlePrepare))
	sessions.POST("/:id/reset", s.withSession(s.handleReset))
	sessions.PUT("/:id/bgm", s.withSession(s.handleConfirmBGM))
	sessions.DELETE("/:id/bgm", s.withSession(s.handleClearBGM))
	sessions.POST("/:id/reorder", s.withSession(s.handleReorder))
	sessions.POST("/:id/selection", s.withSession(s.handleSelectionRange))
	sessions.POST("/:id/source-duration", s.withSession(s.handleSourceDuration))
	sessions.PUT("/:id/scenes/:sceneId/script", s.withSession(s.handleScript))
	sessions.DELETE("/:id/scenes/:sceneId", s.withSession(s.handleRemoveScene))
	sessions.POST("/:id/save", s.withSession(s.handleSaveDraft))
	sessions.POST("/:id/export", s.withSession(s.handleExport))

	drafts := api.Group("/drafts")
	drafts.GET("", s.handleListDrafts)
	drafts.POST("", s.handleImportDraft)
	drafts.GET("/:id", s.handleGetDraft)
	drafts.DELETE("/:id", s.handleDeleteDraft)

	exports := api.Group("/exports")
	exports.GET("", s.handleListExports)
	exports.GET("/:id", s.handleGetExport)
	exports.DELETE("/:id", s.handleDeleteExport)
}

// Handler returns the HTTP handler, for tests and embedding.
func (s *Server) Handler() http.Handler { return s.engine }

// Start listens on the configured bind address until ctx is cancelled.
func (s *Server) Start(ctx context.Context) error {
	if s.bind == "" {
		return errors.New("api bind address not configured")
	}
	listener, err := net.Listen("tcp", s.bind)
	if err != nil {
		return fmt.Errorf("api listen: %w", err)
	}
	s.listener = listener
	s.server = &http.Server{
		Handler:           s.engine,
		ReadHeaderTimeout: 5 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	go func() {
		if err := s.server.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("api server error", logging.Error(err))
		}
	}()
	go func() {
		<-ctx.Done()
		s.Stop()
	}()

	s.logger.Info("api server listening", logging.String("address", listener.Addr().String()))
	return nil
}

// Addr reports the bound address once started.
func (s *Server) Addr() string {
	if s.listener == nil {
		return ""
	}
	return s.listener.Addr().String()
}

// Stop shuts the listener down and disconnects websocket clients.
func (s *Server) Stop() {
	s.mu.Lock()
	hubs := s.hubs
	s.hubs = make(map[string]*Hub)
	s.mu.Unlock()
	for _, hub := range hubs {
		hub.Close()
	}
	if s.server != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = s.server.Shutdown(shutdownCtx)
	}
}

func (s *Server) hub(id string) *Hub {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.hubs[id]
}

func (s *Server) auth() gin.HandlerFunc {
	return func(c *gin.Context) {
		if s.token == "" {
			c.Next()
			return
		}
		header := c.GetHeader("Authorization")
		if !strings.HasPrefix(header, "Bearer ") || strings.TrimPrefix(header, "Bearer ") != s.token {
			c.AbortWithStatusJSON(http.StatusUnauthorized, errorResponse{Error: "unauthorized"})
			return
		}
		c.Next()
	}
}

func (s *Server) requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		s.logger.Debug("api request",
			logging.String("method", c.Request.Method),
			logging.String("path", c.FullPath()),
			logging.Int("status", c.Writer.Status()),
			logging.Duration("elapsed", time.Since(start)),
		)
	}
}
