package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/elonfeng/patternradar/internal/store"
	"github.com/elonfeng/patternradar/pkg/dashboard"
	"github.com/elonfeng/patternradar/pkg/post"
)

// Server provides the HTTP API.
type Server struct {
	svc    *dashboard.Service
	window time.Duration
	port   int
	log    *slog.Logger
}

// New creates a new HTTP server. window is the dashboard default when a
// request does not name one.
func New(svc *dashboard.Service, window time.Duration, port int, log *slog.Logger) *Server {
	if port == 0 {
		port = 8080
	}
	if log == nil {
		log = slog.Default()
	}
	return &Server{svc: svc, window: window, port: port, log: log}
}

// Handler returns the routed gin engine.
func (s *Server) Handler() http.Handler {
	r := gin.New()
	r.Use(gin.Recovery(), s.requestLog())

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	users := r.Group("/api/v1/users/:user")
	users.GET("/dashboard", s.handleDashboard)
	users.POST("/posts", s.handleLogPost)
	users.POST("/feedback", s.handleFeedback)
	users.POST("/interactions", s.handleInteraction)
	users.POST("/actions", s.handleAction)

	return r
}

// ListenAndServe starts the HTTP server and shuts it down when ctx ends.
func (s *Server) ListenAndServe(ctx context.Context) error {
	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", s.port),
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.log.Info("patternradar server listening", "addr", srv.Addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	}
}

func (s *Server) requestLog() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		s.log.Debug("http request",
			"method", c.Request.Method,
			"path", c.FullPath(),
			"status", c.Writer.Status(),
			"duration", time.Since(start),
		)
	}
}

func (s *Server) handleDashboard(c *gin.Context) {
	window, err := dashboard.ParseWindow(c.Query("window"), s.window)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	payload, err := s.svc.Build(c.Request.Context(), c.Param("user"), window)
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, payload)
}

func (s *Server) handleLogPost(c *gin.Context) {
	var p post.Post
	if err := c.ShouldBindJSON(&p); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid post body"})
		return
	}
	p.UserID = c.Param("user")

	if err := s.svc.LogPost(c.Request.Context(), &p); err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, p)
}

func (s *Server) handleFeedback(c *gin.Context) {
	var f post.Feedback
	if err := c.ShouldBindJSON(&f); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid feedback body"})
		return
	}
	f.UserID = c.Param("user")

	if err := s.svc.AddFeedback(c.Request.Context(), &f); err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, f)
}

type interactionRequest struct {
	IdempotencyKey string `json:"idempotency_key"`
	RAGHit         bool   `json:"rag_hit"`
}

func (s *Server) handleInteraction(c *gin.Context) {
	var req interactionRequest
	if c.Request.ContentLength != 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid interaction body"})
			return
		}
	}
	if key := c.GetHeader("Idempotency-Key"); key != "" {
		req.IdempotencyKey = key
	}

	state, counted, err := s.svc.RecordInteraction(c.Request.Context(), c.Param("user"), req.IdempotencyKey, req.RAGHit)
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"counted": counted, "learning": state})
}

func (s *Server) handleAction(c *gin.Context) {
	var a post.ActionLog
	if err := c.ShouldBindJSON(&a); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid action body"})
		return
	}
	a.UserID = c.Param("user")

	if err := s.svc.LogAction(c.Request.Context(), &a); err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, a)
}

// fail maps err to a status code. Input errors are echoed; anything else is
// logged and reported generically.
func (s *Server) fail(c *gin.Context, err error) {
	switch {
	case errors.Is(err, store.ErrInvalidPost), errors.Is(err, store.ErrInvalidFeedback),
		errors.Is(err, store.ErrInvalidInput):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case errors.Is(err, store.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "not found"})
	default:
		s.log.Error("request failed", "path", c.FullPath(), "err", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
	}
}
