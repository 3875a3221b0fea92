package webhook

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/fadedpez/pagebot/internal/bot"
	"github.com/fadedpez/pagebot/internal/event"
	"github.com/fadedpez/pagebot/internal/logging"
	"github.com/gin-gonic/gin"
)

const (
	signatureHeader = "X-Hub-Signature-256"
	signaturePrefix = "sha256="
	maxBodyBytes    = 1 << 20
)

// Processor handles a batch of events decoded from one webhook call
type Processor interface {
	ProcessBatch(ctx context.Context, events []*event.Event) []bot.Outcome
}

// Options configures the webhook Server
type Options struct {
	VerifyToken string
	AppSecret   string
	Processor   Processor
	Logger      *logging.Logger
	// Metrics is mounted on /metrics when set
	Metrics http.Handler
	Debug   bool
}

// Server receives platform webhooks and hands events to the Processor
type Server struct {
	opts    Options
	logger  *logging.Logger
	router  *gin.Engine
	httpSrv *http.Server

	ctx     context.Context
	cancel  context.CancelFunc
	batches sync.WaitGroup
}

// NewServer creates a new webhook server
func NewServer(opts Options) *Server {
	if opts.Logger == nil {
		opts.Logger = logging.Nop()
	}
	if !opts.Debug {
		gin.SetMode(gin.ReleaseMode)
	}

	ctx, cancel := context.WithCancel(context.Background())
	s := &Server{
		opts:   opts,
		logger: opts.Logger.With("component", "webhook"),
		ctx:    ctx,
		cancel: cancel,
	}
	if opts.AppSecret == "" {
		s.logger.Warn("No app secret configured, webhook signatures will not be verified")
	}

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(s.requestLogger())

	router.GET("/webhook", s.verify)
	router.POST("/webhook", s.receive)
	router.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	if opts.Metrics != nil {
		router.GET("/metrics", gin.WrapH(opts.Metrics))
	}

	s.router = router
	return s
}

// Handler exposes the router, mainly for tests
func (s *Server) Handler() http.Handler {
	return s.router
}

// ListenAndServe serves on addr until Shutdown is called
func (s *Server) ListenAndServe(addr string) error {
	s.httpSrv = &http.Server{
		Addr:         addr,
		Handler:      s.router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	s.logger.Info("Webhook server listening on %s", addr)
	if err := s.httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("webhook server: %w", err)
	}
	return nil
}

// Shutdown stops accepting requests, then waits for queued batches
func (s *Server) Shutdown(ctx context.Context) error {
	if s.httpSrv != nil {
		if err := s.httpSrv.Shutdown(ctx); err != nil {
			return fmt.Errorf("error stopping webhook server: %w", err)
		}
	}

	done := make(chan struct{})
	go func() {
		s.batches.Wait()
		close(done)
	}()

	select {
	case <-done:
		s.cancel()
		return nil
	case <-ctx.Done():
		s.cancel()
		return fmt.Errorf("webhook batches still running: %w", ctx.Err())
	}
}

// verify answers the platform's subscription handshake
func (s *Server) verify(c *gin.Context) {
	mode := c.Query("hub.mode")
	token := c.Query("hub.verify_token")
	challenge := c.Query("hub.challenge")

	if mode == "subscribe" && s.opts.VerifyToken != "" &&
		hmac.Equal([]byte(token), []byte(s.opts.VerifyToken)) {
		s.logger.Info("Webhook verified")
		c.String(http.StatusOK, challenge)
		return
	}

	s.logger.Warn("Webhook verification failed for mode %q", mode)
	c.String(http.StatusForbidden, "Verification failed")
}

// receive acknowledges the call immediately and processes events in the background
func (s *Server) receive(c *gin.Context) {
	body, err := io.ReadAll(io.LimitReader(c.Request.Body, maxBodyBytes))
	if err != nil {
		c.String(http.StatusBadRequest, "Unreadable body")
		return
	}

	if !s.validSignature(c.GetHeader(signatureHeader), body) {
		s.logger.Warn("Rejected webhook with invalid signature from %s", c.ClientIP())
		c.String(http.StatusUnauthorized, "Invalid signature")
		return
	}

	events, err := event.ParseGraphWebhook(body)
	switch {
	case errors.Is(err, event.ErrNotPage):
		c.String(http.StatusNotFound, "Not a page event")
		return
	case err != nil:
		c.String(http.StatusBadRequest, "Invalid body")
		return
	}

	c.JSON(http.StatusOK, gin.H{"status": "EVENT_RECEIVED"})

	if len(events) == 0 {
		return
	}
	s.batches.Add(1)
	go func() {
		defer s.batches.Done()
		outcomes := s.opts.Processor.ProcessBatch(s.ctx, events)
		s.logger.Debug("Processed batch of %d events: %v", len(events), outcomes)
	}()
}

// validSignature checks the HMAC-SHA256 of the raw body. Without an app
// secret every request passes.
func (s *Server) validSignature(header string, body []byte) bool {
	if s.opts.AppSecret == "" {
		return true
	}
	if !strings.HasPrefix(header, signaturePrefix) {
		return false
	}

	mac := hmac.New(sha256.New, []byte(s.opts.AppSecret))
	mac.Write(body)
	expected := signaturePrefix + hex.EncodeToString(mac.Sum(nil))
	return hmac.Equal([]byte(header), []byte(expected))
}

func (s *Server) requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		s.logger.Debug("%s %s -> %d (%s)", c.Request.Method, c.Request.URL.Path, c.Writer.Status(), time.Since(start))
	}
}
