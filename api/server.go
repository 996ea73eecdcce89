package api

import (
	"context"
	"io"
	"net/http"
	"time"

	"github.com/Aidin1998/pincex_mockfeed/api/responses"
	"github.com/Aidin1998/pincex_mockfeed/internal/marketfeeds"
	"github.com/Aidin1998/pincex_mockfeed/pkg/errors"
	"github.com/Aidin1998/pincex_mockfeed/pkg/validation"
	"github.com/gin-contrib/cors"
	ginzap "github.com/gin-contrib/zap"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

// FeedController is the part of marketfeeds.Service the API drives
type FeedController interface {
	Start(ctx context.Context, trigger marketfeeds.Trigger) error
	Stop(ctx context.Context, trigger marketfeeds.Trigger, cause string)
	State() marketfeeds.FeedState
	Status() marketfeeds.FeedStatus
	VolatilitySnapshots() map[string]marketfeeds.GuardSnapshot
	VolatilitySnapshot(symbol string) (marketfeeds.GuardSnapshot, bool)
}

// Options configures optional parts of the server
type Options struct {
	CORSOrigins []string
	// TracerProvider overrides the global provider used for request spans
	TracerProvider trace.TracerProvider
	// MarketData serves /api/v1/ws/marketdata when set
	MarketData http.Handler
}

// StartRequest is the optional body of POST /mock-feed/start
type StartRequest struct {
	Trigger string `json:"trigger" validate:"omitempty,feed_trigger"`
}

// StopRequest is the optional body of POST /mock-feed/stop
type StopRequest struct {
	Trigger string `json:"trigger" validate:"omitempty,feed_trigger"`
	Cause   string `json:"cause" validate:"max=256"`
}

// Server represents the API server
type Server struct {
	router     *gin.Engine
	logger     *zap.Logger
	feed       FeedController
	marketData http.Handler
	validator  *validation.Validator
}

// NewServer creates a new API server around feed
func NewServer(logger *zap.Logger, feed FeedController, opts Options) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	server := &Server{
		logger:     logger.Named("api"),
		feed:       feed,
		marketData: opts.MarketData,
		validator:  validation.NewValidator(logger),
	}

	router := gin.New()
	router.Use(ginzap.Ginzap(logger, time.RFC3339, true))
	router.Use(ginzap.CustomRecoveryWithZap(logger, true, func(c *gin.Context, _ interface{}) {
		responses.InternalServerError(c, "internal server error")
		c.Abort()
	}))
	var traceOpts []otelgin.Option
	if opts.TracerProvider != nil {
		traceOpts = append(traceOpts, otelgin.WithTracerProvider(opts.TracerProvider))
	}
	router.Use(otelgin.Middleware("mockfeed-api", traceOpts...))

	origins := opts.CORSOrigins
	if len(origins) == 0 {
		origins = []string{"*"}
	}
	router.Use(cors.New(cors.Config{
		AllowOrigins:  origins,
		AllowMethods:  []string{"GET", "POST", "OPTIONS"},
		AllowHeaders:  []string{"Origin", "Content-Type", "Accept", "X-Trace-ID"},
		ExposeHeaders: []string{"Content-Length"},
		MaxAge:        12 * time.Hour,
	}))

	server.router = router
	server.registerRoutes()
	return server
}

// Router returns the internal Gin engine, used as the http.Handler
func (s *Server) Router() *gin.Engine {
	return s.router
}

func (s *Server) registerRoutes() {
	s.router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	public := s.router.Group("/api/v1")
	{
		public.GET("/health", s.healthCheck)

		feed := public.Group("/mock-feed")
		{
			feed.POST("/start", s.startFeed)
			feed.POST("/stop", s.stopFeed)
			feed.GET("/status", s.feedStatus)
			feed.GET("/volatility", s.volatilitySnapshots)
			feed.GET("/volatility/:symbol", s.volatilitySnapshot)
		}

		if s.marketData != nil {
			public.GET("/ws/marketdata", gin.WrapH(s.marketData))
		}
	}
}

// healthCheck handles the health check endpoint
func (s *Server) healthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":     "ok",
		"feed_state": s.feed.State(),
		"time":       time.Now(),
	})
}

func (s *Server) startFeed(c *gin.Context) {
	var req StartRequest
	if !s.bind(c, &req) {
		return
	}
	trigger := marketfeeds.TriggerManual
	if req.Trigger != "" {
		trigger = marketfeeds.ParseTrigger(req.Trigger)
	}

	if err := s.feed.Start(c.Request.Context(), trigger); err != nil {
		s.logger.Error("Failed to start mock feed", zap.String("trigger", string(trigger)), zap.Error(err))
		responses.FeedUnavailable(c, err.Error())
		return
	}

	status := s.feed.Status()
	msg := "Mock feed started"
	if status.State == marketfeeds.FeedStateStopped {
		msg = "No eligible instruments, mock feed remains stopped"
	}
	responses.Success(c, status, msg)
}

func (s *Server) stopFeed(c *gin.Context) {
	var req StopRequest
	if !s.bind(c, &req) {
		return
	}
	trigger := marketfeeds.TriggerManual
	if req.Trigger != "" {
		trigger = marketfeeds.ParseTrigger(req.Trigger)
	}
	cause := s.validator.SanitizeText(req.Cause)
	if cause == "" {
		cause = "requested via API"
	}

	s.feed.Stop(c.Request.Context(), trigger, cause)
	responses.Success(c, s.feed.Status(), "Mock feed stopped")
}

func (s *Server) feedStatus(c *gin.Context) {
	responses.Success(c, s.feed.Status())
}

func (s *Server) volatilitySnapshots(c *gin.Context) {
	responses.Success(c, s.feed.VolatilitySnapshots())
}

func (s *Server) volatilitySnapshot(c *gin.Context) {
	symbol, valid := validation.NormalizeSymbol(c.Param("symbol"))
	if !valid {
		responses.BadRequest(c, "invalid instrument symbol")
		return
	}
	snapshot, ok := s.feed.VolatilitySnapshot(symbol)
	if !ok {
		responses.NotFound(c, "no volatility guard state for symbol "+symbol)
		return
	}
	responses.Success(c, snapshot)
}

// bind decodes an optional JSON body into req and validates it. Trigger
// fields are accepted in any case.
func (s *Server) bind(c *gin.Context, req interface{}) bool {
	if err := c.ShouldBindJSON(req); err != nil && !errors.Is(err, io.EOF) {
		responses.BadRequest(c, "malformed request body: "+err.Error())
		return false
	}
	if fieldErrs, err := s.validator.ValidateStruct(req); err != nil {
		responses.BadRequest(c, err.Error(), fieldErrs...)
		return false
	}
	return true
}
