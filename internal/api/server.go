// Package api exposes the read and admin surface over HTTP. The
// aggregation core defines no wire protocol of its own; these handlers
// are the only boundary through which external callers reach it.
package api

import (
	"net/http"
	"time"

	"github.com/gin-contrib/pprof"
	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/XavierBriggs/Argus/internal/ingest"
	"github.com/XavierBriggs/Argus/internal/service"
	"github.com/XavierBriggs/Argus/pkg/models"
)

// Handler serves the odds read API and the provider admin API.
type Handler struct {
	svc    *service.Service
	logger *logrus.Logger
}

// NewHandler creates the API handler over the service façade.
func NewHandler(svc *service.Service, logger *logrus.Logger) *Handler {
	return &Handler{svc: svc, logger: logger}
}

// NewRouter builds the gin engine with all routes registered.
func NewRouter(svc *service.Service, logger *logrus.Logger, mode string) *gin.Engine {
	if mode != "" {
		gin.SetMode(mode)
	}

	r := gin.New()
	r.Use(gin.Recovery())
	pprof.Register(r)

	h := NewHandler(svc, logger)

	odds := r.Group("/api/odds")
	{
		odds.GET("/events/:eventId", h.GetEventOdds)
		odds.GET("/events/:eventId/markets/:marketId/outcomes/:outcomeId", h.GetOutcomeOdds)
		odds.GET("/markets/:marketId", h.GetMarketOdds)
	}

	providers := r.Group("/api/providers")
	{
		providers.GET("/status", h.GetProvidersStatus)
		providers.POST("", h.AddProvider)
		providers.PATCH("/:id/enabled", h.SetProviderEnabled)
		providers.PATCH("/:id/weight", h.SetProviderWeight)
	}

	refresh := r.Group("/api/refresh")
	{
		refresh.POST("/start", h.StartRefresh)
		refresh.POST("/stop", h.StopRefresh)
	}

	return r
}

// GetEventOdds returns the best-price view for every outcome of an event.
func (h *Handler) GetEventOdds(c *gin.Context) {
	odds := h.svc.BestOddsForEvent(c.Param("eventId"))
	c.JSON(http.StatusOK, gin.H{"odds": odds})
}

// GetMarketOdds returns the best-price view for every outcome of a market.
func (h *Handler) GetMarketOdds(c *gin.Context) {
	odds := h.svc.BestOddsForMarket(c.Param("marketId"))
	c.JSON(http.StatusOK, gin.H{"odds": odds})
}

// GetOutcomeOdds returns the best-price view for a single outcome.
func (h *Handler) GetOutcomeOdds(c *gin.Context) {
	odds, ok := h.svc.BestOddsForOutcome(
		c.Param("eventId"), c.Param("marketId"), c.Param("outcomeId"))
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "no odds for outcome"})
		return
	}
	c.JSON(http.StatusOK, odds)
}

// GetProvidersStatus returns live health counters for every provider.
func (h *Handler) GetProvidersStatus(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"providers": h.svc.ProvidersStatus()})
}

type addProviderRequest struct {
	ID       string  `json:"id" binding:"required"`
	Name     string  `json:"name"`
	Endpoint string  `json:"endpoint" binding:"required"`
	APIKey   string  `json:"api_key"`
	Weight   float64 `json:"weight"`
	Enabled  bool    `json:"enabled"`
	Parser   string  `json:"parser"`
}

// AddProvider registers a new provider at runtime.
func (h *Handler) AddProvider(c *gin.Context) {
	var req addProviderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	parser, ok := ingest.ParserByName(req.Parser)
	if !ok {
		c.JSON(http.StatusBadRequest, gin.H{"error": "unknown parser: " + req.Parser})
		return
	}

	err := h.svc.AddProvider(models.Provider{
		ID:           req.ID,
		Name:         req.Name,
		BaseEndpoint: req.Endpoint,
		APIKey:       req.APIKey,
		Weight:       req.Weight,
		Enabled:      req.Enabled,
	})
	if err != nil {
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
		return
	}
	h.svc.RegisterParser(req.ID, parser)

	h.logger.WithField("provider", req.ID).Info("provider registered")
	c.JSON(http.StatusCreated, gin.H{"id": req.ID})
}

type setEnabledRequest struct {
	Enabled *bool `json:"enabled" binding:"required"`
}

// SetProviderEnabled toggles a provider.
func (h *Handler) SetProviderEnabled(c *gin.Context) {
	var req setEnabledRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if !h.svc.SetProviderEnabled(c.Param("id"), *req.Enabled) {
		c.JSON(http.StatusNotFound, gin.H{"error": "unknown provider"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"id": c.Param("id"), "enabled": *req.Enabled})
}

type setWeightRequest struct {
	Weight *float64 `json:"weight" binding:"required"`
}

// SetProviderWeight updates a provider's weight.
func (h *Handler) SetProviderWeight(c *gin.Context) {
	var req setWeightRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if *req.Weight < 0 || *req.Weight > 1 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "weight must be in [0,1]"})
		return
	}

	if !h.svc.SetProviderWeight(c.Param("id"), *req.Weight) {
		c.JSON(http.StatusNotFound, gin.H{"error": "unknown provider"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"id": c.Param("id"), "weight": *req.Weight})
}

type startRefreshRequest struct {
	IntervalMs int64 `json:"interval_ms" binding:"required"`
}

// StartRefresh begins the recurring refresh cycle.
func (h *Handler) StartRefresh(c *gin.Context) {
	var req startRefreshRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	interval := time.Duration(req.IntervalMs) * time.Millisecond
	if err := h.svc.StartRefresh(interval); err != nil {
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"interval_ms": req.IntervalMs})
}

// StopRefresh cancels the recurring refresh cycle.
func (h *Handler) StopRefresh(c *gin.Context) {
	h.svc.StopRefresh()
	c.JSON(http.StatusOK, gin.H{"stopped": true})
}
