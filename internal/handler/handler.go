package handler

import (
	"context"
	"errors"
	"log"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
	"github.com/jack/golang-campaign-redirect-service/internal/model"
	"github.com/jack/golang-campaign-redirect-service/internal/repository"
	"github.com/jack/golang-campaign-redirect-service/internal/service"
)

// Pinger reports whether a dependency is reachable.
type Pinger interface {
	Health(ctx context.Context) error
}

type Handler struct {
	service *service.Service
	redis   Pinger
}

// NewHandler builds the HTTP handlers. redis may be nil when no Redis is configured.
func NewHandler(service *service.Service, redis Pinger) *Handler {
	return &Handler{service: service, redis: redis}
}

// RegisterValidations adds the custom request tags to gin's validator.
func RegisterValidations() error {
	v, ok := binding.Validator.Engine().(*validator.Validate)
	if !ok {
		return errors.New("unexpected gin validator engine")
	}
	return model.RegisterValidations(v)
}

func respondInternalError(c *gin.Context, message string) {
	c.JSON(http.StatusInternalServerError, gin.H{
		"error":   "internal_error",
		"message": message,
	})
}

func respondBadRequest(c *gin.Context, message string) {
	c.JSON(http.StatusBadRequest, gin.H{
		"error":   "invalid_request",
		"message": message,
	})
}

// respondError maps service errors to HTTP responses. Anything unexpected is logged
// and reported with a fixed message.
func respondError(c *gin.Context, op string, err error) {
	var verr *service.ValidationError
	switch {
	case errors.As(err, &verr):
		respondBadRequest(c, verr.Error())
	case service.IsNotFound(err):
		c.JSON(http.StatusNotFound, gin.H{
			"error":   "not_found",
			"message": err.Error(),
		})
	case errors.Is(err, service.ErrCampaignExhausted):
		c.JSON(http.StatusGone, gin.H{
			"error":   "exhausted",
			"message": "Campaign has no active URLs",
		})
	case errors.Is(err, repository.ErrCustomPathTaken):
		c.JSON(http.StatusConflict, gin.H{
			"error":   "conflict",
			"message": err.Error(),
		})
	default:
		log.Printf("%s failed: path=%s ip=%s err=%v", op, c.Request.URL.Path, c.ClientIP(), err)
		respondInternalError(c, "Failed to "+op)
	}
}

func bindJSON(c *gin.Context, req any) bool {
	if err := c.ShouldBindJSON(req); err != nil {
		respondBadRequest(c, "Invalid request body: "+err.Error())
		return false
	}
	return true
}

func paramID(c *gin.Context, name string) (int64, bool) {
	id, err := strconv.ParseInt(c.Param(name), 10, 64)
	if err != nil || id <= 0 {
		respondBadRequest(c, "Invalid "+name)
		return 0, false
	}
	return id, true
}

func (h *Handler) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status": "healthy",
	})
}

func (h *Handler) HealthDetailed(c *gin.Context) {
	ctx := c.Request.Context()
	status := http.StatusOK
	body := gin.H{"status": "healthy", "store": "connected"}

	if err := h.service.Health(ctx); err != nil {
		log.Printf("health check failed: dependency=store err=%v", err)
		status = http.StatusServiceUnavailable
		body["status"] = "degraded"
		body["store"] = "unreachable"
	}

	if h.redis != nil {
		body["redis"] = "connected"
		if err := h.redis.Health(ctx); err != nil {
			log.Printf("health check failed: dependency=redis err=%v", err)
			status = http.StatusServiceUnavailable
			body["status"] = "degraded"
			body["redis"] = "unreachable"
		}
	}

	c.JSON(status, body)
}

// RegisterRoutes mounts the redirect endpoints and the /api group. apiMW and
// redirectMW are applied to their respective routes only.
func (h *Handler) RegisterRoutes(router *gin.Engine, apiMW, redirectMW []gin.HandlerFunc) {
	router.SetHTMLTemplate(redirectTemplates)

	router.GET("/health", h.Health)
	router.GET("/health/detailed", h.HealthDetailed)

	redirects := router.Group("/", redirectMW...)
	{
		redirects.GET("/views/:customPath", h.RedirectByPath)
		redirects.GET("/r/:campaignId/:urlId", h.RedirectByIDs)
	}

	api := router.Group("/api", apiMW...)
	{
		api.GET("/campaigns", h.ListCampaigns)
		api.POST("/campaigns", h.CreateCampaign)
		api.GET("/campaigns/:id", h.GetCampaign)
		api.PUT("/campaigns/:id", h.UpdateCampaign)
		api.DELETE("/campaigns/:id", h.DeleteCampaign)
		api.GET("/campaigns/:id/urls", h.ListCampaignURLs)
		api.POST("/campaigns/:id/urls", h.CreateURL)
		api.GET("/campaigns/:id/stats", h.CampaignStats)

		api.POST("/urls/bulk", h.BulkURLs)
		api.GET("/urls/:id", h.GetURL)
		api.PUT("/urls/:id", h.UpdateURL)
		api.DELETE("/urls/:id", h.DeleteURL)
		api.DELETE("/urls/:id/permanent", h.PermanentDeleteURL)

		api.GET("/original-url-records", h.ListOriginals)
		api.GET("/original-url-records/:id", h.GetOriginal)
		api.PUT("/original-url-records/:id", h.UpdateOriginal)
		api.POST("/original-url-records/:id/sync", h.SyncOriginal)

		api.GET("/blacklist", h.ListBlacklist)
		api.POST("/blacklist", h.CreateBlacklist)
		api.DELETE("/blacklist/:id", h.DeleteBlacklist)
	}
}
