package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/jack/golang-campaign-redirect-service/internal/model"
)

func (h *Handler) ListCampaigns(c *gin.Context) {
	campaigns, err := h.service.ListCampaigns(c.Request.Context())
	if err != nil {
		respondError(c, "list campaigns", err)
		return
	}
	c.JSON(http.StatusOK, campaigns)
}

func (h *Handler) CreateCampaign(c *gin.Context) {
	var req model.CreateCampaignRequest
	if !bindJSON(c, &req) {
		return
	}

	campaign, err := h.service.CreateCampaign(c.Request.Context(), &req)
	if err != nil {
		respondError(c, "create campaign", err)
		return
	}
	c.JSON(http.StatusCreated, campaign)
}

func (h *Handler) GetCampaign(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}

	detail, err := h.service.GetCampaign(c.Request.Context(), id)
	if err != nil {
		respondError(c, "get campaign", err)
		return
	}
	c.JSON(http.StatusOK, detail)
}

func (h *Handler) UpdateCampaign(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}

	var req model.UpdateCampaignRequest
	if !bindJSON(c, &req) {
		return
	}

	campaign, err := h.service.UpdateCampaign(c.Request.Context(), id, &req)
	if err != nil {
		respondError(c, "update campaign", err)
		return
	}
	c.JSON(http.StatusOK, campaign)
}

// DeleteCampaign soft-deletes the campaign's URLs before removing it
func (h *Handler) DeleteCampaign(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}

	if err := h.service.DeleteCampaign(c.Request.Context(), id); err != nil {
		respondError(c, "delete campaign", err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *Handler) ListCampaignURLs(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}

	detail, err := h.service.GetCampaign(c.Request.Context(), id)
	if err != nil {
		respondError(c, "list campaign urls", err)
		return
	}
	c.JSON(http.StatusOK, detail.URLs)
}

func (h *Handler) CampaignStats(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}

	stats, err := h.service.CampaignStats(c.Request.Context(), id)
	if err != nil {
		respondError(c, "get campaign stats", err)
		return
	}
	c.JSON(http.StatusOK, stats)
}
