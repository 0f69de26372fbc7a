package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/jack/golang-campaign-redirect-service/internal/model"
)

// CreateURL adds a URL to a campaign. Duplicate names and blacklisted targets are
// stored as rejected and still answered with 201.
func (h *Handler) CreateURL(c *gin.Context) {
	campaignID, ok := paramID(c, "id")
	if !ok {
		return
	}

	var req model.CreateURLRequest
	if !bindJSON(c, &req) {
		return
	}
	req.CampaignID = &campaignID

	u, err := h.service.CreateURL(c.Request.Context(), &req)
	if err != nil {
		respondError(c, "create url", err)
		return
	}
	c.JSON(http.StatusCreated, u)
}

func (h *Handler) GetURL(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}

	u, err := h.service.GetURL(c.Request.Context(), id)
	if err != nil {
		respondError(c, "get url", err)
		return
	}
	c.JSON(http.StatusOK, u)
}

func (h *Handler) UpdateURL(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}

	var req model.UpdateURLRequest
	if !bindJSON(c, &req) {
		return
	}

	u, err := h.service.UpdateURL(c.Request.Context(), id, &req)
	if err != nil {
		respondError(c, "update url", err)
		return
	}
	c.JSON(http.StatusOK, u)
}

func (h *Handler) DeleteURL(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}

	if err := h.service.DeleteURL(c.Request.Context(), id); err != nil {
		respondError(c, "delete url", err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *Handler) PermanentDeleteURL(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}

	if err := h.service.PermanentDeleteURL(c.Request.Context(), id); err != nil {
		respondError(c, "permanently delete url", err)
		return
	}
	c.Status(http.StatusNoContent)
}

// BulkURLs accepts ids under "ids" or "urlIds"
func (h *Handler) BulkURLs(c *gin.Context) {
	var req model.BulkURLRequest
	if !bindJSON(c, &req) {
		return
	}

	resp, err := h.service.BulkURLs(c.Request.Context(), &req)
	if err != nil {
		respondError(c, "apply bulk action", err)
		return
	}
	c.JSON(http.StatusOK, resp)
}
