package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/jack/golang-campaign-redirect-service/internal/model"
)

func (h *Handler) ListBlacklist(c *gin.Context) {
	entries, err := h.service.ListBlacklist(c.Request.Context())
	if err != nil {
		respondError(c, "list blacklist", err)
		return
	}
	c.JSON(http.StatusOK, entries)
}

func (h *Handler) CreateBlacklist(c *gin.Context) {
	var req model.CreateBlacklistRequest
	if !bindJSON(c, &req) {
		return
	}

	entry, err := h.service.CreateBlacklist(c.Request.Context(), &req)
	if err != nil {
		respondError(c, "create blacklist entry", err)
		return
	}
	c.JSON(http.StatusCreated, entry)
}

func (h *Handler) DeleteBlacklist(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}

	if err := h.service.DeleteBlacklist(c.Request.Context(), id); err != nil {
		respondError(c, "delete blacklist entry", err)
		return
	}
	c.Status(http.StatusNoContent)
}
