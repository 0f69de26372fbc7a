package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/jack/golang-campaign-redirect-service/internal/model"
)

func (h *Handler) ListOriginals(c *gin.Context) {
	records, err := h.service.ListOriginals(c.Request.Context())
	if err != nil {
		respondError(c, "list original records", err)
		return
	}
	c.JSON(http.StatusOK, records)
}

func (h *Handler) GetOriginal(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}

	record, err := h.service.GetOriginal(c.Request.Context(), id)
	if err != nil {
		respondError(c, "get original record", err)
		return
	}
	c.JSON(http.StatusOK, record)
}

// UpdateOriginal edits a master record and pushes it to every URL with its name.
// Setting originalClickLimit always pauses the record.
func (h *Handler) UpdateOriginal(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}

	var req model.UpdateOriginalRequest
	if !bindJSON(c, &req) {
		return
	}

	record, sync, err := h.service.UpdateOriginal(c.Request.Context(), id, &req)
	if err != nil {
		respondError(c, "update original record", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"originalRecord": record,
		"sync":           sync,
	})
}

func (h *Handler) SyncOriginal(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}

	resp, err := h.service.SyncOriginalToURLs(c.Request.Context(), id)
	if err != nil {
		respondError(c, "sync original record", err)
		return
	}
	c.JSON(http.StatusOK, resp)
}
