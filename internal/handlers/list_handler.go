package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/akylbek/payment-system/mandate-console/internal/service"
)

type ListHandler struct {
	registry *service.ListRegistry
}

func NewListHandler(registry *service.ListRegistry) *ListHandler {
	return &ListHandler{registry: registry}
}

type pollingRequest struct {
	Enabled bool `json:"enabled"`
}

func (h *ListHandler) poller(c *gin.Context) (service.Poller, bool) {
	p, err := h.registry.Get(sessionFrom(c), c.Param("kind"))
	if err != nil {
		respondError(c, err, nil)
		return nil, false
	}
	return p, true
}

func (h *ListHandler) Get(c *gin.Context) {
	p, ok := h.poller(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, p.View())
}

// Refresh is the manual "Retry"/reload action; it shows the loading state.
func (h *ListHandler) Refresh(c *gin.Context) {
	p, ok := h.poller(c)
	if !ok {
		return
	}
	ctx := service.WithSession(c.Request.Context(), sessionFrom(c))
	if err := p.FetchOnce(ctx, true); err != nil {
		respondError(c, err, gin.H{"list": p.View()})
		return
	}
	c.JSON(http.StatusOK, p.View())
}

func (h *ListHandler) SetPolling(c *gin.Context) {
	p, ok := h.poller(c)
	if !ok {
		return
	}
	var req pollingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}
	if req.Enabled {
		p.StartPolling(h.registry.DefaultInterval())
	} else {
		p.StopPolling()
	}
	c.JSON(http.StatusOK, p.View())
}
