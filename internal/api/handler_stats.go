package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// TopMachines handles GET /api/stats/machines.
func (h *Handler) TopMachines(c *gin.Context) {
	f, ok := h.filter(c)
	if !ok {
		return
	}
	out, err := h.svc.TopMachines(c.Request.Context(), f)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, out)
}

// Trend handles GET /api/stats/trend.
func (h *Handler) Trend(c *gin.Context) {
	f, ok := h.filter(c)
	if !ok {
		return
	}
	out, err := h.svc.Trend(c.Request.Context(), f)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, out)
}

// TopIssues handles GET /api/stats/issues.
func (h *Handler) TopIssues(c *gin.Context) {
	f, ok := h.filter(c)
	if !ok {
		return
	}
	out, err := h.svc.TopIssues(c.Request.Context(), f)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, out)
}

// Summary handles GET /api/stats/summary.
func (h *Handler) Summary(c *gin.Context) {
	out, err := h.svc.Summary(c.Request.Context())
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, out)
}

// Dashboard handles GET /api/dashboard.
func (h *Handler) Dashboard(c *gin.Context) {
	f, ok := h.filter(c)
	if !ok {
		return
	}
	out, err := h.svc.Dashboard(c.Request.Context(), f)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, out)
}
