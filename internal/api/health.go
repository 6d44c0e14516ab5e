package api

import (
	"context"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/gommon/bytes"

	"github.com/brixfix/brixfix-go/internal/logger"
)

// MemoryInfo is the host memory block of the health response.
type MemoryInfo struct {
	Total       string  `json:"total"`
	Available   string  `json:"available"`
	UsedPercent float64 `json:"used_percent"`
}

// HealthResponse is returned by GET /health.
type HealthResponse struct {
	Status     string      `json:"status"`
	Version    string      `json:"version"`
	ModelReady bool        `json:"model_ready"`
	Backend    string      `json:"backend,omitempty"`
	Database   string      `json:"database"`
	Uptime     string      `json:"uptime"`
	Memory     *MemoryInfo `json:"memory,omitempty"`
}

// Root lists the public endpoints.
func (c *Controller) Root(ctx echo.Context) error {
	endpoints := []string{"/health", "/register", "/login", "/predict", "/history", "/stats"}
	if c.Settings.Dashboard.Enabled {
		endpoints = append(endpoints, "/dashboard")
	}
	return ctx.JSON(http.StatusOK, map[string]any{
		"message":   "BrixFix building damage classification API",
		"endpoints": endpoints,
	})
}

// Health reports database reachability, model state and memory use. A
// missing model degrades the status but only a failing database ping
// returns 503.
func (c *Controller) Health(ctx echo.Context) error {
	reqCtx, cancel := context.WithTimeout(ctx.Request().Context(), requestTimeout)
	defer cancel()

	resp := HealthResponse{
		Status:     "healthy",
		Version:    c.build.GetVersion(),
		ModelReady: c.classifier.Ready(),
		Backend:    c.classifier.BackendName(),
		Database:   c.DS.Engine(),
		Uptime:     c.build.Uptime().Round(time.Second).String(),
	}

	if vm, err := c.memory(reqCtx); err == nil && vm != nil {
		resp.Memory = &MemoryInfo{
			Total:       bytes.Format(int64(vm.Total)),
			Available:   bytes.Format(int64(vm.Available)),
			UsedPercent: vm.UsedPercent,
		}
	} else if err != nil {
		GetLogger().Debug("memory stats unavailable", logger.Error(err))
	}

	if !resp.ModelReady {
		resp.Status = "degraded"
	}

	if err := c.DS.Ping(reqCtx); err != nil {
		GetLogger().Warn("health check database ping failed", logger.Error(err))
		resp.Status = "unhealthy"
		resp.Database = "unreachable"
		return ctx.JSON(http.StatusServiceUnavailable, resp)
	}

	return ctx.JSON(http.StatusOK, resp)
}
