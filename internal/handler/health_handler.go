package handler

import (
	"context"
	"net/http"
	"sort"
	"time"

	"github.com/labstack/echo/v4"
)

// HealthCheck probes one dependency.
type HealthCheck func(ctx context.Context) error

// HealthHandler reports uptime and the state of backing services.
type HealthHandler struct {
	startedAt time.Time
	checks    map[string]HealthCheck
}

// NewHealthHandler creates a health endpoint handler.
func NewHealthHandler(startedAt time.Time, checks map[string]HealthCheck) *HealthHandler {
	return &HealthHandler{startedAt: startedAt, checks: checks}
}

// HealthResponse is the body of GET /healthz.
type HealthResponse struct {
	Status   string            `json:"status"`
	Uptime   string            `json:"uptime"`
	Services map[string]string `json:"services,omitempty"`
}

// Check runs every probe and answers 503 if any of them fails.
func (h *HealthHandler) Check(c echo.Context) error {
	ctx, cancel := context.WithTimeout(c.Request().Context(), 2*time.Second)
	defer cancel()

	resp := HealthResponse{
		Status: "ok",
		Uptime: time.Since(h.startedAt).Truncate(time.Second).String(),
	}
	status := http.StatusOK

	names := make([]string, 0, len(h.checks))
	for name := range h.checks {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		if resp.Services == nil {
			resp.Services = make(map[string]string, len(names))
		}
		if err := h.checks[name](ctx); err != nil {
			resp.Services[name] = "unavailable"
			resp.Status = "degraded"
			status = http.StatusServiceUnavailable
			continue
		}
		resp.Services[name] = "ok"
	}

	return c.JSON(status, resp)
}
