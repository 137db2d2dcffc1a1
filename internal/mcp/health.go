package mcp

import (
	"context"
	"time"
)

// HealthStatus represents the health check result
type HealthStatus struct {
	Status    string    `json:"status"`
	Timestamp time.Time `json:"timestamp"`
	SessionID string    `json:"session_id,omitempty"`
	Uptime    string    `json:"uptime,omitempty"`
	Checks    []Check   `json:"checks,omitempty"`
}

// Check represents an individual health check
type Check struct {
	Name   string `json:"name"`
	Status string `json:"status"`
	Error  string `json:"error,omitempty"`
}

// HealthCheck performs a health check on the MCP server
func (s *Server) HealthCheck(ctx context.Context) *HealthStatus {
	status := &HealthStatus{
		Status:    "healthy",
		Timestamp: time.Now(),
		SessionID: s.sessionID,
		Uptime:    time.Since(s.startTime).Round(time.Second).String(),
		Checks:    []Check{},
	}

	storageCheck := Check{Name: "storage", Status: "ok"}
	if s.store == nil {
		storageCheck.Status = "failed"
		storageCheck.Error = "storage not initialized"
		status.Status = "unhealthy"
	} else {
		pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		defer cancel()
		if err := s.store.Ping(pingCtx); err != nil {
			storageCheck.Status = "failed"
			storageCheck.Error = err.Error()
			status.Status = "unhealthy"
		}
	}
	status.Checks = append(status.Checks, storageCheck)

	auditCheck := Check{Name: "audit_logger", Status: "ok"}
	if s.audit == nil {
		auditCheck.Status = "warning"
		auditCheck.Error = "audit logging disabled"
		if status.Status == "healthy" {
			status.Status = "degraded"
		}
	}
	status.Checks = append(status.Checks, auditCheck)

	rateCheck := Check{Name: "rate_limiter", Status: "ok"}
	if !s.rateLimiter.Available() {
		rateCheck.Status = "warning"
		rateCheck.Error = "rate limit reached"
		if status.Status == "healthy" {
			status.Status = "degraded"
		}
	}
	status.Checks = append(status.Checks, rateCheck)

	return status
}
