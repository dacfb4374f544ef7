package main

import (
	"database/sql"
	"time"

	"pbx-console/internal/httpapi"
	"pbx-console/internal/rbac"
	"pbx-console/pkg/utils"

	"github.com/gin-gonic/gin"
)

// registerRoutes wires HTTP routes to handlers.
// Keep this file free of business logic. Handlers should delegate to internal modules.
func registerRoutes(r *gin.Engine, h httpapi.Handlers, authMW gin.HandlerFunc, db *sql.DB) {
	// public
	r.GET("/healthz", func(c *gin.Context) {
		if err := utils.HealthCheck(c.Request.Context(), db, 2*time.Second); err != nil {
			c.JSON(503, gin.H{"status": "degraded", "error": "database unreachable"})
			return
		}
		c.JSON(200, gin.H{"status": "ok"})
	})

	// Token issuance stays outside the auth middleware.
	r.POST("/v1/auth/login", h.Login)

	v1 := r.Group("/v1")
	v1.Use(authMW)
	{
		v1.GET("/me", func(c *gin.Context) {
			c.JSON(200, gin.H{
				"user_id":      c.GetString("user_id"),
				"account_code": c.GetString("account_code"),
				"role":         c.GetString("role"),
				"extension":    c.GetString("extension"),
			})
		})

		// CALLS routes: the tenant-facing live view and commands.
		calls := v1.Group("/calls")
		calls.Use(rbac.RequireAccount())
		calls.Use(rbac.RequireAnyRole(rbac.RoleReseller, rbac.RoleAgent))
		calls.Use(rbac.RequireAgentExtension())
		{
			calls.GET("/active", h.ActiveCalls)
			calls.GET("/stats", h.CallStats)
			calls.GET("/commands", h.RecentCommands)
			calls.POST("/hangup", h.Hangup)
			calls.POST("/transfer", h.Transfer)
		}

		// STREAM route: WebSocket push of the same tenant-scoped view.
		v1.GET("/stream/calls",
			rbac.RequireAccount(),
			rbac.RequireAnyRole(rbac.RoleReseller, rbac.RoleAgent),
			h.StreamCalls)

		// ADMIN routes: cross-account visibility and poller control.
		admin := v1.Group("/admin")
		admin.Use(rbac.RequireAnyRole(rbac.RoleAdmin))
		{
			admin.GET("/calls/active", h.AdminActiveCalls)
			admin.GET("/calls/duplicates", h.AdminDuplicates)
			admin.GET("/poller", h.AdminPollerState)
			admin.POST("/poller/resume", h.AdminPollerResume)
			admin.POST("/poller/refresh", h.AdminPollerRefresh)
		}
	}
}
