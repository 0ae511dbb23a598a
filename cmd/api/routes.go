package main

import (
	"database/sql"
	"time"

	"github.com/gin-gonic/gin"

	"listenline/internal/calls"
	"listenline/internal/httpapi"
	"listenline/internal/ledger"
	"listenline/internal/presence"
	"listenline/internal/reporting"
	"listenline/pkg/utils"
)

func handlers(callSvc *calls.Service, ledgerSvc *ledger.Service, presenceSvc *presence.Service, reportingSvc *reporting.Service) httpapi.Handlers {
	return httpapi.Handlers{
		Calls:     callSvc,
		Ledger:    ledgerSvc,
		Presence:  presenceSvc,
		Reporting: reportingSvc,
	}
}

// registerRoutes wires HTTP routes to handlers.
// Keep this file free of business logic. Handlers should delegate to internal modules.
func registerRoutes(r *gin.Engine, db *sql.DB, h httpapi.Handlers) {
	// public
	r.GET("/healthz", func(c *gin.Context) {
		if err := utils.HealthCheck(c.Request.Context(), db, 2*time.Second); err != nil {
			c.JSON(503, gin.H{"status": "degraded", "error": err.Error()})
			return
		}
		c.JSON(200, gin.H{"status": "ok"})
	})

	v1 := r.Group("/v1")
	{
		// CALLS routes
		callGroup := v1.Group("/calls")
		{
			callGroup.POST("/start", h.StartCall)
			callGroup.POST("/:call_id/end", h.EndCall)
			callGroup.GET("/:call_id", h.GetCall)
		}

		// PRESENCE routes
		presenceGroup := v1.Group("/presence")
		{
			presenceGroup.POST("/heartbeat", h.Heartbeat)
			presenceGroup.GET("/:user_id", h.GetPresence)
		}

		// WALLET routes
		walletGroup := v1.Group("/wallet")
		{
			walletGroup.POST("/recharge", h.Recharge)
			walletGroup.GET("/balance", h.GetBalance)
		}

		// REPORTING routes
		reportGroup := v1.Group("/reports")
		{
			reportGroup.GET("/calls", h.CallHistory)
			reportGroup.GET("/earnings", h.EarningsSummary)
			reportGroup.GET("/spend", h.SpendSummary)
		}
	}
}
