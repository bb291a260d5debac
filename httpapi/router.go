package httpapi

import (
	"github.com/gin-gonic/gin"

	"retouchflow/auth"
)

// Router builds the gin engine with all routes mounted.
func (s *Server) Router() *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery(), requestID(), s.requestLogger())

	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(200, gin.H{"status": "ok"})
	})

	v1 := r.Group("/api/v1")

	v1.POST("/auth/register", s.handleRegister)
	v1.POST("/auth/login", s.handleLogin)

	authed := v1.Group("")
	authed.Use(s.requireAuth())

	authed.GET("/jobs", s.handleListJobs)
	authed.POST("/jobs", s.handlePostJob)
	authed.GET("/jobs/:job_id", s.handleGetJob)
	authed.POST("/jobs/:job_id/entries", s.handleSubmitEntry)
	authed.GET("/jobs/:job_id/entries", s.handleListEntries)
	authed.POST("/entries/:entry_id/withdraw", s.handleWithdrawEntry)

	authed.POST("/jobs/:job_id/hire", s.handleHireEntry)
	authed.POST("/jobs/:job_id/confirm", s.handleConfirmHire)
	authed.POST("/jobs/:job_id/paid-revision/accept", s.handleAcceptPaidRevision)
	authed.POST("/jobs/:job_id/accept", s.handleAcceptDelivery)
	authed.POST("/jobs/:job_id/cancel", s.handleCancel)

	authed.GET("/jobs/:job_id/messages", s.handleListMessages)
	authed.POST("/jobs/:job_id/messages", s.handlePostMessage)

	authed.GET("/jobs/:job_id/disputes", s.handleListDisputes)
	authed.POST("/jobs/:job_id/disputes", s.handleOpenDispute)
	authed.POST("/jobs/:job_id/disputes/resolve", requireRole(auth.RoleSupport), s.handleResolveDispute)

	authed.GET("/wallet/balance", s.handleBalance)
	authed.GET("/wallet/transactions", s.handleListTransactions)
	authed.POST("/wallet/credits", requireRole(auth.RoleSupport), s.handleApplyCredit)

	authed.POST("/moderation/flags", requireRole(auth.RoleSupport), s.handleModerationFlag)

	return r
}
