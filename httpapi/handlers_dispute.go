package httpapi

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"retouchflow/dispute"
)

type openDisputeRequest struct {
	Reason string `json:"reason" binding:"required"`
}

func (s *Server) handleOpenDispute(c *gin.Context) {
	var req openDisputeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}

	cs, err := s.disputes.Open(c.Request.Context(), currentActor(c), c.Param("job_id"), req.Reason)
	if err != nil {
		s.respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"dispute": toCaseDTO(cs)})
}

type resolveDisputeRequest struct {
	Action         string `json:"action" binding:"required"`
	SellerShareBps int    `json:"seller_share_bps"`
}

func (s *Server) handleResolveDispute(c *gin.Context) {
	var req resolveDisputeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}

	cs, err := s.disputes.Resolve(c.Request.Context(), currentActor(c), dispute.ResolveParams{
		JobID:          c.Param("job_id"),
		Action:         dispute.Action(req.Action),
		SellerShareBps: req.SellerShareBps,
	})
	if err != nil {
		s.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"dispute": toCaseDTO(cs)})
}

func (s *Server) handleListDisputes(c *gin.Context) {
	cases, err := s.disputes.List(c.Request.Context(), c.Param("job_id"))
	if err != nil {
		s.respondError(c, err)
		return
	}
	out := make([]caseDTO, 0, len(cases))
	for _, cs := range cases {
		out = append(out, toCaseDTO(cs))
	}
	c.JSON(http.StatusOK, gin.H{"disputes": out})
}

type moderationFlagRequest struct {
	JobID      string `json:"job_id" binding:"required"`
	PayloadRef string `json:"payload_ref"`
}

// handleModerationFlag is the webhook for the external moderation and
// provenance checker. A flag forces the job into dispute.
func (s *Server) handleModerationFlag(c *gin.Context) {
	var req moderationFlagRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}

	cs, err := s.disputes.FlagDelivery(c.Request.Context(), req.JobID, req.PayloadRef)
	if err != nil {
		s.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"dispute": toCaseDTO(cs)})
}
