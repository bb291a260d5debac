package httpapi

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"retouchflow/traderoom"
)

type postMessageRequest struct {
	Kind        string `json:"kind" binding:"required"`
	Body        string `json:"body"`
	PayloadRef  string `json:"payload_ref"`
	ExtraAmount int64  `json:"extra_amount"`
}

func (s *Server) handlePostMessage(c *gin.Context) {
	var req postMessageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}

	err := s.rooms.PostMessage(c.Request.Context(), currentActor(c), traderoom.PostMessageParams{
		JobID:       c.Param("job_id"),
		Kind:        traderoom.Kind(req.Kind),
		Body:        req.Body,
		PayloadRef:  req.PayloadRef,
		ExtraAmount: req.ExtraAmount,
	})
	if err != nil {
		s.respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"status": "posted"})
}

func (s *Server) handleListMessages(c *gin.Context) {
	msgs, err := s.rooms.ListMessages(c.Request.Context(), c.Param("job_id"))
	if err != nil {
		s.respondError(c, err)
		return
	}
	out := make([]messageDTO, 0, len(msgs))
	for _, m := range msgs {
		out = append(out, toMessageDTO(m))
	}
	c.JSON(http.StatusOK, gin.H{"messages": out})
}
