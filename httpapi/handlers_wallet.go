package httpapi

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"retouchflow/ledger"
)

func (s *Server) handleBalance(c *gin.Context) {
	actor := currentActor(c)
	balance, err := s.wallet.BalanceOf(c.Request.Context(), actor.ID)
	if err != nil {
		s.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"user_id": actor.ID, "balance": balance})
}

func (s *Server) handleListTransactions(c *gin.Context) {
	actor := currentActor(c)
	txs, err := s.wallet.ListTransactions(c.Request.Context(), actor.ID)
	if err != nil {
		s.respondError(c, err)
		return
	}
	out := make([]transactionDTO, 0, len(txs))
	for _, t := range txs {
		out = append(out, toTransactionDTO(t))
	}
	c.JSON(http.StatusOK, gin.H{"transactions": out})
}

type applyCreditRequest struct {
	UserID string `json:"user_id" binding:"required"`
	Amount int64  `json:"amount" binding:"required"`
	Reason string `json:"reason"`
}

// handleApplyCredit is the entry point for the external coin-purchase
// collaborator. Support credentials guard it.
func (s *Server) handleApplyCredit(c *gin.Context) {
	var req applyCreditRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}

	if err := s.wallet.ApplyCredit(c.Request.Context(), req.UserID, req.Amount, ledger.Reason(req.Reason)); err != nil {
		s.respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"status": "credited"})
}
