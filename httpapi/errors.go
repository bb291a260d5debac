package httpapi

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"retouchflow/auth"
	"retouchflow/dispute"
	"retouchflow/job"
	"retouchflow/ledger"
	"retouchflow/traderoom"
)

// respondError translates domain sentinels into HTTP statuses. Anything
// unmapped is a 500 and gets logged with its real cause.
func (s *Server) respondError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, job.ErrJobNotFound),
		errors.Is(err, job.ErrEntryNotFound),
		errors.Is(err, traderoom.ErrJobNotFound),
		errors.Is(err, auth.ErrUserNotFound),
		errors.Is(err, dispute.ErrNoOpenDispute):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})

	case errors.Is(err, job.ErrRoleNotPermitted),
		errors.Is(err, traderoom.ErrRoleNotPermitted),
		errors.Is(err, dispute.ErrRoleNotPermitted):
		c.JSON(http.StatusForbidden, gin.H{"error": err.Error()})

	case errors.Is(err, ledger.ErrInsufficientFunds):
		c.JSON(http.StatusPaymentRequired, gin.H{"error": err.Error()})

	case errors.Is(err, job.ErrJobNotOpen),
		errors.Is(err, job.ErrAlreadyHired),
		errors.Is(err, job.ErrNotHired),
		errors.Is(err, job.ErrEntryUnavailable),
		errors.Is(err, job.ErrDuplicateEntry),
		errors.Is(err, job.ErrJobFrozen),
		errors.Is(err, job.ErrInvalidTransition),
		errors.Is(err, job.ErrRevisionLimitExceeded),
		errors.Is(err, job.ErrNoPendingProposal),
		errors.Is(err, traderoom.ErrJobFrozen),
		errors.Is(err, dispute.ErrDisputeAlreadyOpen),
		errors.Is(err, dispute.ErrNotDisputable),
		errors.Is(err, ledger.ErrNoSuchLock),
		errors.Is(err, ledger.ErrAmountMismatch):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})

	case errors.Is(err, job.ErrInvalidSpec),
		errors.Is(err, ledger.ErrInvalidAmount),
		errors.Is(err, ledger.ErrInvalidReason),
		errors.Is(err, traderoom.ErrUnknownKind),
		errors.Is(err, dispute.ErrInvalidAction):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})

	case errors.Is(err, auth.ErrDuplicateEmail):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})

	case errors.Is(err, auth.ErrInvalidCredentials):
		c.JSON(http.StatusUnauthorized, gin.H{"error": err.Error()})

	case errors.Is(err, auth.ErrWeakPassword):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})

	default:
		s.logger.Error("unhandled error", "path", c.FullPath(), "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal server error"})
	}
}
