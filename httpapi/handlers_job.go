package httpapi

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"retouchflow/job"
)

func intQuery(c *gin.Context, key string) (int, bool) {
	raw := c.Query(key)
	if raw == "" {
		return 0, false
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, false
	}
	return n, true
}

type postJobRequest struct {
	Title string `json:"title" binding:"required"`
	Brief string `json:"brief"`
	Price int64  `json:"price" binding:"required"`
}

func (s *Server) handlePostJob(c *gin.Context) {
	var req postJobRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}

	j, err := s.jobs.PostJob(c.Request.Context(), currentActor(c), job.PostJobParams{
		Title: req.Title,
		Brief: req.Brief,
		Price: req.Price,
	})
	if err != nil {
		s.respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"job": toJobDTO(j)})
}

func (s *Server) handleGetJob(c *gin.Context) {
	j, err := s.reader.GetJob(c.Request.Context(), c.Param("job_id"))
	if err != nil {
		s.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"job": toJobDTO(j)})
}

func (s *Server) handleListJobs(c *gin.Context) {
	var filters job.ListFilters
	filters.Status = job.Status(c.Query("status"))
	filters.BuyerID = c.Query("buyer_id")
	if page, ok := intQuery(c, "page"); ok {
		filters.Page = page
	}
	if size, ok := intQuery(c, "page_size"); ok {
		filters.PageSize = size
	}

	jobs, err := s.reader.ListJobs(c.Request.Context(), filters)
	if err != nil {
		s.respondError(c, err)
		return
	}
	out := make([]jobDTO, 0, len(jobs))
	for _, j := range jobs {
		out = append(out, toJobDTO(j))
	}
	c.JSON(http.StatusOK, gin.H{"jobs": out})
}

type submitEntryRequest struct {
	Price int64  `json:"price" binding:"required"`
	Note  string `json:"note"`
}

func (s *Server) handleSubmitEntry(c *gin.Context) {
	var req submitEntryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}

	e, err := s.jobs.SubmitEntry(c.Request.Context(), currentActor(c), job.SubmitEntryParams{
		JobID: c.Param("job_id"),
		Price: req.Price,
		Note:  req.Note,
	})
	if err != nil {
		s.respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"entry": toEntryDTO(e)})
}

func (s *Server) handleListEntries(c *gin.Context) {
	entries, err := s.reader.ListEntries(c.Request.Context(), c.Param("job_id"))
	if err != nil {
		s.respondError(c, err)
		return
	}
	out := make([]entryDTO, 0, len(entries))
	for _, e := range entries {
		out = append(out, toEntryDTO(e))
	}
	c.JSON(http.StatusOK, gin.H{"entries": out})
}

func (s *Server) handleWithdrawEntry(c *gin.Context) {
	if err := s.jobs.WithdrawEntry(c.Request.Context(), currentActor(c), c.Param("entry_id")); err != nil {
		s.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "withdrawn"})
}

type hireRequest struct {
	EntryID string `json:"entry_id" binding:"required"`
}

func (s *Server) handleHireEntry(c *gin.Context) {
	var req hireRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}

	if err := s.jobs.HireEntry(c.Request.Context(), currentActor(c), c.Param("job_id"), req.EntryID); err != nil {
		s.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "hired"})
}

func (s *Server) handleConfirmHire(c *gin.Context) {
	if err := s.jobs.ConfirmHire(c.Request.Context(), currentActor(c), c.Param("job_id")); err != nil {
		s.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "in_trade"})
}

func (s *Server) handleAcceptPaidRevision(c *gin.Context) {
	if err := s.jobs.AcceptPaidRevision(c.Request.Context(), currentActor(c), c.Param("job_id")); err != nil {
		s.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "in_trade"})
}

func (s *Server) handleAcceptDelivery(c *gin.Context) {
	if err := s.jobs.AcceptDelivery(c.Request.Context(), currentActor(c), c.Param("job_id")); err != nil {
		s.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "completed"})
}

func (s *Server) handleCancel(c *gin.Context) {
	if err := s.jobs.Cancel(c.Request.Context(), currentActor(c), c.Param("job_id")); err != nil {
		s.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "cancelled"})
}
