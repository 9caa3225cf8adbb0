package handlers

import (
	"errors"
	"net/http"

	"github.com/chamalink/backend/internal/middleware"
	"github.com/chamalink/backend/internal/services/loan"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// LoanHandler handles loan requests
type LoanHandler struct {
	loans *loan.Service
}

// NewLoanHandler creates a new loan handler
func NewLoanHandler(loans *loan.Service) *LoanHandler {
	return &LoanHandler{loans: loans}
}

// RequestLoan files a loan request against a chama's pool
func (h *LoanHandler) RequestLoan(c *gin.Context) {
	userID, ok := middleware.UserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"success": false, "error": "no authenticated user"})
		return
	}

	var input loan.RequestLoanInput
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": err.Error()})
		return
	}

	created, err := h.loans.RequestLoan(userID, input)
	if err != nil {
		status := http.StatusBadRequest
		if errors.Is(err, loan.ErrNotChamaMember) {
			status = http.StatusForbidden
		}
		c.JSON(status, gin.H{"success": false, "error": err.Error()})
		return
	}

	c.JSON(http.StatusCreated, gin.H{"success": true, "loan": created})
}

// ReviewRequest represents an approve/reject decision
type ReviewRequest struct {
	Approve bool `json:"approve"`
}

// ReviewLoan approves or rejects a pending loan
func (h *LoanHandler) ReviewLoan(c *gin.Context) {
	userID, ok := middleware.UserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"success": false, "error": "no authenticated user"})
		return
	}

	loanID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": "invalid loan id"})
		return
	}

	var req ReviewRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": err.Error()})
		return
	}

	reviewed, err := h.loans.ReviewLoan(userID, loanID, req.Approve)
	if err != nil {
		switch {
		case errors.Is(err, loan.ErrLoanNotFound):
			c.JSON(http.StatusNotFound, gin.H{"success": false, "error": err.Error()})
		case errors.Is(err, loan.ErrNotChamaAdmin):
			c.JSON(http.StatusForbidden, gin.H{"success": false, "error": err.Error()})
		case errors.Is(err, loan.ErrLoanNotPending):
			c.JSON(http.StatusConflict, gin.H{"success": false, "error": err.Error()})
		default:
			c.JSON(http.StatusInternalServerError, gin.H{"success": false, "error": err.Error()})
		}
		return
	}

	c.JSON(http.StatusOK, gin.H{"success": true, "loan": reviewed})
}

// ListLoans returns the caller's loans
func (h *LoanHandler) ListLoans(c *gin.Context) {
	userID, ok := middleware.UserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"success": false, "error": "no authenticated user"})
		return
	}

	loans, err := h.loans.ListForUser(userID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"success": false, "error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{"success": true, "loans": loans})
}

// ListChamaLoans returns all loans against a chama
func (h *LoanHandler) ListChamaLoans(c *gin.Context) {
	chamaID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": "invalid chama id"})
		return
	}

	loans, err := h.loans.ListForChama(chamaID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"success": false, "error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{"success": true, "loans": loans})
}
