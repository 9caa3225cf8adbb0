package handlers

import (
	"errors"
	"net/http"

	"github.com/chamalink/backend/internal/middleware"
	"github.com/chamalink/backend/internal/services/chama"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// ChamaHandler handles savings-group requests
type ChamaHandler struct {
	chamas *chama.Service
}

// NewChamaHandler creates a new chama handler
func NewChamaHandler(chamas *chama.Service) *ChamaHandler {
	return &ChamaHandler{chamas: chamas}
}

// CreateChama creates a chama with the caller as admin
func (h *ChamaHandler) CreateChama(c *gin.Context) {
	userID, ok := middleware.UserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"success": false, "error": "no authenticated user"})
		return
	}

	var input chama.CreateChamaInput
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": err.Error()})
		return
	}

	created, err := h.chamas.CreateChama(userID, input)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": err.Error()})
		return
	}

	c.JSON(http.StatusCreated, gin.H{"success": true, "chama": created})
}

// JoinRequest represents a join-by-code request
type JoinRequest struct {
	Code string `json:"code" binding:"required"`
}

// JoinChama enrolls the caller in a chama by invite code
func (h *ChamaHandler) JoinChama(c *gin.Context) {
	userID, ok := middleware.UserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"success": false, "error": "no authenticated user"})
		return
	}

	var req JoinRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": err.Error()})
		return
	}

	joined, err := h.chamas.JoinChama(userID, req.Code)
	if err != nil {
		switch {
		case errors.Is(err, chama.ErrChamaNotFound):
			c.JSON(http.StatusNotFound, gin.H{"success": false, "error": err.Error()})
		case errors.Is(err, chama.ErrAlreadyMember), errors.Is(err, chama.ErrChamaFull):
			c.JSON(http.StatusConflict, gin.H{"success": false, "error": err.Error()})
		default:
			c.JSON(http.StatusInternalServerError, gin.H{"success": false, "error": err.Error()})
		}
		return
	}

	c.JSON(http.StatusOK, gin.H{"success": true, "chama": joined})
}

// ListChamas returns the chamas the caller belongs to
func (h *ChamaHandler) ListChamas(c *gin.Context) {
	userID, ok := middleware.UserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"success": false, "error": "no authenticated user"})
		return
	}

	chamas, err := h.chamas.ListForUser(userID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"success": false, "error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{"success": true, "chamas": chamas})
}

// GetChama returns a chama with its members
func (h *ChamaHandler) GetChama(c *gin.Context) {
	chamaID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": "invalid chama id"})
		return
	}

	found, err := h.chamas.GetChama(chamaID)
	if err != nil {
		if errors.Is(err, chama.ErrChamaNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"success": false, "error": err.Error()})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"success": false, "error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{"success": true, "chama": found})
}
