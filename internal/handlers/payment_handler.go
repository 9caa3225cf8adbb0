package handlers

import (
	"errors"
	"net/http"

	"github.com/chamalink/backend/internal/middleware"
	"github.com/chamalink/backend/internal/mpesa"
	"github.com/chamalink/backend/internal/services/chama"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// PaymentHandler handles M-Pesa payment requests
type PaymentHandler struct {
	payments *mpesa.Service
}

// NewPaymentHandler creates a new payment handler
func NewPaymentHandler(payments *mpesa.Service) *PaymentHandler {
	return &PaymentHandler{payments: payments}
}

// InitiatePayment requests an STK push prompt on the caller's phone
func (h *PaymentHandler) InitiatePayment(c *gin.Context) {
	userID, ok := middleware.UserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"success": false, "error": "no authenticated user"})
		return
	}

	var req mpesa.PaymentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": "Invalid JSON in request body"})
		return
	}

	resp, err := h.payments.InitiateSTKPush(c.Request.Context(), userID, req)
	if err != nil {
		status := http.StatusBadRequest
		if errors.Is(err, mpesa.ErrNoAuthenticatedUser) {
			status = http.StatusUnauthorized
		}
		c.JSON(status, gin.H{"success": false, "error": err.Error()})
		return
	}

	body := gin.H{
		"success":             true,
		"message":             "STK push sent successfully",
		"transaction_id":      resp.TransactionID,
		"checkout_request_id": resp.CheckoutRequestID,
	}
	if resp.DevelopmentMode {
		body["message"] = resp.CustomerMessage
		body["development_mode"] = true
	}
	c.JSON(http.StatusOK, body)
}

// GetTransaction returns one of the caller's transactions
func (h *PaymentHandler) GetTransaction(c *gin.Context) {
	userID, ok := middleware.UserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"success": false, "error": "no authenticated user"})
		return
	}

	transactionID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": "invalid transaction id"})
		return
	}

	transaction, err := h.payments.GetTransaction(userID, transactionID)
	if err != nil {
		if errors.Is(err, mpesa.ErrTransactionNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"success": false, "error": "transaction not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"success": false, "error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{"success": true, "transaction": transaction})
}

// ListChamaTransactions returns a chama's transactions to one of its members
func (h *PaymentHandler) ListChamaTransactions(c *gin.Context) {
	userID, ok := middleware.UserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"success": false, "error": "no authenticated user"})
		return
	}

	chamaID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": "invalid chama id"})
		return
	}

	transactions, err := h.payments.ListChamaTransactions(userID, chamaID)
	if err != nil {
		if errors.Is(err, chama.ErrNotMember) {
			c.JSON(http.StatusForbidden, gin.H{"success": false, "error": err.Error()})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"success": false, "error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{"success": true, "transactions": transactions})
}

// ListTransactions returns the caller's transactions
func (h *PaymentHandler) ListTransactions(c *gin.Context) {
	userID, ok := middleware.UserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"success": false, "error": "no authenticated user"})
		return
	}

	transactions, err := h.payments.ListTransactions(userID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"success": false, "error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{"success": true, "transactions": transactions})
}
