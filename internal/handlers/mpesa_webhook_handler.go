package handlers

import (
	"errors"
	"log"
	"net/http"

	"github.com/chamalink/backend/internal/mpesa"
	"github.com/gin-gonic/gin"
)

// MpesaWebhookHandler handles the gateway's asynchronous result callbacks.
// The endpoint is unauthenticated per the gateway's convention; the gateway
// retries on non-2xx responses.
type MpesaWebhookHandler struct {
	payments *mpesa.Service
}

// NewMpesaWebhookHandler creates a new M-Pesa webhook handler
func NewMpesaWebhookHandler(payments *mpesa.Service) *MpesaWebhookHandler {
	return &MpesaWebhookHandler{payments: payments}
}

// Callback finalizes the transaction the callback reports on
func (h *MpesaWebhookHandler) Callback(c *gin.Context) {
	var payload mpesa.CallbackPayload
	if err := c.ShouldBindJSON(&payload); err != nil {
		log.Printf("unparseable callback payload: %v", err)
		c.String(http.StatusInternalServerError, "Internal Server Error")
		return
	}

	transaction, err := h.payments.ProcessCallback(payload)
	if err != nil {
		if errors.Is(err, mpesa.ErrTransactionNotFound) {
			log.Printf("callback for unknown CheckoutRequestID %s", payload.Body.StkCallback.CheckoutRequestID)
			c.String(http.StatusNotFound, "Transaction not found")
			return
		}
		log.Printf("callback processing failed: %v", err)
		c.String(http.StatusInternalServerError, "Internal Server Error")
		return
	}

	log.Printf("callback processed: transaction=%s status=%s result_code=%d",
		transaction.ID, transaction.Status, payload.Body.StkCallback.ResultCode)
	c.String(http.StatusOK, "OK")
}
