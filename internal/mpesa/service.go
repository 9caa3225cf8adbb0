package mpesa

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"strconv"
	"strings"
	"time"

	"github.com/chamalink/backend/internal/config"
	"github.com/chamalink/backend/internal/models"
	"github.com/chamalink/backend/internal/services/chama"
	"github.com/chamalink/backend/internal/services/loan"
	"github.com/chamalink/backend/internal/services/notification"
	"github.com/chamalink/backend/internal/utils"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

const callbackPath = "/api/v1/webhooks/mpesa"

// Service handles M-Pesa STK push payments: initiation, and finalization
// through the gateway's asynchronous callback
type Service struct {
	db            *gorm.DB
	client        *Client
	cfg           config.MpesaConfig
	chamas        *chama.Service
	loans         *loan.Service
	notifications *notification.Service
}

// NewService creates a new M-Pesa payment service. Gateway credentials come
// from the injected configuration; when any credential is blank the service
// runs in development mode and never calls the gateway.
func NewService(db *gorm.DB, cfg config.MpesaConfig, chamas *chama.Service, loans *loan.Service, notifications *notification.Service) *Service {
	return &Service{
		db:            db,
		client:        NewClient(cfg),
		cfg:           cfg,
		chamas:        chamas,
		loans:         loans,
		notifications: notifications,
	}
}

// PaymentRequest represents a request to collect a payment via STK push
type PaymentRequest struct {
	Amount          float64                `json:"amount"`
	PhoneNumber     string                 `json:"phone_number"`
	TransactionType models.TransactionType `json:"transaction_type"`
	ChamaID         *uuid.UUID             `json:"chama_id,omitempty"`
	LoanID          *uuid.UUID             `json:"loan_id,omitempty"`
	Description     string                 `json:"description"`
}

// PaymentResponse represents the outcome of an accepted push request
type PaymentResponse struct {
	TransactionID     uuid.UUID `json:"transaction_id"`
	CheckoutRequestID string    `json:"checkout_request_id"`
	CustomerMessage   string    `json:"message,omitempty"`
	DevelopmentMode   bool      `json:"development_mode,omitempty"`
}

// InitiateSTKPush validates the request, asks the gateway to prompt the
// payer's phone, and records a pending transaction. All validation runs
// before any side effect; a gateway rejection leaves no record behind.
func (s *Service) InitiateSTKPush(ctx context.Context, userID uuid.UUID, req PaymentRequest) (*PaymentResponse, error) {
	if userID == uuid.Nil {
		return nil, ErrNoAuthenticatedUser
	}

	if req.Amount == 0 || req.PhoneNumber == "" || req.TransactionType == "" {
		return nil, validationErrorf("missing required fields: amount, phone_number, and transaction_type are required")
	}
	if req.Amount <= 0 {
		return nil, validationErrorf("invalid amount: must be a positive number")
	}
	if !ValidPhoneNumber(req.PhoneNumber) {
		return nil, validationErrorf("invalid phone number: please provide a valid Kenyan phone number")
	}
	if !models.ValidTransactionType(req.TransactionType) {
		return nil, validationErrorf("invalid transaction_type: %s", req.TransactionType)
	}

	phoneNumber := NormalizePhoneNumber(req.PhoneNumber)

	if !s.cfg.LiveMode() {
		return s.initiateDevelopmentPush(userID, phoneNumber, req)
	}

	accessToken, err := s.client.GetAccessToken(ctx)
	if err != nil {
		return nil, err
	}

	password, timestamp := stkPassword(s.cfg.ShortCode, s.cfg.Passkey, time.Now())
	reference := utils.GenerateReference("CL")

	stkResp, rawResp, err := s.client.STKPush(ctx, accessToken, STKPushRequest{
		BusinessShortCode: s.cfg.ShortCode,
		Password:          password,
		Timestamp:         timestamp,
		TransactionType:   "CustomerPayBillOnline",
		Amount:            req.Amount,
		PartyA:            phoneNumber,
		PartyB:            s.cfg.ShortCode,
		PhoneNumber:       phoneNumber,
		CallBackURL:       strings.TrimSuffix(s.cfg.CallbackBaseURL, "/") + callbackPath,
		AccountReference:  reference,
		TransactionDesc:   req.Description,
	})
	if err != nil {
		return nil, err
	}

	transaction := models.Transaction{
		UserID:            userID,
		Type:              req.TransactionType,
		Status:            models.TransactionStatusPending,
		Amount:            req.Amount,
		PhoneNumber:       phoneNumber,
		Reference:         reference,
		CheckoutRequestID: stkResp.CheckoutRequestID,
		Description:       req.Description,
		ChamaID:           req.ChamaID,
		LoanID:            req.LoanID,
		AuditTrail:        models.AuditTrail{STKResponse: rawResp},
	}
	if err := s.db.Create(&transaction).Error; err != nil {
		// The gateway already accepted the push; log the correlation id so
		// the payment can be reconciled manually
		log.Printf("transaction insert failed after push accepted, CheckoutRequestID=%s: %v", stkResp.CheckoutRequestID, err)
		return nil, &PersistenceError{Err: err}
	}

	return &PaymentResponse{
		TransactionID:     transaction.ID,
		CheckoutRequestID: stkResp.CheckoutRequestID,
		CustomerMessage:   stkResp.CustomerMessage,
	}, nil
}

// initiateDevelopmentPush records a mock push so the system runs end-to-end
// without live gateway access
func (s *Service) initiateDevelopmentPush(userID uuid.UUID, phoneNumber string, req PaymentRequest) (*PaymentResponse, error) {
	reference := utils.GenerateReference("DEV")
	checkoutRequestID := fmt.Sprintf("ws_CO_%d%s", time.Now().UnixMilli(), strings.ToUpper(uuid.New().String()[:6]))

	transaction := models.Transaction{
		UserID:            userID,
		Type:              req.TransactionType,
		Status:            models.TransactionStatusPending,
		Amount:            req.Amount,
		PhoneNumber:       phoneNumber,
		Reference:         reference,
		CheckoutRequestID: checkoutRequestID,
		Description:       req.Description,
		ChamaID:           req.ChamaID,
		LoanID:            req.LoanID,
		AuditTrail:        models.AuditTrail{DevelopmentMode: true},
	}
	if err := s.db.Create(&transaction).Error; err != nil {
		return nil, &PersistenceError{Err: err}
	}

	log.Printf("development mode: mock STK push recorded, transaction=%s checkout=%s", transaction.ID, checkoutRequestID)

	return &PaymentResponse{
		TransactionID:     transaction.ID,
		CheckoutRequestID: checkoutRequestID,
		CustomerMessage:   "STK push sent successfully (Development Mode)",
		DevelopmentMode:   true,
	}, nil
}

// ProcessCallback finalizes the transaction the gateway reports on. The
// status update is conditional on the row still being pending, so replayed
// callbacks for an already-terminal record are acknowledged without any
// mutation or duplicate notification.
func (s *Service) ProcessCallback(payload CallbackPayload) (*models.Transaction, error) {
	stk := payload.Body.StkCallback

	var transaction models.Transaction
	if err := s.db.Where("checkout_request_id = ?", stk.CheckoutRequestID).First(&transaction).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrTransactionNotFound
		}
		return nil, fmt.Errorf("failed to look up transaction: %w", err)
	}

	if transaction.Status != models.TransactionStatusPending {
		log.Printf("duplicate callback for terminal transaction %s (status=%s), ignoring", transaction.ID, transaction.Status)
		return &transaction, nil
	}

	rawCallback, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to serialize callback payload: %w", err)
	}

	now := time.Now()
	audit := transaction.AuditTrail
	audit.Callback = rawCallback

	updates := map[string]interface{}{
		"processed_at": now,
	}
	if stk.Succeeded() {
		updates["status"] = models.TransactionStatusCompleted
		if receipt := stk.CallbackMetadata.ReceiptNumber(); receipt != "" {
			updates["mpesa_receipt"] = receipt
			transaction.MpesaReceipt = receipt
		}
	} else {
		updates["status"] = models.TransactionStatusFailed
		audit.FailureReason = stk.ResultDesc
	}
	updates["audit_trail"] = audit

	result := s.db.Model(&models.Transaction{}).
		Where("id = ? AND status = ?", transaction.ID, models.TransactionStatusPending).
		Updates(updates)
	if result.Error != nil {
		return nil, fmt.Errorf("failed to update transaction: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		// Lost the race with a concurrent callback; reload and acknowledge
		if err := s.db.First(&transaction, "id = ?", transaction.ID).Error; err != nil {
			return nil, fmt.Errorf("failed to reload transaction: %w", err)
		}
		return &transaction, nil
	}

	transaction.Status = updates["status"].(models.TransactionStatus)
	transaction.ProcessedAt = &now
	transaction.AuditTrail = audit

	if stk.Succeeded() {
		s.applyCompleted(&transaction)
	}
	s.notifyOutcome(&transaction, stk)

	return &transaction, nil
}

// applyCompleted runs the domain follow-through for a completed payment.
// Failures here are logged rather than surfaced: the transaction is already
// terminal, and a gateway retry would be ignored by the pending-only guard.
func (s *Service) applyCompleted(transaction *models.Transaction) {
	var err error
	switch transaction.Type {
	case models.TransactionTypeContribution:
		err = s.chamas.RecordContribution(transaction)
	case models.TransactionTypeLoanPayment:
		err = s.loans.ApplyRepayment(transaction)
	case models.TransactionTypeLoanDisbursement:
		err = s.loans.MarkDisbursed(transaction)
	}
	if err != nil {
		log.Printf("follow-through failed for transaction %s (%s): %v", transaction.ID, transaction.Type, err)
	}
}

// notifyOutcome emits exactly one notification to the payment's owner
func (s *Service) notifyOutcome(transaction *models.Transaction, stk StkCallback) {
	amount := strconv.FormatFloat(transaction.Amount, 'f', -1, 64)

	var err error
	if stk.Succeeded() {
		_, err = s.notifications.Notify(transaction.UserID, "Payment Successful",
			fmt.Sprintf("Your payment of KSh %s has been processed successfully", amount),
			models.NotificationPaymentSuccess)
	} else {
		_, err = s.notifications.Notify(transaction.UserID, "Payment Failed",
			fmt.Sprintf("Your payment of KSh %s failed: %s", amount, stk.ResultDesc),
			models.NotificationPaymentFailed)
	}
	if err != nil {
		log.Printf("failed to notify user %s for transaction %s: %v", transaction.UserID, transaction.ID, err)
	}
}

// GetTransaction returns a transaction owned by the user
func (s *Service) GetTransaction(userID, transactionID uuid.UUID) (*models.Transaction, error) {
	var transaction models.Transaction
	if err := s.db.Where("id = ? AND user_id = ?", transactionID, userID).First(&transaction).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrTransactionNotFound
		}
		return nil, fmt.Errorf("failed to get transaction: %w", err)
	}
	return &transaction, nil
}

// ListTransactions returns the user's transactions, newest first
func (s *Service) ListTransactions(userID uuid.UUID) ([]models.Transaction, error) {
	var transactions []models.Transaction
	if err := s.db.Where("user_id = ?", userID).Order("created_at DESC").Find(&transactions).Error; err != nil {
		return nil, fmt.Errorf("failed to list transactions: %w", err)
	}
	return transactions, nil
}

// ListChamaTransactions returns a chama's transactions, newest first. The
// caller must be an active member of the chama.
func (s *Service) ListChamaTransactions(userID, chamaID uuid.UUID) ([]models.Transaction, error) {
	var membership int64
	if err := s.db.Model(&models.ChamaMember{}).
		Where("chama_id = ? AND user_id = ? AND is_active = ?", chamaID, userID, true).
		Count(&membership).Error; err != nil {
		return nil, fmt.Errorf("failed to check membership: %w", err)
	}
	if membership == 0 {
		return nil, chama.ErrNotMember
	}

	var transactions []models.Transaction
	if err := s.db.Where("chama_id = ?", chamaID).Order("created_at DESC").Find(&transactions).Error; err != nil {
		return nil, fmt.Errorf("failed to list chama transactions: %w", err)
	}
	return transactions, nil
}
