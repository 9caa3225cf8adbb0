package models

import (
	"database/sql/driver"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
)

// TransactionType represents the purpose of an M-Pesa transaction
type TransactionType string

const (
	TransactionTypeContribution     TransactionType = "contribution"
	TransactionTypeLoanPayment      TransactionType = "loan_payment"
	TransactionTypeLoanDisbursement TransactionType = "loan_disbursement"
)

// ValidTransactionType reports whether t is one of the known transaction types.
func ValidTransactionType(t TransactionType) bool {
	switch t {
	case TransactionTypeContribution, TransactionTypeLoanPayment, TransactionTypeLoanDisbursement:
		return true
	}
	return false
}

// TransactionStatus represents the lifecycle state of an M-Pesa transaction.
// A transaction is created pending and finalized exactly once by the gateway
// callback; completed and failed are terminal.
type TransactionStatus string

const (
	TransactionStatusPending   TransactionStatus = "pending"
	TransactionStatusCompleted TransactionStatus = "completed"
	TransactionStatusFailed    TransactionStatus = "failed"
)

// AuditTrail accumulates the raw gateway payloads attached to a transaction.
// The set of shapes is deliberately closed: the STK push response at
// initiation time, the callback payload at finalization time, and the
// failure reason reported by the gateway.
type AuditTrail struct {
	STKResponse     json.RawMessage `json:"stk_response,omitempty"`
	Callback        json.RawMessage `json:"mpesa_callback,omitempty"`
	FailureReason   string          `json:"failure_reason,omitempty"`
	DevelopmentMode bool            `json:"development_mode,omitempty"`
}

// Value implements the driver.Valuer interface for AuditTrail
func (a AuditTrail) Value() (driver.Value, error) {
	return json.Marshal(a)
}

// Scan implements the sql.Scanner interface for AuditTrail
func (a *AuditTrail) Scan(value interface{}) error {
	if value == nil {
		*a = AuditTrail{}
		return nil
	}

	var bytes []byte
	switch v := value.(type) {
	case []byte:
		bytes = v
	case string:
		bytes = []byte(v)
	default:
		return errors.New("unsupported type for AuditTrail scan")
	}

	return json.Unmarshal(bytes, a)
}

// Transaction represents one attempted M-Pesa STK push payment
type Transaction struct {
	Base
	UserID            uuid.UUID         `gorm:"type:uuid;index;not null" json:"user_id"`
	User              User              `gorm:"foreignKey:UserID" json:"-"`
	Type              TransactionType   `gorm:"type:varchar(20);not null" json:"type"`
	Status            TransactionStatus `gorm:"type:varchar(20);not null;default:'pending'" json:"status"`
	Amount            float64           `gorm:"type:decimal(12,2);not null" json:"amount"`
	PhoneNumber       string            `gorm:"type:varchar(20);not null" json:"phone_number"`
	Reference         string            `gorm:"type:varchar(100);uniqueIndex" json:"reference"`
	CheckoutRequestID string            `gorm:"type:varchar(100);uniqueIndex" json:"checkout_request_id"`
	MpesaReceipt      string            `gorm:"type:varchar(100)" json:"mpesa_receipt,omitempty"`
	Description       string            `gorm:"type:text" json:"description"`
	ChamaID           *uuid.UUID        `gorm:"type:uuid;index" json:"chama_id,omitempty"`
	Chama             *Chama            `gorm:"foreignKey:ChamaID" json:"-"`
	LoanID            *uuid.UUID        `gorm:"type:uuid;index" json:"loan_id,omitempty"`
	Loan              *Loan             `gorm:"foreignKey:LoanID" json:"-"`
	AuditTrail        AuditTrail        `gorm:"type:jsonb" json:"audit_trail"`
	ProcessedAt       *time.Time        `json:"processed_at,omitempty"`
}
