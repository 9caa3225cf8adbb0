package models

import (
	"time"

	"github.com/google/uuid"
)

// LoanStatus represents the lifecycle state of a loan
type LoanStatus string

const (
	LoanStatusPending   LoanStatus = "pending"
	LoanStatusApproved  LoanStatus = "approved"
	LoanStatusDisbursed LoanStatus = "disbursed"
	LoanStatusCompleted LoanStatus = "completed"
	LoanStatusRejected  LoanStatus = "rejected"
)

// Loan represents a loan taken by a member against a chama's pool
type Loan struct {
	Base
	ChamaID               uuid.UUID  `gorm:"type:uuid;index;not null" json:"chama_id"`
	Chama                 Chama      `gorm:"foreignKey:ChamaID" json:"-"`
	BorrowerID            uuid.UUID  `gorm:"type:uuid;index;not null" json:"borrower_id"`
	Borrower              User       `gorm:"foreignKey:BorrowerID" json:"-"`
	Amount                float64    `gorm:"type:decimal(12,2);not null" json:"amount"`
	InterestRate          float64    `gorm:"type:decimal(5,2);not null" json:"interest_rate"`
	RepaymentPeriodMonths int        `gorm:"not null" json:"repayment_period_months"`
	MonthlyPayment        float64    `gorm:"type:decimal(12,2)" json:"monthly_payment"`
	RemainingAmount       float64    `gorm:"type:decimal(12,2)" json:"remaining_amount"`
	Purpose               string     `gorm:"type:text" json:"purpose"`
	Status                LoanStatus `gorm:"type:varchar(20);not null;default:'pending'" json:"status"`
	NextPaymentDate       *time.Time `json:"next_payment_date,omitempty"`
	ApprovedBy            *uuid.UUID `gorm:"type:uuid" json:"approved_by,omitempty"`
	ApprovedAt            *time.Time `json:"approved_at,omitempty"`
	DisbursedAt           *time.Time `json:"disbursed_at,omitempty"`
	CompletedAt           *time.Time `json:"completed_at,omitempty"`
}
