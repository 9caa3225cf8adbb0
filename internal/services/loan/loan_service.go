package loan

import (
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/chamalink/backend/internal/models"
	"github.com/chamalink/backend/internal/services/notification"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

var (
	ErrLoanNotFound     = errors.New("loan not found")
	ErrNotChamaMember   = errors.New("borrower is not an active member of the chama")
	ErrNotChamaAdmin    = errors.New("only a chama admin can review loans")
	ErrLoanNotPending   = errors.New("loan is not pending review")
	ErrLoanNotApproved  = errors.New("loan has not been approved")
	ErrInsufficientPool = errors.New("chama pool cannot cover the requested amount")
)

// Service manages loans against a chama's pool
type Service struct {
	db            *gorm.DB
	notifications *notification.Service
}

// NewService creates a new loan service
func NewService(db *gorm.DB, notifications *notification.Service) *Service {
	return &Service{db: db, notifications: notifications}
}

// RequestLoanInput holds the fields for requesting a loan
type RequestLoanInput struct {
	ChamaID               uuid.UUID `json:"chama_id"`
	Amount                float64   `json:"amount"`
	RepaymentPeriodMonths int       `json:"repayment_period_months"`
	Purpose               string    `json:"purpose"`
}

// RequestLoan files a loan request for review by a chama admin. The interest
// rate comes from the chama; repayment is simple interest over the period.
func (s *Service) RequestLoan(borrowerID uuid.UUID, input RequestLoanInput) (*models.Loan, error) {
	if input.Amount <= 0 {
		return nil, fmt.Errorf("loan amount must be positive")
	}
	if input.RepaymentPeriodMonths <= 0 {
		return nil, fmt.Errorf("repayment period must be at least one month")
	}

	var chama models.Chama
	if err := s.db.First(&chama, "id = ?", input.ChamaID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("chama not found")
		}
		return nil, fmt.Errorf("failed to look up chama: %w", err)
	}

	var membership int64
	if err := s.db.Model(&models.ChamaMember{}).
		Where("chama_id = ? AND user_id = ? AND is_active = ?", input.ChamaID, borrowerID, true).
		Count(&membership).Error; err != nil {
		return nil, fmt.Errorf("failed to check membership: %w", err)
	}
	if membership == 0 {
		return nil, ErrNotChamaMember
	}

	if input.Amount > chama.CurrentAmount {
		return nil, ErrInsufficientPool
	}

	totalRepayable := input.Amount * (1 + chama.InterestRate/100)
	loan := models.Loan{
		ChamaID:               input.ChamaID,
		BorrowerID:            borrowerID,
		Amount:                input.Amount,
		InterestRate:          chama.InterestRate,
		RepaymentPeriodMonths: input.RepaymentPeriodMonths,
		MonthlyPayment:        totalRepayable / float64(input.RepaymentPeriodMonths),
		RemainingAmount:       totalRepayable,
		Purpose:               input.Purpose,
		Status:                models.LoanStatusPending,
	}

	if err := s.db.Create(&loan).Error; err != nil {
		return nil, fmt.Errorf("failed to create loan request: %w", err)
	}

	return &loan, nil
}

// ReviewLoan approves or rejects a pending loan. Only a chama admin may
// review; the borrower is notified of the outcome.
func (s *Service) ReviewLoan(reviewerID, loanID uuid.UUID, approve bool) (*models.Loan, error) {
	var loan models.Loan
	if err := s.db.First(&loan, "id = ?", loanID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrLoanNotFound
		}
		return nil, fmt.Errorf("failed to look up loan: %w", err)
	}

	if loan.Status != models.LoanStatusPending {
		return nil, ErrLoanNotPending
	}

	var adminCount int64
	if err := s.db.Model(&models.ChamaMember{}).
		Where("chama_id = ? AND user_id = ? AND role = ? AND is_active = ?",
			loan.ChamaID, reviewerID, models.ChamaRoleAdmin, true).
		Count(&adminCount).Error; err != nil {
		return nil, fmt.Errorf("failed to check reviewer role: %w", err)
	}
	if adminCount == 0 {
		return nil, ErrNotChamaAdmin
	}

	now := time.Now()
	if approve {
		loan.Status = models.LoanStatusApproved
		loan.ApprovedBy = &reviewerID
		loan.ApprovedAt = &now
	} else {
		loan.Status = models.LoanStatusRejected
	}

	if err := s.db.Save(&loan).Error; err != nil {
		return nil, fmt.Errorf("failed to update loan: %w", err)
	}

	title, message, notifType := "Loan Approved",
		fmt.Sprintf("Your loan request of KSh %.2f has been approved", loan.Amount),
		models.NotificationLoanApproved
	if !approve {
		title, message, notifType = "Loan Rejected",
			fmt.Sprintf("Your loan request of KSh %.2f was rejected", loan.Amount),
			models.NotificationLoanRejected
	}
	if _, err := s.notifications.Notify(loan.BorrowerID, title, message, notifType); err != nil {
		log.Printf("failed to notify borrower %s: %v", loan.BorrowerID, err)
	}

	return &loan, nil
}

// MarkDisbursed records a completed disbursement transaction against the
// loan and draws the principal out of the chama's pool
func (s *Service) MarkDisbursed(tx *models.Transaction) error {
	if tx.LoanID == nil {
		return nil
	}

	return s.db.Transaction(func(dbtx *gorm.DB) error {
		var loan models.Loan
		if err := dbtx.First(&loan, "id = ?", *tx.LoanID).Error; err != nil {
			return fmt.Errorf("failed to look up loan: %w", err)
		}
		if loan.Status != models.LoanStatusApproved {
			return ErrLoanNotApproved
		}

		now := time.Now()
		nextPayment := now.AddDate(0, 1, 0)
		if err := dbtx.Model(&loan).Updates(map[string]interface{}{
			"status":            models.LoanStatusDisbursed,
			"disbursed_at":      now,
			"next_payment_date": nextPayment,
		}).Error; err != nil {
			return fmt.Errorf("failed to mark loan disbursed: %w", err)
		}

		return dbtx.Model(&models.Chama{}).
			Where("id = ?", loan.ChamaID).
			Update("current_amount", gorm.Expr("current_amount - ?", loan.Amount)).Error
	})
}

// ApplyRepayment records a completed loan payment transaction, reducing the
// outstanding balance and completing the loan when it reaches zero
func (s *Service) ApplyRepayment(tx *models.Transaction) error {
	if tx.LoanID == nil {
		return nil
	}

	return s.db.Transaction(func(dbtx *gorm.DB) error {
		var loan models.Loan
		if err := dbtx.First(&loan, "id = ?", *tx.LoanID).Error; err != nil {
			return fmt.Errorf("failed to look up loan: %w", err)
		}

		loan.RemainingAmount -= tx.Amount
		if loan.RemainingAmount <= 0 {
			loan.RemainingAmount = 0
			loan.Status = models.LoanStatusCompleted
			now := time.Now()
			loan.CompletedAt = &now
			loan.NextPaymentDate = nil
		} else if loan.NextPaymentDate != nil {
			next := loan.NextPaymentDate.AddDate(0, 1, 0)
			loan.NextPaymentDate = &next
		}

		if err := dbtx.Save(&loan).Error; err != nil {
			return fmt.Errorf("failed to apply repayment: %w", err)
		}

		// Repayments flow back into the pool
		return dbtx.Model(&models.Chama{}).
			Where("id = ?", loan.ChamaID).
			Update("current_amount", gorm.Expr("current_amount + ?", tx.Amount)).Error
	})
}

// ListForUser returns all loans where the user is the borrower
func (s *Service) ListForUser(userID uuid.UUID) ([]models.Loan, error) {
	var loans []models.Loan
	if err := s.db.Where("borrower_id = ?", userID).Order("created_at DESC").Find(&loans).Error; err != nil {
		return nil, fmt.Errorf("failed to list loans: %w", err)
	}
	return loans, nil
}

// ListForChama returns all loans against a chama's pool
func (s *Service) ListForChama(chamaID uuid.UUID) ([]models.Loan, error) {
	var loans []models.Loan
	if err := s.db.Where("chama_id = ?", chamaID).Order("created_at DESC").Find(&loans).Error; err != nil {
		return nil, fmt.Errorf("failed to list loans: %w", err)
	}
	return loans, nil
}
