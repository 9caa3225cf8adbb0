package chama

import (
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/chamalink/backend/internal/models"
	"github.com/chamalink/backend/internal/services/notification"
	"github.com/google/uuid"
	"github.com/gosimple/slug"
	"gorm.io/gorm"
)

var (
	ErrChamaNotFound = errors.New("chama not found")
	ErrChamaFull     = errors.New("chama has reached its maximum number of members")
	ErrAlreadyMember = errors.New("user is already a member of this chama")
	ErrNotMember     = errors.New("user is not a member of this chama")
)

// Service manages savings groups and their membership
type Service struct {
	db            *gorm.DB
	notifications *notification.Service
}

// NewService creates a new chama service
func NewService(db *gorm.DB, notifications *notification.Service) *Service {
	return &Service{db: db, notifications: notifications}
}

// CreateChamaInput holds the fields for creating a chama
type CreateChamaInput struct {
	Name                  string                       `json:"name"`
	Description           string                       `json:"description"`
	ContributionAmount    float64                      `json:"contribution_amount"`
	ContributionFrequency models.ContributionFrequency `json:"contribution_frequency"`
	TargetAmount          float64                      `json:"target_amount"`
	InterestRate          float64                      `json:"interest_rate"`
	MaxMembers            int                          `json:"max_members"`
}

// CreateChama creates a chama and enrolls the creator as its admin
func (s *Service) CreateChama(creatorID uuid.UUID, input CreateChamaInput) (*models.Chama, error) {
	if strings.TrimSpace(input.Name) == "" {
		return nil, fmt.Errorf("chama name is required")
	}
	if input.ContributionAmount <= 0 {
		return nil, fmt.Errorf("contribution amount must be positive")
	}

	frequency := input.ContributionFrequency
	if frequency == "" {
		frequency = models.FrequencyMonthly
	}

	chama := models.Chama{
		Name:                  input.Name,
		Code:                  generateCode(input.Name),
		Description:           input.Description,
		CreatedBy:             creatorID,
		ContributionAmount:    input.ContributionAmount,
		ContributionFrequency: frequency,
		NextContributionDate:  nextContributionDate(time.Now(), frequency),
		TargetAmount:          input.TargetAmount,
		InterestRate:          input.InterestRate,
		MaxMembers:            input.MaxMembers,
		IsActive:              true,
	}

	err := s.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&chama).Error; err != nil {
			return err
		}
		member := models.ChamaMember{
			ChamaID:  chama.ID,
			UserID:   creatorID,
			Role:     models.ChamaRoleAdmin,
			JoinedAt: time.Now(),
			IsActive: true,
		}
		return tx.Create(&member).Error
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create chama: %w", err)
	}

	return &chama, nil
}

// JoinChama enrolls a user in the chama identified by its invite code
func (s *Service) JoinChama(userID uuid.UUID, code string) (*models.Chama, error) {
	var chama models.Chama
	if err := s.db.Where("code = ? AND is_active = ?", code, true).First(&chama).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrChamaNotFound
		}
		return nil, fmt.Errorf("failed to look up chama: %w", err)
	}

	var existing int64
	if err := s.db.Model(&models.ChamaMember{}).
		Where("chama_id = ? AND user_id = ?", chama.ID, userID).
		Count(&existing).Error; err != nil {
		return nil, fmt.Errorf("failed to check membership: %w", err)
	}
	if existing > 0 {
		return nil, ErrAlreadyMember
	}

	if chama.MaxMembers > 0 {
		var memberCount int64
		if err := s.db.Model(&models.ChamaMember{}).
			Where("chama_id = ? AND is_active = ?", chama.ID, true).
			Count(&memberCount).Error; err != nil {
			return nil, fmt.Errorf("failed to count members: %w", err)
		}
		if memberCount >= int64(chama.MaxMembers) {
			return nil, ErrChamaFull
		}
	}

	member := models.ChamaMember{
		ChamaID:  chama.ID,
		UserID:   userID,
		Role:     models.ChamaRoleMember,
		JoinedAt: time.Now(),
		IsActive: true,
	}
	if err := s.db.Create(&member).Error; err != nil {
		return nil, fmt.Errorf("failed to join chama: %w", err)
	}

	if _, err := s.notifications.Notify(chama.CreatedBy, "New Member",
		fmt.Sprintf("A new member joined %s", chama.Name), models.NotificationMemberJoined); err != nil {
		// Membership already exists; a missed notification does not fail the join
		log.Printf("failed to notify chama creator %s: %v", chama.CreatedBy, err)
	}

	return &chama, nil
}

// ListForUser returns all chamas the user belongs to
func (s *Service) ListForUser(userID uuid.UUID) ([]models.Chama, error) {
	var chamas []models.Chama
	err := s.db.
		Joins("JOIN chama_members ON chama_members.chama_id = chamas.id").
		Where("chama_members.user_id = ? AND chama_members.is_active = ?", userID, true).
		Find(&chamas).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list chamas: %w", err)
	}
	return chamas, nil
}

// GetChama returns a chama with its members preloaded
func (s *Service) GetChama(chamaID uuid.UUID) (*models.Chama, error) {
	var chama models.Chama
	if err := s.db.Preload("Members").First(&chama, "id = ?", chamaID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrChamaNotFound
		}
		return nil, fmt.Errorf("failed to get chama: %w", err)
	}
	return &chama, nil
}

// IsAdmin reports whether the user is an admin of the chama
func (s *Service) IsAdmin(chamaID, userID uuid.UUID) (bool, error) {
	var count int64
	err := s.db.Model(&models.ChamaMember{}).
		Where("chama_id = ? AND user_id = ? AND role = ? AND is_active = ?",
			chamaID, userID, models.ChamaRoleAdmin, true).
		Count(&count).Error
	return count > 0, err
}

// RecordContribution applies a completed contribution transaction to the
// chama's pool and the member's running totals. Runs in the callback
// finalization path, after the transaction row is already terminal.
func (s *Service) RecordContribution(tx *models.Transaction) error {
	if tx.ChamaID == nil {
		return nil
	}

	return s.db.Transaction(func(dbtx *gorm.DB) error {
		if err := dbtx.Model(&models.Chama{}).
			Where("id = ?", *tx.ChamaID).
			Update("current_amount", gorm.Expr("current_amount + ?", tx.Amount)).Error; err != nil {
			return fmt.Errorf("failed to update chama pool: %w", err)
		}

		result := dbtx.Model(&models.ChamaMember{}).
			Where("chama_id = ? AND user_id = ?", *tx.ChamaID, tx.UserID).
			Updates(map[string]interface{}{
				"total_contributions":    gorm.Expr("total_contributions + ?", tx.Amount),
				"last_contribution_date": time.Now(),
			})
		if result.Error != nil {
			return fmt.Errorf("failed to update member totals: %w", result.Error)
		}
		if result.RowsAffected == 0 {
			return ErrNotMember
		}
		return nil
	})
}

// generateCode derives a unique invite code from the chama name
func generateCode(name string) string {
	base := strings.ToUpper(slug.Make(name))
	if len(base) > 12 {
		base = base[:12]
	}
	suffix := strings.ToUpper(uuid.New().String()[:4])
	return base + "-" + suffix
}

// nextContributionDate returns the first contribution due date after from
func nextContributionDate(from time.Time, frequency models.ContributionFrequency) time.Time {
	if frequency == models.FrequencyWeekly {
		return from.AddDate(0, 0, 7)
	}
	return from.AddDate(0, 1, 0)
}
