package models

import (
	"time"

	"github.com/google/uuid"
)

// ContributionFrequency represents how often a chama collects contributions
type ContributionFrequency string

const (
	FrequencyWeekly  ContributionFrequency = "weekly"
	FrequencyMonthly ContributionFrequency = "monthly"
)

// Chama represents a community savings group
type Chama struct {
	Base
	Name                  string                `gorm:"type:varchar(255);not null" json:"name"`
	Code                  string                `gorm:"type:varchar(50);uniqueIndex;not null" json:"code"`
	Description           string                `gorm:"type:text" json:"description"`
	CreatedBy             uuid.UUID             `gorm:"type:uuid;not null" json:"created_by"`
	Creator               User                  `gorm:"foreignKey:CreatedBy" json:"-"`
	ContributionAmount    float64               `gorm:"type:decimal(12,2);not null" json:"contribution_amount"`
	ContributionFrequency ContributionFrequency `gorm:"type:varchar(20);not null;default:'monthly'" json:"contribution_frequency"`
	NextContributionDate  time.Time             `json:"next_contribution_date"`
	TargetAmount          float64               `gorm:"type:decimal(12,2);default:0" json:"target_amount"`
	CurrentAmount         float64               `gorm:"type:decimal(12,2);default:0" json:"current_amount"`
	InterestRate          float64               `gorm:"type:decimal(5,2);default:0" json:"interest_rate"`
	MaxMembers            int                   `gorm:"default:0" json:"max_members"`
	IsActive              bool                  `gorm:"default:true" json:"is_active"`
	Members               []ChamaMember         `gorm:"foreignKey:ChamaID" json:"members,omitempty"`
}

// ChamaMemberRole represents a member's role within a chama
type ChamaMemberRole string

const (
	ChamaRoleAdmin  ChamaMemberRole = "admin"
	ChamaRoleMember ChamaMemberRole = "member"
)

// ChamaMember represents a user's membership in a chama
type ChamaMember struct {
	Base
	ChamaID              uuid.UUID       `gorm:"type:uuid;index:idx_chama_user,unique;not null" json:"chama_id"`
	UserID               uuid.UUID       `gorm:"type:uuid;index:idx_chama_user,unique;not null" json:"user_id"`
	User                 User            `gorm:"foreignKey:UserID" json:"-"`
	Role                 ChamaMemberRole `gorm:"type:varchar(20);not null;default:'member'" json:"role"`
	JoinedAt             time.Time       `json:"joined_at"`
	TotalContributions   float64         `gorm:"type:decimal(12,2);default:0" json:"total_contributions"`
	LastContributionDate *time.Time      `json:"last_contribution_date,omitempty"`
	IsActive             bool            `gorm:"default:true" json:"is_active"`
}
