package models

// User represents a registered member of the platform
type User struct {
	Base
	Email        string `gorm:"type:varchar(255);uniqueIndex;not null" json:"email"`
	PasswordHash string `gorm:"type:varchar(255);not null" json:"-"`
	FullName     string `gorm:"type:varchar(255)" json:"full_name"`
	PhoneNumber  string `gorm:"type:varchar(20)" json:"phone_number"`
	IsAdmin      bool   `gorm:"default:false" json:"is_admin"`
}
