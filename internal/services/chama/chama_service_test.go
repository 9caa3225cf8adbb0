package chama

import (
	"fmt"
	"strings"
	"testing"

	"github.com/chamalink/backend/internal/models"
	"github.com/chamalink/backend/internal/services/notification"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func setupService(t *testing.T) (*Service, *gorm.DB) {
	t.Helper()

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.New().String())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(
		&models.User{},
		&models.Chama{},
		&models.ChamaMember{},
		&models.Notification{},
	))
	t.Cleanup(func() {
		sqlDB, err := db.DB()
		if err == nil {
			sqlDB.Close()
		}
	})

	return NewService(db, notification.NewService(db)), db
}

func createUser(t *testing.T, db *gorm.DB, email string) *models.User {
	t.Helper()

	user := &models.User{Email: email, PasswordHash: "x", FullName: "Test User", PhoneNumber: "254712345678"}
	require.NoError(t, db.Create(user).Error)
	return user
}

func TestCreateChama(t *testing.T) {
	service, db := setupService(t)
	creator := createUser(t, db, "creator@example.com")

	created, err := service.CreateChama(creator.ID, CreateChamaInput{
		Name:                  "Umoja Savings Group",
		ContributionAmount:    500,
		ContributionFrequency: models.FrequencyWeekly,
		MaxMembers:            5,
	})
	require.NoError(t, err)

	assert.True(t, created.IsActive)
	assert.True(t, strings.HasPrefix(created.Code, "UMOJA-SAVING"), "code %q", created.Code)
	assert.False(t, created.NextContributionDate.IsZero())

	// the creator is enrolled as admin
	var member models.ChamaMember
	require.NoError(t, db.Where("chama_id = ? AND user_id = ?", created.ID, creator.ID).First(&member).Error)
	assert.Equal(t, models.ChamaRoleAdmin, member.Role)

	isAdmin, err := service.IsAdmin(created.ID, creator.ID)
	require.NoError(t, err)
	assert.True(t, isAdmin)
}

func TestCreateChamaValidation(t *testing.T) {
	service, db := setupService(t)
	creator := createUser(t, db, "creator@example.com")

	_, err := service.CreateChama(creator.ID, CreateChamaInput{Name: "  ", ContributionAmount: 500})
	assert.Error(t, err)

	_, err = service.CreateChama(creator.ID, CreateChamaInput{Name: "No Amount"})
	assert.Error(t, err)
}

func TestJoinChama(t *testing.T) {
	service, db := setupService(t)
	creator := createUser(t, db, "creator@example.com")
	joiner := createUser(t, db, "joiner@example.com")

	created, err := service.CreateChama(creator.ID, CreateChamaInput{
		Name:               "Harambee Circle",
		ContributionAmount: 1000,
		MaxMembers:         2,
	})
	require.NoError(t, err)

	joined, err := service.JoinChama(joiner.ID, created.Code)
	require.NoError(t, err)
	assert.Equal(t, created.ID, joined.ID)

	// joining twice is rejected
	_, err = service.JoinChama(joiner.ID, created.Code)
	assert.ErrorIs(t, err, ErrAlreadyMember)

	// the chama is now full
	third := createUser(t, db, "third@example.com")
	_, err = service.JoinChama(third.ID, created.Code)
	assert.ErrorIs(t, err, ErrChamaFull)

	// unknown invite code
	_, err = service.JoinChama(third.ID, "NOSUCH-CODE")
	assert.ErrorIs(t, err, ErrChamaNotFound)

	// the creator is told about the new member
	var notifications []models.Notification
	require.NoError(t, db.Where("user_id = ?", creator.ID).Find(&notifications).Error)
	require.Len(t, notifications, 1)
	assert.Equal(t, models.NotificationMemberJoined, notifications[0].Type)
}

func TestListForUser(t *testing.T) {
	service, db := setupService(t)
	creator := createUser(t, db, "creator@example.com")
	other := createUser(t, db, "other@example.com")

	_, err := service.CreateChama(creator.ID, CreateChamaInput{Name: "First", ContributionAmount: 100})
	require.NoError(t, err)
	_, err = service.CreateChama(creator.ID, CreateChamaInput{Name: "Second", ContributionAmount: 100})
	require.NoError(t, err)

	chamas, err := service.ListForUser(creator.ID)
	require.NoError(t, err)
	assert.Len(t, chamas, 2)

	chamas, err = service.ListForUser(other.ID)
	require.NoError(t, err)
	assert.Empty(t, chamas)
}

func TestRecordContribution(t *testing.T) {
	service, db := setupService(t)
	creator := createUser(t, db, "creator@example.com")

	created, err := service.CreateChama(creator.ID, CreateChamaInput{
		Name:               "Pamoja Fund",
		ContributionAmount: 500,
	})
	require.NoError(t, err)

	tx := &models.Transaction{
		UserID:  creator.ID,
		Type:    models.TransactionTypeContribution,
		Amount:  500,
		ChamaID: &created.ID,
	}
	require.NoError(t, service.RecordContribution(tx))
	require.NoError(t, service.RecordContribution(tx))

	var stored models.Chama
	require.NoError(t, db.First(&stored, "id = ?", created.ID).Error)
	assert.Equal(t, 1000.0, stored.CurrentAmount)

	var member models.ChamaMember
	require.NoError(t, db.Where("chama_id = ? AND user_id = ?", created.ID, creator.ID).First(&member).Error)
	assert.Equal(t, 1000.0, member.TotalContributions)
	require.NotNil(t, member.LastContributionDate)

	// a contribution from a non-member rolls back entirely
	outsider := createUser(t, db, "outsider@example.com")
	tx.UserID = outsider.ID
	assert.ErrorIs(t, service.RecordContribution(tx), ErrNotMember)

	require.NoError(t, db.First(&stored, "id = ?", created.ID).Error)
	assert.Equal(t, 1000.0, stored.CurrentAmount)
}
