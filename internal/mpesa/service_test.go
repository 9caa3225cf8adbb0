package mpesa

import (
	"context"
	"fmt"
	"testing"

	"github.com/chamalink/backend/internal/config"
	"github.com/chamalink/backend/internal/models"
	"github.com/chamalink/backend/internal/services/chama"
	"github.com/chamalink/backend/internal/services/loan"
	"github.com/chamalink/backend/internal/services/notification"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func setupTestDB(t *testing.T) *gorm.DB {
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
		&models.Transaction{},
		&models.Loan{},
		&models.Notification{},
	))

	t.Cleanup(func() {
		sqlDB, err := db.DB()
		if err == nil {
			sqlDB.Close()
		}
	})

	return db
}

// setupService wires a payment service against an in-memory database with
// blank gateway credentials, so pushes take the development path
func setupService(t *testing.T) (*Service, *gorm.DB) {
	t.Helper()

	db := setupTestDB(t)
	notifications := notification.NewService(db)
	chamas := chama.NewService(db, notifications)
	loans := loan.NewService(db, notifications)

	service := NewService(db, config.MpesaConfig{}, chamas, loans, notifications)
	return service, db
}

func createTestUser(t *testing.T, db *gorm.DB) *models.User {
	t.Helper()

	user := &models.User{
		Email:        uuid.New().String() + "@example.com",
		PasswordHash: "x",
		FullName:     "Test User",
		PhoneNumber:  "254712345678",
	}
	require.NoError(t, db.Create(user).Error)
	return user
}

func TestInitiateSTKPushDevelopmentMode(t *testing.T) {
	service, db := setupService(t)
	user := createTestUser(t, db)

	resp, err := service.InitiateSTKPush(context.Background(), user.ID, PaymentRequest{
		Amount:          500,
		PhoneNumber:     "0712345678",
		TransactionType: models.TransactionTypeContribution,
	})
	require.NoError(t, err)

	assert.True(t, resp.DevelopmentMode)
	assert.NotEqual(t, uuid.Nil, resp.TransactionID)
	assert.Contains(t, resp.CheckoutRequestID, "ws_CO_")

	var transaction models.Transaction
	require.NoError(t, db.First(&transaction, "id = ?", resp.TransactionID).Error)
	assert.Equal(t, models.TransactionStatusPending, transaction.Status)
	assert.Equal(t, "254712345678", transaction.PhoneNumber)
	assert.Equal(t, 500.0, transaction.Amount)
	assert.True(t, transaction.AuditTrail.DevelopmentMode)
	assert.Contains(t, transaction.Reference, "DEV")
}

func TestInitiateSTKPushValidation(t *testing.T) {
	service, db := setupService(t)
	user := createTestUser(t, db)

	tests := []struct {
		name    string
		req     PaymentRequest
		wantErr string
	}{
		{
			name:    "missing fields",
			req:     PaymentRequest{Amount: 500},
			wantErr: "missing required fields",
		},
		{
			name: "negative amount",
			req: PaymentRequest{
				Amount:          -10,
				PhoneNumber:     "0712345678",
				TransactionType: models.TransactionTypeContribution,
			},
			wantErr: "invalid amount",
		},
		{
			name: "bad phone",
			req: PaymentRequest{
				Amount:          500,
				PhoneNumber:     "12345",
				TransactionType: models.TransactionTypeContribution,
			},
			wantErr: "invalid phone number",
		},
		{
			name: "bad transaction type",
			req: PaymentRequest{
				Amount:          500,
				PhoneNumber:     "0712345678",
				TransactionType: "withdrawal",
			},
			wantErr: "invalid transaction_type",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := service.InitiateSTKPush(context.Background(), user.ID, tt.req)
			require.Error(t, err)

			var validationErr *ValidationError
			require.ErrorAs(t, err, &validationErr)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}

	// no rows may be written on a rejected request
	var count int64
	require.NoError(t, db.Model(&models.Transaction{}).Count(&count).Error)
	assert.Zero(t, count)
}

func TestInitiateSTKPushNoUser(t *testing.T) {
	service, _ := setupService(t)

	_, err := service.InitiateSTKPush(context.Background(), uuid.Nil, PaymentRequest{
		Amount:          500,
		PhoneNumber:     "0712345678",
		TransactionType: models.TransactionTypeContribution,
	})
	assert.ErrorIs(t, err, ErrNoAuthenticatedUser)
}

func successCallback(checkoutRequestID, receipt string) CallbackPayload {
	return CallbackPayload{
		Body: CallbackBody{
			StkCallback: StkCallback{
				MerchantRequestID: "29115-34620561-1",
				CheckoutRequestID: checkoutRequestID,
				ResultCode:        0,
				ResultDesc:        "The service request is processed successfully.",
				CallbackMetadata: &CallbackMetadata{
					Item: []CallbackItem{
						{Name: "Amount", Value: 500.0},
						{Name: "MpesaReceiptNumber", Value: receipt},
						{Name: "PhoneNumber", Value: 254712345678.0},
					},
				},
			},
		},
	}
}

func failureCallback(checkoutRequestID string) CallbackPayload {
	return CallbackPayload{
		Body: CallbackBody{
			StkCallback: StkCallback{
				MerchantRequestID: "29115-34620561-1",
				CheckoutRequestID: checkoutRequestID,
				ResultCode:        1032,
				ResultDesc:        "Request cancelled by user",
			},
		},
	}
}

func TestProcessCallbackSuccess(t *testing.T) {
	service, db := setupService(t)
	user := createTestUser(t, db)

	resp, err := service.InitiateSTKPush(context.Background(), user.ID, PaymentRequest{
		Amount:          500,
		PhoneNumber:     "0712345678",
		TransactionType: models.TransactionTypeContribution,
	})
	require.NoError(t, err)

	transaction, err := service.ProcessCallback(successCallback(resp.CheckoutRequestID, "SCR8H6T2LK"))
	require.NoError(t, err)

	assert.Equal(t, models.TransactionStatusCompleted, transaction.Status)
	assert.Equal(t, "SCR8H6T2LK", transaction.MpesaReceipt)
	require.NotNil(t, transaction.ProcessedAt)

	var stored models.Transaction
	require.NoError(t, db.First(&stored, "id = ?", resp.TransactionID).Error)
	assert.Equal(t, models.TransactionStatusCompleted, stored.Status)
	assert.Equal(t, "SCR8H6T2LK", stored.MpesaReceipt)
	assert.NotEmpty(t, stored.AuditTrail.Callback)

	var notifications []models.Notification
	require.NoError(t, db.Where("user_id = ?", user.ID).Find(&notifications).Error)
	require.Len(t, notifications, 1)
	assert.Equal(t, models.NotificationPaymentSuccess, notifications[0].Type)
	assert.Contains(t, notifications[0].Message, "KSh 500")
}

func TestProcessCallbackFailure(t *testing.T) {
	service, db := setupService(t)
	user := createTestUser(t, db)

	resp, err := service.InitiateSTKPush(context.Background(), user.ID, PaymentRequest{
		Amount:          200,
		PhoneNumber:     "0712345678",
		TransactionType: models.TransactionTypeContribution,
	})
	require.NoError(t, err)

	transaction, err := service.ProcessCallback(failureCallback(resp.CheckoutRequestID))
	require.NoError(t, err)

	assert.Equal(t, models.TransactionStatusFailed, transaction.Status)
	assert.Empty(t, transaction.MpesaReceipt)
	assert.Equal(t, "Request cancelled by user", transaction.AuditTrail.FailureReason)

	var notifications []models.Notification
	require.NoError(t, db.Where("user_id = ?", user.ID).Find(&notifications).Error)
	require.Len(t, notifications, 1)
	assert.Equal(t, models.NotificationPaymentFailed, notifications[0].Type)
	assert.Contains(t, notifications[0].Message, "Request cancelled by user")
}

func TestProcessCallbackUnknownTransaction(t *testing.T) {
	service, db := setupService(t)

	_, err := service.ProcessCallback(successCallback("ws_CO_nonexistent", "SCR8H6T2LK"))
	assert.ErrorIs(t, err, ErrTransactionNotFound)

	var count int64
	require.NoError(t, db.Model(&models.Transaction{}).Count(&count).Error)
	assert.Zero(t, count)
}

func TestProcessCallbackDuplicate(t *testing.T) {
	service, db := setupService(t)
	user := createTestUser(t, db)

	resp, err := service.InitiateSTKPush(context.Background(), user.ID, PaymentRequest{
		Amount:          500,
		PhoneNumber:     "0712345678",
		TransactionType: models.TransactionTypeContribution,
	})
	require.NoError(t, err)

	_, err = service.ProcessCallback(successCallback(resp.CheckoutRequestID, "SCR8H6T2LK"))
	require.NoError(t, err)

	// replay the same callback; must acknowledge without mutating anything
	transaction, err := service.ProcessCallback(successCallback(resp.CheckoutRequestID, "DIFFERENT"))
	require.NoError(t, err)
	assert.Equal(t, models.TransactionStatusCompleted, transaction.Status)
	assert.Equal(t, "SCR8H6T2LK", transaction.MpesaReceipt)

	// a late failure callback must not demote the completed transaction
	transaction, err = service.ProcessCallback(failureCallback(resp.CheckoutRequestID))
	require.NoError(t, err)
	assert.Equal(t, models.TransactionStatusCompleted, transaction.Status)

	var notifications []models.Notification
	require.NoError(t, db.Where("user_id = ?", user.ID).Find(&notifications).Error)
	assert.Len(t, notifications, 1)
}

func TestProcessCallbackContributionFollowThrough(t *testing.T) {
	service, db := setupService(t)
	user := createTestUser(t, db)

	notifications := notification.NewService(db)
	chamas := chama.NewService(db, notifications)
	created, err := chamas.CreateChama(user.ID, chama.CreateChamaInput{
		Name:                  "Umoja Savings",
		ContributionAmount:    500,
		ContributionFrequency: models.FrequencyMonthly,
		MaxMembers:            10,
	})
	require.NoError(t, err)

	resp, err := service.InitiateSTKPush(context.Background(), user.ID, PaymentRequest{
		Amount:          500,
		PhoneNumber:     "0712345678",
		TransactionType: models.TransactionTypeContribution,
		ChamaID:         &created.ID,
	})
	require.NoError(t, err)

	_, err = service.ProcessCallback(successCallback(resp.CheckoutRequestID, "SCR8H6T2LK"))
	require.NoError(t, err)

	var stored models.Chama
	require.NoError(t, db.First(&stored, "id = ?", created.ID).Error)
	assert.Equal(t, 500.0, stored.CurrentAmount)

	var member models.ChamaMember
	require.NoError(t, db.Where("chama_id = ? AND user_id = ?", created.ID, user.ID).First(&member).Error)
	assert.Equal(t, 500.0, member.TotalContributions)
	require.NotNil(t, member.LastContributionDate)
}

func TestListChamaTransactions(t *testing.T) {
	service, db := setupService(t)
	user := createTestUser(t, db)
	outsider := createTestUser(t, db)

	notifications := notification.NewService(db)
	chamas := chama.NewService(db, notifications)
	created, err := chamas.CreateChama(user.ID, chama.CreateChamaInput{
		Name:               "Pamoja Fund",
		ContributionAmount: 500,
	})
	require.NoError(t, err)

	_, err = service.InitiateSTKPush(context.Background(), user.ID, PaymentRequest{
		Amount:          500,
		PhoneNumber:     "0712345678",
		TransactionType: models.TransactionTypeContribution,
		ChamaID:         &created.ID,
	})
	require.NoError(t, err)

	transactions, err := service.ListChamaTransactions(user.ID, created.ID)
	require.NoError(t, err)
	assert.Len(t, transactions, 1)

	_, err = service.ListChamaTransactions(outsider.ID, created.ID)
	assert.ErrorIs(t, err, chama.ErrNotMember)
}

func TestGetTransactionScopedToOwner(t *testing.T) {
	service, db := setupService(t)
	owner := createTestUser(t, db)
	other := createTestUser(t, db)

	resp, err := service.InitiateSTKPush(context.Background(), owner.ID, PaymentRequest{
		Amount:          500,
		PhoneNumber:     "0712345678",
		TransactionType: models.TransactionTypeContribution,
	})
	require.NoError(t, err)

	found, err := service.GetTransaction(owner.ID, resp.TransactionID)
	require.NoError(t, err)
	assert.Equal(t, resp.TransactionID, found.ID)

	_, err = service.GetTransaction(other.ID, resp.TransactionID)
	assert.ErrorIs(t, err, ErrTransactionNotFound)
}
