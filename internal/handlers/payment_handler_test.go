package handlers_test

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/chamalink/backend/internal/config"
	"github.com/chamalink/backend/internal/handlers"
	"github.com/chamalink/backend/internal/middleware"
	"github.com/chamalink/backend/internal/models"
	"github.com/chamalink/backend/internal/mpesa"
	"github.com/chamalink/backend/internal/routes"
	"github.com/chamalink/backend/internal/services/chama"
	"github.com/chamalink/backend/internal/services/loan"
	"github.com/chamalink/backend/internal/services/notification"
	"github.com/chamalink/backend/internal/utils"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

var testJWT = config.JWTConfig{Secret: "test-secret", Expiration: 1}

type testEnv struct {
	db     *gorm.DB
	router *gin.Engine
}

func setupEnv(t *testing.T) *testEnv {
	t.Helper()
	gin.SetMode(gin.TestMode)

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

	notifications := notification.NewService(db)
	chamas := chama.NewService(db, notifications)
	loans := loan.NewService(db, notifications)
	payments := mpesa.NewService(db, config.MpesaConfig{}, chamas, loans, notifications)

	router := gin.New()
	limiter := middleware.NewRateLimiter(100, 100)
	routes.SetupPaymentRoutes(router, testJWT, handlers.NewPaymentHandler(payments), limiter)
	routes.SetupWebhookRoutes(router, handlers.NewMpesaWebhookHandler(payments))

	return &testEnv{db: db, router: router}
}

func (e *testEnv) createUser(t *testing.T) (*models.User, string) {
	t.Helper()

	user := &models.User{
		Email:        uuid.New().String() + "@example.com",
		PasswordHash: "x",
		FullName:     "Test User",
		PhoneNumber:  "254712345678",
	}
	require.NoError(t, e.db.Create(user).Error)

	token, err := utils.GenerateToken(testJWT, user.ID, user.Email, false)
	require.NoError(t, err)
	return user, token
}

func (e *testEnv) request(t *testing.T, method, path, token string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}

	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	w := httptest.NewRecorder()
	e.router.ServeHTTP(w, req)
	return w
}

func decodeBody(t *testing.T, w *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()

	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	return body
}

func TestInitiatePayment(t *testing.T) {
	env := setupEnv(t)
	_, token := env.createUser(t)

	w := env.request(t, http.MethodPost, "/api/v1/payments/mpesa", token, gin.H{
		"amount":           500,
		"phone_number":     "0712345678",
		"transaction_type": "contribution",
	})
	assert.Equal(t, http.StatusOK, w.Code)

	body := decodeBody(t, w)
	assert.Equal(t, true, body["success"])
	assert.Equal(t, true, body["development_mode"])
	assert.NotEmpty(t, body["transaction_id"])
	assert.NotEmpty(t, body["checkout_request_id"])
}

func TestInitiatePaymentUnauthenticated(t *testing.T) {
	env := setupEnv(t)

	w := env.request(t, http.MethodPost, "/api/v1/payments/mpesa", "", gin.H{
		"amount":           500,
		"phone_number":     "0712345678",
		"transaction_type": "contribution",
	})
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	body := decodeBody(t, w)
	assert.Equal(t, false, body["success"])
}

func TestInitiatePaymentInvalidJSON(t *testing.T) {
	env := setupEnv(t)
	_, token := env.createUser(t)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/payments/mpesa", bytes.NewBufferString("{not json"))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+token)
	w := httptest.NewRecorder()
	env.router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	body := decodeBody(t, w)
	assert.Equal(t, "Invalid JSON in request body", body["error"])
}

func TestInitiatePaymentValidationError(t *testing.T) {
	env := setupEnv(t)
	_, token := env.createUser(t)

	w := env.request(t, http.MethodPost, "/api/v1/payments/mpesa", token, gin.H{
		"amount":           500,
		"phone_number":     "12345",
		"transaction_type": "contribution",
	})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	body := decodeBody(t, w)
	assert.Equal(t, false, body["success"])
	assert.Contains(t, body["error"], "invalid phone number")
}

func TestGetTransactionNotFound(t *testing.T) {
	env := setupEnv(t)
	_, token := env.createUser(t)

	w := env.request(t, http.MethodGet, "/api/v1/payments/transactions/"+uuid.New().String(), token, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestListTransactions(t *testing.T) {
	env := setupEnv(t)
	_, token := env.createUser(t)

	w := env.request(t, http.MethodPost, "/api/v1/payments/mpesa", token, gin.H{
		"amount":           500,
		"phone_number":     "0712345678",
		"transaction_type": "contribution",
	})
	require.Equal(t, http.StatusOK, w.Code)

	w = env.request(t, http.MethodGet, "/api/v1/payments/transactions", token, nil)
	assert.Equal(t, http.StatusOK, w.Code)

	body := decodeBody(t, w)
	transactions, ok := body["transactions"].([]interface{})
	require.True(t, ok)
	assert.Len(t, transactions, 1)
}
