package testutils

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"golang.org/x/crypto/bcrypt"

	"github.com/hashvault/mining-server/internal/api"
	"github.com/hashvault/mining-server/internal/models"
	"github.com/hashvault/mining-server/internal/repository"
	"github.com/hashvault/mining-server/internal/service"
	"github.com/hashvault/mining-server/internal/utils"
)

const testJWTSecret = "test-secret-key"

// TestContext holds all dependencies for tests
type TestContext struct {
	Router       *gin.Engine
	Repository   *repository.MemoryRepository
	Service      service.Service
	JWTSecret    []byte
	TestUserID   string
	TestUserJWT  string
	TestAdminID  string
	TestAdminJWT string
}

// SetupTestContext creates a new test context backed by the in-memory
// repository, with one regular user and one admin pre-created.
func SetupTestContext(t *testing.T) *TestContext {
	repo := repository.NewMemoryRepository()
	svc := service.NewDefaultService(repo, utils.NewLogger(), nil, testJWTSecret)
	handler := api.NewHandler(svc)

	gin.SetMode(gin.TestMode)
	router := gin.New()

	// Add middleware for JWT secret
	router.Use(func(c *gin.Context) {
		c.Set("jwtSecret", []byte(testJWTSecret))
		c.Next()
	})

	handler.SetupRoutes(router)

	userID, userToken := CreateTestUser(t, repo, "testuser@example.com", models.RoleUser)
	adminID, adminToken := CreateTestUser(t, repo, "admin@example.com", models.RoleAdmin)

	return &TestContext{
		Router:       router,
		Repository:   repo,
		Service:      svc,
		JWTSecret:    []byte(testJWTSecret),
		TestUserID:   userID,
		TestUserJWT:  userToken,
		TestAdminID:  adminID,
		TestAdminJWT: adminToken,
	}
}

// CreateTestUser inserts a user with the given role and returns its ID
// and a signed JWT.
func CreateTestUser(t *testing.T, repo repository.Repository, email, role string) (string, string) {
	hashedPassword, _ := bcrypt.GenerateFromPassword([]byte("testpassword"), bcrypt.DefaultCost)

	user := &models.User{
		ID:       uuid.New().String(),
		Email:    email,
		Name:     "Test User",
		Password: string(hashedPassword),
		Role:     role,
	}

	err := repo.CreateUser(context.Background(), user)
	assert.NoError(t, err, "Failed to create test user")

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub":  user.ID,
		"role": role,
		"exp":  time.Now().Add(24 * time.Hour).Unix(),
		"iat":  time.Now().Unix(),
	})

	tokenString, err := token.SignedString([]byte(testJWTSecret))
	assert.NoError(t, err, "Failed to generate JWT token")

	return user.ID, tokenString
}

// FundUser credits the user's admin bucket directly through the
// repository, bypassing the admin API.
func FundUser(t *testing.T, repo repository.Repository, userID string, amount float64) {
	ctx := context.Background()
	balance, err := repo.GetOrCreateBalance(ctx, userID)
	assert.NoError(t, err)
	balance.AdminBalance += amount
	balance.Recompute(time.Now().UTC())
	assert.NoError(t, repo.SaveBalance(ctx, balance))
}

// PerformRequest executes an HTTP request against the router
func PerformRequest(r http.Handler, method, path string, body interface{}, headers map[string]string) *httptest.ResponseRecorder {
	var reqBody *bytes.Buffer

	if body != nil {
		jsonBody, _ := json.Marshal(body)
		reqBody = bytes.NewBuffer(jsonBody)
	} else {
		reqBody = bytes.NewBuffer(nil)
	}

	req, _ := http.NewRequest(method, path, reqBody)
	req.Header.Set("Content-Type", "application/json")

	for k, v := range headers {
		req.Header.Set(k, v)
	}

	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

// AuthHeaders returns headers with Authorization token
func AuthHeaders(token string) map[string]string {
	return map[string]string{
		"Authorization": fmt.Sprintf("Bearer %s", token),
	}
}
