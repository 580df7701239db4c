package api_test

import (
	"encoding/json"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/hashvault/mining-server/internal/api/testutils"
	"github.com/hashvault/mining-server/internal/models"
)

func TestSignUp(t *testing.T) {
	testCtx := testutils.SetupTestContext(t)

	// Test case 1: Successful signup
	signUpReq := models.SignUpRequest{
		Email:    "newuser@example.com",
		Password: "securepassword",
		Name:     "New User",
	}

	w := testutils.PerformRequest(testCtx.Router, http.MethodPost, "/api/auth/signup", signUpReq, nil)
	assert.Equal(t, http.StatusCreated, w.Code)

	var response models.AuthResponse
	err := json.Unmarshal(w.Body.Bytes(), &response)
	assert.NoError(t, err)
	assert.NotEmpty(t, response.UserID)
	assert.Equal(t, "newuser@example.com", response.Email)

	// Test case 2: Duplicate email
	w = testutils.PerformRequest(testCtx.Router, http.MethodPost, "/api/auth/signup", signUpReq, nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	// Test case 3: Invalid request (short password)
	invalidReq := models.SignUpRequest{
		Email:    "another@example.com",
		Password: "short",
		Name:     "Another User",
	}
	w = testutils.PerformRequest(testCtx.Router, http.MethodPost, "/api/auth/signup", invalidReq, nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestLogin(t *testing.T) {
	testCtx := testutils.SetupTestContext(t)

	signUpReq := models.SignUpRequest{
		Email:    "loginuser@example.com",
		Password: "securepassword",
		Name:     "Login User",
	}
	w := testutils.PerformRequest(testCtx.Router, http.MethodPost, "/api/auth/signup", signUpReq, nil)
	assert.Equal(t, http.StatusCreated, w.Code)

	// Test case 1: Successful login
	loginReq := models.LoginRequest{
		Email:    "loginuser@example.com",
		Password: "securepassword",
	}
	w = testutils.PerformRequest(testCtx.Router, http.MethodPost, "/api/auth/login", loginReq, nil)
	assert.Equal(t, http.StatusOK, w.Code)

	var response models.AuthResponse
	err := json.Unmarshal(w.Body.Bytes(), &response)
	assert.NoError(t, err)
	assert.NotEmpty(t, response.Token)

	// Test case 2: Wrong password
	loginReq.Password = "wrongpassword"
	w = testutils.PerformRequest(testCtx.Router, http.MethodPost, "/api/auth/login", loginReq, nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	// Test case 3: Unknown email
	loginReq = models.LoginRequest{
		Email:    "nosuchuser@example.com",
		Password: "securepassword",
	}
	w = testutils.PerformRequest(testCtx.Router, http.MethodPost, "/api/auth/login", loginReq, nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestAuthenticationRequired(t *testing.T) {
	testCtx := testutils.SetupTestContext(t)

	// No token
	w := testutils.PerformRequest(testCtx.Router, http.MethodGet, "/api/balance", nil, nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	// Malformed token
	w = testutils.PerformRequest(testCtx.Router, http.MethodGet, "/api/balance", nil, map[string]string{
		"Authorization": "Bearer not-a-jwt",
	})
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestAdminRouteForbiddenForUsers(t *testing.T) {
	testCtx := testutils.SetupTestContext(t)

	creditReq := models.CreditBalanceRequest{
		UserID: testCtx.TestUserID,
		Bucket: models.BucketAdmin,
		Amount: 100,
	}

	w := testutils.PerformRequest(
		testCtx.Router,
		http.MethodPost,
		"/api/admin/credit",
		creditReq,
		testutils.AuthHeaders(testCtx.TestUserJWT),
	)
	assert.Equal(t, http.StatusForbidden, w.Code)

	w = testutils.PerformRequest(
		testCtx.Router,
		http.MethodPost,
		"/api/admin/credit",
		creditReq,
		testutils.AuthHeaders(testCtx.TestAdminJWT),
	)
	assert.Equal(t, http.StatusOK, w.Code)
}
