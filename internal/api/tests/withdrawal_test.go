package api_test

import (
	"encoding/json"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hashvault/mining-server/internal/api/testutils"
	"github.com/hashvault/mining-server/internal/models"
)

func requestWithdrawal(t *testing.T, testCtx *testutils.TestContext, amount float64) *models.Transaction {
	w := testutils.PerformRequest(
		testCtx.Router,
		http.MethodPost,
		"/api/withdrawals",
		models.WithdrawalRequest{Amount: amount},
		testutils.AuthHeaders(testCtx.TestUserJWT),
	)
	require.Equal(t, http.StatusCreated, w.Code)

	var response models.TransactionResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &response))
	require.NotNil(t, response.Transaction)
	return response.Transaction
}

func TestWithdrawalLifecycle(t *testing.T) {
	testCtx := testutils.SetupTestContext(t)
	testutils.FundUser(t, testCtx.Repository, testCtx.TestUserID, 500)

	tx := requestWithdrawal(t, testCtx, 200)
	assert.Equal(t, models.TxStatusPending, tx.Status)

	// Pending list shows it
	w := testutils.PerformRequest(
		testCtx.Router,
		http.MethodGet,
		"/api/admin/withdrawals/pending",
		nil,
		testutils.AuthHeaders(testCtx.TestAdminJWT),
	)
	assert.Equal(t, http.StatusOK, w.Code)

	var pending models.TransactionListResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &pending))
	assert.Equal(t, 1, pending.Total)

	// Approve
	w = testutils.PerformRequest(
		testCtx.Router,
		http.MethodPost,
		"/api/admin/withdrawals/"+tx.ID+"/decision",
		models.WithdrawalDecisionRequest{Action: models.TxStatusApproved, Comment: "ok"},
		testutils.AuthHeaders(testCtx.TestAdminJWT),
	)
	assert.Equal(t, http.StatusOK, w.Code)

	var decided models.TransactionResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &decided))
	assert.Equal(t, models.TxStatusApproved, decided.Transaction.Status)
	assert.Equal(t, testCtx.TestAdminID, decided.Transaction.ProcessedBy)

	// Balance dropped
	w = testutils.PerformRequest(
		testCtx.Router,
		http.MethodGet,
		"/api/balance",
		nil,
		testutils.AuthHeaders(testCtx.TestUserJWT),
	)
	var balance models.BalanceResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &balance))
	assert.Equal(t, 300.0, balance.Balance.TotalBalance)

	// A second decision conflicts
	w = testutils.PerformRequest(
		testCtx.Router,
		http.MethodPost,
		"/api/admin/withdrawals/"+tx.ID+"/decision",
		models.WithdrawalDecisionRequest{Action: models.TxStatusRejected},
		testutils.AuthHeaders(testCtx.TestAdminJWT),
	)
	assert.Equal(t, http.StatusConflict, w.Code)
}

func TestWithdrawalDecisionRequiresAdmin(t *testing.T) {
	testCtx := testutils.SetupTestContext(t)
	testutils.FundUser(t, testCtx.Repository, testCtx.TestUserID, 500)

	tx := requestWithdrawal(t, testCtx, 100)

	w := testutils.PerformRequest(
		testCtx.Router,
		http.MethodPost,
		"/api/admin/withdrawals/"+tx.ID+"/decision",
		models.WithdrawalDecisionRequest{Action: models.TxStatusApproved},
		testutils.AuthHeaders(testCtx.TestUserJWT),
	)
	assert.Equal(t, http.StatusForbidden, w.Code)
}

func TestWithdrawalStats(t *testing.T) {
	testCtx := testutils.SetupTestContext(t)
	testutils.FundUser(t, testCtx.Repository, testCtx.TestUserID, 1000)

	first := requestWithdrawal(t, testCtx, 100)
	requestWithdrawal(t, testCtx, 200)

	w := testutils.PerformRequest(
		testCtx.Router,
		http.MethodPost,
		"/api/admin/withdrawals/"+first.ID+"/decision",
		models.WithdrawalDecisionRequest{Action: models.TxStatusRejected, Comment: "no"},
		testutils.AuthHeaders(testCtx.TestAdminJWT),
	)
	require.Equal(t, http.StatusOK, w.Code)

	w = testutils.PerformRequest(
		testCtx.Router,
		http.MethodGet,
		"/api/admin/withdrawals/stats",
		nil,
		testutils.AuthHeaders(testCtx.TestAdminJWT),
	)
	assert.Equal(t, http.StatusOK, w.Code)

	var stats models.WithdrawalStatsResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &stats))
	assert.Equal(t, 1, stats.PendingCount)
	assert.Equal(t, 200.0, stats.PendingAmount)
	assert.Equal(t, 1, stats.RejectedCount)
	assert.Equal(t, 100.0, stats.RejectedAmount)
	assert.Zero(t, stats.ApprovedCount)
}

func TestAdminAccrualRun(t *testing.T) {
	testCtx := testutils.SetupTestContext(t)

	w := testutils.PerformRequest(
		testCtx.Router,
		http.MethodPost,
		"/api/admin/accrual/run",
		nil,
		testutils.AuthHeaders(testCtx.TestAdminJWT),
	)
	assert.Equal(t, http.StatusOK, w.Code)

	var tick models.AccrualTickResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &tick))
	assert.Zero(t, tick.Processed)
}
