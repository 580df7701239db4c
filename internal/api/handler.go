package api

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/hashvault/mining-server/internal/apperrors"
	"github.com/hashvault/mining-server/internal/metrics"
	"github.com/hashvault/mining-server/internal/models"
	"github.com/hashvault/mining-server/internal/repository"
	"github.com/hashvault/mining-server/internal/service"
)

// Handler holds the API handlers
type Handler struct {
	svc service.Service
}

// NewHandler creates a new API handler
func NewHandler(svc service.Service) *Handler {
	return &Handler{svc: svc}
}

// SetupRoutes configures all API routes
func (h *Handler) SetupRoutes(router *gin.Engine) {
	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	router.GET("/metrics", gin.WrapH(metrics.Handler()))

	api := router.Group("/api")
	{
		auth := api.Group("/auth")
		{
			auth.POST("/signup", h.SignUp)
			auth.POST("/login", h.Login)
		}

		machines := api.Group("/machines")
		{
			machines.GET("", h.ListMachines)
			machines.GET("/:id", h.GetMachine)
			machines.GET("/:id/availability", h.GetShareAvailability)
		}

		user := api.Group("")
		user.Use(AuthMiddleware())
		{
			user.GET("/balance", h.GetBalance)
			user.GET("/holdings", h.GetHoldings)
			user.GET("/holdings/:id/accrual", h.GetAccrualStatus)
			user.GET("/transactions", h.GetTransactions)
			user.POST("/purchases/units", h.PurchaseUnits)
			user.POST("/purchases/shares", h.PurchaseShares)
			user.POST("/holdings/:id/sell", h.SellUnit)
			user.POST("/holdings/:id/sell-shares", h.SellShares)
			user.POST("/withdrawals", h.RequestWithdrawal)
		}

		admin := api.Group("/admin")
		admin.Use(AuthMiddleware(), RequireAdmin())
		{
			admin.POST("/machines", h.CreateMachine)
			admin.POST("/credit", h.CreditBalance)
			admin.GET("/withdrawals/pending", h.ListPendingWithdrawals)
			admin.GET("/withdrawals/stats", h.GetWithdrawalStats)
			admin.POST("/withdrawals/:id/decision", h.DecideWithdrawal)
			admin.POST("/accrual/run", h.RunAccrualTick)
		}
	}
}

// respondError maps a service error to an HTTP status and error body.
func respondError(c *gin.Context, err error) {
	kind := apperrors.KindOf(err)
	status := http.StatusInternalServerError
	code := "INTERNAL_ERROR"
	message := "An internal error occurred"

	switch kind {
	case apperrors.KindNotFound:
		status = http.StatusNotFound
	case apperrors.KindValidation, apperrors.KindInsufficientFunds, apperrors.KindInsufficientShares:
		status = http.StatusBadRequest
	case apperrors.KindInvalidState, apperrors.KindConflict:
		status = http.StatusConflict
	}
	if kind != "" {
		code = string(kind)
		var appErr *apperrors.Error
		if errors.As(err, &appErr) {
			message = appErr.Message
		} else {
			message = err.Error()
		}
	}

	c.JSON(status, models.ErrorResponse{
		Status:  "error",
		Code:    code,
		Message: message,
	})
}

func respondBadRequest(c *gin.Context, err error) {
	c.JSON(http.StatusBadRequest, models.ErrorResponse{
		Status:  "error",
		Code:    "VALIDATION_ERROR",
		Message: err.Error(),
	})
}

// Authentication handlers

func (h *Handler) SignUp(c *gin.Context) {
	var req models.SignUpRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBadRequest(c, err)
		return
	}

	resp, err := h.svc.SignUp(c.Request.Context(), req)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, resp)
}

func (h *Handler) Login(c *gin.Context) {
	var req models.LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBadRequest(c, err)
		return
	}

	resp, err := h.svc.Login(c.Request.Context(), req)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

// Catalog handlers

func (h *Handler) CreateMachine(c *gin.Context) {
	var req models.CreateMachineRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBadRequest(c, err)
		return
	}

	resp, err := h.svc.CreateMachine(c.Request.Context(), req)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, resp)
}

func (h *Handler) ListMachines(c *gin.Context) {
	resp, err := h.svc.ListMachines(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

func (h *Handler) GetMachine(c *gin.Context) {
	resp, err := h.svc.GetMachine(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

func (h *Handler) GetShareAvailability(c *gin.Context) {
	resp, err := h.svc.GetShareAvailability(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

// Ledger handlers

func (h *Handler) GetBalance(c *gin.Context) {
	userID := c.GetString("userId")
	resp, err := h.svc.GetBalance(c.Request.Context(), userID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

func (h *Handler) CreditBalance(c *gin.Context) {
	var req models.CreditBalanceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBadRequest(c, err)
		return
	}

	adminID := c.GetString("userId")
	resp, err := h.svc.CreditBalance(c.Request.Context(), adminID, req)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

func (h *Handler) GetHoldings(c *gin.Context) {
	userID := c.GetString("userId")
	resp, err := h.svc.GetHoldings(c.Request.Context(), userID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

func (h *Handler) GetTransactions(c *gin.Context) {
	filter := repository.TransactionFilter{
		UserID: c.GetString("userId"),
		Kind:   c.Query("kind"),
		Status: c.Query("status"),
	}
	if v := c.Query("limit"); v != "" {
		limit, err := strconv.Atoi(v)
		if err != nil || limit < 0 {
			respondBadRequest(c, fmt.Errorf("invalid limit parameter"))
			return
		}
		filter.Limit = limit
	}
	if v := c.Query("offset"); v != "" {
		offset, err := strconv.Atoi(v)
		if err != nil || offset < 0 {
			respondBadRequest(c, fmt.Errorf("invalid offset parameter"))
			return
		}
		filter.Offset = offset
	}

	resp, err := h.svc.GetTransactions(c.Request.Context(), filter)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

// Purchase and sale handlers

func (h *Handler) PurchaseUnits(c *gin.Context) {
	var req models.PurchaseUnitsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBadRequest(c, err)
		return
	}

	userID := c.GetString("userId")
	resp, err := h.svc.PurchaseUnits(c.Request.Context(), userID, req.MachineID, req.Quantity)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, resp)
}

func (h *Handler) PurchaseShares(c *gin.Context) {
	var req models.PurchaseSharesRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBadRequest(c, err)
		return
	}

	userID := c.GetString("userId")
	resp, err := h.svc.PurchaseShares(c.Request.Context(), userID, req.MachineID, req.ShareCount)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, resp)
}

func (h *Handler) SellUnit(c *gin.Context) {
	resp, err := h.svc.SellUnit(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

func (h *Handler) SellShares(c *gin.Context) {
	var req models.SellSharesRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBadRequest(c, err)
		return
	}

	resp, err := h.svc.SellShares(c.Request.Context(), c.Param("id"), req.ShareCount)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

// Withdrawal handlers

func (h *Handler) RequestWithdrawal(c *gin.Context) {
	var req models.WithdrawalRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBadRequest(c, err)
		return
	}

	userID := c.GetString("userId")
	resp, err := h.svc.RequestWithdrawal(c.Request.Context(), userID, req.Amount)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, resp)
}

func (h *Handler) DecideWithdrawal(c *gin.Context) {
	var req models.WithdrawalDecisionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBadRequest(c, err)
		return
	}

	adminID := c.GetString("userId")
	resp, err := h.svc.DecideWithdrawal(c.Request.Context(), c.Param("id"), adminID, req.Action, req.Comment)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

func (h *Handler) ListPendingWithdrawals(c *gin.Context) {
	resp, err := h.svc.GetTransactions(c.Request.Context(), repository.TransactionFilter{
		Kind:   models.TxKindWithdrawal,
		Status: models.TxStatusPending,
	})
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

func (h *Handler) GetWithdrawalStats(c *gin.Context) {
	list, err := h.svc.GetTransactions(c.Request.Context(), repository.TransactionFilter{
		Kind: models.TxKindWithdrawal,
	})
	if err != nil {
		respondError(c, err)
		return
	}

	stats := models.WithdrawalStatsResponse{Status: "success"}
	for _, tx := range list.Transactions {
		switch tx.Status {
		case models.TxStatusPending:
			stats.PendingCount++
			stats.PendingAmount += tx.Amount
		case models.TxStatusApproved:
			stats.ApprovedCount++
			stats.ApprovedAmount += tx.Amount
		case models.TxStatusRejected:
			stats.RejectedCount++
			stats.RejectedAmount += tx.Amount
		}
	}
	c.JSON(http.StatusOK, stats)
}

// Accrual handlers

func (h *Handler) RunAccrualTick(c *gin.Context) {
	summary, err := h.svc.RunAccrualTick(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, models.AccrualTickResponse{
		Status:    "success",
		Processed: summary.Processed,
		Credited:  summary.Credited,
		Skipped:   summary.Skipped,
		Failed:    summary.Failed,
		Profit:    summary.Profit,
	})
}

func (h *Handler) GetAccrualStatus(c *gin.Context) {
	resp, err := h.svc.GetAccrualStatus(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}
