package models

// Request models
type SignUpRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required,min=8"`
	Name     string `json:"name" binding:"required"`
}

type LoginRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required"`
}

type CreateMachineRequest struct {
	Name             string  `json:"name" binding:"required"`
	Hashrate         string  `json:"hashrate" binding:"required"`
	PowerConsumption float64 `json:"powerConsumption" binding:"required"`
	Price            float64 `json:"price" binding:"required,gt=0"`
	CoinsMined       string  `json:"coinsMined"`
	MonthlyProfit    float64 `json:"monthlyProfit" binding:"required,gt=0"`
	Description      string  `json:"description"`
	ShareBased       bool    `json:"shareBased"`
	SharePrice       float64 `json:"sharePrice"`
	TotalShares      int     `json:"totalShares"`
	ProfitPerShare   float64 `json:"profitPerShare"`
}

type PurchaseUnitsRequest struct {
	MachineID string `json:"machineId" binding:"required"`
	Quantity  int    `json:"quantity" binding:"required,min=1"`
}

type PurchaseSharesRequest struct {
	MachineID  string `json:"machineId" binding:"required"`
	ShareCount int    `json:"shareCount" binding:"required,min=1"`
}

type SellSharesRequest struct {
	ShareCount int `json:"shareCount" binding:"required,min=1"`
}

type CreditBalanceRequest struct {
	UserID string  `json:"userId" binding:"required"`
	Bucket string  `json:"bucket" binding:"required,oneof=admin mining"`
	Amount float64 `json:"amount" binding:"required,gt=0"`
}

type WithdrawalRequest struct {
	Amount float64 `json:"amount" binding:"required,gt=0"`
}

type WithdrawalDecisionRequest struct {
	Action  string `json:"action" binding:"required,oneof=approved rejected"`
	Comment string `json:"comment"`
}

// Response models
type AuthResponse struct {
	Status    string `json:"status"`
	UserID    string `json:"userId,omitempty"`
	Email     string `json:"email,omitempty"`
	Name      string `json:"name,omitempty"`
	Token     string `json:"token,omitempty"`
	ExpiresIn int    `json:"expiresIn,omitempty"`
}

type BalanceResponse struct {
	Status  string   `json:"status"`
	Balance *Balance `json:"balance"`
}

type PurchaseUnitsResponse struct {
	Status      string        `json:"status"`
	Transaction *Transaction  `json:"transaction"`
	Holdings    []UnitHolding `json:"holdings"`
	Balance     *Balance      `json:"balance"`
}

type PurchaseSharesResponse struct {
	Status      string        `json:"status"`
	Transaction *Transaction  `json:"transaction"`
	Holding     *ShareHolding `json:"holding"`
	Balance     *Balance      `json:"balance"`
}

type SellUnitResponse struct {
	Status      string       `json:"status"`
	Transaction *Transaction `json:"transaction"`
	Balance     *Balance     `json:"balance"`
}

type SellSharesResponse struct {
	Status      string        `json:"status"`
	Transaction *Transaction  `json:"transaction"`
	Holding     *ShareHolding `json:"holding"`
	Balance     *Balance      `json:"balance"`
}

type HoldingsResponse struct {
	Status        string         `json:"status"`
	UnitHoldings  []UnitHolding  `json:"unitHoldings"`
	ShareHoldings []ShareHolding `json:"shareHoldings"`
}

type TransactionResponse struct {
	Status      string       `json:"status"`
	Transaction *Transaction `json:"transaction"`
}

type TransactionListResponse struct {
	Status       string        `json:"status"`
	Transactions []Transaction `json:"transactions"`
	Total        int           `json:"total"`
}

type MachineResponse struct {
	Status  string         `json:"status"`
	Machine *MiningMachine `json:"machine"`
}

type MachineListResponse struct {
	Status   string          `json:"status"`
	Machines []MiningMachine `json:"machines"`
}

type ShareAvailabilityResponse struct {
	Status          string  `json:"status"`
	MachineID       string  `json:"machineId"`
	MachineName     string  `json:"machineName"`
	TotalShares     int     `json:"totalShares"`
	SoldShares      int     `json:"soldShares"`
	AvailableShares int     `json:"availableShares"`
	SharePrice      float64 `json:"sharePrice"`
	ProfitPerShare  float64 `json:"profitPerShare"`
}

type AccrualStatusResponse struct {
	Status                string  `json:"status"`
	HoldingID             string  `json:"holdingId"`
	MachineName           string  `json:"machineName"`
	HoldingStatus         string  `json:"holdingStatus"`
	LastAccrualAt         string  `json:"lastAccrualAt"`
	HoursSinceLastAccrual int     `json:"hoursSinceLastAccrual"`
	AccruedProfit         float64 `json:"accruedProfit"`
}

type AccrualTickResponse struct {
	Status    string  `json:"status"`
	Processed int     `json:"processed"`
	Credited  int     `json:"credited"`
	Skipped   int     `json:"skipped"`
	Failed    int     `json:"failed"`
	Profit    float64 `json:"profit"`
}

type WithdrawalStatsResponse struct {
	Status         string  `json:"status"`
	PendingCount   int     `json:"pendingCount"`
	PendingAmount  float64 `json:"pendingAmount"`
	ApprovedCount  int     `json:"approvedCount"`
	ApprovedAmount float64 `json:"approvedAmount"`
	RejectedCount  int     `json:"rejectedCount"`
	RejectedAmount float64 `json:"rejectedAmount"`
}

type ErrorResponse struct {
	Status  string `json:"status"`
	Code    string `json:"code"`
	Message string `json:"message"`
}
