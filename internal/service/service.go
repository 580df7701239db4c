package service

import (
	"context"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/hashvault/mining-server/internal/apperrors"
	"github.com/hashvault/mining-server/internal/models"
	"github.com/hashvault/mining-server/internal/notify"
	"github.com/hashvault/mining-server/internal/repository"
	"github.com/hashvault/mining-server/internal/utils"
)

// Service defines all the business logic operations
type Service interface {
	// Authentication
	SignUp(ctx context.Context, req models.SignUpRequest) (*models.AuthResponse, error)
	Login(ctx context.Context, req models.LoginRequest) (*models.AuthResponse, error)

	// Catalog
	CreateMachine(ctx context.Context, req models.CreateMachineRequest) (*models.MachineResponse, error)
	ListMachines(ctx context.Context) (*models.MachineListResponse, error)
	GetMachine(ctx context.Context, machineID string) (*models.MachineResponse, error)
	GetShareAvailability(ctx context.Context, machineID string) (*models.ShareAvailabilityResponse, error)

	// Purchases and sales
	PurchaseUnits(ctx context.Context, userID, machineID string, quantity int) (*models.PurchaseUnitsResponse, error)
	PurchaseShares(ctx context.Context, userID, machineID string, shareCount int) (*models.PurchaseSharesResponse, error)
	SellUnit(ctx context.Context, holdingID string) (*models.SellUnitResponse, error)
	SellShares(ctx context.Context, holdingID string, shareCount int) (*models.SellSharesResponse, error)

	// Ledger reads and admin credit
	GetBalance(ctx context.Context, userID string) (*models.BalanceResponse, error)
	CreditBalance(ctx context.Context, adminID string, req models.CreditBalanceRequest) (*models.TransactionResponse, error)
	GetHoldings(ctx context.Context, userID string) (*models.HoldingsResponse, error)
	GetTransactions(ctx context.Context, filter repository.TransactionFilter) (*models.TransactionListResponse, error)

	// Withdrawal workflow
	RequestWithdrawal(ctx context.Context, userID string, amount float64) (*models.TransactionResponse, error)
	DecideWithdrawal(ctx context.Context, transactionID, adminID, action, comment string) (*models.TransactionResponse, error)

	// Profit accrual
	RunAccrualTick(ctx context.Context) (*TickSummary, error)
	GetAccrualStatus(ctx context.Context, holdingID string) (*models.AccrualStatusResponse, error)
}

// DefaultService implements the Service interface
type DefaultService struct {
	repo          repository.Repository
	log           *utils.Logger
	notifier      notify.Notifier
	jwtSecret     []byte
	tokenDuration time.Duration
}

// NewDefaultService creates a new DefaultService
func NewDefaultService(repo repository.Repository, log *utils.Logger, notifier notify.Notifier, jwtSecret string) Service {
	if notifier == nil {
		notifier = notify.NopNotifier{}
	}
	return &DefaultService{
		repo:          repo,
		log:           log,
		notifier:      notifier,
		jwtSecret:     []byte(jwtSecret),
		tokenDuration: 24 * time.Hour, // 24 hours token validity
	}
}

// Authentication methods
func (s *DefaultService) SignUp(ctx context.Context, req models.SignUpRequest) (*models.AuthResponse, error) {
	// Check if user already exists
	existingUser, err := s.repo.GetUserByEmail(ctx, req.Email)
	if err != nil {
		return nil, fmt.Errorf("error checking user existence: %w", err)
	}

	if existingUser != nil {
		return nil, apperrors.Validation("user with this email already exists")
	}

	// Hash the password
	hashedPassword, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("error hashing password: %w", err)
	}

	// Create the user
	user := &models.User{
		ID:       uuid.New().String(),
		Email:    req.Email,
		Name:     req.Name,
		Password: string(hashedPassword),
		Role:     models.RoleUser,
	}

	if err := s.repo.CreateUser(ctx, user); err != nil {
		return nil, fmt.Errorf("error creating user: %w", err)
	}

	return &models.AuthResponse{
		Status: "success",
		UserID: user.ID,
		Email:  user.Email,
		Name:   user.Name,
	}, nil
}

func (s *DefaultService) Login(ctx context.Context, req models.LoginRequest) (*models.AuthResponse, error) {
	// Get the user
	user, err := s.repo.GetUserByEmail(ctx, req.Email)
	if err != nil {
		return nil, fmt.Errorf("error getting user: %w", err)
	}

	if user == nil {
		return nil, apperrors.Validation("invalid email or password")
	}

	// Verify password
	if err := bcrypt.CompareHashAndPassword([]byte(user.Password), []byte(req.Password)); err != nil {
		return nil, apperrors.Validation("invalid email or password")
	}

	// Generate JWT token
	token, err := s.generateJWT(user)
	if err != nil {
		return nil, fmt.Errorf("error generating token: %w", err)
	}

	return &models.AuthResponse{
		Status:    "success",
		UserID:    user.ID,
		Token:     token,
		ExpiresIn: int(s.tokenDuration.Seconds()),
	}, nil
}

// Helper methods
func (s *DefaultService) generateJWT(user *models.User) (string, error) {
	expirationTime := time.Now().Add(s.tokenDuration)

	claims := jwt.MapClaims{
		"sub":  user.ID, // subject
		"role": user.Role,
		"exp":  expirationTime.Unix(),
		"iat":  time.Now().Unix(), // issued at
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(s.jwtSecret)
}
