package service

import (
	"context"
	"fmt"

	"github.com/hashvault/mining-server/internal/apperrors"
	"github.com/hashvault/mining-server/internal/models"
)

// Catalog operations
func (s *DefaultService) CreateMachine(ctx context.Context, req models.CreateMachineRequest) (*models.MachineResponse, error) {
	machine := &models.MiningMachine{
		Name:             req.Name,
		Hashrate:         req.Hashrate,
		PowerConsumption: req.PowerConsumption,
		Price:            req.Price,
		CoinsMined:       req.CoinsMined,
		MonthlyProfit:    req.MonthlyProfit,
		Description:      req.Description,
		ShareBased:       req.ShareBased,
	}

	if req.ShareBased {
		if req.SharePrice <= 0 || req.TotalShares <= 0 || req.ProfitPerShare <= 0 {
			return nil, apperrors.Validation("share-based machines require positive sharePrice, totalShares and profitPerShare")
		}
		machine.SharePrice = req.SharePrice
		machine.TotalShares = req.TotalShares
		machine.AvailableShares = req.TotalShares
		machine.ProfitPerShare = req.ProfitPerShare
	}

	if err := s.repo.CreateMachine(ctx, machine); err != nil {
		return nil, fmt.Errorf("error creating machine: %w", err)
	}

	return &models.MachineResponse{Status: "success", Machine: machine}, nil
}

func (s *DefaultService) ListMachines(ctx context.Context) (*models.MachineListResponse, error) {
	machines, err := s.repo.ListMachines(ctx)
	if err != nil {
		return nil, fmt.Errorf("error listing machines: %w", err)
	}
	return &models.MachineListResponse{Status: "success", Machines: machines}, nil
}

func (s *DefaultService) GetMachine(ctx context.Context, machineID string) (*models.MachineResponse, error) {
	machine, err := s.repo.GetMachine(ctx, machineID)
	if err != nil {
		return nil, fmt.Errorf("error getting machine: %w", err)
	}
	if machine == nil {
		return nil, apperrors.NotFound("machine %s not found", machineID)
	}
	return &models.MachineResponse{Status: "success", Machine: machine}, nil
}

func (s *DefaultService) GetShareAvailability(ctx context.Context, machineID string) (*models.ShareAvailabilityResponse, error) {
	machine, err := s.repo.GetMachine(ctx, machineID)
	if err != nil {
		return nil, fmt.Errorf("error getting machine: %w", err)
	}
	if machine == nil {
		return nil, apperrors.NotFound("machine %s not found", machineID)
	}
	if !machine.ShareBased {
		return nil, apperrors.InvalidState("machine %s is not share-based", machineID)
	}

	sold, err := s.repo.SumActiveShareCount(ctx, machineID)
	if err != nil {
		return nil, fmt.Errorf("error counting sold shares: %w", err)
	}

	return &models.ShareAvailabilityResponse{
		Status:          "success",
		MachineID:       machine.ID,
		MachineName:     machine.Name,
		TotalShares:     machine.TotalShares,
		SoldShares:      sold,
		AvailableShares: machine.AvailableShares,
		SharePrice:      machine.SharePrice,
		ProfitPerShare:  machine.ProfitPerShare,
	}, nil
}
