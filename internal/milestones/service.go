package milestones

import (
	"context"
	"errors"
	"log"

	"github.com/google/uuid"

	"fundrise/invest-portal/invest-portal-backend/internal/chain"
	"fundrise/invest-portal/invest-portal-backend/internal/ledger"
)

// ChainMirror is the slice of the blockchain mirror used for milestones.
type ChainMirror interface {
	CompleteMilestone(ctx context.Context, tokenID int64, milestoneType, description string, valuationImpact float64) (*chain.TxResult, error)
}

// CreateMilestoneRequest records an unverified milestone for a company.
type CreateMilestoneRequest struct {
	CompanyID       uuid.UUID `json:"company_id"`
	MilestoneType   string    `json:"milestone_type"`
	Description     string    `json:"description"`
	ValuationImpact float64   `json:"valuation_impact"`
	CreatedBy       uuid.UUID `json:"created_by"`
}

// VerifyResult reports a verification attempt. Applied is false when the
// milestone had already been verified; the valuation delta is applied at
// most once, on the first transition.
type VerifyResult struct {
	Milestone *ledger.Milestone `json:"milestone"`
	Applied   bool              `json:"applied"`
	TxHash    string            `json:"tx_hash,omitempty"`
}

// Service manages milestone records and their single-shot verification.
type Service struct {
	repo   ledger.Repository
	mirror ChainMirror
}

func NewService(repo ledger.Repository, mirror ChainMirror) *Service {
	return &Service{repo: repo, mirror: mirror}
}

func (s *Service) Create(ctx context.Context, req CreateMilestoneRequest) (*ledger.Milestone, error) {
	if req.MilestoneType == "" {
		return nil, errors.New("milestone_type is required")
	}

	company, err := s.repo.GetCompany(ctx, req.CompanyID)
	if err != nil {
		return nil, err
	}
	if company.OwnerID != req.CreatedBy {
		return nil, errors.New("unauthorized")
	}

	milestone := &ledger.Milestone{
		CompanyID:       req.CompanyID,
		MilestoneType:   req.MilestoneType,
		Description:     req.Description,
		ValuationImpact: req.ValuationImpact,
	}
	if err := s.repo.CreateMilestone(ctx, milestone); err != nil {
		return nil, err
	}
	return milestone, nil
}

// Verify transitions a milestone to verified and applies its valuation
// delta to the company exactly once. Verifying an already-verified
// milestone is a no-op success. The optional mirror write degrades
// gracefully: a chain failure never blocks the ledger transition.
func (s *Service) Verify(ctx context.Context, milestoneID, verifiedBy uuid.UUID) (*VerifyResult, error) {
	milestone, err := s.repo.GetMilestone(ctx, milestoneID)
	if err != nil {
		return nil, err
	}

	var txHash *string
	if s.mirror != nil {
		company, err := s.repo.GetCompany(ctx, milestone.CompanyID)
		if err != nil {
			return nil, err
		}
		if company.BlockchainTokenID != nil && !milestone.Verified {
			receipt, err := s.mirror.CompleteMilestone(ctx, *company.BlockchainTokenID,
				milestone.MilestoneType, milestone.Description, milestone.ValuationImpact)
			if err != nil {
				log.Printf("milestone mirror write failed for %s, verifying off-chain: %v", milestoneID, err)
			} else if receipt != nil && receipt.TxHash != "" {
				txHash = &receipt.TxHash
			}
		}
	}

	applied, err := s.repo.ApplyMilestoneVerification(ctx, milestoneID, verifiedBy, txHash)
	if err != nil {
		return nil, err
	}

	milestone, err = s.repo.GetMilestone(ctx, milestoneID)
	if err != nil {
		return nil, err
	}

	result := &VerifyResult{Milestone: milestone, Applied: applied}
	if milestone.BlockchainTxHash != nil {
		result.TxHash = *milestone.BlockchainTxHash
	}
	return result, nil
}

func (s *Service) ListForCompany(ctx context.Context, companyID uuid.UUID) ([]ledger.Milestone, error) {
	if _, err := s.repo.GetCompany(ctx, companyID); err != nil {
		return nil, err
	}
	return s.repo.ListCompanyMilestones(ctx, companyID)
}
