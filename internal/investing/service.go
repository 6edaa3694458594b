package investing

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"

	"fundrise/invest-portal/invest-portal-backend/internal/chain"
	"fundrise/invest-portal/invest-portal-backend/internal/ledger"
)

// ChainMirror is the slice of the blockchain mirror the recorder uses.
type ChainMirror interface {
	Invest(ctx context.Context, tokenID int64, amount float64) (*chain.TxResult, error)
	ConfirmTx(ctx context.Context, txHash string) (*chain.TxResult, error)
	GetUserInvestments(ctx context.Context, wallet string) ([]int64, error)
}

// Notifier receives fire-and-forget investment events for live dashboards.
// Delivery is best-effort and outside the transactional contract.
type Notifier interface {
	InvestmentCreated(event InvestmentEvent)
}

// InvestmentEvent is broadcast after an investment is recorded.
type InvestmentEvent struct {
	CompanyID       uuid.UUID `json:"company_id"`
	InvestmentID    uuid.UUID `json:"investment_id"`
	Amount          float64   `json:"amount"`
	TotalInvestment float64   `json:"total_investment"`
	InvestorCount   int       `json:"investor_count"`
	CreatedAt       time.Time `json:"created_at"`
}

// RecordInvestmentRequest is the recorder's public contract.
type RecordInvestmentRequest struct {
	CompanyID  uuid.UUID `json:"company_id"`
	InvestorID uuid.UUID `json:"investor_id"`
	Amount     float64   `json:"amount"`

	// UseBlockchain asks for a mirror write when the company is linked and
	// the investor has a wallet. RequireBlockchain turns a mirror failure
	// from a graceful degradation into an aborted operation.
	UseBlockchain     bool   `json:"use_blockchain"`
	RequireBlockchain bool   `json:"require_blockchain"`
	InvestorWallet    string `json:"investor_wallet"`
}

// InvestmentResult is the recorded investment plus any chain receipt.
type InvestmentResult struct {
	Investment *ledger.Investment `json:"investment"`
	Receipt    *chain.TxResult    `json:"receipt,omitempty"`

	// PendingConfirmation is set when the mirror write was submitted but
	// not confirmed within the bound; the hash is recorded and the sweep
	// will reconcile it.
	PendingConfirmation bool `json:"pending_confirmation"`
}

// Service records investments against the valuation ledger.
type Service struct {
	repo     ledger.Repository
	mirror   ChainMirror
	notifier Notifier
}

// NewService wires the recorder. mirror and notifier may be nil; the
// recorder then runs purely off-chain and silent.
func NewService(repo ledger.Repository, mirror ChainMirror, notifier Notifier) *Service {
	return &Service{repo: repo, mirror: mirror, notifier: notifier}
}

// OwnershipPercentage prices an investment against the company valuation at
// the moment of investment. Earlier investors are never re-normalized, so
// the per-company sum can exceed 100 over time; that is the platform's
// priced-against-enterprise-value model, preserved as-is.
func OwnershipPercentage(valuation, amount float64) float64 {
	return amount / (valuation + amount) * 100
}

// RecordInvestment validates the request, optionally mirrors it on chain,
// persists the investment and updates the company aggregates atomically.
func (s *Service) RecordInvestment(ctx context.Context, req RecordInvestmentRequest) (*InvestmentResult, error) {
	if req.Amount <= 0 {
		return nil, ledger.ErrInvalidAmount
	}

	company, err := s.repo.GetCompany(ctx, req.CompanyID)
	if err != nil {
		return nil, err
	}
	if !company.IsActive {
		return nil, ledger.ErrCompanyInactive
	}
	if company.OwnerID == req.InvestorID {
		return nil, ledger.ErrSelfInvestment
	}
	if company.Valuation <= 0 {
		// Pricing against a non-positive valuation would put the ownership
		// share outside (0, 100).
		return nil, ledger.ErrInvalidValuation
	}

	investment := &ledger.Investment{
		CompanyID:           req.CompanyID,
		InvestorID:          req.InvestorID,
		Amount:              req.Amount,
		OwnershipPercentage: OwnershipPercentage(company.Valuation, req.Amount),
		InvestmentType:      ledger.InvestmentTypeTraditional,
	}

	result := &InvestmentResult{Investment: investment}

	if req.UseBlockchain || req.RequireBlockchain {
		if err := s.mirrorInvestment(ctx, req, company, investment, result); err != nil {
			return nil, err
		}
	}

	if err := s.repo.RecordInvestment(ctx, investment); err != nil {
		return nil, err
	}

	s.emitEvent(investment)

	return result, nil
}

// mirrorInvestment attempts the chain write for a recorded investment. A
// mandatory request fails when the write cannot even be attempted; an
// opportunistic one degrades to an off-chain record.
func (s *Service) mirrorInvestment(ctx context.Context, req RecordInvestmentRequest, company *ledger.Company, investment *ledger.Investment, result *InvestmentResult) error {
	switch {
	case s.mirror == nil:
		if req.RequireBlockchain {
			return fmt.Errorf("%w: no chain mirror configured", ledger.ErrBlockchainWrite)
		}
		return nil
	case company.BlockchainTokenID == nil:
		if req.RequireBlockchain {
			return fmt.Errorf("%w: company %s is not linked on chain", ledger.ErrBlockchainWrite, req.CompanyID)
		}
		return nil
	case req.InvestorWallet == "":
		if req.RequireBlockchain {
			return fmt.Errorf("%w: investor wallet required for a chain write", ledger.ErrBlockchainWrite)
		}
		return nil
	}

	receipt, err := s.mirror.Invest(ctx, *company.BlockchainTokenID, req.Amount)
	switch {
	case err == nil:
		investment.InvestmentType = ledger.InvestmentTypeBlockchain
		investment.BlockchainTxHash = &receipt.TxHash
		investment.IsBlockchainVerified = true
		result.Receipt = receipt
	case errors.Is(err, ledger.ErrConfirmationTimeout):
		// The transaction is out there; keep the hash either way so
		// reconciliation can finish the job.
		investment.InvestmentType = ledger.InvestmentTypeBlockchain
		if receipt != nil && receipt.TxHash != "" {
			investment.BlockchainTxHash = &receipt.TxHash
			result.Receipt = receipt
		}
		result.PendingConfirmation = true
		log.Printf("investment mirror write unconfirmed for company %s: %v", req.CompanyID, err)
	default:
		if req.RequireBlockchain {
			return fmt.Errorf("%w: %v", ledger.ErrBlockchainWrite, err)
		}
		// Degrade to an off-chain record rather than aborting.
		log.Printf("investment mirror write failed for company %s, recording off-chain: %v", req.CompanyID, err)
	}
	return nil
}

func (s *Service) emitEvent(investment *ledger.Investment) {
	if s.notifier == nil {
		return
	}
	inv := *investment
	go func() {
		// Reload so the event carries the post-update aggregates.
		company, err := s.repo.GetCompany(context.Background(), inv.CompanyID)
		if err != nil {
			log.Printf("failed to load company %s for event: %v", inv.CompanyID, err)
			return
		}
		s.notifier.InvestmentCreated(InvestmentEvent{
			CompanyID:       inv.CompanyID,
			InvestmentID:    inv.ID,
			Amount:          inv.Amount,
			TotalInvestment: company.TotalInvestment,
			InvestorCount:   company.InvestorCount,
			CreatedAt:       inv.CreatedAt,
		})
	}()
}

// ListCompanyInvestments returns a company's investment history.
func (s *Service) ListCompanyInvestments(ctx context.Context, companyID uuid.UUID) ([]ledger.Investment, error) {
	if _, err := s.repo.GetCompany(ctx, companyID); err != nil {
		return nil, err
	}
	return s.repo.ListCompanyInvestments(ctx, companyID)
}

// ListInvestorInvestments returns everything an investor holds.
func (s *Service) ListInvestorInvestments(ctx context.Context, investorID uuid.UUID) ([]ledger.Investment, error) {
	return s.repo.ListInvestorInvestments(ctx, investorID)
}

// ConfirmPendingInvestment finishes an investment whose mirror write was
// submitted but never confirmed. Confirming an already-verified investment
// is a no-op success.
func (s *Service) ConfirmPendingInvestment(ctx context.Context, id uuid.UUID) (*ledger.Investment, error) {
	investment, err := s.repo.GetInvestment(ctx, id)
	if err != nil {
		return nil, err
	}
	if investment.IsBlockchainVerified {
		return investment, nil
	}
	if investment.BlockchainTxHash == nil {
		return nil, fmt.Errorf("%w: investment has no submitted transaction", ledger.ErrBlockchainRead)
	}
	if s.mirror == nil {
		return nil, fmt.Errorf("%w: no chain mirror configured", ledger.ErrBlockchainRead)
	}

	receipt, err := s.mirror.ConfirmTx(ctx, *investment.BlockchainTxHash)
	if err != nil {
		return nil, err
	}
	if err := s.repo.SetInvestmentChainReceipt(ctx, id, receipt.TxHash, true); err != nil {
		return nil, err
	}
	return s.repo.GetInvestment(ctx, id)
}

// WalletHoldings lists the company token ids a wallet holds investments in,
// read from the contract rather than the ledger.
func (s *Service) WalletHoldings(ctx context.Context, wallet string) ([]int64, error) {
	if s.mirror == nil {
		return nil, fmt.Errorf("%w: no chain mirror configured", ledger.ErrBlockchainRead)
	}
	return s.mirror.GetUserInvestments(ctx, wallet)
}

// GetInvestment returns a single investment record.
func (s *Service) GetInvestment(ctx context.Context, id uuid.UUID) (*ledger.Investment, error) {
	return s.repo.GetInvestment(ctx, id)
}
