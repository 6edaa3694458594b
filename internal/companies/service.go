package companies

import (
	"context"
	"errors"
	"fmt"
	"log"

	"github.com/google/uuid"

	"fundrise/invest-portal/invest-portal-backend/internal/chain"
	"fundrise/invest-portal/invest-portal-backend/internal/ledger"
)

// ChainMirror is the slice of the blockchain mirror used for minting.
type ChainMirror interface {
	SubmitMint(ctx context.Context, req chain.MintCompanyRequest) (string, error)
	ResolveMint(ctx context.Context, txHash string) (*chain.MintResult, error)
}

// CreateCompanyRequest registers a company on the ledger. Valuation and
// owner are fixed here; valuation moves afterwards only through verified
// milestones.
type CreateCompanyRequest struct {
	Name        string    `json:"name"`
	Description string    `json:"description"`
	Industry    string    `json:"industry"`
	Valuation   float64   `json:"valuation"`
	OwnerID     uuid.UUID `json:"owner_id"`
}

// MintResult reports the outcome of a chain mint.
type MintResult struct {
	Company             *ledger.Company `json:"company"`
	TxHash              string          `json:"tx_hash"`
	TokenID             int64           `json:"token_id,omitempty"`
	PendingConfirmation bool            `json:"pending_confirmation"`
}

// Service manages company registration and chain linkage.
type Service struct {
	repo   ledger.Repository
	mirror ChainMirror
}

func NewService(repo ledger.Repository, mirror ChainMirror) *Service {
	return &Service{repo: repo, mirror: mirror}
}

func (s *Service) Create(ctx context.Context, req CreateCompanyRequest) (*ledger.Company, error) {
	if req.Name == "" {
		return nil, errors.New("name is required")
	}
	if req.OwnerID == uuid.Nil {
		return nil, errors.New("owner_id is required")
	}
	if req.Valuation <= 0 {
		return nil, ledger.ErrInvalidValuation
	}

	company := &ledger.Company{
		Name:        req.Name,
		Description: req.Description,
		Industry:    req.Industry,
		Valuation:   req.Valuation,
		OwnerID:     req.OwnerID,
		LinkState:   ledger.LinkStateUnlinked,
		IsActive:    true,
	}
	if err := s.repo.CreateCompany(ctx, company); err != nil {
		return nil, err
	}
	return company, nil
}

// MintOnChain mints the company's token on the mirror and records the
// linkage. On a confirmation timeout the hash is stored anyway and the
// reconciliation sweep finishes the linking later.
func (s *Service) MintOnChain(ctx context.Context, companyID uuid.UUID, tokenURI string) (*MintResult, error) {
	company, err := s.repo.GetCompany(ctx, companyID)
	if err != nil {
		return nil, err
	}
	if company.BlockchainTokenID != nil {
		return nil, ledger.ErrAlreadyLinked
	}
	if s.mirror == nil {
		return nil, fmt.Errorf("%w: no chain mirror configured", ledger.ErrBlockchainWrite)
	}

	var txHash string
	if company.BlockchainTxHash != nil {
		// A mint is already in flight; a token mint is irreversible, so
		// resume the submitted transaction instead of issuing a second one.
		txHash = *company.BlockchainTxHash
	} else {
		txHash, err = s.mirror.SubmitMint(ctx, chain.MintCompanyRequest{
			Name:        company.Name,
			Description: company.Description,
			Industry:    company.Industry,
			Valuation:   company.Valuation,
			TokenURI:    tokenURI,
		})
		if err != nil {
			return nil, err
		}

		// Persist the hash before waiting: an interrupted wait must never
		// lose a submitted transaction.
		if err := s.repo.SetMintSubmitted(ctx, companyID, txHash); err != nil {
			return nil, err
		}
	}

	minted, err := s.mirror.ResolveMint(ctx, txHash)
	if err != nil {
		if errors.Is(err, ledger.ErrConfirmationTimeout) {
			// Submitted but unconfirmed: the hash is recorded, the sweep
			// resolves the token id later.
			log.Printf("mint unconfirmed for company %s, tx %s", companyID, txHash)
			return &MintResult{Company: company, TxHash: txHash, PendingConfirmation: true}, nil
		}
		return nil, err
	}

	if err := s.repo.SetBlockchainLink(ctx, companyID, minted.TokenID, minted.TxHash); err != nil {
		return nil, err
	}

	company, err = s.repo.GetCompany(ctx, companyID)
	if err != nil {
		return nil, err
	}
	return &MintResult{Company: company, TxHash: minted.TxHash, TokenID: minted.TokenID}, nil
}

func (s *Service) Get(ctx context.Context, id uuid.UUID) (*ledger.Company, error) {
	return s.repo.GetCompany(ctx, id)
}

func (s *Service) List(ctx context.Context, activeOnly bool) ([]ledger.Company, error) {
	return s.repo.ListCompanies(ctx, activeOnly)
}

// Deactivate stops a company from accepting new investments. Only the
// owner may do this.
func (s *Service) Deactivate(ctx context.Context, id, requestedBy uuid.UUID) error {
	company, err := s.repo.GetCompany(ctx, id)
	if err != nil {
		return err
	}
	if company.OwnerID != requestedBy {
		return errors.New("unauthorized")
	}
	return s.repo.SetCompanyActive(ctx, id, false)
}
