package verification

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"fundrise/invest-portal/invest-portal-backend/internal/chain"
	"fundrise/invest-portal/invest-portal-backend/internal/ledger"
)

// ChainMirror is the slice of the blockchain mirror reconciliation reads.
type ChainMirror interface {
	GetCompany(ctx context.Context, tokenID int64) (*chain.CompanySnapshot, error)
	GetCompanyInvestments(ctx context.Context, tokenID int64) ([]chain.ChainInvestment, error)
	GetCompanyMilestones(ctx context.Context, tokenID int64) ([]chain.ChainMilestone, error)
	ResolveMint(ctx context.Context, txHash string) (*chain.MintResult, error)
}

// ErrNotLinked means verification was requested for a company that has no
// chain token to verify against.
var ErrNotLinked = errors.New("company is not linked to a chain token")

// stateMachine fixes the allowed link-state transitions. Verification state
// is explicit; it is never inferred from which optional fields are set.
type stateMachine struct {
	allowed map[ledger.LinkState][]ledger.LinkState
}

func newStateMachine() *stateMachine {
	return &stateMachine{
		allowed: map[ledger.LinkState][]ledger.LinkState{
			ledger.LinkStateUnlinked:         {ledger.LinkStateLinkedUnverified},
			ledger.LinkStateLinkedUnverified: {ledger.LinkStateLinkedVerified},
			// linked_verified is terminal for a given token.
			ledger.LinkStateLinkedVerified: {},
		},
	}
}

func (sm *stateMachine) canTransition(from, to ledger.LinkState) bool {
	for _, next := range sm.allowed[from] {
		if next == to {
			return true
		}
	}
	return false
}

// Result reports the outcome of a verification request.
type Result struct {
	CompanyID uuid.UUID        `json:"company_id"`
	State     ledger.LinkState `json:"link_state"`
	// Changed is false when verification was an idempotent no-op.
	Changed bool `json:"changed"`
}

// Service reconciles ledger linkage state against live contract state. It
// only ever flips verification forward; a failed read leaves the previous
// state untouched and is reported to the caller instead.
type Service struct {
	repo   ledger.Repository
	mirror ChainMirror
	states *stateMachine
}

func NewService(repo ledger.Repository, mirror ChainMirror) *Service {
	return &Service{repo: repo, mirror: mirror, states: newStateMachine()}
}

// VerifyCompany confirms a company's token against the contract. Verifying
// an already-verified company succeeds without touching anything.
func (s *Service) VerifyCompany(ctx context.Context, companyID uuid.UUID) (*Result, error) {
	company, err := s.repo.GetCompany(ctx, companyID)
	if err != nil {
		return nil, err
	}

	if company.LinkState == ledger.LinkStateLinkedVerified {
		return &Result{CompanyID: companyID, State: company.LinkState, Changed: false}, nil
	}
	if company.BlockchainTokenID == nil {
		return nil, ErrNotLinked
	}

	snapshot, err := s.mirror.GetCompany(ctx, *company.BlockchainTokenID)
	if err != nil {
		// Read failures never flip verification off; report and leave the
		// prior state as it was.
		return nil, err
	}
	if snapshot.TokenID == nil || snapshot.TokenID.Int64() != *company.BlockchainTokenID {
		return nil, fmt.Errorf("%w: token %d not found on contract", ledger.ErrBlockchainRead, *company.BlockchainTokenID)
	}

	if !s.states.canTransition(company.LinkState, ledger.LinkStateLinkedVerified) {
		return nil, fmt.Errorf("cannot verify company in state %s", company.LinkState)
	}
	if err := s.repo.SetLinkState(ctx, companyID, ledger.LinkStateLinkedVerified); err != nil {
		return nil, err
	}

	return &Result{CompanyID: companyID, State: ledger.LinkStateLinkedVerified, Changed: true}, nil
}

// ChainActivity is the contract's full view of a company: the token state
// plus every on-chain investment and milestone record. It is read straight
// from the mirror for auditing the ledger against it.
type ChainActivity struct {
	Snapshot    *chain.CompanySnapshot  `json:"snapshot"`
	Investments []chain.ChainInvestment `json:"investments"`
	Milestones  []chain.ChainMilestone  `json:"milestones"`
}

// ChainActivity reads a linked company's live contract records.
func (s *Service) ChainActivity(ctx context.Context, companyID uuid.UUID) (*ChainActivity, error) {
	company, err := s.repo.GetCompany(ctx, companyID)
	if err != nil {
		return nil, err
	}
	if company.BlockchainTokenID == nil {
		return nil, ErrNotLinked
	}
	tokenID := *company.BlockchainTokenID

	snapshot, err := s.mirror.GetCompany(ctx, tokenID)
	if err != nil {
		return nil, err
	}
	investments, err := s.mirror.GetCompanyInvestments(ctx, tokenID)
	if err != nil {
		return nil, err
	}
	milestones, err := s.mirror.GetCompanyMilestones(ctx, tokenID)
	if err != nil {
		return nil, err
	}

	return &ChainActivity{
		Snapshot:    snapshot,
		Investments: investments,
		Milestones:  milestones,
	}, nil
}

// ResolvePendingMint finishes linking a company whose mint was submitted
// but whose confirmation wait was interrupted.
func (s *Service) ResolvePendingMint(ctx context.Context, company *ledger.Company) error {
	if company.BlockchainTxHash == nil {
		return ErrNotLinked
	}
	minted, err := s.mirror.ResolveMint(ctx, *company.BlockchainTxHash)
	if err != nil {
		return err
	}
	return s.repo.SetBlockchainLink(ctx, company.ID, minted.TokenID, minted.TxHash)
}
