package verification

import (
	"context"
	"errors"
	"math/big"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"fundrise/invest-portal/invest-portal-backend/internal/chain"
	"fundrise/invest-portal/invest-portal-backend/internal/ledger"
	"fundrise/invest-portal/invest-portal-backend/internal/ledger/ledgertest"
)

type mockMirror struct {
	mock.Mock
}

func (m *mockMirror) GetCompany(ctx context.Context, tokenID int64) (*chain.CompanySnapshot, error) {
	args := m.Called(ctx, tokenID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*chain.CompanySnapshot), args.Error(1)
}

func (m *mockMirror) GetCompanyInvestments(ctx context.Context, tokenID int64) ([]chain.ChainInvestment, error) {
	args := m.Called(ctx, tokenID)
	return args.Get(0).([]chain.ChainInvestment), args.Error(1)
}

func (m *mockMirror) GetCompanyMilestones(ctx context.Context, tokenID int64) ([]chain.ChainMilestone, error) {
	args := m.Called(ctx, tokenID)
	return args.Get(0).([]chain.ChainMilestone), args.Error(1)
}

func (m *mockMirror) ResolveMint(ctx context.Context, txHash string) (*chain.MintResult, error) {
	args := m.Called(ctx, txHash)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*chain.MintResult), args.Error(1)
}

func linkedCompany(state ledger.LinkState) *ledger.Company {
	tokenID := int64(42)
	hash := "0xmint"
	return &ledger.Company{
		ID:                uuid.New(),
		Name:              "Acme Robotics",
		OwnerID:           uuid.New(),
		Valuation:         1_000_000,
		IsActive:          true,
		BlockchainTokenID: &tokenID,
		BlockchainTxHash:  &hash,
		LinkState:         state,
	}
}

func TestVerifyCompany_Transitions(t *testing.T) {
	repo := new(ledgertest.MockRepository)
	company := linkedCompany(ledger.LinkStateLinkedUnverified)
	repo.On("GetCompany", mock.Anything, company.ID).Return(company, nil)
	repo.On("SetLinkState", mock.Anything, company.ID, ledger.LinkStateLinkedVerified).Return(nil)

	mirror := new(mockMirror)
	mirror.On("GetCompany", mock.Anything, int64(42)).
		Return(&chain.CompanySnapshot{TokenID: big.NewInt(42), Name: company.Name}, nil)

	svc := NewService(repo, mirror)
	result, err := svc.VerifyCompany(context.Background(), company.ID)
	require.NoError(t, err)

	assert.True(t, result.Changed)
	assert.Equal(t, ledger.LinkStateLinkedVerified, result.State)
	repo.AssertExpectations(t)
}

func TestVerifyCompany_AlreadyVerifiedIsNoOp(t *testing.T) {
	repo := new(ledgertest.MockRepository)
	company := linkedCompany(ledger.LinkStateLinkedVerified)
	repo.On("GetCompany", mock.Anything, company.ID).Return(company, nil)

	// The mirror must not even be consulted.
	svc := NewService(repo, new(mockMirror))
	result, err := svc.VerifyCompany(context.Background(), company.ID)
	require.NoError(t, err)

	assert.False(t, result.Changed)
	assert.Equal(t, ledger.LinkStateLinkedVerified, result.State)
	repo.AssertNotCalled(t, "SetLinkState", mock.Anything, mock.Anything, mock.Anything)
}

func TestVerifyCompany_UnlinkedCompany(t *testing.T) {
	repo := new(ledgertest.MockRepository)
	company := linkedCompany(ledger.LinkStateUnlinked)
	company.BlockchainTokenID = nil
	repo.On("GetCompany", mock.Anything, company.ID).Return(company, nil)

	svc := NewService(repo, new(mockMirror))
	_, err := svc.VerifyCompany(context.Background(), company.ID)
	assert.ErrorIs(t, err, ErrNotLinked)
}

func TestVerifyCompany_ReadFailureLeavesState(t *testing.T) {
	repo := new(ledgertest.MockRepository)
	company := linkedCompany(ledger.LinkStateLinkedUnverified)
	repo.On("GetCompany", mock.Anything, company.ID).Return(company, nil)

	mirror := new(mockMirror)
	mirror.On("GetCompany", mock.Anything, int64(42)).
		Return(nil, errors.New("rpc unavailable"))

	svc := NewService(repo, mirror)
	_, err := svc.VerifyCompany(context.Background(), company.ID)
	assert.Error(t, err)
	repo.AssertNotCalled(t, "SetLinkState", mock.Anything, mock.Anything, mock.Anything)
}

func TestVerifyCompany_TokenMismatch(t *testing.T) {
	repo := new(ledgertest.MockRepository)
	company := linkedCompany(ledger.LinkStateLinkedUnverified)
	repo.On("GetCompany", mock.Anything, company.ID).Return(company, nil)

	mirror := new(mockMirror)
	mirror.On("GetCompany", mock.Anything, int64(42)).
		Return(&chain.CompanySnapshot{TokenID: big.NewInt(99)}, nil)

	svc := NewService(repo, mirror)
	_, err := svc.VerifyCompany(context.Background(), company.ID)
	assert.ErrorIs(t, err, ledger.ErrBlockchainRead)
	repo.AssertNotCalled(t, "SetLinkState", mock.Anything, mock.Anything, mock.Anything)
}

func TestResolvePendingMint(t *testing.T) {
	repo := new(ledgertest.MockRepository)
	company := linkedCompany(ledger.LinkStateUnlinked)
	company.BlockchainTokenID = nil
	repo.On("SetBlockchainLink", mock.Anything, company.ID, int64(7), "0xmint").Return(nil)

	mirror := new(mockMirror)
	mirror.On("ResolveMint", mock.Anything, "0xmint").
		Return(&chain.MintResult{TxResult: chain.TxResult{TxHash: "0xmint", Confirmed: true}, TokenID: 7}, nil)

	svc := NewService(repo, mirror)
	err := svc.ResolvePendingMint(context.Background(), company)
	require.NoError(t, err)
	repo.AssertExpectations(t)
}

func TestChainActivity(t *testing.T) {
	repo := new(ledgertest.MockRepository)
	company := linkedCompany(ledger.LinkStateLinkedVerified)
	repo.On("GetCompany", mock.Anything, company.ID).Return(company, nil)

	mirror := new(mockMirror)
	mirror.On("GetCompany", mock.Anything, int64(42)).
		Return(&chain.CompanySnapshot{TokenID: big.NewInt(42)}, nil)
	mirror.On("GetCompanyInvestments", mock.Anything, int64(42)).
		Return([]chain.ChainInvestment{{Amount: big.NewInt(1)}}, nil)
	mirror.On("GetCompanyMilestones", mock.Anything, int64(42)).
		Return([]chain.ChainMilestone{}, nil)

	svc := NewService(repo, mirror)
	activity, err := svc.ChainActivity(context.Background(), company.ID)
	require.NoError(t, err)

	assert.Equal(t, int64(42), activity.Snapshot.TokenID.Int64())
	assert.Len(t, activity.Investments, 1)
	assert.Empty(t, activity.Milestones)
}

func TestChainActivity_Unlinked(t *testing.T) {
	repo := new(ledgertest.MockRepository)
	company := linkedCompany(ledger.LinkStateUnlinked)
	company.BlockchainTokenID = nil
	repo.On("GetCompany", mock.Anything, company.ID).Return(company, nil)

	svc := NewService(repo, new(mockMirror))
	_, err := svc.ChainActivity(context.Background(), company.ID)
	assert.ErrorIs(t, err, ErrNotLinked)
}

func TestStateMachine(t *testing.T) {
	sm := newStateMachine()

	assert.True(t, sm.canTransition(ledger.LinkStateUnlinked, ledger.LinkStateLinkedUnverified))
	assert.True(t, sm.canTransition(ledger.LinkStateLinkedUnverified, ledger.LinkStateLinkedVerified))

	assert.False(t, sm.canTransition(ledger.LinkStateUnlinked, ledger.LinkStateLinkedVerified))
	assert.False(t, sm.canTransition(ledger.LinkStateLinkedVerified, ledger.LinkStateLinkedUnverified))
	assert.False(t, sm.canTransition(ledger.LinkStateLinkedVerified, ledger.LinkStateUnlinked))
}
