package companies

import (
	"context"
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

func (m *mockMirror) SubmitMint(ctx context.Context, req chain.MintCompanyRequest) (string, error) {
	args := m.Called(ctx, req)
	return args.String(0), args.Error(1)
}

func (m *mockMirror) ResolveMint(ctx context.Context, txHash string) (*chain.MintResult, error) {
	args := m.Called(ctx, txHash)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*chain.MintResult), args.Error(1)
}

func TestCreate_Validation(t *testing.T) {
	svc := NewService(new(ledgertest.MockRepository), nil)

	_, err := svc.Create(context.Background(), CreateCompanyRequest{
		OwnerID:   uuid.New(),
		Valuation: 1_000_000,
	})
	assert.Error(t, err, "missing name")

	_, err = svc.Create(context.Background(), CreateCompanyRequest{
		Name:      "Acme Robotics",
		OwnerID:   uuid.New(),
		Valuation: 0,
	})
	assert.ErrorIs(t, err, ledger.ErrInvalidValuation)
}

func TestCreate_StartsUnlinked(t *testing.T) {
	repo := new(ledgertest.MockRepository)
	repo.On("CreateCompany", mock.Anything, mock.AnythingOfType("*ledger.Company")).Return(nil)

	svc := NewService(repo, nil)
	company, err := svc.Create(context.Background(), CreateCompanyRequest{
		Name:      "Acme Robotics",
		OwnerID:   uuid.New(),
		Valuation: 1_000_000,
	})
	require.NoError(t, err)

	assert.Equal(t, ledger.LinkStateUnlinked, company.LinkState)
	assert.True(t, company.IsActive)
	assert.False(t, company.IsBlockchainVerified())
}

func TestMintOnChain_PersistsHashBeforeConfirmation(t *testing.T) {
	repo := new(ledgertest.MockRepository)
	company := &ledger.Company{ID: uuid.New(), Name: "Acme Robotics", Valuation: 1_000_000, IsActive: true}
	linked := *company
	tokenID := int64(7)
	linked.BlockchainTokenID = &tokenID
	linked.LinkState = ledger.LinkStateLinkedUnverified

	repo.On("GetCompany", mock.Anything, company.ID).Return(company, nil).Once()
	repo.On("SetMintSubmitted", mock.Anything, company.ID, "0xmint").Return(nil)
	repo.On("SetBlockchainLink", mock.Anything, company.ID, int64(7), "0xmint").Return(nil)
	repo.On("GetCompany", mock.Anything, company.ID).Return(&linked, nil).Once()

	mirror := new(mockMirror)
	mirror.On("SubmitMint", mock.Anything, mock.AnythingOfType("chain.MintCompanyRequest")).
		Return("0xmint", nil)
	mirror.On("ResolveMint", mock.Anything, "0xmint").
		Return(&chain.MintResult{TxResult: chain.TxResult{TxHash: "0xmint", Confirmed: true}, TokenID: 7}, nil)

	svc := NewService(repo, mirror)
	result, err := svc.MintOnChain(context.Background(), company.ID, "ipfs://meta")
	require.NoError(t, err)

	assert.Equal(t, "0xmint", result.TxHash)
	assert.Equal(t, int64(7), result.TokenID)
	assert.False(t, result.PendingConfirmation)
	repo.AssertExpectations(t)
	mirror.AssertExpectations(t)
}

func TestMintOnChain_TimeoutKeepsHash(t *testing.T) {
	repo := new(ledgertest.MockRepository)
	company := &ledger.Company{ID: uuid.New(), Name: "Acme Robotics", Valuation: 1_000_000, IsActive: true}

	repo.On("GetCompany", mock.Anything, company.ID).Return(company, nil)
	repo.On("SetMintSubmitted", mock.Anything, company.ID, "0xmint").Return(nil)

	mirror := new(mockMirror)
	mirror.On("SubmitMint", mock.Anything, mock.AnythingOfType("chain.MintCompanyRequest")).
		Return("0xmint", nil)
	mirror.On("ResolveMint", mock.Anything, "0xmint").
		Return(nil, ledger.ErrConfirmationTimeout)

	svc := NewService(repo, mirror)
	result, err := svc.MintOnChain(context.Background(), company.ID, "")
	require.NoError(t, err)

	// The hash is on record; the sweep finishes the link later.
	assert.Equal(t, "0xmint", result.TxHash)
	assert.True(t, result.PendingConfirmation)
	repo.AssertNotCalled(t, "SetBlockchainLink", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestMintOnChain_AlreadyLinked(t *testing.T) {
	repo := new(ledgertest.MockRepository)
	tokenID := int64(7)
	company := &ledger.Company{ID: uuid.New(), BlockchainTokenID: &tokenID}
	repo.On("GetCompany", mock.Anything, company.ID).Return(company, nil)

	svc := NewService(repo, new(mockMirror))
	_, err := svc.MintOnChain(context.Background(), company.ID, "")
	assert.ErrorIs(t, err, ledger.ErrAlreadyLinked)
}

func TestMintOnChain_PendingMintResumesNotResubmits(t *testing.T) {
	repo := new(ledgertest.MockRepository)
	hash := "0xmint"
	company := &ledger.Company{
		ID:               uuid.New(),
		Name:             "Acme Robotics",
		Valuation:        1_000_000,
		IsActive:         true,
		BlockchainTxHash: &hash,
	}
	linked := *company
	tokenID := int64(7)
	linked.BlockchainTokenID = &tokenID
	linked.LinkState = ledger.LinkStateLinkedUnverified

	repo.On("GetCompany", mock.Anything, company.ID).Return(company, nil).Once()
	repo.On("SetBlockchainLink", mock.Anything, company.ID, int64(7), "0xmint").Return(nil)
	repo.On("GetCompany", mock.Anything, company.ID).Return(&linked, nil).Once()

	mirror := new(mockMirror)
	mirror.On("ResolveMint", mock.Anything, "0xmint").
		Return(&chain.MintResult{TxResult: chain.TxResult{TxHash: "0xmint", Confirmed: true}, TokenID: 7}, nil)

	svc := NewService(repo, mirror)
	result, err := svc.MintOnChain(context.Background(), company.ID, "")
	require.NoError(t, err)

	// The in-flight transaction is resumed; a second mint is never
	// submitted and the recorded hash is never overwritten.
	assert.Equal(t, int64(7), result.TokenID)
	mirror.AssertNotCalled(t, "SubmitMint", mock.Anything, mock.Anything)
	repo.AssertNotCalled(t, "SetMintSubmitted", mock.Anything, mock.Anything, mock.Anything)
	repo.AssertExpectations(t)
}

func TestDeactivate_OwnerOnly(t *testing.T) {
	repo := new(ledgertest.MockRepository)
	company := &ledger.Company{ID: uuid.New(), OwnerID: uuid.New(), IsActive: true}
	repo.On("GetCompany", mock.Anything, company.ID).Return(company, nil)
	repo.On("SetCompanyActive", mock.Anything, company.ID, false).Return(nil)

	svc := NewService(repo, nil)

	err := svc.Deactivate(context.Background(), company.ID, uuid.New())
	assert.Error(t, err)

	err = svc.Deactivate(context.Background(), company.ID, company.OwnerID)
	assert.NoError(t, err)
}
