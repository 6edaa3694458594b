package investing

import (
	"context"
	"errors"
	"sync"
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

func (m *mockMirror) Invest(ctx context.Context, tokenID int64, amount float64) (*chain.TxResult, error) {
	args := m.Called(ctx, tokenID, amount)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*chain.TxResult), args.Error(1)
}

func (m *mockMirror) ConfirmTx(ctx context.Context, txHash string) (*chain.TxResult, error) {
	args := m.Called(ctx, txHash)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*chain.TxResult), args.Error(1)
}

func (m *mockMirror) GetUserInvestments(ctx context.Context, wallet string) ([]int64, error) {
	args := m.Called(ctx, wallet)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]int64), args.Error(1)
}

func activeCompany(valuation float64) *ledger.Company {
	return &ledger.Company{
		ID:        uuid.New(),
		Name:      "Acme Robotics",
		OwnerID:   uuid.New(),
		Valuation: valuation,
		IsActive:  true,
		LinkState: ledger.LinkStateUnlinked,
	}
}

func TestOwnershipPercentage(t *testing.T) {
	// 100k into a 1M company buys 100k/1.1M of the post-money value.
	got := OwnershipPercentage(1_000_000, 100_000)
	assert.InDelta(t, 9.0909, got, 0.0001)

	// Equal amount and valuation is exactly half.
	assert.InDelta(t, 50.0, OwnershipPercentage(500_000, 500_000), 0.0001)
}

func TestRecordInvestment_InvalidAmount(t *testing.T) {
	svc := NewService(new(ledgertest.MockRepository), nil, nil)

	_, err := svc.RecordInvestment(context.Background(), RecordInvestmentRequest{
		CompanyID:  uuid.New(),
		InvestorID: uuid.New(),
		Amount:     0,
	})
	assert.ErrorIs(t, err, ledger.ErrInvalidAmount)

	_, err = svc.RecordInvestment(context.Background(), RecordInvestmentRequest{
		CompanyID:  uuid.New(),
		InvestorID: uuid.New(),
		Amount:     -50,
	})
	assert.ErrorIs(t, err, ledger.ErrInvalidAmount)
}

func TestRecordInvestment_SelfInvestment(t *testing.T) {
	repo := new(ledgertest.MockRepository)
	company := activeCompany(1_000_000)
	repo.On("GetCompany", mock.Anything, company.ID).Return(company, nil)

	svc := NewService(repo, nil, nil)
	_, err := svc.RecordInvestment(context.Background(), RecordInvestmentRequest{
		CompanyID:  company.ID,
		InvestorID: company.OwnerID,
		Amount:     10_000,
	})
	assert.ErrorIs(t, err, ledger.ErrSelfInvestment)
	repo.AssertNotCalled(t, "RecordInvestment", mock.Anything, mock.Anything)
}

func TestRecordInvestment_InactiveCompany(t *testing.T) {
	repo := new(ledgertest.MockRepository)
	company := activeCompany(1_000_000)
	company.IsActive = false
	repo.On("GetCompany", mock.Anything, company.ID).Return(company, nil)

	svc := NewService(repo, nil, nil)
	_, err := svc.RecordInvestment(context.Background(), RecordInvestmentRequest{
		CompanyID:  company.ID,
		InvestorID: uuid.New(),
		Amount:     10_000,
	})
	assert.ErrorIs(t, err, ledger.ErrCompanyInactive)
}

func TestRecordInvestment_OffChain(t *testing.T) {
	repo := new(ledgertest.MockRepository)
	company := activeCompany(1_000_000)
	repo.On("GetCompany", mock.Anything, company.ID).Return(company, nil)
	repo.On("RecordInvestment", mock.Anything, mock.AnythingOfType("*ledger.Investment")).Return(nil)

	svc := NewService(repo, nil, nil)
	result, err := svc.RecordInvestment(context.Background(), RecordInvestmentRequest{
		CompanyID:  company.ID,
		InvestorID: uuid.New(),
		Amount:     100_000,
	})
	require.NoError(t, err)

	inv := result.Investment
	assert.Equal(t, ledger.InvestmentTypeTraditional, inv.InvestmentType)
	assert.InDelta(t, 9.0909, inv.OwnershipPercentage, 0.0001)
	assert.Nil(t, inv.BlockchainTxHash)
	assert.False(t, inv.IsBlockchainVerified)
	assert.False(t, result.PendingConfirmation)
}

func TestRecordInvestment_ChainConfirmed(t *testing.T) {
	repo := new(ledgertest.MockRepository)
	company := activeCompany(1_000_000)
	tokenID := int64(7)
	company.BlockchainTokenID = &tokenID
	company.LinkState = ledger.LinkStateLinkedVerified
	repo.On("GetCompany", mock.Anything, company.ID).Return(company, nil)
	repo.On("RecordInvestment", mock.Anything, mock.AnythingOfType("*ledger.Investment")).Return(nil)

	mirror := new(mockMirror)
	mirror.On("Invest", mock.Anything, tokenID, 100_000.0).
		Return(&chain.TxResult{TxHash: "0xabc", Confirmed: true}, nil)

	svc := NewService(repo, mirror, nil)
	result, err := svc.RecordInvestment(context.Background(), RecordInvestmentRequest{
		CompanyID:      company.ID,
		InvestorID:     uuid.New(),
		Amount:         100_000,
		UseBlockchain:  true,
		InvestorWallet: "0x1111111111111111111111111111111111111111",
	})
	require.NoError(t, err)

	inv := result.Investment
	assert.Equal(t, ledger.InvestmentTypeBlockchain, inv.InvestmentType)
	require.NotNil(t, inv.BlockchainTxHash)
	assert.Equal(t, "0xabc", *inv.BlockchainTxHash)
	assert.True(t, inv.IsBlockchainVerified)
	assert.False(t, result.PendingConfirmation)
	mirror.AssertExpectations(t)
}

func TestRecordInvestment_ChainTimeoutKeepsHash(t *testing.T) {
	repo := new(ledgertest.MockRepository)
	company := activeCompany(1_000_000)
	tokenID := int64(7)
	company.BlockchainTokenID = &tokenID
	repo.On("GetCompany", mock.Anything, company.ID).Return(company, nil)
	repo.On("RecordInvestment", mock.Anything, mock.AnythingOfType("*ledger.Investment")).Return(nil)

	mirror := new(mockMirror)
	mirror.On("Invest", mock.Anything, tokenID, 100_000.0).
		Return(&chain.TxResult{TxHash: "0xdef"}, ledger.ErrConfirmationTimeout)

	svc := NewService(repo, mirror, nil)
	result, err := svc.RecordInvestment(context.Background(), RecordInvestmentRequest{
		CompanyID:      company.ID,
		InvestorID:     uuid.New(),
		Amount:         100_000,
		UseBlockchain:  true,
		InvestorWallet: "0x1111111111111111111111111111111111111111",
	})
	require.NoError(t, err)

	inv := result.Investment
	assert.Equal(t, ledger.InvestmentTypeBlockchain, inv.InvestmentType)
	require.NotNil(t, inv.BlockchainTxHash)
	assert.Equal(t, "0xdef", *inv.BlockchainTxHash)
	assert.False(t, inv.IsBlockchainVerified)
	assert.True(t, result.PendingConfirmation)
}

func TestRecordInvestment_ChainFailureDegrades(t *testing.T) {
	repo := new(ledgertest.MockRepository)
	company := activeCompany(1_000_000)
	tokenID := int64(7)
	company.BlockchainTokenID = &tokenID
	repo.On("GetCompany", mock.Anything, company.ID).Return(company, nil)
	repo.On("RecordInvestment", mock.Anything, mock.AnythingOfType("*ledger.Investment")).Return(nil)

	mirror := new(mockMirror)
	mirror.On("Invest", mock.Anything, tokenID, 100_000.0).
		Return(nil, errors.New("rpc unavailable"))

	svc := NewService(repo, mirror, nil)
	result, err := svc.RecordInvestment(context.Background(), RecordInvestmentRequest{
		CompanyID:      company.ID,
		InvestorID:     uuid.New(),
		Amount:         100_000,
		UseBlockchain:  true,
		InvestorWallet: "0x1111111111111111111111111111111111111111",
	})
	require.NoError(t, err)

	// Mirror failure falls back to an off-chain record.
	inv := result.Investment
	assert.Equal(t, ledger.InvestmentTypeTraditional, inv.InvestmentType)
	assert.Nil(t, inv.BlockchainTxHash)
	assert.False(t, inv.IsBlockchainVerified)
}

func TestRecordInvestment_MandatoryChainFailureAborts(t *testing.T) {
	repo := new(ledgertest.MockRepository)
	company := activeCompany(1_000_000)
	tokenID := int64(7)
	company.BlockchainTokenID = &tokenID
	repo.On("GetCompany", mock.Anything, company.ID).Return(company, nil)

	mirror := new(mockMirror)
	mirror.On("Invest", mock.Anything, tokenID, 100_000.0).
		Return(nil, errors.New("rpc unavailable"))

	svc := NewService(repo, mirror, nil)
	_, err := svc.RecordInvestment(context.Background(), RecordInvestmentRequest{
		CompanyID:         company.ID,
		InvestorID:        uuid.New(),
		Amount:            100_000,
		UseBlockchain:     true,
		RequireBlockchain: true,
		InvestorWallet:    "0x1111111111111111111111111111111111111111",
	})
	assert.ErrorIs(t, err, ledger.ErrBlockchainWrite)
	repo.AssertNotCalled(t, "RecordInvestment", mock.Anything, mock.Anything)
}

func TestRecordInvestment_NonPositiveValuation(t *testing.T) {
	for _, valuation := range []float64{0, -100_000} {
		repo := new(ledgertest.MockRepository)
		company := activeCompany(valuation)
		repo.On("GetCompany", mock.Anything, company.ID).Return(company, nil)

		svc := NewService(repo, nil, nil)
		_, err := svc.RecordInvestment(context.Background(), RecordInvestmentRequest{
			CompanyID:  company.ID,
			InvestorID: uuid.New(),
			Amount:     50_000,
		})
		assert.ErrorIs(t, err, ledger.ErrInvalidValuation, "valuation %v", valuation)
		repo.AssertNotCalled(t, "RecordInvestment", mock.Anything, mock.Anything)
	}
}

func TestRecordInvestment_MandatoryUnlinkedAborts(t *testing.T) {
	repo := new(ledgertest.MockRepository)
	company := activeCompany(1_000_000) // no token id
	repo.On("GetCompany", mock.Anything, company.ID).Return(company, nil)

	mirror := new(mockMirror)
	svc := NewService(repo, mirror, nil)
	_, err := svc.RecordInvestment(context.Background(), RecordInvestmentRequest{
		CompanyID:         company.ID,
		InvestorID:        uuid.New(),
		Amount:            100_000,
		RequireBlockchain: true,
		InvestorWallet:    "0x1111111111111111111111111111111111111111",
	})
	assert.ErrorIs(t, err, ledger.ErrBlockchainWrite)
	mirror.AssertNotCalled(t, "Invest", mock.Anything, mock.Anything, mock.Anything)
	repo.AssertNotCalled(t, "RecordInvestment", mock.Anything, mock.Anything)
}

func TestRecordInvestment_MandatoryNoMirrorAborts(t *testing.T) {
	repo := new(ledgertest.MockRepository)
	company := activeCompany(1_000_000)
	tokenID := int64(7)
	company.BlockchainTokenID = &tokenID
	repo.On("GetCompany", mock.Anything, company.ID).Return(company, nil)

	svc := NewService(repo, nil, nil)
	_, err := svc.RecordInvestment(context.Background(), RecordInvestmentRequest{
		CompanyID:         company.ID,
		InvestorID:        uuid.New(),
		Amount:            100_000,
		RequireBlockchain: true,
		InvestorWallet:    "0x1111111111111111111111111111111111111111",
	})
	assert.ErrorIs(t, err, ledger.ErrBlockchainWrite)
	repo.AssertNotCalled(t, "RecordInvestment", mock.Anything, mock.Anything)
}

func TestRecordInvestment_MandatoryMissingWalletAborts(t *testing.T) {
	repo := new(ledgertest.MockRepository)
	company := activeCompany(1_000_000)
	tokenID := int64(7)
	company.BlockchainTokenID = &tokenID
	repo.On("GetCompany", mock.Anything, company.ID).Return(company, nil)

	mirror := new(mockMirror)
	svc := NewService(repo, mirror, nil)
	_, err := svc.RecordInvestment(context.Background(), RecordInvestmentRequest{
		CompanyID:         company.ID,
		InvestorID:        uuid.New(),
		Amount:            100_000,
		RequireBlockchain: true,
	})
	assert.ErrorIs(t, err, ledger.ErrBlockchainWrite)
	mirror.AssertNotCalled(t, "Invest", mock.Anything, mock.Anything, mock.Anything)
	repo.AssertNotCalled(t, "RecordInvestment", mock.Anything, mock.Anything)
}

func TestConfirmPendingInvestment(t *testing.T) {
	repo := new(ledgertest.MockRepository)
	hash := "0xdef"
	pending := &ledger.Investment{
		ID:               uuid.New(),
		CompanyID:        uuid.New(),
		InvestorID:       uuid.New(),
		Amount:           100_000,
		InvestmentType:   ledger.InvestmentTypeBlockchain,
		BlockchainTxHash: &hash,
	}
	confirmed := *pending
	confirmed.IsBlockchainVerified = true

	repo.On("GetInvestment", mock.Anything, pending.ID).Return(pending, nil).Once()
	repo.On("SetInvestmentChainReceipt", mock.Anything, pending.ID, "0xdef", true).Return(nil)
	repo.On("GetInvestment", mock.Anything, pending.ID).Return(&confirmed, nil).Once()

	mirror := new(mockMirror)
	mirror.On("ConfirmTx", mock.Anything, "0xdef").
		Return(&chain.TxResult{TxHash: "0xdef", Confirmed: true}, nil)

	svc := NewService(repo, mirror, nil)
	result, err := svc.ConfirmPendingInvestment(context.Background(), pending.ID)
	require.NoError(t, err)
	assert.True(t, result.IsBlockchainVerified)
	repo.AssertExpectations(t)
}

func TestConfirmPendingInvestment_AlreadyVerified(t *testing.T) {
	repo := new(ledgertest.MockRepository)
	hash := "0xdef"
	investment := &ledger.Investment{
		ID:                   uuid.New(),
		BlockchainTxHash:     &hash,
		IsBlockchainVerified: true,
	}
	repo.On("GetInvestment", mock.Anything, investment.ID).Return(investment, nil)

	svc := NewService(repo, new(mockMirror), nil)
	result, err := svc.ConfirmPendingInvestment(context.Background(), investment.ID)
	require.NoError(t, err)
	assert.True(t, result.IsBlockchainVerified)
	repo.AssertNotCalled(t, "SetInvestmentChainReceipt", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestWalletHoldings(t *testing.T) {
	mirror := new(mockMirror)
	mirror.On("GetUserInvestments", mock.Anything, "0xwallet").Return([]int64{3, 7}, nil)

	svc := NewService(new(ledgertest.MockRepository), mirror, nil)
	ids, err := svc.WalletHoldings(context.Background(), "0xwallet")
	require.NoError(t, err)
	assert.Equal(t, []int64{3, 7}, ids)
}

func TestWalletHoldings_NoMirror(t *testing.T) {
	svc := NewService(new(ledgertest.MockRepository), nil, nil)
	_, err := svc.WalletHoldings(context.Background(), "0xwallet")
	assert.ErrorIs(t, err, ledger.ErrBlockchainRead)
}

// fakeRepo is an in-memory repository whose RecordInvestment applies the
// same aggregate rules the SQL implementation enforces server-side.
type fakeRepo struct {
	ledgertest.MockRepository

	mu        sync.Mutex
	company   ledger.Company
	investors map[uuid.UUID]struct{}
}

func newFakeRepo(company ledger.Company) *fakeRepo {
	return &fakeRepo{company: company, investors: make(map[uuid.UUID]struct{})}
}

func (f *fakeRepo) GetCompany(ctx context.Context, id uuid.UUID) (*ledger.Company, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	c := f.company
	return &c, nil
}

func (f *fakeRepo) RecordInvestment(ctx context.Context, inv *ledger.Investment) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.company.TotalInvestment += inv.Amount
	f.investors[inv.InvestorID] = struct{}{}
	f.company.InvestorCount = len(f.investors)
	return nil
}

func TestRecordInvestment_ConcurrentAggregates(t *testing.T) {
	company := *activeCompany(1_000_000)
	repo := newFakeRepo(company)
	svc := NewService(repo, nil, nil)

	const writers = 50
	investors := make([]uuid.UUID, writers)
	for i := range investors {
		investors[i] = uuid.New()
	}
	// Two writers share an investor id; the distinct count must see one.
	investors[writers-1] = investors[0]

	var wg sync.WaitGroup
	for i := 0; i < writers; i++ {
		wg.Add(1)
		go func(investor uuid.UUID) {
			defer wg.Done()
			_, err := svc.RecordInvestment(context.Background(), RecordInvestmentRequest{
				CompanyID:  company.ID,
				InvestorID: investor,
				Amount:     1_000,
			})
			assert.NoError(t, err)
		}(investors[i])
	}
	wg.Wait()

	final, err := repo.GetCompany(context.Background(), company.ID)
	require.NoError(t, err)
	assert.Equal(t, float64(writers*1_000), final.TotalInvestment)
	assert.Equal(t, writers-1, final.InvestorCount)
}
