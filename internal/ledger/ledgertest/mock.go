// Package ledgertest provides a testify mock of ledger.Repository shared by
// the service test suites.
package ledgertest

import (
	"context"

	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"

	"fundrise/invest-portal/invest-portal-backend/internal/ledger"
)

// MockRepository is a mock implementation of ledger.Repository
type MockRepository struct {
	mock.Mock
}

func (m *MockRepository) CreateCompany(ctx context.Context, company *ledger.Company) error {
	args := m.Called(ctx, company)
	return args.Error(0)
}

func (m *MockRepository) GetCompany(ctx context.Context, id uuid.UUID) (*ledger.Company, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*ledger.Company), args.Error(1)
}

func (m *MockRepository) ListCompanies(ctx context.Context, activeOnly bool) ([]ledger.Company, error) {
	args := m.Called(ctx, activeOnly)
	return args.Get(0).([]ledger.Company), args.Error(1)
}

func (m *MockRepository) SetCompanyActive(ctx context.Context, id uuid.UUID, active bool) error {
	args := m.Called(ctx, id, active)
	return args.Error(0)
}

func (m *MockRepository) SetMintSubmitted(ctx context.Context, id uuid.UUID, txHash string) error {
	args := m.Called(ctx, id, txHash)
	return args.Error(0)
}

func (m *MockRepository) SetBlockchainLink(ctx context.Context, id uuid.UUID, tokenID int64, txHash string) error {
	args := m.Called(ctx, id, tokenID, txHash)
	return args.Error(0)
}

func (m *MockRepository) SetLinkState(ctx context.Context, id uuid.UUID, state ledger.LinkState) error {
	args := m.Called(ctx, id, state)
	return args.Error(0)
}

func (m *MockRepository) ListLinkedUnverified(ctx context.Context, limit int) ([]ledger.Company, error) {
	args := m.Called(ctx, limit)
	return args.Get(0).([]ledger.Company), args.Error(1)
}

func (m *MockRepository) ListPendingMints(ctx context.Context, limit int) ([]ledger.Company, error) {
	args := m.Called(ctx, limit)
	return args.Get(0).([]ledger.Company), args.Error(1)
}

func (m *MockRepository) RecordInvestment(ctx context.Context, inv *ledger.Investment) error {
	args := m.Called(ctx, inv)
	return args.Error(0)
}

func (m *MockRepository) GetInvestment(ctx context.Context, id uuid.UUID) (*ledger.Investment, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*ledger.Investment), args.Error(1)
}

func (m *MockRepository) ListCompanyInvestments(ctx context.Context, companyID uuid.UUID) ([]ledger.Investment, error) {
	args := m.Called(ctx, companyID)
	return args.Get(0).([]ledger.Investment), args.Error(1)
}

func (m *MockRepository) ListInvestorInvestments(ctx context.Context, investorID uuid.UUID) ([]ledger.Investment, error) {
	args := m.Called(ctx, investorID)
	return args.Get(0).([]ledger.Investment), args.Error(1)
}

func (m *MockRepository) SetInvestmentChainReceipt(ctx context.Context, id uuid.UUID, txHash string, verified bool) error {
	args := m.Called(ctx, id, txHash, verified)
	return args.Error(0)
}

func (m *MockRepository) CreateMilestone(ctx context.Context, milestone *ledger.Milestone) error {
	args := m.Called(ctx, milestone)
	return args.Error(0)
}

func (m *MockRepository) GetMilestone(ctx context.Context, id uuid.UUID) (*ledger.Milestone, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*ledger.Milestone), args.Error(1)
}

func (m *MockRepository) ListCompanyMilestones(ctx context.Context, companyID uuid.UUID) ([]ledger.Milestone, error) {
	args := m.Called(ctx, companyID)
	return args.Get(0).([]ledger.Milestone), args.Error(1)
}

func (m *MockRepository) ApplyMilestoneVerification(ctx context.Context, milestoneID, verifiedBy uuid.UUID, txHash *string) (bool, error) {
	args := m.Called(ctx, milestoneID, verifiedBy, txHash)
	return args.Bool(0), args.Error(1)
}

func (m *MockRepository) CreateRiskReport(ctx context.Context, report *ledger.RiskReport) error {
	args := m.Called(ctx, report)
	return args.Error(0)
}

func (m *MockRepository) ListRiskReports(ctx context.Context, companyID uuid.UUID) ([]ledger.RiskReport, error) {
	args := m.Called(ctx, companyID)
	return args.Get(0).([]ledger.RiskReport), args.Error(1)
}

func (m *MockRepository) GetRiskReport(ctx context.Context, id uuid.UUID) (*ledger.RiskReport, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*ledger.RiskReport), args.Error(1)
}

func (m *MockRepository) GetVerification(ctx context.Context, companyID uuid.UUID) (*ledger.CompanyVerification, error) {
	args := m.Called(ctx, companyID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*ledger.CompanyVerification), args.Error(1)
}

func (m *MockRepository) UpsertVerification(ctx context.Context, v *ledger.CompanyVerification) error {
	args := m.Called(ctx, v)
	return args.Error(0)
}
