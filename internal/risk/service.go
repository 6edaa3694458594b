package risk

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"

	"fundrise/invest-portal/invest-portal-backend/internal/ledger"
)

// Service assembles scoring inputs from the ledger, runs the engine, and
// persists every run as an append-only audit report. It is strictly a
// read-side consumer: the score never feeds back into valuation or totals.
type Service struct {
	repo ledger.Repository
}

func NewService(repo ledger.Repository) *Service {
	return &Service{repo: repo}
}

// VerificationRequest is the stored result of an external company-registry
// lookup. The lookup itself happens outside this service; this just records
// what it found, for the scorer to read.
type VerificationRequest struct {
	CompanyID             uuid.UUID       `json:"company_id"`
	RegistrationStatus    string          `json:"registration_status"`
	RegisteredAt          *time.Time      `json:"registered_at"`
	Directors             json.RawMessage `json:"directors"`
	ReportedRevenue       float64         `json:"reported_revenue"`
	BusinessEmailVerified bool            `json:"business_email_verified"`
}

// RecordVerification stores or replaces a company's registry record.
func (s *Service) RecordVerification(ctx context.Context, req VerificationRequest) (*ledger.CompanyVerification, error) {
	if _, err := s.repo.GetCompany(ctx, req.CompanyID); err != nil {
		return nil, err
	}

	v := &ledger.CompanyVerification{
		CompanyID:             req.CompanyID,
		RegistrationStatus:    req.RegistrationStatus,
		RegisteredAt:          req.RegisteredAt,
		ReportedRevenue:       req.ReportedRevenue,
		BusinessEmailVerified: req.BusinessEmailVerified,
	}
	if len(req.Directors) > 0 {
		v.Directors = datatypes.JSON(req.Directors)
	}
	if err := s.repo.UpsertVerification(ctx, v); err != nil {
		return nil, err
	}
	return v, nil
}

// AnalyzeCompany scores a company and records the report.
func (s *Service) AnalyzeCompany(ctx context.Context, companyID uuid.UUID) (*ledger.RiskReport, *Assessment, error) {
	company, err := s.repo.GetCompany(ctx, companyID)
	if err != nil {
		return nil, nil, err
	}

	verification, err := s.repo.GetVerification(ctx, companyID)
	if err != nil {
		return nil, nil, err
	}

	investments, err := s.repo.ListCompanyInvestments(ctx, companyID)
	if err != nil {
		return nil, nil, err
	}

	input := Input{
		HasVerification: verification != nil,
		InvestmentCount: len(investments),
		Now:             time.Now(),
	}
	if verification != nil {
		input.RegistrationActive = verification.RegistrationStatus == "active"
		input.RegisteredAt = verification.RegisteredAt
		input.DirectorCount = directorCount(verification)
		input.ReportedRevenue = verification.ReportedRevenue
		input.EmailVerified = verification.BusinessEmailVerified
	}

	assessment := Score(input)

	factors, _ := json.Marshal(assessment.Deductions)
	metrics, _ := json.Marshal(map[string]interface{}{
		"valuation":            company.Valuation,
		"total_investment":     company.TotalInvestment,
		"investor_count":       company.InvestorCount,
		"milestone_count":      company.MilestoneCount,
		"investment_count":     len(investments),
		"link_state":           company.LinkState,
		"blockchain_verified":  company.IsBlockchainVerified(),
		"has_verification":     input.HasVerification,
		"registration_active":  input.RegistrationActive,
		"reported_revenue":     input.ReportedRevenue,
		"email_verified":       input.EmailVerified,
	})

	report := &ledger.RiskReport{
		CompanyID: companyID,
		RiskScore: assessment.Score,
		RiskLevel: string(assessment.Level),
		Factors:   datatypes.JSON(factors),
		Metrics:   datatypes.JSON(metrics),
	}
	if err := s.repo.CreateRiskReport(ctx, report); err != nil {
		return nil, nil, err
	}

	return report, &assessment, nil
}

// ListReports returns a company's audit trail, newest first.
func (s *Service) ListReports(ctx context.Context, companyID uuid.UUID) ([]ledger.RiskReport, error) {
	if _, err := s.repo.GetCompany(ctx, companyID); err != nil {
		return nil, err
	}
	return s.repo.ListRiskReports(ctx, companyID)
}

// GetReport returns a single audit report.
func (s *Service) GetReport(ctx context.Context, id uuid.UUID) (*ledger.RiskReport, error) {
	return s.repo.GetRiskReport(ctx, id)
}

func directorCount(v *ledger.CompanyVerification) int {
	var directors []json.RawMessage
	if len(v.Directors) == 0 {
		return 0
	}
	if err := json.Unmarshal(v.Directors, &directors); err != nil {
		return 0
	}
	return len(directors)
}
