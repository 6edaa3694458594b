package ledger

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Repository is the data-access surface of the valuation ledger. The
// aggregate mutations are deliberately narrow: each one is a single
// server-side statement (or a guarded statement inside one transaction) so
// two concurrent writers can never interleave a read-modify-write and lose
// an update.
type Repository interface {
	CreateCompany(ctx context.Context, company *Company) error
	GetCompany(ctx context.Context, id uuid.UUID) (*Company, error)
	ListCompanies(ctx context.Context, activeOnly bool) ([]Company, error)
	SetCompanyActive(ctx context.Context, id uuid.UUID, active bool) error

	// SetMintSubmitted records the mint transaction hash before the
	// confirmation wait begins.
	SetMintSubmitted(ctx context.Context, id uuid.UUID, txHash string) error
	SetBlockchainLink(ctx context.Context, id uuid.UUID, tokenID int64, txHash string) error
	SetLinkState(ctx context.Context, id uuid.UUID, state LinkState) error
	ListLinkedUnverified(ctx context.Context, limit int) ([]Company, error)
	// ListPendingMints returns companies whose mint transaction was
	// submitted but whose token id was never recorded (interrupted
	// confirmation wait).
	ListPendingMints(ctx context.Context, limit int) ([]Company, error)

	// RecordInvestment persists the investment and updates both aggregates
	// in one transaction: an atomic server-side increment of
	// total_investment followed by a distinct-count recompute of
	// investor_count.
	RecordInvestment(ctx context.Context, inv *Investment) error
	GetInvestment(ctx context.Context, id uuid.UUID) (*Investment, error)
	ListCompanyInvestments(ctx context.Context, companyID uuid.UUID) ([]Investment, error)
	ListInvestorInvestments(ctx context.Context, investorID uuid.UUID) ([]Investment, error)
	SetInvestmentChainReceipt(ctx context.Context, id uuid.UUID, txHash string, verified bool) error

	CreateMilestone(ctx context.Context, m *Milestone) error
	GetMilestone(ctx context.Context, id uuid.UUID) (*Milestone, error)
	ListCompanyMilestones(ctx context.Context, companyID uuid.UUID) ([]Milestone, error)
	// ApplyMilestoneVerification flips the milestone to verified and applies
	// its valuation delta to the company. Returns false if the milestone was
	// already verified; the delta is never applied twice.
	ApplyMilestoneVerification(ctx context.Context, milestoneID, verifiedBy uuid.UUID, txHash *string) (bool, error)

	CreateRiskReport(ctx context.Context, report *RiskReport) error
	ListRiskReports(ctx context.Context, companyID uuid.UUID) ([]RiskReport, error)
	GetRiskReport(ctx context.Context, id uuid.UUID) (*RiskReport, error)

	GetVerification(ctx context.Context, companyID uuid.UUID) (*CompanyVerification, error)
	UpsertVerification(ctx context.Context, v *CompanyVerification) error
}

type gormRepository struct {
	db *gorm.DB
}

// NewRepository creates a ledger repository backed by GORM/Postgres.
func NewRepository(db *gorm.DB) Repository {
	return &gormRepository{db: db}
}

func (r *gormRepository) CreateCompany(ctx context.Context, company *Company) error {
	return r.db.WithContext(ctx).Create(company).Error
}

func (r *gormRepository) GetCompany(ctx context.Context, id uuid.UUID) (*Company, error) {
	var company Company
	err := r.db.WithContext(ctx).First(&company, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrCompanyNotFound
	}
	if err != nil {
		return nil, err
	}
	return &company, nil
}

func (r *gormRepository) ListCompanies(ctx context.Context, activeOnly bool) ([]Company, error) {
	query := r.db.WithContext(ctx).Order("created_at DESC")
	if activeOnly {
		query = query.Where("is_active = ?", true)
	}
	var companies []Company
	if err := query.Find(&companies).Error; err != nil {
		return nil, err
	}
	return companies, nil
}

func (r *gormRepository) SetCompanyActive(ctx context.Context, id uuid.UUID, active bool) error {
	result := r.db.WithContext(ctx).Model(&Company{}).
		Where("id = ?", id).
		Update("is_active", active)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrCompanyNotFound
	}
	return nil
}

func (r *gormRepository) SetMintSubmitted(ctx context.Context, id uuid.UUID, txHash string) error {
	result := r.db.WithContext(ctx).Model(&Company{}).
		Where("id = ?", id).
		Update("blockchain_tx_hash", txHash)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrCompanyNotFound
	}
	return nil
}

func (r *gormRepository) SetBlockchainLink(ctx context.Context, id uuid.UUID, tokenID int64, txHash string) error {
	result := r.db.WithContext(ctx).Model(&Company{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"blockchain_token_id": tokenID,
			"blockchain_tx_hash":  txHash,
			"link_state":          LinkStateLinkedUnverified,
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrCompanyNotFound
	}
	return nil
}

func (r *gormRepository) SetLinkState(ctx context.Context, id uuid.UUID, state LinkState) error {
	result := r.db.WithContext(ctx).Model(&Company{}).
		Where("id = ?", id).
		Update("link_state", state)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrCompanyNotFound
	}
	return nil
}

func (r *gormRepository) ListLinkedUnverified(ctx context.Context, limit int) ([]Company, error) {
	query := r.db.WithContext(ctx).
		Where("link_state = ?", LinkStateLinkedUnverified).
		Order("updated_at ASC")
	if limit > 0 {
		query = query.Limit(limit)
	}
	var companies []Company
	if err := query.Find(&companies).Error; err != nil {
		return nil, err
	}
	return companies, nil
}

func (r *gormRepository) ListPendingMints(ctx context.Context, limit int) ([]Company, error) {
	query := r.db.WithContext(ctx).
		Where("blockchain_tx_hash IS NOT NULL AND blockchain_token_id IS NULL").
		Order("updated_at ASC")
	if limit > 0 {
		query = query.Limit(limit)
	}
	var companies []Company
	if err := query.Find(&companies).Error; err != nil {
		return nil, err
	}
	return companies, nil
}

func (r *gormRepository) RecordInvestment(ctx context.Context, inv *Investment) error {
	if inv.Amount <= 0 {
		return ErrInvalidAmount
	}
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(inv).Error; err != nil {
			return err
		}

		// Server-side increment; never read-then-write from here.
		result := tx.Model(&Company{}).
			Where("id = ?", inv.CompanyID).
			Update("total_investment", gorm.Expr("total_investment + ?", inv.Amount))
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return ErrCompanyNotFound
		}

		// Distinct-count recompute rides the same transaction so the two
		// aggregates can never be observed out of step.
		return tx.Model(&Company{}).
			Where("id = ?", inv.CompanyID).
			Update("investor_count", tx.Session(&gorm.Session{NewDB: true}).
				Model(&Investment{}).
				Select("COUNT(DISTINCT investor_id)").
				Where("company_id = ?", inv.CompanyID)).Error
	})
}

func (r *gormRepository) GetInvestment(ctx context.Context, id uuid.UUID) (*Investment, error) {
	var inv Investment
	err := r.db.WithContext(ctx).First(&inv, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrInvestmentNotFound
	}
	if err != nil {
		return nil, err
	}
	return &inv, nil
}

func (r *gormRepository) ListCompanyInvestments(ctx context.Context, companyID uuid.UUID) ([]Investment, error) {
	var investments []Investment
	err := r.db.WithContext(ctx).
		Where("company_id = ?", companyID).
		Order("created_at DESC").
		Find(&investments).Error
	return investments, err
}

func (r *gormRepository) ListInvestorInvestments(ctx context.Context, investorID uuid.UUID) ([]Investment, error) {
	var investments []Investment
	err := r.db.WithContext(ctx).
		Where("investor_id = ?", investorID).
		Order("created_at DESC").
		Find(&investments).Error
	return investments, err
}

func (r *gormRepository) SetInvestmentChainReceipt(ctx context.Context, id uuid.UUID, txHash string, verified bool) error {
	result := r.db.WithContext(ctx).Model(&Investment{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"blockchain_tx_hash":     txHash,
			"is_blockchain_verified": verified,
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrInvestmentNotFound
	}
	return nil
}

func (r *gormRepository) CreateMilestone(ctx context.Context, m *Milestone) error {
	return r.db.WithContext(ctx).Create(m).Error
}

func (r *gormRepository) GetMilestone(ctx context.Context, id uuid.UUID) (*Milestone, error) {
	var m Milestone
	err := r.db.WithContext(ctx).First(&m, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrMilestoneNotFound
	}
	if err != nil {
		return nil, err
	}
	return &m, nil
}

func (r *gormRepository) ListCompanyMilestones(ctx context.Context, companyID uuid.UUID) ([]Milestone, error) {
	var milestones []Milestone
	err := r.db.WithContext(ctx).
		Where("company_id = ?", companyID).
		Order("created_at DESC").
		Find(&milestones).Error
	return milestones, err
}

func (r *gormRepository) ApplyMilestoneVerification(ctx context.Context, milestoneID, verifiedBy uuid.UUID, txHash *string) (bool, error) {
	applied := false
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var m Milestone
		if err := tx.First(&m, "id = ?", milestoneID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrMilestoneNotFound
			}
			return err
		}

		now := time.Now()
		updates := map[string]interface{}{
			"verified":    true,
			"verified_at": now,
			"verified_by": verifiedBy,
		}
		if txHash != nil {
			updates["blockchain_tx_hash"] = *txHash
		}

		// The verified=false guard is what makes the delta single-shot: a
		// second verification matches zero rows and applies nothing.
		result := tx.Model(&Milestone{}).
			Where("id = ? AND verified = ?", milestoneID, false).
			Updates(updates)
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return nil
		}

		// The delta may be negative but must never take the valuation to
		// zero or below; a verification that would is rolled back whole,
		// milestone flip included.
		company := tx.Model(&Company{}).
			Where("id = ? AND valuation + ? > 0", m.CompanyID, m.ValuationImpact).
			Updates(map[string]interface{}{
				"valuation":       gorm.Expr("valuation + ?", m.ValuationImpact),
				"milestone_count": gorm.Expr("milestone_count + 1"),
			})
		if company.Error != nil {
			return company.Error
		}
		if company.RowsAffected == 0 {
			return ErrInvalidValuation
		}

		applied = true
		return nil
	})
	return applied, err
}

func (r *gormRepository) CreateRiskReport(ctx context.Context, report *RiskReport) error {
	return r.db.WithContext(ctx).Create(report).Error
}

func (r *gormRepository) ListRiskReports(ctx context.Context, companyID uuid.UUID) ([]RiskReport, error) {
	var reports []RiskReport
	err := r.db.WithContext(ctx).
		Where("company_id = ?", companyID).
		Order("created_at DESC").
		Find(&reports).Error
	return reports, err
}

func (r *gormRepository) GetRiskReport(ctx context.Context, id uuid.UUID) (*RiskReport, error) {
	var report RiskReport
	err := r.db.WithContext(ctx).First(&report, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrRiskReportNotFound
	}
	if err != nil {
		return nil, err
	}
	return &report, nil
}

func (r *gormRepository) GetVerification(ctx context.Context, companyID uuid.UUID) (*CompanyVerification, error) {
	var v CompanyVerification
	err := r.db.WithContext(ctx).First(&v, "company_id = ?", companyID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &v, nil
}

func (r *gormRepository) UpsertVerification(ctx context.Context, v *CompanyVerification) error {
	// Single statement so concurrent submissions for the same company never
	// race into the unique index.
	return r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "company_id"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"registration_status", "registered_at", "directors",
			"reported_revenue", "business_email_verified", "updated_at",
		}),
	}).Create(v).Error
}
