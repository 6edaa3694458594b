package ledger

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// LinkState tracks how far a company has progressed onto the chain mirror.
// It is an explicit enum so callers never have to infer state from which
// optional fields happen to be set.
type LinkState string

const (
	LinkStateUnlinked         LinkState = "unlinked"
	LinkStateLinkedUnverified LinkState = "linked_unverified"
	LinkStateLinkedVerified   LinkState = "linked_verified"
)

// InvestmentType distinguishes off-chain records from chain-mirrored ones
type InvestmentType string

const (
	InvestmentTypeTraditional InvestmentType = "traditional"
	InvestmentTypeBlockchain  InvestmentType = "blockchain"
)

// Company is the aggregate root of the valuation ledger
type Company struct {
	ID          uuid.UUID `json:"id" gorm:"type:uuid;default:gen_random_uuid();primaryKey"`
	Name        string    `json:"name" gorm:"not null"`
	Description string    `json:"description" gorm:"type:text"`
	Industry    string    `json:"industry" gorm:"index"`
	OwnerID     uuid.UUID `json:"owner_id" gorm:"type:uuid;not null;index"`

	// Aggregate state. Valuation moves only through verified milestones;
	// total_investment and investor_count only through the recorder's
	// atomic primitives.
	Valuation       float64 `json:"valuation" gorm:"type:decimal(18,2);not null"`
	TotalInvestment float64 `json:"total_investment" gorm:"type:decimal(18,2);not null;default:0"`
	InvestorCount   int     `json:"investor_count" gorm:"not null;default:0"`
	MilestoneCount  int     `json:"milestone_count" gorm:"not null;default:0"`

	// Chain linkage
	BlockchainTokenID *int64    `json:"blockchain_token_id" gorm:"index"`
	BlockchainTxHash  *string   `json:"blockchain_tx_hash" gorm:"index"`
	LinkState         LinkState `json:"link_state" gorm:"default:'unlinked';index"`

	IsActive  bool      `json:"is_active" gorm:"default:true;index"`
	CreatedAt time.Time `json:"created_at" gorm:"autoCreateTime"`
	UpdatedAt time.Time `json:"updated_at" gorm:"autoUpdateTime"`
}

// IsBlockchainVerified reports whether the company's token has been
// confirmed against live contract state.
func (c *Company) IsBlockchainVerified() bool {
	return c.LinkState == LinkStateLinkedVerified
}

// Investment is a single, immutable record of capital entering a company.
// Only the chain verification fields may be set after creation, when a
// deferred confirmation lands.
type Investment struct {
	ID         uuid.UUID `json:"id" gorm:"type:uuid;default:gen_random_uuid();primaryKey"`
	CompanyID  uuid.UUID `json:"company_id" gorm:"type:uuid;not null;index"`
	InvestorID uuid.UUID `json:"investor_id" gorm:"type:uuid;not null;index"`

	Amount float64 `json:"amount" gorm:"type:decimal(18,2);not null"`

	// Priced against the company valuation at the moment of investment,
	// never recomputed afterwards.
	OwnershipPercentage float64 `json:"ownership_percentage" gorm:"type:decimal(9,6);not null"`

	InvestmentType       InvestmentType `json:"investment_type" gorm:"default:'traditional';index"`
	BlockchainTxHash     *string        `json:"blockchain_tx_hash" gorm:"index"`
	IsBlockchainVerified bool           `json:"is_blockchain_verified" gorm:"default:false"`

	CreatedAt time.Time `json:"created_at" gorm:"autoCreateTime"`

	Company Company `json:"-" gorm:"foreignKey:CompanyID"`
}

// Milestone carries a signed valuation delta that is applied to the
// company exactly once, when the milestone transitions to verified.
type Milestone struct {
	ID            uuid.UUID `json:"id" gorm:"type:uuid;default:gen_random_uuid();primaryKey"`
	CompanyID     uuid.UUID `json:"company_id" gorm:"type:uuid;not null;index"`
	MilestoneType string    `json:"milestone_type" gorm:"not null"`
	Description   string    `json:"description" gorm:"type:text"`

	ValuationImpact float64 `json:"valuation_impact" gorm:"type:decimal(18,2);not null"`

	Verified         bool       `json:"verified" gorm:"default:false;index"`
	VerifiedAt       *time.Time `json:"verified_at"`
	VerifiedBy       *uuid.UUID `json:"verified_by" gorm:"type:uuid"`
	BlockchainTxHash *string    `json:"blockchain_tx_hash"`

	CreatedAt time.Time `json:"created_at" gorm:"autoCreateTime"`
	UpdatedAt time.Time `json:"updated_at" gorm:"autoUpdateTime"`

	Company Company `json:"-" gorm:"foreignKey:CompanyID"`
}

// RiskReport is an append-only audit record of a scoring run. It is derived
// state and never feeds back into the ledger aggregates.
type RiskReport struct {
	ID        uuid.UUID `json:"id" gorm:"type:uuid;default:gen_random_uuid();primaryKey"`
	CompanyID uuid.UUID `json:"company_id" gorm:"type:uuid;not null;index"`

	RiskScore int            `json:"risk_score" gorm:"not null"`
	RiskLevel string         `json:"risk_level" gorm:"not null;index"`
	Factors   datatypes.JSON `json:"factors" gorm:"default:'[]'"`
	Metrics   datatypes.JSON `json:"metrics" gorm:"default:'{}'"`

	CreatedAt time.Time `json:"created_at" gorm:"autoCreateTime"`

	Company Company `json:"-" gorm:"foreignKey:CompanyID"`
}

// CompanyVerification stores the result of an external company-registry
// lookup. The lookup itself happens outside this service; the risk engine
// only reads whatever was last stored here.
type CompanyVerification struct {
	ID        uuid.UUID `json:"id" gorm:"type:uuid;default:gen_random_uuid();primaryKey"`
	CompanyID uuid.UUID `json:"company_id" gorm:"type:uuid;not null;uniqueIndex"`

	RegistrationStatus    string         `json:"registration_status" gorm:"not null"`
	RegisteredAt          *time.Time     `json:"registered_at"`
	Directors             datatypes.JSON `json:"directors" gorm:"default:'[]'"`
	ReportedRevenue       float64        `json:"reported_revenue" gorm:"type:decimal(18,2);default:0"`
	BusinessEmailVerified bool           `json:"business_email_verified" gorm:"default:false"`

	CreatedAt time.Time `json:"created_at" gorm:"autoCreateTime"`
	UpdatedAt time.Time `json:"updated_at" gorm:"autoUpdateTime"`
}

func (c *Company) BeforeCreate(tx *gorm.DB) error {
	if c.ID == uuid.Nil {
		c.ID = uuid.New()
	}
	if c.LinkState == "" {
		c.LinkState = LinkStateUnlinked
	}
	return nil
}

func (i *Investment) BeforeCreate(tx *gorm.DB) error {
	if i.ID == uuid.Nil {
		i.ID = uuid.New()
	}
	return nil
}

func (m *Milestone) BeforeCreate(tx *gorm.DB) error {
	if m.ID == uuid.Nil {
		m.ID = uuid.New()
	}
	return nil
}

func (r *RiskReport) BeforeCreate(tx *gorm.DB) error {
	if r.ID == uuid.Nil {
		r.ID = uuid.New()
	}
	return nil
}

func (v *CompanyVerification) BeforeCreate(tx *gorm.DB) error {
	if v.ID == uuid.Nil {
		v.ID = uuid.New()
	}
	return nil
}
