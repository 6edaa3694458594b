package ledger

import "errors"

// Shared error taxonomy for the accounting core. Handlers map these onto
// HTTP statuses; services wrap them with context via fmt.Errorf("%w").
var (
	ErrCompanyNotFound    = errors.New("company not found")
	ErrInvestmentNotFound = errors.New("investment not found")
	ErrMilestoneNotFound  = errors.New("milestone not found")
	ErrRiskReportNotFound = errors.New("risk report not found")

	ErrInvalidAmount    = errors.New("amount must be greater than zero")
	ErrInvalidValuation = errors.New("valuation must be greater than zero")

	ErrCompanyInactive = errors.New("company is not accepting investments")
	ErrSelfInvestment  = errors.New("owner may not invest in their own company")
	ErrAlreadyLinked   = errors.New("company is already linked to a chain token")

	// ErrBlockchainWrite is non-fatal for an investment unless the caller
	// declared the chain write mandatory.
	ErrBlockchainWrite = errors.New("blockchain write failed")

	// ErrBlockchainRead never flips verification state; the prior state is
	// simply reported alongside it.
	ErrBlockchainRead = errors.New("blockchain read failed")

	// ErrConfirmationTimeout means the transaction was submitted and its
	// hash recorded, but confirmation did not arrive within the bound.
	ErrConfirmationTimeout = errors.New("confirmation wait timed out")
)
