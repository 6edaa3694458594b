package chain

import (
	"context"
	"fmt"
	"math/big"
	"time"

	"fundrise/invest-portal/invest-portal-backend/internal/ledger"
)

// Mirror translates ledger-level operations into contract calls. Every
// write follows the same shape: submit, hand the transaction hash back to
// the caller, then wait for confirmation under a bounded timeout. A timeout
// still returns the hash so reconciliation can pick the transaction up
// later; the hash is never lost.
type Mirror struct {
	client         ContractClient
	confirmTimeout time.Duration
}

// NewMirror wraps a contract client with the mirror's confirmation policy.
func NewMirror(client ContractClient, confirmTimeout time.Duration) *Mirror {
	if confirmTimeout <= 0 {
		confirmTimeout = 2 * time.Minute
	}
	return &Mirror{client: client, confirmTimeout: confirmTimeout}
}

// TxResult is the receipt metadata of a mirror write.
type TxResult struct {
	TxHash      string `json:"tx_hash"`
	BlockNumber uint64 `json:"block_number,omitempty"`
	GasUsed     uint64 `json:"gas_used,omitempty"`
	Confirmed   bool   `json:"confirmed"`
}

// MintCompanyRequest carries the company fields mirrored onto the contract.
type MintCompanyRequest struct {
	Name        string  `json:"name"`
	Description string  `json:"description"`
	Industry    string  `json:"industry"`
	Valuation   float64 `json:"valuation"`
	TokenURI    string  `json:"token_uri"`
}

// MintResult is a TxResult plus the minted token id.
type MintResult struct {
	TxResult
	TokenID int64 `json:"token_id"`
}

// SubmitMint submits the company mint and returns its transaction hash
// without waiting for confirmation. Callers persist the hash first, then
// await the result with ResolveMint, so an interrupted wait never loses
// track of a submitted transaction.
func (m *Mirror) SubmitMint(ctx context.Context, req MintCompanyRequest) (string, error) {
	valuation, err := ToFixedPoint(req.Valuation)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ledger.ErrBlockchainWrite, err)
	}

	txHash, err := m.client.SubmitMintCompany(ctx, req.Name, req.Description, req.Industry, valuation, req.TokenURI)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ledger.ErrBlockchainWrite, err)
	}
	return txHash, nil
}

// Invest mirrors an investment into a company token.
func (m *Mirror) Invest(ctx context.Context, tokenID int64, amount float64) (*TxResult, error) {
	wei, err := ToFixedPoint(amount)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ledger.ErrBlockchainWrite, err)
	}

	txHash, err := m.client.SubmitInvest(ctx, big.NewInt(tokenID), wei)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ledger.ErrBlockchainWrite, err)
	}

	conf, err := m.awaitConfirmation(ctx, txHash)
	if err != nil {
		return &TxResult{TxHash: txHash}, err
	}
	return &TxResult{
		TxHash:      conf.TxHash,
		BlockNumber: conf.BlockNumber,
		GasUsed:     conf.GasUsed,
		Confirmed:   true,
	}, nil
}

// CompleteMilestone mirrors a verified milestone and its valuation delta.
func (m *Mirror) CompleteMilestone(ctx context.Context, tokenID int64, milestoneType, description string, valuationImpact float64) (*TxResult, error) {
	impact, err := ToFixedPoint(valuationImpact)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ledger.ErrBlockchainWrite, err)
	}

	txHash, err := m.client.SubmitCompleteMilestone(ctx, big.NewInt(tokenID), milestoneType, description, impact)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ledger.ErrBlockchainWrite, err)
	}

	conf, err := m.awaitConfirmation(ctx, txHash)
	if err != nil {
		return &TxResult{TxHash: txHash}, err
	}
	return &TxResult{
		TxHash:      conf.TxHash,
		BlockNumber: conf.BlockNumber,
		GasUsed:     conf.GasUsed,
		Confirmed:   true,
	}, nil
}

func (m *Mirror) awaitConfirmation(ctx context.Context, txHash string) (*Confirmation, error) {
	waitCtx, cancel := context.WithTimeout(ctx, m.confirmTimeout)
	defer cancel()

	conf, err := m.client.WaitConfirmation(waitCtx, txHash)
	if err != nil {
		if waitCtx.Err() != nil {
			return nil, fmt.Errorf("%w: tx %s submitted but unconfirmed after %s", ledger.ErrConfirmationTimeout, txHash, m.confirmTimeout)
		}
		return nil, fmt.Errorf("%w: %v", ledger.ErrBlockchainWrite, err)
	}
	return conf, nil
}

// ConfirmTx waits (bounded) for an already-submitted transaction. Used to
// finish investments whose original confirmation wait timed out.
func (m *Mirror) ConfirmTx(ctx context.Context, txHash string) (*TxResult, error) {
	conf, err := m.awaitConfirmation(ctx, txHash)
	if err != nil {
		return nil, err
	}
	return &TxResult{
		TxHash:      conf.TxHash,
		BlockNumber: conf.BlockNumber,
		GasUsed:     conf.GasUsed,
		Confirmed:   true,
	}, nil
}

// ResolveMint waits (bounded) for a submitted mint and returns its token
// id. Reconciliation uses the same call to recover mints whose original
// wait was interrupted.
func (m *Mirror) ResolveMint(ctx context.Context, txHash string) (*MintResult, error) {
	conf, err := m.awaitConfirmation(ctx, txHash)
	if err != nil {
		return nil, err
	}
	result := &MintResult{
		TxResult: TxResult{
			TxHash:      conf.TxHash,
			BlockNumber: conf.BlockNumber,
			GasUsed:     conf.GasUsed,
			Confirmed:   true,
		},
	}
	if conf.TokenID != nil {
		result.TokenID = conf.TokenID.Int64()
	}
	return result, nil
}

// GetCompany reads the live contract state of a company token.
func (m *Mirror) GetCompany(ctx context.Context, tokenID int64) (*CompanySnapshot, error) {
	snapshot, err := m.client.CompanySnapshot(ctx, big.NewInt(tokenID))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ledger.ErrBlockchainRead, err)
	}
	return snapshot, nil
}

// GetCompanyInvestments lists the on-chain investment records of a token.
func (m *Mirror) GetCompanyInvestments(ctx context.Context, tokenID int64) ([]ChainInvestment, error) {
	records, err := m.client.CompanyInvestments(ctx, big.NewInt(tokenID))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ledger.ErrBlockchainRead, err)
	}
	return records, nil
}

// GetUserInvestments lists token ids an investor wallet has invested in.
func (m *Mirror) GetUserInvestments(ctx context.Context, wallet string) ([]int64, error) {
	ids, err := m.client.UserInvestments(ctx, wallet)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ledger.ErrBlockchainRead, err)
	}
	out := make([]int64, len(ids))
	for i, id := range ids {
		out[i] = id.Int64()
	}
	return out, nil
}

// GetCompanyMilestones lists the on-chain milestone records of a token.
func (m *Mirror) GetCompanyMilestones(ctx context.Context, tokenID int64) ([]ChainMilestone, error) {
	records, err := m.client.CompanyMilestones(ctx, big.NewInt(tokenID))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ledger.ErrBlockchainRead, err)
	}
	return records, nil
}
