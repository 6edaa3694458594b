package chain

import (
	"context"
	"fmt"
	"math/big"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/ethclient"
)

// Config contains the chain connection parameters. The client is built once
// at startup from this and injected wherever it is needed; there is no
// process-global instance.
type Config struct {
	Endpoint        string        `json:"endpoint"`
	ContractAddress string        `json:"contract_address"`
	OperatorKey     string        `json:"operator_key"`
	ConfirmTimeout  time.Duration `json:"confirm_timeout"`
	PollInterval    time.Duration `json:"poll_interval"`
}

// Confirmation is the receipt of a mined transaction.
type Confirmation struct {
	TxHash      string    `json:"tx_hash"`
	BlockNumber uint64    `json:"block_number"`
	GasUsed     uint64    `json:"gas_used"`
	Successful  bool      `json:"successful"`
	TokenID     *big.Int  `json:"token_id,omitempty"` // set for company mints
	ConfirmedAt time.Time `json:"confirmed_at"`
}

// CompanySnapshot is the contract's view of a company token.
type CompanySnapshot struct {
	TokenID         *big.Int  `json:"token_id"`
	Name            string    `json:"name"`
	Description     string    `json:"description"`
	Industry        string    `json:"industry"`
	Valuation       *big.Int  `json:"valuation"`
	TotalInvestment *big.Int  `json:"total_investment"`
	MilestoneCount  int64     `json:"milestone_count"`
	Owner           string    `json:"owner"`
	CreatedAt       time.Time `json:"created_at"`
	IsActive        bool      `json:"is_active"`
}

// ChainInvestment is a single on-chain investment record.
type ChainInvestment struct {
	CompanyTokenID      *big.Int  `json:"company_token_id"`
	Investor            string    `json:"investor"`
	Amount              *big.Int  `json:"amount"`
	Timestamp           time.Time `json:"timestamp"`
	OwnershipPercentage *big.Int  `json:"ownership_percentage"`
}

// ChainMilestone is a single on-chain milestone record.
type ChainMilestone struct {
	CompanyTokenID  *big.Int  `json:"company_token_id"`
	MilestoneType   string    `json:"milestone_type"`
	Description     string    `json:"description"`
	Timestamp       time.Time `json:"timestamp"`
	Verified        bool      `json:"verified"`
	ValuationImpact *big.Int  `json:"valuation_impact"`
}

// ContractClient is the raw call surface of the company token contract.
// Writes are submit-only: they return the transaction hash as soon as the
// node accepts the transaction, and confirmation is a separate call, so a
// caller can durably record the hash before it starts waiting.
type ContractClient interface {
	SubmitMintCompany(ctx context.Context, name, description, industry string, valuation *big.Int, tokenURI string) (string, error)
	SubmitInvest(ctx context.Context, tokenID, amount *big.Int) (string, error)
	SubmitCompleteMilestone(ctx context.Context, tokenID *big.Int, milestoneType, description string, valuationImpact *big.Int) (string, error)
	WaitConfirmation(ctx context.Context, txHash string) (*Confirmation, error)

	CompanySnapshot(ctx context.Context, tokenID *big.Int) (*CompanySnapshot, error)
	CompanyInvestments(ctx context.Context, tokenID *big.Int) ([]ChainInvestment, error)
	UserInvestments(ctx context.Context, wallet string) ([]*big.Int, error)
	CompanyMilestones(ctx context.Context, tokenID *big.Int) ([]ChainMilestone, error)
}

// The on-chain read methods return parallel arrays rather than arrays of
// structs; the client zips them back into records.
const contractABI = `[
  {"type":"function","name":"mintCompany","stateMutability":"nonpayable","inputs":[{"name":"name","type":"string"},{"name":"description","type":"string"},{"name":"industry","type":"string"},{"name":"valuation","type":"uint256"},{"name":"tokenURI","type":"string"}],"outputs":[{"name":"tokenId","type":"uint256"}]},
  {"type":"function","name":"invest","stateMutability":"payable","inputs":[{"name":"companyTokenId","type":"uint256"}],"outputs":[]},
  {"type":"function","name":"completeMilestone","stateMutability":"nonpayable","inputs":[{"name":"companyTokenId","type":"uint256"},{"name":"milestoneType","type":"string"},{"name":"description","type":"string"},{"name":"valuationImpact","type":"int256"}],"outputs":[]},
  {"type":"function","name":"getCompany","stateMutability":"view","inputs":[{"name":"tokenId","type":"uint256"}],"outputs":[{"name":"tokenId","type":"uint256"},{"name":"name","type":"string"},{"name":"description","type":"string"},{"name":"industry","type":"string"},{"name":"valuation","type":"uint256"},{"name":"totalInvestment","type":"uint256"},{"name":"milestoneCount","type":"uint256"},{"name":"owner","type":"address"},{"name":"createdAt","type":"uint256"},{"name":"isActive","type":"bool"}]},
  {"type":"function","name":"getCompanyInvestments","stateMutability":"view","inputs":[{"name":"tokenId","type":"uint256"}],"outputs":[{"name":"investors","type":"address[]"},{"name":"amounts","type":"uint256[]"},{"name":"timestamps","type":"uint256[]"},{"name":"ownershipPercentages","type":"uint256[]"}]},
  {"type":"function","name":"getUserInvestments","stateMutability":"view","inputs":[{"name":"investor","type":"address"}],"outputs":[{"name":"tokenIds","type":"uint256[]"}]},
  {"type":"function","name":"getCompanyMilestones","stateMutability":"view","inputs":[{"name":"tokenId","type":"uint256"}],"outputs":[{"name":"milestoneTypes","type":"string[]"},{"name":"descriptions","type":"string[]"},{"name":"timestamps","type":"uint256[]"},{"name":"verified","type":"bool[]"},{"name":"valuationImpacts","type":"int256[]"}]},
  {"type":"event","name":"CompanyMinted","inputs":[{"name":"tokenId","type":"uint256","indexed":true},{"name":"owner","type":"address","indexed":true}],"anonymous":false}
]`

// EVMClient implements ContractClient against an EVM node.
type EVMClient struct {
	eth          *ethclient.Client
	contract     *bind.BoundContract
	parsedABI    abi.ABI
	address      common.Address
	signer       *bind.TransactOpts
	pollInterval time.Duration
}

// NewEVMClient dials the configured endpoint and binds the company token
// contract. Without an operator key the client is read-only; write calls
// fail rather than signing with an implicit default identity.
func NewEVMClient(ctx context.Context, cfg Config) (*EVMClient, error) {
	eth, err := ethclient.DialContext(ctx, cfg.Endpoint)
	if err != nil {
		return nil, fmt.Errorf("failed to dial chain endpoint: %w", err)
	}

	parsed, err := abi.JSON(strings.NewReader(contractABI))
	if err != nil {
		return nil, fmt.Errorf("failed to parse contract ABI: %w", err)
	}

	address := common.HexToAddress(cfg.ContractAddress)
	contract := bind.NewBoundContract(address, parsed, eth, eth, eth)

	var signer *bind.TransactOpts
	if cfg.OperatorKey != "" {
		key, err := crypto.HexToECDSA(strings.TrimPrefix(cfg.OperatorKey, "0x"))
		if err != nil {
			return nil, fmt.Errorf("failed to parse operator key: %w", err)
		}
		chainID, err := eth.ChainID(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to query chain id: %w", err)
		}
		signer, err = bind.NewKeyedTransactorWithChainID(key, chainID)
		if err != nil {
			return nil, fmt.Errorf("failed to build transactor: %w", err)
		}
	}

	pollInterval := cfg.PollInterval
	if pollInterval <= 0 {
		pollInterval = 2 * time.Second
	}

	return &EVMClient{
		eth:          eth,
		contract:     contract,
		parsedABI:    parsed,
		address:      address,
		signer:       signer,
		pollInterval: pollInterval,
	}, nil
}

func (c *EVMClient) txOpts(ctx context.Context, value *big.Int) (*bind.TransactOpts, error) {
	if c.signer == nil {
		return nil, fmt.Errorf("client has no signing credential configured")
	}
	opts := *c.signer
	opts.Context = ctx
	opts.Value = value
	return &opts, nil
}

func (c *EVMClient) SubmitMintCompany(ctx context.Context, name, description, industry string, valuation *big.Int, tokenURI string) (string, error) {
	opts, err := c.txOpts(ctx, nil)
	if err != nil {
		return "", err
	}
	tx, err := c.contract.Transact(opts, "mintCompany", name, description, industry, valuation, tokenURI)
	if err != nil {
		return "", fmt.Errorf("failed to submit mintCompany: %w", err)
	}
	return tx.Hash().Hex(), nil
}

func (c *EVMClient) SubmitInvest(ctx context.Context, tokenID, amount *big.Int) (string, error) {
	opts, err := c.txOpts(ctx, amount)
	if err != nil {
		return "", err
	}
	tx, err := c.contract.Transact(opts, "invest", tokenID)
	if err != nil {
		return "", fmt.Errorf("failed to submit invest: %w", err)
	}
	return tx.Hash().Hex(), nil
}

func (c *EVMClient) SubmitCompleteMilestone(ctx context.Context, tokenID *big.Int, milestoneType, description string, valuationImpact *big.Int) (string, error) {
	opts, err := c.txOpts(ctx, nil)
	if err != nil {
		return "", err
	}
	tx, err := c.contract.Transact(opts, "completeMilestone", tokenID, milestoneType, description, valuationImpact)
	if err != nil {
		return "", fmt.Errorf("failed to submit completeMilestone: %w", err)
	}
	return tx.Hash().Hex(), nil
}

// WaitConfirmation polls for the transaction receipt until the context is
// cancelled. The caller owns the deadline.
func (c *EVMClient) WaitConfirmation(ctx context.Context, txHash string) (*Confirmation, error) {
	hash := common.HexToHash(txHash)
	ticker := time.NewTicker(c.pollInterval)
	defer ticker.Stop()

	for {
		receipt, err := c.eth.TransactionReceipt(ctx, hash)
		if err == nil && receipt != nil {
			conf := &Confirmation{
				TxHash:      txHash,
				BlockNumber: receipt.BlockNumber.Uint64(),
				GasUsed:     receipt.GasUsed,
				Successful:  receipt.Status == 1,
				ConfirmedAt: time.Now(),
			}
			mintedEvent := c.parsedABI.Events["CompanyMinted"].ID
			for _, lg := range receipt.Logs {
				if lg.Address == c.address && len(lg.Topics) > 1 && lg.Topics[0] == mintedEvent {
					conf.TokenID = new(big.Int).SetBytes(lg.Topics[1].Bytes())
				}
			}
			if !conf.Successful {
				return conf, fmt.Errorf("transaction %s reverted", txHash)
			}
			return conf, nil
		}

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-ticker.C:
		}
	}
}

func (c *EVMClient) CompanySnapshot(ctx context.Context, tokenID *big.Int) (*CompanySnapshot, error) {
	var out []interface{}
	opts := &bind.CallOpts{Context: ctx}
	if err := c.contract.Call(opts, &out, "getCompany", tokenID); err != nil {
		return nil, fmt.Errorf("getCompany call failed: %w", err)
	}
	if len(out) != 10 {
		return nil, fmt.Errorf("getCompany returned %d values, want 10", len(out))
	}

	return &CompanySnapshot{
		TokenID:         out[0].(*big.Int),
		Name:            out[1].(string),
		Description:     out[2].(string),
		Industry:        out[3].(string),
		Valuation:       out[4].(*big.Int),
		TotalInvestment: out[5].(*big.Int),
		MilestoneCount:  out[6].(*big.Int).Int64(),
		Owner:           out[7].(common.Address).Hex(),
		CreatedAt:       time.Unix(out[8].(*big.Int).Int64(), 0),
		IsActive:        out[9].(bool),
	}, nil
}

func (c *EVMClient) CompanyInvestments(ctx context.Context, tokenID *big.Int) ([]ChainInvestment, error) {
	var out []interface{}
	opts := &bind.CallOpts{Context: ctx}
	if err := c.contract.Call(opts, &out, "getCompanyInvestments", tokenID); err != nil {
		return nil, fmt.Errorf("getCompanyInvestments call failed: %w", err)
	}
	if len(out) != 4 {
		return nil, fmt.Errorf("getCompanyInvestments returned %d values, want 4", len(out))
	}

	investors := out[0].([]common.Address)
	amounts := out[1].([]*big.Int)
	timestamps := out[2].([]*big.Int)
	percentages := out[3].([]*big.Int)

	records := make([]ChainInvestment, len(investors))
	for i := range investors {
		records[i] = ChainInvestment{
			CompanyTokenID:      tokenID,
			Investor:            investors[i].Hex(),
			Amount:              amounts[i],
			Timestamp:           time.Unix(timestamps[i].Int64(), 0),
			OwnershipPercentage: percentages[i],
		}
	}
	return records, nil
}

func (c *EVMClient) UserInvestments(ctx context.Context, wallet string) ([]*big.Int, error) {
	var out []interface{}
	opts := &bind.CallOpts{Context: ctx}
	if err := c.contract.Call(opts, &out, "getUserInvestments", common.HexToAddress(wallet)); err != nil {
		return nil, fmt.Errorf("getUserInvestments call failed: %w", err)
	}
	if len(out) != 1 {
		return nil, fmt.Errorf("getUserInvestments returned %d values, want 1", len(out))
	}
	return out[0].([]*big.Int), nil
}

func (c *EVMClient) CompanyMilestones(ctx context.Context, tokenID *big.Int) ([]ChainMilestone, error) {
	var out []interface{}
	opts := &bind.CallOpts{Context: ctx}
	if err := c.contract.Call(opts, &out, "getCompanyMilestones", tokenID); err != nil {
		return nil, fmt.Errorf("getCompanyMilestones call failed: %w", err)
	}
	if len(out) != 5 {
		return nil, fmt.Errorf("getCompanyMilestones returned %d values, want 5", len(out))
	}

	types := out[0].([]string)
	descriptions := out[1].([]string)
	timestamps := out[2].([]*big.Int)
	verified := out[3].([]bool)
	impacts := out[4].([]*big.Int)

	records := make([]ChainMilestone, len(types))
	for i := range types {
		records[i] = ChainMilestone{
			CompanyTokenID:  tokenID,
			MilestoneType:   types[i],
			Description:     descriptions[i],
			Timestamp:       time.Unix(timestamps[i].Int64(), 0),
			Verified:        verified[i],
			ValuationImpact: impacts[i],
		}
	}
	return records, nil
}

// Close releases the underlying RPC connection.
func (c *EVMClient) Close() {
	c.eth.Close()
}
