package blockchain

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"strings"
	"sync"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/ethereum/go-ethereum/rpc"

	"github.com/daoservice/govsync/internal/adapters/abi/bindings"
	"github.com/daoservice/govsync/internal/domain"
	"github.com/daoservice/govsync/internal/domain/config"
	"github.com/daoservice/govsync/internal/domain/models"
)

// Backend is the subset of ethclient.Client the governance adapters use
type Backend interface {
	CallContract(ctx context.Context, msg ethereum.CallMsg, blockNumber *big.Int) ([]byte, error)
	EstimateGas(ctx context.Context, msg ethereum.CallMsg) (uint64, error)
	ChainID(ctx context.Context) (*big.Int, error)
	PendingNonceAt(ctx context.Context, account common.Address) (uint64, error)
	HeaderByNumber(ctx context.Context, number *big.Int) (*types.Header, error)
	SuggestGasTipCap(ctx context.Context) (*big.Int, error)
	SuggestGasPrice(ctx context.Context) (*big.Int, error)
	SendTransaction(ctx context.Context, tx *types.Transaction) error
	TransactionReceipt(ctx context.Context, txHash common.Hash) (*types.Receipt, error)
}

// dialFunc opens a backend and returns the function that closes it
type dialFunc func(ctx context.Context, rawURL string) (Backend, func(), error)

func dialEthclient(ctx context.Context, rawURL string) (Backend, func(), error) {
	client, err := ethclient.DialContext(ctx, rawURL)
	if err != nil {
		return nil, nil, err
	}
	return client, client.Close, nil
}

// Client dials the configured RPC endpoint on first use so commands that
// never touch the ledger work without one. Only a successful dial is kept,
// a failed one is retried on the next call.
type Client struct {
	cfg  config.NetworkConfig
	dial dialFunc

	connMu  sync.Mutex
	backend Backend
	closer  func()

	mu      sync.Mutex
	chainID *big.Int
}

// NewClient creates a lazily connected client
func NewClient(cfg *config.RuntimeConfig) *Client {
	return &Client{cfg: cfg.Network, dial: dialEthclient}
}

// NewClientWithBackend wraps an existing backend, used by tests and simulated chains
func NewClientWithBackend(cfg config.NetworkConfig, backend Backend) *Client {
	return &Client{cfg: cfg, backend: backend}
}

// ProvideClient creates the client and its cleanup for Wire
func ProvideClient(cfg *config.RuntimeConfig) (*Client, func()) {
	c := NewClient(cfg)
	return c, c.Close
}

// Backend returns the connected backend, dialing if no connection is open yet
func (c *Client) Backend(ctx context.Context) (Backend, error) {
	c.connMu.Lock()
	defer c.connMu.Unlock()
	if c.backend != nil {
		return c.backend, nil
	}
	if c.cfg.RPCURL == "" {
		return nil, fmt.Errorf("%w: no rpc url configured (set network.rpc_url or GOVSYNC_NETWORK_RPC_URL)", domain.ErrLedgerUnavailable)
	}

	backend, closer, err := c.dial(ctx, c.cfg.RPCURL)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to connect to RPC: %v", domain.ErrLedgerUnavailable, err)
	}
	c.backend = backend
	c.closer = closer
	return backend, nil
}

// ChainID resolves the network chain id once and checks it against configuration
func (c *Client) ChainID(ctx context.Context) (*big.Int, error) {
	backend, err := c.Backend(ctx)
	if err != nil {
		return nil, err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.chainID != nil {
		return c.chainID, nil
	}

	ctx, cancel := context.WithTimeout(ctx, c.cfg.ReadTimeout)
	defer cancel()

	networkChainID, err := backend.ChainID(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to get chain ID: %v", domain.ErrLedgerUnavailable, err)
	}

	// If chainID was 0, use the network's chain ID
	if c.cfg.ChainID != 0 && networkChainID.Uint64() != c.cfg.ChainID {
		return nil, fmt.Errorf("chain ID mismatch: expected %d, got %d", c.cfg.ChainID, networkChainID.Uint64())
	}
	c.chainID = networkChainID
	return networkChainID, nil
}

// Close releases the RPC connection if one was opened
func (c *Client) Close() {
	c.connMu.Lock()
	defer c.connMu.Unlock()
	if c.closer != nil {
		c.closer()
		c.closer = nil
	}
	c.backend = nil
}

var governorABI = bindings.NewGovernor()

// revertError extracts the revert reason from an RPC error. ok is false for
// transport failures.
func revertError(err error) (reason string, ok bool) {
	var dataErr rpc.DataError
	if errors.As(err, &dataErr) {
		if data, isString := dataErr.ErrorData().(string); isString {
			if raw, decErr := hexutil.Decode(data); decErr == nil && len(raw) >= 4 {
				return decodeRevert(raw), true
			}
		}
		return dataErr.Error(), true
	}
	if strings.Contains(strings.ToLower(err.Error()), "execution reverted") {
		return err.Error(), true
	}
	return "", false
}

// decodeRevert renders Error(string) and the Governor custom errors
func decodeRevert(raw []byte) string {
	if reason, err := abi.UnpackRevert(raw); err == nil {
		return reason
	}
	decoded, err := governorABI.UnpackError(raw)
	if err != nil {
		return "execution reverted: " + hexutil.Encode(raw)
	}
	switch e := decoded.(type) {
	case *bindings.GovernorGovernorInsufficientProposerVotes:
		return fmt.Sprintf("GovernorInsufficientProposerVotes: proposer %s has %s votes, below proposal threshold %s",
			e.Proposer.Hex(), e.Votes, e.Threshold)
	case *bindings.GovernorGovernorNonexistentProposal:
		return fmt.Sprintf("GovernorNonexistentProposal: unknown proposal id %s", e.ProposalId)
	case *bindings.GovernorGovernorUnexpectedProposalState:
		return fmt.Sprintf("GovernorUnexpectedProposalState: proposal %s is %s",
			e.ProposalId, models.ProposalState(e.Current))
	}
	return "execution reverted"
}
