package blockchain

import (
	"context"
	"errors"
	"math/big"
	"sync/atomic"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/daoservice/govsync/internal/adapters/calldata"
	"github.com/daoservice/govsync/internal/domain"
	"github.com/daoservice/govsync/internal/domain/config"
	"github.com/daoservice/govsync/internal/domain/models"
	"github.com/daoservice/govsync/internal/logging"
)

const (
	governorAddr = "0x5FbDB2315678afecb367f032d93F642f64180aa3"
	tokenAddr    = "0xe7f1725E7734CE288F8367e1Bb143E90bb3F0512"
	// anvil account #0
	testKey = "0xac0974bec39a17e36ba4a6b4d238ff944bacb478cbed5efcae784d7bf4f2ff80"
)

// revertErr mimics the JSON-RPC error go-ethereum returns for reverted calls
type revertErr struct {
	data string
}

func (e revertErr) Error() string          { return "execution reverted" }
func (e revertErr) ErrorData() interface{} { return e.data }

type fakeBackend struct {
	call     func(msg ethereum.CallMsg) ([]byte, error)
	calls    atomic.Int32
	sent     []*types.Transaction
	receipts atomic.Int32
	status   uint64
}

func (f *fakeBackend) CallContract(ctx context.Context, msg ethereum.CallMsg, _ *big.Int) ([]byte, error) {
	f.calls.Add(1)
	if f.call == nil {
		return nil, nil
	}
	return f.call(msg)
}

func (f *fakeBackend) EstimateGas(context.Context, ethereum.CallMsg) (uint64, error) {
	return 100_000, nil
}

func (f *fakeBackend) ChainID(context.Context) (*big.Int, error) { return big.NewInt(31337), nil }

func (f *fakeBackend) PendingNonceAt(context.Context, common.Address) (uint64, error) {
	return 7, nil
}

func (f *fakeBackend) HeaderByNumber(context.Context, *big.Int) (*types.Header, error) {
	return &types.Header{BaseFee: big.NewInt(1_000_000_000)}, nil
}

func (f *fakeBackend) SuggestGasTipCap(context.Context) (*big.Int, error) {
	return big.NewInt(1_000_000), nil
}

func (f *fakeBackend) SuggestGasPrice(context.Context) (*big.Int, error) {
	return big.NewInt(2_000_000_000), nil
}

func (f *fakeBackend) SendTransaction(_ context.Context, tx *types.Transaction) error {
	f.sent = append(f.sent, tx)
	return nil
}

func (f *fakeBackend) TransactionReceipt(context.Context, common.Hash) (*types.Receipt, error) {
	// first poll sees a pending transaction
	if f.receipts.Add(1) == 1 {
		return nil, ethereum.NotFound
	}
	return &types.Receipt{Status: f.status, BlockNumber: big.NewInt(12), GasUsed: 90_000}, nil
}

func testNetwork() config.NetworkConfig {
	return config.NetworkConfig{
		RPCURL:       "http://127.0.0.1:8545",
		ReadTimeout:  time.Second,
		WriteTimeout: 5 * time.Second,
		ReceiptPoll:  time.Millisecond,
	}
}

func encodeUint(t *testing.T, v uint64) []byte {
	t.Helper()
	typ, err := abi.NewType("uint256", "", nil)
	require.NoError(t, err)
	out, err := abi.Arguments{{Type: typ}}.Pack(new(big.Int).SetUint64(v))
	require.NoError(t, err)
	return out
}

func TestGovernorReader_ReadProposalState(t *testing.T) {
	ctx := context.Background()

	t.Run("returns the decoded state", func(t *testing.T) {
		backend := &fakeBackend{call: func(msg ethereum.CallMsg) ([]byte, error) {
			assert.Equal(t, common.HexToAddress(governorAddr), *msg.To)
			assert.Equal(t, "0x3e4f49e6", hexutil.Encode(msg.Data[:4]))
			return encodeUint(t, 4), nil
		}}
		r := NewGovernorReader(NewClientWithBackend(testNetwork(), backend), logging.Discard())

		state, err := r.ReadProposalState(ctx, governorAddr, "42")
		require.NoError(t, err)
		assert.Equal(t, models.ProposalStateSucceeded, state)
	})

	for _, id := range []string{"", "0", "abc", "-5"} {
		t.Run("rejects id "+id+" without I/O", func(t *testing.T) {
			backend := &fakeBackend{}
			r := NewGovernorReader(NewClientWithBackend(testNetwork(), backend), logging.Discard())

			_, err := r.ReadProposalState(ctx, governorAddr, id)
			assert.ErrorIs(t, err, domain.ErrInvalidProposal)
			assert.Equal(t, int32(0), backend.calls.Load())
		})
	}

	t.Run("nonexistent proposal revert is invalid", func(t *testing.T) {
		revert := hexutil.Encode(append(
			common.FromHex("0x6ad06075"),
			encodeUint(t, 42)...,
		))
		backend := &fakeBackend{call: func(ethereum.CallMsg) ([]byte, error) {
			return nil, revertErr{data: revert}
		}}
		r := NewGovernorReader(NewClientWithBackend(testNetwork(), backend), logging.Discard())

		_, err := r.ReadProposalState(ctx, governorAddr, "42")
		assert.ErrorIs(t, err, domain.ErrInvalidProposal)
		assert.Contains(t, err.Error(), "GovernorNonexistentProposal")
	})

	t.Run("transport failure is unavailable", func(t *testing.T) {
		backend := &fakeBackend{call: func(ethereum.CallMsg) ([]byte, error) {
			return nil, errors.New("connection refused")
		}}
		r := NewGovernorReader(NewClientWithBackend(testNetwork(), backend), logging.Discard())

		_, err := r.ReadProposalState(ctx, governorAddr, "42")
		assert.ErrorIs(t, err, domain.ErrLedgerUnavailable)
		assert.NotErrorIs(t, err, domain.ErrInvalidProposal)
	})

	t.Run("timeout is unavailable", func(t *testing.T) {
		backend := &fakeBackend{call: func(ethereum.CallMsg) ([]byte, error) {
			return nil, context.DeadlineExceeded
		}}
		r := NewGovernorReader(NewClientWithBackend(testNetwork(), backend), logging.Discard())

		_, err := r.ReadProposalState(ctx, governorAddr, "42")
		assert.ErrorIs(t, err, domain.ErrLedgerUnavailable)
	})

	t.Run("missing rpc url is unavailable", func(t *testing.T) {
		r := NewGovernorReader(NewClient(&config.RuntimeConfig{}), logging.Discard())

		_, err := r.ReadProposalState(ctx, governorAddr, "42")
		assert.ErrorIs(t, err, domain.ErrLedgerUnavailable)
	})
}

func TestClient_RetriesDialAfterFailure(t *testing.T) {
	ctx := context.Background()
	backend := &fakeBackend{call: func(ethereum.CallMsg) ([]byte, error) {
		return encodeUint(t, 1), nil
	}}

	var dials, closes atomic.Int32
	client := &Client{cfg: testNetwork(), dial: func(_ context.Context, rawURL string) (Backend, func(), error) {
		assert.Equal(t, "http://127.0.0.1:8545", rawURL)
		if dials.Add(1) == 1 {
			return nil, nil, errors.New("dial tcp 127.0.0.1:8545: connect: connection refused")
		}
		return backend, func() { closes.Add(1) }, nil
	}}
	r := NewGovernorReader(client, logging.Discard())

	_, err := r.ReadProposalState(ctx, governorAddr, "42")
	require.ErrorIs(t, err, domain.ErrLedgerUnavailable)
	assert.Contains(t, err.Error(), "connection refused")

	state, err := r.ReadProposalState(ctx, governorAddr, "42")
	require.NoError(t, err)
	assert.Equal(t, models.ProposalStateActive, state)

	// the open connection is reused
	_, err = r.ReadProposalState(ctx, governorAddr, "42")
	require.NoError(t, err)
	assert.Equal(t, int32(2), dials.Load())

	client.Close()
	client.Close()
	assert.Equal(t, int32(1), closes.Load())
}

func TestGovernorReader_HashProposal(t *testing.T) {
	data, err := calldata.BuildTransfer("0x70997970C51812dc3A010C7d01b50e0d17dc79C8", "1")
	require.NoError(t, err)

	backend := &fakeBackend{call: func(msg ethereum.CallMsg) ([]byte, error) {
		assert.Equal(t, "0xc59057e4", hexutil.Encode(msg.Data[:4]))
		return encodeUint(t, 987654321), nil
	}}
	r := NewGovernorReader(NewClientWithBackend(testNetwork(), backend), logging.Discard())

	id, err := r.HashProposal(context.Background(), governorAddr, models.ProposalCall{
		Targets:         []string{tokenAddr},
		Values:          []string{"0"},
		Calldatas:       []string{hexutil.Encode(data)},
		DescriptionHash: calldata.DescriptionHash("Transfer treasury funds"),
	})
	require.NoError(t, err)
	assert.Equal(t, "987654321", id)

	_, err = r.HashProposal(context.Background(), governorAddr, models.ProposalCall{
		Targets:         []string{tokenAddr},
		Values:          []string{"0", "1"},
		Calldatas:       []string{hexutil.Encode(data)},
		DescriptionHash: calldata.DescriptionHash("x"),
	})
	assert.ErrorIs(t, err, domain.ErrValidation)
}

func newTestWriter(t *testing.T, backend *fakeBackend) *GovernorWriter {
	t.Helper()
	signer, err := NewSigner(&config.RuntimeConfig{Signer: config.SignerConfig{PrivateKey: testKey}})
	require.NoError(t, err)
	return NewGovernorWriter(NewClientWithBackend(testNetwork(), backend), signer, logging.Discard())
}

func TestGovernorWriter(t *testing.T) {
	ctx := context.Background()

	t.Run("signer address is derived from the key", func(t *testing.T) {
		w := newTestWriter(t, &fakeBackend{})
		addr, err := w.SignerAddress()
		require.NoError(t, err)
		assert.Equal(t, "0xf39Fd6e51aad88F6F4ce6aB8827279cffFb92266", addr)
	})

	t.Run("delegate signs and waits for the receipt", func(t *testing.T) {
		backend := &fakeBackend{status: types.ReceiptStatusSuccessful}
		w := newTestWriter(t, backend)

		res, err := w.SubmitDelegate(ctx, tokenAddr, "0xf39Fd6e51aad88F6F4ce6aB8827279cffFb92266")
		require.NoError(t, err)
		require.Len(t, backend.sent, 1)

		tx := backend.sent[0]
		assert.Equal(t, res.TxHash, tx.Hash().Hex())
		assert.Equal(t, uint64(7), tx.Nonce())
		assert.Equal(t, uint64(120_000), tx.Gas())
		assert.Equal(t, "0x5c19a95c", hexutil.Encode(tx.Data()[:4]))
		assert.Equal(t, uint64(12), res.BlockNumber)

		from, err := types.Sender(types.LatestSignerForChainID(big.NewInt(31337)), tx)
		require.NoError(t, err)
		assert.Equal(t, "0xf39Fd6e51aad88F6F4ce6aB8827279cffFb92266", from.Hex())
	})

	t.Run("simulation revert is rejected before sending", func(t *testing.T) {
		reason, err := abi.NewType("string", "", nil)
		require.NoError(t, err)
		packed, err := abi.Arguments{{Type: reason}}.Pack("Governor: proposer votes below proposal threshold")
		require.NoError(t, err)

		backend := &fakeBackend{call: func(ethereum.CallMsg) ([]byte, error) {
			return nil, revertErr{data: hexutil.Encode(append(common.FromHex("0x08c379a0"), packed...))}
		}}
		w := newTestWriter(t, backend)

		_, err = w.SubmitVote(ctx, governorAddr, "42", 1, "Full support")
		require.Error(t, err)
		assert.ErrorIs(t, err, domain.ErrRejectedByLedger)

		var rejected *domain.RejectedByLedgerError
		require.ErrorAs(t, err, &rejected)
		assert.Equal(t, "Governor: proposer votes below proposal threshold", rejected.Message)
		assert.Empty(t, backend.sent)
	})

	t.Run("failed receipt is rejected", func(t *testing.T) {
		backend := &fakeBackend{status: types.ReceiptStatusFailed}
		w := newTestWriter(t, backend)

		res, err := w.SubmitDelegate(ctx, tokenAddr, "0xf39Fd6e51aad88F6F4ce6aB8827279cffFb92266")
		assert.ErrorIs(t, err, domain.ErrRejectedByLedger)
		require.NotNil(t, res)
		assert.NotEmpty(t, res.TxHash)
	})

	t.Run("no key configured", func(t *testing.T) {
		signer, err := NewSigner(&config.RuntimeConfig{})
		require.NoError(t, err)
		w := NewGovernorWriter(NewClientWithBackend(testNetwork(), &fakeBackend{}), signer, logging.Discard())

		_, err = w.SubmitDelegate(ctx, tokenAddr, tokenAddr)
		assert.ErrorIs(t, err, ErrNoSigner)
	})
}
