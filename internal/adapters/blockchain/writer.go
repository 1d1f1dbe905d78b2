package blockchain

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/big"

	"github.com/avast/retry-go/v4"
	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"

	"github.com/daoservice/govsync/internal/adapters/abi/bindings"
	"github.com/daoservice/govsync/internal/domain"
	"github.com/daoservice/govsync/internal/domain/models"
	"github.com/daoservice/govsync/internal/usecase"
)

var votesTokenABI = bindings.NewVotesToken()

// GovernorWriter implements usecase.LedgerWriter. Every write is simulated
// with eth_call first so reverts surface with their reason before gas is spent.
type GovernorWriter struct {
	client *Client
	signer *Signer
	log    *slog.Logger
}

// NewGovernorWriter creates a new ledger writer
func NewGovernorWriter(client *Client, signer *Signer, log *slog.Logger) *GovernorWriter {
	return &GovernorWriter{
		client: client,
		signer: signer,
		log:    log.With("component", "GovernorWriter"),
	}
}

// SignerAddress returns the checksummed signer address
func (w *GovernorWriter) SignerAddress() (string, error) {
	addr, err := w.signer.Address()
	if err != nil {
		return "", err
	}
	return addr.Hex(), nil
}

func (w *GovernorWriter) SubmitPropose(ctx context.Context, governor string, call models.ProposalCall, description string) (*models.TxResult, error) {
	targets, values, calldatas, _, err := encodeCall(withPlaceholderHash(call))
	if err != nil {
		return nil, err
	}
	data, err := governorABI.TryPackPropose(targets, values, calldatas, description)
	if err != nil {
		return nil, fmt.Errorf("failed to pack propose: %w", err)
	}
	return w.submit(ctx, governor, data)
}

func (w *GovernorWriter) SubmitDelegate(ctx context.Context, token, delegatee string) (*models.TxResult, error) {
	if !domain.IsAddress(delegatee) {
		return nil, domain.NewValidationError("delegatee", "invalid address %q", delegatee)
	}
	data, err := votesTokenABI.TryPackDelegate(common.HexToAddress(delegatee))
	if err != nil {
		return nil, fmt.Errorf("failed to pack delegate: %w", err)
	}
	return w.submit(ctx, token, data)
}

func (w *GovernorWriter) SubmitVote(ctx context.Context, governor, proposalID string, support uint8, reason string) (*models.TxResult, error) {
	id, ok := domain.ParseProposalID(proposalID)
	if !ok {
		return nil, fmt.Errorf("%w: %q", domain.ErrInvalidProposal, proposalID)
	}
	data, err := governorABI.TryPackCastVoteWithReason(id, support, reason)
	if err != nil {
		return nil, fmt.Errorf("failed to pack castVoteWithReason: %w", err)
	}
	return w.submit(ctx, governor, data)
}

func (w *GovernorWriter) SubmitQueue(ctx context.Context, governor string, call models.ProposalCall) (*models.TxResult, error) {
	targets, values, calldatas, descHash, err := encodeCall(call)
	if err != nil {
		return nil, err
	}
	data, err := governorABI.TryPackQueue(targets, values, calldatas, descHash)
	if err != nil {
		return nil, fmt.Errorf("failed to pack queue: %w", err)
	}
	return w.submit(ctx, governor, data)
}

func (w *GovernorWriter) SubmitExecute(ctx context.Context, governor string, call models.ProposalCall) (*models.TxResult, error) {
	targets, values, calldatas, descHash, err := encodeCall(call)
	if err != nil {
		return nil, err
	}
	data, err := governorABI.TryPackExecute(targets, values, calldatas, descHash)
	if err != nil {
		return nil, fmt.Errorf("failed to pack execute: %w", err)
	}
	return w.submit(ctx, governor, data)
}

// submit simulates, signs, sends and waits for the receipt under WriteTimeout
func (w *GovernorWriter) submit(ctx context.Context, to string, data []byte) (*models.TxResult, error) {
	if !domain.IsAddress(to) {
		return nil, domain.NewValidationError("target", "invalid address %q", to)
	}
	from, err := w.signer.Address()
	if err != nil {
		return nil, err
	}
	backend, err := w.client.Backend(ctx)
	if err != nil {
		return nil, err
	}
	chainID, err := w.client.ChainID(ctx)
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(ctx, w.client.cfg.WriteTimeout)
	defer cancel()

	target := common.HexToAddress(to)
	msg := ethereum.CallMsg{From: from, To: &target, Data: data}

	if _, err := backend.CallContract(ctx, msg, nil); err != nil {
		return nil, classifyWriteError("simulation", err)
	}
	gas, err := backend.EstimateGas(ctx, msg)
	if err != nil {
		return nil, classifyWriteError("gas estimation", err)
	}
	nonce, err := backend.PendingNonceAt(ctx, from)
	if err != nil {
		return nil, classifyWriteError("nonce lookup", err)
	}

	tx, err := w.buildTx(ctx, backend, chainID, nonce, gas, target, data)
	if err != nil {
		return nil, err
	}
	signed, err := w.signer.Sign(tx, chainID)
	if err != nil {
		return nil, fmt.Errorf("failed to sign transaction: %w", err)
	}
	if err := backend.SendTransaction(ctx, signed); err != nil {
		return nil, classifyWriteError("send", err)
	}
	w.log.Info("transaction sent", "tx", signed.Hash().Hex(), "to", to, "nonce", nonce)

	receipt, err := w.waitForReceipt(ctx, backend, signed.Hash())
	if err != nil {
		return nil, err
	}
	result := &models.TxResult{
		TxHash:  signed.Hash().Hex(),
		GasUsed: receipt.GasUsed,
	}
	if receipt.BlockNumber != nil {
		result.BlockNumber = receipt.BlockNumber.Uint64()
	}
	if receipt.Status != types.ReceiptStatusSuccessful {
		return result, &domain.RejectedByLedgerError{
			Message: fmt.Sprintf("transaction %s reverted on-chain", result.TxHash),
		}
	}
	return result, nil
}

// buildTx prefers EIP-1559 and falls back to legacy pricing on chains without a base fee
func (w *GovernorWriter) buildTx(ctx context.Context, backend Backend, chainID *big.Int, nonce, gas uint64, to common.Address, data []byte) (*types.Transaction, error) {
	// 20% headroom over the estimate
	gas = gas * 12 / 10

	head, err := backend.HeaderByNumber(ctx, nil)
	if err != nil {
		return nil, classifyWriteError("header lookup", err)
	}
	if head.BaseFee == nil {
		price, err := backend.SuggestGasPrice(ctx)
		if err != nil {
			return nil, classifyWriteError("gas price", err)
		}
		return types.NewTx(&types.LegacyTx{
			Nonce:    nonce,
			GasPrice: price,
			Gas:      gas,
			To:       &to,
			Data:     data,
		}), nil
	}

	tip, err := backend.SuggestGasTipCap(ctx)
	if err != nil {
		return nil, classifyWriteError("gas tip", err)
	}
	feeCap := new(big.Int).Add(tip, new(big.Int).Mul(head.BaseFee, big.NewInt(2)))
	return types.NewTx(&types.DynamicFeeTx{
		ChainID:   chainID,
		Nonce:     nonce,
		GasTipCap: tip,
		GasFeeCap: feeCap,
		Gas:       gas,
		To:        &to,
		Data:      data,
	}), nil
}

func (w *GovernorWriter) waitForReceipt(ctx context.Context, backend Backend, hash common.Hash) (*types.Receipt, error) {
	receipt, err := retry.DoWithData(
		func() (*types.Receipt, error) {
			return backend.TransactionReceipt(ctx, hash)
		},
		retry.Context(ctx),
		retry.Attempts(0),
		retry.Delay(w.client.cfg.ReceiptPoll),
		retry.DelayType(retry.FixedDelay),
		retry.LastErrorOnly(true),
		retry.RetryIf(func(err error) bool {
			return errors.Is(err, ethereum.NotFound)
		}),
		retry.OnRetry(func(n uint, err error) {
			w.log.Debug("waiting for receipt", "tx", hash.Hex(), "attempt", n+1)
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("%w: waiting for receipt of %s: %v", domain.ErrLedgerUnavailable, hash.Hex(), err)
	}
	return receipt, nil
}

// classifyWriteError turns reverts into RejectedByLedgerError and everything else into ErrLedgerUnavailable
func classifyWriteError(stage string, err error) error {
	if reason, reverted := revertError(err); reverted {
		return &domain.RejectedByLedgerError{Message: reason, Cause: err}
	}
	return fmt.Errorf("%w: %s failed: %v", domain.ErrLedgerUnavailable, stage, err)
}

// withPlaceholderHash lets propose reuse encodeCall, propose takes the raw description instead
func withPlaceholderHash(call models.ProposalCall) models.ProposalCall {
	call.DescriptionHash = common.Hash{}.Hex()
	return call
}

var _ usecase.LedgerWriter = (*GovernorWriter)(nil)
