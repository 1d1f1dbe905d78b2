package blockchain

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/big"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"

	"github.com/daoservice/govsync/internal/domain"
	"github.com/daoservice/govsync/internal/domain/models"
	"github.com/daoservice/govsync/internal/usecase"
)

// GovernorReader implements usecase.LedgerReader with eth_call against the governor
type GovernorReader struct {
	client *Client
	log    *slog.Logger
}

// NewGovernorReader creates a new ledger reader
func NewGovernorReader(client *Client, log *slog.Logger) *GovernorReader {
	return &GovernorReader{
		client: client,
		log:    log.With("component", "GovernorReader"),
	}
}

// ReadProposalState calls state(uint256) on the governor. Zero or malformed
// ids fail with ErrInvalidProposal before any I/O.
func (r *GovernorReader) ReadProposalState(ctx context.Context, governor, proposalID string) (models.ProposalState, error) {
	id, ok := domain.ParseProposalID(proposalID)
	if !ok || id.Sign() == 0 {
		return 0, fmt.Errorf("%w: %q", domain.ErrInvalidProposal, proposalID)
	}
	if !domain.IsAddress(governor) {
		return 0, domain.NewValidationError("governorAddress", "invalid address %q", governor)
	}

	data, err := governorABI.TryPackState(id)
	if err != nil {
		return 0, fmt.Errorf("failed to pack state call: %w", err)
	}

	out, err := r.call(ctx, common.HexToAddress(governor), data)
	if err != nil {
		var rejected *domain.RejectedByLedgerError
		if errors.As(err, &rejected) {
			// state() only reverts for ids the governor does not know
			return 0, fmt.Errorf("%w: %s", domain.ErrInvalidProposal, rejected.Message)
		}
		return 0, err
	}

	code, err := governorABI.UnpackState(out)
	if err != nil {
		return 0, fmt.Errorf("%w: failed to decode state: %v", domain.ErrLedgerUnavailable, err)
	}
	state := models.ProposalState(code)
	if !state.Valid() {
		return 0, fmt.Errorf("%w: governor returned state %d", domain.ErrInvalidProposal, code)
	}

	r.log.Debug("read proposal state", "governor", governor, "proposal", proposalID, "state", state)
	return state, nil
}

// HashProposal asks the governor for hashProposal(targets, values, calldatas, descriptionHash)
func (r *GovernorReader) HashProposal(ctx context.Context, governor string, call models.ProposalCall) (string, error) {
	targets, values, calldatas, descHash, err := encodeCall(call)
	if err != nil {
		return "", err
	}
	data, err := governorABI.TryPackHashProposal(targets, values, calldatas, descHash)
	if err != nil {
		return "", fmt.Errorf("failed to pack hashProposal call: %w", err)
	}

	out, err := r.call(ctx, common.HexToAddress(governor), data)
	if err != nil {
		return "", err
	}
	id, err := governorABI.UnpackHashProposal(out)
	if err != nil {
		return "", fmt.Errorf("%w: failed to decode proposal id: %v", domain.ErrLedgerUnavailable, err)
	}
	return id.String(), nil
}

// ChainID returns the connected network's chain id
func (r *GovernorReader) ChainID(ctx context.Context) (uint64, error) {
	id, err := r.client.ChainID(ctx)
	if err != nil {
		return 0, err
	}
	return id.Uint64(), nil
}

// call runs a bounded eth_call. Anything that is not a revert, including the
// deadline, is reported as ErrLedgerUnavailable.
func (r *GovernorReader) call(ctx context.Context, to common.Address, data []byte) ([]byte, error) {
	backend, err := r.client.Backend(ctx)
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(ctx, r.client.cfg.ReadTimeout)
	defer cancel()

	out, err := backend.CallContract(ctx, ethereum.CallMsg{To: &to, Data: data}, nil)
	if err != nil {
		if reason, reverted := revertError(err); reverted {
			return nil, &domain.RejectedByLedgerError{Message: reason, Cause: err}
		}
		if errors.Is(err, context.DeadlineExceeded) {
			return nil, fmt.Errorf("%w: read timed out after %s", domain.ErrLedgerUnavailable, r.client.cfg.ReadTimeout)
		}
		return nil, fmt.Errorf("%w: %v", domain.ErrLedgerUnavailable, err)
	}
	return out, nil
}

// encodeCall converts the stored string form into ABI arguments
func encodeCall(call models.ProposalCall) ([]common.Address, []*big.Int, [][]byte, [32]byte, error) {
	var descHash [32]byte
	if err := domain.ValidateArity(call.Targets, call.Values, call.Calldatas); err != nil {
		return nil, nil, nil, descHash, err
	}
	if !domain.IsHash(call.DescriptionHash) {
		return nil, nil, nil, descHash, domain.NewValidationError("descriptionHash", "invalid hash %q", call.DescriptionHash)
	}
	descHash = common.HexToHash(call.DescriptionHash)

	targets := make([]common.Address, len(call.Targets))
	values := make([]*big.Int, len(call.Values))
	calldatas := make([][]byte, len(call.Calldatas))
	for i := range call.Targets {
		if !domain.IsAddress(call.Targets[i]) {
			return nil, nil, nil, descHash, domain.NewValidationError("targets", "invalid address %q", call.Targets[i])
		}
		targets[i] = common.HexToAddress(call.Targets[i])

		v, ok := domain.ParseProposalID(call.Values[i])
		if !ok {
			return nil, nil, nil, descHash, domain.NewValidationError("values", "must be decimal integers, got %q", call.Values[i])
		}
		values[i] = v

		cd, err := hexutil.Decode(call.Calldatas[i])
		if err != nil {
			return nil, nil, nil, descHash, domain.NewValidationError("calldatas", "invalid hex %q", call.Calldatas[i])
		}
		calldatas[i] = cd
	}
	return targets, values, calldatas, descHash, nil
}

var _ usecase.LedgerReader = (*GovernorReader)(nil)
