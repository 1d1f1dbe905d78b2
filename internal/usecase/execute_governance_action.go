package usecase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/ethereum/go-ethereum/common/hexutil"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/daoservice/govsync/internal/domain"
	"github.com/daoservice/govsync/internal/domain/models"
)

// Vote support values understood by castVoteWithReason
const (
	VoteAgainst uint8 = 0
	VoteFor     uint8 = 1
	VoteAbstain uint8 = 2

	DefaultVoteReason = "Full support"
)

// Action outcomes reported to metrics
const (
	ActionOK          = "ok"
	ActionIneligible  = "ineligible"
	ActionRejected    = "rejected"
	ActionUnavailable = "unavailable"
	ActionAborted     = "aborted"
	ActionFailed      = "failed"
)

// ProposeParams contains parameters for proposing a treasury transfer
type ProposeParams struct {
	DAOID       string
	Recipient   string
	Amount      string
	Description string
}

// DelegateParams contains parameters for delegating voting power.
// An empty Delegatee delegates to the signer itself.
type DelegateParams struct {
	DAOID     string
	Delegatee string
}

// VoteParams contains parameters for casting a vote. Support defaults to
// For and Reason to DefaultVoteReason.
type VoteParams struct {
	DAOID      string
	ProposalID string
	Support    *uint8
	Reason     string
}

// ProposalActionParams identifies the proposal to queue or execute.
// Recipient and Amount rebuild the transfer call. When omitted the call is
// restored from the cached calldata.
type ProposalActionParams struct {
	DAOID       string
	ProposalID  string
	Recipient   string
	Amount      string
	Description string
}

// ActionResult is returned by every governance action
type ActionResult struct {
	Action          domain.Action    `json:"action"`
	DAOID           string           `json:"daoId"`
	ProposalID      string           `json:"proposalId,omitempty"`
	DescriptionHash string           `json:"descriptionHash,omitempty"`
	Delegatee       string           `json:"delegatee,omitempty"`
	Transfer        *DecodedTransfer `json:"transfer,omitempty"`
	TxHash          string           `json:"txHash"`
	BlockNumber     uint64           `json:"blockNumber"`
	GasUsed         uint64           `json:"gasUsed"`
	Tracking        bool             `json:"tracking,omitempty"`
}

// ExecuteGovernanceAction guards, confirms and submits governance actions
type ExecuteGovernanceAction struct {
	repo      ProposalRepository
	reader    LedgerReader
	writer    LedgerWriter
	codec     CalldataCodec
	confirmer Confirmer
	tracker   *ProposalTracker
	metrics   Metrics
	sink      ProgressSink
	log       *slog.Logger

	inFlight sync.Map
}

// NewExecuteGovernanceAction creates the executor. confirmer and tracker may be nil.
func NewExecuteGovernanceAction(
	repo ProposalRepository,
	reader LedgerReader,
	writer LedgerWriter,
	codec CalldataCodec,
	confirmer Confirmer,
	tracker *ProposalTracker,
	metrics Metrics,
	sink ProgressSink,
	log *slog.Logger,
) *ExecuteGovernanceAction {
	return &ExecuteGovernanceAction{
		repo:      repo,
		reader:    reader,
		writer:    writer,
		codec:     codec,
		confirmer: confirmer,
		tracker:   tracker,
		metrics:   metrics,
		sink:      sink,
		log:       log.With("component", "ExecuteGovernanceAction"),
	}
}

// Propose submits a proposal transferring Amount tokens to Recipient, then
// caches it as Pending and starts tracking it
func (uc *ExecuteGovernanceAction) Propose(ctx context.Context, params ProposeParams) (res *ActionResult, err error) {
	defer func() { uc.observe(domain.ActionPropose, err) }()

	dao, err := uc.repo.GetDAO(ctx, params.DAOID)
	if err != nil {
		return nil, err
	}
	verdict := domain.Eligible(domain.ActionPropose, domain.EligibilityInput{
		Recipient:   params.Recipient,
		Description: params.Description,
	})
	if err := verdict.Err(); err != nil {
		return nil, err
	}

	description := strings.TrimSpace(params.Description)
	data, err := uc.codec.BuildTransfer(params.Recipient, params.Amount)
	if err != nil {
		return nil, err
	}
	call := models.ProposalCall{
		Targets:         []string{dao.TokenAddress},
		Values:          []string{"0"},
		Calldatas:       []string{hexutil.Encode(data)},
		DescriptionHash: uc.codec.DescriptionHash(description),
	}

	release, err := uc.acquire(domain.ActionPropose, dao.ID, call.DescriptionHash)
	if err != nil {
		return nil, err
	}
	defer release()

	prompt := fmt.Sprintf("Propose transferring %s tokens to %s in %s?", params.Amount, params.Recipient, dao.Name)
	if err := uc.confirm(ctx, prompt); err != nil {
		return nil, err
	}

	uc.sink.OnProgress(ctx, ProgressEvent{Stage: "submitting", Message: "Submitting proposal", Spinner: true})
	tx, err := uc.writer.SubmitPropose(ctx, dao.GovernorAddress, call, description)
	if err != nil {
		return nil, translateProposeError(err)
	}

	proposalID, err := uc.reader.HashProposal(ctx, dao.GovernorAddress, call)
	if err != nil {
		return nil, fmt.Errorf("proposal submitted in %s but its id could not be read: %w", tx.TxHash, err)
	}

	actionType := models.ActionTypeTransferToTreasury
	update := models.ProposalUpdate{
		Description:     &description,
		DescriptionHash: &call.DescriptionHash,
		ActionType:      &actionType,
		Targets:         call.Targets,
		Values:          call.Values,
		Calldatas:       call.Calldatas,
		State:           models.ProposalStatePending.Ptr(),
	}
	saved, err := uc.repo.UpsertProposal(context.WithoutCancel(ctx), dao.ID, proposalID, update)
	if err != nil {
		return nil, fmt.Errorf("proposal %s submitted in %s but could not be cached: %w", proposalID, tx.TxHash, err)
	}

	res = &ActionResult{
		Action:          domain.ActionPropose,
		DAOID:           dao.ID,
		ProposalID:      proposalID,
		DescriptionHash: call.DescriptionHash,
		Transfer:        &DecodedTransfer{Recipient: params.Recipient, Amount: params.Amount},
		TxHash:          tx.TxHash,
		BlockNumber:     tx.BlockNumber,
		GasUsed:         tx.GasUsed,
	}
	if uc.tracker != nil {
		uc.tracker.Track(ctx, models.TrackedProposal{
			DAOID:           dao.ID,
			GovernorAddress: dao.GovernorAddress,
			ProposalID:      proposalID,
			LastState:       saved.Proposal.State,
		})
		res.Tracking = true
	}
	uc.sink.Info(fmt.Sprintf("Proposal %s created", proposalID))
	return res, nil
}

// Delegate delegates the signer's voting power on the DAO token
func (uc *ExecuteGovernanceAction) Delegate(ctx context.Context, params DelegateParams) (res *ActionResult, err error) {
	defer func() { uc.observe(domain.ActionDelegate, err) }()

	dao, err := uc.repo.GetDAO(ctx, params.DAOID)
	if err != nil {
		return nil, err
	}
	if err := domain.Eligible(domain.ActionDelegate, domain.EligibilityInput{}).Err(); err != nil {
		return nil, err
	}

	delegatee := strings.TrimSpace(params.Delegatee)
	if delegatee == "" {
		if delegatee, err = uc.writer.SignerAddress(); err != nil {
			return nil, err
		}
	}
	if !domain.IsAddress(delegatee) {
		return nil, domain.NewValidationError("delegatee", "invalid address %q", delegatee)
	}

	release, err := uc.acquire(domain.ActionDelegate, dao.ID, strings.ToLower(delegatee))
	if err != nil {
		return nil, err
	}
	defer release()

	if err := uc.confirm(ctx, fmt.Sprintf("Delegate voting power on %s to %s?", dao.Name, delegatee)); err != nil {
		return nil, err
	}

	uc.sink.OnProgress(ctx, ProgressEvent{Stage: "submitting", Message: "Submitting delegation", Spinner: true})
	tx, err := uc.writer.SubmitDelegate(ctx, dao.TokenAddress, delegatee)
	if err != nil {
		return nil, err
	}
	return &ActionResult{
		Action:      domain.ActionDelegate,
		DAOID:       dao.ID,
		Delegatee:   delegatee,
		TxHash:      tx.TxHash,
		BlockNumber: tx.BlockNumber,
		GasUsed:     tx.GasUsed,
	}, nil
}

// Vote casts a vote with reason. Eligibility only requires a known proposal id.
func (uc *ExecuteGovernanceAction) Vote(ctx context.Context, params VoteParams) (res *ActionResult, err error) {
	defer func() { uc.observe(domain.ActionVote, err) }()

	dao, err := uc.repo.GetDAO(ctx, params.DAOID)
	if err != nil {
		return nil, err
	}
	if err := domain.Eligible(domain.ActionVote, domain.EligibilityInput{ProposalID: params.ProposalID}).Err(); err != nil {
		return nil, err
	}
	if canonical, ok := domain.CanonicalProposalID(params.ProposalID); ok {
		params.ProposalID = canonical
	}

	support := VoteFor
	if params.Support != nil {
		support = *params.Support
	}
	if support > VoteAbstain {
		return nil, domain.NewValidationError("support", "must be 0 (against), 1 (for) or 2 (abstain), got %d", support)
	}
	reason := strings.TrimSpace(params.Reason)
	if reason == "" {
		reason = DefaultVoteReason
	}

	release, err := uc.acquire(domain.ActionVote, dao.ID, params.ProposalID)
	if err != nil {
		return nil, err
	}
	defer release()

	if err := uc.confirm(ctx, fmt.Sprintf("Vote %s on proposal %s?", supportName(support), params.ProposalID)); err != nil {
		return nil, err
	}

	uc.sink.OnProgress(ctx, ProgressEvent{Stage: "submitting", Message: "Submitting vote", Spinner: true})
	tx, err := uc.writer.SubmitVote(ctx, dao.GovernorAddress, params.ProposalID, support, reason)
	if err != nil {
		return nil, err
	}
	return &ActionResult{
		Action:      domain.ActionVote,
		DAOID:       dao.ID,
		ProposalID:  params.ProposalID,
		TxHash:      tx.TxHash,
		BlockNumber: tx.BlockNumber,
		GasUsed:     tx.GasUsed,
	}, nil
}

// Queue queues a Succeeded proposal
func (uc *ExecuteGovernanceAction) Queue(ctx context.Context, params ProposalActionParams) (res *ActionResult, err error) {
	defer func() { uc.observe(domain.ActionQueue, err) }()
	return uc.submitProposalCall(ctx, domain.ActionQueue, params, uc.writer.SubmitQueue)
}

// Execute executes a Queued proposal. The cached state is not moved to
// Executed afterwards, tracking already stopped at Queued.
func (uc *ExecuteGovernanceAction) Execute(ctx context.Context, params ProposalActionParams) (res *ActionResult, err error) {
	defer func() { uc.observe(domain.ActionExecute, err) }()
	return uc.submitProposalCall(ctx, domain.ActionExecute, params, uc.writer.SubmitExecute)
}

type proposalCallSubmitter func(ctx context.Context, governor string, call models.ProposalCall) (*models.TxResult, error)

func (uc *ExecuteGovernanceAction) submitProposalCall(
	ctx context.Context,
	action domain.Action,
	params ProposalActionParams,
	submit proposalCallSubmitter,
) (*ActionResult, error) {
	dao, err := uc.repo.GetDAO(ctx, params.DAOID)
	if err != nil {
		return nil, err
	}
	p, err := uc.repo.GetProposal(ctx, dao.ID, params.ProposalID)
	if err != nil {
		return nil, err
	}

	state := p.State
	if err := domain.Eligible(action, domain.EligibilityInput{State: &state, ProposalID: p.ProposalID}).Err(); err != nil {
		return nil, err
	}

	call, transfer, err := uc.rebuildCall(dao, p, params)
	if err != nil {
		return nil, err
	}

	release, err := uc.acquire(action, dao.ID, p.ProposalID)
	if err != nil {
		return nil, err
	}
	defer release()

	if err := uc.confirm(ctx, fmt.Sprintf("%s proposal %s?", actionTitle(action), p.ProposalID)); err != nil {
		return nil, err
	}

	uc.sink.OnProgress(ctx, ProgressEvent{
		Stage:   "submitting",
		Message: fmt.Sprintf("Submitting %s", action),
		Spinner: true,
	})
	tx, err := submit(ctx, dao.GovernorAddress, call)
	if err != nil {
		return nil, err
	}
	return &ActionResult{
		Action:          action,
		DAOID:           dao.ID,
		ProposalID:      p.ProposalID,
		DescriptionHash: call.DescriptionHash,
		Transfer:        transfer,
		TxHash:          tx.TxHash,
		BlockNumber:     tx.BlockNumber,
		GasUsed:         tx.GasUsed,
	}, nil
}

// rebuildCall returns the (targets, values, calldatas, descriptionHash) the
// governor hashed at propose time
func (uc *ExecuteGovernanceAction) rebuildCall(dao *models.DAO, p *models.Proposal, params ProposalActionParams) (models.ProposalCall, *DecodedTransfer, error) {
	descriptionHash := p.DescriptionHash
	if d := strings.TrimSpace(params.Description); d != "" {
		descriptionHash = uc.codec.DescriptionHash(d)
	}

	if params.Recipient != "" || params.Amount != "" {
		data, err := uc.codec.BuildTransfer(params.Recipient, params.Amount)
		if err != nil {
			return models.ProposalCall{}, nil, err
		}
		return models.ProposalCall{
			Targets:         []string{dao.TokenAddress},
			Values:          []string{"0"},
			Calldatas:       []string{hexutil.Encode(data)},
			DescriptionHash: descriptionHash,
		}, &DecodedTransfer{Recipient: params.Recipient, Amount: params.Amount}, nil
	}

	if len(p.Targets) == 0 {
		return models.ProposalCall{}, nil, domain.NewValidationError("calldatas",
			"proposal %s has no cached calls, pass --recipient and --amount", p.ProposalID)
	}
	if err := domain.ValidateArity(p.Targets, p.Values, p.Calldatas); err != nil {
		return models.ProposalCall{}, nil, err
	}
	transfer, err := decodeProposalTransfer(uc.codec, p)
	if err != nil {
		uc.log.Debug("cached calls are not a single transfer", "proposal", p.ProposalID, "error", err)
		transfer = nil
	}
	return models.ProposalCall{
		Targets:         p.Targets,
		Values:          p.Values,
		Calldatas:       p.Calldatas,
		DescriptionHash: descriptionHash,
	}, transfer, nil
}

// acquire marks (action, dao, subject) as in flight until release is called
func (uc *ExecuteGovernanceAction) acquire(action domain.Action, daoID, subject string) (func(), error) {
	key := string(action) + "/" + daoID + "/" + subject
	if _, loaded := uc.inFlight.LoadOrStore(key, struct{}{}); loaded {
		return nil, fmt.Errorf("%w: %s %s", domain.ErrActionInFlight, action, subject)
	}
	return func() { uc.inFlight.Delete(key) }, nil
}

func (uc *ExecuteGovernanceAction) confirm(ctx context.Context, prompt string) error {
	if uc.confirmer == nil {
		return nil
	}
	ok, err := uc.confirmer.Confirm(ctx, prompt)
	if err != nil {
		return err
	}
	if !ok {
		return domain.ErrAborted
	}
	return nil
}

func (uc *ExecuteGovernanceAction) observe(action domain.Action, err error) {
	uc.metrics.ObserveAction(action, actionOutcome(err))
}

func actionOutcome(err error) string {
	switch {
	case err == nil:
		return ActionOK
	case errors.Is(err, domain.ErrIneligibleTransition):
		return ActionIneligible
	case errors.Is(err, domain.ErrRejectedByLedger):
		return ActionRejected
	case errors.Is(err, domain.ErrLedgerUnavailable):
		return ActionUnavailable
	case errors.Is(err, domain.ErrAborted):
		return ActionAborted
	default:
		return ActionFailed
	}
}

// translateProposeError turns the common propose reverts into actionable messages
func translateProposeError(err error) error {
	var rejected *domain.RejectedByLedgerError
	if !errors.As(err, &rejected) {
		return err
	}
	cause := rejected.Message
	lower := strings.ToLower(cause)
	var msg string
	switch {
	case strings.Contains(lower, "threshold"):
		msg = "Proposal threshold not met. You need more voting power to create a proposal."
	case strings.Contains(lower, "delegate"):
		msg = "You need to delegate voting power to yourself before proposing."
	default:
		msg = "Proposal would revert: " + cause
	}
	return &domain.RejectedByLedgerError{Message: msg, Cause: err}
}

func supportName(support uint8) string {
	switch support {
	case VoteAgainst:
		return "against"
	case VoteAbstain:
		return "abstain"
	default:
		return "for"
	}
}

var titleCaser = cases.Title(language.English)

func actionTitle(action domain.Action) string {
	return titleCaser.String(string(action))
}
