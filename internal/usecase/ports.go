package usecase

import (
	"context"
	"time"

	"github.com/daoservice/govsync/internal/domain"
	"github.com/daoservice/govsync/internal/domain/models"
)

// ProposalRepository is the durable cache of DAOs and their proposals
type ProposalRepository interface {
	CreateDAO(ctx context.Context, dao *models.DAO) (*models.DAO, error)
	GetDAO(ctx context.Context, id string) (*models.DAO, error)
	ListDAOs(ctx context.Context, filter models.DAOFilter) ([]*models.DAO, error)
	// UpsertProposal creates the proposal or merges the present fields of update into it
	UpsertProposal(ctx context.Context, daoID, proposalID string, update models.ProposalUpdate) (*UpsertResult, error)
	GetProposal(ctx context.Context, daoID, proposalID string) (*models.Proposal, error)
	ListProposals(ctx context.Context, daoID string) ([]*models.Proposal, error)
	// ListTrackedProposals returns every proposal whose state is not final
	ListTrackedProposals(ctx context.Context) ([]models.TrackedProposal, error)
}

// LedgerReader reads authoritative governor state
type LedgerReader interface {
	ReadProposalState(ctx context.Context, governor, proposalID string) (models.ProposalState, error)
	HashProposal(ctx context.Context, governor string, call models.ProposalCall) (string, error)
	ChainID(ctx context.Context) (uint64, error)
}

// LedgerWriter simulates, signs and submits governance transactions and waits
// for them to be mined. Reverts come back as *domain.RejectedByLedgerError.
type LedgerWriter interface {
	SignerAddress() (string, error)
	SubmitPropose(ctx context.Context, governor string, call models.ProposalCall, description string) (*models.TxResult, error)
	SubmitDelegate(ctx context.Context, token, delegatee string) (*models.TxResult, error)
	SubmitVote(ctx context.Context, governor, proposalID string, support uint8, reason string) (*models.TxResult, error)
	SubmitQueue(ctx context.Context, governor string, call models.ProposalCall) (*models.TxResult, error)
	SubmitExecute(ctx context.Context, governor string, call models.ProposalCall) (*models.TxResult, error)
}

// CalldataCodec builds and decodes the token transfer carried by a proposal
type CalldataCodec interface {
	BuildTransfer(recipient, amount string) ([]byte, error)
	DecodeTransfer(data []byte) (recipient, amount string, err error)
	DescriptionHash(description string) string
}

// EventPublisher fans out state changes observed by reconciliation
type EventPublisher interface {
	PublishStateChange(ctx context.Context, event models.ProposalStateChanged) error
}

// Tick outcomes reported to metrics
const (
	TickUnchanged   = "unchanged"
	TickChanged     = "changed"
	TickUnavailable = "unavailable"
	TickInvalid     = "invalid"
	TickFailed      = "failed"
)

// Metrics receives reconciliation and action measurements
type Metrics interface {
	ObserveTick(outcome string, elapsed time.Duration)
	ObserveStateChange(from, to models.ProposalState)
	SetTracked(n int)
	ObserveAction(action domain.Action, outcome string)
}

// Confirmer asks the user before a ledger write
type Confirmer interface {
	Confirm(ctx context.Context, prompt string) (bool, error)
}

// DAOSelector lets the user pick one DAO out of several candidates
type DAOSelector interface {
	SelectDAO(ctx context.Context, candidates []*models.DAO, prompt string) (*models.DAO, error)
}

// Clock is injected so tests can pin timestamps
type Clock func() time.Time

// Progress tracking interfaces

// ProgressEvent represents a progress update
type ProgressEvent struct {
	Stage   string
	Message string
	Spinner bool
}

// ProgressSink receives progress events
type ProgressSink interface {
	OnProgress(ctx context.Context, event ProgressEvent)
	Info(message string)
	Error(message string)
}

// NopProgress is a no-op implementation of ProgressSink
type NopProgress struct{}

func (NopProgress) OnProgress(context.Context, ProgressEvent) {}
func (NopProgress) Info(string)                               {}
func (NopProgress) Error(string)                              {}

// NopMetrics discards measurements
type NopMetrics struct{}

func (NopMetrics) ObserveTick(string, time.Duration)                             {}
func (NopMetrics) ObserveStateChange(models.ProposalState, models.ProposalState) {}
func (NopMetrics) SetTracked(int)                                                {}
func (NopMetrics) ObserveAction(domain.Action, string)                           {}

// NopPublisher drops events
type NopPublisher struct{}

func (NopPublisher) PublishStateChange(context.Context, models.ProposalStateChanged) error { return nil }

// Use case result types

// UpsertResult reports what a proposal upsert did
type UpsertResult struct {
	Created  bool             `json:"created"`
	Changed  bool             `json:"changed"`
	Proposal *models.Proposal `json:"proposal"`
}
