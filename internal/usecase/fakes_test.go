package usecase_test

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/daoservice/govsync/internal/adapters/repository/proposals"
	"github.com/daoservice/govsync/internal/domain"
	"github.com/daoservice/govsync/internal/domain/config"
	"github.com/daoservice/govsync/internal/domain/models"
	"github.com/daoservice/govsync/internal/logging"
	"github.com/daoservice/govsync/internal/usecase"
)

const (
	governor  = "0x5FbDB2315678afecb367f032d93F642f64180aa3"
	token     = "0xe7f1725E7734CE288F8367e1Bb143E90bb3F0512"
	treasury  = "0x9fE46736679d2D9a65F0992F2272dE9f3c7fa6e0"
	creator   = "0xf39Fd6e51aad88F6F4ce6aB8827279cffFb92266"
	recipient = "0x70997970C51812dc3A010C7d01b50e0d17dc79C8"
	descHash  = "0xde538e4d7883b299dff7b956e2cb14c09d596d09e3146eb77c96e27c703c6e58"
	transferC = "0xa9059cbb00000000000000000000000070997970c51812dc3a010c7d01b50e0d17dc79c80000000000000000000000000000000000000000000000000de0b6b3a7640000"
)

// fakeLedger serves scripted proposal states and records submitted writes
type fakeLedger struct {
	mu      sync.Mutex
	states  map[string]models.ProposalState
	readErr map[string]error
	reads   map[string]int

	hashID     string
	submitErr  error
	submitted  []string
	lastCall   models.ProposalCall
	lastVote   []any
	block      chan struct{}
	blockEnter chan struct{}
	txCount    int
}

func newFakeLedger() *fakeLedger {
	return &fakeLedger{
		states:  map[string]models.ProposalState{},
		readErr: map[string]error{},
		reads:   map[string]int{},
		hashID:  "4242",
	}
}

func (l *fakeLedger) set(id string, s models.ProposalState) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.states[id] = s
	delete(l.readErr, id)
}

func (l *fakeLedger) fail(id string, err error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.readErr[id] = err
}

func (l *fakeLedger) readCount(id string) int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.reads[id]
}

func (l *fakeLedger) ReadProposalState(ctx context.Context, governor, proposalID string) (models.ProposalState, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.reads[proposalID]++
	if err, ok := l.readErr[proposalID]; ok {
		return 0, err
	}
	s, ok := l.states[proposalID]
	if !ok {
		return 0, fmt.Errorf("%w: unknown proposal id %s", domain.ErrInvalidProposal, proposalID)
	}
	return s, nil
}

func (l *fakeLedger) HashProposal(ctx context.Context, governor string, call models.ProposalCall) (string, error) {
	return l.hashID, nil
}

func (l *fakeLedger) ChainID(ctx context.Context) (uint64, error) { return 31337, nil }

func (l *fakeLedger) SignerAddress() (string, error) { return creator, nil }

func (l *fakeLedger) record(kind string, call models.ProposalCall) (*models.TxResult, error) {
	if l.blockEnter != nil {
		l.blockEnter <- struct{}{}
	}
	if l.block != nil {
		<-l.block
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.submitErr != nil {
		return nil, l.submitErr
	}
	l.submitted = append(l.submitted, kind)
	l.lastCall = call
	l.txCount++
	return &models.TxResult{
		TxHash:      fmt.Sprintf("0x%064x", l.txCount),
		BlockNumber: uint64(100 + l.txCount),
		GasUsed:     21000,
	}, nil
}

func (l *fakeLedger) SubmitPropose(ctx context.Context, governor string, call models.ProposalCall, description string) (*models.TxResult, error) {
	return l.record("propose", call)
}

func (l *fakeLedger) SubmitDelegate(ctx context.Context, token, delegatee string) (*models.TxResult, error) {
	return l.record("delegate:"+delegatee, models.ProposalCall{})
}

func (l *fakeLedger) SubmitVote(ctx context.Context, governor, proposalID string, support uint8, reason string) (*models.TxResult, error) {
	l.mu.Lock()
	l.lastVote = []any{proposalID, support, reason}
	l.mu.Unlock()
	return l.record("vote", models.ProposalCall{})
}

func (l *fakeLedger) SubmitQueue(ctx context.Context, governor string, call models.ProposalCall) (*models.TxResult, error) {
	return l.record("queue", call)
}

func (l *fakeLedger) SubmitExecute(ctx context.Context, governor string, call models.ProposalCall) (*models.TxResult, error) {
	return l.record("execute", call)
}

func (l *fakeLedger) submissions() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]string{}, l.submitted...)
}

// recordingPublisher keeps every published event
type recordingPublisher struct {
	mu     sync.Mutex
	events []models.ProposalStateChanged
}

func (p *recordingPublisher) PublishStateChange(ctx context.Context, event models.ProposalStateChanged) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, event)
	return nil
}

func (p *recordingPublisher) all() []models.ProposalStateChanged {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]models.ProposalStateChanged{}, p.events...)
}

// MockConfirmer is a mock implementation of Confirmer
type MockConfirmer struct {
	mock.Mock
}

func (m *MockConfirmer) Confirm(ctx context.Context, prompt string) (bool, error) {
	args := m.Called(ctx, prompt)
	return args.Bool(0), args.Error(1)
}

// MockDAOSelector is a mock implementation of DAOSelector
type MockDAOSelector struct {
	mock.Mock
}

func (m *MockDAOSelector) SelectDAO(ctx context.Context, candidates []*models.DAO, prompt string) (*models.DAO, error) {
	args := m.Called(ctx, candidates, prompt)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.DAO), args.Error(1)
}

// countingMetrics counts action outcomes
type countingMetrics struct {
	usecase.NopMetrics
	mu      sync.Mutex
	actions map[string]int
}

func (m *countingMetrics) ObserveAction(action domain.Action, outcome string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.actions == nil {
		m.actions = map[string]int{}
	}
	m.actions[string(action)+":"+outcome]++
}

func (m *countingMetrics) count(key string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.actions[key]
}

func newStore(t *testing.T) *proposals.Store {
	t.Helper()
	store, err := proposals.Open(config.DatabaseConfig{Driver: config.DatabaseDriverSQLite}, logging.Discard())
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func newDAO(t *testing.T, repo usecase.ProposalRepository, name, gov string) *models.DAO {
	t.Helper()
	dao, err := usecase.NewRegisterDAO(repo, usecase.NopProgress{}).Run(context.Background(), usecase.RegisterDAOParams{
		Name:            name,
		Description:     "Manages the treasury",
		Creator:         creator,
		GovernorAddress: gov,
		TokenAddress:    token,
		Treasury:        treasury,
	})
	require.NoError(t, err)
	return dao
}

func strPtr(s string) *string { return &s }

func seedProposal(t *testing.T, repo usecase.ProposalRepository, daoID, id string, state models.ProposalState) *models.Proposal {
	t.Helper()
	res, err := repo.UpsertProposal(context.Background(), daoID, id, models.ProposalUpdate{
		Description:     strPtr("Transfer treasury funds"),
		DescriptionHash: strPtr(descHash),
		ActionType:      strPtr(models.ActionTypeTransferToTreasury),
		Targets:         []string{token},
		Values:          []string{"0"},
		Calldatas:       []string{transferC},
		State:           &state,
	})
	require.NoError(t, err)
	return res.Proposal
}

func testConfig(poll time.Duration) *config.RuntimeConfig {
	return &config.RuntimeConfig{Reconcile: config.ReconcileConfig{PollInterval: poll}}
}

func stateOf(t *testing.T, repo usecase.ProposalRepository, daoID, id string) models.ProposalState {
	t.Helper()
	p, err := repo.GetProposal(context.Background(), daoID, id)
	require.NoError(t, err)
	return p.State
}
