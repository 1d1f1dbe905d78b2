package usecase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/daoservice/govsync/internal/domain"
	"github.com/daoservice/govsync/internal/domain/config"
	"github.com/daoservice/govsync/internal/domain/models"
)

// TickResult describes one reconciliation tick for one proposal
type TickResult struct {
	DAOID      string               `json:"daoId"`
	ProposalID string               `json:"proposalId"`
	Outcome    string               `json:"outcome"`
	Previous   models.ProposalState `json:"previous"`
	Current    models.ProposalState `json:"current"`
	Final      bool                 `json:"final"`
	Error      string               `json:"error,omitempty"`
}

// ProposalTracker keeps one polling task per tracked proposal. Each task
// reads the ledger every poll interval, persists state changes and stops
// once a final state is observed.
type ProposalTracker struct {
	reader    LedgerReader
	repo      ProposalRepository
	publisher EventPublisher
	metrics   Metrics
	log       *slog.Logger
	interval  time.Duration
	now       Clock

	mu    sync.Mutex
	tasks map[string]*trackTask
	group errgroup.Group
}

type trackTask struct {
	cancel context.CancelFunc
}

// NewProposalTracker creates a tracker polling at cfg.Reconcile.PollInterval
func NewProposalTracker(
	reader LedgerReader,
	repo ProposalRepository,
	publisher EventPublisher,
	metrics Metrics,
	cfg *config.RuntimeConfig,
	log *slog.Logger,
) *ProposalTracker {
	return &ProposalTracker{
		reader:    reader,
		repo:      repo,
		publisher: publisher,
		metrics:   metrics,
		log:       log.With("component", "ProposalTracker"),
		interval:  cfg.Reconcile.PollInterval,
		now:       time.Now,
		tasks:     make(map[string]*trackTask),
	}
}

// WithClock overrides the clock used for event timestamps
func (t *ProposalTracker) WithClock(now Clock) *ProposalTracker {
	t.now = now
	return t
}

// Track starts polling tp until its state is final, ctx is cancelled or it
// is untracked. Tracking an already tracked proposal is a no-op and
// returns false.
func (t *ProposalTracker) Track(ctx context.Context, tp models.TrackedProposal) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	key := tp.Key()
	if _, ok := t.tasks[key]; ok {
		return false
	}

	taskCtx, cancel := context.WithCancel(ctx)
	task := &trackTask{cancel: cancel}
	t.tasks[key] = task
	t.metrics.SetTracked(len(t.tasks))

	t.group.Go(func() error {
		defer t.remove(key, task)
		return t.poll(taskCtx, tp)
	})
	t.log.Debug("tracking proposal", "dao", tp.DAOID, "proposal", tp.ProposalID, "state", tp.LastState)
	return true
}

// Untrack cancels the task for one proposal. An in-flight write still completes.
func (t *ProposalTracker) Untrack(daoID, proposalID string) bool {
	key := models.TrackedProposal{DAOID: daoID, ProposalID: proposalID}.Key()

	t.mu.Lock()
	defer t.mu.Unlock()
	task, ok := t.tasks[key]
	if !ok {
		return false
	}
	task.cancel()
	return true
}

// Tracked returns the keys of the proposals currently tracked
func (t *ProposalTracker) Tracked() []string {
	t.mu.Lock()
	defer t.mu.Unlock()
	keys := make([]string, 0, len(t.tasks))
	for k := range t.tasks {
		keys = append(keys, k)
	}
	return keys
}

// Resume tracks every persisted proposal whose state is not final. A
// non-empty daoID restricts it to one DAO. Returns how many were started.
func (t *ProposalTracker) Resume(ctx context.Context, daoID string) (int, error) {
	tracked, err := t.repo.ListTrackedProposals(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to load tracked proposals: %w", err)
	}
	started := 0
	for _, tp := range tracked {
		if daoID != "" && tp.DAOID != daoID {
			continue
		}
		if t.Track(ctx, tp) {
			started++
		}
	}
	return started, nil
}

// Wait blocks until every task has finished and returns the first task error
func (t *ProposalTracker) Wait() error {
	return t.group.Wait()
}

// Stop cancels every task and waits for them to return
func (t *ProposalTracker) Stop() error {
	t.mu.Lock()
	for _, task := range t.tasks {
		task.cancel()
	}
	t.mu.Unlock()
	return t.group.Wait()
}

func (t *ProposalTracker) remove(key string, task *trackTask) {
	t.mu.Lock()
	defer t.mu.Unlock()
	task.cancel()
	if t.tasks[key] == task {
		delete(t.tasks, key)
	}
	t.metrics.SetTracked(len(t.tasks))
}

func (t *ProposalTracker) poll(ctx context.Context, tp models.TrackedProposal) error {
	ticker := time.NewTicker(t.interval)
	defer ticker.Stop()

	log := t.log.With("dao", tp.DAOID, "proposal", tp.ProposalID)
	for {
		res, err := t.Reconcile(ctx, tp)
		switch {
		case ctx.Err() != nil:
			return nil
		case err == nil:
			tp.LastState = res.Current
			if res.Final {
				log.Info("proposal reached final state, stopped tracking", "state", res.Current)
				return nil
			}
		case errors.Is(err, domain.ErrLedgerUnavailable):
			log.Warn("ledger unavailable, retrying next tick", "error", err)
		case errors.Is(err, domain.ErrInvalidProposal):
			log.Warn("ledger does not know proposal", "error", err)
		default:
			return fmt.Errorf("reconcile %s: %w", tp.Key(), err)
		}

		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}
	}
}

// Reconcile runs a single tick for tp: read the ledger state and persist it
// when it differs from tp.LastState. The write is detached from ctx
// cancellation so a stopping tracker never leaves a half-applied tick.
func (t *ProposalTracker) Reconcile(ctx context.Context, tp models.TrackedProposal) (*TickResult, error) {
	start := time.Now()
	res := &TickResult{
		DAOID:      tp.DAOID,
		ProposalID: tp.ProposalID,
		Previous:   tp.LastState,
		Current:    tp.LastState,
	}

	state, err := t.reader.ReadProposalState(ctx, tp.GovernorAddress, tp.ProposalID)
	if err != nil {
		switch {
		case errors.Is(err, domain.ErrLedgerUnavailable):
			res.Outcome = TickUnavailable
		case errors.Is(err, context.DeadlineExceeded):
			res.Outcome = TickUnavailable
			err = fmt.Errorf("%w: %w", domain.ErrLedgerUnavailable, err)
		case errors.Is(err, domain.ErrInvalidProposal):
			res.Outcome = TickInvalid
		default:
			res.Outcome = TickFailed
		}
		res.Error = err.Error()
		t.metrics.ObserveTick(res.Outcome, time.Since(start))
		return res, err
	}

	res.Current = state
	res.Final = state.IsFinal()
	if state == tp.LastState {
		res.Outcome = TickUnchanged
		t.metrics.ObserveTick(res.Outcome, time.Since(start))
		return res, nil
	}

	writeCtx := context.WithoutCancel(ctx)
	if _, err := t.repo.UpsertProposal(writeCtx, tp.DAOID, tp.ProposalID, models.StateUpdate(state)); err != nil {
		res.Outcome = TickFailed
		res.Current = tp.LastState
		res.Final = false
		res.Error = err.Error()
		t.metrics.ObserveTick(res.Outcome, time.Since(start))
		return res, fmt.Errorf("failed to persist state %s: %w", state, err)
	}

	res.Outcome = TickChanged
	t.metrics.ObserveTick(res.Outcome, time.Since(start))
	t.metrics.ObserveStateChange(tp.LastState, state)
	t.log.Info("proposal state changed", "dao", tp.DAOID, "proposal", tp.ProposalID, "from", tp.LastState, "to", state)

	event := models.ProposalStateChanged{
		DAOID:      tp.DAOID,
		ProposalID: tp.ProposalID,
		Previous:   tp.LastState,
		Current:    state,
		StateName:  state.String(),
		ObservedAt: t.now(),
	}
	if err := t.publisher.PublishStateChange(writeCtx, event); err != nil {
		t.log.Warn("failed to publish state change", "proposal", tp.ProposalID, "error", err)
	}
	return res, nil
}

// SyncProposalsParams selects what a one-shot sync reconciles
type SyncProposalsParams struct {
	DAOID string
	// ProposalID restricts the sync to one proposal
	ProposalID string
	// IncludeFinal also re-reads proposals whose cached state is final
	IncludeFinal bool
}

// ReconcileProposals drives reconciliation from the CLI: a single pass
// (`proposal sync`) or continuous tracking (`proposal watch`)
type ReconcileProposals struct {
	repo    ProposalRepository
	tracker *ProposalTracker
	sink    ProgressSink
}

// NewReconcileProposals creates a new ReconcileProposals use case
func NewReconcileProposals(repo ProposalRepository, tracker *ProposalTracker, sink ProgressSink) *ReconcileProposals {
	return &ReconcileProposals{
		repo:    repo,
		tracker: tracker,
		sink:    sink,
	}
}

// Sync reconciles every selected proposal once. Ledger failures are reported
// per proposal. Repository failures abort.
func (uc *ReconcileProposals) Sync(ctx context.Context, params SyncProposalsParams) ([]*TickResult, error) {
	dao, err := uc.repo.GetDAO(ctx, params.DAOID)
	if err != nil {
		return nil, err
	}

	var results []*TickResult
	for _, p := range dao.Proposals {
		if params.ProposalID != "" && p.ProposalID != params.ProposalID {
			continue
		}
		if p.State.IsFinal() && !params.IncludeFinal && params.ProposalID == "" {
			continue
		}

		uc.sink.OnProgress(ctx, ProgressEvent{
			Stage:   "syncing",
			Message: fmt.Sprintf("Reading state of proposal %s", p.ProposalID),
			Spinner: true,
		})
		res, err := uc.tracker.Reconcile(ctx, models.TrackedProposal{
			DAOID:           dao.ID,
			GovernorAddress: dao.GovernorAddress,
			ProposalID:      p.ProposalID,
			LastState:       p.State,
		})
		if err != nil && res.Outcome == TickFailed {
			return results, err
		}
		results = append(results, res)
	}

	if params.ProposalID != "" && len(results) == 0 {
		return nil, fmt.Errorf("%w: proposal %s in DAO %s", domain.ErrNotFound, params.ProposalID, dao.ID)
	}
	return results, nil
}

// Watch resumes tracking for daoID (every DAO when empty) and blocks until
// all tracked proposals are final or ctx is cancelled
func (uc *ReconcileProposals) Watch(ctx context.Context, daoID string) (int, error) {
	started, err := uc.tracker.Resume(ctx, daoID)
	if err != nil {
		return 0, err
	}
	uc.sink.Info(fmt.Sprintf("Tracking %d proposal(s)", started))

	done := make(chan error, 1)
	go func() { done <- uc.tracker.Wait() }()

	select {
	case err := <-done:
		return started, err
	case <-ctx.Done():
		if err := uc.tracker.Stop(); err != nil {
			return started, err
		}
		<-done
		return started, nil
	}
}
