package usecase_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/daoservice/govsync/internal/domain"
	"github.com/daoservice/govsync/internal/domain/models"
	"github.com/daoservice/govsync/internal/logging"
	"github.com/daoservice/govsync/internal/usecase"
)

func newTracker(ledger *fakeLedger, repo usecase.ProposalRepository, pub usecase.EventPublisher, poll time.Duration) *usecase.ProposalTracker {
	return usecase.NewProposalTracker(ledger, repo, pub, usecase.NopMetrics{}, testConfig(poll), logging.Discard())
}

func TestProposalTracker_Reconcile(t *testing.T) {
	ctx := context.Background()
	store := newStore(t)
	dao := newDAO(t, store, "Treasury DAO", governor)
	seedProposal(t, store, dao.ID, "42", models.ProposalStatePending)

	ledger := newFakeLedger()
	pub := &recordingPublisher{}
	tracker := newTracker(ledger, store, pub, time.Hour)
	tp := models.TrackedProposal{DAOID: dao.ID, GovernorAddress: dao.GovernorAddress, ProposalID: "42"}

	t.Run("change is persisted and published", func(t *testing.T) {
		ledger.set("42", models.ProposalStateActive)
		res, err := tracker.Reconcile(ctx, tp)
		require.NoError(t, err)

		assert.Equal(t, usecase.TickChanged, res.Outcome)
		assert.Equal(t, models.ProposalStateActive, res.Current)
		assert.False(t, res.Final)
		assert.Equal(t, models.ProposalStateActive, stateOf(t, store, dao.ID, "42"))

		events := pub.all()
		require.Len(t, events, 1)
		assert.Equal(t, models.ProposalStatePending, events[0].Previous)
		assert.Equal(t, "Active", events[0].StateName)
	})

	t.Run("same state twice is a no-op", func(t *testing.T) {
		tp.LastState = models.ProposalStateActive
		before, err := store.GetProposal(ctx, dao.ID, "42")
		require.NoError(t, err)

		res, err := tracker.Reconcile(ctx, tp)
		require.NoError(t, err)
		assert.Equal(t, usecase.TickUnchanged, res.Outcome)

		after, err := store.GetProposal(ctx, dao.ID, "42")
		require.NoError(t, err)
		assert.True(t, before.UpdatedAt.Equal(after.UpdatedAt))
		assert.Len(t, pub.all(), 1)
	})

	t.Run("ledger unavailable leaves the cache alone", func(t *testing.T) {
		ledger.fail("42", domain.ErrLedgerUnavailable)
		res, err := tracker.Reconcile(ctx, tp)

		assert.ErrorIs(t, err, domain.ErrLedgerUnavailable)
		assert.Equal(t, usecase.TickUnavailable, res.Outcome)
		assert.Equal(t, models.ProposalStateActive, stateOf(t, store, dao.ID, "42"))
	})

	t.Run("deadline counts as unavailable", func(t *testing.T) {
		ledger.fail("42", context.DeadlineExceeded)
		res, err := tracker.Reconcile(ctx, tp)

		assert.ErrorIs(t, err, domain.ErrLedgerUnavailable)
		assert.Equal(t, usecase.TickUnavailable, res.Outcome)
	})

	t.Run("unknown proposal is invalid", func(t *testing.T) {
		res, err := tracker.Reconcile(ctx, models.TrackedProposal{DAOID: dao.ID, GovernorAddress: governor, ProposalID: "77"})

		assert.ErrorIs(t, err, domain.ErrInvalidProposal)
		assert.Equal(t, usecase.TickInvalid, res.Outcome)
	})

	t.Run("queued is final", func(t *testing.T) {
		ledger.set("42", models.ProposalStateQueued)
		res, err := tracker.Reconcile(ctx, tp)
		require.NoError(t, err)
		assert.True(t, res.Final)
	})
}

func TestProposalTracker_TrackStopsOnFinalState(t *testing.T) {
	store := newStore(t)
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())

	dao := newDAO(t, store, "Treasury DAO", governor)
	seedProposal(t, store, dao.ID, "42", models.ProposalStateActive)

	ledger := newFakeLedger()
	ledger.set("42", models.ProposalStateActive)
	tracker := newTracker(ledger, store, usecase.NopPublisher{}, 5*time.Millisecond)

	tp := models.TrackedProposal{DAOID: dao.ID, GovernorAddress: governor, ProposalID: "42", LastState: models.ProposalStateActive}
	assert.True(t, tracker.Track(context.Background(), tp))
	assert.False(t, tracker.Track(context.Background(), tp), "tracking is idempotent per proposal")
	assert.Len(t, tracker.Tracked(), 1)

	require.Eventually(t, func() bool { return ledger.readCount("42") >= 2 }, time.Second, time.Millisecond)
	ledger.set("42", models.ProposalStateSucceeded)
	require.Eventually(t, func() bool {
		return stateOf(t, store, dao.ID, "42") == models.ProposalStateSucceeded
	}, time.Second, 5*time.Millisecond)

	ledger.set("42", models.ProposalStateQueued)
	require.NoError(t, tracker.Wait())

	assert.Equal(t, models.ProposalStateQueued, stateOf(t, store, dao.ID, "42"))
	assert.Empty(t, tracker.Tracked())

	reads := ledger.readCount("42")
	time.Sleep(20 * time.Millisecond)
	assert.Equal(t, reads, ledger.readCount("42"), "no polling after a final state")
}

func TestProposalTracker_UntrackAndStop(t *testing.T) {
	store := newStore(t)
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())

	dao := newDAO(t, store, "Treasury DAO", governor)
	seedProposal(t, store, dao.ID, "1", models.ProposalStatePending)
	seedProposal(t, store, dao.ID, "2", models.ProposalStatePending)

	ledger := newFakeLedger()
	ledger.fail("1", domain.ErrLedgerUnavailable)
	ledger.set("2", models.ProposalStatePending)
	tracker := newTracker(ledger, store, usecase.NopPublisher{}, 2*time.Millisecond)

	n, err := tracker.Resume(context.Background(), dao.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	require.Eventually(t, func() bool { return ledger.readCount("1") >= 3 }, time.Second, time.Millisecond,
		"unavailable ledger is retried on the next tick")

	assert.True(t, tracker.Untrack(dao.ID, "1"))
	require.Eventually(t, func() bool { return len(tracker.Tracked()) == 1 }, time.Second, time.Millisecond)
	assert.False(t, tracker.Untrack(dao.ID, "1"))

	require.NoError(t, tracker.Stop())
	assert.Empty(t, tracker.Tracked())
}

func TestProposalTracker_ResumeSkipsFinal(t *testing.T) {
	store := newStore(t)
	dao := newDAO(t, store, "Treasury DAO", governor)
	other := newDAO(t, store, "Other DAO", treasury)
	seedProposal(t, store, dao.ID, "1", models.ProposalStateActive)
	seedProposal(t, store, dao.ID, "2", models.ProposalStateExecuted)
	seedProposal(t, store, other.ID, "3", models.ProposalStatePending)

	ledger := newFakeLedger()
	ledger.set("1", models.ProposalStateActive)
	tracker := newTracker(ledger, store, usecase.NopPublisher{}, time.Hour)

	ctx, cancel := context.WithCancel(context.Background())
	n, err := tracker.Resume(ctx, dao.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.Equal(t, []string{dao.ID + "/1"}, tracker.Tracked())

	cancel()
	require.NoError(t, tracker.Wait())
}

func TestProposalTracker_RepositoryErrorEndsTask(t *testing.T) {
	store := newStore(t)
	ledger := newFakeLedger()
	ledger.set("5", models.ProposalStateActive)
	tracker := newTracker(ledger, store, usecase.NopPublisher{}, time.Millisecond)

	tracker.Track(context.Background(), models.TrackedProposal{DAOID: "missing", GovernorAddress: governor, ProposalID: "5"})
	err := tracker.Wait()

	require.Error(t, err)
	assert.True(t, errors.Is(err, domain.ErrNotFound))
}

func TestReconcileProposals_Sync(t *testing.T) {
	ctx := context.Background()
	store := newStore(t)
	dao := newDAO(t, store, "Treasury DAO", governor)
	seedProposal(t, store, dao.ID, "1", models.ProposalStateActive)
	seedProposal(t, store, dao.ID, "2", models.ProposalStateQueued)
	seedProposal(t, store, dao.ID, "3", models.ProposalStatePending)

	ledger := newFakeLedger()
	ledger.set("1", models.ProposalStateSucceeded)
	ledger.set("2", models.ProposalStateExecuted)
	ledger.fail("3", domain.ErrLedgerUnavailable)
	uc := usecase.NewReconcileProposals(store, newTracker(ledger, store, usecase.NopPublisher{}, time.Hour), usecase.NopProgress{})

	results, err := uc.Sync(ctx, usecase.SyncProposalsParams{DAOID: dao.ID})
	require.NoError(t, err)
	require.Len(t, results, 2)

	outcomes := map[string]string{}
	for _, r := range results {
		outcomes[r.ProposalID] = r.Outcome
	}
	assert.Equal(t, map[string]string{"1": usecase.TickChanged, "3": usecase.TickUnavailable}, outcomes)
	assert.Equal(t, models.ProposalStateSucceeded, stateOf(t, store, dao.ID, "1"))
	assert.Equal(t, models.ProposalStateQueued, stateOf(t, store, dao.ID, "2"))

	t.Run("include final re-reads queued proposals", func(t *testing.T) {
		results, err := uc.Sync(ctx, usecase.SyncProposalsParams{DAOID: dao.ID, IncludeFinal: true})
		require.NoError(t, err)
		assert.Len(t, results, 3)
		assert.Equal(t, models.ProposalStateExecuted, stateOf(t, store, dao.ID, "2"))
	})

	t.Run("single unknown proposal", func(t *testing.T) {
		_, err := uc.Sync(ctx, usecase.SyncProposalsParams{DAOID: dao.ID, ProposalID: "99"})
		assert.ErrorIs(t, err, domain.ErrNotFound)
	})
}

func TestReconcileProposals_WatchReturnsOnCancel(t *testing.T) {
	store := newStore(t)
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())

	dao := newDAO(t, store, "Treasury DAO", governor)
	seedProposal(t, store, dao.ID, "1", models.ProposalStateActive)
	ledger := newFakeLedger()
	ledger.set("1", models.ProposalStateActive)
	uc := usecase.NewReconcileProposals(store, newTracker(ledger, store, usecase.NopPublisher{}, time.Millisecond), usecase.NopProgress{})

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		for ledger.readCount("1") < 2 {
			time.Sleep(time.Millisecond)
		}
		cancel()
	}()

	n, err := uc.Watch(ctx, "")
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}
