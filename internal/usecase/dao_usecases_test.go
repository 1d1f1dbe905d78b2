package usecase_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/daoservice/govsync/internal/adapters/calldata"
	"github.com/daoservice/govsync/internal/domain"
	"github.com/daoservice/govsync/internal/domain/models"
	"github.com/daoservice/govsync/internal/usecase"
)

func TestRegisterDAO(t *testing.T) {
	ctx := context.Background()
	store := newStore(t)
	uc := usecase.NewRegisterDAO(store, usecase.NopProgress{})

	dao, err := uc.Run(ctx, usecase.RegisterDAOParams{
		Name:            "  Treasury\n  DAO\x07 ",
		Description:     "Grants\tand bounties",
		Creator:         creator,
		GovernorAddress: " " + governor + " ",
		TokenAddress:    token,
		Treasury:        treasury,
	})
	require.NoError(t, err)
	assert.NotEmpty(t, dao.ID)
	assert.Equal(t, "Treasury DAO", dao.Name)
	assert.Equal(t, "Grants and bounties", dao.Description)
	assert.Equal(t, governor, dao.GovernorAddress)

	t.Run("duplicate governor conflicts", func(t *testing.T) {
		_, err := uc.Run(ctx, usecase.RegisterDAOParams{
			Name: "Copy", Description: "d", Creator: creator,
			GovernorAddress: governor, TokenAddress: token, Treasury: treasury,
		})
		assert.ErrorIs(t, err, domain.ErrConflict)
	})

	t.Run("name made only of control characters is missing", func(t *testing.T) {
		_, err := uc.Run(ctx, usecase.RegisterDAOParams{
			Name: "\x01\x02", Description: "d", Creator: creator,
			GovernorAddress: recipient, TokenAddress: token, Treasury: treasury,
		})
		var ve *domain.ValidationError
		require.ErrorAs(t, err, &ve)
		assert.Equal(t, "name", ve.Field)
	})
}

func TestResolveDAO(t *testing.T) {
	ctx := context.Background()
	store := newStore(t)
	treasuryDAO := newDAO(t, store, "Treasury DAO", governor)
	grants := newDAO(t, store, "Grants Council", treasury)
	_ = newDAO(t, store, "Grants Committee", recipient)

	tests := []struct {
		name string
		ref  string
		want string
	}{
		{"by id", treasuryDAO.ID, treasuryDAO.ID},
		{"by governor", grants.GovernorAddress, grants.ID},
		{"by lowercase governor", "0x9fe46736679d2d9a65f0992f2272de9f3c7fa6e0", grants.ID},
		{"by exact name", "treasury dao", treasuryDAO.ID},
		{"by fuzzy name", "trsry", treasuryDAO.ID},
		{"by exact name among fuzzy matches", "Grants Council", grants.ID},
	}
	uc := usecase.NewResolveDAO(store, nil)
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dao, err := uc.Run(ctx, tt.ref)
			require.NoError(t, err)
			assert.Equal(t, tt.want, dao.ID)
		})
	}

	t.Run("unknown", func(t *testing.T) {
		_, err := uc.Run(ctx, "zzzz")
		assert.ErrorIs(t, err, domain.ErrNotFound)
	})

	t.Run("ambiguous without selector", func(t *testing.T) {
		_, err := uc.Run(ctx, "grants")
		require.Error(t, err)
		assert.Contains(t, err.Error(), "ambiguous")
	})

	t.Run("ambiguous with selector", func(t *testing.T) {
		selector := new(MockDAOSelector)
		selector.On("SelectDAO", mock.Anything, mock.MatchedBy(func(c []*models.DAO) bool { return len(c) == 2 }), "Select DAO").
			Return(grants, nil).Once()

		dao, err := usecase.NewResolveDAO(store, selector).Run(ctx, "grants")
		require.NoError(t, err)
		assert.Equal(t, grants.ID, dao.ID)
		selector.AssertExpectations(t)
	})
}

func TestListProposals(t *testing.T) {
	ctx := context.Background()
	store := newStore(t)
	dao := newDAO(t, store, "Treasury DAO", governor)
	seedProposal(t, store, dao.ID, "1", models.ProposalStateExecuted)
	time.Sleep(2 * time.Millisecond)
	seedProposal(t, store, dao.ID, "2", models.ProposalStateActive)
	time.Sleep(2 * time.Millisecond)
	seedProposal(t, store, dao.ID, "3", models.ProposalStateExecuted)

	uc := usecase.NewListProposals(store)
	res, err := uc.Run(ctx, dao.ID)
	require.NoError(t, err)

	ids := []string{}
	for _, p := range res.Proposals {
		ids = append(ids, p.ProposalID)
	}
	assert.Equal(t, []string{"3", "2", "1"}, ids)
	assert.Equal(t, map[models.ProposalState]int{
		models.ProposalStateExecuted: 2,
		models.ProposalStateActive:   1,
	}, res.Counts)

	filtered, err := uc.Run(ctx, dao.ID, models.ProposalStateActive)
	require.NoError(t, err)
	require.Len(t, filtered.Proposals, 1)
	assert.Equal(t, "2", filtered.Proposals[0].ProposalID)
	assert.Equal(t, 2, filtered.Counts[models.ProposalStateExecuted])

	_, err = uc.Run(ctx, "missing")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestSaveProposal(t *testing.T) {
	ctx := context.Background()
	store := newStore(t)
	dao := newDAO(t, store, "Treasury DAO", governor)
	uc := usecase.NewSaveProposal(store, calldata.NewCodec(), nil)

	update := models.ProposalUpdate{
		Description: strPtr("Transfer treasury funds"),
		Targets:     []string{token},
		Values:      []string{"0"},
		Calldatas:   []string{transferC},
	}
	res, err := uc.Run(ctx, usecase.SaveProposalParams{DAOID: dao.ID, ProposalID: "42", Update: update})
	require.NoError(t, err)
	assert.True(t, res.Created)
	assert.Equal(t, descHash, res.Proposal.DescriptionHash, "hash derived from description")

	listed, err := store.ListProposals(ctx, dao.ID)
	require.NoError(t, err)
	require.Len(t, listed, 1)
	assert.Equal(t, "Transfer treasury funds", listed[0].Description)
	assert.Equal(t, []string{token}, listed[0].Targets)
	assert.Equal(t, []string{"0"}, listed[0].Values)
	assert.Equal(t, []string{transferC}, listed[0].Calldatas)

	res, err = uc.Run(ctx, usecase.SaveProposalParams{DAOID: dao.ID, ProposalID: "42", Update: models.StateUpdate(models.ProposalStateActive)})
	require.NoError(t, err)
	assert.False(t, res.Created)
	assert.Equal(t, models.ProposalStateActive, res.Proposal.State)
	assert.Equal(t, "Transfer treasury funds", res.Proposal.Description)

	_, err = uc.Run(ctx, usecase.SaveProposalParams{DAOID: dao.ID, ProposalID: "0", Update: update})
	assert.ErrorIs(t, err, domain.ErrValidation)
}

func TestSaveProposal_Track(t *testing.T) {
	store := newStore(t)
	dao := newDAO(t, store, "Treasury DAO", governor)
	ledger := newFakeLedger()
	ledger.set("42", models.ProposalStateActive)
	tracker := newTracker(ledger, store, usecase.NopPublisher{}, time.Hour)
	defer func() { _ = tracker.Stop() }()

	seedProposal(t, store, dao.ID, "42", models.ProposalStatePending)
	seedProposal(t, store, dao.ID, "43", models.ProposalStatePending)
	uc := usecase.NewSaveProposal(store, calldata.NewCodec(), tracker)

	_, err := uc.Run(context.Background(), usecase.SaveProposalParams{
		DAOID: dao.ID, ProposalID: "42", Update: models.StateUpdate(models.ProposalStateActive), Track: true,
	})
	require.NoError(t, err)
	_, err = uc.Run(context.Background(), usecase.SaveProposalParams{
		DAOID: dao.ID, ProposalID: "43", Update: models.StateUpdate(models.ProposalStateCanceled), Track: true,
	})
	require.NoError(t, err)

	assert.Equal(t, []string{dao.ID + "/42"}, tracker.Tracked())
}

func TestShowProposal(t *testing.T) {
	ctx := context.Background()
	store := newStore(t)
	dao := newDAO(t, store, "Treasury DAO", governor)
	seedProposal(t, store, dao.ID, "42", models.ProposalStateSucceeded)

	ledger := newFakeLedger()
	ledger.set("42", models.ProposalStateQueued)
	uc := usecase.NewShowProposal(store, calldata.NewCodec(), ledger)

	details, err := uc.Run(ctx, dao.ID, "42", false)
	require.NoError(t, err)
	require.NotNil(t, details.Transfer)
	assert.Equal(t, recipient, details.Transfer.Recipient)
	assert.Equal(t, "1", details.Transfer.Amount)
	assert.Nil(t, details.LedgerState)

	allowed := map[domain.Action]bool{}
	for _, e := range details.Eligibility {
		allowed[e.Action] = e.Allowed
	}
	assert.True(t, allowed[domain.ActionQueue])
	assert.False(t, allowed[domain.ActionExecute])
	assert.True(t, allowed[domain.ActionPropose])

	live, err := uc.Run(ctx, dao.ID, "42", true)
	require.NoError(t, err)
	require.NotNil(t, live.LedgerState)
	assert.Equal(t, models.ProposalStateQueued, *live.LedgerState)
	assert.Equal(t, models.ProposalStateSucceeded, live.Proposal.State, "show never writes")

	_, err = uc.Run(ctx, dao.ID, "43", false)
	assert.ErrorIs(t, err, domain.ErrNotFound)
}
