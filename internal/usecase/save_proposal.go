package usecase

import (
	"context"
	"fmt"

	"github.com/daoservice/govsync/internal/domain"
	"github.com/daoservice/govsync/internal/domain/models"
)

// SaveProposalParams is the create-or-update payload for one proposal
type SaveProposalParams struct {
	DAOID      string
	ProposalID string
	Update     models.ProposalUpdate
	// Track starts reconciliation when the saved state is not final
	Track bool
}

// SaveProposal is the use case behind `proposal save`
type SaveProposal struct {
	repo    ProposalRepository
	codec   CalldataCodec
	tracker *ProposalTracker
}

// NewSaveProposal creates a new SaveProposal use case. tracker may be nil.
func NewSaveProposal(repo ProposalRepository, codec CalldataCodec, tracker *ProposalTracker) *SaveProposal {
	return &SaveProposal{
		repo:    repo,
		codec:   codec,
		tracker: tracker,
	}
}

// Run creates the proposal or merges the present fields into the cached one.
// A description without a hash gets its keccak256 filled in.
func (uc *SaveProposal) Run(ctx context.Context, params SaveProposalParams) (*UpsertResult, error) {
	if !domain.KnownProposalID(params.ProposalID) {
		return nil, domain.NewValidationError("proposalId", "must be a non-zero decimal uint256, got %q", params.ProposalID)
	}

	update := params.Update
	if update.HasDescription() && !update.HasDescriptionHash() {
		hash := uc.codec.DescriptionHash(*update.Description)
		update.DescriptionHash = &hash
	}

	result, err := uc.repo.UpsertProposal(ctx, params.DAOID, params.ProposalID, update)
	if err != nil {
		return nil, fmt.Errorf("failed to save proposal %s: %w", params.ProposalID, err)
	}

	if params.Track && uc.tracker != nil && !result.Proposal.State.IsFinal() {
		dao, err := uc.repo.GetDAO(ctx, params.DAOID)
		if err != nil {
			return nil, err
		}
		uc.tracker.Track(ctx, models.TrackedProposal{
			DAOID:           dao.ID,
			GovernorAddress: dao.GovernorAddress,
			ProposalID:      result.Proposal.ProposalID,
			LastState:       result.Proposal.State,
		})
	}
	return result, nil
}
