package usecase

import (
	"context"

	"github.com/samber/lo"

	"github.com/daoservice/govsync/internal/domain/models"
)

// ProposalListResult contains a DAO's proposals and per-state counts
type ProposalListResult struct {
	DAO       *models.DAO                  `json:"dao"`
	Proposals []*models.Proposal           `json:"proposals"`
	Counts    map[models.ProposalState]int `json:"counts"`
}

// ListProposals is the use case for listing a DAO's cached proposals
type ListProposals struct {
	repo ProposalRepository
}

// NewListProposals creates a new ListProposals use case
func NewListProposals(repo ProposalRepository) *ListProposals {
	return &ListProposals{repo: repo}
}

// Run lists proposals newest first, optionally restricted to the given states
func (uc *ListProposals) Run(ctx context.Context, daoID string, states ...models.ProposalState) (*ProposalListResult, error) {
	dao, err := uc.repo.GetDAO(ctx, daoID)
	if err != nil {
		return nil, err
	}
	proposals, err := uc.repo.ListProposals(ctx, daoID)
	if err != nil {
		return nil, err
	}

	counts := lo.CountValuesBy(proposals, func(p *models.Proposal) models.ProposalState { return p.State })
	if len(states) > 0 {
		proposals = lo.Filter(proposals, func(p *models.Proposal, _ int) bool {
			return lo.Contains(states, p.State)
		})
	}

	dao.Proposals = nil
	return &ProposalListResult{
		DAO:       dao,
		Proposals: proposals,
		Counts:    counts,
	}, nil
}
