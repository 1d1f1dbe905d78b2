package usecase

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/sahilm/fuzzy"
	"github.com/samber/lo"

	"github.com/daoservice/govsync/internal/domain"
	"github.com/daoservice/govsync/internal/domain/models"
)

// ListDAOs is the use case for listing registered DAOs
type ListDAOs struct {
	repo ProposalRepository
}

// NewListDAOs creates a new ListDAOs use case
func NewListDAOs(repo ProposalRepository) *ListDAOs {
	return &ListDAOs{repo: repo}
}

// Run returns DAOs matching filter, newest first
func (uc *ListDAOs) Run(ctx context.Context, filter models.DAOFilter) ([]*models.DAO, error) {
	return uc.repo.ListDAOs(ctx, filter)
}

// ResolveDAO turns a user supplied reference into a DAO. The reference can
// be the DAO id, its governor address or (part of) its name.
type ResolveDAO struct {
	repo     ProposalRepository
	selector DAOSelector
}

// NewResolveDAO creates a new ResolveDAO use case. selector may be nil in
// non-interactive contexts.
func NewResolveDAO(repo ProposalRepository, selector DAOSelector) *ResolveDAO {
	return &ResolveDAO{
		repo:     repo,
		selector: selector,
	}
}

// Run resolves ref. An empty ref lets the user pick among every DAO.
func (uc *ResolveDAO) Run(ctx context.Context, ref string) (*models.DAO, error) {
	ref = strings.TrimSpace(ref)

	if ref != "" {
		dao, err := uc.repo.GetDAO(ctx, ref)
		if err == nil {
			return dao, nil
		}
		if !errors.Is(err, domain.ErrNotFound) {
			return nil, err
		}
	}

	if domain.IsAddress(ref) {
		daos, err := uc.repo.ListDAOs(ctx, models.DAOFilter{GovernorAddress: ref})
		if err != nil {
			return nil, err
		}
		if len(daos) == 0 {
			return nil, fmt.Errorf("%w: no DAO with governor %s", domain.ErrNotFound, ref)
		}
		return uc.repo.GetDAO(ctx, daos[0].ID)
	}

	all, err := uc.repo.ListDAOs(ctx, models.DAOFilter{})
	if err != nil {
		return nil, err
	}
	candidates := matchDAOsByName(all, ref)

	switch len(candidates) {
	case 0:
		if ref == "" {
			return nil, fmt.Errorf("%w: no DAOs registered", domain.ErrNotFound)
		}
		return nil, fmt.Errorf("%w: no DAO matches %q", domain.ErrNotFound, ref)
	case 1:
		return uc.repo.GetDAO(ctx, candidates[0].ID)
	}

	if uc.selector == nil {
		names := lo.Map(candidates, func(d *models.DAO, _ int) string { return d.Name })
		return nil, fmt.Errorf("%q is ambiguous, matches: %s", ref, strings.Join(names, ", "))
	}
	picked, err := uc.selector.SelectDAO(ctx, candidates, "Select DAO")
	if err != nil {
		return nil, err
	}
	return uc.repo.GetDAO(ctx, picked.ID)
}

// matchDAOsByName prefers exact case-insensitive name matches and falls back
// to fuzzy matching, best score first
func matchDAOsByName(daos []*models.DAO, ref string) []*models.DAO {
	if ref == "" {
		return daos
	}

	exact := lo.Filter(daos, func(d *models.DAO, _ int) bool {
		return strings.EqualFold(d.Name, ref)
	})
	if len(exact) > 0 {
		return exact
	}

	names := lo.Map(daos, func(d *models.DAO, _ int) string { return d.Name })
	matches := fuzzy.Find(ref, names)
	return lo.Map(matches, func(m fuzzy.Match, _ int) *models.DAO { return daos[m.Index] })
}
