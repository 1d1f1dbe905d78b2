package proposals

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"gorm.io/datatypes"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/daoservice/govsync/internal/domain"
	"github.com/daoservice/govsync/internal/domain/models"
	"github.com/daoservice/govsync/internal/usecase"
)

// UpsertProposal creates a proposal from a complete payload or merges the
// present fields of a partial one. Creating an Active proposal demotes every
// other Active proposal of the DAO to Pending in the same transaction.
func (s *Store) UpsertProposal(ctx context.Context, daoID, proposalID string, update models.ProposalUpdate) (*usecase.UpsertResult, error) {
	canonical, ok := domain.CanonicalProposalID(proposalID)
	if !ok {
		return nil, domain.NewValidationError("proposalId", "must be a decimal uint256, got %q", proposalID)
	}
	proposalID = canonical
	if err := domain.ValidateProposalUpdate(update); err != nil {
		return nil, err
	}
	values, err := domain.NormalizeValues(update.Values)
	if err != nil {
		return nil, err
	}
	update.Values = values

	unlock := s.lockDAO(daoID)
	defer unlock()

	var result *usecase.UpsertResult
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		// FOR UPDATE on postgres, a no-op on sqlite where lockDAO covers it
		var dao daoRow
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).Where("id = ?", daoID).First(&dao).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return fmt.Errorf("dao %s: %w", daoID, domain.ErrNotFound)
			}
			return err
		}

		var row proposalRow
		err := tx.Where("dao_id = ? AND proposal_id = ?", daoID, proposalID).First(&row).Error
		switch {
		case errors.Is(err, gorm.ErrRecordNotFound):
			p, err := s.createProposal(tx, daoID, proposalID, update)
			if err != nil {
				return err
			}
			result = &usecase.UpsertResult{Created: true, Changed: true, Proposal: p}
			return nil
		case err != nil:
			return err
		}

		p, changed, err := s.mergeProposal(tx, &row, update)
		if err != nil {
			return err
		}
		result = &usecase.UpsertResult{Changed: changed, Proposal: p}
		return nil
	})
	if err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return nil, fmt.Errorf("%w: proposal %s already exists", domain.ErrConflict, proposalID)
		}
		return nil, err
	}
	return result, nil
}

func (s *Store) createProposal(tx *gorm.DB, daoID, proposalID string, update models.ProposalUpdate) (*models.Proposal, error) {
	if missing := update.MissingForCreate(); len(missing) > 0 {
		return nil, domain.NewValidationError(missing[0], "required to create a proposal (missing: %s)", strings.Join(missing, ", "))
	}
	if err := domain.ValidateArity(update.Targets, update.Values, update.Calldatas); err != nil {
		return nil, err
	}

	p := models.NewProposal(proposalID, update, s.now())
	if err := domain.ValidateProposal(p); err != nil {
		return nil, err
	}

	if p.State == models.ProposalStateActive {
		demoted := tx.Model(&proposalRow{}).
			Where("dao_id = ? AND state = ?", daoID, uint8(models.ProposalStateActive)).
			Updates(map[string]any{
				"state":      uint8(models.ProposalStatePending),
				"updated_at": p.UpdatedAt,
			})
		if demoted.Error != nil {
			return nil, demoted.Error
		}
		if demoted.RowsAffected > 0 {
			s.log.Info("demoted active proposals", "dao", daoID, "count", demoted.RowsAffected, "new_active", proposalID)
		}
	}

	if err := tx.Create(proposalFromModel(daoID, p)).Error; err != nil {
		return nil, err
	}
	s.log.Debug("created proposal", "dao", daoID, "proposal", proposalID, "state", p.State)
	return p, nil
}

// mergeProposal writes only the fields that actually changed. An update that
// changes nothing issues no write.
func (s *Store) mergeProposal(tx *gorm.DB, row *proposalRow, update models.ProposalUpdate) (*models.Proposal, bool, error) {
	p := row.toModel()
	if !update.Apply(p) {
		return p, false, nil
	}
	if err := domain.ValidateProposal(p); err != nil {
		return nil, false, err
	}
	p.UpdatedAt = s.now()

	res := tx.Model(&proposalRow{}).Where("id = ?", row.ID).Updates(map[string]any{
		"description":      p.Description,
		"description_hash": p.DescriptionHash,
		"action_type":      p.ActionType,
		"targets":          datatypes.JSONSlice[string](p.Targets),
		"call_values":      datatypes.JSONSlice[string](p.Values),
		"calldatas":        datatypes.JSONSlice[string](p.Calldatas),
		"state":            uint8(p.State),
		"updated_at":       p.UpdatedAt,
	})
	if res.Error != nil {
		return nil, false, res.Error
	}
	s.log.Debug("merged proposal", "dao", row.DAOID, "proposal", p.ProposalID, "state", p.State)
	return p, true, nil
}

// GetProposal loads one proposal
func (s *Store) GetProposal(ctx context.Context, daoID, proposalID string) (*models.Proposal, error) {
	if canonical, ok := domain.CanonicalProposalID(proposalID); ok {
		proposalID = canonical
	}
	var row proposalRow
	err := s.db.WithContext(ctx).Where("dao_id = ? AND proposal_id = ?", daoID, proposalID).First(&row).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("proposal %s in dao %s: %w", proposalID, daoID, domain.ErrNotFound)
		}
		return nil, err
	}
	return row.toModel(), nil
}

// ListProposals returns a DAO's proposals sorted by creation time, newest first
func (s *Store) ListProposals(ctx context.Context, daoID string) ([]*models.Proposal, error) {
	db := s.db.WithContext(ctx)
	if _, err := findDAO(db, daoID); err != nil {
		return nil, err
	}

	var rows []proposalRow
	if err := db.Where("dao_id = ?", daoID).Order("created_at DESC, id DESC").Find(&rows).Error; err != nil {
		return nil, err
	}
	out := make([]*models.Proposal, 0, len(rows))
	for i := range rows {
		out = append(out, rows[i].toModel())
	}
	return out, nil
}

// ListTrackedProposals returns every proposal reconciliation still has to follow
func (s *Store) ListTrackedProposals(ctx context.Context) ([]models.TrackedProposal, error) {
	var open []uint8
	for _, st := range models.AllProposalStates {
		if !st.IsFinal() {
			open = append(open, uint8(st))
		}
	}

	var rows []struct {
		DAOID           string `gorm:"column:dao_id"`
		GovernorAddress string `gorm:"column:governor_address"`
		ProposalID      string `gorm:"column:proposal_id"`
		State           uint8  `gorm:"column:state"`
	}
	err := s.db.WithContext(ctx).
		Table("proposals").
		Select("proposals.dao_id AS dao_id, daos.governor_address AS governor_address, proposals.proposal_id AS proposal_id, proposals.state AS state").
		Joins("JOIN daos ON daos.id = proposals.dao_id").
		Where("proposals.state IN ?", open).
		Order("proposals.created_at ASC").
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}

	out := make([]models.TrackedProposal, 0, len(rows))
	for _, r := range rows {
		out = append(out, models.TrackedProposal{
			DAOID:           r.DAOID,
			GovernorAddress: r.GovernorAddress,
			ProposalID:      r.ProposalID,
			LastState:       models.ProposalState(r.State),
		})
	}
	return out, nil
}

var _ usecase.ProposalRepository = (*Store)(nil)
