package proposals

import (
	"context"
	"errors"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/daoservice/govsync/internal/domain"
	"github.com/daoservice/govsync/internal/domain/models"
)

// CreateDAO inserts a new DAO. Addresses are stored checksummed so the
// governor uniqueness check is case-insensitive.
func (s *Store) CreateDAO(ctx context.Context, dao *models.DAO) (*models.DAO, error) {
	if err := domain.ValidateDAO(dao); err != nil {
		return nil, err
	}

	d := *dao
	if d.ID == "" {
		d.ID = uuid.NewString()
	}
	d.Creator = checksum(d.Creator)
	d.GovernorAddress = checksum(d.GovernorAddress)
	d.TokenAddress = checksum(d.TokenAddress)
	d.Treasury = checksum(d.Treasury)
	now := s.now()
	if d.CreatedAt.IsZero() {
		d.CreatedAt = now
	}
	d.UpdatedAt = now

	row := daoFromModel(&d)
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var count int64
		if err := tx.Model(&daoRow{}).Where("governor_address = ?", row.GovernorAddress).Count(&count).Error; err != nil {
			return err
		}
		if count > 0 {
			return fmt.Errorf("%w: a DAO with governor %s already exists", domain.ErrConflict, row.GovernorAddress)
		}
		return tx.Create(row).Error
	})
	if err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return nil, fmt.Errorf("%w: %v", domain.ErrConflict, err)
		}
		return nil, err
	}

	s.log.Debug("created dao", "id", d.ID, "governor", d.GovernorAddress)
	out := row.toModel()
	return out, nil
}

// GetDAO loads a DAO with its proposals, newest first
func (s *Store) GetDAO(ctx context.Context, id string) (*models.DAO, error) {
	db := s.db.WithContext(ctx)
	row, err := findDAO(db, id)
	if err != nil {
		return nil, err
	}
	dao := row.toModel()

	var rows []proposalRow
	if err := db.Where("dao_id = ?", id).Order("created_at DESC, id DESC").Find(&rows).Error; err != nil {
		return nil, err
	}
	for i := range rows {
		dao.Proposals = append(dao.Proposals, *rows[i].toModel())
	}
	return dao, nil
}

// ListDAOs returns DAOs matching filter, newest first. Proposals are not loaded.
func (s *Store) ListDAOs(ctx context.Context, filter models.DAOFilter) ([]*models.DAO, error) {
	q := s.db.WithContext(ctx).Model(&daoRow{})
	if filter.GovernorAddress != "" {
		q = q.Where("governor_address = ?", checksum(filter.GovernorAddress))
	}
	if filter.Creator != "" {
		q = q.Where("creator = ?", checksum(filter.Creator))
	}

	var rows []daoRow
	if err := q.Order("created_at DESC").Find(&rows).Error; err != nil {
		return nil, err
	}
	out := make([]*models.DAO, 0, len(rows))
	for i := range rows {
		out = append(out, rows[i].toModel())
	}
	return out, nil
}

func findDAO(db *gorm.DB, id string) (*daoRow, error) {
	var row daoRow
	if err := db.Where("id = ?", id).First(&row).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("dao %s: %w", id, domain.ErrNotFound)
		}
		return nil, err
	}
	return &row, nil
}

func checksum(addr string) string {
	if !domain.IsAddress(addr) {
		return addr
	}
	return common.HexToAddress(addr).Hex()
}
