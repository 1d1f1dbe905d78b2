package proposals

import (
	"time"

	"gorm.io/datatypes"

	"github.com/daoservice/govsync/internal/domain/models"
)

// MigrateModels lists every table owned by the store
var MigrateModels = []any{
	&daoRow{},
	&proposalRow{},
}

type daoRow struct {
	ID              string `gorm:"primaryKey;size:36"`
	Name            string `gorm:"not null"`
	Description     string `gorm:"not null"`
	Creator         string `gorm:"size:42;index;not null"`
	GovernorAddress string `gorm:"size:42;uniqueIndex;not null"`
	TokenAddress    string `gorm:"size:42;not null"`
	Treasury        string `gorm:"size:42;not null"`
	Metadata        datatypes.JSONMap
	CreatedAt       time.Time `gorm:"index"`
	UpdatedAt       time.Time
}

func (daoRow) TableName() string { return "daos" }

type proposalRow struct {
	ID              uint   `gorm:"primaryKey"`
	DAOID           string `gorm:"column:dao_id;size:36;uniqueIndex:idx_dao_proposal;not null"`
	ProposalID      string `gorm:"size:78;uniqueIndex:idx_dao_proposal;not null"`
	Description     string `gorm:"not null"`
	DescriptionHash string `gorm:"size:66;not null"`
	ActionType      string
	Targets         datatypes.JSONSlice[string]
	Values          datatypes.JSONSlice[string] `gorm:"column:call_values"`
	Calldatas       datatypes.JSONSlice[string]
	State           uint8     `gorm:"index;not null"`
	CreatedAt       time.Time `gorm:"index"`
	UpdatedAt       time.Time
}

func (proposalRow) TableName() string { return "proposals" }

func daoFromModel(d *models.DAO) *daoRow {
	return &daoRow{
		ID:              d.ID,
		Name:            d.Name,
		Description:     d.Description,
		Creator:         d.Creator,
		GovernorAddress: d.GovernorAddress,
		TokenAddress:    d.TokenAddress,
		Treasury:        d.Treasury,
		Metadata:        datatypes.JSONMap(d.Metadata),
		CreatedAt:       d.CreatedAt,
		UpdatedAt:       d.UpdatedAt,
	}
}

func (r *daoRow) toModel() *models.DAO {
	return &models.DAO{
		ID:              r.ID,
		Name:            r.Name,
		Description:     r.Description,
		Creator:         r.Creator,
		GovernorAddress: r.GovernorAddress,
		TokenAddress:    r.TokenAddress,
		Treasury:        r.Treasury,
		Metadata:        map[string]any(r.Metadata),
		CreatedAt:       r.CreatedAt,
		UpdatedAt:       r.UpdatedAt,
		Proposals:       []models.Proposal{},
	}
}

func proposalFromModel(daoID string, p *models.Proposal) *proposalRow {
	return &proposalRow{
		DAOID:           daoID,
		ProposalID:      p.ProposalID,
		Description:     p.Description,
		DescriptionHash: p.DescriptionHash,
		ActionType:      p.ActionType,
		Targets:         datatypes.JSONSlice[string](p.Targets),
		Values:          datatypes.JSONSlice[string](p.Values),
		Calldatas:       datatypes.JSONSlice[string](p.Calldatas),
		State:           uint8(p.State),
		CreatedAt:       p.CreatedAt,
		UpdatedAt:       p.UpdatedAt,
	}
}

func (r *proposalRow) toModel() *models.Proposal {
	return &models.Proposal{
		ProposalID:      r.ProposalID,
		Description:     r.Description,
		DescriptionHash: r.DescriptionHash,
		ActionType:      r.ActionType,
		Targets:         nonNil(r.Targets),
		Values:          nonNil(r.Values),
		Calldatas:       nonNil(r.Calldatas),
		State:           models.ProposalState(r.State),
		CreatedAt:       r.CreatedAt,
		UpdatedAt:       r.UpdatedAt,
	}
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
