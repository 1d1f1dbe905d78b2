package usecase

import (
	"context"
	"fmt"
	"strings"

	"github.com/daoservice/govsync/internal/domain"
	"github.com/daoservice/govsync/internal/domain/models"
)

// RegisterDAOParams contains parameters for registering a DAO
type RegisterDAOParams struct {
	Name            string
	Description     string
	Creator         string
	GovernorAddress string
	TokenAddress    string
	Treasury        string
	Metadata        map[string]any
}

// RegisterDAO is the use case for adding a DAO to the local cache
type RegisterDAO struct {
	repo ProposalRepository
	sink ProgressSink
}

// NewRegisterDAO creates a new RegisterDAO use case
func NewRegisterDAO(repo ProposalRepository, sink ProgressSink) *RegisterDAO {
	return &RegisterDAO{
		repo: repo,
		sink: sink,
	}
}

// Run sanitizes the free text fields, validates and stores the DAO
func (uc *RegisterDAO) Run(ctx context.Context, params RegisterDAOParams) (*models.DAO, error) {
	dao := &models.DAO{
		Name:            domain.SanitizeString(params.Name),
		Description:     domain.SanitizeString(params.Description),
		Creator:         strings.TrimSpace(params.Creator),
		GovernorAddress: strings.TrimSpace(params.GovernorAddress),
		TokenAddress:    strings.TrimSpace(params.TokenAddress),
		Treasury:        strings.TrimSpace(params.Treasury),
		Metadata:        params.Metadata,
	}
	if err := domain.ValidateDAO(dao); err != nil {
		return nil, err
	}

	uc.sink.OnProgress(ctx, ProgressEvent{
		Stage:   "registering",
		Message: fmt.Sprintf("Registering %s", dao.Name),
	})

	created, err := uc.repo.CreateDAO(ctx, dao)
	if err != nil {
		return nil, fmt.Errorf("failed to register DAO: %w", err)
	}
	return created, nil
}
