package render

import (
	"bytes"
	"testing"
	"time"

	"github.com/fatih/color"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/daoservice/govsync/internal/domain"
	"github.com/daoservice/govsync/internal/domain/config"
	"github.com/daoservice/govsync/internal/domain/models"
	"github.com/daoservice/govsync/internal/usecase"
)

func init() {
	color.NoColor = true
}

func TestConfigRenderer_MasksSecrets(t *testing.T) {
	var buf bytes.Buffer
	cfg := &config.RuntimeConfig{
		Database: config.DatabaseConfig{Driver: config.DatabaseDriverPostgres, DSN: "postgres://gov:hunter2@db:5432/govsync"},
		Signer:   config.SignerConfig{PrivateKey: "0xac0974bec39a17e36ba4a6b4d238ff944bacb478cbed5efcae784d7bf4f2ff80"},
		Reconcile: config.ReconcileConfig{
			PollInterval: 5 * time.Second,
		},
	}

	require.NoError(t, NewConfigRenderer(&buf).Render(cfg))
	out := buf.String()

	assert.NotContains(t, out, "hunter2")
	assert.NotContains(t, out, "ac0974bec")
	assert.Contains(t, out, "gov:xxxxx@db:5432")
	assert.Contains(t, out, "poll_interval: 5s")
	assert.Equal(t, "0xac0974bec39a17e36ba4a6b4d238ff944bacb478cbed5efcae784d7bf4f2ff80", cfg.Signer.PrivateKey, "original untouched")
}

func TestProposalListRenderer(t *testing.T) {
	var buf bytes.Buffer
	now := time.Now()
	result := &usecase.ProposalListResult{
		DAO: &models.DAO{Name: "Treasury DAO", GovernorAddress: "0x5FbDB2315678afecb367f032d93F642f64180aa3"},
		Proposals: []*models.Proposal{
			{ProposalID: "42", State: models.ProposalStateActive, Description: "Fund grants", UpdatedAt: now},
			{ProposalID: "7", State: models.ProposalStateExecuted, Description: "Old", UpdatedAt: now},
		},
		Counts: map[models.ProposalState]int{models.ProposalStateActive: 1, models.ProposalStateExecuted: 1},
	}

	require.NoError(t, NewProposalListRenderer(&buf).Render(result))
	out := buf.String()

	assert.Contains(t, out, "Treasury DAO")
	assert.Contains(t, out, "Fund grants")
	assert.Contains(t, out, "Active: 1")
	assert.Contains(t, out, "Executed: 1")
	assert.NotContains(t, out, "Pending: 0")
}

func TestProposalRenderer_Eligibility(t *testing.T) {
	var buf bytes.Buffer
	state := models.ProposalStateActive
	details := &usecase.ProposalDetails{
		DAO:         &models.DAO{Name: "Treasury DAO"},
		Proposal:    &models.Proposal{ProposalID: "42", State: state},
		Eligibility: domain.EligibleAll(domain.EligibilityInput{State: &state, ProposalID: "42"}),
	}

	require.NoError(t, NewProposalRenderer(&buf).Render(details))
	assert.Contains(t, buf.String(), "Current state: Active. Must be Succeeded.")
}

func TestActionRenderer(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, NewActionRenderer(&buf).Render(&usecase.ActionResult{
		Action:      domain.ActionQueue,
		ProposalID:  "42",
		TxHash:      "0xabc",
		BlockNumber: 12,
	}))
	assert.Contains(t, buf.String(), "Queue confirmed in block 12")
}

func TestShortHash(t *testing.T) {
	assert.Equal(t, "42", shortHash("42"))
	assert.Equal(t, "0xde538e4d…3c6e58", shortHash("0xde538e4d7883b299dff7b956e2cb14c09d596d09e3146eb77c96e27c703c6e58"))
}
