package usecase

import (
	"context"
	"fmt"

	"github.com/ethereum/go-ethereum/common/hexutil"

	"github.com/daoservice/govsync/internal/domain"
	"github.com/daoservice/govsync/internal/domain/models"
)

// DecodedTransfer is the (recipient, amount) carried by a treasury proposal
type DecodedTransfer struct {
	Recipient string `json:"recipient"`
	Amount    string `json:"amount"`
}

// ProposalDetails is a proposal with everything needed to act on it
type ProposalDetails struct {
	DAO         *models.DAO          `json:"dao"`
	Proposal    *models.Proposal     `json:"proposal"`
	Transfer    *DecodedTransfer     `json:"transfer,omitempty"`
	Eligibility []domain.Eligibility `json:"eligibility"`
	// LedgerState is set when the ledger was consulted and answered
	LedgerState *models.ProposalState `json:"ledgerState,omitempty"`
}

// ShowProposal is the use case for inspecting one cached proposal
type ShowProposal struct {
	repo   ProposalRepository
	codec  CalldataCodec
	reader LedgerReader
}

// NewShowProposal creates a new ShowProposal use case
func NewShowProposal(repo ProposalRepository, codec CalldataCodec, reader LedgerReader) *ShowProposal {
	return &ShowProposal{
		repo:   repo,
		codec:  codec,
		reader: reader,
	}
}

// Run loads the proposal, decodes its transfer and evaluates every action.
// With live set the ledger state is read too. A ledger failure is not fatal.
func (uc *ShowProposal) Run(ctx context.Context, daoID, proposalID string, live bool) (*ProposalDetails, error) {
	dao, err := uc.repo.GetDAO(ctx, daoID)
	if err != nil {
		return nil, err
	}
	p, err := uc.repo.GetProposal(ctx, daoID, proposalID)
	if err != nil {
		return nil, err
	}

	details := &ProposalDetails{DAO: dao, Proposal: p}
	details.DAO.Proposals = nil
	if t, err := decodeProposalTransfer(uc.codec, p); err == nil {
		details.Transfer = t
	}

	state := p.State
	if live && uc.reader != nil {
		if s, err := uc.reader.ReadProposalState(ctx, dao.GovernorAddress, p.ProposalID); err == nil {
			details.LedgerState = &s
		}
	}

	in := domain.EligibilityInput{
		State:       &state,
		ProposalID:  p.ProposalID,
		Description: p.Description,
	}
	if details.Transfer != nil {
		in.Recipient = details.Transfer.Recipient
	}
	details.Eligibility = domain.EligibleAll(in)
	return details, nil
}

// decodeProposalTransfer restores (recipient, amount) from a single-call transfer proposal
func decodeProposalTransfer(codec CalldataCodec, p *models.Proposal) (*DecodedTransfer, error) {
	if len(p.Calldatas) != 1 {
		return nil, fmt.Errorf("proposal %s has %d calls, expected 1", p.ProposalID, len(p.Calldatas))
	}
	data, err := hexutil.Decode(p.Calldatas[0])
	if err != nil {
		return nil, fmt.Errorf("invalid calldata: %w", err)
	}
	recipient, amount, err := codec.DecodeTransfer(data)
	if err != nil {
		return nil, err
	}
	return &DecodedTransfer{Recipient: recipient, Amount: amount}, nil
}
