package models

import "time"

// DAO is a registered governance organisation and its cached proposals
type DAO struct {
	ID              string         `json:"id"`
	Name            string         `json:"name"`
	Description     string         `json:"description"`
	Creator         string         `json:"creator"`
	GovernorAddress string         `json:"governorAddress"`
	TokenAddress    string         `json:"tokenAddress"`
	Treasury        string         `json:"treasury"`
	Metadata        map[string]any `json:"metadata,omitempty"`
	CreatedAt       time.Time      `json:"createdAt"`
	UpdatedAt       time.Time      `json:"updatedAt"`
	Proposals       []Proposal     `json:"proposals"`
}

// DAOFilter narrows ListDAOs. Empty fields match everything.
type DAOFilter struct {
	GovernorAddress string
	Creator         string
}

// TrackedProposal identifies a proposal under reconciliation
type TrackedProposal struct {
	DAOID           string
	GovernorAddress string
	ProposalID      string
	LastState       ProposalState
}

// Key is the (dao, proposal) identity used for idempotent tracking
func (t TrackedProposal) Key() string {
	return t.DAOID + "/" + t.ProposalID
}

// ProposalStateChanged is emitted whenever reconciliation persists a new state
type ProposalStateChanged struct {
	DAOID      string        `json:"daoId"`
	ProposalID string        `json:"proposalId"`
	Previous   ProposalState `json:"previous"`
	Current    ProposalState `json:"current"`
	StateName  string        `json:"stateName"`
	ObservedAt time.Time     `json:"observedAt"`
}

// ProposalCall is the (targets, values, calldatas, descriptionHash) tuple the
// Governor hashes into a proposal id and expects on queue/execute
type ProposalCall struct {
	Targets         []string `json:"targets"`
	Values          []string `json:"values"`
	Calldatas       []string `json:"calldatas"`
	DescriptionHash string   `json:"descriptionHash"`
}

// TxResult describes a mined ledger write
type TxResult struct {
	TxHash      string `json:"txHash"`
	BlockNumber uint64 `json:"blockNumber"`
	GasUsed     uint64 `json:"gasUsed"`
}
