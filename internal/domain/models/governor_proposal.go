package models

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// ProposalState mirrors the Governor ProposalState enum returned by state(uint256)
type ProposalState uint8

const (
	ProposalStatePending ProposalState = iota
	ProposalStateActive
	ProposalStateCanceled
	ProposalStateDefeated
	ProposalStateSucceeded
	ProposalStateQueued
	ProposalStateExpired
	ProposalStateExecuted
)

var proposalStateNames = [...]string{
	ProposalStatePending:   "Pending",
	ProposalStateActive:    "Active",
	ProposalStateCanceled:  "Canceled",
	ProposalStateDefeated:  "Defeated",
	ProposalStateSucceeded: "Succeeded",
	ProposalStateQueued:    "Queued",
	ProposalStateExpired:   "Expired",
	ProposalStateExecuted:  "Executed",
}

// AllProposalStates lists the eight lifecycle phases in ledger order
var AllProposalStates = []ProposalState{
	ProposalStatePending,
	ProposalStateActive,
	ProposalStateCanceled,
	ProposalStateDefeated,
	ProposalStateSucceeded,
	ProposalStateQueued,
	ProposalStateExpired,
	ProposalStateExecuted,
}

// Valid reports whether the state code is inside [0,7]
func (s ProposalState) Valid() bool {
	return s <= ProposalStateExecuted
}

func (s ProposalState) String() string {
	if !s.Valid() {
		return fmt.Sprintf("Unknown (%d)", uint8(s))
	}
	return proposalStateNames[s]
}

// IsFinal reports whether reconciliation stops polling once this state is observed.
// Queued is part of the set even though a queued proposal can still be executed.
func (s ProposalState) IsFinal() bool {
	switch s {
	case ProposalStateCanceled,
		ProposalStateDefeated,
		ProposalStateQueued,
		ProposalStateExpired,
		ProposalStateExecuted:
		return true
	}
	return false
}

// Ptr returns a pointer to a copy of s
func (s ProposalState) Ptr() *ProposalState {
	return &s
}

// StateName returns the human name of an optional state, "Unknown" when nil
func StateName(s *ProposalState) string {
	if s == nil {
		return "Unknown"
	}
	return s.String()
}

// ParseProposalState accepts either the numeric code or the case-insensitive name
func ParseProposalState(v string) (ProposalState, error) {
	v = strings.TrimSpace(v)
	if n, err := strconv.ParseUint(v, 10, 8); err == nil {
		s := ProposalState(n)
		if !s.Valid() {
			return 0, fmt.Errorf("state %d out of range [0,7]", n)
		}
		return s, nil
	}
	for i, name := range proposalStateNames {
		if strings.EqualFold(name, v) {
			return ProposalState(i), nil
		}
	}
	return 0, fmt.Errorf("unknown proposal state %q", v)
}

// Known action type tags
const (
	ActionTypeTransferToTreasury = "TRANSFER_TO_TREASURY"
	ActionTypeTransfer           = "TRANSFER"
)

// Proposal is the cached copy of a Governor proposal owned by a DAO
type Proposal struct {
	ProposalID      string        `json:"proposalId"` // uint256 as decimal string
	Description     string        `json:"description"`
	DescriptionHash string        `json:"descriptionHash"`
	ActionType      string        `json:"actionType,omitempty"`
	Targets         []string      `json:"targets"`
	Values          []string      `json:"values"`
	Calldatas       []string      `json:"calldatas"`
	State           ProposalState `json:"state"`
	CreatedAt       time.Time     `json:"createdAt"`
	UpdatedAt       time.Time     `json:"updatedAt"`
}

// ProposalUpdate is a partial proposal payload. Nil fields are absent.
// Empty strings and empty slices are treated as absent as well, so a merge
// can never clear a field. State is applied whenever it is non-nil.
type ProposalUpdate struct {
	Description     *string        `json:"description,omitempty"`
	DescriptionHash *string        `json:"descriptionHash,omitempty"`
	ActionType      *string        `json:"actionType,omitempty"`
	Targets         []string       `json:"targets,omitempty"`
	Values          []string       `json:"values,omitempty"`
	Calldatas       []string       `json:"calldatas,omitempty"`
	State           *ProposalState `json:"state,omitempty"`
}

// StateUpdate builds an update carrying only the state field
func StateUpdate(s ProposalState) ProposalUpdate {
	return ProposalUpdate{State: &s}
}

// HasDescription reports whether a non-empty description is present
func (u ProposalUpdate) HasDescription() bool { return present(u.Description) }

// HasDescriptionHash reports whether a non-empty description hash is present
func (u ProposalUpdate) HasDescriptionHash() bool { return present(u.DescriptionHash) }

// HasActionType reports whether a non-empty action type is present
func (u ProposalUpdate) HasActionType() bool { return present(u.ActionType) }

// MissingForCreate lists the fields a new proposal requires but the update lacks
func (u ProposalUpdate) MissingForCreate() []string {
	var missing []string
	if !u.HasDescription() {
		missing = append(missing, "description")
	}
	if !u.HasDescriptionHash() {
		missing = append(missing, "descriptionHash")
	}
	if u.Targets == nil {
		missing = append(missing, "targets")
	}
	if u.Values == nil {
		missing = append(missing, "values")
	}
	if u.Calldatas == nil {
		missing = append(missing, "calldatas")
	}
	return missing
}

// NewProposal materializes a proposal from a complete update. State defaults to Pending.
func NewProposal(proposalID string, u ProposalUpdate, now time.Time) *Proposal {
	p := &Proposal{
		ProposalID: proposalID,
		Targets:    append([]string{}, u.Targets...),
		Values:     append([]string{}, u.Values...),
		Calldatas:  append([]string{}, u.Calldatas...),
		State:      ProposalStatePending,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	if u.Description != nil {
		p.Description = *u.Description
	}
	if u.DescriptionHash != nil {
		p.DescriptionHash = *u.DescriptionHash
	}
	if u.ActionType != nil {
		p.ActionType = *u.ActionType
	}
	if u.State != nil {
		p.State = *u.State
	}
	return p
}

// Apply merges the present fields of u into p and reports whether anything changed.
// UpdatedAt is left to the caller.
func (u ProposalUpdate) Apply(p *Proposal) bool {
	changed := false
	if u.HasDescription() && *u.Description != p.Description {
		p.Description = *u.Description
		changed = true
	}
	if u.HasDescriptionHash() && *u.DescriptionHash != p.DescriptionHash {
		p.DescriptionHash = *u.DescriptionHash
		changed = true
	}
	if u.HasActionType() && *u.ActionType != p.ActionType {
		p.ActionType = *u.ActionType
		changed = true
	}
	if len(u.Targets) > 0 && !equalStrings(u.Targets, p.Targets) {
		p.Targets = append([]string{}, u.Targets...)
		changed = true
	}
	if len(u.Values) > 0 && !equalStrings(u.Values, p.Values) {
		p.Values = append([]string{}, u.Values...)
		changed = true
	}
	if len(u.Calldatas) > 0 && !equalStrings(u.Calldatas, p.Calldatas) {
		p.Calldatas = append([]string{}, u.Calldatas...)
		changed = true
	}
	if u.State != nil && *u.State != p.State {
		p.State = *u.State
		changed = true
	}
	return changed
}

func present(s *string) bool {
	return s != nil && *s != ""
}

func equalStrings(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
