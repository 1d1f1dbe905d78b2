package domain

import (
	"fmt"
	"math/big"
	"strings"

	"github.com/daoservice/govsync/internal/domain/models"
)

// Action is a user-triggered governance transition
type Action string

const (
	ActionPropose  Action = "propose"
	ActionDelegate Action = "delegate"
	ActionVote     Action = "vote"
	ActionQueue    Action = "queue"
	ActionExecute  Action = "execute"
)

// AllActions in the order they usually happen
var AllActions = []Action{ActionPropose, ActionDelegate, ActionVote, ActionQueue, ActionExecute}

// ParseAction resolves a user supplied action name
func ParseAction(s string) (Action, error) {
	for _, a := range AllActions {
		if strings.EqualFold(string(a), strings.TrimSpace(s)) {
			return a, nil
		}
	}
	return "", fmt.Errorf("unknown action %q", s)
}

// EligibilityInput is everything the guard looks at
type EligibilityInput struct {
	State       *models.ProposalState
	ProposalID  string
	Recipient   string
	Description string
}

// Eligibility is the guard's verdict
type Eligibility struct {
	Action   Action
	Allowed  bool
	Reason   string
	Current  string
	Required string
}

// Err converts a negative verdict into an IneligibleTransitionError, nil when allowed
func (e Eligibility) Err() error {
	if e.Allowed {
		return nil
	}
	return &IneligibleTransitionError{
		Action:   e.Action,
		Current:  e.Current,
		Required: e.Required,
		Reason:   e.Reason,
	}
}

type guardRule func(in EligibilityInput) (bool, string)

func requireState(required models.ProposalState) guardRule {
	return func(in EligibilityInput) (bool, string) {
		if in.State != nil && *in.State == required {
			return true, ""
		}
		return false, fmt.Sprintf("Current state: %s. Must be %s.", models.StateName(in.State), required)
	}
}

var guardRules = map[Action]struct {
	rule     guardRule
	required *models.ProposalState
}{
	ActionPropose: {rule: func(in EligibilityInput) (bool, string) {
		if strings.TrimSpace(in.Recipient) == "" || strings.TrimSpace(in.Description) == "" {
			return false, "Recipient and description are required."
		}
		return true, ""
	}},
	ActionDelegate: {rule: func(EligibilityInput) (bool, string) { return true, "" }},
	ActionVote: {rule: func(in EligibilityInput) (bool, string) {
		if !KnownProposalID(in.ProposalID) {
			return false, "Proposal id is unknown."
		}
		return true, ""
	}},
	ActionQueue: {
		rule:     requireState(models.ProposalStateSucceeded),
		required: models.ProposalStateSucceeded.Ptr(),
	},
	ActionExecute: {
		rule:     requireState(models.ProposalStateQueued),
		required: models.ProposalStateQueued.Ptr(),
	},
}

// Eligible decides whether action may be taken given the cached proposal context.
// It never touches the ledger.
func Eligible(action Action, in EligibilityInput) Eligibility {
	out := Eligibility{Action: action, Current: models.StateName(in.State)}
	r, ok := guardRules[action]
	if !ok {
		out.Reason = fmt.Sprintf("Unknown action %q.", action)
		return out
	}
	if r.required != nil {
		out.Required = r.required.String()
	}
	out.Allowed, out.Reason = r.rule(in)
	return out
}

// EligibleAll evaluates every action against the same input
func EligibleAll(in EligibilityInput) []Eligibility {
	out := make([]Eligibility, 0, len(AllActions))
	for _, a := range AllActions {
		out = append(out, Eligible(a, in))
	}
	return out
}

// KnownProposalID reports whether id is a non-zero uint256 in decimal form
func KnownProposalID(id string) bool {
	n, ok := ParseProposalID(id)
	return ok && n.Sign() > 0
}

// ParseProposalID parses a decimal uint256 proposal id
func ParseProposalID(id string) (*big.Int, bool) {
	id = strings.TrimSpace(id)
	if id == "" {
		return nil, false
	}
	n, ok := new(big.Int).SetString(id, 10)
	if !ok || n.Sign() < 0 || n.BitLen() > 256 {
		return nil, false
	}
	return n, true
}

// CanonicalProposalID returns id as a plain decimal string without sign,
// padding or leading zeros, so "05" and "5" name the same proposal
func CanonicalProposalID(id string) (string, bool) {
	n, ok := ParseProposalID(id)
	if !ok {
		return "", false
	}
	return n.String(), true
}
