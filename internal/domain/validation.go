package domain

import (
	"regexp"
	"strings"
	"unicode"

	"github.com/ethereum/go-ethereum/common/hexutil"

	"github.com/daoservice/govsync/internal/domain/models"
)

var (
	addressPattern = regexp.MustCompile(`^0x[a-fA-F0-9]{40}$`)
	hashPattern    = regexp.MustCompile(`^0x[a-fA-F0-9]{64}$`)
	spacePattern   = regexp.MustCompile(`\s+`)
)

// IsAddress reports whether s is a 0x-prefixed 20 byte hex address
func IsAddress(s string) bool { return addressPattern.MatchString(s) }

// IsHash reports whether s is a 0x-prefixed 32 byte hex hash
func IsHash(s string) bool { return hashPattern.MatchString(s) }

// SanitizeString trims, collapses whitespace and drops anything outside printable ASCII
func SanitizeString(s string) string {
	s = strings.Map(func(r rune) rune {
		if unicode.IsSpace(r) {
			return ' '
		}
		if r < 0x20 || r > 0x7e {
			return -1
		}
		return r
	}, s)
	return strings.TrimSpace(spacePattern.ReplaceAllString(s, " "))
}

// ValidateDAO checks a DAO before its first write
func ValidateDAO(d *models.DAO) error {
	required := []struct{ field, value string }{
		{"name", d.Name},
		{"description", d.Description},
		{"creator", d.Creator},
		{"governorAddress", d.GovernorAddress},
		{"tokenAddress", d.TokenAddress},
		{"treasury", d.Treasury},
	}
	for _, r := range required {
		if strings.TrimSpace(r.value) == "" {
			return NewValidationError(r.field, "is required")
		}
	}
	for _, r := range required[2:] {
		if !IsAddress(r.value) {
			return NewValidationError(r.field, "invalid address %q", r.value)
		}
	}
	return nil
}

// ValidateProposal checks a proposal row before it is written
func ValidateProposal(p *models.Proposal) error {
	if _, ok := ParseProposalID(p.ProposalID); !ok {
		return NewValidationError("proposalId", "must be a decimal uint256, got %q", p.ProposalID)
	}
	if !IsHash(p.DescriptionHash) {
		return NewValidationError("descriptionHash", "invalid hash %q", p.DescriptionHash)
	}
	if !p.State.Valid() {
		return NewValidationError("state", "%d out of range [0,7]", uint8(p.State))
	}
	for _, t := range p.Targets {
		if !IsAddress(t) {
			return NewValidationError("targets", "invalid address %q", t)
		}
	}
	for _, v := range p.Values {
		if _, ok := ParseProposalID(v); !ok {
			return NewValidationError("values", "must be decimal integers, got %q", v)
		}
	}
	for _, c := range p.Calldatas {
		if _, err := hexutil.Decode(c); err != nil {
			return NewValidationError("calldatas", "invalid hex %q", c)
		}
	}
	return nil
}

// ValidateProposalUpdate checks the present fields of a partial update
func ValidateProposalUpdate(u models.ProposalUpdate) error {
	if u.HasDescriptionHash() && !IsHash(*u.DescriptionHash) {
		return NewValidationError("descriptionHash", "invalid hash %q", *u.DescriptionHash)
	}
	if u.State != nil && !u.State.Valid() {
		return NewValidationError("state", "%d out of range [0,7]", uint8(*u.State))
	}
	return nil
}

// NormalizeValues rewrites call values as canonical decimal strings
func NormalizeValues(values []string) ([]string, error) {
	if values == nil {
		return nil, nil
	}
	out := make([]string, len(values))
	for i, v := range values {
		canonical, ok := CanonicalProposalID(v)
		if !ok {
			return nil, NewValidationError("values", "must be decimal integers, got %q", v)
		}
		out[i] = canonical
	}
	return out, nil
}

// ValidateArity checks that the call arrays line up
func ValidateArity(targets, values, calldatas []string) error {
	if len(targets) != len(values) || len(values) != len(calldatas) {
		return NewValidationError("targets", "targets, values and calldatas must have equal length (%d, %d, %d)",
			len(targets), len(values), len(calldatas))
	}
	return nil
}
