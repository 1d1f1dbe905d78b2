package calldata

import (
	"bytes"
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"

	"github.com/daoservice/govsync/internal/adapters/abi/bindings"
	"github.com/daoservice/govsync/internal/domain"
	"github.com/daoservice/govsync/internal/usecase"
)

// TokenDecimals is the unit scale of proposal amounts
const TokenDecimals = 18

var (
	token            = bindings.NewVotesToken()
	transferSelector = []byte{0xa9, 0x05, 0x9c, 0xbb}
	unit             = new(big.Int).Exp(big.NewInt(10), big.NewInt(TokenDecimals), nil)
)

// Codec implements usecase.CalldataCodec on top of the token binding
type Codec struct{}

// NewCodec creates a new calldata codec
func NewCodec() *Codec {
	return &Codec{}
}

func (Codec) BuildTransfer(recipient, amount string) ([]byte, error) {
	return BuildTransfer(recipient, amount)
}

func (Codec) DecodeTransfer(data []byte) (string, string, error) {
	return DecodeTransfer(data)
}

func (Codec) DescriptionHash(description string) string {
	return DescriptionHash(description)
}

// BuildTransfer encodes transfer(recipient, amount) where amount is a decimal
// token amount scaled by 18 decimals. Identical inputs give identical bytes.
func BuildTransfer(recipient, amount string) ([]byte, error) {
	if !domain.IsAddress(recipient) {
		return nil, domain.NewValidationError("recipient", "invalid address %q", recipient)
	}
	wei, err := ParseUnits(amount, TokenDecimals)
	if err != nil {
		return nil, domain.NewValidationError("amount", "%v", err)
	}
	return token.TryPackTransfer(common.HexToAddress(recipient), wei)
}

// DecodeTransfer recovers (recipient, amount) from transfer calldata. The
// recipient comes back checksummed and the amount in decimal token units.
func DecodeTransfer(data []byte) (string, string, error) {
	if len(data) < 4 || !bytes.Equal(data[:4], transferSelector) {
		return "", "", fmt.Errorf("calldata is not an ERC20 transfer")
	}
	method, err := token.MethodByID(data[:4])
	if err != nil {
		return "", "", err
	}
	args, err := method.Inputs.Unpack(data[4:])
	if err != nil {
		return "", "", fmt.Errorf("failed to decode transfer arguments: %w", err)
	}
	to, ok := args[0].(common.Address)
	if !ok {
		return "", "", fmt.Errorf("unexpected recipient type %T", args[0])
	}
	value, ok := args[1].(*big.Int)
	if !ok {
		return "", "", fmt.Errorf("unexpected amount type %T", args[1])
	}
	return to.Hex(), FormatUnits(value, TokenDecimals), nil
}

// DescriptionHash is keccak256 of the raw description, 0x-prefixed
func DescriptionHash(description string) string {
	return crypto.Keccak256Hash([]byte(description)).Hex()
}

// ParseUnits turns "1.5" into 1.5 * 10^decimals without going through floats
func ParseUnits(amount string, decimals int) (*big.Int, error) {
	amount = strings.TrimSpace(amount)
	if amount == "" {
		return nil, fmt.Errorf("amount is required")
	}
	whole, frac, _ := strings.Cut(amount, ".")
	if whole == "" {
		whole = "0"
	}
	if !isDigits(whole) || (frac != "" && !isDigits(frac)) {
		return nil, fmt.Errorf("invalid amount %q", amount)
	}
	if len(frac) > decimals {
		return nil, fmt.Errorf("amount %q has more than %d decimals", amount, decimals)
	}
	n, ok := new(big.Int).SetString(whole+frac+strings.Repeat("0", decimals-len(frac)), 10)
	if !ok {
		return nil, fmt.Errorf("invalid amount %q", amount)
	}
	if n.BitLen() > 256 {
		return nil, fmt.Errorf("amount %q overflows uint256", amount)
	}
	return n, nil
}

// FormatUnits is the inverse of ParseUnits with trailing zeros trimmed
func FormatUnits(value *big.Int, decimals int) string {
	scale := unit
	if decimals != TokenDecimals {
		scale = new(big.Int).Exp(big.NewInt(10), big.NewInt(int64(decimals)), nil)
	}
	q, r := new(big.Int).QuoRem(value, scale, new(big.Int))
	if r.Sign() == 0 {
		return q.String()
	}
	frac := r.String()
	frac = strings.Repeat("0", decimals-len(frac)) + frac
	return q.String() + "." + strings.TrimRight(frac, "0")
}

func isDigits(s string) bool {
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return s != ""
}

var _ usecase.CalldataCodec = (*Codec)(nil)
