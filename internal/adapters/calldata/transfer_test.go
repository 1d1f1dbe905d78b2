package calldata

import (
	"errors"
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/daoservice/govsync/internal/domain"
)

const recipient = "0x70997970C51812dc3A010C7d01b50e0d17dc79C8"

func TestBuildTransfer(t *testing.T) {
	t.Run("encodes transfer selector, address and wei amount", func(t *testing.T) {
		data, err := BuildTransfer(recipient, "1")
		require.NoError(t, err)

		assert.Equal(t,
			"0xa9059cbb"+
				"00000000000000000000000070997970c51812dc3a010c7d01b50e0d17dc79c8"+
				"0000000000000000000000000000000000000000000000000de0b6b3a7640000",
			hexutil.Encode(data))
	})

	t.Run("is deterministic", func(t *testing.T) {
		a, err := BuildTransfer(recipient, "12.5")
		require.NoError(t, err)
		b, err := BuildTransfer(recipient, "12.5")
		require.NoError(t, err)
		assert.Equal(t, a, b)
	})

	t.Run("checksum case does not change output", func(t *testing.T) {
		a, err := BuildTransfer(recipient, "3")
		require.NoError(t, err)
		b, err := BuildTransfer("0x70997970c51812dc3a010c7d01b50e0d17dc79c8", "3")
		require.NoError(t, err)
		assert.Equal(t, a, b)
	})

	tests := []struct {
		name      string
		recipient string
		amount    string
		field     string
	}{
		{"missing 0x prefix", "70997970C51812dc3A010C7d01b50e0d17dc79C8", "1", "recipient"},
		{"short address", "0x1234", "1", "recipient"},
		{"empty amount", recipient, "", "amount"},
		{"negative amount", recipient, "-1", "amount"},
		{"too many decimals", recipient, "0.0000000000000000001", "amount"},
		{"garbage amount", recipient, "1e18", "amount"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := BuildTransfer(tt.recipient, tt.amount)
			require.Error(t, err)
			assert.True(t, errors.Is(err, domain.ErrValidation))

			var verr *domain.ValidationError
			require.ErrorAs(t, err, &verr)
			assert.Equal(t, tt.field, verr.Field)
		})
	}
}

func TestDecodeTransfer(t *testing.T) {
	for _, amount := range []string{"1", "12.5", "0.000000000000000001", "1000000"} {
		t.Run(amount, func(t *testing.T) {
			data, err := BuildTransfer(recipient, amount)
			require.NoError(t, err)

			to, got, err := DecodeTransfer(data)
			require.NoError(t, err)
			assert.Equal(t, recipient, to)
			assert.Equal(t, amount, got)
		})
	}

	t.Run("rejects other selectors", func(t *testing.T) {
		_, _, err := DecodeTransfer(hexutil.MustDecode("0x5c19a95c"))
		assert.Error(t, err)
	})

	t.Run("rejects truncated payload", func(t *testing.T) {
		_, _, err := DecodeTransfer(hexutil.MustDecode("0xa9059cbb0000"))
		assert.Error(t, err)
	})
}

func TestParseUnits(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"0", "0"},
		{"1", "1000000000000000000"},
		{"1.5", "1500000000000000000"},
		{".25", "250000000000000000"},
		{"  2 ", "2000000000000000000"},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseUnits(tt.in, TokenDecimals)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got.String())
			assert.Equal(t, 0, got.Cmp(mustBig(tt.want)))
		})
	}
}

func TestDescriptionHash(t *testing.T) {
	assert.Equal(t,
		"0xde538e4d7883b299dff7b956e2cb14c09d596d09e3146eb77c96e27c703c6e58",
		DescriptionHash("Transfer treasury funds"))
	assert.True(t, domain.IsHash(DescriptionHash("")))
}

func mustBig(s string) *big.Int {
	n, _ := new(big.Int).SetString(s, 10)
	return n
}
