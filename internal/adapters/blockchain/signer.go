package blockchain

import (
	"crypto/ecdsa"
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"

	"github.com/daoservice/govsync/internal/domain/config"
)

// ErrNoSigner is returned for writes when no private key is configured
var ErrNoSigner = fmt.Errorf("no signer configured (set signer.private_key or GOVSYNC_SIGNER_PRIVATE_KEY)")

// Signer holds the private key used for governance writes. The key never
// leaves this type.
type Signer struct {
	key     *ecdsa.PrivateKey
	address common.Address
}

// NewSigner loads the signer from configuration. An empty key yields a
// signer that refuses to sign.
func NewSigner(cfg *config.RuntimeConfig) (*Signer, error) {
	if cfg.Signer.PrivateKey == "" {
		return &Signer{}, nil
	}
	key, err := crypto.HexToECDSA(strings.TrimPrefix(cfg.Signer.PrivateKey, "0x"))
	if err != nil {
		return nil, fmt.Errorf("invalid signer private key: %w", err)
	}
	return &Signer{key: key, address: crypto.PubkeyToAddress(key.PublicKey)}, nil
}

// Address returns the signer's account
func (s *Signer) Address() (common.Address, error) {
	if s == nil || s.key == nil {
		return common.Address{}, ErrNoSigner
	}
	return s.address, nil
}

// Sign signs tx for chainID with the latest signer rules
func (s *Signer) Sign(tx *types.Transaction, chainID *big.Int) (*types.Transaction, error) {
	if s == nil || s.key == nil {
		return nil, ErrNoSigner
	}
	return types.SignTx(tx, types.LatestSignerForChainID(chainID), s.key)
}
