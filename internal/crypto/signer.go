package crypto

import (
	"crypto/ecdsa"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	ethcrypto "github.com/ethereum/go-ethereum/crypto"

	"github.com/alanyoungcy/pairsniper/internal/domain"
)

// TxSigner signs legacy transactions for a single wallet on a single chain.
type TxSigner struct {
	key     *ecdsa.PrivateKey
	address common.Address
	signer  types.Signer
}

// NewTxSigner binds key to chainID.
func NewTxSigner(key *ecdsa.PrivateKey, chainID int64) *TxSigner {
	return &TxSigner{
		key:     key,
		address: ethcrypto.PubkeyToAddress(key.PublicKey),
		signer:  types.LatestSignerForChainID(big.NewInt(chainID)),
	}
}

// Address returns the wallet address derived from the key.
func (s *TxSigner) Address() common.Address {
	return s.address
}

// Sign builds and signs a transaction for req at the given nonce.
func (s *TxSigner) Sign(req domain.TxRequest, nonce uint64) (*types.Transaction, error) {
	value := req.Value
	if value == nil {
		value = new(big.Int)
	}
	to := req.To
	tx := types.NewTx(&types.LegacyTx{
		Nonce:    nonce,
		To:       &to,
		Value:    value,
		Gas:      req.GasLimit,
		GasPrice: req.GasPrice,
		Data:     req.Data,
	})
	signed, err := types.SignTx(tx, s.signer, s.key)
	if err != nil {
		return nil, fmt.Errorf("crypto: sign %s tx: %w: %w", req.Label, domain.ErrSigningFailed, err)
	}
	return signed, nil
}
