package chain

import (
	"crypto/ecdsa"
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	ethcrypto "github.com/ethereum/go-ethereum/crypto"
)

// Wallet holds the single signing key for the executing account. One process
// signs with exactly one key.
type Wallet struct {
	key    *ecdsa.PrivateKey
	addr   common.Address
	signer types.Signer
}

// NewWallet creates a Wallet from a hex-encoded secp256k1 private key and the
// target chain ID.
func NewWallet(privateKeyHex string, chainID int64) (*Wallet, error) {
	pk, err := ethcrypto.HexToECDSA(strings.TrimPrefix(privateKeyHex, "0x"))
	if err != nil {
		return nil, fmt.Errorf("chain: invalid wallet key: %w", err)
	}

	return &Wallet{
		key:    pk,
		addr:   ethcrypto.PubkeyToAddress(pk.PublicKey),
		signer: types.LatestSignerForChainID(big.NewInt(chainID)),
	}, nil
}

// Address returns the account address derived from the signing key.
func (w *Wallet) Address() common.Address {
	return w.addr
}

// SignTx signs the transaction for the wallet's chain and returns the signed
// copy. The input transaction is not mutated.
func (w *Wallet) SignTx(tx *types.Transaction) (*types.Transaction, error) {
	signed, err := types.SignTx(tx, w.signer, w.key)
	if err != nil {
		return nil, fmt.Errorf("chain: sign tx: %w", err)
	}
	return signed, nil
}
