package ledger

import (
	"crypto/ecdsa"
	"errors"
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
)

type Fees struct {
	GasLimit             uint64
	MaxFeePerGas         *big.Int
	MaxPriorityFeePerGas *big.Int
}

func ParseFees(gasLimit uint64, maxFeePerGas, maxPriorityFeePerGas string) (fees Fees, err error) {
	var ok bool
	fees.GasLimit = gasLimit
	fees.MaxFeePerGas, ok = new(big.Int).SetString(maxFeePerGas, 10)
	if !ok {
		return fees, fmt.Errorf("invalid max fee per gas: %q", maxFeePerGas)
	}
	fees.MaxPriorityFeePerGas, ok = new(big.Int).SetString(maxPriorityFeePerGas, 10)
	if !ok {
		return fees, fmt.Errorf("invalid max priority fee per gas: %q", maxPriorityFeePerGas)
	}
	if fees.MaxPriorityFeePerGas.Cmp(fees.MaxFeePerGas) > 0 {
		return fees, errors.New("max priority fee per gas exceeds max fee per gas")
	}
	return
}

// Signs transactions of the sponsoring account. Doesn't do any I/O.
type Signer struct {
	Address common.Address

	key    *ecdsa.PrivateKey
	signer types.Signer
	chain  *big.Int
}

func NewSigner(hexKey string, chainId *big.Int) (self *Signer, err error) {
	self = new(Signer)
	self.key, err = crypto.HexToECDSA(strings.TrimPrefix(hexKey, "0x"))
	if err != nil {
		return nil, fmt.Errorf("invalid operator key: %w", err)
	}
	self.Address = crypto.PubkeyToAddress(self.key.PublicKey)
	self.chain = chainId
	self.signer = types.LatestSignerForChainID(chainId)
	return
}

// Returns the signed transaction and its canonical encoding
func (self *Signer) Sign(nonce uint64, to common.Address, data []byte, fees Fees) (tx *types.Transaction, serialized []byte, err error) {
	tx, err = types.SignNewTx(self.key, self.signer, &types.DynamicFeeTx{
		ChainID:   self.chain,
		Nonce:     nonce,
		GasTipCap: fees.MaxPriorityFeePerGas,
		GasFeeCap: fees.MaxFeePerGas,
		Gas:       fees.GasLimit,
		To:        &to,
		Data:      data,
	})
	if err != nil {
		return
	}
	serialized, err = tx.MarshalBinary()
	return
}
