package chain

import (
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/proquint-registry/backend/internal/proquint"
)

// TxRequest is an unsigned transaction for the caller's wallet to sign.
type TxRequest struct {
	To    common.Address `json:"to"`
	Data  hexutil.Bytes  `json:"data"`
	Value *hexutil.Big   `json:"value"`
}

// ValueWei returns the attached value, zero when none.
func (t TxRequest) ValueWei() *big.Int {
	if t.Value == nil {
		return new(big.Int)
	}
	return t.Value.ToInt()
}

// TxBuilder encodes calls against one contract deployment.
type TxBuilder struct {
	Contract common.Address
}

func NewTxBuilder(contract common.Address) TxBuilder {
	return TxBuilder{Contract: contract}
}

func (b TxBuilder) build(value *big.Int, method string, args ...any) (TxRequest, error) {
	data, err := registryABI.Pack(method, args...)
	if err != nil {
		return TxRequest{}, fmt.Errorf("pack %s: %w", method, err)
	}
	if value == nil {
		value = new(big.Int)
	}
	return TxRequest{
		To:    b.Contract,
		Data:  data,
		Value: (*hexutil.Big)(new(big.Int).Set(value)),
	}, nil
}

// Commit stores a commitment hash on chain.
func (b TxBuilder) Commit(hash common.Hash) (TxRequest, error) {
	return b.build(nil, "commit", [32]byte(hash))
}

// Register reveals a commitment and mints to the caller as primary.
func (b TxBuilder) Register(input [32]byte, value *big.Int) (TxRequest, error) {
	return b.build(value, "register", input)
}

// RegisterTo reveals a commitment and mints into to's inbox.
func (b TxBuilder) RegisterTo(input [32]byte, to common.Address, value *big.Int) (TxRequest, error) {
	return b.build(value, "registerTo", input, to)
}

// Renew extends a name. The input is years ++ id, zero padded to 32 bytes.
func (b TxBuilder) Renew(years uint8, id proquint.ID, value *big.Int) (TxRequest, error) {
	var input [32]byte
	input[0] = years
	copy(input[1:5], id[:])
	return b.build(value, "renew", input)
}

func (b TxBuilder) AcceptInbox(id proquint.ID) (TxRequest, error) {
	return b.build(nil, "acceptInbox", [4]byte(id))
}

func (b TxBuilder) Shelve(id proquint.ID) (TxRequest, error) {
	return b.build(nil, "shelve", [4]byte(id))
}

func (b TxBuilder) RejectInbox(id proquint.ID) (TxRequest, error) {
	return b.build(nil, "rejectInbox", [4]byte(id))
}

func (b TxBuilder) CleanInbox(id proquint.ID) (TxRequest, error) {
	return b.build(nil, "cleanInbox", [4]byte(id))
}

func (b TxBuilder) SafeTransferFrom(from, to common.Address, id proquint.ID) (TxRequest, error) {
	return b.build(nil, "safeTransferFrom", from, to, id.TokenID())
}
