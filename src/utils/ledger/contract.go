package ledger

import (
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
)

// Soulbound ERC-721 with a sponsored mint
const contractABI = `[
	{"type":"function","name":"mint","stateMutability":"nonpayable","outputs":[],"inputs":[
		{"name":"owner","type":"address"},
		{"name":"platform","type":"uint8"},
		{"name":"data","type":"bytes"}]},
	{"type":"event","name":"Transfer","anonymous":false,"inputs":[
		{"name":"from","type":"address","indexed":true},
		{"name":"to","type":"address","indexed":true},
		{"name":"tokenId","type":"uint256","indexed":true}]},
	{"type":"event","name":"Locked","anonymous":false,"inputs":[
		{"name":"tokenId","type":"uint256","indexed":false}]},
	{"type":"event","name":"Unlocked","anonymous":false,"inputs":[
		{"name":"tokenId","type":"uint256","indexed":false}]},
	{"type":"event","name":"MetadataUpdate","anonymous":false,"inputs":[
		{"name":"_tokenId","type":"uint256","indexed":false}]}
]`

type ChainEventType int

const (
	ChainEventMint ChainEventType = iota
	ChainEventBurn
)

func (self ChainEventType) String() string {
	switch self {
	case ChainEventMint:
		return "mint"
	case ChainEventBurn:
		return "burn"
	}
	return "unknown"
}

// Token lifecycle event of the tracked contract
type ChainEvent struct {
	Type    ChainEventType
	TxHash  common.Hash
	TokenId int64
	Owner   common.Address
}

type Contract struct {
	Address common.Address
	abi     abi.ABI
}

func NewContract(address common.Address) (self *Contract, err error) {
	self = new(Contract)
	self.Address = address
	self.abi, err = abi.JSON(strings.NewReader(contractABI))
	if err != nil {
		return nil, err
	}
	return
}

// Call data of the mint function
func (self *Contract) PackMint(owner common.Address, platform uint8, data []byte) ([]byte, error) {
	return self.abi.Pack("mint", owner, platform, data)
}

// Events emitted by the contract in this transaction. If any log of the contract has an unknown shape
// no events are returned, it's not an error. Error is returned only when a known event can't be represented.
func (self *Contract) ExtractEvents(summary *TxSummary) (events []ChainEvent, err error) {
	for _, log := range summary.Logs {
		if log.Address != self.Address {
			continue
		}

		event, known, err := self.parseLog(log)
		if err != nil {
			return nil, fmt.Errorf("tx %s log %d: %w", summary.Hash, log.Index, err)
		}
		if !known {
			return nil, nil
		}
		if event != nil {
			event.TxHash = summary.Hash
			events = append(events, *event)
		}
	}
	return
}

func (self *Contract) parseLog(log *types.Log) (event *ChainEvent, known bool, err error) {
	if len(log.Topics) == 0 {
		return
	}

	abiEvent, err := self.abi.EventByID(log.Topics[0])
	if err != nil {
		// Not an event of this contract's interface
		return nil, false, nil
	}

	switch abiEvent.Name {
	case "Transfer":
		if len(log.Topics) != 4 {
			return
		}
	default:
		// Recognized, doesn't change ownership
		return nil, true, nil
	}

	from := common.BytesToAddress(log.Topics[1].Bytes())
	to := common.BytesToAddress(log.Topics[2].Bytes())
	tokenId := new(big.Int).SetBytes(log.Topics[3].Bytes())

	switch {
	case from == (common.Address{}) && to == (common.Address{}):
		return
	case from == (common.Address{}):
		event = &ChainEvent{Type: ChainEventMint, Owner: to}
	case to == (common.Address{}):
		event = &ChainEvent{Type: ChainEventBurn, Owner: from}
	default:
		// Tokens are soulbound, a transfer between accounts isn't tracked
		return nil, true, nil
	}

	if !tokenId.IsInt64() {
		return nil, true, fmt.Errorf("%w: %s", ErrTokenIdOutOfRange, tokenId)
	}
	event.TokenId = tokenId.Int64()

	return event, true, nil
}

// Topic of the Transfer event, useful for building logs
func (self *Contract) TransferTopic() common.Hash {
	return self.abi.Events["Transfer"].ID
}
