package contracts

import (
	"math/big"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
)

// PairFactoryABI is the ABI of the pair factory
const PairFactoryABI = `[
	{
		"inputs": [
			{"internalType": "address", "name": "tokenA", "type": "address"},
			{"internalType": "address", "name": "tokenB", "type": "address"},
			{"internalType": "uint256", "name": "amountA", "type": "uint256"},
			{"internalType": "uint256", "name": "amountB", "type": "uint256"},
			{"internalType": "uint24", "name": "fee", "type": "uint24"}
		],
		"name": "createPair",
		"outputs": [{"internalType": "address", "name": "pair", "type": "address"}],
		"stateMutability": "nonpayable",
		"type": "function"
	},
	{
		"inputs": [
			{"internalType": "address", "name": "tokenA", "type": "address"},
			{"internalType": "address", "name": "tokenB", "type": "address"},
			{"internalType": "uint24", "name": "fee", "type": "uint24"}
		],
		"name": "getPair",
		"outputs": [{"internalType": "address", "name": "pair", "type": "address"}],
		"stateMutability": "view",
		"type": "function"
	},
	{
		"anonymous": false,
		"inputs": [
			{"indexed": true, "internalType": "address", "name": "tokenA", "type": "address"},
			{"indexed": true, "internalType": "address", "name": "tokenB", "type": "address"},
			{"indexed": false, "internalType": "uint24", "name": "fee", "type": "uint24"},
			{"indexed": false, "internalType": "address", "name": "pair", "type": "address"}
		],
		"name": "PairCreated",
		"type": "event"
	}
]`

// PairFactory is a Go binding around the pair factory contract.
type PairFactory struct {
	address  common.Address
	abi      abi.ABI
	contract *bind.BoundContract
}

// NewPairFactory creates a new instance of PairFactory, bound to a specific deployed contract.
func NewPairFactory(address common.Address, backend bind.ContractBackend) (*PairFactory, error) {
	contract, parsed, err := bindContract(PairFactoryABI, address, backend)
	if err != nil {
		return nil, err
	}
	return &PairFactory{address: address, abi: parsed, contract: contract}, nil
}

// Address returns the factory address
func (_PairFactory *PairFactory) Address() common.Address {
	return _PairFactory.address
}

// CreatePair is a paid mutator transaction binding the contract method createPair.
//
// Solidity: function createPair(address tokenA, address tokenB, uint256 amountA, uint256 amountB, uint24 fee) returns(address pair)
func (_PairFactory *PairFactory) CreatePair(opts *bind.TransactOpts, tokenA, tokenB common.Address, amountA, amountB *big.Int, fee uint32) (*types.Transaction, error) {
	return _PairFactory.contract.Transact(opts, "createPair", tokenA, tokenB, amountA, amountB, new(big.Int).SetUint64(uint64(fee)))
}

// GetPair is a free data retrieval call binding the contract method getPair.
//
// Solidity: function getPair(address tokenA, address tokenB, uint24 fee) view returns(address pair)
func (_PairFactory *PairFactory) GetPair(opts *bind.CallOpts, tokenA, tokenB common.Address, fee uint32) (common.Address, error) {
	var out []interface{}
	err := _PairFactory.contract.Call(opts, &out, "getPair", tokenA, tokenB, new(big.Int).SetUint64(uint64(fee)))
	if err != nil {
		return common.Address{}, err
	}
	return *abi.ConvertType(out[0], new(common.Address)).(*common.Address), nil
}

// PairCreatedFromReceipt decodes the address of the pair created in receipt.
// The zero address and false are returned when no PairCreated log is present.
func (_PairFactory *PairFactory) PairCreatedFromReceipt(receipt *types.Receipt) (common.Address, bool) {
	event := _PairFactory.abi.Events["PairCreated"]
	for _, log := range receipt.Logs {
		if log.Address != _PairFactory.address || len(log.Topics) == 0 || log.Topics[0] != event.ID {
			continue
		}
		values, err := event.Inputs.NonIndexed().Unpack(log.Data)
		if err != nil || len(values) != 2 {
			continue
		}
		if pair, ok := values[1].(common.Address); ok {
			return pair, true
		}
	}
	return common.Address{}, false
}
