package contracts

import (
	"math/big"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
)

// PairABI is the read-only surface of a trading pair
const PairABI = `[
	{
		"inputs": [],
		"name": "active",
		"outputs": [{"internalType": "bool", "name": "", "type": "bool"}],
		"stateMutability": "view",
		"type": "function"
	},
	{
		"inputs": [],
		"name": "price",
		"outputs": [{"internalType": "uint256", "name": "", "type": "uint256"}],
		"stateMutability": "view",
		"type": "function"
	}
]`

// Pair is a Go binding around a trading pair contract.
type Pair struct {
	contract *bind.BoundContract
}

// NewPair creates a new instance of Pair, bound to a specific deployed contract.
func NewPair(address common.Address, backend bind.ContractBackend) (*Pair, error) {
	contract, _, err := bindContract(PairABI, address, backend)
	if err != nil {
		return nil, err
	}
	return &Pair{contract: contract}, nil
}

// Active is a free data retrieval call binding the contract method active.
//
// Solidity: function active() view returns(bool)
func (_Pair *Pair) Active(opts *bind.CallOpts) (bool, error) {
	var out []interface{}
	err := _Pair.contract.Call(opts, &out, "active")
	if err != nil {
		return false, err
	}
	return *abi.ConvertType(out[0], new(bool)).(*bool), nil
}

// Price is a free data retrieval call binding the contract method price.
// The value is the price of one unit of tokenA in tokenB, scaled by 1e18.
//
// Solidity: function price() view returns(uint256)
func (_Pair *Pair) Price(opts *bind.CallOpts) (*big.Int, error) {
	var out []interface{}
	err := _Pair.contract.Call(opts, &out, "price")
	if err != nil {
		return nil, err
	}
	return *abi.ConvertType(out[0], new(*big.Int)).(**big.Int), nil
}
