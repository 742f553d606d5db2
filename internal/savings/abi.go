package savings

import (
	"strings"
	"sync"

	"github.com/ethereum/go-ethereum/accounts/abi"
)

const savingsABIJSON = `[
  {
    "inputs": [{"internalType": "bytes32", "name": "savingsPoolId", "type": "bytes32"}],
    "name": "getSavingsPool",
    "outputs": [
      {"internalType": "address", "name": "user", "type": "address"},
      {"internalType": "address", "name": "tokenToSave", "type": "address"},
      {"internalType": "uint256", "name": "amountToSave", "type": "uint256"},
      {"internalType": "uint256", "name": "totalSaved", "type": "uint256"},
      {"internalType": "uint256", "name": "duration", "type": "uint256"},
      {"internalType": "uint256", "name": "startDate", "type": "uint256"},
      {"internalType": "uint256", "name": "endDate", "type": "uint256"},
      {"internalType": "uint256", "name": "nextDepositDate", "type": "uint256"},
      {"internalType": "uint256", "name": "numberOfDeposits", "type": "uint256"},
      {"internalType": "uint256", "name": "totalIntervals", "type": "uint256"},
      {"internalType": "uint256", "name": "initialDeposit", "type": "uint256"}
    ],
    "stateMutability": "view",
    "type": "function"
  },
  {
    "inputs": [{"internalType": "address", "name": "user", "type": "address"}],
    "name": "getUserSavingsPools",
    "outputs": [{"internalType": "bytes32[]", "name": "", "type": "bytes32[]"}],
    "stateMutability": "view",
    "type": "function"
  },
  {
    "inputs": [
      {"internalType": "uint256", "name": "amountToSave", "type": "uint256"},
      {"internalType": "uint256", "name": "duration", "type": "uint256"},
      {"internalType": "uint256", "name": "initialDeposit", "type": "uint256"},
      {"internalType": "uint256", "name": "totalIntervals", "type": "uint256"}
    ],
    "name": "createSavingsPoolEth",
    "outputs": [],
    "stateMutability": "payable",
    "type": "function"
  },
  {
    "inputs": [
      {"internalType": "address", "name": "tokenToSave", "type": "address"},
      {"internalType": "uint256", "name": "amountToSave", "type": "uint256"},
      {"internalType": "uint256", "name": "duration", "type": "uint256"},
      {"internalType": "uint256", "name": "initialDeposit", "type": "uint256"},
      {"internalType": "uint256", "name": "totalIntervals", "type": "uint256"}
    ],
    "name": "createSavingsPoolERC20",
    "outputs": [],
    "stateMutability": "nonpayable",
    "type": "function"
  },
  {
    "inputs": [
      {"internalType": "bytes32", "name": "savingsPoolId", "type": "bytes32"},
      {"internalType": "uint256", "name": "amount", "type": "uint256"}
    ],
    "name": "depositToSavingsPool",
    "outputs": [],
    "stateMutability": "payable",
    "type": "function"
  },
  {
    "inputs": [
      {"internalType": "bytes32", "name": "savingsPoolId", "type": "bytes32"},
      {"internalType": "bytes", "name": "proof", "type": "bytes"},
      {"internalType": "bytes32[]", "name": "publicInputs", "type": "bytes32[]"}
    ],
    "name": "withdrawFromSavingsPool",
    "outputs": [],
    "stateMutability": "nonpayable",
    "type": "function"
  },
  {
    "anonymous": false,
    "inputs": [
      {"indexed": true, "internalType": "address", "name": "user", "type": "address"},
      {"indexed": true, "internalType": "bytes32", "name": "savingsPoolId", "type": "bytes32"},
      {"indexed": false, "internalType": "address", "name": "tokenToSave", "type": "address"},
      {"indexed": false, "internalType": "uint256", "name": "amountToSave", "type": "uint256"},
      {"indexed": false, "internalType": "uint256", "name": "initialDeposit", "type": "uint256"},
      {"indexed": false, "internalType": "uint256", "name": "endDate", "type": "uint256"}
    ],
    "name": "SavingsPoolCreated",
    "type": "event"
  },
  {
    "anonymous": false,
    "inputs": [
      {"indexed": true, "internalType": "address", "name": "user", "type": "address"},
      {"indexed": true, "internalType": "bytes32", "name": "savingsPoolId", "type": "bytes32"},
      {"indexed": false, "internalType": "uint256", "name": "amount", "type": "uint256"},
      {"indexed": false, "internalType": "uint256", "name": "totalSaved", "type": "uint256"},
      {"indexed": false, "internalType": "uint256", "name": "nextDepositDate", "type": "uint256"}
    ],
    "name": "SavingsPoolDeposited",
    "type": "event"
  },
  {
    "anonymous": false,
    "inputs": [
      {"indexed": true, "internalType": "address", "name": "user", "type": "address"},
      {"indexed": true, "internalType": "bytes32", "name": "savingsPoolId", "type": "bytes32"},
      {"indexed": false, "internalType": "uint256", "name": "amount", "type": "uint256"}
    ],
    "name": "SavingsPoolWithdrawn",
    "type": "event"
  }
]`

const erc20ABIJSON = `[
  {"inputs": [], "name": "decimals", "outputs": [{"type": "uint8"}], "stateMutability": "view", "type": "function"},
  {"inputs": [], "name": "symbol", "outputs": [{"type": "string"}], "stateMutability": "view", "type": "function"},
  {"inputs": [{"internalType": "address", "name": "account", "type": "address"}], "name": "balanceOf", "outputs": [{"internalType": "uint256", "name": "", "type": "uint256"}], "stateMutability": "view", "type": "function"},
  {"inputs": [{"internalType": "address", "name": "spender", "type": "address"}, {"internalType": "uint256", "name": "amount", "type": "uint256"}], "name": "approve", "outputs": [{"internalType": "bool", "name": "", "type": "bool"}], "stateMutability": "nonpayable", "type": "function"},
  {"inputs": [{"internalType": "address", "name": "to", "type": "address"}, {"internalType": "uint256", "name": "amount", "type": "uint256"}], "name": "transfer", "outputs": [{"internalType": "bool", "name": "", "type": "bool"}], "stateMutability": "nonpayable", "type": "function"}
]`

var (
	savingsABI     abi.ABI
	savingsABIOnce sync.Once
	savingsABIErr  error

	erc20ABI     abi.ABI
	erc20ABIOnce sync.Once
	erc20ABIErr  error
)

// SavingsABI returns the parsed savings contract ABI.
func SavingsABI() (abi.ABI, error) {
	savingsABIOnce.Do(func() {
		savingsABI, savingsABIErr = abi.JSON(strings.NewReader(savingsABIJSON))
	})
	return savingsABI, savingsABIErr
}

// ERC20ABI returns the parsed ERC20 subset used for savings tokens.
func ERC20ABI() (abi.ABI, error) {
	erc20ABIOnce.Do(func() {
		erc20ABI, erc20ABIErr = abi.JSON(strings.NewReader(erc20ABIJSON))
	})
	return erc20ABI, erc20ABIErr
}
