package eth

import (
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
)

// TransferMethod is the method name shared by both token standards.
const TransferMethod = "safeTransferFrom"

// ERC721TransferABI holds safeTransferFrom(address,address,uint256).
const ERC721TransferABI = `[
	{
		"inputs": [
			{"name": "from",    "type": "address"},
			{"name": "to",      "type": "address"},
			{"name": "tokenId", "type": "uint256"}
		],
		"name": "safeTransferFrom",
		"outputs": [],
		"stateMutability": "nonpayable",
		"type": "function"
	}
]`

// ERC1155TransferABI holds safeTransferFrom(address,address,uint256,uint256,bytes).
const ERC1155TransferABI = `[
	{
		"inputs": [
			{"name": "from",   "type": "address"},
			{"name": "to",     "type": "address"},
			{"name": "id",     "type": "uint256"},
			{"name": "amount", "type": "uint256"},
			{"name": "data",   "type": "bytes"}
		],
		"name": "safeTransferFrom",
		"outputs": [],
		"stateMutability": "nonpayable",
		"type": "function"
	}
]`

var (
	erc721ABI  = mustParseABI(ERC721TransferABI)
	erc1155ABI = mustParseABI(ERC1155TransferABI)
)

func mustParseABI(definition string) abi.ABI {
	parsed, err := abi.JSON(strings.NewReader(definition))
	if err != nil {
		panic(err)
	}
	return parsed
}

// EncodeERC721Transfer packs safeTransferFrom(from, to, tokenId).
func EncodeERC721Transfer(from, to common.Address, tokenID *big.Int) ([]byte, error) {
	return erc721ABI.Pack(TransferMethod, from, to, tokenID)
}

// EncodeERC1155Transfer packs safeTransferFrom(from, to, id, amount, data).
func EncodeERC1155Transfer(from, to common.Address, id, amount *big.Int, data []byte) ([]byte, error) {
	if data == nil {
		data = []byte{}
	}
	return erc1155ABI.Pack(TransferMethod, from, to, id, amount, data)
}
