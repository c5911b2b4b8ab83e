package core

// NativeBalance is the native coin balance of a wallet.
type NativeBalance struct {
	Address string `json:"address"`
	Wei     string `json:"wei"`
	Balance string `json:"balance"`
}

// TokenBalance is an ERC-20 balance enriched with token metadata.
type TokenBalance struct {
	ContractAddress string `json:"contractAddress"`
	Balance         string `json:"balance"`
	Name            string `json:"name"`
	Symbol          string `json:"symbol"`
	Logo            string `json:"logo"`
}

// OwnedNFT is an NFT held by a wallet as reported by the indexer.
type OwnedNFT struct {
	UniqueID        string  `json:"uniqueId"`
	ContractAddress string  `json:"contractAddress"`
	TokenID         string  `json:"tokenId"`
	Name            string  `json:"name"`
	Logo            *string `json:"logo"`
	Balance         string  `json:"balance"`
	TokenType       string  `json:"tokenType"`
}
