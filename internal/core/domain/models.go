package domain

import (
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"
)

// Receipt mirrors the contract's receipts(uint256) record.
// MaxReceiptIDBits is the width of the contract's uint256 id.
const MaxReceiptIDBits = 256

type Receipt struct {
	ID        *big.Int
	Creator   common.Address
	Recipient common.Address
	Token     common.Address // ZeroAddress for native currency
	Amount    *big.Int
	Timestamp *big.Int // seconds since epoch, set by the contract
	Title     string
	Note      string
}

// IsMissing reports the all-default record the contract returns for ids it
// never assigned.
func (r Receipt) IsMissing() bool {
	return r.Creator == ZeroAddress && (r.Timestamp == nil || r.Timestamp.Sign() == 0)
}

func (r Receipt) IsNative() bool {
	return r.Token == ZeroAddress
}

// CreatedAt converts the contract timestamp.
func (r Receipt) CreatedAt() time.Time {
	if r.Timestamp == nil || !r.Timestamp.IsInt64() {
		return time.Unix(0, 0).UTC()
	}
	return time.Unix(r.Timestamp.Int64(), 0).UTC()
}

const DefaultTokenSymbol = "TOKEN"

// TokenMetadata is what the ERC-20 contract reports about itself.
type TokenMetadata struct {
	Decimals uint8  `cbor:"1,keyasint" json:"decimals"`
	Symbol   string `cbor:"2,keyasint" json:"symbol"`
}

func DefaultTokenMetadata() TokenMetadata {
	return TokenMetadata{Decimals: NativeDecimals, Symbol: DefaultTokenSymbol}
}

// Token is an entry of the selectable token list.
type Token struct {
	Symbol  string `yaml:"symbol" json:"symbol"`
	Address string `yaml:"address" json:"address"`
}

type TxStatus string

const (
	TxPending   TxStatus = "PENDING"
	TxConfirmed TxStatus = "CONFIRMED"
	TxFailed    TxStatus = "FAILED"
)

type TxKind string

const (
	TxApprove TxKind = "APPROVE"
	TxCreate  TxKind = "CREATE"
)

// JournalEntry records a write this service submitted to the ledger.
type JournalEntry struct {
	Hash      common.Hash
	Kind      TxKind
	SessionID string
	Account   common.Address
	ChainID   uint64
	Status    TxStatus
	Detail    string
	CreatedAt time.Time
}

// ReceiptCreated is published once a create transaction is confirmed.
type ReceiptCreated struct {
	ReceiptID string    `json:"receipt_id"`
	Creator   string    `json:"creator"`
	TxHash    string    `json:"tx_hash"`
	Title     string    `json:"title"`
	Amount    string    `json:"amount"`
	ChainID   uint64    `json:"chain_id"`
	ShareURL  string    `json:"share_url"`
	CreatedAt time.Time `json:"created_at"`
}

// Network is the one chain writes are allowed on.
type Network struct {
	ChainID uint64 `json:"chain_id"`
	Name    string `json:"name"`
}
