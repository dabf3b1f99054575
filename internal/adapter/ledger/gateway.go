package ledger

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"

	"github.com/ibrahimkeyboad/proofly/internal/core/domain"
)

// Backend is the part of ethclient.Client the gateway talks to.
type Backend interface {
	bind.ContractCaller
	bind.ContractTransactor
	TransactionReceipt(ctx context.Context, txHash common.Hash) (*types.Receipt, error)
}

// MetadataCache keeps ERC-20 metadata per token address.
type MetadataCache interface {
	Get(ctx context.Context, token common.Address) (domain.TokenMetadata, bool)
	Set(ctx context.Context, token common.Address, meta domain.TokenMetadata)
}

// Gateway is the typed façade over the receipt contract and ERC-20 tokens.
type Gateway struct {
	backend  Backend
	contract common.Address
	receipts abi.ABI
	legacy   abi.ABI
	erc20    abi.ABI
	cache    MetadataCache
}

func NewGateway(backend Backend, contract common.Address, cache MetadataCache) (*Gateway, error) {
	receipts, err := abi.JSON(strings.NewReader(receiptABI))
	if err != nil {
		return nil, fmt.Errorf("parse receipt abi: %w", err)
	}
	legacy, err := abi.JSON(strings.NewReader(legacyReceiptABI))
	if err != nil {
		return nil, fmt.Errorf("parse legacy receipt abi: %w", err)
	}
	erc20, err := abi.JSON(strings.NewReader(erc20ABI))
	if err != nil {
		return nil, fmt.Errorf("parse erc20 abi: %w", err)
	}

	return &Gateway{
		backend:  backend,
		contract: contract,
		receipts: receipts,
		legacy:   legacy,
		erc20:    erc20,
		cache:    cache,
	}, nil
}

// Contract is the receipt contract address, also the spender for approvals.
func (g *Gateway) Contract() common.Address {
	return g.contract
}

// CreateReceipt submits createReceipt with nativeAmount attached. Zero is allowed.
func (g *Gateway) CreateReceipt(ctx context.Context, opts *bind.TransactOpts, recipient, title, note string, nativeAmount *big.Int) (*types.Transaction, error) {
	to, ok := domain.ValidateAddress(recipient)
	if !ok {
		return nil, domain.NewValidationError("recipient", "Please enter a valid recipient address.")
	}
	if nativeAmount == nil {
		nativeAmount = new(big.Int)
	}
	return g.transact(ctx, opts, nativeAmount, g.contract, g.receipts, "createReceipt", to, title, note)
}

// CreateReceiptWithToken submits createReceiptWithToken. The allowance is not
// checked here.
func (g *Gateway) CreateReceiptWithToken(ctx context.Context, opts *bind.TransactOpts, token, recipient string, amount *big.Int, title, note string) (*types.Transaction, error) {
	tokenAddr, ok := domain.ValidateAddress(token)
	if !ok {
		return nil, domain.NewValidationError("token", "Please enter a valid token address.")
	}
	to, ok := domain.ValidateAddress(recipient)
	if !ok {
		return nil, domain.NewValidationError("recipient", "Please enter a valid recipient address.")
	}
	return g.transact(ctx, opts, nil, g.contract, g.receipts, "createReceiptWithToken", tokenAddr, to, amount, title, note)
}

func (g *Gateway) Approve(ctx context.Context, opts *bind.TransactOpts, token, spender common.Address, amount *big.Int) (*types.Transaction, error) {
	return g.transact(ctx, opts, nil, token, g.erc20, "approve", spender, amount)
}

// ReadReceipt fetches one receipt. Ids the contract never assigned come back
// as a NotFoundError.
func (g *Gateway) ReadReceipt(ctx context.Context, id *big.Int) (domain.Receipt, error) {
	if id == nil || id.Sign() < 0 || id.BitLen() > domain.MaxReceiptIDBits {
		return domain.Receipt{}, &domain.NotFoundError{Resource: "receipt", ID: fmt.Sprint(id)}
	}
	raw, err := g.call(ctx, g.contract, g.receipts, "receipts", id)
	if err != nil {
		return domain.Receipt{}, err
	}
	if isLegacyLayout(raw) {
		if _, err := g.legacy.Unpack("receipts", raw); err == nil {
			return domain.Receipt{}, domain.ErrLegacyReceiptShape
		}
	}

	out, err := g.receipts.Unpack("receipts", raw)
	if err != nil {
		return domain.Receipt{}, &domain.TransportError{Op: "decode receipts", Err: err}
	}
	if len(out) != 7 {
		return domain.Receipt{}, &domain.TransportError{Op: "decode receipts", Err: fmt.Errorf("expected 7 fields, got %d", len(out))}
	}

	r := domain.Receipt{ID: new(big.Int).Set(id)}
	var okCreator, okRecipient, okToken, okAmount, okTimestamp, okTitle, okNote bool
	r.Creator, okCreator = out[0].(common.Address)
	r.Recipient, okRecipient = out[1].(common.Address)
	r.Token, okToken = out[2].(common.Address)
	r.Amount, okAmount = out[3].(*big.Int)
	r.Timestamp, okTimestamp = out[4].(*big.Int)
	r.Title, okTitle = out[5].(string)
	r.Note, okNote = out[6].(string)
	if !(okCreator && okRecipient && okToken && okAmount && okTimestamp && okTitle && okNote) {
		return domain.Receipt{}, &domain.TransportError{Op: "decode receipts", Err: errors.New("unexpected field types")}
	}

	if r.Creator == domain.ZeroAddress {
		return domain.Receipt{}, &domain.NotFoundError{Resource: "receipt", ID: id.String()}
	}
	return r, nil
}

// ListReceiptIDs returns the creator's receipt ids in creation order.
func (g *Gateway) ListReceiptIDs(ctx context.Context, creator common.Address) ([]*big.Int, error) {
	out, err := g.callUnpack(ctx, g.contract, g.receipts, "getReceiptsByCreator", creator)
	if err != nil {
		return nil, err
	}
	ids, ok := out[0].([]*big.Int)
	if !ok {
		return nil, &domain.TransportError{Op: "decode getReceiptsByCreator", Err: errors.New("unexpected field type")}
	}
	return ids, nil
}

// ReadTokenMetadata never fails: each field falls back to its default when
// the token does not answer.
func (g *Gateway) ReadTokenMetadata(ctx context.Context, token common.Address) domain.TokenMetadata {
	if g.cache != nil {
		if meta, ok := g.cache.Get(ctx, token); ok {
			return meta
		}
	}

	meta := domain.DefaultTokenMetadata()
	complete := true

	if out, err := g.callUnpack(ctx, token, g.erc20, "decimals"); err == nil {
		if d, ok := out[0].(uint8); ok {
			meta.Decimals = d
		}
	} else {
		complete = false
		slog.Debug("Token decimals unavailable, using default", "token", token.Hex(), "error", err)
	}

	if out, err := g.callUnpack(ctx, token, g.erc20, "symbol"); err == nil {
		if s, ok := out[0].(string); ok && s != "" {
			meta.Symbol = s
		}
	} else {
		complete = false
		slog.Debug("Token symbol unavailable, using default", "token", token.Hex(), "error", err)
	}

	if complete && g.cache != nil {
		g.cache.Set(ctx, token, meta)
	}
	return meta
}

func (g *Gateway) ReadAllowance(ctx context.Context, token, owner, spender common.Address) (*big.Int, error) {
	out, err := g.callUnpack(ctx, token, g.erc20, "allowance", owner, spender)
	if err != nil {
		return nil, err
	}
	allowance, ok := out[0].(*big.Int)
	if !ok {
		return nil, &domain.TransportError{Op: "decode allowance", Err: errors.New("unexpected field type")}
	}
	return allowance, nil
}

// TransactionStatus checks inclusion without blocking. A transaction the node
// has no receipt for yet is pending.
func (g *Gateway) TransactionStatus(ctx context.Context, hash common.Hash) (domain.TxStatus, error) {
	receipt, err := g.backend.TransactionReceipt(ctx, hash)
	if errors.Is(err, ethereum.NotFound) {
		return domain.TxPending, nil
	}
	if err != nil {
		return "", &domain.TransportError{Op: "transaction receipt", Err: err}
	}
	if receipt.Status == types.ReceiptStatusSuccessful {
		return domain.TxConfirmed, nil
	}
	return domain.TxFailed, nil
}

func (g *Gateway) transact(ctx context.Context, opts *bind.TransactOpts, value *big.Int, to common.Address, parsed abi.ABI, method string, args ...interface{}) (*types.Transaction, error) {
	if opts == nil {
		return nil, domain.ErrNoWallet
	}
	o := *opts
	o.Context = ctx
	o.Value = value

	contract := bind.NewBoundContract(to, parsed, g.backend, g.backend, nil)
	tx, err := contract.Transact(&o, method, args...)
	if err != nil {
		return nil, &domain.TransportError{Op: method, Err: err}
	}
	slog.Info("📤 Ledger write submitted", "method", method, "tx", tx.Hash().Hex(), "to", to.Hex())
	return tx, nil
}

func (g *Gateway) call(ctx context.Context, to common.Address, parsed abi.ABI, method string, args ...interface{}) ([]byte, error) {
	data, err := parsed.Pack(method, args...)
	if err != nil {
		return nil, fmt.Errorf("pack %s: %w", method, err)
	}
	raw, err := g.backend.CallContract(ctx, ethereum.CallMsg{To: &to, Data: data}, nil)
	if err != nil {
		return nil, &domain.TransportError{Op: method, Err: err}
	}
	if len(raw) == 0 {
		return nil, &domain.TransportError{Op: method, Err: bind.ErrNoCode}
	}
	return raw, nil
}

func (g *Gateway) callUnpack(ctx context.Context, to common.Address, parsed abi.ABI, method string, args ...interface{}) ([]interface{}, error) {
	raw, err := g.call(ctx, to, parsed, method, args...)
	if err != nil {
		return nil, err
	}
	out, err := parsed.Unpack(method, raw)
	if err != nil {
		return nil, &domain.TransportError{Op: "decode " + method, Err: err}
	}
	if len(out) == 0 {
		return nil, &domain.TransportError{Op: "decode " + method, Err: errors.New("empty output")}
	}
	return out, nil
}

// isLegacyLayout spots the six-field receipt: its first string offset sits in
// the fifth head word, where the current layout keeps the timestamp.
func isLegacyLayout(raw []byte) bool {
	const word = 32
	if len(raw) < 6*word {
		return false
	}
	offset := new(big.Int).SetBytes(raw[4*word : 5*word])
	return offset.Cmp(big.NewInt(6*word)) == 0
}
