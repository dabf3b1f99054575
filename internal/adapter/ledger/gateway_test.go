package ledger

import (
	"context"
	"encoding/hex"
	"errors"
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"

	"github.com/ibrahimkeyboad/proofly/internal/core/domain"
)

var (
	contractAddr = common.HexToAddress("0x00000000000000000000000000000000000000c0")
	tokenAddr    = common.HexToAddress("0x036CbD53842c5426634e7929541eC2318f3dCF7e")
	creatorAddr  = common.HexToAddress("0x000000000000000000000000000000000000000a")
	recipAddr    = common.HexToAddress("0x000000000000000000000000000000000000000b")
)

type fakeBackend struct {
	calls     int
	responses map[string][]byte
	callErr   error
	sent      []*types.Transaction
	receipts  map[common.Hash]*types.Receipt
}

func newFakeBackend() *fakeBackend {
	return &fakeBackend{
		responses: map[string][]byte{},
		receipts:  map[common.Hash]*types.Receipt{},
	}
}

func callKey(to common.Address, selector []byte) string {
	return to.Hex() + ":" + hex.EncodeToString(selector)
}

func (f *fakeBackend) respond(t *testing.T, to common.Address, parsed abi.ABI, method string, values ...interface{}) {
	t.Helper()
	m := parsed.Methods[method]
	raw, err := m.Outputs.Pack(values...)
	if err != nil {
		t.Fatalf("pack %s outputs: %v", method, err)
	}
	f.responses[callKey(to, m.ID)] = raw
}

func (f *fakeBackend) CallContract(ctx context.Context, msg ethereum.CallMsg, _ *big.Int) ([]byte, error) {
	f.calls++
	if f.callErr != nil {
		return nil, f.callErr
	}
	raw, ok := f.responses[callKey(*msg.To, msg.Data[:4])]
	if !ok {
		return nil, errors.New("execution reverted")
	}
	return raw, nil
}

func (f *fakeBackend) CodeAt(ctx context.Context, _ common.Address, _ *big.Int) ([]byte, error) {
	return []byte{0x60}, nil
}

func (f *fakeBackend) HeaderByNumber(ctx context.Context, _ *big.Int) (*types.Header, error) {
	return &types.Header{Number: big.NewInt(1), BaseFee: big.NewInt(1_000_000)}, nil
}

func (f *fakeBackend) PendingCodeAt(ctx context.Context, _ common.Address) ([]byte, error) {
	return []byte{0x60}, nil
}

func (f *fakeBackend) PendingNonceAt(ctx context.Context, _ common.Address) (uint64, error) {
	return uint64(len(f.sent)), nil
}

func (f *fakeBackend) SuggestGasPrice(ctx context.Context) (*big.Int, error) {
	return big.NewInt(2_000_000), nil
}

func (f *fakeBackend) SuggestGasTipCap(ctx context.Context) (*big.Int, error) {
	return big.NewInt(1_000), nil
}

func (f *fakeBackend) EstimateGas(ctx context.Context, _ ethereum.CallMsg) (uint64, error) {
	return 120_000, nil
}

func (f *fakeBackend) SendTransaction(ctx context.Context, tx *types.Transaction) error {
	f.sent = append(f.sent, tx)
	return nil
}

func (f *fakeBackend) TransactionReceipt(ctx context.Context, hash common.Hash) (*types.Receipt, error) {
	if r, ok := f.receipts[hash]; ok {
		return r, nil
	}
	return nil, ethereum.NotFound
}

type mapCache map[common.Address]domain.TokenMetadata

func (m mapCache) Get(_ context.Context, token common.Address) (domain.TokenMetadata, bool) {
	meta, ok := m[token]
	return meta, ok
}

func (m mapCache) Set(_ context.Context, token common.Address, meta domain.TokenMetadata) {
	m[token] = meta
}

func newTestGateway(t *testing.T, cache MetadataCache) (*Gateway, *fakeBackend) {
	t.Helper()
	backend := newFakeBackend()
	g, err := NewGateway(backend, contractAddr, cache)
	if err != nil {
		t.Fatalf("NewGateway: %v", err)
	}
	return g, backend
}

func testOpts(t *testing.T) *bind.TransactOpts {
	t.Helper()
	key, err := crypto.GenerateKey()
	if err != nil {
		t.Fatalf("generate key: %v", err)
	}
	opts, err := bind.NewKeyedTransactorWithChainID(key, big.NewInt(84532))
	if err != nil {
		t.Fatalf("transactor: %v", err)
	}
	return opts
}

func TestReadReceipt(t *testing.T) {
	g, backend := newTestGateway(t, nil)
	backend.respond(t, contractAddr, g.receipts, "receipts",
		creatorAddr, recipAddr, domain.ZeroAddress, big.NewInt(15000000000000000), big.NewInt(1700000000), "Lunch", "")

	r, err := g.ReadReceipt(context.Background(), big.NewInt(42))
	if err != nil {
		t.Fatalf("ReadReceipt: %v", err)
	}
	if r.ID.Int64() != 42 || r.Creator != creatorAddr || r.Recipient != recipAddr {
		t.Fatalf("unexpected receipt: %+v", r)
	}
	if !r.IsNative() || r.Amount.String() != "15000000000000000" || r.Title != "Lunch" {
		t.Fatalf("unexpected receipt payload: %+v", r)
	}
}

func TestReadReceiptNotFound(t *testing.T) {
	g, backend := newTestGateway(t, nil)
	backend.respond(t, contractAddr, g.receipts, "receipts",
		domain.ZeroAddress, domain.ZeroAddress, domain.ZeroAddress, big.NewInt(0), big.NewInt(0), "", "")

	_, err := g.ReadReceipt(context.Background(), big.NewInt(7))
	var nf *domain.NotFoundError
	if !errors.As(err, &nf) {
		t.Fatalf("expected NotFoundError, got %v", err)
	}
}

func TestReadReceiptRejectsIDsBeyondUint256(t *testing.T) {
	g, backend := newTestGateway(t, nil)
	backend.respond(t, contractAddr, g.receipts, "receipts",
		creatorAddr, recipAddr, domain.ZeroAddress, big.NewInt(1), big.NewInt(1700000000), "Receipt five", "")

	// 2^256 + 5 would encode as 5
	id := new(big.Int).Add(new(big.Int).Lsh(big.NewInt(1), 256), big.NewInt(5))
	_, err := g.ReadReceipt(context.Background(), id)
	var nf *domain.NotFoundError
	if !errors.As(err, &nf) || nf.ID != id.String() {
		t.Fatalf("expected NotFoundError for %s, got %v", id, err)
	}
	if backend.calls != 0 {
		t.Fatalf("oversized id must not reach the node, got %d calls", backend.calls)
	}

	maxID := new(big.Int).Sub(new(big.Int).Lsh(big.NewInt(1), 256), big.NewInt(1))
	r, err := g.ReadReceipt(context.Background(), maxID)
	if err != nil || r.ID.Cmp(maxID) != 0 {
		t.Fatalf("max uint256 id should be read as is, got %v %v", r.ID, err)
	}
}

func TestReadReceiptLegacyShape(t *testing.T) {
	g, backend := newTestGateway(t, nil)
	backend.respond(t, contractAddr, g.legacy, "receipts",
		creatorAddr, recipAddr, big.NewInt(1000), big.NewInt(1700000000), "", "old")

	_, err := g.ReadReceipt(context.Background(), big.NewInt(1))
	if !errors.Is(err, domain.ErrLegacyReceiptShape) {
		t.Fatalf("expected ErrLegacyReceiptShape, got %v", err)
	}
}

func TestReadReceiptTransportError(t *testing.T) {
	g, backend := newTestGateway(t, nil)
	backend.callErr = errors.New("connection refused")

	_, err := g.ReadReceipt(context.Background(), big.NewInt(1))
	var te *domain.TransportError
	if !errors.As(err, &te) {
		t.Fatalf("expected TransportError, got %v", err)
	}
}

func TestListReceiptIDs(t *testing.T) {
	g, backend := newTestGateway(t, nil)
	backend.respond(t, contractAddr, g.receipts, "getReceiptsByCreator",
		[]*big.Int{big.NewInt(3), big.NewInt(9), big.NewInt(12)})

	ids, err := g.ListReceiptIDs(context.Background(), creatorAddr)
	if err != nil {
		t.Fatalf("ListReceiptIDs: %v", err)
	}
	if len(ids) != 3 || ids[2].Int64() != 12 {
		t.Fatalf("unexpected ids: %v", ids)
	}
}

func TestReadTokenMetadata(t *testing.T) {
	cache := mapCache{}
	g, backend := newTestGateway(t, cache)
	backend.respond(t, tokenAddr, g.erc20, "decimals", uint8(6))
	backend.respond(t, tokenAddr, g.erc20, "symbol", "USDC")

	meta := g.ReadTokenMetadata(context.Background(), tokenAddr)
	if meta.Decimals != 6 || meta.Symbol != "USDC" {
		t.Fatalf("unexpected metadata: %+v", meta)
	}

	calls := backend.calls
	g.ReadTokenMetadata(context.Background(), tokenAddr)
	if backend.calls != calls {
		t.Fatalf("second read should be served from cache")
	}
}

func TestReadTokenMetadataFailsOpen(t *testing.T) {
	cache := mapCache{}
	g, backend := newTestGateway(t, cache)
	backend.respond(t, tokenAddr, g.erc20, "symbol", "WETH")

	meta := g.ReadTokenMetadata(context.Background(), tokenAddr)
	if meta.Decimals != 18 || meta.Symbol != "WETH" {
		t.Fatalf("unexpected metadata: %+v", meta)
	}
	if _, ok := cache[tokenAddr]; ok {
		t.Fatalf("partial metadata must not be cached")
	}

	backend.callErr = errors.New("boom")
	meta = g.ReadTokenMetadata(context.Background(), tokenAddr)
	if meta != domain.DefaultTokenMetadata() {
		t.Fatalf("expected defaults, got %+v", meta)
	}
}

func TestReadAllowance(t *testing.T) {
	g, backend := newTestGateway(t, nil)
	backend.respond(t, tokenAddr, g.erc20, "allowance", big.NewInt(5_000_000))

	allowance, err := g.ReadAllowance(context.Background(), tokenAddr, creatorAddr, contractAddr)
	if err != nil {
		t.Fatalf("ReadAllowance: %v", err)
	}
	if allowance.Int64() != 5_000_000 {
		t.Fatalf("unexpected allowance %s", allowance)
	}
}

func TestCreateReceiptRejectsBadRecipient(t *testing.T) {
	g, backend := newTestGateway(t, nil)

	_, err := g.CreateReceipt(context.Background(), testOpts(t), "not-an-address", "Lunch", "", big.NewInt(0))
	var ve *domain.ValidationError
	if !errors.As(err, &ve) {
		t.Fatalf("expected ValidationError, got %v", err)
	}
	if len(backend.sent) != 0 {
		t.Fatalf("nothing should be submitted")
	}
}

func TestCreateReceiptAttachesValue(t *testing.T) {
	g, backend := newTestGateway(t, nil)

	tx, err := g.CreateReceipt(context.Background(), testOpts(t), recipAddr.Hex(), "Lunch", "tacos", big.NewInt(0))
	if err != nil {
		t.Fatalf("CreateReceipt: %v", err)
	}
	if len(backend.sent) != 1 || *tx.To() != contractAddr || tx.Value().Sign() != 0 {
		t.Fatalf("unexpected tx: to=%v value=%v", tx.To(), tx.Value())
	}

	args, err := g.receipts.Methods["createReceipt"].Inputs.Unpack(tx.Data()[4:])
	if err != nil {
		t.Fatalf("unpack input: %v", err)
	}
	if args[0].(common.Address) != recipAddr || args[1].(string) != "Lunch" || args[2].(string) != "tacos" {
		t.Fatalf("unexpected args: %v", args)
	}
}

func TestCreateReceiptWithTokenAndApprove(t *testing.T) {
	g, backend := newTestGateway(t, nil)
	opts := testOpts(t)

	approval, err := g.Approve(context.Background(), opts, tokenAddr, contractAddr, big.NewInt(12500000))
	if err != nil {
		t.Fatalf("Approve: %v", err)
	}
	if *approval.To() != tokenAddr {
		t.Fatalf("approve must target the token")
	}

	tx, err := g.CreateReceiptWithToken(context.Background(), opts, tokenAddr.Hex(), recipAddr.Hex(), big.NewInt(12500000), "Rent", "")
	if err != nil {
		t.Fatalf("CreateReceiptWithToken: %v", err)
	}
	if tx.Value().Sign() != 0 {
		t.Fatalf("token receipts carry no native value")
	}
	if len(backend.sent) != 2 {
		t.Fatalf("expected 2 submitted txs, got %d", len(backend.sent))
	}
}

func TestTransactionStatus(t *testing.T) {
	g, backend := newTestGateway(t, nil)
	ok := common.HexToHash("0x01")
	reverted := common.HexToHash("0x02")
	backend.receipts[ok] = &types.Receipt{Status: types.ReceiptStatusSuccessful}
	backend.receipts[reverted] = &types.Receipt{Status: types.ReceiptStatusFailed}

	cases := map[common.Hash]domain.TxStatus{
		ok:                       domain.TxConfirmed,
		reverted:                 domain.TxFailed,
		common.HexToHash("0x03"): domain.TxPending,
	}
	for hash, want := range cases {
		got, err := g.TransactionStatus(context.Background(), hash)
		if err != nil {
			t.Fatalf("TransactionStatus(%s): %v", hash, err)
		}
		if got != want {
			t.Fatalf("TransactionStatus(%s) = %s, want %s", hash, got, want)
		}
	}
}
