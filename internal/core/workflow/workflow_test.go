package workflow

import (
	"context"
	"errors"
	"math/big"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"

	"github.com/ibrahimkeyboad/proofly/internal/core/domain"
)

const testChain = 84532

var (
	walletAddr = common.HexToAddress("0x0000000000000000000000000000000000000011")
	contract   = common.HexToAddress("0x00000000000000000000000000000000000000c0")
	recipient  = "0x4200000000000000000000000000000000000006"
	usdc       = "0x036CbD53842c5426634e7929541eC2318f3dCF7e"
)

type fakeWallet struct{}

func (fakeWallet) Address() common.Address { return walletAddr }

func (fakeWallet) TransactOpts(ctx context.Context) (*bind.TransactOpts, error) {
	return &bind.TransactOpts{From: walletAddr, Context: ctx}, nil
}

type createCall struct {
	token  string
	amount *big.Int
	title  string
}

type fakeGateway struct {
	nonce      uint64
	allowance  *big.Int
	meta       domain.TokenMetadata
	statuses   map[common.Hash]domain.TxStatus
	ids        []*big.Int
	writeErr   error
	creates    []createCall
	approvals  []*big.Int
	allowReads int
}

func newFakeGateway() *fakeGateway {
	return &fakeGateway{
		allowance: big.NewInt(0),
		meta:      domain.TokenMetadata{Decimals: 6, Symbol: "USDC"},
		statuses:  map[common.Hash]domain.TxStatus{},
	}
}

func (g *fakeGateway) nextTx() *types.Transaction {
	g.nonce++
	return types.NewTx(&types.LegacyTx{Nonce: g.nonce})
}

func (g *fakeGateway) Contract() common.Address { return contract }

func (g *fakeGateway) CreateReceipt(_ context.Context, _ *bind.TransactOpts, _, title, _ string, value *big.Int) (*types.Transaction, error) {
	if g.writeErr != nil {
		return nil, g.writeErr
	}
	g.creates = append(g.creates, createCall{amount: value, title: title})
	return g.nextTx(), nil
}

func (g *fakeGateway) CreateReceiptWithToken(_ context.Context, _ *bind.TransactOpts, token, _ string, amount *big.Int, title, _ string) (*types.Transaction, error) {
	if g.writeErr != nil {
		return nil, g.writeErr
	}
	g.creates = append(g.creates, createCall{token: token, amount: amount, title: title})
	return g.nextTx(), nil
}

func (g *fakeGateway) Approve(_ context.Context, _ *bind.TransactOpts, _, _ common.Address, amount *big.Int) (*types.Transaction, error) {
	if g.writeErr != nil {
		return nil, g.writeErr
	}
	g.approvals = append(g.approvals, amount)
	return g.nextTx(), nil
}

func (g *fakeGateway) ReadAllowance(context.Context, common.Address, common.Address, common.Address) (*big.Int, error) {
	g.allowReads++
	return new(big.Int).Set(g.allowance), nil
}

func (g *fakeGateway) ReadTokenMetadata(context.Context, common.Address) domain.TokenMetadata {
	return g.meta
}

func (g *fakeGateway) ListReceiptIDs(context.Context, common.Address) ([]*big.Int, error) {
	return g.ids, nil
}

func (g *fakeGateway) TransactionStatus(_ context.Context, hash common.Hash) (domain.TxStatus, error) {
	if s, ok := g.statuses[hash]; ok {
		return s, nil
	}
	return domain.TxPending, nil
}

type recordingPublisher struct {
	events []domain.ReceiptCreated
}

func (p *recordingPublisher) PublishReceiptCreated(_ context.Context, e domain.ReceiptCreated) error {
	p.events = append(p.events, e)
	return nil
}

type memJournal struct {
	entries  map[common.Hash]domain.JournalEntry
	statuses map[common.Hash]domain.TxStatus
}

func (j *memJournal) Record(_ context.Context, e domain.JournalEntry) error {
	j.entries[e.Hash] = e
	return nil
}

func (j *memJournal) UpdateStatus(_ context.Context, hash common.Hash, status domain.TxStatus, _ string) error {
	j.statuses[hash] = status
	return nil
}

type testLinks struct{}

func (testLinks) TxURL(hash string) string  { return "https://explorer/tx/" + hash }
func (testLinks) ShareURL(id string) string { return "https://proofly/r/" + id }

type harness struct {
	wf        *Workflow
	gateway   *fakeGateway
	publisher *recordingPublisher
	journal   *memJournal
}

func newHarness() *harness {
	h := &harness{
		gateway:   newFakeGateway(),
		publisher: &recordingPublisher{},
		journal:   &memJournal{entries: map[common.Hash]domain.JournalEntry{}, statuses: map[common.Hash]domain.TxStatus{}},
	}
	h.wf = New(Options{
		Network:   domain.Network{ChainID: testChain, Name: "Base Sepolia"},
		Wallet:    fakeWallet{},
		Gateway:   h.gateway,
		Journal:   h.journal,
		Publisher: h.publisher,
		Links:     testLinks{},
	})
	return h
}

func (h *harness) connect(t *testing.T) Session {
	t.Helper()
	s, err := h.wf.Connect(testChain)
	if err != nil {
		t.Fatalf("Connect: %v", err)
	}
	return s
}

func validationMessage(t *testing.T, err error) string {
	t.Helper()
	var ve *domain.ValidationError
	if !errors.As(err, &ve) {
		t.Fatalf("expected ValidationError, got %v", err)
	}
	return ve.Message
}

func TestSubmitGuardOrder(t *testing.T) {
	cases := []struct {
		name string
		form Form
		want string
	}{
		{"missing title", Form{Recipient: "bad"}, msgTitle},
		{"bad recipient", Form{Title: "Lunch", Recipient: "0x12"}, msgRecipient},
		{"empty recipient", Form{Title: "Lunch"}, msgRecipient},
		{"bad token", Form{Title: "Lunch", Recipient: recipient, Token: "0xnope"}, msgTokenInvalid},
		{"bad native amount", Form{Title: "Lunch", Recipient: recipient, Amount: "-1"}, msgAmountNative},
		{"bad token amount", Form{Title: "Lunch", Recipient: recipient, Token: usdc, Amount: "abc"}, msgAmountToken},
		{"too precise", Form{Title: "Lunch", Recipient: recipient, Token: usdc, Amount: "0.0000001"}, msgAmountToken},
		{"zero token amount", Form{Title: "Lunch", Recipient: recipient, Token: usdc, Amount: "0"}, msgTokenAmount},
	}

	for _, c := range cases {
		h := newHarness()
		s := h.connect(t)
		got, err := h.wf.Submit(context.Background(), s.ID, c.form)
		if msg := validationMessage(t, err); msg != c.want {
			t.Fatalf("%s: want %q got %q", c.name, c.want, msg)
		}
		if got.State != StateFailed || got.Message != c.want {
			t.Fatalf("%s: unexpected session %+v", c.name, got)
		}
		if len(h.gateway.creates) != 0 {
			t.Fatalf("%s: nothing should be submitted", c.name)
		}
	}
}

func TestSubmitRequiresConnectionAndNetwork(t *testing.T) {
	h := newHarness()
	s := h.connect(t)
	form := Form{Title: "Lunch", Recipient: recipient, Amount: "0.015"}

	if _, err := h.wf.Disconnect(s.ID); err != nil {
		t.Fatalf("Disconnect: %v", err)
	}
	_, err := h.wf.Submit(context.Background(), s.ID, form)
	if msg := validationMessage(t, err); msg != msgConnect {
		t.Fatalf("want %q got %q", msgConnect, msg)
	}

	wrong, _ := h.wf.Connect(1)
	_, err = h.wf.Submit(context.Background(), wrong.ID, form)
	var nm *domain.NetworkMismatchError
	if !errors.As(err, &nm) {
		t.Fatalf("expected NetworkMismatchError, got %v", err)
	}
	if err.Error() != "Please switch to Base Sepolia network." {
		t.Fatalf("unexpected message %q", err.Error())
	}

	if _, err := h.wf.SwitchNetwork(wrong.ID); err != nil {
		t.Fatalf("SwitchNetwork: %v", err)
	}
	got, err := h.wf.Submit(context.Background(), wrong.ID, form)
	if err != nil {
		t.Fatalf("Submit after switch: %v", err)
	}
	if got.State != StateConfirming {
		t.Fatalf("expected CONFIRMING, got %s", got.State)
	}
}

func TestNativeSubmitConfirmsAndResolvesLatestID(t *testing.T) {
	h := newHarness()
	s := h.connect(t)

	got, err := h.wf.Submit(context.Background(), s.ID, Form{Title: " Lunch ", Recipient: recipient, Amount: "0.015"})
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}
	if h.gateway.allowReads != 0 {
		t.Fatalf("native mode must never read the allowance")
	}
	if got.NeedsApproval {
		t.Fatalf("native mode never needs approval")
	}
	if h.gateway.creates[0].amount.String() != "15000000000000000" || h.gateway.creates[0].title != "Lunch" {
		t.Fatalf("unexpected create call %+v", h.gateway.creates[0])
	}
	if got.Create.Display != "0.015 ETH" {
		t.Fatalf("unexpected display %q", got.Create.Display)
	}

	// still pending
	got, _ = h.wf.Sync(context.Background(), s.ID)
	if got.State != StateConfirming {
		t.Fatalf("expected CONFIRMING, got %s", got.State)
	}

	h.gateway.ids = []*big.Int{big.NewInt(3), big.NewInt(41), big.NewInt(42)}
	h.gateway.statuses[common.HexToHash(got.Create.Hash)] = domain.TxConfirmed
	if n := h.wf.SyncAll(context.Background()); n != 1 {
		t.Fatalf("expected one session synced, got %d", n)
	}

	got, _ = h.wf.Get(s.ID)
	if got.State != StateConfirmed || got.LatestReceiptID != "42" {
		t.Fatalf("unexpected session %+v", got)
	}
	if got.ReceiptURL != "https://proofly/r/42" {
		t.Fatalf("unexpected receipt url %q", got.ReceiptURL)
	}
	if len(h.publisher.events) != 1 || h.publisher.events[0].ReceiptID != "42" {
		t.Fatalf("expected one receipt.created event, got %+v", h.publisher.events)
	}
	if h.journal.statuses[common.HexToHash(got.Create.Hash)] != domain.TxConfirmed {
		t.Fatalf("journal not updated")
	}
}

func TestNativeZeroAmountAllowed(t *testing.T) {
	h := newHarness()
	s := h.connect(t)
	if _, err := h.wf.Submit(context.Background(), s.ID, Form{Title: "Thanks", Recipient: recipient}); err != nil {
		t.Fatalf("zero value native receipt should be accepted: %v", err)
	}
	if h.gateway.creates[0].amount.Sign() != 0 {
		t.Fatalf("expected zero amount")
	}
}

func TestTokenSubmitRequiresApproval(t *testing.T) {
	h := newHarness()
	s := h.connect(t)
	form := Form{Title: "Rent", Recipient: recipient, Token: usdc, Amount: "12.5"}

	got, err := h.wf.Submit(context.Background(), s.ID, form)
	if msg := validationMessage(t, err); msg != msgApproveFirst {
		t.Fatalf("want %q got %q", msgApproveFirst, msg)
	}
	if !got.NeedsApproval || len(h.gateway.creates) != 0 {
		t.Fatalf("submit must be blocked until approval")
	}

	got, err = h.wf.Approve(context.Background(), s.ID, usdc, "12.5")
	if err != nil {
		t.Fatalf("Approve: %v", err)
	}
	if got.State != StateApprovalConfirming || h.gateway.approvals[0].Int64() != 12500000 {
		t.Fatalf("unexpected approval state %+v", got)
	}

	// approval outstanding: no double submission
	_, err = h.wf.Submit(context.Background(), s.ID, form)
	if msg := validationMessage(t, err); msg != msgApproveFirst {
		t.Fatalf("want %q got %q", msgApproveFirst, msg)
	}

	h.gateway.allowance = big.NewInt(12500000)
	h.gateway.statuses[common.HexToHash(got.Approval.Hash)] = domain.TxConfirmed
	got, err = h.wf.Sync(context.Background(), s.ID)
	if err != nil {
		t.Fatalf("Sync: %v", err)
	}
	if got.State != StateIdle || got.NeedsApproval || got.Allowance != "12500000" {
		t.Fatalf("unexpected session after approval %+v", got)
	}

	got, err = h.wf.Submit(context.Background(), s.ID, form)
	if err != nil {
		t.Fatalf("Submit after approval: %v", err)
	}
	if got.State != StateConfirming {
		t.Fatalf("expected CONFIRMING, got %s", got.State)
	}
	call := h.gateway.creates[0]
	if call.token != usdc || call.amount.Int64() != 12500000 {
		t.Fatalf("unexpected create call %+v", call)
	}
	if got.Create.Display != "12.5 USDC" {
		t.Fatalf("unexpected display %q", got.Create.Display)
	}
}

func TestSubmitWhileConfirmingIsRejected(t *testing.T) {
	h := newHarness()
	s := h.connect(t)
	form := Form{Title: "Lunch", Recipient: recipient, Amount: "1"}

	if _, err := h.wf.Submit(context.Background(), s.ID, form); err != nil {
		t.Fatalf("Submit: %v", err)
	}
	got, err := h.wf.Submit(context.Background(), s.ID, form)
	if msg := validationMessage(t, err); msg != msgInFlight {
		t.Fatalf("want %q got %q", msgInFlight, msg)
	}
	if got.State != StateConfirming || len(h.gateway.creates) != 1 {
		t.Fatalf("second submit must not reach the ledger")
	}
}

func TestTransportErrorSurfacesVerbatim(t *testing.T) {
	h := newHarness()
	s := h.connect(t)
	h.gateway.writeErr = &domain.TransportError{Op: "createReceipt", Err: errors.New("user rejected the request")}

	got, err := h.wf.Submit(context.Background(), s.ID, Form{Title: "Lunch", Recipient: recipient, Amount: "1"})
	var te *domain.TransportError
	if !errors.As(err, &te) {
		t.Fatalf("expected TransportError, got %v", err)
	}
	if got.State != StateFailed || got.Message != "createReceipt: user rejected the request" {
		t.Fatalf("unexpected session %+v", got)
	}
}

func TestRevertedReceiptFails(t *testing.T) {
	h := newHarness()
	s := h.connect(t)
	got, _ := h.wf.Submit(context.Background(), s.ID, Form{Title: "Lunch", Recipient: recipient, Amount: "1"})
	h.gateway.statuses[common.HexToHash(got.Create.Hash)] = domain.TxFailed

	got, _ = h.wf.Sync(context.Background(), s.ID)
	if got.State != StateFailed || got.Message != msgReceiptFailed {
		t.Fatalf("unexpected session %+v", got)
	}
	if len(h.publisher.events) != 0 {
		t.Fatalf("reverted receipts must not be published")
	}
}

func TestApproveGuards(t *testing.T) {
	h := newHarness()
	s := h.connect(t)

	cases := []struct {
		token, amount, want string
	}{
		{"", "1", msgTokenMissing},
		{"0x12", "1", msgTokenInvalid},
		{usdc, "0", msgTokenAmount},
		{usdc, "x", msgTokenAmount},
	}
	for _, c := range cases {
		_, err := h.wf.Approve(context.Background(), s.ID, c.token, c.amount)
		if msg := validationMessage(t, err); msg != c.want {
			t.Fatalf("Approve(%q, %q): want %q got %q", c.token, c.amount, c.want, msg)
		}
	}
}

func TestUnknownSession(t *testing.T) {
	h := newHarness()
	if _, err := h.wf.Submit(context.Background(), "nope", Form{}); !errors.Is(err, domain.ErrSessionNotFound) {
		t.Fatalf("expected ErrSessionNotFound, got %v", err)
	}
}

func TestConnectWithoutWallet(t *testing.T) {
	wf := New(Options{Network: domain.Network{ChainID: testChain}})
	if _, err := wf.Connect(testChain); !errors.Is(err, domain.ErrNoWallet) {
		t.Fatalf("expected ErrNoWallet, got %v", err)
	}
}

func TestPreview(t *testing.T) {
	h := newHarness()
	s := h.connect(t)

	p, err := h.wf.Preview(context.Background(), s.ID, Form{Amount: "0.5"})
	if err != nil {
		t.Fatalf("Preview: %v", err)
	}
	if p.Title != "Untitled receipt" || p.Note != "No note added." || p.To != "—" {
		t.Fatalf("unexpected fallbacks %+v", p)
	}
	if p.Amount != "0.5 ETH" || p.From != "0x0000…0011" || p.Network != "Base Sepolia" {
		t.Fatalf("unexpected preview %+v", p)
	}

	p, _ = h.wf.Preview(context.Background(), s.ID, Form{Token: usdc, Amount: "12.5"})
	if p.Amount != "12.5 USDC" || p.Token != "USDC" {
		t.Fatalf("unexpected token preview %+v", p)
	}
}

func TestSyncAllEvictsDisconnectedAndIdleSessions(t *testing.T) {
	h := newHarness()
	now := time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)
	h.wf.opts.Now = func() time.Time { return now }

	gone := h.connect(t)
	if _, err := h.wf.Disconnect(gone.ID); err != nil {
		t.Fatal(err)
	}
	idle := h.connect(t)
	busy := h.connect(t)
	if _, err := h.wf.Submit(context.Background(), busy.ID, Form{Title: "Rent", Recipient: recipient, Amount: "1"}); err != nil {
		t.Fatalf("Submit: %v", err)
	}

	h.wf.SyncAll(context.Background())
	if _, err := h.wf.Get(gone.ID); !errors.Is(err, domain.ErrSessionNotFound) {
		t.Fatalf("disconnected session should be evicted, got %v", err)
	}
	if _, err := h.wf.Get(idle.ID); err != nil {
		t.Fatalf("fresh idle session must stay: %v", err)
	}

	now = now.Add(defaultSessionTTL + time.Minute)
	h.wf.SyncAll(context.Background())
	if _, err := h.wf.Get(idle.ID); !errors.Is(err, domain.ErrSessionNotFound) {
		t.Fatalf("expired idle session should be evicted, got %v", err)
	}
	if _, err := h.wf.Get(busy.ID); err != nil {
		t.Fatalf("session with a write in flight must stay: %v", err)
	}
}
