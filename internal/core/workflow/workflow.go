package workflow

import (
	"context"
	"errors"
	"log/slog"
	"math/big"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/google/uuid"

	"github.com/ibrahimkeyboad/proofly/internal/core/domain"
)

const (
	msgConnect        = "Please connect your wallet first."
	msgTitle          = "Please add a title for your receipt."
	msgRecipient      = "Please enter a valid recipient address."
	msgTokenMissing   = "Please enter a token address."
	msgTokenInvalid   = "Please enter a valid token address."
	msgTokenAmount    = "Please enter a token amount."
	msgAmountToken    = "Please enter a valid token amount."
	msgAmountNative   = "Please enter a valid ETH amount."
	msgApproveFirst   = "Please approve the token first."
	msgInFlight       = "A transaction is already in flight."
	msgApprovalFailed = "Approval transaction failed."
	msgReceiptFailed  = "Receipt transaction failed."
)

// Gateway is what the workflow needs from the ledger.
type Gateway interface {
	Contract() common.Address
	CreateReceipt(ctx context.Context, opts *bind.TransactOpts, recipient, title, note string, nativeAmount *big.Int) (*types.Transaction, error)
	CreateReceiptWithToken(ctx context.Context, opts *bind.TransactOpts, token, recipient string, amount *big.Int, title, note string) (*types.Transaction, error)
	Approve(ctx context.Context, opts *bind.TransactOpts, token, spender common.Address, amount *big.Int) (*types.Transaction, error)
	ReadAllowance(ctx context.Context, token, owner, spender common.Address) (*big.Int, error)
	ReadTokenMetadata(ctx context.Context, token common.Address) domain.TokenMetadata
	ListReceiptIDs(ctx context.Context, creator common.Address) ([]*big.Int, error)
	TransactionStatus(ctx context.Context, hash common.Hash) (domain.TxStatus, error)
}

// Wallet signs writes for the connected account.
type Wallet interface {
	Address() common.Address
	TransactOpts(ctx context.Context) (*bind.TransactOpts, error)
}

// Journal persists every write the workflow submits.
type Journal interface {
	Record(ctx context.Context, entry domain.JournalEntry) error
	UpdateStatus(ctx context.Context, hash common.Hash, status domain.TxStatus, detail string) error
}

type Publisher interface {
	PublishReceiptCreated(ctx context.Context, event domain.ReceiptCreated) error
}

type Links interface {
	TxURL(hash string) string
	ShareURL(id string) string
}

type Options struct {
	Network   domain.Network
	Wallet    Wallet
	Gateway   Gateway
	Journal   Journal
	Publisher Publisher
	Links     Links
	Now       func() time.Time
	// SessionTTL drops idle sessions untouched for this long. Defaults to 24h.
	SessionTTL time.Duration
}

const defaultSessionTTL = 24 * time.Hour

type entry struct {
	mu      sync.Mutex
	session Session
}

// Workflow owns every session and is the only place session state changes.
type Workflow struct {
	opts Options

	mu       sync.RWMutex
	sessions map[string]*entry
}

func New(opts Options) *Workflow {
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.SessionTTL <= 0 {
		opts.SessionTTL = defaultSessionTTL
	}
	return &Workflow{
		opts:     opts,
		sessions: make(map[string]*entry),
	}
}

func (w *Workflow) Network() domain.Network {
	return w.opts.Network
}

// Connect opens a session for the signing wallet on the given chain.
func (w *Workflow) Connect(chainID uint64) (Session, error) {
	if w.opts.Wallet == nil {
		return Session{}, domain.ErrNoWallet
	}

	s := Session{
		ID:        uuid.NewString(),
		Account:   w.opts.Wallet.Address().Hex(),
		Connected: true,
		ChainID:   chainID,
		State:     StateIdle,
		UpdatedAt: w.opts.Now(),
	}

	w.mu.Lock()
	w.sessions[s.ID] = &entry{session: s}
	w.mu.Unlock()

	slog.Info("🔌 Wallet connected", "session_id", s.ID, "account", s.Account, "chain_id", chainID)
	return s.clone(), nil
}

func (w *Workflow) Get(id string) (Session, error) {
	e, err := w.lookup(id)
	if err != nil {
		return Session{}, err
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.session.clone(), nil
}

// Disconnect stops observing the session. Writes already submitted keep
// going on the ledger.
func (w *Workflow) Disconnect(id string) (Session, error) {
	e, err := w.lookup(id)
	if err != nil {
		return Session{}, err
	}
	e.mu.Lock()
	defer e.mu.Unlock()

	s := &e.session
	s.Connected = false
	s.State = StateIdle
	s.Message = ""
	s.Approval = nil
	s.Create = nil
	s.NeedsApproval = false
	s.UpdatedAt = w.opts.Now()
	return s.clone(), nil
}

// SwitchNetwork moves the session onto the target network.
func (w *Workflow) SwitchNetwork(id string) (Session, error) {
	e, err := w.lookup(id)
	if err != nil {
		return Session{}, err
	}
	e.mu.Lock()
	defer e.mu.Unlock()

	s := &e.session
	s.ChainID = w.opts.Network.ChainID
	if s.State == StateFailed {
		s.State = StateIdle
		s.Message = ""
	}
	s.UpdatedAt = w.opts.Now()
	slog.Info("🔀 Network switched", "session_id", id, "chain_id", s.ChainID)
	return s.clone(), nil
}

// Approve grants the receipt contract an allowance of amount on token.
func (w *Workflow) Approve(ctx context.Context, id, token, amount string) (Session, error) {
	e, err := w.lookup(id)
	if err != nil {
		return Session{}, err
	}
	e.mu.Lock()
	defer e.mu.Unlock()

	s := &e.session
	if s.Approval.inFlight() || s.Create.inFlight() {
		return s.clone(), domain.NewValidationError("", msgInFlight)
	}

	s.State = StateValidating
	s.Message = ""

	if err := w.checkConnection(s); err != nil {
		return w.fail(s, err)
	}

	form := Form{Token: token, Amount: amount}.trimmed()
	if form.Token == "" {
		return w.fail(s, domain.NewValidationError("token", msgTokenMissing))
	}
	tokenAddr, ok := domain.ValidateAddress(form.Token)
	if !ok {
		return w.fail(s, domain.NewValidationError("token", msgTokenInvalid))
	}

	meta := w.opts.Gateway.ReadTokenMetadata(ctx, tokenAddr)
	value, err := domain.ParseUnits(form.Amount, meta.Decimals)
	if err != nil || value.Sign() == 0 {
		return w.fail(s, domain.NewValidationError("amount", msgTokenAmount))
	}

	opts, err := w.opts.Wallet.TransactOpts(ctx)
	if err != nil {
		return w.fail(s, err)
	}

	s.State = StateApproving
	tx, err := w.opts.Gateway.Approve(ctx, opts, tokenAddr, w.opts.Gateway.Contract(), value)
	if err != nil {
		return w.fail(s, err)
	}

	s.Form.Token = form.Token
	s.Form.Amount = form.Amount
	s.Approval = w.pending(tx, domain.TxApprove, form.Token, domain.NewMoney(value, meta.Decimals, meta.Symbol))
	s.State = StateApprovalConfirming
	s.UpdatedAt = w.opts.Now()
	w.record(ctx, s, tx, domain.TxApprove)

	slog.Info("📝 Approval submitted", "session_id", id, "tx", s.Approval.Hash, "token", form.Token)
	return s.clone(), nil
}

// Submit validates the form and sends the create call. Guards run in a fixed
// order and the first failure wins.
func (w *Workflow) Submit(ctx context.Context, id string, input Form) (Session, error) {
	e, err := w.lookup(id)
	if err != nil {
		return Session{}, err
	}
	e.mu.Lock()
	defer e.mu.Unlock()

	s := &e.session
	if s.Approval.inFlight() {
		return s.clone(), domain.NewValidationError("token", msgApproveFirst)
	}
	if s.Create.inFlight() {
		return s.clone(), domain.NewValidationError("", msgInFlight)
	}

	form := input.trimmed()
	s.Form = form
	s.State = StateValidating
	s.Message = ""
	s.LatestReceiptID = ""
	s.ReceiptURL = ""

	// 1. Wallet and network
	if err := w.checkConnection(s); err != nil {
		return w.fail(s, err)
	}

	// 2. Form fields
	if form.Title == "" {
		return w.fail(s, domain.NewValidationError("title", msgTitle))
	}
	if _, ok := domain.ValidateAddress(form.Recipient); !ok {
		return w.fail(s, domain.NewValidationError("recipient", msgRecipient))
	}

	var tokenAddr common.Address
	meta := domain.TokenMetadata{Decimals: domain.NativeDecimals, Symbol: domain.NativeSymbol}
	if form.tokenMode() {
		addr, ok := domain.ValidateAddress(form.Token)
		if !ok {
			return w.fail(s, domain.NewValidationError("token", msgTokenInvalid))
		}
		tokenAddr = addr
		meta = w.opts.Gateway.ReadTokenMetadata(ctx, tokenAddr)
	}

	// 3. Amount at the asset's scale
	value, err := domain.ParseUnits(form.Amount, meta.Decimals)
	if err != nil {
		msg := msgAmountNative
		if form.tokenMode() {
			msg = msgAmountToken
		}
		return w.fail(s, domain.NewValidationError("amount", msg))
	}

	// 4. Token receipts need a zero-free amount and enough allowance
	if form.tokenMode() {
		if value.Sign() == 0 {
			return w.fail(s, domain.NewValidationError("amount", msgTokenAmount))
		}
		allowance, err := w.opts.Gateway.ReadAllowance(ctx, tokenAddr, s.account(), w.opts.Gateway.Contract())
		if err != nil {
			return w.fail(s, err)
		}
		s.Allowance = allowance.String()
		if allowance.Cmp(value) < 0 {
			s.NeedsApproval = true
			return w.fail(s, domain.NewValidationError("token", msgApproveFirst))
		}
		s.NeedsApproval = false
	}

	opts, err := w.opts.Wallet.TransactOpts(ctx)
	if err != nil {
		return w.fail(s, err)
	}

	// 5. Submit
	s.State = StateSubmitting
	var tx *types.Transaction
	if form.tokenMode() {
		tx, err = w.opts.Gateway.CreateReceiptWithToken(ctx, opts, form.Token, form.Recipient, value, form.Title, form.Note)
	} else {
		tx, err = w.opts.Gateway.CreateReceipt(ctx, opts, form.Recipient, form.Title, form.Note, value)
	}
	if err != nil {
		return w.fail(s, err)
	}

	s.Create = w.pending(tx, domain.TxCreate, form.Token, domain.NewMoney(value, meta.Decimals, meta.Symbol))
	s.State = StateConfirming
	s.UpdatedAt = w.opts.Now()
	w.record(ctx, s, tx, domain.TxCreate)

	slog.Info("🧾 Receipt submitted", "session_id", id, "tx", s.Create.Hash, "amount", s.Create.Display)
	return s.clone(), nil
}

// Sync asks the ledger about the session's in-flight writes and advances the
// state machine.
func (w *Workflow) Sync(ctx context.Context, id string) (Session, error) {
	e, err := w.lookup(id)
	if err != nil {
		return Session{}, err
	}
	e.mu.Lock()
	defer e.mu.Unlock()

	err = w.sync(ctx, &e.session)
	return e.session.clone(), err
}

// SyncAll advances every session with an in-flight write and returns how many
// it looked at. Disconnected and expired sessions are dropped afterwards.
func (w *Workflow) SyncAll(ctx context.Context) int {
	w.mu.RLock()
	entries := make([]*entry, 0, len(w.sessions))
	for _, e := range w.sessions {
		entries = append(entries, e)
	}
	w.mu.RUnlock()

	synced := 0
	for _, e := range entries {
		e.mu.Lock()
		if e.session.Approval.inFlight() || e.session.Create.inFlight() {
			synced++
			if err := w.sync(ctx, &e.session); err != nil {
				slog.Warn("Session sync failed", "session_id", e.session.ID, "error", err)
			}
		}
		e.mu.Unlock()
	}

	if n := w.prune(); n > 0 {
		slog.Info("🧹 Sessions evicted", "count", n)
	}
	return synced
}

// prune removes sessions that are disconnected, or idle past SessionTTL.
// Sessions with a write in flight always stay, and busy ones are left for the
// next pass.
func (w *Workflow) prune() int {
	cutoff := w.opts.Now().Add(-w.opts.SessionTTL)

	w.mu.Lock()
	defer w.mu.Unlock()

	evicted := 0
	for id, e := range w.sessions {
		if !e.mu.TryLock() {
			continue
		}
		s := &e.session
		if !s.Approval.inFlight() && !s.Create.inFlight() && (!s.Connected || s.UpdatedAt.Before(cutoff)) {
			delete(w.sessions, id)
			evicted++
		}
		e.mu.Unlock()
	}
	return evicted
}

// Preview renders the form the way the receipt will look.
func (w *Workflow) Preview(ctx context.Context, id string, input Form) (Preview, error) {
	s, err := w.Get(id)
	if err != nil {
		return Preview{}, err
	}
	form := input.trimmed()

	p := Preview{
		Title:   form.Title,
		Note:    form.Note,
		Network: w.opts.Network.Name,
		From:    "Not connected",
		To:      form.Recipient,
	}
	if p.Title == "" {
		p.Title = "Untitled receipt"
	}
	if p.Note == "" {
		p.Note = "No note added."
	}
	if p.To == "" {
		p.To = "—"
	}
	if s.Connected {
		p.From = domain.ShortAddress(s.account())
	}

	meta := domain.TokenMetadata{Decimals: domain.NativeDecimals, Symbol: domain.NativeSymbol}
	if form.tokenMode() {
		meta = domain.DefaultTokenMetadata()
		if addr, ok := domain.ValidateAddress(form.Token); ok {
			meta = w.opts.Gateway.ReadTokenMetadata(ctx, addr)
		}
		p.Token = meta.Symbol
	}
	if value, err := domain.ParseUnits(form.Amount, meta.Decimals); err == nil {
		p.Amount = domain.NewMoney(value, meta.Decimals, meta.Symbol).String()
	}
	return p, nil
}

func (w *Workflow) sync(ctx context.Context, s *Session) error {
	if s.Approval.inFlight() {
		status, err := w.opts.Gateway.TransactionStatus(ctx, common.HexToHash(s.Approval.Hash))
		if err != nil {
			return err
		}
		switch status {
		case domain.TxConfirmed:
			s.Approval.Status = domain.TxConfirmed
			s.State = StateIdle
			s.NeedsApproval = false
			token := common.HexToAddress(s.Approval.Token)
			if allowance, err := w.opts.Gateway.ReadAllowance(ctx, token, s.account(), w.opts.Gateway.Contract()); err == nil {
				s.Allowance = allowance.String()
			} else {
				slog.Warn("Allowance refresh failed", "session_id", s.ID, "error", err)
			}
			slog.Info("✅ Approval confirmed", "session_id", s.ID, "tx", s.Approval.Hash)
		case domain.TxFailed:
			s.Approval.Status = domain.TxFailed
			s.State = StateFailed
			s.Message = msgApprovalFailed
			slog.Warn("⚠️ Approval reverted", "session_id", s.ID, "tx", s.Approval.Hash)
		}
		if status != domain.TxPending {
			s.UpdatedAt = w.opts.Now()
			w.updateJournal(ctx, s.Approval.Hash, status, s.Message)
		}
	}

	if s.Create.inFlight() {
		status, err := w.opts.Gateway.TransactionStatus(ctx, common.HexToHash(s.Create.Hash))
		if err != nil {
			return err
		}
		switch status {
		case domain.TxConfirmed:
			s.Create.Status = domain.TxConfirmed
			s.State = StateConfirmed
			w.resolveLatest(ctx, s)
			slog.Info("✅ Receipt confirmed", "session_id", s.ID, "tx", s.Create.Hash, "receipt_id", s.LatestReceiptID)
			w.publish(ctx, s)
		case domain.TxFailed:
			s.Create.Status = domain.TxFailed
			s.State = StateFailed
			s.Message = msgReceiptFailed
			slog.Warn("⚠️ Receipt transaction reverted", "session_id", s.ID, "tx", s.Create.Hash)
		}
		if status != domain.TxPending {
			s.UpdatedAt = w.opts.Now()
			w.updateJournal(ctx, s.Create.Hash, status, s.Message)
		}
	}
	return nil
}

// resolveLatest takes the creator's highest id as the receipt just created.
// A second create from the same account landing in between would be picked
// up instead.
func (w *Workflow) resolveLatest(ctx context.Context, s *Session) {
	ids, err := w.opts.Gateway.ListReceiptIDs(ctx, s.account())
	if err != nil {
		slog.Warn("Could not read receipt ids after confirmation", "session_id", s.ID, "error", err)
		return
	}
	if id := lastID(ids); id != nil {
		s.LatestReceiptID = id.String()
		if w.opts.Links != nil {
			s.ReceiptURL = w.opts.Links.ShareURL(s.LatestReceiptID)
		}
	}
}

func (w *Workflow) publish(ctx context.Context, s *Session) {
	if w.opts.Publisher == nil || s.LatestReceiptID == "" {
		return
	}
	event := domain.ReceiptCreated{
		ReceiptID: s.LatestReceiptID,
		Creator:   s.Account,
		TxHash:    s.Create.Hash,
		Title:     s.Form.Title,
		Amount:    s.Create.Display,
		ChainID:   s.ChainID,
		ShareURL:  s.ReceiptURL,
		CreatedAt: w.opts.Now(),
	}
	if err := w.opts.Publisher.PublishReceiptCreated(ctx, event); err != nil {
		slog.Error("Receipt event publish failed", "error", err, "receipt_id", event.ReceiptID)
	}
}

func (w *Workflow) checkConnection(s *Session) error {
	if !s.Connected {
		return domain.NewValidationError("wallet", msgConnect)
	}
	if s.ChainID != w.opts.Network.ChainID {
		return &domain.NetworkMismatchError{Want: w.opts.Network.ChainID, Got: s.ChainID, Network: w.opts.Network.Name}
	}
	return nil
}

func (w *Workflow) fail(s *Session, err error) (Session, error) {
	s.State = StateFailed
	s.Message = err.Error()
	s.UpdatedAt = w.opts.Now()

	var ve *domain.ValidationError
	var nm *domain.NetworkMismatchError
	if errors.As(err, &ve) || errors.As(err, &nm) {
		slog.Warn("Receipt form rejected", "session_id", s.ID, "reason", s.Message)
	} else {
		slog.Error("❌ Ledger write failed", "session_id", s.ID, "error", err)
	}
	return s.clone(), err
}

func (w *Workflow) pending(tx *types.Transaction, kind domain.TxKind, token string, amount domain.Money) *PendingTx {
	p := &PendingTx{
		Hash:        tx.Hash().Hex(),
		Kind:        kind,
		Status:      domain.TxPending,
		Token:       token,
		Display:     amount.String(),
		SubmittedAt: w.opts.Now(),
	}
	if w.opts.Links != nil {
		p.URL = w.opts.Links.TxURL(p.Hash)
	}
	return p
}

func (w *Workflow) record(ctx context.Context, s *Session, tx *types.Transaction, kind domain.TxKind) {
	if w.opts.Journal == nil {
		return
	}
	err := w.opts.Journal.Record(ctx, domain.JournalEntry{
		Hash:      tx.Hash(),
		Kind:      kind,
		SessionID: s.ID,
		Account:   s.account(),
		ChainID:   s.ChainID,
		Status:    domain.TxPending,
		CreatedAt: w.opts.Now(),
	})
	if err != nil {
		slog.Error("Failed to journal transaction", "error", err, "tx", tx.Hash().Hex())
	}
}

func (w *Workflow) updateJournal(ctx context.Context, hash string, status domain.TxStatus, detail string) {
	if w.opts.Journal == nil {
		return
	}
	if err := w.opts.Journal.UpdateStatus(ctx, common.HexToHash(hash), status, detail); err != nil {
		slog.Error("Failed to update journal", "error", err, "tx", hash)
	}
}

func (w *Workflow) lookup(id string) (*entry, error) {
	w.mu.RLock()
	defer w.mu.RUnlock()
	e, ok := w.sessions[id]
	if !ok {
		return nil, domain.ErrSessionNotFound
	}
	return e, nil
}
