package presentation

import (
	"context"
	"errors"
	"log/slog"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/sourcegraph/conc/iter"

	"github.com/ibrahimkeyboad/proofly/internal/core/domain"
)

type State string

const (
	StateInvalidID    State = "invalid-id-format"
	StateLoadError    State = "load-error"
	StateLoading      State = "loading"
	StateNotFound     State = "not-found"
	StateFound        State = "found"
	StateDisconnected State = "disconnected"
	StateWrongNetwork State = "wrong-network"
	StateEmpty        State = "empty"
	StatePopulated    State = "populated"
)

const listConcurrency = 8

// Reader is the read side of the ledger gateway.
type Reader interface {
	ReadReceipt(ctx context.Context, id *big.Int) (domain.Receipt, error)
	ListReceiptIDs(ctx context.Context, creator common.Address) ([]*big.Int, error)
	ReadTokenMetadata(ctx context.Context, token common.Address) domain.TokenMetadata
}

type ReceiptView struct {
	ID             string `json:"id"`
	Title          string `json:"title"`
	Note           string `json:"note,omitempty"`
	Amount         string `json:"amount"`
	AmountRaw      string `json:"amount_raw"`
	Asset          string `json:"asset"`
	Decimals       uint8  `json:"decimals"`
	Native         bool   `json:"native"`
	Token          string `json:"token,omitempty"`
	TokenURL       string `json:"token_url,omitempty"`
	Creator        string `json:"creator"`
	CreatorShort   string `json:"creator_short"`
	CreatorURL     string `json:"creator_url"`
	Recipient      string `json:"recipient"`
	RecipientShort string `json:"recipient_short"`
	RecipientURL   string `json:"recipient_url"`
	Date           string `json:"date"`
	DateShort      string `json:"date_short"`
	Timestamp      int64  `json:"timestamp"`
	Network        string `json:"network"`
	ShareURL       string `json:"share_url"`
	Verified       bool   `json:"verified"`
}

type SingleView struct {
	State     State        `json:"state"`
	ID        string       `json:"id"`
	Heading   string       `json:"heading"`
	Receipt   *ReceiptView `json:"receipt,omitempty"`
	Error     string       `json:"error,omitempty"`
	CreateURL string       `json:"create_url,omitempty"`
}

type ListItem struct {
	ID      string       `json:"id"`
	State   State        `json:"state"`
	Receipt *ReceiptView `json:"receipt,omitempty"`
	Error   string       `json:"error,omitempty"`
}

type ListView struct {
	State   State      `json:"state"`
	Creator string     `json:"creator,omitempty"`
	Network string     `json:"network"`
	Action  string     `json:"action,omitempty"`
	Error   string     `json:"error,omitempty"`
	Items   []ListItem `json:"items"`
}

// ListRequest describes whose receipts to show and from which session state.
type ListRequest struct {
	Creator   common.Address
	Connected bool
	ChainID   uint64
}

type Presenter struct {
	reader  Reader
	links   Links
	network domain.Network
}

func NewPresenter(reader Reader, links Links, network domain.Network) *Presenter {
	return &Presenter{reader: reader, links: links, network: network}
}

// Single classifies one receipt id. Malformed ids never reach the ledger.
func (p *Presenter) Single(ctx context.Context, raw string) SingleView {
	id, ok := ParseReceiptID(raw)
	if !ok {
		return SingleView{
			State:   StateInvalidID,
			ID:      raw,
			Heading: "Receipt",
			Error:   "This link doesn't look right. Please check the URL.",
		}
	}

	view := SingleView{ID: id.String(), Heading: "Receipt #" + id.String()}
	state, receipt, err := p.load(ctx, id)
	view.State = state

	switch state {
	case StateFound:
		view.Receipt = p.render(ctx, receipt)
		if receipt.Title != "" {
			view.Heading = receipt.Title
		}
	case StateNotFound:
		view.Error = "This receipt ID doesn't exist onchain."
		view.CreateURL = p.links.CreateURL()
	case StateLoadError:
		view.Error = err.Error()
	}
	return view
}

// List fetches a creator's receipts newest first. Items load concurrently and
// each carries its own state.
func (p *Presenter) List(ctx context.Context, req ListRequest) ListView {
	view := ListView{Network: p.network.Name, Items: []ListItem{}}

	if !req.Connected {
		view.State = StateDisconnected
		return view
	}
	view.Creator = req.Creator.Hex()
	if req.ChainID != p.network.ChainID {
		view.State = StateWrongNetwork
		view.Action = "switch_network"
		return view
	}

	ids, err := p.reader.ListReceiptIDs(ctx, req.Creator)
	if err != nil {
		if isAbandoned(ctx, err) {
			view.State = StateLoading
			return view
		}
		slog.Error("Failed to list receipts", "error", err, "creator", view.Creator)
		view.State = StateLoadError
		view.Error = err.Error()
		return view
	}
	if len(ids) == 0 {
		view.State = StateEmpty
		return view
	}

	newestFirst := make([]*big.Int, len(ids))
	for i, id := range ids {
		newestFirst[len(ids)-1-i] = id
	}

	mapper := iter.Mapper[*big.Int, ListItem]{MaxGoroutines: listConcurrency}
	view.Items = mapper.Map(newestFirst, func(id **big.Int) ListItem {
		item := ListItem{ID: (*id).String()}
		state, receipt, err := p.load(ctx, *id)
		item.State = state
		switch state {
		case StateFound:
			item.Receipt = p.render(ctx, receipt)
		case StateLoadError:
			item.Error = err.Error()
		}
		return item
	})
	view.State = StatePopulated
	return view
}

func (p *Presenter) load(ctx context.Context, id *big.Int) (State, domain.Receipt, error) {
	r, err := p.reader.ReadReceipt(ctx, id)
	var nf *domain.NotFoundError
	switch {
	case err == nil && r.IsMissing(), errors.As(err, &nf):
		return StateNotFound, domain.Receipt{}, nil
	case err != nil && isAbandoned(ctx, err):
		return StateLoading, domain.Receipt{}, err
	case err != nil:
		slog.Warn("Failed to load receipt", "error", err, "receipt_id", id.String())
		return StateLoadError, domain.Receipt{}, err
	}
	return StateFound, r, nil
}

func (p *Presenter) render(ctx context.Context, r domain.Receipt) *ReceiptView {
	meta := domain.TokenMetadata{Decimals: domain.NativeDecimals, Symbol: domain.NativeSymbol}
	if !r.IsNative() {
		meta = p.reader.ReadTokenMetadata(ctx, r.Token)
	}

	created := r.CreatedAt()
	v := &ReceiptView{
		ID:             r.ID.String(),
		Title:          r.Title,
		Note:           r.Note,
		Amount:         FormatAmount(r.Amount, meta.Decimals, meta.Symbol),
		AmountRaw:      r.Amount.String(),
		Asset:          meta.Symbol,
		Decimals:       meta.Decimals,
		Native:         r.IsNative(),
		Creator:        r.Creator.Hex(),
		CreatorShort:   domain.ShortAddress(r.Creator),
		CreatorURL:     p.links.AddressURL(r.Creator),
		Recipient:      r.Recipient.Hex(),
		RecipientShort: domain.ShortAddress(r.Recipient),
		RecipientURL:   p.links.AddressURL(r.Recipient),
		Date:           FormatTime(created),
		DateShort:      FormatDate(created),
		Timestamp:      created.Unix(),
		Network:        p.network.Name,
		ShareURL:       p.links.ShareURL(r.ID.String()),
		Verified:       true,
	}
	if v.Title == "" {
		v.Title = "Untitled receipt"
	}
	if !r.IsNative() {
		v.Token = r.Token.Hex()
		v.TokenURL = p.links.AddressURL(r.Token)
	}
	return v
}

// isAbandoned reports reads cut short because the caller went away.
func isAbandoned(ctx context.Context, err error) bool {
	return ctx.Err() != nil || errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}
