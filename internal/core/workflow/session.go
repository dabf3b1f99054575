package workflow

import (
	"math/big"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"github.com/ibrahimkeyboad/proofly/internal/core/domain"
)

type State string

const (
	StateIdle               State = "IDLE"
	StateValidating         State = "VALIDATING"
	StateApproving          State = "APPROVING"
	StateApprovalConfirming State = "APPROVAL_CONFIRMING"
	StateSubmitting         State = "SUBMITTING"
	StateConfirming         State = "CONFIRMING"
	StateConfirmed          State = "CONFIRMED"
	StateFailed             State = "FAILED"
)

// Form is the raw user input of the create-receipt form.
type Form struct {
	Title     string `json:"title"`
	Recipient string `json:"recipient"`
	Note      string `json:"note"`
	Token     string `json:"token"`
	Amount    string `json:"amount"`
}

func (f Form) trimmed() Form {
	return Form{
		Title:     strings.TrimSpace(f.Title),
		Recipient: strings.TrimSpace(f.Recipient),
		Note:      strings.TrimSpace(f.Note),
		Token:     strings.TrimSpace(f.Token),
		Amount:    strings.TrimSpace(f.Amount),
	}
}

func (f Form) tokenMode() bool {
	return f.Token != ""
}

// PendingTx follows one submitted write until the ledger settles it.
type PendingTx struct {
	Hash        string          `json:"hash"`
	Kind        domain.TxKind   `json:"kind"`
	Status      domain.TxStatus `json:"status"`
	Token       string          `json:"token,omitempty"`
	Display     string          `json:"amount"`
	URL         string          `json:"url,omitempty"`
	SubmittedAt time.Time       `json:"submitted_at"`
}

func (p *PendingTx) inFlight() bool {
	return p != nil && p.Status == domain.TxPending
}

// Session is the single state container of one connected wallet.
type Session struct {
	ID              string     `json:"id"`
	Account         string     `json:"account"`
	Connected       bool       `json:"connected"`
	ChainID         uint64     `json:"chain_id"`
	State           State      `json:"state"`
	Message         string     `json:"message,omitempty"`
	Form            Form       `json:"form"`
	NeedsApproval   bool       `json:"needs_approval"`
	Allowance       string     `json:"allowance,omitempty"`
	Approval        *PendingTx `json:"approval,omitempty"`
	Create          *PendingTx `json:"create,omitempty"`
	LatestReceiptID string     `json:"latest_receipt_id,omitempty"`
	ReceiptURL      string     `json:"receipt_url,omitempty"`
	UpdatedAt       time.Time  `json:"updated_at"`
}

func (s Session) clone() Session {
	out := s
	if s.Approval != nil {
		a := *s.Approval
		out.Approval = &a
	}
	if s.Create != nil {
		c := *s.Create
		out.Create = &c
	}
	return out
}

func (s Session) account() common.Address {
	return common.HexToAddress(s.Account)
}

// Preview is the read-only rendering of a form before submission.
type Preview struct {
	Title   string `json:"title"`
	Note    string `json:"note"`
	Amount  string `json:"amount"`
	Network string `json:"network"`
	Token   string `json:"token,omitempty"`
	From    string `json:"from"`
	To      string `json:"to"`
}

func lastID(ids []*big.Int) *big.Int {
	if len(ids) == 0 {
		return nil
	}
	return ids[len(ids)-1]
}
