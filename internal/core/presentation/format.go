package presentation

import (
	"math/big"
	"regexp"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"github.com/ibrahimkeyboad/proofly/internal/core/domain"
)

var idPattern = regexp.MustCompile(`^[0-9]+$`)

// ParseReceiptID accepts non-negative base-10 integers up to uint256. Larger
// values would wrap when encoded and address a different receipt.
func ParseReceiptID(raw string) (*big.Int, bool) {
	if !idPattern.MatchString(raw) {
		return nil, false
	}
	id, ok := new(big.Int).SetString(raw, 10)
	if !ok || id.BitLen() > domain.MaxReceiptIDBits {
		return nil, false
	}
	return id, true
}

func FormatAmount(amount *big.Int, decimals uint8, symbol string) string {
	return domain.NewMoney(amount, decimals, symbol).String()
}

func FormatTime(t time.Time) string {
	return t.UTC().Format("January 2, 2006 at 15:04 UTC")
}

func FormatDate(t time.Time) string {
	return t.UTC().Format("Jan 2, 2006")
}

// Links builds explorer and share URLs.
type Links struct {
	ExplorerURL   string
	PublicBaseURL string
}

func (l Links) TxURL(hash string) string {
	return strings.TrimRight(l.ExplorerURL, "/") + "/tx/" + hash
}

func (l Links) AddressURL(addr common.Address) string {
	return strings.TrimRight(l.ExplorerURL, "/") + "/address/" + addr.Hex()
}

func (l Links) ShareURL(id string) string {
	return strings.TrimRight(l.PublicBaseURL, "/") + "/r/" + id
}

func (l Links) CreateURL() string {
	return strings.TrimRight(l.PublicBaseURL, "/") + "/create"
}
