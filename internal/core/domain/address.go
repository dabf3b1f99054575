package domain

import (
	"strings"

	"github.com/ethereum/go-ethereum/common"
)

// ZeroAddress marks the native currency in a receipt's token field and an
// unset creator on receipts that were never created.
var ZeroAddress = common.Address{}

// ValidateAddress checks that the input is a 0x-prefixed, 20 byte hex address.
// Mixed-case input must carry a valid EIP-55 checksum.
func ValidateAddress(input string) (common.Address, bool) {
	// 1. Remove surrounding whitespace
	clean := strings.TrimSpace(input)

	// 2. Require the 0x prefix and 40 hex digits
	if !strings.HasPrefix(clean, "0x") && !strings.HasPrefix(clean, "0X") {
		return ZeroAddress, false
	}
	if !common.IsHexAddress(clean) {
		return ZeroAddress, false
	}

	addr := common.HexToAddress(clean)

	// 3. All lower or all upper case skips the checksum, like wallets do
	body := clean[2:]
	if body == strings.ToLower(body) || body == strings.ToUpper(body) {
		return addr, true
	}
	return addr, addr.Hex() == clean
}

// ShortAddress renders 0x1234…abcd for compact display.
func ShortAddress(addr common.Address) string {
	hex := addr.Hex()
	return hex[:6] + "…" + hex[len(hex)-4:]
}
