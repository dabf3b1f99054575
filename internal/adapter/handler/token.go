package handler

import (
	"github.com/gofiber/fiber/v2"

	"github.com/ibrahimkeyboad/proofly/internal/core/domain"
)

type TokenHandler struct {
	Tokens  []domain.Token
	Network domain.Network
}

// List returns the selectable assets, native first.
func (h *TokenHandler) List(c *fiber.Ctx) error {
	tokens := h.Tokens
	if tokens == nil {
		tokens = []domain.Token{}
	}
	return c.JSON(fiber.Map{
		"network": h.Network,
		"native": fiber.Map{
			"symbol":   domain.NativeSymbol,
			"decimals": domain.NativeDecimals,
		},
		"tokens": tokens,
	})
}
