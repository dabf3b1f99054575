package handler

import (
	"net/http"

	"github.com/gofiber/fiber/v2"

	"github.com/ibrahimkeyboad/proofly/internal/core/domain"
	"github.com/ibrahimkeyboad/proofly/internal/core/presentation"
)

type ReceiptHandler struct {
	Presenter ReceiptPresenter
	Network   domain.Network
}

func (h *ReceiptHandler) Get(c *fiber.Ctx) error {
	view := h.Presenter.Single(c.UserContext(), c.Params("id"))
	return c.Status(singleStatus(view.State)).JSON(view)
}

// ByCreator lists any creator's receipts. Reads need no wallet, so the
// request is treated as connected on the target network.
func (h *ReceiptHandler) ByCreator(c *fiber.Ctx) error {
	creator, ok := domain.ValidateAddress(c.Params("address"))
	if !ok {
		return c.Status(http.StatusBadRequest).JSON(fiber.Map{"error": "Please enter a valid creator address."})
	}

	view := h.Presenter.List(c.UserContext(), presentation.ListRequest{
		Creator:   creator,
		Connected: true,
		ChainID:   h.Network.ChainID,
	})
	return c.Status(listStatus(view.State)).JSON(view)
}

func singleStatus(state presentation.State) int {
	switch state {
	case presentation.StateInvalidID:
		return http.StatusBadRequest
	case presentation.StateNotFound:
		return http.StatusNotFound
	case presentation.StateLoadError:
		return http.StatusBadGateway
	case presentation.StateLoading:
		return http.StatusGatewayTimeout
	}
	return http.StatusOK
}

func listStatus(state presentation.State) int {
	switch state {
	case presentation.StateLoadError:
		return http.StatusBadGateway
	case presentation.StateLoading:
		return http.StatusGatewayTimeout
	}
	return http.StatusOK
}
