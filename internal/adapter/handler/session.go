package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/ethereum/go-ethereum/common"
	"github.com/gofiber/fiber/v2"

	"github.com/ibrahimkeyboad/proofly/internal/core/domain"
	"github.com/ibrahimkeyboad/proofly/internal/core/presentation"
	"github.com/ibrahimkeyboad/proofly/internal/core/workflow"
)

// SessionService is the workflow as the HTTP layer sees it.
type SessionService interface {
	Network() domain.Network
	Connect(chainID uint64) (workflow.Session, error)
	Get(id string) (workflow.Session, error)
	Disconnect(id string) (workflow.Session, error)
	SwitchNetwork(id string) (workflow.Session, error)
	Sync(ctx context.Context, id string) (workflow.Session, error)
	Approve(ctx context.Context, id, token, amount string) (workflow.Session, error)
	Submit(ctx context.Context, id string, input workflow.Form) (workflow.Session, error)
	Preview(ctx context.Context, id string, input workflow.Form) (workflow.Preview, error)
}

// ReceiptPresenter renders receipts for display.
type ReceiptPresenter interface {
	Single(ctx context.Context, raw string) presentation.SingleView
	List(ctx context.Context, req presentation.ListRequest) presentation.ListView
}

type SessionHandler struct {
	Service   SessionService
	Presenter ReceiptPresenter
}

// Request Models
type ConnectRequest struct {
	ChainID uint64 `json:"chain_id"`
}

type ApproveRequest struct {
	Token  string `json:"token"`
	Amount string `json:"amount"`
}

// Connect opens a session. A missing chain id means the wallet is already on
// the target network.
func (h *SessionHandler) Connect(c *fiber.Ctx) error {
	var req ConnectRequest
	if len(c.Body()) > 0 {
		if err := c.BodyParser(&req); err != nil {
			slog.Warn("Invalid connect body", "error", err)
			return c.Status(http.StatusBadRequest).JSON(fiber.Map{"error": "Invalid request body"})
		}
	}
	if req.ChainID == 0 {
		req.ChainID = h.Service.Network().ChainID
	}

	session, err := h.Service.Connect(req.ChainID)
	if err != nil {
		return respondError(c, err, nil)
	}
	return c.Status(http.StatusCreated).JSON(session)
}

// Get returns the session after asking the ledger about its pending writes.
func (h *SessionHandler) Get(c *fiber.Ctx) error {
	session, err := h.Service.Sync(c.UserContext(), c.Params("id"))
	if err != nil {
		// a failed sync still leaves a readable session
		if session.ID == "" {
			return respondError(c, err, nil)
		}
		slog.Warn("Session sync failed", "session_id", session.ID, "error", err)
	}
	return c.JSON(session)
}

func (h *SessionHandler) Disconnect(c *fiber.Ctx) error {
	session, err := h.Service.Disconnect(c.Params("id"))
	if err != nil {
		return respondError(c, err, nil)
	}
	return c.JSON(session)
}

func (h *SessionHandler) SwitchNetwork(c *fiber.Ctx) error {
	session, err := h.Service.SwitchNetwork(c.Params("id"))
	if err != nil {
		return respondError(c, err, nil)
	}
	return c.JSON(session)
}

func (h *SessionHandler) Approve(c *fiber.Ctx) error {
	var req ApproveRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(http.StatusBadRequest).JSON(fiber.Map{"error": "Invalid request body"})
	}

	session, err := h.Service.Approve(c.UserContext(), c.Params("id"), req.Token, req.Amount)
	if err != nil {
		return respondError(c, err, &session)
	}
	return c.Status(http.StatusAccepted).JSON(session)
}

// Submit sends the create-receipt call. The response is 202 because the
// write is only confirmed once the ledger includes it.
func (h *SessionHandler) Submit(c *fiber.Ctx) error {
	var form workflow.Form
	if err := c.BodyParser(&form); err != nil {
		return c.Status(http.StatusBadRequest).JSON(fiber.Map{"error": "Invalid request body"})
	}

	session, err := h.Service.Submit(c.UserContext(), c.Params("id"), form)
	if err != nil {
		return respondError(c, err, &session)
	}
	return c.Status(http.StatusAccepted).JSON(session)
}

func (h *SessionHandler) Preview(c *fiber.Ctx) error {
	var form workflow.Form
	if err := c.BodyParser(&form); err != nil {
		return c.Status(http.StatusBadRequest).JSON(fiber.Map{"error": "Invalid request body"})
	}

	preview, err := h.Service.Preview(c.UserContext(), c.Params("id"), form)
	if err != nil {
		return respondError(c, err, nil)
	}
	return c.JSON(preview)
}

// Receipts lists the connected wallet's receipts.
func (h *SessionHandler) Receipts(c *fiber.Ctx) error {
	session, err := h.Service.Get(c.Params("id"))
	if err != nil {
		return respondError(c, err, nil)
	}

	view := h.Presenter.List(c.UserContext(), presentation.ListRequest{
		Creator:   common.HexToAddress(session.Account),
		Connected: session.Connected,
		ChainID:   session.ChainID,
	})
	return c.Status(listStatus(view.State)).JSON(view)
}
