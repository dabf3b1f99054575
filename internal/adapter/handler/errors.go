package handler

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/gofiber/fiber/v2"

	"github.com/ibrahimkeyboad/proofly/internal/core/domain"
	"github.com/ibrahimkeyboad/proofly/internal/core/workflow"
)

// respondError maps the domain error taxonomy onto HTTP. When the failure
// came out of a workflow transition the resulting session is echoed back so
// clients can render its state and message.
func respondError(c *fiber.Ctx, err error, session *workflow.Session) error {
	body := fiber.Map{"error": err.Error()}
	if session != nil && session.ID != "" {
		body["session"] = session
	}

	var ve *domain.ValidationError
	var nm *domain.NetworkMismatchError
	var nf *domain.NotFoundError
	var te *domain.TransportError

	switch {
	case errors.As(err, &ve):
		if ve.Field != "" {
			body["field"] = ve.Field
		}
		return c.Status(http.StatusBadRequest).JSON(body)
	case errors.As(err, &nm):
		body["remediation"] = "switch_network"
		body["chain_id"] = nm.Want
		return c.Status(http.StatusConflict).JSON(body)
	case errors.Is(err, domain.ErrSessionNotFound), errors.As(err, &nf):
		return c.Status(http.StatusNotFound).JSON(body)
	case errors.Is(err, domain.ErrNoWallet):
		return c.Status(http.StatusServiceUnavailable).JSON(body)
	case errors.As(err, &te):
		slog.Error("❌ Ledger call failed", "error", err, "op", te.Op)
		return c.Status(http.StatusBadGateway).JSON(body)
	}

	slog.Error("❌ Unexpected handler error", "error", err)
	return c.Status(http.StatusInternalServerError).JSON(fiber.Map{"error": "Internal server error"})
}
