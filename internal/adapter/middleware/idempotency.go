package middleware

import (
	"context"
	"encoding/hex"
	"log/slog"
	"net/http"

	"github.com/gofiber/fiber/v2"
	"github.com/zeebo/blake3"

	"github.com/ibrahimkeyboad/proofly/internal/adapter/storage"
)

// IdempotencyStore keeps the first response sent for each Idempotency-Key.
type IdempotencyStore interface {
	Get(ctx context.Context, key string) (*storage.CachedResponse, error)
	Save(ctx context.Context, key string, res storage.CachedResponse) error
}

func Idempotency(store IdempotencyStore) fiber.Handler {
	return func(c *fiber.Ctx) error {
		// 1. Get Key from Header
		key := c.Get("Idempotency-Key")
		if key == "" {
			return c.Next()
		}
		fingerprint := Fingerprint(c.Method(), c.Path(), c.Body())

		// 2. Check if key exists
		cached, err := store.Get(c.UserContext(), key)
		if err != nil {
			slog.Error("❌ Idempotency lookup failed", "error", err, "key", key)
			return c.Status(http.StatusServiceUnavailable).JSON(fiber.Map{"error": "Idempotency store unavailable"})
		}
		if cached != nil {
			if cached.Fingerprint != fingerprint {
				slog.Warn("Idempotency key reused with a different request", "key", key)
				return c.Status(http.StatusUnprocessableEntity).JSON(fiber.Map{
					"error": "Idempotency-Key was already used for a different request",
				})
			}
			slog.Info("🛑 Idempotency Hit! Returning cached response", "key", key)
			c.Set("X-Idempotency-Hit", "true")
			c.Set("Content-Type", "application/json")
			return c.Status(cached.Status).Send(cached.Body)
		}

		// 3. Run the Handler
		if err := c.Next(); err != nil {
			return err
		}

		// 4. Save the Result; rejected requests run again on retry
		resStatus := c.Response().StatusCode()
		if resStatus >= http.StatusBadRequest {
			slog.Info("Idempotency Key not saved for failed request", "key", key, "status", resStatus)
			return nil
		}
		saveErr := store.Save(c.UserContext(), key, storage.CachedResponse{
			Fingerprint: fingerprint,
			Status:      resStatus,
			Body:        append([]byte(nil), c.Response().Body()...),
		})
		if saveErr != nil {
			slog.Error("❌ Failed to save Idempotency Key", "error", saveErr, "key", key)
		} else {
			slog.Info("💾 Idempotency Key Saved", "key", key)
		}

		return nil
	}
}

// Fingerprint identifies a request by method, path and body.
func Fingerprint(method, path string, body []byte) string {
	h := blake3.New()
	h.Write([]byte(method))
	h.Write([]byte{0})
	h.Write([]byte(path))
	h.Write([]byte{0})
	h.Write(body)
	return hex.EncodeToString(h.Sum(nil))
}
