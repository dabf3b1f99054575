package middleware

import (
	"context"
	"log/slog"
	"net/http"
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/ibrahimkeyboad/proofly/internal/core/security"
)

// KeyVerifier reports whether a hashed API key is known.
type KeyVerifier interface {
	VerifyKeyHash(ctx context.Context, keyHash string) (bool, error)
}

func Protected(verifier KeyVerifier) fiber.Handler {
	return func(c *fiber.Ctx) error {
		// 1. Get Token from Header
		authHeader := c.Get("Authorization") // "Bearer pf_live_..."
		if authHeader == "" {
			return c.Status(http.StatusUnauthorized).JSON(fiber.Map{"error": "Missing API Key"})
		}

		parts := strings.Split(authHeader, " ")
		if len(parts) != 2 || parts[0] != "Bearer" {
			return c.Status(http.StatusUnauthorized).JSON(fiber.Map{"error": "Invalid Header Format"})
		}
		apiKey := parts[1]

		// 2. Hash the key (We never compare plain text!)
		hashedKey := security.HashKey(apiKey)

		// 3. Check the key store
		ok, err := verifier.VerifyKeyHash(c.UserContext(), hashedKey)
		if err != nil {
			slog.Error("❌ API key lookup failed", "error", err)
			return c.Status(http.StatusServiceUnavailable).JSON(fiber.Map{"error": "Key store unavailable"})
		}
		if !ok {
			return c.Status(http.StatusUnauthorized).JSON(fiber.Map{"error": "Invalid API Key"})
		}

		// 4. Keep the key prefix around for request logs
		c.Locals("api_key_prefix", apiKey[:min(len(apiKey), len(security.KeyPrefix)+4)])

		return c.Next()
	}
}
