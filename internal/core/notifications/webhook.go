package notifications

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/ibrahimkeyboad/proofly/internal/core/domain"
)

const SignatureHeader = "X-Proofly-Signature"

// SendWebhook posts the JSON payload to url, signed with secret
func SendWebhook(ctx context.Context, url string, payload interface{}, secret string) error {
	// 1. Convert Payload to JSON
	jsonData, err := json.Marshal(payload)
	if err != nil {
		return err
	}

	// 2. Prepare Request
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewBuffer(jsonData))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", "Proofly-Webhook/1.0")
	req.Header.Set(SignatureHeader, Sign(jsonData, secret))

	// 3. Send with Timeout
	client := &http.Client{Timeout: 5 * time.Second}
	resp, err := client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	// 4. Check Response
	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return nil
	}

	return fmt.Errorf("webhook receiver returned error: %d", resp.StatusCode)
}

// Sign is the hex HMAC-SHA256 of body.
func Sign(body []byte, secret string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	return hex.EncodeToString(mac.Sum(nil))
}

// WebhookPublisher delivers receipt events to a single URL.
type WebhookPublisher struct {
	URL    string
	Secret string
}

func (p *WebhookPublisher) PublishReceiptCreated(ctx context.Context, event domain.ReceiptCreated) error {
	payload := map[string]interface{}{
		"event": "receipt.created",
		"data":  event,
	}
	return SendWebhook(ctx, p.URL, payload, p.Secret)
}
