// Package notify delivers post-transfer notifications.
//
// Delivery is a webhook POST to a configured endpoint (an email gateway
// or any downstream consumer). The engine treats every notifier as
// best-effort: a failure here is logged by the caller and never affects
// the committed transfer.
package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/hamropay/ledger-engine/bank"
)

const defaultTimeout = 5 * time.Second

// Webhook posts notification payloads to a single endpoint.
type Webhook struct {
	url    string
	client *http.Client
	log    *zap.Logger
}

type payload struct {
	Recipient string `json:"recipient"`
	Subject   string `json:"subject"`
	Body      string `json:"body"`
}

// NewWebhook builds a webhook notifier. The timeout keeps a slow
// receiver from pinning notification goroutines.
func NewWebhook(url string, log *zap.Logger) *Webhook {
	if log == nil {
		log = zap.NewNop()
	}
	return &Webhook{
		url:    url,
		client: &http.Client{Timeout: defaultTimeout},
		log:    log,
	}
}

var _ bank.Notifier = (*Webhook)(nil)

// Notify posts one notification. Non-2xx responses are errors.
func (w *Webhook) Notify(ctx context.Context, recipient, subject, body string) error {
	data, err := json.Marshal(payload{Recipient: recipient, Subject: subject, Body: body})
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, w.url, bytes.NewBuffer(data))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := w.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("notification endpoint returned %d", resp.StatusCode)
	}

	w.log.Debug("notification delivered",
		zap.String("recipient", recipient), zap.String("subject", subject))
	return nil
}
