package reminder

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"time"
)

type Notification struct {
	Title  string    `json:"title"`
	Body   string    `json:"body"`
	SentAt time.Time `json:"sent_at"`
	// ReportStamp is the last report time the reminder refers to.
	ReportStamp string `json:"report_stamp"`
}

type Notifier interface {
	Notify(ctx context.Context, n Notification) error
}

// Authorizer is implemented by notifiers that need a one-time permission
// grant before they can deliver.
type Authorizer interface {
	Authorize(ctx context.Context) error
}

// LogNotifier writes reminders to the process log.
type LogNotifier struct{}

func (LogNotifier) Notify(_ context.Context, n Notification) error {
	log.Printf("reminder title=%q body=%q report=%s", n.Title, n.Body, n.ReportStamp)
	return nil
}

// WebhookNotifier posts reminders as JSON to a URL. When a secret is set the
// body is signed with HMAC-SHA256 in X-Reminder-Signature.
type WebhookNotifier struct {
	url    string
	secret string
	http   *http.Client
}

func NewWebhookNotifier(url, secret string) *WebhookNotifier {
	return &WebhookNotifier{
		url:    url,
		secret: secret,
		http:   &http.Client{Timeout: 15 * time.Second},
	}
}

func Sign(secret string, payload []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	_, _ = mac.Write(payload)
	return hex.EncodeToString(mac.Sum(nil))
}

func (w *WebhookNotifier) Notify(ctx context.Context, n Notification) error {
	blob, err := json.Marshal(n)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, w.url, bytes.NewReader(blob))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	if w.secret != "" {
		req.Header.Set("X-Reminder-Signature", Sign(w.secret, blob))
	}
	resp, err := w.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 400 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return fmt.Errorf("reminder webhook failed status=%d body=%s", resp.StatusCode, string(body))
	}
	return nil
}

// Authorize checks that the webhook endpoint is reachable with an empty
// signed probe. A 4xx other than 405 means the receiver refused us.
func (w *WebhookNotifier) Authorize(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodHead, w.url, nil)
	if err != nil {
		return err
	}
	if w.secret != "" {
		req.Header.Set("X-Reminder-Signature", Sign(w.secret, nil))
	}
	resp, err := w.http.Do(req)
	if err != nil {
		return err
	}
	resp.Body.Close()
	if resp.StatusCode >= 400 && resp.StatusCode != http.StatusMethodNotAllowed {
		return fmt.Errorf("reminder webhook refused status=%d", resp.StatusCode)
	}
	return nil
}
