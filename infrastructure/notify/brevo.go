package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/zapdigest/ingest/core/config"
	"github.com/zapdigest/ingest/domains/alert"
	pkgError "github.com/zapdigest/ingest/pkg/error"
)

const brevoBaseURL = "https://api.brevo.com/v3"

// brevoClient is shared plumbing for the Brevo transactional endpoints.
type brevoClient struct {
	apiKey     string
	baseURL    string
	httpClient *http.Client
}

func newBrevoClient(apiKey, baseURL string) *brevoClient {
	if baseURL == "" {
		baseURL = brevoBaseURL
	}
	return &brevoClient{
		apiKey:     apiKey,
		baseURL:    baseURL,
		httpClient: &http.Client{Timeout: 15 * time.Second},
	}
}

func (c *brevoClient) post(ctx context.Context, endpoint string, payload any) error {
	if c.apiKey == "" {
		return pkgError.InternalServerError("BREVO_API_KEY not configured")
	}
	encoded, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+endpoint, bytes.NewReader(encoded))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("api-key", c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return &pkgError.ProviderError{Message: err.Error()}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return &pkgError.ProviderError{
			Message:        fmt.Sprintf("brevo %s: %s", endpoint, string(body)),
			UpstreamStatus: resp.StatusCode,
		}
	}
	return nil
}

// EmailNotifier delivers keyword alerts over Brevo transactional email.
type EmailNotifier struct {
	client     *brevoClient
	senderName string
	senderFrom string
}

func NewEmailNotifier(cfg config.NotifyConfig) *EmailNotifier {
	return NewEmailNotifierWithBaseURL(cfg, "")
}

// NewEmailNotifierWithBaseURL exists for tests that point at a local server.
func NewEmailNotifierWithBaseURL(cfg config.NotifyConfig, baseURL string) *EmailNotifier {
	return &EmailNotifier{
		client:     newBrevoClient(cfg.BrevoAPIKey, baseURL),
		senderName: cfg.EmailSender,
		senderFrom: cfg.EmailFrom,
	}
}

func (n *EmailNotifier) Name() string { return "email" }

func (n *EmailNotifier) Send(ctx context.Context, destination string, a alert.Alert) error {
	if destination == "" {
		return pkgError.ValidationError("alert email destination is empty")
	}
	payload := map[string]any{
		"sender": map[string]string{
			"name":  n.senderName,
			"email": n.senderFrom,
		},
		"to":          []map[string]string{{"email": destination}},
		"subject":     fmt.Sprintf("🚨 Alerta: %s", a.Keyword),
		"htmlContent": emailBody(a),
	}
	return n.client.post(ctx, "/smtp/email", payload)
}

func emailBody(a alert.Alert) string {
	return fmt.Sprintf(
		`<h2>Palavra-chave detectada: %s</h2>`+
			`<p><strong>Grupo:</strong> %s</p>`+
			`<p><strong>Remetente:</strong> %s</p>`+
			`<p><strong>Mensagem:</strong> %s</p>`,
		a.Keyword, a.GroupName, a.SenderName, a.Content,
	)
}

// SMSNotifier delivers keyword alerts over Brevo transactional SMS.
type SMSNotifier struct {
	client *brevoClient
	sender string
}

func NewSMSNotifier(cfg config.NotifyConfig) *SMSNotifier {
	return NewSMSNotifierWithBaseURL(cfg, "")
}

func NewSMSNotifierWithBaseURL(cfg config.NotifyConfig, baseURL string) *SMSNotifier {
	return &SMSNotifier{
		client: newBrevoClient(cfg.BrevoAPIKey, baseURL),
		sender: cfg.SMSSender,
	}
}

func (n *SMSNotifier) Name() string { return "sms" }

func (n *SMSNotifier) Send(ctx context.Context, destination string, a alert.Alert) error {
	recipient := NormalizePhone(destination)
	if recipient == "" {
		return pkgError.ValidationError("alert SMS destination is empty")
	}
	content := fmt.Sprintf("Alerta: \"%s\" em %s por %s", a.Keyword, a.GroupName, a.SenderName)
	payload := map[string]any{
		"type":           "transactional",
		"unicodeEnabled": true,
		"sender":         n.sender,
		"recipient":      recipient,
		"content":        content,
	}
	return n.client.post(ctx, "/transactionalSMS/sms", payload)
}

// NormalizePhone reduces a free-form phone number to E.164-ish form. Bare
// national numbers with at least ten digits get the Brazilian country code.
func NormalizePhone(raw string) string {
	digits := make([]byte, 0, len(raw))
	for i := 0; i < len(raw); i++ {
		if raw[i] >= '0' && raw[i] <= '9' {
			digits = append(digits, raw[i])
		}
	}
	if len(digits) == 0 {
		return ""
	}
	number := string(digits)
	if len(number) >= 10 && number[:2] != "55" {
		number = "55" + number
	}
	return "+" + number
}
