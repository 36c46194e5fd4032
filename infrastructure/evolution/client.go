package evolution

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/zapdigest/ingest/core/config"
	pkgError "github.com/zapdigest/ingest/pkg/error"
)

// Client talks to an Evolution API deployment. All requests carry the global
// apikey header; per-call deadlines come from the configured timeouts, with a
// longer one for group listings because the provider walks every chat.
type Client struct {
	baseURL       string
	apiKey        string
	httpClient    *http.Client
	timeout       time.Duration
	groupsTimeout time.Duration
}

func NewClient(cfg config.ProviderConfig) *Client {
	return &Client{
		baseURL:       strings.TrimRight(cfg.BaseURL, "/"),
		apiKey:        cfg.APIKey,
		httpClient:    &http.Client{},
		timeout:       time.Duration(cfg.Timeout) * time.Second,
		groupsTimeout: time.Duration(cfg.GroupsTimeout) * time.Second,
	}
}

func (c *Client) Configured() bool {
	return c.baseURL != "" && c.apiKey != ""
}

// callAPI performs one provider request and decodes the JSON body. Upstream
// failures come back as typed errors so handlers can map them to a status
// without inspecting message text.
func (c *Client) callAPI(ctx context.Context, method, endpoint string, body any, timeout time.Duration) (json.RawMessage, error) {
	if !c.Configured() {
		return nil, pkgError.InternalServerError("EVOLUTION_API_URL or EVOLUTION_API_KEY not configured")
	}

	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	var reqBody io.Reader
	if body != nil {
		encoded, err := json.Marshal(body)
		if err != nil {
			return nil, err
		}
		reqBody = bytes.NewReader(encoded)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+endpoint, reqBody)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("apikey", c.apiKey)

	logrus.Debugf("[EVOLUTION] %s %s", method, endpoint)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return nil, &pkgError.ProviderError{
				Message: "Evolution API took too long to respond. The instance may be busy.",
				Timeout: true,
			}
		}
		return nil, &pkgError.ProviderError{Message: err.Error()}
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &pkgError.ProviderError{Message: err.Error()}
	}

	// A reverse proxy in front of a dead upstream answers with an HTML page.
	if strings.Contains(resp.Header.Get("Content-Type"), "text/html") {
		return nil, &pkgError.ProviderError{
			Message:        fmt.Sprintf("Server returned HTML instead of JSON (status %d). Check EVOLUTION_API_URL.", resp.StatusCode),
			UpstreamStatus: resp.StatusCode,
		}
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		msg := extractErrorMessage(raw)
		if resp.StatusCode == http.StatusNotFound {
			return nil, pkgError.NotFoundError("Resource not found: " + msg)
		}
		return nil, &pkgError.ProviderError{Message: msg, UpstreamStatus: resp.StatusCode}
	}

	if len(bytes.TrimSpace(raw)) == 0 {
		return json.RawMessage(`{}`), nil
	}
	if !json.Valid(raw) {
		// Some endpoints answer 200 with a bare text body.
		wrapped, _ := json.Marshal(map[string]string{"message": string(raw)})
		return wrapped, nil
	}
	return raw, nil
}

// extractErrorMessage digs the human-readable message out of the provider's
// error envelope, which nests it at varying depths.
func extractErrorMessage(raw []byte) string {
	var envelope struct {
		Response *struct {
			Message json.RawMessage `json:"message"`
		} `json:"response"`
		Message json.RawMessage `json:"message"`
		Error   json.RawMessage `json:"error"`
	}
	if err := json.Unmarshal(raw, &envelope); err == nil {
		for _, candidate := range []json.RawMessage{
			func() json.RawMessage {
				if envelope.Response != nil {
					return envelope.Response.Message
				}
				return nil
			}(),
			envelope.Message,
			envelope.Error,
		} {
			if len(candidate) == 0 {
				continue
			}
			var s string
			if json.Unmarshal(candidate, &s) == nil && s != "" {
				return s
			}
			var list []string
			if json.Unmarshal(candidate, &list) == nil && len(list) > 0 {
				return strings.Join(list, "; ")
			}
			return string(candidate)
		}
	}
	if len(bytes.TrimSpace(raw)) > 0 {
		return string(raw)
	}
	return "unknown provider error"
}

// FetchInstances lists every instance registered at the provider.
func (c *Client) FetchInstances(ctx context.Context) ([]InstanceEntry, error) {
	raw, err := c.callAPI(ctx, http.MethodGet, "/instance/fetchInstances", nil, c.timeout)
	if err != nil {
		return nil, err
	}
	var entries []InstanceEntry
	if err := json.Unmarshal(raw, &entries); err == nil {
		return entries, nil
	}
	var envelope struct {
		Instances []InstanceEntry `json:"instances"`
		Data      []InstanceEntry `json:"data"`
	}
	if err := json.Unmarshal(raw, &envelope); err != nil {
		return nil, &pkgError.ProviderError{Message: "unexpected fetchInstances payload"}
	}
	if len(envelope.Instances) > 0 {
		return envelope.Instances, nil
	}
	return envelope.Data, nil
}

// ResolveInstanceName maps a stored instance name to the provider's exact
// casing. Providers are case-sensitive on path segments while operators type
// names freely, so the suspected name is matched case-insensitively.
func (c *Client) ResolveInstanceName(ctx context.Context, suspected string) (string, error) {
	entries, err := c.FetchInstances(ctx)
	if err != nil {
		return "", err
	}
	for _, e := range entries {
		name := e.ResolvedName()
		if strings.EqualFold(name, suspected) {
			return name, nil
		}
	}
	return "", pkgError.NotFoundError("instance not registered at provider: " + suspected)
}

// OwnerJID returns the WhatsApp JID the given instance is logged in as, or
// empty when the provider does not report one.
func (c *Client) OwnerJID(ctx context.Context, instanceName string) (string, error) {
	entries, err := c.FetchInstances(ctx)
	if err != nil {
		return "", err
	}
	for _, e := range entries {
		if strings.EqualFold(e.ResolvedName(), instanceName) {
			return e.OwnerJID(), nil
		}
	}
	return "", nil
}

// CreateInstance registers a new provider instance with the webhook wired in
// from the start, so no event window exists between creation and delivery.
func (c *Client) CreateInstance(ctx context.Context, name string, hook WebhookSettings) (json.RawMessage, error) {
	payload := map[string]any{
		"instanceName": name,
		"qrcode":       true,
		"integration":  "WHATSAPP-BAILEYS",
		"webhook": map[string]any{
			"url":      hook.URL,
			"byEvents": hook.WebhookByEvents,
			"base64":   true,
			"events":   hook.Events,
		},
	}
	return c.callAPI(ctx, http.MethodPost, "/instance/create", payload, c.timeout)
}

func (c *Client) DeleteInstance(ctx context.Context, name string) (json.RawMessage, error) {
	return c.callAPI(ctx, http.MethodDelete, "/instance/delete/"+name, nil, c.timeout)
}

func (c *Client) LogoutInstance(ctx context.Context, name string) (json.RawMessage, error) {
	return c.callAPI(ctx, http.MethodDelete, "/instance/logout/"+name, nil, c.timeout)
}

// ConnectInstance asks the provider for a fresh pairing QR.
func (c *Client) ConnectInstance(ctx context.Context, name string) (*ConnectResult, error) {
	raw, err := c.callAPI(ctx, http.MethodGet, "/instance/connect/"+name, nil, c.timeout)
	if err != nil {
		return nil, err
	}
	var result ConnectResult
	if err := json.Unmarshal(raw, &result); err != nil {
		return nil, &pkgError.ProviderError{Message: "unexpected connect payload"}
	}
	return &result, nil
}

// ConnectionState returns the provider-side session state string.
func (c *Client) ConnectionState(ctx context.Context, name string) (string, error) {
	raw, err := c.callAPI(ctx, http.MethodGet, "/instance/connectionState/"+name, nil, c.timeout)
	if err != nil {
		return "", err
	}
	var envelope struct {
		Instance *struct {
			State string `json:"state"`
		} `json:"instance"`
		State string `json:"state"`
	}
	if err := json.Unmarshal(raw, &envelope); err != nil {
		return "", &pkgError.ProviderError{Message: "unexpected connectionState payload"}
	}
	if envelope.Instance != nil && envelope.Instance.State != "" {
		return envelope.Instance.State, nil
	}
	return envelope.State, nil
}

func (c *Client) SetWebhook(ctx context.Context, name string, settings WebhookSettings) (json.RawMessage, error) {
	return c.callAPI(ctx, http.MethodPost, "/webhook/set/"+name, map[string]any{"webhook": settings}, c.timeout)
}

// FindWebhook reads back the instance webhook registration.
func (c *Client) FindWebhook(ctx context.Context, name string) (*WebhookSettings, error) {
	raw, err := c.callAPI(ctx, http.MethodGet, "/webhook/find/"+name, nil, c.timeout)
	if err != nil {
		return nil, err
	}
	var envelope struct {
		WebhookSettings
		Webhook *WebhookSettings `json:"webhook"`
	}
	if err := json.Unmarshal(raw, &envelope); err != nil {
		return nil, &pkgError.ProviderError{Message: "unexpected webhook payload"}
	}
	if envelope.Webhook != nil {
		return envelope.Webhook, nil
	}
	settings := envelope.WebhookSettings
	return &settings, nil
}

// FetchGroups lists every group the instance participates in, including
// participants so admin rank can be derived. Uses the extended timeout.
func (c *Client) FetchGroups(ctx context.Context, name string) ([]GroupEntry, error) {
	endpoint := "/group/fetchAllGroups/" + name + "?getParticipants=true"
	raw, err := c.callAPI(ctx, http.MethodGet, endpoint, nil, c.groupsTimeout)
	if err != nil {
		return nil, err
	}
	var groups []GroupEntry
	if err := json.Unmarshal(raw, &groups); err == nil {
		return groups, nil
	}
	var envelope struct {
		Groups []GroupEntry `json:"groups"`
		Data   []GroupEntry `json:"data"`
	}
	if err := json.Unmarshal(raw, &envelope); err != nil {
		return nil, &pkgError.ProviderError{Message: "unexpected fetchAllGroups payload"}
	}
	if len(envelope.Groups) > 0 {
		return envelope.Groups, nil
	}
	return envelope.Data, nil
}

// SendText delivers a plain text message through the instance.
func (c *Client) SendText(ctx context.Context, name, number, text string) (json.RawMessage, error) {
	payload := map[string]any{
		"number": number,
		"text":   text,
	}
	return c.callAPI(ctx, http.MethodPost, "/message/sendText/"+name, payload, c.timeout)
}
