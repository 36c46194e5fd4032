package webhookauth

import "strings"

// Reason classifies the outcome of a validation attempt.
type Reason string

const (
	ReasonTokenNotConfigured Reason = "TOKEN_NOT_CONFIGURED"
	ReasonQueryParam         Reason = "QUERY_PARAM"
	ReasonBearerToken        Reason = "BEARER_TOKEN"
	ReasonHeaderToken        Reason = "X_WEBHOOK_TOKEN"
	ReasonInvalidToken       Reason = "INVALID_TOKEN"
)

// Credentials carries the three transport locations the provider is known to
// place the shared secret in.
type Credentials struct {
	QueryToken    string // ?token=...
	Authorization string // Authorization header, expected "Bearer <token>"
	HeaderToken   string // X-Webhook-Token header
}

// Result of validating one request against one expected secret.
type Result struct {
	Valid  bool
	Reason Reason
}

// Validate checks the credentials against the expected secret. It fails
// closed when no secret is configured. The query parameter also accepts the
// secret followed by "/<suffix>" because some provider builds append path
// segments to the configured webhook URL.
func Validate(creds Credentials, expectedSecret string) Result {
	expected := strings.TrimSpace(expectedSecret)
	if expected == "" {
		return Result{Valid: false, Reason: ReasonTokenNotConfigured}
	}

	if queryToken := strings.TrimSpace(creds.QueryToken); queryToken != "" {
		if queryToken == expected || strings.HasPrefix(queryToken, expected+"/") {
			return Result{Valid: true, Reason: ReasonQueryParam}
		}
	}

	if auth := strings.TrimSpace(creds.Authorization); auth != "" {
		scheme, token, found := strings.Cut(auth, " ")
		if found && strings.EqualFold(scheme, "bearer") && strings.TrimSpace(token) == expected {
			return Result{Valid: true, Reason: ReasonBearerToken}
		}
	}

	if strings.TrimSpace(creds.HeaderToken) == expected {
		return Result{Valid: true, Reason: ReasonHeaderToken}
	}

	return Result{Valid: false, Reason: ReasonInvalidToken}
}
