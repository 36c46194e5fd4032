package error

import (
	"fmt"
	"net/http"
)

// ProviderError wraps a failure talking to the messaging provider's API.
// UpstreamStatus is the provider's HTTP status, or 0 for transport-level
// failures (timeout, connection refused, non-JSON body).
type ProviderError struct {
	Message        string
	UpstreamStatus int
	Timeout        bool
}

func (err ProviderError) Error() string {
	if err.Timeout {
		return fmt.Sprintf("API Timeout: %s", err.Message)
	}
	if err.UpstreamStatus > 0 {
		return fmt.Sprintf("API Error (%d): %s", err.UpstreamStatus, err.Message)
	}
	return err.Message
}

func (err ProviderError) ErrCode() string {
	if err.Timeout {
		return "PROVIDER_TIMEOUT"
	}
	return "PROVIDER_ERROR"
}

func (err ProviderError) StatusCode() int {
	return http.StatusBadGateway
}
