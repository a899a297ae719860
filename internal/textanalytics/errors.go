package textanalytics

import (
	"encoding/json"
	"fmt"
	"net/http"
)

// APIError is a non-2xx response from the service.
type APIError struct {
	StatusCode int
	Code       string
	Message    string
}

func (e *APIError) Error() string {
	if e.Code == "" {
		return fmt.Sprintf("unexpected status: %d", e.StatusCode)
	}

	return fmt.Sprintf("unexpected status: %d (code = %s, message = %s)", e.StatusCode, e.Code, e.Message)
}

func (e *APIError) retryable() bool {
	return e.StatusCode == http.StatusTooManyRequests ||
		e.StatusCode == http.StatusRequestTimeout ||
		e.StatusCode >= http.StatusInternalServerError
}

func newAPIError(statusCode int, body []byte) *APIError {
	apiErr := &APIError{StatusCode: statusCode}

	var envelope struct {
		Error wireError `json:"error"`
	}
	if err := json.Unmarshal(body, &envelope); err == nil {
		code, message := envelope.Error.resolve()
		apiErr.Code = code
		apiErr.Message = message
	}

	return apiErr
}
