package client

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	session "github.com/goliatone/go-auth-session"
	goerrors "github.com/goliatone/go-errors"
)

// APIError is a non 2xx answer of the auth API. It is the source of the
// classified session error returned to callers.
type APIError struct {
	Operation  string `json:"operation"`
	StatusCode int    `json:"status_code"`
	Detail     string `json:"detail,omitempty"`
	Body       string `json:"-"`
}

// Error implements the error interface
func (e *APIError) Error() string {
	if e.Detail != "" {
		return fmt.Sprintf("%s: %d %s", e.Operation, e.StatusCode, e.Detail)
	}
	return fmt.Sprintf("%s: %d %s", e.Operation, e.StatusCode, http.StatusText(e.StatusCode))
}

// IsNotFound returns true for 404 answers
func (e *APIError) IsNotFound() bool {
	return e.StatusCode == http.StatusNotFound
}

// classify maps an HTTP failure onto the session error taxonomy:
// 401 is Unauthorized, 403 is Forbidden, other 4xx answers are business rule
// rejections and everything else is transient. Identity resolution only knows
// two kinds: 401 and 403 are Unauthorized, any other status is transient.
func classify(rc call, status int, body []byte) error {
	apiErr := &APIError{
		Operation:  rc.operation,
		StatusCode: status,
		Detail:     extractDetail(body),
		Body:       string(body),
	}

	metadata := map[string]any{
		"operation": rc.operation,
		"status":    status,
	}
	if apiErr.Detail != "" {
		metadata[session.MetadataDetail] = apiErr.Detail
	}

	var err *goerrors.Error
	switch {
	case status == http.StatusUnauthorized:
		err = session.NewUnauthorizedError(rc.operation+" unauthorized", apiErr)
	case status == http.StatusForbidden && rc.resolving:
		err = session.NewUnauthorizedError(rc.operation+" rejected the token", apiErr)
	case rc.resolving:
		err = session.NewTransientError(rc.operation+" failed", apiErr)
	case status == http.StatusForbidden:
		err = session.NewForbiddenError(rc.operation+" forbidden", apiErr)
	case status == http.StatusTooManyRequests, status == http.StatusRequestTimeout:
		err = session.NewTransientError(rc.operation+" failed", apiErr)
	case status >= 400 && status < 500:
		err = session.NewConflictError(rc.operation+" rejected", apiErr, status)
	default:
		err = session.NewTransientError(rc.operation+" failed", apiErr)
	}

	return err.WithMetadata(metadata)
}

// extractDetail reads the human readable message of an error body. It
// understands {"detail": "..."}, {"detail": [{"msg": "..."}]},
// {"message": "..."} and {"error": "..."}.
func extractDetail(body []byte) string {
	var payload map[string]json.RawMessage
	if err := json.Unmarshal(body, &payload); err != nil {
		return ""
	}

	for _, key := range []string{"detail", "message", "error"} {
		raw, ok := payload[key]
		if !ok {
			continue
		}
		if msg := rawMessage(raw); msg != "" {
			return msg
		}
	}
	return ""
}

func rawMessage(raw json.RawMessage) string {
	var text string
	if err := json.Unmarshal(raw, &text); err == nil {
		return strings.TrimSpace(text)
	}

	var items []struct {
		Msg     string `json:"msg"`
		Message string `json:"message"`
	}
	if err := json.Unmarshal(raw, &items); err == nil {
		parts := make([]string, 0, len(items))
		for _, item := range items {
			switch {
			case item.Msg != "":
				parts = append(parts, item.Msg)
			case item.Message != "":
				parts = append(parts, item.Message)
			}
		}
		return strings.Join(parts, "; ")
	}

	var nested struct {
		Message string `json:"message"`
	}
	if err := json.Unmarshal(raw, &nested); err == nil {
		return strings.TrimSpace(nested.Message)
	}
	return ""
}
