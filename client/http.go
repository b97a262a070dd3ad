package client

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/url"
	"strings"

	session "github.com/goliatone/go-auth-session"
)

const (
	headerAuthorization = "Authorization"
	headerContentType   = "Content-Type"
	headerAccept        = "Accept"
	headerUserAgent     = "User-Agent"
	contentTypeJSON     = "application/json"
)

// call describes one API request
type call struct {
	operation string
	method    string
	path      string
	token     string
	query     url.Values
	body      any
	// resolving calls report 403 as an invalid token instead of a role problem
	resolving bool
}

// doRequest performs the HTTP request and returns the raw response body of a
// 2xx answer. Every failure is returned as a classified session error.
func (c *Client) doRequest(ctx context.Context, rc call) ([]byte, error) {
	reqURL, err := url.JoinPath(c.baseURL, rc.path)
	if err != nil {
		return nil, session.NewTransientError("failed to build URL", err)
	}
	if len(rc.query) > 0 {
		reqURL += "?" + rc.query.Encode()
	}

	var bodyReader io.Reader
	if rc.body != nil {
		bodyBytes, err := json.Marshal(rc.body)
		if err != nil {
			return nil, session.NewTransientError("failed to marshal request body", err)
		}
		bodyReader = bytes.NewReader(bodyBytes)
	}

	req, err := http.NewRequestWithContext(ctx, rc.method, reqURL, bodyReader)
	if err != nil {
		return nil, session.NewTransientError("failed to create request", err)
	}

	req.Header.Set(headerAccept, contentTypeJSON)
	req.Header.Set(headerUserAgent, c.userAgent)
	if rc.body != nil {
		req.Header.Set(headerContentType, contentTypeJSON)
	}
	if rc.token != "" {
		req.Header.Set(headerAuthorization, "Bearer "+rc.token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.logger.Debug("%s %s failed: %v", rc.method, rc.path, err)
		return nil, session.NewTransientError("request failed", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, session.NewTransientError("failed to read response body", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		c.logger.Debug("%s %s answered %d", rc.method, rc.path, resp.StatusCode)
		return nil, classify(rc, resp.StatusCode, respBody)
	}

	return respBody, nil
}

func decodeJSON(operation string, body []byte, out any) error {
	if len(bytes.TrimSpace(body)) == 0 {
		return session.NewTransientError(operation+": empty response", nil)
	}
	if err := json.Unmarshal(body, out); err != nil {
		return session.NewTransientError(operation+": malformed response", err)
	}
	return nil
}

func isJSONArray(body []byte) bool {
	return strings.HasPrefix(strings.TrimSpace(string(body)), "[")
}
