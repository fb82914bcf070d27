package http

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	nethttp "net/http"
	"strings"
	"time"

	"github.com/dukex/blockflow/pkg/protocol"
)

// HTTPError is a response outside the 2xx range.
type HTTPError struct {
	StatusCode int
	Message    string
}

func (e *HTTPError) Error() string {
	return fmt.Sprintf("HTTP %d: %s", e.StatusCode, e.Message)
}

// Config is the rendered configuration of one request.
type Config struct {
	URL      string
	Method   string
	Headers  map[string]string
	Body     any
	Timeout  time.Duration
	Attempts int
	Delay    time.Duration
}

// ParseConfig reads a rendered block configuration.
func ParseConfig(config map[string]any) (Config, error) {
	c := Config{
		Method:   nethttp.MethodGet,
		Headers:  make(map[string]string),
		Attempts: 1,
	}

	url, ok := config["url"].(string)
	if !ok || url == "" {
		return c, errors.New("missing required field 'url'")
	}

	c.URL = url

	if method, ok := config["method"].(string); ok && method != "" {
		c.Method = strings.ToUpper(method)
	}

	if headers, ok := config["headers"].(map[string]any); ok {
		for k, v := range headers {
			c.Headers[k] = fmt.Sprint(v)
		}
	}

	c.Body = config["body"]

	if timeout, ok := config["timeout"].(float64); ok && timeout > 0 {
		c.Timeout = time.Duration(timeout * float64(time.Second))
	}

	if retries, ok := config["retries"].(map[string]any); ok {
		if attempts, ok := retries["attempts"].(float64); ok && attempts >= 1 {
			c.Attempts = int(attempts)
		}

		if delay, ok := retries["delay"].(float64); ok && delay > 0 {
			c.Delay = time.Duration(delay) * time.Millisecond
		}
	}

	return c, nil
}

// Requester performs HTTP requests for the http block.
type Requester struct {
	client *nethttp.Client
}

// Call performs the request, retrying network errors and 5xx responses.
func (r *Requester) Call(ctx context.Context, req protocol.CallRequest) (protocol.CallResult, error) {
	config, err := ParseConfig(req.Config)
	if err != nil {
		return protocol.CallResult{}, err
	}

	if config.Timeout > 0 {
		var cancel context.CancelFunc

		ctx, cancel = context.WithTimeout(ctx, config.Timeout)
		defer cancel()
	}

	var lastErr error

	for attempt := 1; attempt <= config.Attempts; attempt++ {
		if attempt > 1 {
			select {
			case <-ctx.Done():
				return protocol.CallResult{}, ctx.Err()
			case <-time.After(config.Delay):
			}
		}

		output, err := r.do(ctx, config)
		if err == nil {
			return protocol.CallResult{Success: true, Output: output}, nil
		}

		lastErr = err

		httpErr := &HTTPError{}
		if errors.As(err, &httpErr) && httpErr.StatusCode < 500 {
			break
		}
	}

	return protocol.CallResult{Success: false, Error: lastErr.Error()}, nil
}

func (r *Requester) do(ctx context.Context, config Config) (map[string]any, error) {
	var body io.Reader

	switch b := config.Body.(type) {
	case nil:
	case string:
		if b != "" {
			body = strings.NewReader(b)
		}
	default:
		encoded, err := json.Marshal(b)
		if err != nil {
			return nil, fmt.Errorf("failed to encode body: %w", err)
		}

		body = bytes.NewReader(encoded)
	}

	req, err := nethttp.NewRequestWithContext(ctx, config.Method, config.URL, body)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	for key, value := range config.Headers {
		req.Header.Set(key, value)
	}

	if body != nil && req.Header.Get("Content-Type") == "" {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := r.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}

	defer func() {
		_ = resp.Body.Close()
	}()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, &HTTPError{StatusCode: resp.StatusCode, Message: string(respBody)}
	}

	headers := make(map[string]any, len(resp.Header))
	for key := range resp.Header {
		headers[key] = resp.Header.Get(key)
	}

	var parsed any = string(respBody)

	var jsonBody any
	if err := json.Unmarshal(respBody, &jsonBody); err == nil {
		parsed = jsonBody
	}

	return map[string]any{
		"status":  resp.StatusCode,
		"headers": headers,
		"body":    parsed,
	}, nil
}
