package conduit

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// Client calls review server methods.
type Client interface {
	Call(ctx context.Context, method string, params any, result any) error
}

type Config struct {
	URI     string
	Token   string
	Timeout time.Duration
}

// HTTPClient speaks Conduit over HTTP.
type HTTPClient struct {
	uri   string
	token string

	client *http.Client
}

func NewHTTPClient(config Config) *HTTPClient {
	timeout := config.Timeout
	if timeout == 0 {
		timeout = 60 * time.Second
	}

	return &HTTPClient{
		uri:   strings.TrimRight(config.URI, "/"),
		token: config.Token,

		client: &http.Client{Timeout: timeout},
	}
}

type response struct {
	Result    json.RawMessage `json:"result"`
	ErrorCode *string         `json:"error_code"`
	ErrorInfo *string         `json:"error_info"`
}

// Call posts params to the method endpoint and decodes the result into
// result, which may be nil.
func (c *HTTPClient) Call(ctx context.Context, method string, params any, result any) error {
	payload, err := c.encodeParams(params)
	if err != nil {
		return err
	}

	form := url.Values{}
	form.Set("params", string(payload))
	form.Set("output", "json")
	form.Set("__conduit__", "1")

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.uri+"/api/"+method, strings.NewReader(form.Encode()))
	if err != nil {
		return fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %s: %w", ErrTransient, method, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("%w: %s: %w", ErrTransient, method, err)
	}

	if resp.StatusCode >= http.StatusInternalServerError || resp.StatusCode == http.StatusTooManyRequests {
		return fmt.Errorf("%w: %s: status %d", ErrTransient, method, resp.StatusCode)
	}
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("%w: %s: status %d", ErrUnexpectedResponse, method, resp.StatusCode)
	}

	var decoded response
	if decErr := json.Unmarshal(body, &decoded); decErr != nil {
		return fmt.Errorf("%w: %s: %w", ErrUnexpectedResponse, method, decErr)
	}

	if decoded.ErrorCode != nil && *decoded.ErrorCode != "" {
		info := ""
		if decoded.ErrorInfo != nil {
			info = *decoded.ErrorInfo
		}
		return &Error{Method: method, Code: *decoded.ErrorCode, Info: info}
	}

	if result == nil {
		return nil
	}

	if decErr := json.Unmarshal(decoded.Result, result); decErr != nil {
		return fmt.Errorf("%w: %s: %w", ErrUnexpectedResponse, method, decErr)
	}

	return nil
}

func (c *HTTPClient) encodeParams(params any) ([]byte, error) {
	fields := map[string]any{}

	if params != nil {
		raw, err := json.Marshal(params)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal params: %w", err)
		}
		if unErr := json.Unmarshal(raw, &fields); unErr != nil {
			return nil, errors.New("params must encode to a JSON object")
		}
	}

	if c.token != "" {
		fields["__conduit__"] = map[string]string{"token": c.token}
	}

	payload, err := json.Marshal(fields)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal params: %w", err)
	}

	return payload, nil
}

var _ Client = (*HTTPClient)(nil)
