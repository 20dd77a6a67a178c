package wazirx

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"klineTrader/internal/ports"
)

const (
	baseURLProduction = "https://api.wazirx.com/sapi/v1"
	apiKeyHeader      = "X-Api-Key"
)

// Config holds configuration specific to the WazirX client adapter.
type Config struct {
	APIKey     string
	SecretKey  string
	BaseURL    string        // Defaults to the production REST endpoint
	RecvWindow int           // milliseconds
	Timeout    time.Duration // HTTP client timeout
	Logger     ports.Logger
	HTTPClient *http.Client // Optional, mainly for tests
}

// Client implements the ports.ExchangeClient interface against the WazirX REST API.
type Client struct {
	apiKey     string
	secretKey  string
	baseURL    string
	recvWindow int
	httpClient *http.Client
	logger     ports.Logger
	now        func() time.Time
}

// APIError is the error body WazirX returns with non-2xx responses.
type APIError struct {
	HTTPStatus int    `json:"-"`
	Code       int    `json:"code"`
	Message    string `json:"message"`
}

func (e *APIError) Error() string {
	return fmt.Sprintf("wazirx: http %d: code=%d, msg=%s", e.HTTPStatus, e.Code, e.Message)
}

// New creates a new WazirX client adapter.
func New(cfg Config) (*Client, error) {
	if cfg.Logger == nil {
		return nil, fmt.Errorf("logger is required for WazirX client")
	}
	if cfg.APIKey == "" || cfg.SecretKey == "" {
		cfg.Logger.Warn(context.Background(), "APIKey or SecretKey is empty. Client will only work for public endpoints.")
	}

	baseURL := strings.TrimRight(cfg.BaseURL, "/")
	if baseURL == "" {
		baseURL = baseURLProduction
	}
	recvWindow := cfg.RecvWindow
	if recvWindow <= 0 {
		recvWindow = 5000
	}
	httpClient := cfg.HTTPClient
	if httpClient == nil {
		timeout := cfg.Timeout
		if timeout <= 0 {
			timeout = 10 * time.Second
		}
		httpClient = &http.Client{Timeout: timeout}
	}

	cfg.Logger.Info(context.Background(), "WazirX client configured", map[string]interface{}{"baseURL": baseURL})

	return &Client{
		apiKey:     cfg.APIKey,
		secretKey:  cfg.SecretKey,
		baseURL:    baseURL,
		recvWindow: recvWindow,
		httpClient: httpClient,
		logger:     cfg.Logger,
		now:        time.Now,
	}, nil
}

// sign returns the hex HMAC-SHA256 of payload keyed by the API secret.
func (c *Client) sign(payload string) string {
	h := hmac.New(sha256.New, []byte(c.secretKey))
	h.Write([]byte(payload))
	return hex.EncodeToString(h.Sum(nil))
}

// signedParams adds recvWindow, timestamp and signature to params.
// url.Values.Encode sorts keys, so the signed payload is the exact body sent.
func (c *Client) signedParams(params url.Values) string {
	signed := url.Values{}
	for k, v := range params {
		signed[k] = v
	}
	signed.Set("recvWindow", strconv.Itoa(c.recvWindow))
	signed.Set("timestamp", strconv.FormatInt(c.now().UnixMilli(), 10))

	payload := signed.Encode()
	return payload + "&signature=" + c.sign(payload)
}

// doRequest sends a request and decodes a JSON response into out.
func (c *Client) doRequest(ctx context.Context, method, endpoint string, params url.Values, signed bool, out interface{}) error {
	var encoded string
	if signed {
		encoded = c.signedParams(params)
	} else if params != nil {
		encoded = params.Encode()
	}

	fullURL := c.baseURL + endpoint
	var body io.Reader
	if method == http.MethodGet {
		if encoded != "" {
			fullURL += "?" + encoded
		}
	} else {
		body = strings.NewReader(encoded)
	}

	req, err := http.NewRequestWithContext(ctx, method, fullURL, body)
	if err != nil {
		return fmt.Errorf("%w: build request: %v", ports.ErrInvalidRequest, err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	}
	if signed {
		req.Header.Set(apiKeyHeader, c.apiKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		apiErr := &APIError{HTTPStatus: resp.StatusCode}
		if json.Unmarshal(raw, apiErr) != nil || apiErr.Message == "" {
			apiErr.Message = strings.TrimSpace(string(raw))
		}
		return apiErr
	}

	if out == nil {
		return nil
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("%w: %s: %v", ports.ErrMalformedPayload, endpoint, err)
	}
	return nil
}

// handleError maps transport and API errors to the application's sentinel errors.
// fallback is used for 4xx responses the operation does not classify further.
func (c *Client) handleError(ctx context.Context, err error, operation string, fallback error) error {
	if err == nil {
		return nil
	}

	fields := map[string]interface{}{"operation": operation, "originalError": err.Error()}

	var mappedErr error
	var apiErr *APIError
	var netErr net.Error
	switch {
	case errors.As(err, &apiErr):
		fields["httpStatus"] = apiErr.HTTPStatus
		fields["apiErrorCode"] = apiErr.Code
		fields["apiErrorMessage"] = apiErr.Message
		mappedErr = mapAPIError(apiErr, fallback)
	case errors.Is(err, ports.ErrMalformedPayload), errors.Is(err, ports.ErrInvalidRequest):
		mappedErr = nil
	case errors.Is(err, context.Canceled):
		mappedErr = ports.ErrContextCanceled
	case errors.Is(err, context.DeadlineExceeded):
		mappedErr = ports.ErrTimeout
	case errors.As(err, &netErr) && netErr.Timeout():
		mappedErr = ports.ErrTimeout
	case errors.As(err, &netErr):
		mappedErr = ports.ErrConnectionFailed
	default:
		mappedErr = ports.ErrUnknown
	}

	var finalErr error
	if mappedErr == nil {
		finalErr = fmt.Errorf("%s failed: %w", operation, err)
	} else {
		finalErr = fmt.Errorf("%s failed: %w: %w", operation, mappedErr, err)
	}
	if !errors.Is(finalErr, ports.ErrContextCanceled) {
		c.logger.Error(ctx, err, fmt.Sprintf("%s failed", operation), fields)
	}
	return finalErr
}

func mapAPIError(apiErr *APIError, fallback error) error {
	msg := strings.ToLower(apiErr.Message)
	switch {
	case apiErr.HTTPStatus == http.StatusTooManyRequests || apiErr.HTTPStatus == http.StatusTeapot:
		return ports.ErrRateLimited
	case apiErr.HTTPStatus == http.StatusUnauthorized:
		return ports.ErrAuthenticationFailed
	case apiErr.HTTPStatus == http.StatusForbidden:
		return ports.ErrInvalidAPIKeys
	case apiErr.HTTPStatus >= 500:
		return ports.ErrExchangeUnavailable
	case strings.Contains(msg, "insufficient"):
		return ports.ErrInsufficientFunds
	case strings.Contains(msg, "signature"):
		return ports.ErrAuthenticationFailed
	case apiErr.HTTPStatus == http.StatusNotFound:
		if fallback == ports.ErrOrderNotFound || fallback == ports.ErrOrderCancelFailed {
			return ports.ErrOrderNotFound
		}
		return ports.ErrNotFound
	case fallback != nil:
		return fallback
	default:
		return ports.ErrInvalidRequest
	}
}
