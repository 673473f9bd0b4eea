package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sort"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/toolbridge/odata-mcp/internal/constants"
	"github.com/toolbridge/odata-mcp/internal/models"
)

// Client executes OData requests against a single service root. It is
// safe for concurrent use; all mutable state is set before first use.
type Client struct {
	baseURL     string
	httpClient  *http.Client
	username    string
	password    string
	bearerToken string
	retryConfig *RetryConfig
	logger      *zap.Logger
}

// New creates a client for the given service root URL.
func New(baseURL string, logger *zap.Logger) *Client {
	if !strings.HasSuffix(baseURL, "/") {
		baseURL += "/"
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Client{
		baseURL: baseURL,
		httpClient: &http.Client{
			Timeout: time.Duration(constants.DefaultTimeout) * time.Second,
		},
		retryConfig: DefaultRetryConfig(),
		logger:      logger,
	}
}

// SetBasicAuth configures basic authentication for upstream requests.
func (c *Client) SetBasicAuth(username, password string) {
	c.username = username
	c.password = password
}

// SetBearerToken configures bearer token authentication for upstream requests.
func (c *Client) SetBearerToken(token string) {
	c.bearerToken = token
}

// SetRetryConfig overrides the default retry behavior.
func (c *Client) SetRetryConfig(cfg *RetryConfig) {
	if cfg != nil {
		c.retryConfig = cfg
	}
}

// BaseURL returns the normalized service root.
func (c *Client) BaseURL() string {
	return c.baseURL
}

// encodeQueryParams encodes URL query parameters with %20 for spaces.
// OData servers expect RFC 3986 encoding, not form encoding.
func encodeQueryParams(params url.Values) string {
	return strings.ReplaceAll(params.Encode(), "+", "%20")
}

func (c *Client) buildRequest(ctx context.Context, method, endpoint string, body io.Reader) (*http.Request, error) {
	fullURL := c.baseURL + strings.TrimPrefix(endpoint, "/")

	req, err := http.NewRequestWithContext(ctx, method, fullURL, body)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("User-Agent", constants.DefaultUserAgent)
	req.Header.Set(constants.Accept, constants.ContentTypeJSON)

	if c.bearerToken != "" {
		req.Header.Set(constants.Authorization, "Bearer "+c.bearerToken)
	} else if c.username != "" && c.password != "" {
		req.SetBasicAuth(c.username, c.password)
	}

	return req, nil
}

// doRequest executes a request with exponential backoff retry on
// transient upstream failures. The response body is fully read and
// restored so callers can consume it normally.
func (c *Client) doRequest(req *http.Request) (*http.Response, error) {
	var bodyBytes []byte
	if req.Body != nil && req.ContentLength > 0 {
		var err error
		bodyBytes, err = io.ReadAll(req.Body)
		if err != nil {
			return nil, fmt.Errorf("failed to read request body: %w", err)
		}
	}

	var lastErr error
	var lastResp *http.Response
	var lastBody []byte

	for attempt := 0; attempt <= c.retryConfig.MaxRetries; attempt++ {
		if attempt > 0 {
			backoff := c.retryConfig.CalculateBackoff(attempt - 1)
			c.logger.Debug("retrying upstream request",
				zap.Int("attempt", attempt),
				zap.Duration("backoff", backoff))
			select {
			case <-req.Context().Done():
				return nil, req.Context().Err()
			case <-time.After(backoff):
			}
		}

		if len(bodyBytes) > 0 {
			req.Body = io.NopCloser(bytes.NewReader(bodyBytes))
			req.ContentLength = int64(len(bodyBytes))
		}

		resp, err := c.httpClient.Do(req)
		if err != nil {
			lastErr = fmt.Errorf("HTTP request failed: %w", err)
			if req.Context().Err() != nil {
				return nil, req.Context().Err()
			}
			continue
		}

		respBody, readErr := io.ReadAll(resp.Body)
		resp.Body.Close()
		if readErr != nil {
			lastErr = fmt.Errorf("failed to read response body: %w", readErr)
			continue
		}

		lastResp = resp
		lastBody = respBody

		if c.retryConfig.ShouldRetry(resp.StatusCode, attempt) {
			c.logger.Debug("retryable upstream status", zap.Int("status", resp.StatusCode))
			continue
		}

		resp.Body = io.NopCloser(bytes.NewReader(respBody))
		return resp, nil
	}

	if lastResp != nil {
		lastResp.Body = io.NopCloser(bytes.NewReader(lastBody))
		return lastResp, nil
	}
	return nil, fmt.Errorf("all %d retries failed: %w", c.retryConfig.MaxRetries, lastErr)
}

// ListEntities retrieves entities from an entity set with the given
// query options ($filter, $select, $orderby, $top, $skip, $count...).
func (c *Client) ListEntities(ctx context.Context, entitySet string, options map[string]string) (*models.ODataResponse, error) {
	endpoint := entitySet

	params := url.Values{}
	for key, value := range options {
		if value != "" {
			params.Set(key, value)
		}
	}
	if len(params) > 0 {
		endpoint += "?" + encodeQueryParams(params)
	}

	req, err := c.buildRequest(ctx, constants.GET, endpoint, nil)
	if err != nil {
		return nil, err
	}

	resp, err := c.doRequest(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	return c.parseResponse(resp)
}

// GetEntity retrieves a single entity by key.
func (c *Client) GetEntity(ctx context.Context, entitySet string, key map[string]interface{}, options map[string]string) (*models.ODataResponse, error) {
	endpoint := fmt.Sprintf("%s(%s)", entitySet, buildKeyPredicate(key))

	if len(options) > 0 {
		params := url.Values{}
		for k, v := range options {
			if v != "" {
				params.Set(k, v)
			}
		}
		if len(params) > 0 {
			endpoint += "?" + encodeQueryParams(params)
		}
	}

	req, err := c.buildRequest(ctx, constants.GET, endpoint, nil)
	if err != nil {
		return nil, err
	}

	resp, err := c.doRequest(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	return c.parseResponse(resp)
}

// CreateEntity creates a new entity in the given set.
func (c *Client) CreateEntity(ctx context.Context, entitySet string, data map[string]interface{}) (*models.ODataResponse, error) {
	jsonData, err := json.Marshal(data)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal entity data: %w", err)
	}

	req, err := c.buildRequest(ctx, constants.POST, entitySet, bytes.NewReader(jsonData))
	if err != nil {
		return nil, err
	}
	req.Header.Set(constants.ContentType, constants.ContentTypeJSON)
	req.ContentLength = int64(len(jsonData))

	resp, err := c.doRequest(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	return c.parseResponse(resp)
}

// UpdateEntity updates an existing entity. The method defaults to PATCH;
// PUT and MERGE are accepted for services that require them.
func (c *Client) UpdateEntity(ctx context.Context, entitySet string, key map[string]interface{}, data map[string]interface{}, method string) (*models.ODataResponse, error) {
	endpoint := fmt.Sprintf("%s(%s)", entitySet, buildKeyPredicate(key))

	jsonData, err := json.Marshal(data)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal entity data: %w", err)
	}

	if method == "" {
		method = constants.PATCH
	}

	req, err := c.buildRequest(ctx, method, endpoint, bytes.NewReader(jsonData))
	if err != nil {
		return nil, err
	}
	req.Header.Set(constants.ContentType, constants.ContentTypeJSON)
	req.ContentLength = int64(len(jsonData))

	resp, err := c.doRequest(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	return c.parseResponse(resp)
}

// DeleteEntity deletes an entity by key.
func (c *Client) DeleteEntity(ctx context.Context, entitySet string, key map[string]interface{}) (*models.ODataResponse, error) {
	endpoint := fmt.Sprintf("%s(%s)", entitySet, buildKeyPredicate(key))

	req, err := c.buildRequest(ctx, constants.DELETE, endpoint, nil)
	if err != nil {
		return nil, err
	}

	resp, err := c.doRequest(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	return c.parseResponse(resp)
}

// GetNavigation retrieves the target(s) of a navigation property from a
// source entity identified by key.
func (c *Client) GetNavigation(ctx context.Context, entitySet string, key map[string]interface{}, navProperty string, options map[string]string) (*models.ODataResponse, error) {
	endpoint := fmt.Sprintf("%s(%s)/%s", entitySet, buildKeyPredicate(key), navProperty)

	if len(options) > 0 {
		params := url.Values{}
		for k, v := range options {
			if v != "" {
				params.Set(k, v)
			}
		}
		if len(params) > 0 {
			endpoint += "?" + encodeQueryParams(params)
		}
	}

	req, err := c.buildRequest(ctx, constants.GET, endpoint, nil)
	if err != nil {
		return nil, err
	}

	resp, err := c.doRequest(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	return c.parseResponse(resp)
}

// AddReference links a target entity into a collection-valued navigation
// property via the $ref endpoint.
func (c *Client) AddReference(ctx context.Context, entitySet string, key map[string]interface{}, navProperty, targetURL string) (*models.ODataResponse, error) {
	endpoint := fmt.Sprintf("%s(%s)/%s/$ref", entitySet, buildKeyPredicate(key), navProperty)

	payload := map[string]string{"@odata.id": targetURL}
	jsonData, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal reference payload: %w", err)
	}

	req, err := c.buildRequest(ctx, constants.POST, endpoint, bytes.NewReader(jsonData))
	if err != nil {
		return nil, err
	}
	req.Header.Set(constants.ContentType, constants.ContentTypeJSON)
	req.ContentLength = int64(len(jsonData))

	resp, err := c.doRequest(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	return c.parseResponse(resp)
}

// RemoveReference unlinks a target entity from a collection-valued
// navigation property.
func (c *Client) RemoveReference(ctx context.Context, entitySet string, key map[string]interface{}, navProperty, targetURL string) (*models.ODataResponse, error) {
	endpoint := fmt.Sprintf("%s(%s)/%s/$ref", entitySet, buildKeyPredicate(key), navProperty)
	if targetURL != "" {
		params := url.Values{}
		params.Set("$id", targetURL)
		endpoint += "?" + encodeQueryParams(params)
	}

	req, err := c.buildRequest(ctx, constants.DELETE, endpoint, nil)
	if err != nil {
		return nil, err
	}

	resp, err := c.doRequest(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	return c.parseResponse(resp)
}

// buildKeyPredicate renders an OData key predicate from key-value pairs.
// Composite keys iterate in sorted name order for stable URLs.
func buildKeyPredicate(key map[string]interface{}) string {
	if len(key) == 1 {
		for _, value := range key {
			return formatKeyValue(value)
		}
	}

	names := make([]string, 0, len(key))
	for k := range key {
		names = append(names, k)
	}
	sort.Strings(names)

	parts := make([]string, 0, len(names))
	for _, k := range names {
		parts = append(parts, fmt.Sprintf("%s=%s", k, formatKeyValue(key[k])))
	}
	return strings.Join(parts, ",")
}

// formatKeyValue formats a key value for an OData URL. Quoting happens
// here; URL encoding happens at the full URL level.
func formatKeyValue(value interface{}) string {
	switch v := value.(type) {
	case string:
		return fmt.Sprintf("'%s'", v)
	case int, int32, int64:
		return fmt.Sprintf("%d", v)
	case float32:
		return fmt.Sprintf("%g", v)
	case float64:
		// JSON numbers decode as float64; render integral values without
		// a fractional part so int keys survive the round trip.
		if v == float64(int64(v)) {
			return fmt.Sprintf("%d", int64(v))
		}
		return fmt.Sprintf("%g", v)
	case bool:
		return fmt.Sprintf("%t", v)
	default:
		return fmt.Sprintf("'%v'", v)
	}
}

// parseResponse decodes an OData response body, mapping error statuses
// to Go errors carrying the upstream message.
func (c *Client) parseResponse(resp *http.Response) (*models.ODataResponse, error) {
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}

	if resp.StatusCode >= 400 {
		return nil, parseErrorBody(body, resp.StatusCode)
	}

	// DELETE and reference operations commonly return 204 with no body.
	if len(body) == 0 {
		return &models.ODataResponse{}, nil
	}

	var parsed models.ODataResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		// Single-entity responses are bare objects without a value wrapper.
		var entity map[string]interface{}
		if entityErr := json.Unmarshal(body, &entity); entityErr == nil {
			return &models.ODataResponse{Value: entity}, nil
		}
		return nil, fmt.Errorf("failed to parse response: %w", err)
	}

	if parsed.Value == nil {
		var entity map[string]interface{}
		if err := json.Unmarshal(body, &entity); err == nil {
			delete(entity, "@odata.context")
			parsed.Value = entity
		}
	}

	return &parsed, nil
}

// parseErrorBody extracts the OData error message from an error response.
func parseErrorBody(body []byte, statusCode int) error {
	var wrapper struct {
		Error *models.ODataError `json:"error"`
	}
	if err := json.Unmarshal(body, &wrapper); err == nil && wrapper.Error != nil {
		if wrapper.Error.Code != "" {
			return fmt.Errorf("OData error %d (%s): %s", statusCode, wrapper.Error.Code, wrapper.Error.Message)
		}
		return fmt.Errorf("OData error %d: %s", statusCode, wrapper.Error.Message)
	}

	msg := strings.TrimSpace(string(body))
	if msg == "" {
		msg = http.StatusText(statusCode)
	}
	if len(msg) > 512 {
		msg = msg[:512]
	}
	return fmt.Errorf("OData error %d: %s", statusCode, msg)
}
