package webapp

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"strings"
	"time"

	herrors "github.com/canonica-labs/testrig/internal/errors"
	"github.com/canonica-labs/testrig/pkg/api"
)

// Client is the typed HTTP client for the host application. It holds a
// cookie jar, so one Login call authenticates every later request the
// way a browser session would.
type Client struct {
	endpoint   string
	httpClient *http.Client
}

// NewClient creates a client for the host at the given endpoint.
func NewClient(endpoint string) (*Client, error) {
	if endpoint == "" {
		return nil, herrors.NewConfigInvalid("host.endpoint", "no host endpoint configured")
	}

	jar, err := cookiejar.New(nil)
	if err != nil {
		return nil, fmt.Errorf("webapp: cannot create cookie jar: %w", err)
	}

	return &Client{
		endpoint: strings.TrimSuffix(endpoint, "/"),
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
			Jar:     jar,
			// Login answers with a redirect; the caller wants the
			// redirect status, not the page behind it.
			CheckRedirect: func(req *http.Request, via []*http.Request) error {
				return http.ErrUseLastResponse
			},
		},
	}, nil
}

// Endpoint returns the configured host endpoint.
func (c *Client) Endpoint() string {
	return c.endpoint
}

// Login posts the credential form. On success the session cookie lands
// in the jar; on rejection the error is ErrLoginFailed.
func (c *Client) Login(ctx context.Context, username, password string) error {
	form := url.Values{}
	form.Set(api.FormUsername, username)
	form.Set(api.FormPassword, password)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		c.endpoint+api.EndpointLogin, strings.NewReader(form.Encode()))
	if err != nil {
		return fmt.Errorf("webapp: failed to create request: %w", err)
	}
	req.Header.Set(api.HeaderContentType, api.ContentTypeForm)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("webapp: host unreachable: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusUnauthorized {
		return herrors.NewLoginFailed(username)
	}
	if resp.StatusCode != http.StatusFound {
		return c.parseErrorResponse(resp)
	}
	return nil
}

// Logout revokes the session behind the jar's cookie.
func (c *Client) Logout(ctx context.Context) error {
	resp, err := c.doRequest(ctx, http.MethodGet, api.EndpointLogout)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusFound {
		return c.parseErrorResponse(resp)
	}
	return nil
}

// Flags retrieves the effective feature-flag snapshot.
func (c *Client) Flags(ctx context.Context) (map[string]bool, error) {
	resp, err := c.doRequest(ctx, http.MethodGet, api.EndpointFlags)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, c.parseErrorResponse(resp)
	}

	var result struct {
		Flags map[string]bool `json:"flags"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("webapp: failed to decode response: %w", err)
	}
	return result.Flags, nil
}

// Me retrieves the identity behind the current session.
func (c *Client) Me(ctx context.Context) (*Identity, error) {
	resp, err := c.doRequest(ctx, http.MethodGet, api.EndpointMe)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, c.parseErrorResponse(resp)
	}

	var result Identity
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("webapp: failed to decode response: %w", err)
	}
	return &result, nil
}

// CheckHealth verifies host connectivity.
func (c *Client) CheckHealth(ctx context.Context) (bool, error) {
	resp, err := c.doRequest(ctx, http.MethodGet, api.EndpointHealth)
	if err != nil {
		return false, err
	}
	defer resp.Body.Close()

	return resp.StatusCode == http.StatusOK, nil
}

// GetHealth retrieves the per-component readiness payload.
func (c *Client) GetHealth(ctx context.Context) (*HealthResult, error) {
	resp, err := c.doRequest(ctx, http.MethodGet, api.EndpointHealth)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	var result HealthResult
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("webapp: failed to decode response: %w", err)
	}
	return &result, nil
}

// doRequest performs an HTTP request against the host.
func (c *Client) doRequest(ctx context.Context, method, path string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, method, c.endpoint+path, nil)
	if err != nil {
		return nil, fmt.Errorf("webapp: failed to create request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("webapp: host unreachable: %w", err)
	}
	return resp, nil
}

// parseErrorResponse parses an error response from the host.
func (c *Client) parseErrorResponse(resp *http.Response) error {
	body, _ := io.ReadAll(resp.Body)

	var errResp struct {
		Error      string `json:"error"`
		Reason     string `json:"reason"`
		Suggestion string `json:"suggestion"`
	}
	if err := json.Unmarshal(body, &errResp); err != nil || errResp.Error == "" {
		return fmt.Errorf("host error: %d - %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	if errResp.Reason != "" {
		return fmt.Errorf("%s: %s", errResp.Error, errResp.Reason)
	}
	return fmt.Errorf("%s", errResp.Error)
}
