package service

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/clientcredentials"

	"pizza42-api/internal/domain"
	"pizza42-api/pkg/logger"
)

// ManagementConfig points the client at the identity platform management API
type ManagementConfig struct {
	// BaseURL is the tenant URL with a trailing slash, e.g. https://tenant.example.com/
	BaseURL      string
	ClientID     string
	ClientSecret string
	Audience     string
	Timeout      time.Duration
}

// ManagementClient reads and writes app_metadata.orders on user records. It
// authenticates with a client credentials grant; tokens are cached and renewed
// by the oauth2 transport.
type ManagementClient struct {
	baseURL    string
	httpClient *http.Client
	logger     *logger.Logger
}

type managementUser struct {
	AppMetadata struct {
		Orders []domain.Order `json:"orders"`
	} `json:"app_metadata"`
}

type managementPatch struct {
	AppMetadata map[string]interface{} `json:"app_metadata"`
}

// NewManagementClient creates a management API client
func NewManagementClient(cfg ManagementConfig, log *logger.Logger) *ManagementClient {
	if cfg.Timeout == 0 {
		cfg.Timeout = 10 * time.Second
	}
	base := cfg.BaseURL
	if !strings.HasSuffix(base, "/") {
		base += "/"
	}

	cc := &clientcredentials.Config{
		ClientID:       cfg.ClientID,
		ClientSecret:   cfg.ClientSecret,
		TokenURL:       base + "oauth/token",
		EndpointParams: url.Values{"audience": {cfg.Audience}},
		AuthStyle:      oauth2.AuthStyleInParams,
	}

	// The token fetch uses the same bounded client as API calls.
	ctx := context.WithValue(context.Background(), oauth2.HTTPClient, &http.Client{Timeout: cfg.Timeout})
	httpClient := cc.Client(ctx)
	httpClient.Timeout = cfg.Timeout

	return &ManagementClient{
		baseURL:    base,
		httpClient: httpClient,
		logger:     log,
	}
}

// GetUserOrders returns the orders stored on the user record, oldest first
func (c *ManagementClient) GetUserOrders(ctx context.Context, userID string) ([]domain.Order, error) {
	var user managementUser
	if err := c.do(ctx, http.MethodGet, userID, nil, &user); err != nil {
		return nil, err
	}

	c.logger.WithFields(map[string]interface{}{
		"user_id": userID,
		"orders":  len(user.AppMetadata.Orders),
	}).Debug("Fetched profile orders")

	return user.AppMetadata.Orders, nil
}

// SetUserOrders replaces app_metadata.orders. Other metadata keys are left alone
// because the management API merges app_metadata on PATCH.
func (c *ManagementClient) SetUserOrders(ctx context.Context, userID string, orders []domain.Order) error {
	body := managementPatch{AppMetadata: map[string]interface{}{"orders": orders}}
	return c.do(ctx, http.MethodPatch, userID, body, nil)
}

func (c *ManagementClient) do(ctx context.Context, method, userID string, in, out interface{}) error {
	var reader io.Reader
	if in != nil {
		jsonBody, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("failed to marshal request body: %w", err)
		}
		reader = bytes.NewReader(jsonBody)
	}

	endpoint := c.baseURL + "api/v2/users/" + url.PathEscape(userID)
	req, err := http.NewRequestWithContext(ctx, method, endpoint, reader)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to call management API: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return fmt.Errorf("failed to read response body: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("management API returned status %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	if out == nil {
		return nil
	}
	if err := json.Unmarshal(body, out); err != nil {
		c.logger.WithFields(map[string]interface{}{
			"status_code": resp.StatusCode,
			"method":      method,
		}).Error("Failed to parse management API response")
		return fmt.Errorf("failed to parse management API response: %w", err)
	}
	return nil
}
