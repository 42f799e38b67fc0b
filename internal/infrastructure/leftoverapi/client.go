// Package leftoverapi provides the API client for the Leftover Chef backend.
// It is the single gateway for authenticated calls: it attaches the bearer
// token, issues exactly one attempt per operation, and maps failures into the
// apperrors taxonomy.
package leftoverapi

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/enchantedleftovers/web/internal/infrastructure/config"
	"github.com/enchantedleftovers/web/internal/infrastructure/monitoring"
	"github.com/enchantedleftovers/web/pkg/apperrors"
	"go.uber.org/zap"
)

const serviceName = "leftoverapi"

// Client handles communication with the backend API
type Client struct {
	baseURL    string
	httpClient *http.Client
	logger     *zap.Logger
	metrics    *monitoring.MetricsCollector
}

// NewClient creates a new backend API client instance
func NewClient(cfg *config.Config, logger *zap.Logger, metrics *monitoring.MetricsCollector) *Client {
	timeout := cfg.Backend.Timeout
	if timeout == 0 {
		timeout = 30 * time.Second
	}

	return &Client{
		baseURL: cfg.Backend.BaseURL,
		httpClient: &http.Client{
			Timeout: timeout,
		},
		logger:  logger,
		metrics: metrics,
	}
}

// Credentials is the login request payload
type Credentials struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// Registration is the register request payload
type Registration struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Password string `json:"password"`
	Role     string `json:"role"`
}

// AuthResponse is the payload returned by login and register
type AuthResponse struct {
	Token string `json:"token"`
}

// SearchRecipe is a transient recipe summary from the search passthrough
type SearchRecipe struct {
	ID        int    `json:"id"`
	Title     string `json:"title"`
	Image     string `json:"image"`
	SourceURL string `json:"sourceUrl,omitempty"`
}

// SavedRecipe is a backend-persisted recipe record
type SavedRecipe struct {
	ID            string `json:"_id"`
	Title         string `json:"title"`
	Image         string `json:"image,omitempty"`
	SourceURL     string `json:"sourceUrl,omitempty"`
	SpoonacularID int    `json:"spoonacularId,omitempty"`
}

// SaveRecipeRequest is the payload posted to the save endpoint
type SaveRecipeRequest struct {
	Title         string `json:"title"`
	Image         string `json:"image"`
	SourceURL     string `json:"sourceUrl"`
	SpoonacularID int    `json:"spoonacularId"`
}

type searchResponse struct {
	Recipes []SearchRecipe `json:"recipes"`
}

// errorResponse is the error body shape the backend uses
type errorResponse struct {
	Message string `json:"message"`
}

// Login authenticates a user and returns the bearer token
func (c *Client) Login(ctx context.Context, email, password string) (string, error) {
	var resp AuthResponse
	err := c.do(ctx, http.MethodPost, "/api/v1/auth/login", Credentials{Email: email, Password: password}, "", &resp, "login", "Login failed")
	if err != nil {
		return "", err
	}
	return resp.Token, nil
}

// Register creates a new account and returns the bearer token
func (c *Client) Register(ctx context.Context, reg Registration) (string, error) {
	var resp AuthResponse
	err := c.do(ctx, http.MethodPost, "/api/v1/auth/register", reg, "", &resp, "register", "Registration failed")
	if err != nil {
		return "", err
	}
	return resp.Token, nil
}

// Search runs an ingredient search through the backend passthrough
func (c *Client) Search(ctx context.Context, token, ingredients string) ([]SearchRecipe, error) {
	path := "/api/v1/recipes/search?ingredients=" + url.QueryEscape(ingredients)

	var resp searchResponse
	err := c.do(ctx, http.MethodGet, path, nil, token, &resp, "search", "Error searching recipes")
	if err != nil {
		return nil, err
	}
	return resp.Recipes, nil
}

// SavedRecipes fetches the caller's saved recipe list
func (c *Client) SavedRecipes(ctx context.Context, token string) ([]SavedRecipe, error) {
	var resp []SavedRecipe
	err := c.do(ctx, http.MethodGet, "/api/v1/recipes/saved", nil, token, &resp, "saved", "Error fetching saved recipes")
	if err != nil {
		return nil, err
	}
	return resp, nil
}

// SaveRecipe persists a recipe to the caller's saved list
func (c *Client) SaveRecipe(ctx context.Context, token string, req SaveRecipeRequest) error {
	return c.do(ctx, http.MethodPost, "/api/v1/recipes/save", req, token, nil, "save", "Error saving recipe")
}

// DeleteSavedRecipe removes a saved recipe by its backend id.
// The backend treats a missing id as success, so the call is idempotent.
func (c *Client) DeleteSavedRecipe(ctx context.Context, token, id string) error {
	return c.do(ctx, http.MethodDelete, "/api/v1/recipes/delete/"+url.PathEscape(id), nil, token, nil, "delete", "Error deleting recipe")
}

// VerifyConnection checks if the backend is reachable
func (c *Client) VerifyConnection(ctx context.Context) bool {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/api/v1/recipes/search", nil)
	if err != nil {
		return false
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.logger.Debug("Backend connection verification failed", zap.Error(err))
		return false
	}
	defer resp.Body.Close()

	return resp.StatusCode < 500
}

// do issues a single request and decodes the response into out when non-nil.
// No retries: a failed call surfaces immediately with its classified error.
func (c *Client) do(ctx context.Context, method, path string, body interface{}, token string, out interface{}, operation, fallback string) error {
	var reader io.Reader
	if body != nil {
		jsonBody, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to marshal request: %w", err)
		}
		reader = bytes.NewReader(jsonBody)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	c.logger.Debug("Backend API request",
		zap.String("method", method),
		zap.String("url", req.URL.String()),
	)

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.metrics.RecordUpstream(serviceName, operation, 0, time.Since(start))
		return apperrors.NewTransport(err, fallback)
	}
	defer resp.Body.Close()

	c.metrics.RecordUpstream(serviceName, operation, resp.StatusCode, time.Since(start))

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return apperrors.NewTransport(err, fallback)
	}

	if resp.StatusCode >= 400 {
		var errResp errorResponse
		_ = json.Unmarshal(respBody, &errResp)

		c.logger.Warn("Backend API error response",
			zap.String("operation", operation),
			zap.Int("status", resp.StatusCode),
			zap.String("message", errResp.Message),
		)
		return apperrors.FromStatus(resp.StatusCode, errResp.Message, fallback)
	}

	if out != nil {
		if err := json.Unmarshal(respBody, out); err != nil {
			return apperrors.NewTransport(fmt.Errorf("failed to unmarshal response: %w", err), fallback)
		}
	}

	return nil
}
