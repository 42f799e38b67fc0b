// Package spoonacular provides the client for the public Spoonacular recipe API
package spoonacular

import (
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

const serviceName = "spoonacular"

// Client calls the public recipe information API with a statically
// configured API key
type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
	logger     *zap.Logger
	metrics    *monitoring.MetricsCollector
}

// NewClient creates a new Spoonacular client instance
func NewClient(cfg *config.Config, logger *zap.Logger, metrics *monitoring.MetricsCollector) *Client {
	timeout := cfg.Spoonacular.Timeout
	if timeout == 0 {
		timeout = 30 * time.Second
	}

	return &Client{
		baseURL: cfg.Spoonacular.BaseURL,
		apiKey:  cfg.Spoonacular.APIKey,
		httpClient: &http.Client{
			Timeout: timeout,
		},
		logger:  logger,
		metrics: metrics,
	}
}

// Ingredient is a single entry of a recipe's extended ingredient list
type Ingredient struct {
	ID       int    `json:"id"`
	Original string `json:"original"`
}

// RecipeDetail is the full recipe payload from the information endpoint.
// Instructions is an HTML fragment and must be sanitized before rendering.
type RecipeDetail struct {
	Title               string       `json:"title"`
	Image               string       `json:"image"`
	ExtendedIngredients []Ingredient `json:"extendedIngredients"`
	Instructions        string       `json:"instructions"`
}

// RecipeInformation fetches the full detail payload for a recipe id
func (c *Client) RecipeInformation(ctx context.Context, id int) (*RecipeDetail, error) {
	endpoint := fmt.Sprintf("%s/recipes/%d/information?apiKey=%s", c.baseURL, id, url.QueryEscape(c.apiKey))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	c.logger.Debug("Spoonacular request", zap.Int("recipe_id", id))

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.metrics.RecordUpstream(serviceName, "information", 0, time.Since(start))
		return nil, apperrors.NewTransport(err, "Error fetching recipe details")
	}
	defer resp.Body.Close()

	c.metrics.RecordUpstream(serviceName, "information", resp.StatusCode, time.Since(start))

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, apperrors.NewTransport(err, "Error fetching recipe details")
	}

	if resp.StatusCode >= 400 {
		c.logger.Warn("Spoonacular error response",
			zap.Int("recipe_id", id),
			zap.Int("status", resp.StatusCode),
		)
		return nil, apperrors.FromStatus(resp.StatusCode, "", "Error fetching recipe details")
	}

	var detail RecipeDetail
	if err := json.Unmarshal(body, &detail); err != nil {
		return nil, apperrors.NewTransport(fmt.Errorf("failed to unmarshal response: %w", err), "Error fetching recipe details")
	}

	return &detail, nil
}

// PublicRecipeURL returns the public site URL for a recipe id, used as the
// sourceUrl fallback when a search result carries none
func PublicRecipeURL(id int) string {
	return fmt.Sprintf("https://spoonacular.com/recipes/%d", id)
}
