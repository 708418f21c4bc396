// Package remote executes queued actions against an HTTP backend. A Client
// serves one entity collection and plugs into the sync engine's handler
// registry.
package remote

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"budgetsync/internal/config"
	"budgetsync/internal/models"

	"github.com/rs/zerolog"
)

// ErrMissingEntityID marks updates and deletes that cannot be routed.
var ErrMissingEntityID = errors.New("remote: action has no entity id")

// Client maps queue actions onto the backend's REST collection for a single
// entity: create posts to the collection, update and delete address the
// member resource.
type Client struct {
	baseURL    string
	apiKey     string
	entity     string
	httpClient *http.Client
	logger     zerolog.Logger
}

func NewClient(cfg config.RemoteConfig, entity string, logger zerolog.Logger) *Client {
	timeout := cfg.Timeout()
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Client{
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		apiKey:     cfg.APIKey,
		entity:     entity,
		httpClient: &http.Client{Timeout: timeout},
		logger:     logger.With().Str("entity", entity).Logger(),
	}
}

// Execute performs the HTTP call for one action. A non-2xx response is an
// error, so the engine's retry accounting applies.
func (c *Client) Execute(ctx context.Context, action *models.Action) error {
	method, endpoint, err := c.route(action)
	if err != nil {
		return err
	}

	var body io.Reader
	if len(action.Data) > 0 {
		body = bytes.NewReader(action.Data)
	}
	req, err := http.NewRequestWithContext(ctx, method, endpoint, body)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.apiKey != "" {
		req.Header.Set("x-api-key", c.apiKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, endpoint, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		return fmt.Errorf("%s %s: http %d", method, endpoint, resp.StatusCode)
	}

	c.logger.Debug().
		Str("action_id", action.ID).
		Str("method", method).
		Int("status", resp.StatusCode).
		Msg("action delivered")
	return nil
}

func (c *Client) route(action *models.Action) (method, endpoint string, err error) {
	collection := fmt.Sprintf("%s/api/v1/%s", c.baseURL, url.PathEscape(c.entity))
	switch action.Type {
	case models.ActionCreate:
		return http.MethodPost, collection, nil
	case models.ActionUpdate:
		if action.EntityID == "" {
			return "", "", ErrMissingEntityID
		}
		return http.MethodPut, collection + "/" + url.PathEscape(action.EntityID), nil
	case models.ActionDelete:
		if action.EntityID == "" {
			return "", "", ErrMissingEntityID
		}
		return http.MethodDelete, collection + "/" + url.PathEscape(action.EntityID), nil
	default:
		return "", "", fmt.Errorf("remote: unsupported action type %q", action.Type)
	}
}
