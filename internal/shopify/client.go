// Package shopify talks to the commerce platform's Admin GraphQL API: the
// variant pricing reads and mutations the trigger executors need, plus the
// metafield that mirrors the per-variant ledger.
package shopify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/outletx/merch-engine/pkg/logger"
)

// DefaultAPIVersion is the Admin API version the engine is written against.
const DefaultAPIVersion = "2024-10"

// VariantPricing holds a variant's current price state. CompareAtPrice is
// nil when the variant has none.
type VariantPricing struct {
	Price          float64
	CompareAtPrice *float64
}

// CatalogClient is the request/response RPC surface the executors use.
type CatalogClient interface {
	VariantPricing(ctx context.Context, variantID string) (VariantPricing, error)
	UpdateVariantPrice(ctx context.Context, productID, variantID string, price float64, compareAtPrice *float64) error
	AddToCollection(ctx context.Context, collectionID, productID string) error
	RemoveFromCollection(ctx context.Context, collectionID, productID string) error
	AddTags(ctx context.Context, ownerID string, tags []string) error
	RemoveTags(ctx context.Context, ownerID string, tags []string) error
	VariantMetafield(ctx context.Context, variantID, namespace, key string) (string, error)
	SetVariantMetafield(ctx context.Context, productID, variantID, namespace, key, value string) error
}

// Factory builds a catalog client scoped to one shop.
type Factory interface {
	ClientFor(shop string) CatalogClient
}

// TokenFactory is a Factory using a fixed admin access token per process.
type TokenFactory struct {
	AccessToken string
	APIVersion  string
	HTTPClient  *http.Client
}

// ClientFor returns a client for the given shop domain.
func (f TokenFactory) ClientFor(shop string) CatalogClient {
	version := f.APIVersion
	if version == "" {
		version = DefaultAPIVersion
	}
	httpClient := f.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 30 * time.Second}
	}
	return &Client{
		endpoint:    fmt.Sprintf("https://%s/admin/api/%s/graphql.json", shop, version),
		accessToken: f.AccessToken,
		httpClient:  httpClient,
	}
}

// Client is the GraphQL-over-HTTP implementation of CatalogClient.
type Client struct {
	endpoint    string
	accessToken string
	httpClient  *http.Client
}

// NewClient creates a client for a fully resolved GraphQL endpoint.
func NewClient(endpoint, accessToken string, httpClient *http.Client) *Client {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 30 * time.Second}
	}
	return &Client{
		endpoint:    endpoint,
		accessToken: accessToken,
		httpClient:  httpClient,
	}
}

type graphqlRequest struct {
	Query     string                 `json:"query"`
	Variables map[string]interface{} `json:"variables,omitempty"`
}

type graphqlError struct {
	Message string `json:"message"`
}

type graphqlResponse struct {
	Data   json.RawMessage `json:"data"`
	Errors []graphqlError  `json:"errors,omitempty"`
}

// execute posts one GraphQL document and decodes the data payload into dest.
func (c *Client) execute(ctx context.Context, query string, variables map[string]interface{}, dest interface{}) error {
	body, err := json.Marshal(graphqlRequest{Query: query, Variables: variables})
	if err != nil {
		return fmt.Errorf("failed to marshal graphql request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to build graphql request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Shopify-Access-Token", c.accessToken)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("graphql request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("graphql request returned status %d", resp.StatusCode)
	}

	var envelope graphqlResponse
	if err := json.NewDecoder(resp.Body).Decode(&envelope); err != nil {
		return fmt.Errorf("failed to decode graphql response: %w", err)
	}
	if len(envelope.Errors) > 0 {
		logger.Warn("GraphQL request returned errors",
			logger.String("endpoint", c.endpoint),
			logger.String("message", envelope.Errors[0].Message),
		)
		return fmt.Errorf("graphql error: %s", envelope.Errors[0].Message)
	}

	if dest == nil {
		return nil
	}
	if err := json.Unmarshal(envelope.Data, dest); err != nil {
		return fmt.Errorf("failed to decode graphql data: %w", err)
	}
	return nil
}
