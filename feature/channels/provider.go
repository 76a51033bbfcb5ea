package channels

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"cardstock/feature/channels/models"
)

// Order is a normalized inbound order from a channel.
type Order struct {
	ID        string          `json:"id"`
	LineItems []LineItem      `json:"line_items"`
	Raw       json.RawMessage `json:"raw,omitempty"`
}

// LineItem is one sold position within an order.
type LineItem struct {
	ID       string          `json:"id"`
	SKU      string          `json:"sku"`
	Quantity int             `json:"quantity"`
	Raw      json.RawMessage `json:"raw,omitempty"`
}

// SnapshotItem is one listed item in the channel's view of the inventory.
type SnapshotItem struct {
	ExternalListingID string `json:"external_listing_id"`
	SKU               string `json:"sku"`
	Quantity          int    `json:"quantity"`
	Title             string `json:"title,omitempty"`
}

// Provider is the capability set one channel implementation offers. A provider
// is selected once per integration load via the Registry; no call site
// branches on the provider name.
type Provider interface {
	// FetchOrders returns orders created since the given time.
	FetchOrders(ctx context.Context, since time.Time) ([]Order, error)
	// PushQuantity sets the available quantity on an external listing and
	// returns the raw channel response for the audit record.
	PushQuantity(ctx context.Context, externalListingID, externalSKU string, quantity int) (json.RawMessage, error)
	// FetchInventorySnapshot returns the channel's full view of listed items.
	FetchInventorySnapshot(ctx context.Context) ([]SnapshotItem, error)
}

// TokenSource supplies a valid bearer token for an integration. The OAuth
// exchange and refresh handshake is an external collaborator; implementations
// surface ErrAuthExpired when credentials cannot be used.
type TokenSource interface {
	AccessToken(ctx context.Context, integration *models.ChannelIntegration) (string, error)
}

// ProviderFactory builds a Provider bound to one integration.
type ProviderFactory func(integration *models.ChannelIntegration, tokens TokenSource) Provider

// Registry maps provider names to factories.
type Registry struct {
	factories map[string]ProviderFactory
	tokens    TokenSource
}

// NewRegistry creates a registry using the given token source for all
// providers.
func NewRegistry(tokens TokenSource) *Registry {
	return &Registry{factories: make(map[string]ProviderFactory), tokens: tokens}
}

// Register adds a provider factory under a name.
func (r *Registry) Register(name string, factory ProviderFactory) {
	r.factories[name] = factory
}

// For returns a provider bound to the integration.
func (r *Registry) For(integration *models.ChannelIntegration) (Provider, error) {
	factory, ok := r.factories[integration.Provider]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownProvider, integration.Provider)
	}
	return factory(integration, r.tokens), nil
}
