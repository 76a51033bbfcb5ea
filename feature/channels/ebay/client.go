// Package ebay implements the channels.Provider capability set against the
// eBay Sell APIs (Fulfillment for orders, Inventory for quantities).
package ebay

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"cardstock/feature/channels"
	"cardstock/feature/channels/models"
)

const (
	sandboxBaseURL    = "https://api.sandbox.ebay.com"
	productionBaseURL = "https://api.ebay.com"

	ordersPageSize = 50
)

// Client talks to the eBay REST APIs for one integration.
type Client struct {
	integration *models.ChannelIntegration
	tokens      channels.TokenSource
	baseURL     string
	http        *http.Client
}

// NewFactory returns a channels.ProviderFactory for the given environment.
func NewFactory(environment string) channels.ProviderFactory {
	baseURL := sandboxBaseURL
	if environment == "production" {
		baseURL = productionBaseURL
	}
	transport := &http.Transport{
		Proxy: http.ProxyFromEnvironment,
		DialContext: (&net.Dialer{
			Timeout:   30 * time.Second,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		ForceAttemptHTTP2:     true,
		MaxIdleConns:          100,
		IdleConnTimeout:       90 * time.Second,
		TLSHandshakeTimeout:   10 * time.Second,
		ResponseHeaderTimeout: 30 * time.Second,
	}
	httpClient := &http.Client{Transport: transport, Timeout: 60 * time.Second}

	return func(integration *models.ChannelIntegration, tokens channels.TokenSource) channels.Provider {
		return &Client{
			integration: integration,
			tokens:      tokens,
			baseURL:     baseURL,
			http:        httpClient,
		}
	}
}

// request performs one authenticated call. Rate limiting and other channel
// failures surface as sentinel errors; backoff is the job runner's concern,
// not the client's.
func (c *Client) request(ctx context.Context, method, endpoint string, query url.Values, body any) (json.RawMessage, error) {
	token, err := c.tokens.AccessToken(ctx, c.integration)
	if err != nil {
		return nil, err
	}

	u := c.baseURL + endpoint
	if len(query) > 0 {
		u += "?" + query.Encode()
	}

	var reqBody io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("failed to encode request body: %w", err)
		}
		reqBody = bytes.NewReader(raw)
	}

	req, err := http.NewRequestWithContext(ctx, method, u, reqBody)
	if err != nil {
		return nil, fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", channels.ErrChannelFailure, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		return nil, fmt.Errorf("%w: reading response: %v", channels.ErrChannelFailure, err)
	}

	switch {
	case resp.StatusCode == http.StatusTooManyRequests:
		retryAfter := resp.Header.Get("Retry-After")
		return nil, fmt.Errorf("%w: retry after %s", channels.ErrRateLimited, retryAfter)
	case resp.StatusCode == http.StatusUnauthorized, resp.StatusCode == http.StatusForbidden:
		return nil, fmt.Errorf("%w: status %d", channels.ErrAuthExpired, resp.StatusCode)
	case resp.StatusCode < 200 || resp.StatusCode > 299:
		return nil, fmt.Errorf("%w: %s %s returned %d: %s", channels.ErrChannelFailure, method, endpoint, resp.StatusCode, truncate(raw, 512))
	}

	return raw, nil
}

type ordersResponse struct {
	Orders []struct {
		OrderID   string `json:"orderId"`
		LineItems []struct {
			LineItemID string `json:"lineItemId"`
			SKU        string `json:"sku"`
			Quantity   int    `json:"quantity"`
		} `json:"lineItems"`
	} `json:"orders"`
	Next string `json:"next"`
}

// FetchOrders pages through the Fulfillment API for orders created since the
// given time.
func (c *Client) FetchOrders(ctx context.Context, since time.Time) ([]channels.Order, error) {
	var out []channels.Order
	offset := 0
	for {
		query := url.Values{}
		query.Set("filter", fmt.Sprintf("creationdate:[%s..]", since.UTC().Format("2006-01-02T15:04:05.000Z")))
		query.Set("limit", strconv.Itoa(ordersPageSize))
		query.Set("offset", strconv.Itoa(offset))

		raw, err := c.request(ctx, http.MethodGet, "/sell/fulfillment/v1/order", query, nil)
		if err != nil {
			return nil, err
		}
		var page ordersResponse
		if err := json.Unmarshal(raw, &page); err != nil {
			return nil, fmt.Errorf("%w: decoding orders: %v", channels.ErrChannelFailure, err)
		}

		for _, o := range page.Orders {
			order := channels.Order{ID: o.OrderID}
			for _, li := range o.LineItems {
				quantity := li.Quantity
				if quantity <= 0 {
					quantity = 1
				}
				order.LineItems = append(order.LineItems, channels.LineItem{
					ID:       li.LineItemID,
					SKU:      li.SKU,
					Quantity: quantity,
				})
			}
			out = append(out, order)
		}

		if len(page.Orders) < ordersPageSize || page.Next == "" {
			return out, nil
		}
		offset += ordersPageSize
	}
}

// PushQuantity sets the available quantity on an inventory item. eBay keys
// inventory items by SKU; the listing id is informational here.
func (c *Client) PushQuantity(ctx context.Context, externalListingID, externalSKU string, quantity int) (json.RawMessage, error) {
	payload := map[string]any{
		"availability": map[string]any{
			"shipToLocationAvailability": map[string]any{
				"quantity": quantity,
			},
		},
	}
	endpoint := "/sell/inventory/v1/inventory_item/" + url.PathEscape(externalSKU)
	return c.request(ctx, http.MethodPut, endpoint, nil, payload)
}

type inventoryResponse struct {
	InventoryItems []struct {
		SKU          string `json:"sku"`
		ListingID    string `json:"listingId"`
		Availability struct {
			ShipToLocationAvailability struct {
				Quantity int `json:"quantity"`
			} `json:"shipToLocationAvailability"`
		} `json:"availability"`
		Product struct {
			Title string `json:"title"`
		} `json:"product"`
	} `json:"inventoryItems"`
	Next string `json:"next"`
}

// FetchInventorySnapshot returns the channel's view of all listed items.
func (c *Client) FetchInventorySnapshot(ctx context.Context) ([]channels.SnapshotItem, error) {
	var out []channels.SnapshotItem
	offset := 0
	for {
		query := url.Values{}
		query.Set("limit", strconv.Itoa(ordersPageSize))
		query.Set("offset", strconv.Itoa(offset))

		raw, err := c.request(ctx, http.MethodGet, "/sell/inventory/v1/inventory_item", query, nil)
		if err != nil {
			return nil, err
		}
		var page inventoryResponse
		if err := json.Unmarshal(raw, &page); err != nil {
			return nil, fmt.Errorf("%w: decoding inventory: %v", channels.ErrChannelFailure, err)
		}

		for _, item := range page.InventoryItems {
			out = append(out, channels.SnapshotItem{
				ExternalListingID: item.ListingID,
				SKU:               item.SKU,
				Quantity:          item.Availability.ShipToLocationAvailability.Quantity,
				Title:             item.Product.Title,
			})
		}

		if len(page.InventoryItems) < ordersPageSize || page.Next == "" {
			return out, nil
		}
		offset += ordersPageSize
	}
}

func truncate(raw []byte, max int) string {
	if len(raw) > max {
		return string(raw[:max]) + "..."
	}
	return string(raw)
}
