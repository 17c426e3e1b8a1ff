package shopify

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
)

// DefaultAPIVersion is the Admin API version used when none is configured.
const DefaultAPIVersion = "2024-01"

// pageSize is the maximum page size the Admin REST API allows.
const pageSize = 250

// APIError is a non-2xx response from the Admin API.
type APIError struct {
	Status int
	Body   string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("shopify API error: status %d, body: %s", e.Status, e.Body)
}

// Client talks to the Shopify Admin REST API. It is tenant-agnostic: the shop
// domain and access token are passed per call.
type Client struct {
	apiVersion string
	scheme     string
	httpClient *http.Client
}

// NewClient creates an Admin API client for the given API version
// (DefaultAPIVersion when empty).
func NewClient(apiVersion string) *Client {
	if apiVersion == "" {
		apiVersion = DefaultAPIVersion
	}
	return &Client{
		apiVersion: apiVersion,
		scheme:     "https",
		httpClient: &http.Client{Timeout: 30 * time.Second},
	}
}

// ListProducts fetches the shop's full product catalog, following Link-header
// pagination at 250 products per page.
func (c *Client) ListProducts(ctx context.Context, shop, accessToken string) ([]Product, error) {
	var all []Product
	pageInfo := ""
	for {
		path := fmt.Sprintf("/admin/api/%s/products.json?limit=%d", c.apiVersion, pageSize)
		if pageInfo != "" {
			path += "&page_info=" + url.QueryEscape(pageInfo)
		}
		var out struct {
			Products []Product `json:"products"`
		}
		header, err := c.do(ctx, shop, accessToken, http.MethodGet, path, nil, &out)
		if err != nil {
			return nil, err
		}
		all = append(all, out.Products...)
		pageInfo = nextPageInfo(header.Get("Link"))
		if pageInfo == "" {
			return all, nil
		}
	}
}

// GetProduct fetches a single product with its variants.
func (c *Client) GetProduct(ctx context.Context, shop, accessToken, productID string) (*Product, error) {
	path := fmt.Sprintf("/admin/api/%s/products/%s.json", c.apiVersion, url.PathEscape(productID))
	var out struct {
		Product Product `json:"product"`
	}
	if _, err := c.do(ctx, shop, accessToken, http.MethodGet, path, nil, &out); err != nil {
		return nil, err
	}
	return &out.Product, nil
}

// UpdateVariantPrice sets the variant's price. The price is a decimal string
// with two fraction digits, as the Admin API expects.
func (c *Client) UpdateVariantPrice(ctx context.Context, shop, accessToken string, variantID int64, price string) error {
	path := fmt.Sprintf("/admin/api/%s/variants/%d.json", c.apiVersion, variantID)
	body := map[string]interface{}{
		"variant": map[string]interface{}{
			"id":    variantID,
			"price": price,
		},
	}
	_, err := c.do(ctx, shop, accessToken, http.MethodPut, path, body, nil)
	return err
}

// ExchangeCode trades an OAuth authorization code for an offline access token.
func (c *Client) ExchangeCode(ctx context.Context, shop, apiKey, apiSecret, code string) (accessToken, scope string, err error) {
	payload := map[string]string{
		"client_id":     apiKey,
		"client_secret": apiSecret,
		"code":          code,
	}
	var out struct {
		AccessToken string `json:"access_token"`
		Scope       string `json:"scope"`
	}
	if _, err := c.do(ctx, shop, "", http.MethodPost, "/admin/oauth/access_token", payload, &out); err != nil {
		return "", "", err
	}
	return out.AccessToken, out.Scope, nil
}

func (c *Client) do(ctx context.Context, shop, accessToken, method, path string, body, out interface{}) (http.Header, error) {
	var reqBody io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal request: %w", err)
		}
		reqBody = bytes.NewReader(data)
	}

	u := fmt.Sprintf("%s://%s%s", c.scheme, normalizeShopDomain(shop), path)
	req, err := http.NewRequestWithContext(ctx, method, u, reqBody)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if accessToken != "" {
		req.Header.Set("X-Shopify-Access-Token", accessToken)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to execute request: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &APIError{Status: resp.StatusCode, Body: string(data)}
	}
	if out != nil {
		if err := json.Unmarshal(data, out); err != nil {
			return nil, fmt.Errorf("failed to unmarshal response: %w, body: %s", err, string(data))
		}
	}
	return resp.Header, nil
}

func normalizeShopDomain(shop string) string {
	shop = strings.TrimPrefix(shop, "https://")
	shop = strings.TrimPrefix(shop, "http://")
	return strings.TrimSuffix(shop, "/")
}

// nextPageInfo extracts the page_info cursor from the rel="next" entry of a
// Link response header. Empty when there is no next page.
func nextPageInfo(link string) string {
	for _, part := range strings.Split(link, ",") {
		if !strings.Contains(part, `rel="next"`) {
			continue
		}
		start := strings.Index(part, "<")
		end := strings.Index(part, ">")
		if start < 0 || end < start {
			continue
		}
		u, err := url.Parse(strings.TrimSpace(part[start+1 : end]))
		if err != nil {
			continue
		}
		return u.Query().Get("page_info")
	}
	return ""
}
