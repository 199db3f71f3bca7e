// Package api implements the HTTP client for the storefront collaborators:
// the token issuer, the product catalog, the cart service, the order service
// and the payment processor. All payloads are JSON except token issuance,
// which is form-encoded.
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/dmitrijs2005/storefront/internal/client/models"
	"github.com/dmitrijs2005/storefront/internal/common"
	"github.com/dmitrijs2005/storefront/internal/logging"
)

// Client defines the collaborator operations the rest of the client uses.
// All methods honor context cancellation. Methods taking a token attach it
// as a bearer credential.
type Client interface {
	Token(ctx context.Context, username, password string) (string, error)
	GetProduct(ctx context.Context, id int64) (*models.Product, error)
	GetCart(ctx context.Context, token string) (*models.Cart, error)
	AddCartItem(ctx context.Context, token string, productID, quantity int64) error
	RemoveCartItem(ctx context.Context, token string, productID, quantity int64) error
	ClearCart(ctx context.Context, token string) error
	CreateOrder(ctx context.Context, token string) (*models.Order, error)
	GetOrder(ctx context.Context, token string, id int64) (*models.Order, error)
	ListMyOrders(ctx context.Context, token string) ([]models.Order, error)
	Pay(ctx context.Context, token string, orderID int64, method string) (int, []byte, error)
}

// HTTPClient is the concrete Client over net/http.
type HTTPClient struct {
	baseURL string
	http    *http.Client
	log     logging.Logger
}

// NewHTTPClient constructs a client for the gateway at baseURL. A zero
// timeout leaves the transport default in place.
func NewHTTPClient(baseURL string, timeout time.Duration, log logging.Logger) *HTTPClient {
	return &HTTPClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: timeout},
		log:     log,
	}
}

func (c *HTTPClient) newRequest(ctx context.Context, method, path, token string, body io.Reader) (*http.Request, error) {
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return nil, err
	}
	req.Header.Set("X-Request-ID", uuid.NewString())
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	return req, nil
}

// doJSON issues a request with an optional JSON body and decodes a JSON
// response into out (when out is non-nil). Non-2xx responses become a
// *StatusError carrying the code and raw body.
func (c *HTTPClient) doJSON(ctx context.Context, method, path, token string, in, out any) error {
	var body io.Reader
	if in != nil {
		b, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		body = bytes.NewReader(b)
	}

	req, err := c.newRequest(ctx, method, path, token, body)
	if err != nil {
		return err
	}
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("%s %s: read body: %w", method, path, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		c.log.Debug(ctx, "collaborator rejected request",
			"method", method, "path", path, "status", resp.StatusCode)
		return &StatusError{Code: resp.StatusCode, Body: string(raw)}
	}

	if out != nil {
		if err := json.Unmarshal(raw, out); err != nil {
			return fmt.Errorf("%s %s: decode response: %w", method, path, err)
		}
	}
	return nil
}

// Token exchanges credentials for a bearer token via the form-encoded
// issuance endpoint. A 401 maps to common.ErrorUnauthorized.
func (c *HTTPClient) Token(ctx context.Context, username, password string) (string, error) {
	form := url.Values{}
	form.Set("username", username)
	form.Set("password", password)

	req, err := c.newRequest(ctx, http.MethodPost, "/token", "", strings.NewReader(form.Encode()))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := c.http.Do(req)
	if err != nil {
		return "", fmt.Errorf("POST /token: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("POST /token: read body: %w", err)
	}

	if resp.StatusCode == http.StatusUnauthorized {
		return "", fmt.Errorf("%w: %s", common.ErrorUnauthorized, strings.TrimSpace(string(raw)))
	}
	if resp.StatusCode != http.StatusOK {
		return "", &StatusError{Code: resp.StatusCode, Body: string(raw)}
	}

	var payload struct {
		AccessToken string `json:"access_token"`
	}
	if err := json.Unmarshal(raw, &payload); err != nil {
		return "", fmt.Errorf("POST /token: decode response: %w", err)
	}
	if payload.AccessToken == "" {
		return "", errors.New("POST /token: empty access_token in response")
	}
	return payload.AccessToken, nil
}

// GetProduct fetches one catalog record.
func (c *HTTPClient) GetProduct(ctx context.Context, id int64) (*models.Product, error) {
	var p models.Product
	if err := c.doJSON(ctx, http.MethodGet, fmt.Sprintf("/products/%d", id), "", nil, &p); err != nil {
		return nil, err
	}
	return &p, nil
}

// GetCart fetches the server-authoritative cart for the session.
func (c *HTTPClient) GetCart(ctx context.Context, token string) (*models.Cart, error) {
	var cart models.Cart
	if err := c.doJSON(ctx, http.MethodGet, "/cart", token, nil, &cart); err != nil {
		return nil, err
	}
	return &cart, nil
}

// AddCartItem adds quantity units of a product to the server cart.
func (c *HTTPClient) AddCartItem(ctx context.Context, token string, productID, quantity int64) error {
	in := map[string]int64{"product_id": productID, "quantity": quantity}
	return c.doJSON(ctx, http.MethodPost, "/cart/items", token, in, nil)
}

// RemoveCartItem decrements quantity units of a product in the server cart.
// The service removes the row once the remaining quantity reaches zero.
func (c *HTTPClient) RemoveCartItem(ctx context.Context, token string, productID, quantity int64) error {
	path := fmt.Sprintf("/cart/items/%d?quantity=%d", productID, quantity)
	return c.doJSON(ctx, http.MethodDelete, path, token, nil, nil)
}

// ClearCart removes every item from the server cart.
func (c *HTTPClient) ClearCart(ctx context.Context, token string) error {
	return c.doJSON(ctx, http.MethodDelete, "/cart", token, nil, nil)
}

// CreateOrder asks the order service to create an order from the server
// cart. The response carries the new id and the seed status.
func (c *HTTPClient) CreateOrder(ctx context.Context, token string) (*models.Order, error) {
	var o models.Order
	if err := c.doJSON(ctx, http.MethodPost, "/orders", token, nil, &o); err != nil {
		return nil, err
	}
	return &o, nil
}

// GetOrder fetches the current authoritative state of one order. A 404 maps
// to common.ErrOrderNotFound.
func (c *HTTPClient) GetOrder(ctx context.Context, token string, id int64) (*models.Order, error) {
	var o models.Order
	if err := c.doJSON(ctx, http.MethodGet, fmt.Sprintf("/orders/%d", id), token, nil, &o); err != nil {
		var statusErr *StatusError
		if errors.As(err, &statusErr) && statusErr.Code == http.StatusNotFound {
			return nil, fmt.Errorf("%w: order %d", common.ErrOrderNotFound, id)
		}
		return nil, err
	}
	return &o, nil
}

// ListMyOrders fetches every order belonging to the current session.
func (c *HTTPClient) ListMyOrders(ctx context.Context, token string) ([]models.Order, error) {
	var orders []models.Order
	if err := c.doJSON(ctx, http.MethodGet, "/myorders", token, nil, &orders); err != nil {
		return nil, err
	}
	return orders, nil
}

// Pay issues a payment attempt and returns the raw status code and body.
// Classification of the three outcome shapes (200/202/other) belongs to the
// payment controller, so only transport failures surface as errors here.
func (c *HTTPClient) Pay(ctx context.Context, token string, orderID int64, method string) (int, []byte, error) {
	in := map[string]any{"order_id": orderID, "method": method}
	b, err := json.Marshal(in)
	if err != nil {
		return 0, nil, fmt.Errorf("encode request: %w", err)
	}

	req, err := c.newRequest(ctx, http.MethodPost, "/payment", token, bytes.NewReader(b))
	if err != nil {
		return 0, nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return 0, nil, fmt.Errorf("POST /payment: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return 0, nil, fmt.Errorf("POST /payment: read body: %w", err)
	}
	return resp.StatusCode, raw, nil
}
