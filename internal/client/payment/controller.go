// Package payment issues on-demand payment attempts and classifies the three
// possible outcome shapes. A successful attempt means "payment accepted", not
// "order marked PAID": the authoritative status still arrives via polling,
// so callers re-enter the polling loop on completion.
package payment

import (
	"context"
	"encoding/json"
	"strings"

	"github.com/dmitrijs2005/storefront/internal/client/api"
	"github.com/dmitrijs2005/storefront/internal/client/models"
	"github.com/dmitrijs2005/storefront/internal/logging"
)

// DefaultMethod is sent when the caller does not pick a payment method.
const DefaultMethod = "mock"

// Controller sends payment attempts. Concurrent retries for the same order
// are allowed by this contract; debouncing the retry affordance is the
// caller's responsibility.
type Controller struct {
	api api.Client
	log logging.Logger
}

// NewController constructs a payment controller.
func NewController(apiClient api.Client, log logging.Logger) *Controller {
	return &Controller{api: apiClient, log: log}
}

// Retry issues one payment attempt for the order.
//
// Response code 200 yields SUCCESS with the parsed body. Code 202 yields
// PENDING and is explicitly not an error; when its body is unparseable a
// synthesized pending body is returned. Any other code yields FAILURE and an
// error carrying the status code and raw body text.
func (c *Controller) Retry(ctx context.Context, token string, orderID int64, method string) (*models.PaymentResult, error) {
	if method == "" {
		method = DefaultMethod
	}

	code, raw, err := c.api.Pay(ctx, token, orderID, method)
	if err != nil {
		return nil, err
	}

	switch code {
	case 200:
		c.log.Info(ctx, "payment attempt accepted", "order_id", orderID, "method", method)
		return &models.PaymentResult{OrderID: orderID, Outcome: models.PaymentSuccess, Body: parseBody(raw)}, nil
	case 202:
		c.log.Info(ctx, "payment attempt queued", "order_id", orderID, "method", method)
		body := parseBody(raw)
		if body == nil {
			body = map[string]any{"outcome": string(models.PaymentPending)}
		}
		return &models.PaymentResult{OrderID: orderID, Outcome: models.PaymentPending, Body: body}, nil
	default:
		c.log.Warn(ctx, "payment attempt rejected", "order_id", orderID, "status", code)
		result := &models.PaymentResult{OrderID: orderID, Outcome: models.PaymentFailure, Body: parseBody(raw)}
		return result, &api.StatusError{Code: code, Body: string(raw)}
	}
}

// parseBody is defensive: a JSON object parses as-is, anything else is
// wrapped as {"raw": text} rather than failing the whole call. An empty body
// yields nil.
func parseBody(raw []byte) map[string]any {
	text := strings.TrimSpace(string(raw))
	if text == "" {
		return nil
	}
	var body map[string]any
	if err := json.Unmarshal([]byte(text), &body); err != nil {
		return map[string]any{"raw": text}
	}
	return body
}
