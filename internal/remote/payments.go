package remote

import (
	"context"
	"net/http"
)

// CreatePayment records a new payment.
func (c *Client) CreatePayment(ctx context.Context, payment Payment) (Payment, error) {
	var created Payment
	err := c.do(ctx, "create payment", http.MethodPost, "/payments", nil, payment, &created)
	return created, err
}

// GetPayment fetches a payment by id.
func (c *Client) GetPayment(ctx context.Context, id int64) (Payment, error) {
	var payment Payment
	err := c.do(ctx, "get payment", http.MethodGet, idPath("/payments", id), nil, nil, &payment)
	return payment, err
}

// UpdatePayment sends a partial update; only non-nil fields are serialized.
func (c *Client) UpdatePayment(ctx context.Context, id int64, update PaymentUpdate) (Payment, error) {
	var updated Payment
	err := c.do(ctx, "update payment", http.MethodPatch, idPath("/payments", id), nil, update, &updated)
	return updated, err
}
