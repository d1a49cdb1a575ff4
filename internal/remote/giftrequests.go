package remote

import (
	"context"
	"net/http"
)

// GetGiftRequest fetches a persisted gift request.
func (c *Client) GetGiftRequest(ctx context.Context, id int64) (GiftRequest, error) {
	var request GiftRequest
	err := c.do(ctx, "get gift request", http.MethodGet, idPath("/gift-requests", id), nil, nil, &request)
	return request, err
}

// CreateGiftRequest persists a new gift request.
func (c *Client) CreateGiftRequest(ctx context.Context, request GiftRequest) (GiftRequest, error) {
	var created GiftRequest
	err := c.do(ctx, "create gift request", http.MethodPost, "/gift-requests", nil, request, &created)
	return created, err
}

// UpdateGiftRequest replaces the mutable fields of a gift request.
func (c *Client) UpdateGiftRequest(ctx context.Context, request GiftRequest) (GiftRequest, error) {
	var updated GiftRequest
	err := c.do(ctx, "update gift request", http.MethodPatch, idPath("/gift-requests", request.ID), nil, request, &updated)
	return updated, err
}

// GetGiftRequestUsers lists recipient rows of a gift request.
func (c *Client) GetGiftRequestUsers(ctx context.Context, id int64) ([]GiftRequestUser, error) {
	var users []GiftRequestUser
	err := c.do(ctx, "get gift request users", http.MethodGet, idPath("/gift-requests", id, "users"), nil, nil, &users)
	return users, err
}

// UpsertGiftRequestUsers creates or replaces recipient rows.
func (c *Client) UpsertGiftRequestUsers(ctx context.Context, id int64, users []GiftRequestUser) error {
	return c.do(ctx, "upsert gift request users", http.MethodPost, idPath("/gift-requests", id, "users"), nil, users, nil)
}
