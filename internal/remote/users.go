package remote

import (
	"context"
	"net/http"
)

type listRequest struct {
	Filters []Filter `json:"filters,omitempty"`
}

// GetUsers lists users matching filters.
func (c *Client) GetUsers(ctx context.Context, offset, limit int, filters ...Filter) (Page[User], error) {
	var page Page[User]
	err := c.do(ctx, "get users", http.MethodPost, "/users/get", pageQuery(offset, limit), listRequest{Filters: filters}, &page)
	return page, err
}

// GetGroups lists groups matching filters.
func (c *Client) GetGroups(ctx context.Context, offset, limit int, filters ...Filter) (Page[Group], error) {
	var page Page[Group]
	err := c.do(ctx, "get groups", http.MethodPost, "/groups/get", pageQuery(offset, limit), listRequest{Filters: filters}, &page)
	return page, err
}

// CreateUser registers a new user profile.
func (c *Client) CreateUser(ctx context.Context, user User) (User, error) {
	var created User
	err := c.do(ctx, "create user", http.MethodPost, "/users", nil, user, &created)
	return created, err
}

// UpdateUser replaces a user's profile fields.
func (c *Client) UpdateUser(ctx context.Context, user User) (User, error) {
	var updated User
	err := c.do(ctx, "update user", http.MethodPut, idPath("/users", user.ID), nil, user, &updated)
	return updated, err
}

// UpdateGroup applies a partial group update.
func (c *Client) UpdateGroup(ctx context.Context, id int64, update GroupUpdate) (Group, error) {
	var updated Group
	err := c.do(ctx, "update group", http.MethodPatch, idPath("/groups", id), nil, update, &updated)
	return updated, err
}
