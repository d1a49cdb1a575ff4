// Package remote is the HTTP/JSON client for the nonprofit's data service.
//
// It covers the calls the gift wizard needs: user and group search, user
// creation, payment create/read/partial update, group logo updates, gift
// request persistence, recipient row upserts, and the image pool endpoints
// (list and web-page scrape). Every request carries a bearer token. The client
// never retries; failures are returned wrapped with services.ErrRemote, or
// services.ErrNotFound for 404 responses, so callers can classify them.
package remote
