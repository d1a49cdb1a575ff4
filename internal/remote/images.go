package remote

import (
	"context"
	"net/http"
	"net/url"
	"strings"

	"treegift/internal/services"
)

type imageList struct {
	Images []string `json:"images"`
}

// GetImagesForRequestID returns the candidate image URLs stored for a request.
func (c *Client) GetImagesForRequestID(ctx context.Context, requestID string) ([]string, error) {
	requestID = strings.TrimSpace(requestID)
	if requestID == "" {
		return nil, services.Wrap(services.ErrValidation, "remote", "get images", "request id required", nil)
	}
	var list imageList
	err := c.do(ctx, "get images", http.MethodGet, "/gift-requests/images/"+url.PathEscape(requestID), nil, nil, &list)
	return list.Images, err
}

type scrapeRequest struct {
	RequestID string `json:"request_id"`
	URL       string `json:"url"`
}

// ScrapeImagesFromWebPage asks the service to harvest images from pageURL
// into the request's image namespace and returns the stored URLs.
func (c *Client) ScrapeImagesFromWebPage(ctx context.Context, requestID, pageURL string) ([]string, error) {
	requestID = strings.TrimSpace(requestID)
	pageURL = strings.TrimSpace(pageURL)
	if requestID == "" || pageURL == "" {
		return nil, services.Wrap(services.ErrValidation, "remote", "scrape images", "request id and page url required", nil)
	}
	var list imageList
	err := c.do(ctx, "scrape images", http.MethodPost, "/gift-requests/images/scrape", nil, scrapeRequest{RequestID: requestID, URL: pageURL}, &list)
	return list.Images, err
}
