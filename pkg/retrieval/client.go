package retrieval

import (
	"context"
	"fmt"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/google/uuid"
)

// Passage is one ranked result from the retrieval service. The order of the
// returned slice is the service's relevance ranking and is never re-sorted here.
type Passage struct {
	DocumentId   string  `json:"document_id"`
	DocumentName string  `json:"document_name"`
	PageNumber   *int    `json:"page_number,omitempty"`
	Content      string  `json:"content"`
	Score        float64 `json:"score"`
}

// Searcher is the contract the orchestrator depends on.
type Searcher interface {
	Search(ctx context.Context, query string, organizationId uuid.UUID, topK int) ([]Passage, error)
}

// Client is an HTTP adapter to the external retrieval service.
type Client struct {
	http *resty.Client
}

var _ Searcher = &Client{}

func NewClient(baseURL, apiKey string, timeout time.Duration) *Client {
	c := resty.New().
		SetBaseURL(baseURL).
		SetTimeout(timeout).
		SetHeader("Content-Type", "application/json")
	if apiKey != "" {
		c.SetAuthToken(apiKey)
	}
	return &Client{http: c}
}

type searchRequest struct {
	Query          string `json:"query"`
	OrganizationId string `json:"organization_id"`
	TopK           int    `json:"top_k"`
}

type searchResponse struct {
	Results []Passage `json:"results"`
}

func (c *Client) Search(ctx context.Context, query string, organizationId uuid.UUID, topK int) ([]Passage, error) {
	var result searchResponse

	resp, err := c.http.R().
		SetContext(ctx).
		SetBody(searchRequest{
			Query:          query,
			OrganizationId: organizationId.String(),
			TopK:           topK,
		}).
		SetResult(&result).
		Post("/v1/search")
	if err != nil {
		return nil, fmt.Errorf("retrieval request failed: %w", err)
	}
	if resp.IsError() {
		return nil, fmt.Errorf("retrieval error: status %d, body: %s", resp.StatusCode(), resp.String())
	}

	// Scores outside [0,1] indicate a misbehaving backend; clamp rather than fail.
	for i := range result.Results {
		if result.Results[i].Score < 0 {
			result.Results[i].Score = 0
		}
		if result.Results[i].Score > 1 {
			result.Results[i].Score = 1
		}
	}

	return result.Results, nil
}
