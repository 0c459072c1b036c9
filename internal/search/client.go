package search

import (
	"context"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/spigell/cvtabs/internal/facet"
)

const (
	userAgent = "cvtabs (talent-search dashboard)"
	// Used when the caller does not set a page size.
	defaultPageSize = 25
	defaultTimeout  = 10 * time.Second
)

// Client talks to the remote candidate search service.
type Client struct {
	token      string
	logger     *zap.Logger
	HTTPClient *http.Client
	UserAgent  string
	APIURL     string
}

func New(apiURL, token string, logger *zap.Logger) *Client {
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Client{
		token:  token,
		APIURL: apiURL,
		HTTPClient: &http.Client{
			Timeout: defaultTimeout,
		},
		logger:    logger,
		UserAgent: userAgent,
	}
}

func (c *Client) Search(ctx context.Context, params facet.QueryParams) (*Result, error) {
	return c.search(ctx, params)
}
