package persistence

import (
	"context"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"
)

const (
	userAgent      = "cvtabs (talent-search dashboard)"
	documentsPath  = "/documents"
	defaultTimeout = 10 * time.Second
)

// Client talks to the document service that stores saved filters.
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
		APIURL: strings.TrimRight(apiURL, "/"),
		HTTPClient: &http.Client{
			Timeout: defaultTimeout,
		},
		logger:    logger,
		UserAgent: userAgent,
	}
}

// Create stores a new document and returns its id.
func (c *Client) Create(ctx context.Context, doc *Document) (string, error) {
	var created struct {
		ID string `json:"id"`
	}

	if err := c.do(ctx, http.MethodPost, c.APIURL+documentsPath, nil, doc, &created); err != nil {
		return "", err
	}

	if created.ID == "" {
		return "", &Error{Status: http.StatusOK, Err: errMissingID}
	}

	return created.ID, nil
}

// Update replaces the document with the given id. ErrConflict is returned
// when the document no longer exists.
func (c *Client) Update(ctx context.Context, id string, doc *Document) error {
	return c.do(ctx, http.MethodPut, c.documentURL(id), nil, doc, nil)
}

// Delete removes the document with the given id. ErrConflict is returned when
// the document no longer exists.
func (c *Client) Delete(ctx context.Context, id string) error {
	return c.do(ctx, http.MethodDelete, c.documentURL(id), nil, nil, nil)
}

// List returns one page of documents of the given type.
func (c *Client) List(ctx context.Context, docType string, page, pageSize int) (*DocumentList, error) {
	q := url.Values{}
	q.Set("type", docType)
	q.Set("page", strconv.Itoa(page))
	q.Set("pageSize", strconv.Itoa(pageSize))

	list := &DocumentList{}
	if err := c.do(ctx, http.MethodGet, c.APIURL+documentsPath, q, nil, list); err != nil {
		return nil, err
	}

	return list, nil
}

func (c *Client) documentURL(id string) string {
	return c.APIURL + documentsPath + "/" + url.PathEscape(id)
}
