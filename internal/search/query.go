package search

import (
	"context"
	"fmt"

	"github.com/mitchellh/mapstructure"
	"go.uber.org/zap"

	"github.com/spigell/cvtabs/internal/facet"
)

const (
	SearchPath = "/candidates"
)

// Item is an undecoded record from the service.
type Item interface{}

type itemResponse struct {
	Items []Item `json:"items"`
	Total int    `json:"total"`
}

// Result is one page of candidates plus the total number of matches.
type Result struct {
	Items []*Candidate
	Total int
}

func (c *Client) search(ctx context.Context, params facet.QueryParams) (*Result, error) {
	if params.Page < 1 {
		params.Page = 1
	}
	if params.PageSize < 1 {
		params.PageSize = defaultPageSize
	}

	q, err := params.Values()
	if err != nil {
		return nil, err
	}

	apiURLSearch := fmt.Sprintf("%s%s", c.APIURL, SearchPath)

	var response itemResponse
	if err := c.getJSON(ctx, apiURLSearch, q, &response); err != nil {
		return nil, err
	}

	candidates, err := decodeCandidates(response.Items)
	if err != nil {
		return nil, &Error{Kind: KindService, Err: fmt.Errorf("decoding candidates: %w", err)}
	}

	c.logger.Debug("got response from search service",
		zap.Int("total", response.Total),
		zap.Int("items", len(candidates)),
		zap.Int("page", params.Page),
	)

	return &Result{
		Items: candidates,
		Total: response.Total,
	}, nil
}

func decodeCandidates(items []Item) ([]*Candidate, error) {
	candidates := make([]*Candidate, 0, len(items))

	cfg := &mapstructure.DecoderConfig{
		Metadata:         nil,
		Result:           &candidates,
		TagName:          "json",
		WeaklyTypedInput: true,
	}
	decoder, err := mapstructure.NewDecoder(cfg)
	if err != nil {
		return nil, err
	}

	if err := decoder.Decode(items); err != nil {
		return nil, err
	}

	for i, item := range items {
		if raw, ok := item.(map[string]any); ok && i < len(candidates) && candidates[i] != nil {
			candidates[i].Raw = raw
		}
	}

	return candidates, nil
}
