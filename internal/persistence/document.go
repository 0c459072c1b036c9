package persistence

import (
	"fmt"

	"github.com/mitchellh/mapstructure"

	"github.com/spigell/cvtabs/internal/facet"
	"github.com/spigell/cvtabs/internal/session"
)

// DefaultFilterType is the document type of saved filters.
const DefaultFilterType = "filter"

// Document is a record of the document service.
type Document struct {
	ID      string         `json:"id,omitempty"`
	Type    string         `json:"type"`
	Title   string         `json:"title"`
	Content map[string]any `json:"content"`
}

// DocumentList is one page of documents.
type DocumentList struct {
	Items []*Document `json:"items"`
	Total int         `json:"total"`
}

// content is the stored form of a session definition.
type content struct {
	Name   string         `mapstructure:"name"`
	Query  string         `mapstructure:"query"`
	Facets map[string]any `mapstructure:"facets"`
	Sort   session.Sort   `mapstructure:"sort"`
	Paging session.Paging `mapstructure:"paging"`
}

func newDocument(docType string, def session.Definition) *Document {
	return &Document{
		Type:  docType,
		Title: def.Name,
		Content: map[string]any{
			"name":   def.Name,
			"query":  def.Query,
			"facets": facet.Encode(def.Facets),
			"sort": map[string]any{
				"field":     def.Sort.Field,
				"direction": string(def.Sort.Direction),
			},
			"paging": map[string]any{
				"page":     def.Paging.Page,
				"pageSize": def.Paging.PageSize,
			},
		},
	}
}

// definition decodes a stored document. Facets that cannot be decoded are
// dropped and reported in the returned list.
func (d *Document) definition() (session.Definition, []error, error) {
	var c content

	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		WeaklyTypedInput: true,
		Result:           &c,
	})
	if err != nil {
		return session.Definition{}, nil, err
	}
	if err := decoder.Decode(d.Content); err != nil {
		return session.Definition{}, nil, fmt.Errorf("decoding document %s: %w", d.ID, err)
	}

	facets, errs := facet.Decode(c.Facets)

	name := c.Name
	if name == "" {
		name = d.Title
	}

	return session.Definition{
		RemoteID: d.ID,
		Name:     name,
		Query:    c.Query,
		Facets:   facets,
		Sort:     c.Sort,
		Paging:   c.Paging,
	}, errs, nil
}
