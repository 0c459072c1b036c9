package search

import (
	"fmt"
	"strings"
)

// Candidate is a profile returned by the search service. Only the fields used
// for display and local ordering are decoded; the whole record stays in Raw.
type Candidate struct {
	ID              string  `json:"id,omitempty"`
	Name            string  `json:"name,omitempty"`
	Title           string  `json:"title,omitempty"`
	Company         string  `json:"company,omitempty"`
	Location        string  `json:"location,omitempty"`
	Country         string  `json:"country,omitempty"`
	Industry        string  `json:"industry,omitempty"`
	ExperienceYears float64 `json:"experience_years,omitempty"`
	Connections     int     `json:"connections,omitempty"`
	Links           struct {
		LinkedIn string `json:"linkedin,omitempty"`
		GitHub   string `json:"github,omitempty"`
		Twitter  string `json:"twitter,omitempty"`
		Facebook string `json:"facebook,omitempty"`
		Website  string `json:"website,omitempty"`
	} `json:"links,omitempty"`
	Raw map[string]any `json:"-"`
}

// SocialPresence counts the populated contact link fields.
func (c *Candidate) SocialPresence() int {
	count := 0
	for _, link := range []string{c.Links.LinkedIn, c.Links.GitHub, c.Links.Twitter, c.Links.Facebook, c.Links.Website} {
		if strings.TrimSpace(link) != "" {
			count++
		}
	}
	return count
}

// Candidates is an ordered page of candidates.
type Candidates struct {
	Items []*Candidate
}

func (c *Candidates) Len() int {
	return len(c.Items)
}

func (c *Candidates) FindByID(id string) *Candidate {
	for _, candidate := range c.Items {
		if candidate.ID == id {
			return candidate
		}
	}
	return nil
}

func (c *Candidates) IDs() []string {
	ids := make([]string, 0, len(c.Items))
	for _, candidate := range c.Items {
		ids = append(ids, candidate.ID)
	}
	return ids
}

// Labels renders one line per candidate for list views.
func (c *Candidates) Labels() []string {
	labels := make([]string, 0, len(c.Items))
	for _, candidate := range c.Items {
		labels = append(labels, fmt.Sprintf("%s %s / %s / %s",
			candidate.ID, candidate.Name, candidate.Title, candidate.Location,
		))
	}
	return labels
}
