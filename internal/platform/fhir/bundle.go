package fhir

import (
	"encoding/json"
	"fmt"
	"time"
)

type Bundle struct {
	ResourceType string        `json:"resourceType"`
	Type         string        `json:"type"`
	Total        *int          `json:"total,omitempty"`
	Link         []BundleLink  `json:"link,omitempty"`
	Entry        []BundleEntry `json:"entry,omitempty"`
	Timestamp    *time.Time    `json:"timestamp,omitempty"`
}

type BundleLink struct {
	Relation string `json:"relation"`
	URL      string `json:"url"`
}

type BundleEntry struct {
	FullURL  string          `json:"fullUrl,omitempty"`
	Resource json.RawMessage `json:"resource,omitempty"`
	Search   *BundleSearch   `json:"search,omitempty"`
}

type BundleSearch struct {
	Mode string `json:"mode,omitempty"`
}

// SearchBundleParams describes the page a searchset bundle holds.
type SearchBundleParams struct {
	BaseURL string
	Count   int
	Offset  int
	Total   int
}

// NewSearchBundle wraps resources in a searchset bundle with self, next and
// previous links. Every resource must carry "resourceType" and "id".
func NewSearchBundle(resources []interface{}, params SearchBundleParams) *Bundle {
	now := time.Now().UTC()
	entries := make([]BundleEntry, len(resources))
	for i, r := range resources {
		raw, _ := json.Marshal(r)
		entries[i] = BundleEntry{
			FullURL:  fullURL(raw, params.BaseURL),
			Resource: raw,
			Search:   &BundleSearch{Mode: "match"},
		}
	}
	total := params.Total
	return &Bundle{
		ResourceType: "Bundle",
		Type:         "searchset",
		Total:        &total,
		Timestamp:    &now,
		Link:         pageLinks(params),
		Entry:        entries,
	}
}

func fullURL(raw json.RawMessage, baseURL string) string {
	var head Resource
	if err := json.Unmarshal(raw, &head); err != nil || head.ID == "" {
		return ""
	}
	return baseURL + "/" + head.ID
}

func pageLinks(p SearchBundleParams) []BundleLink {
	if p.Count <= 0 {
		return []BundleLink{{Relation: "self", URL: p.BaseURL}}
	}
	link := func(rel string, offset int) BundleLink {
		return BundleLink{Relation: rel, URL: fmt.Sprintf("%s?_offset=%d&_count=%d", p.BaseURL, offset, p.Count)}
	}
	links := []BundleLink{link("self", p.Offset)}
	if p.Offset+p.Count < p.Total {
		links = append(links, link("next", p.Offset+p.Count))
	}
	if p.Offset > 0 {
		prev := p.Offset - p.Count
		if prev < 0 {
			prev = 0
		}
		links = append(links, link("previous", prev))
	}
	return links
}
