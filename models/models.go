package models

import "time"

// Record is the normalized representation of one camera/station entity
// drawn from a source feed. It lives for a single request and is never
// persisted.
type Record struct {
	ID               string            `json:"id"`
	Name             string            `json:"name"`
	RawCounty        string            `json:"raw_county,omitempty"`
	NormalizedCounty string            `json:"normalized_county,omitempty"`
	District         string            `json:"district,omitempty"`
	Road             string            `json:"road,omitempty"`
	Lat              *float64          `json:"lat,omitempty"`
	Lon              *float64          `json:"lon,omitempty"`
	ImageURL         string            `json:"image_url,omitempty"`
	StreamURL        string            `json:"stream_url,omitempty"`
	SourceTag        string            `json:"source_tag"`
	UpdatedAt        time.Time         `json:"updated_at,omitempty"`
	Extra            map[string]string `json:"extra,omitempty"`
}

// HasCoords reports whether both coordinates are present.
func (r Record) HasCoords() bool { return r.Lat != nil && r.Lon != nil }

// SourceSelection controls which feeds a query fans out to.
type SourceSelection string

const (
	// SelectMerge queries every configured source and merges the results.
	SelectMerge SourceSelection = "merge"
	// SelectSingle restricts the query to one named source.
	SelectSingle SourceSelection = "single"
)

// Query describes one user search over the configured feeds.
type Query struct {
	FreeText  string          `json:"free_text,omitempty"`
	County    string          `json:"county,omitempty"`
	Type      string          `json:"type,omitempty"`
	Selection SourceSelection `json:"selection,omitempty"`
	Source    string          `json:"source,omitempty"` // used when Selection == SelectSingle
}

// Card is the framework-neutral view-model for one shown record.
type Card struct {
	Title     string    `json:"title"`
	County    string    `json:"county,omitempty"`
	Road      string    `json:"road,omitempty"`
	UpdatedAt time.Time `json:"updated_at,omitempty"`
	Link      string    `json:"link,omitempty"`
	ImageURL  string    `json:"image_url,omitempty"`
	StreamURL string    `json:"stream_url,omitempty"`
	Source    string    `json:"source"`
}

// PageMeta is the pagination metadata attached to a page of cards.
type PageMeta struct {
	CurrentPage  int       `json:"current_page"`
	TotalPages   int       `json:"total_pages"`
	TotalResults int       `json:"total_results"`
	OwnerID      string    `json:"owner_id"`
	ExpiresAt    time.Time `json:"expires_at"`
}
