// Package region resolves administrative-region labels for records drawn
// from open-data feeds: rule-based county normalisation and bounding-box
// geocoding, both data-driven and side-effect free.
package region

import (
	"strings"

	"github.com/opendata-tw/roadwatch/config"
)

// Unknown is returned by Geocode for a point inside no configured box.
const Unknown = "unknown"

// Resolver normalises county labels and geocodes coordinates against
// static tables. All methods are deterministic and safe for concurrent use.
type Resolver struct {
	boxes    []Box
	keywords map[string][]string
}

// NewResolver builds a resolver from the compiled-in tables extended by
// configuration. Configured boxes are checked before the built-in table;
// configured keywords are appended to the built-in expansion lists.
func NewResolver(cfg config.RegionConfig) *Resolver {
	r := &Resolver{keywords: make(map[string][]string, len(defaultKeywords))}
	for stem, kws := range defaultKeywords {
		r.keywords[stem] = append([]string(nil), kws...)
	}
	for stem, kws := range cfg.Keywords {
		r.keywords[stem] = append(r.keywords[stem], kws...)
	}
	for _, b := range cfg.Boxes {
		r.boxes = append(r.boxes, Box{
			County: b.County,
			MinLat: b.MinLat, MaxLat: b.MaxLat,
			MinLon: b.MinLon, MaxLon: b.MaxLon,
		})
	}
	r.boxes = append(r.boxes, defaultBoxes...)
	return r
}

// Normalize maps a raw county label to its canonical form. Resolution
// order: exact variant lookup, 臺→台 rewrite, suffix stripping, then
// stem-to-county completion. A stem ambiguous between a city and a county
// is returned un-suffixed rather than guessed. Unrecognised input is
// returned as given (after the 臺→台 rewrite).
func (r *Resolver) Normalize(raw string) string {
	s := strings.TrimSpace(raw)
	if s == "" {
		return ""
	}
	if c, ok := variants[s]; ok {
		return c
	}
	s = strings.ReplaceAll(s, "臺", "台")
	if c, ok := variants[s]; ok {
		return c
	}
	if _, ok := counties[s]; ok {
		return s
	}
	for _, suffix := range stripSuffixes {
		if trimmed, ok := strings.CutSuffix(s, suffix); ok {
			s = trimmed
			break
		}
	}
	if _, ok := counties[s]; ok {
		return s
	}
	if !strings.HasSuffix(s, "市") && !strings.HasSuffix(s, "縣") {
		if c, ok := stems[s]; ok {
			return c
		}
	}
	return s
}

// Geocode returns the county whose bounding box contains the point,
// first match winning, or Unknown when no box contains it.
func (r *Resolver) Geocode(lat, lon float64) string {
	for _, b := range r.boxes {
		if lat >= b.MinLat && lat <= b.MaxLat && lon >= b.MinLon && lon <= b.MaxLon {
			return b.County
		}
	}
	return Unknown
}

// ExpandKeywords returns the sub-region search terms configured for a
// parent-region filter. The filter may carry a 市/縣 suffix; lookup is by
// stem. Nil when the filter has no expansion entry.
func (r *Resolver) ExpandKeywords(filter string) []string {
	stem := strings.TrimSpace(filter)
	stem = strings.ReplaceAll(stem, "臺", "台")
	stem = strings.TrimSuffix(stem, "市")
	stem = strings.TrimSuffix(stem, "縣")
	return r.keywords[stem]
}
