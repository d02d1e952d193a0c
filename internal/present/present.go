// Package present maps records and pages into framework-neutral card
// view-models for the UI layer.
package present

import (
	"strconv"
	"strings"
	"time"

	"github.com/opendata-tw/roadwatch/models"
)

// Card builds the view-model for one record. Snapshot image URLs get a
// cache-busting timestamp parameter so the card always reflects the
// freshest upstream frame.
func Card(r models.Record, now time.Time) models.Card {
	link := r.StreamURL
	if link == "" {
		link = r.ImageURL
	}
	return models.Card{
		Title:     r.Name,
		County:    r.NormalizedCounty,
		Road:      r.Road,
		UpdatedAt: r.UpdatedAt,
		Link:      link,
		ImageURL:  CacheBust(r.ImageURL, now),
		StreamURL: r.StreamURL,
		Source:    r.SourceTag,
	}
}

// Cards builds view-models for a page of records.
func Cards(records []models.Record, now time.Time) []models.Card {
	out := make([]models.Card, 0, len(records))
	for _, r := range records {
		out = append(out, Card(r, now))
	}
	return out
}

// CacheBust appends a monotonically increasing timestamp parameter to an
// otherwise unchanged snapshot URL. Empty URLs pass through untouched.
func CacheBust(url string, now time.Time) string {
	if url == "" {
		return ""
	}
	sep := "?"
	if strings.Contains(url, "?") {
		sep = "&"
	}
	return url + sep + "t=" + strconv.FormatInt(now.Unix(), 10)
}
