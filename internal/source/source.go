// Package source implements the per-feed fetchers that turn external
// open-data feeds into common records. Each fetcher tolerates the quirks
// of its feed (BOM-prefixed JSON, undeclared XML namespaces, missing
// optional fields) and skips a malformed item rather than aborting the
// rest of the feed.
package source

import (
	"bytes"
	"context"
	"encoding/json"
	"strconv"
	"strings"

	"github.com/opendata-tw/roadwatch/models"
)

// Fetcher fetches one external feed into common records.
type Fetcher interface {
	Name() string
	Fetch(ctx context.Context, q models.Query) ([]models.Record, error)
}

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// stripBOM removes a UTF-8 byte-order mark. Several government feeds
// serve JSON with one.
func stripBOM(b []byte) []byte {
	return bytes.TrimPrefix(b, utf8BOM)
}

// flexFloat decodes a JSON number that some feeds serialise as a quoted
// string. Empty or unparseable values decode to nil rather than erroring.
type flexFloat struct {
	Value *float64
}

func (f *flexFloat) UnmarshalJSON(data []byte) error {
	s := strings.Trim(string(data), `"`)
	s = strings.TrimSpace(s)
	if s == "" || s == "null" {
		f.Value = nil
		return nil
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		f.Value = nil
		return nil
	}
	f.Value = &v
	return nil
}

var _ json.Unmarshaler = (*flexFloat)(nil)

// putExtra stores a source-specific field in the record extension bag,
// allocating it on first use. Empty values are not stored.
func putExtra(r *models.Record, key, value string) {
	if value == "" {
		return
	}
	if r.Extra == nil {
		r.Extra = make(map[string]string)
	}
	r.Extra[key] = value
}
