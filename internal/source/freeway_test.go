package source

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/opendata-tw/roadwatch/config"
	"github.com/opendata-tw/roadwatch/models"
)

const freewayBody = `{
  "UpdateTime": "2026-08-30T10:00:00+08:00",
  "CCTVList": [
    {"CCTVID":"F-001","RoadName":"國道1號","LocationDescription":"汐止系統交流道","CountyName":"新北市","PositionLat":"25.065","PositionLon":"121.645","VideoStreamURL":"https://cctv.example.gov.tw/f001","MileagePost":"11K+200"},
    {"CCTVID":"F-002","RoadName":"國道3號","LocationDescription":"土城交流道","PositionLat":"","PositionLon":""},
    "not-an-object",
    {"RoadName":"國道5號","LocationDescription":"missing id"}
  ]
}`

func freewayFetcher(url string) *Freeway {
	return NewFreeway(config.SourceConfig{BaseURL: url, Enabled: true}, testFetchConfig())
}

func TestFreewayParse(t *testing.T) {
	// The feed historically serves JSON with a UTF-8 BOM prefix.
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write(append([]byte{0xEF, 0xBB, 0xBF}, []byte(freewayBody)...))
	}))
	defer srv.Close()

	records, err := freewayFetcher(srv.URL).Fetch(context.Background(), models.Query{})
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	if len(records) != 2 {
		t.Fatalf("expected malformed items skipped, got %d records", len(records))
	}

	first := records[0]
	if first.ID != "freeway-F-001" {
		t.Errorf("ID = %q", first.ID)
	}
	if first.Name != "汐止系統交流道" {
		t.Errorf("Name = %q", first.Name)
	}
	if first.RawCounty != "新北市" {
		t.Errorf("RawCounty = %q", first.RawCounty)
	}
	if !first.HasCoords() || *first.Lat != 25.065 {
		t.Errorf("coords not parsed from quoted strings: %+v", first)
	}
	if first.Extra["mileage_post"] != "11K+200" {
		t.Errorf("extension bag missing mileage_post: %v", first.Extra)
	}

	second := records[1]
	if second.HasCoords() {
		t.Errorf("empty coordinates must map to absent, got %+v", second)
	}
	if second.RawCounty != "" {
		t.Errorf("missing county must map to empty, got %q", second.RawCounty)
	}
}

func TestFreewayMissingEnvelopeIsPermanent(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"UpdateTime":"2026-08-30T10:00:00+08:00"}`))
	}))
	defer srv.Close()

	_, err := freewayFetcher(srv.URL).Fetch(context.Background(), models.Query{})
	var se *SourceError
	if !errors.As(err, &se) || se.Kind != Permanent {
		t.Fatalf("expected permanent failure for missing collection, got %v", err)
	}
}

func TestFreewayGarbageBodyIsPermanent(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("<html>maintenance</html>"))
	}))
	defer srv.Close()

	_, err := freewayFetcher(srv.URL).Fetch(context.Background(), models.Query{})
	var se *SourceError
	if !errors.As(err, &se) || se.Kind != Permanent {
		t.Fatalf("expected permanent failure for unreadable envelope, got %v", err)
	}
}
