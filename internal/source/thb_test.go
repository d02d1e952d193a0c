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

const thbItemsXML = `
  <CCTVs>
    <CCTV>
      <CCTVID>T-62-01</CCTVID>
      <RoadName>台62線</RoadName>
      <LocationDescription>台62線暖暖交流道</LocationDescription>
      <PositionLat>25.10</PositionLat>
      <PositionLon>121.73</PositionLon>
      <VideoImageURL>https://cctv.example.gov.tw/t6201.jpg</VideoImageURL>
    </CCTV>
    <CCTV>
      <RoadName>台9線</RoadName>
      <LocationDescription>missing id, must be skipped</LocationDescription>
    </CCTV>
    <CCTV>
      <CCTVID>T-9-07</CCTVID>
      <RoadName>台9線</RoadName>
      <CountyName>宜蘭縣</CountyName>
      <PositionLat>not-a-number</PositionLat>
    </CCTV>
  </CCTVs>`

func thbFetcher(url string) *THB {
	return NewTHB(config.SourceConfig{BaseURL: url, Enabled: true}, testFetchConfig())
}

func serveXML(t *testing.T, body string) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/xml")
		_, _ = w.Write([]byte(body))
	}))
}

func TestTHBParseDeclaredNamespace(t *testing.T) {
	body := `<?xml version="1.0" encoding="UTF-8"?>
<CCTVList xmlns="https://traffic.transportdata.tw/standard/traffic/schema/">` + thbItemsXML + `
</CCTVList>`
	srv := serveXML(t, body)
	defer srv.Close()

	records, err := thbFetcher(srv.URL).Fetch(context.Background(), models.Query{})
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	assertTHBRecords(t, records)
}

func TestTHBParseBareTags(t *testing.T) {
	// Some mirrors serve the same document without any xmlns.
	body := `<?xml version="1.0" encoding="UTF-8"?>
<CCTVList>` + thbItemsXML + `
</CCTVList>`
	srv := serveXML(t, body)
	defer srv.Close()

	records, err := thbFetcher(srv.URL).Fetch(context.Background(), models.Query{})
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	assertTHBRecords(t, records)
}

func assertTHBRecords(t *testing.T, records []models.Record) {
	t.Helper()
	if len(records) != 2 {
		t.Fatalf("expected 2 records (malformed skipped), got %d", len(records))
	}
	first := records[0]
	if first.ID != "thb-T-62-01" {
		t.Errorf("ID = %q", first.ID)
	}
	if first.Name != "台62線暖暖交流道" {
		t.Errorf("Name = %q", first.Name)
	}
	if !first.HasCoords() || *first.Lat != 25.10 || *first.Lon != 121.73 {
		t.Errorf("coords = %+v", first)
	}
	second := records[1]
	if second.HasCoords() {
		t.Errorf("unparseable coordinate must map to absent, got %+v", second)
	}
	if second.RawCounty != "宜蘭縣" {
		t.Errorf("RawCounty = %q", second.RawCounty)
	}
}

func TestTHBUnreadableEnvelopeIsPermanent(t *testing.T) {
	srv := serveXML(t, `{"this":"is json"}`)
	defer srv.Close()

	_, err := thbFetcher(srv.URL).Fetch(context.Background(), models.Query{})
	var se *SourceError
	if !errors.As(err, &se) || se.Kind != Permanent {
		t.Fatalf("expected permanent failure, got %v", err)
	}
}
