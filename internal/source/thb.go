package source

import (
	"context"
	"encoding/xml"
	"fmt"
	"log"
	"strconv"
	"strings"

	"github.com/opendata-tw/roadwatch/config"
	"github.com/opendata-tw/roadwatch/models"
)

// THB fetches the Provincial Highway Bureau camera feed (XML). The
// bureau declares the transportdata.tw schema namespace when it declares
// one at all; some mirrors of the feed omit the xmlns entirely, so
// parsing tries the declared namespace first and falls back to bare tags.
type THB struct {
	cfg    config.SourceConfig
	client *Client
	logger *log.Logger
}

// NewTHB creates the Highway Bureau fetcher.
func NewTHB(cfg config.SourceConfig, fetch config.FetchConfig) *THB {
	return &THB{
		cfg:    cfg,
		client: NewClient("thb", fetch),
		logger: log.New(log.Writer(), "[THB] ", log.LstdFlags),
	}
}

func (t *THB) Name() string { return "thb" }

func (t *THB) Fetch(ctx context.Context, q models.Query) ([]models.Record, error) {
	body, err := t.client.Get(ctx, t.cfg.BaseURL, nil)
	if err != nil {
		return nil, err
	}
	return t.parse(body)
}

type thbItem struct {
	CCTVID              string `xml:"CCTVID"`
	RoadName            string `xml:"RoadName"`
	LocationDescription string `xml:"LocationDescription"`
	CountyName          string `xml:"CountyName"`
	PositionLat         string `xml:"PositionLat"`
	PositionLon         string `xml:"PositionLon"`
	VideoStreamURL      string `xml:"VideoStreamURL"`
	VideoImageURL       string `xml:"VideoImageURL"`
}

// envelope with the declared namespace; tried first.
type thbEnvelopeNS struct {
	XMLName xml.Name  `xml:"https://traffic.transportdata.tw/standard/traffic/schema/ CCTVList"`
	Items   []thbItem `xml:"CCTVs>CCTV"`
}

// bare-tag fallback for feeds served without the xmlns declaration.
type thbEnvelope struct {
	XMLName xml.Name  `xml:"CCTVList"`
	Items   []thbItem `xml:"CCTVs>CCTV"`
}

func (t *THB) parse(body []byte) ([]models.Record, error) {
	body = stripBOM(body)

	var items []thbItem
	var withNS thbEnvelopeNS
	if err := xml.Unmarshal(body, &withNS); err == nil && len(withNS.Items) > 0 {
		items = withNS.Items
	} else {
		var bare thbEnvelope
		if err := xml.Unmarshal(body, &bare); err != nil {
			return nil, &SourceError{Source: t.Name(), Kind: Permanent, Err: fmt.Errorf("unreadable envelope: %w", err)}
		}
		if bare.Items == nil {
			return nil, &SourceError{Source: t.Name(), Kind: Permanent, Err: fmt.Errorf("response has no CCTV collection")}
		}
		items = bare.Items
	}

	records := make([]models.Record, 0, len(items))
	skipped := 0
	for _, item := range items {
		if item.CCTVID == "" {
			skipped++
			continue
		}
		name := item.LocationDescription
		if name == "" {
			name = item.RoadName
		}
		rec := models.Record{
			ID:        "thb-" + item.CCTVID,
			Name:      name,
			RawCounty: item.CountyName,
			Road:      item.RoadName,
			Lat:       parseCoord(item.PositionLat),
			Lon:       parseCoord(item.PositionLon),
			StreamURL: item.VideoStreamURL,
			ImageURL:  item.VideoImageURL,
			SourceTag: t.Name(),
		}
		records = append(records, rec)
	}
	if skipped > 0 {
		t.logger.Printf("skipped %d malformed items of %d", skipped, len(items))
	}
	return records, nil
}

func parseCoord(s string) *float64 {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return nil
	}
	return &v
}
