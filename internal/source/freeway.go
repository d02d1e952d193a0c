package source

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/opendata-tw/roadwatch/config"
	"github.com/opendata-tw/roadwatch/models"
)

// Freeway fetches the Freeway Bureau camera feed. The endpoint is open
// (no token) and historically serves JSON prefixed with a UTF-8 BOM.
type Freeway struct {
	cfg    config.SourceConfig
	client *Client
	logger *log.Logger
}

// NewFreeway creates the Freeway Bureau fetcher.
func NewFreeway(cfg config.SourceConfig, fetch config.FetchConfig) *Freeway {
	return &Freeway{
		cfg:    cfg,
		client: NewClient("freeway", fetch),
		logger: log.New(log.Writer(), "[FREEWAY] ", log.LstdFlags),
	}
}

func (f *Freeway) Name() string { return "freeway" }

func (f *Freeway) Fetch(ctx context.Context, q models.Query) ([]models.Record, error) {
	body, err := f.client.Get(ctx, f.cfg.BaseURL, nil)
	if err != nil {
		return nil, err
	}
	return f.parse(body)
}

func (f *Freeway) parse(body []byte) ([]models.Record, error) {
	var envelope struct {
		UpdateTime string            `json:"UpdateTime"`
		CCTVList   []json.RawMessage `json:"CCTVList"`
	}
	if err := json.Unmarshal(stripBOM(body), &envelope); err != nil || envelope.CCTVList == nil {
		if err == nil {
			err = fmt.Errorf("response has no CCTVList collection")
		}
		return nil, &SourceError{Source: f.Name(), Kind: Permanent, Err: err}
	}
	updated, _ := time.Parse(time.RFC3339, envelope.UpdateTime)

	records := make([]models.Record, 0, len(envelope.CCTVList))
	skipped := 0
	for _, raw := range envelope.CCTVList {
		var item struct {
			CCTVID              string    `json:"CCTVID"`
			RoadName            string    `json:"RoadName"`
			LocationDescription string    `json:"LocationDescription"`
			CountyName          string    `json:"CountyName"`
			MileagePost         string    `json:"MileagePost"`
			RoadDirection       string    `json:"RoadDirection"`
			PositionLat         flexFloat `json:"PositionLat"`
			PositionLon         flexFloat `json:"PositionLon"`
			VideoStreamURL      string    `json:"VideoStreamURL"`
			VideoImageURL       string    `json:"VideoImageURL"`
		}
		if err := json.Unmarshal(raw, &item); err != nil || item.CCTVID == "" {
			skipped++
			continue
		}
		name := item.LocationDescription
		if name == "" {
			name = strings.TrimSpace(item.RoadName + " " + item.MileagePost)
		}
		rec := models.Record{
			ID:        "freeway-" + item.CCTVID,
			Name:      name,
			RawCounty: item.CountyName,
			Road:      item.RoadName,
			Lat:       item.PositionLat.Value,
			Lon:       item.PositionLon.Value,
			StreamURL: item.VideoStreamURL,
			ImageURL:  item.VideoImageURL,
			SourceTag: f.Name(),
			UpdatedAt: updated,
		}
		putExtra(&rec, "mileage_post", item.MileagePost)
		putExtra(&rec, "direction", item.RoadDirection)
		records = append(records, rec)
	}
	if skipped > 0 {
		f.logger.Printf("skipped %d malformed items of %d", skipped, len(envelope.CCTVList))
	}
	return records, nil
}
