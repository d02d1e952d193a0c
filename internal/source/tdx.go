package source

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/opendata-tw/roadwatch/config"
	"github.com/opendata-tw/roadwatch/internal/auth"
	"github.com/opendata-tw/roadwatch/models"
)

// tdxCities maps a canonical county label to the TDX city path segment.
// Queries with a county outside this map fall back to the freeway-wide
// endpoint.
var tdxCities = map[string]string{
	"台北市": "Taipei",
	"新北市": "NewTaipei",
	"桃園市": "Taoyuan",
	"台中市": "Taichung",
	"台南市": "Tainan",
	"高雄市": "Kaohsiung",
	"基隆市": "Keelung",
	"新竹市": "Hsinchu",
	"新竹縣": "HsinchuCounty",
	"苗栗縣": "MiaoliCounty",
	"彰化縣": "ChanghuaCounty",
	"南投縣": "NantouCounty",
	"雲林縣": "YunlinCounty",
	"嘉義市": "Chiayi",
	"嘉義縣": "ChiayiCounty",
	"屏東縣": "PingtungCounty",
	"宜蘭縣": "YilanCounty",
	"花蓮縣": "HualienCounty",
	"台東縣": "TaitungCounty",
	"澎湖縣": "PenghuCounty",
	"金門縣": "KinmenCounty",
	"連江縣": "LienchiangCounty",
}

// TDX fetches the Transport Data eXchange road CCTV feed. The API is
// protected by OAuth2 client credentials; a 401 invalidates the cached
// token and the fetch retries once with a fresh one.
type TDX struct {
	cfg    config.SourceConfig
	client *Client
	tokens *auth.Manager
	logger *log.Logger
}

// NewTDX creates the TDX fetcher. The token manager is injected so tests
// can point it at a fake exchange.
func NewTDX(cfg config.SourceConfig, fetch config.FetchConfig, tokens *auth.Manager) *TDX {
	return &TDX{
		cfg:    cfg,
		client: NewClient("tdx", fetch),
		tokens: tokens,
		logger: log.New(log.Writer(), "[TDX] ", log.LstdFlags),
	}
}

func (t *TDX) Name() string { return "tdx" }

// Fetch retrieves CCTV records, narrowing to a city endpoint when the
// query's county has a TDX segment.
func (t *TDX) Fetch(ctx context.Context, q models.Query) ([]models.Record, error) {
	url := strings.TrimSuffix(t.cfg.BaseURL, "/")
	if city, ok := tdxCities[q.County]; ok {
		url += "/City/" + city
	} else {
		url += "/Freeway"
	}
	url += "?%24format=JSON"

	body, err := t.get(ctx, url)
	if err != nil {
		return nil, err
	}
	return t.parse(body)
}

func (t *TDX) get(ctx context.Context, url string) ([]byte, error) {
	token, err := t.tokens.GetToken(ctx)
	if err != nil {
		return nil, err
	}
	body, err := t.client.Get(ctx, url, map[string]string{"Authorization": "Bearer " + token})
	if errors.Is(err, ErrUnauthorized) {
		t.tokens.Invalidate()
		token, err = t.tokens.GetToken(ctx)
		if err != nil {
			return nil, err
		}
		body, err = t.client.Get(ctx, url, map[string]string{"Authorization": "Bearer " + token})
	}
	return body, err
}

func (t *TDX) parse(body []byte) ([]models.Record, error) {
	var envelope struct {
		UpdateTime string            `json:"UpdateTime"`
		CCTVs      []json.RawMessage `json:"CCTVs"`
	}
	if err := json.Unmarshal(stripBOM(body), &envelope); err != nil || envelope.CCTVs == nil {
		if err == nil {
			err = fmt.Errorf("response has no CCTVs collection")
		}
		return nil, &SourceError{Source: t.Name(), Kind: Permanent, Err: err}
	}
	updated, _ := time.Parse(time.RFC3339, envelope.UpdateTime)

	records := make([]models.Record, 0, len(envelope.CCTVs))
	skipped := 0
	for _, raw := range envelope.CCTVs {
		var item struct {
			CCTVID                  string    `json:"CCTVID"`
			SubAuthorityCode        string    `json:"SubAuthorityCode"`
			LinkID                  string    `json:"LinkID"`
			LayerID                 string    `json:"LayerID"`
			RoadName                string    `json:"RoadName"`
			SurveillanceDescription string    `json:"SurveillanceDescription"`
			VideoStreamURL          string    `json:"VideoStreamURL"`
			VideoImageURL           string    `json:"VideoImageURL"`
			PositionLat             flexFloat `json:"PositionLat"`
			PositionLon             flexFloat `json:"PositionLon"`
			RoadSection             struct {
				Start string `json:"Start"`
				End   string `json:"End"`
			} `json:"RoadSection"`
		}
		if err := json.Unmarshal(raw, &item); err != nil || item.CCTVID == "" {
			skipped++
			continue
		}
		name := item.SurveillanceDescription
		if name == "" {
			name = strings.TrimSpace(item.RoadName + " " + item.RoadSection.Start)
		}
		rec := models.Record{
			ID:        "tdx-" + item.CCTVID,
			Name:      name,
			Road:      item.RoadName,
			Lat:       item.PositionLat.Value,
			Lon:       item.PositionLon.Value,
			StreamURL: item.VideoStreamURL,
			ImageURL:  item.VideoImageURL,
			SourceTag: t.Name(),
			UpdatedAt: updated,
		}
		putExtra(&rec, "sub_authority", item.SubAuthorityCode)
		putExtra(&rec, "link_id", item.LinkID)
		putExtra(&rec, "layer_id", item.LayerID)
		putExtra(&rec, "section_end", item.RoadSection.End)
		records = append(records, rec)
	}
	if skipped > 0 {
		t.logger.Printf("skipped %d malformed items of %d", skipped, len(envelope.CCTVs))
	}
	return records, nil
}
