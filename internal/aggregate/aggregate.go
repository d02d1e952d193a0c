// Package aggregate fans a query out to the configured source fetchers,
// resolves record counties, filters, and deduplicates across sources.
package aggregate

import (
	"context"
	"fmt"
	"log"
	"math"
	"sort"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/opendata-tw/roadwatch/config"
	"github.com/opendata-tw/roadwatch/internal/region"
	"github.com/opendata-tw/roadwatch/internal/source"
	"github.com/opendata-tw/roadwatch/internal/telemetry"
	"github.com/opendata-tw/roadwatch/models"
)

// coordEpsilon is the lat/lon distance (degrees, roughly 50m) under which
// two records with the same road are considered the same camera.
const coordEpsilon = 0.0005

// AllSourcesUnavailableError reports that every configured source failed
// for one query. It is distinguishable by type from an empty successful
// result.
type AllSourcesUnavailableError struct {
	Failures map[string]error
}

func (e *AllSourcesUnavailableError) Error() string {
	names := make([]string, 0, len(e.Failures))
	for name := range e.Failures {
		names = append(names, name)
	}
	sort.Strings(names)
	return fmt.Sprintf("all sources unavailable: %s", strings.Join(names, ", "))
}

// Result is the outcome of one aggregation run. Unavailable always names
// the sources that failed, even on partial success.
type Result struct {
	Records     []models.Record `json:"records"`
	Unavailable []string        `json:"unavailable,omitempty"`
}

// Aggregator owns the configured fetchers and the region resolver.
type Aggregator struct {
	fetchers []source.Fetcher
	resolver *region.Resolver
	priority map[string]int
	deadline time.Duration
	logger   *log.Logger
}

// New creates an aggregator. Source priority follows cfg.Priority; a
// source absent from the list sorts after every listed one.
func New(fetchers []source.Fetcher, resolver *region.Resolver, cfg config.SourcesConfig) *Aggregator {
	priority := make(map[string]int, len(cfg.Priority))
	for i, name := range cfg.Priority {
		priority[name] = i
	}
	return &Aggregator{
		fetchers: fetchers,
		resolver: resolver,
		priority: priority,
		deadline: cfg.Deadline,
		logger:   log.New(log.Writer(), "[AGG] ", log.LstdFlags),
	}
}

// Run fans the query out to every selected fetcher under one deadline,
// then resolves, filters, dedupes and orders the merged records. A source
// missing the deadline or failing is recorded as unavailable without
// aborting the others; only when every source fails does Run return an
// AllSourcesUnavailableError.
func (a *Aggregator) Run(ctx context.Context, q models.Query) (Result, error) {
	if q.County != "" {
		q.County = a.resolver.Normalize(q.County)
	}

	fetchers := a.fetchers
	if q.Selection == models.SelectSingle && q.Source != "" {
		fetchers = nil
		for _, f := range a.fetchers {
			if f.Name() == q.Source {
				fetchers = append(fetchers, f)
			}
		}
	}
	if len(fetchers) == 0 {
		return Result{}, &AllSourcesUnavailableError{Failures: map[string]error{q.Source: fmt.Errorf("no such source configured")}}
	}

	ctx, cancel := context.WithTimeout(ctx, a.deadline)
	defer cancel()

	type outcome struct {
		name    string
		records []models.Record
		err     error
	}
	outcomes := make([]outcome, len(fetchers))

	g, gctx := errgroup.WithContext(ctx)
	for i, f := range fetchers {
		i, f := i, f
		g.Go(func() error {
			started := time.Now()
			records, err := f.Fetch(gctx, q)
			outcomes[i] = outcome{name: f.Name(), records: records, err: err}
			if err != nil {
				a.logger.Printf("source %s failed after %s: %v", f.Name(), time.Since(started), err)
			} else {
				a.logger.Printf("source %s returned %d records in %s", f.Name(), len(records), time.Since(started))
			}
			// Failures are partial by design; never cancel the siblings.
			return nil
		})
	}
	_ = g.Wait()

	var merged []models.Record
	failures := make(map[string]error)
	for _, o := range outcomes {
		if o.err != nil {
			failures[o.name] = o.err
			continue
		}
		merged = append(merged, o.records...)
	}
	if len(failures) == len(fetchers) {
		return Result{}, &AllSourcesUnavailableError{Failures: failures}
	}

	unavailable := make([]string, 0, len(failures))
	for name := range failures {
		unavailable = append(unavailable, name)
	}
	sort.Strings(unavailable)

	for i := range merged {
		a.resolveCounty(&merged[i])
	}
	filtered := a.filter(merged, q)
	deduped := a.dedupe(filtered)
	a.order(deduped)

	return Result{Records: deduped, Unavailable: unavailable}, nil
}

// resolveCounty fills NormalizedCounty from the raw label, falling back
// to coordinate geocoding when the feed carries no usable county.
func (a *Aggregator) resolveCounty(r *models.Record) {
	if r.RawCounty != "" {
		r.NormalizedCounty = a.resolver.Normalize(r.RawCounty)
		return
	}
	if r.HasCoords() {
		if county := a.resolver.Geocode(*r.Lat, *r.Lon); county != region.Unknown {
			r.NormalizedCounty = county
		}
	}
}

func (a *Aggregator) filter(records []models.Record, q models.Query) []models.Record {
	if q.County == "" && q.FreeText == "" && q.Type == "" {
		return records
	}
	var keywords []string
	if q.County != "" {
		keywords = a.resolver.ExpandKeywords(q.County)
		// The parent-region stem itself is always a search term.
		stem := strings.TrimSuffix(strings.TrimSuffix(q.County, "市"), "縣")
		keywords = append(keywords, stem)
	}

	out := records[:0]
	for _, r := range records {
		if q.County != "" && !matchCounty(r, q.County, keywords) {
			continue
		}
		if q.FreeText != "" && !matchText(r, q.FreeText) {
			continue
		}
		if q.Type != "" && !strings.Contains(strings.ToLower(r.Road), strings.ToLower(q.Type)) {
			continue
		}
		out = append(out, r)
	}
	return out
}

// matchCounty accepts a record whose normalized county equals the filter,
// or whose name, road or raw county contains one of the filter's
// expansion keywords. The keyword path lets records whose only geographic
// signal is a district or road name satisfy a parent-region query.
func matchCounty(r models.Record, county string, keywords []string) bool {
	if r.NormalizedCounty == county {
		return true
	}
	for _, kw := range keywords {
		if kw == "" {
			continue
		}
		if matchText(r, kw) {
			return true
		}
	}
	return false
}

func matchText(r models.Record, needle string) bool {
	needle = strings.ToLower(needle)
	return strings.Contains(strings.ToLower(r.Name), needle) ||
		strings.Contains(strings.ToLower(r.Road), needle) ||
		strings.Contains(strings.ToLower(r.RawCounty), needle)
}

// dedupe collapses records describing the same entity across sources:
// identical normalized names, or coordinates within epsilon with the same
// road. Records are scanned in priority order, so the surviving record
// always comes from the higher-priority source.
func (a *Aggregator) dedupe(records []models.Record) []models.Record {
	a.order(records)

	byName := make(map[string]int, len(records))
	var survivors []models.Record
	dropped := 0

next:
	for _, r := range records {
		name := strings.TrimSpace(r.Name)
		if name != "" {
			if _, ok := byName[name]; ok {
				dropped++
				continue
			}
		}
		if r.HasCoords() {
			for _, s := range survivors {
				if s.HasCoords() && s.Road == r.Road &&
					math.Abs(*s.Lat-*r.Lat) < coordEpsilon &&
					math.Abs(*s.Lon-*r.Lon) < coordEpsilon {
					dropped++
					continue next
				}
			}
		}
		if name != "" {
			byName[name] = len(survivors)
		}
		survivors = append(survivors, r)
	}

	if dropped > 0 {
		telemetry.RecordDedup(dropped)
		a.logger.Printf("collapsed %d duplicate records, %d remain", dropped, len(survivors))
	}
	return survivors
}

// order sorts records by source priority then name, keeping page ordering
// stable across repeated navigation.
func (a *Aggregator) order(records []models.Record) {
	sort.SliceStable(records, func(i, j int) bool {
		pi, pj := a.priorityOf(records[i].SourceTag), a.priorityOf(records[j].SourceTag)
		if pi != pj {
			return pi < pj
		}
		return records[i].Name < records[j].Name
	})
}

func (a *Aggregator) priorityOf(tag string) int {
	if p, ok := a.priority[tag]; ok {
		return p
	}
	return len(a.priority)
}
