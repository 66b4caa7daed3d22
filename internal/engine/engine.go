// Package engine ties ingestion, aggregation, ranking, and scoring into
// the operations the HTTP layer and the watcher call. The engine is
// stateless: every operation fetches fresh upstream data, computes, and
// returns. Caching belongs to whatever sits in front of it.
package engine

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/liamashdown/polyrank/internal/aggregate"
	"github.com/liamashdown/polyrank/internal/config"
	"github.com/liamashdown/polyrank/internal/ingest"
	"github.com/liamashdown/polyrank/internal/metrics"
	"github.com/liamashdown/polyrank/internal/polymarket/gammaapi"
	"github.com/liamashdown/polyrank/internal/rank"
	"github.com/liamashdown/polyrank/internal/score"
)

// ErrMarketNotFound marks a slug lookup that matched nothing.
var ErrMarketNotFound = errors.New("market not found")

// MarketFeed is the market metadata source consumed by the engine
type MarketFeed interface {
	GetEvents(ctx context.Context, params gammaapi.EventParams) ([]gammaapi.Event, error)
	GetEventBySlug(ctx context.Context, slug string) (*gammaapi.Event, error)
}

// Engine executes ranking and scoring passes against live upstream data
type Engine struct {
	cfg      *config.Config
	ingestor *ingest.Ingestor
	markets  MarketFeed
	log      *logrus.Logger
}

// New creates an Engine
func New(cfg *config.Config, ingestor *ingest.Ingestor, markets MarketFeed, log *logrus.Logger) *Engine {
	return &Engine{
		cfg:      cfg,
		ingestor: ingestor,
		markets:  markets,
		log:      log,
	}
}

// RankResult is one completed ranking pass. Partial means at least one
// wallet's activity feed could not be read and its realized gain fell
// back to the trade estimate.
type RankResult struct {
	Profiles      []aggregate.Profile
	TotalMatched  int
	Partial       bool
	FailedWallets int
}

// RankWallets runs one full ranking pass: resolve the category to a
// market scope, ingest the window, aggregate per wallet, then filter,
// sort, and page. An unknown category that matches no markets returns an
// empty result, not an error.
func (e *Engine) RankWallets(ctx context.Context, req rank.Request) (*RankResult, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	start := time.Now()
	ctx, cancel := context.WithTimeout(ctx, e.cfg.RequestTimeout)
	defer cancel()

	scope, empty, err := e.resolveScope(ctx, req.Category)
	if err != nil {
		metrics.RecordRankRequest(time.Since(start), 0, "error")
		return nil, err
	}
	if empty {
		metrics.RecordRankRequest(time.Since(start), 0, "success")
		return &RankResult{Profiles: []aggregate.Profile{}}, nil
	}

	window := time.Duration(req.Hours) * time.Hour
	ingested, err := e.ingestor.Fetch(ctx, window, scope)
	if err != nil {
		metrics.RecordRankRequest(time.Since(start), 0, "error")
		return nil, err
	}

	profiles := aggregate.Build(ingested.Trades, ingested.Activities, ingested.Failed)
	ranked := req.Apply(profiles, time.Now().UTC())

	status := "success"
	if ingested.Partial {
		status = "partial"
	}
	metrics.RecordRankRequest(time.Since(start), len(profiles), status)

	e.log.WithFields(logrus.Fields{
		"category": req.Category,
		"hours":    req.Hours,
		"wallets":  len(profiles),
		"matched":  ranked.TotalMatched,
		"partial":  ingested.Partial,
		"duration": time.Since(start).Seconds(),
	}).Info("Ranking pass complete")

	return &RankResult{
		Profiles:      ranked.Profiles,
		TotalMatched:  ranked.TotalMatched,
		Partial:       ingested.Partial,
		FailedWallets: ingested.FailedWallets,
	}, nil
}

// resolveScope maps a category to the set of markets it contains.
// Trending (or empty) is the meta-category: nil scope, no restriction.
// empty=true means the category exists in request terms but matched no
// markets, so the caller can short-circuit to an empty result.
func (e *Engine) resolveScope(ctx context.Context, category string) (scope *ingest.Scope, empty bool, err error) {
	tag := gammaapi.CategoryTag(category)
	if tag == "" {
		return nil, false, nil
	}

	events, err := e.markets.GetEvents(ctx, gammaapi.EventParams{
		Limit:  100,
		Tag:    tag,
		Active: true,
	})
	if err != nil {
		return nil, false, fmt.Errorf("%w: resolve category %q: %v", ingest.ErrUpstreamUnavailable, category, err)
	}
	if len(events) == 0 {
		return nil, true, nil
	}

	var conditionIDs, eventSlugs []string
	for _, ev := range events {
		eventSlugs = append(eventSlugs, ev.Slug)
		for _, m := range ev.Markets {
			conditionIDs = append(conditionIDs, m.ConditionID)
		}
	}

	return ingest.NewScope(conditionIDs, eventSlugs), false, nil
}

// WatchOptions narrows a watch-list request before and after scoring.
// Zero values impose no constraint.
type WatchOptions struct {
	Limit        int
	MinScore     int
	MinVolume    float64 // 24h volume floor, applied before scoring
	MinLiquidity float64 // liquidity floor, applied before scoring
	CreatedDays  int     // only markets created within this many days
}

// ScoreMarkets fetches active markets for a category, scores them, and
// returns them ordered by score. Pre-filters cut the candidate set before
// scoring; MinScore cuts after.
func (e *Engine) ScoreMarkets(ctx context.Context, category string, opts WatchOptions) ([]score.ScoredMarket, error) {
	ctx, cancel := context.WithTimeout(ctx, e.cfg.RequestTimeout)
	defer cancel()

	events, err := e.markets.GetEvents(ctx, gammaapi.EventParams{
		Limit:  100,
		Tag:    gammaapi.CategoryTag(category),
		Order:  "volume24hr",
		Active: true,
	})
	if err != nil {
		metrics.RecordScoreRequest(nil, err)
		return nil, fmt.Errorf("%w: fetch markets: %v", ingest.ErrUpstreamUnavailable, err)
	}

	now := time.Now().UTC()

	var snaps []score.Snapshot
	for _, ev := range events {
		s := snapshotFromEvent(ev)
		if opts.MinVolume > 0 && s.Volume24h < opts.MinVolume {
			continue
		}
		if opts.MinLiquidity > 0 && s.Liquidity < opts.MinLiquidity {
			continue
		}
		if opts.CreatedDays > 0 {
			if s.CreatedAt.IsZero() || now.Sub(s.CreatedAt) > time.Duration(opts.CreatedDays)*24*time.Hour {
				continue
			}
		}
		snaps = append(snaps, s)
	}

	scored := score.Rank(snaps, now)

	if opts.MinScore > 0 {
		kept := scored[:0]
		for _, m := range scored {
			if m.Score >= opts.MinScore {
				kept = append(kept, m)
			}
		}
		scored = kept
	}

	if opts.Limit > 0 && len(scored) > opts.Limit {
		scored = scored[:opts.Limit]
	}

	values := make([]int, len(scored))
	for i, m := range scored {
		values[i] = m.Score
	}
	metrics.RecordScoreRequest(values, nil)

	return scored, nil
}

// Trending periods accepted by TrendingMarkets.
const (
	Period24h = "24h"
	Period1wk = "1wk"
	Period1mo = "1mo"
)

// TrendingMarkets returns active markets ordered by volume over the given
// period, scored for context. minVolume floors on the period's own volume.
func (e *Engine) TrendingMarkets(ctx context.Context, period string, limit int, minVolume float64) ([]score.ScoredMarket, error) {
	var order string
	switch period {
	case "", Period24h:
		order = "volume24hr"
	case Period1wk:
		order = "volume1wk"
	case Period1mo:
		order = "volume1mo"
	default:
		return nil, &rank.ValidationError{Msg: fmt.Sprintf("unknown period %q (valid: 24h, 1wk, 1mo)", period)}
	}

	ctx, cancel := context.WithTimeout(ctx, e.cfg.RequestTimeout)
	defer cancel()

	events, err := e.markets.GetEvents(ctx, gammaapi.EventParams{
		Limit:  100,
		Order:  order,
		Active: true,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: fetch trending markets: %v", ingest.ErrUpstreamUnavailable, err)
	}

	periodVolume := func(m score.Snapshot) float64 {
		switch period {
		case Period1wk:
			return m.Volume1wk
		case Period1mo:
			return m.Volume1mo
		default:
			return m.Volume24h
		}
	}

	now := time.Now().UTC()
	out := make([]score.ScoredMarket, 0, len(events))
	for _, ev := range events {
		s := snapshotFromEvent(ev)
		if minVolume > 0 && periodVolume(s) < minVolume {
			continue
		}
		out = append(out, score.Score(s, now))
	}

	sort.SliceStable(out, func(i, j int) bool {
		return periodVolume(out[i].Snapshot) > periodVolume(out[j].Snapshot)
	})

	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// SearchMarkets fetches high-volume active markets and filters them by a
// case-insensitive substring match on title and slug. The upstream API
// has no search endpoint, so this only sees the fetched candidate set.
func (e *Engine) SearchMarkets(ctx context.Context, query string, limit int) ([]score.ScoredMarket, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, &rank.ValidationError{Msg: "search query must not be empty"}
	}

	ctx, cancel := context.WithTimeout(ctx, e.cfg.RequestTimeout)
	defer cancel()

	events, err := e.markets.GetEvents(ctx, gammaapi.EventParams{
		Limit:  100,
		Order:  "volume24hr",
		Active: true,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: search markets: %v", ingest.ErrUpstreamUnavailable, err)
	}

	needle := strings.ToLower(query)
	now := time.Now().UTC()

	var out []score.ScoredMarket
	for _, ev := range events {
		if !strings.Contains(strings.ToLower(ev.Title), needle) &&
			!strings.Contains(strings.ToLower(ev.Slug), needle) {
			continue
		}
		out = append(out, score.Score(snapshotFromEvent(ev), now))
		if limit > 0 && len(out) == limit {
			break
		}
	}
	return out, nil
}

// Outcome is one market outcome with its price as a percentage.
type Outcome struct {
	Name  string  `json:"name"`
	Price float64 `json:"price"`
}

// MarketDetail is the full view of one market for the detail endpoint.
type MarketDetail struct {
	score.ScoredMarket
	Description string    `json:"description"`
	Outcomes    []Outcome `json:"outcomes"`
}

// MarketBySlug fetches and scores a single market.
func (e *Engine) MarketBySlug(ctx context.Context, slug string) (*MarketDetail, error) {
	ctx, cancel := context.WithTimeout(ctx, e.cfg.RequestTimeout)
	defer cancel()

	ev, err := e.markets.GetEventBySlug(ctx, slug)
	if err != nil {
		if errors.Is(err, gammaapi.ErrEventNotFound) {
			return nil, fmt.Errorf("%w: %s", ErrMarketNotFound, slug)
		}
		return nil, fmt.Errorf("%w: fetch market %s: %v", ingest.ErrUpstreamUnavailable, slug, err)
	}

	detail := &MarketDetail{
		ScoredMarket: score.Score(snapshotFromEvent(*ev), time.Now().UTC()),
		Description:  ev.Description,
	}
	if len(ev.Markets) > 0 {
		names := parseJSONStrings(ev.Markets[0].Outcomes)
		prices := parseJSONFloats(ev.Markets[0].OutcomePrices)
		for i, name := range names {
			o := Outcome{Name: name}
			if i < len(prices) {
				o.Price = prices[i] * 100
			}
			detail.Outcomes = append(detail.Outcomes, o)
		}
	}
	return detail, nil
}

// snapshotFromEvent flattens a Gamma event into the scoring view. Prices
// come from the first market's outcome prices, scaled to percentages.
func snapshotFromEvent(ev gammaapi.Event) score.Snapshot {
	s := score.Snapshot{
		Slug:         ev.Slug,
		Title:        ev.Title,
		Category:     ev.Category,
		Volume24h:    ev.Volume24hr,
		Volume1wk:    ev.Volume1wk,
		Volume1mo:    ev.Volume1mo,
		Liquidity:    ev.Liquidity,
		CreatedAt:    parseEventTime(ev),
		CommentCount: ev.CommentCount,
	}

	if len(ev.Markets) > 0 {
		prices := parseJSONFloats(ev.Markets[0].OutcomePrices)
		if len(prices) > 0 {
			s.YesPrice = prices[0] * 100
		}
		if len(prices) > 1 {
			s.NoPrice = prices[1] * 100
		}
	}

	return s
}

func parseEventTime(ev gammaapi.Event) time.Time {
	for _, raw := range []string{ev.CreatedAt, ev.CreationDate} {
		if raw == "" {
			continue
		}
		if t, err := time.Parse(time.RFC3339, raw); err == nil {
			return t.UTC()
		}
	}
	return time.Time{}
}

func parseJSONStrings(raw string) []string {
	var out []string
	if err := json.Unmarshal([]byte(raw), &out); err != nil {
		return nil
	}
	return out
}

func parseJSONFloats(raw string) []float64 {
	values := parseJSONStrings(raw)
	out := make([]float64, 0, len(values))
	for _, v := range values {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return nil
		}
		out = append(out, f)
	}
	return out
}
