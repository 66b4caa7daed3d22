package ingest

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/liamashdown/polyrank/internal/metrics"
	"github.com/liamashdown/polyrank/internal/polymarket/dataapi"
)

// ErrUpstreamUnavailable marks a systemic upstream failure: the bulk trade
// feed itself could not be read. Per-wallet activity failures are never
// wrapped in this; they degrade the result instead of failing it.
var ErrUpstreamUnavailable = errors.New("upstream data source unavailable")

// TradeFeed is the bulk trade feed consumed by the ingestor
type TradeFeed interface {
	GetTrades(ctx context.Context, params dataapi.TradeParams) (*dataapi.TradesResponse, error)
}

// ActivityFeed is the per-wallet activity feed consumed by the ingestor
type ActivityFeed interface {
	GetWalletActivity(ctx context.Context, wallet string, limit int) ([]dataapi.Activity, error)
}

// Scope restricts ingestion to trades originating from a set of markets.
// A nil *Scope means no restriction (the Trending meta-category).
type Scope struct {
	conditionIDs map[string]bool
	eventSlugs   map[string]bool
}

// NewScope builds a Scope from market condition ids and event slugs.
func NewScope(conditionIDs, eventSlugs []string) *Scope {
	s := &Scope{
		conditionIDs: make(map[string]bool, len(conditionIDs)),
		eventSlugs:   make(map[string]bool, len(eventSlugs)),
	}
	for _, id := range conditionIDs {
		if id != "" {
			s.conditionIDs[id] = true
		}
	}
	for _, slug := range eventSlugs {
		if slug != "" {
			s.eventSlugs[slug] = true
		}
	}
	return s
}

// Contains reports whether a trade belongs to the scoped market set.
func (s *Scope) Contains(t TradeRecord) bool {
	if s == nil {
		return true
	}
	return s.conditionIDs[t.ConditionID] || s.eventSlugs[t.EventSlug]
}

// Size returns the number of scoped markets.
func (s *Scope) Size() int {
	if s == nil {
		return 0
	}
	return len(s.conditionIDs) + len(s.eventSlugs)
}

// Result holds one window's normalized records plus ingestion metadata.
// FailedWallets distinguishes "zero activity" from "activity fetch failed";
// wallets in Failed contribute no activity gain but stay in the result.
type Result struct {
	Trades        []TradeRecord
	Activities    []ActivityRecord
	Wallets       []string // distinct wallet addresses, ascending
	Failed        map[string]bool
	FailedWallets int
	Partial       bool
}

// Ingestor fetches trade and activity records for a lookback window.
// One Ingestor may serve concurrent requests: it holds no per-request
// state, and each Fetch call runs its own worker pool.
type Ingestor struct {
	trades         TradeFeed
	activity       ActivityFeed
	workers        int
	activityLimit  int
	tradeLimit     int
	tradeLimitWide int
	log            *logrus.Logger
}

// New creates an Ingestor with a bounded activity-fetch worker pool.
func New(trades TradeFeed, activity ActivityFeed, workers, activityLimit, tradeLimit, tradeLimitWide int, log *logrus.Logger) *Ingestor {
	if workers < 1 {
		workers = 1
	}
	return &Ingestor{
		trades:         trades,
		activity:       activity,
		workers:        workers,
		activityLimit:  activityLimit,
		tradeLimit:     tradeLimit,
		tradeLimitWide: tradeLimitWide,
		log:            log,
	}
}

// Fetch retrieves all trades in the window (scoped if scope is non-nil),
// then fans out per-wallet activity fetches through the worker pool.
//
// A bulk feed error is fatal and wrapped in ErrUpstreamUnavailable. A
// per-wallet activity error only marks that wallet as failed. If the
// context deadline expires mid-fan-out, outstanding wallets are marked
// failed and the result is returned partial rather than blocking.
func (i *Ingestor) Fetch(ctx context.Context, window time.Duration, scope *Scope) (*Result, error) {
	cutoff := time.Now().UTC().Add(-window)

	limit := i.tradeLimit
	if window > 24*time.Hour {
		limit = i.tradeLimitWide
	}

	resp, err := i.trades.GetTrades(ctx, dataapi.TradeParams{
		Limit:          limit,
		TakerOnly:      true,
		TimestampAfter: cutoff.Unix(),
	})
	if err != nil {
		return nil, fmt.Errorf("%w: fetch trades: %v", ErrUpstreamUnavailable, err)
	}

	result := &Result{Failed: make(map[string]bool)}
	for _, raw := range resp.Trades {
		if raw.ProxyWallet == "" {
			continue
		}
		rec := normalizeTrade(raw)
		if rec.Timestamp.Before(cutoff) {
			continue
		}
		if !scope.Contains(rec) {
			continue
		}
		result.Trades = append(result.Trades, rec)
	}

	sort.Slice(result.Trades, func(a, b int) bool {
		ta, tb := result.Trades[a], result.Trades[b]
		if !ta.Timestamp.Equal(tb.Timestamp) {
			return ta.Timestamp.Before(tb.Timestamp)
		}
		return ta.Wallet < tb.Wallet
	})

	seen := make(map[string]bool)
	for _, t := range result.Trades {
		if !seen[t.Wallet] {
			seen[t.Wallet] = true
			result.Wallets = append(result.Wallets, t.Wallet)
		}
	}
	sort.Strings(result.Wallets)

	i.log.WithFields(logrus.Fields{
		"trades":  len(result.Trades),
		"wallets": len(result.Wallets),
		"scoped":  scope.Size(),
	}).Debug("Trade feed ingested")

	if len(result.Wallets) == 0 {
		return result, nil
	}

	i.fetchActivities(ctx, result)

	sort.Slice(result.Activities, func(a, b int) bool {
		aa, ab := result.Activities[a], result.Activities[b]
		if !aa.Timestamp.Equal(ab.Timestamp) {
			return aa.Timestamp.Before(ab.Timestamp)
		}
		return aa.Wallet < ab.Wallet
	})

	result.FailedWallets = len(result.Failed)
	result.Partial = result.FailedWallets > 0

	return result, nil
}

// fetchActivities runs the bounded worker pool over all distinct wallets.
func (i *Ingestor) fetchActivities(ctx context.Context, result *Result) {
	pool := make(chan struct{}, i.workers)
	for w := 0; w < i.workers; w++ {
		pool <- struct{}{}
	}

	var mu sync.Mutex
	var wg sync.WaitGroup

	for _, wallet := range result.Wallets {
		wg.Add(1)
		go func(wallet string) {
			defer wg.Done()

			// Deadline already gone: abandon without calling upstream
			if ctx.Err() != nil {
				mu.Lock()
				result.Failed[wallet] = true
				mu.Unlock()
				return
			}

			<-pool
			defer func() { pool <- struct{}{} }()

			activities, err := i.activity.GetWalletActivity(ctx, wallet, i.activityLimit)
			if err != nil {
				metrics.RecordActivityFetch("error")
				i.log.WithError(err).WithField("wallet", wallet).Warn("Activity fetch failed, using trade gain only")
				mu.Lock()
				result.Failed[wallet] = true
				mu.Unlock()
				return
			}
			metrics.RecordActivityFetch("success")

			records := make([]ActivityRecord, 0, len(activities))
			for _, a := range activities {
				records = append(records, normalizeActivity(wallet, a))
			}

			mu.Lock()
			result.Activities = append(result.Activities, records...)
			mu.Unlock()
		}(wallet)
	}

	wg.Wait()
}
