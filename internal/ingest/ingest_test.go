package ingest

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"testing"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/liamashdown/polyrank/internal/polymarket/dataapi"
)

type stubTradeFeed struct {
	trades []dataapi.Trade
	err    error
}

func (s *stubTradeFeed) GetTrades(ctx context.Context, params dataapi.TradeParams) (*dataapi.TradesResponse, error) {
	if s.err != nil {
		return nil, s.err
	}
	return &dataapi.TradesResponse{Trades: s.trades, Count: len(s.trades)}, nil
}

type stubActivityFeed struct {
	activities map[string][]dataapi.Activity
	failFor    map[string]bool
}

func (s *stubActivityFeed) GetWalletActivity(ctx context.Context, wallet string, limit int) ([]dataapi.Activity, error) {
	if s.failFor[wallet] {
		return nil, errors.New("activity feed timeout")
	}
	return s.activities[wallet], nil
}

func quietLogger() *logrus.Logger {
	log := logrus.New()
	log.SetLevel(logrus.PanicLevel)
	return log
}

func rawTrade(wallet string, ts time.Time) dataapi.Trade {
	return dataapi.Trade{
		ProxyWallet: wallet,
		Side:        "BUY",
		Price:       0.5,
		Size:        10,
		Timestamp:   ts.Unix(),
		Slug:        "some-market",
		EventSlug:   "some-event",
		ConditionID: "0xcond",
	}
}

func TestFetchBulkFailureIsFatal(t *testing.T) {
	trades := &stubTradeFeed{err: errors.New("connection refused")}
	activity := &stubActivityFeed{}
	ing := New(trades, activity, 4, 100, 2000, 5000, quietLogger())

	_, err := ing.Fetch(context.Background(), 24*time.Hour, nil)
	if !errors.Is(err, ErrUpstreamUnavailable) {
		t.Fatalf("expected ErrUpstreamUnavailable, got %v", err)
	}
}

func TestFetchPartialOnActivityFailures(t *testing.T) {
	now := time.Now().UTC()

	var raw []dataapi.Trade
	failFor := make(map[string]bool)
	for i := 0; i < 50; i++ {
		wallet := fmt.Sprintf("0x%03d", i)
		raw = append(raw, rawTrade(wallet, now.Add(-time.Minute)))
		if i < 3 {
			failFor[wallet] = true
		}
	}

	trades := &stubTradeFeed{trades: raw}
	activity := &stubActivityFeed{failFor: failFor}
	ing := New(trades, activity, 8, 100, 2000, 5000, quietLogger())

	result, err := ing.Fetch(context.Background(), 24*time.Hour, nil)
	if err != nil {
		t.Fatalf("per-wallet failures must not fail the fetch: %v", err)
	}

	if len(result.Wallets) != 50 {
		t.Errorf("wallets: got %d, want 50; failed wallets stay in the result", len(result.Wallets))
	}
	if !result.Partial {
		t.Error("expected partial result")
	}
	if result.FailedWallets != 3 {
		t.Errorf("failed wallets: got %d, want 3", result.FailedWallets)
	}
	for i := 0; i < 3; i++ {
		if !result.Failed[fmt.Sprintf("0x%03d", i)] {
			t.Errorf("wallet 0x%03d should be marked failed", i)
		}
	}
}

func TestFetchNoFailuresIsComplete(t *testing.T) {
	now := time.Now().UTC()
	trades := &stubTradeFeed{trades: []dataapi.Trade{rawTrade("0xabc", now.Add(-time.Hour))}}
	activity := &stubActivityFeed{
		activities: map[string][]dataapi.Activity{
			"0xabc": {{Type: "REDEEM", USDCSize: 42, Timestamp: now.Unix()}},
		},
	}
	ing := New(trades, activity, 4, 100, 2000, 5000, quietLogger())

	result, err := ing.Fetch(context.Background(), 24*time.Hour, nil)
	if err != nil {
		t.Fatal(err)
	}
	if result.Partial {
		t.Error("expected complete result")
	}
	if len(result.Activities) != 1 {
		t.Fatalf("activities: got %d, want 1", len(result.Activities))
	}
	if result.Activities[0].Kind != KindRedeem {
		t.Errorf("kind: got %s, want REDEEM", result.Activities[0].Kind)
	}
}

func TestFetchWindowCutoff(t *testing.T) {
	now := time.Now().UTC()
	trades := &stubTradeFeed{trades: []dataapi.Trade{
		rawTrade("0xnew", now.Add(-time.Hour)),
		rawTrade("0xold", now.Add(-48*time.Hour)),
	}}
	ing := New(trades, &stubActivityFeed{}, 4, 100, 2000, 5000, quietLogger())

	result, err := ing.Fetch(context.Background(), 24*time.Hour, nil)
	if err != nil {
		t.Fatal(err)
	}
	if len(result.Wallets) != 1 || result.Wallets[0] != "0xnew" {
		t.Errorf("expected only the in-window wallet, got %v", result.Wallets)
	}
}

func TestFetchScopeFiltering(t *testing.T) {
	now := time.Now().UTC()

	inScope := rawTrade("0xaaa", now.Add(-time.Minute))
	bySlug := rawTrade("0xbbb", now.Add(-time.Minute))
	bySlug.ConditionID = "0xother"
	bySlug.EventSlug = "scoped-event"
	outOfScope := rawTrade("0xccc", now.Add(-time.Minute))
	outOfScope.ConditionID = "0xother"
	outOfScope.EventSlug = "other-event"

	trades := &stubTradeFeed{trades: []dataapi.Trade{inScope, bySlug, outOfScope}}
	ing := New(trades, &stubActivityFeed{}, 4, 100, 2000, 5000, quietLogger())

	scope := NewScope([]string{"0xcond"}, []string{"scoped-event"})
	result, err := ing.Fetch(context.Background(), 24*time.Hour, scope)
	if err != nil {
		t.Fatal(err)
	}

	want := []string{"0xaaa", "0xbbb"}
	if len(result.Wallets) != len(want) {
		t.Fatalf("wallets: got %v, want %v", result.Wallets, want)
	}
	for i, wallet := range want {
		if result.Wallets[i] != wallet {
			t.Errorf("position %d: got %s, want %s", i, result.Wallets[i], wallet)
		}
	}
}

func TestFetchDeterministicOrder(t *testing.T) {
	now := time.Now().UTC()
	trades := &stubTradeFeed{trades: []dataapi.Trade{
		rawTrade("0xccc", now.Add(-time.Minute)),
		rawTrade("0xaaa", now.Add(-time.Minute)),
		rawTrade("0xbbb", now.Add(-2*time.Minute)),
	}}
	ing := New(trades, &stubActivityFeed{}, 4, 100, 2000, 5000, quietLogger())

	result, err := ing.Fetch(context.Background(), 24*time.Hour, nil)
	if err != nil {
		t.Fatal(err)
	}

	if !sort.StringsAreSorted(result.Wallets) {
		t.Errorf("wallets not sorted: %v", result.Wallets)
	}
	for i := 1; i < len(result.Trades); i++ {
		if result.Trades[i].Timestamp.Before(result.Trades[i-1].Timestamp) {
			t.Errorf("trades not in timestamp order at %d", i)
		}
	}
}

func TestFetchCancelledContextAbandonsWallets(t *testing.T) {
	now := time.Now().UTC()
	trades := &stubTradeFeed{trades: []dataapi.Trade{rawTrade("0xabc", now.Add(-time.Minute))}}
	ing := New(trades, &stubActivityFeed{}, 4, 100, 2000, 5000, quietLogger())

	// Trade fetch succeeds against the stub, then the fan-out sees the
	// cancelled context and marks every wallet failed.
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	result, err := ing.Fetch(ctx, 24*time.Hour, nil)
	if err != nil {
		t.Fatal(err)
	}
	if !result.Partial || result.FailedWallets != 1 {
		t.Errorf("expected one abandoned wallet, got partial=%v failed=%d", result.Partial, result.FailedWallets)
	}
}
