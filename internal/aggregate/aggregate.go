// Package aggregate folds ingested trade and activity records into one
// profile per wallet. Aggregation is a pure function of its inputs:
// re-running it over the same record set yields identical profiles.
//
// The "new account" predicate is a documented approximation. first_seen is
// the earliest timestamp among the records fetched for the window, so a
// wallet active before the window but quiet during it still tests as new
// when its only visible records fall inside the window. The upstream data
// source does not expose account creation dates; this is a heuristic, not
// ground truth.
package aggregate

import (
	"sort"
	"time"

	"github.com/shopspring/decimal"

	"github.com/liamashdown/polyrank/internal/ingest"
)

// Profile is the per-wallet aggregate over one fetched record set.
// Gains are kept at full decimal precision; rounding to cents happens at
// the presentation boundary only.
type Profile struct {
	Wallet string
	Handle string // display pseudonym, empty when the profile is hidden

	TradeGain    decimal.Decimal // SELL proceeds - BUY cost over window trades
	ActivityGain decimal.Decimal // sum of REDEEM amounts
	RealizedGain decimal.Decimal // max of the two estimates, see Build

	BuyVolume  decimal.Decimal
	SellVolume decimal.Decimal

	BuyCount      int
	SellCount     int
	TradeCount    int
	ActivityCount int
	UniqueMarkets int

	FirstSeen time.Time

	// ActivityUnavailable is set when the wallet's activity fetch failed;
	// RealizedGain then falls back to TradeGain alone.
	ActivityUnavailable bool
}

// NewInWindow reports whether the wallet's earliest visible record falls
// inside the lookback window ending at now (the approximation above).
func (p Profile) NewInWindow(now time.Time, window time.Duration) bool {
	if p.FirstSeen.IsZero() {
		return false
	}
	return !p.FirstSeen.Before(now.Add(-window))
}

// MoneyLost is the magnitude of a negative trade result, zero otherwise.
func (p Profile) MoneyLost() decimal.Decimal {
	if p.TradeGain.IsNegative() {
		return p.TradeGain.Neg()
	}
	return decimal.Zero
}

// MoneySpent is the gross BUY volume over the window.
func (p Profile) MoneySpent() decimal.Decimal {
	return p.BuyVolume
}

// Build folds records into one Profile per distinct wallet address.
// failed marks wallets whose activity fetch did not complete.
//
// trade_gain and activity_gain are alternative estimates of the same
// realized profit (activity data is often incomplete), so realized gain
// takes the higher of the two rather than their sum. Output is ordered by
// ascending wallet address so identical inputs produce identical output.
func Build(trades []ingest.TradeRecord, activities []ingest.ActivityRecord, failed map[string]bool) []Profile {
	byWallet := make(map[string]*accumulator)

	acc := func(wallet string) *accumulator {
		a, ok := byWallet[wallet]
		if !ok {
			a = &accumulator{markets: make(map[string]bool)}
			byWallet[wallet] = a
		}
		return a
	}

	for _, t := range trades {
		a := acc(t.Wallet)
		notional := t.Notional()

		switch t.Side {
		case ingest.SideBuy:
			a.buyCount++
			a.buyVolume = a.buyVolume.Add(notional)
		case ingest.SideSell:
			a.sellCount++
			a.sellVolume = a.sellVolume.Add(notional)
		default:
			continue
		}

		if t.Market != "" {
			a.markets[t.Market] = true
		}
		if a.handle == "" && t.Handle != "" {
			a.handle = t.Handle
		}
		a.touch(t.Timestamp)
	}

	for _, rec := range activities {
		a, ok := byWallet[rec.Wallet]
		if !ok {
			// Activity for a wallet with no in-window trades; the wallet
			// was still observed, so it gets a profile.
			a = acc(rec.Wallet)
		}
		a.activityCount++
		if rec.Kind == ingest.KindRedeem {
			a.activityGain = a.activityGain.Add(rec.Amount)
		}
		a.touch(rec.Timestamp)
	}

	profiles := make([]Profile, 0, len(byWallet))
	for wallet, a := range byWallet {
		tradeGain := a.sellVolume.Sub(a.buyVolume)

		p := Profile{
			Wallet:              wallet,
			Handle:              a.handle,
			TradeGain:           tradeGain,
			ActivityGain:        a.activityGain,
			BuyVolume:           a.buyVolume,
			SellVolume:          a.sellVolume,
			BuyCount:            a.buyCount,
			SellCount:           a.sellCount,
			TradeCount:          a.buyCount + a.sellCount,
			ActivityCount:       a.activityCount,
			UniqueMarkets:       len(a.markets),
			FirstSeen:           a.firstSeen,
			ActivityUnavailable: failed[wallet],
		}

		if p.ActivityUnavailable {
			p.RealizedGain = tradeGain
		} else {
			p.RealizedGain = decimal.Max(tradeGain, a.activityGain)
		}

		profiles = append(profiles, p)
	}

	sort.Slice(profiles, func(i, j int) bool {
		return profiles[i].Wallet < profiles[j].Wallet
	})

	return profiles
}

type accumulator struct {
	handle        string
	buyVolume     decimal.Decimal
	sellVolume    decimal.Decimal
	activityGain  decimal.Decimal
	buyCount      int
	sellCount     int
	activityCount int
	markets       map[string]bool
	firstSeen     time.Time
}

func (a *accumulator) touch(ts time.Time) {
	if a.firstSeen.IsZero() || ts.Before(a.firstSeen) {
		a.firstSeen = ts
	}
}
