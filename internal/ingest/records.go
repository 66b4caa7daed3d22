package ingest

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/liamashdown/polyrank/internal/polymarket/dataapi"
)

// Side is the taker side of a trade
type Side string

const (
	SideBuy  Side = "BUY"
	SideSell Side = "SELL"
)

// ActivityKind classifies an activity record
type ActivityKind string

const (
	KindTrade  ActivityKind = "TRADE"
	KindRedeem ActivityKind = "REDEEM"
	KindOther  ActivityKind = "OTHER"
)

// TradeRecord is a normalized trade, immutable once fetched.
// Price is probability-priced (0..1); Size is the share quantity.
type TradeRecord struct {
	Wallet      string
	Handle      string
	Side        Side
	Price       decimal.Decimal
	Size        decimal.Decimal
	Market      string // market slug
	EventSlug   string
	ConditionID string
	Timestamp   time.Time
}

// Notional returns price x size in currency units.
func (t TradeRecord) Notional() decimal.Decimal {
	return t.Price.Mul(t.Size)
}

// ActivityRecord is a normalized activity entry, immutable once fetched.
// Amount is signed: positive for value flowing to the wallet (REDEEM,
// TRADE sells), negative for value leaving it (TRADE buys).
type ActivityRecord struct {
	Wallet    string
	Kind      ActivityKind
	Amount    decimal.Decimal
	Timestamp time.Time
}

func normalizeTrade(t dataapi.Trade) TradeRecord {
	return TradeRecord{
		Wallet:      t.ProxyWallet,
		Handle:      t.Pseudonym,
		Side:        Side(strings.ToUpper(t.Side)),
		Price:       decimal.NewFromFloat(t.Price),
		Size:        decimal.NewFromFloat(tradeSize(t)),
		Market:      t.Slug,
		EventSlug:   t.EventSlug,
		ConditionID: t.ConditionID,
		Timestamp:   time.Unix(t.Timestamp, 0).UTC(),
	}
}

func tradeSize(t dataapi.Trade) float64 {
	if t.Size > 0 {
		return t.Size
	}
	return t.USDCSize
}

func normalizeActivity(wallet string, a dataapi.Activity) ActivityRecord {
	kind := KindOther
	switch strings.ToUpper(a.Type) {
	case "TRADE":
		kind = KindTrade
	case "REDEEM":
		kind = KindRedeem
	}

	amount := decimal.NewFromFloat(activityAmount(a))
	if kind == KindTrade && strings.ToUpper(a.Side) == "BUY" {
		amount = amount.Neg()
	}

	return ActivityRecord{
		Wallet:    wallet,
		Kind:      kind,
		Amount:    amount,
		Timestamp: time.Unix(a.Timestamp, 0).UTC(),
	}
}

func activityAmount(a dataapi.Activity) float64 {
	if a.USDCSize > 0 {
		return a.USDCSize
	}
	return a.Size
}
