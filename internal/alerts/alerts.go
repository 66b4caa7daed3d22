package alerts

import (
	"context"
	"time"
)

// Severity represents alert severity
type Severity string

const (
	SeverityInfo  Severity = "INFO"
	SeverityWarn  Severity = "WARN"
	SeverityAlert Severity = "ALERT"
)

// Payload contains all information for a market alert
type Payload struct {
	Severity    Severity
	MarketSlug  string
	MarketTitle string
	MarketURL   string
	Category    string
	Score       int
	Reasons     []string
	Volume24h   float64
	Liquidity   float64
	YesPrice    float64 // percent
	Timestamp   time.Time
	Environment string
}

// Sender defines the interface for alert senders
type Sender interface {
	Send(ctx context.Context, payload *Payload) error
}
