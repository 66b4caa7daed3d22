package gammaapi

import "strings"

// Market represents a Gamma API market inside an event
type Market struct {
	ID             string  `json:"id"`
	ConditionID    string  `json:"conditionId"`
	Slug           string  `json:"slug"`
	Question       string  `json:"question"`
	GroupItemTitle string  `json:"groupItemTitle"`
	Outcomes       string  `json:"outcomes"`      // JSON array, e.g. `["Yes","No"]`
	OutcomePrices  string  `json:"outcomePrices"` // JSON array, e.g. `["0.42","0.58"]`
	VolumeNum      float64 `json:"volumeNum"`
	LiquidityNum   float64 `json:"liquidityNum"`
	Active         bool    `json:"active"`
	Closed         bool    `json:"closed"`
}

// Event represents a Gamma API event with its volume/liquidity metrics
type Event struct {
	ID           string   `json:"id"`
	Slug         string   `json:"slug"`
	Title        string   `json:"title"`
	Description  string   `json:"description"`
	Category     string   `json:"category"`
	CreatedAt    string   `json:"createdAt"` // RFC3339
	CreationDate string   `json:"creationDate"`
	StartDate    string   `json:"startDate"`
	EndDate      string   `json:"endDate"`
	Volume       float64  `json:"volume"`
	Volume24hr   float64  `json:"volume24hr"`
	Volume1wk    float64  `json:"volume1wk"`
	Volume1mo    float64  `json:"volume1mo"`
	Liquidity    float64  `json:"liquidity"`
	CommentCount int      `json:"commentCount"`
	Active       bool     `json:"active"`
	Closed       bool     `json:"closed"`
	Markets      []Market `json:"markets"`
}

// EventParams holds parameters for the GetEvents call
type EventParams struct {
	Limit     int
	Tag       string // category tag; empty means no tag filter
	Order     string // e.g. volume24hr
	Ascending bool
	Active    bool // only active (non-closed) events
}

// TrendingCategory is the reserved meta-category: it means "no category
// filter", not a literal tag match.
const TrendingCategory = "Trending"

// CategoryTag maps a display category to the lowercase tag the Gamma API
// expects. The Trending meta-category maps to the empty tag.
func CategoryTag(category string) string {
	if category == "" || category == TrendingCategory {
		return ""
	}
	tag := strings.ToLower(category)
	tag = strings.ReplaceAll(tag, " & ", "-")
	tag = strings.ReplaceAll(tag, " ", "-")
	return tag
}
