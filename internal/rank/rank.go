// Package rank filters, orders, and pages wallet profiles.
package rank

import (
	"fmt"
	"sort"
	"time"

	"github.com/shopspring/decimal"

	"github.com/liamashdown/polyrank/internal/aggregate"
)

// Field names a profile attribute a criterion can test.
type Field string

const (
	FieldMoneyGain      Field = "money-gain"
	FieldMoneyLost      Field = "money-lost"
	FieldMoneySpent     Field = "money-spent"
	FieldTradeCount     Field = "trade-count"
	FieldAccountAgeDays Field = "account-age-days"
)

// Condition is the comparison a criterion applies. ConditionReset is the
// neutral state: a reset criterion matches every profile regardless of its
// threshold, which lets callers keep a criterion slot around and "turn it
// off" without deleting it.
type Condition string

const (
	ConditionReset Condition = "reset"
	ConditionMore  Condition = "more"
	ConditionLess  Condition = "less"
	ConditionEqual Condition = "equal"
)

// Visibility filters profiles on the presence of a display handle.
type Visibility string

const (
	VisibilityReset  Visibility = "reset"
	VisibilityPublic Visibility = "public"
	VisibilityHidden Visibility = "hidden"
)

// SortKey selects the ordering attribute.
type SortKey string

const (
	SortByProfit       SortKey = "profit"
	SortByTrades       SortKey = "trades"
	SortByActivityGain SortKey = "activity_gain"
)

// Criterion is one filter clause. A request's criteria are ANDed together.
type Criterion struct {
	Field     Field     `json:"field"`
	Condition Condition `json:"condition"`
	Threshold float64   `json:"threshold"`
}

// Request describes one ranking query.
type Request struct {
	Category   string      `json:"category"`
	Hours      int         `json:"hours"`
	Criteria   []Criterion `json:"criteria"`
	Visibility Visibility  `json:"visibility"`
	SortBy     SortKey     `json:"sort_by"`
	Limit      int         `json:"limit"`
	Offset     int         `json:"offset"`
}

// Result is a ranked page of profiles plus the total match count before
// paging, so callers can build pagination without a second query.
type Result struct {
	Profiles     []aggregate.Profile
	TotalMatched int
}

// ValidationError marks a request rejected before any upstream fetch.
type ValidationError struct {
	Msg string
}

func (e *ValidationError) Error() string { return e.Msg }

func invalidf(format string, args ...any) error {
	return &ValidationError{Msg: fmt.Sprintf(format, args...)}
}

const (
	minHours = 1
	maxHours = 720 // 30 days
	maxLimit = 100
)

// nonNegativeFields can never hold a negative value, so a non-reset
// criterion with a negative threshold against them is a contradiction
// (always or never true) and is rejected. money-gain can go either way
// and accepts negative thresholds.
var nonNegativeFields = map[Field]bool{
	FieldMoneyLost:      true,
	FieldMoneySpent:     true,
	FieldTradeCount:     true,
	FieldAccountAgeDays: true,
}

// Validate normalizes defaults and rejects malformed requests.
func (r *Request) Validate() error {
	if r.Hours == 0 {
		r.Hours = 24
	}
	if r.Hours < minHours || r.Hours > maxHours {
		return invalidf("hours must be between %d and %d, got %d", minHours, maxHours, r.Hours)
	}

	if r.Limit == 0 {
		r.Limit = 20
	}
	if r.Limit < 1 || r.Limit > maxLimit {
		return invalidf("limit must be between 1 and %d, got %d", maxLimit, r.Limit)
	}
	if r.Offset < 0 {
		return invalidf("offset must not be negative, got %d", r.Offset)
	}

	if r.Visibility == "" {
		r.Visibility = VisibilityReset
	}
	switch r.Visibility {
	case VisibilityReset, VisibilityPublic, VisibilityHidden:
	default:
		return invalidf("unknown visibility %q", r.Visibility)
	}

	if r.SortBy == "" {
		r.SortBy = SortByProfit
	}
	switch r.SortBy {
	case SortByProfit, SortByTrades, SortByActivityGain:
	default:
		return invalidf("unknown sort key %q", r.SortBy)
	}

	for i, c := range r.Criteria {
		switch c.Field {
		case FieldMoneyGain, FieldMoneyLost, FieldMoneySpent, FieldTradeCount, FieldAccountAgeDays:
		default:
			return invalidf("criterion %d: unknown field %q", i, c.Field)
		}
		switch c.Condition {
		case ConditionReset, ConditionMore, ConditionLess, ConditionEqual:
		default:
			return invalidf("criterion %d: unknown condition %q", i, c.Condition)
		}
		if c.Condition != ConditionReset && c.Threshold < 0 && nonNegativeFields[c.Field] {
			return invalidf("criterion %d: field %q cannot be negative, threshold %v is unsatisfiable", i, c.Field, c.Threshold)
		}
	}

	return nil
}

// Apply filters profiles through the request's criteria and visibility
// mode, sorts the survivors, and returns the requested page. The full
// survivor set is sorted before the limit is applied so a small page
// still reflects the global ordering.
func (r *Request) Apply(profiles []aggregate.Profile, now time.Time) Result {
	matched := make([]aggregate.Profile, 0, len(profiles))
	for _, p := range profiles {
		if r.matchesVisibility(p) && r.matches(p, now) {
			matched = append(matched, p)
		}
	}

	sort.Slice(matched, func(i, j int) bool {
		a, b := matched[i], matched[j]
		switch r.SortBy {
		case SortByTrades:
			if a.TradeCount != b.TradeCount {
				return a.TradeCount > b.TradeCount
			}
		case SortByActivityGain:
			if cmp := a.ActivityGain.Cmp(b.ActivityGain); cmp != 0 {
				return cmp > 0
			}
		default:
			if cmp := a.RealizedGain.Cmp(b.RealizedGain); cmp != 0 {
				return cmp > 0
			}
		}
		return a.Wallet < b.Wallet
	})

	total := len(matched)

	page := matched
	if r.Offset >= len(page) {
		page = nil
	} else {
		page = page[r.Offset:]
	}
	if len(page) > r.Limit {
		page = page[:r.Limit]
	}

	out := make([]aggregate.Profile, len(page))
	copy(out, page)

	return Result{Profiles: out, TotalMatched: total}
}

// matchesVisibility applies the handle-presence filter: public keeps only
// profiles with a display handle, hidden keeps only anonymous ones, and
// reset keeps everything.
func (r *Request) matchesVisibility(p aggregate.Profile) bool {
	switch r.Visibility {
	case VisibilityPublic:
		return p.Handle != ""
	case VisibilityHidden:
		return p.Handle == ""
	}
	return true
}

func (r *Request) matches(p aggregate.Profile, now time.Time) bool {
	for _, c := range r.Criteria {
		if c.Condition == ConditionReset {
			continue
		}
		if !compare(fieldValue(p, c.Field, now), c.Condition, decimal.NewFromFloat(c.Threshold)) {
			return false
		}
	}
	return true
}

func fieldValue(p aggregate.Profile, f Field, now time.Time) decimal.Decimal {
	switch f {
	case FieldMoneyGain:
		return p.RealizedGain
	case FieldMoneyLost:
		return p.MoneyLost()
	case FieldMoneySpent:
		return p.MoneySpent()
	case FieldTradeCount:
		return decimal.NewFromInt(int64(p.TradeCount))
	case FieldAccountAgeDays:
		if p.FirstSeen.IsZero() {
			return decimal.Zero
		}
		days := now.Sub(p.FirstSeen).Hours() / 24
		return decimal.NewFromFloat(days)
	}
	return decimal.Zero
}

func compare(value decimal.Decimal, cond Condition, threshold decimal.Decimal) bool {
	switch cond {
	case ConditionMore:
		return value.GreaterThan(threshold)
	case ConditionLess:
		return value.LessThan(threshold)
	case ConditionEqual:
		return value.Equal(threshold)
	}
	return true
}
