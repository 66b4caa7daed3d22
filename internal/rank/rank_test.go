package rank

import (
	"errors"
	"math/rand"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/liamashdown/polyrank/internal/aggregate"
)

func profile(wallet string, gain float64, trades int) aggregate.Profile {
	return aggregate.Profile{
		Wallet:       wallet,
		TradeGain:    decimal.NewFromFloat(gain),
		RealizedGain: decimal.NewFromFloat(gain),
		TradeCount:   trades,
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		req     Request
		wantErr bool
	}{
		{name: "defaults fill in", req: Request{}},
		{name: "hours too large", req: Request{Hours: 1000}, wantErr: true},
		{name: "hours max boundary", req: Request{Hours: 720}},
		{name: "negative hours", req: Request{Hours: -1}, wantErr: true},
		{name: "limit too large", req: Request{Limit: 101}, wantErr: true},
		{name: "limit max boundary", req: Request{Limit: 100}},
		{name: "negative offset", req: Request{Offset: -1}, wantErr: true},
		{name: "unknown sort key", req: Request{SortBy: "volume"}, wantErr: true},
		{name: "unknown visibility", req: Request{Visibility: "anonymous"}, wantErr: true},
		{
			name:    "unknown field",
			req:     Request{Criteria: []Criterion{{Field: "win-rate", Condition: ConditionMore}}},
			wantErr: true,
		},
		{
			name:    "unknown condition",
			req:     Request{Criteria: []Criterion{{Field: FieldMoneyGain, Condition: "between"}}},
			wantErr: true,
		},
		{
			name:    "negative threshold on trade count",
			req:     Request{Criteria: []Criterion{{Field: FieldTradeCount, Condition: ConditionMore, Threshold: -5}}},
			wantErr: true,
		},
		{
			name: "negative threshold on money gain is fine",
			req:  Request{Criteria: []Criterion{{Field: FieldMoneyGain, Condition: ConditionMore, Threshold: -100}}},
		},
		{
			name: "negative threshold under reset is ignored",
			req:  Request{Criteria: []Criterion{{Field: FieldTradeCount, Condition: ConditionReset, Threshold: -5}}},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.req.Validate()
			if (err != nil) != tt.wantErr {
				t.Fatalf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
			if err != nil {
				var verr *ValidationError
				if !errors.As(err, &verr) {
					t.Errorf("expected *ValidationError, got %T", err)
				}
			}
		})
	}
}

func TestValidateDefaults(t *testing.T) {
	req := Request{}
	if err := req.Validate(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if req.Hours != 24 {
		t.Errorf("default hours: got %d, want 24", req.Hours)
	}
	if req.Limit != 20 {
		t.Errorf("default limit: got %d, want 20", req.Limit)
	}
	if req.SortBy != SortByProfit {
		t.Errorf("default sort: got %s, want %s", req.SortBy, SortByProfit)
	}
}

func TestApplyCriteriaConjunction(t *testing.T) {
	now := time.Now().UTC()
	profiles := []aggregate.Profile{
		profile("0xaaa", 1500, 3),
		profile("0xbbb", 1500, 30),
		profile("0xccc", 500, 30),
	}

	req := Request{
		Criteria: []Criterion{
			{Field: FieldMoneyGain, Condition: ConditionMore, Threshold: 1000},
			{Field: FieldTradeCount, Condition: ConditionMore, Threshold: 10},
		},
	}
	if err := req.Validate(); err != nil {
		t.Fatal(err)
	}

	result := req.Apply(profiles, now)
	if result.TotalMatched != 1 {
		t.Fatalf("total matched: got %d, want 1", result.TotalMatched)
	}
	if result.Profiles[0].Wallet != "0xbbb" {
		t.Errorf("got %s, want 0xbbb", result.Profiles[0].Wallet)
	}
}

func TestApplyResetConditionAlwaysPasses(t *testing.T) {
	now := time.Now().UTC()
	profiles := []aggregate.Profile{
		profile("0xaaa", -100, 1),
		profile("0xbbb", 0, 0),
		profile("0xccc", 100, 50),
	}

	// The threshold value must be irrelevant under reset. Sweep the edges
	// plus a batch of random draws across a wide range.
	rng := rand.New(rand.NewSource(1))
	thresholds := []float64{-1e9, 0, 1e9}
	for i := 0; i < 100; i++ {
		thresholds = append(thresholds, (rng.Float64()-0.5)*2e9)
	}
	for _, threshold := range thresholds {
		req := Request{
			Criteria: []Criterion{
				{Field: FieldMoneyGain, Condition: ConditionReset, Threshold: threshold},
				{Field: FieldTradeCount, Condition: ConditionReset, Threshold: threshold},
			},
		}
		if err := req.Validate(); err != nil {
			t.Fatal(err)
		}

		result := req.Apply(profiles, now)
		if result.TotalMatched != len(profiles) {
			t.Errorf("threshold %v: matched %d, want %d", threshold, result.TotalMatched, len(profiles))
		}
	}
}

func TestApplyConditions(t *testing.T) {
	now := time.Now().UTC()
	profiles := []aggregate.Profile{
		profile("0xaaa", 100, 5),
		profile("0xbbb", 200, 5),
		profile("0xccc", 300, 5),
	}

	tests := []struct {
		name      string
		criterion Criterion
		want      []string
	}{
		{
			name:      "more is strict",
			criterion: Criterion{Field: FieldMoneyGain, Condition: ConditionMore, Threshold: 200},
			want:      []string{"0xccc"},
		},
		{
			name:      "less is strict",
			criterion: Criterion{Field: FieldMoneyGain, Condition: ConditionLess, Threshold: 200},
			want:      []string{"0xaaa"},
		},
		{
			name:      "equal matches exactly",
			criterion: Criterion{Field: FieldMoneyGain, Condition: ConditionEqual, Threshold: 200},
			want:      []string{"0xbbb"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := Request{Criteria: []Criterion{tt.criterion}}
			if err := req.Validate(); err != nil {
				t.Fatal(err)
			}
			result := req.Apply(profiles, now)
			if len(result.Profiles) != len(tt.want) {
				t.Fatalf("got %d profiles, want %d", len(result.Profiles), len(tt.want))
			}
			for i, wallet := range tt.want {
				if result.Profiles[i].Wallet != wallet {
					t.Errorf("position %d: got %s, want %s", i, result.Profiles[i].Wallet, wallet)
				}
			}
		})
	}
}

func TestApplySortAndTieBreak(t *testing.T) {
	now := time.Now().UTC()
	profiles := []aggregate.Profile{
		profile("0xbbb", 100, 1),
		profile("0xaaa", 100, 1),
		profile("0xccc", 200, 1),
	}

	req := Request{}
	if err := req.Validate(); err != nil {
		t.Fatal(err)
	}

	result := req.Apply(profiles, now)
	want := []string{"0xccc", "0xaaa", "0xbbb"} // ties break ascending by wallet
	for i, wallet := range want {
		if result.Profiles[i].Wallet != wallet {
			t.Errorf("position %d: got %s, want %s", i, result.Profiles[i].Wallet, wallet)
		}
	}
}

func TestApplySortByTrades(t *testing.T) {
	now := time.Now().UTC()
	profiles := []aggregate.Profile{
		profile("0xaaa", 500, 2),
		profile("0xbbb", 10, 20),
	}

	req := Request{SortBy: SortByTrades}
	if err := req.Validate(); err != nil {
		t.Fatal(err)
	}

	result := req.Apply(profiles, now)
	if result.Profiles[0].Wallet != "0xbbb" {
		t.Errorf("sort by trades should rank 0xbbb first, got %s", result.Profiles[0].Wallet)
	}
}

func TestApplyLimitAfterFullSort(t *testing.T) {
	now := time.Now().UTC()

	// 0xzzz has the highest gain but sorts last by address; the cap must
	// apply after the global sort, so it must be the one profile returned.
	profiles := []aggregate.Profile{
		profile("0xaaa", 10, 1),
		profile("0xbbb", 20, 1),
		profile("0xzzz", 999, 1),
	}

	req := Request{Limit: 1}
	if err := req.Validate(); err != nil {
		t.Fatal(err)
	}

	result := req.Apply(profiles, now)
	if len(result.Profiles) != 1 {
		t.Fatalf("got %d profiles, want 1", len(result.Profiles))
	}
	if result.Profiles[0].Wallet != "0xzzz" {
		t.Errorf("got %s, want 0xzzz", result.Profiles[0].Wallet)
	}
	if result.TotalMatched != 3 {
		t.Errorf("total matched: got %d, want 3", result.TotalMatched)
	}
}

func TestApplyOffsetPaging(t *testing.T) {
	now := time.Now().UTC()
	profiles := []aggregate.Profile{
		profile("0xaaa", 300, 1),
		profile("0xbbb", 200, 1),
		profile("0xccc", 100, 1),
	}

	req := Request{Limit: 2, Offset: 1}
	if err := req.Validate(); err != nil {
		t.Fatal(err)
	}

	result := req.Apply(profiles, now)
	want := []string{"0xbbb", "0xccc"}
	if len(result.Profiles) != len(want) {
		t.Fatalf("got %d profiles, want %d", len(result.Profiles), len(want))
	}
	for i, wallet := range want {
		if result.Profiles[i].Wallet != wallet {
			t.Errorf("position %d: got %s, want %s", i, result.Profiles[i].Wallet, wallet)
		}
	}

	// Offset past the end returns an empty page, not an error.
	req = Request{Offset: 10}
	if err := req.Validate(); err != nil {
		t.Fatal(err)
	}
	result = req.Apply(profiles, now)
	if len(result.Profiles) != 0 {
		t.Errorf("offset past end: got %d profiles, want 0", len(result.Profiles))
	}
	if result.TotalMatched != 3 {
		t.Errorf("total matched: got %d, want 3", result.TotalMatched)
	}
}

func TestApplyVisibilityFilter(t *testing.T) {
	now := time.Now().UTC()
	named := profile("0xaaa", 100, 1)
	named.Handle = "whale-hunter"
	anon := profile("0xbbb", 200, 1)
	profiles := []aggregate.Profile{named, anon}

	tests := []struct {
		name       string
		visibility Visibility
		want       []string
	}{
		{name: "public keeps only named profiles", visibility: VisibilityPublic, want: []string{"0xaaa"}},
		{name: "hidden keeps only anonymous profiles", visibility: VisibilityHidden, want: []string{"0xbbb"}},
		{name: "reset keeps everything", visibility: VisibilityReset, want: []string{"0xbbb", "0xaaa"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := Request{Visibility: tt.visibility}
			if err := req.Validate(); err != nil {
				t.Fatal(err)
			}

			result := req.Apply(profiles, now)
			if result.TotalMatched != len(tt.want) {
				t.Fatalf("total matched: got %d, want %d", result.TotalMatched, len(tt.want))
			}
			for i, wallet := range tt.want {
				if result.Profiles[i].Wallet != wallet {
					t.Errorf("position %d: got %s, want %s", i, result.Profiles[i].Wallet, wallet)
				}
			}
		})
	}
}

func TestApplyAccountAgeCriterion(t *testing.T) {
	now := time.Now().UTC()

	fresh := profile("0xaaa", 100, 1)
	fresh.FirstSeen = now.Add(-12 * time.Hour)
	old := profile("0xbbb", 100, 1)
	old.FirstSeen = now.Add(-30 * 24 * time.Hour)

	req := Request{
		Criteria: []Criterion{
			{Field: FieldAccountAgeDays, Condition: ConditionLess, Threshold: 7},
		},
	}
	if err := req.Validate(); err != nil {
		t.Fatal(err)
	}

	result := req.Apply([]aggregate.Profile{fresh, old}, now)
	if result.TotalMatched != 1 || result.Profiles[0].Wallet != "0xaaa" {
		t.Errorf("expected only the fresh wallet, got %d matches", result.TotalMatched)
	}
}
