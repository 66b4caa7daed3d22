package score

import (
	"strings"
	"testing"
	"time"
)

func TestScoreRuleTable(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	tests := []struct {
		name        string
		snap        Snapshot
		wantScore   int
		wantReasons int
	}{
		{
			name:      "nothing qualifies",
			snap:      Snapshot{YesPrice: 95, NoPrice: 5},
			wantScore: 0,
		},
		{
			name: "all five rules fire",
			snap: Snapshot{
				Volume24h: 60_000,
				Volume1wk: 20_000, // ratio 3.0
				Liquidity: 15_000,
				YesPrice:  55,
				NoPrice:   45,
				CreatedAt: now.Add(-3 * 24 * time.Hour),
			},
			wantScore:   100,
			wantReasons: 5,
		},
		{
			name: "volume growth alone",
			snap: Snapshot{
				Volume24h: 3_000,
				Volume1wk: 1_000,
				YesPrice:  95,
			},
			wantScore:   30,
			wantReasons: 1,
		},
		{
			name: "growth at exactly 2x does not fire",
			snap: Snapshot{
				Volume24h: 2_000,
				Volume1wk: 1_000,
				YesPrice:  95,
			},
			wantScore: 0,
		},
		{
			name: "zero weekly volume skips the ratio",
			snap: Snapshot{
				Volume24h: 1_000_000,
				Volume1wk: 0,
				YesPrice:  95,
			},
			wantScore:   10, // only the high volume rule
			wantReasons: 1,
		},
		{
			name: "created exactly seven days ago still counts",
			snap: Snapshot{
				CreatedAt: now.Add(-7 * 24 * time.Hour),
				YesPrice:  95,
			},
			wantScore:   20,
			wantReasons: 1,
		},
		{
			name: "created eight days ago does not",
			snap: Snapshot{
				CreatedAt: now.Add(-8 * 24 * time.Hour),
				YesPrice:  95,
			},
			wantScore: 0,
		},
		{
			name:      "liquidity at exactly the floor does not fire",
			snap:      Snapshot{Liquidity: 10_000, YesPrice: 95},
			wantScore: 0,
		},
		{
			name:        "liquidity above the floor",
			snap:        Snapshot{Liquidity: 10_001, YesPrice: 95},
			wantScore:   15,
			wantReasons: 1,
		},
		{
			name:        "competitive band is inclusive at 30",
			snap:        Snapshot{YesPrice: 30, NoPrice: 10},
			wantScore:   25,
			wantReasons: 1,
		},
		{
			name:        "competitive band is inclusive at 70",
			snap:        Snapshot{YesPrice: 70, NoPrice: 30},
			wantScore:   25,
			wantReasons: 1,
		},
		{
			name:      "just outside the band",
			snap:      Snapshot{YesPrice: 70.1, NoPrice: 29.9},
			wantScore: 0,
		},
		{
			name:      "band tests the max price",
			snap:      Snapshot{YesPrice: 10, NoPrice: 90},
			wantScore: 0,
		},
		{
			name:      "volume at exactly 50k does not fire",
			snap:      Snapshot{Volume24h: 50_000, Volume1wk: 50_000, YesPrice: 95},
			wantScore: 0,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Score(tt.snap, now)
			if got.Score != tt.wantScore {
				t.Errorf("score: got %d, want %d (reasons: %v)", got.Score, tt.wantScore, got.Reasons)
			}
			if len(got.Reasons) != tt.wantReasons {
				t.Errorf("reasons: got %d (%v), want %d", len(got.Reasons), got.Reasons, tt.wantReasons)
			}
		})
	}
}

func TestScoreReasonOrder(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	snap := Snapshot{
		Volume24h: 60_000,
		Volume1wk: 20_000,
		Liquidity: 15_000,
		YesPrice:  55,
		NoPrice:   45,
		CreatedAt: now.Add(-2 * 24 * time.Hour),
	}

	got := Score(snap, now)
	if len(got.Reasons) != 5 {
		t.Fatalf("expected 5 reasons, got %v", got.Reasons)
	}

	wantPrefixes := []string{
		"3.0x volume growth",
		"Created 2 days ago",
		"High liquidity",
		"Competitive market",
		"High volume",
	}
	for i, prefix := range wantPrefixes {
		if !strings.HasPrefix(got.Reasons[i], prefix) {
			t.Errorf("reason %d: got %q, want prefix %q", i, got.Reasons[i], prefix)
		}
	}
}

func TestRankOrdering(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	snaps := []Snapshot{
		{Slug: "low", YesPrice: 95},
		{Slug: "mid", Liquidity: 20_000, YesPrice: 95},
		{Slug: "high", Liquidity: 20_000, YesPrice: 50, NoPrice: 50},
		{Slug: "tie-small", YesPrice: 50, NoPrice: 50, Volume24h: 100},
		{Slug: "tie-big", YesPrice: 50, NoPrice: 50, Volume24h: 900},
	}

	ranked := Rank(snaps, now)
	want := []string{"high", "tie-big", "tie-small", "mid", "low"}
	for i, slug := range want {
		if ranked[i].Slug != slug {
			t.Errorf("position %d: got %s (score %d), want %s", i, ranked[i].Slug, ranked[i].Score, slug)
		}
	}
}
