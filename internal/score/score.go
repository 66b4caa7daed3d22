// Package score rates markets 0 to 100 on how much they merit attention.
package score

import (
	"fmt"
	"sort"
	"time"

	"github.com/dustin/go-humanize"
)

// Snapshot is the point-in-time view of one market that scoring reads.
// Prices are percentages (0 to 100), volumes and liquidity are USD.
type Snapshot struct {
	Slug     string
	Title    string
	Category string

	YesPrice float64
	NoPrice  float64

	Volume24h float64
	Volume1wk float64
	Volume1mo float64
	Liquidity float64

	CreatedAt    time.Time
	CommentCount int
}

// ScoredMarket pairs a snapshot with its score and the reasons that
// contributed to it, in scoring-rule order.
type ScoredMarket struct {
	Snapshot
	Score   int      `json:"score"`
	Reasons []string `json:"reasons"`
}

const (
	growthRatio      = 2.0
	growthPoints     = 30
	freshDays        = 7
	freshPoints      = 20
	liquidityFloor   = 10_000
	liquidityPoints  = 15
	priceBandLow     = 30.0
	priceBandHigh    = 70.0
	competitivePts   = 25
	highVolumeFloor  = 50_000
	highVolumePoints = 10
)

// Score applies the additive rule table to one snapshot. Rules are
// independent; a market satisfying all five scores exactly 100. Reasons
// come back in rule order so equal scores read the same way.
func Score(s Snapshot, now time.Time) ScoredMarket {
	m := ScoredMarket{Snapshot: s}

	// Weekly volume can be zero on brand-new markets; skip the ratio
	// rather than divide by zero.
	if s.Volume1wk > 0 {
		ratio := s.Volume24h / s.Volume1wk
		if ratio > growthRatio {
			m.Score += growthPoints
			m.Reasons = append(m.Reasons, fmt.Sprintf("%.1fx volume growth", ratio))
		}
	}

	if !s.CreatedAt.IsZero() {
		age := now.Sub(s.CreatedAt)
		if age >= 0 && age <= freshDays*24*time.Hour {
			m.Score += freshPoints
			m.Reasons = append(m.Reasons, fmt.Sprintf("Created %d days ago", int(age.Hours()/24)))
		}
	}

	if s.Liquidity > liquidityFloor {
		m.Score += liquidityPoints
		m.Reasons = append(m.Reasons, fmt.Sprintf("High liquidity ($%s)", humanize.Commaf(s.Liquidity)))
	}

	if top := maxPrice(s.YesPrice, s.NoPrice); top >= priceBandLow && top <= priceBandHigh {
		m.Score += competitivePts
		m.Reasons = append(m.Reasons, "Competitive market")
	}

	if s.Volume24h > highVolumeFloor {
		m.Score += highVolumePoints
		m.Reasons = append(m.Reasons, fmt.Sprintf("High volume ($%s)", humanize.Commaf(s.Volume24h)))
	}

	return m
}

// Rank scores every snapshot and orders the result by score descending,
// breaking ties by 24h volume descending.
func Rank(snaps []Snapshot, now time.Time) []ScoredMarket {
	out := make([]ScoredMarket, 0, len(snaps))
	for _, s := range snaps {
		out = append(out, Score(s, now))
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Score != out[j].Score {
			return out[i].Score > out[j].Score
		}
		return out[i].Volume24h > out[j].Volume24h
	})
	return out
}

func maxPrice(a, b float64) float64 {
	if a > b {
		return a
	}
	return b
}
