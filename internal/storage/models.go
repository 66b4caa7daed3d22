package storage

import (
	"time"

	"gorm.io/gorm"
)

// RankingRun is the audit record of one completed ranking pass
type RankingRun struct {
	ID            int64   `gorm:"primaryKey;autoIncrement"`
	Category      string  `gorm:"size:128;not null;index"`
	WindowHours   int     `gorm:"not null"`
	SortBy        string  `gorm:"size:32;not null"`
	CriteriaJSON  string  `gorm:"type:text"`
	WalletCount   int     `gorm:"not null"`
	MatchedCount  int     `gorm:"not null"`
	FailedWallets int     `gorm:"not null;default:0"`
	Partial       bool    `gorm:"not null;default:false"`
	TopWallet     string  `gorm:"size:128"`
	TopGainUSD    float64 `gorm:"type:decimal(20,6);default:0"`
	DurationMS    int64   `gorm:"not null"`
	CreatedTS     int64   `gorm:"not null;index"`
}

func (RankingRun) TableName() string {
	return "ranking_runs"
}

// MarketScore is a point-in-time score snapshot for one market
type MarketScore struct {
	ID           int64   `gorm:"primaryKey;autoIncrement"`
	MarketSlug   string  `gorm:"size:255;not null;index"`
	MarketTitle  string  `gorm:"size:512"`
	Category     string  `gorm:"size:128;index"`
	Score        int     `gorm:"not null;index"`
	ReasonsJSON  string  `gorm:"type:text"`
	Volume24hUSD float64 `gorm:"type:decimal(20,6);default:0"`
	LiquidityUSD float64 `gorm:"type:decimal(20,6);default:0"`
	YesPricePct  float64 `gorm:"type:decimal(10,4);default:0"`
	CreatedTS    int64   `gorm:"not null;index"`
}

func (MarketScore) TableName() string {
	return "market_scores"
}

// BeforeCreate hooks for timestamps
func (r *RankingRun) BeforeCreate(tx *gorm.DB) error {
	if r.CreatedTS == 0 {
		r.CreatedTS = time.Now().Unix()
	}
	return nil
}

func (m *MarketScore) BeforeCreate(tx *gorm.DB) error {
	if m.CreatedTS == 0 {
		m.CreatedTS = time.Now().Unix()
	}
	return nil
}
