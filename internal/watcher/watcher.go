// Package watcher polls market scores on an interval and fires alerts
// when a market crosses the configured thresholds.
package watcher

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/liamashdown/polyrank/internal/alerts"
	"github.com/liamashdown/polyrank/internal/config"
	"github.com/liamashdown/polyrank/internal/engine"
	"github.com/liamashdown/polyrank/internal/metrics"
	"github.com/liamashdown/polyrank/internal/score"
)

// Watcher drives the periodic scoring loop
type Watcher struct {
	cfg    *config.Config
	engine *engine.Engine
	sender alerts.Sender
	log    *logrus.Logger

	mu        sync.Mutex
	lastAlert map[string]time.Time // slug -> last alert time
}

// New creates a Watcher
func New(cfg *config.Config, eng *engine.Engine, sender alerts.Sender, log *logrus.Logger) *Watcher {
	return &Watcher{
		cfg:       cfg,
		engine:    eng,
		sender:    sender,
		log:       log,
		lastAlert: make(map[string]time.Time),
	}
}

// Run polls until the context is cancelled. The first tick fires
// immediately so a restart does not wait out a full interval.
func (w *Watcher) Run(ctx context.Context) {
	interval := time.Duration(w.cfg.WatchIntervalSec) * time.Second
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	w.log.WithFields(logrus.Fields{
		"category": w.cfg.WatchCategory,
		"interval": interval.String(),
		"warn_at":  w.cfg.WatchScoreWarn,
		"alert_at": w.cfg.WatchScoreAlert,
	}).Info("Market watcher started")

	w.tick(ctx)

	for {
		select {
		case <-ctx.Done():
			w.log.Info("Market watcher stopped")
			return
		case <-ticker.C:
			w.tick(ctx)
		}
	}
}

func (w *Watcher) tick(ctx context.Context) {
	scored, err := w.engine.ScoreMarkets(ctx, w.cfg.WatchCategory, engine.WatchOptions{
		Limit:    w.cfg.WatchLimit,
		MinScore: w.cfg.WatchScoreWarn,
	})
	if err != nil {
		w.log.WithError(err).Warn("Watch scoring pass failed")
		return
	}

	now := time.Now().UTC()
	for _, m := range scored {
		w.evaluate(ctx, m, now)
	}
}

func (w *Watcher) evaluate(ctx context.Context, m score.ScoredMarket, now time.Time) {
	var severity alerts.Severity
	switch {
	case m.Score >= w.cfg.WatchScoreAlert:
		severity = alerts.SeverityAlert
	case m.Score >= w.cfg.WatchScoreWarn:
		severity = alerts.SeverityWarn
	default:
		return
	}

	if w.inCooldown(m.Slug, now) {
		metrics.RecordAlert(string(severity), "", "", true)
		w.log.WithFields(logrus.Fields{
			"market": m.Slug,
			"score":  m.Score,
		}).Debug("Alert suppressed by cooldown")
		return
	}

	payload := &alerts.Payload{
		Severity:    severity,
		MarketSlug:  m.Slug,
		MarketTitle: m.Title,
		MarketURL:   fmt.Sprintf("https://polymarket.com/event/%s", m.Slug),
		Category:    m.Category,
		Score:       m.Score,
		Reasons:     m.Reasons,
		Volume24h:   m.Volume24h,
		Liquidity:   m.Liquidity,
		YesPrice:    m.YesPrice,
		Timestamp:   now,
		Environment: w.cfg.Environment,
	}

	status := "success"
	if err := w.sender.Send(ctx, payload); err != nil {
		status = "error"
		w.log.WithError(err).WithField("market", m.Slug).Error("Failed to send alert")
	}
	metrics.RecordAlert(string(severity), status, "watch", false)

	w.mu.Lock()
	w.lastAlert[m.Slug] = now
	w.mu.Unlock()
}

func (w *Watcher) inCooldown(slug string, now time.Time) bool {
	w.mu.Lock()
	defer w.mu.Unlock()

	last, ok := w.lastAlert[slug]
	if !ok {
		return false
	}
	return now.Sub(last) < time.Duration(w.cfg.WatchCooldownMins)*time.Minute
}
