package alerts

import (
	"context"

	"github.com/sirupsen/logrus"
)

// LogSender sends alerts to the logger
type LogSender struct {
	log *logrus.Logger
}

// NewLogSender creates a new log sender
func NewLogSender(log *logrus.Logger) *LogSender {
	return &LogSender{log: log}
}

// Send logs the alert
func (s *LogSender) Send(ctx context.Context, payload *Payload) error {
	s.log.WithFields(logrus.Fields{
		"severity":   payload.Severity,
		"market":     payload.MarketSlug,
		"score":      payload.Score,
		"reasons":    payload.Reasons,
		"volume_24h": payload.Volume24h,
		"liquidity":  payload.Liquidity,
	}).Info("Market alert generated")
	return nil
}
