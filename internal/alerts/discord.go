package alerts

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
)

// DiscordSender sends alerts to Discord via webhook
type DiscordSender struct {
	webhookURL string
	httpClient *http.Client
}

// NewDiscordSender creates a new Discord sender
func NewDiscordSender(webhookURL string) *DiscordSender {
	return &DiscordSender{
		webhookURL: webhookURL,
		httpClient: &http.Client{Timeout: 10 * time.Second},
	}
}

// Send sends the alert to Discord
func (s *DiscordSender) Send(ctx context.Context, payload *Payload) error {
	embed := s.buildEmbed(payload)

	webhookPayload := map[string]interface{}{
		"embeds": []interface{}{embed},
	}

	body, err := json.Marshal(webhookPayload)
	if err != nil {
		return fmt.Errorf("marshal webhook payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, "POST", s.webhookURL, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("execute request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusNoContent {
		return fmt.Errorf("unexpected status %d", resp.StatusCode)
	}

	return nil
}

func (s *DiscordSender) buildEmbed(payload *Payload) map[string]interface{} {
	var title string
	var color int
	switch payload.Severity {
	case SeverityAlert:
		title = "🔥 Market worth watching (ALERT)"
		color = 0xFF0000 // Red
	case SeverityWarn:
		title = "👀 Market heating up (WARN)"
		color = 0xFFA500 // Orange
	default:
		title = "ℹ️ Market scored"
		color = 0x0099FF // Blue
	}

	description := fmt.Sprintf("**%s** scored **%d/100**", payload.MarketTitle, payload.Score)
	if len(payload.Reasons) > 0 {
		description += "\n" + bulletList(payload.Reasons)
	}

	fields := []map[string]interface{}{
		{
			"name":   "Score",
			"value":  fmt.Sprintf("**%d/100**", payload.Score),
			"inline": true,
		},
		{
			"name":   "24h Volume",
			"value":  fmt.Sprintf("$%s", humanize.Commaf(payload.Volume24h)),
			"inline": true,
		},
		{
			"name":   "Liquidity",
			"value":  fmt.Sprintf("$%s", humanize.Commaf(payload.Liquidity)),
			"inline": true,
		},
		{
			"name":   "Yes Price",
			"value":  fmt.Sprintf("%.1f%%", payload.YesPrice),
			"inline": true,
		},
		{
			"name":   "Category",
			"value":  orDash(payload.Category),
			"inline": true,
		},
	}

	footer := map[string]interface{}{
		"text": fmt.Sprintf("PolyRank • %s • %s", payload.Environment, payload.Timestamp.UTC().Format("2006-01-02 15:04:05 UTC")),
	}

	embed := map[string]interface{}{
		"title":       title,
		"url":         payload.MarketURL,
		"description": truncate(description, 2000),
		"color":       color,
		"fields":      fields,
		"footer":      footer,
		"timestamp":   payload.Timestamp.Format(time.RFC3339),
	}

	return embed
}

func bulletList(items []string) string {
	var b strings.Builder
	for _, item := range items {
		b.WriteString("• ")
		b.WriteString(item)
		b.WriteString("\n")
	}
	return strings.TrimRight(b.String(), "\n")
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}

func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen-3] + "..."
}
