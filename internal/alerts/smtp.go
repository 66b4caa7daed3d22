package alerts

import (
	"context"
	"fmt"
	"net/smtp"
	"strings"
	"time"
)

// SMTPSender sends alerts via email
type SMTPSender struct {
	host     string
	port     int
	user     string
	password string
	from     string
	to       []string
}

// NewSMTPSender creates a new SMTP sender
func NewSMTPSender(host string, port int, user, password, from string, to []string) *SMTPSender {
	return &SMTPSender{
		host:     host,
		port:     port,
		user:     user,
		password: password,
		from:     from,
		to:       to,
	}
}

// Send sends the alert via email
func (s *SMTPSender) Send(ctx context.Context, payload *Payload) error {
	if len(s.to) == 0 {
		return fmt.Errorf("no SMTP recipients configured")
	}

	subject := fmt.Sprintf("[%s] Market scored %d/100: %s", payload.Severity, payload.Score, payload.MarketTitle)
	body := s.buildEmailBody(payload)

	message := fmt.Sprintf("From: %s\r\n", s.from)
	message += fmt.Sprintf("To: %s\r\n", strings.Join(s.to, ", "))
	message += fmt.Sprintf("Subject: %s\r\n", subject)
	message += "Content-Type: text/plain; charset=UTF-8\r\n"
	message += "\r\n"
	message += body

	auth := smtp.PlainAuth("", s.user, s.password, s.host)
	addr := fmt.Sprintf("%s:%d", s.host, s.port)

	err := smtp.SendMail(addr, auth, s.from, s.to, []byte(message))
	if err != nil {
		return fmt.Errorf("send email: %w", err)
	}

	return nil
}

func (s *SMTPSender) buildEmailBody(payload *Payload) string {
	body := fmt.Sprintf("POLYRANK MARKET ALERT - %s\n", payload.Severity)
	body += "═══════════════════════════════════════\n\n"
	body += "A market crossed the watch threshold:\n\n"
	body += "MARKET\n"
	body += "─────────────────────────────────────\n"
	body += fmt.Sprintf("Title:          %s\n", payload.MarketTitle)
	body += fmt.Sprintf("Slug:           %s\n", payload.MarketSlug)
	body += fmt.Sprintf("Category:       %s\n", payload.Category)
	body += fmt.Sprintf("URL:            %s\n\n", payload.MarketURL)
	body += "SCORE\n"
	body += "─────────────────────────────────────\n"
	body += fmt.Sprintf("Score:          %d/100\n", payload.Score)
	for _, reason := range payload.Reasons {
		body += fmt.Sprintf("  - %s\n", reason)
	}
	body += "\nMETRICS\n"
	body += "─────────────────────────────────────\n"
	body += fmt.Sprintf("24h Volume:     $%.2f\n", payload.Volume24h)
	body += fmt.Sprintf("Liquidity:      $%.2f\n", payload.Liquidity)
	body += fmt.Sprintf("Yes Price:      %.1f%%\n\n", payload.YesPrice)
	body += "═══════════════════════════════════════\n"
	body += fmt.Sprintf("Environment: %s\n", payload.Environment)
	body += fmt.Sprintf("Generated: %s\n", time.Now().UTC().Format("2006-01-02 15:04:05 UTC"))

	return body
}
