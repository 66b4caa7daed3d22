package alerts

import (
	"context"
	"strings"
	"testing"
)

func TestSMTPSenderNoRecipients(t *testing.T) {
	sender := NewSMTPSender("mail.example.com", 587, "user", "pass", "alerts@example.com", nil)

	err := sender.Send(context.Background(), &Payload{
		Severity:    SeverityWarn,
		MarketSlug:  "fed-rate-decision",
		MarketTitle: "Fed rate decision",
		Score:       65,
	})
	if err == nil {
		t.Fatal("expected an error when no recipients are configured")
	}
	if !strings.Contains(err.Error(), "recipients") {
		t.Errorf("unexpected error: %v", err)
	}
}
