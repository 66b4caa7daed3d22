package config

import (
	"testing"
	"time"
)

func baseConfig() *Config {
	return &Config{
		DataAPIAuthMode:     AuthModeNone,
		WalletLookupWorkers: 10,
		ActivityFetchLimit:  100,
		RequestTimeout:      60 * time.Second,
		WatchScoreWarn:      60,
		WatchScoreAlert:     80,
		AlertMode:           "log",
	}
}

func TestValidateAlertModes(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{
			name:   "log mode needs nothing extra",
			mutate: func(c *Config) {},
		},
		{
			name: "smtp fully configured",
			mutate: func(c *Config) {
				c.AlertMode = "smtp"
				c.SMTPHost = "mail.example.com"
				c.SMTPTo = []string{"ops@example.com"}
			},
		},
		{
			name: "smtp without host",
			mutate: func(c *Config) {
				c.AlertMode = "smtp"
				c.SMTPTo = []string{"ops@example.com"}
			},
			wantErr: true,
		},
		{
			name: "smtp without recipients",
			mutate: func(c *Config) {
				c.AlertMode = "smtp"
				c.SMTPHost = "mail.example.com"
			},
			wantErr: true,
		},
		{
			name: "discord without webhooks",
			mutate: func(c *Config) {
				c.AlertMode = "discord"
			},
			wantErr: true,
		},
		{
			name: "unknown mode",
			mutate: func(c *Config) {
				c.AlertMode = "pager"
			},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := baseConfig()
			tt.mutate(cfg)
			err := cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Fatalf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}
