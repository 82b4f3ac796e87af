package config

import (
	"fmt"
	"net/mail"
	"os"
	"slices"
	"strconv"
)

// TLS policies for the SMTP connection.
const (
	TLSMandatory     = "mandatory"
	TLSOpportunistic = "opportunistic"
	TLSNone          = "none"
)

// MailConfig holds SMTP delivery settings. With Enabled false, messages are
// logged instead of sent.
type MailConfig struct {
	Enabled  bool   `toml:"enabled"`
	Host     string `toml:"host"`
	Port     int    `toml:"port"`
	Username string `toml:"username"`
	Password string `toml:"password"`
	From     string `toml:"from"`
	TLS      string `toml:"tls"`
	// AppURL is the UI origin linked from notification mail.
	AppURL string `toml:"app_url"`
}

func (c *MailConfig) Finalize() error {
	if c.Port == 0 {
		c.Port = 587
	}
	if c.TLS == "" {
		c.TLS = TLSMandatory
	}
	if c.From == "" {
		c.From = "DocuPrex <no-reply@docuprex.local>"
	}
	if c.AppURL == "" {
		c.AppURL = "http://localhost:5173"
	}

	if v := os.Getenv("DOCUPREX_MAIL_ENABLED"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			c.Enabled = b
		}
	}
	if v := os.Getenv("DOCUPREX_MAIL_HOST"); v != "" {
		c.Host = v
	}
	if v := os.Getenv("DOCUPREX_MAIL_PORT"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			c.Port = n
		}
	}
	if v := os.Getenv("DOCUPREX_MAIL_USERNAME"); v != "" {
		c.Username = v
	}
	if v := os.Getenv("DOCUPREX_MAIL_PASSWORD"); v != "" {
		c.Password = v
	}
	if v := os.Getenv("DOCUPREX_MAIL_FROM"); v != "" {
		c.From = v
	}
	if v := os.Getenv("DOCUPREX_MAIL_TLS"); v != "" {
		c.TLS = v
	}
	if v := os.Getenv("DOCUPREX_APP_URL"); v != "" {
		c.AppURL = v
	}

	if !slices.Contains([]string{TLSMandatory, TLSOpportunistic, TLSNone}, c.TLS) {
		return fmt.Errorf("invalid tls policy %q", c.TLS)
	}
	if _, err := mail.ParseAddress(c.From); err != nil {
		return fmt.Errorf("invalid from address: %w", err)
	}
	if c.Enabled && c.Host == "" {
		return fmt.Errorf("host required when mail is enabled")
	}
	return nil
}

// Merge overwrites non-zero fields from overlay. Enabled always applies.
func (c *MailConfig) Merge(overlay *MailConfig) {
	c.Enabled = overlay.Enabled
	if overlay.Host != "" {
		c.Host = overlay.Host
	}
	if overlay.Port != 0 {
		c.Port = overlay.Port
	}
	if overlay.Username != "" {
		c.Username = overlay.Username
	}
	if overlay.Password != "" {
		c.Password = overlay.Password
	}
	if overlay.From != "" {
		c.From = overlay.From
	}
	if overlay.TLS != "" {
		c.TLS = overlay.TLS
	}
	if overlay.AppURL != "" {
		c.AppURL = overlay.AppURL
	}
}
