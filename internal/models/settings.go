package models

import "time"

// DefaultMaxIPAddresses is used when no threshold has been configured.
const DefaultMaxIPAddresses = 2

// IPGuardSettings holds the administrator-editable policy and message content.
type IPGuardSettings struct {
	MaxIPAddresses   int       `json:"max_ip_addresses"`
	WarningEmailBody string    `json:"warning_email_body"`
	LockEmailBody    string    `json:"lock_email_body"`
	UnlockEmailBody  string    `json:"unlock_email_body"`
	LogoURL          string    `json:"logo_url"`
	CopyrightText    string    `json:"copyright_text"`
	UpdatedAt        time.Time `json:"updated_at"`
}

// BodyFor returns the configured body for a notification kind.
// Both unlock kinds share the unlock body.
func (s *IPGuardSettings) BodyFor(kind NotificationKind) string {
	switch kind {
	case NotificationWarn:
		return s.WarningEmailBody
	case NotificationLock:
		return s.LockEmailBody
	case NotificationUnlock, NotificationAutoUnlock:
		return s.UnlockEmailBody
	}
	return ""
}
