package domain

import "time"

// Credential status constants. Transitions happen only through the pool's
// health state machine; "disabled" is a manual operator override.
const (
	CredentialStatusHealthy  = "healthy"
	CredentialStatusCooldown = "cooldown"
	CredentialStatusExpired  = "expired"
	CredentialStatusDisabled = "disabled"
)

// Credential tier constants. Public cookies serve guest/bot traffic; private
// cookies are higher-trust authenticated sessions.
const (
	TierPublic  = "public"
	TierPrivate = "private"
)

// Credential is a pooled authentication cookie for one platform.
// Rows are never hard-deleted while in use; soft states preserve audit counts.
type Credential struct {
	ID               string     `db:"id"                json:"id"`
	Platform         string     `db:"platform"          json:"platform"`
	Tier             string     `db:"tier"              json:"tier"`
	CookieCiphertext string     `db:"cookie_ciphertext" json:"-"`
	Status           string     `db:"status"            json:"status"`
	Enabled          bool       `db:"enabled"           json:"enabled"`
	UseCount         int        `db:"use_count"         json:"use_count"`
	SuccessCount     int        `db:"success_count"     json:"success_count"`
	ErrorCount       int        `db:"error_count"       json:"error_count"`
	LoginRedirects   int        `db:"login_redirects"   json:"login_redirects"`
	LastUsedAt       *time.Time `db:"last_used_at"      json:"last_used_at,omitempty"`
	LastError        *string    `db:"last_error"        json:"last_error,omitempty"`
	CooldownUntil    *time.Time `db:"cooldown_until"    json:"cooldown_until,omitempty"`
	CreatedAt        time.Time  `db:"created_at"        json:"created_at"`
	UpdatedAt        time.Time  `db:"updated_at"        json:"updated_at"`
}

// Usable reports whether the credential may be handed out at the given time.
// Cooldown entries become usable again once CooldownUntil passes; expired and
// disabled entries stay out of rotation until an operator intervenes.
func (c *Credential) Usable(now time.Time) bool {
	if !c.Enabled {
		return false
	}
	switch c.Status {
	case CredentialStatusHealthy:
		return true
	case CredentialStatusCooldown:
		return c.CooldownUntil == nil || c.CooldownUntil.Before(now)
	default:
		return false
	}
}

// CredentialOutcome describes what happened to a credential during one
// extraction attempt. It decouples error classification from the pool's
// reaction, keeping the health state machine independently testable.
type CredentialOutcome struct {
	Kind    OutcomeKind
	Message string
}

// OutcomeKind enumerates credential outcome events.
type OutcomeKind int

const (
	// OutcomeSuccess resets consecutive error counters.
	OutcomeSuccess OutcomeKind = iota
	// OutcomeError is a generic failure while the credential was in use.
	OutcomeError
	// OutcomeLoginRedirect is an ambiguous login-page redirect, tracked on a
	// separate counter from generic errors.
	OutcomeLoginRedirect
	// OutcomeForcedExpire is an unambiguous signal (checkpoint/identity page)
	// that immediately expires the credential.
	OutcomeForcedExpire
)

// BrowserProfile is a rotation candidate browser identity.
type BrowserProfile struct {
	ID             string     `db:"id"              json:"id"`
	Platform       string     `db:"platform"        json:"platform"`
	UserAgent      string     `db:"user_agent"      json:"user_agent"`
	SecChUa        *string    `db:"sec_ch_ua"       json:"sec_ch_ua,omitempty"`
	AcceptLanguage string     `db:"accept_language" json:"accept_language"`
	Priority       int        `db:"priority"        json:"priority"`
	Enabled        bool       `db:"enabled"         json:"enabled"`
	UseCount       int        `db:"use_count"       json:"use_count"`
	SuccessCount   int        `db:"success_count"   json:"success_count"`
	ErrorCount     int        `db:"error_count"     json:"error_count"`
	LastUsedAt     *time.Time `db:"last_used_at"    json:"last_used_at,omitempty"`
	CreatedAt      time.Time  `db:"created_at"      json:"created_at"`
	UpdatedAt      time.Time  `db:"updated_at"      json:"updated_at"`
}

// MatchesPlatform reports whether the profile may serve the given platform.
func (p *BrowserProfile) MatchesPlatform(platform string) bool {
	return p.Platform == PlatformAll || p.Platform == platform
}
