// Package cookiepool implements the shared credential pool: rotation of
// authentication cookies per platform and tier, and the health state machine
// driven by outcome feedback from extraction strategies.
package cookiepool

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jonesrussell/socialgrab/internal/config"
	"github.com/jonesrussell/socialgrab/internal/database"
	"github.com/jonesrussell/socialgrab/internal/domain"
	"github.com/jonesrussell/socialgrab/internal/logger"
)

// Store is the persistence surface the pool needs. database.CookieRepository
// implements it; tests use an in-memory fake.
type Store interface {
	SelectNext(ctx context.Context, platform, tier string) (*domain.Credential, error)
	MarkUsed(ctx context.Context, id string) error
	RecordSuccess(ctx context.Context, id string) error
	RecordError(ctx context.Context, id, message string) (int, error)
	RecordLoginRedirect(ctx context.Context, id, message string) (int, error)
	SetStatus(ctx context.Context, id, status string, cooldownUntil *time.Time) error
}

// Lease is one acquired credential with its decrypted cookie string.
type Lease struct {
	Credential *domain.Credential
	Cookie     string
}

// Pool rotates credentials and applies health transitions.
type Pool struct {
	store  Store
	cipher *Cipher
	cfg    *config.PoolConfig
	log    logger.Interface
	now    func() time.Time
}

// New creates a credential pool. cipher may be nil (plaintext cookies).
func New(store Store, cipher *Cipher, cfg *config.PoolConfig, log logger.Interface) *Pool {
	return &Pool{
		store:  store,
		cipher: cipher,
		cfg:    cfg,
		log:    log,
		now:    time.Now,
	}
}

// Acquire returns the next usable credential for a platform/tier, or nil
// when the pool has none. A cooldown credential whose window passed heals
// back to healthy on selection.
func (p *Pool) Acquire(ctx context.Context, platform, tier string) (*Lease, error) {
	cred, err := p.store.SelectNext(ctx, platform, tier)
	if err != nil {
		if errors.Is(err, database.ErrNoCredentialAvailable) {
			return nil, nil
		}
		return nil, fmt.Errorf("acquire credential: %w", err)
	}

	if cred.Status == domain.CredentialStatusCooldown {
		if healErr := p.store.SetStatus(ctx, cred.ID, domain.CredentialStatusHealthy, nil); healErr != nil {
			p.log.Warn("failed to heal cooldown credential", "id", cred.ID, "error", healErr)
		} else {
			cred.Status = domain.CredentialStatusHealthy
			cred.CooldownUntil = nil
		}
	}

	cookie, err := p.openCookie(cred.CookieCiphertext)
	if err != nil {
		// An undecryptable cookie can never succeed; pull it from rotation.
		_ = p.store.SetStatus(ctx, cred.ID, domain.CredentialStatusExpired, nil)
		return nil, fmt.Errorf("decrypt credential %s: %w", cred.ID, err)
	}

	if usedErr := p.store.MarkUsed(ctx, cred.ID); usedErr != nil {
		p.log.Warn("failed to mark credential used", "id", cred.ID, "error", usedErr)
	}

	return &Lease{Credential: cred, Cookie: cookie}, nil
}

// Report applies one outcome event to a credential's health state.
func (p *Pool) Report(ctx context.Context, credentialID string, outcome domain.CredentialOutcome) error {
	switch outcome.Kind {
	case domain.OutcomeSuccess:
		return p.reportSuccess(ctx, credentialID)
	case domain.OutcomeError:
		return p.reportError(ctx, credentialID, outcome.Message)
	case domain.OutcomeLoginRedirect:
		return p.reportLoginRedirect(ctx, credentialID, outcome.Message)
	case domain.OutcomeForcedExpire:
		p.log.Warn("credential force-expired", "id", credentialID, "reason", outcome.Message)
		return p.store.SetStatus(ctx, credentialID, domain.CredentialStatusExpired, nil)
	default:
		return fmt.Errorf("unknown outcome kind: %d", outcome.Kind)
	}
}

// Seal encrypts a cookie string for storage (nil cipher stores plaintext).
func (p *Pool) Seal(cookie string) (string, error) {
	if p.cipher == nil {
		return cookie, nil
	}
	return p.cipher.Seal(cookie)
}

func (p *Pool) reportSuccess(ctx context.Context, id string) error {
	if err := p.store.RecordSuccess(ctx, id); err != nil {
		return fmt.Errorf("record success: %w", err)
	}
	return nil
}

func (p *Pool) reportError(ctx context.Context, id, message string) error {
	count, err := p.store.RecordError(ctx, id, message)
	if err != nil {
		return fmt.Errorf("record error: %w", err)
	}

	switch {
	case count >= p.cfg.ErrorsToExpire:
		p.log.Warn("credential expired after consecutive errors", "id", id, "errors", count)
		return p.store.SetStatus(ctx, id, domain.CredentialStatusExpired, nil)
	case count >= p.cfg.ErrorsToCooldown:
		until := p.now().Add(p.cfg.CooldownDuration)
		p.log.Info("credential entering cooldown", "id", id, "errors", count, "until", until)
		return p.store.SetStatus(ctx, id, domain.CredentialStatusCooldown, &until)
	default:
		return nil
	}
}

func (p *Pool) reportLoginRedirect(ctx context.Context, id, message string) error {
	count, err := p.store.RecordLoginRedirect(ctx, id, message)
	if err != nil {
		return fmt.Errorf("record login redirect: %w", err)
	}

	// A single login redirect is ambiguous; consecutive ones mean expiry.
	if count >= p.cfg.RedirectsToExpire {
		p.log.Warn("credential expired after login redirects", "id", id, "redirects", count)
		return p.store.SetStatus(ctx, id, domain.CredentialStatusExpired, nil)
	}
	return nil
}

func (p *Pool) openCookie(ciphertext string) (string, error) {
	if p.cipher == nil {
		return ciphertext, nil
	}
	return p.cipher.Open(ciphertext)
}
