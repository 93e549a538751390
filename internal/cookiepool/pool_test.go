package cookiepool_test

import (
	"context"
	"sort"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jonesrussell/socialgrab/internal/config"
	"github.com/jonesrussell/socialgrab/internal/cookiepool"
	"github.com/jonesrussell/socialgrab/internal/database"
	"github.com/jonesrussell/socialgrab/internal/domain"
	"github.com/jonesrussell/socialgrab/internal/logger"
)

// fakeStore is an in-memory Store mirroring the repository's semantics.
type fakeStore struct {
	creds map[string]*domain.Credential
}

func newFakeStore(creds ...*domain.Credential) *fakeStore {
	m := make(map[string]*domain.Credential, len(creds))
	for _, c := range creds {
		m[c.ID] = c
	}
	return &fakeStore{creds: m}
}

func (s *fakeStore) SelectNext(_ context.Context, platform, tier string) (*domain.Credential, error) {
	now := time.Now()

	var candidates []*domain.Credential
	for _, c := range s.creds {
		if c.Platform == platform && c.Tier == tier && c.Usable(now) {
			candidates = append(candidates, c)
		}
	}
	if len(candidates) == 0 {
		return nil, database.ErrNoCredentialAvailable
	}

	sort.Slice(candidates, func(i, j int) bool {
		a, b := candidates[i].LastUsedAt, candidates[j].LastUsedAt
		if a == nil {
			return true
		}
		if b == nil {
			return false
		}
		return a.Before(*b)
	})
	return candidates[0], nil
}

func (s *fakeStore) MarkUsed(_ context.Context, id string) error {
	now := time.Now()
	s.creds[id].UseCount++
	s.creds[id].LastUsedAt = &now
	return nil
}

func (s *fakeStore) RecordSuccess(_ context.Context, id string) error {
	c := s.creds[id]
	c.SuccessCount++
	c.ErrorCount = 0
	c.LoginRedirects = 0
	c.LastError = nil
	if c.Status == domain.CredentialStatusCooldown {
		c.Status = domain.CredentialStatusHealthy
		c.CooldownUntil = nil
	}
	return nil
}

func (s *fakeStore) RecordError(_ context.Context, id, message string) (int, error) {
	c := s.creds[id]
	c.ErrorCount++
	c.LastError = &message
	return c.ErrorCount, nil
}

func (s *fakeStore) RecordLoginRedirect(_ context.Context, id, message string) (int, error) {
	c := s.creds[id]
	c.LoginRedirects++
	c.LastError = &message
	return c.LoginRedirects, nil
}

func (s *fakeStore) SetStatus(_ context.Context, id, status string, cooldownUntil *time.Time) error {
	c := s.creds[id]
	c.Status = status
	c.CooldownUntil = cooldownUntil
	return nil
}

func testCredential(id, platform string) *domain.Credential {
	return &domain.Credential{
		ID:               id,
		Platform:         platform,
		Tier:             domain.TierPublic,
		CookieCiphertext: "sessionid=" + id,
		Status:           domain.CredentialStatusHealthy,
		Enabled:          true,
	}
}

func newPool(store cookiepool.Store) *cookiepool.Pool {
	return cookiepool.New(store, nil, &config.PoolConfig{
		ErrorsToCooldown:  config.DefaultErrorsToCooldown,
		ErrorsToExpire:    config.DefaultErrorsToExpire,
		RedirectsToExpire: config.DefaultRedirectsToExpire,
		CooldownDuration:  config.DefaultCooldownDuration,
	}, logger.NewNoOp())
}

func TestAcquire_EmptyPoolReturnsNil(t *testing.T) {
	t.Parallel()

	pool := newPool(newFakeStore())
	lease, err := pool.Acquire(context.Background(), domain.PlatformInstagram, domain.TierPublic)
	require.NoError(t, err)
	assert.Nil(t, lease)
}

func TestAcquire_PrefersLeastRecentlyUsed(t *testing.T) {
	t.Parallel()

	used := time.Now().Add(-time.Hour)
	a := testCredential("a", domain.PlatformInstagram)
	a.LastUsedAt = &used
	b := testCredential("b", domain.PlatformInstagram)

	store := newFakeStore(a, b)
	pool := newPool(store)

	lease, err := pool.Acquire(context.Background(), domain.PlatformInstagram, domain.TierPublic)
	require.NoError(t, err)
	require.NotNil(t, lease)
	// Never-used credential (null last_used_at) wins.
	assert.Equal(t, "b", lease.Credential.ID)
	assert.Equal(t, "sessionid=b", lease.Cookie)
	assert.Equal(t, 1, store.creds["b"].UseCount)
}

func TestAcquire_CooldownHealsOnceWindowPassed(t *testing.T) {
	t.Parallel()

	past := time.Now().Add(-time.Minute)
	c := testCredential("c", domain.PlatformFacebook)
	c.Status = domain.CredentialStatusCooldown
	c.CooldownUntil = &past

	store := newFakeStore(c)
	pool := newPool(store)

	lease, err := pool.Acquire(context.Background(), domain.PlatformFacebook, domain.TierPublic)
	require.NoError(t, err)
	require.NotNil(t, lease)
	assert.Equal(t, domain.CredentialStatusHealthy, store.creds["c"].Status)
}

func TestAcquire_SkipsExpiredDisabledAndActiveCooldown(t *testing.T) {
	t.Parallel()

	future := time.Now().Add(time.Minute)

	expired := testCredential("x", domain.PlatformFacebook)
	expired.Status = domain.CredentialStatusExpired
	disabled := testCredential("d", domain.PlatformFacebook)
	disabled.Enabled = false
	cooling := testCredential("cd", domain.PlatformFacebook)
	cooling.Status = domain.CredentialStatusCooldown
	cooling.CooldownUntil = &future

	pool := newPool(newFakeStore(expired, disabled, cooling))
	lease, err := pool.Acquire(context.Background(), domain.PlatformFacebook, domain.TierPublic)
	require.NoError(t, err)
	assert.Nil(t, lease)
}

func TestReport_FiveErrorsCooldownTenExpire(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	c := testCredential("c", domain.PlatformInstagram)
	store := newFakeStore(c)
	pool := newPool(store)

	for i := 1; i <= 4; i++ {
		require.NoError(t, pool.Report(ctx, "c", domain.CredentialOutcome{
			Kind: domain.OutcomeError, Message: "api failure",
		}))
		assert.Equal(t, domain.CredentialStatusHealthy, c.Status, "error %d", i)
	}

	// 5th consecutive error enters cooldown with a bounded window.
	require.NoError(t, pool.Report(ctx, "c", domain.CredentialOutcome{
		Kind: domain.OutcomeError, Message: "api failure",
	}))
	assert.Equal(t, domain.CredentialStatusCooldown, c.Status)
	require.NotNil(t, c.CooldownUntil)
	assert.WithinDuration(t, time.Now().Add(time.Minute), *c.CooldownUntil, 5*time.Second)

	// 6th through 9th keep it in cooldown.
	for i := 6; i <= 9; i++ {
		require.NoError(t, pool.Report(ctx, "c", domain.CredentialOutcome{
			Kind: domain.OutcomeError, Message: "api failure",
		}))
		assert.Equal(t, domain.CredentialStatusCooldown, c.Status, "error %d", i)
	}

	// 10th consecutive error expires it.
	require.NoError(t, pool.Report(ctx, "c", domain.CredentialOutcome{
		Kind: domain.OutcomeError, Message: "api failure",
	}))
	assert.Equal(t, domain.CredentialStatusExpired, c.Status)
}

func TestReport_SuccessResetsErrorStreak(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	c := testCredential("c", domain.PlatformInstagram)
	store := newFakeStore(c)
	pool := newPool(store)

	for i := 0; i < 4; i++ {
		require.NoError(t, pool.Report(ctx, "c", domain.CredentialOutcome{
			Kind: domain.OutcomeError, Message: "api failure",
		}))
	}
	require.NoError(t, pool.Report(ctx, "c", domain.CredentialOutcome{Kind: domain.OutcomeSuccess}))
	assert.Zero(t, c.ErrorCount)
	assert.Nil(t, c.LastError)

	// Streak restarts: five more errors to reach cooldown again.
	for i := 0; i < 4; i++ {
		require.NoError(t, pool.Report(ctx, "c", domain.CredentialOutcome{
			Kind: domain.OutcomeError, Message: "api failure",
		}))
	}
	assert.Equal(t, domain.CredentialStatusHealthy, c.Status)
}

func TestReport_TwoLoginRedirectsExpire(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	c := testCredential("c", domain.PlatformFacebook)
	store := newFakeStore(c)
	pool := newPool(store)

	require.NoError(t, pool.Report(ctx, "c", domain.CredentialOutcome{
		Kind: domain.OutcomeLoginRedirect, Message: "redirected to login",
	}))
	assert.Equal(t, domain.CredentialStatusHealthy, c.Status)

	require.NoError(t, pool.Report(ctx, "c", domain.CredentialOutcome{
		Kind: domain.OutcomeLoginRedirect, Message: "redirected to login",
	}))
	assert.Equal(t, domain.CredentialStatusExpired, c.Status)
}

func TestReport_LoginRedirectStreakBrokenBySuccess(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	c := testCredential("c", domain.PlatformFacebook)
	store := newFakeStore(c)
	pool := newPool(store)

	require.NoError(t, pool.Report(ctx, "c", domain.CredentialOutcome{
		Kind: domain.OutcomeLoginRedirect, Message: "redirected to login",
	}))
	require.NoError(t, pool.Report(ctx, "c", domain.CredentialOutcome{Kind: domain.OutcomeSuccess}))
	require.NoError(t, pool.Report(ctx, "c", domain.CredentialOutcome{
		Kind: domain.OutcomeLoginRedirect, Message: "redirected to login",
	}))

	assert.Equal(t, domain.CredentialStatusHealthy, c.Status)
}

func TestReport_ForcedExpire(t *testing.T) {
	t.Parallel()

	c := testCredential("c", domain.PlatformFacebook)
	store := newFakeStore(c)
	pool := newPool(store)

	require.NoError(t, pool.Report(context.Background(), "c", domain.CredentialOutcome{
		Kind: domain.OutcomeForcedExpire, Message: "checkpoint page",
	}))
	assert.Equal(t, domain.CredentialStatusExpired, c.Status)
}

func TestCipherRoundTrip(t *testing.T) {
	t.Parallel()

	cipher, err := cookiepool.NewCipher("test-passphrase")
	require.NoError(t, err)
	require.NotNil(t, cipher)

	sealed, err := cipher.Seal("sessionid=secret; csrftoken=abc")
	require.NoError(t, err)
	assert.NotContains(t, sealed, "secret")

	opened, err := cipher.Open(sealed)
	require.NoError(t, err)
	assert.Equal(t, "sessionid=secret; csrftoken=abc", opened)
}

func TestNewCipher_EmptyPassphrase(t *testing.T) {
	t.Parallel()

	cipher, err := cookiepool.NewCipher("")
	require.NoError(t, err)
	assert.Nil(t, cipher)
}
