package headers_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jonesrussell/socialgrab/internal/config"
	"github.com/jonesrussell/socialgrab/internal/domain"
	"github.com/jonesrussell/socialgrab/internal/headers"
	"github.com/jonesrussell/socialgrab/internal/logger"
)

type fakeSource struct {
	profiles []domain.BrowserProfile
	err      error

	usedIDs  []string
	outcomes map[string]bool
	writeErr error
}

func (f *fakeSource) ListEnabled(context.Context) ([]domain.BrowserProfile, error) {
	return f.profiles, f.err
}

func (f *fakeSource) MarkUsed(_ context.Context, id string) error {
	f.usedIDs = append(f.usedIDs, id)
	return f.writeErr
}

func (f *fakeSource) RecordOutcome(_ context.Context, id string, success bool) error {
	if f.outcomes == nil {
		f.outcomes = make(map[string]bool)
	}
	f.outcomes[id] = success
	return f.writeErr
}

func profile(id, platform string, priority int) domain.BrowserProfile {
	return domain.BrowserProfile{
		ID:             id,
		Platform:       platform,
		UserAgent:      "UA-" + id,
		AcceptLanguage: "en-US,en;q=0.9",
		Priority:       priority,
		Enabled:        true,
	}
}

func newRotator(t *testing.T, profiles ...domain.BrowserProfile) *headers.Rotator {
	t.Helper()

	r := headers.NewRotator(&fakeSource{profiles: profiles}, &config.RotatorConfig{
		ReuseWindow:     time.Second,
		RefreshInterval: time.Minute,
	}, logger.NewNoOp())
	require.NoError(t, r.Refresh(context.Background()))
	return r
}

func TestGetRandomProfile_EmptyPoolFallsBack(t *testing.T) {
	t.Parallel()

	r := newRotator(t)
	p := r.GetRandomProfile(domain.PlatformInstagram)
	require.NotNil(t, p)
	assert.NotEmpty(t, p.UserAgent)
	assert.Equal(t, "builtin-fallback", p.ID)
}

func TestGetRandomProfile_FiltersByPlatform(t *testing.T) {
	t.Parallel()

	r := newRotator(t,
		profile("ig-only", domain.PlatformInstagram, 5),
		profile("fb-only", domain.PlatformFacebook, 5),
	)

	for i := 0; i < 10; i++ {
		p := r.GetRandomProfile(domain.PlatformFacebook)
		assert.Equal(t, "fb-only", p.ID)
	}
}

func TestGetRandomProfile_AllMatchesEveryPlatform(t *testing.T) {
	t.Parallel()

	r := newRotator(t, profile("generic", domain.PlatformAll, 5))

	assert.Equal(t, "generic", r.GetRandomProfile(domain.PlatformTikTok).ID)
	assert.Equal(t, "generic", r.GetRandomProfile(domain.PlatformWeibo).ID)
}

func TestGetRandomProfile_ThrottleFallsBackToAlternative(t *testing.T) {
	t.Parallel()

	r := newRotator(t,
		profile("a", domain.PlatformAll, 5),
		profile("b", domain.PlatformAll, 5),
	)

	first := r.GetRandomProfile(domain.PlatformTikTok)
	second := r.GetRandomProfile(domain.PlatformTikTok)

	// Within the reuse window the same profile is not handed out twice
	// while an alternative exists.
	assert.NotEqual(t, first.ID, second.ID)
}

func TestGetRandomProfile_AllThrottledStillServes(t *testing.T) {
	t.Parallel()

	r := newRotator(t, profile("only", domain.PlatformAll, 5))

	first := r.GetRandomProfile(domain.PlatformTikTok)
	second := r.GetRandomProfile(domain.PlatformTikTok)

	// Throttling is soft: a fully-throttled pool serves anyway.
	require.NotNil(t, second)
	assert.Equal(t, first.ID, second.ID)
}

func TestGetRandomProfile_SkipsDisabled(t *testing.T) {
	t.Parallel()

	disabled := profile("off", domain.PlatformAll, 9)
	disabled.Enabled = false

	r := newRotator(t, disabled, profile("on", domain.PlatformAll, 1))

	for i := 0; i < 10; i++ {
		assert.Equal(t, "on", r.GetRandomProfile(domain.PlatformTwitter).ID)
	}
}

func TestMarkUsed_PersistsThroughSource(t *testing.T) {
	t.Parallel()

	src := &fakeSource{profiles: []domain.BrowserProfile{profile("a", domain.PlatformAll, 5)}}
	r := headers.NewRotator(src, &config.RotatorConfig{ReuseWindow: time.Second}, logger.NewNoOp())
	require.NoError(t, r.Refresh(context.Background()))

	r.MarkUsed(context.Background(), "a")
	r.ReportOutcome(context.Background(), "a", true)

	assert.Equal(t, []string{"a"}, src.usedIDs)
	assert.Equal(t, map[string]bool{"a": true}, src.outcomes)
}

func TestMarkUsed_SkipsBuiltinFallback(t *testing.T) {
	t.Parallel()

	src := &fakeSource{}
	r := headers.NewRotator(src, &config.RotatorConfig{ReuseWindow: time.Second}, logger.NewNoOp())

	p := r.GetRandomProfile(domain.PlatformInstagram)
	r.MarkUsed(context.Background(), p.ID)
	r.ReportOutcome(context.Background(), p.ID, false)

	// The builtin profile has no database row; nothing reaches the source.
	assert.Empty(t, src.usedIDs)
	assert.Empty(t, src.outcomes)
}

func TestMarkUsed_WriteErrorDoesNotPanic(t *testing.T) {
	t.Parallel()

	src := &fakeSource{
		profiles: []domain.BrowserProfile{profile("a", domain.PlatformAll, 5)},
		writeErr: errors.New("db down"),
	}
	r := headers.NewRotator(src, &config.RotatorConfig{ReuseWindow: time.Second}, logger.NewNoOp())
	require.NoError(t, r.Refresh(context.Background()))

	r.MarkUsed(context.Background(), "a")
	r.ReportOutcome(context.Background(), "a", false)

	// Selection keeps working off the in-memory snapshot.
	assert.Equal(t, "a", r.GetRandomProfile(domain.PlatformTikTok).ID)
}

func TestRefresh_SourceErrorKeepsSnapshot(t *testing.T) {
	t.Parallel()

	src := &fakeSource{profiles: []domain.BrowserProfile{profile("a", domain.PlatformAll, 5)}}
	r := headers.NewRotator(src, &config.RotatorConfig{ReuseWindow: time.Second}, logger.NewNoOp())
	require.NoError(t, r.Refresh(context.Background()))

	src.err = errors.New("db down")
	require.Error(t, r.Refresh(context.Background()))

	// Previous snapshot still serves.
	assert.Equal(t, "a", r.GetRandomProfile(domain.PlatformTikTok).ID)
}
