// Package scheduler runs the background maintenance loops: healing cooldown
// credentials whose window has passed and refreshing the browser profile
// snapshot from the database.
package scheduler

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/jonesrussell/socialgrab/internal/logger"
)

// CooldownSweeper heals cooldown credentials whose window has passed.
type CooldownSweeper interface {
	SweepCooldowns(ctx context.Context) (int64, error)
}

// ProfileRefresher reloads the in-memory profile snapshot.
type ProfileRefresher interface {
	Refresh(ctx context.Context) error
}

// Maintenance owns the cron instance and the lifecycle of both loops.
type Maintenance struct {
	cron    *cron.Cron
	sweeper CooldownSweeper
	rotator ProfileRefresher
	log     logger.Interface

	refreshEvery time.Duration
	sweepEvery   time.Duration

	ctx    context.Context
	cancel context.CancelFunc
}

// NewMaintenance creates the maintenance scheduler. Either dependency may be
// nil; its loop is simply not registered.
func NewMaintenance(sweeper CooldownSweeper, rotator ProfileRefresher, refreshEvery time.Duration, log logger.Interface) *Maintenance {
	ctx, cancel := context.WithCancel(context.Background())
	if refreshEvery <= 0 {
		refreshEvery = 5 * time.Minute
	}
	return &Maintenance{
		cron:         cron.New(),
		sweeper:      sweeper,
		rotator:      rotator,
		log:          log.WithComponent("maintenance"),
		refreshEvery: refreshEvery,
		sweepEvery:   time.Minute,
		ctx:          ctx,
		cancel:       cancel,
	}
}

// Start registers the loops and starts the cron instance. The rotator also
// refreshes once immediately so the first requests see real profiles.
func (m *Maintenance) Start() error {
	if m.rotator != nil {
		if err := m.rotator.Refresh(m.ctx); err != nil {
			m.log.Warn("initial profile refresh failed", "error", err)
		}
		spec := fmt.Sprintf("@every %s", m.refreshEvery)
		if _, err := m.cron.AddFunc(spec, m.refreshProfiles); err != nil {
			return fmt.Errorf("schedule profile refresh: %w", err)
		}
	}

	if m.sweeper != nil {
		spec := fmt.Sprintf("@every %s", m.sweepEvery)
		if _, err := m.cron.AddFunc(spec, m.sweepCooldowns); err != nil {
			return fmt.Errorf("schedule cooldown sweep: %w", err)
		}
	}

	m.cron.Start()
	m.log.Info("maintenance loops started",
		"profile_refresh", m.refreshEvery, "cooldown_sweep", m.sweepEvery)
	return nil
}

// Stop cancels in-flight work and waits for running jobs to finish.
func (m *Maintenance) Stop() {
	m.cancel()
	<-m.cron.Stop().Done()
	m.log.Info("maintenance loops stopped")
}

func (m *Maintenance) refreshProfiles() {
	if err := m.rotator.Refresh(m.ctx); err != nil {
		m.log.Error("profile refresh failed", "error", err)
	}
}

func (m *Maintenance) sweepCooldowns() {
	healed, err := m.sweeper.SweepCooldowns(m.ctx)
	if err != nil {
		m.log.Error("cooldown sweep failed", "error", err)
		return
	}
	if healed > 0 {
		m.log.Info("cooldown credentials healed", "count", healed)
	}
}
