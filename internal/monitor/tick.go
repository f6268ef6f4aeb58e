package monitor

import (
	"context"
	"fmt"
	"time"

	"SaveGuard/internal/events"
	"SaveGuard/internal/policy"
	"SaveGuard/internal/snapshot"
)

// tick runs one iteration of the loop and returns how long to wait before
// the next one.
func (m *Monitor) tick(ctx context.Context) time.Duration {
	start := m.now()
	cfg := m.mgr.Config()
	if m.resetPending.Swap(false) {
		m.lastInRaid = nil
		m.lastInRaidRead = time.Time{}
		m.lastPoll = time.Time{}
	}

	running, err := m.presence.Running(ctx)
	if err != nil {
		m.setError(fmt.Sprintf("presence check failed, assuming not running: %v", err))
		running = false
	}

	inRaid := m.lastInRaid
	if m.shouldReadInRaid(start, running, cfg) {
		v, err := m.dec.ReadInRaid(ctx, cfg.ProfileDir())
		m.lastInRaidRead = start
		if err != nil {
			m.setError(fmt.Sprintf("inraid read failed: %v", err))
		} else {
			inRaid = v
		}
	} else if !running {
		inRaid = nil
	}

	m.state.Update(running, inRaid)
	m.bus.Emit(events.State(running, inRaid, m.state.View().CloudEnabled))

	if m.trigger.Take() {
		if _, err := m.TriggerHotkeySnapshot(ctx); err != nil {
			m.setError(fmt.Sprintf("F5 snapshot failed: %v", err))
		}
	}

	if m.lastInRaid != nil && inRaid != nil && !*m.lastInRaid && *inRaid {
		anchor, err := m.mgr.PromoteLatestPoll(ctx, m.now())
		switch {
		case err != nil:
			m.setError(fmt.Sprintf("anchor update failed: %v", err))
		case anchor != nil:
			m.bus.Emit(events.AnchorPromoted(*anchor))
		}
	}

	if (isTrue(inRaid) && !isTrue(m.lastInRaid)) || !running {
		if err := m.mgr.ClearBucket(snapshot.BucketRuntimePoll); err != nil {
			m.logger.Warn("clear poll bucket failed", "error", err)
		}
	}

	if inRaid != nil {
		m.lastInRaid = inRaid
	}

	if running && isFalse(inRaid) && start.Sub(m.lastPoll) >= cfg.SnapshotInterval() {
		rec, err := m.mgr.Capture(ctx, snapshot.CaptureRequest{
			Bucket: snapshot.BucketRuntimePoll,
			Reason: snapshot.ReasonPoll,
			InRaid: inRaid,
			Dedupe: true,
		})
		if err != nil {
			m.setError(fmt.Sprintf("polling snapshot failed: %v", err))
		} else if rec != nil {
			m.bus.Emit(events.Info("runtime poll snapshot updated"))
		}
		m.lastPoll = m.now()
	}

	return nextWait(cfg, running, inRaid, m.now().Sub(start))
}

func (m *Monitor) shouldReadInRaid(now time.Time, running bool, cfg policy.Config) bool {
	if !running {
		return false
	}
	if m.trigger.Pending() {
		return true
	}
	if isTrue(m.lastInRaid) {
		every := max(minInRaidReadEvery, cfg.InRaidPollInterval())
		return now.Sub(m.lastInRaidRead) >= every
	}
	return true
}

// nextWait is the poll interval, or the slower in-raid interval while in a
// raid, minus the time the tick took, but never below minWait.
func nextWait(cfg policy.Config, running bool, inRaid *bool, elapsed time.Duration) time.Duration {
	interval := cfg.PollInterval()
	if running && isTrue(inRaid) {
		interval = max(cfg.PollInterval(), cfg.InRaidPollInterval())
	}
	return max(minWait, interval-elapsed)
}

func isTrue(v *bool) bool  { return v != nil && *v }
func isFalse(v *bool) bool { return v != nil && !*v }
