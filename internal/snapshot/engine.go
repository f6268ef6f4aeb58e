// Package snapshot owns the snapshot store layout and the capture, promotion
// and restore protocols that mutate it.
package snapshot

import (
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"SaveGuard/internal/decoder"
	"SaveGuard/internal/policy"
	"SaveGuard/internal/presence"
)

var tracer = otel.Tracer("SaveGuard/internal/snapshot")

// defaultRetryWait is the pause between two capture attempts.
const defaultRetryWait = 200 * time.Millisecond

// Manager runs capture, promotion, restore, retention and bucket clears.
// All of them are serialised per (snapshots root, profile); different
// profiles proceed concurrently.
type Manager struct {
	probe    decoder.Probe
	presence presence.Checker
	logger   *slog.Logger
	ids      *IDGenerator
	now      func() time.Time

	retryWait time.Duration

	// test hooks, run after the quiet window and after the staging copy
	afterQuiet func()
	afterCopy  func(staging string)

	cfg atomic.Pointer[policy.Config]

	locksMu sync.Mutex
	locks   map[string]*sync.Mutex
}

type Option func(*Manager)

func WithLogger(l *slog.Logger) Option {
	return func(m *Manager) {
		if l != nil {
			m.logger = l
		}
	}
}

// WithClock replaces time.Now for ids and timestamps.
func WithClock(now func() time.Time) Option {
	return func(m *Manager) { m.now = now }
}

func WithRetryWait(d time.Duration) Option {
	return func(m *Manager) { m.retryWait = d }
}

func NewManager(cfg policy.Config, probe decoder.Probe, check presence.Checker, opts ...Option) *Manager {
	m := &Manager{
		probe:     probe,
		presence:  check,
		logger:    slog.Default(),
		now:       time.Now,
		retryWait: defaultRetryWait,
		locks:     map[string]*sync.Mutex{},
	}
	for _, o := range opts {
		o(m)
	}
	m.ids = NewIDGenerator(m.now)
	m.SetConfig(cfg)
	return m
}

// SetConfig swaps the configuration used by subsequent operations.
func (m *Manager) SetConfig(cfg policy.Config) {
	c := cfg.Normalize()
	m.cfg.Store(&c)
}

func (m *Manager) Config() policy.Config {
	return *m.cfg.Load()
}

// Store returns the store of the configured profile.
func (m *Manager) Store() *Store {
	return m.storeFor(m.Config())
}

func (m *Manager) storeFor(cfg policy.Config) *Store {
	return NewStore(cfg.SnapshotsRoot(), cfg.Profile, cfg.RetentionPerBucket, m.logger)
}

func (m *Manager) lockFor(cfg policy.Config) *sync.Mutex {
	key := fmt.Sprintf("%s|%d", cfg.SnapshotsRoot(), cfg.Profile)
	m.locksMu.Lock()
	defer m.locksMu.Unlock()
	l, ok := m.locks[key]
	if !ok {
		l = &sync.Mutex{}
		m.locks[key] = l
	}
	return l
}

// List returns the records of b for the configured profile.
func (m *Manager) List(b Bucket, includeInvalid bool) ([]Record, error) {
	return m.Store().List(b, includeInvalid)
}

func (m *Manager) ApplyRetention(b Bucket) (int, error) {
	cfg := m.Config()
	l := m.lockFor(cfg)
	l.Lock()
	defer l.Unlock()
	return m.storeFor(cfg).ApplyRetention(b)
}

func (m *Manager) ClearBucket(b Bucket) error {
	cfg := m.Config()
	l := m.lockFor(cfg)
	l.Lock()
	defer l.Unlock()
	if err := m.storeFor(cfg).Clear(b); err != nil {
		return err
	}
	m.logger.Debug("bucket cleared", "bucket", b, "profile", cfg.Profile)
	return nil
}

func fail(span trace.Span, err error, msg string) error {
	span.RecordError(err)
	span.SetStatus(codes.Error, msg)
	return err
}
