// Package retention prunes aged files from the artifact store.
package retention

import (
	"os"
	"sync"
	"time"

	"github.com/bc-dunia/sysagent/internal/events"
)

// Store is the slice of the artifact store the sweeper needs.
type Store interface {
	OutputDir() string
	Delete(fileName string) error
}

// Config holds the retention policy.
type Config struct {
	// TTL is how long a stored file survives. Files whose
	// modification time is older are removed during a sweep.
	// Default: 7 days.
	TTL time.Duration

	// Interval is the cadence of background sweeps.
	// Default: 24 hours.
	Interval time.Duration
}

// DefaultConfig returns the default retention policy.
func DefaultConfig() Config {
	return Config{
		TTL:      7 * 24 * time.Hour,
		Interval: 24 * time.Hour,
	}
}

// WithDefaults returns a copy of the config with zero values replaced
// by defaults.
func (c Config) WithDefaults() Config {
	result := c
	if result.TTL <= 0 {
		result.TTL = 7 * 24 * time.Hour
	}
	if result.Interval <= 0 {
		result.Interval = 24 * time.Hour
	}
	return result
}

// Manager runs periodic sweeps over the artifact store.
type Manager struct {
	cfg    Config
	store  Store
	events *events.EventLogger

	stopCh    chan struct{}
	stoppedCh chan struct{}
	mu        sync.Mutex
	running   bool
}

// NewManager creates a sweeper over store. A nil logger disables
// event output.
func NewManager(cfg Config, store Store, logger *events.EventLogger) *Manager {
	if logger == nil {
		logger = events.NoopEventLogger()
	}
	return &Manager{
		cfg:       cfg.WithDefaults(),
		store:     store,
		events:    logger,
		stopCh:    make(chan struct{}),
		stoppedCh: make(chan struct{}),
	}
}

// Start begins the background sweep goroutine.
func (m *Manager) Start() {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.running {
		return
	}
	m.running = true
	go m.run()
}

// Stop signals the background goroutine to stop and waits for it.
func (m *Manager) Stop() {
	m.mu.Lock()
	if !m.running {
		m.mu.Unlock()
		return
	}
	m.running = false
	m.mu.Unlock()

	close(m.stopCh)
	<-m.stoppedCh
}

func (m *Manager) run() {
	defer close(m.stoppedCh)

	ticker := time.NewTicker(m.cfg.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			m.SweepNow()
		case <-m.stopCh:
			return
		}
	}
}

// SweepNow removes files older than the TTL and reports how many were
// deleted. Files that cannot be inspected or removed are left for the
// next sweep.
func (m *Manager) SweepNow() int {
	if m.store == nil {
		return 0
	}

	dir := m.store.OutputDir()
	if dir == "" {
		return 0
	}
	entries, err := os.ReadDir(dir)
	if err != nil {
		return 0
	}

	cutoff := time.Now().Add(-m.cfg.TTL)
	removed := 0
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			continue
		}
		if info.ModTime().After(cutoff) {
			continue
		}
		if err := m.store.Delete(entry.Name()); err != nil {
			continue
		}
		removed++
	}

	if removed > 0 {
		m.events.LogArtifactsPruned(removed, m.cfg.TTL.Hours())
	}
	return removed
}
