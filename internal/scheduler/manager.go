package scheduler

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

// ErrAlreadyRunning is returned by Start on a running manager.
var ErrAlreadyRunning = errors.New("recheck scheduler already running")

var parser = cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor)

// Rechecker re-runs deforestation checks for lands whose status is unknown.
type Rechecker interface {
	RecheckPending(ctx context.Context, limit, lookbackYears int) (int, error)
}

// Config configures the recheck job
type Config struct {
	Schedule      string
	BatchSize     int
	LookbackYears int
	Timeout       time.Duration
}

// DefaultConfig returns the default recheck configuration
func DefaultConfig() Config {
	return Config{
		Schedule:      "0 2 * * *",
		BatchSize:     50,
		LookbackYears: 5,
		Timeout:       30 * time.Minute,
	}
}

// Manager runs the deforestation recheck on a cron schedule
type Manager struct {
	cron      *cron.Cron
	entryID   cron.EntryID
	rechecker Rechecker
	config    Config
	logger    *zap.Logger

	mu      sync.RWMutex
	running bool
	status  JobStatus

	// stop cancels the context of an in-flight run.
	stop context.CancelFunc
	ctx  context.Context
}

// JobStatus reports the outcome of the most recent run
type JobStatus struct {
	Schedule    string    `json:"schedule"`
	NextRun     time.Time `json:"nextRun"`
	PrevRun     time.Time `json:"prevRun"`
	LastUpdated int       `json:"lastUpdated"`
	LastError   string    `json:"lastError,omitempty"`
}

// NewManager creates a recheck manager. The schedule is validated here so a
// bad configuration fails at startup.
func NewManager(rechecker Rechecker, config Config, logger *zap.Logger) (*Manager, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	defaults := DefaultConfig()
	if config.Schedule == "" {
		config.Schedule = defaults.Schedule
	}
	if config.BatchSize <= 0 {
		config.BatchSize = defaults.BatchSize
	}
	if config.Timeout <= 0 {
		config.Timeout = defaults.Timeout
	}
	if err := ValidateCronExpression(config.Schedule); err != nil {
		return nil, fmt.Errorf("invalid recheck schedule %q: %w", config.Schedule, err)
	}

	m := &Manager{
		rechecker: rechecker,
		config:    config,
		logger:    logger,
		status:    JobStatus{Schedule: config.Schedule},
	}
	m.cron = cron.New(
		cron.WithParser(parser),
		cron.WithChain(cron.SkipIfStillRunning(cronLogger{logger.Sugar()})),
	)

	entryID, err := m.cron.AddFunc(config.Schedule, func() {
		ctx, cancel := context.WithTimeout(m.runContext(), m.config.Timeout)
		defer cancel()
		m.RunOnce(ctx)
	})
	if err != nil {
		return nil, fmt.Errorf("failed to add cron job: %w", err)
	}
	m.entryID = entryID

	return m, nil
}

// Start starts the cron scheduler
func (m *Manager) Start() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.running {
		return ErrAlreadyRunning
	}
	m.running = true
	m.ctx, m.stop = context.WithCancel(context.Background())

	m.logger.Info("Starting deforestation recheck scheduler", zap.String("cron", m.config.Schedule))
	m.cron.Start()
	return nil
}

// Stop stops the scheduler, cancels a running job and waits for it to return
func (m *Manager) Stop() {
	m.mu.Lock()
	if !m.running {
		m.mu.Unlock()
		return
	}
	m.running = false
	m.stop()
	m.mu.Unlock()

	m.logger.Info("Stopping deforestation recheck scheduler")
	<-m.cron.Stop().Done()
}

// RunOnce performs one recheck pass immediately.
func (m *Manager) RunOnce(ctx context.Context) (int, error) {
	started := time.Now()
	updated, err := m.rechecker.RecheckPending(ctx, m.config.BatchSize, m.config.LookbackYears)

	m.mu.Lock()
	m.status.PrevRun = started
	m.status.LastUpdated = updated
	m.status.LastError = ""
	if err != nil {
		m.status.LastError = err.Error()
	}
	m.mu.Unlock()

	if err != nil {
		m.logger.Error("Deforestation recheck failed", zap.Int("updated", updated), zap.Error(err))
		return updated, err
	}
	m.logger.Info("Deforestation recheck completed",
		zap.Int("updated", updated),
		zap.Duration("duration", time.Since(started)))
	return updated, nil
}

func (m *Manager) runContext() context.Context {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.ctx == nil {
		return context.Background()
	}
	return m.ctx
}

// Status returns the job's schedule and last outcome
func (m *Manager) Status() JobStatus {
	m.mu.RLock()
	status := m.status
	m.mu.RUnlock()

	status.NextRun = m.cron.Entry(m.entryID).Next
	return status
}

// ValidateCronExpression validates a five-field cron expression or descriptor
func ValidateCronExpression(expr string) error {
	_, err := parser.Parse(expr)
	return err
}

// cronLogger routes cron's own logging through zap.
type cronLogger struct {
	l *zap.SugaredLogger
}

func (c cronLogger) Info(msg string, keysAndValues ...interface{}) {
	c.l.Debugw(msg, keysAndValues...)
}

func (c cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	c.l.Errorw(msg, append(keysAndValues, "error", err)...)
}
