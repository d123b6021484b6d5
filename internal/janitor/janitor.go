package janitor

import (
	"context"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"vehicle-inspection-backend/config"
)

// Sweeper drops idle per-client state. The rate limiter implements it.
type Sweeper interface {
	Sweep() int
}

// Target is a directory whose files expire after a retention period.
// Prefixes limits pruning to file names with one of the prefixes; empty
// means every regular file.
type Target struct {
	Dir       string
	Retention time.Duration
	Prefixes  []string
}

// Report counts what one cycle removed.
type Report struct {
	Removed int
	Swept   int
}

// Service periodically prunes leftover export files, stale uploads and old
// database snapshots.
type Service struct {
	cfg     config.MaintenanceConfig
	targets []Target
	sweeper Sweeper
	log     logrus.FieldLogger
	now     func() time.Time
}

// Option configures a Service.
type Option func(*Service)

// WithClock overrides the clock used to age files.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// WithSweeper registers state that is swept every cycle.
func WithSweeper(sw Sweeper) Option {
	return func(s *Service) { s.sweeper = sw }
}

// NewService creates a janitor for the given targets.
func NewService(cfg config.MaintenanceConfig, targets []Target, log logrus.FieldLogger, opts ...Option) *Service {
	s := &Service{
		cfg:     cfg,
		targets: targets,
		log:     log.WithField("component", "janitor"),
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Targets derives the default pruning targets from the configuration.
// Export and upload temp files share the export retention.
func Targets(cfg *config.Config) []Target {
	return []Target{
		{Dir: cfg.Report.ExportDir, Retention: cfg.Maintenance.ExportRetention},
		{Dir: cfg.Storage.UploadDir, Retention: cfg.Maintenance.ExportRetention, Prefixes: []string{".upload-"}},
		{Dir: cfg.Maintenance.BackupDir, Retention: cfg.Maintenance.BackupRetention, Prefixes: []string{"records-", ".restore-"}},
	}
}

// Run starts the maintenance loop and blocks until ctx is cancelled.
func (s *Service) Run(ctx context.Context) {
	if !s.cfg.Enabled {
		s.log.Info("Janitor is disabled. Not starting.")
		return
	}
	s.log.WithField("interval", s.cfg.Interval).Info("Starting janitor")

	s.RunOnce(ctx)

	timer := time.NewTimer(s.cfg.Interval)
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			s.log.Info("Janitor shutting down.")
			return
		case <-timer.C:
			s.RunOnce(ctx)
			timer.Reset(s.cfg.Interval)
		}
	}
}

// RunOnce performs a single maintenance cycle. Failures are logged and do
// not stop the remaining targets.
func (s *Service) RunOnce(ctx context.Context) Report {
	var rep Report
	now := s.now()

	for _, t := range s.targets {
		if ctx.Err() != nil {
			return rep
		}
		n, err := prune(t, now)
		rep.Removed += n
		if err != nil {
			s.log.WithError(err).WithField("dir", t.Dir).Warn("Pruning failed")
		}
	}
	if s.sweeper != nil {
		rep.Swept = s.sweeper.Sweep()
	}

	if rep.Removed > 0 || rep.Swept > 0 {
		s.log.WithFields(logrus.Fields{"removed": rep.Removed, "swept": rep.Swept}).Info("Maintenance cycle finished")
	}
	return rep
}

func prune(t Target, now time.Time) (int, error) {
	if t.Dir == "" || t.Retention <= 0 {
		return 0, nil
	}
	entries, err := os.ReadDir(t.Dir)
	if errors.Is(err, fs.ErrNotExist) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}

	cutoff := now.Add(-t.Retention)
	removed := 0
	var errs []error
	for _, e := range entries {
		if !e.Type().IsRegular() || !matches(e.Name(), t.Prefixes) {
			continue
		}
		info, err := e.Info()
		if err != nil {
			errs = append(errs, err)
			continue
		}
		if !info.ModTime().Before(cutoff) {
			continue
		}
		if err := os.Remove(filepath.Join(t.Dir, e.Name())); err != nil && !errors.Is(err, fs.ErrNotExist) {
			errs = append(errs, err)
			continue
		}
		removed++
	}
	return removed, errors.Join(errs...)
}

func matches(name string, prefixes []string) bool {
	if len(prefixes) == 0 {
		return true
	}
	for _, p := range prefixes {
		if strings.HasPrefix(name, p) {
			return true
		}
	}
	return false
}
