package rollback

import (
	"context"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"

	"adpilot-hq/adpilot/pkg/rules"
)

// ScanHandler receives the reversal recommendations from one scheduled
// scan of one account.
type ScanHandler func(ctx context.Context, accountID string, reversals []*rules.Recommendation)

// Scheduler runs the monitor on a cron schedule across the configured
// accounts.
type Scheduler struct {
	monitor  *Monitor
	accounts []string
	handler  ScanHandler
	cron     *cron.Cron
	logger   *slog.Logger
}

// NewScheduler creates a scheduler that scans each account on the
// monitor's configured cron expression.
func NewScheduler(monitor *Monitor, accounts []string, handler ScanHandler, logger *slog.Logger) (*Scheduler, error) {
	if logger == nil {
		logger = slog.Default()
	}

	s := &Scheduler{
		monitor:  monitor,
		accounts: accounts,
		handler:  handler,
		cron:     cron.New(cron.WithLocation(time.UTC)),
		logger:   logger.With("component", "rollback.scheduler"),
	}

	if _, err := s.cron.AddFunc(monitor.cfg.Schedule, s.run); err != nil {
		return nil, err
	}
	return s, nil
}

// Start begins scheduled scans.
func (s *Scheduler) Start() {
	s.cron.Start()
	s.logger.Info("rollback scans scheduled", "schedule", s.monitor.cfg.Schedule)
}

// Stop halts the schedule and waits for a running scan to finish.
func (s *Scheduler) Stop() {
	ctx := s.cron.Stop()
	<-ctx.Done()
	s.logger.Info("rollback scheduler stopped")
}

func (s *Scheduler) run() {
	ctx := context.Background()
	for _, accountID := range s.accounts {
		reversals, err := s.monitor.Scan(ctx, accountID)
		if err != nil {
			s.logger.Error("scheduled rollback scan failed",
				"account_id", accountID, "error", err)
			continue
		}
		if s.handler != nil {
			s.handler(ctx, accountID, reversals)
		}
	}
}
