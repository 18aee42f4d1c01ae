package spend

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// Caps holds one account's spend caps in account currency. Zero means no
// cap on that window.
type Caps struct {
	Daily   float64
	Monthly float64
}

// Status reports one account's position against a spend cap.
type Status struct {
	// Allowed is false when the cap is exceeded.
	Allowed bool

	// Reason names the exceeded cap, if any.
	Reason string

	// Limit, Used, Remaining describe the binding window.
	Limit     float64
	Used      float64
	Remaining float64

	// Percentage is Used/Limit.
	Percentage float64

	// Window is the span of the binding window.
	Window time.Duration

	// AlertTriggered indicates spend crossed the alert threshold.
	AlertTriggered bool
}

// Tracker tracks per-account spend across daily and monthly rolling
// windows and reports pacing for the spend-pacing guardrail.
//
// The tracker is fed actual spend observations from metric snapshots (and
// optionally replayed from a persistent Store at startup). Observations
// are idempotent on (account, entity, day): re-running a pipeline pass on
// the same snapshots never double-counts spend, so evaluation stays a pure
// function of its inputs. The tracker never blocks anything itself; the
// guardrail engine consults Pacing.
type Tracker struct {
	mu       sync.RWMutex
	accounts map[string]*accountWindows
	seen     map[string]struct{}

	alertThreshold float64
	store          Store
	logger         *slog.Logger
}

type accountWindows struct {
	caps    Caps
	daily   *RollingWindow
	monthly *RollingWindow
}

// NewTracker creates a spend tracker. store may be nil for purely
// in-memory tracking; alertThreshold triggers alerts at that fraction of a
// cap (0 disables alerts).
func NewTracker(store Store, alertThreshold float64, logger *slog.Logger) *Tracker {
	if logger == nil {
		logger = slog.Default()
	}
	return &Tracker{
		accounts:       make(map[string]*accountWindows),
		seen:           make(map[string]struct{}),
		alertThreshold: alertThreshold,
		store:          store,
		logger:         logger.With("component", "spend.tracker"),
	}
}

// Configure registers an account's caps. Must be called before Record or
// Pacing for the account.
func (t *Tracker) Configure(accountID string, caps Caps) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if _, exists := t.accounts[accountID]; exists {
		t.accounts[accountID].caps = caps
		return
	}
	t.accounts[accountID] = &accountWindows{
		caps:    caps,
		daily:   NewRollingWindow(24*time.Hour, time.Hour),
		monthly: NewRollingWindow(30*24*time.Hour, 24*time.Hour),
	}
}

// Load replays persisted spend events into the rolling windows. Call once
// at startup, after Configure.
func (t *Tracker) Load(ctx context.Context) error {
	if t.store == nil {
		return nil
	}

	since := time.Now().Add(-30 * 24 * time.Hour)

	t.mu.RLock()
	ids := make([]string, 0, len(t.accounts))
	for id := range t.accounts {
		ids = append(ids, id)
	}
	t.mu.RUnlock()

	for _, id := range ids {
		events, err := t.store.Events(ctx, id, since)
		if err != nil {
			return err
		}
		t.mu.Lock()
		aw := t.accounts[id]
		for _, ev := range events {
			aw.daily.AddAt(ev.Amount, ev.RecordedAt)
			aw.monthly.AddAt(ev.Amount, ev.RecordedAt)
			t.seen[observationKey(ev.AccountID, ev.EntityID, ev.RecordedAt)] = struct{}{}
		}
		t.mu.Unlock()
		t.logger.Debug("spend history loaded", "account", id, "events", len(events))
	}

	return nil
}

// Record adds an entity's observed spend for the account at the given
// time, writing through to the persistent store when one is configured.
// One observation per (account, entity, day) counts; repeats are no-ops,
// so re-running evaluation on the same snapshots leaves pacing unchanged.
func (t *Tracker) Record(ctx context.Context, accountID, entityID string, amount float64, at time.Time) error {
	t.mu.Lock()
	aw, ok := t.accounts[accountID]
	if !ok {
		t.mu.Unlock()
		return nil
	}

	key := observationKey(accountID, entityID, at)
	if _, dup := t.seen[key]; dup {
		t.mu.Unlock()
		return nil
	}
	t.seen[key] = struct{}{}
	aw.daily.AddAt(amount, at)
	aw.monthly.AddAt(amount, at)
	t.mu.Unlock()

	if t.store != nil {
		return t.store.Append(ctx, Event{
			AccountID:  accountID,
			EntityID:   entityID,
			Amount:     amount,
			RecordedAt: at,
		})
	}
	return nil
}

// observationKey is the idempotency key for one day's spend observation.
func observationKey(accountID, entityID string, at time.Time) string {
	return accountID + "|" + entityID + "|" + at.UTC().Format(dayLayout)
}

// Pacing returns the account's monthly spend as a fraction of its monthly
// cap. Accounts without a monthly cap (or unknown accounts) pace at zero.
func (t *Tracker) Pacing(accountID string) float64 {
	t.mu.RLock()
	aw, ok := t.accounts[accountID]
	t.mu.RUnlock()
	if !ok || aw.caps.Monthly <= 0 {
		return 0
	}
	return aw.monthly.Sum() / aw.caps.Monthly
}

// MonthlyStatus returns the account's position against its monthly cap.
func (t *Tracker) MonthlyStatus(accountID string) *Status {
	t.mu.RLock()
	aw, ok := t.accounts[accountID]
	t.mu.RUnlock()
	if !ok || aw.caps.Monthly <= 0 {
		return &Status{Allowed: true}
	}

	used := aw.monthly.Sum()
	percentage := used / aw.caps.Monthly

	status := &Status{
		Allowed:        used <= aw.caps.Monthly,
		Limit:          aw.caps.Monthly,
		Used:           used,
		Remaining:      maxFloat(0, aw.caps.Monthly-used),
		Percentage:     percentage,
		Window:         30 * 24 * time.Hour,
		AlertTriggered: t.alertThreshold > 0 && percentage >= t.alertThreshold,
	}
	if !status.Allowed {
		status.Reason = "monthly spend cap exceeded"
	}
	return status
}

// DailyStatus returns the account's position against its daily cap.
func (t *Tracker) DailyStatus(accountID string) *Status {
	t.mu.RLock()
	aw, ok := t.accounts[accountID]
	t.mu.RUnlock()
	if !ok || aw.caps.Daily <= 0 {
		return &Status{Allowed: true}
	}

	used := aw.daily.Sum()
	percentage := used / aw.caps.Daily

	status := &Status{
		Allowed:        used <= aw.caps.Daily,
		Limit:          aw.caps.Daily,
		Used:           used,
		Remaining:      maxFloat(0, aw.caps.Daily-used),
		Percentage:     percentage,
		Window:         24 * time.Hour,
		AlertTriggered: t.alertThreshold > 0 && percentage >= t.alertThreshold,
	}
	if !status.Allowed {
		status.Reason = "daily spend cap exceeded"
	}
	return status
}

func maxFloat(a, b float64) float64 {
	if a > b {
		return a
	}
	return b
}
