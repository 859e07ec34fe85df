// Package watcher runs the periodic risk sweep: every registered wallet is
// re-scanned, each position is graded against the owner's thresholds, and
// at-risk wallets produce one grouped alert per cycle.
package watcher

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/defiwatchbot/defiwatch/internal/domain"
	"github.com/defiwatchbot/defiwatch/internal/risk"
	"github.com/defiwatchbot/defiwatch/internal/scanner"
)

// DefaultInterval is the sweep period when none is configured.
const DefaultInterval = 10 * time.Minute

// alertSender delivers one alert to a subscriber chat.
type alertSender interface {
	Notify(ctx context.Context, chatID int64, title, message string) error
}

// AlwaysAllow is the default notification policy: a wallet still at risk is
// re-alerted every cycle.
type AlwaysAllow struct{}

// Allow implements domain.NotifyPolicy.
func (AlwaysAllow) Allow(ctx context.Context, chatID int64, address string) (bool, error) {
	return true, nil
}

// noopSink drops events when no dashboard feed is wired.
type noopSink struct{}

func (noopSink) Publish(ctx context.Context, ev domain.RiskEvent) {}

// Watcher owns the sweep loop.
type Watcher struct {
	users    domain.UserStore
	scanners *scanner.Registry
	alerts   alertSender
	policy   domain.NotifyPolicy
	sink     domain.EventSink
	interval time.Duration
	trigger  chan struct{}
	logger   *slog.Logger
}

// New creates a Watcher. policy and sink may be nil, in which case alerts are
// always allowed and events are dropped.
func New(users domain.UserStore, scanners *scanner.Registry, alerts alertSender, policy domain.NotifyPolicy, sink domain.EventSink, interval time.Duration, logger *slog.Logger) *Watcher {
	if policy == nil {
		policy = AlwaysAllow{}
	}
	if sink == nil {
		sink = noopSink{}
	}
	if interval <= 0 {
		interval = DefaultInterval
	}
	return &Watcher{
		users:    users,
		scanners: scanners,
		alerts:   alerts,
		policy:   policy,
		sink:     sink,
		interval: interval,
		trigger:  make(chan struct{}, 1),
		logger:   logger.With(slog.String("component", "watcher")),
	}
}

// TriggerSweep requests an out-of-band sweep. It never blocks; a request that
// arrives while one is already pending is coalesced.
func (w *Watcher) TriggerSweep() {
	select {
	case w.trigger <- struct{}{}:
	default:
	}
}

// Run executes one sweep immediately and then on every tick or trigger until
// the context is canceled.
func (w *Watcher) Run(ctx context.Context) error {
	w.logger.Info("watcher started", slog.Duration("interval", w.interval))

	w.Sweep(ctx)

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			w.logger.Info("watcher stopped")
			return ctx.Err()
		case <-ticker.C:
			w.Sweep(ctx)
		case <-w.trigger:
			w.Sweep(ctx)
		}
	}
}

// Sweep checks every wallet of every registered user once. Failures are
// confined to the wallet they occur on; the sweep always visits the rest.
func (w *Watcher) Sweep(ctx context.Context) {
	sweepID := uuid.NewString()
	log := w.logger.With(slog.String("sweep_id", sweepID))

	users, err := w.users.ListUsers(ctx)
	if err != nil {
		log.Error("list users failed", slog.String("error", err.Error()))
		return
	}
	if len(users) == 0 {
		log.Debug("no registered users, sweep skipped")
		return
	}

	start := time.Now()
	wallets, alerted := 0, 0
	for _, user := range users {
		for _, wallet := range user.Wallets {
			if err := ctx.Err(); err != nil {
				return
			}
			wallets++
			if w.checkWallet(ctx, log, sweepID, user, wallet) {
				alerted++
			}
		}
	}

	log.Info("sweep complete",
		slog.Int("users", len(users)),
		slog.Int("wallets", wallets),
		slog.Int("alerted", alerted),
		slog.Duration("elapsed", time.Since(start)),
	)
}

// checkWallet re-scans one subscription and alerts its owner when any
// position sits at or below the warning cutoff. It reports whether an alert
// was delivered.
func (w *Watcher) checkWallet(ctx context.Context, log *slog.Logger, sweepID string, user domain.User, wallet domain.WalletSubscription) bool {
	log = log.With(
		slog.Int64("chat_id", user.ChatID),
		slog.String("wallet", wallet.Address),
		slog.String("protocol", string(wallet.Protocol)),
	)

	// A Kamino subscription with no recorded markets would need a full
	// catalog walk every cycle; those wallets wait for the next manual
	// check to repopulate their market list.
	if wallet.Protocol == domain.ProtocolKamino && len(wallet.Markets) == 0 {
		log.Debug("no cached markets, wallet skipped")
		return false
	}

	sc, err := w.scanners.ForProtocol(wallet.Protocol)
	if err != nil {
		log.Error("no scanner for wallet", slog.String("error", err.Error()))
		return false
	}

	positions, err := sc.TargetedScan(ctx, wallet.Address, wallet.Markets)
	if err != nil {
		log.Warn("scan failed, wallet skipped", slog.String("error", err.Error()))
		return false
	}

	thresholds := user.ThresholdsFor(wallet.Protocol)

	var blocks []string
	lines := make([]domain.RiskLine, 0, len(positions))
	atRisk := false
	for _, p := range positions {
		tier, text := risk.Evaluate(p, thresholds)
		lines = append(lines, domain.RiskLine{
			Market:         p.Market,
			LTV:            p.LTV.StringFixed(2),
			LiquidationLTV: p.LiquidationLTV.StringFixed(2),
			HealthFactor:   p.HealthFactor,
			Tier:           string(tier),
		})
		blocks = append(blocks, text)
		if tier != risk.TierSafe {
			atRisk = true
		}
	}

	alerted := false
	if atRisk {
		alerted = w.alert(ctx, log, user.ChatID, wallet, blocks)
	}

	w.sink.Publish(ctx, domain.RiskEvent{
		SweepID:   sweepID,
		ChatID:    user.ChatID,
		Address:   wallet.Address,
		Protocol:  wallet.Protocol,
		Positions: lines,
		Alerted:   alerted,
		Timestamp: time.Now().UTC(),
	})
	return alerted
}

// alert sends the grouped per-wallet message. The message always carries all
// of the wallet's positions so the subscriber sees the safe ones alongside
// the ones that tripped the alert.
func (w *Watcher) alert(ctx context.Context, log *slog.Logger, chatID int64, wallet domain.WalletSubscription, blocks []string) bool {
	allowed, err := w.policy.Allow(ctx, chatID, wallet.Address)
	if err != nil {
		log.Warn("notify policy check failed, alerting anyway", slog.String("error", err.Error()))
		allowed = true
	}
	if !allowed {
		log.Debug("alert suppressed by policy")
		return false
	}

	title := "Position risk alert"
	message := fmt.Sprintf("Wallet `%s` (%s)\n\n%s",
		wallet.Address, wallet.Protocol, strings.Join(blocks, "\n\n"))

	if err := w.alerts.Notify(ctx, chatID, title, message); err != nil {
		log.Error("alert delivery failed", slog.String("error", err.Error()))
		return false
	}
	return true
}
