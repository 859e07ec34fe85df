// Package command implements the chat command front-end: parsing, validation,
// and replies for the bot's slash commands.
package command

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	"github.com/defiwatchbot/defiwatch/internal/domain"
	"github.com/defiwatchbot/defiwatch/internal/risk"
	"github.com/defiwatchbot/defiwatch/internal/scanner"
)

const helpText = `Commands:
/add <address> - watch a wallet (Aave 0x... or Kamino base58)
/remove <address> - stop watching a wallet
/list - show watched wallets
/check <address> - scan a wallet right now
/refresh - reload market catalogs and re-scan your wallets
/thresholds <kamino|aave> <warning> <danger> - set alert cutoffs
/help - this message`

// catalogRefresher re-fetches every catalog partition.
type catalogRefresher interface {
	RefreshAll(ctx context.Context)
}

// Router maps incoming command text to actions. Every path produces a reply;
// a command that fails still tells the user what went wrong.
type Router struct {
	users    domain.UserStore
	scanners *scanner.Registry
	catalog  catalogRefresher
	logger   *slog.Logger
}

// NewRouter creates a command router.
func NewRouter(users domain.UserStore, scanners *scanner.Registry, catalog catalogRefresher, logger *slog.Logger) *Router {
	return &Router{
		users:    users,
		scanners: scanners,
		catalog:  catalog,
		logger:   logger.With(slog.String("component", "command")),
	}
}

// Handle processes one message and returns the reply text. Unknown commands
// and plain text get the help message.
func (r *Router) Handle(ctx context.Context, chatID int64, text string) string {
	fields := strings.Fields(text)
	if len(fields) == 0 {
		return helpText
	}

	// Group chats address commands as /cmd@botname.
	cmd := strings.ToLower(fields[0])
	if i := strings.Index(cmd, "@"); i > 0 {
		cmd = cmd[:i]
	}
	args := fields[1:]

	r.logger.Info("command received",
		slog.Int64("chat_id", chatID),
		slog.String("command", cmd),
	)

	switch cmd {
	case "/add":
		return r.handleAdd(ctx, chatID, args)
	case "/remove":
		return r.handleRemove(ctx, chatID, args)
	case "/list":
		return r.handleList(ctx, chatID)
	case "/check":
		return r.handleCheck(ctx, chatID, args)
	case "/refresh":
		return r.handleRefresh(ctx, chatID)
	case "/thresholds":
		return r.handleThresholds(ctx, chatID, args)
	default:
		return helpText
	}
}

func (r *Router) handleAdd(ctx context.Context, chatID int64, args []string) string {
	if len(args) != 1 {
		return "Usage: /add <address>"
	}
	address := args[0]

	protocol, err := domain.DetectProtocol(address)
	if err != nil {
		return fmt.Sprintf("Unrecognized address %q. Expected an Aave wallet (0x + 40 hex) or a Kamino wallet (base58).", address)
	}

	sub := domain.WalletSubscription{Address: address, Protocol: protocol}
	if err := r.users.AddWallet(ctx, chatID, sub); err != nil {
		if errors.Is(err, domain.ErrAlreadyExists) {
			return fmt.Sprintf("Already watching `%s`.", address)
		}
		r.logger.Error("add wallet failed", slog.String("error", err.Error()))
		return "Could not save the wallet, please try again."
	}

	positions, scanErr := r.rescan(ctx, chatID, address, protocol)
	header := fmt.Sprintf("Now watching `%s` (%s).", address, protocol)
	if scanErr != nil {
		return header + "\nInitial scan failed, positions will appear on the next check."
	}
	if len(positions) == 0 {
		return header + "\nNo active borrow positions found."
	}
	return header + "\n\n" + r.formatPositions(ctx, chatID, protocol, positions)
}

func (r *Router) handleRemove(ctx context.Context, chatID int64, args []string) string {
	if len(args) != 1 {
		return "Usage: /remove <address>"
	}
	address := args[0]

	if err := r.users.RemoveWallet(ctx, chatID, address); err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return fmt.Sprintf("You are not watching `%s`.", address)
		}
		r.logger.Error("remove wallet failed", slog.String("error", err.Error()))
		return "Could not remove the wallet, please try again."
	}
	return fmt.Sprintf("Stopped watching `%s`.", address)
}

func (r *Router) handleList(ctx context.Context, chatID int64) string {
	user, err := r.users.GetUser(ctx, chatID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return "You are not watching any wallets. Use /add <address> to start."
		}
		r.logger.Error("get user failed", slog.String("error", err.Error()))
		return "Could not load your wallets, please try again."
	}
	if len(user.Wallets) == 0 {
		return "You are not watching any wallets. Use /add <address> to start."
	}

	var b strings.Builder
	b.WriteString("Watched wallets:\n")
	for _, w := range user.Wallets {
		fmt.Fprintf(&b, "• `%s` (%s, %d market(s))\n", w.Address, w.Protocol, len(w.Markets))
	}
	for _, p := range []domain.Protocol{domain.ProtocolKamino, domain.ProtocolAave} {
		t := user.ThresholdsFor(p)
		fmt.Fprintf(&b, "%s thresholds: warning %.2f, danger %.2f\n", p, t.Warning, t.Danger)
	}
	return strings.TrimRight(b.String(), "\n")
}

func (r *Router) handleCheck(ctx context.Context, chatID int64, args []string) string {
	if len(args) != 1 {
		return "Usage: /check <address>"
	}
	address := args[0]

	protocol, err := domain.DetectProtocol(address)
	if err != nil {
		return fmt.Sprintf("Unrecognized address %q.", address)
	}

	positions, err := r.rescan(ctx, chatID, address, protocol)
	if err != nil {
		r.logger.Error("check scan failed", slog.String("error", err.Error()))
		return fmt.Sprintf("Scan of `%s` failed: %v", address, err)
	}
	if len(positions) == 0 {
		return fmt.Sprintf("No active borrow positions for `%s` on %s.", address, protocol)
	}
	return fmt.Sprintf("Positions for `%s`:\n\n%s",
		address, r.formatPositions(ctx, chatID, protocol, positions))
}

func (r *Router) handleRefresh(ctx context.Context, chatID int64) string {
	r.catalog.RefreshAll(ctx)

	user, err := r.users.GetUser(ctx, chatID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return "Market catalogs refreshed."
		}
		r.logger.Error("get user failed", slog.String("error", err.Error()))
		return "Market catalogs refreshed."
	}

	rescanned, failed := 0, 0
	for _, w := range user.Wallets {
		if _, err := r.rescan(ctx, chatID, w.Address, w.Protocol); err != nil {
			failed++
		} else {
			rescanned++
		}
	}
	if failed > 0 {
		return fmt.Sprintf("Market catalogs refreshed. Re-scanned %d wallet(s), %d failed.", rescanned, failed)
	}
	return fmt.Sprintf("Market catalogs refreshed. Re-scanned %d wallet(s).", rescanned)
}

func (r *Router) handleThresholds(ctx context.Context, chatID int64, args []string) string {
	const usage = "Usage: /thresholds <kamino|aave> <warning> <danger>\nBoth values must be positive numbers, e.g. /thresholds kamino 1.5 1.3"

	if len(args) != 3 {
		return usage
	}

	var protocol domain.Protocol
	switch strings.ToLower(args[0]) {
	case "kamino":
		protocol = domain.ProtocolKamino
	case "aave":
		protocol = domain.ProtocolAave
	default:
		return usage
	}

	warning, err1 := strconv.ParseFloat(args[1], 64)
	danger, err2 := strconv.ParseFloat(args[2], 64)
	if err1 != nil || err2 != nil || warning <= 0 || danger <= 0 {
		return usage
	}

	// Inverted values (danger above warning) are stored verbatim; the
	// evaluator's rule order decides what they mean.
	settings := domain.ThresholdSettings{Warning: warning, Danger: danger}
	if err := r.users.SetThresholds(ctx, chatID, protocol, settings); err != nil {
		r.logger.Error("set thresholds failed", slog.String("error", err.Error()))
		return "Could not save thresholds, please try again."
	}
	return fmt.Sprintf("%s thresholds set: warning %.2f, danger %.2f", protocol, warning, danger)
}

// rescan runs a full scan and, when the wallet is subscribed, refreshes its
// cached market list with the markets that showed positions.
func (r *Router) rescan(ctx context.Context, chatID int64, address string, protocol domain.Protocol) ([]domain.Position, error) {
	sc, err := r.scanners.ForProtocol(protocol)
	if err != nil {
		return nil, err
	}

	positions, err := sc.FullScan(ctx, address, nil)
	if err != nil {
		return nil, err
	}

	markets := marketIDs(positions)
	if err := r.users.UpdateWalletMarkets(ctx, chatID, address, markets); err != nil && !errors.Is(err, domain.ErrNotFound) {
		r.logger.Warn("update wallet markets failed",
			slog.String("wallet", address),
			slog.String("error", err.Error()),
		)
	}
	return positions, nil
}

// formatPositions renders the graded position blocks using the caller's
// thresholds for the given protocol.
func (r *Router) formatPositions(ctx context.Context, chatID int64, protocol domain.Protocol, positions []domain.Position) string {
	thresholds := domain.DefaultThresholds()
	if user, err := r.users.GetUser(ctx, chatID); err == nil {
		thresholds = user.ThresholdsFor(protocol)
	}

	blocks := make([]string, 0, len(positions))
	for _, p := range positions {
		_, text := risk.Evaluate(p, thresholds)
		blocks = append(blocks, text)
	}
	return strings.Join(blocks, "\n\n")
}

// marketIDs returns the distinct market identifiers of the positions, in
// first-seen order.
func marketIDs(positions []domain.Position) []string {
	seen := make(map[string]bool, len(positions))
	var out []string
	for _, p := range positions {
		if p.MarketID == "" || seen[p.MarketID] {
			continue
		}
		seen[p.MarketID] = true
		out = append(out, p.MarketID)
	}
	return out
}
