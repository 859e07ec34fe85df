package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/defiwatchbot/defiwatch/internal/domain"
)

// UserStore implements domain.UserStore using PostgreSQL.
type UserStore struct {
	pool *pgxpool.Pool
}

// NewUserStore creates a UserStore backed by the given connection pool.
func NewUserStore(pool *pgxpool.Pool) *UserStore {
	return &UserStore{pool: pool}
}

var _ domain.UserStore = (*UserStore)(nil)

// GetUser loads one user with wallets and threshold overrides.
func (s *UserStore) GetUser(ctx context.Context, chatID int64) (domain.User, error) {
	u := domain.User{ChatID: chatID}

	err := s.pool.QueryRow(ctx,
		`SELECT created_at FROM users WHERE chat_id = $1`, chatID,
	).Scan(&u.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.User{}, domain.ErrNotFound
		}
		return domain.User{}, fmt.Errorf("postgres: get user %d: %w", chatID, err)
	}

	if u.Wallets, err = s.walletsFor(ctx, chatID); err != nil {
		return domain.User{}, err
	}
	if u.Thresholds, err = s.thresholdsFor(ctx, chatID); err != nil {
		return domain.User{}, err
	}
	return u, nil
}

// ListUsers returns every registered user with subscriptions and thresholds
// loaded, ordered by registration time.
func (s *UserStore) ListUsers(ctx context.Context) ([]domain.User, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT chat_id, created_at FROM users ORDER BY created_at`)
	if err != nil {
		return nil, fmt.Errorf("postgres: list users: %w", err)
	}
	defer rows.Close()

	var users []domain.User
	index := make(map[int64]int)
	for rows.Next() {
		var u domain.User
		if err := rows.Scan(&u.ChatID, &u.CreatedAt); err != nil {
			return nil, fmt.Errorf("postgres: scan user: %w", err)
		}
		index[u.ChatID] = len(users)
		users = append(users, u)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("postgres: list users: %w", err)
	}
	if len(users) == 0 {
		return nil, nil
	}

	walletRows, err := s.pool.Query(ctx,
		`SELECT chat_id, address, protocol, markets, added_at
		 FROM wallets ORDER BY added_at`)
	if err != nil {
		return nil, fmt.Errorf("postgres: list wallets: %w", err)
	}
	defer walletRows.Close()

	for walletRows.Next() {
		var chatID int64
		var w domain.WalletSubscription
		var protocol string
		if err := walletRows.Scan(&chatID, &w.Address, &protocol, &w.Markets, &w.AddedAt); err != nil {
			return nil, fmt.Errorf("postgres: scan wallet: %w", err)
		}
		w.Protocol = domain.Protocol(protocol)
		if i, ok := index[chatID]; ok {
			users[i].Wallets = append(users[i].Wallets, w)
		}
	}
	if err := walletRows.Err(); err != nil {
		return nil, fmt.Errorf("postgres: list wallets: %w", err)
	}

	thresholdRows, err := s.pool.Query(ctx,
		`SELECT chat_id, protocol, warning, danger FROM thresholds`)
	if err != nil {
		return nil, fmt.Errorf("postgres: list thresholds: %w", err)
	}
	defer thresholdRows.Close()

	for thresholdRows.Next() {
		var chatID int64
		var protocol string
		var t domain.ThresholdSettings
		if err := thresholdRows.Scan(&chatID, &protocol, &t.Warning, &t.Danger); err != nil {
			return nil, fmt.Errorf("postgres: scan thresholds: %w", err)
		}
		if i, ok := index[chatID]; ok {
			if users[i].Thresholds == nil {
				users[i].Thresholds = make(map[domain.Protocol]domain.ThresholdSettings)
			}
			users[i].Thresholds[domain.Protocol(protocol)] = t
		}
	}
	if err := thresholdRows.Err(); err != nil {
		return nil, fmt.Errorf("postgres: list thresholds: %w", err)
	}

	return users, nil
}

// AddWallet creates the subscription, registering the user on first wallet.
func (s *UserStore) AddWallet(ctx context.Context, chatID int64, w domain.WalletSubscription) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("postgres: begin add wallet: %w", err)
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx,
		`INSERT INTO users (chat_id) VALUES ($1) ON CONFLICT DO NOTHING`,
		chatID,
	); err != nil {
		return fmt.Errorf("postgres: ensure user %d: %w", chatID, err)
	}

	markets := w.Markets
	if markets == nil {
		markets = []string{}
	}
	tag, err := tx.Exec(ctx,
		`INSERT INTO wallets (chat_id, address, protocol, markets)
		 VALUES ($1, $2, $3, $4)
		 ON CONFLICT (chat_id, address) DO NOTHING`,
		chatID, w.Address, string(w.Protocol), markets,
	)
	if err != nil {
		return fmt.Errorf("postgres: add wallet %s: %w", w.Address, err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrAlreadyExists
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("postgres: commit add wallet: %w", err)
	}
	return nil
}

// RemoveWallet drops the subscription; removing the last wallet also drops
// the user record and its thresholds.
func (s *UserStore) RemoveWallet(ctx context.Context, chatID int64, address string) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("postgres: begin remove wallet: %w", err)
	}
	defer tx.Rollback(ctx)

	tag, err := tx.Exec(ctx,
		`DELETE FROM wallets WHERE chat_id = $1 AND address = $2`,
		chatID, address,
	)
	if err != nil {
		return fmt.Errorf("postgres: remove wallet %s: %w", address, err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound
	}

	if _, err := tx.Exec(ctx,
		`DELETE FROM users WHERE chat_id = $1
		 AND NOT EXISTS (SELECT 1 FROM wallets WHERE chat_id = $1)`,
		chatID,
	); err != nil {
		return fmt.Errorf("postgres: prune user %d: %w", chatID, err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("postgres: commit remove wallet: %w", err)
	}
	return nil
}

// UpdateWalletMarkets replaces the cached market list. Last write wins.
func (s *UserStore) UpdateWalletMarkets(ctx context.Context, chatID int64, address string, markets []string) error {
	if markets == nil {
		markets = []string{}
	}
	tag, err := s.pool.Exec(ctx,
		`UPDATE wallets SET markets = $3 WHERE chat_id = $1 AND address = $2`,
		chatID, address, markets,
	)
	if err != nil {
		return fmt.Errorf("postgres: update wallet markets %s: %w", address, err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

// SetThresholds upserts the per-protocol cutoffs, registering the user if
// they set thresholds before adding a wallet.
func (s *UserStore) SetThresholds(ctx context.Context, chatID int64, p domain.Protocol, t domain.ThresholdSettings) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("postgres: begin set thresholds: %w", err)
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx,
		`INSERT INTO users (chat_id) VALUES ($1) ON CONFLICT DO NOTHING`,
		chatID,
	); err != nil {
		return fmt.Errorf("postgres: ensure user %d: %w", chatID, err)
	}

	if _, err := tx.Exec(ctx,
		`INSERT INTO thresholds (chat_id, protocol, warning, danger)
		 VALUES ($1, $2, $3, $4)
		 ON CONFLICT (chat_id, protocol)
		 DO UPDATE SET warning = EXCLUDED.warning, danger = EXCLUDED.danger`,
		chatID, string(p), t.Warning, t.Danger,
	); err != nil {
		return fmt.Errorf("postgres: set thresholds %d/%s: %w", chatID, p, err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("postgres: commit set thresholds: %w", err)
	}
	return nil
}

func (s *UserStore) walletsFor(ctx context.Context, chatID int64) ([]domain.WalletSubscription, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT address, protocol, markets, added_at
		 FROM wallets WHERE chat_id = $1 ORDER BY added_at`, chatID)
	if err != nil {
		return nil, fmt.Errorf("postgres: get wallets %d: %w", chatID, err)
	}
	defer rows.Close()

	var wallets []domain.WalletSubscription
	for rows.Next() {
		var w domain.WalletSubscription
		var protocol string
		if err := rows.Scan(&w.Address, &protocol, &w.Markets, &w.AddedAt); err != nil {
			return nil, fmt.Errorf("postgres: scan wallet: %w", err)
		}
		w.Protocol = domain.Protocol(protocol)
		wallets = append(wallets, w)
	}
	return wallets, rows.Err()
}

func (s *UserStore) thresholdsFor(ctx context.Context, chatID int64) (map[domain.Protocol]domain.ThresholdSettings, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT protocol, warning, danger FROM thresholds WHERE chat_id = $1`, chatID)
	if err != nil {
		return nil, fmt.Errorf("postgres: get thresholds %d: %w", chatID, err)
	}
	defer rows.Close()

	thresholds := make(map[domain.Protocol]domain.ThresholdSettings)
	for rows.Next() {
		var protocol string
		var t domain.ThresholdSettings
		if err := rows.Scan(&protocol, &t.Warning, &t.Danger); err != nil {
			return nil, fmt.Errorf("postgres: scan thresholds: %w", err)
		}
		thresholds[domain.Protocol(protocol)] = t
	}
	return thresholds, rows.Err()
}
