// Package sync runs the BGG collection synchronization pipeline: it iterates
// registered accounts, fetches each account's collection, decodes it, and
// upserts the records into Postgres, isolating per-account failures. It also
// houses the backfill job that re-probes accounts for private collections.
package sync

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	gosync "sync"
	"time"

	"github.com/benjamind10/darkbot/bgg"
)

// Account is a registered user holding a BGG username.
type Account struct {
	ID      int64
	BGGUser string
}

// Store wraps the persistence operations the pipeline needs. All writes use
// scoped transactions: committed on success, rolled back on any error, with
// the transaction handle released on every exit path.
type Store struct {
	DB *sql.DB

	// markMu serializes MarkCollectionPrivate so concurrent backfill probes
	// never contend on the users table.
	markMu gosync.Mutex
}

// ListAccounts returns every account with a non-empty BGG username.
func (s *Store) ListAccounts(ctx context.Context) ([]Account, error) {
	return s.listAccounts(ctx,
		`SELECT id, bgguser FROM users WHERE bgguser IS NOT NULL AND bgguser <> ''`)
}

// ListBackfillCandidates returns accounts with a BGG username that are not
// already marked private.
func (s *Store) ListBackfillCandidates(ctx context.Context) ([]Account, error) {
	return s.listAccounts(ctx,
		`SELECT id, bgguser FROM users WHERE bgguser IS NOT NULL AND bgguser <> '' AND COALESCE(bggprivate, FALSE) = FALSE`)
}

func (s *Store) listAccounts(ctx context.Context, query string) ([]Account, error) {
	rows, err := s.DB.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("list accounts: %w", err)
	}
	defer func() {
		if cerr := rows.Close(); cerr != nil {
			slog.Warn("failed to close rows", slog.Any("err", cerr))
		}
	}()
	var accounts []Account
	for rows.Next() {
		var a Account
		if err := rows.Scan(&a.ID, &a.BGGUser); err != nil {
			return nil, fmt.Errorf("scan account: %w", err)
		}
		accounts = append(accounts, a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate accounts: %w", err)
	}
	return accounts, nil
}

// UpsertGame writes one decoded record for userID through the server-side
// upsert_boardgame routine. The call is atomic and idempotent: repeating it
// with identical input leaves the row unchanged.
func (s *Store) UpsertGame(ctx context.Context, userID int64, rec bgg.GameRecord) error {
	tx, err := s.DB.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin upsert tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	_, err = tx.ExecContext(ctx, `SELECT upsert_boardgame(
		$1::INTEGER, $2::VARCHAR, $3::INTEGER, $4::DOUBLE PRECISION,
		$5::BOOLEAN, $6::BOOLEAN, $7::BOOLEAN, $8::BOOLEAN,
		$9::BOOLEAN, $10::BOOLEAN, $11::BOOLEAN, $12::BOOLEAN,
		$13::INTEGER, $14::INTEGER, $15::INTEGER, $16::INTEGER)`,
		userID, rec.Name, rec.BGGID, rec.AvgRating,
		rec.Own, rec.PrevOwned, rec.ForTrade, rec.Want,
		rec.WantToPlay, rec.WantToBuy, rec.Wishlist, rec.Preordered,
		rec.MinPlayers, rec.MaxPlayers, rec.MinPlaytime, rec.NumPlays)
	if err != nil {
		return fmt.Errorf("upsert boardgame %q (bggid=%d): %w", rec.Name, rec.BGGID, err)
	}
	return tx.Commit()
}

// MarkCollectionPrivate flags an account as access-restricted and bumps its
// modified timestamp in one transaction, returning the new timestamp. The
// flag is never cleared by the pipeline; only manual administration re-opens
// an account.
func (s *Store) MarkCollectionPrivate(ctx context.Context, userID int64) (time.Time, error) {
	s.markMu.Lock()
	defer s.markMu.Unlock()

	tx, err := s.DB.BeginTx(ctx, nil)
	if err != nil {
		return time.Time{}, fmt.Errorf("begin mark tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	var modified time.Time
	err = tx.QueryRowContext(ctx,
		`UPDATE users SET bggprivate = TRUE, datemodified = CURRENT_TIMESTAMP WHERE id = $1 RETURNING datemodified`,
		userID).Scan(&modified)
	if err != nil {
		return time.Time{}, fmt.Errorf("mark user %d private: %w", userID, err)
	}
	if err := tx.Commit(); err != nil {
		return time.Time{}, fmt.Errorf("commit mark tx: %w", err)
	}
	return modified, nil
}
