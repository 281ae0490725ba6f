package history

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/shopspring/decimal"
)

// SQLiteStore implements Store backed by a SQLite database.
type SQLiteStore struct {
	db  *sql.DB
	now func() time.Time

	insertSearch *sql.Stmt
	countSince   *sql.Stmt
}

// Open opens (creating if needed) the database at path, migrates it and
// returns a store owning the connection. Use ":memory:" for a throwaway
// database.
func Open(path string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite3", path+"?_foreign_keys=on&_txlock=immediate")
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	// sqlite allows a single writer and every :memory: connection is a new database
	db.SetMaxOpenConns(1)

	if err := NewMigrationRunner(db).Run(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate %s: %w", path, err)
	}

	s, err := NewSQLiteStore(db)
	if err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

// NewSQLiteStore creates a store from an already opened and migrated
// database.
func NewSQLiteStore(db *sql.DB) (*SQLiteStore, error) {
	s := &SQLiteStore{db: db, now: time.Now}

	var err error
	s.insertSearch, err = db.Prepare(`INSERT INTO search_history (user_id, query, ts) VALUES (?, ?, ?)`)
	if err != nil {
		return nil, fmt.Errorf("prepare statements: %w", err)
	}
	s.countSince, err = db.Prepare(`SELECT COUNT(*) FROM search_history WHERE user_id = ? AND ts >= ?`)
	if err != nil {
		return nil, fmt.Errorf("prepare statements: %w", err)
	}

	return s, nil
}

func formatTime(t time.Time) string {
	return t.UTC().Truncate(time.Second).Format(time.RFC3339)
}

func (s *SQLiteStore) RecordSearch(ctx context.Context, userID int64, query string) (int64, error) {
	res, err := s.insertSearch.ExecContext(ctx, userID, query, formatTime(s.now()))
	if err != nil {
		return 0, fmt.Errorf("record search: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("record search: %w", err)
	}
	return id, nil
}

// RecordSearchWithin records a search unless userID already made limit
// searches since the given time, in which case it returns ErrLimitReached.
// The count and the insert share one transaction.
func (s *SQLiteStore) RecordSearchWithin(ctx context.Context, userID int64, query string, since time.Time, limit int) (int64, error) {
	var id int64
	err := s.inTx(ctx, func(tx *sql.Tx) error {
		var n int
		if err := tx.StmtContext(ctx, s.countSince).QueryRowContext(ctx, userID, formatTime(since)).Scan(&n); err != nil {
			return fmt.Errorf("count searches: %w", err)
		}
		if n >= limit {
			return ErrLimitReached
		}

		res, err := tx.StmtContext(ctx, s.insertSearch).ExecContext(ctx, userID, query, formatTime(s.now()))
		if err != nil {
			return fmt.Errorf("record search: %w", err)
		}
		id, err = res.LastInsertId()
		if err != nil {
			return fmt.Errorf("record search: %w", err)
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return id, nil
}

func (s *SQLiteStore) CountSearchesSince(ctx context.Context, userID int64, since time.Time) (int, error) {
	var n int
	if err := s.countSince.QueryRowContext(ctx, userID, formatTime(since)).Scan(&n); err != nil {
		return 0, fmt.Errorf("count searches: %w", err)
	}
	return n, nil
}

func (s *SQLiteStore) UpdateSearch(ctx context.Context, id int64, itemName string, prices []DomainPrice) error {
	return s.inTx(ctx, func(tx *sql.Tx) error {
		return updateSearch(ctx, tx, id, itemName, prices)
	})
}

func (s *SQLiteStore) UpdateMostRecentSearch(ctx context.Context, userID int64, itemName string, prices []DomainPrice) error {
	return s.inTx(ctx, func(tx *sql.Tx) error {
		var id sql.NullInt64
		err := tx.QueryRowContext(ctx,
			`SELECT MAX(id) FROM search_history WHERE user_id = ?`, userID,
		).Scan(&id)
		if err != nil {
			return fmt.Errorf("find latest search: %w", err)
		}
		if !id.Valid {
			return fmt.Errorf("user %d: %w", userID, ErrSearchNotFound)
		}
		return updateSearch(ctx, tx, id.Int64, itemName, prices)
	})
}

func updateSearch(ctx context.Context, tx *sql.Tx, id int64, itemName string, prices []DomainPrice) error {
	res, err := tx.ExecContext(ctx, `UPDATE search_history SET item_name = ? WHERE id = ?`, itemName, id)
	if err != nil {
		return fmt.Errorf("update search %d: %w", id, err)
	}
	if n, err := res.RowsAffected(); err != nil {
		return fmt.Errorf("update search %d: %w", id, err)
	} else if n == 0 {
		return fmt.Errorf("search %d: %w", id, ErrSearchNotFound)
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM search_prices WHERE search_id = ?`, id); err != nil {
		return fmt.Errorf("clear prices of search %d: %w", id, err)
	}

	for i, p := range prices {
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO search_prices (search_id, pos, currency, domain, price, url, source)
			VALUES (?, ?, ?, ?, ?, ?, ?)
		`, id, i, p.Currency, p.Domain, p.Price, p.URL, p.Source); err != nil {
			return fmt.Errorf("store %s price of search %d: %w", p.Currency, id, err)
		}
	}
	return nil
}

func (s *SQLiteStore) History(ctx context.Context, userID int64) ([]SearchRecord, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT h.id, h.user_id, h.query, h.ts, h.item_name,
		       p.currency, p.domain, p.price, p.url, p.source
		FROM search_history h
		LEFT JOIN search_prices p ON p.search_id = h.id
		WHERE h.user_id = ?
		ORDER BY h.ts DESC, h.id DESC, p.pos
	`, userID)
	if err != nil {
		return nil, fmt.Errorf("query history: %w", err)
	}
	defer rows.Close()

	records := []SearchRecord{}
	for rows.Next() {
		var (
			r                          SearchRecord
			ts                         string
			currency, domain, url, src sql.NullString
			price                      decimal.NullDecimal
		)
		if err := rows.Scan(&r.ID, &r.UserID, &r.Query, &ts, &r.ItemName,
			&currency, &domain, &price, &url, &src); err != nil {
			return nil, fmt.Errorf("scan history: %w", err)
		}

		if n := len(records); n == 0 || records[n-1].ID != r.ID {
			if r.Timestamp, err = time.Parse(time.RFC3339, ts); err != nil {
				return nil, fmt.Errorf("parse timestamp of search %d: %w", r.ID, err)
			}
			r.Prices = []DomainPrice{}
			records = append(records, r)
		}

		if currency.Valid {
			last := &records[len(records)-1]
			last.Prices = append(last.Prices, DomainPrice{
				Currency: currency.String,
				Domain:   domain.String,
				Price:    price,
				URL:      url.String,
				Source:   src.String,
			})
		}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate history: %w", err)
	}
	return records, nil
}

func (s *SQLiteStore) inTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	if err := fn(tx); err != nil {
		return err
	}
	return tx.Commit()
}

func (s *SQLiteStore) Close() error {
	var errs []error
	for _, stmt := range []*sql.Stmt{s.insertSearch, s.countSince} {
		if stmt != nil {
			errs = append(errs, stmt.Close())
		}
	}
	errs = append(errs, s.db.Close())
	return errors.Join(errs...)
}

// Compile-time interface check.
var _ Store = (*SQLiteStore)(nil)
