package eventlog

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/antgroup/branchless/modules/oid"
	"github.com/antgroup/branchless/modules/trace"
	_ "github.com/mattn/go-sqlite3"
)

const schema = `
CREATE TABLE IF NOT EXISTS transactions (
	tx_id     INTEGER PRIMARY KEY AUTOINCREMENT,
	label     TEXT NOT NULL,
	timestamp REAL NOT NULL
);

CREATE TABLE IF NOT EXISTS events (
	id         INTEGER PRIMARY KEY AUTOINCREMENT,
	tx_id      INTEGER NOT NULL,
	timestamp  REAL NOT NULL,
	kind       INTEGER NOT NULL,
	ref_name   BLOB,
	old_oid    TEXT,
	new_oid    TEXT,
	message    TEXT,
	commit_oid TEXT,
	head_oid   TEXT
);
`

// Store is the event log's SQL-backed handle. One Store owns exactly one
// *sql.DB, following the "single writer per command" policy: callers must
// not share a Store across goroutines performing concurrent writes.
type Store struct {
	db *sql.DB
}

// Open opens (creating if absent) the sqlite-backed event log at path,
// e.g. "<git-dir>/branchless.db".
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite3", path+"?_journal_mode=WAL&_foreign_keys=on")
	if err != nil {
		return nil, fmt.Errorf("eventlog: open %s: %w", path, err)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("eventlog: migrate %s: %w", path, err)
	}
	return &Store{db: db}, nil
}

// Close releases the underlying database handle.
func (s *Store) Close() error {
	return s.db.Close()
}

// MakeTransactionID allocates a new transaction grouping tag and records
// label alongside it for diagnostics.
func (s *Store) MakeTransactionID(ctx context.Context, now float64, label string) (TxID, error) {
	res, err := s.db.ExecContext(ctx, `INSERT INTO transactions (label, timestamp) VALUES (?, ?)`, label, now)
	if err != nil {
		return 0, fmt.Errorf("eventlog: make transaction id: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("eventlog: make transaction id: %w", err)
	}
	return TxID(id), nil
}

// AddEvents appends events atomically: all rows appear, or none do.
func (s *Store) AddEvents(ctx context.Context, events []Event) error {
	if len(events) == 0 {
		return nil
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("eventlog: add events: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `INSERT INTO events
		(tx_id, timestamp, kind, ref_name, old_oid, new_oid, message, commit_oid, head_oid)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("eventlog: add events: %w", err)
	}
	defer stmt.Close()

	for _, e := range events {
		if _, err := stmt.ExecContext(ctx,
			int64(e.TxID), e.Timestamp, int8(e.Kind),
			[]byte(e.RefName), zeroableString(e.OldOid), zeroableString(e.NewOid),
			e.Message, nonZeroString(e.CommitOid), zeroableString(e.HeadOid),
		); err != nil {
			return fmt.Errorf("eventlog: add events: %w", err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("eventlog: add events: %w", err)
	}
	return nil
}

// LatestCursor returns the index of the most recently appended event, or
// the zero Cursor if the log is empty.
func (s *Store) LatestCursor(ctx context.Context) (Cursor, error) {
	var max sql.NullInt64
	if err := s.db.QueryRowContext(ctx, `SELECT MAX(id) FROM events`).Scan(&max); err != nil {
		return 0, fmt.Errorf("eventlog: latest cursor: %w", err)
	}
	if !max.Valid {
		return 0, nil
	}
	return Cursor(max.Int64), nil
}

// MakeDefaultCursor is equivalent to LatestCursor at call time.
func (s *Store) MakeDefaultCursor(ctx context.Context) (Cursor, error) {
	return s.LatestCursor(ctx)
}

// GetEventsUpTo returns every event with id <= cursor, in append order.
// A malformed row is logged and skipped rather than aborting the replay —
// each event is self-contained, so correctness survives losing one row.
func (s *Store) GetEventsUpTo(ctx context.Context, cursor Cursor) ([]Event, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id, tx_id, timestamp, kind, ref_name, old_oid, new_oid, message, commit_oid, head_oid
		FROM events WHERE id <= ? ORDER BY id ASC`, int64(cursor))
	if err != nil {
		return nil, fmt.Errorf("eventlog: get events: %w", err)
	}
	defer rows.Close()

	var events []Event
	for rows.Next() {
		var (
			e                                          Event
			txID, kind                                 int64
			refName                                    []byte
			oldOid, newOid, message, commitOid, headOid sql.NullString
		)
		if err := rows.Scan(&e.ID, &txID, &e.Timestamp, &kind, &refName, &oldOid, &newOid, &message, &commitOid, &headOid); err != nil {
			trace.Errorf("eventlog: skipping malformed row: %v", err)
			continue
		}
		e.TxID = TxID(txID)
		e.Kind = Kind(kind)
		e.RefName = string(refName)
		e.Message = message.String
		if oldOid.Valid && oldOid.String != "" {
			if z, err := oid.ParseZeroable(oldOid.String); err == nil {
				e.OldOid = z
			} else {
				trace.Errorf("eventlog: skipping row %d with malformed old_oid: %v", e.ID, err)
				continue
			}
		}
		if newOid.Valid && newOid.String != "" {
			if z, err := oid.ParseZeroable(newOid.String); err == nil {
				e.NewOid = z
			} else {
				trace.Errorf("eventlog: skipping row %d with malformed new_oid: %v", e.ID, err)
				continue
			}
		}
		if headOid.Valid && headOid.String != "" {
			if z, err := oid.ParseZeroable(headOid.String); err == nil {
				e.HeadOid = z
			} else {
				trace.Errorf("eventlog: skipping row %d with malformed head_oid: %v", e.ID, err)
				continue
			}
		}
		if commitOid.Valid && commitOid.String != "" {
			if n, err := oid.ParseNonZero(commitOid.String); err == nil {
				e.CommitOid = n
			} else {
				trace.Errorf("eventlog: skipping row %d with malformed commit_oid: %v", e.ID, err)
				continue
			}
		}
		events = append(events, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("eventlog: get events: %w", err)
	}
	return events, nil
}

func zeroableString(z oid.Zeroable) string {
	if (z == oid.Zeroable{}) {
		return ""
	}
	return z.String()
}

func nonZeroString(n oid.NonZeroOid) string {
	if (n == oid.NonZeroOid{}) {
		return ""
	}
	return n.String()
}
