// Package journal keeps a SQLite record of every ingest outcome so decoded
// messages and failures can be inspected after the fact.
package journal

import (
	"context"
	"database/sql"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"time"

	"github.com/zeebo/blake3"
	_ "modernc.org/sqlite"

	"github.com/mithrel/ingestd/internal/ingest"
)

const schema = `
CREATE TABLE IF NOT EXISTS outcomes (
  id          INTEGER PRIMARY KEY AUTOINCREMENT,
  conn_id     TEXT NOT NULL,
  kind        TEXT NOT NULL,
  received_at INTEGER NOT NULL,
  size        INTEGER NOT NULL,
  digest      TEXT NOT NULL DEFAULT '',
  payload     TEXT NOT NULL DEFAULT '',
  error       TEXT NOT NULL DEFAULT ''
);
CREATE INDEX IF NOT EXISTS outcomes_kind_received ON outcomes(kind, received_at);
`

// recordTimeout bounds a single insert made on behalf of an Observer.
const recordTimeout = 5 * time.Second

// Entry is one journaled outcome.
type Entry struct {
	ID         int64       `json:"id"`
	ConnID     string      `json:"conn_id"`
	Kind       ingest.Kind `json:"kind"`
	ReceivedAt time.Time   `json:"received_at"`
	Size       int         `json:"size"`
	Digest     string      `json:"digest,omitempty"`
	Payload    string      `json:"payload,omitempty"`
	Error      string      `json:"error,omitempty"`
}

// Query filters List. Zero values mean no filter; Limit <= 0 means 100.
type Query struct {
	Kind  ingest.Kind
	Since time.Time
	Limit int
}

// Journal is a SQLite-backed outcome log.
type Journal struct {
	db     *sql.DB
	log    *slog.Logger
	closed atomic.Bool
}

// Open creates or opens the journal database at path.
func Open(ctx context.Context, path string, log *slog.Logger) (*Journal, error) {
	if log == nil {
		log = slog.Default()
	}
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
			return nil, err
		}
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	// Handler goroutines insert concurrently; a single connection serializes
	// them instead of surfacing SQLITE_BUSY.
	db.SetMaxOpenConns(1)
	for _, pragma := range []string{"PRAGMA journal_mode=WAL", "PRAGMA busy_timeout=5000"} {
		if _, err := db.ExecContext(ctx, pragma); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("journal %s: %w", pragma, err)
		}
	}
	if _, err := db.ExecContext(ctx, schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("journal schema: %w", err)
	}
	return &Journal{db: db, log: log}, nil
}

// Close closes the database. Outcomes reported afterwards are dropped.
func (j *Journal) Close() error {
	j.closed.Store(true)
	return j.db.Close()
}

// Digest returns the hex BLAKE3 hash of a payload.
func Digest(b []byte) string {
	sum := blake3.Sum256(b)
	return hex.EncodeToString(sum[:])
}

// Record stores one outcome.
func (j *Journal) Record(ctx context.Context, o ingest.Outcome) (int64, error) {
	at := o.At
	if at.IsZero() {
		at = time.Now()
	}
	var digest, payload, errText string
	if o.Message != nil {
		digest = Digest(o.Message.Raw)
		payload = o.Message.String()
	}
	if o.Err != nil {
		errText = o.Err.Error()
	}
	res, err := j.db.ExecContext(ctx,
		`INSERT INTO outcomes(conn_id, kind, received_at, size, digest, payload, error) VALUES(?,?,?,?,?,?,?)`,
		o.ConnID, string(o.Kind), at.UTC().UnixNano(), o.Size, digest, payload, errText)
	if err != nil {
		return 0, err
	}
	return res.LastInsertId()
}

// List returns the newest entries first.
func (j *Journal) List(ctx context.Context, q Query) ([]Entry, error) {
	limit := q.Limit
	if limit <= 0 {
		limit = 100
	}
	conds := []string{}
	args := []any{}
	if q.Kind != "" {
		conds = append(conds, "kind = ?")
		args = append(args, string(q.Kind))
	}
	if !q.Since.IsZero() {
		conds = append(conds, "received_at >= ?")
		args = append(args, q.Since.UTC().UnixNano())
	}
	stmt := "SELECT id, conn_id, kind, received_at, size, digest, payload, error FROM outcomes"
	if len(conds) > 0 {
		stmt += " WHERE " + strings.Join(conds, " AND ")
	}
	stmt += " ORDER BY received_at DESC, id DESC LIMIT ?"
	args = append(args, limit)

	rows, err := j.db.QueryContext(ctx, stmt, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Entry
	for rows.Next() {
		var e Entry
		var kind string
		var ns int64
		if err := rows.Scan(&e.ID, &e.ConnID, &kind, &ns, &e.Size, &e.Digest, &e.Payload, &e.Error); err != nil {
			return nil, err
		}
		e.Kind = ingest.Kind(kind)
		e.ReceivedAt = time.Unix(0, ns).UTC()
		out = append(out, e)
	}
	return out, rows.Err()
}

// Count returns the number of entries per kind.
func (j *Journal) Count(ctx context.Context) (map[ingest.Kind]int, error) {
	rows, err := j.db.QueryContext(ctx, `SELECT kind, COUNT(*) FROM outcomes GROUP BY kind`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := make(map[ingest.Kind]int)
	for rows.Next() {
		var kind string
		var n int
		if err := rows.Scan(&kind, &n); err != nil {
			return nil, err
		}
		out[ingest.Kind(kind)] = n
	}
	return out, rows.Err()
}

// Report implements ingest.Observer. Storage failures are logged; they
// never reach the connection that produced the outcome.
func (j *Journal) Report(o ingest.Outcome) {
	if j.closed.Load() {
		j.log.Debug("journal closed, outcome dropped", "conn", o.ConnID, "kind", string(o.Kind))
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), recordTimeout)
	defer cancel()
	if _, err := j.Record(ctx, o); err != nil && !errors.Is(err, context.Canceled) {
		if j.closed.Load() {
			j.log.Debug("journal closed, outcome dropped", "conn", o.ConnID, "kind", string(o.Kind))
			return
		}
		j.log.Error("journal record failed", "conn", o.ConnID, "kind", string(o.Kind), "err", err)
	}
}
