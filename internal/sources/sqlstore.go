package sources

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
	_ "modernc.org/sqlite"

	"github.com/dragon-zzuni/smart-assistant/internal/ingest"
)

// DefaultStoreLimit caps the rows read from the message store per run
const DefaultStoreLimit = 500

// StoreTimeLayout is how the lower time bound is passed to the store
const StoreTimeLayout = "2006-01-02 15:04:05"

// StoreConfig describes the relational message store
type StoreConfig struct {
	// DSN is a postgres:// URL or a SQLite file path
	DSN   string        `json:"dsn" yaml:"dsn"`
	Room  string        `json:"room" yaml:"room"`
	Since time.Duration `json:"since" yaml:"since"`
	Limit int           `json:"limit" yaml:"limit"`
}

// StoreSource reads chat rows from the messages table
type StoreSource struct {
	cfg StoreConfig
	now func() time.Time
}

// NewStoreSource creates a new StoreSource instance
func NewStoreSource(cfg StoreConfig) *StoreSource {
	if cfg.Limit <= 0 {
		cfg.Limit = DefaultStoreLimit
	}
	return &StoreSource{cfg: cfg, now: time.Now}
}

// Name returns the source name
func (s *StoreSource) Name() string {
	if s.isPostgres() {
		return "store:postgres"
	}
	return "store:sqlite"
}

func (s *StoreSource) isPostgres() bool {
	return strings.HasPrefix(s.cfg.DSN, "postgres://") || strings.HasPrefix(s.cfg.DSN, "postgresql://")
}

// open returns a read-only handle. SQLite files are opened in ro mode.
func (s *StoreSource) open() (*sql.DB, error) {
	if s.isPostgres() {
		return sql.Open("pgx", s.cfg.DSN)
	}
	dsn := s.cfg.DSN
	if !strings.HasPrefix(dsn, "file:") {
		dsn = "file:" + dsn + "?mode=ro"
	}
	return sql.Open("sqlite", dsn)
}

// Collect queries the rows in timestamp order
func (s *StoreSource) Collect(ctx context.Context) ([]ingest.Record, error) {
	db, err := s.open()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrSourceUnavailable, err)
	}
	defer db.Close()

	query, args := s.buildQuery()
	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrSourceUnavailable, err)
	}
	defer rows.Close()

	var records []ingest.Record
	for rows.Next() {
		var id, room, username, message, ts sql.NullString
		if err := rows.Scan(&id, &room, &username, &message, &ts); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrSourceUnavailable, err)
		}
		records = append(records, ingest.FromStoreRow(s.Name(), len(records), ingest.StoreRow{
			ID:        id.String,
			Room:      room.String,
			Username:  username.String,
			Message:   message.String,
			Timestamp: ts.String,
		}))
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrSourceUnavailable, err)
	}
	return records, nil
}

// buildQuery returns the statement with placeholders for the active driver
func (s *StoreSource) buildQuery() (string, []any) {
	var where []string
	var args []any
	if s.cfg.Since > 0 {
		where = append(where, "timestamp >= ?")
		args = append(args, s.now().UTC().Add(-s.cfg.Since).Format(StoreTimeLayout))
	}
	if s.cfg.Room != "" {
		where = append(where, "room = ?")
		args = append(args, s.cfg.Room)
	}

	query := "SELECT CAST(id AS TEXT), room, username, message, CAST(timestamp AS TEXT) FROM messages"
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY timestamp ASC LIMIT ?"
	args = append(args, s.cfg.Limit)

	if s.isPostgres() {
		query = rebind(query)
	}
	return query, args
}

// rebind turns ? placeholders into $1, $2, ...
func rebind(query string) string {
	var b strings.Builder
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			fmt.Fprintf(&b, "$%d", n)
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}
