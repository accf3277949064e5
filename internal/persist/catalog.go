package persist

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// SaveRecord is one row of the save history.
type SaveRecord struct {
	ID       int64
	SavedAt  time.Time
	Path     string
	Format   int
	Mobiles  int
	Items    int
	Bytes    int64
	Checksum string
	Duration time.Duration
}

// Catalog records every committed snapshot in SQL so operators can see the
// save history and verify a snapshot's checksum.
type Catalog struct {
	db *DB
}

// OpenCatalog migrates db and returns a catalog over it.
func OpenCatalog(ctx context.Context, db *DB) (*Catalog, error) {
	if err := RunMigrations(ctx, db); err != nil {
		return nil, err
	}
	return &Catalog{db: db}, nil
}

func (c *Catalog) Close() { c.db.Close() }

func (c *Catalog) Record(ctx context.Context, rec SaveRecord) error {
	_, err := c.db.SQL.ExecContext(ctx, c.bind(
		`INSERT INTO saves (saved_at, path, format, mobiles, items, bytes, checksum, duration_ms)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`),
		rec.SavedAt.UnixNano(), rec.Path, rec.Format, rec.Mobiles, rec.Items, rec.Bytes,
		rec.Checksum, rec.Duration.Milliseconds(),
	)
	if err != nil {
		return fmt.Errorf("record save: %w", err)
	}
	return nil
}

const saveColumns = `id, saved_at, path, format, mobiles, items, bytes, checksum, duration_ms`

type scanner interface {
	Scan(dest ...any) error
}

func scanSave(row scanner) (SaveRecord, error) {
	var (
		rec     SaveRecord
		savedAt int64
		durMS   int64
	)
	if err := row.Scan(&rec.ID, &savedAt, &rec.Path, &rec.Format, &rec.Mobiles, &rec.Items,
		&rec.Bytes, &rec.Checksum, &durMS); err != nil {
		return SaveRecord{}, err
	}
	rec.SavedAt = time.Unix(0, savedAt).UTC()
	rec.Duration = time.Duration(durMS) * time.Millisecond
	return rec, nil
}

// Latest returns the most recent save, or false when there is none.
func (c *Catalog) Latest(ctx context.Context) (SaveRecord, bool, error) {
	row := c.db.SQL.QueryRowContext(ctx,
		`SELECT `+saveColumns+` FROM saves ORDER BY saved_at DESC, id DESC LIMIT 1`)
	rec, err := scanSave(row)
	if errors.Is(err, sql.ErrNoRows) {
		return SaveRecord{}, false, nil
	}
	if err != nil {
		return SaveRecord{}, false, fmt.Errorf("latest save: %w", err)
	}
	return rec, true, nil
}

// List returns up to limit saves, newest first.
func (c *Catalog) List(ctx context.Context, limit int) ([]SaveRecord, error) {
	rows, err := c.db.SQL.QueryContext(ctx, c.bind(
		`SELECT `+saveColumns+` FROM saves ORDER BY saved_at DESC, id DESC LIMIT ?`), limit)
	if err != nil {
		return nil, fmt.Errorf("list saves: %w", err)
	}
	defer rows.Close()

	var out []SaveRecord
	for rows.Next() {
		rec, err := scanSave(rows)
		if err != nil {
			return nil, fmt.Errorf("list saves: %w", err)
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

// Count returns the number of recorded saves.
func (c *Catalog) Count(ctx context.Context) (int, error) {
	var n int
	if err := c.db.SQL.QueryRowContext(ctx, `SELECT COUNT(*) FROM saves`).Scan(&n); err != nil {
		return 0, fmt.Errorf("count saves: %w", err)
	}
	return n, nil
}

// bind rewrites ? placeholders to $n for postgres.
func (c *Catalog) bind(q string) string {
	if c.db.Dialect != "postgres" {
		return q
	}
	var b strings.Builder
	n := 0
	for _, r := range q {
		if r == '?' {
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}
