// Package sqlite is a digiself.Repository backed by a SQLite file through
// the pure Go modernc.org/sqlite driver.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"time"

	"github.com/m-mizutani/digiself"
	"github.com/m-mizutani/goerr/v2"
	_ "modernc.org/sqlite"
)

// MemoryPath opens a private in-memory database.
const MemoryPath = ":memory:"

const (
	keyFocus   = "focus"
	keyProfile = "profile"
	keyMode    = "mode"
)

// Repository implements digiself.Repository.
type Repository struct {
	db *sql.DB
}

// New opens (and creates when missing) the database at path and applies
// the schema.
func New(ctx context.Context, path string) (*Repository, error) {
	if path != MemoryPath {
		if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
			return nil, goerr.Wrap(err, "failed to create database directory", goerr.V("path", path))
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to open database", goerr.V("path", path))
	}
	// Every connection to :memory: is a separate database.
	if path == MemoryPath {
		db.SetMaxOpenConns(1)
	}

	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA busy_timeout = 5000",
		"PRAGMA synchronous = NORMAL",
	}
	for _, p := range pragmas {
		if _, err := db.ExecContext(ctx, p); err != nil {
			_ = db.Close()
			return nil, goerr.Wrap(err, "failed to set pragma", goerr.V("pragma", p))
		}
	}

	r := &Repository{db: db}
	if err := r.migrate(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return r, nil
}

// Close closes the database.
func (r *Repository) Close() error {
	return r.db.Close()
}

func (r *Repository) migrate(ctx context.Context) error {
	schema := `
		CREATE TABLE IF NOT EXISTS diary (
			id         TEXT PRIMARY KEY,
			type       TEXT NOT NULL,
			title      TEXT NOT NULL,
			content    TEXT NOT NULL,
			created_at TEXT NOT NULL
		);

		CREATE TABLE IF NOT EXISTS meetings (
			id                TEXT PRIMARY KEY,
			title             TEXT NOT NULL,
			start_time        TEXT NOT NULL,
			end_time          TEXT NOT NULL,
			attendees         TEXT NOT NULL DEFAULT '[]',
			external_event_id TEXT NOT NULL DEFAULT '',
			video_link        TEXT NOT NULL DEFAULT '',
			created_at        TEXT NOT NULL
		);

		CREATE INDEX IF NOT EXISTS idx_meetings_external ON meetings(external_event_id);

		CREATE TABLE IF NOT EXISTS notifications (
			id         TEXT PRIMARY KEY,
			kind       TEXT NOT NULL,
			message    TEXT NOT NULL,
			link       TEXT NOT NULL DEFAULT '',
			read       INTEGER NOT NULL DEFAULT 0,
			created_at TEXT NOT NULL
		);

		CREATE TABLE IF NOT EXISTS memories (
			id         TEXT PRIMARY KEY,
			content    TEXT NOT NULL,
			embedding  TEXT,
			created_at TEXT NOT NULL
		);

		CREATE TABLE IF NOT EXISTS settings (
			key   TEXT PRIMARY KEY,
			value TEXT NOT NULL
		);
	`
	if _, err := r.db.ExecContext(ctx, schema); err != nil {
		return goerr.Wrap(err, "failed to migrate schema")
	}
	return nil
}

func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

func parseTime(s string) (time.Time, error) {
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}, goerr.Wrap(err, "invalid time in database", goerr.V("value", s))
	}
	return t, nil
}

func (r *Repository) ListDiary(ctx context.Context) ([]digiself.DiaryEntry, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, type, title, content, created_at FROM diary ORDER BY rowid`)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to query diary")
	}
	defer rows.Close()

	entries := []digiself.DiaryEntry{}
	for rows.Next() {
		var (
			e         digiself.DiaryEntry
			createdAt string
		)
		if err := rows.Scan(&e.ID, &e.Type, &e.Title, &e.Content, &createdAt); err != nil {
			return nil, goerr.Wrap(err, "failed to scan diary")
		}
		if e.CreatedAt, err = parseTime(createdAt); err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

func (r *Repository) PutDiary(ctx context.Context, entry digiself.DiaryEntry) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO diary (id, type, title, content, created_at) VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			type = excluded.type,
			title = excluded.title,
			content = excluded.content,
			created_at = excluded.created_at`,
		entry.ID, entry.Type, entry.Title, entry.Content, formatTime(entry.CreatedAt),
	)
	if err != nil {
		return goerr.Wrap(err, "failed to put diary", goerr.V("id", entry.ID))
	}
	return nil
}

func (r *Repository) DeleteDiary(ctx context.Context, id string) error {
	return r.delete(ctx, "diary", id)
}

// delete removes a row by id from table. table is never user input.
func (r *Repository) delete(ctx context.Context, table, id string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM `+table+` WHERE id = ?`, id)
	if err != nil {
		return goerr.Wrap(err, "failed to delete", goerr.V("table", table), goerr.V("id", id))
	}
	n, err := res.RowsAffected()
	if err != nil {
		return goerr.Wrap(err, "failed to get affected rows", goerr.V("table", table))
	}
	if n == 0 {
		return goerr.Wrap(digiself.ErrNotFound, "no row to delete", goerr.V("table", table), goerr.V("id", id))
	}
	return nil
}

func (r *Repository) ListMeetings(ctx context.Context) ([]digiself.Meeting, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, title, start_time, end_time, attendees, external_event_id, video_link, created_at
		FROM meetings ORDER BY rowid`)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to query meetings")
	}
	defer rows.Close()

	meetings := []digiself.Meeting{}
	for rows.Next() {
		var (
			m                              digiself.Meeting
			start, end, attendees, created string
		)
		if err := rows.Scan(&m.ID, &m.Title, &start, &end, &attendees, &m.ExternalEventID, &m.VideoLink, &created); err != nil {
			return nil, goerr.Wrap(err, "failed to scan meeting")
		}
		if m.StartTime, err = parseTime(start); err != nil {
			return nil, err
		}
		if m.EndTime, err = parseTime(end); err != nil {
			return nil, err
		}
		if m.CreatedAt, err = parseTime(created); err != nil {
			return nil, err
		}
		if err := json.Unmarshal([]byte(attendees), &m.Attendees); err != nil {
			return nil, goerr.Wrap(err, "invalid attendees in database", goerr.V("id", m.ID))
		}
		meetings = append(meetings, m)
	}
	if err := rows.Err(); err != nil {
		return nil, goerr.Wrap(err, "failed to iterate meetings")
	}

	digiself.SortMeetings(meetings)
	return meetings, nil
}

func (r *Repository) PutMeeting(ctx context.Context, m digiself.Meeting) error {
	attendees := m.Attendees
	if attendees == nil {
		attendees = []string{}
	}
	raw, err := json.Marshal(attendees)
	if err != nil {
		return goerr.Wrap(err, "failed to marshal attendees")
	}

	_, err = r.db.ExecContext(ctx, `
		INSERT INTO meetings (id, title, start_time, end_time, attendees, external_event_id, video_link, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			title = excluded.title,
			start_time = excluded.start_time,
			end_time = excluded.end_time,
			attendees = excluded.attendees,
			external_event_id = excluded.external_event_id,
			video_link = excluded.video_link,
			created_at = excluded.created_at`,
		m.ID, m.Title, formatTime(m.StartTime), formatTime(m.EndTime), string(raw),
		m.ExternalEventID, m.VideoLink, formatTime(m.CreatedAt),
	)
	if err != nil {
		return goerr.Wrap(err, "failed to put meeting", goerr.V("id", m.ID))
	}
	return nil
}

func (r *Repository) DeleteMeeting(ctx context.Context, id string) error {
	return r.delete(ctx, "meetings", id)
}

const notificationColumns = `id, kind, message, link, read, created_at`

type scanner interface {
	Scan(dest ...any) error
}

func scanNotification(row scanner) (*digiself.Notification, error) {
	var (
		n       digiself.Notification
		kind    string
		created string
	)
	if err := row.Scan(&n.ID, &kind, &n.Message, &n.Link, &n.Read, &created); err != nil {
		return nil, err
	}
	n.Kind = digiself.NotificationKind(kind)

	t, err := parseTime(created)
	if err != nil {
		return nil, err
	}
	n.CreatedAt = t
	return &n, nil
}

func (r *Repository) ListNotifications(ctx context.Context) ([]digiself.Notification, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT `+notificationColumns+` FROM notifications ORDER BY rowid`)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to query notifications")
	}
	defer rows.Close()

	list := []digiself.Notification{}
	for rows.Next() {
		n, err := scanNotification(rows)
		if err != nil {
			return nil, goerr.Wrap(err, "failed to scan notification")
		}
		list = append(list, *n)
	}
	return list, rows.Err()
}

func (r *Repository) GetNotification(ctx context.Context, id string) (*digiself.Notification, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+notificationColumns+` FROM notifications WHERE id = ?`, id)
	n, err := scanNotification(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, goerr.Wrap(digiself.ErrNotFound, "notification not found", goerr.V("id", id))
	}
	if err != nil {
		return nil, goerr.Wrap(err, "failed to get notification", goerr.V("id", id))
	}
	return n, nil
}

func (r *Repository) PutNotification(ctx context.Context, n digiself.Notification) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO notifications (`+notificationColumns+`) VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			kind = excluded.kind,
			message = excluded.message,
			link = excluded.link,
			read = excluded.read,
			created_at = excluded.created_at`,
		n.ID, string(n.Kind), n.Message, n.Link, n.Read, formatTime(n.CreatedAt),
	)
	if err != nil {
		return goerr.Wrap(err, "failed to put notification", goerr.V("id", n.ID))
	}
	return nil
}

func (r *Repository) ListMemories(ctx context.Context) ([]digiself.Memory, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT id, content, embedding, created_at FROM memories ORDER BY rowid`)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to query memories")
	}
	defer rows.Close()

	memories := []digiself.Memory{}
	for rows.Next() {
		var (
			m         digiself.Memory
			embedding sql.NullString
			created   string
		)
		if err := rows.Scan(&m.ID, &m.Content, &embedding, &created); err != nil {
			return nil, goerr.Wrap(err, "failed to scan memory")
		}
		if m.CreatedAt, err = parseTime(created); err != nil {
			return nil, err
		}
		if embedding.Valid && embedding.String != "" {
			if err := json.Unmarshal([]byte(embedding.String), &m.Embedding); err != nil {
				return nil, goerr.Wrap(err, "invalid embedding in database", goerr.V("id", m.ID))
			}
		}
		memories = append(memories, m)
	}
	return memories, rows.Err()
}

func (r *Repository) PutMemory(ctx context.Context, m digiself.Memory) error {
	var embedding sql.NullString
	if len(m.Embedding) > 0 {
		raw, err := json.Marshal(m.Embedding)
		if err != nil {
			return goerr.Wrap(err, "failed to marshal embedding")
		}
		embedding = sql.NullString{String: string(raw), Valid: true}
	}

	_, err := r.db.ExecContext(ctx, `
		INSERT INTO memories (id, content, embedding, created_at) VALUES (?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			content = excluded.content,
			embedding = excluded.embedding,
			created_at = excluded.created_at`,
		m.ID, m.Content, embedding, formatTime(m.CreatedAt),
	)
	if err != nil {
		return goerr.Wrap(err, "failed to put memory", goerr.V("id", m.ID))
	}
	return nil
}

// getSetting decodes the JSON value of key into v. v is left as is when
// the key is not set.
func (r *Repository) getSetting(ctx context.Context, key string, v any) error {
	var raw string
	err := r.db.QueryRowContext(ctx, `SELECT value FROM settings WHERE key = ?`, key).Scan(&raw)
	if errors.Is(err, sql.ErrNoRows) {
		return nil
	}
	if err != nil {
		return goerr.Wrap(err, "failed to get setting", goerr.V("key", key))
	}
	if err := json.Unmarshal([]byte(raw), v); err != nil {
		return goerr.Wrap(err, "invalid setting in database", goerr.V("key", key))
	}
	return nil
}

func (r *Repository) putSetting(ctx context.Context, key string, v any) error {
	raw, err := json.Marshal(v)
	if err != nil {
		return goerr.Wrap(err, "failed to marshal setting", goerr.V("key", key))
	}
	_, err = r.db.ExecContext(ctx, `
		INSERT INTO settings (key, value) VALUES (?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value`,
		key, string(raw),
	)
	if err != nil {
		return goerr.Wrap(err, "failed to put setting", goerr.V("key", key))
	}
	return nil
}

func (r *Repository) GetFocus(ctx context.Context) ([]string, error) {
	focus := []string{}
	if err := r.getSetting(ctx, keyFocus, &focus); err != nil {
		return nil, err
	}
	return focus, nil
}

func (r *Repository) PutFocus(ctx context.Context, focus []string) error {
	return r.putSetting(ctx, keyFocus, digiself.CapFocus(focus))
}

func (r *Repository) GetProfile(ctx context.Context) (*digiself.Profile, error) {
	var profile digiself.Profile
	if err := r.getSetting(ctx, keyProfile, &profile); err != nil {
		return nil, err
	}
	return &profile, nil
}

func (r *Repository) PutProfile(ctx context.Context, profile digiself.Profile) error {
	return r.putSetting(ctx, keyProfile, profile)
}

func (r *Repository) GetMode(ctx context.Context) (string, error) {
	var mode string
	if err := r.getSetting(ctx, keyMode, &mode); err != nil {
		return "", err
	}
	return mode, nil
}

func (r *Repository) PutMode(ctx context.Context, mode string) error {
	return r.putSetting(ctx, keyMode, mode)
}

var _ digiself.Repository = (*Repository)(nil)
