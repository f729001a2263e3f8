package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	_ "modernc.org/sqlite"

	"github.com/anatolykoptev/go_digest/internal/summarize"
)

// SQLiteStore is the dev/test implementation of Store, backed by a local
// sqlite file. Same guarded transitions as PostgresStore; timestamps are
// stored as RFC 3339 text.
type SQLiteStore struct {
	db *sql.DB
}

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS videos (
    id               INTEGER PRIMARY KEY AUTOINCREMENT,
    youtube_video_id TEXT NOT NULL UNIQUE,
    title            TEXT NOT NULL DEFAULT '',
    status           TEXT NOT NULL DEFAULT 'PENDING',
    fail_reason      TEXT NOT NULL DEFAULT '',
    transcript       TEXT NOT NULL DEFAULT '',
    transcript_lang  TEXT NOT NULL DEFAULT '',
    track_name       TEXT NOT NULL DEFAULT '',
    decided_at       TEXT,
    scheduled_at     TEXT,
    created_at       TEXT NOT NULL
);
CREATE TABLE IF NOT EXISTS summaries (
    video_id   INTEGER PRIMARY KEY REFERENCES videos (id) ON DELETE CASCADE,
    content    TEXT NOT NULL,
    created_at TEXT NOT NULL
);`

// OpenSQLite opens (or creates) the sqlite store at path.
func OpenSQLite(path string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	db.SetMaxOpenConns(1) // SQLite: single writer
	if _, err := db.Exec(sqliteSchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("init sqlite schema: %w", err)
	}
	slog.Info("sqlite store opened", slog.String("path", path))
	return &SQLiteStore{db: db}, nil
}

func (s *SQLiteStore) Close() error { return s.db.Close() }

func now() string { return time.Now().UTC().Format(time.RFC3339) }

func parseTime(v sql.NullString) *time.Time {
	if !v.Valid || v.String == "" {
		return nil
	}
	t, err := time.Parse(time.RFC3339, v.String)
	if err != nil {
		return nil
	}
	return &t
}

func (s *SQLiteStore) scanVideo(row *sql.Row) (Video, error) {
	var v Video
	var decidedAt, scheduledAt sql.NullString
	var createdAt string
	err := row.Scan(&v.ID, &v.YouTubeVideoID, &v.Title, &v.Status, &v.FailReason,
		&v.Transcript, &v.TranscriptLang, &v.TrackName, &decidedAt, &scheduledAt, &createdAt)
	if errors.Is(err, sql.ErrNoRows) {
		return Video{}, ErrNoRow
	}
	if err != nil {
		return Video{}, err
	}
	v.DecidedAt = parseTime(decidedAt)
	v.ScheduledAt = parseTime(scheduledAt)
	if t, err := time.Parse(time.RFC3339, createdAt); err == nil {
		v.CreatedAt = t
	}
	return v, nil
}

const sqliteVideoColumns = `id, youtube_video_id, title, status, fail_reason,
	transcript, transcript_lang, track_name, decided_at, scheduled_at, created_at`

func (s *SQLiteStore) CreateVideo(ctx context.Context, youtubeVideoID, title string) (Video, error) {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO videos (youtube_video_id, title, created_at)
		VALUES (?, ?, ?)
		ON CONFLICT (youtube_video_id) DO UPDATE SET title = excluded.title`,
		youtubeVideoID, title, now())
	if err != nil {
		return Video{}, err
	}
	row := s.db.QueryRowContext(ctx,
		`SELECT `+sqliteVideoColumns+` FROM videos WHERE youtube_video_id = ?`, youtubeVideoID)
	return s.scanVideo(row)
}

func (s *SQLiteStore) GetVideo(ctx context.Context, id int64) (Video, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+sqliteVideoColumns+` FROM videos WHERE id = ?`, id)
	return s.scanVideo(row)
}

func (s *SQLiteStore) SetTranscript(ctx context.Context, id int64, text, lang, trackName string) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE videos SET transcript = ?, transcript_lang = ?, track_name = ?
		WHERE id = ?`,
		text, lang, trackName, id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNoRow
	}
	return nil
}

func (s *SQLiteStore) SaveSummary(ctx context.Context, videoID int64, content summarize.SummaryContent) error {
	data, err := json.Marshal(content)
	if err != nil {
		return fmt.Errorf("encode summary: %w", err)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `
		INSERT INTO summaries (video_id, content, created_at)
		VALUES (?, ?, ?)
		ON CONFLICT (video_id) DO UPDATE SET content = excluded.content, created_at = excluded.created_at`,
		videoID, string(data), now()); err != nil {
		return fmt.Errorf("upsert summary: %w", err)
	}

	res, err := tx.ExecContext(ctx, `
		UPDATE videos SET status = ?, fail_reason = ''
		WHERE id = ? AND status = ?`,
		StatusReady, videoID, StatusPending)
	if err != nil {
		return fmt.Errorf("mark ready: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("%w: video %d is not PENDING", ErrBadTransition, videoID)
	}

	return tx.Commit()
}

func (s *SQLiteStore) MarkFailed(ctx context.Context, videoID int64, reason string) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE videos SET status = ?, fail_reason = ?
		WHERE id = ? AND status = ?`,
		StatusFailed, reason, videoID, StatusPending)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("%w: video %d is not PENDING", ErrBadTransition, videoID)
	}
	return nil
}

func (s *SQLiteStore) ResetForRetry(ctx context.Context, videoID int64) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE videos SET status = ?, fail_reason = ''
		WHERE id = ? AND status = ?`,
		StatusPending, videoID, StatusFailed)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("%w: video %d is not FAILED", ErrBadTransition, videoID)
	}
	return nil
}

func (s *SQLiteStore) Decide(ctx context.Context, videoID int64, d Decision, scheduledAt *time.Time) error {
	status, ok := StatusForDecision(d)
	if !ok {
		return fmt.Errorf("%w: unknown decision %q", ErrBadTransition, d)
	}

	var scheduled any
	if d == DecisionSchedule && scheduledAt != nil {
		scheduled = scheduledAt.UTC().Format(time.RFC3339)
	}

	res, err := s.db.ExecContext(ctx, `
		UPDATE videos SET status = ?, decided_at = ?, scheduled_at = ?
		WHERE id = ? AND status = ?`,
		status, now(), scheduled, videoID, StatusReady)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("%w: video %d is not READY", ErrBadTransition, videoID)
	}
	return nil
}

func (s *SQLiteStore) GetSummary(ctx context.Context, videoID int64) (Summary, error) {
	var data string
	var createdAt string
	err := s.db.QueryRowContext(ctx,
		`SELECT content, created_at FROM summaries WHERE video_id = ?`, videoID).
		Scan(&data, &createdAt)
	if errors.Is(err, sql.ErrNoRows) {
		return Summary{}, ErrNoRow
	}
	if err != nil {
		return Summary{}, err
	}

	var content summarize.SummaryContent
	if err := json.Unmarshal([]byte(data), &content); err != nil {
		return Summary{}, fmt.Errorf("decode summary: %w", err)
	}
	sum := Summary{VideoID: videoID, Content: content}
	if t, err := time.Parse(time.RFC3339, createdAt); err == nil {
		sum.CreatedAt = t
	}
	return sum, nil
}
