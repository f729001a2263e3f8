package store

import (
	"context"
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/anatolykoptev/go_digest/internal/summarize"
)

//go:embed schema/*.sql
var schemaFS embed.FS

// PostgresStore holds the pgx connection pool for video/summary storage.
type PostgresStore struct {
	pool *pgxpool.Pool
}

// ConnectPostgres creates a pgx pool and runs schema migrations.
func ConnectPostgres(ctx context.Context, databaseURL string) (*PostgresStore, error) {
	if databaseURL == "" {
		return nil, errors.New("DATABASE_URL is required")
	}

	config, err := pgxpool.ParseConfig(databaseURL)
	if err != nil {
		return nil, fmt.Errorf("parse DATABASE_URL: %w", err)
	}
	config.MaxConns = 10
	config.MinConns = 1

	pool, err := pgxpool.NewWithConfig(ctx, config)
	if err != nil {
		return nil, fmt.Errorf("create pgx pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}

	s := &PostgresStore{pool: pool}
	if err := s.runMigrations(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	slog.Info("postgres connected", slog.String("addr", config.ConnConfig.Host))
	return s, nil
}

func (s *PostgresStore) Close() error {
	s.pool.Close()
	return nil
}

func (s *PostgresStore) runMigrations(ctx context.Context) error {
	entries, err := schemaFS.ReadDir("schema")
	if err != nil {
		return fmt.Errorf("read schema dir: %w", err)
	}

	sort.Slice(entries, func(i, j int) bool {
		return entries[i].Name() < entries[j].Name()
	})

	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".sql") {
			continue
		}
		data, err := schemaFS.ReadFile("schema/" + entry.Name())
		if err != nil {
			return fmt.Errorf("read %s: %w", entry.Name(), err)
		}
		if _, err := s.pool.Exec(ctx, string(data)); err != nil {
			return fmt.Errorf("apply %s: %w", entry.Name(), err)
		}
	}
	return nil
}

const videoColumns = `id, youtube_video_id, title, status, fail_reason,
	transcript, transcript_lang, track_name, decided_at, scheduled_at, created_at`

func scanVideo(row pgx.Row) (Video, error) {
	var v Video
	err := row.Scan(&v.ID, &v.YouTubeVideoID, &v.Title, &v.Status, &v.FailReason,
		&v.Transcript, &v.TranscriptLang, &v.TrackName, &v.DecidedAt, &v.ScheduledAt, &v.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return Video{}, ErrNoRow
	}
	return v, err
}

func (s *PostgresStore) CreateVideo(ctx context.Context, youtubeVideoID, title string) (Video, error) {
	row := s.pool.QueryRow(ctx, `
		INSERT INTO videos (youtube_video_id, title)
		VALUES ($1, $2)
		ON CONFLICT (youtube_video_id) DO UPDATE SET title = EXCLUDED.title
		RETURNING `+videoColumns,
		youtubeVideoID, title)
	return scanVideo(row)
}

func (s *PostgresStore) GetVideo(ctx context.Context, id int64) (Video, error) {
	row := s.pool.QueryRow(ctx, `SELECT `+videoColumns+` FROM videos WHERE id = $1`, id)
	return scanVideo(row)
}

func (s *PostgresStore) SetTranscript(ctx context.Context, id int64, text, lang, trackName string) error {
	tag, err := s.pool.Exec(ctx, `
		UPDATE videos SET transcript = $2, transcript_lang = $3, track_name = $4
		WHERE id = $1`,
		id, text, lang, trackName)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNoRow
	}
	return nil
}

// SaveSummary upserts the summary record and moves the video PENDING→READY
// in a single transaction: a video is never observed READY without its
// summary, nor the other way around.
func (s *PostgresStore) SaveSummary(ctx context.Context, videoID int64, content summarize.SummaryContent) error {
	data, err := json.Marshal(content)
	if err != nil {
		return fmt.Errorf("encode summary: %w", err)
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, `
		INSERT INTO summaries (video_id, content, created_at)
		VALUES ($1, $2, now())
		ON CONFLICT (video_id) DO UPDATE SET content = EXCLUDED.content, created_at = now()`,
		videoID, data); err != nil {
		return fmt.Errorf("upsert summary: %w", err)
	}

	tag, err := tx.Exec(ctx, `
		UPDATE videos SET status = $2, fail_reason = ''
		WHERE id = $1 AND status = $3`,
		videoID, StatusReady, StatusPending)
	if err != nil {
		return fmt.Errorf("mark ready: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w: video %d is not PENDING", ErrBadTransition, videoID)
	}

	return tx.Commit(ctx)
}

func (s *PostgresStore) MarkFailed(ctx context.Context, videoID int64, reason string) error {
	tag, err := s.pool.Exec(ctx, `
		UPDATE videos SET status = $2, fail_reason = $3
		WHERE id = $1 AND status = $4`,
		videoID, StatusFailed, reason, StatusPending)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w: video %d is not PENDING", ErrBadTransition, videoID)
	}
	return nil
}

func (s *PostgresStore) ResetForRetry(ctx context.Context, videoID int64) error {
	tag, err := s.pool.Exec(ctx, `
		UPDATE videos SET status = $2, fail_reason = ''
		WHERE id = $1 AND status = $3`,
		videoID, StatusPending, StatusFailed)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w: video %d is not FAILED", ErrBadTransition, videoID)
	}
	return nil
}

func (s *PostgresStore) Decide(ctx context.Context, videoID int64, d Decision, scheduledAt *time.Time) error {
	status, ok := StatusForDecision(d)
	if !ok {
		return fmt.Errorf("%w: unknown decision %q", ErrBadTransition, d)
	}
	if d != DecisionSchedule {
		scheduledAt = nil
	}

	tag, err := s.pool.Exec(ctx, `
		UPDATE videos SET status = $2, decided_at = now(), scheduled_at = $3
		WHERE id = $1 AND status = $4`,
		videoID, status, scheduledAt, StatusReady)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w: video %d is not READY", ErrBadTransition, videoID)
	}
	return nil
}

func (s *PostgresStore) GetSummary(ctx context.Context, videoID int64) (Summary, error) {
	var data []byte
	var createdAt time.Time
	err := s.pool.QueryRow(ctx, `
		SELECT content, created_at FROM summaries WHERE video_id = $1`,
		videoID).Scan(&data, &createdAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return Summary{}, ErrNoRow
	}
	if err != nil {
		return Summary{}, err
	}

	var content summarize.SummaryContent
	if err := json.Unmarshal(data, &content); err != nil {
		return Summary{}, fmt.Errorf("decode summary: %w", err)
	}
	return Summary{VideoID: videoID, Content: content, CreatedAt: createdAt}, nil
}
