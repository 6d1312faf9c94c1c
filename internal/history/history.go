// Package history keeps a local ledger of finished builds and uploads.
package history

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

type Build struct {
	ID           string
	CreatedAt    time.Time
	InputDir     string
	OutputPath   string
	DurationSec  float64
	ClipCount    int
	Policy       string
	MusicPath    string
	SkippedCount int
	// LastVideoID is the most recent upload of this build, if any.
	LastVideoID string
}

type Upload struct {
	BuildID    string
	OutputPath string
	VideoID    string
	Title      string
	Privacy    string
	UploadedAt time.Time
}

type Store struct {
	conn   *sql.DB
	logger *slog.Logger
}

func Open(dbPath string, logger *slog.Logger) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
		return nil, fmt.Errorf("create history directory: %w", err)
	}

	conn, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open history: %w", err)
	}
	conn.SetMaxOpenConns(1)
	conn.SetMaxIdleConns(1)

	if err := conn.Ping(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("ping history: %w", err)
	}

	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA foreign_keys=ON",
	} {
		if _, err := conn.Exec(pragma); err != nil {
			conn.Close()
			return nil, fmt.Errorf("history %s: %w", pragma, err)
		}
	}

	s := &Store{conn: conn, logger: logger}
	if err := s.migrate(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("migrate history: %w", err)
	}
	return s, nil
}

func (s *Store) Close() error {
	return s.conn.Close()
}

func (s *Store) migrate() error {
	entries, err := migrationsFS.ReadDir("migrations")
	if err != nil {
		return fmt.Errorf("read migrations: %w", err)
	}
	for _, m := range entries {
		if m.IsDir() {
			continue
		}
		name := m.Name()
		if s.migrationApplied(name) {
			continue
		}
		content, err := migrationsFS.ReadFile("migrations/" + name)
		if err != nil {
			return fmt.Errorf("read migration %s: %w", name, err)
		}
		if _, err := s.conn.Exec(string(content)); err != nil {
			return fmt.Errorf("execute migration %s: %w", name, err)
		}
		if _, err := s.conn.Exec("INSERT INTO _migrations (name) VALUES (?)", name); err != nil {
			return fmt.Errorf("record migration %s: %w", name, err)
		}
		if s.logger != nil {
			s.logger.Debug("applied history migration", "name", name)
		}
	}
	return nil
}

func (s *Store) migrationApplied(name string) bool {
	var exists int
	if err := s.conn.QueryRow("SELECT 1 FROM sqlite_master WHERE type='table' AND name='_migrations'").Scan(&exists); err != nil {
		return false
	}
	var applied int
	err := s.conn.QueryRow("SELECT 1 FROM _migrations WHERE name = ?", name).Scan(&applied)
	return err == nil && applied == 1
}

func (s *Store) RecordBuild(ctx context.Context, b Build) error {
	if b.CreatedAt.IsZero() {
		b.CreatedAt = time.Now()
	}
	_, err := s.conn.ExecContext(ctx,
		`INSERT INTO builds (id, created_at, input_dir, output_path, duration_sec, clip_count, policy, music_path, skipped_count)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		b.ID, formatTime(b.CreatedAt), b.InputDir, b.OutputPath, b.DurationSec, b.ClipCount, b.Policy, b.MusicPath, b.SkippedCount,
	)
	if err != nil {
		return fmt.Errorf("record build %s: %w", b.ID, err)
	}
	return nil
}

func (s *Store) RecordUpload(ctx context.Context, u Upload) error {
	if u.UploadedAt.IsZero() {
		u.UploadedAt = time.Now()
	}
	var buildID any
	if u.BuildID != "" {
		buildID = u.BuildID
	}
	_, err := s.conn.ExecContext(ctx,
		`INSERT INTO uploads (build_id, output_path, video_id, title, privacy, uploaded_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		buildID, u.OutputPath, u.VideoID, u.Title, u.Privacy, formatTime(u.UploadedAt),
	)
	if err != nil {
		return fmt.Errorf("record upload %s: %w", u.VideoID, err)
	}
	return nil
}

const buildColumns = `b.id, b.created_at, b.input_dir, b.output_path, b.duration_sec, b.clip_count, b.policy, b.music_path, b.skipped_count,
	COALESCE((SELECT u.video_id FROM uploads u WHERE u.build_id = b.id ORDER BY u.id DESC LIMIT 1), '')`

// LatestBuildFor returns the most recent build written to outputPath.
func (s *Store) LatestBuildFor(ctx context.Context, outputPath string) (Build, bool, error) {
	row := s.conn.QueryRowContext(ctx,
		`SELECT `+buildColumns+` FROM builds b WHERE b.output_path = ? ORDER BY b.created_at DESC, b.rowid DESC LIMIT 1`,
		outputPath,
	)
	b, err := scanBuild(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Build{}, false, nil
	}
	if err != nil {
		return Build{}, false, fmt.Errorf("latest build for %s: %w", outputPath, err)
	}
	return b, true, nil
}

// ListBuilds returns up to limit builds, newest first.
func (s *Store) ListBuilds(ctx context.Context, limit int) ([]Build, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.conn.QueryContext(ctx,
		`SELECT `+buildColumns+` FROM builds b ORDER BY b.created_at DESC, b.rowid DESC LIMIT ?`,
		limit,
	)
	if err != nil {
		return nil, fmt.Errorf("list builds: %w", err)
	}
	defer rows.Close()

	var out []Build
	for rows.Next() {
		b, err := scanBuild(rows)
		if err != nil {
			return nil, fmt.Errorf("scan build: %w", err)
		}
		out = append(out, b)
	}
	return out, rows.Err()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanBuild(sc scanner) (Build, error) {
	var (
		b       Build
		created string
	)
	err := sc.Scan(&b.ID, &created, &b.InputDir, &b.OutputPath, &b.DurationSec, &b.ClipCount,
		&b.Policy, &b.MusicPath, &b.SkippedCount, &b.LastVideoID)
	if err != nil {
		return Build{}, err
	}
	if b.CreatedAt, err = time.Parse(time.RFC3339Nano, created); err != nil {
		return Build{}, fmt.Errorf("parse created_at %q: %w", created, err)
	}
	return b, nil
}

func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}
