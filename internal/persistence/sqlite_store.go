package persistence

import (
	"context"
	"database/sql"
	"embed"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"github.com/christiandamico04/thesis-translation-backend/internal/jobs"
)

//go:embed migrations/*.sql
var migrationFiles embed.FS

// ErrNotFound is returned when a record does not exist.
var ErrNotFound = fmt.Errorf("record not found")

type SQLiteStore struct {
	db *sql.DB
}

func NewSQLiteStore(path string) (*SQLiteStore, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("db path is required")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	store := &SQLiteStore{db: db}
	if err := store.init(context.Background()); err != nil {
		_ = db.Close()
		return nil, err
	}
	return store, nil
}

func (s *SQLiteStore) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

func (s *SQLiteStore) init(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, "PRAGMA journal_mode = WAL;"); err != nil {
		return fmt.Errorf("set WAL mode: %w", err)
	}
	if _, err := s.db.ExecContext(ctx, "PRAGMA busy_timeout = 5000;"); err != nil {
		return fmt.Errorf("set busy timeout: %w", err)
	}
	if _, err := s.db.ExecContext(ctx, "PRAGMA foreign_keys = ON;"); err != nil {
		return fmt.Errorf("enable foreign keys: %w", err)
	}
	// Bootstrap schema_migrations table so we can track applied versions.
	if _, err := s.db.ExecContext(ctx, `CREATE TABLE IF NOT EXISTS schema_migrations (
		version INTEGER PRIMARY KEY,
		applied_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
	);`); err != nil {
		return fmt.Errorf("create schema_migrations: %w", err)
	}

	entries, err := migrationFiles.ReadDir("migrations")
	if err != nil {
		return fmt.Errorf("read migrations: %w", err)
	}
	sort.Slice(entries, func(i, j int) bool {
		return entries[i].Name() < entries[j].Name()
	})
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		version := migrationVersion(entry.Name())
		if version <= 0 {
			continue
		}
		var exists int
		if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM schema_migrations WHERE version = ?`, version).Scan(&exists); err != nil {
			return fmt.Errorf("check migration %s: %w", entry.Name(), err)
		}
		if exists > 0 {
			continue
		}
		content, err := migrationFiles.ReadFile(filepath.Join("migrations", entry.Name()))
		if err != nil {
			return fmt.Errorf("read migration %s: %w", entry.Name(), err)
		}
		if _, err := s.db.ExecContext(ctx, string(content)); err != nil {
			return fmt.Errorf("apply migration %s: %w", entry.Name(), err)
		}
		if _, err := s.db.ExecContext(ctx, `INSERT INTO schema_migrations (version) VALUES (?)`, version); err != nil {
			return fmt.Errorf("record migration %s: %w", entry.Name(), err)
		}
	}
	return nil
}

// migrationVersion extracts the leading integer from a migration filename (e.g. "001_init.sql" → 1).
func migrationVersion(name string) int {
	for i, c := range name {
		if c < '0' || c > '9' {
			if i == 0 {
				return 0
			}
			n, _ := strconv.Atoi(name[:i])
			return n
		}
	}
	n, _ := strconv.Atoi(name)
	return n
}

// --- files ---

func (s *SQLiteStore) CreateFile(ctx context.Context, file *FileRecord) error {
	if file == nil {
		return fmt.Errorf("file is nil")
	}
	if file.ID == "" {
		file.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if file.CreatedAt.IsZero() {
		file.CreatedAt = now
	}
	file.UpdatedAt = now
	if file.Status == "" {
		file.Status = FileStatusUploaded
	}
	_, err := s.db.ExecContext(
		ctx,
		`INSERT INTO files (id, name, stored_path, size, status, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		file.ID, file.Name, file.StoredPath, file.Size, file.Status, file.CreatedAt, file.UpdatedAt,
	)
	return err
}

func (s *SQLiteStore) GetFile(ctx context.Context, id string) (*FileRecord, error) {
	row := s.db.QueryRowContext(
		ctx,
		`SELECT id, name, stored_path, size, status, created_at, updated_at
		 FROM files WHERE id = ?`,
		id,
	)
	var ret FileRecord
	if err := row.Scan(&ret.ID, &ret.Name, &ret.StoredPath, &ret.Size, &ret.Status, &ret.CreatedAt, &ret.UpdatedAt); err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &ret, nil
}

func (s *SQLiteStore) ListFiles(ctx context.Context) ([]*FileRecord, error) {
	rows, err := s.db.QueryContext(
		ctx,
		`SELECT id, name, stored_path, size, status, created_at, updated_at
		 FROM files ORDER BY created_at DESC`,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	ret := make([]*FileRecord, 0)
	for rows.Next() {
		var item FileRecord
		if err := rows.Scan(&item.ID, &item.Name, &item.StoredPath, &item.Size, &item.Status, &item.CreatedAt, &item.UpdatedAt); err != nil {
			return nil, err
		}
		ret = append(ret, &item)
	}
	return ret, rows.Err()
}

func (s *SQLiteStore) UpdateFileStatus(ctx context.Context, id string, status string) error {
	res, err := s.db.ExecContext(
		ctx,
		`UPDATE files SET status = ?, updated_at = ? WHERE id = ?`,
		status, time.Now().UTC(), id,
	)
	if err != nil {
		return err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return ErrNotFound
	}
	return nil
}

// DeleteFile removes the file row; translations cascade through the
// foreign key.
func (s *SQLiteStore) DeleteFile(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM files WHERE id = ?`, id)
	if err != nil {
		return err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return ErrNotFound
	}
	return nil
}

// --- translations ---

func (s *SQLiteStore) CreateTranslation(ctx context.Context, tr *TranslationRecord) error {
	if tr == nil {
		return fmt.Errorf("translation is nil")
	}
	if tr.ID == "" {
		tr.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if tr.CreatedAt.IsZero() {
		tr.CreatedAt = now
	}
	tr.UpdatedAt = now
	if tr.Status == "" {
		tr.Status = TranslationStatusPending
	}
	_, err := s.db.ExecContext(
		ctx,
		`INSERT INTO translations (id, file_id, src_lang, dst_lang, original_text, translated_text, status, error, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		tr.ID, tr.FileID, tr.SrcLanguage, tr.DstLanguage, tr.OriginalText, tr.TranslatedText, tr.Status, tr.Error, tr.CreatedAt, tr.UpdatedAt,
	)
	return err
}

func (s *SQLiteStore) GetTranslation(ctx context.Context, id string) (*TranslationRecord, error) {
	row := s.db.QueryRowContext(
		ctx,
		`SELECT id, file_id, src_lang, dst_lang, original_text, COALESCE(translated_text, ''), status, error, created_at, updated_at
		 FROM translations WHERE id = ?`,
		id,
	)
	var ret TranslationRecord
	if err := row.Scan(&ret.ID, &ret.FileID, &ret.SrcLanguage, &ret.DstLanguage, &ret.OriginalText, &ret.TranslatedText, &ret.Status, &ret.Error, &ret.CreatedAt, &ret.UpdatedAt); err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &ret, nil
}

// ListTranslations returns translations newest first. A non-empty
// fileID restricts the result to one file.
func (s *SQLiteStore) ListTranslations(ctx context.Context, fileID string) ([]*TranslationRecord, error) {
	query := `SELECT id, file_id, src_lang, dst_lang, original_text, COALESCE(translated_text, ''), status, error, created_at, updated_at
		 FROM translations`
	args := make([]any, 0, 1)
	if fileID != "" {
		query += ` WHERE file_id = ?`
		args = append(args, fileID)
	}
	query += ` ORDER BY created_at DESC`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	ret := make([]*TranslationRecord, 0)
	for rows.Next() {
		var item TranslationRecord
		if err := rows.Scan(&item.ID, &item.FileID, &item.SrcLanguage, &item.DstLanguage, &item.OriginalText, &item.TranslatedText, &item.Status, &item.Error, &item.CreatedAt, &item.UpdatedAt); err != nil {
			return nil, err
		}
		ret = append(ret, &item)
	}
	return ret, rows.Err()
}

func (s *SQLiteStore) UpdateTranslation(ctx context.Context, id string, status string, translatedText string, errMsg string) error {
	res, err := s.db.ExecContext(
		ctx,
		`UPDATE translations SET status = ?, translated_text = ?, error = ?, updated_at = ? WHERE id = ?`,
		status, translatedText, errMsg, time.Now().UTC(), id,
	)
	if err != nil {
		return err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *SQLiteStore) DeleteTranslation(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM translations WHERE id = ?`, id)
	if err != nil {
		return err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return ErrNotFound
	}
	return nil
}

// --- jobs ---

func (s *SQLiteStore) LoadJobs(ctx context.Context) ([]*jobs.TranslationJob, error) {
	rows, err := s.db.QueryContext(
		ctx,
		`SELECT id, source, dedupe_key, translation_id, file_id, src_lang, dst_lang, status, error, created_at, updated_at
		 FROM jobs
		 ORDER BY created_at ASC`,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	ret := make([]*jobs.TranslationJob, 0)
	for rows.Next() {
		var item jobs.TranslationJob
		var status string
		if err := rows.Scan(
			&item.ID,
			&item.Source,
			&item.DedupeKey,
			&item.Payload.TranslationID,
			&item.Payload.FileID,
			&item.Payload.SrcLang,
			&item.Payload.DstLang,
			&status,
			&item.Error,
			&item.CreatedAt,
			&item.UpdatedAt,
		); err != nil {
			return nil, err
		}
		item.Status = jobs.Status(status)
		ret = append(ret, &item)
	}
	return ret, rows.Err()
}

func (s *SQLiteStore) UpsertJob(ctx context.Context, job *jobs.TranslationJob) error {
	if job == nil {
		return fmt.Errorf("job is nil")
	}
	_, err := s.db.ExecContext(
		ctx,
		`INSERT INTO jobs (
			id, source, dedupe_key, translation_id, file_id, src_lang, dst_lang, status, error, created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			source=excluded.source,
			dedupe_key=excluded.dedupe_key,
			translation_id=excluded.translation_id,
			file_id=excluded.file_id,
			src_lang=excluded.src_lang,
			dst_lang=excluded.dst_lang,
			status=excluded.status,
			error=excluded.error,
			updated_at=excluded.updated_at`,
		job.ID,
		job.Source,
		job.DedupeKey,
		job.Payload.TranslationID,
		job.Payload.FileID,
		job.Payload.SrcLang,
		job.Payload.DstLang,
		string(job.Status),
		job.Error,
		job.CreatedAt,
		job.UpdatedAt,
	)
	return err
}

func (s *SQLiteStore) DeleteJob(ctx context.Context, jobID string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM jobs WHERE id = ?`, jobID)
	return err
}

// DeleteTerminalJobsBefore removes finished jobs whose last update is
// older than the cutoff. Used by the maintenance schedule.
func (s *SQLiteStore) DeleteTerminalJobsBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := s.db.ExecContext(
		ctx,
		`DELETE FROM jobs WHERE status IN (?, ?) AND updated_at <= ?`,
		string(jobs.StatusSuccess), string(jobs.StatusFailed), cutoff.UTC(),
	)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}
