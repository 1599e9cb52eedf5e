package db

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/Zahlii/photobooth/pkg/errors"
	_ "modernc.org/sqlite"
)

// Repository provides database operations for snapshots and print jobs
type Repository struct {
	db *sql.DB
}

// NewRepository creates a new repository
func NewRepository(dbPath string) (*Repository, error) {
	slog.Info("database_init", "db_path", dbPath)

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		slog.Error("database_open_failed", "db_path", dbPath, "error", err)
		return nil, errors.Wrap(err, "failed to open database")
	}
	// The HTTP handlers and the print pipeline share the file.
	db.SetMaxOpenConns(1)

	slog.Info("database_create_schema", "db_path", dbPath)
	if _, err := db.Exec(Schema); err != nil {
		db.Close()
		slog.Error("database_schema_failed", "db_path", dbPath, "error", err)
		return nil, errors.Wrap(err, "failed to create schema")
	}

	slog.Info("database_ready", "db_path", dbPath)
	return &Repository{db: db}, nil
}

// Close closes the database connection
func (r *Repository) Close() error {
	return r.db.Close()
}

// RecordSnapshot inserts a snapshot file, or re-assigns it when the path is already known
func (r *Repository) RecordSnapshot(s *Snapshot) error {
	query := `
		INSERT INTO snapshots (path, owner, session, kind)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(path) DO UPDATE SET owner = excluded.owner, session = excluded.session, kind = excluded.kind
	`
	if _, err := r.db.Exec(query, s.Path, s.Owner, s.Session, s.Kind); err != nil {
		slog.Error("database_insert_failed", "path", s.Path, "error", err)
		return errors.Wrap(err, "failed to record snapshot")
	}

	err := r.db.QueryRow(`SELECT id, created_at FROM snapshots WHERE path = ?`, s.Path).Scan(&s.ID, &s.CreatedAt)
	if err != nil {
		return errors.Wrap(err, "failed to read snapshot id")
	}

	slog.Debug("database_snapshot_recorded", "path", s.Path, "owner", s.Owner, "kind", s.Kind)
	return nil
}

// GetSnapshot retrieves a snapshot by path. It returns nil when the path is unknown.
func (r *Repository) GetSnapshot(path string) (*Snapshot, error) {
	query := `SELECT id, path, owner, session, kind, printed, created_at FROM snapshots WHERE path = ?`
	s, err := scanSnapshot(r.db.QueryRow(query, path))
	if err == sql.ErrNoRows {
		return nil, nil // Not found
	}
	if err != nil {
		slog.Error("database_query_failed", "path", path, "error", err)
		return nil, errors.Wrap(err, "failed to query snapshot")
	}
	return s, nil
}

// MarkPrinted flags every file owned by the same artifact as path as printed.
func (r *Repository) MarkPrinted(path string) error {
	query := `
		UPDATE snapshots SET printed = 1
		WHERE path = ? OR owner = (SELECT owner FROM snapshots WHERE path = ?)
	`
	if _, err := r.db.Exec(query, path, path); err != nil {
		slog.Error("database_update_failed", "path", path, "error", err)
		return errors.Wrap(err, "failed to mark printed")
	}
	slog.Info("database_snapshot_printed", "path", path)
	return nil
}

// DeleteSnapshot removes the record of path
func (r *Repository) DeleteSnapshot(path string) error {
	if _, err := r.db.Exec(`DELETE FROM snapshots WHERE path = ?`, path); err != nil {
		slog.Error("database_delete_failed", "path", path, "error", err)
		return errors.Wrap(err, "failed to delete snapshot")
	}
	return nil
}

// ListSnapshots retrieves all snapshots, newest first
func (r *Repository) ListSnapshots() ([]*Snapshot, error) {
	return r.querySnapshots(`
		SELECT id, path, owner, session, kind, printed, created_at
		FROM snapshots ORDER BY created_at DESC, id DESC
	`)
}

// ListUnprinted retrieves unprinted snapshots created before the cutoff. An empty
// session matches every session.
func (r *Repository) ListUnprinted(session string, before time.Time) ([]*Snapshot, error) {
	return r.querySnapshots(`
		SELECT id, path, owner, session, kind, printed, created_at
		FROM snapshots
		WHERE printed = 0 AND created_at < ? AND (? = '' OR session = ?)
		ORDER BY created_at, id
	`, before.UTC().Format(TimeLayout), session, session)
}

func (r *Repository) querySnapshots(query string, args ...any) ([]*Snapshot, error) {
	rows, err := r.db.Query(query, args...)
	if err != nil {
		slog.Error("database_list_query_failed", "error", err)
		return nil, errors.Wrap(err, "failed to list snapshots")
	}
	defer rows.Close()

	var snapshots []*Snapshot
	for rows.Next() {
		s, err := scanSnapshot(rows)
		if err != nil {
			slog.Error("database_scan_row_failed", "error", err)
			return nil, errors.Wrap(err, "failed to scan row")
		}
		snapshots = append(snapshots, s)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(err, "rows error")
	}
	return snapshots, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanSnapshot(row scanner) (*Snapshot, error) {
	var s Snapshot
	if err := row.Scan(&s.ID, &s.Path, &s.Owner, &s.Session, &s.Kind, &s.Printed, &s.CreatedAt); err != nil {
		return nil, err
	}
	return &s, nil
}

// CreateJob inserts a new print job record
func (r *Repository) CreateJob(job *PrintJob) error {
	slog.Info("database_create_job", "job_id", job.ID, "image_path", job.ImagePath, "status", job.Status)

	args, err := json.Marshal(job.CmdArgs)
	if err != nil {
		return errors.Wrap(err, "failed to encode cmd args")
	}

	query := `
		INSERT INTO print_jobs (id, image_path, copies, landscape, printer, cmd_args, status, print_file, archive_key, error_message)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`
	_, err = r.db.Exec(query,
		job.ID, job.ImagePath, job.Copies, job.Landscape, job.Printer, string(args),
		job.Status, job.PrintFile, job.ArchiveKey, job.ErrorMessage)
	if err != nil {
		slog.Error("database_insert_failed", "job_id", job.ID, "error", err)
		return errors.Wrap(err, "failed to insert print job")
	}
	return nil
}

// GetJob retrieves a print job by id. It returns nil when the job is unknown.
func (r *Repository) GetJob(id string) (*PrintJob, error) {
	query := `
		SELECT id, image_path, copies, landscape, printer, cmd_args, status,
		       print_file, archive_key, error_message, created_at, updated_at
		FROM print_jobs WHERE id = ?
	`
	job, err := scanJob(r.db.QueryRow(query, id))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		slog.Error("database_query_failed", "job_id", id, "error", err)
		return nil, errors.Wrap(err, "failed to query print job")
	}
	return job, nil
}

// UpdateJob updates an existing print job record
func (r *Repository) UpdateJob(job *PrintJob) error {
	query := `
		UPDATE print_jobs
		SET printer = ?, status = ?, print_file = ?, archive_key = ?, error_message = ?,
		    updated_at = CURRENT_TIMESTAMP
		WHERE id = ?
	`
	result, err := r.db.Exec(query, job.Printer, job.Status, job.PrintFile, job.ArchiveKey, job.ErrorMessage, job.ID)
	if err != nil {
		slog.Error("database_update_failed", "job_id", job.ID, "error", err)
		return errors.Wrap(err, "failed to update print job")
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return errors.Wrap(err, "failed to get rows affected")
	}
	if rows == 0 {
		slog.Error("database_job_not_found_for_update", "job_id", job.ID)
		return fmt.Errorf("print job not found: id=%s", job.ID)
	}
	return nil
}

// UpdateJobStatus updates only the status field
func (r *Repository) UpdateJobStatus(id, status, errorMessage string) error {
	slog.Info("database_update_status", "job_id", id, "status", status)

	query := `UPDATE print_jobs SET status = ?, error_message = ?, updated_at = CURRENT_TIMESTAMP WHERE id = ?`
	if _, err := r.db.Exec(query, status, errorMessage, id); err != nil {
		slog.Error("database_status_update_failed", "job_id", id, "status", status, "error", err)
		return errors.Wrap(err, "failed to update status")
	}
	return nil
}

// ListJobs retrieves the most recent print jobs. limit <= 0 returns all of them.
func (r *Repository) ListJobs(limit int) ([]*PrintJob, error) {
	query := `
		SELECT id, image_path, copies, landscape, printer, cmd_args, status,
		       print_file, archive_key, error_message, created_at, updated_at
		FROM print_jobs ORDER BY created_at DESC, rowid DESC
	`
	args := []any{}
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	rows, err := r.db.Query(query, args...)
	if err != nil {
		slog.Error("database_list_query_failed", "error", err)
		return nil, errors.Wrap(err, "failed to list print jobs")
	}
	defer rows.Close()

	var jobs []*PrintJob
	for rows.Next() {
		job, err := scanJob(rows)
		if err != nil {
			slog.Error("database_scan_row_failed", "error", err)
			return nil, errors.Wrap(err, "failed to scan row")
		}
		jobs = append(jobs, job)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(err, "rows error")
	}

	slog.Info("database_list_complete", "job_count", len(jobs))
	return jobs, nil
}

func scanJob(row scanner) (*PrintJob, error) {
	var job PrintJob
	var printer, cmdArgs, printFile, archiveKey, errorMessage sql.NullString
	err := row.Scan(
		&job.ID, &job.ImagePath, &job.Copies, &job.Landscape, &printer, &cmdArgs, &job.Status,
		&printFile, &archiveKey, &errorMessage, &job.CreatedAt, &job.UpdatedAt)
	if err != nil {
		return nil, err
	}

	// Handle nullable fields
	job.Printer = printer.String
	job.PrintFile = printFile.String
	job.ArchiveKey = archiveKey.String
	job.ErrorMessage = errorMessage.String
	if cmdArgs.String != "" {
		if err := json.Unmarshal([]byte(cmdArgs.String), &job.CmdArgs); err != nil {
			return nil, errors.Wrap(err, "decode cmd args")
		}
	}
	return &job, nil
}
