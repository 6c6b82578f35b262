package services

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/mbeckett/dremelink/pkg/models"
)

// JobRepository provides access to print-job submission records.
type JobRepository interface {
	// Get returns a single job by ID.
	Get(ctx context.Context, id string) (*models.Job, error)

	// List returns a paginated list of jobs ordered by submission time.
	List(ctx context.Context, opts ListOptions) (*ListResult[models.Job], error)

	// Create inserts a new job record. If job.ID is empty, a UUID is
	// generated.
	Create(ctx context.Context, job *models.Job) error

	// UpdateStatus updates a job's status and optional error message.
	UpdateStatus(ctx context.Context, id string, status models.JobStatus, errMsg string) error
}

// Compile-time interface guard.
var _ JobRepository = (*SQLiteJobRepository)(nil)

// SQLiteJobRepository implements JobRepository using SQLite.
// It queries the dremel_jobs table directly.
type SQLiteJobRepository struct {
	db *sql.DB
}

// NewSQLiteJobRepository creates a JobRepository. The dremel_jobs table
// must already exist (created by the dremel module's migrations).
func NewSQLiteJobRepository(db *sql.DB) *SQLiteJobRepository {
	return &SQLiteJobRepository{db: db}
}

func (r *SQLiteJobRepository) Get(ctx context.Context, id string) (*models.Job, error) {
	var job models.Job
	var status, errMsg string
	err := r.db.QueryRowContext(ctx, `
		SELECT id, printer_id, file_name, status, error_msg, submitted_at
		FROM dremel_jobs WHERE id = ?`, id,
	).Scan(&job.ID, &job.PrinterID, &job.FileName, &status, &errMsg, &job.SubmittedAt)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get job %q: %w", id, err)
	}
	job.Status = models.JobStatus(status)
	job.Error = errMsg
	return &job, nil
}

func (r *SQLiteJobRepository) List(ctx context.Context, opts ListOptions) (*ListResult[models.Job], error) {
	opts = normalizeListOptions(opts)

	var total int
	if err := r.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM dremel_jobs`,
	).Scan(&total); err != nil {
		return nil, fmt.Errorf("count jobs: %w", err)
	}

	// Jobs are always ordered by submission time.
	orderDir := "DESC"
	if opts.SortOrder == "asc" {
		orderDir = "ASC"
	}

	//nolint:gosec // orderDir is validated above
	query := fmt.Sprintf(`
		SELECT id, printer_id, file_name, status, error_msg, submitted_at
		FROM dremel_jobs ORDER BY submitted_at %s LIMIT ? OFFSET ?`, orderDir)

	rows, err := r.db.QueryContext(ctx, query, opts.Limit, opts.Offset)
	if err != nil {
		return nil, fmt.Errorf("list jobs: %w", err)
	}
	defer rows.Close()

	var jobs []models.Job
	for rows.Next() {
		var job models.Job
		var status, errMsg string
		if err := rows.Scan(&job.ID, &job.PrinterID, &job.FileName,
			&status, &errMsg, &job.SubmittedAt); err != nil {
			return nil, fmt.Errorf("job row: %w", err)
		}
		job.Status = models.JobStatus(status)
		job.Error = errMsg
		jobs = append(jobs, job)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate jobs: %w", err)
	}
	if jobs == nil {
		jobs = []models.Job{}
	}

	return &ListResult[models.Job]{Items: jobs, Total: total}, nil
}

func (r *SQLiteJobRepository) Create(ctx context.Context, job *models.Job) error {
	if job.ID == "" {
		job.ID = uuid.New().String()
	}
	if job.SubmittedAt.IsZero() {
		job.SubmittedAt = time.Now().UTC()
	}
	if job.Status == "" {
		job.Status = models.JobUploaded
	}

	_, err := r.db.ExecContext(ctx, `
		INSERT INTO dremel_jobs (id, printer_id, file_name, status, error_msg, submitted_at)
		VALUES (?, ?, ?, ?, ?, ?)`,
		job.ID, job.PrinterID, job.FileName, string(job.Status), job.Error, job.SubmittedAt,
	)
	if err != nil {
		return fmt.Errorf("create job: %w", err)
	}
	return nil
}

func (r *SQLiteJobRepository) UpdateStatus(ctx context.Context, id string, status models.JobStatus, errMsg string) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE dremel_jobs SET status = ?, error_msg = ? WHERE id = ?`,
		string(status), errMsg, id)
	if err != nil {
		return fmt.Errorf("update job status: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}
