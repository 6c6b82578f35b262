package services

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/mbeckett/dremelink/pkg/models"
)

// PrinterRepository provides CRUD access to discovered printers.
type PrinterRepository interface {
	// Get returns a single printer by device ID.
	Get(ctx context.Context, id string) (*models.Printer, error)

	// List returns a paginated list of printers.
	List(ctx context.Context, opts ListOptions) (*ListResult[models.Printer], error)

	// Upsert inserts a printer or, if the device ID already exists,
	// refreshes its name, properties, and last_seen. Returns true when
	// the printer was newly created.
	Upsert(ctx context.Context, p *models.Printer) (bool, error)

	// Delete removes a printer by device ID.
	Delete(ctx context.Context, id string) error
}

// Compile-time interface guard.
var _ PrinterRepository = (*SQLitePrinterRepository)(nil)

// SQLitePrinterRepository implements PrinterRepository using SQLite.
// It queries the dremel_printers table directly.
type SQLitePrinterRepository struct {
	db *sql.DB
}

// NewSQLitePrinterRepository creates a PrinterRepository. The
// dremel_printers table must already exist (created by the dremel module's
// migrations).
func NewSQLitePrinterRepository(db *sql.DB) *SQLitePrinterRepository {
	return &SQLitePrinterRepository{db: db}
}

// printerColumns is the shared column list for printer queries.
const printerColumns = `id, name, address, base_url, properties,
	short_description, icon_name, priority, first_seen, last_seen`

func (r *SQLitePrinterRepository) Get(ctx context.Context, id string) (*models.Printer, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+printerColumns+` FROM dremel_printers WHERE id = ?`, id)
	p, err := scanPrinter(row.Scan)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get printer %q: %w", id, err)
	}
	return p, nil
}

func (r *SQLitePrinterRepository) List(ctx context.Context, opts ListOptions) (*ListResult[models.Printer], error) {
	opts = normalizeListOptions(opts)

	var total int
	if err := r.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM dremel_printers`,
	).Scan(&total); err != nil {
		return nil, fmt.Errorf("count printers: %w", err)
	}

	// Printers are always ordered by last_seen.
	orderDir := "DESC"
	if opts.SortOrder == "asc" {
		orderDir = "ASC"
	}

	//nolint:gosec // orderDir is validated above
	query := fmt.Sprintf(
		`SELECT %s FROM dremel_printers ORDER BY last_seen %s LIMIT ? OFFSET ?`,
		printerColumns, orderDir)

	rows, err := r.db.QueryContext(ctx, query, opts.Limit, opts.Offset)
	if err != nil {
		return nil, fmt.Errorf("list printers: %w", err)
	}
	defer rows.Close()

	var printers []models.Printer
	for rows.Next() {
		p, err := scanPrinter(rows.Scan)
		if err != nil {
			return nil, fmt.Errorf("printer row: %w", err)
		}
		printers = append(printers, *p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate printers: %w", err)
	}
	if printers == nil {
		printers = []models.Printer{}
	}

	return &ListResult[models.Printer]{Items: printers, Total: total}, nil
}

func (r *SQLitePrinterRepository) Upsert(ctx context.Context, p *models.Printer) (bool, error) {
	now := time.Now().UTC()
	if p.FirstSeen.IsZero() {
		p.FirstSeen = now
	}
	p.LastSeen = now

	propsJSON, _ := json.Marshal(p.Properties)
	if p.Properties == nil {
		propsJSON = []byte("{}")
	}

	res, err := r.db.ExecContext(ctx, `
		UPDATE dremel_printers SET name = ?, properties = ?, last_seen = ?
		WHERE id = ?`,
		p.Name, string(propsJSON), p.LastSeen, p.ID,
	)
	if err != nil {
		return false, fmt.Errorf("update printer: %w", err)
	}
	if n, _ := res.RowsAffected(); n > 0 {
		return false, nil
	}

	_, err = r.db.ExecContext(ctx, `
		INSERT INTO dremel_printers (
			id, name, address, base_url, properties,
			short_description, icon_name, priority, first_seen, last_seen
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		p.ID, p.Name, p.Address, p.BaseURL, string(propsJSON),
		p.ShortDescription, p.IconName, p.Priority, p.FirstSeen, p.LastSeen,
	)
	if err != nil {
		return false, fmt.Errorf("insert printer: %w", err)
	}
	return true, nil
}

func (r *SQLitePrinterRepository) Delete(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx,
		`DELETE FROM dremel_printers WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete printer: %w", err)
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

// scanPrinter scans one row into a Printer using the given Scan function,
// shared between QueryRow and Rows iteration.
func scanPrinter(scan func(dest ...any) error) (*models.Printer, error) {
	var p models.Printer
	var propsJSON string
	err := scan(
		&p.ID, &p.Name, &p.Address, &p.BaseURL, &propsJSON,
		&p.ShortDescription, &p.IconName, &p.Priority, &p.FirstSeen, &p.LastSeen,
	)
	if err != nil {
		return nil, err
	}
	_ = json.Unmarshal([]byte(propsJSON), &p.Properties)
	return &p, nil
}
