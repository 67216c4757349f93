/*
Package sqlite provides the SQLite-backed persistence for slips.

PURPOSE:
  Owns the three server-side responsibilities the editing client treats
  as opaque endpoints: slip persistence, header-id issuance, and
  per-(office, date) serial-number issuance. In production the same
  patterns apply to PostgreSQL - only minor SQL dialect differences.

KEY TABLES:
  slip_headers:    One row per slip header. Soft-deleted via deleted_at.
  slip_details:    Detail lines, replaced wholesale on every save.
  serial_counters: Next serial per (office, date), bumped transactionally.

SAVE SEMANTICS:
  The client resubmits the WHOLE aggregate on every save. SaveSlip
  therefore upserts the header and replaces the full detail set in one
  transaction. A header row-status of Deleted turns the save into a
  tombstone: the header is marked deleted_at and drops out of search;
  PurgeDeleted hard-deletes old tombstones (driven by the cron job).

SERIAL ISSUANCE:
  Serials are dense and monotonic per (office, date), starting at 1.
  The counter row is read and bumped inside one transaction, so two
  concurrent saves can never receive the same serial.

AMOUNTS:
  Stored as TEXT in decimal string form. Parsed back with
  decimal.NewFromString - amounts never pass through float64.

WAL MODE:
  SQLite is opened with WAL for better concurrency: readers don't block,
  single writer at a time.

USAGE:
  store, err := sqlite.New("./data/slips.db")
  if err != nil {
      log.Fatal(err)
  }
  defer store.Close()

SEE ALSO:
  - slip/types.go: the domain types persisted here
  - api/handlers.go: the HTTP layer on top
*/
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"
	"github.com/shopspring/decimal"

	"github.com/warp/slip-engine/slip"
)

const dateFormat = "2006-01-02"

// maxDailySerial caps serials per (office, date); the printed slip
// number carries four digits.
const maxDailySerial = 9999

// Store implements slip persistence and identity issuance using SQLite.
type Store struct {
	db *sql.DB
	mu sync.Mutex
}

// New creates a new SQLite store with the given database path.
// Use ":memory:" for an in-memory database.
func New(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_foreign_keys=on&_journal_mode=WAL")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// An in-memory database exists per connection; pin the pool to one
	// so the schema is visible to every query.
	if dbPath == ":memory:" {
		db.SetMaxOpenConns(1)
	}

	store := &Store{db: db}
	if err := store.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	return store, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// migrate creates the database schema.
func (s *Store) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS slip_headers (
		header_id        TEXT PRIMARY KEY,
		office_code      TEXT NOT NULL,
		dept_code        TEXT NOT NULL,
		slip_date        TEXT NOT NULL,
		serial_no        INTEGER NOT NULL,
		slip_type        TEXT NOT NULL,
		slip_category    TEXT NOT NULL,
		description      TEXT NOT NULL,
		currency_unit    TEXT NOT NULL,
		rate_type        TEXT NOT NULL,
		exchange_rate    TEXT NOT NULL,
		evidence_type    TEXT,
		bookkeeping_code TEXT,
		reference_no     TEXT,
		row_status       TEXT NOT NULL,
		created_by       TEXT NOT NULL,
		updated_by       TEXT NOT NULL,
		created_at       TEXT NOT NULL,
		updated_at       TEXT NOT NULL,
		deleted_at       TEXT
	);

	-- Identity quadruple; serials are never reused, so tombstones keep theirs.
	CREATE UNIQUE INDEX IF NOT EXISTS idx_headers_identity
		ON slip_headers(office_code, dept_code, slip_date, serial_no);

	-- Search hot path: office + date range, live slips only
	CREATE INDEX IF NOT EXISTS idx_headers_office_date
		ON slip_headers(office_code, slip_date) WHERE deleted_at IS NULL;

	CREATE INDEX IF NOT EXISTS idx_headers_deleted
		ON slip_headers(deleted_at) WHERE deleted_at IS NOT NULL;

	CREATE TABLE IF NOT EXISTS slip_details (
		header_id        TEXT NOT NULL REFERENCES slip_headers(header_id) ON DELETE CASCADE,
		line_seq         INTEGER NOT NULL,
		account_code     TEXT NOT NULL,
		currency_code    TEXT NOT NULL,
		exchange_rate    TEXT NOT NULL,
		debit_amount     TEXT NOT NULL,
		credit_amount    TEXT NOT NULL,
		occurred_amount  TEXT NOT NULL,
		converted_amount TEXT NOT NULL,
		dr_cr            TEXT NOT NULL,
		dept_code        TEXT NOT NULL,
		partner_code     TEXT NOT NULL,
		mgmt1_option     TEXT,
		mgmt1_type       TEXT,
		mgmt1_value      TEXT,
		mgmt2_option     TEXT,
		mgmt2_type       TEXT,
		mgmt2_value      TEXT,
		remark           TEXT,
		row_status       TEXT NOT NULL,
		created_by       TEXT NOT NULL,
		updated_by       TEXT NOT NULL,
		PRIMARY KEY (header_id, line_seq)
	);

	CREATE TABLE IF NOT EXISTS serial_counters (
		office_code TEXT NOT NULL,
		slip_date   TEXT NOT NULL,
		next_serial INTEGER NOT NULL,
		PRIMARY KEY (office_code, slip_date)
	);
	`
	_, err := s.db.Exec(schema)
	return err
}

// =============================================================================
// IDENTITY ISSUANCE
// =============================================================================

// NewHeaderID issues a fresh header id.
func (s *Store) NewHeaderID() slip.HeaderID {
	return slip.HeaderID(uuid.NewString())
}

// NextSerial issues the next serial for an (office, date) pair. Blank
// office/department fall back to the standard defaults and a zero date
// to today - the issued values are echoed back and are authoritative
// for the client's header.
func (s *Store) NextSerial(ctx context.Context, req slip.SerialRequest) (slip.SerialResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	office := slip.StandardDefaults.Coalesce(slip.FieldOfficeCode, req.OfficeCode)
	dept := slip.StandardDefaults.Coalesce(slip.FieldDeptCode, req.DeptCode)
	date := req.SlipDate
	if date.IsZero() {
		date = time.Now().UTC().Truncate(24 * time.Hour)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return slip.SerialResult{}, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	serial, err := nextSerialTx(ctx, tx, office, date)
	if err != nil {
		return slip.SerialResult{}, err
	}

	if err := tx.Commit(); err != nil {
		return slip.SerialResult{}, fmt.Errorf("failed to commit serial: %w", err)
	}

	return slip.SerialResult{
		SerialNo:   serial,
		OfficeCode: office,
		DeptCode:   dept,
		SlipDate:   date,
	}, nil
}

// nextSerialTx reads and bumps the counter inside the caller's transaction.
func nextSerialTx(ctx context.Context, tx *sql.Tx, office string, date time.Time) (int, error) {
	day := date.Format(dateFormat)

	var next int
	err := tx.QueryRowContext(ctx,
		`SELECT next_serial FROM serial_counters WHERE office_code = ? AND slip_date = ?`,
		office, day).Scan(&next)

	switch {
	case errors.Is(err, sql.ErrNoRows):
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO serial_counters (office_code, slip_date, next_serial) VALUES (?, ?, 2)`,
			office, day); err != nil {
			return 0, fmt.Errorf("failed to create serial counter: %w", err)
		}
		return 1, nil
	case err != nil:
		return 0, fmt.Errorf("failed to read serial counter: %w", err)
	}

	if next > maxDailySerial {
		return 0, fmt.Errorf("office %s date %s: %w", office, day, slip.ErrSerialExhausted)
	}

	if _, err := tx.ExecContext(ctx,
		`UPDATE serial_counters SET next_serial = next_serial + 1 WHERE office_code = ? AND slip_date = ?`,
		office, day); err != nil {
		return 0, fmt.Errorf("failed to bump serial counter: %w", err)
	}
	return next, nil
}

// =============================================================================
// SAVE / DELETE / COPY
// =============================================================================

// SaveSlip applies one save submission atomically. A header row-status
// of Deleted tombstones the slip; anything else upserts the header and
// replaces the full detail set.
func (s *Store) SaveSlip(ctx context.Context, req slip.SaveRequest) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if req.Header.RowStatus == slip.RowDeleted {
		if err := tombstoneTx(ctx, tx, req.Header); err != nil {
			return err
		}
		return tx.Commit()
	}

	if err := upsertSlipTx(ctx, tx, req); err != nil {
		return err
	}
	return tx.Commit()
}

// CopySlip stores the aggregate under a fresh identity (new header id
// plus a fresh serial for the header's office/date) and returns the
// stored header. Identity assignment happens here, not in the client.
func (s *Store) CopySlip(ctx context.Context, req slip.SaveRequest) (slip.Header, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return slip.Header{}, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	h := req.Header
	h.ID = s.NewHeaderID()
	h.OfficeCode = slip.StandardDefaults.Coalesce(slip.FieldOfficeCode, h.OfficeCode)
	h.DeptCode = slip.StandardDefaults.Coalesce(slip.FieldDeptCode, h.DeptCode)
	if h.SlipDate.IsZero() {
		h.SlipDate = time.Now().UTC().Truncate(24 * time.Hour)
	}

	serial, err := nextSerialTx(ctx, tx, h.OfficeCode, h.SlipDate)
	if err != nil {
		return slip.Header{}, err
	}
	h.SerialNo = serial
	h.RowStatus = slip.RowCreated

	copied := slip.SaveRequest{Header: h, Details: make([]slip.DetailLine, len(req.Details))}
	for i, l := range req.Details {
		l.HeaderID = h.ID
		l.RowStatus = slip.RowCreated
		copied.Details[i] = l
	}

	if err := upsertSlipTx(ctx, tx, copied); err != nil {
		return slip.Header{}, err
	}
	if err := tx.Commit(); err != nil {
		return slip.Header{}, fmt.Errorf("failed to commit copy: %w", err)
	}
	return h, nil
}

func tombstoneTx(ctx context.Context, tx *sql.Tx, h slip.Header) error {
	// deleted_at carries the request's update stamp, so the purge
	// retention window is measured from the user's delete.
	deletedAt := h.UpdatedAt
	if deletedAt.IsZero() {
		deletedAt = time.Now()
	}

	res, err := tx.ExecContext(ctx, `
		UPDATE slip_headers
		SET row_status = ?, updated_by = ?, updated_at = ?, deleted_at = ?
		WHERE header_id = ? AND deleted_at IS NULL`,
		string(slip.RowDeleted), h.UpdatedBy,
		h.UpdatedAt.UTC().Format(time.RFC3339), deletedAt.UTC().Format(time.RFC3339),
		string(h.ID))
	if err != nil {
		return fmt.Errorf("failed to tombstone slip: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("tombstone %s: %w", h.ID, slip.ErrSlipNotFound)
	}
	return nil
}

func upsertSlipTx(ctx context.Context, tx *sql.Tx, req slip.SaveRequest) error {
	h := req.Header
	_, err := tx.ExecContext(ctx, `
		INSERT INTO slip_headers (
			header_id, office_code, dept_code, slip_date, serial_no,
			slip_type, slip_category, description, currency_unit, rate_type,
			exchange_rate, evidence_type, bookkeeping_code, reference_no,
			row_status, created_by, updated_by, created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(header_id) DO UPDATE SET
			office_code = excluded.office_code,
			dept_code = excluded.dept_code,
			slip_date = excluded.slip_date,
			serial_no = excluded.serial_no,
			slip_type = excluded.slip_type,
			slip_category = excluded.slip_category,
			description = excluded.description,
			currency_unit = excluded.currency_unit,
			rate_type = excluded.rate_type,
			exchange_rate = excluded.exchange_rate,
			evidence_type = excluded.evidence_type,
			bookkeeping_code = excluded.bookkeeping_code,
			reference_no = excluded.reference_no,
			row_status = excluded.row_status,
			updated_by = excluded.updated_by,
			updated_at = excluded.updated_at`,
		string(h.ID), h.OfficeCode, h.DeptCode, h.SlipDate.Format(dateFormat), h.SerialNo,
		h.SlipType, h.SlipCategory, h.Description, h.CurrencyUnit, h.RateType,
		h.ExchangeRate.String(), h.EvidenceType, h.BookkeepingCode, h.ReferenceNo,
		string(h.RowStatus), h.CreatedBy, h.UpdatedBy,
		h.CreatedAt.UTC().Format(time.RFC3339), h.UpdatedAt.UTC().Format(time.RFC3339))
	if err != nil {
		return fmt.Errorf("failed to upsert header: %w", err)
	}

	// Full detail replacement: the client resubmits the whole set.
	if _, err := tx.ExecContext(ctx,
		`DELETE FROM slip_details WHERE header_id = ?`, string(h.ID)); err != nil {
		return fmt.Errorf("failed to clear details: %w", err)
	}

	for _, l := range req.Details {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO slip_details (
				header_id, line_seq, account_code, currency_code, exchange_rate,
				debit_amount, credit_amount, occurred_amount, converted_amount,
				dr_cr, dept_code, partner_code,
				mgmt1_option, mgmt1_type, mgmt1_value,
				mgmt2_option, mgmt2_type, mgmt2_value,
				remark, row_status, created_by, updated_by
			) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			string(h.ID), l.LineSeq, l.AccountCode, l.CurrencyCode, l.ExchangeRate.String(),
			l.DebitAmount.String(), l.CreditAmount.String(),
			l.OccurredAmount.String(), l.ConvertedAmount.String(),
			string(l.Side), l.DeptCode, l.PartnerCode,
			l.Mgmt1.Option, l.Mgmt1.Type, l.Mgmt1.Value,
			l.Mgmt2.Option, l.Mgmt2.Type, l.Mgmt2.Value,
			l.Remark, string(l.RowStatus), l.CreatedBy, l.UpdatedBy)
		if err != nil {
			return fmt.Errorf("failed to insert detail line %d: %w", l.LineSeq, err)
		}
	}
	return nil
}

// =============================================================================
// QUERIES
// =============================================================================

const headerColumns = `
	header_id, office_code, dept_code, slip_date, serial_no,
	slip_type, slip_category, description, currency_unit, rate_type,
	exchange_rate, evidence_type, bookkeeping_code, reference_no,
	row_status, created_by, updated_by, created_at, updated_at`

// GetHeader returns one live slip header.
func (s *Store) GetHeader(ctx context.Context, id slip.HeaderID) (*slip.Header, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+headerColumns+` FROM slip_headers WHERE header_id = ? AND deleted_at IS NULL`,
		string(id))

	h, err := scanHeader(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("header %s: %w", id, slip.ErrSlipNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read header: %w", err)
	}
	return h, nil
}

// GetDetails returns a slip's detail lines in sequence order.
func (s *Store) GetDetails(ctx context.Context, id slip.HeaderID) ([]slip.DetailLine, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT header_id, line_seq, account_code, currency_code, exchange_rate,
		       debit_amount, credit_amount, occurred_amount, converted_amount,
		       dr_cr, dept_code, partner_code,
		       mgmt1_option, mgmt1_type, mgmt1_value,
		       mgmt2_option, mgmt2_type, mgmt2_value,
		       remark, row_status, created_by, updated_by
		FROM slip_details WHERE header_id = ? ORDER BY line_seq`,
		string(id))
	if err != nil {
		return nil, fmt.Errorf("failed to query details: %w", err)
	}
	defer rows.Close()

	var lines []slip.DetailLine
	for rows.Next() {
		var l slip.DetailLine
		var headerID, side, status string
		var rate, debit, credit, occurred, converted string
		var m1o, m1t, m1v, m2o, m2t, m2v, remark sql.NullString

		if err := rows.Scan(&headerID, &l.LineSeq, &l.AccountCode, &l.CurrencyCode, &rate,
			&debit, &credit, &occurred, &converted,
			&side, &l.DeptCode, &l.PartnerCode,
			&m1o, &m1t, &m1v, &m2o, &m2t, &m2v,
			&remark, &status, &l.CreatedBy, &l.UpdatedBy); err != nil {
			return nil, fmt.Errorf("failed to scan detail: %w", err)
		}

		l.HeaderID = slip.HeaderID(headerID)
		l.Side = slip.DrCr(side)
		l.RowStatus = slip.RowStatus(status)
		l.Mgmt1 = slip.ManagementItem{Option: m1o.String, Type: m1t.String, Value: m1v.String}
		l.Mgmt2 = slip.ManagementItem{Option: m2o.String, Type: m2t.String, Value: m2v.String}
		l.Remark = remark.String

		if l.ExchangeRate, err = parseDecimal(rate, "exchange_rate"); err != nil {
			return nil, err
		}
		if l.DebitAmount, err = parseDecimal(debit, "debit_amount"); err != nil {
			return nil, err
		}
		if l.CreditAmount, err = parseDecimal(credit, "credit_amount"); err != nil {
			return nil, err
		}
		if l.OccurredAmount, err = parseDecimal(occurred, "occurred_amount"); err != nil {
			return nil, err
		}
		if l.ConvertedAmount, err = parseDecimal(converted, "converted_amount"); err != nil {
			return nil, err
		}

		lines = append(lines, l)
	}
	return lines, rows.Err()
}

// SearchHeaders returns live headers matching the filter, newest first
// by (date, serial).
func (s *Store) SearchHeaders(ctx context.Context, p slip.SearchParams) ([]slip.Header, error) {
	query := `SELECT ` + headerColumns + ` FROM slip_headers WHERE deleted_at IS NULL`
	var args []any

	if p.OfficeCode != "" {
		query += ` AND office_code = ?`
		args = append(args, p.OfficeCode)
	}
	if p.DeptCode != "" {
		query += ` AND dept_code = ?`
		args = append(args, p.DeptCode)
	}
	if !p.DateFrom.IsZero() {
		query += ` AND slip_date >= ?`
		args = append(args, p.DateFrom.Format(dateFormat))
	}
	if !p.DateTo.IsZero() {
		query += ` AND slip_date <= ?`
		args = append(args, p.DateTo.Format(dateFormat))
	}
	query += ` ORDER BY slip_date DESC, serial_no DESC`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to search headers: %w", err)
	}
	defer rows.Close()

	var headers []slip.Header
	for rows.Next() {
		h, err := scanHeader(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan header: %w", err)
		}
		headers = append(headers, *h)
	}
	return headers, rows.Err()
}

// PurgeDeleted hard-deletes tombstones older than the cutoff. Detail
// rows go with them via ON DELETE CASCADE. Returns the purge count.
func (s *Store) PurgeDeleted(ctx context.Context, olderThan time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.db.ExecContext(ctx,
		`DELETE FROM slip_headers WHERE deleted_at IS NOT NULL AND deleted_at < ?`,
		olderThan.UTC().Format(time.RFC3339))
	if err != nil {
		return 0, fmt.Errorf("failed to purge tombstones: %w", err)
	}
	return res.RowsAffected()
}

// =============================================================================
// SCAN HELPERS
// =============================================================================

type rowScanner interface {
	Scan(dest ...any) error
}

func scanHeader(row rowScanner) (*slip.Header, error) {
	var h slip.Header
	var id, date, status, createdAt, updatedAt, rate string
	var evidence, bookkeeping, reference sql.NullString

	if err := row.Scan(&id, &h.OfficeCode, &h.DeptCode, &date, &h.SerialNo,
		&h.SlipType, &h.SlipCategory, &h.Description, &h.CurrencyUnit, &h.RateType,
		&rate, &evidence, &bookkeeping, &reference,
		&status, &h.CreatedBy, &h.UpdatedBy, &createdAt, &updatedAt); err != nil {
		return nil, err
	}

	h.ID = slip.HeaderID(id)
	h.RowStatus = slip.RowStatus(status)
	h.EvidenceType = evidence.String
	h.BookkeepingCode = bookkeeping.String
	h.ReferenceNo = reference.String

	var err error
	if h.SlipDate, err = time.Parse(dateFormat, date); err != nil {
		return nil, fmt.Errorf("bad slip_date %q: %w", date, err)
	}
	if h.ExchangeRate, err = parseDecimal(rate, "exchange_rate"); err != nil {
		return nil, err
	}
	if h.CreatedAt, err = time.Parse(time.RFC3339, createdAt); err != nil {
		return nil, fmt.Errorf("bad created_at %q: %w", createdAt, err)
	}
	if h.UpdatedAt, err = time.Parse(time.RFC3339, updatedAt); err != nil {
		return nil, fmt.Errorf("bad updated_at %q: %w", updatedAt, err)
	}
	return &h, nil
}

func parseDecimal(s, field string) (decimal.Decimal, error) {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, fmt.Errorf("bad %s %q: %w", field, s, err)
	}
	return d, nil
}
