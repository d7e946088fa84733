package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/go-sql-driver/mysql"

	"github.com/iliyamo/event-pass-system/internal/model"
)

// mysqlDuplicateEntry is the server error number for a UNIQUE/PRIMARY KEY
// violation.
const mysqlDuplicateEntry = 1062

// MySQLStore keeps the record store in MySQL tables created by
// database.Migrate.  Serial allocation uses LAST_INSERT_ID so that
// concurrent processes never observe the same value, and the scans table is
// keyed by serial number so a second scan fails with ErrAlreadyScanned.
type MySQLStore struct {
	db *sql.DB
}

// NewMySQLStore seeds the counter and powered-by rows on first use and
// returns the store.
func NewMySQLStore(ctx context.Context, db *sql.DB, poweredBy model.PoweredBy) (*MySQLStore, error) {
	if _, err := db.ExecContext(ctx, `INSERT IGNORE INTO counters (name, value) VALUES ('next_serial', 1)`); err != nil {
		return nil, err
	}
	if _, err := db.ExecContext(ctx, `INSERT IGNORE INTO powered_by (id, name, logo) VALUES (1, ?, ?)`, poweredBy.Name, poweredBy.Logo); err != nil {
		return nil, err
	}
	return &MySQLStore{db: db}, nil
}

// NextSerial atomically returns the current counter and increments it.
func (s *MySQLStore) NextSerial(ctx context.Context) (int64, error) {
	const q = `UPDATE counters SET value = LAST_INSERT_ID(value + 1) WHERE name = 'next_serial'`
	res, err := s.db.ExecContext(ctx, q)
	if err != nil {
		return 0, err
	}
	next, err := res.LastInsertId()
	if err != nil {
		return 0, err
	}
	return next - 1, nil
}

func (s *MySQLStore) AddPass(ctx context.Context, p model.Pass) error {
	const q = `INSERT INTO passes (id, serial_number, attendee_name, ticket_type, event_name, event_date, venue, issued_at, status)
	           VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`
	_, err := s.db.ExecContext(ctx, q, p.ID, p.SerialNumber, p.AttendeeName, p.TicketType,
		p.EventName, p.EventDate, p.Venue, p.IssuedAt.UTC(), string(p.Status))
	return err
}

const passColumns = `id, serial_number, attendee_name, ticket_type, event_name, event_date, venue, issued_at, status`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanPass(row rowScanner) (model.Pass, error) {
	var p model.Pass
	var status string
	err := row.Scan(&p.ID, &p.SerialNumber, &p.AttendeeName, &p.TicketType,
		&p.EventName, &p.EventDate, &p.Venue, &p.IssuedAt, &status)
	p.Status = model.PassStatus(status)
	return p, err
}

func (s *MySQLStore) ListPasses(ctx context.Context) ([]model.Pass, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+passColumns+` FROM passes ORDER BY id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []model.Pass{}
	for rows.Next() {
		p, err := scanPass(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

func (s *MySQLStore) GetPassBySerial(ctx context.Context, serial string) (*model.Pass, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+passColumns+` FROM passes WHERE serial_number = ?`, serial)
	p, err := scanPass(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &p, nil
}

// AddScan inserts the scan row.  A duplicate serial maps to
// ErrAlreadyScanned.
func (s *MySQLStore) AddScan(ctx context.Context, serial string, at time.Time) (model.Scan, error) {
	_, err := s.db.ExecContext(ctx, `INSERT INTO scans (serial_number, scanned_at) VALUES (?, ?)`, serial, at.UTC())
	var me *mysql.MySQLError
	if errors.As(err, &me) && me.Number == mysqlDuplicateEntry {
		return model.Scan{}, ErrAlreadyScanned
	}
	if err != nil {
		return model.Scan{}, err
	}
	return model.Scan{SerialNumber: serial, ScannedAt: at}, nil
}

func (s *MySQLStore) GetScan(ctx context.Context, serial string) (*model.Scan, error) {
	var sc model.Scan
	err := s.db.QueryRowContext(ctx, `SELECT serial_number, scanned_at FROM scans WHERE serial_number = ?`, serial).
		Scan(&sc.SerialNumber, &sc.ScannedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &sc, nil
}

func (s *MySQLStore) AddSponsor(ctx context.Context, sp model.Sponsor) error {
	_, err := s.db.ExecContext(ctx, `INSERT INTO sponsors (name, logo, added_at) VALUES (?, ?, ?)`, sp.Name, sp.Logo, sp.AddedAt.UTC())
	return err
}

// ListSponsors returns sponsors in insertion order (auto-increment id).
func (s *MySQLStore) ListSponsors(ctx context.Context) ([]model.Sponsor, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT name, logo, added_at FROM sponsors ORDER BY id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []model.Sponsor{}
	for rows.Next() {
		var sp model.Sponsor
		if err := rows.Scan(&sp.Name, &sp.Logo, &sp.AddedAt); err != nil {
			return nil, err
		}
		out = append(out, sp)
	}
	return out, rows.Err()
}

func (s *MySQLStore) RemoveSponsor(ctx context.Context, name string) (int, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM sponsors WHERE name = ?`, name)
	if err != nil {
		return 0, err
	}
	n, err := res.RowsAffected()
	return int(n), err
}

func (s *MySQLStore) UpdatePoweredBy(ctx context.Context, name, logo string, at time.Time) (model.PoweredBy, error) {
	const q = `INSERT INTO powered_by (id, name, logo, updated_at) VALUES (1, ?, ?, ?)
	           ON DUPLICATE KEY UPDATE name = VALUES(name), logo = VALUES(logo), updated_at = VALUES(updated_at)`
	if _, err := s.db.ExecContext(ctx, q, name, logo, at.UTC()); err != nil {
		return model.PoweredBy{}, err
	}
	return model.PoweredBy{Name: name, Logo: logo, UpdatedAt: &at}, nil
}

func (s *MySQLStore) GetPoweredBy(ctx context.Context) (model.PoweredBy, error) {
	var pb model.PoweredBy
	var updated sql.NullTime
	err := s.db.QueryRowContext(ctx, `SELECT name, logo, updated_at FROM powered_by WHERE id = 1`).
		Scan(&pb.Name, &pb.Logo, &updated)
	if err != nil {
		return model.PoweredBy{}, err
	}
	if updated.Valid {
		pb.UpdatedAt = &updated.Time
	}
	return pb, nil
}

func (s *MySQLStore) Stats(ctx context.Context) (model.Stats, error) {
	var total, scanned int
	err := s.db.QueryRowContext(ctx, `SELECT (SELECT COUNT(*) FROM passes), (SELECT COUNT(*) FROM scans)`).
		Scan(&total, &scanned)
	if err != nil {
		return model.Stats{}, err
	}
	return model.NewStats(total, scanned), nil
}

// Close closes the underlying connection pool.
func (s *MySQLStore) Close() error { return s.db.Close() }
