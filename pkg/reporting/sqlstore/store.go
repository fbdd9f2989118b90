// Package sqlstore stores report records in PostgreSQL or SQLite.
package sqlstore

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/sirosfoundation/peppol-support/pkg/reporting"
)

// Option configures a Store
type Option func(*Store)

// WithSchema places the tables in a schema. SQLite only accepts "main".
func WithSchema(schema string) Option {
	return func(s *Store) { s.schema = schema }
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Store) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// Store implements reporting.Storage on database/sql. The tables must
// exist; see Migrate.
type Store struct {
	db      *sql.DB
	dialect Dialect
	schema  string
	prefix  string
	logger  *slog.Logger
}

var _ reporting.Storage = (*Store)(nil)

// New creates a store on db.
func New(db *sql.DB, dialect Dialect, opts ...Option) (*Store, error) {
	if dialect != DialectPostgres && dialect != DialectSQLite {
		return nil, fmt.Errorf("unsupported SQL dialect: %q", dialect)
	}

	s := &Store{db: db, dialect: dialect, logger: slog.Default()}
	for _, opt := range opts {
		opt(s)
	}

	prefix, err := tablePrefix(dialect, s.schema)
	if err != nil {
		return nil, err
	}
	s.prefix = prefix
	s.logger = s.logger.With("backend", "sql", "dialect", string(dialect))
	return s, nil
}

// StoreReport inserts one row into peppol_report.
func (s *Store) StoreReport(ctx context.Context, report *reporting.ReportData) error {
	if report == nil {
		return fmt.Errorf("%w: nil report", reporting.ErrInvalidInput)
	}
	query := "INSERT INTO " + s.prefix + "peppol_report (reptype, repyear, repmonth, repcreatedt, report, repvalid) VALUES (?, ?, ?, ?, ?, ?)"
	return s.insert(ctx, "report", query,
		reporting.Truncate(report.Type().ID(), reporting.MaxIDLength),
		report.Period().Year,
		int(report.Period().Month),
		report.CreatedAt(),
		report.PayloadString(),
		report.Valid(),
	)
}

// StoreSendingReport inserts one row into peppol_sending_report. The
// sendingreport column is NULL when there is no receipt.
func (s *Store) StoreSendingReport(ctx context.Context, report *reporting.SendingReportData) error {
	if report == nil {
		return fmt.Errorf("%w: nil sending report", reporting.ErrInvalidInput)
	}
	receipt, ok := report.Receipt()
	query := "INSERT INTO " + s.prefix + "peppol_sending_report (reptype, repyear, repmonth, repcreatedt, sendingreport) VALUES (?, ?, ?, ?, ?)"
	return s.insert(ctx, "sending report", query,
		reporting.Truncate(report.Type().ID(), reporting.MaxIDLength),
		report.Period().Year,
		int(report.Period().Month),
		report.CreatedAt(),
		sql.NullString{String: receipt, Valid: ok},
	)
}

func (s *Store) insert(ctx context.Context, kind, query string, args ...any) error {
	if s.db == nil {
		return fmt.Errorf("%w: no database", reporting.ErrBackendUnavailable)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("starting transaction for %s: %w", kind, err)
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx, s.rebind(query), args...)
	if err != nil {
		return fmt.Errorf("inserting %s: %w", kind, err)
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("inserting %s: %w", kind, err)
	}
	if rows != 1 {
		return fmt.Errorf("%w: inserting %s affected %d rows", reporting.ErrContractViolation, kind, rows)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing %s: %w", kind, err)
	}
	s.logger.Debug("Stored record", "kind", kind)
	return nil
}

// FindReports returns the reports of a period ordered by creation time.
func (s *Store) FindReports(ctx context.Context, period reporting.Period) ([]*reporting.ReportData, error) {
	query := "SELECT reptype, repcreatedt, report, repvalid FROM " + s.prefix +
		"peppol_report WHERE repyear = ? AND repmonth = ? ORDER BY repcreatedt"

	var out []*reporting.ReportData
	err := s.query(ctx, query, period, func(rows *sql.Rows) error {
		var (
			reportType string
			createdAt  time.Time
			payload    string
			valid      bool
		)
		if err := rows.Scan(&reportType, &createdAt, &payload, &valid); err != nil {
			return err
		}
		r, err := reporting.NewReportData(reporting.ReportType(reportType), period, createdAt, []byte(payload), valid)
		if err != nil {
			return err
		}
		out = append(out, r)
		return nil
	})
	return out, err
}

// FindSendingReports returns the sending reports of a period ordered by
// creation time.
func (s *Store) FindSendingReports(ctx context.Context, period reporting.Period) ([]*reporting.SendingReportData, error) {
	query := "SELECT reptype, repcreatedt, sendingreport FROM " + s.prefix +
		"peppol_sending_report WHERE repyear = ? AND repmonth = ? ORDER BY repcreatedt"

	var out []*reporting.SendingReportData
	err := s.query(ctx, query, period, func(rows *sql.Rows) error {
		var (
			reportType string
			createdAt  time.Time
			receipt    sql.NullString
		)
		if err := rows.Scan(&reportType, &createdAt, &receipt); err != nil {
			return err
		}
		r, err := reporting.NewSendingReportData(reporting.ReportType(reportType), period, createdAt, receipt.String)
		if err != nil {
			return err
		}
		out = append(out, r)
		return nil
	})
	return out, err
}

func (s *Store) query(ctx context.Context, query string, period reporting.Period, scan func(*sql.Rows) error) error {
	if s.db == nil {
		return fmt.Errorf("%w: no database", reporting.ErrBackendUnavailable)
	}

	rows, err := s.db.QueryContext(ctx, s.rebind(query), period.Year, int(period.Month))
	if err != nil {
		return fmt.Errorf("querying %s: %w", period, err)
	}
	defer rows.Close()

	for rows.Next() {
		if err := scan(rows); err != nil {
			return fmt.Errorf("reading %s: %w", period, err)
		}
	}
	return rows.Err()
}

// rebind converts ? placeholders to $1, $2, ... for PostgreSQL.
func (s *Store) rebind(query string) string {
	if s.dialect != DialectPostgres {
		return query
	}

	var b strings.Builder
	n := 1
	for i := 0; i < len(query); i++ {
		if query[i] == '?' {
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
			n++
			continue
		}
		b.WriteByte(query[i])
	}
	return b.String()
}
