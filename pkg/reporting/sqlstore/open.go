package sqlstore

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"regexp"

	_ "github.com/lib/pq"
	_ "modernc.org/sqlite"

	"github.com/sirosfoundation/peppol-support/pkg/reporting"
)

// Dialect selects the SQL driver and DDL flavour
type Dialect string

const (
	DialectPostgres Dialect = "postgres"
	DialectSQLite   Dialect = "sqlite"
)

var identPattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// Open opens and pings a database. For SQLite, dsn is a file path.
func Open(ctx context.Context, dialect Dialect, dsn string) (*sql.DB, error) {
	var driverDSN string
	switch dialect {
	case DialectPostgres:
		driverDSN = dsn
	case DialectSQLite:
		if dir := filepath.Dir(dsn); dir != "." && dir != "" {
			if err := os.MkdirAll(dir, 0o750); err != nil {
				return nil, fmt.Errorf("%w: creating database directory: %w", reporting.ErrBackendUnavailable, err)
			}
		}
		driverDSN = fmt.Sprintf("file:%s?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)", dsn)
	default:
		return nil, fmt.Errorf("unsupported SQL dialect: %q", dialect)
	}

	db, err := sql.Open(string(dialect), driverDSN)
	if err != nil {
		return nil, fmt.Errorf("%w: opening %s database: %w", reporting.ErrBackendUnavailable, dialect, err)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("%w: pinging %s database: %w", reporting.ErrBackendUnavailable, dialect, err)
	}
	return db, nil
}

// Migrate creates the schema and both tables if they do not exist. It is
// meant to run once when a deployment is set up, not on every start.
// SQLite accepts no schema other than "main".
func Migrate(ctx context.Context, db *sql.DB, dialect Dialect, schema string) error {
	prefix, err := tablePrefix(dialect, schema)
	if err != nil {
		return err
	}

	var statements []string
	switch dialect {
	case DialectPostgres:
		if schema != "" {
			statements = append(statements, "CREATE SCHEMA IF NOT EXISTS "+schema)
		}
		statements = append(statements, fmt.Sprintf(ddlPostgres, prefix, prefix))
	case DialectSQLite:
		statements = append(statements, fmt.Sprintf(ddlSQLite, prefix, prefix))
	default:
		return fmt.Errorf("unsupported SQL dialect: %q", dialect)
	}

	for _, stmt := range statements {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("running migration: %w", err)
		}
	}
	return nil
}

const ddlPostgres = `
CREATE TABLE IF NOT EXISTS %speppol_report (
    reptype VARCHAR(12) NOT NULL,
    repyear INTEGER NOT NULL,
    repmonth INTEGER NOT NULL,
    repcreatedt TIMESTAMPTZ NOT NULL,
    report TEXT NOT NULL,
    repvalid BOOLEAN NOT NULL
);

CREATE TABLE IF NOT EXISTS %speppol_sending_report (
    reptype VARCHAR(12) NOT NULL,
    repyear INTEGER NOT NULL,
    repmonth INTEGER NOT NULL,
    repcreatedt TIMESTAMPTZ NOT NULL,
    sendingreport TEXT
);
`

const ddlSQLite = `
CREATE TABLE IF NOT EXISTS %speppol_report (
    reptype VARCHAR(12) NOT NULL,
    repyear INTEGER NOT NULL,
    repmonth INTEGER NOT NULL,
    repcreatedt TIMESTAMP NOT NULL,
    report TEXT NOT NULL,
    repvalid BOOLEAN NOT NULL
);

CREATE TABLE IF NOT EXISTS %speppol_sending_report (
    reptype VARCHAR(12) NOT NULL,
    repyear INTEGER NOT NULL,
    repmonth INTEGER NOT NULL,
    repcreatedt TIMESTAMP NOT NULL,
    sendingreport TEXT
);
`

func tablePrefix(dialect Dialect, schema string) (string, error) {
	if schema == "" {
		return "", nil
	}
	if !identPattern.MatchString(schema) {
		return "", fmt.Errorf("%w: invalid schema name %q", reporting.ErrInvalidInput, schema)
	}
	// on SQLite a qualifier names an attached database, only main is always there
	if dialect == DialectSQLite && schema != "main" {
		return "", fmt.Errorf("%w: sqlite does not support schema %q", reporting.ErrInvalidInput, schema)
	}
	return schema + ".", nil
}
