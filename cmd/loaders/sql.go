package loaders

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/go-sql-driver/mysql"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	_ "github.com/microsoft/go-mssqldb"
	"github.com/snowflakedb/gosnowflake"

	"github.com/airframesio/data-comparer/cmd/dataset"
)

// Driver names registered with database/sql
const (
	DriverPostgres  = "postgres"
	DriverPgx       = "pgx"
	DriverMySQL     = "mysql"
	DriverSQLServer = "sqlserver"
	DriverSnowflake = "snowflake"
)

// SQLOptions configures a query-backed source
type SQLOptions struct {
	// ConnString is a URL such as postgres://, cockroachdb://, mysql://,
	// sqlserver:// or snowflake://, or a lib/pq key=value string
	ConnString string
	Query      string
	AsText     bool
	MaxRetries int
	RetryDelay time.Duration
	// Timeout bounds each query attempt, zero means no limit
	Timeout time.Duration
}

// SQLLoader runs a query and loads its result set
type SQLLoader struct {
	opts   SQLOptions
	driver string
	dsn    string
	db     *sqlx.DB
	logger *slog.Logger
}

// NewSQLLoader resolves the driver from the connection string. The
// connection is opened on Load.
func NewSQLLoader(opts SQLOptions, logger *slog.Logger) (*SQLLoader, error) {
	driver, dsn, err := ParseConnString(opts.ConnString)
	if err != nil {
		return nil, err
	}
	return &SQLLoader{opts: opts, driver: driver, dsn: dsn, logger: logger}, nil
}

// NewSQLLoaderWithDB uses an open database handle, which the caller keeps owning
func NewSQLLoaderWithDB(db *sql.DB, driver string, opts SQLOptions, logger *slog.Logger) *SQLLoader {
	return &SQLLoader{opts: opts, driver: driver, db: sqlx.NewDb(db, driver), logger: logger}
}

// Describe returns the driver and the connection string with secrets masked
func (l *SQLLoader) Describe() string {
	if l.dsn == "" {
		return l.driver
	}
	return fmt.Sprintf("%s (%s)", l.driver, redactDSN(l.driver, l.dsn))
}

// Load runs the query, retrying when the connection breaks
func (l *SQLLoader) Load(ctx context.Context) (*dataset.Dataset, error) {
	if strings.TrimSpace(l.opts.Query) == "" {
		return nil, ErrEmptyQuery
	}

	db := l.db
	if db == nil {
		opened, err := sqlx.Open(l.driver, l.dsn)
		if err != nil {
			return nil, fmt.Errorf("failed to open database connection: %w", err)
		}
		defer opened.Close()
		db = opened
	}

	for attempt := 0; ; attempt++ {
		d, err := l.query(ctx, db)
		if err == nil {
			return finish(d, l.opts.AsText)
		}
		if errors.Is(err, context.Canceled) || ctx.Err() != nil {
			return nil, err
		}
		if !isConnectionError(err) || attempt >= l.opts.MaxRetries {
			return nil, err
		}

		l.logger.Warn(fmt.Sprintf("⚠️  Query failed on %s (attempt %d/%d), retrying in %s: %v",
			l.driver, attempt+1, l.opts.MaxRetries+1, l.opts.RetryDelay, err))
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(l.opts.RetryDelay):
		}
	}
}

func (l *SQLLoader) query(ctx context.Context, db *sqlx.DB) (*dataset.Dataset, error) {
	if l.opts.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, l.opts.Timeout)
		defer cancel()
	}

	l.logger.Debug(fmt.Sprintf("Running query on %s: %s", l.driver, l.opts.Query))
	rows, err := db.QueryxContext(ctx, l.opts.Query)
	if err != nil {
		return nil, fmt.Errorf("failed to run query: %w", err)
	}
	defer rows.Close()

	columns, err := rows.Columns()
	if err != nil {
		return nil, fmt.Errorf("failed to read result columns: %w", err)
	}
	d := dataset.New(columns...)
	if err := d.Validate(); err != nil {
		return nil, fmt.Errorf("query result columns: %w", err)
	}

	for rows.Next() {
		values, err := rows.SliceScan()
		if err != nil {
			return nil, fmt.Errorf("failed to scan row %d: %w", d.Len()+1, err)
		}
		row := make(dataset.Row, len(columns))
		for i, raw := range values {
			v, err := dataset.FromNative(raw)
			if err != nil {
				return nil, fmt.Errorf("row %d, column %q: %w", d.Len()+1, columns[i], err)
			}
			row[columns[i]] = v
		}
		d.Rows = append(d.Rows, row)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate rows: %w", err)
	}

	l.logger.Debug(fmt.Sprintf("Query returned %d rows, %d columns", d.Len(), len(columns)))
	return d, nil
}

// isConnectionError checks if an error is due to a closed or broken database connection
func isConnectionError(err error) bool {
	if errors.Is(err, sql.ErrConnDone) {
		return true
	}
	errStr := err.Error()
	return strings.Contains(errStr, "bad connection") ||
		strings.Contains(errStr, "connection reset") ||
		strings.Contains(errStr, "broken pipe") ||
		strings.Contains(errStr, "connection refused") ||
		strings.Contains(errStr, "sql: database is closed")
}

// ParseConnString maps a connection string to a registered driver and the
// DSN that driver expects
func ParseConnString(conn string) (driver, dsn string, err error) {
	conn = strings.TrimSpace(conn)
	scheme, rest, hasScheme := strings.Cut(conn, "://")
	if !hasScheme {
		if strings.Contains(conn, "=") {
			return DriverPostgres, conn, nil
		}
		return "", "", fmt.Errorf("%w: %q", ErrUnsupportedScheme, conn)
	}

	switch strings.ToLower(scheme) {
	case "postgres", "postgresql":
		return DriverPostgres, conn, nil
	case "cockroachdb", "crdb":
		return DriverPgx, "postgresql://" + rest, nil
	case "mysql":
		cfg, err := mysql.ParseDSN(rest)
		if err != nil {
			return "", "", fmt.Errorf("invalid mysql DSN: %w", err)
		}
		cfg.ParseTime = true
		return DriverMySQL, cfg.FormatDSN(), nil
	case "sqlserver":
		return DriverSQLServer, conn, nil
	case "snowflake":
		return DriverSnowflake, rest, nil
	default:
		return "", "", fmt.Errorf("%w: %s", ErrUnsupportedScheme, scheme)
	}
}

// SQLServerDSN builds a sqlserver:// URL from its parts. An empty user
// leaves authentication to the driver.
func SQLServerDSN(host string, port int, database, user, password string) string {
	if port == 0 {
		port = 1433
	}
	u := url.URL{
		Scheme: "sqlserver",
		Host:   net.JoinHostPort(host, strconv.Itoa(port)),
	}
	if user != "" {
		u.User = url.UserPassword(user, password)
	}
	if database != "" {
		u.RawQuery = url.Values{"database": {database}}.Encode()
	}
	return u.String()
}

// TableQuery selects every column of a possibly schema-qualified table
func TableQuery(driver, table string) string {
	parts := strings.Split(table, ".")
	for i, p := range parts {
		if driver == DriverMySQL {
			parts[i] = "`" + strings.ReplaceAll(p, "`", "``") + "`"
		} else {
			parts[i] = pq.QuoteIdentifier(p)
		}
	}
	return "SELECT * FROM " + strings.Join(parts, ".")
}

func redactDSN(driver, dsn string) string {
	switch driver {
	case DriverMySQL:
		if cfg, err := mysql.ParseDSN(dsn); err == nil {
			if cfg.Passwd != "" {
				cfg.Passwd = "xxxxx"
			}
			return cfg.FormatDSN()
		}
	case DriverSnowflake:
		if cfg, err := gosnowflake.ParseDSN(dsn); err == nil {
			return fmt.Sprintf("%s@%s/%s", cfg.User, cfg.Account, cfg.Database)
		}
	}
	if u, err := url.Parse(dsn); err == nil && u.Scheme != "" {
		return u.Redacted()
	}
	return "***"
}
