package database

import (
	"database/sql"
	"strconv"
	"strings"
	"time"
)

// Dialect hides the differences between the supported engines. Repositories
// write queries with ? placeholders and let the dialect adapt them.
type Dialect interface {
	DriverName() string
	DSN(config DialectConfig) string

	// RewriteQuery adapts ? placeholders to the driver's syntax
	RewriteQuery(query string) string

	// SupportsLastInsertId is false for drivers that need INSERT ... RETURNING id
	SupportsLastInsertId() bool

	ConfigureConnection(db *sql.DB) error

	// MigrationsSubdir names the directory under migrations/ holding this engine's files
	MigrationsSubdir() string
	CreateMigrationsTableQuery() string

	// OnConflictDoNothing returns the clause appended to an INSERT so that a
	// row violating the given unique key is silently skipped
	OnConflictDoNothing(conflictColumns ...string) string

	// LockingRead is appended to a SELECT inside a transaction so the rows it
	// reads stay locked until commit
	LockingRead() string

	// UpsertSettings returns the statement that inserts or replaces a settings row
	UpsertSettings() string

	// IsUniqueViolation reports whether err came from a unique or primary key constraint
	IsUniqueViolation(err error) bool

	// IsRetryable reports whether err means a concurrent transaction won a race
	// and the whole transaction may be run again
	IsRetryable(err error) bool
}

// DialectConfig carries either a SQLite file path or a server URL
type DialectConfig struct {
	Path string
	URL  string
}

// rewritePlaceholdersToNumbered converts ? placeholders to $1, $2, ... leaving
// question marks inside quoted literals alone
func rewritePlaceholdersToNumbered(query string) string {
	var b strings.Builder
	b.Grow(len(query) + 8)

	n := 0
	var quote rune
	for _, r := range query {
		switch {
		case quote != 0:
			if r == quote {
				quote = 0
			}
		case r == '\'' || r == '"':
			quote = r
		case r == '?':
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

// onConflictDoNothingClause is shared by SQLite and PostgreSQL
func onConflictDoNothingClause(conflictColumns []string) string {
	if len(conflictColumns) == 0 {
		return " ON CONFLICT DO NOTHING"
	}
	return " ON CONFLICT (" + strings.Join(conflictColumns, ", ") + ") DO NOTHING"
}

// configurePool sizes the connection pool. Every dialect shares the same limits.
func configurePool(db *sql.DB) {
	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)
	db.SetConnMaxIdleTime(time.Minute)
}
