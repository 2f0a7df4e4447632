package schemagen

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"go.uber.org/zap"

	merr "github.com/keystone-orm/keystone/internal/meta/errors"
)

// Common schema application error types
var (
	// ErrTableExists is returned when a generated table already exists
	ErrTableExists = errors.New("table already exists")

	// ErrSyntaxError is returned when the generated DDL fails to parse
	ErrSyntaxError = errors.New("DDL syntax error")

	// ErrPermissionDenied is returned when the database user may not create objects
	ErrPermissionDenied = errors.New("permission denied")
)

// Applier executes generated DDL against a database in a single
// transaction, so a partial schema is never left behind.
type Applier struct {
	db  *sql.DB
	log *zap.Logger
}

// NewApplier creates an applier over an open database handle
func NewApplier(db *sql.DB, log *zap.Logger) *Applier {
	if log == nil {
		log = zap.NewNop()
	}
	return &Applier{db: db, log: log}
}

// Apply executes the statements in order inside one transaction.
// Statements must already be in dependency order.
func (a *Applier) Apply(ctx context.Context, statements []Statement) error {
	if len(statements) == 0 {
		a.log.Info("no schema statements to apply")
		return nil
	}

	start := time.Now()

	tx, err := a.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	for _, stmt := range statements {
		if _, err := tx.ExecContext(ctx, stmt.SQL); err != nil {
			converted := ConvertDBError(err)
			a.log.Error("schema statement failed",
				zap.String("class", stmt.Class),
				zap.String("kind", stmt.Kind),
				zap.Error(converted))
			return merr.New("schemagen", merr.ErrDDLFailed, stmt.Class,
				converted.Error())
		}
		a.log.Debug("applied schema statement",
			zap.String("class", stmt.Class),
			zap.String("kind", stmt.Kind))
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit schema: %w", err)
	}

	a.log.Info("schema applied",
		zap.Int("statements", len(statements)),
		zap.Duration("elapsed", time.Since(start)))
	return nil
}

// ConvertDBError converts database-specific errors into schema errors
func ConvertDBError(err error) error {
	if err == nil {
		return nil
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case "42P07": // duplicate_table
			return fmt.Errorf("%w: %s", ErrTableExists, pgErr.Message)
		case "42601": // syntax_error
			return fmt.Errorf("%w: %s", ErrSyntaxError, pgErr.Message)
		case "42501": // insufficient_privilege
			return fmt.Errorf("%w: %s", ErrPermissionDenied, pgErr.Message)
		}
	}

	return err
}

// IsTableExists returns true if the error is ErrTableExists
func IsTableExists(err error) bool {
	return errors.Is(err, ErrTableExists)
}
