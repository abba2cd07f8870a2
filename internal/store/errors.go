package store

import (
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"
)

// Sentinel errors. Every error returned by the store that belongs to one of
// these classes wraps the sentinel, so callers test with errors.Is.
var (
	// ErrValidation marks malformed input. Never retried.
	ErrValidation = errors.New("validation failed")

	// ErrNotFound marks a referenced issue, cycle or module that does not exist.
	ErrNotFound = errors.New("not found")

	// ErrRetryable marks transient lock contention. Nothing was written.
	ErrRetryable = errors.New("database busy, retry")

	// ErrIntegrity marks a broken invariant such as a duplicate sequence ID.
	ErrIntegrity = errors.New("integrity violation")
)

// BulkError reports where a bulk update stopped. The transaction was rolled
// back, so no issue in the batch was changed.
type BulkError struct {
	IssueID   string
	Processed int
	Err       error
}

func (e *BulkError) Error() string {
	return fmt.Sprintf("bulk update stopped at issue %s after %d issues (rolled back): %v", e.IssueID, e.Processed, e.Err)
}

func (e *BulkError) Unwrap() error { return e.Err }

func validationErr(format string, a ...any) error {
	return fmt.Errorf("%w: %s", ErrValidation, fmt.Sprintf(format, a...))
}

func notFound(kind, id string) error {
	return fmt.Errorf("%s %s: %w", kind, id, ErrNotFound)
}

// IsNotFound reports whether err wraps ErrNotFound.
func IsNotFound(err error) bool { return errors.Is(err, ErrNotFound) }

// IsValidation reports whether err wraps ErrValidation.
func IsValidation(err error) bool { return errors.Is(err, ErrValidation) }

// IsRetryable reports whether err wraps ErrRetryable.
func IsRetryable(err error) bool { return errors.Is(err, ErrRetryable) }

// IsIntegrity reports whether err wraps ErrIntegrity.
func IsIntegrity(err error) bool { return errors.Is(err, ErrIntegrity) }

// wrapDBError adds operation context and maps driver failures onto the
// sentinel taxonomy.
func wrapDBError(op string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("%s: %w", op, ErrNotFound)
	}
	if class := classifyError(err); class != nil {
		return fmt.Errorf("%s: %w: %w", op, class, err)
	}
	return fmt.Errorf("%s: %w", op, err)
}

// classifyError returns ErrRetryable or ErrIntegrity for driver errors that
// belong to those classes, nil otherwise.
func classifyError(err error) error {
	if err == nil || errors.Is(err, ErrRetryable) || errors.Is(err, ErrIntegrity) {
		return nil
	}
	var se *sqlite.Error
	if errors.As(err, &se) {
		switch se.Code() & 0xff {
		case sqlite3.SQLITE_BUSY, sqlite3.SQLITE_LOCKED:
			return ErrRetryable
		case sqlite3.SQLITE_CONSTRAINT:
			if isUniqueConstraintError(err) {
				return ErrIntegrity
			}
		}
		return nil
	}
	if isBusyError(err) {
		return ErrRetryable
	}
	if isUniqueConstraintError(err) {
		return ErrIntegrity
	}
	return nil
}

func isBusyError(err error) bool {
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "database is locked") ||
		strings.Contains(msg, "sqlite_busy") ||
		strings.Contains(msg, "database table is locked")
}

func isUniqueConstraintError(err error) bool {
	return strings.Contains(err.Error(), "UNIQUE constraint failed")
}
