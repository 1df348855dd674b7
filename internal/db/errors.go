package db

import (
	"errors"
	"fmt"
	"strings"

	"github.com/raphaelgruber/docchat/internal/checkpoint"
	"github.com/surrealdb/surrealdb.go"
)

// Sentinel errors for database operations.
var (
	// ErrTransactionConflict indicates a SurrealDB transaction conflict.
	// This occurs when concurrent writers touch the same records; the
	// transaction had no effect and can be retried.
	ErrTransactionConflict = errors.New("transaction conflict")
)

// versionConflictMarker is thrown by the checkpoint commit transaction.
const versionConflictMarker = "checkpoint version conflict"

// wrapQueryError inspects a SurrealDB error and wraps it with the matching
// sentinel. Other errors are returned unchanged.
func wrapQueryError(err error) error {
	if err == nil {
		return nil
	}

	var queryErr *surrealdb.QueryError
	if errors.As(err, &queryErr) {
		msg := queryErr.Message
		if strings.Contains(msg, versionConflictMarker) {
			return fmt.Errorf("%w: %s", checkpoint.ErrVersionConflict, msg)
		}
		if strings.Contains(msg, "Transaction conflict") {
			return fmt.Errorf("%w: %s", ErrTransactionConflict, msg)
		}
	}
	return err
}
