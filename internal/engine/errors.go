package engine

import "errors"

var (
	// ErrDatabaseNotFound means a source or destination database is absent and
	// was not created. Fatal to the run.
	ErrDatabaseNotFound = errors.New("database not found")

	// ErrTableCreation wraps a rejected DDL replay. Recoverable per table.
	ErrTableCreation = errors.New("table creation failed")

	// ErrTransfer wraps a failed row copy. The table's transaction is rolled back.
	ErrTransfer = errors.New("transfer failed")
)
