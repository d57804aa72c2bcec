package app

import (
	"fmt"

	"dashboard_report_bot/internal/domain/spreadsheet"
)

// Application-level errors. Callers match them with errors.Is; messages carry the ids involved.
var (
	ErrNotFound               = fmt.Errorf("not found")
	ErrInvalidState           = fmt.Errorf("invalid state")
	ErrFileMissing            = fmt.Errorf("uploaded file is missing")
	ErrPeriodAlreadyConfirmed = fmt.Errorf("period already confirmed")
	ErrTransactionFailure     = fmt.Errorf("transaction failure")
	ErrRollbackFailure        = fmt.Errorf("rollback failure")
	ErrPermissionDenied       = fmt.Errorf("permission denied")

	ErrUnsupportedFormat   = spreadsheet.ErrUnsupportedFormat
	ErrMalformedCoordinate = spreadsheet.ErrMalformedCoordinate
	ErrSheetNotFound       = spreadsheet.ErrSheetNotFound
)

// RollbackError reports a failed rollback together with the error that triggered it.
// It matches ErrRollbackFailure first, then both causes.
type RollbackError struct {
	Cause    error
	Rollback error
}

func (e *RollbackError) Error() string {
	return fmt.Sprintf("%v: %v (rolling back after: %v)", ErrRollbackFailure, e.Rollback, e.Cause)
}

func (e *RollbackError) Unwrap() []error {
	return []error{ErrRollbackFailure, e.Rollback, e.Cause}
}
