package datafile

import (
	"context"
	"fmt"
	"time"

	"dashboard_report_bot/internal/domain/form"
	"dashboard_report_bot/internal/domain/period"

	"github.com/google/uuid"
)

var ErrFileSourceNotFound = fmt.Errorf("data file source not found")

// StoredCellValue is a persisted cell joined with its section's script variable.
type StoredCellValue struct {
	ScriptVariable string
	CellValue
}

// CellValueQuery selects persisted cells of one form and period.
type CellValueQuery struct {
	FormID        uuid.UUID
	Range         period.DateRange
	OnlyConfirmed bool
	// RestrictToUserID limits results to sections the user uploads to.
	RestrictToUserID string
	// RequesterID still sees their own unconfirmed uploads when OnlyConfirmed is set.
	RequesterID string
}

// Repository is the transactional store of file sources and their cells.
type Repository interface {
	Begin(ctx context.Context) (Tx, error)
	GetFileSource(ctx context.Context, formID, sectionID, fileSourceID uuid.UUID) (*FileSource, error)
	// ListByForm returns the non-deleted file sources of a form whose source date lies in r.
	ListByForm(ctx context.Context, formID uuid.UUID, r period.DateRange) ([]*FileSource, error)
	ListCellValues(ctx context.Context, q CellValueQuery) ([]*StoredCellValue, error)
}

// Tx groups writes that commit or roll back together. Reads inside it see its writes.
type Tx interface {
	ListBySection(ctx context.Context, formID, sectionID uuid.UUID, r period.DateRange) ([]*FileSource, error)
	ListByForm(ctx context.Context, formID uuid.UUID, r period.DateRange) ([]*FileSource, error)
	Insert(ctx context.Context, fs *FileSource) error
	InsertCellValues(ctx context.Context, values []*CellValue) error
	MarkConfirmed(ctx context.Context, fs *FileSource, htmlTemplateID uuid.UUID, confirmerID string, at time.Time) error
	MarkUnconfirmed(ctx context.Context, fs *FileSource) error
	SoftDelete(ctx context.Context, fs *FileSource, deleterID string, at time.Time) error
	GetHTMLTemplate(ctx context.Context, formID, templateID uuid.UUID) (*form.HTMLTemplate, error)
	CreateHTMLTemplate(ctx context.Context, t *form.HTMLTemplate) error
	TouchLastConfirmed(ctx context.Context, formID uuid.UUID, sourceDate time.Time) error
	Commit() error
	Rollback() error
}
