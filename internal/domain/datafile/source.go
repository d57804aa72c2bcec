package datafile

import (
	"database/sql"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// State is where a file source is in its lifecycle.
type State string

const (
	StateUploaded  State = "uploaded"
	StateConfirmed State = "confirmed"
	StateDeleted   State = "deleted"
)

// FileSource is one uploaded spreadsheet tied to a form section and a period.
type FileSource struct {
	FormID         uuid.UUID
	FormSectionID  uuid.UUID
	ID             uuid.UUID
	FileTemplateID uuid.UUID
	HTMLTemplateID uuid.UUID
	CreatorID      string
	FileName       string
	Extension      string
	Size           int64
	Path           string // relative to the upload root
	Comment        string
	SourceDate     time.Time
	CreatedAt      time.Time
	IsConfirmed    bool
	ConfirmerID    sql.NullString
	ConfirmedAt    sql.NullTime
	IsDeleted      bool
	DeleterID      sql.NullString
	DeletedAt      sql.NullTime

	FormName        string
	FormSectionName string
}

func (f *FileSource) State() State {
	switch {
	case f.IsDeleted:
		return StateDeleted
	case f.IsConfirmed:
		return StateConfirmed
	}
	return StateUploaded
}

func (f *FileSource) LogFields() logrus.Fields {
	return logrus.Fields{
		"form_id":         f.FormID,
		"form_section_id": f.FormSectionID,
		"file_source_id":  f.ID,
		"file_name":       f.FileName,
		"source_date":     f.SourceDate.Format("2006-01-02"),
		"state":           f.State(),
		"creator_id":      f.CreatorID,
	}
}
