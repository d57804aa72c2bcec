package form

import (
	"database/sql"
	"time"

	"dashboard_report_bot/internal/domain/period"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// Form is a dashboard: a reporting unit with an upload interval and one or more sections.
type Form struct {
	ID                      uuid.UUID
	HTMLTemplateID          uuid.UUID
	Name                    string
	Description             string
	Interval                period.Interval
	UploadWeekOfMonth       int // 0 means any week
	UploadDay               period.UploadDay
	IsEnabled               bool
	IsDeleted               bool
	CreatorID               string
	CreatedAt               time.Time
	UpdatedAt               sql.NullTime
	LastConfirmedSourceDate sql.NullTime
}

// Available is false for forms that can no longer receive uploads or confirmations.
func (f *Form) Available() bool {
	return f.IsEnabled && !f.IsDeleted
}

// AcceptsUploadOn reports whether the form's upload restrictions allow date.
func (f *Form) AcceptsUploadOn(date time.Time, anchor time.Weekday) bool {
	return f.Available() && period.InUploadInterval(f.Interval, f.UploadWeekOfMonth, f.UploadDay, date, anchor)
}

func (f *Form) Window(date time.Time, anchor time.Weekday) (period.DateRange, error) {
	return period.RangeForInterval(f.Interval, date, anchor)
}

func (f *Form) LogFields() logrus.Fields {
	return logrus.Fields{
		"form_id":         f.ID,
		"form_name":       f.Name,
		"upload_interval": f.Interval,
	}
}

// Section is a part of a form with its own file template and uploader roster.
type Section struct {
	FormID         uuid.UUID
	ID             uuid.UUID
	FileTemplateID uuid.UUID
	Name           string
	ScriptVariable string
	IsEnabled      bool
	IsDeleted      bool
	CreatorID      string
	CreatedAt      time.Time
	FileTemplate   *FileTemplate
	Uploaders      []string
	FormName       string
}

func (s *Section) Available() bool {
	return s.IsEnabled && !s.IsDeleted
}

func (s *Section) HasUploader(userID string) bool {
	for _, id := range s.Uploaders {
		if id == userID {
			return true
		}
	}
	return false
}

func (s *Section) LogFields() logrus.Fields {
	return logrus.Fields{
		"form_id":         s.FormID,
		"form_section_id": s.ID,
		"section_name":    s.Name,
		"script_variable": s.ScriptVariable,
	}
}
