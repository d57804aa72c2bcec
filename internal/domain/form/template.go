package form

import (
	"database/sql"
	"fmt"
	"sort"
	"time"

	"dashboard_report_bot/internal/domain/spreadsheet"

	"github.com/google/uuid"
)

var ErrEmptyParseTemplate = fmt.Errorf("parse template has no regions")

// ParseTemplate maps sheet names to the regions extracted from them.
type ParseTemplate struct {
	Sheets map[string][]spreadsheet.Region `json:"sheets" yaml:"sheets"`
}

// SheetNames returns the configured sheets in a stable order.
func (p ParseTemplate) SheetNames() []string {
	names := make([]string, 0, len(p.Sheets))
	for name := range p.Sheets {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Validate checks that every region has two well-formed corners.
func (p ParseTemplate) Validate() error {
	regions := 0
	for _, sheet := range p.SheetNames() {
		for i, r := range p.Sheets[sheet] {
			if _, _, err := r.Bounds(); err != nil {
				return fmt.Errorf("sheet %q region %d: %w", sheet, i+1, err)
			}
			regions++
		}
	}
	if regions == 0 {
		return ErrEmptyParseTemplate
	}
	return nil
}

// FileTemplate is the spreadsheet layout uploads to a section must follow.
type FileTemplate struct {
	FormID        uuid.UUID
	SectionID     uuid.UUID
	ID            uuid.UUID
	FileName      string
	ParseTemplate ParseTemplate
	CreatorID     string
	CreatedAt     time.Time
}

// HTMLTemplate renders a form's data.
type HTMLTemplate struct {
	FormID        uuid.UUID
	ID            uuid.UUID
	Description   string
	ScriptContent string
	HTMLContent   string
	StyleContent  string
	CreatorID     string
	CreatedAt     time.Time
	UpdatedAt     sql.NullTime
}

// CopyAs clones the template under a new id, as a frozen snapshot for confirmed data.
func (t *HTMLTemplate) CopyAs(id uuid.UUID, creatorID string, now time.Time) *HTMLTemplate {
	return &HTMLTemplate{
		FormID:        t.FormID,
		ID:            id,
		Description:   t.Description,
		ScriptContent: t.ScriptContent,
		HTMLContent:   t.HTMLContent,
		StyleContent:  t.StyleContent,
		CreatorID:     creatorID,
		CreatedAt:     now,
	}
}
